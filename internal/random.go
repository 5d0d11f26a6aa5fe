package internal

import (
	"crypto/rand"
	"encoding/base32"
	"strings"

	"github.com/google/uuid"
)

// NewAttemptID returns the unique identifier stamped on a fresh
// authentication attempt. Hosts that persist contexts through the Redis
// store use it as the storage key.
func NewAttemptID() string {
	return uuid.NewString()
}

// NewSecret returns n random bytes encoded as unpadded base32, suitable as
// OTP secret material.
func NewSecret(n int) (string, error) {
	if n <= 0 {
		n = 20
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.TrimRight(base32.StdEncoding.EncodeToString(buf), "="), nil
}
