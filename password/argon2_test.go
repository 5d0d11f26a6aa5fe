package password

import (
	"strings"
	"testing"
)

func secureParams() Params {
	return Params{
		Memory:      65536,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestHashAndVerify(t *testing.T) {
	hasher := NewArgon2(secureParams())

	hash, err := hasher.Hash("014523")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=2$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := hasher.Verify("014523", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("expected verification to succeed")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	hasher := NewArgon2(secureParams())

	hash, err := hasher.Hash("014523")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := hasher.Verify("999999", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong secret verification to fail")
	}
}

func TestNeedsUpgrade(t *testing.T) {
	oldHasher := NewArgon2(Params{
		Memory:      32768,
		Time:        2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})

	hash, err := oldHasher.Hash("014523")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	newHasher := NewArgon2(secureParams())
	needsUpgrade, err := newHasher.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if !needsUpgrade {
		t.Fatal("expected NeedsUpgrade to return true for weaker hash parameters")
	}
}

func TestNeedsUpgradeSameParams(t *testing.T) {
	hasher := NewArgon2(secureParams())

	hash, err := hasher.Hash("014523")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	needsUpgrade, err := hasher.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if needsUpgrade {
		t.Fatal("expected NeedsUpgrade to return false for current parameters")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	hasher := NewArgon2(secureParams())

	if _, err := hasher.Verify("014523", "not-a-phc-hash"); err == nil {
		t.Fatal("expected malformed hash verification to fail")
	}
}

func TestVerifyWrongVersion(t *testing.T) {
	hasher := NewArgon2(secureParams())

	hash, err := hasher.Hash("014523")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	wrongVersion := strings.Replace(hash, "$v=19$", "$v=18$", 1)
	if _, err := hasher.Verify("014523", wrongVersion); err == nil {
		t.Fatal("expected unsupported version verification to fail")
	}
}

func TestHashEmptySecret(t *testing.T) {
	hasher := NewArgon2(secureParams())

	if _, err := hasher.Hash(""); err == nil {
		t.Fatal("expected empty secret hash to fail")
	}
}

func TestParamsClampedToMinimums(t *testing.T) {
	hasher := NewArgon2(Params{})
	if hasher.params.Memory < minMemoryKB {
		t.Fatalf("memory = %d, want >= %d", hasher.params.Memory, minMemoryKB)
	}
	if hasher.params.SaltLength < minSaltLength {
		t.Fatalf("salt length = %d, want >= %d", hasher.params.SaltLength, minSaltLength)
	}

	hash, err := hasher.Hash("0145")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	ok, err := hasher.Verify("0145", hash)
	if err != nil || !ok {
		t.Fatalf("Verify failed with clamped params: ok=%v err=%v", ok, err)
	}
}
