// Package jwt manages step-up token issuance and verification using configured signing keys
// and strict validation semantics suitable for low-latency authentication paths.
package jwt
