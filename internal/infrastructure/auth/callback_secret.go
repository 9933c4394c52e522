package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrCallbackSecretMismatch is returned when a gateway callback carries the wrong secret
var ErrCallbackSecretMismatch = errors.New("callback secret mismatch")

// CallbackSecretVerifier checks the shared secret sent by the payment gateway
// against a bcrypt hash, so the plain secret never sits in configuration.
type CallbackSecretVerifier struct {
	hash []byte
}

// NewCallbackSecretVerifier creates a verifier for hash. An empty hash
// disables verification.
func NewCallbackSecretVerifier(hash string) (*CallbackSecretVerifier, error) {
	if hash == "" {
		return &CallbackSecretVerifier{}, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, err
	}
	return &CallbackSecretVerifier{hash: []byte(hash)}, nil
}

// Enabled reports whether callbacks are checked
func (v *CallbackSecretVerifier) Enabled() bool {
	return len(v.hash) > 0
}

// Verify returns nil when secret matches or verification is disabled
func (v *CallbackSecretVerifier) Verify(secret string) error {
	if !v.Enabled() {
		return nil
	}
	if secret == "" {
		return ErrCallbackSecretMismatch
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(secret)); err != nil {
		return ErrCallbackSecretMismatch
	}
	return nil
}

// HashCallbackSecret produces the value stored in payment.callback_secret_hash
func HashCallbackSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
