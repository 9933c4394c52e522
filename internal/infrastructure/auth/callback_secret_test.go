package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackSecretVerifier(t *testing.T) {
	hash, err := HashCallbackSecret("gateway-shared-secret")
	require.NoError(t, err)

	v, err := NewCallbackSecretVerifier(hash)
	require.NoError(t, err)
	assert.True(t, v.Enabled())

	assert.NoError(t, v.Verify("gateway-shared-secret"))
	assert.ErrorIs(t, v.Verify("guess"), ErrCallbackSecretMismatch)
	assert.ErrorIs(t, v.Verify(""), ErrCallbackSecretMismatch)
}

func TestCallbackSecretVerifier_Disabled(t *testing.T) {
	v, err := NewCallbackSecretVerifier("")
	require.NoError(t, err)

	assert.False(t, v.Enabled())
	assert.NoError(t, v.Verify(""))
}

func TestCallbackSecretVerifier_BadHash(t *testing.T) {
	_, err := NewCallbackSecretVerifier("plain-text-is-not-a-hash")
	assert.Error(t, err)
}
