package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"meetspot-api/internal/crypto"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key, err := crypto.DeriveKey("test-secret")
	require.NoError(t, err)

	cases := []string{
		"user@example.com",
		"+14155550123",
		"",
		"日本語の連絡先",
	}

	for _, plaintext := range cases {
		encrypted, err := crypto.Encrypt(plaintext, key)
		require.NoError(t, err)
		require.NotEqual(t, plaintext, encrypted)

		decrypted, err := crypto.Decrypt(encrypted, key)
		require.NoError(t, err)
		require.Equal(t, plaintext, decrypted)
	}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	k1, err := crypto.DeriveKey("same-secret")
	require.NoError(t, err)
	k2, err := crypto.DeriveKey("same-secret")
	require.NoError(t, err)
	require.Equal(t, k1, k2)

	k3, err := crypto.DeriveKey("other-secret")
	require.NoError(t, err)
	require.NotEqual(t, k1, k3)
}

func TestDeriveKey_MissingSecret(t *testing.T) {
	_, err := crypto.DeriveKey("")
	require.ErrorIs(t, err, crypto.ErrKeyMissing)
}

func TestDecrypt_WrongKey(t *testing.T) {
	key, err := crypto.DeriveKey("right-secret")
	require.NoError(t, err)

	encrypted, err := crypto.Encrypt("user@example.com", key)
	require.NoError(t, err)

	wrongKey, err := crypto.DeriveKey("wrong-secret")
	require.NoError(t, err)

	_, err = crypto.Decrypt(encrypted, wrongKey)
	require.ErrorIs(t, err, crypto.ErrDecryptFailed)
}

func TestDecrypt_CorruptedCiphertext(t *testing.T) {
	key, err := crypto.DeriveKey("test-secret")
	require.NoError(t, err)

	_, err = crypto.Decrypt("not-a-fernet-token", key)
	require.ErrorIs(t, err, crypto.ErrDecryptFailed)
}

func TestEncrypt_NilKey(t *testing.T) {
	_, err := crypto.Encrypt("data", nil)
	require.ErrorIs(t, err, crypto.ErrKeyMissing)

	_, err = crypto.Decrypt("data", nil)
	require.ErrorIs(t, err, crypto.ErrKeyMissing)
}
