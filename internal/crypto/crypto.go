package crypto

import (
	"crypto/sha256"
	"errors"

	"github.com/fernet/fernet-go"
	"golang.org/x/crypto/pbkdf2"
)

var (
	ErrKeyMissing    = errors.New("encryption key is required")
	ErrDecryptFailed = errors.New("decryption failed: invalid key or corrupted ciphertext")
)

// Key derivation matches the deployed scheme: PBKDF2-HMAC-SHA256 with a fixed
// salt and 100000 iterations. The fixed salt means every deployment sharing a
// secret derives the same key.
const (
	keySalt       = "find_a_meeting_spot"
	keyIterations = 100000
	keyLength     = 32
)

// DeriveKey turns the configured secret into a Fernet key.
func DeriveKey(secret string) (*fernet.Key, error) {
	if secret == "" {
		return nil, ErrKeyMissing
	}

	raw := pbkdf2.Key([]byte(secret), []byte(keySalt), keyIterations, keyLength, sha256.New)

	var key fernet.Key
	copy(key[:], raw)

	return &key, nil
}

// Encrypt returns the Fernet token for data as a string safe to persist.
func Encrypt(data string, key *fernet.Key) (string, error) {
	if key == nil {
		return "", ErrKeyMissing
	}

	tok, err := fernet.EncryptAndSign([]byte(data), key)
	if err != nil {
		return "", err
	}

	return string(tok), nil
}

// Decrypt reverses Encrypt. A nil result from fernet means the token failed
// authentication, which is surfaced as ErrDecryptFailed.
func Decrypt(encrypted string, key *fernet.Key) (string, error) {
	if key == nil {
		return "", ErrKeyMissing
	}

	plain := fernet.VerifyAndDecrypt([]byte(encrypted), 0, []*fernet.Key{key})
	if plain == nil {
		return "", ErrDecryptFailed
	}

	return string(plain), nil
}
