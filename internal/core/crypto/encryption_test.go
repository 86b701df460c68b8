package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// DeriveKey Tests
// =============================================================================

func TestDeriveKey(t *testing.T) {
	key := DeriveKey("my-secret-passphrase")
	assert.Len(t, key, 32) // SHA-256 produces 32 bytes
}

func TestDeriveKey_Deterministic(t *testing.T) {
	key1 := DeriveKey("same-passphrase")
	key2 := DeriveKey("same-passphrase")
	assert.Equal(t, key1, key2)
}

func TestDeriveKey_DifferentInput(t *testing.T) {
	key1 := DeriveKey("passphrase1")
	key2 := DeriveKey("passphrase2")
	assert.NotEqual(t, key1, key2)
}

// =============================================================================
// Encrypt/Decrypt Tests
// =============================================================================

func TestEncrypt_Decrypt_Roundtrip(t *testing.T) {
	plaintext := []byte("00DAu000002LlyD!AQcAQPp...")
	key := DeriveKey("test-encryption-key")

	ciphertext, err := Encrypt(plaintext, key)
	require.NoError(t, err)
	assert.NotEmpty(t, ciphertext)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := Decrypt(ciphertext, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncrypt_DifferentNonces(t *testing.T) {
	plaintext := []byte("same token")
	key := DeriveKey("test-key")

	ciphertext1, err := Encrypt(plaintext, key)
	require.NoError(t, err)

	ciphertext2, err := Encrypt(plaintext, key)
	require.NoError(t, err)

	// Same plaintext should produce different ciphertext (different nonces)
	assert.NotEqual(t, ciphertext1, ciphertext2)
}

func TestEncrypt_KeyTooShort(t *testing.T) {
	_, err := Encrypt([]byte("test"), []byte("too-short"))
	assert.ErrorIs(t, err, ErrKeyTooShort)
}

func TestDecrypt_KeyTooShort(t *testing.T) {
	_, err := Decrypt([]byte("some-ciphertext-data-that-is-long-enough"), []byte("too-short"))
	assert.ErrorIs(t, err, ErrKeyTooShort)
}

func TestDecrypt_WrongKey(t *testing.T) {
	ciphertext, err := Encrypt([]byte("secret"), DeriveKey("correct-key"))
	require.NoError(t, err)

	_, err = Decrypt(ciphertext, DeriveKey("wrong-key"))
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecrypt_CiphertextTooShort(t *testing.T) {
	// Too short to contain a nonce
	_, err := Decrypt([]byte("short"), DeriveKey("test-key"))
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestDecrypt_CorruptedCiphertext(t *testing.T) {
	key := DeriveKey("test-key")
	ciphertext, err := Encrypt([]byte("secret"), key)
	require.NoError(t, err)

	ciphertext[len(ciphertext)-1] ^= 0xFF

	_, err = Decrypt(ciphertext, key)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestEncrypt_EmptyPlaintext(t *testing.T) {
	key := DeriveKey("test-key")

	ciphertext, err := Encrypt([]byte{}, key)
	require.NoError(t, err)
	assert.NotEmpty(t, ciphertext) // Contains nonce + auth tag

	decrypted, err := Decrypt(ciphertext, key)
	require.NoError(t, err)
	assert.Empty(t, decrypted)
}

func TestEncrypt_LargePlaintext(t *testing.T) {
	plaintext := bytes.Repeat([]byte("x"), 1024*1024)
	key := DeriveKey("test-key")

	ciphertext, err := Encrypt(plaintext, key)
	require.NoError(t, err)

	decrypted, err := Decrypt(ciphertext, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

// =============================================================================
// Base64 Encoding Tests
// =============================================================================

func TestEncryptToBase64_DecryptFromBase64(t *testing.T) {
	plaintext := []byte("access token")
	key := DeriveKey("test-key")

	encoded, err := EncryptToBase64(plaintext, key)
	require.NoError(t, err)
	assert.NotEmpty(t, encoded)

	decrypted, err := DecryptFromBase64(encoded, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestDecryptFromBase64_InvalidBase64(t *testing.T) {
	_, err := DecryptFromBase64("not-valid-base64!@#", DeriveKey("test-key"))
	assert.Error(t, err)
}
