package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext []byte
		password  string
	}{
		{"small payload", []byte("hello"), "secret123"},
		{"empty password", []byte("payload"), ""},
		{"binary payload", []byte{0x00, 0xff, 0x50, 0x4b, 0x03, 0x04}, "p@ssw0rd"},
		{"empty payload", []byte{}, "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envelope, err := Encrypt(tt.plaintext, tt.password)
			require.NoError(t, err)

			assert.True(t, IsEnvelope(envelope))

			plaintext, err := Decrypt(envelope, tt.password)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, plaintext)
		})
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	envelope, err := Encrypt([]byte("question bank"), "correct")
	require.NoError(t, err)

	_, err = Decrypt(envelope, "incorrect")
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	envelope, err := Encrypt([]byte("question bank"), "secret")
	require.NoError(t, err)

	envelope[len(envelope)-1] ^= 0x01

	_, err = Decrypt(envelope, "secret")
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestIsEnvelope(t *testing.T) {
	assert.False(t, IsEnvelope(nil))
	assert.False(t, IsEnvelope([]byte("")))
	assert.False(t, IsEnvelope([]byte("abc")))
	assert.False(t, IsEnvelope([]byte("QBE1"))) // magic alone is not an envelope
	assert.False(t, IsEnvelope([]byte("PK\x03\x04 spreadsheet bytes")))
	assert.True(t, IsEnvelope([]byte("QBE1 and some more bytes")))
}

func TestDecryptNotEncrypted(t *testing.T) {
	_, err := Decrypt([]byte("PK\x03\x04 plain spreadsheet"), "secret")
	assert.ErrorIs(t, err, ErrNotEncrypted)
}

func TestDecryptTruncatedEnvelope(t *testing.T) {
	// Magic plus a partial salt must be a format error, not an auth error.
	blob := append([]byte("QBE1"), bytes.Repeat([]byte{0xaa}, 15)...)
	require.Len(t, blob, 19)

	_, err := Decrypt(blob, "secret")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	// Full salt but nothing after it.
	blob = append([]byte("QBE1"), bytes.Repeat([]byte{0xaa}, SaltSize)...)
	_, err = Decrypt(blob, "secret")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	// Ciphertext segment too short to hold nonce and tag.
	blob = append(blob, 0x01, 0x02, 0x03)
	_, err = Decrypt(blob, "secret")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestEncryptFreshSaltPerCall(t *testing.T) {
	first, err := Encrypt([]byte("same plaintext"), "same password")
	require.NoError(t, err)
	second, err := Encrypt([]byte("same plaintext"), "same password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := bytes.Repeat([]byte{0x42}, SaltSize)

	a := DeriveKey("password", salt)
	b := DeriveKey("password", salt)
	assert.Equal(t, a, b)
	assert.Len(t, a, KeySize)

	c := DeriveKey("other", salt)
	assert.NotEqual(t, a, c)
}

func TestPasswordVerifier(t *testing.T) {
	salt := bytes.Repeat([]byte{0x07}, SaltSize)
	verifier := MakeVerifier("secret", salt)

	assert.True(t, VerifyPassword("secret", salt, verifier))
	assert.False(t, VerifyPassword("wrong", salt, verifier))
	assert.False(t, VerifyPassword("secret", bytes.Repeat([]byte{0x08}, SaltSize), verifier))
}
