// Package crypto implements the password-based envelope wrapped around
// uploaded question-bank files.
//
// Wire format:
//
//	MAGIC(4) || SALT(16) || NONCE(12) || AES-256-GCM ciphertext+tag
//
// The key is derived from the upload password with PBKDF2-SHA256. A fresh
// salt is drawn per encryption, so identical inputs never produce identical
// envelopes.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltSize is the length of the random salt stored after the magic marker.
	SaltSize = 16

	// KeySize is the AES-256 key length produced by DeriveKey.
	KeySize = 32

	// Iterations is the PBKDF2 iteration count. Changing it breaks
	// decryption of existing envelopes.
	Iterations = 210_000

	nonceSize = 12
)

// envelopeMagic marks an encrypted question-bank file. It must never collide
// with the zip signature ("PK") of the spreadsheets carried inside.
var envelopeMagic = []byte("QBE1")

var (
	// ErrNotEncrypted reports a blob that does not start with the envelope magic.
	ErrNotEncrypted = errors.New("crypto: data is not an encrypted envelope")

	// ErrInvalidFormat reports an envelope too short to hold salt and ciphertext.
	ErrInvalidFormat = errors.New("crypto: malformed envelope")

	// ErrAuthentication reports a failed integrity check: wrong password or
	// corrupted ciphertext. Deliberately distinct from ErrInvalidFormat so
	// callers can tell the user to re-enter the password.
	ErrAuthentication = errors.New("crypto: authentication failed (wrong password or corrupted data)")
)

// IsEnvelope reports whether data looks like one of our encrypted envelopes.
// It never fails; short or foreign blobs simply return false.
func IsEnvelope(data []byte) bool {
	return len(data) > len(envelopeMagic) && bytes.HasPrefix(data, envelopeMagic)
}

// DeriveKey stretches password and salt into an AES-256 key. Deterministic:
// the same inputs always yield the same key.
func DeriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, Iterations, KeySize, sha256.New)
}

// Encrypt seals plaintext under a key derived from password and returns the
// full envelope. Each call draws a fresh salt and nonce.
func Encrypt(plaintext []byte, password string) ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	aead, err := newAEAD(DeriveKey(password, salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(envelopeMagic)+SaltSize+nonceSize+len(plaintext)+aead.Overhead())
	out = append(out, envelopeMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, nil)
	return out, nil
}

// Decrypt opens an envelope produced by Encrypt.
//
// Error kinds: ErrNotEncrypted when the magic is missing, ErrInvalidFormat
// when the blob is too short to contain salt, nonce and tag, and
// ErrAuthentication when the integrity check fails.
func Decrypt(envelope []byte, password string) ([]byte, error) {
	if !IsEnvelope(envelope) {
		return nil, ErrNotEncrypted
	}

	body := envelope[len(envelopeMagic):]
	if len(body) <= SaltSize {
		return nil, ErrInvalidFormat
	}
	salt, ciphertext := body[:SaltSize], body[SaltSize:]

	aead, err := newAEAD(DeriveKey(password, salt))
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < nonceSize+aead.Overhead() {
		return nil, ErrInvalidFormat
	}

	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

// MakeVerifier derives a salted hash of password suitable for storing next to
// an upload record for later re-verification. The plaintext password is never
// persisted.
func MakeVerifier(password string, salt []byte) []byte {
	hash := sha256.Sum256(DeriveKey(password, salt))
	return hash[:]
}

// VerifyPassword checks password against a verifier produced by MakeVerifier
// with the same salt.
func VerifyPassword(password string, salt, verifier []byte) bool {
	candidate := MakeVerifier(password, salt)
	return subtle.ConstantTimeCompare(candidate, verifier) == 1
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}
