// Package envelope seals record secrets before they reach the store.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	prefix     = "v1:"
	saltSize   = 16
	keySize    = 32
	iterations = 4096

	MinMasterKeyLen = 32
)

var (
	ErrMasterKeyTooShort = errors.New("envelope: master key must be at least 32 bytes")
	ErrMalformed         = errors.New("envelope: malformed sealed value")
)

type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(stored string) (string, error)
}

// Plain stores values as they are.
type Plain struct{}

func (Plain) Seal(plaintext string) (string, error) { return plaintext, nil }
func (Plain) Open(stored string) (string, error)    { return stored, nil }

// AESGCM seals each value with its own PBKDF2-derived key, so two seals of the
// same plaintext never match. Values without the version prefix are returned
// unchanged by Open, which lets a plaintext store be switched on in place.
type AESGCM struct {
	master []byte
}

func NewAESGCM(masterKey string) (*AESGCM, error) {
	if len(masterKey) < MinMasterKeyLen {
		return nil, ErrMasterKeyTooShort
	}
	return &AESGCM{master: []byte(masterKey)}, nil
}

func (a *AESGCM) Seal(plaintext string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("envelope: read salt: %w", err)
	}

	gcm, err := a.cipher(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("envelope: read nonce: %w", err)
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, []byte(plaintext), nil)

	return prefix + base64.RawStdEncoding.EncodeToString(out), nil
}

func (a *AESGCM) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, prefix) {
		return stored, nil
	}

	data, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(stored, prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(data) < saltSize {
		return "", ErrMalformed
	}

	salt, rest := data[:saltSize], data[saltSize:]
	gcm, err := a.cipher(salt)
	if err != nil {
		return "", err
	}

	if len(rest) < gcm.NonceSize() {
		return "", ErrMalformed
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("envelope: open: %w", err)
	}
	return string(plaintext), nil
}

func (a *AESGCM) cipher(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(a.master, salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("envelope: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("envelope: new gcm: %w", err)
	}
	return gcm, nil
}
