package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/argon2"
)

const (
	KeyLen    = 32
	SaltBytes = 16
	NonceLen  = 12
)

// ErrAuthentication is returned when AEAD open fails. It means the
// ciphertext, nonce, key, or associated data do not match what was sealed ,
// tampering, a swapped blob, or a wrong master key. Callers must treat it as
// fatal and never surface partial plaintext.
var ErrAuthentication = errors.New("crypt: authentication failed")

// KDFParams tunes argon2id key derivation.
type KDFParams struct {
	Time     uint32
	MemoryMB uint32
	Threads  uint8
}

// DeriveKey derives a 256-bit encryption key from the master key material
// and a per-archive random salt using argon2id.
func DeriveKey(master, salt []byte, p KDFParams) []byte {
	return argon2.IDKey(master, salt, p.Time, p.MemoryMB*1024, p.Threads, KeyLen)
}

// NewSalt returns a fresh random KDF salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// Seal encrypts plaintext with AES-256-GCM under key, binding aad into the
// authentication tag. A fresh random nonce is generated per call and is never
// reused for a given key. The GCM tag is appended to the ciphertext.
func Seal(plaintext, key, aad []byte) (ciphertext, nonce []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	ciphertext = aesgcm.Seal(nil, nonce, plaintext, aad)
	return ciphertext, nonce, nil
}

// Open decrypts and authenticates ciphertext. Any mismatch, wrong key,
// wrong nonce, modified ciphertext, or different aad, yields
// ErrAuthentication and no plaintext.
func Open(ciphertext, nonce, key, aad []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}
