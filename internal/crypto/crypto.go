// Package crypto seals invoice payment details at rest with AES-256-CBC.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix marks values produced by Sealer.Seal so plain values written without a key stay readable.
const sealedPrefix = "enc:v1:"

// ErrInvalidKey is returned when a key is not 32 bytes long.
var ErrInvalidKey = errors.New("payment details key must be 32 bytes for AES-256")

// Sealer encrypts and decrypts payment detail blobs. A Sealer with no key passes values through.
type Sealer struct {
	key []byte
}

// NewSealer builds a Sealer. A nil key disables encryption.
func NewSealer(key []byte) (*Sealer, error) {
	if key != nil && len(key) != 32 {
		return nil, ErrInvalidKey
	}
	return &Sealer{key: key}, nil
}

// Enabled reports whether values are encrypted.
func (s *Sealer) Enabled() bool {
	return s != nil && s.key != nil
}

// Seal encrypts plain when a key is configured. Empty input stays empty.
func (s *Sealer) Seal(plain string) (string, error) {
	if plain == "" || !s.Enabled() {
		return plain, nil
	}
	sealed, err := Encrypt(plain, s.key)
	if err != nil {
		return "", err
	}
	return sealedPrefix + sealed, nil
}

// Open reverses Seal. Values without the sealed prefix are returned unchanged.
func (s *Sealer) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	if !s.Enabled() {
		return "", errors.New("payment details are encrypted but no key is configured")
	}
	return Decrypt(strings.TrimPrefix(stored, sealedPrefix), s.key)
}

// Encrypt encrypts plainText with AES-256-CBC and PKCS#7 padding.
// The output is base64(hex(iv) + hex(ciphertext)).
func Encrypt(plainText string, key []byte) (string, error) {
	if len(key) != 32 {
		return "", ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create AES cipher: %w", err)
	}

	padded := pad([]byte(plainText))

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	combined := hex.EncodeToString(iv) + hex.EncodeToString(out)
	return base64.StdEncoding.EncodeToString([]byte(combined)), nil
}

// Decrypt reverses Encrypt.
func Decrypt(encoded string, key []byte) (string, error) {
	if len(key) != 32 {
		return "", ErrInvalidKey
	}

	combinedBytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 input: %w", err)
	}
	combined := string(combinedBytes)
	if len(combined) < 2*aes.BlockSize {
		return "", errors.New("invalid ciphertext: too short to contain IV")
	}

	iv, err := hex.DecodeString(combined[:2*aes.BlockSize])
	if err != nil {
		return "", fmt.Errorf("failed to decode IV from hex: %w", err)
	}
	body, err := hex.DecodeString(combined[2*aes.BlockSize:])
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext from hex: %w", err)
	}
	if len(body) == 0 || len(body)%aes.BlockSize != 0 {
		return "", errors.New("ciphertext is not a multiple of the block size")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create AES cipher: %w", err)
	}

	out := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, body)

	plain, err := unpad(out)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, errors.New("invalid PKCS#7 padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.New("invalid PKCS#7 padding bytes")
		}
	}
	return b[:len(b)-n], nil
}
