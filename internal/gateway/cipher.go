// Package gateway contains the card approval gateways: the TestPG HTTP
// client, the local simulator and the fallback chain between them.
package gateway

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

const (
	gcmNonceSize = 12
	gcmTagSize   = 16
)

// Simulation material used when no credential or IV is configured.
// These are public values: the cipher only satisfies the TestPG wire
// protocol and is not a security boundary.
var (
	simulationKey = []byte("test-pg-simulation-key-32bytes!!")
	simulationIV  = []byte("test-pg-iv12")
)

// PayloadCipher encrypts approval payloads with AES-256-GCM.
//
// The key is SHA-256(credential); an empty credential falls back to a fixed
// simulation key. The IV is the base64url-decoded value when it decodes to
// exactly 12 bytes; anything else falls back to a fixed simulation IV.
// Ciphertext (with the 16-byte tag appended) is base64url without padding.
type PayloadCipher struct{}

// NewPayloadCipher constructs a cipher.
func NewPayloadCipher() *PayloadCipher {
	return &PayloadCipher{}
}

// Encrypt seals plaintext and returns the encoded ciphertext.
func (c *PayloadCipher) Encrypt(plaintext, credential, iv string) (string, error) {
	aead, err := newAEAD(credential)
	if err != nil {
		return "", err
	}
	sealed := aead.Seal(nil, resolveIV(iv), []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an encoded ciphertext produced by Encrypt with the same credential and IV.
func (c *PayloadCipher) Decrypt(ciphertext, credential, iv string) (string, error) {
	aead, err := newAEAD(credential)
	if err != nil {
		return "", err
	}
	raw, err := decodeBase64URL(ciphertext)
	if err != nil {
		return "", errors.New("payload cipher: invalid ciphertext encoding")
	}
	if len(raw) < gcmTagSize {
		return "", errors.New("payload cipher: ciphertext too short")
	}
	plain, err := aead.Open(nil, resolveIV(iv), raw, nil)
	if err != nil {
		return "", errors.New("payload cipher: authentication failed")
	}
	return string(plain), nil
}

func newAEAD(credential string) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(credential))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithTagSize(block, gcmTagSize)
}

func deriveKey(credential string) []byte {
	if credential == "" {
		return simulationKey
	}
	sum := sha256.Sum256([]byte(credential))
	return sum[:]
}

func resolveIV(iv string) []byte {
	if iv == "" {
		return simulationIV
	}
	raw, err := decodeBase64URL(iv)
	if err != nil || len(raw) != gcmNonceSize {
		return simulationIV
	}
	return raw
}

// decodeBase64URL accepts both padded and unpadded base64url.
func decodeBase64URL(value string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(value, "="))
}
