// Package cryptox provides the authenticated payload cipher used for
// field-level protection of sensitive values. Keys are derived from the
// deployment passphrase with scrypt; each algorithm gets its own derived key.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pion/dtls/v2/pkg/crypto/ccm"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

var (
	ErrUnsupportedAlgorithm = errors.New("unsupported cipher algorithm")
	ErrMalformedToken       = errors.New("malformed ciphertext token")
	ErrDecryptionFailed     = errors.New("decryption failed")
	ErrEmptyPayload         = errors.New("payload cannot be empty")
	ErrCipherDestroyed      = errors.New("cipher has been destroyed")
)

type Encoding string

const (
	Hex    Encoding = "hex"
	Base64 Encoding = "base64"
)

const (
	AES128GCM        = "aes-128-gcm"
	AES192GCM        = "aes-192-gcm"
	AES256GCM        = "aes-256-gcm"
	AES128CCM        = "aes-128-ccm"
	AES192CCM        = "aes-192-ccm"
	AES256CCM        = "aes-256-ccm"
	ChaCha20Poly1305 = "chacha20-poly1305"
)

const (
	ivLength  = 12
	tagLength = 16

	// scrypt cost parameters, matching the interactive profile.
	scryptN = 16384
	scryptR = 8
	scryptP = 1

	maxDecryptAttempts = 3
	retryBackoffStep   = 50 * time.Millisecond
)

func keyLength(algorithm string) (int, error) {
	switch algorithm {
	case AES128GCM, AES128CCM:
		return 16, nil
	case AES192GCM, AES192CCM:
		return 24, nil
	case AES256GCM, AES256CCM, ChaCha20Poly1305:
		return 32, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algorithm)
	}
}

// Cipher is an AEAD bound to a single algorithm and derived key.
// Construct instances through the Registry.
type Cipher struct {
	algorithm string
	key       []byte
	aead      cipher.AEAD
}

func NewCipher(passphrase, salt, algorithm string) (*Cipher, error) {
	if len(passphrase) < 8 {
		return nil, errors.New("passphrase must be at least 8 characters")
	}

	keyLen, err := keyLength(algorithm)
	if err != nil {
		return nil, err
	}

	// The salt is hashed so any deployment-supplied string yields a
	// fixed-size scrypt salt.
	saltDigest := sha256.Sum256([]byte(salt))
	key, err := scrypt.Key([]byte(passphrase), saltDigest[:16], scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}

	aead, err := newAEAD(algorithm, key)
	if err != nil {
		return nil, err
	}

	return &Cipher{
		algorithm: algorithm,
		key:       key,
		aead:      aead,
	}, nil
}

func newAEAD(algorithm string, key []byte) (cipher.AEAD, error) {
	switch algorithm {
	case AES128GCM, AES192GCM, AES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case AES128CCM, AES192CCM, AES256CCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return ccm.NewCCM(block, tagLength, ivLength)
	case ChaCha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algorithm)
	}
}

func (c *Cipher) Algorithm() string {
	return c.algorithm
}

// Encrypt seals the payload and returns a token of the form iv:tag:ciphertext.
// The IV and tag are hex-encoded; the ciphertext uses the requested encoding.
func (c *Cipher) Encrypt(payload string, encoding Encoding) (string, error) {
	if c.aead == nil {
		return "", ErrCipherDestroyed
	}
	if payload == "" {
		return "", ErrEmptyPayload
	}

	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	sealed := c.aead.Seal(nil, iv, []byte(payload), nil)
	ciphertext := sealed[:len(sealed)-tagLength]
	tag := sealed[len(sealed)-tagLength:]

	return fmt.Sprintf("%s:%s:%s",
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		encode(ciphertext, encoding),
	), nil
}

// Decrypt opens a token produced by Encrypt. Structural defects fail
// immediately; an authentication-tag mismatch is retried with linear
// backoff since it can result from a concurrent key rotation.
func (c *Cipher) Decrypt(token string, encoding Encoding) (string, error) {
	if c.aead == nil {
		return "", ErrCipherDestroyed
	}

	iv, tag, ciphertext, err := c.decodeToken(token, encoding)
	if err != nil {
		return "", err
	}

	sealed := append(ciphertext, tag...)

	var lastErr error
	for attempt := 1; attempt <= maxDecryptAttempts; attempt++ {
		plaintext, openErr := c.aead.Open(nil, iv, sealed, nil)
		if openErr == nil {
			return string(plaintext), nil
		}
		lastErr = openErr

		if attempt < maxDecryptAttempts {
			time.Sleep(retryBackoffStep * time.Duration(attempt))
		}
	}

	return "", fmt.Errorf("%w after %d attempts: %v", ErrDecryptionFailed, maxDecryptAttempts, lastErr)
}

func (c *Cipher) decodeToken(token string, encoding Encoding) (iv, tag, ciphertext []byte, err error) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 || parts[2] == "" {
		return nil, nil, nil, ErrMalformedToken
	}

	iv, err = hex.DecodeString(parts[0])
	if err != nil || len(iv) != ivLength {
		return nil, nil, nil, ErrMalformedToken
	}

	tag, err = hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagLength {
		return nil, nil, nil, ErrMalformedToken
	}

	ciphertext, err = decode(parts[2], encoding)
	if err != nil {
		return nil, nil, nil, ErrMalformedToken
	}

	return iv, tag, ciphertext, nil
}

// Destroy zeroes the derived key material. The cipher is unusable afterwards.
func (c *Cipher) Destroy() {
	for i := range c.key {
		c.key[i] = 0
	}
	c.key = nil
	c.aead = nil
}

func encode(data []byte, encoding Encoding) string {
	if encoding == Base64 {
		return base64.StdEncoding.EncodeToString(data)
	}
	return hex.EncodeToString(data)
}

func decode(data string, encoding Encoding) ([]byte, error) {
	if encoding == Base64 {
		return base64.StdEncoding.DecodeString(data)
	}
	return hex.DecodeString(data)
}
