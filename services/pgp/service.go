// Package pgp implements the end-to-end session encryption layer. The server
// holds one rotating OpenPGP keypair; clients register ephemeral public keys
// per key-exchange session and receive profile payloads encrypted to them.
package pgp

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/tech-arch1tect/treez/config"
	"github.com/tech-arch1tect/treez/services/logging"
	"go.uber.org/zap"
)

var (
	ErrNotInitialized       = errors.New("PGP service not initialized")
	ErrNoClientKey          = errors.New("no client public key registered for session")
	ErrInvalidClientKey     = errors.New("invalid PGP public key")
	ErrInitializationFailed = errors.New("PGP initialization failed")
)

type keyPair struct {
	publicKey  string
	privateKey string
	createdAt  time.Time
}

type Service struct {
	config *config.Config
	logger *logging.Service

	// current is swapped atomically so readers observe either the old or
	// the new keypair during rotation, never a partial one.
	current atomic.Pointer[keyPair]
	initMu  sync.Mutex

	clientKeys *gocache.Cache
}

func NewService(cfg *config.Config, logger *logging.Service) *Service {
	return &Service{
		config:     cfg,
		logger:     logger,
		clientKeys: gocache.New(cfg.JWT.RefreshExpiry, time.Hour),
	}
}

// Initialize generates the server keypair if absent or past the rotation
// interval. Each candidate pair must round-trip a self-test message before
// being adopted; generation is retried with increasing backoff.
func (s *Service) Initialize() (string, error) {
	if pair := s.current.Load(); pair != nil && !s.rotationDue(pair) {
		return pair.publicKey, nil
	}

	s.initMu.Lock()
	defer s.initMu.Unlock()

	// another caller may have rotated while we waited on the lock
	if pair := s.current.Load(); pair != nil && !s.rotationDue(pair) {
		return pair.publicKey, nil
	}

	var lastErr error
	for attempt := 1; attempt <= s.config.PGP.MaxInitAttempts; attempt++ {
		pair, err := s.generateVerifiedKeyPair()
		if err == nil {
			s.current.Store(pair)
			if s.logger != nil {
				s.logger.Info("server PGP keypair adopted",
					zap.Int("attempt", attempt),
					zap.Time("created_at", pair.createdAt))
			}
			return pair.publicKey, nil
		}

		lastErr = err
		if s.logger != nil {
			s.logger.Warn("server PGP keypair generation failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
		}

		if attempt < s.config.PGP.MaxInitAttempts {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}

	return "", fmt.Errorf("%w after %d attempts: %v", ErrInitializationFailed, s.config.PGP.MaxInitAttempts, lastErr)
}

func (s *Service) rotationDue(pair *keyPair) bool {
	return time.Since(pair.createdAt) > s.config.PGP.RotationInterval
}

func (s *Service) generateVerifiedKeyPair() (*keyPair, error) {
	serverID := fmt.Sprintf("server-%s", uuid.New().String())
	key, err := crypto.GenerateKey(serverID, serverID+"@treez.local", "x25519", 0)
	if err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}
	defer key.ClearPrivateParams()

	privateKey, err := key.Armor()
	if err != nil {
		return nil, fmt.Errorf("failed to armor private key: %w", err)
	}
	publicKey, err := key.GetArmoredPublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to armor public key: %w", err)
	}

	// Round-trip a synthetic message before adopting the pair.
	testMessage := fmt.Sprintf("self-test-%d", time.Now().UnixNano())
	encrypted, err := encryptArmored([]byte(testMessage), publicKey)
	if err != nil {
		return nil, fmt.Errorf("self-test encryption failed: %w", err)
	}
	decrypted, err := decryptArmored(encrypted, privateKey)
	if err != nil {
		return nil, fmt.Errorf("self-test decryption failed: %w", err)
	}
	if string(decrypted) != testMessage {
		return nil, errors.New("self-test round-trip mismatch")
	}

	return &keyPair{
		publicKey:  publicKey,
		privateKey: privateKey,
		createdAt:  time.Now(),
	}, nil
}

// GetPublicKey lazily initializes the server keypair.
func (s *Service) GetPublicKey() (string, error) {
	return s.Initialize()
}

// SetClientPublicKey validates and registers an ephemeral client key for a
// key-exchange session. Private keys are rejected.
func (s *Service) SetClientPublicKey(sessionID, armoredKey string) error {
	if sessionID == "" {
		return errors.New("session id is required")
	}

	key, err := crypto.NewKeyFromArmored(armoredKey)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("rejected unparseable client key", zap.Error(err))
		}
		return ErrInvalidClientKey
	}
	if key.IsPrivate() {
		if s.logger != nil {
			s.logger.Warn("rejected private key offered as client public key")
		}
		return ErrInvalidClientKey
	}

	s.clientKeys.Set(sessionID, armoredKey, gocache.DefaultExpiration)
	return nil
}

// EncryptProfileData serializes data and encrypts it to the session's client
// public key.
func (s *Service) EncryptProfileData(sessionID string, data any) (string, error) {
	if s.current.Load() == nil {
		return "", ErrNotInitialized
	}

	clientKey, ok := s.clientKeys.Get(sessionID)
	if !ok {
		return "", ErrNoClientKey
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to serialize profile data: %w", err)
	}

	return encryptArmored(payload, clientKey.(string))
}

// DecryptProfileData decrypts a payload addressed to the server keypair and
// deserializes it into v.
func (s *Service) DecryptProfileData(armoredMessage string, v any) error {
	pair := s.current.Load()
	if pair == nil {
		return ErrNotInitialized
	}

	plaintext, err := decryptArmored(armoredMessage, pair.privateKey)
	if err != nil {
		return err
	}

	return json.Unmarshal(plaintext, v)
}

// DropClientKey discards a session's registered client key.
func (s *Service) DropClientKey(sessionID string) {
	s.clientKeys.Delete(sessionID)
}

func encryptArmored(data []byte, armoredPublicKey string) (string, error) {
	key, err := crypto.NewKeyFromArmored(armoredPublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to parse public key: %w", err)
	}
	ring, err := crypto.NewKeyRing(key)
	if err != nil {
		return "", fmt.Errorf("failed to build keyring: %w", err)
	}

	message, err := ring.Encrypt(crypto.NewPlainMessage(data), nil)
	if err != nil {
		return "", fmt.Errorf("encryption failed: %w", err)
	}

	return message.GetArmored()
}

func decryptArmored(armoredMessage, armoredPrivateKey string) ([]byte, error) {
	key, err := crypto.NewKeyFromArmored(armoredPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	ring, err := crypto.NewKeyRing(key)
	if err != nil {
		return nil, fmt.Errorf("failed to build keyring: %w", err)
	}

	message, err := crypto.NewPGPMessageFromArmored(armoredMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	plain, err := ring.Decrypt(message, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	return plain.GetBinary(), nil
}
