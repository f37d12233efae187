package cryptox

import (
	"sync"

	"github.com/tech-arch1tect/treez/config"
	"github.com/tech-arch1tect/treez/services/logging"
	"go.uber.org/zap"
)

// Registry constructs and caches one Cipher per algorithm, all keyed off the
// deployment passphrase. It replaces per-algorithm package-level singletons
// so key material has an owner with a defined lifecycle.
type Registry struct {
	passphrase string
	salt       string
	defaultAlg string
	logger     *logging.Service

	mu      sync.Mutex
	ciphers map[string]*Cipher
}

func NewRegistry(cfg *config.Config, logger *logging.Service) *Registry {
	return &Registry{
		passphrase: cfg.Encryption.Passphrase,
		salt:       cfg.Encryption.Salt,
		defaultAlg: cfg.Encryption.Algorithm,
		logger:     logger,
		ciphers:    make(map[string]*Cipher),
	}
}

func (r *Registry) Get(algorithm string) (*Cipher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.ciphers[algorithm]; ok {
		return c, nil
	}

	c, err := NewCipher(r.passphrase, r.salt, algorithm)
	if err != nil {
		if r.logger != nil {
			r.logger.Error("failed to construct cipher",
				zap.String("algorithm", algorithm),
				zap.Error(err))
		}
		return nil, err
	}

	if r.logger != nil {
		r.logger.Info("cipher constructed", zap.String("algorithm", algorithm))
	}

	r.ciphers[algorithm] = c
	return c, nil
}

// Default returns the cipher for the configured default algorithm.
func (r *Registry) Default() (*Cipher, error) {
	return r.Get(r.defaultAlg)
}

// DestroyAll zeroes every cached cipher's key material.
func (r *Registry) DestroyAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, c := range r.ciphers {
		c.Destroy()
		delete(r.ciphers, name)
	}
}
