package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/tech-arch1tect/treez/config"
	"github.com/tech-arch1tect/treez/services/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
)

var (
	ErrHashingFailed = errors.New("failed to hash password")
	ErrMalformedHash = errors.New("malformed password hash")
)

const (
	saltLength    = 16
	argon2Version = 19
)

type Service struct {
	config *config.Config
	logger *logging.Service
}

func NewService(cfg *config.Config, logger *logging.Service) *Service {
	return &Service{
		config: cfg,
		logger: logger,
	}
}

func (s *Service) Validate(password string) error {
	if len(password) < s.config.Auth.MinLength {
		return fmt.Errorf("password must be at least %d characters", s.config.Auth.MinLength)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	var missing []string

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	if s.config.Auth.RequireUpper && !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if s.config.Auth.RequireLower && !hasLower {
		missing = append(missing, "one lowercase letter")
	}
	if s.config.Auth.RequireNumber && !hasNumber {
		missing = append(missing, "one number")
	}
	if s.config.Auth.RequireSpecial && !hasSpecial {
		missing = append(missing, "one special character")
	}

	if len(missing) > 0 {
		if s.logger != nil {
			s.logger.Warn("password validation failed: missing requirements",
				zap.Strings("missing_requirements", missing))
		}
		return fmt.Errorf("password must contain at least %s", strings.Join(missing, ", "))
	}

	return nil
}

// Hash derives an argon2id digest and encodes it as a PHC string:
// $argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<saltB64>$<hashB64>
func (s *Service) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrHashingFailed
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		if s.logger != nil {
			s.logger.Error("failed to generate password salt", zap.Error(err))
		}
		return "", ErrHashingFailed
	}

	cfg := s.config.Auth
	key := argon2.IDKey([]byte(plaintext), salt, cfg.Argon2Time, cfg.Argon2Memory, cfg.Argon2Threads, cfg.Argon2KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		cfg.Argon2Memory, cfg.Argon2Time, cfg.Argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plaintext matches the stored PHC hash. A mismatch
// returns (false, nil); only a structurally invalid stored hash is an error.
// The digest comparison is constant-time.
func (s *Service) Verify(stored, plaintext string) (bool, error) {
	memory, timeCost, threads, salt, key, err := decodePHC(stored)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("stored password hash is malformed", zap.Error(err))
		}
		return false, err
	}

	candidate := argon2.IDKey([]byte(plaintext), salt, timeCost, memory, threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(candidate, key) == 1, nil
}

func decodePHC(phc string) (memory, timeCost uint32, threads uint8, salt, key []byte, err error) {
	parts := strings.Split(phc, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return 0, 0, 0, nil, nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2Version {
		return 0, 0, 0, nil, nil, ErrMalformedHash
	}

	var m, t, p uint64
	for _, param := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(param, "=", 2)
		if len(kv) != 2 {
			return 0, 0, 0, nil, nil, ErrMalformedHash
		}
		val, parseErr := strconv.ParseUint(kv[1], 10, 32)
		if parseErr != nil {
			return 0, 0, 0, nil, nil, ErrMalformedHash
		}
		switch kv[0] {
		case "m":
			m = val
		case "t":
			t = val
		case "p":
			p = val
		default:
			return 0, 0, 0, nil, nil, ErrMalformedHash
		}
	}
	if m == 0 || t == 0 || p == 0 || p > 255 {
		return 0, 0, 0, nil, nil, ErrMalformedHash
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return 0, 0, 0, nil, nil, ErrMalformedHash
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return 0, 0, 0, nil, nil, ErrMalformedHash
	}

	return uint32(m), uint32(t), uint8(p), salt, key, nil
}
