package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/treez/testutils"
)

func newTestService() *Service {
	return NewService(testutils.GetTestConfig(), nil)
}

func TestService_HashVerify_RoundTrip(t *testing.T) {
	service := newTestService()

	passwords := []string{"Secret123", "Another-Passw0rd!", "unicode-päss1A"}
	for _, p := range passwords {
		t.Run(p, func(t *testing.T) {
			hash, err := service.Hash(p)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

			ok, err := service.Verify(hash, p)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = service.Verify(hash, p+"x")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestService_Hash_UniqueSalt(t *testing.T) {
	service := newTestService()

	h1, err := service.Hash("Secret123")
	require.NoError(t, err)
	h2, err := service.Hash("Secret123")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestService_Hash_EmptyPassword(t *testing.T) {
	service := newTestService()

	_, err := service.Hash("")
	assert.ErrorIs(t, err, ErrHashingFailed)
}

func TestService_Verify_MalformedHash(t *testing.T) {
	service := newTestService()

	malformed := []string{
		"",
		"not-a-hash",
		"$argon2i$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=3,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=1$!!!$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=1$c2FsdA$",
	}

	for _, h := range malformed {
		ok, err := service.Verify(h, "Secret123")
		assert.ErrorIs(t, err, ErrMalformedHash, "hash: %q", h)
		assert.False(t, ok)
	}
}

func TestService_Validate(t *testing.T) {
	service := newTestService()

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "Password123", false},
		{"too short", "Pa1", true},
		{"no uppercase", "password123", true},
		{"no lowercase", "PASSWORD123", true},
		{"no number", "PasswordABC", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.Validate(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
