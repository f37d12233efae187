package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/treez/testutils"
)

const (
	testPassphrase = "a-strong-passphrase"
	testSalt       = "treez-salt"
)

var allAlgorithms = []string{
	AES128GCM, AES192GCM, AES256GCM,
	AES128CCM, AES192CCM, AES256CCM,
	ChaCha20Poly1305,
}

func TestNewCipher(t *testing.T) {
	t.Run("all supported algorithms", func(t *testing.T) {
		for _, alg := range allAlgorithms {
			c, err := NewCipher(testPassphrase, testSalt, alg)
			require.NoError(t, err, alg)
			assert.Equal(t, alg, c.Algorithm())
		}
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		_, err := NewCipher(testPassphrase, testSalt, "aes-256-cbc")
		assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	})

	t.Run("short passphrase", func(t *testing.T) {
		_, err := NewCipher("short", testSalt, AES256GCM)
		assert.Error(t, err)
	})
}

func TestCipher_RoundTrip(t *testing.T) {
	for _, alg := range allAlgorithms {
		t.Run(alg, func(t *testing.T) {
			c, err := NewCipher(testPassphrase, testSalt, alg)
			require.NoError(t, err)

			for _, enc := range []Encoding{Hex, Base64} {
				token, err := c.Encrypt("sensitive profile data", enc)
				require.NoError(t, err)
				assert.Len(t, strings.Split(token, ":"), 3)

				plaintext, err := c.Decrypt(token, enc)
				require.NoError(t, err)
				assert.Equal(t, "sensitive profile data", plaintext)
			}
		})
	}
}

func TestCipher_Encrypt_EmptyPayload(t *testing.T) {
	c, err := NewCipher(testPassphrase, testSalt, AES256GCM)
	require.NoError(t, err)

	_, err = c.Encrypt("", Hex)
	assert.ErrorIs(t, err, ErrEmptyPayload)
}

func TestCipher_Encrypt_UniqueIV(t *testing.T) {
	c, err := NewCipher(testPassphrase, testSalt, AES256GCM)
	require.NoError(t, err)

	t1, err := c.Encrypt("same message", Hex)
	require.NoError(t, err)
	t2, err := c.Encrypt("same message", Hex)
	require.NoError(t, err)

	assert.NotEqual(t, t1, t2)
}

func TestCipher_Decrypt_TamperedTag(t *testing.T) {
	c, err := NewCipher(testPassphrase, testSalt, AES256GCM)
	require.NoError(t, err)

	token, err := c.Encrypt("message", Hex)
	require.NoError(t, err)

	tampered := testutils.FlipHexNibble(t, token, 1)
	_, err = c.Decrypt(tampered, Hex)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestCipher_Decrypt_TamperedCiphertext(t *testing.T) {
	c, err := NewCipher(testPassphrase, testSalt, ChaCha20Poly1305)
	require.NoError(t, err)

	token, err := c.Encrypt("message", Hex)
	require.NoError(t, err)

	tampered := testutils.FlipHexNibble(t, token, 2)
	_, err = c.Decrypt(tampered, Hex)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestCipher_Decrypt_MalformedToken(t *testing.T) {
	c, err := NewCipher(testPassphrase, testSalt, AES256GCM)
	require.NoError(t, err)

	malformed := []string{
		"",
		"onlyonepart",
		"two:parts",
		"zz:aabb:ccdd",
		"0102:aabb:ccdd",
		"000000000000000000000000:shorttag:ccdd",
		"000000000000000000000000:00000000000000000000000000000000:",
		"000000000000000000000000:00000000000000000000000000000000:not-hex!",
	}

	for _, token := range malformed {
		_, err := c.Decrypt(token, Hex)
		assert.ErrorIs(t, err, ErrMalformedToken, "token: %q", token)
	}
}

func TestCipher_DistinctKeysPerAlgorithm(t *testing.T) {
	gcm, err := NewCipher(testPassphrase, testSalt, AES256GCM)
	require.NoError(t, err)
	chacha, err := NewCipher(testPassphrase, testSalt, ChaCha20Poly1305)
	require.NoError(t, err)

	token, err := gcm.Encrypt("message", Hex)
	require.NoError(t, err)

	_, err = chacha.Decrypt(token, Hex)
	assert.Error(t, err)
}

func TestCipher_Destroy(t *testing.T) {
	c, err := NewCipher(testPassphrase, testSalt, AES256GCM)
	require.NoError(t, err)

	c.Destroy()

	_, err = c.Encrypt("message", Hex)
	assert.ErrorIs(t, err, ErrCipherDestroyed)
	_, err = c.Decrypt("a:b:c", Hex)
	assert.ErrorIs(t, err, ErrCipherDestroyed)
}

func TestRegistry(t *testing.T) {
	cfg := testutils.GetTestConfig()
	registry := NewRegistry(cfg, nil)

	t.Run("caches instances", func(t *testing.T) {
		c1, err := registry.Get(AES256GCM)
		require.NoError(t, err)
		c2, err := registry.Get(AES256GCM)
		require.NoError(t, err)
		assert.Same(t, c1, c2)
	})

	t.Run("default algorithm", func(t *testing.T) {
		c, err := registry.Default()
		require.NoError(t, err)
		assert.Equal(t, cfg.Encryption.Algorithm, c.Algorithm())
	})

	t.Run("unknown algorithm", func(t *testing.T) {
		_, err := registry.Get("rot13")
		assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	})

	t.Run("destroy all", func(t *testing.T) {
		c, err := registry.Get(ChaCha20Poly1305)
		require.NoError(t, err)

		registry.DestroyAll()

		_, err = c.Encrypt("message", Hex)
		assert.ErrorIs(t, err, ErrCipherDestroyed)

		// a fresh instance is constructed after teardown
		c2, err := registry.Get(ChaCha20Poly1305)
		require.NoError(t, err)
		_, err = c2.Encrypt("message", Hex)
		assert.NoError(t, err)
	})
}
