// Package client is the Go consumer of the treez API. It owns the
// session lifecycle: it generates an ephemeral keypair, exchanges keys
// with the server, authenticates, and decrypts protected payloads.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
)

type State int

const (
	// Anonymous means no keys have been exchanged yet.
	Anonymous State = iota
	// KeysExchanged means the server holds this client's public key.
	KeysExchanged
	// Authenticated means the cookie jar carries a live session.
	Authenticated
)

func (s State) String() string {
	switch s {
	case KeysExchanged:
		return "keys_exchanged"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client

	// exchangeMu serialises the key exchange so concurrent callers
	// wait for one in-flight exchange instead of racing their own
	exchangeMu sync.Mutex

	mu    sync.Mutex
	state State
	key   *crypto.Key // ephemeral, never leaves the process
}

func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
	}, nil
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// EnsureKeys performs the key exchange once. Concurrent callers block
// until the first exchange finishes rather than racing their own.
func (c *Client) EnsureKeys(ctx context.Context) error {
	c.exchangeMu.Lock()
	defer c.exchangeMu.Unlock()

	if c.State() >= KeysExchanged {
		return nil
	}

	key, err := crypto.GenerateKey("treez-client", "client@treez.local", "x25519", 0)
	if err != nil {
		return fmt.Errorf("failed to generate client keypair: %w", err)
	}

	publicKey, err := key.GetArmoredPublicKey()
	if err != nil {
		return fmt.Errorf("failed to armor client public key: %w", err)
	}

	if err := c.do(ctx, http.MethodPost, "/api/keys/client", map[string]string{
		"publicKey": publicKey,
	}, nil); err != nil {
		return err
	}

	c.mu.Lock()
	c.key = key
	c.state = KeysExchanged
	c.mu.Unlock()

	return nil
}

// ServerKey fetches the server's current public key.
func (c *Client) ServerKey(ctx context.Context) (string, error) {
	var body struct {
		PublicKey string `json:"publicKey"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/keys/server", nil, &body); err != nil {
		return "", err
	}
	return body.PublicKey, nil
}

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (c *Client) Register(ctx context.Context, name, email, password string) (*User, error) {
	var body struct {
		User User `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/register", map[string]string{
		"name":            name,
		"email":           email,
		"password":        password,
		"confirmPassword": password,
	}, &body)
	if err != nil {
		return nil, err
	}
	return &body.User, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	if err := c.EnsureKeys(ctx); err != nil {
		return nil, err
	}

	var body struct {
		User User `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &body)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.state = Authenticated
	c.mu.Unlock()

	return &body.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)

	// the session and its key slot are gone either way
	c.reset()

	return err
}

func (c *Client) LogoutAll(ctx context.Context) (int, error) {
	var body struct {
		SessionsEnded int `json:"sessions_ended"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/logout-all", nil, &body)

	c.reset()

	return body.SessionsEnded, err
}

// CheckSession tries to restore an authenticated session from a
// previously negotiated keypair by fetching and decrypting the
// profile. Any transport or decryption failure discards the keypair
// and drops back to anonymous; a fresh key exchange is needed before
// the next attempt.
func (c *Client) CheckSession(ctx context.Context) bool {
	c.mu.Lock()
	key := c.key
	c.mu.Unlock()

	if key == nil {
		return false
	}

	var body struct {
		Data string `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/profile", nil, &body); err != nil {
		c.reset()
		return false
	}
	if _, err := c.decryptProfile(body.Data); err != nil {
		c.reset()
		return false
	}

	c.mu.Lock()
	c.state = Authenticated
	c.mu.Unlock()
	return true
}

func (c *Client) reset() {
	c.mu.Lock()
	c.state = Anonymous
	c.key = nil
	c.mu.Unlock()
}

// RefreshSession rotates the refresh token explicitly.
func (c *Client) RefreshSession(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/refresh", nil, nil)
}

func (c *Client) ChangePassword(ctx context.Context, current, newPassword string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/change-password", map[string]string{
		"currentPassword":    current,
		"newPassword":        newPassword,
		"confirmNewPassword": newPassword,
	}, nil)
}

type Session struct {
	ID        string    `json:"id"`
	LastUsed  time.Time `json:"last_used"`
	CreatedAt time.Time `json:"created_at"`
	Current   bool      `json:"current"`
}

func (c *Client) ActiveSessions(ctx context.Context) ([]Session, error) {
	var body struct {
		Sessions []Session `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/sessions", nil, &body); err != nil {
		return nil, err
	}
	return body.Sessions, nil
}

// CleanupTokens removes this user's refresh tokens unused for more
// than unusedDays days (0 uses the server default).
func (c *Client) CleanupTokens(ctx context.Context, unusedDays int) (int, error) {
	var body struct {
		Removed int `json:"removed"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/cleanup-tokens", map[string]int{
		"unusedDays": unusedDays,
	}, &body)
	return body.Removed, err
}

// Profile is the decrypted profile payload. ID stays encrypted and is
// echoed back verbatim when updating.
type Profile struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone,omitempty"`
	Location *string `json:"location,omitempty"`
	Website  *string `json:"website,omitempty"`
	Bio      *string `json:"bio,omitempty"`
	Role     string  `json:"role"`
}

type ProfileUpdate struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Location *string `json:"location,omitempty"`
	Website  *string `json:"website,omitempty"`
	Bio      *string `json:"bio,omitempty"`
}

func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	if err := c.EnsureKeys(ctx); err != nil {
		return nil, err
	}

	var body struct {
		Data string `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/profile", nil, &body); err != nil {
		return nil, err
	}

	return c.decryptProfile(body.Data)
}

func (c *Client) UpdateProfile(ctx context.Context, encryptedID string, update ProfileUpdate) (*Profile, error) {
	if err := c.EnsureKeys(ctx); err != nil {
		return nil, err
	}

	payload := map[string]any{"id": encryptedID}
	raw, err := json.Marshal(update)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}

	var body struct {
		Data string `json:"data"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/profile", payload, &body); err != nil {
		return nil, err
	}

	return c.decryptProfile(body.Data)
}

func (c *Client) decryptProfile(armored string) (*Profile, error) {
	c.mu.Lock()
	key := c.key
	c.mu.Unlock()

	if key == nil {
		return nil, fmt.Errorf("no session key available")
	}

	ring, err := crypto.NewKeyRing(key)
	if err != nil {
		return nil, fmt.Errorf("failed to build keyring: %w", err)
	}

	msg, err := crypto.NewPGPMessageFromArmored(armored)
	if err != nil {
		return nil, fmt.Errorf("failed to parse encrypted payload: %w", err)
	}

	plain, err := ring.Decrypt(msg, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt payload: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal(plain.GetBinary(), &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &profile, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(raw, &envelope); err == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}

		if resp.StatusCode == http.StatusUnauthorized {
			c.mu.Lock()
			if c.state == Authenticated {
				c.state = KeysExchanged
			}
			c.mu.Unlock()
		}

		return apiErr
	}

	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}
