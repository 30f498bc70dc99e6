package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/punchline-labs/bridge/internal/fault"
)

// Identity is the authenticated user as the provider reports it.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
}

// Provider exposes the current identity and change notifications. A nil
// identity means signed out; the bridge treats that as a teardown signal.
type Provider interface {
	Current() *Identity
	Token() string
	OnChange(callback func(*Identity))
	Close() error
}

// Client exchanges a long-lived refresh token for short-lived access tokens
// at the identity endpoint. The identity may be unavailable at startup, so
// Start retries on a bounded schedule before giving up.
type Client struct {
	authURL      string
	refreshToken string
	httpClient   *http.Client

	mu             sync.Mutex
	identity       *Identity
	token          string
	listeners      []func(*Identity)
	tokenListeners []func(string)
	done           chan struct{}
	closeOnce      sync.Once
}

const (
	startAttempts = 10
	startInterval = time.Second
)

func NewClient(authURL, refreshToken string) *Client {
	return &Client{
		authURL:      authURL,
		refreshToken: refreshToken,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		done:         make(chan struct{}),
	}
}

// Start performs the initial token exchange, retrying while the identity
// endpoint is unavailable, then keeps the token fresh in the background.
func (c *Client) Start(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < startAttempts; attempt++ {
		expiresIn, err := c.refresh(ctx)
		if err == nil {
			go c.refreshLoop(expiresIn)
			return nil
		}
		lastErr = err
		log.Printf("[Auth] Sign-in attempt %d failed: %v", attempt+1, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return fault.New(fault.AuthenticationRequired, "auth client closed")
		case <-time.After(startInterval):
		}
	}
	return fault.Wrap(fault.AuthenticationRequired, lastErr)
}

func (c *Client) refresh(ctx context.Context) (time.Duration, error) {
	body, _ := json.Marshal(map[string]string{"refreshToken": c.refreshToken})

	req, err := http.NewRequestWithContext(ctx, "POST", c.authURL+"/token", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fault.Wrap(fault.ConnectionFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode >= 400 {
		return 0, fault.Errorf(fault.AuthenticationRequired, "token exchange failed (%d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		UID          string `json:"uid"`
		Email        string `json:"email"`
		IDToken      string `json:"idToken"`
		ExpiresInSec int    `json:"expiresInSec"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, err
	}
	if result.UID == "" || result.IDToken == "" {
		return 0, fmt.Errorf("malformed token response")
	}

	expiresIn := time.Duration(result.ExpiresInSec) * time.Second
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}

	c.setIdentity(&Identity{UID: result.UID, Email: result.Email}, result.IDToken)
	return expiresIn, nil
}

// refreshLoop renews the token at 80% of its lifetime. A failed renewal
// signs the user out; listeners are notified once.
func (c *Client) refreshLoop(expiresIn time.Duration) {
	for {
		select {
		case <-c.done:
			return
		case <-time.After(expiresIn * 4 / 5):
			next, err := c.refresh(context.Background())
			if err != nil {
				log.Printf("[Auth] Token refresh failed, signing out: %v", err)
				c.SignOut()
				return
			}
			expiresIn = next
		}
	}
}

// SignOut clears the identity and notifies listeners.
func (c *Client) SignOut() {
	c.setIdentity(nil, "")
}

func (c *Client) setIdentity(id *Identity, token string) {
	c.mu.Lock()
	changed := !sameIdentity(c.identity, id)
	tokenChanged := c.token != token
	c.identity = id
	c.token = token
	listeners := append([]func(*Identity){}, c.listeners...)
	tokenListeners := append([]func(string){}, c.tokenListeners...)
	c.mu.Unlock()

	if tokenChanged {
		for _, fn := range tokenListeners {
			fn(token)
		}
	}
	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(id)
	}
}

func sameIdentity(a, b *Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.UID == b.UID
}

func (c *Client) Current() *Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return nil
	}
	id := *c.identity
	return &id
}

func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) OnChange(callback func(*Identity)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, callback)
}

// OnToken fires on every successful token refresh so API clients can swap
// their bearer tokens without re-wiring.
func (c *Client) OnToken(callback func(string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokenListeners = append(c.tokenListeners, callback)
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}
