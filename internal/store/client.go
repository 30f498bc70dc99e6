package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/punchline-labs/bridge/internal/fault"
)

// Joke is the persisted document contract. The bridge only ever creates
// these; the library-management surface updates and deletes by id.
type Joke struct {
	ID        string    `json:"id,omitempty"`
	Owner     string    `json:"owner"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Client talks to the hosted document store over REST.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetToken swaps the bearer token after an auth refresh.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) request(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fault.Wrap(fault.ConnectionFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, statusError(resp.StatusCode, respBody)
	}

	return respBody, nil
}

func statusError(status int, body []byte) error {
	msg := fmt.Sprintf("store error %d: %s", status, string(body))
	switch status {
	case http.StatusUnauthorized:
		return fault.New(fault.AuthenticationRequired, msg)
	case http.StatusForbidden:
		return fault.New(fault.PermissionDenied, msg)
	case http.StatusBadRequest:
		return fault.New(fault.InvalidArgument, msg)
	default:
		return fault.New(fault.Internal, msg)
	}
}

// CreateJoke appends one document to the jokes collection. The create is
// atomic on the store side; a failure persists nothing.
func (c *Client) CreateJoke(ctx context.Context, joke Joke) (string, error) {
	data, err := c.request(ctx, "POST", "/v1/jokes", joke)
	if err != nil {
		return "", err
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", err
	}

	return resp.ID, nil
}

// UpdateJoke rewrites content and tags of an existing document.
func (c *Client) UpdateJoke(ctx context.Context, id, content string, tags []string) error {
	body := map[string]interface{}{
		"content":   content,
		"tags":      tags,
		"updatedAt": time.Now().UTC(),
	}
	_, err := c.request(ctx, "PATCH", "/v1/jokes/"+url.PathEscape(id), body)
	return err
}

// DeleteJoke removes a document by id.
func (c *Client) DeleteJoke(ctx context.Context, id string) error {
	_, err := c.request(ctx, "DELETE", "/v1/jokes/"+url.PathEscape(id), nil)
	return err
}

// ListJokes returns the owner's jokes ordered by creation time descending.
func (c *Client) ListJokes(ctx context.Context, owner string) ([]Joke, error) {
	path := "/v1/jokes?owner=" + url.QueryEscape(owner) + "&orderBy=createdAt&dir=desc"
	data, err := c.request(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Jokes []Joke `json:"jokes"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}

	return resp.Jokes, nil
}

// WatchJokes polls the owner's jokes and invokes callback whenever the
// remote result set changes. The first successful poll always fires, even
// when the result set is empty, so watchers get an initial render. It is
// the poll-based stand-in for the store's push subscriptions and runs
// until ctx is done.
func (c *Client) WatchJokes(ctx context.Context, owner string, interval time.Duration, callback func([]Joke)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	first := true
	var lastSig string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jokes, err := c.ListJokes(ctx, owner)
			if err != nil {
				log.Printf("[Store] Watch poll failed: %v", err)
				continue
			}
			sig := watchSignature(jokes)
			if !first && sig == lastSig {
				continue
			}
			first = false
			lastSig = sig
			callback(jokes)
		}
	}
}

func watchSignature(jokes []Joke) string {
	var b bytes.Buffer
	for _, j := range jokes {
		fmt.Fprintf(&b, "%s@%d;", j.ID, j.UpdatedAt.UnixNano())
	}
	return b.String()
}
