package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/punchline-labs/bridge/internal/fault"
)

// Client calls the hosted agent service's request/response endpoints:
// chatWithAgent (one message in, one finalized response out) and
// getSignedUrl (short-lived credential for the duplex endpoint).
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// ChatReply is the finalized agent response for one user message.
type ChatReply struct {
	ConversationID string `json:"conversationId"`
	FinalResponse  string `json:"finalResponse"`
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// SetToken swaps the bearer token after an auth refresh.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ChatWithAgent sends one user message and returns the agent's finalized
// response. conversationID may be empty for the first turn; the reply
// carries the id to reuse on subsequent sends. Tool calls, if any, were
// already executed server-side by the time the reply arrives.
func (c *Client) ChatWithAgent(ctx context.Context, message, conversationID string) (*ChatReply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fault.New(fault.InvalidArgument, "message must not be empty")
	}

	payload := map[string]interface{}{
		"message": message,
	}
	if conversationID != "" {
		payload["conversationId"] = conversationID
	} else {
		payload["conversationId"] = nil
	}

	var reply ChatReply
	if err := c.call(ctx, "/chatWithAgent", payload, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// GetSignedURL fetches a fresh signed URL for the duplex endpoint. Identity
// is implicit in the bearer token. The URL expires, so long-lived duplex
// sessions refresh it well before the validity window elapses.
func (c *Client) GetSignedURL(ctx context.Context) (string, error) {
	var resp struct {
		SignedURL string `json:"signedUrl"`
	}
	if err := c.call(ctx, "/getSignedUrl", map[string]interface{}{}, &resp); err != nil {
		return "", err
	}
	return resp.SignedURL, nil
}

func (c *Client) call(ctx context.Context, path string, payload, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fault.Wrap(fault.ConnectionFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return decodeRemoteError(body)
	}

	return json.Unmarshal(body, out)
}

// decodeRemoteError maps the service's {error: {code, message}} envelope
// onto the local taxonomy.
func decodeRemoteError(body []byte) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Code != "" {
		return fault.FromRemote(envelope.Error.Code, envelope.Error.Message)
	}
	return fault.Errorf(fault.Internal, "agent service error: %s", string(body))
}
