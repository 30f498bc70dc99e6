package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

type Config struct {
	UserID       string `json:"userId"`
	RefreshToken string `json:"refreshToken"`
	AgentID      string `json:"agentId"`

	// Service endpoints
	FunctionsURL string `json:"functionsUrl"`         // callable agent endpoints (chatWithAgent, getSignedUrl)
	StoreURL     string `json:"storeUrl"`             // document store REST endpoint
	AuthURL      string `json:"authUrl"`              // identity provider endpoint
	AgentWSURL   string `json:"agentWsUrl,omitempty"` // duplex endpoint; a signed URL takes precedence when available

	// Transport selection: "chat" (request/response) or "voice" (duplex)
	Transport string `json:"transport,omitempty"`

	// Session initiation overrides for the duplex transport
	SystemPrompt string `json:"systemPrompt,omitempty"`
	Language     string `json:"language,omitempty"`

	// Timers (seconds); zero means the default below
	ConnectTimeoutSec   int `json:"connectTimeoutSec,omitempty"`
	ResponseTimeoutSec  int `json:"responseTimeoutSec,omitempty"`
	TurnIdleTimeoutSec  int `json:"turnIdleTimeoutSec,omitempty"`
	SignedURLRefreshSec int `json:"signedUrlRefreshSec,omitempty"`
}

const (
	DefaultConnectTimeout   = 10 * time.Second
	DefaultResponseTimeout  = 15 * time.Second
	DefaultTurnIdleTimeout  = 3 * time.Second
	DefaultSignedURLRefresh = 4 * time.Minute
)

func ConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "punchline")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".punchline")
	}
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func Load() (*Config, error) {
	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Transport == "" {
		cfg.Transport = "chat"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}

	return &cfg, nil
}

func Save(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(ConfigPath(), data, 0600)
}

func (c *Config) ConnectTimeout() time.Duration {
	return secondsOr(c.ConnectTimeoutSec, DefaultConnectTimeout)
}

func (c *Config) ResponseTimeout() time.Duration {
	return secondsOr(c.ResponseTimeoutSec, DefaultResponseTimeout)
}

func (c *Config) TurnIdleTimeout() time.Duration {
	return secondsOr(c.TurnIdleTimeoutSec, DefaultTurnIdleTimeout)
}

func (c *Config) SignedURLRefresh() time.Duration {
	return secondsOr(c.SignedURLRefreshSec, DefaultSignedURLRefresh)
}

func secondsOr(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}
