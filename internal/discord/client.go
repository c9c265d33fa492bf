// Package discord fetches the current quest list from the Discord API.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/livinlefevreloca/questwatch/internal/quest"
)

const (
	DefaultBaseURL   = "https://discord.com/api/v9"
	QuestsPath       = "/quests/@me"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) discord/1.0.9209 Chrome/134.0.6998.205 Electron/35.3.0 Safari/537.36"
	DefaultReferer   = "https://discord.com/discovery/quests"
	DefaultLocale    = "en-US"

	// Caps the body read so a misbehaving endpoint cannot exhaust memory
	maxResponseBytes = 16 << 20
)

// Fetch errors
var (
	ErrUnauthorized      = errors.New("discord: unauthorized")
	ErrUnreachable       = errors.New("discord: unreachable")
	ErrMalformedResponse = errors.New("discord: malformed response")
)

// HTTPClient allows injecting mock HTTP clients for testing
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the Discord API settings
type Config struct {
	BaseURL       string `toml:"base_url"`
	Authorization string `toml:"authorization"`
	// SuperProperties is the x-super-properties token (TOKEN_JWT)
	SuperProperties string `toml:"super_properties"`
	UserAgent       string `toml:"user_agent"`
	Locale          string `toml:"locale"`
}

// DefaultConfig returns the Discord desktop client defaults
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: DefaultUserAgent,
		Locale:    DefaultLocale,
	}
}

// Client retrieves quest records
type Client struct {
	config Config
	http   HTTPClient
	logger *slog.Logger
}

// NewClient creates a quest fetch client. A nil httpClient gets a default
// client with a 30s timeout.
func NewClient(config Config, httpClient HTTPClient, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.Locale == "" {
		config.Locale = DefaultLocale
	}
	return &Client{
		config: config,
		http:   httpClient,
		logger: logger,
	}
}

type questsResponse struct {
	Quests *[]quest.Quest `json:"quests"`
}

// FetchQuests returns the quests currently offered to the account. An empty
// list is only ever returned when Discord reports one.
func (c *Client) FetchQuests(ctx context.Context) ([]quest.Quest, error) {
	url := strings.TrimRight(c.config.BaseURL, "/") + QuestsPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("quests response",
		"status", resp.StatusCode,
		"duration", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrUnreachable, err)
	}

	var payload questsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if payload.Quests == nil {
		return nil, fmt.Errorf("%w: missing quests key", ErrMalformedResponse)
	}

	quests := *payload.Quests
	for i, q := range quests {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("%w: quest %d: %v", ErrMalformedResponse, i, err)
		}
	}

	c.logger.Info("fetched quests", "count", len(quests))
	return quests, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", c.config.Authorization)
	req.Header.Set("X-Super-Properties", c.config.SuperProperties)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", c.config.Locale)
	req.Header.Set("X-Discord-Locale", c.config.Locale)
	req.Header.Set("Referer", DefaultReferer)
	req.Header.Set("User-Agent", c.config.UserAgent)
}
