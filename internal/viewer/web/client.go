package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/banshee-data/sonarscope/internal/config"
	"github.com/banshee-data/sonarscope/internal/httputil"
)

// Client talks to the API of a running scope.
type Client struct {
	base string
	http httputil.HTTPClient
}

// NewClient targets base, e.g. "http://localhost:8080". A nil client uses
// http.DefaultClient.
func NewClient(base string, c httputil.HTTPClient) *Client {
	if c == nil {
		c = httputil.NewStandardClient(nil)
	}
	return &Client{base: strings.TrimRight(base, "/"), http: c}
}

// PushConfig sends patch to POST /api/config and returns the config the
// scope will apply on its next tick.
func (c *Client) PushConfig(ctx context.Context, patch *config.ScopeConfig) (*config.ScopeConfig, error) {
	var out config.ScopeConfig
	if err := httputil.DoJSON(ctx, c.http, http.MethodPost, c.base+"/api/config", patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Config fetches the config of the current session.
func (c *Client) Config(ctx context.Context) (*config.ScopeConfig, error) {
	var out config.ScopeConfig
	if err := httputil.DoJSON(ctx, c.http, http.MethodGet, c.base+"/api/config", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats fetches tick and signal counters.
func (c *Client) Stats(ctx context.Context) (*StatsView, error) {
	var out StatsView
	if err := httputil.DoJSON(ctx, c.http, http.MethodGet, c.base+"/api/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
