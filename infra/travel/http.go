// Package travel provides travel providers backed by external services.
// Importing it registers the "http" provider type.
package travel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kilianp07/crewsched/auth"
	"github.com/kilianp07/crewsched/core/factory"
	"github.com/kilianp07/crewsched/core/model"
	coretravel "github.com/kilianp07/crewsched/core/travel"
)

// HTTPConfig configures an HTTPProvider.
type HTTPConfig struct {
	// URL is queried as GET URL?origin=...&destination=...
	URL            string    `json:"url"`
	TimeoutSeconds int       `json:"timeout_seconds"`
	Auth           auth.Conf `json:"auth"`
}

// HTTPProvider asks a routing service for point-to-point durations. The
// service answers {"minutes": <float>} or {"seconds": <float>}; 404 means
// no route.
type HTTPProvider struct {
	url    *url.URL
	client *http.Client
	creds  *auth.ClientCred
}

// NewHTTPProvider validates cfg and builds the provider.
func NewHTTPProvider(cfg HTTPConfig) (*HTTPProvider, error) {
	if cfg.URL == "" {
		return nil, errors.New("travel: http provider requires url")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("travel: url: %w", err)
	}
	timeout := 10 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	p := &HTTPProvider{url: u, client: &http.Client{Timeout: timeout}}
	if cfg.Auth.Enabled() {
		p.creds = auth.NewClientCred(cfg.Auth)
	}
	return p, nil
}

type durationResponse struct {
	Minutes *float64 `json:"minutes"`
	Seconds *float64 `json:"seconds"`
}

// Lookup implements travel.Provider.
func (p *HTTPProvider) Lookup(ctx context.Context, origin, destination model.Address) (float64, error) {
	resp, err := p.do(ctx, origin, destination)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode == http.StatusUnauthorized && p.creds != nil {
		resp.Body.Close()
		if _, err := p.creds.ForceRefresh(ctx); err != nil {
			return 0, err
		}
		if resp, err = p.do(ctx, origin, destination); err != nil {
			return 0, err
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, coretravel.ErrNoRoute
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("travel: upstream status %d: %s", resp.StatusCode, body)
	}
	var out durationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("travel: decode response: %w", err)
	}
	switch {
	case out.Minutes != nil:
		return *out.Minutes, nil
	case out.Seconds != nil:
		return *out.Seconds / 60, nil
	default:
		return 0, coretravel.ErrNoRoute
	}
}

func (p *HTTPProvider) do(ctx context.Context, origin, destination model.Address) (*http.Response, error) {
	u := *p.url
	q := u.Query()
	q.Set("origin", string(origin))
	q.Set("destination", string(destination))
	u.RawQuery = q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if p.creds != nil {
		if err := p.creds.SetAuthHeader(req); err != nil {
			return nil, err
		}
	}
	return p.client.Do(req)
}

func init() {
	_ = coretravel.RegisterProvider("http", func(conf map[string]any) (coretravel.Provider, error) {
		var c HTTPConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewHTTPProvider(c)
	})
}
