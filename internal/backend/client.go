package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	logx "leadpulse/pkg/logx"
)

// HTTPClient talks to the hosted dashboard API over JSON.
type HTTPClient struct {
	base  *url.URL
	token string
	http  *http.Client
	log   logx.Logger
}

type HTTPConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

func NewHTTPClient(cfg HTTPConfig, log logx.Logger) (*HTTPClient, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("backend base_url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("backend base_url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &HTTPClient{
		base:  u,
		token: strings.TrimSpace(cfg.Token),
		http:  &http.Client{Timeout: timeout},
		log:   log,
	}, nil
}

func (c *HTTPClient) ScheduleConfig(ctx context.Context, p Principal) (ScheduleCfg, error) {
	var out ScheduleCfg
	err := c.getJSON(ctx, "/api/reminders/schedule", p, &out)
	return out, err
}

func (c *HTTPClient) AssignedItems(ctx context.Context, p Principal) ([]AssignedItem, error) {
	var out struct {
		Items []AssignedItem `json:"items"`
	}
	if err := c.getJSON(ctx, "/api/leads/assigned", p, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *HTTPClient) FollowUps(ctx context.Context, p Principal) (FollowUpBatch, error) {
	var out FollowUpBatch
	err := c.getJSON(ctx, "/api/followups/due", p, &out)
	return out, err
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, p Principal, out any) error {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	q := u.Query()
	q.Set("owner", p.ID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend %s: unexpected status %d", path, resp.StatusCode)
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("backend %s: decode: %w", path, err)
	}
	return nil
}
