// Package provider talks to the clip provider's HTTP API: temporary
// credential issuance, the trending feed, and per-creator search.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	logx "clipbot/pkg/logx"
)

const (
	defaultAuthURL     = "https://api.redgifs.com/v2/auth/temporary"
	defaultTrendingURL = "https://api.redgifs.com/v2/feeds/trending/popular"
	defaultCreatorURL  = "https://api.redgifs.com/v2/users/%s/search"

	referer = "https://www.redgifs.com/"
)

// ErrAuth marks a failed credential fetch. Callers treat it as retryable.
var ErrAuth = errors.New("credential fetch failed")

// Item is one candidate clip. Only the fields the engine inspects.
type Item struct {
	Creator string
	HDURL   string
}

type Config struct {
	AuthURL     string
	TrendingURL string
	// CreatorURL is a format string with one %s verb for the creator name.
	CreatorURL string
	Timeout    time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if strings.TrimSpace(cfg.AuthURL) == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if strings.TrimSpace(cfg.TrendingURL) == "" {
		cfg.TrendingURL = defaultTrendingURL
	}
	if strings.TrimSpace(cfg.CreatorURL) == "" {
		cfg.CreatorURL = defaultCreatorURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

// FetchCredential requests a fresh temporary token. Any failure is wrapped
// in ErrAuth so callers can back off and retry the whole cycle.
func (c *Client) FetchCredential(ctx context.Context) (string, error) {
	var body struct {
		Token string `json:"token"`
	}
	if err := c.getJSON(ctx, c.cfg.AuthURL, "", nil, &body); err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}
	if strings.TrimSpace(body.Token) == "" {
		return "", fmt.Errorf("%w: empty token in response", ErrAuth)
	}
	return body.Token, nil
}

// FetchTrending returns one page of the global trending feed.
func (c *Client) FetchTrending(ctx context.Context, token string, page, count int) ([]Item, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("count", strconv.Itoa(count))
	return c.fetchItems(ctx, c.cfg.TrendingURL, token, q)
}

// FetchByCreator returns the creator's clips in the given order ("new").
func (c *Client) FetchByCreator(ctx context.Context, token, name, order string, count int) ([]Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("creator name is empty")
	}
	q := url.Values{}
	q.Set("order", order)
	q.Set("count", strconv.Itoa(count))
	u := fmt.Sprintf(c.cfg.CreatorURL, url.PathEscape(name))
	return c.fetchItems(ctx, u, token, q)
}

func (c *Client) fetchItems(ctx context.Context, rawURL, token string, q url.Values) ([]Item, error) {
	var body struct {
		Gifs []struct {
			UserName string `json:"userName"`
			URLs     struct {
				HD string `json:"hd"`
			} `json:"urls"`
		} `json:"gifs"`
	}
	if err := c.getJSON(ctx, rawURL, token, q, &body); err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(body.Gifs))
	for _, g := range body.Gifs {
		items = append(items, Item{Creator: g.UserName, HDURL: g.URLs.HD})
	}
	return items, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL, token string, q url.Values, out any) error {
	u := rawURL
	if len(q) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", referer)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
