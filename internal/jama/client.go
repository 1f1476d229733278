// Package jama talks to the Jama/Contour REST API and maps test runs into
// testrun.Record values.
package jama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

var (
	ErrUnauthorized = errors.New("jama authentication failed")
	ErrNotFound     = errors.New("not found in jama")
	ErrRateLimited  = errors.New("jama rate limit exceeded")
)

// Config holds the connection settings of a Jama instance.
type Config struct {
	BaseURL string

	// Basic auth; Token takes precedence when set.
	Username string
	Password string
	Token    string

	RequestDelay time.Duration
	RetryMax     int
	PageSize     int
	Concurrency  int
	Timeout      time.Duration
}

// Client is safe for concurrent use.
type Client struct {
	cfg  Config
	http *retryablehttp.Client

	throttleMu  sync.Mutex
	lastRequest time.Time

	metaMu sync.Mutex
	meta   *metadata

	usersMu sync.RWMutex
	users   map[int]string
	lookups singleflight.Group
}

func New(cfg Config) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.Logger = leveledLogger{}
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		cfg:   cfg,
		http:  rc,
		users: make(map[int]string),
	}
}

func (c *Client) throttle() {
	if c.cfg.RequestDelay <= 0 {
		return
	}
	c.throttleMu.Lock()
	defer c.throttleMu.Unlock()

	if elapsed := time.Since(c.lastRequest); elapsed < c.cfg.RequestDelay {
		wait := c.cfg.RequestDelay - elapsed
		log.Debug().Dur("wait", wait).Msg("Throttling Jama request")
		time.Sleep(wait)
	}
	c.lastRequest = time.Now()
}

func (c *Client) authenticate(req *retryablehttp.Request) {
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		return
	}
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
}

// get decodes one response of path into out.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	c.throttle()

	u := c.cfg.BaseURL + "/rest/latest" + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	log.Debug().Str("url", u).Msg("Jama request")

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to construct request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.authenticate(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w (%d) on %s", ErrUnauthorized, resp.StatusCode, path)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		case http.StatusTooManyRequests:
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				return fmt.Errorf("%w, retry after %s seconds", ErrRateLimited, ra)
			}
			return ErrRateLimited
		default:
			return fmt.Errorf("jama returned status %d for %s: %s", resp.StatusCode, path, strings.TrimSpace(string(body)))
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// getAll walks every page of a list endpoint.
func getAll[T any](ctx context.Context, c *Client, path string, params url.Values) ([]T, error) {
	if params == nil {
		params = url.Values{}
	}
	var all []T
	start := 0
	for {
		params.Set("startAt", strconv.Itoa(start))
		params.Set("maxResults", strconv.Itoa(c.cfg.PageSize))

		var page envelope[[]T]
		if err := c.get(ctx, path, params, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Data...)

		info := page.Meta.PageInfo
		if info == nil || info.ResultCount == 0 || info.StartIndex+info.ResultCount >= info.TotalResults {
			return all, nil
		}
		start = info.StartIndex + info.ResultCount
	}
}

// leveledLogger routes retryablehttp logs through zerolog.
type leveledLogger struct{}

func (leveledLogger) Error(msg string, kv ...interface{}) {
	log.Error().Fields(kv).Msg(msg)
}

func (leveledLogger) Info(msg string, kv ...interface{}) {
	log.Debug().Fields(kv).Msg(msg)
}

func (leveledLogger) Debug(msg string, kv ...interface{}) {
	log.Trace().Fields(kv).Msg(msg)
}

func (leveledLogger) Warn(msg string, kv ...interface{}) {
	log.Warn().Fields(kv).Msg(msg)
}

var _ retryablehttp.LeveledLogger = leveledLogger{}
