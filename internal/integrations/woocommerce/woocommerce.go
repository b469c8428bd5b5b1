// internal/integrations/woocommerce/woocommerce.go
package woocommerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bartek5186/woo2mag/internal/integrations"
	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

const (
	apiPrefix = "/wp-json/wc/v3/"
	userAgent = "woo2mag/1.0"
	maxBody   = 32 << 20
)

var ErrNotFound = errors.New("woocommerce: not found")

type Config struct {
	BaseURL           string `json:"base_url"` // https://shop.example.com
	ConsumerKey       string `json:"consumer_key"`
	ConsumerSec       string `json:"consumer_secret"`
	QueryStringAuth   bool   `json:"query_string_auth"` // gdy serwer obcina nagłówek Authorization
	TimeoutSec        int    `json:"timeout_sec"`
	RequestsPerSecond int    `json:"requests_per_second"`
	MaxRetries        int    `json:"max_retries"`
	VariationPageSize int    `json:"variation_page_size"`
	MaxVariationPages int    `json:"max_variation_pages"`
	Fields            string `json:"fields"` // _fields dla listy produktów
}

type Client struct {
	log     zerolog.Logger
	cfg     Config
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	retrier *Retrier
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithRetry(rc RetryConfig) Option { return func(c *Client) { c.retrier = NewRetrier(rc) } }

func New(log zerolog.Logger, cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("nieprawidłowy base_url %q", cfg.BaseURL)
	}
	if cfg.ConsumerKey == "" || cfg.ConsumerSec == "" {
		return nil, errors.New("brak consumer_key / consumer_secret")
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = 30
	}
	if cfg.VariationPageSize <= 0 || cfg.VariationPageSize > 100 {
		cfg.VariationPageSize = 100
	}
	if cfg.MaxVariationPages <= 0 {
		cfg.MaxVariationPages = 10
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	rc := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		rc.MaxRetries = cfg.MaxRetries
	}

	c := &Client{
		log:     log,
		cfg:     cfg,
		base:    base,
		http:    &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
		limiter: rate.NewLimiter(limit, 1),
		retrier: NewRetrier(rc),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) Name() string { return "woocommerce" }

// TestConnectivity: najpierw /wp-json/ bez autoryzacji, potem products?per_page=1 z kluczami
func (c *Client) TestConnectivity(ctx context.Context) error {
	root := c.base.JoinPath("/wp-json/")
	if _, err := c.do(ctx, root.String(), false); err != nil {
		return fmt.Errorf("WordPress REST API niedostępne pod %s: %w", root, err)
	}

	q := url.Values{}
	q.Set("per_page", "1")
	q.Set("_fields", "id")
	if _, err := c.get(ctx, "products", q); err != nil {
		var ae *apiError
		if errors.As(err, &ae) && (ae.Status == http.StatusUnauthorized || ae.Status == http.StatusForbidden) {
			return fmt.Errorf("autoryzacja WooCommerce odrzucona: %w", err)
		}
		return fmt.Errorf("WooCommerce API: %w", err)
	}
	c.log.Info().Str("shop", c.cfg.BaseURL).Msg("connection ok")
	return nil
}

type response struct {
	header http.Header
	body   []byte
}

// get - zapytanie do /wp-json/wc/v3/{endpoint}
func (c *Client) get(ctx context.Context, endpoint string, q url.Values) (*response, error) {
	u := c.base.JoinPath(apiPrefix, endpoint)
	if q == nil {
		q = url.Values{}
	}
	if c.cfg.QueryStringAuth {
		q.Set("consumer_key", c.cfg.ConsumerKey)
		q.Set("consumer_secret", c.cfg.ConsumerSec)
	}
	u.RawQuery = q.Encode()
	return c.do(ctx, u.String(), true)
}

func (c *Client) do(ctx context.Context, rawURL string, auth bool) (*response, error) {
	start := time.Now()
	resp, attempts, err := c.retrier.DoHTTP(ctx, func(ctx context.Context) (*http.Response, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("error creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)
		if auth && !c.cfg.QueryStringAuth {
			req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSec)
		}
		return c.http.Do(req)
	})
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("GET %s (%d prób): %w", redactURL(rawURL), attempts, err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	c.log.Debug().
		Str("url", redactURL(rawURL)).
		Int("status", resp.StatusCode).
		Int("attempts", attempts).
		Dur("took", time.Since(start)).
		Msg("woo request")

	if resp.StatusCode >= 400 {
		ae := &apiError{Status: resp.StatusCode}
		_ = json.Unmarshal(body, ae)
		return nil, ae
	}
	return &response{header: resp.Header, body: body}, nil
}

// readBody dekoduje sklepy wysyłające np. ISO-8859-2
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = io.LimitReader(resp.Body, maxBody)
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil {
		if cs := params["charset"]; cs != "" && !strings.EqualFold(cs, "utf-8") {
			dec, err := charset.NewReaderLabel(cs, r)
			if err != nil {
				return nil, err
			}
			r = dec
		}
	}
	return io.ReadAll(r)
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("consumer_secret") {
		q.Set("consumer_secret", "***")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func factory(log zerolog.Logger, raw json.RawMessage) (integrations.Catalog, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return New(log, cfg)
}

func init() {
	integrations.Register("woocommerce", factory)
}
