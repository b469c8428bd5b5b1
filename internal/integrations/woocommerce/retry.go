package woocommerce

import (
	"context"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// RetryConfig - ponawianie błędów przejściowych (sieć, 429, 5xx)
type RetryConfig struct {
	MaxRetries      int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BackoffFactor   float64
	Jitter          float64 // 0-1
	RetryableStatus []int
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     15 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
		RetryableStatus: []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

type Retrier struct {
	cfg RetryConfig
}

func NewRetrier(cfg RetryConfig) *Retrier {
	return &Retrier{cfg: cfg}
}

func (r *Retrier) shouldRetry(statusCode int, err error) bool {
	// błąd sieci bez odpowiedzi - zawsze ponawiamy
	if err != nil && statusCode == 0 {
		return true
	}
	for _, code := range r.cfg.RetryableStatus {
		if statusCode == code {
			return true
		}
	}
	return false
}

func (r *Retrier) backoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		if r.cfg.MaxBackoff > 0 && retryAfter > r.cfg.MaxBackoff {
			return r.cfg.MaxBackoff
		}
		return retryAfter
	}

	b := float64(r.cfg.InitialBackoff) * math.Pow(r.cfg.BackoffFactor, float64(attempt))
	if r.cfg.Jitter > 0 {
		b += b * r.cfg.Jitter * (rand.Float64()*2 - 1)
	}
	if r.cfg.MaxBackoff > 0 && b > float64(r.cfg.MaxBackoff) {
		b = float64(r.cfg.MaxBackoff)
	}
	return time.Duration(b)
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

// DoHTTP wykonuje fn aż do sukcesu, błędu nieponawialnego albo wyczerpania prób.
// Zwraca ostatnią odpowiedź (body do zamknięcia przez wołającego) i liczbę prób.
func (r *Retrier) DoHTTP(ctx context.Context, fn func(ctx context.Context) (*http.Response, error)) (*http.Response, int, error) {
	var (
		resp *http.Response
		err  error
	)
	for attempt := 0; ; attempt++ {
		resp, err = fn(ctx)

		status := 0
		if err == nil {
			status = resp.StatusCode
			if status >= 200 && status < 300 {
				return resp, attempt + 1, nil
			}
		}
		if !r.shouldRetry(status, err) || attempt >= r.cfg.MaxRetries {
			return resp, attempt + 1, err
		}

		wait := r.backoff(attempt, parseRetryAfter(resp))
		if resp != nil {
			// odpowiedź idzie do kosza, zwolnij połączenie
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		select {
		case <-ctx.Done():
			return nil, attempt + 1, ctx.Err()
		case <-time.After(wait):
		}
	}
}
