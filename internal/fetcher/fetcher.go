// Package fetcher performs all outbound page fetches for the engine with
// uniform retry, per-host rate limiting, timeouts, and soft-error detection.
package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/gustavo-camilo/dealer-copilot/internal/metrics"
	"github.com/gustavo-camilo/dealer-copilot/internal/urlnorm"
)

const userAgent = "DealerCopilotBot/1.0 (+https://dealercopilot.app/bot)"

// minValidBody is the smallest body accepted as a real page.
const minValidBody = 500

// errorPhrases mark soft error pages served with HTTP 200.
var errorPhrases = []string{
	"page not found",
	"does not exist",
	"has been removed",
	"no longer available",
	"access denied",
	"forbidden",
}

// Options configure a Fetcher. Zero retry counts and durations fall back to
// the defaults below; Validate is used as given.
type Options struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Timeout      time.Duration
	RateLimit    time.Duration
	Validate     bool
}

// DefaultOptions returns the production fetch policy.
func DefaultOptions() Options {
	return Options{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     10 * time.Second,
		Timeout:      30 * time.Second,
		RateLimit:    1 * time.Second,
		Validate:     true,
	}
}

// Result is the tagged outcome of a fetch. Network errors never surface as
// panics or raw error returns; callers branch on Success.
type Result struct {
	Success  bool
	Status   int
	Body     string
	Err      error
	Attempts int
}

// Fetcher is safe for concurrent use. Requests to the same host are
// serialized through a shared per-host limiter.
type Fetcher struct {
	client *resty.Client
	logger *slog.Logger
	opts   Options

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func New(logger *slog.Logger, opts Options) *Fetcher {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.InitialDelay == 0 {
		opts.InitialDelay = time.Second
	}
	if opts.MaxDelay == 0 {
		opts.MaxDelay = 10 * time.Second
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = time.Second
	}

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.9").
		SetRetryCount(0) // retries are driven by our own backoff policy

	return &Fetcher{
		client:   client,
		logger:   logger,
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

// limiter returns the shared limiter for host, creating it on first use.
func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(f.opts.RateLimit), 1)
		f.limiters[host] = l
	}
	return l
}

// Fetch retrieves url as a GET with the configured policy.
func (f *Fetcher) Fetch(ctx context.Context, url string) Result {
	return f.do(ctx, http.MethodGet, url)
}

// Head probes url with a HEAD request. Body validation does not apply.
func (f *Fetcher) Head(ctx context.Context, url string) Result {
	return f.do(ctx, http.MethodHead, url)
}

func (f *Fetcher) do(ctx context.Context, method, url string) Result {
	host, err := urlnorm.Host(url)
	if err != nil {
		return Result{Err: err}
	}

	start := time.Now()
	defer func() {
		metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}()

	result := Result{}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.opts.InitialDelay
	bo.MaxInterval = f.opts.MaxDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	attempt := func() error {
		if err := f.limiter(host).Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		result.Attempts++

		resp, err := f.client.R().SetContext(ctx).Execute(method, url)
		if err != nil {
			metrics.FetchAttemptsTotal.WithLabelValues("network_error").Inc()
			if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
				result.Err = ErrNetworkTimeout
			} else {
				result.Err = err
			}
			return result.Err // transient: network errors are retried
		}

		status := resp.StatusCode()
		result.Status = status

		switch {
		case status == http.StatusOK:
			body := string(resp.Body())
			if method != http.MethodHead && f.opts.Validate {
				if reason := validateBody(body); reason != "" {
					metrics.FetchAttemptsTotal.WithLabelValues("error_page").Inc()
					result.Err = ErrErrorPage
					f.logger.Debug("error_page_detected",
						slog.String("url", url),
						slog.String("reason", reason),
					)
					return backoff.Permanent(result.Err)
				}
			}
			metrics.FetchAttemptsTotal.WithLabelValues("ok").Inc()
			result.Success = true
			result.Body = body
			result.Err = nil
			return nil
		case status == http.StatusTooManyRequests || status >= 500:
			metrics.FetchAttemptsTotal.WithLabelValues("retryable_status").Inc()
			result.Err = &RemoteStatusError{Status: status}
			return result.Err
		default:
			// 404/403/410 and the rest of the 4xx family are terminal
			metrics.FetchAttemptsTotal.WithLabelValues("terminal_status").Inc()
			result.Err = &RemoteStatusError{Status: status}
			return backoff.Permanent(result.Err)
		}
	}

	err = backoff.Retry(attempt, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(f.opts.MaxRetries)), ctx))
	if err != nil && result.Err == nil {
		result.Err = err
	}
	if result.Err != nil && !result.Success {
		f.logger.Warn("fetch_failed",
			slog.String("url", url),
			slog.Int("status", result.Status),
			slog.Int("attempts", result.Attempts),
			slog.String("error", result.Err.Error()),
		)
	}
	return result
}

// validateBody returns a non-empty reason when body looks like a soft error
// page rather than real content.
func validateBody(body string) string {
	if len(body) < minValidBody {
		return "body too short"
	}
	lower := strings.ToLower(body)
	for _, phrase := range errorPhrases {
		if strings.Contains(lower, phrase) {
			return phrase
		}
	}
	return ""
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
