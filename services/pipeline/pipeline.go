package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// The pipeline is the single point of egress for every provider call. It
// bounds the number of in-flight requests, enforces a minimum spacing
// between dispatches across all callers, and retries transient failures
// with a fixed budget. Auth failures are terminal and never retried.

var (
	// ErrAuth means the provider rejected our credentials. Callers should
	// surface a corrective message instead of retrying.
	ErrAuth = errors.New("provider rejected credentials")
	// ErrNotFound means the provider has no record for the requested unit.
	// Callers treat this as "no data", not a failure.
	ErrNotFound = errors.New("provider record not found")
	// ErrExhausted wraps the last transient error after the retry budget
	// is spent.
	ErrExhausted = errors.New("retry budget exhausted")
)

// StatusError reports an unexpected terminal HTTP status.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %s", e.Status)
}

// Task is one queued provider call.
type Task struct {
	Provider string // label for logging, e.g. "tmdb"
	Method   string
	URL      string
	Query    url.Values
	Header   http.Header
	Body     []byte
}

// Result is the raw provider response body for a 2xx status.
type Result struct {
	Status int
	Body   []byte
}

// Clock abstracts wall-clock waits so retry behavior is testable without
// real sleeps.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Config tunes the pipeline. Zero values take the defaults below.
type Config struct {
	MaxInFlight   int           // simultaneous provider calls (default 4)
	MinInterval   time.Duration // global spacing between dispatches (default 250ms)
	MaxRetries    int           // retries after the first attempt (default 3)
	RateLimitWait time.Duration // wait on 429 without a Retry-After hint (default 5s)
	ServerErrWait time.Duration // wait after 5xx or transport errors (default 1s)
	HTTPClient    *http.Client
	Clock         Clock
}

// Service dispatches provider calls. Safe for concurrent use; tasks queue
// on the slot semaphore and go out roughly in arrival order.
type Service struct {
	httpc   *http.Client
	clock   Clock
	slots   chan struct{}
	limiter *rate.Limiter

	maxRetries    int
	rateLimitWait time.Duration
	serverErrWait time.Duration

	mu       sync.Mutex
	inFlight int
}

// New creates a pipeline with the given config.
func New(cfg Config) *Service {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 4
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 250 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RateLimitWait <= 0 {
		cfg.RateLimitWait = 5 * time.Second
	}
	if cfg.ServerErrWait <= 0 {
		cfg.ServerErrWait = time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	return &Service{
		httpc:         cfg.HTTPClient,
		clock:         cfg.Clock,
		slots:         make(chan struct{}, cfg.MaxInFlight),
		limiter:       rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		maxRetries:    cfg.MaxRetries,
		rateLimitWait: cfg.RateLimitWait,
		serverErrWait: cfg.ServerErrWait,
	}
}

// InFlight reports the number of calls currently holding a slot.
func (s *Service) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Submit executes the task, retrying transient failures up to the retry
// budget. It blocks while waiting for a free slot and for pacing.
func (s *Service) Submit(ctx context.Context, task Task) (*Result, error) {
	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.Lock()
	s.inFlight++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
		<-s.slots
	}()

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		res, wait, err := s.dispatch(ctx, task)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, ErrAuth) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		var se *StatusError
		if errors.As(err, &se) {
			return nil, err
		}

		lastErr = err
		if attempt == s.maxRetries {
			break
		}
		log.Printf("[pipeline] %s %s %s: %v (retry %d/%d in %s)",
			task.Provider, task.Method, task.URL, err, attempt+1, s.maxRetries, wait)
		if err := s.clock.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}

// dispatch performs one HTTP attempt. On a retryable failure it returns the
// suggested wait before the next attempt.
func (s *Service) dispatch(ctx context.Context, task Task) (*Result, time.Duration, error) {
	u := task.URL
	if len(task.Query) > 0 {
		if strings.Contains(u, "?") {
			u += "&" + task.Query.Encode()
		} else {
			u += "?" + task.Query.Encode()
		}
	}

	method := task.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(task.Body) > 0 {
		body = bytes.NewReader(task.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, 0, &StatusError{Code: 0, Status: err.Error()}
	}
	for k, vs := range task.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, s.serverErrWait, fmt.Errorf("%s request: %w", task.Provider, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, 0, fmt.Errorf("%w (%s: %s)", ErrAuth, task.Provider, resp.Status)
	case resp.StatusCode == http.StatusNotFound:
		return nil, 0, fmt.Errorf("%w (%s)", ErrNotFound, task.Provider)
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := s.rateLimitWait
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(strings.TrimSpace(ra)); err == nil && secs >= 0 {
				wait = time.Duration(secs) * time.Second
			}
		}
		return nil, wait, fmt.Errorf("%s rate limited: %s", task.Provider, resp.Status)
	case resp.StatusCode >= 500:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, s.serverErrWait, fmt.Errorf("%s server error: %s: %s",
			task.Provider, resp.Status, strings.TrimSpace(string(snippet)))
	case resp.StatusCode >= 300:
		return nil, 0, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, s.serverErrWait, fmt.Errorf("%s read body: %w", task.Provider, err)
	}
	return &Result{Status: resp.StatusCode, Body: data}, 0, nil
}
