package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/bnema/rulekit/internal/logging"
	"github.com/bnema/rulekit/internal/models"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultResourceTimeout = 2 * time.Minute
	defaultRetries         = 3
	defaultMaxConnsPerHost = 2
	defaultUserAgent       = "rulekit/1.0"

	// maxBodySize caps a downloaded list; the largest public lists are a few MB
	maxBodySize = 64 << 20
)

var (
	// ErrNetwork wraps transport-level failures (DNS, connect, timeout, reset)
	ErrNetwork = errors.New("network error")
	// ErrDecode is returned when the body is not valid UTF-8
	ErrDecode = errors.New("response is not valid UTF-8")
	// ErrTooLarge is returned when the body exceeds the size cap
	ErrTooLarge = errors.New("response body too large")
)

// StatusError is returned for any non-200 response
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.Code, http.StatusText(e.Code), e.URL)
}

// Temporary reports whether retrying may help
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// Fetcher downloads filter lists
type Fetcher struct {
	client          *http.Client
	retries         int
	resourceTimeout time.Duration
	userAgent       string
	backoff         time.Duration
	maxBody         int64
	group           singleflight.Group
}

type fetchResult struct {
	content string
	status  int
}

// New creates a new fetcher from config
func New(cfg models.HTTPConfig) *Fetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	resourceTimeout := cfg.ResourceTimeout
	if resourceTimeout == 0 {
		resourceTimeout = defaultResourceTimeout
	}

	retries := cfg.Retries
	if retries == 0 {
		retries = defaultRetries
	}

	maxConns := cfg.MaxConnsPerHost
	if maxConns == 0 {
		maxConns = defaultMaxConnsPerHost
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxConnsPerHost = maxConns
	transport.MaxIdleConnsPerHost = maxConns

	return &Fetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		retries:         retries,
		resourceTimeout: resourceTimeout,
		userAgent:       userAgent,
		backoff:         time.Second,
		maxBody:         maxBodySize,
	}
}

// Fetch downloads url and returns its decoded body and status code.
// Concurrent calls for the same URL share one download.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, int, error) {
	v, err, shared := f.group.Do(url, func() (any, error) {
		return f.fetchWithRetries(ctx, url)
	})
	if shared {
		logging.FromContext(ctx).Debug().Str("url", url).Msg("joined in-flight download")
	}
	if err != nil {
		var status int
		var se *StatusError
		if errors.As(err, &se) {
			status = se.Code
		}
		return "", status, err
	}
	res := v.(fetchResult)
	return res.content, res.status, nil
}

func (f *Fetcher) fetchWithRetries(ctx context.Context, url string) (fetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, f.resourceTimeout)
	defer cancel()

	log := logging.FromContext(ctx)
	var lastErr error

	for i := 0; i < f.retries; i++ {
		if i > 0 {
			// Linear backoff
			select {
			case <-ctx.Done():
				return fetchResult{}, fmt.Errorf("%w: %w", ErrNetwork, ctx.Err())
			case <-time.After(time.Duration(i) * f.backoff):
			}
		}

		res, err := f.doFetch(ctx, url)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if !retryable(err) {
			return fetchResult{}, err
		}
		log.Debug().Err(err).Str("url", url).Int("attempt", i+1).Msg("fetch failed, retrying")
	}

	return fetchResult{}, fmt.Errorf("failed after %d attempts: %w", f.retries, lastErr)
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return errors.Is(err, ErrNetwork)
}

func (f *Fetcher) doFetch(ctx context.Context, url string) (fetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fetchResult{}, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/plain, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return fetchResult{}, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fetchResult{}, &StatusError{URL: url, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return fetchResult{}, fmt.Errorf("%w: read body: %w", ErrNetwork, err)
	}
	if int64(len(body)) > f.maxBody {
		return fetchResult{}, fmt.Errorf("%w: over %d bytes", ErrTooLarge, f.maxBody)
	}

	content, err := decode(body)
	if err != nil {
		return fetchResult{}, err
	}

	return fetchResult{content: content, status: resp.StatusCode}, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decode validates UTF-8 and strips a leading byte order mark
func decode(body []byte) (string, error) {
	body = bytes.TrimPrefix(body, utf8BOM)
	if !utf8.Valid(body) {
		return "", ErrDecode
	}
	return string(body), nil
}
