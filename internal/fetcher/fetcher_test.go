package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/rulekit/internal/models"
)

func newTestFetcher(retries int) *Fetcher {
	f := New(models.HTTPConfig{Timeout: 2 * time.Second, Retries: retries})
	f.backoff = time.Millisecond
	return f
}

func TestFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "rulekit/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("\xEF\xBB\xBF! Title: Test\n||ads.example.com^\n"))
	}))
	defer server.Close()

	content, status, err := newTestFetcher(1).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "! Title: Test\n||ads.example.com^\n", content)
}

func TestFetch_ClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, status, err := newTestFetcher(3).Fetch(context.Background(), server.URL)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetch_ServerErrorRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("||ads.example.com^"))
	}))
	defer server.Close()

	content, _, err := newTestFetcher(3).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "||ads.example.com^", content)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetch_ServerErrorExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, status, err := newTestFetcher(2).Fetch(context.Background(), server.URL)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetch_DecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{0xff, 0xfe, 0x00, 'a'})
	}))
	defer server.Close()

	_, _, err := newTestFetcher(3).Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestFetch_BodyOverLimit(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("||ads.example.com^\n||more.example.com^\n"))
	}))
	defer server.Close()

	f := newTestFetcher(3)
	f.maxBody = 20

	_, _, err := f.Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, int32(1), hits.Load())

	f.maxBody = 64
	content, _, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "||ads.example.com^\n||more.example.com^\n", content)
}

func TestFetch_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, status, err := newTestFetcher(2).Fetch(context.Background(), url)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Zero(t, status)
}

func TestFetch_ConcurrentCallsShareDownload(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte("##.ad"))
	}))
	defer server.Close()

	f := newTestFetcher(1)
	var wg sync.WaitGroup
	results := make([]string, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			content, _, err := f.Fetch(context.Background(), server.URL)
			assert.NoError(t, err)
			results[i] = content
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "##.ad", r)
	}
	assert.LessOrEqual(t, hits.Load(), int32(4))
	assert.GreaterOrEqual(t, hits.Load(), int32(1))
}

func TestStatusError_Temporary(t *testing.T) {
	assert.True(t, (&StatusError{Code: 500}).Temporary())
	assert.True(t, (&StatusError{Code: 429}).Temporary())
	assert.False(t, (&StatusError{Code: 403}).Temporary())
}
