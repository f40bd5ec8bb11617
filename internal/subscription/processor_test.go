package subscription_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bnema/rulekit/internal/converter"
	"github.com/bnema/rulekit/internal/fetcher"
	"github.com/bnema/rulekit/internal/models"
	"github.com/bnema/rulekit/internal/subscription"
	"github.com/bnema/rulekit/internal/subscription/mocks"
)

const testList = "[Adblock Plus 2.0]\n! Title: Test List\n! Version: 42\n! Homepage: https://example.com/list\n! Expires: 2 days\n||ads.example.com^\n##.banner-ad\n"

func testSubscription() models.Subscription {
	return models.Subscription{
		ID:        "sub-1",
		SourceURL: "https://lists.example.com/test.txt",
		Enabled:   true,
	}
}

func TestChecksum_Deterministic(t *testing.T) {
	assert.Equal(t, subscription.Checksum("abc"), subscription.Checksum("abc"))
	assert.NotEqual(t, subscription.Checksum("abc"), subscription.Checksum("abc\n"))
	assert.Len(t, subscription.Checksum(""), 64)
}

func TestFetchAndProcess_ChecksumIdempotence(t *testing.T) {
	transport := mocks.NewMockTransport(t)
	transport.EXPECT().
		Fetch(mock.Anything, "https://lists.example.com/test.txt").
		Return(testList, http.StatusOK, nil).
		Twice()

	p := subscription.NewProcessor(transport, converter.DefaultMaxRules)
	ctx := context.Background()

	first, err := p.FetchAndProcess(ctx, testSubscription(), false)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := p.FetchAndProcess(ctx, first.Subscription, false)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestFetchAndProcess_ForceRecompiles(t *testing.T) {
	transport := mocks.NewMockTransport(t)
	transport.EXPECT().
		Fetch(mock.Anything, mock.Anything).
		Return(testList, http.StatusOK, nil)

	p := subscription.NewProcessor(transport, 0)
	sub := testSubscription()
	sub.Checksum = subscription.Checksum(testList)

	res, err := p.FetchAndProcess(context.Background(), sub, true)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Len(t, res.Rules, 2)
}

func TestFetchAndProcess_UpdatesRecord(t *testing.T) {
	transport := mocks.NewMockTransport(t)
	transport.EXPECT().
		Fetch(mock.Anything, mock.Anything).
		Return(testList, http.StatusOK, nil)

	sub := testSubscription()
	sub.LastError = "HTTP 503"

	res, err := subscription.NewProcessor(transport, 0).FetchAndProcess(context.Background(), sub, false)
	require.NoError(t, err)
	require.NotNil(t, res)

	got := res.Subscription
	assert.Equal(t, subscription.Checksum(testList), got.Checksum)
	assert.Equal(t, 2, got.RuleCount)
	assert.Empty(t, got.LastError)
	assert.NotNil(t, got.LastUpdated)
	assert.Equal(t, "Test List", got.Name)
	assert.Equal(t, "42", got.Version)
	assert.Equal(t, "https://example.com/list", got.Homepage)
	assert.Equal(t, 2, res.Stats.TotalConverted)
	assert.Equal(t, 5, res.Parse.Comments)
	assert.Equal(t, 48*time.Hour, got.Expires)
	assert.True(t, got.Enabled)
}

func TestFetchAndProcess_KeepsUserName(t *testing.T) {
	transport := mocks.NewMockTransport(t)
	transport.EXPECT().
		Fetch(mock.Anything, mock.Anything).
		Return(testList, http.StatusOK, nil)

	sub := testSubscription()
	sub.Name = "My list"

	res, err := subscription.NewProcessor(transport, 0).FetchAndProcess(context.Background(), sub, false)
	require.NoError(t, err)
	assert.Equal(t, "My list", res.Subscription.Name)
}

func TestFetchAndProcess_TransportErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		err     error
		wantErr error
	}{
		{"network", 0, fetcher.ErrNetwork, fetcher.ErrNetwork},
		{"decode", http.StatusOK, fetcher.ErrDecode, fetcher.ErrDecode},
		{"status without error", http.StatusNotFound, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := mocks.NewMockTransport(t)
			transport.EXPECT().
				Fetch(mock.Anything, mock.Anything).
				Return("", tt.status, tt.err)

			sub := testSubscription()
			sub.Checksum = "previous"

			res, err := subscription.NewProcessor(transport, 0).FetchAndProcess(context.Background(), sub, false)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, "previous", sub.Checksum)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			var se *fetcher.StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, http.StatusNotFound, se.Code)
		})
	}
}
