package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bnema/rulekit/internal/categories"
	"github.com/bnema/rulekit/internal/compiler"
	"github.com/bnema/rulekit/internal/converter"
	"github.com/bnema/rulekit/internal/models"
	"github.com/bnema/rulekit/internal/registry"
	"github.com/bnema/rulekit/internal/store"
	"github.com/bnema/rulekit/internal/subscription"
	"github.com/bnema/rulekit/internal/subscription/mocks"
)

const (
	seedURL  = "https://lists.example.com/alpha.txt"
	seedID   = "builtin-alpha"
	seedList = "! Title: Alpha\n||alpha-ads.example^\n##.alpha-banner\n"
)

type fixedStatus compiler.Status

func (s fixedStatus) Status() compiler.Status {
	return compiler.Status(s)
}

// switchKV fails subscription writes while failSaves is set
type switchKV struct {
	*store.MemoryKV
	failSaves atomic.Bool
}

func (k *switchKV) Put(ctx context.Context, key string, value []byte) error {
	if key == "subscriptions" && k.failSaves.Load() {
		return errors.New("disk full")
	}
	return k.MemoryKV.Put(ctx, key, value)
}

type testServer struct {
	srv       *Server
	reg       *registry.Registry
	kv        *switchKV
	transport *mocks.MockTransport
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	rd, err := store.NewRuleDir(t.TempDir())
	require.NoError(t, err)
	transport := mocks.NewMockTransport(t)
	kv := &switchKV{MemoryKV: store.NewMemoryKV()}

	reg := registry.New(registry.Config{
		KV:         kv,
		Rules:      rd,
		Fetcher:    subscription.NewProcessor(transport, converter.DefaultMaxRules),
		Seeds:      registry.Seeds([]models.FilterList{{Name: "alpha", URL: seedURL, Enabled: true}}),
		MaxRules:   converter.DefaultMaxRules,
		Categories: []categories.Category{categories.Ads},
	})
	require.NoError(t, reg.Init(context.Background()))

	status := fixedStatus{State: compiler.StateActive, Identifier: "abc"}
	return &testServer{
		srv:       New("127.0.0.1:0", reg, status, zerolog.Nop()),
		reg:       reg,
		kv:        kv,
		transport: transport,
	}
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestSubscriptions_List(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/subscriptions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	subs := decode[[]models.Subscription](t, rec)
	require.Len(t, subs, 1)
	assert.Equal(t, seedID, subs[0].ID)
	assert.True(t, subs[0].BuiltIn)
}

func TestSubscriptions_Add(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/subscriptions", `{"name":"Mine","url":"https://mine.example/list.txt"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	sub := decode[models.Subscription](t, rec)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, "Mine", sub.Name)
	assert.True(t, sub.Enabled)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing url", `{"name":"x"}`, http.StatusBadRequest},
		{"not a url", `{"url":"lists"}`, http.StatusBadRequest},
		{"unsupported scheme", `{"url":"ftp://mine.example/list.txt"}`, http.StatusBadRequest},
		{"duplicate", `{"url":"HTTPS://MINE.EXAMPLE/list.txt"}`, http.StatusConflict},
		{"malformed body", `{"url":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ts.do(http.MethodPost, "/subscriptions", tt.body).Code)
		})
	}
}

func TestSubscriptions_Remove(t *testing.T) {
	ts := newTestServer(t)
	sub, err := ts.reg.Add(context.Background(), "", "https://mine.example/list.txt")
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodDelete, "/subscriptions/"+seedID, "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, "/subscriptions/nope", "").Code)
	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/subscriptions/"+sub.ID, "").Code)
	assert.Len(t, ts.reg.Subscriptions(), 1)
}

func TestSubscriptions_EnableDisable(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/subscriptions/"+seedID+"/disable", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[models.Subscription](t, rec).Enabled)

	rec = ts.do(http.MethodPost, "/subscriptions/"+seedID+"/enable", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.Subscription](t, rec).Enabled)

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPost, "/subscriptions/nope/enable", "").Code)
}

func TestUpdate_Subscription(t *testing.T) {
	ts := newTestServer(t)
	ts.transport.EXPECT().Fetch(mock.Anything, seedURL).Return(seedList, http.StatusOK, nil)

	rec := ts.do(http.MethodPost, "/subscriptions/"+seedID+"/update", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Changed      bool                `json:"changed"`
		Subscription models.Subscription `json:"subscription"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Changed)
	assert.Equal(t, 2, body.Subscription.RuleCount)
	assert.NotEmpty(t, body.Subscription.Checksum)

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPost, "/subscriptions/nope/update", "").Code)
}

func TestUpdate_SubscriptionSaveFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.transport.EXPECT().Fetch(mock.Anything, seedURL).Return(seedList, http.StatusOK, nil)
	ts.kv.failSaves.Store(true)

	rec := ts.do(http.MethodPost, "/subscriptions/"+seedID+"/update", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "disk full")
}

func TestUpdate_All(t *testing.T) {
	ts := newTestServer(t)
	ts.transport.EXPECT().Fetch(mock.Anything, seedURL).Return(seedList, http.StatusOK, nil)

	rec := ts.do(http.MethodPost, "/update", "")
	require.Equal(t, http.StatusOK, rec.Code)

	report := decode[registry.UpdateReport](t, rec)
	assert.Equal(t, []string{seedID}, report.Updated)
	assert.Empty(t, report.Failed)
}

func TestCategories(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[[]struct {
		Name    string `json:"name"`
		Rules   int    `json:"rules"`
		Enabled bool   `json:"enabled"`
	}](t, rec)
	require.Len(t, listed, len(categories.All()))
	assert.Equal(t, "ads", listed[0].Name)
	assert.True(t, listed[0].Enabled)
	assert.Equal(t, categories.Count(categories.Ads), listed[0].Rules)
	assert.False(t, listed[1].Enabled)

	rec = ts.do(http.MethodPut, "/categories", `{"categories":["Social","ads"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ads", "social"}, decode[[]string](t, rec))

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPut, "/categories", `{"categories":["cookies"]}`).Code)
	assert.Equal(t, []categories.Category{categories.Ads, categories.Social}, ts.reg.Categories())

	rec = ts.do(http.MethodDelete, "/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ads"}, decode[[]string](t, rec))
}

func TestRules(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/rules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "false", rec.Header().Get("X-Rules-Truncated"))
	assert.Equal(t, ts.reg.Fingerprint(), rec.Header().Get("X-Rules-Fingerprint"))

	rules := decode[[]models.ContentRule](t, rec)
	assert.Len(t, rules, categories.Count(categories.Ads))
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	status := decode[statusResponse](t, rec)
	assert.Equal(t, compiler.StateActive, status.Publisher.State)
	assert.Equal(t, "abc", status.Publisher.Identifier)
	assert.Len(t, status.Registry.Subscriptions, 1)
	assert.False(t, status.Registry.Updating)
	assert.Equal(t, ts.reg.Fingerprint(), status.Fingerprint)
}

func TestEvents_StreamsChanges(t *testing.T) {
	ts := newTestServer(t)
	server := httptest.NewServer(ts.srv.Handler())
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, ts.reg.SetCategories(context.Background(), []categories.Category{categories.Social}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev registry.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, registry.ReasonCategories, ev.Reason)
	assert.False(t, ev.At.IsZero())
}
