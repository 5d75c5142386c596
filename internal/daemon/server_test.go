package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/debuglog"
	"github.com/runnerr0/dwell/internal/logging"
	"github.com/runnerr0/dwell/internal/storage"
	"github.com/runnerr0/dwell/internal/tabs"
	"github.com/runnerr0/dwell/internal/tracker"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// stepClock advances by step on every reading.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

type envelope[T any] struct {
	Data    T      `json:"data"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type testServer struct {
	*Server
	store storage.Store
}

func newTestServer(t *testing.T, cfg config.DaemonConfig, ring *debuglog.Log) *testServer {
	t.Helper()
	return newTestServerWithStore(t, cfg, ring, storage.NewMemoryStore())
}

func newTestServerWithStore(t *testing.T, cfg config.DaemonConfig, ring *debuglog.Log, store storage.Store) *testServer {
	t.Helper()

	if cfg.QueueSize == 0 {
		cfg.QueueSize = 16
	}
	logger := logging.Discard()
	if ring != nil {
		logger = logging.New("local", config.LoggingConfig{Level: "debug"}, io.Discard, ring)
	}

	registry := tabs.NewRegistry()
	tr := tracker.New(tracker.Options{
		Store:          store,
		Source:         registry,
		Clock:          &stepClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local), step: 2 * time.Second},
		Logger:         logger,
		IgnoredSchemes: config.DefaultIgnoredSchemes(),
	})

	s := New(Options{
		Config:   cfg,
		Tracker:  tr,
		Registry: registry,
		Store:    store,
		Backend:  config.BackendMemory,
		Ring:     ring,
		Logger:   logger,
		Version:  "test",
	})
	return &testServer{Server: s, store: store}
}

func (ts *testServer) startWorker(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go ts.queue.Run(ctx)
}

func (ts *testServer) drainNow(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ts.drain(ctx))
}

func doRequest(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestEvents_SingleAndBatchFeedTracker(t *testing.T) {
	ts := newTestServer(t, config.DaemonConfig{}, nil)
	ts.startWorker(t)
	h := ts.Handler()

	w := doRequest(h, http.MethodPost, "/api/v1/events",
		`{"type":"tab_activated","tabId":1,"windowId":3,"url":"https://example.com/a"}`, nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, 1, decode[map[string]int](t, w).Data["accepted"])

	w = doRequest(h, http.MethodPost, "/api/v1/events", `{"events":[
		{"type":"tab_updated","tabId":2,"windowId":3,"url":"https://other.com/","status":"loading"},
		{"type":"tab_activated","tabId":2,"windowId":3}
	]}`, nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, 2, decode[map[string]int](t, w).Data["accepted"])

	ts.drainNow(t)

	w = doRequest(h, http.MethodGet, "/api/v1/today", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode[[]storage.DomainData](t, w)
	assert.True(t, env.Success)
	assert.Equal(t, []storage.DomainData{{Domain: "example.com", TimeSpent: 2000}}, env.Data)

	cur, open := ts.tracker.Current()
	require.True(t, open)
	assert.Equal(t, "other.com", cur.Domain)
}

func TestMessage_GetTodayData(t *testing.T) {
	ts := newTestServer(t, config.DaemonConfig{}, nil)

	w := doRequest(ts.Handler(), http.MethodPost, "/api/v1/message", `{"action":"getTodayData"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[],"success":true}`, w.Body.String())

	// The step clock sits on 2026-03-10.
	ctx := context.Background()
	require.NoError(t, ts.store.AddDuration(ctx, storage.Commit{Day: "2026-03-10", Domain: "a.com", DurationMs: 1500}))
	require.NoError(t, ts.store.AddDuration(ctx, storage.Commit{Day: "2026-03-10", Domain: "b.com", DurationMs: 9000}))
	require.NoError(t, ts.store.AddDuration(ctx, storage.Commit{Day: "2026-03-09", Domain: "c.com", DurationMs: 50000}))

	w = doRequest(ts.Handler(), http.MethodPost, "/api/v1/message", `{"action":"getTodayData"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[{"domain":"b.com","timeSpent":9000},{"domain":"a.com","timeSpent":1500}],"success":true}`, w.Body.String())
}

func TestMessage_RejectsUnknownAction(t *testing.T) {
	ts := newTestServer(t, config.DaemonConfig{}, nil)

	w := doRequest(ts.Handler(), http.MethodPost, "/api/v1/message", `{"action":"wipeEverything"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, decode[any](t, w).Success)

	w = doRequest(ts.Handler(), http.MethodPost, "/api/v1/message", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvents_RejectsBadInput(t *testing.T) {
	ts := newTestServer(t, config.DaemonConfig{}, nil)
	h := ts.Handler()

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"type":`},
		{"missing type", `{"tabId":1}`},
		{"unknown type", `{"type":"tab_moved","tabId":1}`},
		{"bad event in batch", `{"events":[{"type":"tab_activated","tabId":1},{"type":"nope"}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(h, http.MethodPost, "/api/v1/events", tc.body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Zero(t, ts.queue.Len())
}

func TestEvents_QueueFullReturns503(t *testing.T) {
	ts := newTestServer(t, config.DaemonConfig{QueueSize: 1}, nil)

	w := doRequest(ts.Handler(), http.MethodPost, "/api/v1/events",
		`{"events":[{"type":"tab_activated","tabId":1},{"type":"tab_activated","tabId":2}]}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "accepted 1 of 2")
	assert.Equal(t, 1, ts.queue.Len())
}

func TestEvents_BodyTooLarge(t *testing.T) {
	ts := newTestServer(t, config.DaemonConfig{MaxRequestSize: 32}, nil)

	body := `{"type":"tab_activated","tabId":1,"url":"https://` + strings.Repeat("a", 64) + `.com/"}`
	w := doRequest(ts.Handler(), http.MethodPost, "/api/v1/events", body, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestAPIKey(t *testing.T) {
	ts := newTestServer(t, config.DaemonConfig{AuthToken: "s3cret"}, nil)
	h := ts.Handler()

	w := doRequest(h, http.MethodGet, "/api/v1/today", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(h, http.MethodGet, "/api/v1/today", "", map[string]string{headerAPIKey: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(h, http.MethodGet, "/api/v1/today", "", map[string]string{headerAPIKey: "s3cret"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(h, http.MethodGet, "/api/v1/today", "", map[string]string{"Authorization": "Bearer s3cret"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(h, http.MethodGet, "/status", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS(t *testing.T) {
	t.Run("default allows extensions", func(t *testing.T) {
		ts := newTestServer(t, config.DaemonConfig{}, nil)
		w := doRequest(ts.Handler(), http.MethodOptions, "/api/v1/events", "",
			map[string]string{"Origin": "chrome-extension://abcdef"})
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "chrome-extension://abcdef", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("configured list is exclusive", func(t *testing.T) {
		ts := newTestServer(t, config.DaemonConfig{AllowedOrigins: []string{"chrome-extension://known"}}, nil)
		h := ts.Handler()

		w := doRequest(h, http.MethodGet, "/api/v1/today", "", map[string]string{"Origin": "chrome-extension://other"})
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

		w = doRequest(h, http.MethodGet, "/api/v1/today", "", map[string]string{"Origin": "chrome-extension://known"})
		assert.Equal(t, "chrome-extension://known", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRequestID(t *testing.T) {
	ts := newTestServer(t, config.DaemonConfig{}, nil)
	h := ts.Handler()

	w := doRequest(h, http.MethodGet, "/status", "", nil)
	assert.Len(t, w.Header().Get(headerRequestID), 36)

	w = doRequest(h, http.MethodGet, "/status", "", map[string]string{headerRequestID: "abc"})
	assert.Equal(t, "abc", w.Header().Get(headerRequestID))
}

func TestDebugLog(t *testing.T) {
	ring := debuglog.New(50)
	ts := newTestServer(t, config.DaemonConfig{}, ring)
	ts.startWorker(t)
	h := ts.Handler()

	w := doRequest(h, http.MethodPost, "/api/v1/events", `{"events":[
		{"type":"tab_activated","tabId":1,"windowId":1,"url":"https://example.com/"},
		{"type":"tab_activated","tabId":9,"windowId":1}
	]}`, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	ts.drainNow(t)

	w = doRequest(h, http.MethodGet, "/api/v1/debug/log?since=0", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := decode[[]debuglog.Entry](t, w).Data
	require.NotEmpty(t, entries)

	var messages []string
	for _, e := range entries {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, "interval committed")

	w = doRequest(h, http.MethodGet, "/api/v1/debug/log?limit=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]debuglog.Entry](t, w).Data, 1)

	w = doRequest(h, http.MethodGet, "/api/v1/debug/log?since=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t, config.DaemonConfig{}, nil)
	ts.startWorker(t)
	h := ts.Handler()

	w := doRequest(h, http.MethodPost, "/api/v1/events",
		`{"type":"tab_activated","tabId":4,"windowId":2,"url":"https://go.dev/"}`, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	ts.drainNow(t)

	w = doRequest(h, http.MethodGet, "/status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	st := decode[Status](t, w).Data
	assert.Equal(t, "dwell", st.Service)
	assert.Equal(t, "test", st.Version)
	assert.Equal(t, config.BackendMemory, st.Backend)
	assert.Equal(t, 1, st.Tabs)
	assert.True(t, st.WindowFocused)
	require.NotNil(t, st.Current)
	assert.Equal(t, "go.dev", st.Current.Domain)
}

func TestStatus_CountsStreamClients(t *testing.T) {
	ring := debuglog.New(10)
	ts := newTestServer(t, config.DaemonConfig{}, ring)

	_, unsubscribe := ring.Subscribe(1)
	defer unsubscribe()

	w := doRequest(ts.Handler(), http.MethodGet, "/status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[Status](t, w).Data.StreamClients)
}

func TestRun_ShutdownFlushesOpenInterval(t *testing.T) {
	ts := newTestServer(t, config.DaemonConfig{Host: "127.0.0.1", Port: 0}, nil)

	ts.registry.Apply(tracker.Event{Type: tracker.EventTabActivated, TabID: 1, WindowID: 1, URL: "https://example.com/"})
	ts.tracker.OnTabActivated(context.Background(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}

	totals, err := ts.store.GetDay(context.Background(), "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), totals["example.com"])
	_, open := ts.tracker.Current()
	assert.False(t, open)
}

func TestServe_ShutdownWithOpenStreamStillCommits(t *testing.T) {
	store, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "dwell.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ring := debuglog.New(100)
	ts := newTestServerWithStore(t, config.DaemonConfig{}, ring, store)

	ts.registry.Apply(tracker.Event{Type: tracker.EventTabActivated, TabID: 1, WindowID: 1, URL: "https://example.com/"})
	ts.tracker.OnTabActivated(context.Background(), 1)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- ts.Serve(ctx, ln) }()

	// Headers arrive before any log entry is written.
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/api/v1/debug/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")
	require.Eventually(t, func() bool { return ring.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	start := time.Now()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return with a stream open")
	}
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, 0, ring.Subscribers())

	totals, err := store.GetDay(context.Background(), "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), totals["example.com"])
}
