package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apirest "github.com/gamegoo/socialgraph/api/rest"
	"github.com/gamegoo/socialgraph/api/sse"
	"github.com/gamegoo/socialgraph/audit"
	"github.com/gamegoo/socialgraph/cache"
	"github.com/gamegoo/socialgraph/config"
	"github.com/gamegoo/socialgraph/event"
	mw "github.com/gamegoo/socialgraph/middleware"
	"github.com/gamegoo/socialgraph/notification"
	"github.com/gamegoo/socialgraph/scheduler"
	"github.com/gamegoo/socialgraph/social"
	"github.com/gamegoo/socialgraph/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const adminKey = "integration-admin-key"

// TestServer wraps a real HTTP server with the relationship engine, event
// fan-out and push endpoints wired together.
type TestServer struct {
	DB         *gorm.DB
	Cache      cache.Cache
	PubSub     cache.PubSub
	Social     *social.Service
	Dispatcher *event.Dispatcher
	Server     *httptest.Server
	URL        string // http://127.0.0.1:<port>
	Sec        config.SecurityConfig

	audit *audit.Service
	sched *scheduler.Scheduler
}

// NewTestServer creates a fully wired server for integration testing.
// It mirrors the dependency wiring in main.go.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// ---- Infrastructure ----
	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	sec := config.SecurityConfig{
		JWTSecret:      "integration-test-secret",
		RateLimitRPS:   1000,
		RateLimitBurst: 2000,
	}
	socialCfg := config.SocialConfig{
		TxTimeout:       5 * time.Second,
		DefaultPageSize: 10,
		MaxPageSize:     100,
		RequestTTL:      time.Hour,
		MemberCacheTTL:  time.Minute,
		RetryAttempts:   3,
		RetryBackoff:    5 * time.Millisecond,
	}

	// ---- Services ----
	auditSvc := audit.New(db, logger)
	notifySvc := notification.NewService(db, pubsub, logger)
	dispatcher := event.NewDispatcher(event.Options{Attempts: 2, Backoff: time.Millisecond}, logger,
		notifySvc, event.NewPubSubSink(pubsub, "social.events"))

	directory := social.NewCachedDirectory(social.NewDBDirectory(db), c, socialCfg.MemberCacheTTL, logger)
	socialSvc := social.NewService(social.NewStore(db, socialCfg.TxTimeout), directory, dispatcher, socialCfg, logger)

	sched := scheduler.New(logger, time.Second)
	sched.AddTicker("expire_friend_requests", time.Hour, func(ctx context.Context) error {
		_, err := socialSvc.ExpireStaleRequests(ctx, socialCfg.RequestTTL)
		return err
	})

	// ---- Gin HTTP Server ----
	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(sec.RateLimitRPS), sec.RateLimitBurst))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	sseH := sse.NewHandler(pubsub, logger)
	api := r.Group("/api")
	{
		authed := api.Group("")
		authed.Use(mw.Auth(sec, directory))
		apirest.NewSocialHandler(socialSvc, auditSvc, socialCfg).Register(authed)
		apirest.NewNotificationHandler(notifySvc).Register(authed)

		adminG := api.Group("/admin")
		adminG.Use(apirest.AdminAuth(adminKey))
		apirest.NewAdminHandler(socialSvc, auditSvc, sched, sseH, logger).Register(adminG)
	}
	r.GET("/sse", mw.Auth(sec, directory), sseH.ServeSSE)

	// ---- Start server ----
	server := httptest.NewServer(r)

	return &TestServer{
		DB:         db,
		Cache:      c,
		PubSub:     pubsub,
		Social:     socialSvc,
		Dispatcher: dispatcher,
		Server:     server,
		URL:        server.URL,
		Sec:        sec,
		audit:      auditSvc,
		sched:      sched,
	}
}

// Close shuts down the test server and background workers.
func (ts *TestServer) Close() {
	ts.Server.Close()
	ts.sched.Stop()
	ts.Dispatcher.Stop()
	ts.audit.Stop(context.Background())
}

// --- HTTP helpers ---

func (ts *TestServer) do(t *testing.T, method, path string, body interface{}, token string, headers ...string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, bodyReader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// PostJSON sends a POST request with JSON body and optional Bearer token.
func (ts *TestServer) PostJSON(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodPost, path, body, token)
}

// Get sends a GET request with optional Bearer token.
func (ts *TestServer) Get(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodGet, path, nil, token)
}

// Delete sends a DELETE request with optional Bearer token.
func (ts *TestServer) Delete(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodDelete, path, nil, token)
}

// AdminPost sends a POST request carrying the admin key.
func (ts *TestServer) AdminPost(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodPost, path, body, "", "X-Admin-Key", adminKey)
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// --- Member helpers ---

var nameSeq atomic.Int64

// UniqueID returns prefix with a process-unique suffix.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, nameSeq.Add(1))
}

// NewMember creates an active member and returns its ID and a signed token.
func (ts *TestServer) NewMember(t *testing.T, nickname string) (int64, string) {
	t.Helper()
	id := testutil.CreateMembers(t, ts.DB, nickname)[0]
	token, err := mw.GenerateToken(id, ts.Sec.JWTSecret, time.Hour)
	require.NoError(t, err)
	return id, token
}

// SendRequest sends a friend request over HTTP and returns its ID.
func (ts *TestServer) SendRequest(t *testing.T, token string, target int64) int64 {
	t.Helper()
	resp := ts.PostJSON(t, "/api/social/requests", map[string]int64{"target_id": target}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out map[string]interface{}
	ReadJSON(t, resp, &out)
	return int64(out["request_id"].(float64))
}

// --- SSE client ---

// SSEFrame is one server-sent event.
type SSEFrame struct {
	Event string
	Data  string
}

// SSEClient reads frames from an open /sse stream on a background goroutine.
type SSEClient struct {
	resp   *http.Response
	t      *testing.T
	frames chan SSEFrame
}

// ConnectSSE opens the push stream for token and waits for the connected frame.
func (ts *TestServer) ConnectSSE(t *testing.T, token string) *SSEClient {
	t.Helper()
	resp, err := http.Get(ts.URL + "/sse?token=" + token)
	require.NoError(t, err, "SSE connect failed")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sc := &SSEClient{resp: resp, t: t, frames: make(chan SSEFrame, 64)}
	go sc.readLoop()
	sc.Expect("connected", 2*time.Second)
	return sc
}

func (sc *SSEClient) readLoop() {
	defer close(sc.frames)
	scanner := bufio.NewScanner(sc.resp.Body)
	var f SSEFrame
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if f.Event != "" {
				sc.frames <- f
			}
			f = SSEFrame{}
		case strings.HasPrefix(line, "event: "):
			f.Event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			f.Data = strings.TrimPrefix(line, "data: ")
		}
	}
}

// Expect waits for the next frame named event, skipping others.
func (sc *SSEClient) Expect(event string, timeout time.Duration) SSEFrame {
	sc.t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case f, ok := <-sc.frames:
			require.True(sc.t, ok, "SSE stream closed while waiting for %q", event)
			if f.Event == event {
				return f
			}
		case <-deadline:
			sc.t.Fatalf("timeout waiting for SSE event %q", event)
		}
	}
}

// ExpectNone asserts that no frame named event arrives within wait.
func (sc *SSEClient) ExpectNone(event string, wait time.Duration) {
	sc.t.Helper()
	deadline := time.After(wait)
	for {
		select {
		case f, ok := <-sc.frames:
			if !ok {
				return
			}
			if f.Event == event {
				sc.t.Fatalf("unexpected SSE event %q: %s", event, f.Data)
			}
		case <-deadline:
			return
		}
	}
}

// Close ends the stream.
func (sc *SSEClient) Close() {
	sc.resp.Body.Close()
}
