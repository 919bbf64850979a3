package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"finfeed/internal/config"
	"finfeed/internal/domain"
	"finfeed/internal/feed"
	"finfeed/internal/usecase"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "key-alice"

type stubSource struct {
	mu    sync.Mutex
	items []domain.Article
	err   error
}

func (s *stubSource) Fetch(ctx context.Context, _ domain.Filter) ([]domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items, s.err
}

func (s *stubSource) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type stubArticles map[string]domain.Article

func (s stubArticles) Get(_ context.Context, id string) (domain.Article, error) {
	if a, ok := s[id]; ok {
		return a, nil
	}
	return domain.Article{}, domain.ErrArticleNotFound
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func article(id, category string, day int, beginner bool) domain.Article {
	return domain.Article{
		ID:            id,
		Title:         "title " + id,
		Category:      category,
		Beginner:      beginner,
		PublishedDate: domain.Date{Year: 2024, Month: 6, Day: day},
		ExternalLinks: []string{},
	}
}

type testEnv struct {
	server   *httptest.Server
	client   *http.Client
	source   *stubSource
	registry *usecase.SessionRegistry
}

func newTestEnv(t *testing.T, db pinger) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	src := &stubSource{items: []domain.Article{
		article("a1", "Stock", 8, false),
		article("a2", "Tax", 7, false),
		article("a3", "Crypto", 8, true),
	}}
	registry := usecase.NewSessionRegistry(func(string) *feed.ViewModel {
		return feed.NewViewModel(src, feed.NewArranger(rand.NewPCG(1, 2)), log)
	}, log)

	store := sessions.NewCookieStore([]byte(strings.Repeat("k", 32)))
	store.Options = &sessions.Options{Path: "/", MaxAge: 3600, HttpOnly: true}
	auth := NewSessionAuth(store, map[string]string{testAPIKey: "alice"}, log)
	categories := config.DefaultCategories()
	articles := stubArticles{"a1": article("a1", "Stock", 8, false)}
	h := NewHandler(log, registry, usecase.NewArticleGetterUseCase(articles), auth, categories, db)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "finfeed_up 1\n")
	})

	srv := httptest.NewServer(NewServer(log, h, metrics))
	t.Cleanup(func() {
		srv.Close()
		registry.CloseAll()
	})
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testEnv{server: srv, client: &http.Client{Jar: jar}, source: src, registry: registry}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (e *testEnv) signIn(t *testing.T) {
	t.Helper()
	resp, _ := e.do(t, http.MethodPost, "/api/session", map[string]string{"api_key": testAPIKey})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func decodeState(t *testing.T, data []byte) stateResponse {
	t.Helper()
	var s stateResponse
	require.NoError(t, json.Unmarshal(data, &s))
	return s
}

func itemIDs(items []domain.Article) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestFeedRoutes_RequireSession(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/feed"},
		{http.MethodPut, "/api/feed/filter"},
		{http.MethodPost, "/api/feed/refresh"},
		{http.MethodGet, "/api/articles/a1"},
		{http.MethodDelete, "/api/session"},
	} {
		resp, _ := env.do(t, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", tc.method, tc.path)
	}
	assert.Equal(t, 0, env.registry.Len())
}

func TestSignIn_Rejections(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, _ := env.do(t, http.MethodPost, "/api/session", map[string]string{"api_key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/session", map[string]string{"token": testAPIKey})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFeedFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	env.signIn(t)

	resp, data := env.do(t, http.MethodGet, "/api/feed?wait=2s", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decodeState(t, data)
	assert.Equal(t, "ready", state.Status)
	assert.Nil(t, state.Error)
	assert.Equal(t, []string{"a1", "a2"}, itemIDs(state.Items))
	assert.Equal(t, []sectionDTO{{Date: "2024-06-08", Count: 1}, {Date: "2024-06-07", Count: 1}}, state.Sections)
	assert.Equal(t, []string{}, state.Filter.Interests)

	resp, data = env.do(t, http.MethodPut, "/api/feed/filter", map[string]any{"interests": []string{"tax"}})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	accepted := decodeState(t, data)
	assert.Greater(t, accepted.Token, state.Token)

	_, data = env.do(t, http.MethodGet, "/api/feed?wait=2s", nil)
	state = decodeState(t, data)
	assert.Equal(t, "ready", state.Status)
	assert.Equal(t, []string{"a2"}, itemIDs(state.Items))
	assert.Equal(t, []string{"tax"}, state.Filter.Interests)

	resp, _ = env.do(t, http.MethodPut, "/api/feed/filter", map[string]any{"beginner": true, "interests": []string{}})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	_, data = env.do(t, http.MethodGet, "/api/feed?wait=2s", nil)
	assert.Equal(t, []string{"a3"}, itemIDs(decodeState(t, data).Items))

	resp, data = env.do(t, http.MethodPost, "/api/feed/refresh", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Contains(t, []string{"refreshing", "ready"}, decodeState(t, data).Status)

	resp, _ = env.do(t, http.MethodDelete, "/api/session", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, env.registry.Len())

	resp, _ = env.do(t, http.MethodGet, "/api/feed", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStreamFeed_EndsOnSignOut(t *testing.T) {
	env := newTestEnv(t, nil)
	env.signIn(t)

	resp, err := env.client.Get(env.server.URL + "/api/feed/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body := make(chan string, 1)
	go func() {
		data, _ := io.ReadAll(resp.Body)
		body <- string(data)
	}()

	vm := env.registry.Get("alice")
	require.Eventually(t, func() bool { return vm.State().Status == feed.StatusReady }, 2*time.Second, 10*time.Millisecond)

	signOut, _ := env.do(t, http.MethodDelete, "/api/session", nil)
	require.Equal(t, http.StatusNoContent, signOut.StatusCode)

	select {
	case data := <-body:
		assert.Contains(t, data, "event: state")
		assert.Contains(t, data, `"status":"idle"`)
	case <-time.After(2 * time.Second):
		t.Fatal("stream stayed open after sign out")
	}
}

func TestFeed_FailureThenRetry(t *testing.T) {
	env := newTestEnv(t, nil)
	env.source.fail(domain.NewNetworkError(errors.New("connection refused")))
	env.signIn(t)

	_, data := env.do(t, http.MethodGet, "/api/feed?wait=2s", nil)
	state := decodeState(t, data)
	require.Equal(t, "failed", state.Status)
	require.NotNil(t, state.Error)
	assert.Equal(t, "network", state.Error.Kind)
	assert.Equal(t, "Failed to load articles", state.Error.Message)
	assert.Empty(t, state.Items)

	env.source.fail(nil)
	resp, _ := env.do(t, http.MethodPost, "/api/feed/refresh", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	_, data = env.do(t, http.MethodGet, "/api/feed?wait=2s", nil)
	state = decodeState(t, data)
	assert.Equal(t, "ready", state.Status)
	assert.Len(t, state.Items, 2)
}

func TestFeed_InvalidParameters(t *testing.T) {
	env := newTestEnv(t, nil)
	env.signIn(t)

	resp, _ := env.do(t, http.MethodGet, "/api/feed?wait=soon", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPut, "/api/feed/filter", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetArticle(t *testing.T) {
	env := newTestEnv(t, nil)
	env.signIn(t)

	resp, data := env.do(t, http.MethodGet, "/api/articles/a1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got domain.Article
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, domain.Date{Year: 2024, Month: 6, Day: 8}, got.PublishedDate)

	resp, data = env.do(t, http.MethodGet, "/api/articles/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Article not found"}`, string(data))
}

func TestPublicRoutes(t *testing.T) {
	env := newTestEnv(t, stubPinger{})

	resp, data := env.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))
	_, err := uuid.Parse(resp.Header.Get(requestIDHeader))
	assert.NoError(t, err)

	resp, data = env.do(t, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cats []config.Category
	require.NoError(t, json.Unmarshal(data, &cats))
	assert.Len(t, cats, 8)
	assert.Equal(t, "Mutual Fund", cats[0].Title)

	resp, data = env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "finfeed_up 1")

	resp, _ = env.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth_DatabaseDown(t *testing.T) {
	env := newTestEnv(t, stubPinger{err: errors.New("down")})

	resp, _ := env.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)
	req, err := http.NewRequest(http.MethodOptions, env.server.URL+"/api/feed", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")

	resp, err := env.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestRequestID_KeepsClientUUID(t *testing.T) {
	id := uuid.NewString()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, id)

	var seen string
	requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = getRequestID(r.Context())
	})).ServeHTTP(rec, req)

	assert.Equal(t, id, seen)
	assert.Equal(t, id, rec.Header().Get(requestIDHeader))
}

func TestSections(t *testing.T) {
	items := []domain.Article{
		article("a", "Tax", 8, false),
		article("b", "Tax", 8, false),
		article("c", "Tax", 7, false),
		{ID: "d"},
	}

	assert.Equal(t, []sectionDTO{
		{Date: "2024-06-08", Count: 2},
		{Date: "2024-06-07", Count: 1},
		{Date: "Unknown", Count: 1},
	}, sections(items))
	assert.Equal(t, []sectionDTO{}, sections(nil))
}
