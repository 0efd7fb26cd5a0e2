package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/stackchat/internal/agent"
	v1 "github.com/gosuda/stackchat/internal/api/v1"
	"github.com/gosuda/stackchat/internal/chat"
	"github.com/gosuda/stackchat/internal/config"
	"github.com/gosuda/stackchat/internal/metrics"
	"github.com/gosuda/stackchat/internal/server"
	"github.com/gosuda/stackchat/internal/server/middleware"
	"github.com/gosuda/stackchat/internal/stack/stacktest"
)

func testConfig() *config.Config {
	return &config.Config{
		Chat: config.ChatConfig{
			BankID:         "test_bank_235",
			ExamplePrompts: []string{"What topics are covered in the documents?"},
		},
		Server: config.ServerConfig{
			Addr:        ":0",
			CORSOrigins: []string{"*"},
		},
	}
}

func newServer(t *testing.T, rps float64, burst int, withMetrics bool) *server.Server {
	t.Helper()

	cfg, err := agent.NewConfig("Llama3.2-3B-Instruct")
	require.NoError(t, err)
	fake := stacktest.New()

	deps := server.Deps{
		Chat:    chat.NewService(fake, chat.Options{Agent: cfg}),
		Stack:   fake,
		Limiter: middleware.NewIPLimiter(t.Context(), rps, burst),
	}
	if withMetrics {
		deps.Metrics = metrics.New()
	}

	assets := fstest.MapFS{
		"index.html": {Data: []byte("<html>chat</html>")},
		"app.js":     {Data: []byte("console.log('chat')")},
	}
	return server.New(testConfig(), deps, assets)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	rec := get(t, newServer(t, 100, 100, false).Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_WidgetSettings(t *testing.T) {
	t.Parallel()

	rec := get(t, newServer(t, 100, 100, false).Handler(), "/api/v1/widget")
	require.Equal(t, http.StatusOK, rec.Code)

	var got v1.WidgetSettings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Llama3.2-3B-Instruct", got.Model)
	assert.Equal(t, "test_bank_235", got.BankID)
	assert.Equal(t, []string{"What topics are covered in the documents?"}, got.ExamplePrompts)
	assert.False(t, got.Watch)
}

func TestServer_Providers(t *testing.T) {
	t.Parallel()

	rec := get(t, newServer(t, 100, 100, false).Handler(), "/api/v1/providers")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "faiss-0")
}

func TestServer_APIRateLimited(t *testing.T) {
	t.Parallel()

	h := newServer(t, 0.001, 1, false).Handler()

	assert.Equal(t, http.StatusOK, get(t, h, "/api/v1/widget").Code)
	rec := get(t, h, "/api/v1/widget")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Health checks are not limited.
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	rec := get(t, newServer(t, 100, 100, true).Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stackchat_turns_active")

	// Without a recorder the route falls through to the widget.
	rec = get(t, newServer(t, 100, 100, false).Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<html>chat</html>")
}

func TestServer_SPAFallback(t *testing.T) {
	t.Parallel()

	h := newServer(t, 100, 100, false).Handler()

	rec := get(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<html>chat</html>")

	rec = get(t, h, "/app.js")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "console.log")

	rec = get(t, h, "/conversations/anything")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<html>chat</html>")
}

func TestServer_WatchNeedsPubSub(t *testing.T) {
	t.Parallel()

	cfg, err := agent.NewConfig("m")
	require.NoError(t, err)
	fake := stacktest.New()

	s := server.New(testConfig(), server.Deps{
		Chat:    chat.NewService(fake, chat.Options{Agent: cfg}),
		Stack:   fake,
		Limiter: middleware.NewIPLimiter(t.Context(), 100, 100),
	}, nil)

	rec := get(t, s.Handler(), "/ws/chat/0b6f3c3e-4d0c-4bb5-9f71-0c2f5a2b7c11/watch")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
