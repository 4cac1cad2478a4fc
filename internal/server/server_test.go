package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/buildenergy/epmod/internal/testutil"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	mcpSrv := mcpserver.NewMCPServer("epmod-test", "test")
	return New(Config{
		MCPServer:    mcpSrv,
		Logger:       testutil.TestLogger(),
		Addr:         ":0",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		Version:      "test",
	})
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestMCPEndpointMounted(t *testing.T) {
	srv := newTestServer(t)

	// The StreamableHTTP GET handler holds the connection open as an SSE
	// stream until the request context ends, so give it a deadline.
	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp", nil).WithContext(ctx))

	// The StreamableHTTP handler answers; anything but a mux 404 proves
	// the mount.
	assert.NotEqual(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
