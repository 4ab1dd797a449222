package api

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/donaldgifford/listing-notifier/pkg/types"
)

type stubLoop struct {
	ready bool
}

func (s *stubLoop) Ready() bool { return s.ready }

func (*stubLoop) Status() domain.Status {
	return domain.Status{
		FatalCeiling: 100,
		Iterations:   1,
		Queries:      []domain.QueryStatus{{Key: "iphone", Terms: "iphone", Seen: 3}},
	}
}

func (*stubLoop) Queries() []domain.Query { return []domain.Query{{Terms: "iphone"}} }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServer_Routes(t *testing.T) {
	t.Parallel()

	srv := NewServer(Config{Host: "127.0.0.1", Port: 8080}, &stubLoop{ready: true}, "test", quietLogger())

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "healthz", path: "/healthz", wantStatus: http.StatusOK, wantBody: `"ok"`},
		{name: "readyz", path: "/readyz", wantStatus: http.StatusOK, wantBody: `"ready"`},
		{name: "metrics", path: "/metrics", wantStatus: http.StatusOK, wantBody: "listing_notifier_"},
		{name: "status", path: "/api/v1/status", wantStatus: http.StatusOK, wantBody: `"seen":3`},
		{name: "queries", path: "/api/v1/queries", wantStatus: http.StatusOK, wantBody: `"key":"iphone"`},
		{name: "query", path: "/api/v1/queries/iphone", wantStatus: http.StatusOK, wantBody: `"terms":"iphone"`},
		{name: "unknown query", path: "/api/v1/queries/ipad", wantStatus: http.StatusNotFound},
		{name: "openapi", path: "/openapi.json", wantStatus: http.StatusOK, wantBody: "get-status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestServer_NotReady(t *testing.T) {
	t.Parallel()

	srv := NewServer(Config{}, &stubLoop{}, "test", quietLogger())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_OpenAPI(t *testing.T) {
	t.Parallel()

	srv := NewServer(Config{}, &stubLoop{}, "1.2.3", quietLogger())
	doc := srv.OpenAPI()
	require.NotNil(t, doc)
	assert.Equal(t, "1.2.3", doc.Info.Version)
	assert.Contains(t, doc.Paths, "/api/v1/status")
	assert.Contains(t, doc.Paths, "/api/v1/queries/{key}")
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	srv := NewServer(Config{Host: "127.0.0.1", Port: port}, &stubLoop{ready: true}, "test", quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + srv.cfg.Addr() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestConfig_Addr(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0.0.0.0:8080", Config{Host: "0.0.0.0", Port: 8080}.Addr())
	assert.Equal(t, "[::1]:9090", Config{Host: "::1", Port: 9090}.Addr())
}
