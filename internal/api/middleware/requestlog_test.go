package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		method        string
		path          string
		status        int
		providedReqID string
		wantLogFields []string
	}{
		{
			name:   "logs GET request with generated ID",
			method: http.MethodGet,
			path:   "/api/v1/status",
			status: http.StatusOK,
			wantLogFields: []string{
				"method=GET",
				"path=/api/v1/status",
				"status=200",
				"duration_ms=",
				"request_id=",
			},
		},
		{
			name:   "logs POST request",
			method: http.MethodPost,
			path:   "/api/v1/status",
			status: http.StatusCreated,
			wantLogFields: []string{
				"method=POST",
				"status=201",
			},
		},
		{
			name:   "server error logged at error level",
			method: http.MethodGet,
			path:   "/api/v1/queries",
			status: http.StatusInternalServerError,
			wantLogFields: []string{
				"level=ERROR",
				"status=500",
			},
		},
		{
			name:          "uses provided request ID",
			method:        http.MethodGet,
			path:          "/test",
			status:        http.StatusOK,
			providedReqID: "custom-req-id-123",
			wantLogFields: []string{
				"request_id=custom-req-id-123",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			e := echo.New()
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			if tt.providedReqID != "" {
				req.Header.Set(requestIDHeader, tt.providedReqID)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			handler := RequestLog(logger)(func(c echo.Context) error {
				return c.NoContent(tt.status)
			})

			err := handler(c)
			require.NoError(t, err)

			logOutput := buf.String()
			for _, field := range tt.wantLogFields {
				assert.Contains(t, logOutput, field)
			}

			// Response should have the request ID header.
			respID := rec.Header().Get(requestIDHeader)
			assert.NotEmpty(t, respID)

			if tt.providedReqID != "" {
				assert.Equal(t, tt.providedReqID, respID)
			}

			// Context should have request_id.
			assert.Equal(t, respID, RequestID(c))
		})
	}
}

func TestRequestLog_ProbeSuppression(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		statuses []int
		// logged[i] reports whether request i adds a log line.
		logged []bool
		// level is expected in the output when set.
		level string
	}{
		{
			name:     "healthz logs only its first success",
			path:     "/healthz",
			statuses: []int{http.StatusOK, http.StatusOK, http.StatusOK},
			logged:   []bool{true, false, false},
		},
		{
			name:     "readyz failures are always logged at warn",
			path:     "/readyz",
			statuses: []int{http.StatusServiceUnavailable, http.StatusServiceUnavailable},
			logged:   []bool{true, true},
			level:    "level=WARN",
		},
		{
			name:     "readyz failure after suppressed successes",
			path:     "/readyz",
			statuses: []int{http.StatusOK, http.StatusOK, http.StatusServiceUnavailable, http.StatusOK},
			logged:   []bool{true, false, true, false},
			level:    "level=WARN",
		},
		{
			name:     "api paths are never suppressed",
			path:     "/api/v1/status",
			statuses: []int{http.StatusOK, http.StatusOK},
			logged:   []bool{true, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			e := echo.New()
			mw := RequestLog(slog.New(slog.NewTextHandler(&buf, nil)))

			for i, status := range tt.statuses {
				handler := mw(func(c echo.Context) error {
					return c.NoContent(status)
				})

				before := buf.Len()
				req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
				require.NoError(t, handler(e.NewContext(req, httptest.NewRecorder())))

				if tt.logged[i] {
					assert.Greater(t, buf.Len(), before, "request %d should be logged", i+1)
					assert.Contains(t, buf.String()[before:], "path="+tt.path)
				} else {
					assert.Equal(t, before, buf.Len(), "request %d should be suppressed", i+1)
				}
			}

			if tt.level != "" {
				assert.Contains(t, buf.String(), tt.level)
			}
		})
	}
}

func TestRequestID_Unset(t *testing.T) {
	t.Parallel()

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", http.NoBody), httptest.NewRecorder())
	assert.Empty(t, RequestID(c))
}
