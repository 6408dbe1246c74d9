package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/newspulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRemoteAddr = "1.2.3.4:1234"

func TestRateLimiterAllowsRequestsUnderLimit(t *testing.T) {
	e := echo.New()
	mw := newRateLimiter(10, 3, nil)

	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.RemoteAddr = testRemoteAddr
		rec := httptest.NewRecorder()

		require.NoError(t, handler(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiterBlocksExcessiveRequests(t *testing.T) {
	e := echo.New()
	denied := 0
	mw := newRateLimiter(0.01, 1, func() { denied++ })

	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	codes := make([]int, 0, 2)
	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.RemoteAddr = testRemoteAddr
		rec := httptest.NewRecorder()
		require.NoError(t, handler(e.NewContext(req, rec)))
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 1, denied)
}

func TestErrorHandlingMiddlewareMapsKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"auth", domain.NewAuthError("decode", domain.ErrInvalidToken), http.StatusUnauthorized},
		{"serialization", domain.NewSerializationError("decode", assert.AnError), http.StatusBadRequest},
		{"storage", domain.NewStorageError("list", assert.AnError), http.StatusBadGateway},
		{"unknown", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			err := errorHandlingMiddleware()(func(echo.Context) error { return tt.err })(c)

			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestGlobalConnectionLimiter(t *testing.T) {
	l := NewGlobalConnectionLimiter(2)

	assert.True(t, l.Acquire())
	assert.True(t, l.Acquire())
	assert.False(t, l.Acquire())

	l.Release()
	assert.True(t, l.Acquire())
	assert.Equal(t, int64(2), l.Current())
}

func TestCheckOrigin(t *testing.T) {
	check := NewCheckOrigin("https://news.example.com/app", false)
	devCheck := NewCheckOrigin("", true)

	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	assert.True(t, check(req("")))
	assert.True(t, check(req("https://news.example.com")))
	assert.False(t, check(req("https://evil.example.org")))
	assert.False(t, check(req("http://localhost:3000")))
	assert.True(t, devCheck(req("http://localhost:3000")))
	assert.False(t, devCheck(req("https://news.example.com")))
}
