package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

const testSecret = "test-secret"

func whoami(c echo.Context) error {
	id, ok := UserID(c)
	return c.JSON(http.StatusOK, echo.Map{"id": id, "ok": ok, "role": Role(c)})
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func bearer(t *testing.T, uid uint64, role string) string {
	tok, err := utils.NewAccessToken(testSecret, uid, role, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(testSecret))

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"unauthorized"`)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", bearer(t, 7, "CUSTOMER"))
	rec = serve(e, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":7,"ok":true,"role":"CUSTOMER"}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.POST("/shows", whoami, JWTAuth(testSecret), RequireRole("ORGANIZER"))

	req := httptest.NewRequest(http.MethodPost, "/shows", nil)
	req.Header.Set("Authorization", bearer(t, 1, "CUSTOMER"))
	rec := serve(e, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"forbidden"`)

	req = httptest.NewRequest(http.MethodPost, "/shows", nil)
	req.Header.Set("Authorization", bearer(t, 1, "ORGANIZER"))
	assert.Equal(t, http.StatusOK, serve(e, req).Code)
}

func TestUserIDGuest(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	_, ok := UserID(c)
	assert.False(t, ok)
	assert.Equal(t, "anon", userKey(c))

	c.Set(ctxUserID, uint64(12))
	assert.Equal(t, "12", userKey(c))
}

func TestCacheKeyUsesConcretePath(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "p", KeyStrategy: "path_query"}

	key := func(target string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/v1/shows/:id/availability")
		return cacheKeyFrom(cfg, c)
	}

	assert.NotEqual(t, key("/v1/shows/1/availability"), key("/v1/shows/2/availability"))
	assert.Equal(t, key("/v1/shows/1/availability?a=1&b=2"), key("/v1/shows/1/availability?b=2&a=1"))
	assert.Regexp(t, `^p:[0-9a-f]{40}$`, key("/v1/shows/1/availability"))
}

func TestParseCached(t *testing.T) {
	bs, err := json.Marshal(cachedResponse{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   []byte(`{"ok":true}`),
	})
	require.NoError(t, err)

	cr, ok := parseCached(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, cr.Status)
	assert.Equal(t, "application/json", cr.Header.Get("Content-Type"))
	assert.Equal(t, `{"ok":true}`, string(cr.Body))

	for _, bad := range []string{"", "{", "{}", `{"status":0}`} {
		_, ok = parseCached([]byte(bad))
		assert.False(t, ok, "%q", bad)
	}
}

func TestCachedResponseReplay(t *testing.T) {
	cr := cachedResponse{
		Status: http.StatusOK,
		Header: http.Header{
			"Content-Type":   {"application/json"},
			"Content-Length": {"999"},
			"X-Cache":        {"MISS"},
			"X-Request-Id":   {"abc"},
		},
		Body: []byte(`{"seats":[]}`),
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/x", nil), rec)

	require.NoError(t, cr.replay(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"seats":[]}`, rec.Body.String())
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, "abc", rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("Content-Length"))
}

func TestBodyTeeCapture(t *testing.T) {
	write := func(limit, status int, chunks ...string) (*bodyTee, *httptest.ResponseRecorder) {
		rec := httptest.NewRecorder()
		tee := &bodyTee{ResponseWriter: rec, status: http.StatusOK, max: limit}
		if status != 0 {
			tee.WriteHeader(status)
		}
		for _, ch := range chunks {
			n, err := tee.Write([]byte(ch))
			require.NoError(t, err)
			require.Equal(t, len(ch), n)
		}
		return tee, rec
	}
	hdr := http.Header{"Content-Type": {"text/plain"}}

	tee, rec := write(0, 0, "hello ", "world")
	cr, ok := tee.captured(hdr)
	require.True(t, ok)
	assert.Equal(t, "hello world", string(cr.Body))
	assert.Equal(t, "hello world", rec.Body.String())

	tee, rec = write(8, 0, "hello ", "world")
	_, ok = tee.captured(hdr)
	assert.False(t, ok, "oversized body is not stored")
	assert.Equal(t, "hello world", rec.Body.String(), "client still gets the full body")

	tee, _ = write(0, http.StatusNotFound, "missing")
	_, ok = tee.captured(hdr)
	assert.False(t, ok, "only 200 responses are stored")
}

func TestRateKeyStrategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/reservations/hold", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/reservations/hold")
	c.Set(ctxUserID, uint64(5))

	assert.Equal(t, "rl:user:5", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c))
	assert.Equal(t, "rl:ip:10.0.0.9", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip"}, c))
	assert.Equal(t, "rl:ip:10.0.0.9:user:5:route:POST /v1/reservations/hold",
		buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_user_route"}, c))
}

func TestDisabledMiddlewarePassesThrough(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "ok") },
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil),
		NewRedisCache(config.CacheConfig{Enabled: true}, nil))

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestParseBucketResult(t *testing.T) {
	allowed, remaining, retry, ok := parseBucketResult([]any{int64(1), int64(4), int64(0)})
	require.True(t, ok)
	assert.True(t, allowed)
	assert.EqualValues(t, 4, remaining)
	assert.Zero(t, retry)

	allowed, _, retry, ok = parseBucketResult([]any{int64(0), "0", int64(1500)})
	require.True(t, ok)
	assert.False(t, allowed)
	assert.EqualValues(t, 1500, retry)

	_, _, _, ok = parseBucketResult("nope")
	assert.False(t, ok)
}
