package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-ticketing/internal/config"
)

// bodyTee passes the response through to the client and keeps a copy of
// the body while it fits in max bytes (0 means no limit).
type bodyTee struct {
	http.ResponseWriter
	status   int
	body     bytes.Buffer
	max      int
	overflow bool
}

func (t *bodyTee) WriteHeader(code int) {
	t.status = code
	t.ResponseWriter.WriteHeader(code)
}

func (t *bodyTee) Write(b []byte) (int, error) {
	switch {
	case t.overflow:
	case t.max > 0 && t.body.Len()+len(b) > t.max:
		t.overflow = true
		t.body.Reset()
	default:
		t.body.Write(b)
	}
	return t.ResponseWriter.Write(b)
}

func (t *bodyTee) Unwrap() http.ResponseWriter { return t.ResponseWriter }

// captured returns the response to store, or false when it is not a 200
// or its body was too large to keep whole.
func (t *bodyTee) captured(h http.Header) (cachedResponse, bool) {
	if t.status != http.StatusOK || t.overflow {
		return cachedResponse{}, false
	}
	return cachedResponse{Status: t.status, Header: h.Clone(), Body: bytes.Clone(t.body.Bytes())}, true
}

// cachedResponse is the value stored under a cache key.
type cachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

func parseCached(bs []byte) (cachedResponse, bool) {
	var cr cachedResponse
	if err := json.Unmarshal(bs, &cr); err != nil || cr.Status == 0 {
		return cachedResponse{}, false
	}
	return cr, true
}

// replay writes a stored response.  Content-Length is left to the server
// since the body is written in one piece.
func (cr cachedResponse) replay(c echo.Context) error {
	h := c.Response().Header()
	for k, vals := range cr.Header {
		if k == echo.HeaderContentLength {
			continue
		}
		h[k] = append([]string(nil), vals...)
	}
	h.Set("X-Cache", "HIT")
	return c.Blob(cr.Status, h.Get(echo.HeaderContentType), cr.Body)
}

// cacheKeyFrom builds a stable cache key honoring prefix and strategy.
// The concrete request path is used, not the route pattern, so
// /v1/shows/1/seats and /v1/shows/2/seats never share an entry.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
	r := c.Request()
	method := r.Method
	path := r.URL.Path
	query := r.URL.Query().Encode()

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "path":
		parts = append(parts, "path", path)
	case "method_path":
		parts = append(parts, "method", method, "path", path)
	case "method_path_query":
		parts = append(parts, "method", method, "path", path, "q", query)
	default: // "path_query"
		parts = append(parts, "path", path, "q", query)
	}

	tail := strings.Join(parts[1:], ":")
	sum := sha1.Sum([]byte(tail))
	return fmt.Sprintf("%s:%x", parts[0], sum[:])
}

// NewRedisCache caches successful responses (headers and body) in Redis for
// cfg.TTL.  Requests carrying an Authorization header bypass the cache so
// per-user responses are never shared.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !cfg.Methods[strings.ToUpper(req.Method)] || req.Header.Get(echo.HeaderAuthorization) != "" {
				return next(c)
			}
			key := cacheKeyFrom(cfg, c)

			if bs, err := rdb.Get(req.Context(), key).Bytes(); err == nil {
				if cr, ok := parseCached(bs); ok {
					return cr.replay(c)
				}
			}

			tee := &bodyTee{ResponseWriter: c.Response().Writer, status: http.StatusOK, max: cfg.MaxBodyBytes}
			c.Response().Writer = tee
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}

			cr, ok := tee.captured(c.Response().Header())
			if !ok {
				return nil
			}
			if payload, err := json.Marshal(cr); err == nil {
				_ = rdb.SetEx(context.WithoutCancel(req.Context()), key, payload, ttl).Err()
			}
			return nil
		}
	}
}
