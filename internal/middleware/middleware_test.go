package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bahon/internal/logging"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func newIdempotentRouter(client *redis.Client, status int, calls *int32) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(IdempotencyMiddleware(client, logging.Discard()))
	handler := func(c *gin.Context) {
		n := atomic.AddInt32(calls, 1)
		c.JSON(status, gin.H{"call": n})
	}
	router.POST("/v1/vehicles/:id/scans", handler)
	router.GET("/v1/fare", handler)
	return router
}

func send(router *gin.Engine, method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(`{}`))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	_, client := setupRedis(t)
	var calls int32
	router := newIdempotentRouter(client, http.StatusOK, &calls)

	first := send(router, http.MethodPost, "/v1/vehicles/bus-1/scans", "abc")
	second := send(router, http.MethodPost, "/v1/vehicles/bus-1/scans", "abc")

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replay"))
}

func TestIdempotency_KeysAreScopedToRoute(t *testing.T) {
	_, client := setupRedis(t)
	var calls int32
	router := newIdempotentRouter(client, http.StatusOK, &calls)

	send(router, http.MethodPost, "/v1/vehicles/bus-1/scans", "abc")
	send(router, http.MethodPost, "/v1/vehicles/bus-2/scans", "abc")

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdempotency_SkipsWithoutKeyOrOnReads(t *testing.T) {
	_, client := setupRedis(t)
	var calls int32
	router := newIdempotentRouter(client, http.StatusOK, &calls)

	send(router, http.MethodPost, "/v1/vehicles/bus-1/scans", "")
	send(router, http.MethodPost, "/v1/vehicles/bus-1/scans", "")
	send(router, http.MethodGet, "/v1/fare", "abc")
	send(router, http.MethodGet, "/v1/fare", "abc")

	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestIdempotency_RetryableResponsesAreNotStored(t *testing.T) {
	for _, status := range []int{http.StatusConflict, http.StatusServiceUnavailable} {
		_, client := setupRedis(t)
		var calls int32
		router := newIdempotentRouter(client, status, &calls)

		send(router, http.MethodPost, "/v1/vehicles/bus-1/scans", "abc")
		send(router, http.MethodPost, "/v1/vehicles/bus-1/scans", "abc")

		assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "status %d", status)
	}
}

func TestIdempotency_InFlightKeyConflicts(t *testing.T) {
	mr, client := setupRedis(t)
	var calls int32
	router := newIdempotentRouter(client, http.StatusOK, &calls)

	require.NoError(t, mr.Set(idempotencyPrefix+"POST:/v1/vehicles/bus-1/scans:abc:pending", "1"))

	rec := send(router, http.MethodPost, "/v1/vehicles/bus-1/scans", "abc")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestIdempotency_RedisDownFallsThrough(t *testing.T) {
	mr, client := setupRedis(t)
	var calls int32
	router := newIdempotentRouter(client, http.StatusOK, &calls)
	mr.Close()

	rec := send(router, http.MethodPost, "/v1/vehicles/bus-1/scans", "abc")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORSMiddleware())
	router.GET("/v1/fare", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/v1/fare", nil)
	req.Header.Set("Origin", "https://example.org")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	req = httptest.NewRequest(http.MethodGet, "/v1/fare", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/v1/fare", nil)
	req.Header.Set("Origin", "https://example.org")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
