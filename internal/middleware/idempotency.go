package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	idempotencyHeader     = "Idempotency-Key"
	idempotencyTTL        = 24 * time.Hour
	idempotencyPendingTTL = 30 * time.Second
	idempotencyPrefix     = "idempotency:"
)

// cachedResponse stores the response for idempotent requests.
type cachedResponse struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
	Headers    http.Header     `json:"headers"`
}

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key on mutating routes. A request arriving while the first one
// with the same key is still running gets 409.
func IdempotencyMiddleware(redisClient *redis.Client, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only apply to mutating methods.
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		cacheKey := idempotencyPrefix + c.Request.Method + ":" + c.Request.URL.Path + ":" + key
		pendingKey := cacheKey + ":pending"
		log := logger.WithField("idempotency_key", key)

		cached, err := getCachedResponse(ctx, redisClient, cacheKey)
		if err != nil && !errors.Is(err, redis.Nil) {
			// Redis error - proceed without idempotency.
			log.WithError(err).Warn("Idempotency lookup failed")
			c.Next()
			return
		}

		if cached != nil {
			for k, v := range cached.Headers {
				for _, val := range v {
					c.Header(k, val)
				}
			}
			c.Header("Idempotent-Replay", "true")
			c.Data(cached.StatusCode, "application/json", cached.Body)
			c.Abort()
			return
		}

		acquired, err := redisClient.SetNX(ctx, pendingKey, "1", idempotencyPendingTTL).Result()
		if err != nil {
			log.WithError(err).Warn("Idempotency lock failed")
			c.Next()
			return
		}
		if !acquired {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "request with this idempotency key is in progress"})
			return
		}

		// The request context may be done once the handler returns.
		storeCtx := context.WithoutCancel(ctx)
		defer redisClient.Del(storeCtx, pendingKey)

		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		if cacheable(c.Writer.Status()) {
			response := cachedResponse{
				StatusCode: c.Writer.Status(),
				Body:       w.body.Bytes(),
				Headers:    extractResponseHeaders(c),
			}
			if err := setCachedResponse(storeCtx, redisClient, cacheKey, &response, idempotencyTTL); err != nil {
				log.WithError(err).Warn("Failed to store idempotent response")
			}
		}
	}
}

// cacheable reports whether a response is final. Conflicts and server
// errors are left for the client to retry.
func cacheable(status int) bool {
	return status >= 200 && status < 500 && status != http.StatusConflict
}

// getCachedResponse retrieves a cached response from Redis.
func getCachedResponse(ctx context.Context, client *redis.Client, key string) (*cachedResponse, error) {
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}

	var cached cachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}

	return &cached, nil
}

// setCachedResponse stores a response in Redis.
func setCachedResponse(ctx context.Context, client *redis.Client, key string, response *cachedResponse, ttl time.Duration) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}

	return client.Set(ctx, key, data, ttl).Err()
}

// extractResponseHeaders extracts headers to cache.
func extractResponseHeaders(c *gin.Context) http.Header {
	headers := make(http.Header)
	if ct := c.Writer.Header().Get("Content-Type"); ct != "" {
		headers.Set("Content-Type", ct)
	}
	return headers
}
