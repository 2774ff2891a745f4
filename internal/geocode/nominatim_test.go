package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bahon/internal/config"
	"bahon/internal/domain"
	"bahon/internal/logging"
	"bahon/internal/redis"
)

func newTestClient(t *testing.T, serverURL string, cache redis.PlaceCacheInterface) *Client {
	t.Helper()
	return NewClient(config.GeocoderConfig{
		BaseURL:   serverURL,
		UserAgent: "bahon-test/1.0",
		Timeout:   200 * time.Millisecond,
		CacheTTL:  time.Hour,
	}, cache, logging.Discard())
}

func TestReverseGeocode_ReturnsDisplayName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "12.01", r.URL.Query().Get("lat"))
		assert.Equal(t, "77", r.URL.Query().Get("lon"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "bahon-test/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"display_name":"Hebbal, Bengaluru"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	assert.Equal(t, "Hebbal, Bengaluru", client.ReverseGeocode(context.Background(), 12.01, 77.0))
}

func TestReverseGeocode_FailuresYieldUnknown(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>`))
			},
		},
		{
			name: "missing display name",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
			},
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(500 * time.Millisecond)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := newTestClient(t, server.URL, nil)

			assert.Equal(t, domain.UnknownPlace, client.ReverseGeocode(context.Background(), 12.0, 77.0))
		})
	}
}

func TestReverseGeocode_InvalidCoordinateSkipsLookup(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	assert.Equal(t, domain.UnknownPlace, client.ReverseGeocode(context.Background(), 91, 0))
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestReverseGeocode_UsesCache(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"display_name":"Majestic"}`))
	}))
	defer server.Close()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	client := newTestClient(t, server.URL, redis.NewCacheStore(rdb))
	ctx := context.Background()

	require.Equal(t, "Majestic", client.ReverseGeocode(ctx, 12.9767, 77.5713))
	require.Equal(t, "Majestic", client.ReverseGeocode(ctx, 12.9767, 77.5713))

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
