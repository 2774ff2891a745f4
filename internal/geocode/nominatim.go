// Package geocode resolves coordinates to human-readable place names.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"

	"bahon/internal/config"
	"bahon/internal/domain"
	"bahon/internal/geo"
	"bahon/internal/redis"
)

// cacheCellPrecision groups nearby points (~150 m cells) under one cache entry.
const cacheCellPrecision = 7

// Geocoder resolves a point to a place name. Implementations never fail;
// they return domain.UnknownPlace instead.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) string
}

// Client is a Nominatim reverse-geocoding client.
type Client struct {
	baseURL    string
	userAgent  string
	cacheTTL   time.Duration
	httpClient *http.Client
	cache      redis.PlaceCacheInterface
	logger     logrus.FieldLogger
}

// NewClient creates a new Client. cache may be nil.
func NewClient(cfg config.GeocoderConfig, cache redis.PlaceCacheInterface, logger logrus.FieldLogger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		cacheTTL:   cfg.CacheTTL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cache,
		logger:     logger,
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
}

// ReverseGeocode returns the display name for a point, or "Unknown".
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) string {
	if !geo.ValidCoordinate(lat, lon) {
		return domain.UnknownPlace
	}

	cell := geo.CellWithPrecision(lat, lon, cacheCellPrecision)
	log := c.logger.WithFields(logrus.Fields{"lat": lat, "lon": lon, "cell": cell})

	if c.cache != nil {
		name, hit, err := c.cache.GetPlace(ctx, cell)
		if err != nil {
			log.WithError(err).Warn("Place cache read failed")
		} else if hit {
			return name
		}
	}

	name, err := c.lookup(ctx, lat, lon)
	if err != nil {
		log.WithError(err).Warn("Reverse geocoding failed")
		return domain.UnknownPlace
	}

	if c.cache != nil {
		if err := c.cache.SetPlace(ctx, cell, name, c.cacheTTL); err != nil {
			log.WithError(err).Warn("Place cache write failed")
		}
	}

	return name
}

func (c *Client) lookup(ctx context.Context, lat, lon float64) (string, error) {
	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	query.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	segment := newrelic.StartExternalSegment(newrelic.FromContext(ctx), req)
	defer segment.End()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	segment.Response = resp

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode geocoder response: %w", err)
	}

	if body.DisplayName == "" {
		return "", fmt.Errorf("geocoder returned no display name")
	}

	return body.DisplayName, nil
}
