// Package yandex implements domain.Geocoder against the Yandex HTTP Geocoder API.
package yandex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/restaurant-dispatch-service/internal/domain"
	"github.com/couchcryptid/restaurant-dispatch-service/internal/observability"
)

// DefaultBaseURL is the public Yandex geocoder endpoint.
const DefaultBaseURL = "https://geocode-maps.yandex.ru/1.x"

// ErrMalformedResponse is returned when a response cannot be interpreted.
var ErrMalformedResponse = errors.New("malformed geocoder response")

// Client implements domain.Geocoder using the Yandex Geocoder API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a geocoding client. timeout bounds every request.
func NewClient(apiKey, baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// Geocode resolves an address to the coordinate of the most relevant match.
// An address with no matches yields (domain.Unresolved, nil).
func (c *Client) Geocode(ctx context.Context, address string) (domain.Coordinate, error) {
	params := url.Values{
		"geocode": {address},
		"apikey":  {c.apiKey},
		"format":  {"json"},
		"results": {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.Unresolved, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.Unresolved, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Unresolved, fmt.Errorf("geocoder API error: status %d: %s", resp.StatusCode, body)
	}

	var geoResp response
	if err := json.NewDecoder(resp.Body).Decode(&geoResp); err != nil {
		return domain.Unresolved, fmt.Errorf("%w: decode: %v", ErrMalformedResponse, err)
	}

	if geoResp.Response.GeoObjectCollection.FeatureMember == nil {
		return domain.Unresolved, fmt.Errorf("%w: missing featureMember", ErrMalformedResponse)
	}
	members := *geoResp.Response.GeoObjectCollection.FeatureMember
	if len(members) == 0 {
		c.logger.Debug("geocoder found no match", "address", address)
		return domain.Unresolved, nil
	}

	return parsePos(members[0].GeoObject.Point.Pos)
}

// parsePos decodes a "lon lat" position string.
func parsePos(pos string) (domain.Coordinate, error) {
	fields := strings.Fields(pos)
	if len(fields) != 2 {
		return domain.Unresolved, fmt.Errorf("%w: pos %q", ErrMalformedResponse, pos)
	}
	lon, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return domain.Unresolved, fmt.Errorf("%w: longitude %q", ErrMalformedResponse, fields[0])
	}
	lat, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return domain.Unresolved, fmt.Errorf("%w: latitude %q", ErrMalformedResponse, fields[1])
	}

	coord := domain.NewCoordinate(lat, lon)
	if !coord.Valid() {
		return domain.Unresolved, fmt.Errorf("%w: pos %q out of range", ErrMalformedResponse, pos)
	}
	return coord, nil
}

// Geocoder API response types.

type response struct {
	Response struct {
		GeoObjectCollection struct {
			// Nil when the payload has no featureMember list at all.
			FeatureMember *[]featureMember `json:"featureMember"`
		} `json:"GeoObjectCollection"`
	} `json:"response"`
}

type featureMember struct {
	GeoObject geoObject `json:"GeoObject"`
}

type geoObject struct {
	Name  string `json:"name"`
	Point struct {
		Pos string `json:"pos"` // "lon lat"
	} `json:"Point"`
}
