package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/localizador/backend/internal/geo"
)

var ErrMissingAPIKey = errors.New("google maps api key is not set")

// GoogleGeocoder calls the Google Geocoding API.
type GoogleGeocoder struct {
	APIKey   string
	Endpoint string
	Region   string
	Client   *http.Client
}

type googleGeocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		PartialMatch     bool   `json:"partial_match"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func (g *GoogleGeocoder) Geocode(ctx context.Context, query string) (Result, error) {
	if strings.TrimSpace(g.APIKey) == "" {
		return Result{}, ErrMissingAPIKey
	}
	client := g.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	endpoint := g.Endpoint
	if endpoint == "" {
		endpoint = "https://maps.googleapis.com/maps/api/geocode/json"
	}

	params := url.Values{}
	params.Set("address", query)
	params.Set("key", g.APIKey)
	if g.Region != "" {
		params.Set("region", g.Region)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return Result{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("google geocode http error: %s", resp.Status)
	}

	var body googleGeocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, err
	}
	return parseGoogleGeocode(body)
}

func parseGoogleGeocode(body googleGeocodeResponse) (Result, error) {
	switch body.Status {
	case "OK":
	case "ZERO_RESULTS":
		return Result{}, ErrNotFound
	default:
		return Result{}, fmt.Errorf("google geocode status %s: %s", body.Status, body.ErrorMessage)
	}
	if len(body.Results) == 0 {
		return Result{}, ErrNotFound
	}
	first := body.Results[0]
	confidence := 1.0
	if first.PartialMatch {
		confidence = 0.5
	}
	return Result{
		Point:       geo.Point{Lat: first.Geometry.Location.Lat, Lon: first.Geometry.Location.Lng},
		DisplayName: first.FormattedAddress,
		Confidence:  confidence,
	}, nil
}
