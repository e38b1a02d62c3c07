package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/localizador/backend/internal/geo"
)

const (
	defaultGoogleMatrixURL = "https://maps.googleapis.com/maps/api/distancematrix/json"
	googleMaxDestinations  = 25
)

var ErrMissingAPIKey = errors.New("google maps api key is not set")

// GoogleProvider calls the Google Distance Matrix API. The API caps one
// request at 25 destinations.
type GoogleProvider struct {
	APIKey   string
	Endpoint string
	Language string
	Client   *http.Client
}

type googleMatrixResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Rows         []struct {
		Elements []googleElement `json:"elements"`
	} `json:"rows"`
}

type googleElement struct {
	Status   string `json:"status"`
	Distance struct {
		Value float64 `json:"value"`
		Text  string  `json:"text"`
	} `json:"distance"`
	Duration struct {
		Value float64 `json:"value"`
		Text  string  `json:"text"`
	} `json:"duration"`
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) MaxDestinations() int { return googleMaxDestinations }

func (p *GoogleProvider) Matrix(ctx context.Context, origin geo.Point, destinations []geo.Point) ([]Result, error) {
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if len(destinations) == 0 {
		return nil, nil
	}
	if len(destinations) > googleMaxDestinations {
		return nil, fmt.Errorf("google distance matrix accepts at most %d destinations, got %d", googleMaxDestinations, len(destinations))
	}
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	endpoint := p.Endpoint
	if endpoint == "" {
		endpoint = defaultGoogleMatrixURL
	}
	language := p.Language
	if language == "" {
		language = "pt-BR"
	}

	dests := make([]string, 0, len(destinations))
	for _, d := range destinations {
		dests = append(dests, googleCoord(d))
	}
	params := url.Values{}
	params.Set("origins", googleCoord(origin))
	params.Set("destinations", strings.Join(dests, "|"))
	params.Set("mode", "driving")
	params.Set("language", language)
	params.Set("key", p.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: google http error: %s", ErrVendorStatus, resp.Status)
	}

	var body googleMatrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return parseGoogleMatrix(body, len(destinations))
}

func parseGoogleMatrix(body googleMatrixResponse, n int) ([]Result, error) {
	if body.Status != "OK" {
		return nil, fmt.Errorf("%w: google status %s: %s", ErrVendorStatus, body.Status, body.ErrorMessage)
	}
	if len(body.Rows) == 0 {
		return nil, fmt.Errorf("%w: google matrix has no rows", ErrVendorStatus)
	}
	elements := body.Rows[0].Elements

	out := make([]Result, n)
	for i := 0; i < n; i++ {
		if i >= len(elements) {
			out[i] = Failed(ErrRouteNotFound)
			continue
		}
		el := elements[i]
		if el.Status != "OK" {
			out[i] = Failed(fmt.Errorf("%w: element status %s", ErrRouteNotFound, el.Status))
			continue
		}
		duration := el.Duration.Text
		if duration == "" {
			duration = FormatDuration(el.Duration.Value)
		}
		out[i] = Result{
			DistanceKm: el.Distance.Value / 1000,
			Duration:   duration,
			Seconds:    el.Duration.Value,
		}
	}
	return out, nil
}

func googleCoord(p geo.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lon, 'f', 6, 64)
}
