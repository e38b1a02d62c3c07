package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/localizador/backend/internal/geo"
)

const defaultOSRMURL = "https://router.project-osrm.org"

// OSRMProvider queries the OSRM table service for one origin against many
// destinations in a single call.
type OSRMProvider struct {
	BaseURL   string
	Profile   string
	ChunkSize int
	Client    *http.Client
}

type osrmTableResponse struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

func (p *OSRMProvider) Name() string { return "osrm" }

func (p *OSRMProvider) MaxDestinations() int {
	if p.ChunkSize <= 0 {
		return 25
	}
	return p.ChunkSize
}

func (p *OSRMProvider) Matrix(ctx context.Context, origin geo.Point, destinations []geo.Point) ([]Result, error) {
	if len(destinations) == 0 {
		return nil, nil
	}
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	base := strings.TrimRight(p.BaseURL, "/")
	if base == "" {
		base = defaultOSRMURL
	}
	profile := p.Profile
	if profile == "" {
		profile = "driving"
	}

	coords := make([]string, 0, len(destinations)+1)
	coords = append(coords, osrmCoord(origin))
	destIdx := make([]string, 0, len(destinations))
	for i, d := range destinations {
		coords = append(coords, osrmCoord(d))
		destIdx = append(destIdx, strconv.Itoa(i+1))
	}
	endpoint := fmt.Sprintf("%s/table/v1/%s/%s?sources=0&destinations=%s&annotations=distance,duration",
		base, profile, strings.Join(coords, ";"), strings.Join(destIdx, ";"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body osrmTableResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: osrm http error: %s", ErrVendorStatus, resp.Status)
		}
		return nil, err
	}
	return parseOSRMTable(body, len(destinations))
}

func parseOSRMTable(body osrmTableResponse, n int) ([]Result, error) {
	if body.Code != "Ok" {
		return nil, fmt.Errorf("%w: osrm code %s: %s", ErrVendorStatus, body.Code, body.Message)
	}
	if len(body.Distances) == 0 || len(body.Durations) == 0 {
		return nil, fmt.Errorf("%w: osrm table missing annotations", ErrVendorStatus)
	}
	distances := body.Distances[0]
	durations := body.Durations[0]

	out := make([]Result, n)
	for i := 0; i < n; i++ {
		if i >= len(distances) || i >= len(durations) || distances[i] == nil || durations[i] == nil {
			out[i] = Failed(ErrRouteNotFound)
			continue
		}
		seconds := *durations[i]
		out[i] = Result{
			DistanceKm: *distances[i] / 1000,
			Duration:   FormatDuration(seconds),
			Seconds:    seconds,
		}
	}
	return out, nil
}

// OSRM takes lon,lat order.
func osrmCoord(p geo.Point) string {
	return strconv.FormatFloat(p.Lon, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lat, 'f', 6, 64)
}
