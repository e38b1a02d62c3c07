package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/localizador/backend/internal/geo"
)

// NominatimGeocoder queries the OpenStreetMap Nominatim search API. The
// public instance allows one request per second, enforced by MinInterval.
type NominatimGeocoder struct {
	BaseURL      string
	UserAgent    string
	CountryCodes string
	MinInterval  time.Duration
	Timeout      time.Duration
	Client       *http.Client

	mu        sync.Mutex
	lastReqAt time.Time
}

type nominatimItem struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, query string) (Result, error) {
	if err := g.waitTurn(ctx); err != nil {
		return Result{}, err
	}
	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	baseURL := g.BaseURL
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}
	userAgent := g.UserAgent
	if userAgent == "" {
		userAgent = "localizador-tecnicos/1.0"
	}
	// The timeout covers the request only, not the wait for a slot.
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("addressdetails", "0")
	if g.CountryCodes != "" {
		params.Set("countrycodes", g.CountryCodes)
	}
	endpoint := fmt.Sprintf("%s/search?%s", baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("nominatim http error: %s", resp.Status)
	}

	var items []nominatimItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return Result{}, err
	}
	return parseNominatimItems(items)
}

func parseNominatimItems(items []nominatimItem) (Result, error) {
	if len(items) == 0 {
		return Result{}, ErrNotFound
	}
	lat, err := strconv.ParseFloat(items[0].Lat, 64)
	if err != nil {
		return Result{}, err
	}
	lon, err := strconv.ParseFloat(items[0].Lon, 64)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Point:       geo.Point{Lat: lat, Lon: lon},
		DisplayName: items[0].DisplayName,
		Confidence:  items[0].Importance,
	}, nil
}

// waitTurn books the next request slot and sleeps until it. A cancelled
// wait hands the slot back when no later caller has booked after it.
func (g *NominatimGeocoder) waitTurn(ctx context.Context) error {
	interval := g.MinInterval
	if interval <= 0 {
		interval = time.Second
	}
	g.mu.Lock()
	prev := g.lastReqAt
	slot := time.Now()
	if next := prev.Add(interval); next.After(slot) {
		slot = next
	}
	g.lastReqAt = slot
	g.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		g.mu.Lock()
		if g.lastReqAt.Equal(slot) {
			g.lastReqAt = prev
		}
		g.mu.Unlock()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
