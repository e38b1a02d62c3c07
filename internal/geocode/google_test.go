package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGoogleGeocoder(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"Av. Paulista, 1000","geometry":{"location":{"lat":-23.5646,"lng":-46.6527}}}]}`))
	}))
	defer srv.Close()

	g := &GoogleGeocoder{APIKey: "secret", Endpoint: srv.URL}
	res, err := g.Geocode(context.Background(), "Av. Paulista, 1000, São Paulo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "secret" {
		t.Fatalf("expected api key in query, got %q", gotKey)
	}
	if res.Point.Lat != -23.5646 || res.Point.Lon != -46.6527 {
		t.Fatalf("unexpected point: %+v", res.Point)
	}
}

func TestParseGoogleGeocodeStatuses(t *testing.T) {
	if _, err := parseGoogleGeocode(googleGeocodeResponse{Status: "ZERO_RESULTS"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := parseGoogleGeocode(googleGeocodeResponse{Status: "OVER_QUERY_LIMIT"}); err == nil {
		t.Fatalf("expected error for OVER_QUERY_LIMIT")
	}
}

func TestGoogleGeocoderRequiresKey(t *testing.T) {
	g := &GoogleGeocoder{}
	if _, err := g.Geocode(context.Background(), "x"); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}
