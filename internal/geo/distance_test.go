package geo

import (
	"math"
	"testing"
)

func TestHaversineSymmetricAndZero(t *testing.T) {
	points := []Point{
		{Lat: -23.5614, Lon: -46.6559},
		{Lat: -22.9068, Lon: -43.1729},
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 0.5},
		{Lat: 89.9, Lon: 179.9},
		{Lat: -89.9, Lon: -179.9},
	}
	for _, a := range points {
		if d := DistanceKm(a, a); d != 0 {
			t.Fatalf("expected zero distance for %+v, got %f", a, d)
		}
		for _, b := range points {
			ab := DistanceKm(a, b)
			ba := DistanceKm(b, a)
			if math.Abs(ab-ba) > 1e-9 {
				t.Fatalf("asymmetric distance %+v -> %+v: %f vs %f", a, b, ab, ba)
			}
		}
	}
}

func TestHaversineKnownDistances(t *testing.T) {
	// Half a degree of longitude on the equator.
	d := HaversineKm(0, 0, 0, 0.5)
	if math.Abs(d-55.597) > 0.01 {
		t.Fatalf("unexpected equator distance: %f", d)
	}

	// Sao Paulo (Av. Paulista) to Rio de Janeiro, roughly 360 km.
	d = HaversineKm(-23.5614, -46.6559, -22.9068, -43.1729)
	if d < 350 || d > 365 {
		t.Fatalf("unexpected SP-RJ distance: %f", d)
	}
}

func TestPointValid(t *testing.T) {
	cases := map[string]struct {
		p    Point
		want bool
	}{
		"origin":     {Point{0, 0}, true},
		"lat range":  {Point{91, 0}, false},
		"lon range":  {Point{0, -181}, false},
		"nan":        {Point{math.NaN(), 0}, false},
		"inf":        {Point{0, math.Inf(1)}, false},
		"sao paulo":  {Point{-23.55, -46.63}, true},
		"boundaries": {Point{-90, 180}, true},
	}
	for name, tc := range cases {
		if got := tc.p.Valid(); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", name, tc.want, got)
		}
	}
}

func TestPointFrom(t *testing.T) {
	lat, lon := -23.5, -46.6
	if _, ok := PointFrom(nil, &lon); ok {
		t.Fatalf("expected missing latitude to be rejected")
	}
	p, ok := PointFrom(&lat, &lon)
	if !ok || p.Lat != lat || p.Lon != lon {
		t.Fatalf("unexpected point: %+v ok=%v", p, ok)
	}
	bad := 200.0
	if _, ok := PointFrom(&lat, &bad); ok {
		t.Fatalf("expected out-of-range longitude to be rejected")
	}
}
