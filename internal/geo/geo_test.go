package geo

import (
	"errors"
	"math"
	"testing"
)

func TestDistance_SamePointIsZero(t *testing.T) {
	points := []Point{
		{0, 0},
		{-6.2088, 106.8456},
		{89.9999, -179.5},
		{-90, 180},
	}
	for _, p := range points {
		if d := Distance(p, p); d != 0 {
			t.Errorf("Distance(%v, %v) = %v, want 0", p, p, d)
		}
	}
}

func TestDistance_Symmetric(t *testing.T) {
	pairs := [][2]Point{
		{{0, 0}, {0.001, 0}},
		{{51.5636, -0.704}, {48.8566, 2.3522}},
		{{-33.8688, 151.2093}, {40.7128, -74.0060}},
		{{10, 179.9}, {-10, -179.9}},
	}
	for _, pair := range pairs {
		ab := Distance(pair[0], pair[1])
		ba := Distance(pair[1], pair[0])
		if ab != ba {
			t.Errorf("Distance not symmetric for %v: %v != %v", pair, ab, ba)
		}
		if ab < 0 {
			t.Errorf("Distance(%v) = %v, want non-negative", pair, ab)
		}
	}
}

func TestDistance_OneThousandthDegreeLatitude(t *testing.T) {
	d := Distance(Point{0, 0}, Point{0.001, 0})
	// R * 0.001 * pi / 180
	if d < 111 || d > 111.3 {
		t.Fatalf("expected ~111.19m, got %f", d)
	}
}

func TestDistance_Antipodal(t *testing.T) {
	d := Distance(Point{0, 0}, Point{0, 180})
	want := math.Pi * EarthRadiusMeters
	if math.Abs(d-want) > 1e-6 {
		t.Fatalf("expected %f, got %f", want, d)
	}
}

func TestDistance_MonotonicAlongMeridian(t *testing.T) {
	origin := Point{0, 0}
	prev := 0.0
	for lat := 0.0; lat <= 180; lat += 0.5 {
		// walk north over the pole and down the other side
		p := Point{Latitude: lat, Longitude: 0}
		if lat > 90 {
			p = Point{Latitude: 180 - lat, Longitude: 180}
		}
		d := Distance(origin, p)
		if d < prev {
			t.Fatalf("distance decreased at lat step %v: %f < %f", lat, d, prev)
		}
		prev = d
	}
}

func TestDistance_MatchesReferenceFormula(t *testing.T) {
	a := Point{-6.2088, 106.8456}
	b := Point{-6.2100, 106.8470}

	lat1 := a.Latitude * (math.Pi / 180)
	lat2 := b.Latitude * (math.Pi / 180)
	dLat := (b.Latitude - a.Latitude) * (math.Pi / 180)
	dLon := (b.Longitude - a.Longitude) * (math.Pi / 180)
	h := math.Pow(math.Sin(dLat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLon/2), 2)
	want := 6371e3 * (2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h)))

	if got := Distance(a, b); math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Point
		wantErr bool
	}{
		{"origin", Point{0, 0}, false},
		{"corners", Point{-90, 180}, false},
		{"other corner", Point{90, -180}, false},
		{"lat too high", Point{90.0001, 0}, true},
		{"lat too low", Point{-91, 0}, true},
		{"lon too high", Point{0, 181}, true},
		{"lon too low", Point{0, -180.5}, true},
		{"lat NaN", Point{math.NaN(), 0}, true},
		{"lon Inf", Point{0, math.Inf(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate(%v) error = %v, wantErr %v", tt.p, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidCoordinate) {
				t.Errorf("expected ErrInvalidCoordinate, got %v", err)
			}
		})
	}
}
