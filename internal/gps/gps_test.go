package gps

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"testing"
	"time"
)

// sentence wraps body in '$' and '*hh' with a valid NMEA checksum.
func sentence(body string) string {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return fmt.Sprintf("$%s*%02X", body, sum)
}

const (
	rmcBody     = "GPRMC,220516,A,5133.82,N,00042.24,W,173.8,231.8,130694,004.2,W"
	rmcVoidBody = "GPRMC,220517,V,5133.82,N,00042.24,W,0.0,0.0,130694,004.2,W"
	ggaBody     = "GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"
	ggaNoFix    = "GPGGA,123520,4807.038,N,01131.000,E,0,00,,,M,,M,,"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestDecoder_RMC(t *testing.T) {
	dec := NewDecoder(strings.NewReader(sentence(rmcBody) + "\r\n"))

	fix, err := dec.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fix.Valid() {
		t.Errorf("expected valid fix, got validity %q", fix.Validity)
	}
	if !almostEqual(fix.Latitude, 51+33.82/60) {
		t.Errorf("unexpected latitude %f", fix.Latitude)
	}
	if !almostEqual(fix.Longitude, -42.24/60) {
		t.Errorf("unexpected longitude %f", fix.Longitude)
	}
	if fix.SpeedKnots != 173.8 {
		t.Errorf("expected 173.8kn, got %f", fix.SpeedKnots)
	}

	want := time.Date(1994, time.June, 13, 22, 5, 16, 0, time.UTC)
	pos := fix.Position(time.Now())
	if !pos.Timestamp.Equal(want) {
		t.Errorf("expected timestamp %v, got %v", want, pos.Timestamp)
	}

	if _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestDecoder_SkipsNoise(t *testing.T) {
	input := strings.Join([]string{
		"",
		"garbage line",
		"$GPRMC,broken*00",
		sentence("GPGSA,A,3,04,05,,09,12,,,24,,,,,2.5,1.3,2.1"),
		sentence(ggaBody),
	}, "\n") + "\n"

	fix, err := NewDecoder(strings.NewReader(input)).Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(fix.Latitude, 48+7.038/60) || !almostEqual(fix.Longitude, 11+31.0/60) {
		t.Errorf("unexpected position %f,%f", fix.Latitude, fix.Longitude)
	}
	if !fix.Valid() {
		t.Error("expected GGA with quality 1 to be valid")
	}
	if fix.TimestampMs != 0 {
		t.Errorf("GGA carries no date, expected zero timestamp, got %d", fix.TimestampMs)
	}
}

func TestDecoder_VoidFixes(t *testing.T) {
	input := sentence(rmcVoidBody) + "\n" + sentence(ggaNoFix) + "\n"
	dec := NewDecoder(strings.NewReader(input))

	for i := 0; i < 2; i++ {
		fix, err := dec.Next()
		if err != nil {
			t.Fatalf("sentence %d: unexpected error: %v", i, err)
		}
		if fix.Valid() {
			t.Errorf("sentence %d: expected void fix", i)
		}
	}
}

// chunkReader returns one chunk per Read and a timeout error in between.
type chunkReader struct {
	chunks []string
	calls  int
}

var errTimeout = errors.New("read timeout")

func (c *chunkReader) Read(p []byte) (int, error) {
	c.calls++
	if c.calls%2 == 0 || len(c.chunks) == 0 {
		return 0, errTimeout
	}
	n := copy(p, c.chunks[0])
	c.chunks = c.chunks[1:]
	return n, nil
}

func TestDecoder_ResumesAfterTimeout(t *testing.T) {
	line := sentence(rmcBody) + "\n"
	r := &chunkReader{chunks: []string{line[:20], line[20:]}}
	dec := NewDecoder(r)

	if _, err := dec.Next(); !errors.Is(err, errTimeout) {
		t.Fatalf("expected timeout on first read, got %v", err)
	}

	fix, err := dec.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(fix.Latitude, 51+33.82/60) {
		t.Errorf("unexpected latitude %f", fix.Latitude)
	}
}

func TestFix_PositionFallsBackToReceiveTime(t *testing.T) {
	received := time.Unix(1715003456, 0)
	pos := Fix{Latitude: 1, Longitude: 2, Validity: ValidityActive}.Position(received)
	if !pos.Timestamp.Equal(received) {
		t.Errorf("expected %v, got %v", received, pos.Timestamp)
	}
	if pos.Latitude != 1 || pos.Longitude != 2 {
		t.Errorf("unexpected position %+v", pos)
	}
}
