package geofence

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/geofence/internal/geo"
	"github.com/relabs-tech/geofence/internal/location"
)

// recorder collects every event it observes.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

var origin = geo.Point{Latitude: 0, Longitude: 0}

func testConfig() Config {
	return Config{
		Reference:                 origin,
		ThresholdMeters:           5,
		MinDistanceIntervalMeters: 10,
		MinTimeInterval:           10 * time.Second,
	}
}

// northOf returns the position that lies meters north of the origin.
func northOf(meters float64) geo.Position {
	return geo.Position{
		Latitude:  meters / geo.EarthRadiusMeters * 180 / math.Pi,
		Longitude: 0,
		Timestamp: time.Unix(1715003456, 0),
	}
}

func newTestMonitor(t *testing.T, cfg Config, provider location.Provider, observers ...Observer) *Monitor {
	t.Helper()
	m, err := New(cfg, provider, zerolog.Nop(), observers...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m
}

func TestOnUpdate_ReferencePointIsWithinRange(t *testing.T) {
	m := newTestMonitor(t, testConfig(), location.NewMock(location.Granted))

	st, err := m.OnUpdate(geo.Position{Latitude: 0, Longitude: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.WithinRange {
		t.Error("expected within range")
	}
	if st.DistanceMeters != 0 {
		t.Errorf("expected distance 0, got %f", st.DistanceMeters)
	}
	if !st.Known || st.Position == nil {
		t.Error("expected known status with position")
	}
}

func TestOnUpdate_FarPointIsOutOfRange(t *testing.T) {
	m := newTestMonitor(t, testConfig(), location.NewMock(location.Granted))

	st, err := m.OnUpdate(geo.Position{Latitude: 0.001, Longitude: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.WithinRange {
		t.Error("expected out of range")
	}
	if st.DistanceMeters < 111 || st.DistanceMeters > 111.3 {
		t.Errorf("expected ~111m, got %f", st.DistanceMeters)
	}
}

func TestOnUpdate_ThresholdIsInclusive(t *testing.T) {
	p := geo.Position{Latitude: 0.00004, Longitude: 0.00002}
	d := geo.Distance(p.Point(), origin)

	cfg := testConfig()
	cfg.ThresholdMeters = d
	m := newTestMonitor(t, cfg, location.NewMock(location.Granted))
	st, _ := m.OnUpdate(p)
	if !st.WithinRange {
		t.Fatalf("distance %v equal to threshold should be within range", d)
	}

	cfg.ThresholdMeters = math.Nextafter(d, 0)
	m = newTestMonitor(t, cfg, location.NewMock(location.Granted))
	st, _ = m.OnUpdate(p)
	if st.WithinRange {
		t.Fatalf("distance %v above threshold %v should be out of range", d, cfg.ThresholdMeters)
	}
}

func TestOnUpdate_SequenceFlipsWithoutDebounce(t *testing.T) {
	rec := &recorder{}
	m := newTestMonitor(t, testConfig(), location.NewMock(location.Granted), rec)

	distances := []float64{10, 3, 6, 2}
	want := []bool{false, true, false, true}

	for i, d := range distances {
		st, err := m.OnUpdate(northOf(d))
		if err != nil {
			t.Fatalf("sample %d: unexpected error: %v", i, err)
		}
		if st.WithinRange != want[i] {
			t.Errorf("sample %d (%vm): expected withinRange=%v, got %v", i, d, want[i], st.WithinRange)
		}
		if math.Abs(st.DistanceMeters-d) > 1e-6 {
			t.Errorf("sample %d: expected distance %v, got %v", i, d, st.DistanceMeters)
		}
	}

	events := rec.all()
	if len(events) != len(distances) {
		t.Fatalf("expected %d events, got %d", len(distances), len(events))
	}
	for i, e := range events {
		if e.Status.WithinRange != want[i] {
			t.Errorf("event %d: expected withinRange=%v", i, want[i])
		}
		if !e.Changed {
			t.Errorf("event %d: expected a transition", i)
		}
	}
	if !events[1].Entered() || !events[2].Exited() {
		t.Error("expected enter on second sample and exit on third")
	}
}

func TestOnUpdate_InvalidInputKeepsLastGoodStatus(t *testing.T) {
	m := newTestMonitor(t, testConfig(), location.NewMock(location.Granted))

	good, err := m.OnUpdate(northOf(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := []geo.Position{
		{Latitude: 91, Longitude: 0},
		{Latitude: 0, Longitude: -200},
		{Latitude: math.NaN(), Longitude: 0},
	}
	for _, p := range bad {
		st, err := m.OnUpdate(p)
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", p, err)
		}
		if st.Error != ReasonInvalidInput {
			t.Errorf("expected reason %q, got %q", ReasonInvalidInput, st.Error)
		}
		if st.WithinRange != good.WithinRange || st.DistanceMeters != good.DistanceMeters {
			t.Errorf("invalid input corrupted status: %+v", st)
		}
		if math.IsNaN(st.DistanceMeters) {
			t.Error("distance became NaN")
		}
	}

	st, err := m.OnUpdate(northOf(8))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Error != ReasonNone || st.WithinRange {
		t.Errorf("expected clean out-of-range status, got %+v", st)
	}
}

func TestStart_DeliversProviderSamples(t *testing.T) {
	rec := &recorder{}
	mock := location.NewMock(location.Granted)
	m := newTestMonitor(t, testConfig(), mock, rec)

	sub, err := m.Start(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sub.Stop()

	opts := mock.Options()
	if opts.DistanceInterval != 10 || opts.TimeInterval != 10*time.Second || opts.Accuracy != location.AccuracyHigh {
		t.Errorf("unexpected watch options %+v", opts)
	}

	mock.Emit(northOf(1))
	if st := m.Status(); !st.WithinRange || !st.Known {
		t.Errorf("expected within range after sample, got %+v", st)
	}

	events := rec.all()
	if len(events) != 1 || events[0].Session != sub.ID {
		t.Fatalf("expected one event for session %s, got %+v", sub.ID, events)
	}
}

func TestStart_PermissionDenied(t *testing.T) {
	rec := &recorder{}
	mock := location.NewMock(location.Denied)
	m := newTestMonitor(t, testConfig(), mock, rec)

	sub, err := m.Start(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if sub == nil {
		t.Fatal("expected a no-op subscription")
	}
	sub.Stop()
	m.Stop(sub)

	st := m.Status()
	if st.Error != ReasonPermissionDenied || st.WithinRange {
		t.Errorf("unexpected status after denial: %+v", st)
	}
	if mock.Watches != 0 {
		t.Errorf("expected no stream to be opened, got %d", mock.Watches)
	}
	if mock.Emit(northOf(0)) {
		t.Error("expected no active watcher after denial")
	}

	events := rec.all()
	if len(events) != 1 || events[0].Status.Error != ReasonPermissionDenied || !events[0].Changed {
		t.Fatalf("expected one permission_denied event, got %+v", events)
	}
}

func TestStart_AfterDenialCanBeRetried(t *testing.T) {
	mock := location.NewMock(location.Denied)
	m := newTestMonitor(t, testConfig(), mock)

	if _, err := m.Start(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if mock.PermissionRequests != 1 {
		t.Fatalf("denial must not be retried automatically, got %d requests", mock.PermissionRequests)
	}

	mock.SetPermission(location.Granted)
	sub, err := m.Start(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sub.Stop()

	if st := m.Status(); st.Error != ReasonNone || st.Known {
		t.Errorf("expected fresh unknown status, got %+v", st)
	}
}

func TestStart_WatchFailure(t *testing.T) {
	mock := location.NewMock(location.Granted)
	mock.FailWatch(errors.New("no such device"))
	m := newTestMonitor(t, testConfig(), mock)

	_, err := m.Start(context.Background())
	if err == nil || errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected watch error, got %v", err)
	}
	if st := m.Status(); st.Error != ReasonUnavailable {
		t.Errorf("expected unavailable, got %q", st.Error)
	}

	mock.FailWatch(location.ErrPermissionDenied)
	if _, err := m.Start(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestStart_Twice(t *testing.T) {
	m := newTestMonitor(t, testConfig(), location.NewMock(location.Granted))

	sub, err := m.Start(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.Start(context.Background()); !errors.Is(err, ErrAlreadyMonitoring) {
		t.Fatalf("expected ErrAlreadyMonitoring, got %v", err)
	}

	m.Stop(sub)
	sub2, err := m.Start(context.Background())
	if err != nil {
		t.Fatalf("restart after stop failed: %v", err)
	}
	m.Stop(sub2)
}

func TestStop_IdempotentAndFinal(t *testing.T) {
	rec := &recorder{}
	mock := location.NewMock(location.Granted)
	m := newTestMonitor(t, testConfig(), mock, rec)

	// never started
	m.Stop(nil)
	var nilSub *Subscription
	nilSub.Stop()

	sub, err := m.Start(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mock.Emit(northOf(3))

	m.Stop(sub)
	m.Stop(sub)
	sub.Stop()

	if mock.Emit(northOf(50)) {
		t.Error("stream still active after Stop")
	}
	if len(rec.all()) != 1 {
		t.Fatalf("expected no updates after Stop, got %d events", len(rec.all()))
	}
	if st := m.Status(); !st.WithinRange {
		t.Error("status should keep its last value after Stop")
	}
}

func TestStop_LateCallbackIsDropped(t *testing.T) {
	rec := &recorder{}
	m := newTestMonitor(t, testConfig(), location.NewMock(location.Granted), rec)

	sub, err := m.Start(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.Stop(sub)

	// a stream that ignores Stop and calls back anyway
	m.deliver(sub, northOf(1))
	if len(rec.all()) != 0 {
		t.Fatal("callback delivered after Stop")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"bad reference", Config{Reference: geo.Point{Latitude: 100}}},
		{"negative threshold", Config{ThresholdMeters: -1}},
		{"NaN threshold", Config{ThresholdMeters: math.NaN()}},
		{"negative distance interval", Config{MinDistanceIntervalMeters: -5}},
		{"negative time interval", Config{MinTimeInterval: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, location.NewMock(location.Granted), zerolog.Nop())
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	if _, err := New(testConfig(), nil, zerolog.Nop()); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for nil provider, got %v", err)
	}
}
