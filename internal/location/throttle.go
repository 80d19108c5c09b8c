package location

import (
	"time"

	"github.com/relabs-tech/geofence/internal/geo"
)

// Throttle implements the distance/time interval filter of WatchOptions.
// The first sample always passes; afterwards a sample passes only when it
// arrived at least TimeInterval after, and lies DistanceInterval meters away
// from, the last sample that passed. Zero intervals disable the respective
// check.
//
// Elapsed time is measured on the receive clock. Fix timestamps may come from
// the GPS (RMC) or the host (GGA) and are not comparable.
type Throttle struct {
	opts   WatchOptions
	last   geo.Point
	lastAt time.Time
	have   bool
}

func NewThrottle(opts WatchOptions) *Throttle {
	return &Throttle{opts: opts}
}

// Allow reports whether p, received at receivedAt, should be delivered and,
// if so, records it.
func (t *Throttle) Allow(p geo.Position, receivedAt time.Time) bool {
	if !t.have {
		t.last, t.lastAt, t.have = p.Point(), receivedAt, true
		return true
	}

	if t.opts.TimeInterval > 0 && receivedAt.Sub(t.lastAt) < t.opts.TimeInterval {
		return false
	}
	if t.opts.DistanceInterval > 0 && geo.Distance(t.last, p.Point()) < t.opts.DistanceInterval {
		return false
	}

	t.last, t.lastAt = p.Point(), receivedAt
	return true
}
