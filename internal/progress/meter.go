package progress

import (
	"sync"
	"time"
)

// Stats is a point-in-time view of one meter.
type Stats struct {
	BytesDone int64
	Total     int64
	RateBps   float64
	ETA       time.Duration
	Percent   float64
	StartedAt time.Time
	Elapsed   time.Duration
}

// Meter counts bytes against a fixed total and keeps an EWMA rate.
type Meter struct {
	mu        sync.Mutex
	total     int64
	done      int64
	startedAt time.Time
	lastAt    time.Time
	lastDone  int64
	rateBps   float64
	alpha     float64
	stoppedAt time.Time
	now       func() time.Time
}

// NewMeter returns a meter started now with the given total.
func NewMeter(total int64) *Meter {
	return NewMeterWithNow(total, time.Now)
}

// NewMeterWithNow returns a meter with a custom time source (for tests).
func NewMeterWithNow(total int64, now func() time.Time) *Meter {
	if now == nil {
		now = time.Now
	}
	start := now()
	return &Meter{
		total:     total,
		startedAt: start,
		lastAt:    start,
		alpha:     0.2,
		now:       now,
	}
}

// Add records n more bytes copied.
func (m *Meter) Add(n int64) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.done += n
	dt := now.Sub(m.lastAt).Seconds()
	if dt <= 0 {
		return
	}
	inst := float64(m.done-m.lastDone) / dt
	if m.rateBps == 0 {
		m.rateBps = inst
	} else {
		m.rateBps = m.alpha*inst + (1-m.alpha)*m.rateBps
	}
	m.lastAt = now
	m.lastDone = m.done
}

// Stop freezes the elapsed time. Later calls are no-ops.
func (m *Meter) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stoppedAt.IsZero() {
		m.stoppedAt = m.now()
	}
}

// Snapshot returns the meter's current stats. A stopped meter reports no ETA.
func (m *Meter) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := m.stoppedAt
	if end.IsZero() {
		end = m.now()
	}
	stats := Stats{
		BytesDone: m.done,
		Total:     m.total,
		RateBps:   m.rateBps,
		StartedAt: m.startedAt,
		Elapsed:   end.Sub(m.startedAt),
	}
	if m.total > 0 {
		stats.Percent = float64(m.done) / float64(m.total) * 100
	} else if !m.stoppedAt.IsZero() {
		stats.Percent = 100
	}
	if m.stoppedAt.IsZero() && m.rateBps > 0 && m.total > m.done {
		remaining := float64(m.total - m.done)
		stats.ETA = time.Duration(remaining / m.rateBps * float64(time.Second))
	}
	return stats
}
