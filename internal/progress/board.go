package progress

import (
	"sync"
	"time"

	"github.com/sheerbytes/juggler/internal/backup"
)

// Row status values.
const (
	StatusCopying = "copying"
	StatusDone    = "done"
	StatusStopped = "stopped"
)

// Row is one job's line on the board.
type Row struct {
	ID         int     `json:"id"`
	Label      string  `json:"label"`
	Status     string  `json:"status"`
	BytesDone  int64   `json:"bytes_done"`
	Total      int64   `json:"total"`
	Percent    float64 `json:"percent"`
	RateBps    float64 `json:"rate_bps"`
	ETASeconds float64 `json:"eta_seconds"`
	Elapsed    float64 `json:"elapsed_seconds"`
}

// Snapshot is the whole board at one instant.
type Snapshot struct {
	At        time.Time `json:"at"`
	Rows      []Row     `json:"rows"`
	BytesDone int64     `json:"bytes_done"`
	Total     int64     `json:"total"`
	Active    int       `json:"active"`
}

// Board collects one meter per job. It implements backup.Progress and is
// safe for concurrent jobs.
type Board struct {
	mu   sync.Mutex
	rows []*boardRow
	now  func() time.Time
}

type boardRow struct {
	id     int
	label  string
	meter  *Meter
	closed bool
}

var _ backup.Progress = (*Board)(nil)

// NewBoard returns an empty board.
func NewBoard() *Board {
	return NewBoardWithNow(time.Now)
}

// NewBoardWithNow returns a board whose meters use now (for tests).
func NewBoardWithNow(now func() time.Time) *Board {
	if now == nil {
		now = time.Now
	}
	return &Board{now: now}
}

// NewSink adds a row for a job copying total bytes.
func (b *Board) NewSink(total int64, label string) backup.Sink {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := &boardRow{
		id:    len(b.rows) + 1,
		label: label,
		meter: NewMeterWithNow(total, b.now),
	}
	b.rows = append(b.rows, r)
	return &sink{board: b, row: r}
}

// Snapshot returns every row in creation order.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := Snapshot{At: b.now(), Rows: make([]Row, 0, len(b.rows))}
	for _, r := range b.rows {
		st := r.meter.Snapshot()
		status := StatusCopying
		if r.closed {
			status = StatusDone
			if st.BytesDone < st.Total {
				status = StatusStopped
			}
		} else {
			snap.Active++
		}
		snap.Rows = append(snap.Rows, Row{
			ID:         r.id,
			Label:      r.label,
			Status:     status,
			BytesDone:  st.BytesDone,
			Total:      st.Total,
			Percent:    st.Percent,
			RateBps:    st.RateBps,
			ETASeconds: st.ETA.Seconds(),
			Elapsed:    st.Elapsed.Seconds(),
		})
		snap.BytesDone += st.BytesDone
		snap.Total += st.Total
	}
	return snap
}

type sink struct {
	board *Board
	row   *boardRow
}

func (s *sink) Add(n int64) {
	s.row.meter.Add(n)
}

func (s *sink) Close() error {
	s.row.meter.Stop()
	s.board.mu.Lock()
	s.row.closed = true
	s.board.mu.Unlock()
	return nil
}
