package engine

import (
	"time"

	"github.com/hailam/smpchess/internal/board"
)

// SearchLimits bounds one search. Zero fields are unlimited; a search with
// no limits at all runs until Stop or context cancellation.
type SearchLimits struct {
	Depth     int              // maximum iteration depth
	Nodes     uint64           // maximum nodes over all workers
	MoveTime  time.Duration    // fixed time budget for this move
	Time      [2]time.Duration // remaining clock per color
	Inc       [2]time.Duration // increment per color
	MovesToGo int              // moves until the next time control, 0 = sudden death
	Infinite  bool             // ignore clocks, search until stopped
}

// Unbounded reports whether a search for us under l runs until it is
// stopped or cancelled.
func (l SearchLimits) Unbounded(us board.Color) bool {
	return l.Infinite || (l.Depth <= 0 && l.Nodes == 0 && l.MoveTime <= 0 && l.Time[us] <= 0)
}

// TimeManager turns SearchLimits into a soft (optimum) and hard (maximum)
// time limit. A zero limit means none.
type TimeManager struct {
	start       time.Time
	baseOptimum time.Duration
	optimum     time.Duration
	maximum     time.Duration
}

// NewTimeManager computes the limits for the side us at game ply.
func NewTimeManager(limits SearchLimits, us board.Color, ply int) *TimeManager {
	tm := &TimeManager{start: time.Now()}

	switch {
	case limits.Infinite:
		return tm
	case limits.MoveTime > 0:
		tm.baseOptimum = limits.MoveTime
		tm.optimum = limits.MoveTime
		tm.maximum = limits.MoveTime
		return tm
	case limits.Time[us] == 0:
		return tm
	}

	timeLeft := limits.Time[us]
	mtg := limits.MovesToGo
	if mtg == 0 {
		// Sudden death: expect fewer remaining moves as the game goes on.
		mtg = min(max(50-ply/4, 10), 50)
	}

	opt := timeLeft/time.Duration(mtg) + limits.Inc[us]*9/10
	if ply < 8 {
		opt = opt * 85 / 100
	}
	maximum := min(opt*5, timeLeft*8/10)

	tm.baseOptimum = max(opt, 10*time.Millisecond)
	tm.optimum = tm.baseOptimum
	tm.maximum = max(maximum, 50*time.Millisecond)
	if tm.maximum > timeLeft*95/100 {
		tm.maximum = timeLeft * 95 / 100
	}
	return tm
}

// Elapsed returns the time since the search started.
func (tm *TimeManager) Elapsed() time.Duration {
	return time.Since(tm.start)
}

func (tm *TimeManager) Optimum() time.Duration { return tm.optimum }
func (tm *TimeManager) Maximum() time.Duration { return tm.maximum }

// Deadline returns the hard stop instant, zero if there is none.
func (tm *TimeManager) Deadline() time.Time {
	if tm.maximum == 0 {
		return time.Time{}
	}
	return tm.start.Add(tm.maximum)
}

// ShouldStop reports whether the hard limit has passed.
func (tm *TimeManager) ShouldStop() bool {
	return tm.maximum > 0 && tm.Elapsed() >= tm.maximum
}

// PastOptimum reports whether starting another iteration is unwise.
func (tm *TimeManager) PastOptimum() bool {
	return tm.optimum > 0 && tm.Elapsed() >= tm.optimum
}

// AdjustForStability scales the soft limit by how many consecutive
// iterations kept the same best move. A changing best move earns more time.
func (tm *TimeManager) AdjustForStability(stability int) {
	if tm.baseOptimum == 0 || tm.baseOptimum == tm.maximum {
		return
	}
	pct := 100
	switch {
	case stability >= 6:
		pct = 40
	case stability >= 4:
		pct = 60
	case stability >= 2:
		pct = 80
	case stability == 0:
		pct = 150
	}
	tm.optimum = min(tm.baseOptimum*time.Duration(pct)/100, tm.maximum)
}
