package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hailam/smpchess/internal/board"
)

func TestTimeManagerUnlimited(t *testing.T) {
	for _, limits := range []SearchLimits{
		{},
		{Infinite: true, Time: [2]time.Duration{time.Second, time.Second}},
		{Depth: 10},
		{Time: [2]time.Duration{0, time.Minute}},
	} {
		tm := NewTimeManager(limits, board.White, 10)
		require.Zero(t, tm.Maximum())
		require.True(t, tm.Deadline().IsZero())
		require.False(t, tm.ShouldStop())
		require.False(t, tm.PastOptimum())
	}
}

func TestTimeManagerMoveTime(t *testing.T) {
	tm := NewTimeManager(SearchLimits{MoveTime: 200 * time.Millisecond}, board.Black, 30)
	require.Equal(t, 200*time.Millisecond, tm.Optimum())
	require.Equal(t, 200*time.Millisecond, tm.Maximum())
	require.False(t, tm.Deadline().IsZero())

	tm.AdjustForStability(10)
	require.Equal(t, 200*time.Millisecond, tm.Optimum(), "a fixed move time is not scaled")
}

func TestTimeManagerClock(t *testing.T) {
	limits := SearchLimits{
		Time: [2]time.Duration{60 * time.Second, 5 * time.Second},
		Inc:  [2]time.Duration{time.Second, 0},
	}
	tm := NewTimeManager(limits, board.White, 40)
	require.Positive(t, tm.Optimum())
	require.Less(t, tm.Optimum(), tm.Maximum())
	require.LessOrEqual(t, tm.Maximum(), 57*time.Second)

	black := NewTimeManager(limits, board.Black, 40)
	require.Less(t, black.Maximum(), tm.Maximum())
	require.LessOrEqual(t, black.Maximum(), 5*time.Second*95/100)

	base := tm.Optimum()
	tm.AdjustForStability(6)
	require.Less(t, tm.Optimum(), base)
	tm.AdjustForStability(0)
	require.Greater(t, tm.Optimum(), base)
	require.LessOrEqual(t, tm.Optimum(), tm.Maximum())

	withMTG := NewTimeManager(SearchLimits{
		Time:      [2]time.Duration{10 * time.Second, 10 * time.Second},
		MovesToGo: 2,
	}, board.White, 40)
	require.Equal(t, 5*time.Second, withMTG.Optimum())
}

func TestTimeManagerLowClock(t *testing.T) {
	tm := NewTimeManager(SearchLimits{Time: [2]time.Duration{20 * time.Millisecond}}, board.White, 60)
	require.LessOrEqual(t, tm.Maximum(), 19*time.Millisecond)
	require.Positive(t, tm.Maximum())
}

func TestSearchLimitsUnbounded(t *testing.T) {
	require.True(t, SearchLimits{}.Unbounded(board.White))
	require.True(t, SearchLimits{Infinite: true, Depth: 3}.Unbounded(board.White))
	require.True(t, SearchLimits{Time: [2]time.Duration{0, time.Second}}.Unbounded(board.White),
		"only the opponent's clock is set")

	require.False(t, SearchLimits{Depth: 1}.Unbounded(board.White))
	require.False(t, SearchLimits{Nodes: 100}.Unbounded(board.White))
	require.False(t, SearchLimits{MoveTime: time.Second}.Unbounded(board.Black))
	require.False(t, SearchLimits{Time: [2]time.Duration{0, time.Second}}.Unbounded(board.Black))
}
