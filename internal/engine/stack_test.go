package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/hailam/smpchess/internal/board"
)

func parse(t *testing.T, pos *board.Position, uci string) board.Move {
	t.Helper()
	m, err := pos.ParseMove(uci)
	require.NoError(t, err)
	return m
}

func TestKillers(t *testing.T) {
	ss := NewSearchStack()
	pos := board.StartPosition()
	e4, d4, nf3 := parse(t, &pos, "e2e4"), parse(t, &pos, "d2d4"), parse(t, &pos, "g1f3")

	ss.StoreKiller(3, e4)
	ss.StoreKiller(3, d4)
	require.Equal(t, [2]board.Move{d4, e4}, ss.Killers(3))

	ss.StoreKiller(3, d4)
	require.Equal(t, [2]board.Move{d4, e4}, ss.Killers(3), "storing the first killer again is a no-op")

	ss.StoreKiller(3, nf3)
	require.Equal(t, [2]board.Move{nf3, d4}, ss.Killers(3))

	ss.InitNode(1, 4, &pos)
	require.Equal(t, [2]board.Move{}, ss.Killers(3), "killers two plies down are reset")
}

func TestInitNode(t *testing.T) {
	ss := NewSearchStack()
	pos := mustFEN(t, "R5k1/5ppp/8/8/8/8/5PPP/6K1 b - - 1 1")

	ss.Ply(2).DoubleExtensions = 2
	sp := ss.InitNode(3, 5, &pos)
	require.Equal(t, 2, sp.DoubleExtensions)
	require.Equal(t, 5, sp.Depth)
	require.True(t, sp.InCheck)
	require.Zero(t, sp.Material)
	require.Equal(t, board.NoMove, sp.CurrentMove)

	require.Zero(t, ss.InitNode(0, 1, &pos).DoubleExtensions)
	require.Panics(t, func() { ss.Ply(MaxPly + 1) })
}

func TestHistoryGravityBounded(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	v := 0
	for i := 0; i < 100_000; i++ {
		bonus := HistoryBonus(r.Intn(200))
		if r.Intn(2) == 0 {
			bonus = -bonus
		}
		gravity(&v, bonus)
		require.LessOrEqual(t, v, HistoryMax)
		require.GreaterOrEqual(t, v, -HistoryMax)
	}

	v = 0
	for i := 0; i < 1000; i++ {
		gravity(&v, HistoryBonus(100))
	}
	require.Equal(t, HistoryMax, v)
}

func TestUpdateHistory(t *testing.T) {
	ss := NewSearchStack()
	pos := mustFEN(t, kiwipeteFEN)
	best := parse(t, &pos, "a2a3")
	other := parse(t, &pos, "g2g3")
	capture := parse(t, &pos, "e2a6")

	ss.UpdateHistory(&pos, best, []board.Move{other, best}, []board.Move{capture}, 6)
	require.Equal(t, HistoryBonus(6), ss.ButterflyScore(board.White, best))
	require.Equal(t, -HistoryBonus(6), ss.ButterflyScore(board.White, other))
	require.Equal(t, -HistoryBonus(6), ss.CaptureScore(capture))
	require.Zero(t, ss.ButterflyScore(board.Black, best))

	ss.UpdateHistory(&pos, capture, nil, []board.Move{capture}, 4)
	require.Greater(t, ss.CaptureScore(capture), -HistoryBonus(6))

	ss.ClearHistory()
	require.Zero(t, ss.ButterflyScore(board.White, best))
	require.Zero(t, ss.CaptureScore(capture))
}

func TestCounterMove(t *testing.T) {
	ss := NewSearchStack()
	pos := board.StartPosition()
	e4 := parse(t, &pos, "e2e4")
	after, _ := pos.MakeMove(e4)
	c5 := parse(t, &after, "c7c5")

	require.Equal(t, board.NoMove, ss.CounterMove(board.Black, e4))
	ss.StoreCounterMove(board.Black, e4, c5)
	require.Equal(t, c5, ss.CounterMove(board.Black, e4))
	require.Equal(t, board.NoMove, ss.CounterMove(board.White, e4))

	ss.StoreCounterMove(board.Black, board.NullMove, c5)
	require.Equal(t, board.NoMove, ss.CounterMove(board.Black, board.NullMove))
}

func TestDoubleExtensionLimit(t *testing.T) {
	ss := NewSearchStack()
	require.Equal(t, 4, ss.DoubleExtensionLimit(board.White, 4))

	for i := 0; i < 20; i++ {
		ss.RecordDoubleExtensions(board.White, 50)
	}
	require.Equal(t, 3, ss.DoubleExtensionLimit(board.White, 4))
	require.Equal(t, 4, ss.DoubleExtensionLimit(board.Black, 4))

	for i := 0; i < 40; i++ {
		ss.RecordDoubleExtensions(board.White, 0)
	}
	require.Equal(t, 4, ss.DoubleExtensionLimit(board.White, 4))
}

func TestIsRepetition(t *testing.T) {
	const a, b, c, d, e = 11, 12, 13, 14, 15
	tests := []struct {
		name  string
		keys  []uint64
		clock int
		want  bool
	}{
		{"too short", []uint64{a, b, a}, 10, false},
		{"repeated", []uint64{a, b, c, d, a}, 4, true},
		{"beyond halfmove clock", []uint64{a, b, c, d, a}, 2, false},
		{"opposite side to move", []uint64{a, b, c, d, e, a}, 10, false},
		{"older repetition", []uint64{a, b, c, d, e, b, c, d, a}, 8, true},
		{"null move in between", []uint64{a, b, 0, d, a}, 4, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ss := NewSearchStack()
			ss.SetGameHistory(tt.keys)
			require.Equal(t, tt.want, ss.IsRepetition(tt.clock))
		})
	}

	ss := NewSearchStack()
	ss.SetGameHistory([]uint64{a, b, c, d})
	require.False(t, ss.IsRepetition(10))
	ss.PushHistory(a)
	require.True(t, ss.IsRepetition(10))
	ss.PopHistory()
	ss.PushHistory(e)
	require.False(t, ss.IsRepetition(10))
}
