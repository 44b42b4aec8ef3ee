package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/hailam/smpchess/internal/board"
)

const (
	kiwipeteFEN = "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1"
	mateIn1FEN  = "6k1/5ppp/8/8/8/8/5PPP/R5K1 w - - 0 1"
	mateIn2FEN  = "7k/8/5K2/8/8/8/8/R7 w - - 0 1"
)

func mustFEN(t *testing.T, fen string) board.Position {
	t.Helper()
	pos, err := board.FromFEN(fen)
	require.NoError(t, err)
	return pos
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e := NewEngine(append([]Option{WithHash(16), WithThreads(1)}, opts...)...)
	t.Cleanup(e.Close)
	return e
}

func searchFEN(t *testing.T, e *Engine, fen string, limits SearchLimits) SearchResult {
	t.Helper()
	e.UpdateGame(mustFEN(t, fen))
	return e.Search(context.Background(), limits)
}

func requireLegal(t *testing.T, fen string, m board.Move) {
	t.Helper()
	pos := mustFEN(t, fen)
	require.True(t, lo.Contains(pos.GenerateMoves(), m), "%s is not legal in %s", m, fen)
}

func TestSearchStartPosition(t *testing.T) {
	e := newTestEngine(t)
	res := searchFEN(t, e, board.StartFEN, SearchLimits{Depth: 5})

	requireLegal(t, board.StartFEN, res.Move)
	require.Equal(t, 5, res.Depth)
	require.Equal(t, BoundExact, res.Bound)
	require.Less(t, abs(res.Score), 100, "start position should be roughly level")
	require.NotEmpty(t, res.PV)
	require.Equal(t, res.Move, res.PV[0])
	require.Positive(t, res.Nodes)
	t.Logf("best %s score %d nodes %d time %v", res.Move, res.Score, res.Nodes, res.Time)
}

func TestSearchFindsMate(t *testing.T) {
	tests := []struct {
		name  string
		fen   string
		move  string
		score int
	}{
		{"back rank mate in 1", mateIn1FEN, "a1a8", MateIn(1)},
		{"mirrored mate in 1", "r5k1/5ppp/8/8/8/8/5PPP/6K1 b - - 0 1", "a8a1", MateIn(1)},
		{"rook mate in 2", mateIn2FEN, "", MateIn(3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			res := searchFEN(t, e, tt.fen, SearchLimits{Depth: 6})
			require.Equal(t, tt.score, res.Score)
			require.Equal(t, BoundExact, res.Bound)
			if tt.move != "" {
				require.Equal(t, tt.move, res.Move.String())
			}
			requireLegal(t, tt.fen, res.Move)
			require.LessOrEqual(t, res.Depth, 6, "search should stop once the mate is proven")
		})
	}
	require.Greater(t, MateIn(1), MateIn(3))
	require.Greater(t, MateIn(3), MateBound)
}

func TestSearchNoLegalMoves(t *testing.T) {
	tests := []struct {
		name  string
		fen   string
		score int
	}{
		{"checkmated", "R5k1/5ppp/8/8/8/8/5PPP/6K1 b - - 1 1", MatedIn(0)},
		{"stalemate", "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1", StalemateValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			res := searchFEN(t, e, tt.fen, SearchLimits{Depth: 4})
			require.Equal(t, board.NoMove, res.Move)
			require.Equal(t, tt.score, res.Score)
		})
	}
}

func TestSearchDeterministicSingleThread(t *testing.T) {
	var results []SearchResult
	for i := 0; i < 2; i++ {
		e := newTestEngine(t)
		results = append(results, searchFEN(t, e, kiwipeteFEN, SearchLimits{Depth: 5}))
	}
	require.Equal(t, results[0].Move, results[1].Move)
	require.Equal(t, results[0].Score, results[1].Score)
	require.Equal(t, results[0].Nodes, results[1].Nodes)
	require.Equal(t, results[0].PV, results[1].PV)
}

func TestSearchMirrorSymmetry(t *testing.T) {
	fens := []string{
		board.StartFEN,
		kiwipeteFEN,
		"r1bqkb1r/pppp1ppp/2n2n2/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R w KQkq - 4 4",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
	}
	for _, fen := range fens {
		pos := mustFEN(t, fen)
		mirror := pos.Mirror()

		e1 := newTestEngine(t, WithHash(64))
		e1.UpdateGame(pos)
		r1 := e1.Search(context.Background(), SearchLimits{Depth: 4})

		e2 := newTestEngine(t, WithHash(64))
		e2.UpdateGame(mirror)
		r2 := e2.Search(context.Background(), SearchLimits{Depth: 4})

		require.Equal(t, r1.Score, r2.Score, fen)
		require.Equal(t, r1.Move.From().Mirror(), r2.Move.From(), fen)
		require.Equal(t, r1.Move.To().Mirror(), r2.Move.To(), fen)
	}
}

func TestSearchParallel(t *testing.T) {
	e := newTestEngine(t, WithThreads(4))
	var infos []SearchInfo
	e.OnInfo = func(info SearchInfo) { infos = append(infos, info) }

	res := searchFEN(t, e, kiwipeteFEN, SearchLimits{Depth: 6})
	requireLegal(t, kiwipeteFEN, res.Move)
	require.GreaterOrEqual(t, res.Depth, 6)
	require.NotEmpty(t, infos)
	for i := 1; i < len(infos); i++ {
		require.True(t, infos[i].Depth >= infos[i-1].Depth || IsMateScore(infos[i].Score),
			"accepted depth went from %d to %d", infos[i-1].Depth, infos[i].Depth)
	}

	// The pool is reused for the next search.
	res = searchFEN(t, e, board.StartFEN, SearchLimits{Depth: 4})
	requireLegal(t, board.StartFEN, res.Move)
}

func TestSearchStop(t *testing.T) {
	e := newTestEngine(t, WithThreads(2))
	e.OnInfo = func(info SearchInfo) {
		if info.Depth >= 3 {
			e.Stop()
		}
	}
	e.UpdateGame(mustFEN(t, kiwipeteFEN))
	done := make(chan SearchResult, 1)
	go func() {
		done <- e.Search(context.Background(), SearchLimits{Infinite: true})
	}()
	select {
	case res := <-done:
		requireLegal(t, kiwipeteFEN, res.Move)
		require.GreaterOrEqual(t, res.Depth, 3)
	case <-time.After(30 * time.Second):
		t.Fatal("search did not stop")
	}
}

func TestAccessorsDuringSearch(t *testing.T) {
	e := newTestEngine(t, WithThreads(2))
	started := make(chan struct{})
	var once sync.Once
	e.OnInfo = func(SearchInfo) { once.Do(func() { close(started) }) }
	e.UpdateGame(mustFEN(t, kiwipeteFEN))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan SearchResult, 1)
	go func() { done <- e.Search(ctx, SearchLimits{Infinite: true}) }()
	<-started

	read := make(chan board.Position, 1)
	go func() {
		_, _, _ = e.Threads(), e.HashMB(), e.Params()
		e.UpdateGame(board.StartPosition())
		read <- e.Position()
	}()
	select {
	case pos := <-read:
		start := board.StartPosition()
		require.Equal(t, start.Hash(), pos.Hash(), "the update is visible at once")
	case <-time.After(5 * time.Second):
		t.Fatal("accessors blocked by a running search")
	}

	cancel()
	res := <-done
	requireLegal(t, kiwipeteFEN, res.Move)

	res = e.Search(context.Background(), SearchLimits{Depth: 2})
	requireLegal(t, board.StartFEN, res.Move)
}

func TestSearchContextCancel(t *testing.T) {
	e := newTestEngine(t, WithThreads(2))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	e.UpdateGame(mustFEN(t, kiwipeteFEN))
	start := time.Now()
	res := e.Search(ctx, SearchLimits{Infinite: true})
	require.Less(t, time.Since(start), 10*time.Second)
	requireLegal(t, kiwipeteFEN, res.Move)
}

func TestSearchMoveTime(t *testing.T) {
	e := newTestEngine(t)
	res := searchFEN(t, e, board.StartFEN, SearchLimits{MoveTime: 150 * time.Millisecond})
	requireLegal(t, board.StartFEN, res.Move)
	require.Less(t, res.Time, 5*time.Second)
}

func TestSearchNodeLimit(t *testing.T) {
	e := newTestEngine(t)
	res := searchFEN(t, e, board.StartFEN, SearchLimits{Nodes: 20000})
	requireLegal(t, board.StartFEN, res.Move)
	require.GreaterOrEqual(t, res.Nodes, uint64(20000))
	require.Less(t, res.Nodes, uint64(25000))
}

func TestSetOption(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.SetOption("Hash", "32"))
	require.Equal(t, 32, e.HashMB())

	require.NoError(t, e.SetOption("Threads", "3"))
	require.Equal(t, 3, e.Threads())

	require.NoError(t, e.SetOption("RFPMargin", "120"))
	require.Equal(t, 120, e.Params().RFPMargin)

	require.NoError(t, e.SetOption("Clear Hash", ""))

	tests := []struct {
		name, value string
		want        error
	}{
		{"Hash", "0", ErrInvalidOptionValue},
		{"Hash", "lots", ErrInvalidOptionValue},
		{"Threads", "100000", ErrInvalidOptionValue},
		{"RFPMargin", "-1", ErrInvalidOptionValue},
		{"Contempt", "10", ErrUnknownOption},
	}
	for _, tt := range tests {
		err := e.SetOption(tt.name, tt.value)
		require.True(t, errors.Is(err, tt.want), "%s=%s: %v", tt.name, tt.value, err)
	}

	res := searchFEN(t, e, board.StartFEN, SearchLimits{Depth: 3})
	requireLegal(t, board.StartFEN, res.Move)
}

func TestUpdateGameFromMoves(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.UpdateGameFromMoves("startpos", []string{"e2e4", "e7e5", "g1f3"}))
	pos := e.Position()
	require.Equal(t, board.Black, pos.SideToMove())
	require.Equal(t, board.WhiteKnight, pos.PieceAt(board.F3))
	require.Equal(t, board.BlackPawn, pos.PieceAt(board.E5))

	err := e.UpdateGameFromMoves("startpos", []string{"e2e4", "e2e4"})
	require.ErrorIs(t, err, board.ErrIllegalMove)

	err = e.UpdateGameFromMoves("8/8/8 w - - 0 1", nil)
	require.ErrorIs(t, err, board.ErrInvalidFEN)

	// A failed update leaves the previous game in place.
	cur := e.Position()
	require.Equal(t, pos.FEN(), cur.FEN())
}

func TestSearchWithGameHistory(t *testing.T) {
	e := newTestEngine(t)
	// White is a queen up; g1f3 now repeats an earlier position.
	moves := []string{"g1f3", "g8f6", "f3g1", "f6g8"}
	require.NoError(t, e.UpdateGameFromMoves("rnb1kbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", moves))
	res := e.Search(context.Background(), SearchLimits{Depth: 4})
	require.Greater(t, res.Score, 500)
	requireLegal(t, "rnb1kbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", res.Move)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
