// Package tablebase probes endgame tablebases for the best root move.
package tablebase

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/hailam/smpchess/internal/board"
)

// WDL represents Win/Draw/Loss result.
type WDL int

const (
	WDLLoss        WDL = -2
	WDLBlessedLoss WDL = -1 // loss that the fifty-move rule turns into a draw
	WDLDraw        WDL = 0
	WDLCursedWin   WDL = 1 // win that the fifty-move rule turns into a draw
	WDLWin         WDL = 2
)

func (w WDL) String() string {
	switch w {
	case WDLLoss:
		return "loss"
	case WDLBlessedLoss:
		return "blessed-loss"
	case WDLCursedWin:
		return "cursed-win"
	case WDLWin:
		return "win"
	}
	return "draw"
}

// RootResult is the tablebase verdict for the side to move at the root.
type RootResult struct {
	Found bool
	Move  board.Move
	WDL   WDL
	DTZ   int // distance to the next zeroing move
}

// Prober finds the best root move from a tablebase.
type Prober interface {
	// ProbeRoot returns Found=false when the position is not covered.
	ProbeRoot(ctx context.Context, pos *board.Position) (RootResult, error)

	// MaxPieces returns the maximum number of pieces supported.
	MaxPieces() int
}

// CountPieces returns the total number of pieces on the board.
func CountPieces(pos *board.Position) int {
	return pos.Occupied().PopCount()
}

// CachedProber wraps another prober with a bounded cache keyed by
// position hash. Failed probes are not cached.
type CachedProber struct {
	inner Prober
	cache *ristretto.Cache[uint64, RootResult]
}

// NewCachedProber caches up to size results of inner.
func NewCachedProber(inner Prober, size int64) (*CachedProber, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[uint64, RootResult]{
		NumCounters: size * 10,
		MaxCost:     size,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("tablebase cache: %w", err)
	}
	return &CachedProber{inner: inner, cache: cache}, nil
}

func (cp *CachedProber) ProbeRoot(ctx context.Context, pos *board.Position) (RootResult, error) {
	if CountPieces(pos) > cp.inner.MaxPieces() {
		return RootResult{}, nil
	}
	key := pos.Hash()
	if r, ok := cp.cache.Get(key); ok {
		return r, nil
	}
	r, err := cp.inner.ProbeRoot(ctx, pos)
	if err != nil {
		return RootResult{}, err
	}
	cp.cache.Set(key, r, 1)
	return r, nil
}

func (cp *CachedProber) MaxPieces() int {
	return cp.inner.MaxPieces()
}

// Wait blocks until pending cache writes are visible.
func (cp *CachedProber) Wait() {
	cp.cache.Wait()
}

// Close releases the cache.
func (cp *CachedProber) Close() error {
	cp.cache.Close()
	return nil
}
