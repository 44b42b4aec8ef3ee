package engine

import (
	"fmt"
	"math/bits"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/smpchess/internal/board"
)

// sameBucket returns n hashes that index the same bucket of any table
// smaller than 2^48 buckets.
func sameBucket(n int) []uint64 {
	hashes := make([]uint64, n)
	for i := range hashes {
		hashes[i] = 0x8000_0000_0000_0000 | uint64(i+1)
	}
	return hashes
}

func TestBucketIsCacheLine(t *testing.T) {
	require.Equal(t, uintptr(bucketBytes), unsafe.Sizeof(ttBucket{}))
}

func TestTranspositionSizePowerOfTwo(t *testing.T) {
	for _, tc := range []struct{ mb, buckets int }{
		{1, 1 << 14},
		{3, 1 << 15},
		{64, 1 << 20},
		{100, 1 << 20},
	} {
		tt := NewTranspositionTable(tc.mb)
		require.Equal(t, tc.buckets, tt.Buckets(), "%d MB", tc.mb)
		require.Equal(t, 1, bits.OnesCount(uint(tt.Buckets())), "%d MB", tc.mb)
		require.LessOrEqual(t, tt.Buckets()*bucketBytes, tc.mb<<20)
	}
}

func TestTranspositionRoundTrip(t *testing.T) {
	tt := NewTranspositionTable(1)
	require.Equal(t, 1024*1024/64, tt.Buckets())

	pos := board.StartPosition()
	m := pos.GenerateMoves()[3]
	hash := pos.Hash()

	_, hit := tt.Probe(hash)
	require.False(t, hit)

	tt.Insert(hash, 7, -123, BoundLower, m)
	e, hit := tt.Probe(hash)
	require.True(t, hit)
	require.Equal(t, m.Key(), e.Move)
	require.Equal(t, -123, e.Score)
	require.Equal(t, 7, e.Depth)
	require.Equal(t, BoundLower, e.Bound)
	require.True(t, e.Fresh)
	require.Equal(t, m, board.MoveByKey(pos.GenerateMoves(), e.Move))

	_, hit = tt.Probe(hash ^ 1)
	require.False(t, hit, "a different hash in the same bucket must miss")
}

func TestTranspositionKeepsMove(t *testing.T) {
	tt := NewTranspositionTable(1)
	pos := board.StartPosition()
	m := pos.GenerateMoves()[0]

	tt.Insert(pos.Hash(), 3, 10, BoundLower, m)
	tt.Insert(pos.Hash(), 5, -20, BoundUpper, board.NoMove)

	e, hit := tt.Probe(pos.Hash())
	require.True(t, hit)
	require.Equal(t, m.Key(), e.Move)
	require.Equal(t, 5, e.Depth)
	require.Equal(t, -20, e.Score)
	require.Equal(t, BoundUpper, e.Bound)
}

func TestTranspositionReplacement(t *testing.T) {
	tt := NewTranspositionTable(1)
	h := sameBucket(5)

	tt.Insert(h[0], 10, 0, BoundExact, board.NoMove)
	tt.Insert(h[1], 2, 0, BoundExact, board.NoMove)
	tt.Insert(h[2], 5, 0, BoundExact, board.NoMove)

	// Bucket is full: the shallowest entry goes.
	tt.Insert(h[3], 7, 0, BoundExact, board.NoMove)
	for i, want := range []bool{true, false, true, true} {
		_, hit := tt.Probe(h[i])
		require.Equal(t, want, hit, "hash %d", i)
	}

	// One generation later every entry loses ageWeight plies of value.
	tt.IncrementCycle()
	e, hit := tt.Probe(h[0])
	require.True(t, hit)
	require.False(t, e.Fresh)

	tt.Insert(h[4], 1, 0, BoundExact, board.NoMove)
	for i, want := range []bool{true, false, false, true, true} {
		_, hit := tt.Probe(h[i])
		require.Equal(t, want, hit, "hash %d after aging", i)
	}
	e, _ = tt.Probe(h[4])
	require.True(t, e.Fresh)
}

func TestTranspositionClear(t *testing.T) {
	tt := NewTranspositionTable(1)
	for i := 0; i < 1000; i++ {
		tt.Insert(uint64(i)*0x9E3779B97F4A7C15, 1, 0, BoundExact, board.NoMove)
	}
	require.Positive(t, tt.HashFull())

	tt.Clear()
	require.Zero(t, tt.HashFull())
	_, hit := tt.Probe(0x9E3779B97F4A7C15)
	require.False(t, hit)
}

func TestScoreTTConversion(t *testing.T) {
	tests := []struct {
		score, ply int
	}{
		{0, 5},
		{250, 9},
		{-MateBound + 1, 1},
		{MateIn(7), 4},
		{MatedIn(6), 3},
	}
	for _, tt := range tests {
		stored := ScoreToTT(tt.score, tt.ply)
		require.Equal(t, tt.score, ScoreFromTT(stored, tt.ply), "score %d at ply %d", tt.score, tt.ply)
	}

	// A mate found at ply 4, stored, then read at ply 2 is two plies closer.
	stored := ScoreToTT(MateIn(7), 4)
	require.Equal(t, MateIn(5), ScoreFromTT(stored, 2))
	stored = ScoreToTT(MatedIn(8), 4)
	require.Equal(t, MatedIn(6), ScoreFromTT(stored, 2))
}

// ttPayload derives the stored fields from the hash so that a reader can
// detect data belonging to a different position.
func ttPayload(hash uint64) (depth, score int) {
	return int(hash%60) + 1, int(hash>>48)%20000 - 10000
}

func TestTranspositionConcurrent(t *testing.T) {
	tt := NewTranspositionTable(1)

	seed := rand.New(rand.NewSource(7))
	pool := make([]uint64, 1<<14)
	for i := range pool {
		pool[i] = seed.Uint64()
	}

	var g errgroup.Group
	for worker := 0; worker < 8; worker++ {
		worker := worker
		g.Go(func() error {
			r := rand.New(rand.NewSource(uint64(worker) + 1))
			for i := 0; i < 100_000; i++ {
				h := pool[r.Intn(len(pool))]
				depth, score := ttPayload(h)
				if r.Intn(2) == 0 {
					tt.Insert(h, depth, score, BoundExact, board.NoMove)
					continue
				}
				e, hit := tt.Probe(h)
				if !hit {
					continue
				}
				if e.Depth != depth || e.Score != score || e.Bound != BoundExact {
					return fmt.Errorf("hash %x: got depth %d score %d bound %v", h, e.Depth, e.Score, e.Bound)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
