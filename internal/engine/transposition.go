package engine

import (
	"math/bits"
	"sync/atomic"

	"github.com/hailam/smpchess/internal/board"
)

// Entries per bucket. A bucket fills one 64-byte cache line.
const (
	bucketSlots = 3
	bucketBytes = 64
)

// Entry data layout, packed into one uint64:
//
//	bits  0-15: move key
//	bits 16-31: score (int16)
//	bits 32-39: depth
//	bits 40-41: bound
//	bits 42-49: generation
const (
	ttScoreShift = 16
	ttDepthShift = 32
	ttBoundShift = 40
	ttGenShift   = 42
)

// ageWeight is how many plies of depth one generation of age is worth
// when choosing a slot to overwrite.
const ageWeight = 4

// TTEntry is a decoded transposition table entry.
type TTEntry struct {
	Move       uint16 // board.Move key, 0 if none
	Score      int    // ply-relative, see ScoreFromTT
	Depth      int
	Bound      Bound
	Generation uint8
	Fresh      bool // written during the current search cycle
}

// ttSlot holds one entry as two words. key is the position hash XOR data;
// a reader that sees a half-written slot fails the XOR check and treats it
// as a miss.
type ttSlot struct {
	key  atomic.Uint64
	data atomic.Uint64
}

type ttBucket struct {
	slots [bucketSlots]ttSlot
	_     [64 - bucketSlots*16]byte
}

// TranspositionTable is a fixed-size hash table shared by all workers
// without locks. Entries may be stale or overwritten at any time; every
// probe result is a hint that the caller validates.
type TranspositionTable struct {
	buckets []ttBucket
	cycle   atomic.Uint32
}

// NewTranspositionTable creates a table with the largest power-of-two
// bucket count that fits in sizeMB megabytes.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	if sizeMB < 1 {
		sizeMB = 1
	}
	n := uint64(sizeMB) * 1024 * 1024 / bucketBytes
	n = 1 << (bits.Len64(n) - 1)
	return &TranspositionTable{
		buckets: make([]ttBucket, n),
	}
}

// Buckets returns the number of buckets.
func (tt *TranspositionTable) Buckets() int {
	return len(tt.buckets)
}

func (tt *TranspositionTable) bucket(hash uint64) *ttBucket {
	idx, _ := bits.Mul64(hash, uint64(len(tt.buckets)))
	if idx >= uint64(len(tt.buckets)) {
		panic("transposition table index out of range")
	}
	return &tt.buckets[idx]
}

func packEntry(move uint16, score, depth int, bound Bound, gen uint8) uint64 {
	if depth < 0 {
		depth = 0
	}
	return uint64(move) |
		uint64(uint16(int16(score)))<<ttScoreShift |
		uint64(uint8(depth))<<ttDepthShift |
		uint64(bound)<<ttBoundShift |
		uint64(gen)<<ttGenShift
}

func entryMove(d uint64) uint16 { return uint16(d) }
func entryScore(d uint64) int   { return int(int16(uint16(d >> ttScoreShift))) }
func entryDepth(d uint64) int   { return int(uint8(d >> ttDepthShift)) }
func entryBound(d uint64) Bound { return Bound(d>>ttBoundShift) & 3 }
func entryGen(d uint64) uint8   { return uint8(d >> ttGenShift) }

// Probe returns the first entry in the bucket whose check key matches hash.
func (tt *TranspositionTable) Probe(hash uint64) (TTEntry, bool) {
	b := tt.bucket(hash)
	gen := uint8(tt.cycle.Load())
	for i := range b.slots {
		s := &b.slots[i]
		data := s.data.Load()
		if data == 0 || s.key.Load()^data != hash {
			continue
		}
		return TTEntry{
			Move:       entryMove(data),
			Score:      entryScore(data),
			Depth:      entryDepth(data),
			Bound:      entryBound(data),
			Generation: entryGen(data),
			Fresh:      entryGen(data) == gen,
		}, true
	}
	return TTEntry{}, false
}

// Insert stores a search result. The slot is chosen in order: an entry for
// the same position, an empty slot, then the entry with the lowest
// age-adjusted depth. When the same position is stored without a move the
// previous move is kept.
func (tt *TranspositionTable) Insert(hash uint64, depth, score int, bound Bound, move board.Move) {
	b := tt.bucket(hash)
	gen := uint8(tt.cycle.Load())
	key := move.Key()

	var target *ttSlot
	empty := -1
	worst, worstValue := 0, int(^uint(0)>>1)
	for i := range b.slots {
		s := &b.slots[i]
		data := s.data.Load()
		if data == 0 {
			if empty < 0 {
				empty = i
			}
			continue
		}
		if s.key.Load()^data == hash {
			target = s
			if key == 0 {
				key = entryMove(data)
			}
			break
		}
		age := int(gen - entryGen(data))
		if v := entryDepth(data) - ageWeight*age; v < worstValue {
			worst, worstValue = i, v
		}
	}
	if target == nil {
		if empty >= 0 {
			target = &b.slots[empty]
		} else {
			target = &b.slots[worst]
		}
	}

	data := packEntry(key, score, depth, bound, gen)
	target.data.Store(data)
	target.key.Store(hash ^ data)
}

// Prefetch touches the bucket for hash so that a following Probe is more
// likely to hit the CPU cache. It has no observable effect.
func (tt *TranspositionTable) Prefetch(hash uint64) {
	_ = tt.bucket(hash).slots[0].data.Load()
}

// IncrementCycle starts a new search generation. Entries written in
// earlier generations are reported as not fresh and are preferred for
// replacement.
func (tt *TranspositionTable) IncrementCycle() {
	tt.cycle.Add(1)
}

// Clear empties the table. Must not run concurrently with a search.
func (tt *TranspositionTable) Clear() {
	for i := range tt.buckets {
		for j := range tt.buckets[i].slots {
			tt.buckets[i].slots[j].data.Store(0)
			tt.buckets[i].slots[j].key.Store(0)
		}
	}
	tt.cycle.Store(0)
}

// HashFull returns the permille of sampled slots written in the current cycle.
func (tt *TranspositionTable) HashFull() int {
	sample := 1000 / bucketSlots
	if sample > len(tt.buckets) {
		sample = len(tt.buckets)
	}
	gen := uint8(tt.cycle.Load())
	used := 0
	for i := 0; i < sample; i++ {
		for j := range tt.buckets[i].slots {
			d := tt.buckets[i].slots[j].data.Load()
			if d != 0 && entryGen(d) == gen {
				used++
			}
		}
	}
	return used * 1000 / (sample * bucketSlots)
}

// ScoreToTT converts a root-relative mate score into a node-relative one.
func ScoreToTT(score, ply int) int {
	switch {
	case score >= MateBound:
		return score + ply
	case score <= -MateBound:
		return score - ply
	}
	return score
}

// ScoreFromTT converts a stored node-relative mate score back to root-relative.
func ScoreFromTT(score, ply int) int {
	switch {
	case score >= MateBound:
		return score - ply
	case score <= -MateBound:
		return score + ply
	}
	return score
}
