// Package engine implements the parallel chess search: iterative deepening
// negamax with alpha-beta, quiescence, a shared lock-free transposition
// table and Lazy SMP coordination of worker goroutines.
package engine

import (
	"fmt"

	"github.com/hailam/smpchess/internal/board"
)

// Search constants
const (
	Infinity       = 32000
	CheckmateValue = 31000
	StalemateValue = 0
	DrawValue      = StalemateValue
	MaxPly         = 128

	// MateBound separates mate scores from material scores.
	MateBound = CheckmateValue - MaxPly
)

// Bound describes how a score relates to the true value of a node.
type Bound uint8

const (
	BoundNone Bound = iota
	BoundUpper
	BoundLower
	BoundExact
)

func (b Bound) String() string {
	switch b {
	case BoundUpper:
		return "upperbound"
	case BoundLower:
		return "lowerbound"
	case BoundExact:
		return "exact"
	}
	return "none"
}

// nodeKind selects the per-node behaviour of the alpha-beta search.
type nodeKind uint8

const (
	rootNode nodeKind = iota
	pvNode
	nonPVNode
)

func (k nodeKind) isPV() bool { return k != nonPVNode }

// IsMateScore reports whether score encodes a forced mate for either side.
func IsMateScore(score int) bool {
	return score >= MateBound || score <= -MateBound
}

// MatedIn returns the score of being checkmated at ply.
func MatedIn(ply int) int { return -CheckmateValue + ply }

// MateIn returns the score of delivering checkmate at ply.
func MateIn(ply int) int { return CheckmateValue - ply }

// MateDistance returns the number of plies to mate encoded in score.
func MateDistance(score int) int {
	if score > 0 {
		return CheckmateValue - score
	}
	return CheckmateValue + score
}

// ScoreToString formats a score for UCI output ("cp 25" or "mate 3").
func ScoreToString(score int) string {
	if !IsMateScore(score) {
		return fmt.Sprintf("cp %d", score)
	}
	plies := MateDistance(score)
	if score > 0 {
		return fmt.Sprintf("mate %d", (plies+1)/2)
	}
	return fmt.Sprintf("mate %d", -(plies+1)/2)
}

// PVTable stores the principal variation as a triangular array.
type PVTable struct {
	length [MaxPly + 1]int
	moves  [MaxPly + 1][MaxPly + 1]board.Move
}

func (pv *PVTable) clear(ply int) {
	pv.length[ply] = ply
}

// update sets m as the best move at ply followed by the child's line.
func (pv *PVTable) update(ply int, m board.Move) {
	pv.moves[ply][ply] = m
	next := ply + 1
	n := pv.length[next]
	if n < next {
		n = next
	}
	copy(pv.moves[ply][next:n], pv.moves[next][next:n])
	pv.length[ply] = n
}

// Line returns a copy of the principal variation from the root.
func (pv *PVTable) Line() []board.Move {
	line := make([]board.Move, pv.length[0])
	copy(line, pv.moves[0][:pv.length[0]])
	return line
}
