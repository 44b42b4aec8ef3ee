package engine

import (
	"fmt"

	"github.com/hailam/smpchess/internal/board"
)

// HistoryMax bounds every history counter in absolute value.
const HistoryMax = 1 << 14

// doubleExtScale is the fixed-point scale of the double extension average.
const doubleExtScale = 16

// StackPly is the per-ply scratch state of one worker's search.
type StackPly struct {
	Killers          [2]board.Move
	CurrentMove      board.Move
	StaticEval       int
	Depth            int
	Material         int // non-pawn material of the side to move
	InCheck          bool
	DoubleExtensions int // double extensions granted on the path to this ply

	quiets   []board.Move
	captures []board.Move
}

// SearchStack owns a worker's per-ply state and its history heuristics.
// It is never shared between workers.
type SearchStack struct {
	plies [MaxPly + 1]StackPly

	// butterfly[side][from][to] scores quiet moves.
	butterfly [2][64][64]int
	// captureHist[piece][to][victim] scores captures.
	captureHist [12][64][6]int
	// counters[side][piece][to] is the reply that refuted the previous move.
	counters [2][12][64]board.Move

	doubleExtAvg [2]int

	// keys holds position hashes from the game start to the current node.
	// A zero entry marks a null move; repetitions are not searched across it.
	keys []uint64

	pv PVTable
}

// NewSearchStack allocates a stack with empty history.
func NewSearchStack() *SearchStack {
	return &SearchStack{keys: make([]uint64, 0, 1024)}
}

// Ply returns the scratch state for ply. Exceeding MaxPly is a bug.
func (ss *SearchStack) Ply(ply int) *StackPly {
	if ply < 0 || ply > MaxPly {
		panic(fmt.Sprintf("search stack: ply %d out of range", ply))
	}
	return &ss.plies[ply]
}

// InitNode prepares ply for a node of pos searched to depth. The double
// extension count is inherited from the parent ply; killers two plies down
// are reset so they only carry information from this subtree.
func (ss *SearchStack) InitNode(ply, depth int, pos *board.Position) *StackPly {
	sp := ss.Ply(ply)
	sp.Depth = depth
	sp.InCheck = pos.InCheck()
	sp.Material = pos.NonPawnMaterial(pos.SideToMove())
	sp.CurrentMove = board.NoMove
	sp.quiets = sp.quiets[:0]
	sp.captures = sp.captures[:0]
	if ply > 0 {
		sp.DoubleExtensions = ss.plies[ply-1].DoubleExtensions
	} else {
		sp.DoubleExtensions = 0
	}
	if ply+2 <= MaxPly {
		ss.plies[ply+2].Killers = [2]board.Move{}
	}
	return sp
}

// Killers returns the killer moves of ply, most recent first.
func (ss *SearchStack) Killers(ply int) [2]board.Move {
	return ss.Ply(ply).Killers
}

// StoreKiller records a quiet move that caused a cutoff at ply.
func (ss *SearchStack) StoreKiller(ply int, m board.Move) {
	k := &ss.Ply(ply).Killers
	if k[0] == m {
		return
	}
	k[1] = k[0]
	k[0] = m
}

// CounterMove returns the stored reply to prev for side, or NoMove.
func (ss *SearchStack) CounterMove(side board.Color, prev board.Move) board.Move {
	if prev == board.NoMove || prev.IsNull() {
		return board.NoMove
	}
	return ss.counters[side][prev.Piece()][prev.To()]
}

// StoreCounterMove records m as the reply of side to prev.
func (ss *SearchStack) StoreCounterMove(side board.Color, prev, m board.Move) {
	if prev == board.NoMove || prev.IsNull() {
		return
	}
	ss.counters[side][prev.Piece()][prev.To()] = m
}

// ButterflyScore returns the quiet history of m for side.
func (ss *SearchStack) ButterflyScore(side board.Color, m board.Move) int {
	return ss.butterfly[side][m.From()][m.To()]
}

// CaptureScore returns the capture history of m.
func (ss *SearchStack) CaptureScore(m board.Move) int {
	return ss.captureHist[m.Piece()][m.To()][victimType(m)]
}

func victimType(m board.Move) board.PieceType {
	if v := m.Captured(); v != board.NoPiece {
		return v.Type()
	}
	return board.Pawn
}

// gravity moves v towards the bonus direction, shrinking the step as |v|
// approaches HistoryMax so that |v| never exceeds it.
func gravity(v *int, bonus int) {
	abs := bonus
	if abs < 0 {
		abs = -abs
	}
	*v += bonus - *v*abs/HistoryMax
}

// HistoryBonus returns the reward for a move at depth.
func HistoryBonus(depth int) int {
	return min(HistoryMax, depth*depth)
}

// UpdateHistory rewards best and penalizes the other quiets and captures
// tried at the node.
func (ss *SearchStack) UpdateHistory(pos *board.Position, best board.Move, quiets, captures []board.Move, depth int) {
	side := pos.SideToMove()
	bonus := HistoryBonus(depth)

	if best.IsTactical() {
		gravity(&ss.captureHist[best.Piece()][best.To()][victimType(best)], bonus)
	} else {
		gravity(&ss.butterfly[side][best.From()][best.To()], bonus)
	}
	for _, m := range quiets {
		if m != best {
			gravity(&ss.butterfly[side][m.From()][m.To()], -bonus)
		}
	}
	for _, m := range captures {
		if m != best {
			gravity(&ss.captureHist[m.Piece()][m.To()][victimType(m)], -bonus)
		}
	}
}

// RecordDoubleExtensions folds the double extensions granted in one
// iteration into side's running average.
func (ss *SearchStack) RecordDoubleExtensions(side board.Color, n int) {
	avg := &ss.doubleExtAvg[side]
	*avg = (*avg*7 + n*doubleExtScale) / 8
}

// DoubleExtensionLimit returns how many double extensions one path may
// take. It drops by one while the running average shows they are frequent.
func (ss *SearchStack) DoubleExtensionLimit(side board.Color, base int) int {
	if base > 0 && ss.doubleExtAvg[side] > base*doubleExtScale {
		return base - 1
	}
	return base
}

// ClearHistory resets all persistent heuristic tables. Per-ply scratch is
// left alone.
func (ss *SearchStack) ClearHistory() {
	ss.butterfly = [2][64][64]int{}
	ss.captureHist = [12][64][6]int{}
	ss.counters = [2][12][64]board.Move{}
	ss.doubleExtAvg = [2]int{}
}

// SetGameHistory replaces the move history with the game's position
// hashes; the last hash must be the root.
func (ss *SearchStack) SetGameHistory(keys []uint64) {
	ss.keys = append(ss.keys[:0], keys...)
}

// PushHistory appends the hash of a position entered by the search. A null
// move pushes zero.
func (ss *SearchStack) PushHistory(key uint64) {
	ss.keys = append(ss.keys, key)
}

// PopHistory removes the last pushed hash.
func (ss *SearchStack) PopHistory() {
	ss.keys = ss.keys[:len(ss.keys)-1]
}

// IsRepetition reports whether the current position, the last pushed hash,
// occurred before within the last halfMoveClock plies.
func (ss *SearchStack) IsRepetition(halfMoveClock int) bool {
	n := len(ss.keys)
	if n < 5 {
		return false
	}
	key := ss.keys[n-1]
	stop := max(0, n-1-halfMoveClock)
	for i := n - 3; i >= stop; i -= 2 {
		if ss.keys[i] == key {
			return true
		}
		if ss.keys[i] == 0 || ss.keys[i+1] == 0 {
			return false
		}
	}
	return false
}

// PV returns the principal variation table.
func (ss *SearchStack) PV() *PVTable {
	return &ss.pv
}
