package engine

import (
	"github.com/hailam/smpchess/internal/board"
)

// Move ordering priorities
const (
	TTMoveScore     = 10_000_000 // TT move gets highest priority
	GoodCaptureBase = 1_000_000  // captures that do not lose material
	PromotionScore  = 950_000    // quiet promotions
	KillerScore1    = 900_000    // first killer move
	KillerScore2    = 800_000    // second killer move
	CounterScore    = 700_000    // reply to the previous move
	BadCaptureBase  = -1_000_000 // captures losing material by SEE
)

// orderValues rank attackers and victims for MVV-LVA. The king sorts after
// the queen as an attacker and is never a victim.
var orderValues = [...]int{
	board.PawnValue, board.KnightValue, board.BishopValue,
	board.RookValue, board.QueenValue, 1000, 0,
}

// mvvLva ranks a capture by victim value minus attacker value.
func mvvLva(m board.Move) int {
	return orderValues[victimType(m)] - orderValues[m.Piece().Type()]
}

// scoreMoves fills scores with ordering keys for moves at ply.
func (w *Worker) scoreMoves(pos *board.Position, moves []board.Move, scores []int, ply int, ttMove, prev board.Move) {
	side := pos.SideToMove()
	killers := w.stack.Killers(ply)
	counter := w.stack.CounterMove(side, prev)

	for i, m := range moves {
		switch {
		case m == ttMove:
			scores[i] = TTMoveScore
		case m.IsCapture():
			s := mvvLva(m)*16 + w.stack.CaptureScore(m)/32
			if m.Promotion() == board.Queen {
				s += board.QueenValue * 16
			}
			if SeeGE(pos, m, 0) {
				scores[i] = GoodCaptureBase + s
			} else {
				scores[i] = BadCaptureBase + s
			}
		case m.Kind() == board.Promotion:
			scores[i] = PromotionScore + orderValues[m.Promotion()]
		case m == killers[0]:
			scores[i] = KillerScore1
		case m == killers[1]:
			scores[i] = KillerScore2
		case m == counter:
			scores[i] = CounterScore
		default:
			scores[i] = w.stack.ButterflyScore(side, m)
		}
	}
}

// scoreCaptures orders quiescence moves by MVV-LVA alone.
func scoreCaptures(moves []board.Move, scores []int) {
	for i, m := range moves {
		scores[i] = mvvLva(m)
		if p := m.Promotion(); p != board.NoPieceType {
			scores[i] += orderValues[p]
		}
	}
}

// PickMove selects the best remaining move and moves it to position index.
// This allows lazy move sorting (only sort as much as needed).
func PickMove(moves []board.Move, scores []int, index int) {
	best := index
	for j := index + 1; j < len(moves); j++ {
		if scores[j] > scores[best] {
			best = j
		}
	}
	if best != index {
		moves[index], moves[best] = moves[best], moves[index]
		scores[index], scores[best] = scores[best], scores[index]
	}
}
