package engine

import (
	"github.com/hailam/smpchess/internal/board"
)

// seeValues are the piece values used by exchange evaluation. The king is
// worth more than any material so that it only captures last.
var seeValues = [...]int{
	board.PawnValue, board.KnightValue, board.BishopValue,
	board.RookValue, board.QueenValue, 20000, 0,
}

// exchange holds what both SEE forms need about the first capture.
type exchange struct {
	to        board.Square
	occupied  board.Bitboard
	gain      int // value won by the first capture
	onSquare  board.PieceType
	diagonals board.Bitboard
	straights board.Bitboard
}

func newExchange(pos *board.Position, m board.Move) exchange {
	from, to := m.From(), m.To()
	e := exchange{
		to:       to,
		occupied: pos.Occupied()&^board.SquareBB(from) | board.SquareBB(to),
		onSquare: m.Piece().Type(),
	}
	if v := m.Captured(); v != board.NoPiece {
		e.gain = seeValues[v.Type()]
	}
	if p := m.Promotion(); p != board.NoPieceType {
		e.gain += seeValues[p] - seeValues[board.Pawn]
		e.onSquare = p
	}
	if m.Kind() == board.EnPassant {
		e.occupied &^= board.SquareBB(board.NewSquare(to.File(), from.Rank()))
	}
	for _, c := range [...]board.Color{board.White, board.Black} {
		q := pos.Pieces(c, board.Queen)
		e.diagonals |= pos.Pieces(c, board.Bishop) | q
		e.straights |= pos.Pieces(c, board.Rook) | q
	}
	return e
}

// leastValuable returns the cheapest piece in attackers and its square.
func leastValuable(pos *board.Position, attackers board.Bitboard) (board.PieceType, board.Square) {
	for pt := board.Pawn; pt <= board.King; pt++ {
		if bb := attackers & (pos.Pieces(board.White, pt) | pos.Pieces(board.Black, pt)); bb != 0 {
			return pt, bb.LSB()
		}
	}
	return board.NoPieceType, board.NoSquare
}

// remove takes the piece on sq out of the exchange and reveals the
// sliders behind it.
func (e *exchange) remove(pos *board.Position, pt board.PieceType, sq board.Square, attackers board.Bitboard) board.Bitboard {
	e.occupied &^= board.SquareBB(sq)
	if pt == board.Pawn || pt == board.Bishop || pt == board.Queen {
		attackers |= board.BishopAttacks(e.to, e.occupied) & e.diagonals
	}
	if pt == board.Rook || pt == board.Queen {
		attackers |= board.RookAttacks(e.to, e.occupied) & e.straights
	}
	return attackers & e.occupied
}

// StaticExchange returns the material balance for the side to move after
// m and the full sequence of least-valuable recaptures on the target
// square, where either side may stop capturing when that is better.
func StaticExchange(pos *board.Position, m board.Move) int {
	e := newExchange(pos, m)
	attackers := pos.AttackersTo(e.to, e.occupied) & e.occupied

	var gain [33]int
	gain[0] = e.gain
	victim := e.onSquare
	side := pos.SideToMove().Other()
	d := 0
	for {
		d++
		gain[d] = seeValues[victim] - gain[d-1]
		mine := attackers & pos.ColorBB(side)
		if mine == 0 || d == len(gain)-1 {
			break
		}
		pt, sq := leastValuable(pos, mine)
		attackers = e.remove(pos, pt, sq, attackers)
		victim = pt
		side = side.Other()
	}
	for d--; d > 0; d-- {
		gain[d-1] = -max(-gain[d-1], gain[d])
	}
	return gain[0]
}

// SeeGE reports whether StaticExchange(pos, m) >= threshold without
// building the full swap list.
func SeeGE(pos *board.Position, m board.Move, threshold int) bool {
	e := newExchange(pos, m)

	balance := e.gain - threshold
	if balance < 0 {
		return false
	}
	balance -= seeValues[e.onSquare]
	if balance >= 0 {
		return true
	}

	us := pos.SideToMove()
	attackers := pos.AttackersTo(e.to, e.occupied) & e.occupied
	side := us.Other()
	for {
		mine := attackers & pos.ColorBB(side)
		if mine == 0 {
			break
		}
		pt, sq := leastValuable(pos, mine)
		attackers = e.remove(pos, pt, sq, attackers)
		side = side.Other()

		balance = -balance - 1 - seeValues[pt]
		if balance >= 0 {
			if pt == board.King && attackers&pos.ColorBB(side) != 0 {
				side = side.Other()
			}
			break
		}
	}
	return side != us
}
