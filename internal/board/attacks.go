package board

import "github.com/dylhunn/dragontoothmg"

// Leaper attack tables, built once at init and read-only afterwards.
var (
	pawnAttacks   [2][64]Bitboard
	knightAttacks [64]Bitboard
	kingAttacks   [64]Bitboard
)

func init() {
	for sq := A1; sq <= H8; sq++ {
		b := SquareBB(sq)

		pawnAttacks[White][sq] = b.north().east() | b.north().west()
		pawnAttacks[Black][sq] = b.south().east() | b.south().west()

		n, s := b.north(), b.south()
		kingAttacks[sq] = n | s | b.east() | b.west() |
			n.east() | n.west() | s.east() | s.west()

		nn, ss := n.north(), s.south()
		ee, ww := b.east().east(), b.west().west()
		knightAttacks[sq] = nn.east() | nn.west() | ss.east() | ss.west() |
			ee.north() | ee.south() | ww.north() | ww.south()
	}
}

// PawnAttacks returns the squares a pawn of color c on sq attacks.
func PawnAttacks(c Color, sq Square) Bitboard { return pawnAttacks[c][sq] }

func KnightAttacks(sq Square) Bitboard { return knightAttacks[sq] }
func KingAttacks(sq Square) Bitboard   { return kingAttacks[sq] }

// BishopAttacks returns diagonal attacks from sq given the occupancy.
func BishopAttacks(sq Square, occupied Bitboard) Bitboard {
	return Bitboard(dragontoothmg.CalculateBishopMoveBitboard(uint8(sq), uint64(occupied)))
}

// RookAttacks returns orthogonal attacks from sq given the occupancy.
func RookAttacks(sq Square, occupied Bitboard) Bitboard {
	return Bitboard(dragontoothmg.CalculateRookMoveBitboard(uint8(sq), uint64(occupied)))
}

// AttackersTo returns the pieces of both colors attacking sq when the board
// occupancy is occupied. Pieces absent from occupied are still included; the
// caller masks them out when simulating exchanges.
func (p *Position) AttackersTo(sq Square, occupied Bitboard) Bitboard {
	w, b := &p.b.White, &p.b.Black
	diag := Bitboard(w.Bishops | w.Queens | b.Bishops | b.Queens)
	orth := Bitboard(w.Rooks | w.Queens | b.Rooks | b.Queens)

	return pawnAttacks[Black][sq]&Bitboard(w.Pawns) |
		pawnAttacks[White][sq]&Bitboard(b.Pawns) |
		knightAttacks[sq]&Bitboard(w.Knights|b.Knights) |
		kingAttacks[sq]&Bitboard(w.Kings|b.Kings) |
		BishopAttacks(sq, occupied)&diag |
		RookAttacks(sq, occupied)&orth
}

// IsAttacked reports whether any piece of color by attacks sq.
func (p *Position) IsAttacked(sq Square, by Color) bool {
	return p.AttackersTo(sq, p.Occupied())&p.ColorBB(by) != 0
}
