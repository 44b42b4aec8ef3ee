package board

import "math/bits"

// Bitboard is a set of squares, bit i set for Square i.
type Bitboard uint64

const (
	FileA Bitboard = 0x0101010101010101
	FileH Bitboard = FileA << 7
	Rank2 Bitboard = 0xFF << 8
	Rank7 Bitboard = 0xFF << 48
)

// SquareBB returns the single-square bitboard.
func SquareBB(sq Square) Bitboard {
	return 1 << sq
}

func (b Bitboard) Has(sq Square) bool { return b&SquareBB(sq) != 0 }
func (b Bitboard) Empty() bool        { return b == 0 }
func (b Bitboard) PopCount() int      { return bits.OnesCount64(uint64(b)) }

// LSB returns the lowest set square, NoSquare for an empty set.
func (b Bitboard) LSB() Square {
	if b == 0 {
		return NoSquare
	}
	return Square(bits.TrailingZeros64(uint64(b)))
}

// PopLSB removes and returns the lowest set square.
func (b *Bitboard) PopLSB() Square {
	sq := b.LSB()
	*b &= *b - 1
	return sq
}

func (b Bitboard) north() Bitboard { return b << 8 }
func (b Bitboard) south() Bitboard { return b >> 8 }
func (b Bitboard) east() Bitboard  { return (b &^ FileH) << 1 }
func (b Bitboard) west() Bitboard  { return (b &^ FileA) >> 1 }
