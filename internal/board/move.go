package board

import "github.com/dylhunn/dragontoothmg"

// MoveKind tags a move with what it does to the board.
type MoveKind uint8

const (
	Quiet MoveKind = iota
	Capture
	PawnDouble
	EnPassant
	Castle
	Promotion
	PromotionCapture
	NullMoveKind
)

var moveKindNames = [...]string{"quiet", "capture", "double", "enpassant", "castle", "promotion", "promotion-capture", "null"}

func (k MoveKind) String() string { return moveKindNames[k] }

// Move packs a generated move together with its tag:
//
//	bits  0-15: movegen encoding
//	bits 16-21: from square
//	bits 22-27: to square
//	bits 28-30: promotion piece type + 1 (0 = none)
//	bits 31-34: kind
//	bits 35-38: moving piece
//	bits 39-42: captured piece
type Move uint64

const (
	// NoMove is the zero move; never generated.
	NoMove Move = 0
	// NullMove passes the turn.
	NullMove Move = Move(NullMoveKind)<<31 | Move(NoPiece)<<35 | Move(NoPiece)<<39
)

func newMove(raw dragontoothmg.Move, from, to Square, promo PieceType, kind MoveKind, piece, victim Piece) Move {
	m := Move(raw) | Move(from)<<16 | Move(to)<<22 | Move(kind)<<31 | Move(piece)<<35 | Move(victim)<<39
	if promo != NoPieceType {
		m |= Move(promo+1) << 28
	}
	return m
}

func (m Move) raw() dragontoothmg.Move { return dragontoothmg.Move(m & 0xFFFF) }

// Key is a 16-bit identifier of the move, unique among the moves of a
// position. Used to store moves compactly in the transposition table.
func (m Move) Key() uint16 { return uint16(m) }

func (m Move) From() Square   { return Square(m>>16) & 63 }
func (m Move) To() Square     { return Square(m>>22) & 63 }
func (m Move) Kind() MoveKind { return MoveKind(m>>31) & 15 }
func (m Move) Piece() Piece   { return Piece(m>>35) & 15 }

// Captured returns the captured piece, NoPiece for non-captures.
func (m Move) Captured() Piece { return Piece(m>>39) & 15 }

// Promotion returns the promotion piece type, NoPieceType if none.
func (m Move) Promotion() PieceType {
	p := PieceType(m>>28) & 7
	if p == 0 {
		return NoPieceType
	}
	return p - 1
}

func (m Move) IsNull() bool { return m.Kind() == NullMoveKind }

// IsCapture reports captures including en passant and capturing promotions.
func (m Move) IsCapture() bool {
	switch m.Kind() {
	case Capture, EnPassant, PromotionCapture:
		return true
	}
	return false
}

// IsTactical reports captures and promotions.
func (m Move) IsTactical() bool {
	k := m.Kind()
	return m.IsCapture() || k == Promotion
}

// String returns the move in UCI long algebraic notation.
func (m Move) String() string {
	switch {
	case m == NoMove:
		return "0000"
	case m.IsNull():
		return "null"
	}
	s := m.From().String() + m.To().String()
	if p := m.Promotion(); p != NoPieceType {
		s += string(p.Char())
	}
	return s
}
