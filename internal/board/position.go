package board

import (
	"cmp"
	"slices"

	"github.com/dylhunn/dragontoothmg"
)

// nullMoveKey is mixed into the hash after a null move so that positions
// reached by passing never share a key with the real position.
const nullMoveKey uint64 = 0x9D39247E33776D41

// Position is an immutable-by-convention chess position. Making a move
// returns a new Position; the receiver is never modified.
type Position struct {
	b    dragontoothmg.Board
	salt uint64
	// ep is the en passant target after a double pawn push, NoSquare otherwise.
	ep Square
}

// SideToMove returns the color to move.
func (p *Position) SideToMove() Color {
	if p.b.Wtomove {
		return White
	}
	return Black
}

// Hash returns the Zobrist key of the position.
func (p *Position) Hash() uint64 {
	return p.b.Hash() ^ p.salt
}

// HalfMoveClock returns the number of plies since the last capture or pawn move.
func (p *Position) HalfMoveClock() int { return int(p.b.Halfmoveclock) }

// FullMoveNumber returns the move counter as in FEN.
func (p *Position) FullMoveNumber() int { return int(p.b.Fullmoveno) }

// EnPassant returns the en passant target square or NoSquare.
func (p *Position) EnPassant() Square { return p.ep }

// InCheck reports whether the side to move is in check.
func (p *Position) InCheck() bool {
	return p.b.OurKingInCheck()
}

func (p *Position) side(c Color) *dragontoothmg.Bitboards {
	if c == White {
		return &p.b.White
	}
	return &p.b.Black
}

// Pieces returns the bitboard of pieces of type pt and color c.
func (p *Position) Pieces(c Color, pt PieceType) Bitboard {
	bb := p.side(c)
	switch pt {
	case Pawn:
		return Bitboard(bb.Pawns)
	case Knight:
		return Bitboard(bb.Knights)
	case Bishop:
		return Bitboard(bb.Bishops)
	case Rook:
		return Bitboard(bb.Rooks)
	case Queen:
		return Bitboard(bb.Queens)
	case King:
		return Bitboard(bb.Kings)
	}
	return 0
}

// ColorBB returns all pieces of color c.
func (p *Position) ColorBB(c Color) Bitboard { return Bitboard(p.side(c).All) }

// Occupied returns all pieces on the board.
func (p *Position) Occupied() Bitboard {
	return Bitboard(p.b.White.All | p.b.Black.All)
}

// KingSquare returns the king square of color c.
func (p *Position) KingSquare(c Color) Square {
	return Bitboard(p.side(c).Kings).LSB()
}

// PieceAt returns the piece on sq, NoPiece if empty.
func (p *Position) PieceAt(sq Square) Piece {
	bit := uint64(SquareBB(sq))
	c := White
	switch {
	case p.b.White.All&bit != 0:
	case p.b.Black.All&bit != 0:
		c = Black
	default:
		return NoPiece
	}
	bb := p.side(c)
	switch {
	case bb.Pawns&bit != 0:
		return NewPiece(Pawn, c)
	case bb.Knights&bit != 0:
		return NewPiece(Knight, c)
	case bb.Bishops&bit != 0:
		return NewPiece(Bishop, c)
	case bb.Rooks&bit != 0:
		return NewPiece(Rook, c)
	case bb.Queens&bit != 0:
		return NewPiece(Queen, c)
	case bb.Kings&bit != 0:
		return NewPiece(King, c)
	}
	return NoPiece
}

// NonPawnMaterial returns the material value of the knights, bishops, rooks
// and queens of color c.
func (p *Position) NonPawnMaterial(c Color) int {
	v := 0
	for pt := Knight; pt <= Queen; pt++ {
		v += p.Pieces(c, pt).PopCount() * pt.Value()
	}
	return v
}

// HasPawnOnSeventh reports whether color c has a pawn one step from promotion.
func (p *Position) HasPawnOnSeventh(c Color) bool {
	if c == White {
		return p.Pieces(White, Pawn)&Rank7 != 0
	}
	return p.Pieces(Black, Pawn)&Rank2 != 0
}

// IsInsufficientMaterial reports positions where neither side can mate:
// bare kings, or a single minor piece against a bare king.
func (p *Position) IsInsufficientMaterial() bool {
	w, b := &p.b.White, &p.b.Black
	if w.Pawns|b.Pawns|w.Rooks|b.Rooks|w.Queens|b.Queens != 0 {
		return false
	}
	minors := Bitboard(w.Knights | w.Bishops | b.Knights | b.Bishops)
	return minors.PopCount() <= 1
}

// MakeMove plays m and returns the resulting position. The second result
// is false when m leaves the mover's king attacked; the returned position
// is then meaningless.
func (p *Position) MakeMove(m Move) (Position, bool) {
	if m == NoMove || m.IsNull() {
		return Position{}, false
	}
	us := p.SideToMove()
	child := *p
	child.b.Apply(m.raw())
	child.ep = NoSquare
	if m.Kind() == PawnDouble {
		child.ep = (m.From() + m.To()) / 2
	}
	if child.IsAttacked(child.KingSquare(us), us.Other()) {
		return Position{}, false
	}
	return child, true
}

// MakeNullMove passes the turn. Not allowed while in check or while an
// en passant capture is available, since the movegen state cannot express
// a cleared en passant square.
func (p *Position) MakeNullMove() (Position, bool) {
	if p.ep != NoSquare || p.InCheck() {
		return Position{}, false
	}
	child := *p
	child.b.Wtomove = !child.b.Wtomove
	child.salt ^= nullMoveKey
	return child, true
}

// GenerateMoves returns all legal moves, tagged. Moves are sorted by
// from and to square as seen from the mover's side, so a position and its
// color mirror list corresponding moves in the same order.
func (p *Position) GenerateMoves() []Move {
	raw := p.b.GenerateLegalMoves()
	moves := make([]Move, len(raw))
	for i, r := range raw {
		moves[i] = p.tag(r)
	}
	flip := Square(0)
	if !p.b.Wtomove {
		flip = 56
	}
	slices.SortFunc(moves, func(a, b Move) int {
		return cmp.Compare(orderKey(a, flip), orderKey(b, flip))
	})
	return moves
}

func orderKey(m Move, flip Square) int {
	return int(m.From()^flip)<<9 | int(m.To()^flip)<<3 | int(m.Promotion())
}

// GenerateCaptures returns the legal captures and promotions, in the same
// order as GenerateMoves.
func (p *Position) GenerateCaptures() []Move {
	all := p.GenerateMoves()
	moves := all[:0]
	for _, m := range all {
		if m.IsTactical() {
			moves = append(moves, m)
		}
	}
	return moves
}

func (p *Position) tag(r dragontoothmg.Move) Move {
	from, to := Square(r.From()), Square(r.To())
	piece, victim := p.PieceAt(from), p.PieceAt(to)

	promo := NoPieceType
	if pr := r.Promote(); pr != dragontoothmg.Nothing {
		promo = PieceType(pr - 1)
	}

	kind := Quiet
	switch {
	case promo != NoPieceType && victim != NoPiece:
		kind = PromotionCapture
	case promo != NoPieceType:
		kind = Promotion
	case victim != NoPiece:
		kind = Capture
	case piece.Type() == Pawn && from.File() != to.File():
		kind = EnPassant
		victim = NewPiece(Pawn, piece.Color().Other())
	case piece.Type() == Pawn && (to.Rank()-from.Rank() == 2 || from.Rank()-to.Rank() == 2):
		kind = PawnDouble
	case piece.Type() == King && (to.File()-from.File() == 2 || from.File()-to.File() == 2):
		kind = Castle
	}
	return newMove(r, from, to, promo, kind, piece, victim)
}

// ParseMove finds the legal move matching a UCI string such as "e7e8q".
func (p *Position) ParseMove(s string) (Move, error) {
	for _, m := range p.GenerateMoves() {
		if m.String() == s {
			return m, nil
		}
	}
	return NoMove, &MoveError{Move: s, FEN: p.FEN()}
}

// MoveByKey finds the legal move with the given Key among moves.
func MoveByKey(moves []Move, key uint16) Move {
	if key == 0 {
		return NoMove
	}
	for _, m := range moves {
		if m.Key() == key {
			return m
		}
	}
	return NoMove
}

// Perft counts leaf nodes of the legal move tree to the given depth.
func (p *Position) Perft(depth int) uint64 {
	if depth == 0 {
		return 1
	}
	moves := p.GenerateMoves()
	if depth == 1 {
		return uint64(len(moves))
	}
	var n uint64
	for _, m := range moves {
		child, ok := p.MakeMove(m)
		if !ok {
			continue
		}
		n += child.Perft(depth - 1)
	}
	return n
}
