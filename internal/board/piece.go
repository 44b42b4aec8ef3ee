package board

// Color represents the side to move or the owner of a piece.
type Color uint8

const (
	White Color = iota
	Black
)

// Other returns the opposite color.
func (c Color) Other() Color {
	return c ^ 1
}

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// PieceType is a piece kind without color.
type PieceType uint8

const (
	Pawn PieceType = iota
	Knight
	Bishop
	Rook
	Queen
	King
	NoPieceType
)

var pieceTypeChars = [...]byte{'p', 'n', 'b', 'r', 'q', 'k', ' '}

// Char returns the lowercase letter used in FEN and UCI promotions.
func (pt PieceType) Char() byte {
	return pieceTypeChars[pt]
}

// Piece combines a PieceType and a Color: type + color*6.
type Piece uint8

const (
	WhitePawn Piece = iota
	WhiteKnight
	WhiteBishop
	WhiteRook
	WhiteQueen
	WhiteKing
	BlackPawn
	BlackKnight
	BlackBishop
	BlackRook
	BlackQueen
	BlackKing
	NoPiece
)

// NewPiece creates a piece from a type and color.
func NewPiece(pt PieceType, c Color) Piece {
	if pt == NoPieceType {
		return NoPiece
	}
	return Piece(uint8(pt) + uint8(c)*6)
}

// Type returns the piece type, NoPieceType for NoPiece.
func (p Piece) Type() PieceType {
	if p >= NoPiece {
		return NoPieceType
	}
	return PieceType(p % 6)
}

// Color returns the owner of the piece. Undefined for NoPiece.
func (p Piece) Color() Color {
	return Color(p / 6)
}

func (p Piece) String() string {
	if p >= NoPiece {
		return "."
	}
	c := p.Type().Char()
	if p.Color() == White {
		c -= 'a' - 'A'
	}
	return string(c)
}

// Material values in centipawns, shared by evaluation, ordering and
// exchange evaluation. The king has no material value.
const (
	PawnValue   = 100
	KnightValue = 320
	BishopValue = 330
	RookValue   = 500
	QueenValue  = 900
)

var pieceTypeValues = [...]int{PawnValue, KnightValue, BishopValue, RookValue, QueenValue, 0, 0}

// Value returns the material value of the piece type.
func (pt PieceType) Value() int {
	return pieceTypeValues[pt]
}
