package board

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dylhunn/dragontoothmg"
)

// StartFEN is the standard starting position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var (
	// ErrInvalidFEN is wrapped by every FEN parsing failure.
	ErrInvalidFEN = errors.New("invalid FEN")
	// ErrIllegalMove is wrapped by MoveError.
	ErrIllegalMove = errors.New("illegal move")
)

// MoveError reports a move string that is not legal in a position.
type MoveError struct {
	Move string
	FEN  string
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("illegal move %s in %s", e.Move, e.FEN)
}

func (e *MoveError) Unwrap() error { return ErrIllegalMove }

// StartPosition returns the standard initial position.
func StartPosition() Position {
	pos, err := FromFEN(StartFEN)
	if err != nil {
		panic(err)
	}
	return pos
}

// FromFEN parses a FEN string. The move counters may be omitted.
func FromFEN(fen string) (Position, error) {
	fields := strings.Fields(fen)
	if len(fields) == 4 {
		fields = append(fields, "0", "1")
	}
	if len(fields) != 6 {
		return Position{}, fmt.Errorf("%w: expected 6 fields, got %d", ErrInvalidFEN, len(fields))
	}

	if err := validatePlacement(fields[0]); err != nil {
		return Position{}, err
	}
	if fields[1] != "w" && fields[1] != "b" {
		return Position{}, fmt.Errorf("%w: invalid side to move %q", ErrInvalidFEN, fields[1])
	}
	if fields[2] != "-" {
		for _, c := range fields[2] {
			if !strings.ContainsRune("KQkq", c) {
				return Position{}, fmt.Errorf("%w: invalid castling rights %q", ErrInvalidFEN, fields[2])
			}
		}
	}

	ep := NoSquare
	if fields[3] != "-" {
		sq, err := ParseSquare(fields[3])
		if err != nil || (sq.Rank() != 2 && sq.Rank() != 5) {
			return Position{}, fmt.Errorf("%w: invalid en passant square %q", ErrInvalidFEN, fields[3])
		}
		ep = sq
	}

	if n, err := strconv.Atoi(fields[4]); err != nil || n < 0 || n > 255 {
		return Position{}, fmt.Errorf("%w: invalid halfmove clock %q", ErrInvalidFEN, fields[4])
	}
	if n, err := strconv.Atoi(fields[5]); err != nil || n < 1 {
		return Position{}, fmt.Errorf("%w: invalid fullmove number %q", ErrInvalidFEN, fields[5])
	}

	pos := Position{
		b:  dragontoothmg.ParseFen(strings.Join(fields, " ")),
		ep: ep,
	}
	if pos.IsAttacked(pos.KingSquare(pos.SideToMove().Other()), pos.SideToMove()) {
		return Position{}, fmt.Errorf("%w: side not to move is in check", ErrInvalidFEN)
	}
	return pos, nil
}

func validatePlacement(s string) error {
	ranks := strings.Split(s, "/")
	if len(ranks) != 8 {
		return fmt.Errorf("%w: expected 8 ranks, got %d", ErrInvalidFEN, len(ranks))
	}
	kings := map[rune]int{}
	for i, rank := range ranks {
		files := 0
		for _, c := range rank {
			switch {
			case c >= '1' && c <= '8':
				files += int(c - '0')
			case strings.ContainsRune("pnbrqkPNBRQK", c):
				if (c == 'p' || c == 'P') && (i == 0 || i == 7) {
					return fmt.Errorf("%w: pawn on back rank", ErrInvalidFEN)
				}
				kings[c]++
				files++
			default:
				return fmt.Errorf("%w: invalid piece %q", ErrInvalidFEN, c)
			}
		}
		if files != 8 {
			return fmt.Errorf("%w: rank %d has %d files", ErrInvalidFEN, 8-i, files)
		}
	}
	if kings['K'] != 1 || kings['k'] != 1 {
		return fmt.Errorf("%w: each side needs exactly one king", ErrInvalidFEN)
	}
	return nil
}

// FEN returns the position in Forsyth-Edwards notation.
func (p *Position) FEN() string {
	return p.b.ToFen()
}

// Mirror returns the position with ranks flipped and colors swapped. The
// mirrored position has the same evaluation from the side to move's view.
func (p *Position) Mirror() Position {
	fields := strings.Fields(p.FEN())
	ranks := strings.Split(fields[0], "/")
	for i, j := 0, len(ranks)-1; i < j; i, j = i+1, j-1 {
		ranks[i], ranks[j] = ranks[j], ranks[i]
	}
	fields[0] = swapCase(strings.Join(ranks, "/"))
	if fields[1] == "w" {
		fields[1] = "b"
	} else {
		fields[1] = "w"
	}
	if fields[2] != "-" {
		fields[2] = swapCase(fields[2])
	}
	if p.ep != NoSquare {
		fields[3] = p.ep.Mirror().String()
	} else {
		fields[3] = "-"
	}
	m, err := FromFEN(strings.Join(fields, " "))
	if err != nil {
		panic(fmt.Sprintf("mirror of valid position failed: %v", err))
	}
	return m
}

func swapCase(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z':
			return r - 'A' + 'a'
		}
		return r
	}, s)
}
