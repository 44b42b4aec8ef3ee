package board

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromFENRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		fen  string
	}{
		{"empty", ""},
		{"too few ranks", "rnbqkbnr/pppppppp/8/8/8/8/RNBQKBNR w KQkq - 0 1"},
		{"bad rank width", "rnbqkbnr/ppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"},
		{"bad piece", "rnbqkbnr/ppppxppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"},
		{"missing king", "rnbq1bnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"},
		{"bad side", "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR x KQkq - 0 1"},
		{"bad castling", "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KXkq - 0 1"},
		{"bad en passant", "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq e4 0 1"},
		{"bad clock", "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - x 1"},
		{"pawn on back rank", "rnbqkbnP/pppppppp/8/8/8/8/PPPPPPP1/RNBQKBNR w KQkq - 0 1"},
		{"opponent in check", "4k3/4R3/8/8/8/8/8/4K3 w - - 0 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromFEN(tt.fen)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidFEN), err.Error())
		})
	}
}

func TestFromFENOptionalCounters(t *testing.T) {
	pos, err := FromFEN("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -")
	require.NoError(t, err)
	start := StartPosition()
	require.Equal(t, start.Hash(), pos.Hash())
}

func TestFENRoundTrip(t *testing.T) {
	for _, fen := range []string{StartFEN, kiwipeteFEN} {
		pos := mustFEN(t, fen)
		again := mustFEN(t, pos.FEN())
		require.Equal(t, pos.Hash(), again.Hash())
	}
}

func TestMirror(t *testing.T) {
	pos := mustFEN(t, kiwipeteFEN)
	m := pos.Mirror()
	require.Equal(t, Black, m.SideToMove())
	require.Equal(t, BlackRook, m.PieceAt(A8))
	require.Equal(t, WhiteKing, m.PieceAt(E8))
	require.Equal(t, len(pos.GenerateMoves()), len(m.GenerateMoves()))

	back := m.Mirror()
	require.Equal(t, pos.Hash(), back.Hash())
}

func TestSquareParsing(t *testing.T) {
	sq, err := ParseSquare("e4")
	require.NoError(t, err)
	require.Equal(t, E4, sq)
	require.Equal(t, "e4", sq.String())
	require.Equal(t, E5, E4.Mirror())
	_, err = ParseSquare("i9")
	require.Error(t, err)
}
