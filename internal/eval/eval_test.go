package eval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hailam/smpchess/internal/board"
)

var testPositions = []string{
	board.StartFEN,
	"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
	"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
	"r1bq1rk1/pp2bppp/2n1pn2/3p4/2PP4/2N1PN2/PP3PPP/R2QKB1R b KQ - 0 8",
	"6k1/5ppp/8/8/8/8/1P3PPP/6K1 w - - 0 1",
}

func TestEvaluateSymmetry(t *testing.T) {
	for _, fen := range testPositions {
		pos, err := board.FromFEN(fen)
		require.NoError(t, err)
		mirrored := pos.Mirror()
		require.Equal(t, Evaluate(&pos), Evaluate(&mirrored), fen)
	}
}

func TestEvaluateStartPositionIsBalanced(t *testing.T) {
	pos := board.StartPosition()
	require.Equal(t, tempoBonus, Evaluate(&pos))
}

func TestEvaluateMaterialAdvantage(t *testing.T) {
	up, err := board.FromFEN("4k3/8/8/8/8/8/8/3QK3 w - - 0 1")
	require.NoError(t, err)
	require.Greater(t, Evaluate(&up), board.QueenValue/2)

	down, err := board.FromFEN("4k3/8/8/8/8/8/8/3QK3 b - - 0 1")
	require.NoError(t, err)
	require.Less(t, Evaluate(&down), -board.QueenValue/2)
}

func TestPassedPawnIsRewarded(t *testing.T) {
	passed, err := board.FromFEN("4k3/8/8/3P4/8/8/8/4K3 w - - 0 1")
	require.NoError(t, err)
	blocked, err := board.FromFEN("4k3/4p3/8/3P4/8/8/8/4K3 w - - 0 1")
	require.NoError(t, err)
	require.Greater(t, Evaluate(&passed), Evaluate(&blocked)+board.PawnValue/2)
}
