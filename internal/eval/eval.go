// Package eval provides the static evaluation used by the search.
package eval

import (
	"github.com/hailam/smpchess/internal/board"
)

// Piece-square tables, written with rank 8 on the first row. White reads
// them through sq^56, Black reads them directly, which keeps the
// evaluation color symmetric.
var pawnPST = [64]int{
	0, 0, 0, 0, 0, 0, 0, 0,
	50, 50, 50, 50, 50, 50, 50, 50,
	10, 10, 20, 30, 30, 20, 10, 10,
	5, 5, 10, 25, 25, 10, 5, 5,
	0, 0, 0, 20, 20, 0, 0, 0,
	5, -5, -10, 0, 0, -10, -5, 5,
	5, 10, 10, -20, -20, 10, 10, 5,
	0, 0, 0, 0, 0, 0, 0, 0,
}

var knightPST = [64]int{
	-50, -40, -30, -30, -30, -30, -40, -50,
	-40, -20, 0, 0, 0, 0, -20, -40,
	-30, 0, 10, 15, 15, 10, 0, -30,
	-30, 5, 15, 20, 20, 15, 5, -30,
	-30, 0, 15, 20, 20, 15, 0, -30,
	-30, 5, 10, 15, 15, 10, 5, -30,
	-40, -20, 0, 5, 5, 0, -20, -40,
	-50, -40, -30, -30, -30, -30, -40, -50,
}

var bishopPST = [64]int{
	-20, -10, -10, -10, -10, -10, -10, -20,
	-10, 0, 0, 0, 0, 0, 0, -10,
	-10, 0, 5, 10, 10, 5, 0, -10,
	-10, 5, 5, 10, 10, 5, 5, -10,
	-10, 0, 10, 10, 10, 10, 0, -10,
	-10, 10, 10, 10, 10, 10, 10, -10,
	-10, 5, 0, 0, 0, 0, 5, -10,
	-20, -10, -10, -10, -10, -10, -10, -20,
}

var rookPST = [64]int{
	0, 0, 0, 0, 0, 0, 0, 0,
	5, 10, 10, 10, 10, 10, 10, 5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	0, 0, 0, 5, 5, 0, 0, 0,
}

var queenPST = [64]int{
	-20, -10, -10, -5, -5, -10, -10, -20,
	-10, 0, 0, 0, 0, 0, 0, -10,
	-10, 0, 5, 5, 5, 5, 0, -10,
	-5, 0, 5, 5, 5, 5, 0, -5,
	0, 0, 5, 5, 5, 5, 0, -5,
	-10, 5, 5, 5, 5, 5, 0, -10,
	-10, 0, 5, 0, 0, 0, 0, -10,
	-20, -10, -10, -5, -5, -10, -10, -20,
}

var kingMidgamePST = [64]int{
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-20, -30, -30, -40, -40, -30, -30, -20,
	-10, -20, -20, -20, -20, -20, -20, -10,
	20, 20, 0, 0, 0, 0, 20, 20,
	20, 30, 10, 0, 0, 10, 30, 20,
}

var kingEndgamePST = [64]int{
	-50, -40, -30, -20, -20, -30, -40, -50,
	-30, -20, -10, 0, 0, -10, -20, -30,
	-30, -10, 20, 30, 30, 20, -10, -30,
	-30, -10, 30, 40, 40, 30, -10, -30,
	-30, -10, 30, 40, 40, 30, -10, -30,
	-30, -10, 20, 30, 30, 20, -10, -30,
	-30, -30, 0, 0, 0, 0, -30, -30,
	-50, -30, -30, -30, -30, -30, -30, -50,
}

var psts = [...]*[64]int{&pawnPST, &knightPST, &bishopPST, &rookPST, &queenPST}

// Passed pawn bonus by relative rank.
var passedPawnBonus = [8]int{0, 10, 15, 25, 45, 75, 120, 0}

const (
	bishopPairBonus  = 30
	doubledPawn      = -15
	isolatedPawn     = -15
	rookOpenFile     = 20
	rookSemiOpenFile = 10
	tempoBonus       = 10

	maxPhase = 24
)

var phaseWeight = [...]int{0, 1, 1, 2, 4, 0}

var fileMasks [8]board.Bitboard

// passedMasks[c][sq] holds the squares in front of a pawn on sq, on its own
// and adjacent files, that enemy pawns must not occupy for it to be passed.
var passedMasks [2][64]board.Bitboard

func init() {
	for f := 0; f < 8; f++ {
		fileMasks[f] = board.FileA << f
	}
	for sq := board.A1; sq <= board.H8; sq++ {
		files := fileMasks[sq.File()]
		if sq.File() > 0 {
			files |= fileMasks[sq.File()-1]
		}
		if sq.File() < 7 {
			files |= fileMasks[sq.File()+1]
		}
		for r := 0; r < 8; r++ {
			rank := board.Bitboard(0xFF) << (8 * r)
			if r > sq.Rank() {
				passedMasks[board.White][sq] |= files & rank
			}
			if r < sq.Rank() {
				passedMasks[board.Black][sq] |= files & rank
			}
		}
	}
}

// Evaluate returns the static score of pos in centipawns from the side to
// move's point of view.
func Evaluate(pos *board.Position) int {
	var mg, eg, phase int
	for c := board.White; c <= board.Black; c++ {
		cmg, ceg, cphase := evaluateSide(pos, c)
		if c == board.White {
			mg += cmg
			eg += ceg
		} else {
			mg -= cmg
			eg -= ceg
		}
		phase += cphase
	}
	if phase > maxPhase {
		phase = maxPhase
	}
	score := (mg*phase + eg*(maxPhase-phase)) / maxPhase
	if pos.SideToMove() == board.Black {
		score = -score
	}
	return score + tempoBonus
}

func evaluateSide(pos *board.Position, c board.Color) (mg, eg, phase int) {
	relative := func(sq board.Square) board.Square {
		if c == board.White {
			return sq ^ 56
		}
		return sq
	}

	for pt := board.Pawn; pt <= board.Queen; pt++ {
		bb := pos.Pieces(c, pt)
		for bb != 0 {
			sq := bb.PopLSB()
			v := pt.Value() + psts[pt][relative(sq)]
			mg += v
			eg += v
			phase += phaseWeight[pt]
		}
	}

	king := relative(pos.KingSquare(c))
	mg += kingMidgamePST[king]
	eg += kingEndgamePST[king]

	if pos.Pieces(c, board.Bishop).PopCount() >= 2 {
		mg += bishopPairBonus
		eg += bishopPairBonus
	}

	pmg, peg := evaluatePawns(pos, c)
	mg += pmg
	eg += peg

	ownPawns := pos.Pieces(c, board.Pawn)
	theirPawns := pos.Pieces(c.Other(), board.Pawn)
	rooks := pos.Pieces(c, board.Rook)
	for rooks != 0 {
		file := fileMasks[rooks.PopLSB().File()]
		switch {
		case file&(ownPawns|theirPawns) == 0:
			mg += rookOpenFile
		case file&ownPawns == 0:
			mg += rookSemiOpenFile
		}
	}
	return mg, eg, phase
}

func evaluatePawns(pos *board.Position, c board.Color) (mg, eg int) {
	own := pos.Pieces(c, board.Pawn)
	enemy := pos.Pieces(c.Other(), board.Pawn)

	for f := 0; f < 8; f++ {
		n := (own & fileMasks[f]).PopCount()
		if n > 1 {
			mg += doubledPawn * (n - 1)
			eg += doubledPawn * (n - 1)
		}
	}

	bb := own
	for bb != 0 {
		sq := bb.PopLSB()
		f := sq.File()
		var adjacent board.Bitboard
		if f > 0 {
			adjacent |= fileMasks[f-1]
		}
		if f < 7 {
			adjacent |= fileMasks[f+1]
		}
		if own&adjacent == 0 {
			mg += isolatedPawn
			eg += isolatedPawn
		}
		if passedMasks[c][sq]&enemy == 0 {
			rank := sq.Rank()
			if c == board.Black {
				rank = 7 - rank
			}
			mg += passedPawnBonus[rank] / 2
			eg += passedPawnBonus[rank]
		}
	}
	return mg, eg
}
