package engine

import (
	"github.com/hailam/smpchess/internal/board"
	"github.com/hailam/smpchess/internal/eval"
)

// negamax searches pos to depth within (alpha, beta) and returns its score
// from the side to move's point of view. inNull is set below a null move.
func (w *Worker) negamax(pos *board.Position, kind nodeKind, depth, ply, alpha, beta int, inNull bool) int {
	if w.stopped() {
		return alpha
	}
	w.stack.pv.clear(ply)
	if depth <= 0 {
		return w.quiescence(pos, ply, 0, alpha, beta)
	}
	w.countNode()
	w.selDepth = max(w.selDepth, ply)

	root := kind == rootNode
	if ply >= MaxPly-1 {
		return eval.Evaluate(pos)
	}
	if !root {
		if w.isDraw(pos) && !w.isMated(pos) {
			return DrawValue
		}
		// Mate distance pruning
		alpha = max(alpha, MatedIn(ply))
		beta = min(beta, MateIn(ply+1))
		if alpha >= beta {
			return alpha
		}
	}

	p := &w.params
	hash := pos.Hash()
	entry, hit := w.tt.Probe(hash)
	if hit && !root && entry.Depth >= p.ttDepthRequired(depth, inNull) {
		score := ScoreFromTT(entry.Score, ply)
		switch {
		case entry.Bound == BoundExact:
			return score
		case kind == nonPVNode && entry.Bound == BoundLower && score >= beta:
			return score
		case kind == nonPVNode && entry.Bound == BoundUpper && score <= alpha:
			return score
		}
	}

	sp := w.stack.InitNode(ply, depth, pos)
	inCheck := sp.InCheck
	staticEval := -Infinity
	if !inCheck {
		staticEval = eval.Evaluate(pos)
	}
	sp.StaticEval = staticEval

	// Reverse futility pruning
	if kind == nonPVNode && !inCheck && depth <= p.RFPDepth && !IsMateScore(beta) &&
		staticEval-p.RFPMargin*depth >= beta {
		return staticEval
	}

	// Null move pruning
	if kind == nonPVNode && !inNull && !inCheck && depth >= p.NullMinDepth &&
		sp.Material > 0 && staticEval >= beta && !IsMateScore(beta) {
		if child, ok := pos.MakeNullMove(); ok {
			r := p.NullReduction + depth/p.NullDepthDivisor
			sp.CurrentMove = board.NullMove
			w.stack.PushHistory(0)
			score := -w.negamax(&child, nonPVNode, depth-1-r, ply+1, -beta, -beta+1, true)
			w.stack.PopHistory()
			if w.stopped() {
				return alpha
			}
			if score >= beta {
				if score >= MateBound {
					score = beta
				}
				return score
			}
		}
	}

	moves := pos.GenerateMoves()
	ttMove := board.NoMove
	if hit {
		ttMove = board.MoveByKey(moves, entry.Move)
	}
	prev := board.NoMove
	if ply > 0 {
		prev = w.stack.Ply(ply - 1).CurrentMove
	}
	scores := make([]int, len(moves))
	w.scoreMoves(pos, moves, scores, ply, ttMove, prev)

	futile := kind == nonPVNode && !inCheck && depth <= p.FutilityDepth &&
		!IsMateScore(alpha) && staticEval+p.FutilityMargin*depth <= alpha

	side := pos.SideToMove()
	bestScore := -Infinity
	bestMove := board.NoMove
	oldAlpha := alpha
	legal := 0

	for i := range moves {
		PickMove(moves, scores, i)
		m := moves[i]
		tactical := m.IsTactical()

		canPrune := legal > 0 && !root && !inCheck && bestScore > -MateBound
		if canPrune && tactical && depth <= p.SEEPruneDepth && !SeeGE(pos, m, -p.SEEPruneMargin*depth) {
			continue
		}

		child, ok := pos.MakeMove(m)
		if !ok {
			continue
		}
		givesCheck := child.InCheck()
		if canPrune && futile && !tactical && !givesCheck && m != ttMove {
			continue
		}
		legal++
		sp.CurrentMove = m
		w.tt.Prefetch(child.Hash())

		// Extensions
		ext := 0
		if givesCheck {
			ext++
		}
		if prev.IsCapture() && m.IsCapture() && m.To() == prev.To() && SeeGE(pos, m, 0) {
			ext++
		}
		double := false
		if ext > 1 {
			if sp.DoubleExtensions < w.doubleExtLimit {
				double = true
				sp.DoubleExtensions++
				w.doubleExt++
			} else {
				ext = 1
			}
		}
		if ply >= 2*w.rootDepth {
			ext = 0
		}
		newDepth := depth - 1 + ext

		w.stack.PushHistory(child.Hash())
		var score int
		if legal == 1 {
			childKind := nonPVNode
			if kind.isPV() {
				childKind = pvNode
			}
			score = -w.negamax(&child, childKind, newDepth, ply+1, -beta, -alpha, inNull)
		} else {
			r := 0
			if depth >= p.LMRMinDepth && legal > p.LMRMinMoves && !tactical && !inCheck && !givesCheck {
				r = p.reduction(depth, legal)
				if kind.isPV() {
					r--
				}
				if k := w.stack.Killers(ply); m == k[0] || m == k[1] {
					r--
				}
				r -= w.stack.ButterflyScore(side, m) / p.LMRHistoryDivisor
				r = max(min(r, newDepth-1), 0)
			}
			score = -w.negamax(&child, nonPVNode, newDepth-r, ply+1, -alpha-1, -alpha, inNull)
			if score > alpha && r > 0 {
				score = -w.negamax(&child, nonPVNode, newDepth, ply+1, -alpha-1, -alpha, inNull)
			}
			if score > alpha && score < beta && kind.isPV() {
				score = -w.negamax(&child, pvNode, newDepth, ply+1, -beta, -alpha, inNull)
			}
		}
		w.stack.PopHistory()
		if double {
			sp.DoubleExtensions--
		}
		if w.stopped() {
			if bestScore > -Infinity {
				return bestScore
			}
			return alpha
		}

		if tactical {
			sp.captures = append(sp.captures, m)
		} else {
			sp.quiets = append(sp.quiets, m)
		}

		if score > bestScore {
			bestScore = score
		}
		if score > alpha {
			alpha = score
			bestMove = m
			if kind.isPV() {
				w.stack.pv.update(ply, m)
			}
		}
		if score >= beta {
			w.tt.Insert(hash, depth, ScoreToTT(score, ply), BoundLower, m)
			w.stack.UpdateHistory(pos, m, sp.quiets, sp.captures, depth)
			if !tactical {
				w.stack.StoreKiller(ply, m)
				w.stack.StoreCounterMove(side, prev, m)
			}
			return score
		}
	}

	if legal == 0 {
		if inCheck {
			return MatedIn(ply)
		}
		return StalemateValue
	}

	bound := BoundUpper
	if alpha > oldAlpha {
		bound = BoundExact
		w.stack.UpdateHistory(pos, bestMove, sp.quiets, sp.captures, depth)
	}
	w.tt.Insert(hash, depth, ScoreToTT(bestScore, ply), bound, bestMove)
	return bestScore
}

// quiescence resolves captures until the position is quiet. qply counts
// quiescence plies below the horizon.
func (w *Worker) quiescence(pos *board.Position, ply, qply, alpha, beta int) int {
	w.countNode()
	if w.stopped() {
		return alpha
	}
	w.stack.pv.clear(ply)
	w.selDepth = max(w.selDepth, ply)
	if ply >= MaxPly-1 {
		return eval.Evaluate(pos)
	}

	p := &w.params
	inCheck := pos.InCheck()
	bestScore := -Infinity
	var moves []board.Move
	if inCheck {
		moves = pos.GenerateMoves()
		if len(moves) == 0 {
			return MatedIn(ply)
		}
	} else {
		standPat := eval.Evaluate(pos)
		if standPat >= beta {
			return standPat
		}
		delta := board.QueenValue + p.DeltaMargin
		if pos.HasPawnOnSeventh(pos.SideToMove()) {
			delta += board.QueenValue - board.PawnValue
		}
		if standPat+delta < alpha {
			return standPat
		}
		alpha = max(alpha, standPat)
		bestScore = standPat
		moves = pos.GenerateCaptures()
	}

	lastTo := board.NoSquare
	if ply > 0 {
		if prev := w.stack.Ply(ply - 1).CurrentMove; prev != board.NoMove && !prev.IsNull() {
			lastTo = prev.To()
		}
	}
	scores := make([]int, len(moves))
	scoreCaptures(moves, scores)
	sp := w.stack.Ply(ply)

	for i := range moves {
		PickMove(moves, scores, i)
		m := moves[i]
		if !inCheck {
			if qply >= p.QRecaptureOnlyPly && m.To() != lastTo {
				continue
			}
			if !SeeGE(pos, m, 0) {
				continue
			}
		}
		child, ok := pos.MakeMove(m)
		if !ok {
			continue
		}
		sp.CurrentMove = m
		score := -w.quiescence(&child, ply+1, qply+1, -beta, -alpha)
		if w.stopped() {
			return max(bestScore, alpha)
		}
		if score > bestScore {
			bestScore = score
			if score > alpha {
				if score >= beta {
					return score
				}
				alpha = score
			}
		}
	}
	return bestScore
}

// isDraw detects the fifty-move rule, insufficient material and
// repetitions of positions on the current path or in the game.
func (w *Worker) isDraw(pos *board.Position) bool {
	if pos.HalfMoveClock() >= 100 {
		return true
	}
	return pos.IsInsufficientMaterial() || w.stack.IsRepetition(pos.HalfMoveClock())
}

// isMated reports checkmate once the fifty-move clock has run out; mate
// on the hundredth half-move still counts as mate.
func (w *Worker) isMated(pos *board.Position) bool {
	return pos.HalfMoveClock() >= 100 && pos.InCheck() && len(pos.GenerateMoves()) == 0
}
