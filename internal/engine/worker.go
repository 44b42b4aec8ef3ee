package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hailam/smpchess/internal/board"
)

// nodeCheckMask sets how often a worker polls the clock and node budget.
const nodeCheckMask = 1023

// Lazy SMP depth skipping for helper workers. Helper i skips an iteration
// when ((depth + skipPhase[i]) / skipSize[i]) is odd, which spreads the
// helpers over different depths.
var (
	skipSize  = [20]int{1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 3, 3, 4, 4, 4, 4, 4, 4, 4, 4}
	skipPhase = [20]int{0, 1, 0, 1, 2, 3, 0, 1, 2, 3, 4, 5, 0, 1, 2, 3, 4, 5, 6, 7}
)

func skipDepth(workerID, depth int) bool {
	if workerID == 0 {
		return false
	}
	i := (workerID - 1) % len(skipSize)
	return ((depth+skipPhase[i])/skipSize[i])%2 != 0
}

// sharedState is the per-engine state every worker reads during a search.
type sharedState struct {
	stop      atomic.Bool
	bestDepth atomic.Int32 // deepest iteration accepted by the coordinator
	mateFound atomic.Bool
	deadline  atomic.Int64 // unix nanoseconds, 0 = none
	nodes     atomic.Uint64
	nodeLimit atomic.Uint64 // 0 = none
}

func (s *sharedState) reset() {
	s.stop.Store(false)
	s.bestDepth.Store(0)
	s.mateFound.Store(false)
	s.deadline.Store(0)
	s.nodes.Store(0)
	s.nodeLimit.Store(0)
}

// WorkerResult is a completed iteration reported by a worker.
type WorkerResult struct {
	WorkerID int
	Depth    int
	SelDepth int
	Score    int
	Move     board.Move
	PV       []board.Move
	Nodes    uint64
}

// searchJob asks a worker to search a root position.
type searchJob struct {
	root     board.Position
	history  []uint64
	maxDepth int
	params   Params
	tt       *TranspositionTable
	results  chan<- WorkerResult
	quit     <-chan struct{}
	done     *sync.WaitGroup
}

// Worker runs iterative deepening searches on its own goroutine. All of
// its mutable state is private; it shares only the transposition table
// and the sharedState atomics.
type Worker struct {
	id     int
	jobs   chan searchJob
	shared *sharedState
	stack  *SearchStack

	// Per-search state, reset by each job.
	tt             *TranspositionTable
	params         Params
	nodes          uint64
	selDepth       int
	rootDepth      int
	doubleExt      int
	doubleExtLimit int
}

func newWorker(id int, shared *sharedState) *Worker {
	return &Worker{
		id:     id,
		jobs:   make(chan searchJob, 1),
		shared: shared,
		stack:  NewSearchStack(),
	}
}

// run serves jobs until the job channel is closed.
func (w *Worker) run() error {
	for job := range w.jobs {
		w.search(&job)
		job.done.Done()
	}
	return nil
}

func (w *Worker) search(job *searchJob) {
	w.tt = job.tt
	w.params = job.params
	w.nodes = 0
	w.selDepth = 0
	w.stack.SetGameHistory(job.history)
	defer func() {
		w.shared.nodes.Add(w.nodes & nodeCheckMask)
	}()

	root := job.root
	side := root.SideToMove()
	score := 0
	for depth := 1; depth <= job.maxDepth; depth++ {
		if w.shared.stop.Load() {
			return
		}
		if w.id > 0 && (skipDepth(w.id, depth) || depth <= int(w.shared.bestDepth.Load())) {
			continue
		}

		w.rootDepth = depth
		w.doubleExt = 0
		w.doubleExtLimit = w.stack.DoubleExtensionLimit(side, w.params.DoubleExtLimit)

		s, ok := w.aspiration(&root, depth, score)
		if !ok {
			return
		}
		score = s
		w.stack.RecordDoubleExtensions(side, w.doubleExt)

		pv := w.stack.pv.Line()
		if len(pv) == 0 {
			continue
		}
		result := WorkerResult{
			WorkerID: w.id,
			Depth:    depth,
			SelDepth: w.selDepth,
			Score:    score,
			Move:     pv[0],
			PV:       pv,
			Nodes:    w.nodes,
		}
		select {
		case job.results <- result:
		case <-job.quit:
			return
		}
	}
}

// aspiration searches the root with a window around the previous score,
// re-searching with an open bound on the failing side.
func (w *Worker) aspiration(root *board.Position, depth, prev int) (int, bool) {
	alpha, beta := -Infinity, Infinity
	if depth >= w.params.AspirationMinDepth && !IsMateScore(prev) {
		alpha = max(prev-w.params.AspirationWindow, -Infinity)
		beta = min(prev+w.params.AspirationWindow, Infinity)
	}
	for {
		score := w.negamax(root, rootNode, depth, 0, alpha, beta, false)
		if w.shared.stop.Load() {
			return 0, false
		}
		switch {
		case score <= alpha:
			alpha = -Infinity
		case score >= beta:
			beta = Infinity
		default:
			return score, true
		}
	}
}

func (w *Worker) countNode() {
	w.nodes++
	if w.nodes&nodeCheckMask == 0 {
		w.checkLimits()
	}
}

// checkLimits publishes node counts and raises the stop flag when the
// hard deadline or the node budget is exhausted.
func (w *Worker) checkLimits() {
	total := w.shared.nodes.Add(nodeCheckMask + 1)
	if limit := w.shared.nodeLimit.Load(); limit > 0 && total >= limit {
		w.shared.stop.Store(true)
	}
	if d := w.shared.deadline.Load(); d > 0 && time.Now().UnixNano() >= d {
		w.shared.stop.Store(true)
	}
}

func (w *Worker) stopped() bool {
	return w.shared.stop.Load()
}
