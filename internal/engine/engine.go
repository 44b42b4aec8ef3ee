package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/smpchess/internal/board"
)

var (
	// ErrUnknownOption is returned by SetOption for names it does not know.
	ErrUnknownOption = errors.New("unknown option")
	// ErrInvalidOptionValue is returned by SetOption for unparsable or
	// out-of-range values.
	ErrInvalidOptionValue = errors.New("invalid option value")
)

const (
	DefaultHashMB = 64
	MaxHashMB     = 1 << 16
	MaxThreads    = 1024

	pollInterval = 5 * time.Millisecond
)

// SearchInfo is reported after every accepted iteration.
type SearchInfo struct {
	Depth    int
	SelDepth int
	Score    int
	Nodes    uint64
	Time     time.Duration
	PV       []board.Move
	HashFull int // permille of the transposition table in use
}

// SearchResult is the outcome of a search.
type SearchResult struct {
	Move  board.Move
	Score int
	Bound Bound
	Depth int
	PV    []board.Move
	Nodes uint64
	Time  time.Duration
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithHash sets the transposition table size in megabytes.
func WithHash(mb int) Option {
	return func(e *Engine) { e.hashMB = min(max(mb, 1), MaxHashMB) }
}

// WithThreads sets the number of search workers.
func WithThreads(n int) Option {
	return func(e *Engine) { e.threads = min(max(n, 1), MaxThreads) }
}

// WithParams replaces the default tunables.
func WithParams(p Params) Option {
	return func(e *Engine) { e.params = p }
}

// Engine coordinates a pool of Lazy SMP workers over a shared
// transposition table. Searches and option changes are serialized. The
// accessors, UpdateGame and Stop never wait for a running search.
type Engine struct {
	// mu is held for a whole search and while workers or the table are
	// rebuilt.
	mu      sync.Mutex
	shared  sharedState
	workers []*Worker
	group   *errgroup.Group

	// state guards the fields below. Search holds it only while taking a
	// snapshot of them.
	state   sync.RWMutex
	params  Params
	hashMB  int
	threads int
	tt      *TranspositionTable
	game    board.Position
	history []uint64

	// OnInfo, if set, is called from the searching goroutine after every
	// accepted iteration.
	OnInfo func(SearchInfo)
}

// NewEngine creates an engine at the start position and starts its workers.
// Close must be called to stop them.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		params:  DefaultParams(),
		hashMB:  DefaultHashMB,
		threads: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.tt = NewTranspositionTable(e.hashMB)
	e.game = board.StartPosition()
	e.history = []uint64{e.game.Hash()}
	e.startWorkers(e.threads)
	return e
}

func (e *Engine) startWorkers(n int) {
	e.group = new(errgroup.Group)
	e.workers = make([]*Worker, n)
	for i := range e.workers {
		w := newWorker(i, &e.shared)
		e.workers[i] = w
		e.group.Go(w.run)
	}
	log.Debug().Int("threads", n).Msg("workers started")
}

func (e *Engine) stopWorkers() {
	for _, w := range e.workers {
		close(w.jobs)
	}
	if err := e.group.Wait(); err != nil {
		log.Error().Err(err).Msg("worker failed")
	}
	e.workers = nil
}

// Close stops all workers. The engine must not be used afterwards.
func (e *Engine) Close() {
	e.shared.stop.Store(true)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopWorkers()
}

// Stop asks a running search to finish as soon as possible.
func (e *Engine) Stop() {
	e.shared.stop.Store(true)
}

// Clear empties the transposition table and all history heuristics.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tt.Clear()
	for _, w := range e.workers {
		w.stack.ClearHistory()
	}
}

// Threads returns the number of workers.
func (e *Engine) Threads() int {
	e.state.RLock()
	defer e.state.RUnlock()
	return e.threads
}

// HashMB returns the transposition table size in megabytes.
func (e *Engine) HashMB() int {
	e.state.RLock()
	defer e.state.RUnlock()
	return e.hashMB
}

// Params returns a copy of the current tunables.
func (e *Engine) Params() Params {
	e.state.RLock()
	defer e.state.RUnlock()
	return e.params
}

// Position returns the current root position.
func (e *Engine) Position() board.Position {
	e.state.RLock()
	defer e.state.RUnlock()
	return e.game
}

// SetOption changes an engine option by its UCI name.
func (e *Engine) SetOption(name, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Lock()
	defer e.state.Unlock()

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "hash":
		n, err := parseRange(value, 1, MaxHashMB)
		if err != nil {
			return fmt.Errorf("hash: %w", err)
		}
		e.hashMB = n
		e.tt = NewTranspositionTable(n)
	case "threads":
		n, err := parseRange(value, 1, MaxThreads)
		if err != nil {
			return fmt.Errorf("threads: %w", err)
		}
		if n != e.threads {
			e.stopWorkers()
			e.threads = n
			e.startWorkers(n)
		}
	case "clear hash":
		e.tt.Clear()
	default:
		if err := e.params.Set(name, value); err != nil {
			return err
		}
	}
	log.Info().Str("name", name).Str("value", value).Msg("option set")
	return nil
}

func parseRange(value string, minValue, maxValue int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOptionValue, value)
	}
	if n < minValue || n > maxValue {
		return 0, fmt.Errorf("%w: %d outside [%d, %d]", ErrInvalidOptionValue, n, minValue, maxValue)
	}
	return n, nil
}

// UpdateGame sets the root position. Earlier positions are forgotten, so
// repetitions of positions before pos are not detected. A running search
// keeps its own root; the new one applies to the next search.
func (e *Engine) UpdateGame(pos board.Position) {
	e.state.Lock()
	defer e.state.Unlock()
	e.game = pos
	e.history = []uint64{pos.Hash()}
}

// UpdateGameFromMoves sets the root to the position after playing moves
// (UCI notation) from fen; an empty fen or "startpos" is the initial
// position. The game history is kept for repetition detection.
func (e *Engine) UpdateGameFromMoves(fen string, moves []string) error {
	pos := board.StartPosition()
	if fen != "" && fen != "startpos" {
		var err error
		if pos, err = board.FromFEN(fen); err != nil {
			return fmt.Errorf("update game: %w", err)
		}
	}
	history := make([]uint64, 0, len(moves)+1)
	history = append(history, pos.Hash())
	for _, s := range moves {
		m, err := pos.ParseMove(s)
		if err != nil {
			return fmt.Errorf("update game: %w", err)
		}
		pos, _ = pos.MakeMove(m)
		history = append(history, pos.Hash())
	}

	e.state.Lock()
	defer e.state.Unlock()
	e.game = pos
	e.history = history
	return nil
}

// Search runs all workers on the current root until a limit is hit, ctx
// is cancelled or Stop is called, and returns the best completed result.
// A legal move is always returned unless the root has none.
func (e *Engine) Search(ctx context.Context, limits SearchLimits) SearchResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.RLock()
	root, history, params, tt := e.game, e.history, e.params, e.tt
	e.state.RUnlock()

	rootMoves := root.GenerateMoves()
	if len(rootMoves) == 0 {
		score := StalemateValue
		if root.InCheck() {
			score = MatedIn(0)
		}
		return SearchResult{Score: score, Bound: BoundExact}
	}

	ply := (root.FullMoveNumber()-1)*2 + int(root.SideToMove())
	tm := NewTimeManager(limits, root.SideToMove(), ply)

	tt.IncrementCycle()
	e.shared.reset()
	e.shared.nodeLimit.Store(limits.Nodes)
	if d := tm.Deadline(); !d.IsZero() {
		e.shared.deadline.Store(d.UnixNano())
	}
	maxDepth := MaxPly - 1
	if limits.Depth > 0 {
		maxDepth = min(limits.Depth, maxDepth)
	}

	results := make(chan WorkerResult, len(e.workers)*MaxPly)
	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(len(e.workers))
	for _, w := range e.workers {
		w.jobs <- searchJob{
			root:     root,
			history:  history,
			maxDepth: maxDepth,
			params:   params,
			tt:       tt,
			results:  results,
			quit:     quit,
			done:     &wg,
		}
	}
	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	c := coordinator{e: e, tt: tt, tm: tm, maxDepth: maxDepth}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	cancelled := ctx.Done()
	for running := true; running; {
		select {
		case r := <-results:
			c.accept(r)
		case <-ticker.C:
			if tm.ShouldStop() {
				e.shared.stop.Store(true)
			}
		case <-cancelled:
			e.shared.stop.Store(true)
			cancelled = nil
		case <-finished:
			running = false
		}
	}
	close(quit)
	for drained := false; !drained; {
		select {
		case r := <-results:
			c.accept(r)
		default:
			drained = true
		}
	}

	best := c.best
	if !c.have || !lo.Contains(rootMoves, best.Move) {
		if c.have {
			log.Warn().Str("move", best.Move.String()).Str("fen", root.FEN()).Msg("discarding illegal best move")
		}
		best = SearchResult{Move: rootMoves[0], PV: []board.Move{rootMoves[0]}, Bound: BoundNone}
	}
	best.Nodes = e.shared.nodes.Load()
	best.Time = tm.Elapsed()

	log.Debug().
		Str("move", best.Move.String()).
		Int("depth", best.Depth).
		Int("score", best.Score).
		Uint64("nodes", best.Nodes).
		Dur("time", best.Time).
		Int("threads", len(e.workers)).
		Msg("search finished")
	return best
}

// coordinator folds worker reports into the best result of one search.
type coordinator struct {
	e         *Engine
	tt        *TranspositionTable
	tm        *TimeManager
	maxDepth  int
	best      SearchResult
	have      bool
	stability int
}

// accept takes r if nothing was accepted yet, if it is at least as deep
// as the current best, or if it proves a mate. It then decides whether
// the search can stop.
func (c *coordinator) accept(r WorkerResult) {
	if c.have && r.Depth < c.best.Depth && r.Score < MateBound {
		return
	}
	if c.have && r.Move == c.best.Move {
		c.stability++
	} else {
		c.stability = 0
	}
	c.best = SearchResult{
		Move:  r.Move,
		Score: r.Score,
		Bound: BoundExact,
		Depth: r.Depth,
		PV:    r.PV,
	}
	c.have = true

	shared := &c.e.shared
	if int32(r.Depth) > shared.bestDepth.Load() {
		shared.bestDepth.Store(int32(r.Depth))
	}
	c.tm.AdjustForStability(c.stability)

	if c.e.OnInfo != nil {
		c.e.OnInfo(SearchInfo{
			Depth:    r.Depth,
			SelDepth: r.SelDepth,
			Score:    r.Score,
			Nodes:    shared.nodes.Load(),
			Time:     c.tm.Elapsed(),
			PV:       r.PV,
			HashFull: c.tt.HashFull(),
		})
	}

	switch {
	case IsMateScore(r.Score) && MateDistance(r.Score) <= r.Depth:
		shared.mateFound.Store(true)
		shared.stop.Store(true)
	case r.Depth >= c.maxDepth:
		shared.stop.Store(true)
	case c.tm.PastOptimum():
		shared.stop.Store(true)
	}
}
