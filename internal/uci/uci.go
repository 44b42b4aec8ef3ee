// Package uci implements the Universal Chess Interface front-end.
package uci

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/hailam/smpchess/internal/board"
	"github.com/hailam/smpchess/internal/engine"
	"github.com/hailam/smpchess/internal/storage"
	"github.com/hailam/smpchess/internal/tablebase"
)

const (
	engineName   = "smpchess"
	engineAuthor = "the smpchess authors"

	optTablebase = "OnlineTablebase"

	tablebaseTimeout   = 2 * time.Second
	tablebaseCacheSize = 10000
)

// UCI implements the Universal Chess Interface protocol.
type UCI struct {
	engine *engine.Engine
	store  *storage.Store // nil disables persistence

	tb    tablebase.Prober // nil while online probing is off
	tbURL string

	out   io.Writer
	outMu sync.Mutex

	// Running search, nil when idle.
	searchDone chan struct{}
	cancel     context.CancelFunc
	infinite   bool
}

// Option configures a UCI handler.
type Option func(*UCI)

// WithStore persists options and analyses in s.
func WithStore(s *storage.Store) Option {
	return func(u *UCI) { u.store = s }
}

// WithTablebaseURL points online tablebase probing at url instead of the
// public Lichess endpoint.
func WithTablebaseURL(url string) Option {
	return func(u *UCI) { u.tbURL = url }
}

// New creates a protocol handler writing to out.
func New(eng *engine.Engine, out io.Writer, opts ...Option) *UCI {
	u := &UCI{engine: eng, out: out}
	for _, opt := range opts {
		opt(u)
	}
	eng.OnInfo = u.sendInfo
	return u
}

// LoadOptions applies the options persisted in the store.
func (u *UCI) LoadOptions() error {
	if u.store == nil {
		return nil
	}
	opts, err := u.store.LoadOptions()
	if err != nil {
		return fmt.Errorf("load options: %w", err)
	}
	for _, o := range opts {
		if err := u.setOption(o.Name, o.Value); err != nil {
			log.Warn().Err(err).Str("name", o.Name).Msg("ignoring stored option")
			continue
		}
		log.Info().Str("name", o.Name).Str("value", o.Value).Msg("restored option")
	}
	return nil
}

// Run reads commands from in until "quit", end of input or ctx is done.
// At end of input a running search is allowed to finish unless it has no
// limits.
func (u *UCI) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	defer u.closeTablebase()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("interrupted")
			u.handleStop()
			return nil
		case line, ok := <-lines:
			if !ok {
				u.idle()
				return <-scanErr
			}
			if quit := u.Handle(ctx, line); quit {
				u.handleStop()
				return nil
			}
		}
	}
}

// Handle executes one command line and reports whether it was "quit".
func (u *UCI) Handle(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd, args := parts[0], parts[1:]

	switch cmd {
	case "uci":
		u.handleUCI()
	case "isready":
		u.printf("readyok\n")
	case "ucinewgame":
		u.idle()
		u.engine.Clear()
		if err := u.engine.UpdateGameFromMoves("startpos", nil); err != nil {
			u.reportError(err)
		}
	case "position":
		u.idle()
		u.handlePosition(args)
	case "go":
		u.handleGo(ctx, args)
	case "stop":
		u.handleStop()
	case "quit":
		return true
	case "setoption":
		u.idle()
		u.handleSetOption(args)
	case "d":
		pos := u.engine.Position()
		u.printf("Fen: %s\nKey: %016x\nCheckers: %v\n", pos.FEN(), pos.Hash(), pos.InCheck())
	case "perft":
		u.idle()
		u.handlePerft(args)
	default:
		u.printf("info string unknown command %s\n", cmd)
	}
	return false
}

func (u *UCI) printf(format string, args ...any) {
	u.outMu.Lock()
	defer u.outMu.Unlock()
	fmt.Fprintf(u.out, format, args...)
}

func (u *UCI) reportError(err error) {
	log.Warn().Err(err).Msg("command failed")
	u.printf("info string %v\n", err)
}

// handleUCI responds to the "uci" command.
func (u *UCI) handleUCI() {
	u.printf("id name %s\n", engineName)
	u.printf("id author %s\n\n", engineAuthor)
	u.printf("option name Hash type spin default %d min 1 max %d\n", u.engine.HashMB(), engine.MaxHashMB)
	u.printf("option name Threads type spin default %d min 1 max %d\n", u.engine.Threads(), engine.MaxThreads)
	u.printf("option name Clear Hash type button\n")
	u.printf("option name %s type check default %v\n", optTablebase, u.tb != nil)
	params := u.engine.Params()
	for _, t := range params.Tunables() {
		u.printf("option name %s type spin default %d min %d max %d\n", t.Name, t.Value, t.Min, t.Max)
	}
	u.printf("uciok\n")
}

// handlePosition parses and sets up a position.
// Formats:
//   - position startpos [moves e2e4 e7e5]
//   - position fen <fen> [moves e2e4]
func (u *UCI) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}
	movesAt := lo.IndexOf(args, "moves")
	if movesAt < 0 {
		movesAt = len(args)
	}
	var moves []string
	if movesAt < len(args) {
		moves = args[movesAt+1:]
	}

	var fen string
	switch args[0] {
	case "startpos":
		fen = "startpos"
	case "fen":
		fen = strings.Join(args[1:movesAt], " ")
	default:
		u.printf("info string invalid position command\n")
		return
	}
	if err := u.engine.UpdateGameFromMoves(fen, moves); err != nil {
		u.reportError(err)
	}
}

// parseGoOptions converts "go" arguments to search limits.
func parseGoOptions(args []string) (engine.SearchLimits, error) {
	var limits engine.SearchLimits
	for i := 0; i < len(args); i++ {
		key := args[i]
		if key == "infinite" {
			limits.Infinite = true
			continue
		}
		if key == "ponder" {
			continue
		}
		if i+1 >= len(args) {
			return limits, fmt.Errorf("go: missing value for %s", key)
		}
		i++
		n, err := strconv.ParseInt(args[i], 10, 64)
		if err != nil {
			return limits, fmt.Errorf("go: %s: %w", key, err)
		}
		ms := time.Duration(max(n, 0)) * time.Millisecond
		switch key {
		case "depth":
			limits.Depth = int(n)
		case "nodes":
			limits.Nodes = uint64(max(n, 0))
		case "movetime":
			limits.MoveTime = ms
		case "wtime":
			limits.Time[board.White] = ms
		case "btime":
			limits.Time[board.Black] = ms
		case "winc":
			limits.Inc[board.White] = ms
		case "binc":
			limits.Inc[board.Black] = ms
		case "movestogo":
			limits.MovesToGo = int(n)
		default:
			return limits, fmt.Errorf("go: unknown parameter %s", key)
		}
	}
	return limits, nil
}

// handleGo starts a search in the background. Results are printed when
// it finishes or is stopped.
func (u *UCI) handleGo(ctx context.Context, args []string) {
	u.idle()
	limits, err := parseGoOptions(args)
	if err != nil {
		u.reportError(err)
		return
	}

	pos := u.engine.Position()
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	u.searchDone = done
	u.cancel = cancel
	u.infinite = limits.Unbounded(pos.SideToMove())

	go func() {
		defer close(done)
		defer cancel()
		if m, ok := u.probeTablebase(ctx, &pos); ok {
			u.printf("bestmove %s\n", m)
			return
		}
		res := u.engine.Search(ctx, limits)
		u.printf("bestmove %s\n", res.Move)
		u.saveAnalysis(&pos, res)
	}()
}

func (u *UCI) probeTablebase(ctx context.Context, pos *board.Position) (board.Move, bool) {
	if u.tb == nil || tablebase.CountPieces(pos) > u.tb.MaxPieces() {
		return board.NoMove, false
	}
	ctx, cancel := context.WithTimeout(ctx, tablebaseTimeout)
	defer cancel()
	r, err := u.tb.ProbeRoot(ctx, pos)
	if err != nil {
		log.Warn().Err(err).Str("fen", pos.FEN()).Msg("tablebase probe failed")
		return board.NoMove, false
	}
	if !r.Found {
		return board.NoMove, false
	}
	u.printf("info string tablebase %s dtz %d\n", r.WDL, r.DTZ)
	return r.Move, true
}

func (u *UCI) saveAnalysis(pos *board.Position, res engine.SearchResult) {
	if u.store == nil || res.Move == board.NoMove || res.Bound != engine.BoundExact {
		return
	}
	err := u.store.SaveAnalysis(storage.Analysis{
		FEN:   pos.FEN(),
		Move:  res.Move.String(),
		Score: res.Score,
		Depth: res.Depth,
		PV:    lo.Map(res.PV, func(m board.Move, _ int) string { return m.String() }),
		Nodes: res.Nodes,
		Time:  res.Time,
	})
	if err != nil {
		log.Error().Err(err).Msg("saving analysis")
	}
}

// sendInfo outputs search info in UCI format.
func (u *UCI) sendInfo(info engine.SearchInfo) {
	var nps uint64
	if ms := info.Time.Milliseconds(); ms > 0 {
		nps = info.Nodes * 1000 / uint64(ms)
	}
	pv := lo.Map(info.PV, func(m board.Move, _ int) string { return m.String() })
	u.printf("info depth %d seldepth %d score %s nodes %d nps %d hashfull %d time %d pv %s\n",
		info.Depth, info.SelDepth, engine.ScoreToString(info.Score), info.Nodes, nps,
		info.HashFull, info.Time.Milliseconds(), strings.Join(pv, " "))
}

// handleStop stops the current search and waits for its bestmove.
func (u *UCI) handleStop() {
	if u.searchDone != nil {
		u.cancel()
	}
	u.wait()
}

// idle waits for a bounded search to finish and stops an unbounded one.
func (u *UCI) idle() {
	if u.infinite {
		u.cancel()
	}
	u.wait()
}

func (u *UCI) wait() {
	if u.searchDone == nil {
		return
	}
	<-u.searchDone
	u.searchDone = nil
	u.cancel = nil
	u.infinite = false
}

// handleSetOption processes "setoption name <name> [value <value>]".
func (u *UCI) handleSetOption(args []string) {
	var name, value []string
	target := &name
	for _, arg := range args {
		switch arg {
		case "name":
			target = &name
		case "value":
			target = &value
		default:
			*target = append(*target, arg)
		}
	}
	n, v := strings.Join(name, " "), strings.Join(value, " ")
	if err := u.setOption(n, v); err != nil {
		u.reportError(err)
		return
	}
	if u.store != nil && !strings.EqualFold(n, "clear hash") {
		if err := u.store.SaveOption(n, v); err != nil {
			log.Error().Err(err).Str("name", n).Msg("saving option")
		}
	}
}

func (u *UCI) setOption(name, value string) error {
	if !strings.EqualFold(name, optTablebase) {
		return u.engine.SetOption(name, value)
	}
	enable, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s: %w: %q", optTablebase, engine.ErrInvalidOptionValue, value)
	}
	if enable == (u.tb != nil) {
		return nil
	}
	if !enable {
		u.closeTablebase()
		return nil
	}
	cached, err := tablebase.NewCachedProber(tablebase.NewLichessProber(u.tbURL), tablebaseCacheSize)
	if err != nil {
		return err
	}
	u.tb = cached
	return nil
}

func (u *UCI) closeTablebase() {
	if c, ok := u.tb.(io.Closer); ok {
		_ = c.Close()
	}
	u.tb = nil
}

// handlePerft counts leaf nodes below each root move.
func (u *UCI) handlePerft(args []string) {
	depth := 5
	if len(args) > 0 {
		d, err := strconv.Atoi(args[0])
		if err != nil || d < 1 {
			u.printf("info string invalid perft depth\n")
			return
		}
		depth = d
	}

	pos := u.engine.Position()
	start := time.Now()
	var total uint64
	for _, m := range pos.GenerateMoves() {
		child, _ := pos.MakeMove(m)
		n := child.Perft(depth - 1)
		total += n
		u.printf("%s: %d\n", m, n)
	}
	elapsed := time.Since(start)

	u.printf("\nNodes: %d\nTime: %v\n", total, elapsed)
	if elapsed > 0 {
		u.printf("NPS: %.0f\n", float64(total)/elapsed.Seconds())
	}
}
