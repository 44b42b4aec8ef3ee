// Command smpchess-uci runs the engine behind the UCI protocol on stdin
// and stdout. Logs go to stderr.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hailam/smpchess/internal/engine"
	"github.com/hailam/smpchess/internal/storage"
	"github.com/hailam/smpchess/internal/uci"
)

var (
	hashMB     = flag.Int("hash", engine.DefaultHashMB, "transposition table size in MB")
	threads    = flag.Int("threads", runtime.NumCPU(), "number of search threads")
	dataDir    = flag.String("datadir", "", "directory for persisted options and analyses (default: per-user data dir)")
	noStore    = flag.Bool("nostore", false, "do not persist options or analyses")
	logLevel   = flag.String("loglevel", "info", "log level (trace, debug, info, warn, error)")
	tablebase  = flag.Bool("tablebase", false, "probe the online tablebase for positions with 7 or fewer pieces")
	tbURL      = flag.String("tablebase-url", "", "tablebase API endpoint (default: Lichess)")
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
)

func main() {
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid log level")
	}
	zerolog.SetGlobalLevel(level)

	profilePath := *cpuprofile
	if profilePath == "" {
		profilePath = os.Getenv("CPUPROFILE")
	}
	if profilePath != "" {
		f, err := os.Create(profilePath)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create CPU profile")
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal().Err(err).Msg("could not start CPU profile")
		}
		defer pprof.StopCPUProfile()
		log.Info().Str("path", profilePath).Msg("CPU profiling enabled")
	}

	if err := run(); err != nil {
		log.Error().Err(err).Msg("uci loop failed")
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.NewEngine(engine.WithHash(*hashMB), engine.WithThreads(*threads))
	defer eng.Close()

	opts := []uci.Option{uci.WithTablebaseURL(*tbURL)}
	if !*noStore {
		store, err := openStore()
		if err != nil {
			log.Warn().Err(err).Msg("running without persistence")
		} else {
			defer store.Close()
			opts = append(opts, uci.WithStore(store))
		}
	}

	protocol := uci.New(eng, os.Stdout, opts...)
	if err := protocol.LoadOptions(); err != nil {
		log.Warn().Err(err).Msg("stored options not applied")
	}
	if *tablebase {
		protocol.Handle(ctx, "setoption name OnlineTablebase value true")
	}

	log.Info().Int("hash", eng.HashMB()).Int("threads", eng.Threads()).Msg("engine ready")
	return protocol.Run(ctx, os.Stdin)
}

func openStore() (*storage.Store, error) {
	dir, err := storage.DatabaseDir(*dataDir)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(dir)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("dir", dir).Msg("store opened")
	return store, nil
}
