package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Key prefixes
const (
	prefixOption   = "option/"
	prefixAnalysis = "analysis/"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Analysis is the outcome of a finished search, keyed by position.
type Analysis struct {
	FEN     string        `json:"fen"`
	Move    string        `json:"move"`
	Score   int           `json:"score"`
	Depth   int           `json:"depth"`
	PV      []string      `json:"pv"`
	Nodes   uint64        `json:"nodes"`
	Time    time.Duration `json:"time"`
	Created time.Time     `json:"created"`
}

// Store wraps BadgerDB for engine options and analyses.
type Store struct {
	db *badger.DB
}

// Open opens (creating if needed) the database in dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{log.Logger})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", dir, err)
	}
	log.Debug().Str("dir", dir).Msg("store opened")
	return &Store{db: db}, nil
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(badgerLogger{log.Logger})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func optionKey(name string) []byte {
	return []byte(prefixOption + strings.ToLower(strings.TrimSpace(name)))
}

// SaveOption persists a UCI option so that it is restored at next start.
func (s *Store) SaveOption(name, value string) error {
	rec, err := json.Marshal([2]string{name, value})
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(optionKey(name), rec)
	})
}

// DeleteOption forgets a persisted option.
func (s *Store) DeleteOption(name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(optionKey(name))
	})
}

// Option is a persisted name/value pair.
type Option struct {
	Name  string
	Value string
}

// LoadOptions returns every persisted option, ordered by name.
func (s *Store) LoadOptions() ([]Option, error) {
	var out []Option
	err := s.scan(prefixOption, func(val []byte) error {
		var rec [2]string
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		out = append(out, Option{Name: rec[0], Value: rec[1]})
		return nil
	})
	return out, err
}

// SaveAnalysis stores a, replacing an earlier analysis of the same
// position only when a is at least as deep.
func (s *Store) SaveAnalysis(a Analysis) error {
	if a.Created.IsZero() {
		a.Created = time.Now()
	}
	key := []byte(prefixAnalysis + a.FEN)
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			var old Analysis
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &old) }); err != nil {
				return err
			}
			if old.Depth > a.Depth {
				return nil
			}
		}
		return txn.Set(key, data)
	})
}

// LoadAnalysis returns the stored analysis of fen or ErrNotFound.
func (s *Store) LoadAnalysis(fen string) (Analysis, error) {
	var a Analysis
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixAnalysis + fen))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("analysis of %q: %w", fen, ErrNotFound)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &a)
		})
	})
	return a, err
}

// Analyses returns every stored analysis.
func (s *Store) Analyses() ([]Analysis, error) {
	var out []Analysis
	err := s.scan(prefixAnalysis, func(val []byte) error {
		var a Analysis
		if err := json.Unmarshal(val, &a); err != nil {
			return err
		}
		out = append(out, a)
		return nil
	})
	return out, err
}

func (s *Store) scan(prefix string, fn func(val []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
		}
		return nil
	})
}

// badgerLogger routes badger's internal logging to zerolog. Badger is
// chatty at info level, so that is demoted to debug.
type badgerLogger struct {
	l zerolog.Logger
}

func (b badgerLogger) Errorf(f string, v ...interface{}) {
	b.l.Error().Str("component", "badger").Msgf(strings.TrimSpace(f), v...)
}

func (b badgerLogger) Warningf(f string, v ...interface{}) {
	b.l.Warn().Str("component", "badger").Msgf(strings.TrimSpace(f), v...)
}

func (b badgerLogger) Infof(f string, v ...interface{}) {
	b.l.Debug().Str("component", "badger").Msgf(strings.TrimSpace(f), v...)
}

func (b badgerLogger) Debugf(f string, v ...interface{}) {
	b.l.Trace().Str("component", "badger").Msgf(strings.TrimSpace(f), v...)
}
