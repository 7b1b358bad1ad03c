// Package pipeline drives the resumable extraction run: enumerate
// archives, download, drain game by game, ledger, delete, repeat.
//
// Archives are processed strictly sequentially. The game-id counter
// and the output sink are shared, order-sensitive resources; their
// cross-archive ordering must match enumeration order for the
// numbering invariant to hold.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/fendb/internal/extract"
	"github.com/freeeve/fendb/internal/fetch"
	"github.com/freeeve/fendb/internal/filter"
	"github.com/freeeve/fendb/internal/index"
	"github.com/freeeve/fendb/internal/ledger"
	"github.com/freeeve/fendb/internal/pgnscan"
	"github.com/freeeve/fendb/internal/sink"
)

// Per-archive states. An archive that never left statePending is
// distinguishable in the logs from one that failed and will be
// retried.
type archiveState string

const (
	statePending     archiveState = "pending"
	stateDownloading archiveState = "downloading"
	stateDraining    archiveState = "draining"
	stateDone        archiveState = "done"
)

// DefaultProgressEvery is the progress-report cadence in games.
const DefaultProgressEvery = 100000

// Config carries the run parameters.
type Config struct {
	IndexURL      string
	MinElo        int
	MaxGames      uint64 // 0 = unlimited
	MaxDownloads  int    // 0 = unlimited
	ProgressEvery uint64
	Logger        zerolog.Logger
}

// State is the in-memory pipeline position, rebuilt at process
// start and threaded through the run explicitly. NextGameID is the
// id the next encountered game receives; ids start at 1 and advance
// by exactly one per game, kept or skipped.
type State struct {
	NextGameID uint64
	Downloads  int
	Games      uint64
	Kept       uint64
	Rows       uint64
}

// Summary reports a finished run.
type Summary struct {
	Games     uint64
	Kept      uint64
	Rows      uint64
	Archives  int
	Completed int
	Failed    int
	Elapsed   time.Duration
}

// Pipeline wires the collaborators into a resumable run.
type Pipeline struct {
	cfg     Config
	client  *http.Client
	fetcher *fetch.Fetcher
	parser  extract.MoveParser
	ledger  *ledger.Ledger
	sink    *sink.CSV
	log     zerolog.Logger

	start   time.Time
	lastLog time.Time
}

// New assembles a pipeline from its collaborators.
func New(cfg Config, client *http.Client, fetcher *fetch.Fetcher, parser extract.MoveParser, led *ledger.Ledger, out *sink.CSV) *Pipeline {
	if cfg.ProgressEvery == 0 {
		cfg.ProgressEvery = DefaultProgressEvery
	}
	return &Pipeline{
		cfg:     cfg,
		client:  client,
		fetcher: fetcher,
		parser:  parser,
		ledger:  led,
		sink:    out,
		log:     cfg.Logger,
	}
}

// fatalError marks failures that invalidate the run's durability
// guarantees (ledger and sink I/O). Everything else is scoped to
// the current archive.
type fatalError struct{ err error }

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Run executes the state machine until the index is exhausted, a
// stop condition fires, or a fatal error occurs. An index fetch
// failure is fatal for the whole run; a per-archive failure leaves
// that archive unledgered, its local file retained, and moves on.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	p.start = time.Now()
	p.lastLog = p.start

	s := State{NextGameID: p.ledger.NextGameID()}
	if s.NextGameID == 0 {
		s.NextGameID = 1
	}

	p.log.Info().
		Int("completed_archives", p.ledger.Count()).
		Uint64("next_game_id", s.NextGameID).
		Msg("resuming from ledger")

	lister, err := index.Open(ctx, p.client, p.cfg.IndexURL)
	if err != nil {
		return p.summary(&s, 0), err
	}
	defer lister.Close()

	var completed, failed int
	for {
		if p.stopReached(ctx, &s) {
			break
		}
		if p.cfg.MaxDownloads > 0 && s.Downloads >= p.cfg.MaxDownloads {
			p.log.Info().Int("downloads", s.Downloads).Msg("reached max downloads limit")
			break
		}
		ref, ok, err := lister.Next()
		if err != nil {
			return p.summary(&s, completed), err
		}
		if !ok {
			break
		}
		if p.ledger.IsDone(ref.Name) {
			continue
		}

		p.log.Info().Str("archive", ref.Name).Str("state", string(stateDownloading)).Msg("downloading archive")
		path, err := p.fetcher.Fetch(ctx, ref)
		if err != nil {
			p.log.Error().Err(err).Str("archive", ref.Name).Msg("archive failed, will retry next run")
			failed++
			continue
		}
		s.Downloads++

		p.log.Info().Str("archive", ref.Name).Str("state", string(stateDraining)).Msg("draining archive")
		drained, err := p.drainArchive(ctx, path, ref.Name, &s)
		if err != nil {
			var fe *fatalError
			if errors.As(err, &fe) {
				return p.summary(&s, completed), fe.Unwrap()
			}
			p.log.Error().Err(err).Str("archive", ref.Name).Msg("archive failed, will retry next run")
			failed++
			continue
		}
		if !drained {
			// Stop condition mid-archive: stays pending, local
			// file retained for the next run.
			p.log.Info().Str("archive", ref.Name).Str("state", string(statePending)).Msg("stopping mid-archive")
			break
		}

		if err := p.ledger.MarkDone(ref.Name, s.NextGameID); err != nil {
			return p.summary(&s, completed), err
		}
		if err := p.fetcher.Remove(ref.Name); err != nil {
			p.log.Warn().Err(err).Str("archive", ref.Name).Msg("remove local copy failed")
		} else {
			p.log.Info().Str("archive", ref.Name).Msg("removed local copy")
		}
		completed++
		p.log.Info().
			Str("archive", ref.Name).
			Str("state", string(stateDone)).
			Uint64("games", s.Games).
			Uint64("rows", s.Rows).
			Msg("archive complete")
	}

	sum := p.summary(&s, completed)
	sum.Failed = failed
	return sum, nil
}

// stopReached checks the stop conditions that can fire mid-archive:
// cancellation and the max total game count. The downloads cap is
// checked separately, before starting another download, so that an
// already-downloaded archive still drains to completion.
func (p *Pipeline) stopReached(ctx context.Context, s *State) bool {
	select {
	case <-ctx.Done():
		return true
	default:
	}
	if p.cfg.MaxGames > 0 && s.NextGameID-1 >= p.cfg.MaxGames {
		return true
	}
	return false
}

// drainArchive consumes every game in the local archive at path.
// Returns drained=true only when the scanner reports end-of-stream;
// a stop condition mid-archive returns drained=false with nil error.
// Sink failures come back wrapped in fatalError; anything else
// aborts only this archive.
func (p *Pipeline) drainArchive(ctx context.Context, path, name string, s *State) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	lr, err := pgnscan.NewZstdLineReader(f)
	if err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	defer lr.Close()

	for {
		if p.stopReached(ctx, s) {
			return false, nil
		}

		headers, err := pgnscan.ReadHeaders(lr)
		if err == io.EOF {
			return true, nil
		}
		if err != nil {
			return false, fmt.Errorf("decode %s: %w", name, err)
		}

		gameID := s.NextGameID
		s.NextGameID++
		s.Games++

		if filter.Pass(headers, p.cfg.MinElo) {
			if err := p.consumeKept(lr, gameID, headers["Result"], s); err != nil {
				return false, err
			}
			s.Kept++
		} else {
			if err := pgnscan.SkipMovetext(lr); err != nil && err != io.EOF {
				return false, fmt.Errorf("decode %s: %w", name, err)
			}
		}

		p.maybeLogProgress(name, s)
	}
}

// consumeKept deep-parses one kept game and streams its rows to the
// sink. Both this and the skip path leave the cursor past the
// game's trailing blank line.
func (p *Pipeline) consumeKept(lr *pgnscan.LineReader, gameID uint64, result string, s *State) error {
	sans, err := p.parser.ParseMovetext(lr)
	if err != nil {
		return err
	}
	return extract.Replay(gameID, result, sans, func(row extract.Row) error {
		if err := p.sink.Append(row); err != nil {
			return &fatalError{err}
		}
		s.Rows++
		return nil
	})
}

func (p *Pipeline) maybeLogProgress(archive string, s *State) {
	if s.Games == 0 || s.Games%p.cfg.ProgressEvery != 0 {
		return
	}
	if time.Since(p.lastLog) < 10*time.Second {
		return
	}
	elapsed := time.Since(p.start)
	p.log.Info().
		Str("archive", archive).
		Uint64("games", s.Games).
		Uint64("kept", s.Kept).
		Uint64("rows", s.Rows).
		Float64("games_per_sec", float64(s.Games)/elapsed.Seconds()).
		Msg("extract progress")
	p.lastLog = time.Now()
}

func (p *Pipeline) summary(s *State, completed int) Summary {
	return Summary{
		Games:     s.Games,
		Kept:      s.Kept,
		Rows:      s.Rows,
		Archives:  s.Downloads,
		Completed: completed,
		Elapsed:   time.Since(p.start),
	}
}
