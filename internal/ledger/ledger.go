// Package ledger tracks which archives have been fully drained.
// The on-disk form is a plain newline-delimited list of archive
// filenames, append-only, so it can always be rebuilt by replay. A
// sibling checkpoint file carries the next game id so the global
// numbering stays contiguous across restarts.
package ledger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const checkpointName = "next_game_id"

// Ledger is the durable set of fully-drained archive names. Lookups
// hit an in-memory set; every MarkDone is synced to disk before it
// returns, so a crash immediately after still preserves the entry.
type Ledger struct {
	f          *os.File
	done       map[string]struct{}
	checkpoint string
	nextGameID uint64
}

// Open loads (or creates) the ledger at path and its game-id
// checkpoint alongside it.
func Open(path string) (*Ledger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	done := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			done[name] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		f.Close()
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek ledger: %w", err)
	}

	l := &Ledger{
		f:          f,
		done:       done,
		checkpoint: filepath.Join(filepath.Dir(path), checkpointName),
	}
	if err := l.loadCheckpoint(); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

// IsDone reports whether name has already been fully drained.
func (l *Ledger) IsDone(name string) bool {
	_, ok := l.done[name]
	return ok
}

// Count returns how many archives the ledger covers.
func (l *Ledger) Count() int {
	return len(l.done)
}

// NextGameID returns the checkpointed next game id, 0 when no
// archive has completed yet.
func (l *Ledger) NextGameID() uint64 {
	return l.nextGameID
}

// MarkDone durably records name as fully drained and checkpoints
// nextGameID. Marking the same name twice is a no-op; a name is
// ledgered at most once.
func (l *Ledger) MarkDone(name string, nextGameID uint64) error {
	if l.IsDone(name) {
		return nil
	}
	if _, err := l.f.WriteString(name + "\n"); err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}
	l.done[name] = struct{}{}
	if err := l.writeCheckpoint(nextGameID); err != nil {
		return err
	}
	l.nextGameID = nextGameID
	return nil
}

// Close releases the underlying file.
func (l *Ledger) Close() error {
	return l.f.Close()
}

func (l *Ledger) loadCheckpoint() error {
	data, err := os.ReadFile(l.checkpoint)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read checkpoint: %w", err)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return fmt.Errorf("parse checkpoint: %w", err)
	}
	l.nextGameID = n
	return nil
}

// writeCheckpoint replaces the checkpoint atomically so a crash can
// never leave it truncated.
func (l *Ledger) writeCheckpoint(nextGameID uint64) error {
	tmp := l.checkpoint + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if _, err := f.WriteString(strconv.FormatUint(nextGameID, 10) + "\n"); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmp, l.checkpoint); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}
