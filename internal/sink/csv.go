// Package sink appends extracted rows to the output CSV.
package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/freeeve/fendb/internal/extract"
)

// FileName is the output table's filename inside the output folder.
const FileName = "chess_games_filtered.csv"

var header = []string{"game_id", "fen", "move", "result"}

// CSV is an append-only row sink. The header row is written once,
// when the file is first created; the body is only ever appended to.
// Rows are flushed as they are written so an interrupted run loses
// at most the row in flight.
type CSV struct {
	f *os.File
	w *csv.Writer
}

// OpenCSV opens (or creates) the output table at path.
func OpenCSV(path string) (*CSV, error) {
	info, err := os.Stat(path)
	fresh := os.IsNotExist(err) || (err == nil && info.Size() == 0)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	return &CSV{f: f, w: w}, nil
}

// Append writes one row. Any error is a sink failure and fatal for
// the run, since the numbering invariant depends on rows landing in
// emission order.
func (c *CSV) Append(row extract.Row) error {
	rec := []string{
		strconv.FormatUint(row.GameID, 10),
		row.FEN,
		row.Move,
		row.Result,
	}
	if err := c.w.Write(rec); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	return nil
}

// Close flushes and closes the table.
func (c *CSV) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.f.Close()
		return fmt.Errorf("flush output: %w", err)
	}
	return c.f.Close()
}
