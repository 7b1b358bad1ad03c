// Package index enumerates compressed PGN archives from a remote
// plain-text index, one URL per line, in listed order.
package index

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
)

// ArchiveSuffix marks lines in the index that refer to compressed
// PGN archives. Everything else is ignored.
const ArchiveSuffix = ".pgn.zst"

// DefaultURL is the Lichess standard-game database index.
const DefaultURL = "https://database.lichess.org/standard/list.txt"

// ArchiveRef identifies one remote archive. Name is the final path
// segment of the URL and doubles as the local cache filename and the
// completion-ledger key.
type ArchiveRef struct {
	URL  string
	Name string
}

// Lister streams archive references out of the remote index without
// buffering the whole listing.
type Lister struct {
	body    func() error // closes the response body
	scanner *bufio.Scanner
}

// Open fetches the index and returns a Lister positioned before the
// first entry. An unreachable index or a non-success status is an
// error; callers treat it as fatal for the whole run.
func Open(ctx context.Context, client *http.Client, url string) (*Lister, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("index request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch index: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch index: unexpected status %s", resp.Status)
	}
	return &Lister{
		body:    resp.Body.Close,
		scanner: bufio.NewScanner(resp.Body),
	}, nil
}

// Next returns the next archive reference in listed order. ok is
// false once the index is exhausted; err reports a mid-stream read
// failure, which poisons the rest of the enumeration.
func (l *Lister) Next() (ref ArchiveRef, ok bool, err error) {
	for l.scanner.Scan() {
		line := strings.TrimSpace(l.scanner.Text())
		if line == "" || !strings.HasSuffix(line, ArchiveSuffix) {
			continue
		}
		name := line
		if i := strings.LastIndexByte(line, '/'); i >= 0 {
			name = line[i+1:]
		}
		return ArchiveRef{URL: line, Name: name}, true, nil
	}
	if err := l.scanner.Err(); err != nil {
		return ArchiveRef{}, false, fmt.Errorf("read index: %w", err)
	}
	return ArchiveRef{}, false, nil
}

// Close releases the underlying response body.
func (l *Lister) Close() error {
	return l.body()
}
