// Package fetch downloads archives into a local cache directory.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/freeeve/fendb/internal/index"
)

// ChunkSize is the copy buffer size for streaming downloads.
const ChunkSize = 1 << 20

// ErrStatus is wrapped into errors returned for non-success HTTP
// responses, so callers can distinguish them from transport failures.
var ErrStatus = errors.New("unexpected status")

// Fetcher caches remote archives under Dir. Downloads stream through
// a fixed-size buffer; the archive is never held in memory.
type Fetcher struct {
	Client *http.Client
	Dir    string
}

// Fetch returns a local path for ref, downloading it if no cached
// copy exists. An existing file is reused verbatim; partially
// downloaded files are written under a .part suffix and renamed only
// on success, so a crash never leaves a truncated file at the final
// name.
func (f *Fetcher) Fetch(ctx context.Context, ref index.ArchiveRef) (string, error) {
	path := filepath.Join(f.Dir, ref.Name)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", ref.Name, err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", ref.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch %s: %w: %s", ref.Name, ErrStatus, resp.Status)
	}

	tmp := path + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", ref.Name, err)
	}
	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(out, resp.Body, buf); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("fetch %s: %w", ref.Name, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("fetch %s: %w", ref.Name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("fetch %s: %w", ref.Name, err)
	}
	return path, nil
}

// Remove deletes the cached copy of name. Called only after an
// archive has been fully drained and ledgered.
func (f *Fetcher) Remove(name string) error {
	return os.Remove(filepath.Join(f.Dir, name))
}
