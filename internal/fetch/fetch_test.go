package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/freeeve/fendb/internal/index"
)

func TestFetchDownloads(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("archive bytes"))
	}))
	defer srv.Close()

	f := &Fetcher{Client: srv.Client(), Dir: t.TempDir()}
	ref := index.ArchiveRef{URL: srv.URL + "/a.pgn.zst", Name: "a.pgn.zst"}

	path, err := f.Fetch(context.Background(), ref)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "archive bytes" {
		t.Errorf("data = %q, want archive bytes", string(data))
	}

	// Second fetch reuses the local copy without touching the network.
	if _, err := f.Fetch(context.Background(), ref); err != nil {
		t.Fatalf("Fetch (cached): %v", err)
	}
	if hits != 1 {
		t.Errorf("hits = %d, want 1", hits)
	}

	if err := f.Remove(ref.Name); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("local copy still present after Remove")
	}
}

func TestFetchBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := &Fetcher{Client: srv.Client(), Dir: dir}
	ref := index.ArchiveRef{URL: srv.URL + "/a.pgn.zst", Name: "a.pgn.zst"}

	_, err := f.Fetch(context.Background(), ref)
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("err = %v, want ErrStatus", err)
	}
	// No partial or final file may remain.
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("cache dir has %d entries, want 0", len(entries))
	}
}

func TestFetchNoPartialFileOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.Write([]byte("short"))
	}))

	dir := t.TempDir()
	f := &Fetcher{Client: srv.Client(), Dir: dir}
	ref := index.ArchiveRef{URL: srv.URL + "/a.pgn.zst", Name: "a.pgn.zst"}

	_, err := f.Fetch(context.Background(), ref)
	srv.Close()
	if err == nil {
		t.Fatal("Fetch succeeded on truncated body")
	}
	if _, statErr := os.Stat(filepath.Join(dir, ref.Name)); !os.IsNotExist(statErr) {
		t.Error("truncated download left a file at the final name")
	}
}
