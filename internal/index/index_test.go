package index

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func listAll(t *testing.T, body string) []ArchiveRef {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	l, err := Open(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	var refs []ArchiveRef
	for {
		ref, ok, err := l.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			return refs
		}
		refs = append(refs, ref)
	}
}

func TestNextFiltersAndOrders(t *testing.T) {
	body := "https://example.com/std/lichess_2023-02.pgn.zst\n" +
		"https://example.com/std/readme.txt\n" +
		"\n" +
		"https://example.com/std/lichess_2023-01.pgn.zst\n" +
		"https://example.com/std/lichess_2023-03.pgn.bz2\n"

	refs := listAll(t, body)
	if len(refs) != 2 {
		t.Fatalf("len(refs) = %d, want 2", len(refs))
	}
	// Listed order is authoritative, not lexical order.
	if refs[0].Name != "lichess_2023-02.pgn.zst" {
		t.Errorf("refs[0].Name = %q, want lichess_2023-02.pgn.zst", refs[0].Name)
	}
	if refs[1].Name != "lichess_2023-01.pgn.zst" {
		t.Errorf("refs[1].Name = %q, want lichess_2023-01.pgn.zst", refs[1].Name)
	}
	if refs[0].URL != "https://example.com/std/lichess_2023-02.pgn.zst" {
		t.Errorf("refs[0].URL = %q", refs[0].URL)
	}
}

func TestEmptyIndex(t *testing.T) {
	refs := listAll(t, "")
	if len(refs) != 0 {
		t.Errorf("len(refs) = %d, want 0", len(refs))
	}
}

func TestOpenBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := Open(context.Background(), srv.Client(), srv.URL); err == nil {
		t.Fatal("Open succeeded on 500 response")
	}
}

func TestOpenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	if _, err := Open(context.Background(), &http.Client{}, url); err == nil {
		t.Fatal("Open succeeded against closed server")
	}
}
