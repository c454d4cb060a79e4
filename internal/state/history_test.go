package state

import (
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	s := openTemp(t)

	entries := []Entry{
		{ID: "id-1", URL: "https://example.com/a", Path: "a", Bytes: 100, Attempts: 1, Status: "complete", Elapsed: 1500 * time.Millisecond},
		{ID: "id-2", URL: "https://example.com/b", Path: "b", Bytes: 0, Attempts: 4, Status: "retries-exhausted", Elapsed: 9 * time.Second},
		{ID: "id-3", URL: "https://example.com/c", Path: "c", Bytes: 42, Attempts: 1, Status: "complete",
			Checksum: "abc123", Algorithm: "sha256", Elapsed: 10 * time.Millisecond},
	}
	for _, e := range entries {
		if err := s.Record(e); err != nil {
			t.Fatalf("Record(%s): %v", e.ID, err)
		}
	}

	got, err := s.List(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("List returned %d entries, want 3", len(got))
	}
	byID := map[string]Entry{}
	for _, e := range got {
		byID[e.ID] = e
	}
	if e := byID["id-2"]; e.Status != "retries-exhausted" || e.Attempts != 4 || e.Elapsed != 9*time.Second {
		t.Errorf("id-2 round trip wrong: %+v", e)
	}
	if e := byID["id-3"]; e.Checksum != "abc123" || e.Algorithm != "sha256" {
		t.Errorf("id-3 checksum fields wrong: %+v", e)
	}
}

func TestListLimit(t *testing.T) {
	s := openTemp(t)
	for i := 0; i < 5; i++ {
		e := Entry{ID: string(rune('a' + i)), URL: "u", Path: "p", Status: "complete"}
		if err := s.Record(e); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.List(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("List(2) returned %d entries", len(got))
	}
}

func TestDuplicateIDRejected(t *testing.T) {
	s := openTemp(t)
	e := Entry{ID: "dup", URL: "u", Path: "p", Status: "complete"}
	if err := s.Record(e); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(e); err == nil {
		t.Error("duplicate primary key should fail")
	}
}

func TestListEmpty(t *testing.T) {
	s := openTemp(t)
	got, err := s.List(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("empty store returned %d entries", len(got))
	}
}
