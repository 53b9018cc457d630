package ledgerstore

import (
	"os"
	"testing"

	"github.com/go-logr/logr"

	"github.com/marcus-qen/guidance/internal/guidance/ledger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(dir, logr.Discard())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func sampleEvent(id string, ts int64) ledger.RunEvent {
	return ledger.RunEvent{
		EventID:   id,
		Timestamp: ts,
		TaskID:    "task-" + id,
		Intent:    "analyze",
	}
}

func TestAppendReadAllRoundTrip(t *testing.T) {
	s := newTestStore(t)
	events := []ledger.RunEvent{sampleEvent("1", 100), sampleEvent("2", 200)}

	for _, e := range events {
		if err := s.Append(e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].EventID != "1" || got[1].EventID != "2" {
		t.Fatalf("expected order preserved, got %+v", got)
	}
}

func TestWriteAllAtomicReplace(t *testing.T) {
	s := newTestStore(t)
	if err := s.WriteAll([]ledger.RunEvent{sampleEvent("a", 1), sampleEvent("b", 2)}); err != nil {
		t.Fatal(err)
	}
	got, err := s.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}

	if err := s.WriteAll([]ledger.RunEvent{sampleEvent("c", 3)}); err != nil {
		t.Fatal(err)
	}
	got, err = s.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].EventID != "c" {
		t.Fatalf("expected atomic replace, got %+v", got)
	}
}

func TestCompactDropsOldest(t *testing.T) {
	s := newTestStore(t)
	for i := int64(0); i < 5; i++ {
		if err := s.Append(sampleEvent(string(rune('a'+i)), i)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Compact(2); err != nil {
		t.Fatal(err)
	}
	got, err := s.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events after compaction, got %d", len(got))
	}
	if got[0].EventID != "d" || got[1].EventID != "e" {
		t.Fatalf("expected the 2 newest events kept, got %+v", got)
	}
}

func TestIndexReflectsEvents(t *testing.T) {
	s := newTestStore(t)
	s.Append(sampleEvent("1", 10))
	s.Append(sampleEvent("2", 20))

	idx, err := s.ReadIndex()
	if err != nil {
		t.Fatal(err)
	}
	if idx.EventCount != 2 || idx.OldestTimestamp != 10 || idx.NewestTimestamp != 20 {
		t.Fatalf("unexpected index: %+v", idx)
	}
	if len(idx.TaskIDs) != 2 {
		t.Fatalf("expected 2 task ids, got %v", idx.TaskIDs)
	}
}

func TestMalformedLineSkipped(t *testing.T) {
	s := newTestStore(t)
	s.Append(sampleEvent("1", 10))

	f, err := os.OpenFile(s.eventsPath(), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("not valid json\n")
	f.Close()

	got, err := s.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected malformed trailing line to be skipped, got %d events", len(got))
	}
}

func TestLockStaleTakeover(t *testing.T) {
	s := newTestStore(t)
	holder1, err := s.AcquireLock()
	if err != nil {
		t.Fatal(err)
	}
	if holder1 == "" {
		t.Fatal("expected non-empty holder")
	}

	s2 := &Store{dir: s.dir, log: s.log}
	if _, err := s2.AcquireLock(); err != ErrLockHeld {
		t.Fatalf("expected ErrLockHeld for a fresh lock, got %v", err)
	}
}
