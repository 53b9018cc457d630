package ledger

import "testing"

func fakeClock(start int64) Clock {
	t := start
	return func() int64 {
		t += 10
		return t
	}
}

func TestCreateFinalizeExport(t *testing.T) {
	l := New(fakeClock(1000))
	e := l.CreateEvent("task-1", "write-code", "bundle-hash")

	if err := l.RecordToolUse(e, "Write"); err != nil {
		t.Fatal(err)
	}
	if err := l.RecordToolUse(e, "Write"); err != nil { // duplicate, should not double up
		t.Fatal(err)
	}
	if err := l.RecordFileTouch(e, "main.go"); err != nil {
		t.Fatal(err)
	}

	if len(e.ToolsUsed) != 1 {
		t.Fatalf("expected deduped ToolsUsed, got %v", e.ToolsUsed)
	}

	if err := l.FinalizeEvent(e, true, 0); err != nil {
		t.Fatal(err)
	}
	if !e.Finalized() {
		t.Fatal("expected event to be finalized")
	}

	recomputed, err := computeContentHash(*e)
	if err != nil {
		t.Fatal(err)
	}
	if recomputed != e.ContentHash {
		t.Fatalf("recomputed hash %s != stored hash %s", recomputed, e.ContentHash)
	}

	exported := l.ExportEvents()
	if len(exported) != 1 || exported[0].EventID != e.EventID {
		t.Fatalf("expected exported events to contain the event, got %v", exported)
	}
}

func TestFinalizeTwiceFails(t *testing.T) {
	l := New(fakeClock(0))
	e := l.CreateEvent("t", "analyze", "h")
	if err := l.FinalizeEvent(e, true, 0); err != nil {
		t.Fatal(err)
	}
	if err := l.FinalizeEvent(e, true, 0); err != ErrAlreadyFinalized {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}
}

func TestMutateAfterFinalizeFails(t *testing.T) {
	l := New(fakeClock(0))
	e := l.CreateEvent("t", "analyze", "h")
	if err := l.FinalizeEvent(e, true, 0); err != nil {
		t.Fatal(err)
	}
	if err := l.RecordToolUse(e, "Read"); err != ErrAlreadyFinalized {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}
}

func TestExportOrderedByTimestamp(t *testing.T) {
	l := New(fakeClock(0))
	e1 := l.CreateEvent("t1", "read-code", "h")
	e2 := l.CreateEvent("t2", "read-code", "h")
	l.FinalizeEvent(e1, true, 0)
	l.FinalizeEvent(e2, true, 0)

	exported := l.ExportEvents()
	if len(exported) != 2 {
		t.Fatalf("expected 2 events, got %d", len(exported))
	}
	if exported[0].Timestamp > exported[1].Timestamp {
		t.Fatal("expected events ordered by ascending timestamp")
	}
}
