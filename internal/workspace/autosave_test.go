package workspace

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/maruel/pagetree/internal/model"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

type fakeSyncer struct {
	mu    sync.Mutex
	calls [][]*model.FlatBlock
	err   error
	gate  chan struct{}
}

func (f *fakeSyncer) SyncBlocks(ctx context.Context, pageID string, blocks []*model.FlatBlock) error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, blocks)
	return nil
}

func (f *fakeSyncer) sent() [][]*model.FlatBlock {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func flat(contents ...string) []*model.FlatBlock {
	out := make([]*model.FlatBlock, len(contents))
	for i, c := range contents {
		out[i] = &model.FlatBlock{ID: c, Type: model.BlockTypeText, Content: c, PageID: "p", Index: i}
	}
	return out
}

func TestAutosaveDebounce(t *testing.T) {
	f := &fakeSyncer{}
	a := NewAutosaver(f, 50*time.Millisecond)
	if got := a.Status("p"); got != SaveStatusSaved {
		t.Errorf("Status() = %q, want %q", got, SaveStatusSaved)
	}
	a.Schedule("p", flat("a"))
	a.Schedule("p", flat("a", "b"))
	a.Schedule("p", flat("a", "b", "c"))
	if got := a.Status("p"); got != SaveStatusUnsaved {
		t.Errorf("Status() = %q, want %q", got, SaveStatusUnsaved)
	}
	waitFor(t, "save", func() bool { return a.Status("p") == SaveStatusSaved })
	calls := f.sent()
	if len(calls) != 1 {
		t.Fatalf("sent %d payloads, want 1", len(calls))
	}
	if len(calls[0]) != 3 || calls[0][2].Content != "c" {
		t.Errorf("payload = %+v", calls[0])
	}
}

func TestAutosaveSkipsUnchanged(t *testing.T) {
	ctx := t.Context()
	f := &fakeSyncer{}
	a := NewAutosaver(f, time.Hour)
	if err := a.Save(ctx, "p", flat("a")); err != nil {
		t.Fatal(err)
	}
	if err := a.Save(ctx, "p", flat("a")); err != nil {
		t.Fatal(err)
	}
	if n := len(f.sent()); n != 1 {
		t.Errorf("sent %d payloads, want 1", n)
	}
	if err := a.Save(ctx, "p", flat("b")); err != nil {
		t.Fatal(err)
	}
	if n := len(f.sent()); n != 2 {
		t.Errorf("sent %d payloads, want 2", n)
	}
}

func TestAutosaveFailureKeepsContent(t *testing.T) {
	ctx := t.Context()
	f := &fakeSyncer{err: errBoom}
	a := NewAutosaver(f, time.Hour)
	a.Schedule("p", flat("a"))
	if err := a.FlushPage(ctx, "p"); !errors.Is(err, errBoom) {
		t.Fatalf("FlushPage() = %v, want boom", err)
	}
	if got := a.Status("p"); got != SaveStatusUnsaved {
		t.Errorf("Status() = %q, want %q", got, SaveStatusUnsaved)
	}
	f.mu.Lock()
	f.err = nil
	f.mu.Unlock()
	if err := a.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if got := a.Status("p"); got != SaveStatusSaved {
		t.Errorf("Status() = %q, want %q", got, SaveStatusSaved)
	}
	if calls := f.sent(); len(calls) != 1 || calls[0][0].Content != "a" {
		t.Errorf("sent = %+v", calls)
	}
	if err := a.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(f.sent()); n != 1 {
		t.Errorf("Flush() with nothing pending sent %d payloads", n)
	}
}

func TestAutosaveSaving(t *testing.T) {
	ctx := t.Context()
	f := &fakeSyncer{gate: make(chan struct{})}
	a := NewAutosaver(f, time.Hour)
	done := make(chan error, 1)
	go func() { done <- a.Save(ctx, "p", flat("a")) }()
	waitFor(t, "saving", func() bool { return a.Status("p") == SaveStatusSaving })

	// An edit made during the save keeps the page unsaved once it lands.
	a.Schedule("p", flat("a", "b"))
	close(f.gate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if got := a.Status("p"); got != SaveStatusUnsaved {
		t.Errorf("Status() = %q, want %q", got, SaveStatusUnsaved)
	}
	if err := a.FlushPage(ctx, "p"); err != nil {
		t.Fatal(err)
	}
	if got := a.Status("p"); got != SaveStatusSaved {
		t.Errorf("Status() = %q, want %q", got, SaveStatusSaved)
	}
	if calls := f.sent(); len(calls) != 2 || len(calls[1]) != 2 {
		t.Errorf("sent = %+v", calls)
	}
}

func TestAutosaveCancel(t *testing.T) {
	f := &fakeSyncer{}
	a := NewAutosaver(f, 10*time.Millisecond)
	a.Schedule("p", flat("a"))
	a.Cancel("p")
	if got := a.Status("p"); got != SaveStatusSaved {
		t.Errorf("Status() = %q, want %q", got, SaveStatusSaved)
	}
	time.Sleep(50 * time.Millisecond)
	if n := len(f.sent()); n != 0 {
		t.Errorf("sent %d payloads after Cancel", n)
	}
}
