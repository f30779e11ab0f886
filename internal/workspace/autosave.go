// Provides debounced saving of page content.

package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/maruel/pagetree/internal/model"
)

// SaveStatus is the persistence state of the content of a page.
type SaveStatus string

const (
	// SaveStatusSaved means the remote store holds the latest content.
	SaveStatusSaved SaveStatus = "saved"
	// SaveStatusUnsaved means local edits are waiting to be sent.
	SaveStatusUnsaved SaveStatus = "unsaved"
	// SaveStatusSaving means a save is in flight.
	SaveStatusSaving SaveStatus = "saving"
)

// saveTimeout bounds a save started by the debounce timer.
const saveTimeout = 30 * time.Second

// BlockSyncer replaces the blocks of a page remotely.
type BlockSyncer interface {
	SyncBlocks(ctx context.Context, pageID string, blocks []*model.FlatBlock) error
}

// Autosaver coalesces content edits per page and sends only the latest
// payload once the page has been idle for the configured delay.
type Autosaver struct {
	gw    BlockSyncer
	delay time.Duration

	mu    sync.Mutex
	pages map[string]*saveState
}

type saveState struct {
	send    sync.Mutex // Serializes remote saves of the page.
	status  SaveStatus
	pending []*model.FlatBlock // Latest payload not sent yet.
	saved   []*model.FlatBlock // Last payload the remote store accepted.
	seq     uint64
	timer   *time.Timer
}

// NewAutosaver returns an Autosaver saving through gw after delay of
// inactivity.
func NewAutosaver(gw BlockSyncer, delay time.Duration) *Autosaver {
	return &Autosaver{gw: gw, delay: delay, pages: map[string]*saveState{}}
}

// Schedule records blocks as the latest content of pageID and (re)starts its
// idle timer.
func (a *Autosaver) Schedule(pageID string, blocks []*model.FlatBlock) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.stateLocked(pageID)
	st.pending = cloneFlat(blocks)
	st.status = SaveStatusUnsaved
	st.seq++
	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = time.AfterFunc(a.delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := a.send(ctx, pageID); err != nil {
			slog.Error("Autosave failed", "page", pageID, "err", err)
		}
	})
}

// Save sends blocks as the content of pageID right away, superseding any
// scheduled save. Saving the payload last accepted is a no-op.
func (a *Autosaver) Save(ctx context.Context, pageID string, blocks []*model.FlatBlock) error {
	a.mu.Lock()
	st := a.stateLocked(pageID)
	st.pending = cloneFlat(blocks)
	st.status = SaveStatusUnsaved
	st.seq++
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	a.mu.Unlock()
	return a.send(ctx, pageID)
}

// FlushPage sends the pending content of pageID, if any.
func (a *Autosaver) FlushPage(ctx context.Context, pageID string) error {
	a.mu.Lock()
	if st, ok := a.pages[pageID]; ok && st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	a.mu.Unlock()
	return a.send(ctx, pageID)
}

// Flush sends the pending content of every page.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	var ids []string
	for id, st := range a.pages {
		if st.pending != nil {
			ids = append(ids, id)
		}
	}
	a.mu.Unlock()
	var errs []error
	for _, id := range ids {
		if err := a.FlushPage(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Cancel forgets pageID, dropping unsent content. Used when the page is
// deleted.
func (a *Autosaver) Cancel(pageID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if st, ok := a.pages[pageID]; ok {
		if st.timer != nil {
			st.timer.Stop()
		}
		delete(a.pages, pageID)
	}
}

// Status returns the save status of pageID. Pages never edited are saved.
func (a *Autosaver) Status(pageID string) SaveStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	if st, ok := a.pages[pageID]; ok {
		return st.status
	}
	return SaveStatusSaved
}

func (a *Autosaver) stateLocked(pageID string) *saveState {
	st, ok := a.pages[pageID]
	if !ok {
		st = &saveState{status: SaveStatusSaved}
		a.pages[pageID] = st
	}
	return st
}

// send pushes the latest pending payload of pageID.
func (a *Autosaver) send(ctx context.Context, pageID string) error {
	a.mu.Lock()
	st, ok := a.pages[pageID]
	a.mu.Unlock()
	if !ok {
		return nil
	}
	st.send.Lock()
	defer st.send.Unlock()

	a.mu.Lock()
	if a.pages[pageID] != st || st.pending == nil {
		a.mu.Unlock()
		return nil
	}
	payload, seq := st.pending, st.seq
	st.pending = nil
	if st.saved != nil && reflect.DeepEqual(payload, st.saved) {
		st.status = SaveStatusSaved
		a.mu.Unlock()
		return nil
	}
	st.status = SaveStatusSaving
	a.mu.Unlock()

	err := a.gw.SyncBlocks(ctx, pageID, payload)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		if st.pending == nil {
			st.pending = payload
		}
		st.status = SaveStatusUnsaved
		return fmt.Errorf("save page content: %w", err)
	}
	st.saved = payload
	if st.seq == seq {
		st.status = SaveStatusSaved
	}
	return nil
}

func cloneFlat(blocks []*model.FlatBlock) []*model.FlatBlock {
	out := make([]*model.FlatBlock, len(blocks))
	for i, b := range blocks {
		out[i] = b.Clone()
	}
	return out
}
