// Provides the block editor of an open page.

package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/maruel/pagetree/internal/blocktree"
	"github.com/maruel/pagetree/internal/ident"
	"github.com/maruel/pagetree/internal/model"
)

// Editor owns the block forest of one open content page. Every change is
// published into the page held by the Store.
//
// Block creation, update, deletion and duplication are sent to the remote
// store immediately. Moves and text edits are local and persisted by the
// autosaver.
type Editor struct {
	s      *Store
	pageID string

	// mu is acquired before Store.mu.
	mu      sync.Mutex
	forest  *blocktree.Forest
	pending map[string]struct{}
	closed  bool
}

// OpenPage loads the blocks of a content page and returns its editor. Opening
// a page twice returns the same editor.
func (s *Store) OpenPage(ctx context.Context, pageID string) (*Editor, error) {
	s.mu.Lock()
	p, err := s.lookupLocked(pageID)
	if err == nil && p.IsDatabase {
		err = fmt.Errorf("%w: %s", ErrIsDatabase, pageID)
	}
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if e, ok := s.editors[pageID]; ok {
		s.mu.Unlock()
		return e, nil
	}
	s.mu.Unlock()

	flat, err := s.gw.GetBlocks(ctx, pageID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load blocks", "page", pageID, "err", err)
		return nil, fmt.Errorf("load blocks: %w", err)
	}
	f := blocktree.FromFlat(pageID, flat)

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.editors[pageID]; ok {
		return e, nil
	}
	p, ok := s.pages[pageID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, pageID)
	}
	e := &Editor{s: s, pageID: pageID, forest: f, pending: map[string]struct{}{}}
	s.editors[pageID] = e
	p.Blocks = f.Blocks()
	return e, nil
}

// PageID returns the page being edited.
func (e *Editor) PageID() string {
	return e.pageID
}

// Blocks returns a nested copy of the content.
func (e *Editor) Blocks() []*model.Block {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.forest.Blocks()
}

// Block returns a nested copy of one block.
func (e *Editor) Block(id string) (*model.Block, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.forest.Get(id)
}

// Status returns the save status of the content.
func (e *Editor) Status() SaveStatus {
	return e.s.saver.Status(e.pageID)
}

// FetchBlocks reloads the content from the remote store, dropping local
// state.
func (e *Editor) FetchBlocks(ctx context.Context) error {
	if err := e.check(); err != nil {
		return err
	}
	flat, err := e.s.gw.GetBlocks(ctx, e.pageID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load blocks", "page", e.pageID, "err", err)
		return fmt.Errorf("load blocks: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEditorClosed
	}
	e.forest = blocktree.FromFlat(e.pageID, flat)
	e.pending = map[string]struct{}{}
	e.publishLocked()
	return nil
}

// CreateBlock inserts a new block under parentID, or at the top level, at
// index among its siblings. A negative or out of range index appends.
func (e *Editor) CreateBlock(ctx context.Context, typ model.BlockType, content, parentID string, index int) (*model.Block, error) {
	if typ != "" && !typ.IsValid() {
		return nil, fmt.Errorf("%w: block type %q", ErrInvalidUpdate, typ)
	}
	e.mu.Lock()
	if err := e.checkParentLocked(parentID); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	tmp := ident.NewTempID()
	b := model.NewBlock(tmp, e.pageID, parentID, typ, content, ident.Now())
	b.CreatedBy = e.s.userID
	index, _ = e.forest.Insert(b, parentID, index)
	e.pending[tmp] = struct{}{}
	e.publishLocked()
	e.mu.Unlock()

	srv, err := e.s.gw.CreateBlock(ctx, e.pageID, b.Type, content, parentID, index)
	if err != nil {
		e.discard(tmp)
		slog.ErrorContext(ctx, "Failed to create block", "page", e.pageID, "err", err)
		return nil, fmt.Errorf("create block: %w", err)
	}
	return e.confirm(tmp, srv), nil
}

// UpdateBlock applies a partial update to a block.
func (e *Editor) UpdateBlock(ctx context.Context, id string, u *model.BlockUpdate) error {
	if u == nil {
		return nil
	}
	if err := u.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidUpdate, err)
	}
	e.mu.Lock()
	if err := e.lookupLocked(id); err != nil {
		e.mu.Unlock()
		return err
	}
	old, _ := e.forest.Get(id)
	_ = e.forest.Update(id, func(b *model.Block) {
		u.Apply(b)
		b.UpdatedAt = ident.Now()
	})
	e.publishLocked()
	e.mu.Unlock()

	if err := e.s.gw.UpdateBlock(ctx, id, u); err != nil {
		e.mu.Lock()
		_ = e.forest.Update(id, func(b *model.Block) {
			b.Type = old.Type
			b.Content = old.Content
			b.Properties = old.Properties
			b.UpdatedAt = old.UpdatedAt
		})
		e.publishLocked()
		e.mu.Unlock()
		slog.ErrorContext(ctx, "Failed to update block", "id", id, "err", err)
		return fmt.Errorf("update block: %w", err)
	}
	return nil
}

// DeleteBlock removes a block and its subtree.
func (e *Editor) DeleteBlock(ctx context.Context, id string) error {
	e.mu.Lock()
	if err := e.lookupLocked(id); err != nil {
		e.mu.Unlock()
		return err
	}
	sub, parentID, index, _ := e.forest.Remove(id)
	e.publishLocked()
	e.mu.Unlock()

	if err := e.s.gw.DeleteBlock(ctx, id); err != nil {
		e.mu.Lock()
		if !e.forest.Has(parentID) {
			parentID = ""
		}
		if rerr := e.forest.InsertTree(sub, parentID, index); rerr != nil {
			slog.WarnContext(ctx, "Failed to restore block", "id", id, "err", rerr)
		}
		e.publishLocked()
		e.mu.Unlock()
		slog.ErrorContext(ctx, "Failed to delete block", "id", id, "err", err)
		return fmt.Errorf("delete block: %w", err)
	}
	return nil
}

// MoveBlock relocates a block and its subtree. The move is local; the new
// layout is persisted by the next autosave.
func (e *Editor) MoveBlock(id, newParentID string, index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEditorClosed
	}
	if _, err := e.forest.Move(id, newParentID, index); err != nil {
		return blockError(err, id)
	}
	e.publishLocked()
	e.scheduleLocked()
	return nil
}

// SetBlockContent changes the text of a block locally, as typing does, and
// schedules an autosave.
func (e *Editor) SetBlockContent(id, content string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEditorClosed
	}
	err := e.forest.Update(id, func(b *model.Block) {
		b.Content = content
		b.UpdatedAt = ident.Now()
	})
	if err != nil {
		return blockError(err, id)
	}
	e.publishLocked()
	e.scheduleLocked()
	return nil
}

// SetBlocks replaces the whole content locally and schedules an autosave.
func (e *Editor) SetBlocks(blocks []*model.Block) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEditorClosed
	}
	e.forest = blocktree.FromNested(e.pageID, blocks)
	e.publishLocked()
	e.scheduleLocked()
	return nil
}

// DuplicateBlock copies a block, without its children, right after it among
// its siblings.
func (e *Editor) DuplicateBlock(ctx context.Context, id string) (*model.Block, error) {
	e.mu.Lock()
	if err := e.lookupLocked(id); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	src, _ := e.forest.Get(id)
	parentID, index, _ := e.forest.Position(id)
	tmp := ident.NewTempID()
	b := model.NewBlock(tmp, e.pageID, parentID, src.Type, src.Content, ident.Now())
	b.Properties = model.CloneProperties(src.Properties)
	b.CreatedBy = e.s.userID
	index, _ = e.forest.Insert(b, parentID, index+1)
	e.pending[tmp] = struct{}{}
	e.publishLocked()
	e.mu.Unlock()

	srv, err := e.s.gw.CreateBlock(ctx, e.pageID, b.Type, b.Content, parentID, index)
	if err == nil && b.Properties != nil {
		if err = e.s.gw.UpdateBlock(ctx, srv.ID, &model.BlockUpdate{Properties: b.Properties}); err != nil {
			if derr := e.s.gw.DeleteBlock(context.WithoutCancel(ctx), srv.ID); derr != nil {
				slog.WarnContext(ctx, "Failed to delete partially created block", "id", srv.ID, "err", derr)
			}
		} else {
			srv.Properties = model.CloneProperties(b.Properties)
		}
	}
	if err != nil {
		e.discard(tmp)
		slog.ErrorContext(ctx, "Failed to duplicate block", "id", id, "err", err)
		return nil, fmt.Errorf("duplicate block: %w", err)
	}
	return e.confirm(tmp, srv), nil
}

// SavePageContent replaces the content with blocks and saves it right away.
// A nil blocks saves the current content.
func (e *Editor) SavePageContent(ctx context.Context, blocks []*model.Block) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEditorClosed
	}
	if blocks != nil {
		e.forest = blocktree.FromNested(e.pageID, blocks)
		e.publishLocked()
	}
	flat := e.forest.Flatten()
	e.mu.Unlock()
	if err := e.s.saver.Save(ctx, e.pageID, flat); err != nil {
		slog.ErrorContext(ctx, "Failed to save page content", "page", e.pageID, "err", err)
		return err
	}
	return nil
}

// Close flushes unsaved content and releases the page.
func (e *Editor) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()
	e.s.mu.Lock()
	if e.s.editors[e.pageID] == e {
		delete(e.s.editors, e.pageID)
	}
	e.s.mu.Unlock()
	return e.s.saver.FlushPage(ctx, e.pageID)
}

// detach closes the editor of a deleted page without saving.
func (e *Editor) detach() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
}

func (e *Editor) check() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEditorClosed
	}
	return nil
}

// lookupLocked checks that id is a confirmed block.
func (e *Editor) lookupLocked(id string) error {
	if e.closed {
		return ErrEditorClosed
	}
	if !e.forest.Has(id) {
		return fmt.Errorf("%w: %s", ErrBlockNotFound, id)
	}
	if _, ok := e.pending[id]; ok {
		return fmt.Errorf("%w: %s", ErrPending, id)
	}
	return nil
}

func (e *Editor) checkParentLocked(parentID string) error {
	if e.closed {
		return ErrEditorClosed
	}
	if parentID == "" {
		return nil
	}
	return e.lookupLocked(parentID)
}

// discard drops a block whose creation failed.
func (e *Editor) discard(tmp string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pending, tmp)
	if _, _, _, err := e.forest.Remove(tmp); err == nil {
		e.publishLocked()
	}
}

// confirm replaces the temporary ID of a created block with the remote one
// and returns a copy of the block.
func (e *Editor) confirm(tmp string, srv *model.Block) *model.Block {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pending, tmp)
	if !e.forest.Has(tmp) {
		return srv
	}
	if err := e.forest.Rename(tmp, srv.ID); err != nil {
		slog.Warn("Failed to reconcile block", "id", srv.ID, "err", err)
		return srv
	}
	_ = e.forest.Update(srv.ID, func(b *model.Block) {
		b.CreatedAt = srv.CreatedAt
		b.UpdatedAt = srv.UpdatedAt
		if srv.CreatedBy != "" {
			b.CreatedBy = srv.CreatedBy
		}
	})
	e.publishLocked()
	if e.s.saver.Status(e.pageID) != SaveStatusSaved {
		e.scheduleLocked()
	}
	b, _ := e.forest.Get(srv.ID)
	return b
}

func (e *Editor) publishLocked() {
	blocks := e.forest.Blocks()
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if p, ok := e.s.pages[e.pageID]; ok {
		p.Blocks = blocks
	}
}

func (e *Editor) scheduleLocked() {
	e.s.saver.Schedule(e.pageID, e.forest.Flatten())
}

func blockError(err error, id string) error {
	switch {
	case errors.Is(err, blocktree.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrBlockNotFound, id)
	case errors.Is(err, blocktree.ErrCycle):
		return fmt.Errorf("%w: %w", ErrCycle, err)
	default:
		return err
	}
}
