package workspace

import (
	"errors"
	"slices"
	"testing"

	"github.com/maruel/pagetree/internal/gateway/memgw"
	"github.com/maruel/pagetree/internal/ident"
	"github.com/maruel/pagetree/internal/model"
)

func openTestPage(t *testing.T) (*Store, *memgw.Gateway, *Editor) {
	t.Helper()
	s, g := newTestStore(t)
	p := mustCreate(t, s, "", "Doc")
	e, err := s.OpenPage(t.Context(), p.ID)
	if err != nil {
		t.Fatal(err)
	}
	return s, g, e
}

func mustBlock(t *testing.T, e *Editor, content, parentID string) *model.Block {
	t.Helper()
	b, err := e.CreateBlock(t.Context(), model.BlockTypeText, content, parentID, -1)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func blockIDs(blocks []*model.Block) []string {
	var out []string
	for _, b := range blocks {
		out = append(out, b.ID)
	}
	return out
}

// remoteLayout returns "parent/id" for each persisted block, in order.
func remoteLayout(t *testing.T, g *memgw.Gateway, pageID string) []string {
	t.Helper()
	flat, err := g.GetBlocks(t.Context(), pageID)
	if err != nil {
		t.Fatal(err)
	}
	var out []string
	for _, b := range flat {
		out = append(out, b.ParentID+"/"+b.ID)
	}
	return out
}

func localLayout(e *Editor) []string {
	var out []string
	var visit func(blocks []*model.Block)
	visit = func(blocks []*model.Block) {
		for _, b := range blocks {
			out = append(out, b.ParentID+"/"+b.ID)
			visit(b.Children)
		}
	}
	visit(e.Blocks())
	return out
}

func TestOpenPage(t *testing.T) {
	ctx := t.Context()
	s, _, e := openTestPage(t)
	again, err := s.OpenPage(ctx, e.PageID())
	if err != nil {
		t.Fatal(err)
	}
	if again != e {
		t.Error("OpenPage() returned a second editor")
	}
	if len(e.Blocks()) != 0 {
		t.Errorf("Blocks() = %v", blockIDs(e.Blocks()))
	}
	db := mustDatabase(t, s, "", "D")
	if _, err := s.OpenPage(ctx, db.ID); !errors.Is(err, ErrIsDatabase) {
		t.Errorf("OpenPage(database) = %v, want ErrIsDatabase", err)
	}
	if _, err := s.OpenPage(ctx, "missing"); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("OpenPage(missing) = %v, want ErrPageNotFound", err)
	}
}

func TestCreateBlock(t *testing.T) {
	s, g, e := openTestPage(t)
	b1 := mustBlock(t, e, "one", "")
	b2 := mustBlock(t, e, "two", "")
	child := mustBlock(t, e, "child", b1.ID)
	for _, b := range []*model.Block{b1, b2, child} {
		if ident.IsTemp(b.ID) {
			t.Errorf("ID %q is still temporary", b.ID)
		}
	}
	want := []string{"/" + b1.ID, b1.ID + "/" + child.ID, "/" + b2.ID}
	if got := localLayout(e); !slices.Equal(got, want) {
		t.Errorf("local = %v, want %v", got, want)
	}
	if got := remoteLayout(t, g, e.PageID()); !slices.Equal(got, want) {
		t.Errorf("remote = %v, want %v", got, want)
	}
	p, _ := s.Page(e.PageID())
	if len(p.Blocks) != 2 || len(p.Blocks[0].Children) != 1 || p.Blocks[0].Children[0].Content != "child" {
		t.Errorf("page blocks not published: %+v", p.Blocks)
	}
	if _, err := e.CreateBlock(t.Context(), "bogus", "", "", -1); !errors.Is(err, ErrInvalidUpdate) {
		t.Errorf("CreateBlock(bogus) = %v, want ErrInvalidUpdate", err)
	}
	if _, err := e.CreateBlock(t.Context(), model.BlockTypeText, "", "missing", -1); !errors.Is(err, ErrBlockNotFound) {
		t.Errorf("CreateBlock(missing parent) = %v, want ErrBlockNotFound", err)
	}
}

func TestCreateBlockPending(t *testing.T) {
	_, g, e := openTestPage(t)
	called := false
	g.BeforeCall = func(op string) {
		if op != "CreateBlock" || called {
			return
		}
		called = true
		blocks := e.Blocks()
		if len(blocks) != 1 || !ident.IsTemp(blocks[0].ID) {
			t.Errorf("optimistic block not visible: %v", blockIDs(blocks))
			return
		}
		if err := e.UpdateBlock(t.Context(), blocks[0].ID, &model.BlockUpdate{Content: model.Ptr("x")}); !errors.Is(err, ErrPending) {
			t.Errorf("UpdateBlock(pending) = %v, want ErrPending", err)
		}
	}
	b := mustBlock(t, e, "hi", "")
	if got := blockIDs(e.Blocks()); !slices.Equal(got, []string{b.ID}) {
		t.Errorf("Blocks() = %v", got)
	}
}

func TestCreateBlockRollback(t *testing.T) {
	_, g, e := openTestPage(t)
	b1 := mustBlock(t, e, "one", "")
	before := localLayout(e)
	g.FailNext("CreateBlock", errBoom)
	if _, err := e.CreateBlock(t.Context(), model.BlockTypeTodo, "two", "", 0); !errors.Is(err, errBoom) {
		t.Fatalf("CreateBlock() = %v, want boom", err)
	}
	if got := localLayout(e); !slices.Equal(got, before) {
		t.Errorf("local = %v, want %v", got, before)
	}
	if got, _ := e.Block(b1.ID); got.Content != "one" {
		t.Errorf("Block() = %+v", got)
	}
}

func TestUpdateBlock(t *testing.T) {
	ctx := t.Context()
	_, g, e := openTestPage(t)
	b := mustBlock(t, e, "draft", "")
	u := &model.BlockUpdate{Type: model.Ptr(model.BlockTypeTodo), Properties: map[string]any{"checked": true}}
	if err := e.UpdateBlock(ctx, b.ID, u); err != nil {
		t.Fatal(err)
	}
	got, _ := e.Block(b.ID)
	if got.Type != model.BlockTypeTodo || got.Properties["checked"] != true || got.Content != "draft" {
		t.Errorf("Block() = %+v", got)
	}
	flat, _ := g.GetBlocks(ctx, e.PageID())
	if flat[0].Type != model.BlockTypeTodo {
		t.Errorf("remote type = %q", flat[0].Type)
	}

	g.FailNext("UpdateBlock", errBoom)
	if err := e.UpdateBlock(ctx, b.ID, &model.BlockUpdate{Content: model.Ptr("lost"), Properties: map[string]any{}}); !errors.Is(err, errBoom) {
		t.Fatalf("UpdateBlock() = %v, want boom", err)
	}
	after, _ := e.Block(b.ID)
	if after.Content != "draft" || after.Properties["checked"] != true || !after.UpdatedAt.Equal(got.UpdatedAt) {
		t.Errorf("Block() after rollback = %+v, want %+v", after, got)
	}
	if err := e.UpdateBlock(ctx, "missing", &model.BlockUpdate{Content: model.Ptr("x")}); !errors.Is(err, ErrBlockNotFound) {
		t.Errorf("UpdateBlock(missing) = %v, want ErrBlockNotFound", err)
	}
}

func TestDeleteBlock(t *testing.T) {
	ctx := t.Context()
	_, g, e := openTestPage(t)
	b1 := mustBlock(t, e, "one", "")
	mustBlock(t, e, "nested", b1.ID)
	b2 := mustBlock(t, e, "two", "")
	before := localLayout(e)

	g.FailNext("DeleteBlock", errBoom)
	if err := e.DeleteBlock(ctx, b1.ID); !errors.Is(err, errBoom) {
		t.Fatalf("DeleteBlock() = %v, want boom", err)
	}
	if got := localLayout(e); !slices.Equal(got, before) {
		t.Errorf("local after rollback = %v, want %v", got, before)
	}

	if err := e.DeleteBlock(ctx, b1.ID); err != nil {
		t.Fatal(err)
	}
	want := []string{"/" + b2.ID}
	if got := localLayout(e); !slices.Equal(got, want) {
		t.Errorf("local = %v, want %v", got, want)
	}
	if got := remoteLayout(t, g, e.PageID()); !slices.Equal(got, want) {
		t.Errorf("remote = %v, want %v", got, want)
	}
}

func TestMoveBlockAutosave(t *testing.T) {
	_, g, e := openTestPage(t)
	b1 := mustBlock(t, e, "one", "")
	b2 := mustBlock(t, e, "two", "")
	child := mustBlock(t, e, "child", b1.ID)

	if err := e.MoveBlock(b1.ID, child.ID, 0); !errors.Is(err, ErrCycle) {
		t.Errorf("MoveBlock(under descendant) = %v, want ErrCycle", err)
	}
	if err := e.MoveBlock("missing", "", 0); !errors.Is(err, ErrBlockNotFound) {
		t.Errorf("MoveBlock(missing) = %v, want ErrBlockNotFound", err)
	}
	if err := e.MoveBlock(child.ID, b2.ID, 0); err != nil {
		t.Fatal(err)
	}
	want := []string{"/" + b1.ID, "/" + b2.ID, b2.ID + "/" + child.ID}
	if got := localLayout(e); !slices.Equal(got, want) {
		t.Errorf("local = %v, want %v", got, want)
	}
	waitFor(t, "autosave", func() bool { return e.Status() == SaveStatusSaved })
	if got := remoteLayout(t, g, e.PageID()); !slices.Equal(got, want) {
		t.Errorf("remote = %v, want %v", got, want)
	}
}

func TestSetBlockContent(t *testing.T) {
	_, g, e := openTestPage(t)
	b := mustBlock(t, e, "", "")
	for _, s := range []string{"h", "he", "hel", "hello"} {
		if err := e.SetBlockContent(b.ID, s); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, "autosave", func() bool { return e.Status() == SaveStatusSaved })
	flat, _ := g.GetBlocks(t.Context(), e.PageID())
	if len(flat) != 1 || flat[0].Content != "hello" {
		t.Errorf("remote = %+v", flat)
	}
	if err := e.SetBlockContent("missing", "x"); !errors.Is(err, ErrBlockNotFound) {
		t.Errorf("SetBlockContent(missing) = %v, want ErrBlockNotFound", err)
	}
}

func TestDuplicateBlock(t *testing.T) {
	ctx := t.Context()
	_, g, e := openTestPage(t)
	b1 := mustBlock(t, e, "one", "")
	mustBlock(t, e, "nested", b1.ID)
	b2 := mustBlock(t, e, "two", "")
	if err := e.UpdateBlock(ctx, b1.ID, &model.BlockUpdate{Properties: map[string]any{"color": "red"}}); err != nil {
		t.Fatal(err)
	}
	dup, err := e.DuplicateBlock(ctx, b1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if dup.ID == b1.ID || dup.Content != "one" || dup.Properties["color"] != "red" || len(dup.Children) != 0 {
		t.Errorf("DuplicateBlock() = %+v", dup)
	}
	if got := blockIDs(e.Blocks()); !slices.Equal(got, []string{b1.ID, dup.ID, b2.ID}) {
		t.Errorf("Blocks() = %v", got)
	}
	flat, _ := g.GetBlocks(ctx, e.PageID())
	found := false
	for _, f := range flat {
		if f.ID == dup.ID {
			found = true
			if f.Properties["color"] != "red" || f.ParentID != "" || f.Index != 1 {
				t.Errorf("remote duplicate = %+v", f)
			}
		}
	}
	if !found {
		t.Error("duplicate not persisted")
	}

	before := localLayout(e)
	g.FailNext("UpdateBlock", errBoom)
	if _, err := e.DuplicateBlock(ctx, b1.ID); !errors.Is(err, errBoom) {
		t.Fatalf("DuplicateBlock() = %v, want boom", err)
	}
	if got := localLayout(e); !slices.Equal(got, before) {
		t.Errorf("local = %v, want %v", got, before)
	}
	if got := remoteLayout(t, g, e.PageID()); !slices.Equal(got, before) {
		t.Errorf("remote = %v, want %v", got, before)
	}
}

func TestSavePageContent(t *testing.T) {
	ctx := t.Context()
	_, g, e := openTestPage(t)
	blocks := []*model.Block{
		{ID: "a", Type: model.BlockTypeHeading1, Content: "Title", Children: []*model.Block{
			{ID: "b", Type: model.BlockTypeText, Content: "body"},
		}},
		{ID: "c", Type: model.BlockTypeDivider},
	}
	g.FailNext("SyncBlocks", errBoom)
	if err := e.SavePageContent(ctx, blocks); !errors.Is(err, errBoom) {
		t.Fatalf("SavePageContent() = %v, want boom", err)
	}
	if got := e.Status(); got != SaveStatusUnsaved {
		t.Errorf("Status() = %q, want %q", got, SaveStatusUnsaved)
	}
	want := []string{"/a", "a/b", "/c"}
	if got := localLayout(e); !slices.Equal(got, want) {
		t.Errorf("local = %v, want %v", got, want)
	}
	if err := e.SavePageContent(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if got := e.Status(); got != SaveStatusSaved {
		t.Errorf("Status() = %q, want %q", got, SaveStatusSaved)
	}
	if got := remoteLayout(t, g, e.PageID()); !slices.Equal(got, want) {
		t.Errorf("remote = %v, want %v", got, want)
	}

	e2, err := e.s.OpenPage(ctx, e.PageID())
	if err != nil {
		t.Fatal(err)
	}
	if err := e2.FetchBlocks(ctx); err != nil {
		t.Fatal(err)
	}
	if got := localLayout(e2); !slices.Equal(got, want) {
		t.Errorf("fetched = %v, want %v", got, want)
	}
}

func TestCloseFlushes(t *testing.T) {
	ctx := t.Context()
	s, g, e := openTestPage(t)
	b := mustBlock(t, e, "", "")
	if err := e.SetBlockContent(b.ID, "typed"); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(ctx); err != nil {
		t.Fatal(err)
	}
	flat, _ := g.GetBlocks(ctx, e.PageID())
	if len(flat) != 1 || flat[0].Content != "typed" {
		t.Errorf("remote = %+v", flat)
	}
	if err := e.SetBlockContent(b.ID, "late"); !errors.Is(err, ErrEditorClosed) {
		t.Errorf("SetBlockContent(closed) = %v, want ErrEditorClosed", err)
	}
	e2, err := s.OpenPage(ctx, e.PageID())
	if err != nil {
		t.Fatal(err)
	}
	if e2 == e {
		t.Error("OpenPage() returned the closed editor")
	}
}

func TestDeletePageClosesEditor(t *testing.T) {
	ctx := t.Context()
	s, g, e := openTestPage(t)
	b := mustBlock(t, e, "", "")
	if err := e.SetBlockContent(b.ID, "unsaved"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeletePage(ctx, e.PageID()); err != nil {
		t.Fatal(err)
	}
	if _, err := e.CreateBlock(ctx, model.BlockTypeText, "", "", -1); !errors.Is(err, ErrEditorClosed) {
		t.Errorf("CreateBlock(deleted page) = %v, want ErrEditorClosed", err)
	}
	if got := s.Autosaver().Status(e.PageID()); got != SaveStatusSaved {
		t.Errorf("Status() = %q, want %q", got, SaveStatusSaved)
	}
	if err := s.Autosaver().Flush(ctx); err != nil {
		t.Errorf("Flush() = %v", err)
	}
	if _, err := g.GetBlocks(ctx, e.PageID()); err == nil {
		t.Error("blocks of a deleted page still stored")
	}
}
