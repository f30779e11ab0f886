// Package gatewaytest checks that a gateway.Gateway implementation behaves
// like the reference in-memory store.
package gatewaytest

import (
	"errors"
	"slices"
	"testing"

	"github.com/maruel/pagetree/internal/gateway"
	"github.com/maruel/pagetree/internal/model"
)

// Run runs the conformance tests. open must return an empty store.
func Run(t *testing.T, open func(t *testing.T) gateway.Gateway) {
	t.Run("Workspaces", func(t *testing.T) { testWorkspaces(t, open(t)) })
	t.Run("Pages", func(t *testing.T) { testPages(t, open(t)) })
	t.Run("UpdatePage", func(t *testing.T) { testUpdatePage(t, open(t)) })
	t.Run("Bulk", func(t *testing.T) { testBulk(t, open(t)) })
	t.Run("Blocks", func(t *testing.T) { testBlocks(t, open(t)) })
	t.Run("SyncBlocks", func(t *testing.T) { testSyncBlocks(t, open(t)) })
}

// Titles returns the titles of pages, in order.
func Titles(pages []*model.Page) []string {
	var out []string
	for _, p := range pages {
		out = append(out, p.Title)
	}
	return out
}

func testWorkspaces(t *testing.T, g gateway.Gateway) {
	ctx := t.Context()
	if ws, err := g.GetWorkspaces(ctx); err != nil || len(ws) != 0 {
		t.Fatalf("GetWorkspaces() = %v, %v", ws, err)
	}
	w1, err := g.CreateWorkspace(ctx, "One", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if w1.ID == "" || w1.OwnerID != "u1" || w1.CreatedAt.IsZero() {
		t.Errorf("CreateWorkspace() = %+v", w1)
	}
	w2, err := g.CreateWorkspace(ctx, "Two", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.CreateWorkspace(ctx, "", ""); !errors.Is(err, gateway.ErrInvalid) {
		t.Errorf("CreateWorkspace(no name) = %v, want ErrInvalid", err)
	}
	if err := g.UpdateWorkspace(ctx, w1.ID, "Uno"); err != nil {
		t.Fatal(err)
	}
	if err := g.UpdateWorkspace(ctx, w1.ID, ""); !errors.Is(err, gateway.ErrInvalid) {
		t.Errorf("UpdateWorkspace(no name) = %v, want ErrInvalid", err)
	}
	if err := g.UpdateWorkspace(ctx, "missing", "x"); !errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("UpdateWorkspace(missing) = %v, want ErrNotFound", err)
	}
	ws, err := g.GetWorkspaces(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ws) != 2 || ws[0].Name != "Uno" || ws[1].ID != w2.ID {
		t.Errorf("GetWorkspaces() = %+v", ws)
	}

	p, err := g.CreatePage(ctx, w1.ID, "", "P", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.CreatePage(ctx, w2.ID, p.ID, "cross", ""); !errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("CreatePage(parent in other workspace) = %v, want ErrNotFound", err)
	}
	if err := g.DeleteWorkspace(ctx, w1.ID); err != nil {
		t.Fatal(err)
	}
	if err := g.DeleteWorkspace(ctx, w1.ID); !errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("DeleteWorkspace(twice) = %v, want ErrNotFound", err)
	}
	if _, err := g.GetPages(ctx, w1.ID); !errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("GetPages(deleted) = %v, want ErrNotFound", err)
	}
	if _, err := g.GetBlocks(ctx, p.ID); !errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("GetBlocks(page of deleted workspace) = %v, want ErrNotFound", err)
	}
}

func testPages(t *testing.T, g gateway.Gateway) {
	ctx := t.Context()
	w, err := g.CreateWorkspace(ctx, "W", "u1")
	if err != nil {
		t.Fatal(err)
	}
	a, err := g.CreatePage(ctx, w.ID, "", "A", "")
	if err != nil {
		t.Fatal(err)
	}
	b, err := g.CreatePage(ctx, w.ID, "", "B", "")
	if err != nil {
		t.Fatal(err)
	}
	a1, err := g.CreatePage(ctx, w.ID, a.ID, "A1", "given")
	if err != nil {
		t.Fatal(err)
	}
	if a1.ID != "given" || a1.ParentID != a.ID || a1.WorkspaceID != w.ID {
		t.Errorf("CreatePage(pre-assigned) = %+v", a1)
	}
	if untitled, err := g.CreatePage(ctx, w.ID, "", "", ""); err != nil || untitled.Title != model.DefaultTitle {
		t.Errorf("CreatePage(no title) = %+v, %v", untitled, err)
	} else if err := g.DeletePage(ctx, untitled.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := g.CreatePage(ctx, w.ID, a.ID, "dup", a1.ID); !errors.Is(err, gateway.ErrConflict) {
		t.Errorf("CreatePage(dup id) = %v, want ErrConflict", err)
	}
	if _, err := g.CreatePage(ctx, w.ID, "missing", "x", ""); !errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("CreatePage(missing parent) = %v, want ErrNotFound", err)
	}
	if _, err := g.CreatePage(ctx, "missing", "", "x", ""); !errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("CreatePage(missing workspace) = %v, want ErrNotFound", err)
	}

	pages, err := g.GetPages(ctx, w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := Titles(pages), []string{"A", "A1", "B"}; !slices.Equal(got, want) {
		t.Errorf("GetPages() = %v, want %v", got, want)
	}
	if !slices.Equal(pages[0].Children, []string{a1.ID}) {
		t.Errorf("Children = %v", pages[0].Children)
	}

	if err := g.UpdatePage(ctx, b.ID, &model.PageUpdate{ParentID: model.Ptr(a.ID), Position: model.Ptr(0)}); err != nil {
		t.Fatal(err)
	}
	pages, _ = g.GetPages(ctx, w.ID)
	if got, want := Titles(pages), []string{"A", "B", "A1"}; !slices.Equal(got, want) {
		t.Errorf("GetPages() after move = %v, want %v", got, want)
	}
	if err := g.UpdatePage(ctx, a.ID, &model.PageUpdate{ParentID: model.Ptr(b.ID)}); !errors.Is(err, gateway.ErrInvalid) {
		t.Errorf("UpdatePage(cycle) = %v, want ErrInvalid", err)
	}
	if err := g.UpdatePage(ctx, a.ID, &model.PageUpdate{ParentID: model.Ptr("missing")}); !errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("UpdatePage(missing parent) = %v, want ErrNotFound", err)
	}

	if err := g.DeletePage(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := g.DeletePage(ctx, a.ID); !errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("DeletePage(twice) = %v, want ErrNotFound", err)
	}
	pages, _ = g.GetPages(ctx, w.ID)
	if len(pages) != 0 {
		t.Errorf("GetPages() after delete = %v, want none", Titles(pages))
	}
	if err := g.UpdatePage(ctx, a1.ID, &model.PageUpdate{Title: model.Ptr("x")}); !errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("UpdatePage(deleted descendant) = %v, want ErrNotFound", err)
	}
}

func testUpdatePage(t *testing.T, g gateway.Gateway) {
	ctx := t.Context()
	w, _ := g.CreateWorkspace(ctx, "W", "")
	var ids []string
	for _, title := range []string{"A", "B", "C", "D"} {
		p, err := g.CreatePage(ctx, w.ID, "", title, "")
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, p.ID)
	}
	// Reorder among the same siblings.
	if err := g.UpdatePage(ctx, ids[3], &model.PageUpdate{Position: model.Ptr(1)}); err != nil {
		t.Fatal(err)
	}
	pages, _ := g.GetPages(ctx, w.ID)
	if got, want := Titles(pages), []string{"A", "D", "B", "C"}; !slices.Equal(got, want) {
		t.Errorf("GetPages() after reorder = %v, want %v", got, want)
	}
	// Out of range appends.
	if err := g.UpdatePage(ctx, ids[0], &model.PageUpdate{Position: model.Ptr(99)}); err != nil {
		t.Fatal(err)
	}
	pages, _ = g.GetPages(ctx, w.ID)
	if got, want := Titles(pages), []string{"D", "B", "C", "A"}; !slices.Equal(got, want) {
		t.Errorf("GetPages() after append = %v, want %v", got, want)
	}
	if err := g.UpdatePage(ctx, ids[1], &model.PageUpdate{Position: model.Ptr(-1)}); !errors.Is(err, gateway.ErrInvalid) {
		t.Errorf("UpdatePage(negative position) = %v, want ErrInvalid", err)
	}

	u := &model.PageUpdate{
		Title:       model.Ptr("Renamed"),
		Icon:        model.Ptr("*"),
		IsFavourite: model.Ptr(true),
		IsDatabase:  model.Ptr(true),
		Properties:  map[string]any{"k": "v"},
	}
	if err := g.UpdatePage(ctx, ids[2], u); err != nil {
		t.Fatal(err)
	}
	pages, _ = g.GetPages(ctx, w.ID)
	i := slices.IndexFunc(pages, func(p *model.Page) bool { return p.ID == ids[2] })
	p := pages[i]
	if p.Title != "Renamed" || p.Icon != "*" || !p.IsFavourite || p.Properties["k"] != "v" {
		t.Errorf("updated page = %+v", p)
	}
	if !p.IsDatabase || p.DatabaseConfig == nil {
		t.Errorf("database without config: %+v", p)
	}
	if !p.UpdatedAt.After(p.CreatedAt) && !p.UpdatedAt.Equal(p.CreatedAt) {
		t.Errorf("UpdatedAt %v before CreatedAt %v", p.UpdatedAt, p.CreatedAt)
	}
	if err := g.UpdatePage(ctx, ids[2], &model.PageUpdate{CoverPosition: model.Ptr(101)}); !errors.Is(err, gateway.ErrInvalid) {
		t.Errorf("UpdatePage(cover position) = %v, want ErrInvalid", err)
	}
}

func testBulk(t *testing.T, g gateway.Gateway) {
	ctx := t.Context()
	w, _ := g.CreateWorkspace(ctx, "W", "")
	db, _ := g.CreatePage(ctx, w.ID, "", "DB", "")
	rows, err := g.BulkCreatePages(ctx, w.ID, db.ID, []model.PageInput{
		{Title: "r1"},
		{ID: "r2", Properties: map[string]any{"title": "r2", "n": 2.0}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1].ID != "r2" || rows[1].Title != "r2" || rows[1].Properties["n"] != 2.0 {
		t.Errorf("rows = %+v", rows)
	}
	if _, ok := rows[1].Properties["title"]; ok {
		t.Errorf("title kept in properties: %+v", rows[1].Properties)
	}
	if _, err := g.BulkCreatePages(ctx, w.ID, db.ID, []model.PageInput{{ID: "r3"}, {ID: "r2"}}); !errors.Is(err, gateway.ErrConflict) {
		t.Errorf("BulkCreatePages(existing id) = %v, want ErrConflict", err)
	}
	if _, err := g.BulkCreatePages(ctx, w.ID, db.ID, []model.PageInput{{ID: "r4"}, {ID: "r4"}}); !errors.Is(err, gateway.ErrConflict) {
		t.Errorf("BulkCreatePages(repeated id) = %v, want ErrConflict", err)
	}
	if err := g.BulkDeletePages(ctx, []string{rows[0].ID, "missing"}); !errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("BulkDeletePages(missing) = %v, want ErrNotFound", err)
	}
	pages, _ := g.GetPages(ctx, w.ID)
	if got, want := Titles(pages), []string{"DB", "r1", "r2"}; !slices.Equal(got, want) {
		t.Fatalf("failed bulk call changed state: %v", got)
	}
	if err := g.BulkDeletePages(ctx, []string{rows[0].ID, rows[1].ID}); err != nil {
		t.Fatal(err)
	}
	pages, _ = g.GetPages(ctx, w.ID)
	if got, want := Titles(pages), []string{"DB"}; !slices.Equal(got, want) {
		t.Errorf("GetPages() = %v, want %v", got, want)
	}
	if len(pages[0].Children) != 0 {
		t.Errorf("Children = %v, want none", pages[0].Children)
	}
	// A descendant listed after its ancestor is already gone.
	child, _ := g.CreatePage(ctx, w.ID, db.ID, "child", "")
	if err := g.BulkDeletePages(ctx, []string{db.ID, child.ID}); err != nil {
		t.Errorf("BulkDeletePages(ancestor first) = %v", err)
	}
}

func contents(flat []*model.FlatBlock) []string {
	var out []string
	for _, fb := range flat {
		out = append(out, fb.Content)
	}
	return out
}

func testBlocks(t *testing.T, g gateway.Gateway) {
	ctx := t.Context()
	w, _ := g.CreateWorkspace(ctx, "W", "")
	p, _ := g.CreatePage(ctx, w.ID, "", "P", "")
	if flat, err := g.GetBlocks(ctx, p.ID); err != nil || len(flat) != 0 {
		t.Fatalf("GetBlocks(empty) = %v, %v", flat, err)
	}
	a, err := g.CreateBlock(ctx, p.ID, model.BlockTypeText, "a", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if a.PageID != p.ID || a.Content != "a" || a.ID == "" {
		t.Errorf("CreateBlock() = %+v", a)
	}
	_, _ = g.CreateBlock(ctx, p.ID, model.BlockTypeText, "b", "", 0)
	c, _ := g.CreateBlock(ctx, p.ID, model.BlockTypeTodo, "c", a.ID, 0)
	d, _ := g.CreateBlock(ctx, p.ID, model.BlockTypeText, "d", "", 99)
	if _, err := g.CreateBlock(ctx, p.ID, model.BlockType("bogus"), "", "", 0); !errors.Is(err, gateway.ErrInvalid) {
		t.Errorf("CreateBlock(bad type) = %v, want ErrInvalid", err)
	}
	if _, err := g.CreateBlock(ctx, p.ID, model.BlockTypeText, "", "missing", 0); !errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("CreateBlock(missing parent) = %v, want ErrNotFound", err)
	}
	if _, err := g.CreateBlock(ctx, "missing", model.BlockTypeText, "", "", 0); !errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("CreateBlock(missing page) = %v, want ErrNotFound", err)
	}
	flat, _ := g.GetBlocks(ctx, p.ID)
	if got, want := contents(flat), []string{"b", "a", "c", "d"}; !slices.Equal(got, want) {
		t.Errorf("GetBlocks() = %v, want %v", got, want)
	}
	if flat[2].ParentID != a.ID || flat[3].Index != 2 {
		t.Errorf("GetBlocks() positions = %+v", flat)
	}
	if err := g.UpdateBlock(ctx, c.ID, &model.BlockUpdate{Content: model.Ptr("C"), Properties: map[string]any{"checked": true}}); err != nil {
		t.Fatal(err)
	}
	bad := model.BlockType("bogus")
	if err := g.UpdateBlock(ctx, c.ID, &model.BlockUpdate{Type: &bad}); !errors.Is(err, gateway.ErrInvalid) {
		t.Errorf("UpdateBlock(bad type) = %v, want ErrInvalid", err)
	}
	flat, _ = g.GetBlocks(ctx, p.ID)
	if flat[2].Content != "C" || flat[2].Properties["checked"] != true {
		t.Errorf("updated block = %+v", flat[2])
	}
	if err := g.DeleteBlock(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := g.UpdateBlock(ctx, c.ID, &model.BlockUpdate{}); !errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("UpdateBlock(deleted child) = %v, want ErrNotFound", err)
	}
	if err := g.DeleteBlock(ctx, a.ID); !errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("DeleteBlock(twice) = %v, want ErrNotFound", err)
	}
	flat, _ = g.GetBlocks(ctx, p.ID)
	if got, want := contents(flat), []string{"b", "d"}; !slices.Equal(got, want) {
		t.Errorf("GetBlocks() after delete = %v, want %v", got, want)
	}
	if flat[1].ID != d.ID || flat[1].Index != 1 {
		t.Errorf("sibling not shifted: %+v", flat[1])
	}

	if err := g.DeletePage(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if err := g.UpdateBlock(ctx, d.ID, &model.BlockUpdate{}); !errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("UpdateBlock(block of deleted page) = %v, want ErrNotFound", err)
	}
}

func testSyncBlocks(t *testing.T, g gateway.Gateway) {
	ctx := t.Context()
	w, _ := g.CreateWorkspace(ctx, "W", "")
	p, _ := g.CreatePage(ctx, w.ID, "", "P", "")
	q, _ := g.CreatePage(ctx, w.ID, "", "Q", "")
	old, _ := g.CreateBlock(ctx, p.ID, model.BlockTypeText, "old", "", 0)
	blocks := []*model.FlatBlock{
		{ID: "y", Type: model.BlockTypeText, Content: "y", ParentID: "x", Index: 0},
		{ID: "x", Type: model.BlockTypeToggle, Content: "x", Index: 0},
		{ID: "z", Type: model.BlockTypeText, Content: "z", Index: 1, Properties: map[string]any{"n": 1.0}},
	}
	if err := g.SyncBlocks(ctx, p.ID, blocks); err != nil {
		t.Fatal(err)
	}
	flat, _ := g.GetBlocks(ctx, p.ID)
	if got, want := contents(flat), []string{"x", "y", "z"}; !slices.Equal(got, want) {
		t.Errorf("GetBlocks() after sync = %v, want %v", got, want)
	}
	for _, fb := range flat {
		if fb.PageID != p.ID {
			t.Errorf("block %s PageID = %q", fb.ID, fb.PageID)
		}
	}
	if flat[2].Properties["n"] != 1.0 {
		t.Errorf("properties lost: %+v", flat[2])
	}
	if err := g.UpdateBlock(ctx, old.ID, &model.BlockUpdate{}); !errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("UpdateBlock(replaced) = %v, want ErrNotFound", err)
	}
	if err := g.SyncBlocks(ctx, q.ID, []*model.FlatBlock{{ID: "x", Type: model.BlockTypeText}}); !errors.Is(err, gateway.ErrConflict) {
		t.Errorf("SyncBlocks(block of another page) = %v, want ErrConflict", err)
	}
	if err := g.SyncBlocks(ctx, p.ID, []*model.FlatBlock{{ID: "", Type: model.BlockTypeText}}); !errors.Is(err, gateway.ErrInvalid) {
		t.Errorf("SyncBlocks(no id) = %v, want ErrInvalid", err)
	}
	if err := g.SyncBlocks(ctx, "missing", nil); !errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("SyncBlocks(missing page) = %v, want ErrNotFound", err)
	}
	if flat, _ := g.GetBlocks(ctx, p.ID); len(flat) != 3 {
		t.Errorf("failed sync changed blocks: %v", contents(flat))
	}
	if err := g.SyncBlocks(ctx, p.ID, nil); err != nil {
		t.Fatal(err)
	}
	if flat, _ := g.GetBlocks(ctx, p.ID); len(flat) != 0 {
		t.Errorf("GetBlocks() after clearing = %v", contents(flat))
	}
}
