package filegw

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/maruel/pagetree/internal/gateway"
	"github.com/maruel/pagetree/internal/gateway/gatewaytest"
	"github.com/maruel/pagetree/internal/model"
	"github.com/maruel/pagetree/internal/workspace"
)

func openTest(t *testing.T, dir string) *Gateway {
	t.Helper()
	g, err := Open(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestConformance(t *testing.T) {
	gatewaytest.Run(t, func(t *testing.T) gateway.Gateway { return openTest(t, t.TempDir()) })
}

func TestPersistence(t *testing.T) {
	ctx := t.Context()
	dir := t.TempDir()
	g := openTest(t, dir)
	w, err := g.CreateWorkspace(ctx, "Notes", "u1")
	if err != nil {
		t.Fatal(err)
	}
	root, err := g.CreatePage(ctx, w.ID, "", "Root", "")
	if err != nil {
		t.Fatal(err)
	}
	child, err := g.CreatePage(ctx, w.ID, root.ID, "Child", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := g.UpdatePage(ctx, child.ID, &model.PageUpdate{Icon: model.Ptr("x")}); err != nil {
		t.Fatal(err)
	}
	blocks := []*model.FlatBlock{
		{ID: "h", Type: model.BlockTypeHeading1, Content: "Hello", PageID: root.ID},
		{ID: "p", Type: model.BlockTypeText, Content: "<b>bold</b> text", PageID: root.ID, Index: 1},
	}
	if err := g.SyncBlocks(ctx, root.ID, blocks); err != nil {
		t.Fatal(err)
	}

	g2 := openTest(t, dir)
	pages, err := g2.GetPages(ctx, w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 || pages[1].ID != child.ID || pages[1].ParentID != root.ID || pages[1].Icon != "x" {
		t.Fatalf("reloaded pages = %+v", pages)
	}
	got, err := g2.GetBlocks(ctx, root.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].Content != "<b>bold</b> text" {
		t.Errorf("reloaded blocks = %+v", got)
	}

	data, err := os.ReadFile(filepath.Join(dir, w.ID, "pages", root.ID+".md"))
	if err != nil {
		t.Fatal(err)
	}
	fm, body, err := ParseFrontMatter(data)
	if err != nil {
		t.Fatal(err)
	}
	if fm.ID != root.ID || fm.Title != "Root" || fm.Created == "" {
		t.Errorf("front matter = %+v", fm)
	}
	if !strings.Contains(body, "# Hello") || !strings.Contains(body, "**bold** text") {
		t.Errorf("body = %q", body)
	}

	h, err := g.History(root.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(h) != 2 {
		t.Errorf("History() = %d commits, want 2", len(h))
	}

	if err := g.DeletePage(ctx, root.ID); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{root.ID, child.ID} {
		if _, err := os.Stat(filepath.Join(dir, w.ID, "pages", id+".md")); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s.md not removed: %v", id, err)
		}
	}
	if err := g.DeleteWorkspace(ctx, w.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, w.ID)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("workspace directory not removed: %v", err)
	}
	if ws, _ := openTest(t, dir).GetWorkspaces(ctx); len(ws) != 0 {
		t.Errorf("GetWorkspaces() = %+v", ws)
	}
}

func TestCheckID(t *testing.T) {
	ctx := t.Context()
	g := openTest(t, t.TempDir())
	w, err := g.CreateWorkspace(ctx, "W", "")
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"../escape", "a/b", ".."} {
		if _, err := g.CreatePage(ctx, w.ID, "", "x", id); !errors.Is(err, gateway.ErrInvalid) {
			t.Errorf("CreatePage(%q) = %v, want ErrInvalid", id, err)
		}
	}
}

func TestStoreOnFiles(t *testing.T) {
	ctx := t.Context()
	dir := t.TempDir()
	g := openTest(t, dir)
	s := workspace.New(g, &workspace.Options{AutosaveDelay: time.Millisecond})
	w, err := s.CreateWorkspace(ctx, "W", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SelectWorkspace(ctx, w.ID); err != nil {
		t.Fatal(err)
	}
	db, err := s.CreateDatabase(ctx, "", "Tasks")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateDatabaseRow(ctx, db.ID, map[string]any{"title": "Write tests", "done": true}); err != nil {
		t.Fatal(err)
	}

	s2 := workspace.New(openTest(t, dir), nil)
	if err := s2.SelectWorkspace(ctx, w.ID); err != nil {
		t.Fatal(err)
	}
	rows, err := s2.Rows(db.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Properties["title"] != "Write tests" || rows[0].Properties["done"] != true {
		t.Errorf("rows = %+v", rows)
	}
	if err := s2.Verify(); err != nil {
		t.Error(err)
	}
}

func TestWatch(t *testing.T) {
	ctx := t.Context()
	dir := t.TempDir()
	writer := openTest(t, dir)
	w, err := writer.CreateWorkspace(ctx, "W", "")
	if err != nil {
		t.Fatal(err)
	}
	reader := openTest(t, dir)
	changed := make(chan struct{}, 10)
	if err := reader.Watch(ctx, func() { changed <- struct{}{} }); err != nil {
		t.Fatal(err)
	}
	p, err := writer.CreatePage(ctx, w.ID, "", "From elsewhere", "")
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
	pages, err := reader.GetPages(ctx, w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 1 || pages[0].ID != p.ID {
		t.Errorf("GetPages() = %+v", pages)
	}
}

func TestRenderPage(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	p := model.NewPage("p1", "w1", "", "Doc", now)
	blocks := []*model.FlatBlock{
		{ID: "1", Type: model.BlockTypeHeading2, Content: "Intro", PageID: "p1"},
		{ID: "2", Type: model.BlockTypeBulletedList, Content: "one", PageID: "p1", Index: 1},
		{ID: "3", Type: model.BlockTypeBulletedList, Content: "two", PageID: "p1", Index: 2},
		{ID: "4", Type: model.BlockTypeTodo, Content: "done", Properties: map[string]any{"checked": true}, PageID: "p1", Index: 3},
		{ID: "5", Type: model.BlockTypeCode, Content: "a < b", Properties: map[string]any{"language": "go"}, PageID: "p1", Index: 4},
		{ID: "6", Type: model.BlockTypeDivider, PageID: "p1", Index: 5},
	}
	data, err := RenderPage(p, blocks)
	if err != nil {
		t.Fatal(err)
	}
	fm, body, err := ParseFrontMatter(data)
	if err != nil {
		t.Fatal(err)
	}
	if fm.Created != "2024-01-02T03:04:05Z" || fm.Title != "Doc" {
		t.Errorf("front matter = %+v", fm)
	}
	for _, want := range []string{"## Intro", "- one\n- two", "[x] done", "a < b"} {
		if !strings.Contains(body, want) {
			t.Errorf("body lacks %q:\n%s", want, body)
		}
	}
	if _, _, err := ParseFrontMatter([]byte("no header")); err == nil {
		t.Error("ParseFrontMatter() accepted a file without header")
	}
}
