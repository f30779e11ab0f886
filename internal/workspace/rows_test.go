package workspace

import (
	"errors"
	"slices"
	"testing"

	"github.com/maruel/pagetree/internal/model"
)

func mustDatabase(t *testing.T, s *Store, parentID, title string) *model.Page {
	t.Helper()
	db, err := s.CreateDatabase(t.Context(), parentID, title)
	if err != nil {
		t.Fatal(err)
	}
	return db
}

func mustRow(t *testing.T, s *Store, dbID string, props map[string]any) *model.DatabaseRow {
	t.Helper()
	r, err := s.CreateDatabaseRow(t.Context(), dbID, props)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func rowIDs(rows []*model.DatabaseRow) []string {
	var out []string
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func TestCreateDatabase(t *testing.T) {
	ctx := t.Context()
	s, g := newTestStore(t)
	db := mustDatabase(t, s, "", "Tasks")
	if !db.IsDatabase || db.DatabaseConfig == nil {
		t.Fatalf("CreateDatabase() = %+v", db)
	}
	if _, ok := db.DatabaseConfig.Property(model.TitlePropertyID); !ok {
		t.Error("schema lacks the title property")
	}
	pages, _ := g.GetPages(ctx, s.CurrentWorkspaceID())
	if len(pages) != 1 || !pages[0].IsDatabase || pages[0].DatabaseConfig == nil {
		t.Errorf("remote database = %+v", pages)
	}

	before := snapshot(t, s)
	g.FailNext("UpdatePage", errBoom)
	if _, err := s.CreateDatabase(ctx, "", "Lost"); !errors.Is(err, errBoom) {
		t.Fatalf("CreateDatabase() = %v, want boom", err)
	}
	if after := snapshot(t, s); after != before {
		t.Errorf("state after rollback:\n%s\nwant:\n%s", after, before)
	}
	if pages, _ := g.GetPages(ctx, s.CurrentWorkspaceID()); len(pages) != 1 {
		t.Errorf("remote kept the partial database: %d pages", len(pages))
	}
}

func TestDatabaseRows(t *testing.T) {
	s, g := newTestStore(t)
	db := mustDatabase(t, s, "", "D")
	r1 := mustRow(t, s, db.ID, nil)
	r2 := mustRow(t, s, db.ID, map[string]any{"title": "Second", "status": "Todo"})
	rows, err := s.Rows(db.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(Rows()) = %d, want 2", len(rows))
	}
	want := []string{r1.ID, r2.ID}
	if got := s.Children(db.ID); !slices.Equal(got, want) {
		t.Errorf("Children() = %v, want %v", got, want)
	}
	if got := rowIDs(rows); !slices.Equal(got, want) {
		t.Errorf("Rows() = %v, want %v", got, want)
	}
	if rows[1].Properties["title"] != "Second" || rows[1].Properties["status"] != "Todo" {
		t.Errorf("row = %+v", rows[1].Properties)
	}
	if p, _ := s.Page(r2.ID); p.Title != "Second" {
		t.Errorf("row page title = %q", p.Title)
	}
	if rows[0].DatabaseID != db.ID || rows[0].PageID != r1.ID {
		t.Errorf("row = %+v", rows[0])
	}
	pages, _ := g.GetPages(t.Context(), s.CurrentWorkspaceID())
	if len(pages) != 3 || pages[2].Properties["status"] != "Todo" {
		t.Errorf("remote rows = %+v", pages)
	}
	mustVerify(t, s)
}

func TestCreateDatabaseRowErrors(t *testing.T) {
	ctx := t.Context()
	s, g := newTestStore(t)
	p := mustCreate(t, s, "", "Plain")
	if _, err := s.CreateDatabaseRow(ctx, p.ID, nil); !errors.Is(err, ErrNotDatabase) {
		t.Errorf("CreateDatabaseRow(page) = %v, want ErrNotDatabase", err)
	}
	if _, err := s.CreateDatabaseRow(ctx, "missing", nil); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("CreateDatabaseRow(missing) = %v, want ErrPageNotFound", err)
	}
	db := mustDatabase(t, s, "", "D")
	before := snapshot(t, s)
	g.FailNext("CreatePage", errBoom)
	if _, err := s.CreateDatabaseRow(ctx, db.ID, map[string]any{"x": 1.0}); !errors.Is(err, errBoom) {
		t.Fatalf("CreateDatabaseRow() = %v, want boom", err)
	}
	if after := snapshot(t, s); after != before {
		t.Errorf("state after rollback:\n%s\nwant:\n%s", after, before)
	}
	g.FailNext("UpdatePage", errBoom)
	if _, err := s.CreateDatabaseRow(ctx, db.ID, map[string]any{"x": 1.0}); !errors.Is(err, errBoom) {
		t.Fatalf("CreateDatabaseRow() = %v, want boom", err)
	}
	if after := snapshot(t, s); after != before {
		t.Errorf("state after rollback:\n%s\nwant:\n%s", after, before)
	}
	if pages, _ := g.GetPages(ctx, s.CurrentWorkspaceID()); len(pages) != 2 {
		t.Errorf("remote has %d pages, want 2", len(pages))
	}
}

func TestUpdateDatabaseRow(t *testing.T) {
	ctx := t.Context()
	s, g := newTestStore(t)
	db := mustDatabase(t, s, "", "D")
	r1 := mustRow(t, s, db.ID, map[string]any{"priority": "high"})
	if err := s.UpdateDatabaseRow(ctx, db.ID, r1.ID, &model.PageUpdate{Properties: map[string]any{"status": "Done"}}); err != nil {
		t.Fatal(err)
	}
	row, err := s.Row(db.ID, r1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if row.Properties["status"] != "Done" || row.Properties["priority"] != "high" {
		t.Errorf("row = %+v", row.Properties)
	}
	p, _ := s.Page(r1.ID)
	if p.Properties["status"] != "Done" {
		t.Errorf("page properties = %+v", p.Properties)
	}
	pages, _ := g.GetPages(ctx, s.CurrentWorkspaceID())
	if got := pages[1].Properties; got["status"] != "Done" || got["priority"] != "high" {
		t.Errorf("remote properties = %+v", got)
	}

	if err := s.UpdateDatabaseRow(ctx, db.ID, r1.ID, &model.PageUpdate{Properties: map[string]any{"title": "Renamed"}}); err != nil {
		t.Fatal(err)
	}
	if p, _ := s.Page(r1.ID); p.Title != "Renamed" || p.Properties["title"] != nil {
		t.Errorf("page = %q %+v", p.Title, p.Properties)
	}
	if row, _ := s.Row(db.ID, r1.ID); row.Properties["title"] != "Renamed" {
		t.Errorf("row title = %v", row.Properties["title"])
	}
	mustVerify(t, s)

	before := snapshot(t, s)
	g.FailNext("UpdatePage", errBoom)
	if err := s.UpdateDatabaseRow(ctx, db.ID, r1.ID, &model.PageUpdate{Properties: map[string]any{"status": "Lost"}}); !errors.Is(err, errBoom) {
		t.Fatalf("UpdateDatabaseRow() = %v, want boom", err)
	}
	if after := snapshot(t, s); after != before {
		t.Errorf("state after rollback:\n%s\nwant:\n%s", after, before)
	}

	other := mustCreate(t, s, "", "Other")
	if err := s.UpdateDatabaseRow(ctx, db.ID, other.ID, &model.PageUpdate{Title: model.Ptr("x")}); !errors.Is(err, ErrRowNotFound) {
		t.Errorf("UpdateDatabaseRow(not a row) = %v, want ErrRowNotFound", err)
	}
}

func TestBulkDeleteDatabaseRows(t *testing.T) {
	ctx := t.Context()
	s, g := newTestStore(t)
	db := mustDatabase(t, s, "", "D")
	r1 := mustRow(t, s, db.ID, nil)
	r2 := mustRow(t, s, db.ID, nil)
	r3 := mustRow(t, s, db.ID, nil)

	before := snapshot(t, s)
	g.FailNext("BulkDeletePages", errBoom)
	if err := s.BulkDeleteDatabaseRows(ctx, db.ID, []string{r1.ID, r3.ID}); !errors.Is(err, errBoom) {
		t.Fatalf("BulkDeleteDatabaseRows() = %v, want boom", err)
	}
	if after := snapshot(t, s); after != before {
		t.Errorf("state after rollback:\n%s\nwant:\n%s", after, before)
	}

	n := len(g.Calls())
	if err := s.BulkDeleteDatabaseRows(ctx, db.ID, []string{r1.ID, r2.ID, r1.ID}); err != nil {
		t.Fatal(err)
	}
	if calls := g.Calls()[n:]; !slices.Equal(calls, []string{"BulkDeletePages"}) {
		t.Errorf("Calls() = %v, want a single bulk call", calls)
	}
	rows, _ := s.Rows(db.ID)
	if got := rowIDs(rows); !slices.Equal(got, []string{r3.ID}) {
		t.Errorf("Rows() = %v", got)
	}
	if got := s.Children(db.ID); !slices.Equal(got, []string{r3.ID}) {
		t.Errorf("Children() = %v", got)
	}
	for _, id := range []string{r1.ID, r2.ID} {
		if _, ok := s.Page(id); ok {
			t.Errorf("%q still present", id)
		}
	}
	if err := s.BulkDeleteDatabaseRows(ctx, db.ID, nil); err != nil {
		t.Errorf("BulkDeleteDatabaseRows(none) = %v", err)
	}
	if err := s.BulkDeleteDatabaseRows(ctx, db.ID, []string{"missing"}); !errors.Is(err, ErrRowNotFound) {
		t.Errorf("BulkDeleteDatabaseRows(missing) = %v, want ErrRowNotFound", err)
	}
	mustVerify(t, s)
}

func TestDeleteDatabaseRow(t *testing.T) {
	ctx := t.Context()
	s, _ := newTestStore(t)
	db := mustDatabase(t, s, "", "D")
	r := mustRow(t, s, db.ID, nil)
	if err := s.DeleteDatabaseRow(ctx, db.ID, r.ID); err != nil {
		t.Fatal(err)
	}
	if rows, _ := s.Rows(db.ID); len(rows) != 0 {
		t.Errorf("Rows() = %v", rowIDs(rows))
	}
}

func TestImportDatabaseRows(t *testing.T) {
	ctx := t.Context()
	s, g := newTestStore(t)
	db := mustDatabase(t, s, "", "D")
	mustRow(t, s, db.ID, nil)
	rows, err := s.ImportDatabaseRows(ctx, db.ID, []map[string]any{
		{"title": "a", "n": 1.0},
		{"title": "b", "n": 2.0},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].Properties["title"] != "a" {
		t.Fatalf("ImportDatabaseRows() = %+v", rows)
	}
	all, _ := s.Rows(db.ID)
	if len(all) != 3 || all[2].Properties["n"] != 2.0 {
		t.Errorf("Rows() = %+v", all)
	}
	mustVerify(t, s)

	before := snapshot(t, s)
	g.FailNext("BulkCreatePages", errBoom)
	if _, err := s.ImportDatabaseRows(ctx, db.ID, []map[string]any{{"title": "x"}}); !errors.Is(err, errBoom) {
		t.Fatalf("ImportDatabaseRows() = %v, want boom", err)
	}
	if after := snapshot(t, s); after != before {
		t.Error("failed import changed the state")
	}
}

func TestDatabaseSchema(t *testing.T) {
	ctx := t.Context()
	s, g := newTestStore(t)
	db := mustDatabase(t, s, "", "D")
	prop, err := s.AddDatabaseProperty(ctx, db.ID, model.DatabaseProperty{Name: "Status", Type: model.PropertyTypeSelect})
	if err != nil {
		t.Fatal(err)
	}
	if prop.ID == "" {
		t.Error("property ID not generated")
	}
	p, _ := s.Page(db.ID)
	if _, ok := p.DatabaseConfig.Property(prop.ID); !ok {
		t.Error("property not added locally")
	}
	pages, _ := g.GetPages(ctx, s.CurrentWorkspaceID())
	if _, ok := pages[0].DatabaseConfig.Property(prop.ID); !ok {
		t.Error("property not sent")
	}
	if _, err := s.AddDatabaseProperty(ctx, db.ID, model.DatabaseProperty{Name: "Bad", Type: "bogus"}); !errors.Is(err, ErrInvalidUpdate) {
		t.Errorf("AddDatabaseProperty(bad type) = %v, want ErrInvalidUpdate", err)
	}
	plain := mustCreate(t, s, "", "Plain")
	if err := s.UpdateDatabaseConfig(ctx, plain.ID, model.NewDatabaseConfig("v")); !errors.Is(err, ErrNotDatabase) {
		t.Errorf("UpdateDatabaseConfig(page) = %v, want ErrNotDatabase", err)
	}
}
