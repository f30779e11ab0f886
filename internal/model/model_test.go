package model

import (
	"reflect"
	"testing"
	"time"
)

func TestPageClone(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	p := NewDatabasePage("db", "ws", "", "Tasks", "v1", now)
	p.Properties = map[string]any{"tags": []any{"a", map[string]any{"k": "v"}}}
	p.Children = []string{"r1"}
	p.Blocks = []*Block{{ID: "b1", Children: []*Block{{ID: "b2"}}}}

	c := p.Clone()
	if !reflect.DeepEqual(c, p) {
		t.Fatalf("Clone() = %+v, want %+v", c, p)
	}
	c.Children[0] = "x"
	c.Properties["tags"].([]any)[1].(map[string]any)["k"] = "changed"
	c.DatabaseConfig.Views[0].Name = "changed"
	c.Blocks[0].Children[0].ID = "changed"
	if p.Children[0] != "r1" {
		t.Error("Children aliased")
	}
	if p.Properties["tags"].([]any)[1].(map[string]any)["k"] != "v" {
		t.Error("Properties aliased")
	}
	if p.DatabaseConfig.Views[0].Name != "Table" {
		t.Error("DatabaseConfig aliased")
	}
	if p.Blocks[0].Children[0].ID != "b2" {
		t.Error("Blocks aliased")
	}
}

func TestPageCloneKeepsNil(t *testing.T) {
	p := NewPage("p", "ws", "", "", time.Time{})
	c := p.Clone()
	if c.Children != nil || c.Properties != nil || c.Blocks != nil || c.DatabaseConfig != nil {
		t.Errorf("Clone() materialized nil fields: %+v", c)
	}
	if c.Title != DefaultTitle {
		t.Errorf("Title = %q, want %q", c.Title, DefaultTitle)
	}
}

func TestPageValidate(t *testing.T) {
	tests := []struct {
		name    string
		page    Page
		wantErr error
	}{
		{"ok", Page{ID: "a"}, nil},
		{"no id", Page{}, errIDRequired},
		{"self parent", Page{ID: "a", ParentID: "a"}, errSelfParent},
		{"database without config", Page{ID: "a", IsDatabase: true}, errDatabaseConfig},
		{"cover", Page{ID: "a", CoverPosition: 101}, errCoverPosition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.page.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDatabaseConfigValidate(t *testing.T) {
	c := NewDatabaseConfig("v1")
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	c.Properties = append(c.Properties, DatabaseProperty{ID: "status", Name: "Status", Type: PropertyTypeStatus,
		Options: []SelectOption{{ID: "done", Name: "Done"}}})
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	c.Properties = append(c.Properties, DatabaseProperty{ID: "status", Name: "Dup", Type: PropertyTypeText})
	if err := c.Validate(); err != errDuplicateProperty {
		t.Errorf("Validate() = %v, want %v", err, errDuplicateProperty)
	}
	c.Properties = c.Properties[:2]
	c.Properties[1].Type = PropertyTypeNumber
	if err := c.Validate(); err != errOptionsNotAllowed {
		t.Errorf("Validate() = %v, want %v", err, errOptionsNotAllowed)
	}
	c.Properties = c.Properties[:1]
	c.DefaultViewID = "missing"
	if err := c.Validate(); err != errUnknownView {
		t.Errorf("Validate() = %v, want %v", err, errUnknownView)
	}
}

func TestDatabaseConfigView(t *testing.T) {
	c := NewDatabaseConfig("v1")
	c.Views = append(c.Views, View{ID: "v2", Name: "Board", Type: ViewTypeBoard, GroupBy: "status"})
	if v, ok := c.View(""); !ok || v.ID != "v1" {
		t.Errorf("View(\"\") = %v, %v; want v1", v, ok)
	}
	if v, ok := c.View("v2"); !ok || v.Type != ViewTypeBoard {
		t.Errorf("View(v2) = %v, %v; want board", v, ok)
	}
	if _, ok := c.View("nope"); ok {
		t.Error("View(nope) found")
	}
}

func TestRowOf(t *testing.T) {
	p := NewRowPage("r1", "ws", "db", map[string]any{"title": "Buy milk", "status": "Todo"}, time.Time{})
	if p.Title != "Buy milk" {
		t.Errorf("Title = %q, want %q", p.Title, "Buy milk")
	}
	if _, ok := p.Properties[TitlePropertyID]; ok {
		t.Error("title kept in page properties")
	}
	r := RowOf(p)
	want := map[string]any{"title": "Buy milk", "status": "Todo"}
	if !reflect.DeepEqual(r.Properties, want) {
		t.Errorf("Properties = %v, want %v", r.Properties, want)
	}
	if r.ID != "r1" || r.PageID != "r1" || r.DatabaseID != "db" {
		t.Errorf("row identity = %q/%q/%q", r.ID, r.PageID, r.DatabaseID)
	}
	r.Properties["status"] = "Done"
	if p.Properties["status"] != "Todo" {
		t.Error("row aliases page properties")
	}
}

func TestNewRowPageDefaults(t *testing.T) {
	p := NewRowPage("r1", "ws", "db", nil, time.Time{})
	if p.Title != DefaultTitle {
		t.Errorf("Title = %q, want %q", p.Title, DefaultTitle)
	}
	if p.Properties != nil {
		t.Errorf("Properties = %v, want nil", p.Properties)
	}
}

func TestPageUpdateApply(t *testing.T) {
	p := NewDatabasePage("db", "ws", "", "T", "v", time.Time{})
	u := &PageUpdate{
		Title:       Ptr("New"),
		IsFavourite: Ptr(true),
		IsDatabase:  Ptr(false),
		Properties:  map[string]any{"a": 1.0},
	}
	if u.IsEmpty() || u.IsMove() {
		t.Fatalf("IsEmpty/IsMove wrong for %+v", u)
	}
	u.Apply(p)
	if p.Title != "New" || !p.IsFavourite || p.IsDatabase || p.DatabaseConfig != nil {
		t.Errorf("Apply() = %+v", p)
	}
	u.Properties["a"] = 2.0
	if p.Properties["a"] != 1.0 {
		t.Error("Properties aliased")
	}
	if !(&PageUpdate{}).IsEmpty() {
		t.Error("empty update not empty")
	}
	if err := (&PageUpdate{CoverPosition: Ptr(-1)}).Validate(); err != errCoverPosition {
		t.Errorf("Validate() = %v, want %v", err, errCoverPosition)
	}
	if err := (&PageUpdate{IsDatabase: Ptr(false), DatabaseConfig: NewDatabaseConfig("v")}).Validate(); err != errDatabaseConfig {
		t.Errorf("Validate() = %v, want %v", err, errDatabaseConfig)
	}
	if err := (&PageUpdate{IsDatabase: Ptr(true), DatabaseConfig: NewDatabaseConfig("v")}).Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestBlockFlatRoundTrip(t *testing.T) {
	b := &Block{ID: "b", Type: BlockTypeTodo, Content: "x", Properties: map[string]any{"checked": true}, ParentID: "p", PageID: "pg"}
	f := b.Flat(3)
	if f.Index != 3 || f.ParentID != "p" {
		t.Errorf("Flat() = %+v", f)
	}
	if got := f.Block(); !reflect.DeepEqual(got, b) {
		t.Errorf("Block() = %+v, want %+v", got, b)
	}
	if err := (&FlatBlock{ID: "a", Type: "bogus"}).Validate(); err != errInvalidBlockType {
		t.Errorf("Validate() = %v, want %v", err, errInvalidBlockType)
	}
}
