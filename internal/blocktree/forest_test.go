package blocktree

import (
	"errors"
	"reflect"
	"slices"
	"testing"

	"github.com/maruel/pagetree/internal/model"
)

func blk(id string, children ...*model.Block) *model.Block {
	return &model.Block{ID: id, Type: model.BlockTypeText, Content: "<p>" + id + "</p>", Children: children}
}

// sample returns:
//
//	a
//	  a1
//	  a2
//	    a2x
//	b
//	c
//	  c1
func sample() []*model.Block {
	return []*model.Block{
		blk("a", blk("a1"), blk("a2", blk("a2x"))),
		blk("b"),
		blk("c", blk("c1")),
	}
}

// withProvenance fills ParentID and PageID the way a forest does.
func withProvenance(pageID, parentID string, blocks []*model.Block) []*model.Block {
	for _, b := range blocks {
		b.PageID = pageID
		b.ParentID = parentID
		withProvenance(pageID, b.ID, b.Children)
	}
	return blocks
}

func ids(blocks []*model.Block) []string {
	var out []string
	for _, b := range blocks {
		out = append(out, b.ID)
		out = append(out, ids(b.Children)...)
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	want := withProvenance("pg", "", sample())
	f := FromNested("pg", sample())
	flat := f.Flatten()
	if len(flat) != 7 {
		t.Fatalf("Flatten() len = %d, want 7", len(flat))
	}
	got := FromFlat("pg", flat).Blocks()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip = %v, want %v", ids(got), ids(want))
	}
}

func TestFromFlatOrdersByIndex(t *testing.T) {
	flat := []*model.FlatBlock{
		{ID: "c", Type: model.BlockTypeText, Index: 2},
		{ID: "x2", Type: model.BlockTypeText, ParentID: "a", Index: 1},
		{ID: "a", Type: model.BlockTypeText, Index: 0},
		{ID: "x1", Type: model.BlockTypeText, ParentID: "a", Index: 0},
		{ID: "b", Type: model.BlockTypeText, Index: 1},
	}
	f := FromFlat("pg", flat)
	if got, want := f.Roots(), []string{"a", "b", "c"}; !slices.Equal(got, want) {
		t.Errorf("Roots() = %v, want %v", got, want)
	}
	if got, want := f.ChildIDs("a"), []string{"x1", "x2"}; !slices.Equal(got, want) {
		t.Errorf("ChildIDs(a) = %v, want %v", got, want)
	}
}

func TestFromFlatOrphansAndCycles(t *testing.T) {
	flat := []*model.FlatBlock{
		{ID: "a", Type: model.BlockTypeText, Index: 0},
		{ID: "orphan", Type: model.BlockTypeText, ParentID: "gone", Index: 0},
		{ID: "x", Type: model.BlockTypeText, ParentID: "y", Index: 0},
		{ID: "y", Type: model.BlockTypeText, ParentID: "x", Index: 0},
	}
	f := FromFlat("pg", flat)
	if f.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", f.Len())
	}
	if got := ids(f.Blocks()); len(got) != 4 {
		t.Errorf("reachable = %v, want 4 blocks", got)
	}
	if p, _, _ := f.Position("orphan"); p != "" {
		t.Errorf("orphan parent = %q, want top level", p)
	}
}

func TestInsertAndRemove(t *testing.T) {
	f := FromNested("pg", sample())
	i, err := f.Insert(&model.Block{ID: "n", Type: model.BlockTypeTodo}, "a", 1)
	if err != nil || i != 1 {
		t.Fatalf("Insert() = %d, %v", i, err)
	}
	if got, want := f.ChildIDs("a"), []string{"a1", "n", "a2"}; !slices.Equal(got, want) {
		t.Errorf("ChildIDs(a) = %v, want %v", got, want)
	}
	if b, _ := f.Get("n"); b.PageID != "pg" || b.ParentID != "a" {
		t.Errorf("inserted block = %+v", b)
	}
	if _, err := f.Insert(&model.Block{ID: "n"}, "", 0); !errors.Is(err, ErrExists) {
		t.Errorf("Insert(dup) = %v, want ErrExists", err)
	}
	if _, err := f.Insert(&model.Block{ID: "z"}, "missing", 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("Insert(missing parent) = %v, want ErrNotFound", err)
	}
	if i, _ := f.Insert(&model.Block{ID: "end"}, "", 99); i != 3 {
		t.Errorf("Insert(out of range) index = %d, want 3", i)
	}

	before := f.Blocks()
	removed, parent, index, err := f.Remove("a2")
	if err != nil {
		t.Fatal(err)
	}
	if parent != "a" || index != 2 || len(removed.Children) != 1 {
		t.Errorf("Remove() = %v, %q, %d", ids([]*model.Block{removed}), parent, index)
	}
	if f.Has("a2x") {
		t.Error("descendant survived Remove")
	}
	if err := f.InsertTree(removed, parent, index); err != nil {
		t.Fatal(err)
	}
	if got := f.Blocks(); !reflect.DeepEqual(got, before) {
		t.Errorf("restore = %v, want %v", ids(got), ids(before))
	}
}

func TestMove(t *testing.T) {
	f := FromNested("pg", sample())
	if _, err := f.Move("a", "a2x", 0); !errors.Is(err, ErrCycle) {
		t.Errorf("Move(under descendant) = %v, want ErrCycle", err)
	}
	if _, err := f.Move("a", "a", 0); !errors.Is(err, ErrCycle) {
		t.Errorf("Move(under itself) = %v, want ErrCycle", err)
	}
	if _, err := f.Move("a2", "c", 0); err != nil {
		t.Fatal(err)
	}
	if got, want := f.ChildIDs("c"), []string{"a2", "c1"}; !slices.Equal(got, want) {
		t.Errorf("ChildIDs(c) = %v, want %v", got, want)
	}
	if got, want := f.ChildIDs("a"), []string{"a1"}; !slices.Equal(got, want) {
		t.Errorf("ChildIDs(a) = %v, want %v", got, want)
	}
	if _, err := f.Move("c", "", 0); err != nil {
		t.Fatal(err)
	}
	if got, want := f.Roots(), []string{"c", "a", "b"}; !slices.Equal(got, want) {
		t.Errorf("Roots() = %v, want %v", got, want)
	}
	b, _ := f.Get("a2x")
	if b.ParentID != "a2" || b.PageID != "pg" {
		t.Errorf("moved descendant = %+v", b)
	}
}

func TestRename(t *testing.T) {
	f := FromNested("pg", sample())
	if err := f.Rename("a2", "srv"); err != nil {
		t.Fatal(err)
	}
	if got, want := f.ChildIDs("a"), []string{"a1", "srv"}; !slices.Equal(got, want) {
		t.Errorf("ChildIDs(a) = %v, want %v", got, want)
	}
	if b, _ := f.Get("a2x"); b.ParentID != "srv" {
		t.Errorf("child ParentID = %q, want srv", b.ParentID)
	}
	for _, fb := range f.Flatten() {
		if fb.ID == "a2" || fb.ParentID == "a2" {
			t.Errorf("stale reference in %+v", fb)
		}
	}
	if err := f.Rename("b", "c"); !errors.Is(err, ErrExists) {
		t.Errorf("Rename(onto existing) = %v, want ErrExists", err)
	}
}

func TestUpdate(t *testing.T) {
	f := FromNested("pg", sample())
	err := f.Update("a1", func(b *model.Block) {
		b.Content = "hi"
		b.ParentID = "tampered"
	})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := f.Get("a1")
	if b.Content != "hi" || b.ParentID != "a" {
		t.Errorf("Update() = %+v", b)
	}
	if err := f.Update("nope", func(*model.Block) {}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) = %v, want ErrNotFound", err)
	}
}
