package jsonldb

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

type testRow struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func (r *testRow) Clone() *testRow {
	c := *r
	return &c
}

func names(t *Table[*testRow]) []string {
	var out []string
	for r := range t.All() {
		out = append(out, r.Name)
	}
	return out
}

func TestTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "test.jsonl")
	table, err := NewTable[*testRow](path)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	if got := names(table); len(got) != 0 {
		t.Errorf("All() on a new table = %v", got)
	}
	if err := table.Replace([]*testRow{{ID: 1, Name: "One"}, {ID: 2, Name: "Two"}}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if got := names(table); !slices.Equal(got, []string{"One", "Two"}) {
		t.Errorf("All() = %v", got)
	}

	// Rows handed out are copies.
	for r := range table.All() {
		r.Name = "changed"
	}
	if got := names(table); !slices.Equal(got, []string{"One", "Two"}) {
		t.Errorf("All() after mutating copies = %v", got)
	}

	table2, err := NewTable[*testRow](path)
	if err != nil {
		t.Fatalf("re-loading table failed: %v", err)
	}
	if got := names(table2); !slices.Equal(got, []string{"One", "Two"}) {
		t.Errorf("re-loaded = %v", got)
	}

	if err := table.Replace([]*testRow{{ID: 3, Name: "Three"}}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if got := names(table); !slices.Equal(got, []string{"Three"}) {
		t.Errorf("All() after Replace = %v", got)
	}
	if err := table2.Reload(); err != nil {
		t.Fatal(err)
	}
	if got := names(table2); !slices.Equal(got, []string{"Three"}) {
		t.Errorf("Reload() = %v", got)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestTableCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte("{\"id\":1}\n\nnot json\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewTable[*testRow](path)
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Errorf("NewTable() on a corrupt file = %v", err)
	}
}

func TestJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "doc.json")
	in := map[string][]string{"a": {"x", "y"}}
	if err := WriteJSON(path, in); err != nil {
		t.Fatal(err)
	}
	var out map[string][]string
	if err := ReadJSON(path, &out); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(out["a"], in["a"]) {
		t.Errorf("ReadJSON() = %v, want %v", out, in)
	}
	if err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &out); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadJSON(missing) = %v", err)
	}
}
