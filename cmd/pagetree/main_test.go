package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/maruel/pagetree/internal/model"
	"github.com/maruel/pagetree/internal/workspace"
)

// cli runs pagetree commands against one data directory.
type cli struct {
	t    *testing.T
	base []string
}

func newCLI(t *testing.T, backend string) *cli {
	return &cli{t: t, base: []string{"--backend", backend, "--data-dir", t.TempDir(), "--log-level", "error"}}
}

func (c *cli) exec(args ...string) (string, error) {
	c.t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(append([]string{}, c.base...), args...))
	err := cmd.ExecuteContext(c.t.Context())
	return strings.TrimRight(out.String(), "\n"), err
}

func (c *cli) run(args ...string) string {
	c.t.Helper()
	out, err := c.exec(args...)
	if err != nil {
		c.t.Fatalf("pagetree %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestCLISQLite(t *testing.T) {
	c := newCLI(t, "sqlite")
	if _, err := c.exec("ls"); err == nil || !strings.Contains(err.Error(), "no workspace") {
		t.Fatalf("ls without workspace: %v", err)
	}
	wsID := c.run("ws", "new", "Team", "--owner", "alice")
	if out := c.run("ws", "ls"); !strings.Contains(out, wsID) || !strings.Contains(out, "alice") {
		t.Errorf("ws ls:\n%s", out)
	}

	notes := c.run("new", "Notes")
	child := c.run("new", "Child", "-p", "Notes")
	out := c.run("ls")
	if !strings.Contains(out, "Notes  "+notes) || !strings.Contains(out, "\n  Child  "+child) {
		t.Errorf("ls:\n%s", out)
	}

	c.run("mv", "Child")
	out = c.run("ls")
	if !strings.Contains(out, "\nChild  "+child) {
		t.Errorf("ls after mv:\n%s", out)
	}

	c.run("fav", "Notes")
	if out = c.run("ls", "--favourites"); out != "Notes *  "+notes {
		t.Errorf("ls --favourites = %q", out)
	}

	dup := c.run("dup", child)
	if dup == "" || dup == child {
		t.Errorf("dup = %q", dup)
	}
	c.run("rm", dup)

	blk := c.run("add-block", "Notes", "heading1", "Hello")
	c.run("add-block", "Notes", "text", "World")
	out = c.run("blocks", "Notes")
	lines := strings.Split(out, "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "Hello  "+blk) || !strings.Contains(lines[1], "World") {
		t.Errorf("blocks:\n%s", out)
	}
	if _, err := c.exec("add-block", "Notes", "nope"); err == nil {
		t.Error("add-block accepted an unknown type")
	}
}

func TestCLIDatabase(t *testing.T) {
	c := newCLI(t, "sqlite")
	c.run("ws", "new", "Team")
	c.run("new", "Notes")
	db := c.run("db", "new", "Tasks")
	if out := c.run("ls"); !strings.Contains(out, "Tasks [db]  "+db) {
		t.Errorf("ls:\n%s", out)
	}
	prop := c.run("db", "prop", "Tasks", "Priority", "number")
	if prop == "" {
		t.Fatal("empty property id")
	}
	c.run("db", "prop", "Tasks", "Stage", "select", "--option", "todo", "--option", "done")

	row := c.run("row", "add", "Tasks", "title=Write", "Priority=3", "stage=todo")
	c.run("row", "add", "Tasks", "Name=Read", "Priority=1")
	out := c.run("row", "ls", "Tasks")
	lines := strings.Split(out, "\n")
	if len(lines) != 3 || !strings.Contains(lines[0], "PRIORITY") || !strings.Contains(lines[1], "Write") || !strings.Contains(lines[1], "todo") {
		t.Errorf("row ls:\n%s", out)
	}

	c.run("row", "set", "Tasks", row, "Priority=5", "title=Write more")
	out = c.run("row", "ls", "Tasks")
	if !strings.Contains(out, "Write more") || !strings.Contains(out, "5") {
		t.Errorf("row ls after set:\n%s", out)
	}

	if _, err := c.exec("row", "add", "Tasks", "Unknown=1"); err == nil {
		t.Error("row add accepted an unknown column")
	}
	if _, err := c.exec("row", "add", "Notes", "title=x"); !errors.Is(err, workspace.ErrNotDatabase) {
		t.Errorf("row add on a page: %v", err)
	}
	if _, err := c.exec("blocks", "Tasks"); !errors.Is(err, workspace.ErrIsDatabase) {
		t.Errorf("blocks of a database: %v", err)
	}

	if out = c.run("find", "write"); !strings.Contains(out, row) || !strings.Contains(out, "row") {
		t.Errorf("find:\n%s", out)
	}

	c.run("row", "rm", "Tasks", row, "Read")
	if out = c.run("row", "ls", "Tasks"); strings.Count(out, "\n") != 0 {
		t.Errorf("row ls after rm:\n%s", out)
	}
}

func TestCLIFile(t *testing.T) {
	c := newCLI(t, "file")
	c.run("ws", "new", "Team")
	notes := c.run("new", "Notes")
	c.run("add-block", "Notes", "text", "<b>bold</b> move")
	c.run("archive", "Notes")
	if out := c.run("ls", "--archived"); !strings.Contains(out, "Notes (archived)  "+notes) {
		t.Errorf("ls --archived = %q", out)
	}
	c.run("restore", "Notes")

	out := c.run("blocks", "--markdown", "Notes")
	if !strings.HasPrefix(out, "---\n") || !strings.Contains(out, "**bold** move") {
		t.Errorf("blocks --markdown:\n%s", out)
	}
	if out = c.run("history", "Notes"); strings.Count(out, "\n") < 1 {
		t.Errorf("history:\n%s", out)
	}

	snap := filepath.Join(t.TempDir(), "state.json")
	c.run("snapshot", snap)
	data, err := os.ReadFile(snap)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(notes)) {
		t.Errorf("snapshot misses %s:\n%s", notes, data)
	}
}

func TestCLIConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pagetree.yaml")
	c := &cli{t: t, base: []string{"--config", path, "--data-dir", filepath.Join(dir, "data")}}
	c.run("ws", "new", "Team")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "data")); err != nil {
		t.Fatalf("data dir not created: %v", err)
	}
	if _, err := c.exec("--backend", "nope", "ls"); err == nil {
		t.Error("unknown backend accepted")
	}
	if _, err := c.exec("--log-level", "loud", "ls"); err == nil {
		t.Error("unknown log level accepted")
	}
	if _, err := c.exec("token", "bob"); err == nil {
		t.Error("token minted without a secret")
	}
	if out := c.run("schema"); !strings.Contains(out, "\"FlatBlock\"") {
		t.Errorf("schema:\n%s", out)
	}
	if _, err := c.exec("watch", "--backend", "sqlite"); err == nil || !strings.Contains(err.Error(), "file") {
		t.Errorf("watch on sqlite: %v", err)
	}
}

func TestPickWorkspace(t *testing.T) {
	ws := []*model.Workspace{
		{ID: "w1", Name: "Team"},
		{ID: "w2", Name: "Home"},
		{ID: "w3", Name: "home"},
	}
	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{"", "w1", false},
		{"w2", "w2", false},
		{"team", "w1", false},
		{"Home", "", true},
		{"missing", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := pickWorkspace(ws, tt.ref)
			if (err != nil) != tt.wantErr {
				t.Fatalf("pickWorkspace(%q) error = %v", tt.ref, err)
			}
			if err == nil && got.ID != tt.want {
				t.Errorf("pickWorkspace(%q) = %s, want %s", tt.ref, got.ID, tt.want)
			}
		})
	}
	if _, err := pickWorkspace(nil, ""); err == nil {
		t.Error("pickWorkspace(nil) succeeded")
	}
}

func TestParseValues(t *testing.T) {
	db := &model.Page{ID: "db", IsDatabase: true, DatabaseConfig: model.NewDatabaseConfig("v")}
	db.DatabaseConfig.Properties = append(db.DatabaseConfig.Properties,
		model.DatabaseProperty{ID: "p1", Name: "Done", Type: model.PropertyTypeCheckbox},
		model.DatabaseProperty{ID: "p2", Name: "Tags", Type: model.PropertyTypeTags},
	)
	got, err := parseValues(db, []string{"Name=hello", "done=true", "p2=[\"a\",\"b\"]"})
	if err != nil {
		t.Fatal(err)
	}
	if got["title"] != "hello" || got["p1"] != true {
		t.Errorf("parseValues = %v", got)
	}
	if s := formatValue(got["p2"]); s != "a,b" {
		t.Errorf("formatValue(tags) = %q", s)
	}
	for _, args := range [][]string{{"Name"}, {"=x"}, {"Other=1"}} {
		if _, err := parseValues(db, args); err == nil {
			t.Errorf("parseValues(%q) succeeded", args)
		}
	}
	if _, err := parseValues(&model.Page{ID: "p"}, nil); !errors.Is(err, workspace.ErrNotDatabase) {
		t.Errorf("parseValues(page) = %v", err)
	}
}
