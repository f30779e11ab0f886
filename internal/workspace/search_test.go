package workspace

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/maruel/pagetree/internal/model"
)

func TestSearch(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := t.Context()
	notes := mustCreate(t, s, "", "Meeting notes")
	mustCreate(t, s, notes.ID, "Other")
	db, err := s.CreateDatabase(ctx, "", "Meetings")
	if err != nil {
		t.Fatal(err)
	}
	row, err := s.CreateDatabaseRow(ctx, db.ID, map[string]any{"title": "Standup", "where": "meeting room"})
	if err != nil {
		t.Fatal(err)
	}
	e, err := s.OpenPage(ctx, notes.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.CreateBlock(ctx, model.BlockTypeText, "Next <b>meeting</b> on monday", "", -1); err != nil {
		t.Fatal(err)
	}

	got := s.Search(SearchOptions{Query: "MEETING"})
	if len(got) != 3 {
		t.Fatalf("Search() = %+v", got)
	}
	if got[0].PageID != notes.ID || got[0].Kind != SearchPage || got[0].Matches != 2 {
		t.Errorf("top hit = %+v", got[0])
	}
	if got[0].Preview != "Next meeting on monday" {
		t.Errorf("preview = %q", got[0].Preview)
	}
	kinds := map[SearchKind]string{}
	for _, r := range got {
		kinds[r.Kind] = r.PageID
	}
	if kinds[SearchDatabase] != db.ID || kinds[SearchRow] != row.ID {
		t.Errorf("kinds = %v", kinds)
	}

	if got := s.Search(SearchOptions{Query: "meeting", MatchTitle: true}); len(got) != 2 {
		t.Errorf("title only = %+v", got)
	}
	if got := s.Search(SearchOptions{Query: "meeting", Limit: 1}); len(got) != 1 || got[0].PageID != notes.ID {
		t.Errorf("limit = %+v", got)
	}
	if got := s.Search(SearchOptions{Query: "  "}); got != nil {
		t.Errorf("blank query = %+v", got)
	}

	if err := s.ArchivePage(ctx, notes.ID); err != nil {
		t.Fatal(err)
	}
	if got := s.Search(SearchOptions{Query: "meeting", MatchTitle: true}); len(got) != 1 || got[0].PageID != db.ID {
		t.Errorf("archived page found: %+v", got)
	}
	if got := s.Search(SearchOptions{Query: "meeting", MatchTitle: true, Archived: true}); len(got) != 2 {
		t.Errorf("Archived: %+v", got)
	}
}

func TestPreview(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog and keeps running far away"
	got := preview(text, "lazy")
	if !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "...") || !strings.Contains(got, "the lazy dog") || strings.Contains(got, "quick") {
		t.Errorf("preview = %q", got)
	}
	if got := preview("short", "x"); got != "short" {
		t.Errorf("preview(no match) = %q", got)
	}

	tests := []struct {
		name  string
		text  string
		query string
		want  string
	}{
		{"cjk", strings.Repeat("日本語", 10) + "検索" + strings.Repeat("テキスト", 10), "検索", "検索"},
		// U+212A lowercases to a one byte k.
		{"kelvin", strings.Repeat("\u212a", 40) + "target" + strings.Repeat("x", 40), "target", "target"},
		{"kelvin match", "abc \u212aelvin def", "kelvin", "\u212aelvin"},
		{"accents", strings.Repeat("é", 80) + " fin", "fin", "fin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preview(tt.text, tt.query)
			if !utf8.ValidString(got) {
				t.Fatalf("preview = %q is not valid UTF-8", got)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("preview = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	s := strings.Repeat("é", 80)
	if got := truncate(s, 100); got != s {
		t.Errorf("truncate(80 runes, 100) = %q", got)
	}
	got := truncate(strings.Repeat("é", 120), 100)
	if !utf8.ValidString(got) || got != strings.Repeat("é", 100)+"..." {
		t.Errorf("truncate(120 runes, 100) = %q", got)
	}
	if got := preview(strings.Repeat("語", 150), "x"); !utf8.ValidString(got) || utf8.RuneCountInString(got) != 103 {
		t.Errorf("preview(no match) = %q", got)
	}
}
