package workspace

import (
	"cmp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/maruel/pagetree/internal/model"
)

// SearchKind is the kind of a search hit.
type SearchKind string

const (
	// SearchPage is a content page matched by title or loaded blocks.
	SearchPage SearchKind = "page"
	// SearchDatabase is a database matched by title.
	SearchDatabase SearchKind = "database"
	// SearchRow is a database row matched by one of its values.
	SearchRow SearchKind = "row"
)

// SearchResult is one hit of Search.
type SearchResult struct {
	Kind       SearchKind `json:"kind"`
	PageID     string     `json:"page_id"`
	DatabaseID string     `json:"database_id,omitempty"`
	Title      string     `json:"title"`
	Preview    string     `json:"preview"`
	Matches    int        `json:"matches"`
	Score      float64    `json:"score"`
}

// SearchOptions controls Search. When none of the Match fields is set, all
// of them are.
type SearchOptions struct {
	Query       string
	Limit       int
	MatchTitle  bool
	MatchBody   bool
	MatchFields bool
	// Archived includes archived pages.
	Archived bool
}

const previewLen = 100

// Search does a case-insensitive substring search over the loaded pages of
// the current workspace. Block content is only searched for pages that were
// opened. Results are sorted by decreasing score.
func (s *Store) Search(opts SearchOptions) []SearchResult {
	query := strings.ToLower(strings.TrimSpace(opts.Query))
	if query == "" {
		return nil
	}
	if !opts.MatchTitle && !opts.MatchBody && !opts.MatchFields {
		opts.MatchTitle, opts.MatchBody, opts.MatchFields = true, true, true
	}
	var out []SearchResult
	s.Walk(func(p *model.Page, _ int) bool {
		if p.IsArchived && !opts.Archived {
			return true
		}
		if r, ok := s.searchPage(p, query, &opts); ok {
			out = append(out, r)
		}
		return true
	})
	slices.SortStableFunc(out, func(a, b SearchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

func (s *Store) searchPage(p *model.Page, query string, opts *SearchOptions) (SearchResult, bool) {
	r := SearchResult{Kind: SearchPage, PageID: p.ID, Title: p.Title}
	if p.IsDatabase {
		r.Kind = SearchDatabase
	}
	s.mu.Lock()
	isRow := s.isRowLocked(p)
	s.mu.Unlock()
	if isRow {
		r.Kind = SearchRow
		r.DatabaseID = p.ParentID
	}

	score := 0.0
	if opts.MatchTitle {
		if n := strings.Count(strings.ToLower(p.Title), query); n > 0 {
			r.Matches += n
			score += 0.5 * float64(n)
		}
	}
	if opts.MatchBody && r.Kind == SearchPage {
		body := plainText(p.Blocks)
		if n := strings.Count(strings.ToLower(body), query); n > 0 {
			r.Matches += n
			score += 0.1 * float64(n)
			r.Preview = preview(body, query)
		}
	}
	if opts.MatchFields && r.Kind == SearchRow {
		keys := make([]string, 0, len(p.Properties))
		for k := range p.Properties {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			v := toString(p.Properties[k])
			if n := strings.Count(strings.ToLower(v), query); n > 0 {
				r.Matches += n
				score += 0.2 * float64(n)
				if r.Preview == "" {
					r.Preview = k + ": " + truncate(v, 50)
				}
			}
		}
	}
	if r.Matches == 0 {
		return r, false
	}
	r.Score = min(score, 1.0)
	return r, true
}

// plainText concatenates the text of a block tree with markup removed.
func plainText(blocks []*model.Block) string {
	var b strings.Builder
	var walk func([]*model.Block)
	walk = func(blocks []*model.Block) {
		for _, blk := range blocks {
			if b.Len() != 0 {
				b.WriteByte('\n')
			}
			inTag := false
			for _, c := range blk.Content {
				switch {
				case c == '<':
					inTag = true
				case c == '>' && inTag:
					inTag = false
				case !inTag:
					b.WriteRune(c)
				}
			}
			walk(blk.Children)
		}
	}
	walk(blocks)
	return b.String()
}

// preview returns the text around the first match of query. Offsets are
// counted in runes, so the cut never splits a character.
func preview(text, query string) string {
	runes := []rune(text)
	i := indexFold(runes, []rune(query))
	if i < 0 {
		return truncate(text, previewLen)
	}
	start := max(i-20, 0)
	end := min(i+utf8.RuneCountInString(query)+30, len(runes))
	out := string(runes[start:end])
	if start > 0 {
		out = "..." + out
	}
	if end < len(runes) {
		out += "..."
	}
	return out
}

// indexFold returns the rune index of the first case-insensitive occurrence
// of sub in s, or -1.
func indexFold(s, sub []rune) int {
	if len(sub) == 0 {
		return -1
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		j := 0
		for j < len(sub) && unicode.ToLower(s[i+j]) == unicode.ToLower(sub[j]) {
			j++
		}
		if j == len(sub) {
			return i
		}
	}
	return -1
}

// truncate cuts s to n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
