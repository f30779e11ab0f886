// Provides filtering, sorting and grouping of database rows.

package workspace

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/maruel/pagetree/internal/model"
)

// QueryRows returns the rows of a database as shown by one of its views: the
// view filters applied, then its sorts. An empty viewID selects the default
// view.
func (s *Store) QueryRows(databaseID, viewID string) ([]*model.DatabaseRow, error) {
	s.mu.Lock()
	db, err := s.databaseLocked(databaseID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	rows := s.rowsLocked(db)
	var view *model.View
	if db.DatabaseConfig != nil {
		if v, ok := db.DatabaseConfig.View(viewID); ok {
			c := *v
			view = &c
		}
	}
	s.mu.Unlock()
	if view == nil && viewID != "" {
		return nil, fmt.Errorf("%w: %s", ErrViewNotFound, viewID)
	}
	return QueryRows(rows, view), nil
}

// QueryRows applies the filters and sorts of view to rows. A nil view
// returns rows unchanged.
func QueryRows(rows []*model.DatabaseRow, view *model.View) []*model.DatabaseRow {
	result := make([]*model.DatabaseRow, 0, len(rows))
	for _, r := range rows {
		if view == nil || len(view.Filters) == 0 || matchesFilters(r, view.Filters) {
			result = append(result, r)
		}
	}
	if view != nil && len(view.Sorts) > 0 {
		sortRows(result, view.Sorts)
	}
	return result
}

// RowGroup is a bucket of a board view.
type RowGroup struct {
	// Key is the grouping value; empty holds rows without a value.
	Key  string
	Rows []*model.DatabaseRow
}

// GroupRows buckets rows by the value of property, in order of first
// appearance. Multi valued properties place a row in every matching bucket.
func GroupRows(rows []*model.DatabaseRow, property string) []RowGroup {
	var out []RowGroup
	index := map[string]int{}
	add := func(key string, r *model.DatabaseRow) {
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, RowGroup{Key: key})
		}
		out[i].Rows = append(out[i].Rows, r)
	}
	for _, r := range rows {
		switch v := r.Properties[property].(type) {
		case []any:
			if len(v) == 0 {
				add("", r)
			}
			for _, e := range v {
				add(toString(e), r)
			}
		case []string:
			if len(v) == 0 {
				add("", r)
			}
			for _, e := range v {
				add(e, r)
			}
		default:
			add(toString(v), r)
		}
	}
	return out
}

func matchesFilters(r *model.DatabaseRow, filters []model.Filter) bool {
	for i := range filters {
		if !matchesFilter(r, &filters[i]) {
			return false
		}
	}
	return true
}

func matchesFilter(r *model.DatabaseRow, f *model.Filter) bool {
	if len(f.And) > 0 {
		for i := range f.And {
			if !matchesFilter(r, &f.And[i]) {
				return false
			}
		}
		return true
	}
	if len(f.Or) > 0 {
		for i := range f.Or {
			if matchesFilter(r, &f.Or[i]) {
				return true
			}
		}
		return false
	}
	if f.Property == "" {
		return true
	}
	value, ok := r.Properties[f.Property]
	if !ok {
		return f.Operator == model.FilterOpIsEmpty
	}
	return matchesOperator(value, f.Operator, f.Value)
}

func matchesOperator(value any, op model.FilterOp, want any) bool {
	switch op {
	case model.FilterOpIsEmpty:
		return isEmpty(value)
	case model.FilterOpIsNotEmpty:
		return !isEmpty(value)
	case model.FilterOpEquals:
		return compareValues(value, want) == 0
	case model.FilterOpNotEquals:
		return compareValues(value, want) != 0
	case model.FilterOpGreaterThan:
		return compareValues(value, want) > 0
	case model.FilterOpLessThan:
		return compareValues(value, want) < 0
	case model.FilterOpGreaterEqual:
		return compareValues(value, want) >= 0
	case model.FilterOpLessEqual:
		return compareValues(value, want) <= 0
	case model.FilterOpContains:
		return containsValue(value, want)
	case model.FilterOpNotContains:
		return !containsValue(value, want)
	case model.FilterOpStartsWith:
		return strings.HasPrefix(strings.ToLower(toString(value)), strings.ToLower(toString(want)))
	case model.FilterOpEndsWith:
		return strings.HasSuffix(strings.ToLower(toString(value)), strings.ToLower(toString(want)))
	default:
		return false
	}
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	default:
		return false
	}
}

// containsValue is a case-insensitive substring match on text, and a
// membership test on lists such as multi_select and tags.
func containsValue(value, want any) bool {
	w := strings.ToLower(toString(want))
	switch v := value.(type) {
	case []any:
		return slices.ContainsFunc(v, func(e any) bool { return strings.ToLower(toString(e)) == w })
	case []string:
		return slices.ContainsFunc(v, func(e string) bool { return strings.ToLower(e) == w })
	}
	return strings.Contains(strings.ToLower(toString(value)), w)
}

// compareValues orders two values, numbers numerically, and falls back to
// their text.
func compareValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return cmp.Compare(fa, fb)
		}
	}
	if va, ok := a.(bool); ok {
		if vb, ok := b.(bool); ok {
			switch {
			case va == vb:
				return 0
			case vb:
				return -1
			default:
				return 1
			}
		}
	}
	return cmp.Compare(toString(a), toString(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool, float64, float32, int, int64:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

func sortRows(rows []*model.DatabaseRow, sorts []model.Sort) {
	slices.SortStableFunc(rows, func(a, b *model.DatabaseRow) int {
		for i := range sorts {
			s := &sorts[i]
			c := compareValues(a.Properties[s.Property], b.Properties[s.Property])
			if c != 0 {
				if s.Direction == model.SortDesc {
					return -c
				}
				return c
			}
		}
		return 0
	})
}
