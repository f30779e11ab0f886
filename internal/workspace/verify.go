package workspace

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/maruel/pagetree/internal/model"
)

// Verify checks the structural invariants of the page tree:
//   - a page is listed by exactly one parent, or by the roots when it has
//     none, and its parent_id agrees;
//   - every listed child exists;
//   - no page is its own ancestor;
//   - every page under a database shows up as one of its rows.
//
// It is meant for tests and diagnostics.
func (s *Store) Verify() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	listed := make(map[string]string, len(s.pages))
	check := func(parentID string, ids []string) {
		for _, id := range ids {
			p, ok := s.pages[id]
			if !ok {
				errs = append(errs, fmt.Errorf("%q lists missing child %q", parentID, id))
				continue
			}
			if prev, dup := listed[id]; dup {
				errs = append(errs, fmt.Errorf("%q listed by %q and %q", id, prev, parentID))
				continue
			}
			listed[id] = parentID
			if p.ParentID != parentID {
				errs = append(errs, fmt.Errorf("%q has parent_id %q but is listed by %q", id, p.ParentID, parentID))
			}
		}
	}
	check("", s.roots)
	for _, id := range slices.Sorted(maps.Keys(s.pages)) {
		check(id, s.pages[id].Children)
	}
	for _, id := range slices.Sorted(maps.Keys(s.pages)) {
		p := s.pages[id]
		if p.ID != id {
			errs = append(errs, fmt.Errorf("%q stored under %q", p.ID, id))
		}
		if _, ok := listed[id]; !ok {
			errs = append(errs, fmt.Errorf("%q is not reachable", id))
		}
		if s.isAncestorLocked(id, p.ParentID) {
			errs = append(errs, fmt.Errorf("%q is its own ancestor", id))
		}
		if s.isRowLocked(p) {
			n := 0
			for _, r := range s.rowsLocked(s.pages[p.ParentID]) {
				if r.ID == id {
					n++
					if r.Properties[model.TitlePropertyID] != p.Title {
						errs = append(errs, fmt.Errorf("row %q title %q, page title %q", id, r.Properties[model.TitlePropertyID], p.Title))
					}
				}
			}
			if n != 1 {
				errs = append(errs, fmt.Errorf("page %q appears %d times in database %q", id, n, p.ParentID))
			}
		}
	}
	return errors.Join(errs...)
}
