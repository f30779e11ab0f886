// Package blocktree stores the block forest of one page as an arena: a flat
// map from block ID to node, each node holding the ordered IDs of its
// children.
//
// Lookups are O(1) and structural operations never recurse over the nested
// form. The nested form is only materialized on read by Blocks and Get.
package blocktree

import (
	"cmp"
	"errors"
	"slices"

	"github.com/maruel/pagetree/internal/model"
)

var (
	// ErrNotFound is returned when a block ID is not in the forest.
	ErrNotFound = errors.New("block not found")
	// ErrExists is returned when inserting a block whose ID is already used.
	ErrExists = errors.New("block already exists")
	// ErrCycle is returned when moving a block under itself or one of its
	// descendants.
	ErrCycle = errors.New("block cannot be moved under itself")
)

type node struct {
	block    *model.Block // Children is always nil here.
	children []string
}

// Forest is the block tree of a single page. It is not safe for concurrent
// use.
type Forest struct {
	pageID string
	nodes  map[string]*node
	roots  []string
}

// New returns an empty forest for pageID.
func New(pageID string) *Forest {
	return &Forest{pageID: pageID, nodes: map[string]*node{}}
}

// FromNested builds a forest from nested blocks. ParentID and PageID are
// rewritten from the structure; blocks with an ID already seen are dropped.
func FromNested(pageID string, blocks []*model.Block) *Forest {
	f := New(pageID)
	for _, b := range blocks {
		_ = f.InsertTree(b, "", -1)
	}
	return f
}

// FromFlat rebuilds a forest from persisted blocks: blocks are grouped by
// parent and each group is ordered by Index, ties keeping input order.
//
// Blocks whose parent is missing, and blocks caught in a parent cycle, are
// attached at the top level so that nothing persisted is lost.
func FromFlat(pageID string, flat []*model.FlatBlock) *Forest {
	f := New(pageID)
	byParent := map[string][]*model.FlatBlock{}
	var order []*model.FlatBlock
	for _, fb := range flat {
		if fb == nil || fb.ID == "" {
			continue
		}
		if _, ok := f.nodes[fb.ID]; ok {
			continue
		}
		b := fb.Block()
		b.PageID = pageID
		f.nodes[fb.ID] = &node{block: b}
		order = append(order, fb)
	}
	for _, fb := range order {
		p := fb.ParentID
		if p == fb.ID {
			p = ""
		} else if _, ok := f.nodes[p]; !ok {
			p = ""
		}
		f.nodes[fb.ID].block.ParentID = p
		byParent[p] = append(byParent[p], fb)
	}
	for p, group := range byParent {
		slices.SortStableFunc(group, func(a, b *model.FlatBlock) int {
			return cmp.Compare(a.Index, b.Index)
		})
		ids := make([]string, len(group))
		for i, fb := range group {
			ids[i] = fb.ID
		}
		if p == "" {
			f.roots = ids
		} else {
			f.nodes[p].children = ids
		}
	}
	// Break cycles: anything not reachable from the roots is re-rooted.
	seen := make(map[string]struct{}, len(f.nodes))
	f.walk(f.roots, func(id string) { seen[id] = struct{}{} })
	for _, fb := range order {
		if _, ok := seen[fb.ID]; ok {
			continue
		}
		n := f.nodes[fb.ID]
		if parent, ok := f.nodes[n.block.ParentID]; ok {
			parent.children = deleteID(parent.children, fb.ID)
		}
		n.block.ParentID = ""
		f.roots = append(f.roots, fb.ID)
		f.walk([]string{fb.ID}, func(id string) { seen[id] = struct{}{} })
	}
	return f
}

// PageID returns the page owning the forest.
func (f *Forest) PageID() string {
	return f.pageID
}

// Len returns the number of blocks.
func (f *Forest) Len() int {
	return len(f.nodes)
}

// Has reports whether id is in the forest.
func (f *Forest) Has(id string) bool {
	_, ok := f.nodes[id]
	return ok
}

// Roots returns the IDs of the top level blocks.
func (f *Forest) Roots() []string {
	return slices.Clone(f.roots)
}

// ChildIDs returns the IDs of the children of id.
func (f *Forest) ChildIDs(id string) []string {
	if n, ok := f.nodes[id]; ok {
		return slices.Clone(n.children)
	}
	return nil
}

// Get returns a nested copy of the block and its subtree.
func (f *Forest) Get(id string) (*model.Block, bool) {
	if _, ok := f.nodes[id]; !ok {
		return nil, false
	}
	return f.nested(id), true
}

// Position returns the parent of id and its index among its siblings.
func (f *Forest) Position(id string) (parentID string, index int, ok bool) {
	n, ok := f.nodes[id]
	if !ok {
		return "", 0, false
	}
	return n.block.ParentID, slices.Index(f.siblings(n.block.ParentID), id), true
}

// Blocks returns a nested copy of the whole forest.
func (f *Forest) Blocks() []*model.Block {
	out := make([]*model.Block, 0, len(f.roots))
	for _, id := range f.roots {
		out = append(out, f.nested(id))
	}
	return out
}

// Flatten returns the persisted form of the forest in depth-first order, each
// block indexed by its position among its siblings.
func (f *Forest) Flatten() []*model.FlatBlock {
	out := make([]*model.FlatBlock, 0, len(f.nodes))
	var visit func(ids []string)
	visit = func(ids []string) {
		for i, id := range ids {
			n := f.nodes[id]
			out = append(out, n.block.Flat(i))
			visit(n.children)
		}
	}
	visit(f.roots)
	return out
}

// Insert adds a single block, without its children, under parentID at index.
// An index out of range appends. It returns the index actually used.
func (f *Forest) Insert(b *model.Block, parentID string, index int) (int, error) {
	if _, ok := f.nodes[b.ID]; ok {
		return 0, ErrExists
	}
	if parentID != "" {
		if _, ok := f.nodes[parentID]; !ok {
			return 0, ErrNotFound
		}
	}
	c := b.Clone()
	c.Children = nil
	c.ParentID = parentID
	c.PageID = f.pageID
	f.nodes[c.ID] = &node{block: c}
	return f.attach(c.ID, parentID, index), nil
}

// InsertTree adds b and its whole subtree under parentID at index. Nothing is
// inserted if any ID of the subtree is already used.
func (f *Forest) InsertTree(b *model.Block, parentID string, index int) error {
	if parentID != "" {
		if _, ok := f.nodes[parentID]; !ok {
			return ErrNotFound
		}
	}
	seen := map[string]struct{}{}
	var check func(b *model.Block) error
	check = func(b *model.Block) error {
		if _, ok := f.nodes[b.ID]; ok {
			return ErrExists
		}
		if _, ok := seen[b.ID]; ok {
			return ErrExists
		}
		seen[b.ID] = struct{}{}
		for _, c := range b.Children {
			if err := check(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := check(b); err != nil {
		return err
	}
	var add func(b *model.Block, parentID string)
	add = func(b *model.Block, parentID string) {
		c := b.Clone()
		c.Children = nil
		c.ParentID = parentID
		c.PageID = f.pageID
		n := &node{block: c}
		f.nodes[c.ID] = n
		for _, child := range b.Children {
			n.children = append(n.children, child.ID)
			add(child, c.ID)
		}
	}
	add(b, parentID)
	f.attach(b.ID, parentID, index)
	return nil
}

// Remove deletes id and its subtree. It returns the removed subtree and the
// position it occupied so that it can be restored with InsertTree.
func (f *Forest) Remove(id string) (removed *model.Block, parentID string, index int, err error) {
	n, ok := f.nodes[id]
	if !ok {
		return nil, "", 0, ErrNotFound
	}
	removed = f.nested(id)
	parentID = n.block.ParentID
	index = f.detach(id)
	f.walk([]string{id}, func(id string) { delete(f.nodes, id) })
	return removed, parentID, index, nil
}

// Move relocates id and its subtree under newParentID at index. An index out
// of range appends. It returns the index actually used.
func (f *Forest) Move(id, newParentID string, index int) (int, error) {
	n, ok := f.nodes[id]
	if !ok {
		return 0, ErrNotFound
	}
	if newParentID != "" {
		if _, ok := f.nodes[newParentID]; !ok {
			return 0, ErrNotFound
		}
		for p := newParentID; p != ""; p = f.nodes[p].block.ParentID {
			if p == id {
				return 0, ErrCycle
			}
		}
	}
	f.detach(id)
	n.block.ParentID = newParentID
	return f.attach(id, newParentID, index), nil
}

// Update calls fn on the block id. fn must not change the block ID or its
// position; Children is always nil when fn runs.
func (f *Forest) Update(id string, fn func(b *model.Block)) error {
	n, ok := f.nodes[id]
	if !ok {
		return ErrNotFound
	}
	bID, parentID := n.block.ID, n.block.ParentID
	fn(n.block)
	n.block.ID, n.block.ParentID, n.block.PageID, n.block.Children = bID, parentID, f.pageID, nil
	return nil
}

// Rename replaces the ID of a block in place, keeping its position and its
// children.
func (f *Forest) Rename(oldID, newID string) error {
	n, ok := f.nodes[oldID]
	if !ok {
		return ErrNotFound
	}
	if oldID == newID {
		return nil
	}
	if _, ok := f.nodes[newID]; ok {
		return ErrExists
	}
	delete(f.nodes, oldID)
	n.block.ID = newID
	f.nodes[newID] = n
	s := f.siblingsPtr(n.block.ParentID)
	if i := slices.Index(*s, oldID); i >= 0 {
		(*s)[i] = newID
	}
	for _, c := range n.children {
		f.nodes[c].block.ParentID = newID
	}
	return nil
}

func (f *Forest) nested(id string) *model.Block {
	n := f.nodes[id]
	b := n.block.Clone()
	if len(n.children) > 0 {
		b.Children = make([]*model.Block, 0, len(n.children))
		for _, c := range n.children {
			b.Children = append(b.Children, f.nested(c))
		}
	}
	return b
}

func (f *Forest) walk(ids []string, fn func(id string)) {
	for _, id := range ids {
		fn(id)
		f.walk(f.nodes[id].children, fn)
	}
}

func (f *Forest) siblings(parentID string) []string {
	return *f.siblingsPtr(parentID)
}

func (f *Forest) siblingsPtr(parentID string) *[]string {
	if parentID == "" {
		return &f.roots
	}
	return &f.nodes[parentID].children
}

// attach inserts id into the children of parentID and returns its index.
func (f *Forest) attach(id, parentID string, index int) int {
	s := f.siblingsPtr(parentID)
	if index < 0 || index > len(*s) {
		index = len(*s)
	}
	*s = slices.Insert(*s, index, id)
	return index
}

// detach removes id from the children of its parent and returns the index it
// had.
func (f *Forest) detach(id string) int {
	s := f.siblingsPtr(f.nodes[id].block.ParentID)
	i := slices.Index(*s, id)
	if i >= 0 {
		*s = slices.Delete(*s, i, i+1)
	}
	return i
}

func deleteID(ids []string, id string) []string {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(ids, i, i+1)
	}
	return ids
}
