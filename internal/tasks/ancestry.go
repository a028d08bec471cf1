package tasks

// Index answers ancestry questions over one snapshot of tasks. It is built once
// (id lookup plus parent->children adjacency) so repeated queries stay linear.
type Index struct {
	byID     map[string]Task
	children map[string][]string
}

func NewIndex(tasks []Task) *Index {
	idx := &Index{
		byID:     make(map[string]Task, len(tasks)),
		children: make(map[string][]string),
	}
	for _, t := range tasks {
		if _, dup := idx.byID[t.ID]; dup {
			continue
		}
		idx.byID[t.ID] = t
		if t.ParentID != nil {
			idx.children[*t.ParentID] = append(idx.children[*t.ParentID], t.ID)
		}
	}
	return idx
}

func (idx *Index) Get(id string) (Task, bool) {
	t, ok := idx.byID[id]
	return t, ok
}

// Children returns the direct children of id in snapshot order.
func (idx *Index) Children(id string) []Task {
	ids := idx.children[id]
	out := make([]Task, 0, len(ids))
	for _, cid := range ids {
		out = append(out, idx.byID[cid])
	}
	return out
}

// Descendants returns every task below id: its direct children first, then each
// child's own descendants in turn. id itself is never included, even on a cycle.
func (idx *Index) Descendants(id string) []Task {
	out := []Task{}
	seen := map[string]bool{id: true}
	var walk func(pid string)
	walk = func(pid string) {
		var next []string
		for _, cid := range idx.children[pid] {
			if seen[cid] {
				continue
			}
			seen[cid] = true
			out = append(out, idx.byID[cid])
			next = append(next, cid)
		}
		for _, cid := range next {
			walk(cid)
		}
	}
	walk(id)
	return out
}

// Ancestors walks parent links upward, nearest first. The walk stops at a root or
// at a parent id missing from the snapshot. Revisiting an id fails with *CycleError.
func (idx *Index) Ancestors(id string) ([]Task, error) {
	out := []Task{}
	cur, ok := idx.byID[id]
	if !ok {
		return out, nil
	}
	visited := map[string]bool{id: true}
	for cur.ParentID != nil {
		pid := *cur.ParentID
		if visited[pid] {
			return nil, &CycleError{ID: pid}
		}
		parent, ok := idx.byID[pid]
		if !ok {
			break
		}
		visited[pid] = true
		out = append(out, parent)
		cur = parent
	}
	return out, nil
}

// Depth is the number of ancestors; roots have depth 0.
func (idx *Index) Depth(id string) (int, error) {
	a, err := idx.Ancestors(id)
	if err != nil {
		return 0, err
	}
	return len(a), nil
}

// Descendants is the one-shot form of Index.Descendants.
func Descendants(tasks []Task, id string) []Task {
	return NewIndex(tasks).Descendants(id)
}

func Ancestors(tasks []Task, id string) ([]Task, error) {
	return NewIndex(tasks).Ancestors(id)
}

func Depth(tasks []Task, id string) (int, error) {
	return NewIndex(tasks).Depth(id)
}
