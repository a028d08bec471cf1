package tasks

// BuildTree turns a flat, unordered task list into a forest.
//
// Roots keep their input order, and so do the children of each node. A task whose parent
// is missing from the input is not dropped. It becomes a synthetic root marked Detached.
// Tasks caught in a parent cycle are unreachable from any root. The first of them in
// input order is detached the same way and its cycle edge is cut. So Flatten(BuildTree(x))
// always returns every task of x exactly once. When an id repeats, the first record wins.
func BuildTree(tasks []Task) []*TaskTree {
	nodes := make(map[string]*TaskTree, len(tasks))
	order := make([]*TaskTree, 0, len(tasks))
	for _, t := range tasks {
		if _, dup := nodes[t.ID]; dup {
			continue
		}
		n := &TaskTree{Task: t, Children: []*TaskTree{}}
		nodes[t.ID] = n
		order = append(order, n)
	}

	var roots []*TaskTree
	for _, n := range order {
		if n.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		parent, ok := nodes[*n.ParentID]
		if !ok || parent == n {
			n.Detached = true
			roots = append(roots, n)
			continue
		}
		parent.Children = append(parent.Children, n)
	}

	// everything reachable from a root is settled; the rest sits on a cycle
	seen := make(map[*TaskTree]bool, len(order))
	for _, r := range roots {
		markReachable(r, seen)
	}
	if len(seen) == len(order) {
		return nonNil(roots)
	}
	for _, n := range order {
		if seen[n] {
			continue
		}
		if parent := nodes[*n.ParentID]; parent != nil {
			parent.Children = removeChild(parent.Children, n)
		}
		n.Detached = true
		roots = append(roots, n)
		markReachable(n, seen)
	}
	return nonNil(roots)
}

func markReachable(root *TaskTree, seen map[*TaskTree]bool) {
	stack := []*TaskTree{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, n.Children...)
	}
}

func removeChild(children []*TaskTree, target *TaskTree) []*TaskTree {
	for i, c := range children {
		if c == target {
			return append(children[:i], children[i+1:]...)
		}
	}
	return children
}

func nonNil(roots []*TaskTree) []*TaskTree {
	if roots == nil {
		return []*TaskTree{}
	}
	return roots
}

// Flatten walks a forest in pre-order and returns the tasks without their children.
func Flatten(forest []*TaskTree) []Task {
	var out []Task
	var walk func(n *TaskTree)
	walk = func(n *TaskTree) {
		out = append(out, n.Task)
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, r := range forest {
		walk(r)
	}
	return out
}
