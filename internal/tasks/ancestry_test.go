package tasks

import (
	"errors"
	"testing"
)

func chainABC() []Task {
	return []Task{
		makeTask("A", nil),
		makeTask("B", ptr("A")),
		makeTask("C", ptr("B")),
	}
}

func TestDescendantsOfRoot(t *testing.T) {
	equalIDs(t, Descendants(chainABC(), "A"), "B", "C")
}

func TestAncestorsNearestFirst(t *testing.T) {
	got, err := Ancestors(chainABC(), "C")
	if err != nil {
		t.Fatalf("Ancestors failed: %v", err)
	}
	equalIDs(t, got, "B", "A")
}

func TestAncestorsOfRootIsEmpty(t *testing.T) {
	got, err := Ancestors(chainABC(), "A")
	if err != nil {
		t.Fatalf("Ancestors failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestAncestorsUnknownID(t *testing.T) {
	got, err := Ancestors(chainABC(), "nope")
	if err != nil || len(got) != 0 {
		t.Fatalf("expected no ancestors and no error, got %v, %v", got, err)
	}
}

func TestAncestorsStopsAtMissingParent(t *testing.T) {
	flat := []Task{
		makeTask("B", ptr("gone")),
		makeTask("C", ptr("B")),
	}
	got, err := Ancestors(flat, "C")
	if err != nil {
		t.Fatalf("Ancestors failed: %v", err)
	}
	equalIDs(t, got, "B")
}

func TestAncestorsDetectsCycle(t *testing.T) {
	flat := []Task{
		makeTask("x", ptr("y")),
		makeTask("y", ptr("z")),
		makeTask("z", ptr("x")),
	}
	_, err := Ancestors(flat, "x")
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
	var ce *CycleError
	if !errors.As(err, &ce) || ce.ID != "x" {
		t.Fatalf("expected cycle at x, got %v", err)
	}
}

func TestDescendantsTerminatesOnCycle(t *testing.T) {
	flat := []Task{
		makeTask("x", ptr("y")),
		makeTask("y", ptr("x")),
	}
	got := Descendants(flat, "x")
	equalIDs(t, got, "y")
}

func TestDepthMatchesAncestorCount(t *testing.T) {
	flat := chainABC()
	flat = append(flat, makeTask("D", ptr("C")), makeTask("E", ptr("A")))
	idx := NewIndex(flat)
	for _, task := range flat {
		d, err := idx.Depth(task.ID)
		if err != nil {
			t.Fatalf("Depth(%s) failed: %v", task.ID, err)
		}
		a, _ := idx.Ancestors(task.ID)
		if d != len(a) {
			t.Fatalf("Depth(%s)=%d, ancestors=%d", task.ID, d, len(a))
		}
		// every descendant of an ancestor includes task
		for _, anc := range a {
			found := false
			for _, desc := range idx.Descendants(anc.ID) {
				if desc.ID == task.ID {
					found = true
				}
			}
			if !found {
				t.Fatalf("%s missing from descendants of %s", task.ID, anc.ID)
			}
		}
	}
	if d, _ := Depth(flat, "D"); d != 3 {
		t.Fatalf("expected depth 3 for D, got %d", d)
	}
}

func TestIndexChildren(t *testing.T) {
	idx := NewIndex(append(chainABC(), makeTask("B2", ptr("A"))))
	equalIDs(t, idx.Children("A"), "B", "B2")
	if got := idx.Children("C"); len(got) != 0 {
		t.Fatalf("leaf should have no children, got %v", ids(got))
	}
}
