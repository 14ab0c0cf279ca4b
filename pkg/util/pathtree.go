package util

type (
	// PathTree indexes values by hierarchical string paths, so that whole
	// subtrees (every timeout of a flow, say) can be removed in one call
	PathTree[T any] struct {
		root *pathNode[T]
	}

	pathNode[T any] struct {
		children map[string]*pathNode[T]
		value    T
		hasValue bool
	}
)

// NewPathTree creates an empty path index
func NewPathTree[T any]() *PathTree[T] {
	return &PathTree[T]{root: newPathNode[T]()}
}

// Insert stores a value at the exact path, replacing any previous value
func (t *PathTree[T]) Insert(path []string, v T) {
	cur := t.root
	for _, p := range path {
		next, ok := cur.children[p]
		if !ok {
			next = newPathNode[T]()
			cur.children[p] = next
		}
		cur = next
	}
	cur.value = v
	cur.hasValue = true
}

// Get returns the value stored at the exact path
func (t *PathTree[T]) Get(path []string) (T, bool) {
	cur := t.root
	for _, p := range path {
		next, ok := cur.children[p]
		if !ok {
			var zero T
			return zero, false
		}
		cur = next
	}
	return cur.value, cur.hasValue
}

// Remove clears the value at the exact path and prunes empty branches
func (t *PathTree[T]) Remove(path []string) {
	t.root.remove(path)
}

// Detach removes the subtree under prefix and returns all of its values
func (t *PathTree[T]) Detach(prefix []string) []T {
	if len(prefix) == 0 {
		vals := t.root.values(nil)
		t.root = newPathNode[T]()
		return vals
	}
	parent := t.root
	for _, p := range prefix[:len(prefix)-1] {
		next, ok := parent.children[p]
		if !ok {
			return nil
		}
		parent = next
	}
	last := prefix[len(prefix)-1]
	n, ok := parent.children[last]
	if !ok {
		return nil
	}
	delete(parent.children, last)
	return n.values(nil)
}

func newPathNode[T any]() *pathNode[T] {
	return &pathNode[T]{children: map[string]*pathNode[T]{}}
}

// remove reports whether the node became empty and can be pruned
func (n *pathNode[T]) remove(path []string) bool {
	if len(path) == 0 {
		var zero T
		n.value = zero
		n.hasValue = false
		return len(n.children) == 0
	}
	next, ok := n.children[path[0]]
	if !ok {
		return false
	}
	if next.remove(path[1:]) {
		delete(n.children, path[0])
	}
	return !n.hasValue && len(n.children) == 0
}

func (n *pathNode[T]) values(res []T) []T {
	if n.hasValue {
		res = append(res, n.value)
	}
	for _, child := range n.children {
		res = child.values(res)
	}
	return res
}
