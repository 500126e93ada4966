package core

// DisjointSet is a union-find structure with path compression and union by rank.
// Find is iterative so deep chains cannot exhaust the stack.
type DisjointSet[T comparable] struct {
	parent map[T]T
	rank   map[T]int
}

func NewDisjointSet[T comparable](items []T) *DisjointSet[T] {
	d := &DisjointSet[T]{
		parent: make(map[T]T, len(items)),
		rank:   make(map[T]int, len(items)),
	}
	for _, it := range items {
		d.parent[it] = it
	}
	return d
}

// Find returns the representative of x's set. Unknown items become singleton sets.
func (d *DisjointSet[T]) Find(x T) T {
	if _, ok := d.parent[x]; !ok {
		d.parent[x] = x
		return x
	}
	root := x
	for d.parent[root] != root {
		root = d.parent[root]
	}
	for d.parent[x] != root {
		next := d.parent[x]
		d.parent[x] = root
		x = next
	}
	return root
}

// Union merges the sets of a and b, returning false if they were already the same set.
func (d *DisjointSet[T]) Union(a, b T) bool {
	ra, rb := d.Find(a), d.Find(b)
	if ra == rb {
		return false
	}
	switch {
	case d.rank[ra] < d.rank[rb]:
		d.parent[ra] = rb
	case d.rank[ra] > d.rank[rb]:
		d.parent[rb] = ra
	default:
		d.parent[rb] = ra
		d.rank[ra]++
	}
	return true
}

func (d *DisjointSet[T]) Connected(a, b T) bool {
	return d.Find(a) == d.Find(b)
}
