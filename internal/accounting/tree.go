package accounting

import "sort"

// Tree is an arena view of the chart of accounts. Nodes reference each other
// by slice index, so traversal never follows object pointers.
type Tree struct {
	nodes    []Account
	index    map[int64]int
	byCode   map[string]int
	parent   []int
	children [][]int
	roots    []int
}

// NewTree builds an arena from a flat account list. Accounts whose parent is
// missing from the list are treated as roots.
func NewTree(accounts []Account) *Tree {
	t := &Tree{
		nodes:  make([]Account, len(accounts)),
		index:  make(map[int64]int, len(accounts)),
		byCode: make(map[string]int, len(accounts)),
		parent: make([]int, len(accounts)),
	}
	copy(t.nodes, accounts)
	sort.SliceStable(t.nodes, func(i, j int) bool {
		return CompareCodes(t.nodes[i].Code, t.nodes[j].Code) < 0
	})
	for i, node := range t.nodes {
		t.index[node.ID] = i
		t.byCode[node.Code] = i
	}
	t.children = make([][]int, len(t.nodes))
	for i, node := range t.nodes {
		t.parent[i] = -1
		if node.ParentID != nil {
			if p, ok := t.index[*node.ParentID]; ok && p != i {
				t.parent[i] = p
				t.children[p] = append(t.children[p], i)
				continue
			}
		}
		t.roots = append(t.roots, i)
	}
	return t
}

// Len returns the number of accounts.
func (t *Tree) Len() int { return len(t.nodes) }

// Get returns an account by id.
func (t *Tree) Get(id int64) (Account, bool) {
	i, ok := t.index[id]
	if !ok {
		return Account{}, false
	}
	return t.nodes[i], true
}

// ByCode returns an account by code.
func (t *Tree) ByCode(code string) (Account, bool) {
	i, ok := t.byCode[code]
	if !ok {
		return Account{}, false
	}
	return t.nodes[i], true
}

// Roots returns level-one accounts in code order.
func (t *Tree) Roots() []Account {
	return t.collect(t.roots)
}

// Children returns the direct children of an account in code order.
func (t *Tree) Children(id int64) []Account {
	i, ok := t.index[id]
	if !ok {
		return nil
	}
	return t.collect(t.children[i])
}

// Parent returns the parent of an account, if any.
func (t *Tree) Parent(id int64) (Account, bool) {
	i, ok := t.index[id]
	if !ok || t.parent[i] < 0 {
		return Account{}, false
	}
	return t.nodes[t.parent[i]], true
}

// Ancestors returns the chain from the direct parent up to the root.
func (t *Tree) Ancestors(id int64) []Account {
	i, ok := t.index[id]
	if !ok {
		return nil
	}
	var out []Account
	for p := t.parent[i]; p >= 0; p = t.parent[p] {
		out = append(out, t.nodes[p])
		if len(out) > len(t.nodes) {
			break
		}
	}
	return out
}

// IsDescendantOf reports whether a sits strictly below b.
func (t *Tree) IsDescendantOf(a, b int64) bool {
	i, ok := t.index[a]
	if !ok {
		return false
	}
	target, ok := t.index[b]
	if !ok {
		return false
	}
	steps := 0
	for p := t.parent[i]; p >= 0 && steps <= len(t.nodes); p = t.parent[p] {
		if p == target {
			return true
		}
		steps++
	}
	return false
}

// Descendants returns every account below id in depth-first code order.
func (t *Tree) Descendants(id int64) []Account {
	i, ok := t.index[id]
	if !ok {
		return nil
	}
	var out []Account
	var visit func(int)
	visit = func(n int) {
		for _, c := range t.children[n] {
			out = append(out, t.nodes[c])
			visit(c)
		}
	}
	visit(i)
	return out
}

// Walk visits every account depth-first in code order. Returning false from
// fn stops the walk.
func (t *Tree) Walk(fn func(acc Account, depth int) bool) {
	var visit func(n, depth int) bool
	visit = func(n, depth int) bool {
		if !fn(t.nodes[n], depth) {
			return false
		}
		for _, c := range t.children[n] {
			if !visit(c, depth+1) {
				return false
			}
		}
		return true
	}
	for _, r := range t.roots {
		if !visit(r, 0) {
			return
		}
	}
}

// Accounts returns all accounts in code order.
func (t *Tree) Accounts() []Account {
	out := make([]Account, len(t.nodes))
	copy(out, t.nodes)
	return out
}

func (t *Tree) collect(idx []int) []Account {
	out := make([]Account, 0, len(idx))
	for _, i := range idx {
		out = append(out, t.nodes[i])
	}
	return out
}
