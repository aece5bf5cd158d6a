package accounting

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func sampleTree() *Tree {
	return NewTree([]Account{
		{ID: 5, Code: "1.10", ParentID: ptr(1), Level: 2},
		{ID: 1, Code: "1", Level: 1},
		{ID: 2, Code: "1.2", ParentID: ptr(1), Level: 2},
		{ID: 3, Code: "1.2.1", ParentID: ptr(2), Level: 3},
		{ID: 4, Code: "2", Level: 1},
		{ID: 6, Code: "3.1", ParentID: ptr(99), Level: 2},
	})
}

func codes(accounts []Account) []string {
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.Code)
	}
	return out
}

func TestTreeOrderingAndLinks(t *testing.T) {
	tree := sampleTree()
	require.Equal(t, 6, tree.Len())

	if diff := cmp.Diff([]string{"1", "1.2", "1.2.1", "1.10", "2", "3.1"}, codes(tree.Accounts())); diff != "" {
		t.Fatalf("accounts order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"1", "2", "3.1"}, codes(tree.Roots())); diff != "" {
		t.Fatalf("roots mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"1.2", "1.10"}, codes(tree.Children(1)))
	assert.Empty(t, tree.Children(4))
	assert.Nil(t, tree.Children(42))

	parent, ok := tree.Parent(3)
	require.True(t, ok)
	assert.Equal(t, "1.2", parent.Code)
	_, ok = tree.Parent(1)
	assert.False(t, ok)

	acc, ok := tree.ByCode("1.10")
	require.True(t, ok)
	assert.Equal(t, int64(5), acc.ID)
}

func TestTreeAncestry(t *testing.T) {
	tree := sampleTree()

	assert.Equal(t, []string{"1.2", "1"}, codes(tree.Ancestors(3)))
	assert.True(t, tree.IsDescendantOf(3, 1))
	assert.True(t, tree.IsDescendantOf(3, 2))
	assert.False(t, tree.IsDescendantOf(1, 3))
	assert.False(t, tree.IsDescendantOf(1, 1))
	assert.False(t, tree.IsDescendantOf(4, 1))
	assert.False(t, tree.IsDescendantOf(42, 1))

	assert.Equal(t, []string{"1.2", "1.2.1", "1.10"}, codes(tree.Descendants(1)))
}

func TestTreeWalk(t *testing.T) {
	tree := sampleTree()
	var visited []string
	var depths []int
	tree.Walk(func(acc Account, depth int) bool {
		visited = append(visited, acc.Code)
		depths = append(depths, depth)
		return true
	})
	assert.Equal(t, []string{"1", "1.2", "1.2.1", "1.10", "2", "3.1"}, visited)
	assert.Equal(t, []int{0, 1, 2, 1, 0, 0}, depths)

	visited = nil
	tree.Walk(func(acc Account, _ int) bool {
		visited = append(visited, acc.Code)
		return acc.Code != "1.2"
	})
	assert.Equal(t, []string{"1", "1.2"}, visited)
}
