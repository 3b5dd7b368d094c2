package hierarchy

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BartekS5/ida/pkg/models"
)

type rec struct{ cat, sub, subSub string }

func (r rec) CategoryTriplet() (string, string, string) { return r.cat, r.sub, r.subSub }

func flattenedByPath(t *testing.T, flat []FlattenedCategory) map[string]FlattenedCategory {
	t.Helper()
	out := make(map[string]FlattenedCategory, len(flat))
	for _, c := range flat {
		out[PathKey(c.Path)] = c
	}
	return out
}

func TestBuild_RootsSeededByOrder(t *testing.T) {
	tree, err := Build(
		[]RootConfig{
			{Name: "Windows", Type: "DETAIL", Order: 2, SourceID: "cfg-2"},
			{Name: "Roofing", Type: "deep_drill_down", Order: 1, SourceID: "cfg-1"},
			{Name: "Siding", Order: 3},
		},
		[]rec(nil),
	)
	require.NoError(t, err)

	roots := tree.Roots()
	require.Len(t, roots, 3)
	assert.Equal(t, "Roofing", tree.Node(roots[0]).Name)
	assert.Equal(t, models.CategoryDeepDrillDown, tree.Node(roots[0]).Type)
	assert.Equal(t, "cfg-1", tree.Node(roots[0]).SourceID)
	assert.Equal(t, "Windows", tree.Node(roots[1]).Name)
	assert.Equal(t, models.CategoryDetail, tree.Node(roots[1]).Type)
	assert.Equal(t, "Siding", tree.Node(roots[2]).Name)
	assert.Equal(t, models.CategoryDefault, tree.Node(roots[2]).Type)
}

func TestBuild_DiscoveredPathsMergeAndNest(t *testing.T) {
	records := []rec{
		{cat: "Roofing", sub: "Shingles", subSub: "Architectural > Premium"},
		{cat: "Roofing", sub: "Shingles", subSub: "Architectural > Premium"},
		{cat: "Roofing", sub: "Shingles", subSub: "Architectural>Standard"},
		{cat: "Gutters"},
		{cat: "Gutters", subSub: "ignored > without > sub"},
	}
	tree, err := Build([]RootConfig{{Name: "Roofing", Order: 1, SourceID: "cfg-roof"}}, records)
	require.NoError(t, err)

	flat := tree.Flatten()
	byPath := flattenedByPath(t, flat)
	assert.Len(t, flat, 6)
	assert.Contains(t, byPath, PathKey([]string{"Roofing", "Shingles", "Architectural", "Premium"}))
	assert.Contains(t, byPath, PathKey([]string{"Roofing", "Shingles", "Architectural", "Standard"}))

	gutters := byPath[PathKey([]string{"Gutters"})]
	assert.Equal(t, models.CategoryDefault, gutters.Type)
	assert.Empty(t, gutters.SourceID)
	assert.Equal(t, "cfg-roof", byPath[PathKey([]string{"Roofing"})].SourceID)
}

func TestBuild_SameNameDifferentParentsAreDistinct(t *testing.T) {
	records := []rec{
		{cat: "Roofing", sub: "Labor"},
		{cat: "Siding", sub: "Labor"},
		{cat: "Siding", sub: "Labor", subSub: "Labor"},
	}
	tree, err := Build([]RootConfig{}, records)
	require.NoError(t, err)
	assert.Equal(t, 5, tree.Len())

	a, ok := tree.Lookup([]string{"Roofing", "Labor"})
	require.True(t, ok)
	b, ok := tree.Lookup([]string{"Siding", "Labor"})
	require.True(t, ok)
	c, ok := tree.Lookup([]string{"Siding", "Labor", "Labor"})
	require.True(t, ok)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, b, c)
	assert.Equal(t, 2, tree.Node(c).Depth)
}

func TestBuild_SkipsBlankSegments(t *testing.T) {
	tree, err := Build([]RootConfig{{Name: "  "}}, []rec{
		{cat: "Roofing", sub: "Shingles", subSub: " >  > Premium > "},
		{cat: "   ", sub: "Orphan"},
		{cat: "Siding", sub: "  ", subSub: "Vinyl"},
	})
	require.NoError(t, err)

	flat := tree.Flatten()
	var paths []string
	for _, c := range flat {
		paths = append(paths, PathKey(c.Path))
	}
	assert.ElementsMatch(t, []string{
		PathKey([]string{"Roofing"}),
		PathKey([]string{"Roofing", "Shingles"}),
		PathKey([]string{"Roofing", "Shingles", "Premium"}),
		PathKey([]string{"Siding"}),
	}, paths)
}

func TestFlatten_HierarchyInvariant(t *testing.T) {
	tree, err := Build([]RootConfig{{Name: "A", Order: 1}, {Name: "B", Order: 0}}, []rec{
		{cat: "A", sub: "x", subSub: "y>z"},
		{cat: "B", sub: "q"},
		{cat: "C", sub: "r", subSub: "s"},
	})
	require.NoError(t, err)

	for _, c := range tree.Flatten() {
		require.Len(t, c.Path, c.Depth+1, "path of %s", c.Name)
		assert.Equal(t, c.Name, c.Path[len(c.Path)-1])
	}
}

func TestFlatten_PreOrderByKey(t *testing.T) {
	tree, err := Build([]RootConfig{{Name: "Second", Order: 2}, {Name: "First", Order: 1}}, []rec{
		{cat: "Second", sub: "b"},
		{cat: "First", sub: "a2"},
		{cat: "First", sub: "a1"},
		{cat: "Third"},
	})
	require.NoError(t, err)

	var names []string
	for _, c := range tree.Flatten() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"First", "a2", "a1", "Second", "b", "Third"}, names)
}

func TestSiblingKeysFollowDiscoveryOrder(t *testing.T) {
	var records []rec
	discovery := []string{"zeta", "alpha", "mid", "beta", "omega"}
	for i := 0; i < 80; i++ {
		records = append(records, rec{cat: "Root", sub: discovery[i%len(discovery)] + string(rune('a'+i/len(discovery)))})
	}
	tree, err := Build([]RootConfig{}, records)
	require.NoError(t, err)

	root, ok := tree.Lookup([]string{"Root"})
	require.True(t, ok)

	children := tree.Children(root)
	require.Len(t, children, 80)
	keys := make([]string, 0, len(children))
	seen := map[string]bool{}
	for i, idx := range children {
		n := tree.Node(idx)
		assert.Equal(t, records[i].sub, n.Name, "position %d", i)
		assert.False(t, seen[n.SortOrder], "duplicate key %s", n.SortOrder)
		seen[n.SortOrder] = true
		keys = append(keys, n.SortOrder)
	}
	assert.True(t, sort.StringsAreSorted(keys))
}

func TestPathOf(t *testing.T) {
	cases := []struct {
		name string
		in   rec
		want []string
	}{
		{"category only", rec{cat: "Roofing"}, []string{"Roofing"}},
		{"sub", rec{cat: "Roofing", sub: "Shingles"}, []string{"Roofing", "Shingles"}},
		{"deep", rec{cat: "Roofing", sub: "Shingles", subSub: " A > B>C "}, []string{"Roofing", "Shingles", "A", "B", "C"}},
		{"sub sub without sub", rec{cat: "Roofing", subSub: "A>B"}, []string{"Roofing"}},
		{"blank", rec{cat: " "}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PathOf(tc.in))
		})
	}
}

func TestCountUniquePaths(t *testing.T) {
	records := []rec{
		{cat: "Roofing", sub: "Shingles", subSub: "A>B"},
		{cat: "Roofing", sub: "Shingles", subSub: "A"},
		{cat: "Roofing", sub: "Flashing"},
		{cat: "Siding"},
		{cat: ""},
	}
	assert.Equal(t, 6, CountUniquePaths(records))

	tree, err := Build([]RootConfig{}, records)
	require.NoError(t, err)
	assert.Equal(t, tree.Len(), CountUniquePaths(records))
}

func TestTreePathWalksParents(t *testing.T) {
	tree, err := Build([]RootConfig{}, []rec{{cat: "a", sub: "b", subSub: "c>d"}})
	require.NoError(t, err)
	idx, ok := tree.Lookup([]string{"a", "b", "c", "d"})
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c", "d"}, tree.Path(idx))

	_, ok = tree.Lookup([]string{"a", "missing"})
	assert.False(t, ok)
}
