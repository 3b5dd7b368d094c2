// Package hierarchy rebuilds the category tree that the legacy store only
// encodes as per-item name paths.
package hierarchy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BartekS5/ida/pkg/models"
)

// RootConfig is a declared top level category.
type RootConfig struct {
	Name     string
	Type     string
	Order    float64
	SourceID string
}

// PathRecord is anything carrying a (category, subCategory, subSubCategories)
// triplet.
type PathRecord interface {
	CategoryTriplet() (category, subCategory, subSubCategories string)
}

// Node is one category in the arena. Parent is -1 for roots.
type Node struct {
	Name      string
	Type      string
	Depth     int
	SortOrder string
	SourceID  string
	Parent    int

	children map[string]int
	lastKey  string
}

// FlattenedCategory is the storage representation of a node.
type FlattenedCategory struct {
	Name      string
	Type      string
	SortOrder string
	Depth     int
	SourceID  string
	Path      []string
}

// Tree is an arena of category nodes indexed by position.
type Tree struct {
	nodes       []Node
	roots       map[string]int
	lastRootKey string
}

func newTree() *Tree {
	return &Tree{roots: map[string]int{}}
}

// Build seeds the declared roots by ascending Order and then walks every
// record's path, creating missing nodes. Names match exactly, per parent.
func Build[R PathRecord](roots []RootConfig, records []R) (*Tree, error) {
	t := newTree()

	seeded := append([]RootConfig(nil), roots...)
	sort.SliceStable(seeded, func(i, j int) bool { return seeded[i].Order < seeded[j].Order })
	for _, rc := range seeded {
		if strings.TrimSpace(rc.Name) == "" {
			continue
		}
		if _, ok := t.roots[rc.Name]; ok {
			continue
		}
		if _, err := t.addRoot(rc.Name, normalizeType(rc.Type), rc.SourceID); err != nil {
			return nil, err
		}
	}

	for _, r := range records {
		path := PathOf(r)
		if len(path) == 0 {
			continue
		}
		idx, ok := t.roots[path[0]]
		if !ok {
			var err error
			if idx, err = t.addRoot(path[0], models.CategoryDefault, ""); err != nil {
				return nil, err
			}
		}
		for _, name := range path[1:] {
			child, ok := t.nodes[idx].children[name]
			if !ok {
				var err error
				if child, err = t.addChild(idx, name); err != nil {
					return nil, err
				}
			}
			idx = child
		}
	}
	return t, nil
}

func (t *Tree) addRoot(name, typ, sourceID string) (int, error) {
	key, err := KeyAfter(t.lastRootKey)
	if err != nil {
		return -1, fmt.Errorf("root %q: %w", name, err)
	}
	t.lastRootKey = key
	t.nodes = append(t.nodes, Node{
		Name:      name,
		Type:      typ,
		SortOrder: key,
		SourceID:  sourceID,
		Parent:    -1,
		children:  map[string]int{},
	})
	idx := len(t.nodes) - 1
	t.roots[name] = idx
	return idx, nil
}

func (t *Tree) addChild(parent int, name string) (int, error) {
	key, err := KeyAfter(t.nodes[parent].lastKey)
	if err != nil {
		return -1, fmt.Errorf("category %q: %w", name, err)
	}
	t.nodes[parent].lastKey = key
	t.nodes = append(t.nodes, Node{
		Name:      name,
		Type:      models.CategoryDefault,
		Depth:     t.nodes[parent].Depth + 1,
		SortOrder: key,
		Parent:    parent,
		children:  map[string]int{},
	})
	idx := len(t.nodes) - 1
	t.nodes[parent].children[name] = idx
	return idx, nil
}

// Len is the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns a copy of node i.
func (t *Tree) Node(i int) Node { return t.nodes[i] }

// Roots returns root indexes in ascending key order.
func (t *Tree) Roots() []int {
	out := make([]int, 0, len(t.roots))
	for _, idx := range t.roots {
		out = append(out, idx)
	}
	t.sortByKey(out)
	return out
}

// Children returns child indexes of i in ascending key order.
func (t *Tree) Children(i int) []int {
	out := make([]int, 0, len(t.nodes[i].children))
	for _, idx := range t.nodes[i].children {
		out = append(out, idx)
	}
	t.sortByKey(out)
	return out
}

func (t *Tree) sortByKey(idx []int) {
	sort.Slice(idx, func(a, b int) bool { return t.nodes[idx[a]].SortOrder < t.nodes[idx[b]].SortOrder })
}

// Path is the ancestor chain of node i by name, root first.
func (t *Tree) Path(i int) []string {
	path := make([]string, t.nodes[i].Depth+1)
	for j := i; j >= 0; j = t.nodes[j].Parent {
		path[t.nodes[j].Depth] = t.nodes[j].Name
	}
	return path
}

// Lookup finds the node at path.
func (t *Tree) Lookup(path []string) (int, bool) {
	if len(path) == 0 {
		return -1, false
	}
	idx, ok := t.roots[path[0]]
	if !ok {
		return -1, false
	}
	for _, name := range path[1:] {
		if idx, ok = t.nodes[idx].children[name]; !ok {
			return -1, false
		}
	}
	return idx, true
}

// Flatten lists every node depth first, pre-order, siblings by key.
func (t *Tree) Flatten() []FlattenedCategory {
	out := make([]FlattenedCategory, 0, len(t.nodes))
	stack := t.Roots()
	// reverse so the smallest key is popped first
	for i, j := 0, len(stack)-1; i < j; i, j = i+1, j-1 {
		stack[i], stack[j] = stack[j], stack[i]
	}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := t.nodes[idx]
		out = append(out, FlattenedCategory{
			Name:      n.Name,
			Type:      n.Type,
			SortOrder: n.SortOrder,
			Depth:     n.Depth,
			SourceID:  n.SourceID,
			Path:      t.Path(idx),
		})
		children := t.Children(idx)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return out
}

// PathOf derives a record's category path without a tree: category, then
// subCategory, then each non-empty trimmed segment of subSubCategories.
// subSubCategories is ignored when subCategory is absent.
func PathOf(r PathRecord) []string {
	category, sub, subSub := r.CategoryTriplet()
	if strings.TrimSpace(category) == "" {
		return nil
	}
	path := []string{category}
	if strings.TrimSpace(sub) == "" {
		return path
	}
	path = append(path, sub)
	for _, seg := range strings.Split(subSub, ">") {
		if seg = strings.TrimSpace(seg); seg != "" {
			path = append(path, seg)
		}
	}
	return path
}

// CountUniquePaths counts distinct path prefixes across records; every
// ancestor counts once.
func CountUniquePaths[R PathRecord](records []R) int {
	seen := map[string]struct{}{}
	for _, r := range records {
		path := PathOf(r)
		for i := range path {
			seen[PathKey(path[:i+1])] = struct{}{}
		}
	}
	return len(seen)
}

// PathKey is a map key for a path; the separator cannot appear in names
// read from the legacy store.
func PathKey(path []string) string {
	return strings.Join(path, "\x1f")
}

func normalizeType(t string) string {
	switch strings.ToUpper(strings.TrimSpace(t)) {
	case models.CategoryDetail:
		return models.CategoryDetail
	case models.CategoryDeepDrillDown:
		return models.CategoryDeepDrillDown
	}
	return models.CategoryDefault
}
