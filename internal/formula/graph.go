package formula

// Item is the formula-bearing view of a persisted item. Formula holds the
// already rewritten formula; an empty Formula contributes no edges.
type Item struct {
	ID      string
	Formula string
}

// Cycle is a circular reference chain. Path starts and ends at the same
// item; ItemID is where the back edge was found.
type Cycle struct {
	ItemID string
	Path   []string
}

func adjacency(items []Item) (map[string][]string, []string) {
	order := make([]string, 0, len(items))
	present := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, ok := present[it.ID]; !ok {
			order = append(order, it.ID)
		}
		present[it.ID] = struct{}{}
	}
	adj := make(map[string][]string, len(items))
	for _, it := range items {
		if it.Formula == "" {
			continue
		}
		for _, ref := range ExtractReferences(it.Formula) {
			if _, ok := present[ref]; ok {
				adj[it.ID] = append(adj[it.ID], ref)
			}
		}
	}
	return adj, order
}

type frame struct {
	id   string
	next int
}

// DetectCircularDependencies walks the reference graph depth first without
// recursion and reports every back edge as a cycle. References to ids that
// are not in items are ignored.
func DetectCircularDependencies(items []Item) []Cycle {
	adj, order := adjacency(items)

	var cycles []Cycle
	done := make(map[string]bool, len(order))
	onStack := make(map[string]int, len(order))

	for _, start := range order {
		if done[start] {
			continue
		}
		stack := []frame{{id: start}}
		onStack[start] = 0
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			edges := adj[top.id]
			if top.next >= len(edges) {
				delete(onStack, top.id)
				done[top.id] = true
				stack = stack[:len(stack)-1]
				continue
			}
			ref := edges[top.next]
			top.next++

			if pos, ok := onStack[ref]; ok {
				path := make([]string, 0, len(stack)-pos+1)
				for _, f := range stack[pos:] {
					path = append(path, f.id)
				}
				path = append(path, ref)
				cycles = append(cycles, Cycle{ItemID: top.id, Path: path})
				continue
			}
			if done[ref] {
				continue
			}
			onStack[ref] = len(stack)
			stack = append(stack, frame{id: ref})
		}
	}
	return cycles
}

// Dependents returns every item that directly or transitively references
// target, nearest first. target itself is never included.
func Dependents(target string, items []Item) []string {
	adj, order := adjacency(items)
	reverse := make(map[string][]string, len(adj))
	for _, id := range order {
		for _, ref := range adj[id] {
			reverse[ref] = append(reverse[ref], id)
		}
	}

	visited := map[string]bool{target: true}
	queue := []string{target}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range reverse[cur] {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			out = append(out, dep)
			queue = append(queue, dep)
		}
	}
	return out
}
