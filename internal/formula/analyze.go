package formula

// Issue is a per-item finding.
type Issue struct {
	ItemID string
	Detail string
}

// Report is the result of a validation pass over a company's items.
type Report struct {
	SyntaxErrors []Issue
	Unresolved   []Issue
	Cycles       []Cycle
}

// Clean is true when nothing was found.
func (r Report) Clean() bool {
	return len(r.SyntaxErrors) == 0 && len(r.Unresolved) == 0 && len(r.Cycles) == 0
}

// Analyze checks syntax of every non-empty formula, flags references that do
// not point at a known item id and runs cycle detection.
func Analyze(items []Item) Report {
	known := make(map[string]struct{}, len(items))
	for _, it := range items {
		known[it.ID] = struct{}{}
	}

	var r Report
	for _, it := range items {
		if it.Formula == "" {
			continue
		}
		if res := ValidateSyntax(it.Formula); !res.Valid {
			r.SyntaxErrors = append(r.SyntaxErrors, Issue{ItemID: it.ID, Detail: res.Error})
		}
		for _, ref := range ExtractReferences(it.Formula) {
			if _, ok := known[ref]; !ok {
				r.Unresolved = append(r.Unresolved, Issue{ItemID: it.ID, Detail: ref})
			}
		}
	}
	r.Cycles = DetectCircularDependencies(items)
	return r
}
