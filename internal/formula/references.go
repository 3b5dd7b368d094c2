// Package formula works on the legacy quantity formula language: bracketed
// references to other items such as "[width] * [height] / 144".
// Formulas are never evaluated here.
package formula

import (
	"regexp"
	"strings"
)

var (
	referencePattern   = regexp.MustCompile(`\[([^\]]+)\]`)
	consecutiveOpRegex = regexp.MustCompile(`[+\-*/]\s*[+\-*/]`)
)

// Syntax error messages, in the order they are checked.
const (
	MsgEmpty               = "empty"
	MsgUnmatchedClosing    = "unmatched closing bracket"
	MsgUnmatchedOpening    = "unmatched opening bracket"
	MsgEmptyReference      = "empty bracket reference"
	MsgConsecutiveOperator = "consecutive operators"
)

// ExtractReferences returns the unique referenced identifiers in first-seen
// order.
func ExtractReferences(formula string) []string {
	matches := referencePattern.FindAllStringSubmatch(formula, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		refs = append(refs, m[1])
	}
	return refs
}

// TransformResult is the rewritten formula plus every reference that had no
// mapping, once per occurrence.
type TransformResult struct {
	Formula        string
	UnresolvedRefs []string
}

// Transform rewrites each [id] whose id is a key of idMap to [idMap[id]].
// Unmapped references are left as they are.
func Transform(formula string, idMap map[string]string) TransformResult {
	var unresolved []string
	out := referencePattern.ReplaceAllStringFunc(formula, func(match string) string {
		id := match[1 : len(match)-1]
		if newID, ok := idMap[id]; ok {
			return "[" + newID + "]"
		}
		unresolved = append(unresolved, id)
		return match
	})
	return TransformResult{Formula: out, UnresolvedRefs: unresolved}
}

// SyntaxResult reports whether a formula passed the structural checks.
type SyntaxResult struct {
	Valid bool
	Error string
}

// ValidateSyntax runs the structural checks. Brackets are only balance
// checked, so a nested balanced form like "[a + [b]]" is accepted.
func ValidateSyntax(formula string) SyntaxResult {
	if strings.TrimSpace(formula) == "" {
		return SyntaxResult{Error: MsgEmpty}
	}
	depth := 0
	for _, r := range formula {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				return SyntaxResult{Error: MsgUnmatchedClosing}
			}
		}
	}
	if depth != 0 {
		return SyntaxResult{Error: MsgUnmatchedOpening}
	}
	if strings.Contains(formula, "[]") {
		return SyntaxResult{Error: MsgEmptyReference}
	}
	if consecutiveOpRegex.MatchString(formula) {
		return SyntaxResult{Error: MsgConsecutiveOperator}
	}
	return SyntaxResult{Valid: true}
}

// ImportedItem is what the id mapping needs to know about a persisted item.
type ImportedItem struct {
	ID        string
	SourceID  string
	FormulaID string
}

// BuildIDMapping maps both the legacy formula id and the legacy source id of
// every item to its new id. Later items win on key collisions.
func BuildIDMapping(items []ImportedItem) map[string]string {
	m := make(map[string]string, len(items)*2)
	for _, it := range items {
		if it.FormulaID != "" {
			m[it.FormulaID] = it.ID
		}
		if it.SourceID != "" {
			m[it.SourceID] = it.ID
		}
	}
	return m
}
