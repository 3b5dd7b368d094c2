package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BartekS5/ida/internal/formula"
	"github.com/BartekS5/ida/pkg/models"
)

type formulaIssue struct {
	SourceID string `json:"sourceId"`
	Detail   string `json:"detail"`
}

type formulaReport struct {
	Items        int            `json:"items"`
	SyntaxErrors []formulaIssue `json:"syntaxErrors"`
	Unresolved   []formulaIssue `json:"unresolved"`
	Cycles       [][]string     `json:"cycles"`
}

// formulaItems is the graph view of stored items. Items whose formula was
// not rewritten yet are checked on their legacy text.
func formulaItems(rows []models.ItemFormula) ([]formula.Item, map[string]string) {
	items := make([]formula.Item, 0, len(rows))
	sourceOf := make(map[string]string, len(rows))
	for _, r := range rows {
		f := models.Deref(r.Formula)
		if r.Formula == nil {
			f = models.Deref(r.LegacyFormula)
		}
		items = append(items, formula.Item{ID: r.ID, Formula: f})
		sourceOf[r.ID] = r.SourceID
	}
	return items, sourceOf
}

func buildFormulaReport(rows []models.ItemFormula) formulaReport {
	items, sourceOf := formulaItems(rows)
	rep := formula.Analyze(items)

	out := formulaReport{
		Items:        len(items),
		SyntaxErrors: []formulaIssue{},
		Unresolved:   []formulaIssue{},
		Cycles:       [][]string{},
	}
	for _, i := range rep.SyntaxErrors {
		out.SyntaxErrors = append(out.SyntaxErrors, formulaIssue{SourceID: sourceOf[i.ItemID], Detail: i.Detail})
	}
	for _, i := range rep.Unresolved {
		out.Unresolved = append(out.Unresolved, formulaIssue{SourceID: sourceOf[i.ItemID], Detail: i.Detail})
	}
	for _, c := range rep.Cycles {
		path := make([]string, len(c.Path))
		for i, id := range c.Path {
			path[i] = sourceOf[id]
		}
		out.Cycles = append(out.Cycles, path)
	}
	return out
}

// dependentsOf resolves target by row id or source id and lists the source
// ids of every item that depends on it.
func dependentsOf(rows []models.ItemFormula, target string) ([]string, error) {
	items, sourceOf := formulaItems(rows)
	id := ""
	for _, r := range rows {
		if r.ID == target || r.SourceID == target {
			id = r.ID
			break
		}
	}
	if id == "" {
		return nil, withCode(exitValidation, fmt.Errorf("item %s not found", target))
	}
	deps := formula.Dependents(id, items)
	out := make([]string, len(deps))
	for i, d := range deps {
		out[i] = sourceOf[d]
	}
	return out, nil
}

func newFormulaCmd() *cobra.Command {
	var company string
	cmd := &cobra.Command{
		Use:   "formula",
		Short: "Inspect the quantity formulas of imported items",
	}
	cmd.PersistentFlags().StringVar(&company, "company", "", "Target company id (required)")
	_ = cmd.MarkPersistentFlagRequired("company")

	check := &cobra.Command{
		Use:   "check",
		Short: "Report syntax errors, unresolved references and circular chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(false)
			if err != nil {
				return err
			}
			defer a.close()

			rows, err := a.itemFormulas(cmd.Context(), company)
			if err != nil {
				return err
			}
			rep := buildFormulaReport(rows)
			if err := writeJSON(cmd.OutOrStdout(), rep); err != nil {
				return err
			}
			if len(rep.SyntaxErrors)+len(rep.Unresolved)+len(rep.Cycles) > 0 {
				return withCode(exitValidation, fmt.Errorf("formula check found problems"))
			}
			return nil
		},
	}

	dependents := &cobra.Command{
		Use:   "dependents <item>",
		Short: "List the items whose formulas depend on an item, nearest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(false)
			if err != nil {
				return err
			}
			defer a.close()

			rows, err := a.itemFormulas(cmd.Context(), company)
			if err != nil {
				return err
			}
			deps, err := dependentsOf(rows, args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), deps)
		},
	}

	cmd.AddCommand(check, dependents)
	return cmd
}
