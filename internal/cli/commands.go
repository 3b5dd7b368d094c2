package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BartekS5/ida/internal/etl"
	"github.com/BartekS5/ida/pkg/logger"
	"github.com/BartekS5/ida/pkg/models"
)

func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Target schema operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "apply",
		Short: "Create the target tables that do not exist yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(false)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.EnsureSchema(cmd.Context()); err != nil {
				return withCode(exitDBWrite, err)
			}
			logger.Info("Schema is up to date.")
			return nil
		},
	})
	return cmd
}

type createSessionOptions struct {
	req   etl.CreateSessionRequest
	types []string
}

// parseTypes turns --types values (repeated or comma separated) into
// entity types.
func parseTypes(values []string) ([]models.EntityType, error) {
	var out []models.EntityType
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			t, err := models.ParseEntityType(part)
			if err != nil {
				return nil, withCode(exitUsage, err)
			}
			out = append(out, t)
		}
	}
	return out, nil
}

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Create and inspect migration sessions",
	}

	var opts createSessionOptions
	create := &cobra.Command{
		Use:   "create",
		Short: "Count the legacy records and create a PENDING session",
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := parseTypes(opts.types)
			if err != nil {
				return err
			}
			opts.req.EntityTypes = types
			if opts.req.SourceCompanyID == "" && opts.req.SourceEmail == "" {
				return withCode(exitUsage, fmt.Errorf("one of --source-company or --source-email is required"))
			}

			a, err := openApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.engine.CreateSession(cmd.Context(), opts.req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), s)
		},
	}
	create.Flags().StringVar(&opts.req.CompanyID, "company", "", "Target company id (required)")
	create.Flags().StringVar(&opts.req.CreatedBy, "created-by", "", "User recorded as the session creator (required)")
	create.Flags().StringVar(&opts.req.SourceCompanyID, "source-company", "", "Legacy company id")
	create.Flags().StringVar(&opts.req.SourceEmail, "source-email", "", "Email of a legacy user, used to find the legacy company")
	create.Flags().StringSliceVar(&opts.types, "types", nil, "Entity types: categories, options, upcharges, items (default all)")
	_ = create.MarkFlagRequired("company")
	_ = create.MarkFlagRequired("created-by")

	show := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(false)
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.engine.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), s)
		},
	}

	var company string
	list := &cobra.Command{
		Use:   "list",
		Short: "List a company's sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(false)
			if err != nil {
				return err
			}
			defer a.close()

			sessions, err := a.store.ListSessions(cmd.Context(), company)
			if err != nil {
				return withCode(exitDB, err)
			}
			return writeJSON(cmd.OutOrStdout(), sessions)
		},
	}
	list.Flags().StringVar(&company, "company", "", "Target company id (required)")
	_ = list.MarkFlagRequired("company")

	cmd.AddCommand(create, show, list)
	return cmd
}
