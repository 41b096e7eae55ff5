package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xabbuh/studip-experience-api-plugin/internal/document"
	"github.com/xabbuh/studip-experience-api-plugin/internal/xapi"
)

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	Voided bool
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <statement-id>",
		Short: "Load one statement by id",
		Long: `Load a top-level statement by id.

Voiding statements are only returned with --voided, and --voided
returns nothing else.

Exit codes:
  0 - Statement found
  1 - Store error
  2 - Malformed id or command error
  3 - No such statement

Examples:
  lrs get 6690e6c9-3ef0-4ed3-8b37-7f3964730bee
  lrs get 6690e6c9-3ef0-4ed3-8b37-7f3964730bee --voided --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Voided, "voided", false, "look up a voiding statement")

	return cmd
}

func runGet(opts *GetOptions, rawID string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := opts.formatter(cmd)

	st, err := opts.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(st, opts.Logger)

	repo := st.Repository(opts.Config.LRSID)
	id := xapi.StatementID(rawID)

	var stmt xapi.Statement
	if opts.Voided {
		stmt, err = repo.FindVoidedByID(ctx, id)
	} else {
		stmt, err = repo.FindByID(ctx, id)
	}
	if err != nil {
		return formatter.Fail("failed to load statement", err)
	}

	doc := document.FromModel(stmt)
	if opts.Format == "json" {
		return formatter.Success(doc)
	}
	return writeYAML(formatter.Writer, []document.Statement{doc})
}

// writeYAML prints statements as a YAML stream, one document each.
func writeYAML(w io.Writer, docs []document.Statement) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for _, doc := range docs {
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode statement %s: %w", doc.ID, err)
		}
	}
	return enc.Close()
}
