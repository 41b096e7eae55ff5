package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xabbuh/studip-experience-api-plugin/internal/document"
)

// FindOptions holds flags for the find command.
type FindOptions struct {
	*RootOptions
	Filters []string // key=value pairs
}

// FindResult is the data reported by the find command in JSON mode.
type FindResult struct {
	Count      int                  `json:"count"`
	Statements []document.Statement `json:"statements"`
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FindOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find",
		Short: "Query statements with xAPI filter parameters",
		Long: `Find top-level statements matching xAPI filter parameters.

Supported keys: statementId, verb, activity, agent (JSON), since, until,
limit, ascending. Other xAPI parameters fail as unsupported.

Examples:
  lrs find --filter verb=http://adlnet.gov/expapi/verbs/completed
  lrs find --filter 'agent={"mbox":"mailto:a@example.com"}' --filter limit=10
  lrs find --filter since=2024-01-01T00:00:00Z --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(opts, cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Filters, "filter", "f", nil, "filter parameter as key=value (repeatable)")

	return cmd
}

func runFind(opts *FindOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := opts.formatter(cmd)

	params, err := parseFilterFlags(opts.Filters)
	if err != nil {
		if outErr := formatter.Error(ErrCodeGeneric, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "invalid filter flag", err)
	}

	st, err := opts.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(st, opts.Logger)

	statements, err := st.Repository(opts.Config.LRSID).FindByParams(ctx, params)
	if err != nil {
		return formatter.Fail("failed to find statements", err)
	}

	docs := make([]document.Statement, len(statements))
	for i, stmt := range statements {
		docs[i] = document.FromModel(stmt)
	}
	formatter.VerboseLog("%d statements matched", len(docs))

	if opts.Format == "json" {
		return formatter.Success(FindResult{Count: len(docs), Statements: docs})
	}
	return writeYAML(formatter.Writer, docs)
}

// parseFilterFlags turns key=value flags into filter parameters. A key
// given twice keeps its last value.
func parseFilterFlags(flags []string) (map[string]string, error) {
	params := make(map[string]string, len(flags))
	for _, f := range flags {
		key, value, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("filter %q: want key=value", f)
		}
		params[key] = value
	}
	return params, nil
}
