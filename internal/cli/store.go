package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/xabbuh/studip-experience-api-plugin/internal/document"
	"github.com/xabbuh/studip-experience-api-plugin/internal/xapi"
)

// StoreResult is the data reported by the store command.
type StoreResult struct {
	IDs []string `json:"ids"`
}

// NewStoreCommand creates the store command.
func NewStoreCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "store <file>",
		Short: "Save statements from a YAML or JSON file",
		Long: `Save every statement document in a file. Use "-" to read standard input.

Documents are separated by "---". All documents are converted before the
first one is saved; each statement is then saved in its own transaction,
so a failing statement leaves the ones before it stored.

Examples:
  lrs store statements.yaml
  cat statement.json | lrs store - --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStore(rootOpts, args[0], cmd)
		},
	}
}

func runStore(opts *RootOptions, path string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := opts.formatter(cmd)

	statements, err := readStatements(path, cmd.InOrStdin())
	if err != nil {
		if outErr := formatter.Error(ErrCodeDocument, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "failed to read statements", err)
	}

	st, err := opts.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(st, opts.Logger)

	repo := st.Repository(opts.Config.LRSID)
	result := StoreResult{IDs: make([]string, 0, len(statements))}
	for i, stmt := range statements {
		id, err := repo.Save(ctx, stmt)
		if err != nil {
			return formatter.Fail(fmt.Sprintf("failed to save statement %d", i), err)
		}
		formatter.VerboseLog("saved %s", id)
		result.IDs = append(result.IDs, id.String())
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	for _, id := range result.IDs {
		fmt.Fprintln(formatter.Writer, id)
	}
	return nil
}

// readStatements decodes and converts every document of path, or of stdin
// when path is "-".
func readStatements(path string, stdin io.Reader) ([]xapi.Statement, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	docs, err := document.Decode(r)
	if err != nil {
		return nil, err
	}
	statements := make([]xapi.Statement, 0, len(docs))
	for i, doc := range docs {
		stmt, err := doc.ToModel()
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		statements = append(statements, stmt)
	}
	return statements, nil
}
