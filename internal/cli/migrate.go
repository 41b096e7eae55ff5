package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// MigrateResult is the data reported by the migrate command.
type MigrateResult struct {
	Driver        string `json:"driver"`
	SchemaVersion int    `json:"schema_version"`
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Long: `Open the configured database, creating the statement tables and
applying pending migrations. Running it again is a no-op.

Examples:
  lrs migrate --db ./lrs.db
  lrs migrate --driver postgres --db "postgres://lrs@localhost/lrs?sslmode=disable"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(rootOpts, cmd)
		},
	}
}

func runMigrate(opts *RootOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := opts.formatter(cmd)

	st, err := opts.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(st, opts.Logger)

	version, err := st.SchemaVersion(ctx)
	if err != nil {
		return formatter.Fail("failed to read schema version", err)
	}

	result := MigrateResult{Driver: st.Driver(), SchemaVersion: version}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return formatter.Success(fmt.Sprintf("Schema version %d (%s)", result.SchemaVersion, result.Driver))
}
