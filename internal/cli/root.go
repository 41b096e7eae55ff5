package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/xabbuh/studip-experience-api-plugin/internal/config"
	"github.com/xabbuh/studip-experience-api-plugin/internal/store"
)

// RootOptions holds global flags for all commands, and the configuration,
// logger and metrics resolved from them before a command runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Driver     string
	DSN        string
	LRSID      int64
	MetricsOut string

	Config   config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *store.Metrics
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the lrs CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "lrs",
		Short: "xAPI statement store",
		Long: `Store and query xAPI statements in SQLite or PostgreSQL.

Configuration is read from --config when given. The --driver, --db and
--lrs flags override the file.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.resolve(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.writeMetrics()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	flags.StringVar(&opts.Driver, "driver", "", "database driver (sqlite3|postgres)")
	flags.StringVar(&opts.DSN, "db", "", "database path or connection string")
	flags.Int64Var(&opts.LRSID, "lrs", 0, "LRS id the statements belong to")
	flags.StringVar(&opts.MetricsOut, "metrics-out", "", "write Prometheus metrics to this file on exit")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewStoreCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewFindCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// resolve loads the configuration, applies flag overrides and sets up the
// logger and metrics registry.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	cfg := config.Default()
	if o.ConfigPath != "" {
		loaded, err := config.Load(o.ConfigPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}
	if o.Driver != "" {
		cfg.Database.Driver = o.Driver
	}
	if o.DSN != "" {
		cfg.Database.DSN = o.DSN
	}
	if o.LRSID != 0 {
		cfg.LRSID = o.LRSID
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	o.Config = cfg

	level := cfg.Log.SlogLevel()
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = slog.New(cfg.Log.Handler(cmd.ErrOrStderr(), level))

	o.Registry = prometheus.NewRegistry()
	metrics, err := store.NewMetrics(o.Registry)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to register metrics", err)
	}
	o.Metrics = metrics
	return nil
}

// writeMetrics dumps the registry in the text exposition format.
func (o *RootOptions) writeMetrics() error {
	if o.MetricsOut == "" || o.Registry == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(o.MetricsOut, o.Registry); err != nil {
		return WrapExitError(ExitFailure, "failed to write metrics", err)
	}
	return nil
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// openStore opens the configured store. The caller closes it.
func (o *RootOptions) openStore(ctx context.Context) (*store.Store, error) {
	st, err := store.Open(ctx, store.Options{
		Driver:  o.Config.Database.Driver,
		DSN:     o.Config.Database.DSN,
		Logger:  o.Logger,
		Metrics: o.Metrics,
	})
	if err != nil {
		return nil, WrapExitError(storeExitCode(err), "failed to open store", err)
	}
	return st, nil
}

// closeStore closes st, logging rather than returning a failure.
func closeStore(st *store.Store, logger *slog.Logger) {
	if err := st.Close(); err != nil {
		logger.Error("error closing store", "error", err)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
