package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides of global flags
// (ORDINAL_DB, ORDINAL_SPECS, ORDINAL_FORMAT, ORDINAL_VERBOSE).
const EnvPrefix = "ORDINAL"

// DefaultDatabase is the database path used when --db is not given.
const DefaultDatabase = "ordinal.db"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Database is the SQLite database path.
	Database string

	// SpecsDir, when set, is loaded and registered before record commands run.
	SpecsDir string

	// ConfigFile overrides the ordinal.yaml search.
	ConfigFile string

	// Logger overrides the stderr logger (for testing).
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the ordinal CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "ordinal",
		Short: "Dense position maintenance for ordered collections",
		Long: `ordinal keeps the records of each group numbered start, start+1, ...
with no gaps or duplicates while records are added, moved, regrouped and removed.

Collections are defined in CUE and stored in SQLite.

Configuration is read from flags, ORDINAL_* environment variables and an
optional ordinal.yaml in the working directory, in that order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(v, opts); err != nil {
				return WrapExitError(ExitCommandError, "failed to read config", err)
			}
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.Database, "db", DefaultDatabase, "path to SQLite database")
	flags.StringVar(&opts.SpecsDir, "specs", "", "directory of CUE collection definitions to register")
	flags.StringVar(&opts.ConfigFile, "config", "", "config file (default ./ordinal.yaml)")

	for _, name := range []string{"verbose", "format", "db", "specs"} {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			slog.Error("Error binding flag", "flag", name, "error", err)
		}
	}

	// Add subcommands
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewMoveCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewSwapCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// loadConfig merges the config file and environment into opts.
// Flags set on the command line win over both.
func loadConfig(v *viper.Viper, opts *RootOptions) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("ordinal")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return err
		}
	}

	opts.Verbose = v.GetBool("verbose")
	opts.Format = v.GetString("format")
	opts.Database = v.GetString("db")
	opts.SpecsDir = v.GetString("specs")
	return nil
}

// logger returns the configured logger, or a text logger on stderr at
// Info level (Debug with --verbose).
func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
