package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/warranty/internal/clock"
	"github.com/roach88/warranty/internal/mail"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Database   string
	Verbose    bool
	Format     string // "json" | "text"

	// EnvDir is where .env files are read from. Empty means the working directory.
	EnvDir string

	// Clock overrides the system clock (for testing).
	Clock clock.Clock
	// Sink overrides the configured SMTP sink (for testing).
	Sink mail.Sink
	// BcryptCost overrides the password hashing cost (for testing).
	BcryptCost int
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the warranty CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warranty",
		Short: "Track product warranties and expiry reminders",
		Long: `Track product warranties, service claims and expiry reminders.

Warranties are stored in a local SQLite database. A background pass
(warranty serve) records reminders for warranties near expiry and mails
them to their owners.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewNotifyCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(NewItemCommand(opts))
	cmd.AddCommand(NewClaimCommand(opts))
	cmd.AddCommand(NewProductCommand(opts))
	cmd.AddCommand(NewAdminCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
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
