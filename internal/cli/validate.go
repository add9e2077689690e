package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/warranty/internal/config"
)

// ValidationResult holds configuration validation results.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
	Source string   `json:"source,omitempty"`

	// Config is the merged configuration with secrets masked.
	Config *config.Config `json:"config,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration without opening the database",
		Long: `Merge the config file, .env files and environment variables, then check
the result against the configuration schema.

Exit codes:
  0 - Configuration is valid
  1 - Configuration is invalid`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	source := opts.ConfigFile
	if source == "" {
		source = "defaults and environment"
	}
	formatter.VerboseLog("Loading configuration from %s", source)

	cfg, err := config.Load(config.Options{File: opts.ConfigFile, EnvDir: opts.EnvDir})
	if err != nil {
		return outputValidationErrors(formatter, source, splitConfigErrors(err))
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}
	return outputValidateSuccess(formatter, source, masked(cfg))
}

// splitConfigErrors turns a multi-line schema error into one entry per line.
func splitConfigErrors(err error) []string {
	msg := strings.TrimPrefix(err.Error(), "invalid config: ")
	var errs []string
	for _, line := range strings.Split(msg, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			errs = append(errs, line)
		}
	}
	return errs
}

func masked(cfg config.Config) config.Config {
	if cfg.SMTP.Password != "" {
		cfg.SMTP.Password = "********"
	}
	if cfg.SecretKey != "" {
		cfg.SecretKey = "********"
	}
	return cfg
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, source string, cfg config.Config) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Source: source, Config: &cfg})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Configuration valid (%s)\n", source)
	fmt.Fprintf(w, "  database:   %s\n", cfg.Database.Path)
	fmt.Fprintf(w, "  uploads:    %s\n", cfg.Uploads.Dir)
	if cfg.SMTP.Host == "" || cfg.SMTP.From == "" {
		fmt.Fprintln(w, "  smtp:       disabled")
	} else {
		fmt.Fprintf(w, "  smtp:       %s:%d as %s\n", cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From)
	}
	fmt.Fprintf(w, "  reminders:  every %s, weekly on %s, %d workers\n",
		cfg.Notify.Interval, cfg.WeeklyDay(), cfg.Notify.Workers)
	return nil
}

// outputValidationErrors outputs every validation error.
func outputValidationErrors(formatter *OutputFormatter, source string, errs []string) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Source: source, Errors: errs},
			Error: &CLIError{
				Code:    "E_CONFIG",
				Message: errs[0],
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("validation failed with %d error(s)", len(errs)), Reported: true}
	}

	fmt.Fprintf(formatter.Writer, "✗ Configuration invalid (%s)\n\n", source)
	for _, e := range errs {
		fmt.Fprintf(formatter.Writer, "  %s\n", e)
	}

	return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("validation failed with %d error(s)", len(errs)), Reported: true}
}
