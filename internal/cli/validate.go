package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keelware/keel/internal/config"
)

// ValidationResult holds config validation results.
type ValidationResult struct {
	Valid  bool           `json:"valid"`
	Config *config.Config `json:"config,omitempty"`
	Error  *CLIError      `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a runtime config file",
		Long: `Validate a CUE runtime config file against the embedded schema.

Reports the effective configuration (defaults applied) on success, or
the schema violation with its file position on failure.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(path)
	if err != nil {
		var le *config.LoadError
		if errors.As(err, &le) {
			return outputValidateError(formatter, le)
		}
		_ = formatter.Error(config.ErrCodeInvalid, err.Error(), nil)
		return WrapExitError(ExitFailure, "validation failed", err)
	}

	formatter.VerboseLog("Validated %s", path)
	if formatter.Format == "json" {
		if ferr := formatter.Success(ValidationResult{Valid: true, Config: &cfg}); ferr != nil {
			return ferr
		}
		return nil
	}

	fmt.Fprintln(formatter.Writer, "✓ Config valid")
	fmt.Fprintf(formatter.Writer, "  frame arena: %d KiB\n", cfg.FrameArenaKB)
	fmt.Fprintf(formatter.Writer, "  checks:      %v\n", cfg.Checks)
	fmt.Fprintf(formatter.Writer, "  log level:   %s\n", cfg.LogLevel)
	if cfg.CapturePath != "" {
		fmt.Fprintf(formatter.Writer, "  capture:     %s\n", cfg.CapturePath)
	}
	return nil
}

func outputValidateError(f *OutputFormatter, le *config.LoadError) error {
	_ = f.Error(le.Code, le.Message, le.Pos)

	// Missing files are command errors; schema violations are failures.
	if le.Code == config.ErrCodeNotFound {
		return WrapExitError(ExitCommandError, "config not found", le)
	}
	return WrapExitError(ExitFailure, "validation failed", le)
}
