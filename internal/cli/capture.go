package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/keelware/keel/internal/capture"
)

// CaptureOptions holds flags shared by the capture subcommands.
type CaptureOptions struct {
	*RootOptions
	Database string
}

// NewCaptureCommand creates the capture command group.
func NewCaptureCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CaptureOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Inspect a profiler capture database",
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to capture database (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	cmd.AddCommand(newCaptureSessionsCommand(opts))
	cmd.AddCommand(newCaptureFramesCommand(opts))

	return cmd
}

func newCaptureSessionsCommand(opts *CaptureOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "sessions",
		Short:         "List captured sessions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openCapture(opts.Database)
			if err != nil {
				return err
			}
			defer st.Close()

			sessions, err := st.Sessions(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list sessions", err)
			}

			formatter := captureFormatter(opts.RootOptions, cmd)
			if formatter.Format == "json" {
				return formatter.Success(sessions)
			}
			if len(sessions) == 0 {
				fmt.Fprintln(formatter.Writer, "No sessions captured.")
				return nil
			}
			for _, s := range sessions {
				fmt.Fprintln(formatter.Writer, s)
			}
			return nil
		},
	}
}

func newCaptureFramesCommand(opts *CaptureOptions) *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:           "frames",
		Short:         "List a session's per-frame statistics",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openCapture(opts.Database)
			if err != nil {
				return err
			}
			defer st.Close()

			frames, err := st.ListFrames(cmd.Context(), session)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list frames", err)
			}

			formatter := captureFormatter(opts.RootOptions, cmd)
			if formatter.Format == "json" {
				return formatter.Success(frames)
			}
			if len(frames) == 0 {
				fmt.Fprintf(formatter.Writer, "No frames for session %q.\n", session)
				return nil
			}

			tw := tabwriter.NewWriter(formatter.Writer, 2, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FRAME\tCOMMANDS\tBATCHES\tSYNCED\tARENA\tDURATION")
			for _, f := range frames {
				fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%s\n",
					f.Frame, f.Commands, f.Batches, f.SyncedObjects,
					f.ArenaBytes, f.Duration)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&session, "session", "", "session token (required)")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func openCapture(path string) (*capture.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "capture database not found", err)
	}
	st, err := capture.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open capture database", err)
	}
	return st, nil
}

func captureFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
