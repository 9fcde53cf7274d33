package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/keelware/keel/internal/capture"
	"github.com/keelware/keel/internal/config"
	"github.com/keelware/keel/internal/coreobj"
	"github.com/keelware/keel/internal/coreth"
	"github.com/keelware/keel/internal/trace"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config  string
	Frames  int
	Objects int
	Tick    time.Duration

	// TokenGenerator allows overriding the session token generator (for
	// testing). If nil, defaults to UUIDv7Generator.
	TokenGenerator trace.TokenGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the runtime with a synthetic workload",
		Long: `Start the dispatcher and drive a synthetic simulation loop.

Each frame mutates a slice of registered objects, runs the sync pass,
submits all staged queues, and advances the frame boundary. With a
capture path configured, per-frame statistics are written to SQLite.

Example:
  keel run --frames 600
  keel run --config ./keel.cue --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuntime(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to CUE config file (defaults apply when omitted)")
	cmd.Flags().IntVar(&opts.Frames, "frames", 120, "number of frames to simulate (0 = run until interrupted)")
	cmd.Flags().IntVar(&opts.Objects, "objects", 16, "number of synthetic objects to register")
	cmd.Flags().DurationVar(&opts.Tick, "tick", 16*time.Millisecond, "frame pacing interval (0 = unpaced)")

	return cmd
}

func runRuntime(opts *RunOptions, cmd *cobra.Command) error {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}

	level := cfg.SlogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))

	gen := opts.TokenGenerator
	if gen == nil {
		gen = trace.UUIDv7Generator{}
	}
	session := gen.Generate()

	var capStore *capture.Store
	if cfg.CapturePath != "" {
		slog.Info("opening capture database", "path", cfg.CapturePath)
		st, err := capture.Open(cfg.CapturePath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open capture database", err)
		}
		capStore = st
		defer func() {
			if closeErr := capStore.Close(); closeErr != nil {
				slog.Error("error closing capture database", "error", closeErr)
			}
		}()
	}

	ctOpts := []coreth.Option{coreth.WithFrameArena(cfg.FrameArenaBytes())}
	if !cfg.Checks {
		ctOpts = append(ctOpts, coreth.WithoutChecks())
	}
	ct := coreth.New(ctOpts...)
	if err := ct.StartUp(); err != nil {
		return WrapExitError(ExitFailure, "failed to start core loop", err)
	}
	defer func() {
		if shutErr := ct.Shutdown(); shutErr != nil {
			slog.Error("error shutting down core loop", "error", shutErr)
		}
	}()

	mgr := coreobj.NewManager(ct)
	objects := registerDemoObjects(mgr, opts.Objects)
	slog.Info("runtime started",
		"session", session, "objects", len(objects),
		"arena_kb", cfg.FrameArenaKB, "checks", cfg.Checks)
	fmt.Fprintf(cmd.OutOrStdout(), "Runtime started (session %s).\n", session)
	if opts.Frames == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ticker *time.Ticker
	if opts.Tick > 0 {
		ticker = time.NewTicker(opts.Tick)
		defer ticker.Stop()
	}

	prevExec, prevBatch := ct.Stats()
	for frame := 1; opts.Frames == 0 || frame <= opts.Frames; frame++ {
		select {
		case <-ctx.Done():
			slog.Info("interrupted, shutting down", "frame", frame)
			destroyDemoObjects(objects)
			return nil
		default:
		}

		start := time.Now()
		simulateFrame(objects, frame)
		mgr.SyncToCore()
		arenaBytes := ct.Frames().Writer().Used()
		ct.SubmitAll(true)
		// The upload staged by the sync pass references writer-generation
		// memory; fencing the internal queue keeps the loop within the
		// one-frame-ahead bound before the swap.
		ct.QueueCommand(func() {}, coreth.FlagBlock)
		ct.Update()

		if capStore != nil {
			exec, batch := ct.Stats()
			err := capStore.RecordFrame(ctx, capture.FrameStats{
				Session:       session,
				Frame:         ct.Frames().Frame(),
				Commands:      exec - prevExec,
				Batches:       batch - prevBatch,
				SyncedObjects: mgr.LastSynced(),
				ArenaBytes:    arenaBytes,
				Duration:      time.Since(start),
			})
			if err != nil {
				slog.Error("capture write failed", "error", err)
			}
			prevExec, prevBatch = exec, batch
		}

		if ticker != nil {
			select {
			case <-ctx.Done():
			case <-ticker.C:
			}
		}
	}

	destroyDemoObjects(objects)
	exec, batch := ct.Stats()
	slog.Info("simulation finished",
		"frames", ct.Frames().Frame(), "executed", exec, "batches", batch)
	fmt.Fprintf(cmd.OutOrStdout(), "Simulated %d frame(s), %d command(s) executed.\n",
		ct.Frames().Frame(), exec)
	return nil
}

// registerDemoObjects builds the synthetic object set. The first object is
// a hub every eighth object depends on, so dirtying the hub ripples.
func registerDemoObjects(mgr *coreobj.Manager, n int) []*demoObject {
	if n < 1 {
		n = 1
	}
	objects := make([]*demoObject, n)
	for i := range objects {
		o := &demoObject{}
		if i > 0 && i%8 == 0 {
			o.deps = []*coreobj.Object{objects[0].Obj()}
		}
		mgr.Register(o)
		o.Initialize()
		if len(o.deps) > 0 {
			o.MarkDependenciesDirty()
		}
		objects[i] = o
	}
	return objects
}

// simulateFrame mutates a rotating subset of objects plus the hub.
func simulateFrame(objects []*demoObject, frame int) {
	hub := objects[0]
	hub.value++
	hub.MarkCoreDirty(0)

	o := objects[frame%len(objects)]
	o.value += uint64(frame)
	o.MarkCoreDirty(0)
}

func destroyDemoObjects(objects []*demoObject) {
	for _, o := range objects {
		o.Destroy()
	}
}
