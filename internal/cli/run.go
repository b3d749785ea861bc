package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mbward/oscpump/internal/journal"
	"github.com/mbward/oscpump/internal/sched"
	"github.com/mbward/oscpump/internal/transport"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config Config

	ConfigPath string

	// set tracks which flags were given explicitly so they override the
	// config file.
	set func(name string) bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts, Config: DefaultConfig()}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the OSC scheduling gateway",
		Long: `Start the OSC scheduling gateway.

The gateway listens for OSC packets over UDP, buffers time-tagged
bundles until they are due, deduplicates re-delivered bundles, and
forwards released messages to the downstream peer.

Example:
  oscpump run --listen :9000 --forward 127.0.0.1:9001
  oscpump run --config oscpump.yaml --journal ./claims.db --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.set = cmd.Flags().Changed
			return runGateway(opts, cmd)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	flags.StringVar(&opts.Config.Listen, "listen", opts.Config.Listen, "UDP address to receive OSC packets on")
	flags.StringVar(&opts.Config.Forward, "forward", opts.Config.Forward, "UDP address due messages are forwarded to")
	flags.DurationVar(&opts.Config.Tick, "tick", opts.Config.Tick, "periodic drain interval")
	flags.DurationVar(&opts.Config.Retention, "retention", opts.Config.Retention, "dedup record retention window (0 = forever)")
	flags.StringVar(&opts.Config.Journal, "journal", opts.Config.Journal, "path to durable dedup database (empty = in-memory only)")
	flags.IntVar(&opts.Config.MaxDepth, "max-depth", opts.Config.MaxDepth, "maximum bundle nesting levels (0 = unbounded)")
	flags.BoolVar(&opts.Config.RescheduleNested, "reschedule-nested", opts.Config.RescheduleNested, "re-buffer nested future bundles instead of unpacking them")

	return cmd
}

// resolveConfig merges the config file under any explicitly set flags.
func (o *RunOptions) resolveConfig() (Config, error) {
	if o.ConfigPath == "" {
		return o.Config, o.Config.validate()
	}
	cfg, err := LoadConfig(o.ConfigPath)
	if err != nil {
		return cfg, err
	}
	if o.set("listen") {
		cfg.Listen = o.Config.Listen
	}
	if o.set("forward") {
		cfg.Forward = o.Config.Forward
	}
	if o.set("tick") {
		cfg.Tick = o.Config.Tick
	}
	if o.set("retention") {
		cfg.Retention = o.Config.Retention
	}
	if o.set("journal") {
		cfg.Journal = o.Config.Journal
	}
	if o.set("max-depth") {
		cfg.MaxDepth = o.Config.MaxDepth
	}
	if o.set("reschedule-nested") {
		cfg.RescheduleNested = o.Config.RescheduleNested
	}
	return cfg, cfg.validate()
}

func runGateway(opts *RunOptions, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))

	cfg, err := opts.resolveConfig()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	sender, err := transport.Dial(cfg.Forward)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to reach forward peer", err)
	}
	defer sender.Close()

	schedOpts := []sched.Option{
		sched.WithRetention(cfg.Retention),
		sched.WithMaxDepth(cfg.MaxDepth),
	}
	if cfg.RescheduleNested {
		schedOpts = append(schedOpts, sched.WithNestedRescheduling())
	}
	if cfg.Journal != "" {
		slog.Info("opening dedup journal", "path", cfg.Journal)
		j, err := journal.Open(cfg.Journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open dedup journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				slog.Error("error closing dedup journal", "error", closeErr)
			}
		}()
		schedOpts = append(schedOpts, sched.WithJournal(j))
	}

	scheduler := sched.New(sender.Forward, schedOpts...)
	pump := sched.NewPump(scheduler, cfg.Tick)

	receiver, err := transport.Listen(cfg.Listen, scheduler)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to bind listen address", err)
	}

	// Setup signal handling for graceful shutdown
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("gateway starting",
		"listen", receiver.Addr(), "forward", cfg.Forward,
		"tick", cfg.Tick, "retention", cfg.Retention,
		"journal", cfg.Journal != "")

	pumpDone := make(chan error, 1)
	go func() { pumpDone <- pump.Run(ctx) }()

	recvErr := receiver.Run(ctx)
	stop()
	<-pumpDone

	if recvErr != nil && recvErr != context.Canceled {
		return WrapExitError(ExitFailure, "receiver error", recvErr)
	}

	stats := scheduler.Stats()
	slog.Info("gateway stopped",
		"submitted", stats.Submitted, "dispatched", stats.DispatchedMessages,
		"duplicates", stats.Duplicates, "pending", stats.PendingBundles)
	return nil
}
