package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/ferry/internal/config"
	"github.com/bamsammich/ferry/internal/engine"
	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/stats"
	"github.com/bamsammich/ferry/internal/transport"
	"github.com/bamsammich/ferry/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run())
}

// options holds the parsed command line.
type options struct {
	overwrite       string
	noCopyInto      bool
	copyPermissions bool
	verify          bool
	workers         int
	bwLimit         string
	sshKeyFile      string
	sshPort         int
	sshUser         string
	askPassword     bool
	verbose         bool
	quiet           bool
	logFile         string
	showVersion     bool
}

func (o *options) register(fs *pflag.FlagSet) {
	fs.BoolVar(&o.showVersion, "version", false, "print version and exit")

	fs.StringVar(&o.overwrite, "overwrite", string(engine.OverwriteSkip),
		"what to do when the target exists: skip, raise or always")
	fs.BoolVar(&o.noCopyInto, "no-copy-into", false,
		"copy onto <destination> itself even when it is an existing directory")
	fs.BoolVarP(&o.copyPermissions, "copy-permissions", "p", false, "mirror source permission bits")
	fs.BoolVar(&o.verify, "verify", false, "verify checksums after copy (BLAKE3)")
	fs.IntVarP(&o.workers, "workers", "n", 1, "sibling entries copied in parallel")
	fs.StringVar(&o.bwLimit, "bwlimit", "", "bandwidth limit for streamed content (e.g. 100M, 1G)")
	fs.StringVar(&o.sshKeyFile, "ssh-key", "", "SSH private key file (default: auto-detect)")
	fs.IntVar(&o.sshPort, "ssh-port", 22, "SSH port")
	fs.StringVar(&o.sshUser, "ssh-user", "", "SSH user for locations without user@ (default: current user)")
	fs.BoolVar(&o.askPassword, "ask-password", false, "prompt for an SSH password")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "verbose output")
	fs.BoolVarP(&o.quiet, "quiet", "q", false, "suppress all output except errors")
	fs.StringVar(&o.logFile, "log", "", "write structured JSON log to FILE")
}

//nolint:revive // cognitive-complexity: main CLI entry point wires every component
func run() int {
	var opts options

	rootCmd := &cobra.Command{
		Use:   "ferry [flags] <source> <destination>",
		Short: "Copy and merge file trees between local and SFTP locations",
		Long: `Copy a file, directory or symlink from <source> to <destination>.

Locations are local paths or [user@]host:path. When <destination> is an
existing directory the source is copied into it, unless --no-copy-into is set.
Existing targets are skipped by default; see --overwrite.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				return nil
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				fmt.Fprintf(os.Stdout, "ferry %s\n", version)
				return nil
			}

			// Load optional config file.
			fileCfg, cfgErr := config.Load()

			// Configure logging.
			logLevel := slog.LevelInfo
			if opts.verbose {
				logLevel = slog.LevelDebug
			} else if opts.quiet {
				logLevel = slog.LevelWarn
			}
			var logHandler slog.Handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: logLevel,
			})
			if opts.logFile != "" {
				lf, err := os.Create(opts.logFile)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer lf.Close()
				logHandler = ui.NewMultiHandler(logHandler, slog.NewJSONHandler(lf, &slog.HandlerOptions{
					Level: slog.LevelDebug,
				}))
			}
			logger := slog.New(logHandler)
			slog.SetDefault(logger)

			if cfgErr != nil {
				slog.Warn("failed to load config", "path", config.Path(), "error", cfgErr)
			}

			// Apply config defaults for flags not explicitly set on CLI.
			applyConfigDefaults(cmd.Flags(), fileCfg, &opts)

			collector := stats.NewCollector()
			events := make(chan event.Event, 256)

			engineCfg, err := opts.engineConfig()
			if err != nil {
				return err
			}
			engineCfg.Stats = collector
			engineCfg.Events = events
			engineCfg.Logger = logger

			sshOpts, err := opts.sshOpts(os.Stderr)
			if err != nil {
				return err
			}
			conn := transport.NewConnector(sshOpts)
			defer func() {
				if err := conn.Close(); err != nil {
					slog.Warn("close connections", "error", err)
				}
			}()

			srcLoc := transport.ParseLocation(args[0])
			dstLoc := transport.ParseLocation(args[1])

			src, err := conn.Connect(srcLoc)
			if err != nil {
				return fmt.Errorf("source %s: %w", srcLoc, err)
			}
			dst, err := conn.Connect(dstLoc)
			if err != nil {
				return fmt.Errorf("destination %s: %w", dstLoc, err)
			}

			// Set up context with signal handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			presenter := ui.NewPresenter(ui.Config{
				Writer:  os.Stdout,
				Stats:   collector,
				DstRoot: dst.Path(),
				Quiet:   opts.quiet,
				Verbose: opts.verbose,
			})

			// When --log is set, tee events through a logging goroutine
			// that writes structured records before forwarding to the presenter.
			presenterEvents := (<-chan event.Event)(events)
			if opts.logFile != "" {
				presenterEvents = teeEvents(events, logger)
			}

			var presenterErr error
			var presenterWg sync.WaitGroup
			presenterWg.Add(1)
			go func() {
				defer presenterWg.Done()
				presenterErr = presenter.Run(presenterEvents)
			}()

			slog.Debug("starting copy",
				"src", src.Path(),
				"dst", dst.Path(),
				"overwrite", engineCfg.Overwrite,
				"copy_into", engineCfg.CopyInto,
				"workers", engineCfg.Workers,
			)

			copyErr := engine.Copy(ctx, src, dst, engineCfg)
			stop()
			close(events)
			presenterWg.Wait()
			if presenterErr != nil {
				fmt.Fprintf(os.Stderr, "presenter: %v\n", presenterErr)
			}

			if summary := presenter.Summary(); summary != "" {
				fmt.Fprintln(os.Stderr, summary)
			}

			if copyErr != nil {
				slog.Error("copy failed", "error", copyErr)
				return &exitError{code: exitCode(collector.Snapshot())}
			}
			return nil
		},
	}

	opts.register(rootCmd.Flags())

	if err := rootCmd.Execute(); err != nil {
		if exitErr, ok := err.(*exitError); ok {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	return 0
}

// applyConfigDefaults applies config file defaults for flags not explicitly set on the CLI.
func applyConfigDefaults(flags *pflag.FlagSet, cfg config.Config, opts *options) {
	d := cfg.Defaults
	if !flags.Changed("overwrite") && d.Overwrite != nil {
		opts.overwrite = *d.Overwrite
	}
	if !flags.Changed("no-copy-into") && d.CopyInto != nil {
		opts.noCopyInto = !*d.CopyInto
	}
	if !flags.Changed("copy-permissions") && d.CopyPermissions != nil {
		opts.copyPermissions = *d.CopyPermissions
	}
	if !flags.Changed("verify") && d.Verify != nil {
		opts.verify = *d.Verify
	}
	if !flags.Changed("workers") && d.Workers != nil {
		opts.workers = *d.Workers
	}
	if !flags.Changed("bwlimit") && d.BWLimit != nil {
		opts.bwLimit = *d.BWLimit
	}

	s := cfg.SSH
	if !flags.Changed("ssh-port") && s.Port != nil {
		opts.sshPort = *s.Port
	}
	if !flags.Changed("ssh-key") && s.KeyFile != nil {
		opts.sshKeyFile = *s.KeyFile
	}
	if !flags.Changed("ssh-user") && s.User != nil {
		opts.sshUser = *s.User
	}
}

// engineConfig turns the options into a validated engine.Config.
func (o *options) engineConfig() (engine.Config, error) {
	overwrite, err := engine.ParseOverwrite(o.overwrite)
	if err != nil {
		return engine.Config{}, fmt.Errorf("invalid --overwrite: %w", err)
	}

	var bwLimit int64
	if o.bwLimit != "" {
		bwLimit, err = config.ParseSize(o.bwLimit)
		if err != nil {
			return engine.Config{}, fmt.Errorf("invalid --bwlimit: %w", err)
		}
	}

	cfg := engine.DefaultConfig()
	cfg.Overwrite = overwrite
	cfg.CopyInto = !o.noCopyInto
	cfg.CopyPermissions = o.copyPermissions
	cfg.Verify = o.verify
	cfg.Workers = o.workers
	cfg.BWLimit = bwLimit
	if err := cfg.Validate(); err != nil {
		return engine.Config{}, err
	}
	return cfg, nil
}

// sshOpts builds dial options, prompting on w for a password when asked to.
func (o *options) sshOpts(w io.Writer) (transport.SSHOpts, error) {
	opts := transport.SSHOpts{
		Port:    o.sshPort,
		User:    o.sshUser,
		KeyFile: o.sshKeyFile,
	}
	if o.askPassword {
		pw, err := ui.ReadPassword(w, "SSH password: ")
		if err != nil {
			return transport.SSHOpts{}, err
		}
		opts.Password = pw
	}
	return opts, nil
}

// teeEvents logs every event before forwarding it. The returned channel is
// closed once events is.
func teeEvents(events <-chan event.Event, logger *slog.Logger) <-chan event.Event {
	teed := make(chan event.Event, cap(events))
	go func() {
		defer close(teed)
		for ev := range events {
			attrs := []slog.Attr{
				slog.String("type", ev.Type.String()),
				slog.String("src", ev.Src),
				slog.String("dst", ev.Dst),
			}
			if ev.Type == event.FileCopied {
				attrs = append(attrs, slog.Int64("size", ev.Size), slog.Bool("fast_path", ev.FastPath))
			}
			if ev.Error != nil {
				attrs = append(attrs, slog.String("error", ev.Error.Error()))
			}
			logger.LogAttrs(context.Background(), slog.LevelDebug, "ferry.event", attrs...)
			teed <- ev
		}
	}()
	return teed
}

// exitCode maps a failed copy to 1 when part of the tree was written and
// 2 when the destination was left untouched.
func exitCode(snap stats.Snapshot) int {
	if snap.Changed() {
		return 1 // partial failure
	}
	return 2
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
