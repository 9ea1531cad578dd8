package ui

import (
	"fmt"
	"io"

	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/stats"
)

// Presenter consumes events and displays progress.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan event.Event) error
	// Summary returns the final summary line.
	Summary() string
}

// Config configures a Presenter.
type Config struct {
	Writer  io.Writer
	Stats   *stats.Collector
	DstRoot string
	Quiet   bool
	Verbose bool
}

// NewPresenter creates the appropriate presenter based on configuration.
//
//nolint:ireturn // factory returns the Presenter interface
func NewPresenter(cfg Config) Presenter {
	if cfg.Quiet {
		return &quietPresenter{}
	}
	return &feedPresenter{
		w:       cfg.Writer,
		stats:   cfg.Stats,
		dstRoot: cfg.DstRoot,
		verbose: cfg.Verbose,
	}
}

// feedPresenter prints one line per decision the engine reports. Without
// verbose only failures, skips and replacements are shown.
type feedPresenter struct {
	w       io.Writer
	stats   *stats.Collector
	dstRoot string
	verbose bool
}

func (p *feedPresenter) Run(events <-chan event.Event) error {
	for ev := range events {
		p.handleEvent(ev)
	}
	return nil
}

func (p *feedPresenter) handleEvent(ev event.Event) {
	dst := StripRoot(p.dstRoot, ev.Dst)
	switch ev.Type {
	case event.FileCopied:
		if p.verbose {
			how := ""
			if ev.FastPath {
				how = "  (server-side)"
			}
			fmt.Fprintf(p.w, "%s  %s%s\n", dst, FormatBytes(ev.Size), how)
		}
	case event.DirCreated:
		if p.verbose {
			fmt.Fprintf(p.w, "%s/\n", dst)
		}
	case event.SymlinkCreated:
		if p.verbose {
			fmt.Fprintf(p.w, "%s  symlink\n", dst)
		}
	case event.TargetSkipped:
		fmt.Fprintf(p.w, "%s  exists, skipped\n", dst)
	case event.SpecialSkipped:
		fmt.Fprintf(p.w, "%s  special file, skipped\n", ev.Src)
	case event.TargetReplaced:
		fmt.Fprintf(p.w, "%s  replaced\n", dst)
	case event.CopyFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		fmt.Fprintf(p.w, "FAILED: %s\n", errMsg)
	case event.VerifyFailed:
		fmt.Fprintf(p.w, "MISMATCH: %s\n", dst)
	case event.CopyStarted, event.CopyCompleted, event.VerifyOK:
		// silent
	}
}

func (p *feedPresenter) Summary() string {
	return Summary(p.stats.Snapshot())
}

// quietPresenter consumes events but produces no output.
type quietPresenter struct{}

func (*quietPresenter) Run(events <-chan event.Event) error {
	for range events { //nolint:revive // drain
	}
	return nil
}

func (*quietPresenter) Summary() string { return "" }
