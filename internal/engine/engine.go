// Package engine implements ferry's recursive copy/merge between any two
// transport backends.
package engine

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/transport"
)

// Copier runs copies with a fixed Config. It is safe for concurrent use;
// the bandwidth limit is shared by every copy it runs.
type Copier struct {
	cfg     Config
	log     *slog.Logger
	limiter *rate.Limiter
}

// New validates cfg and returns a Copier for it.
func New(cfg Config) (*Copier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Overwrite == "" {
		cfg.Overwrite = OverwriteSkip
	}
	c := &Copier{cfg: cfg, log: cfg.Logger}
	if c.log == nil {
		c.log = slog.Default()
	}
	if cfg.BWLimit > 0 {
		c.limiter = NewBWLimiter(cfg.BWLimit)
	}
	return c, nil
}

// Copy copies src to dst with cfg. See Copier.Copy.
func Copy(ctx context.Context, src, dst transport.Entry, cfg Config) error {
	c, err := New(cfg)
	if err != nil {
		return err
	}
	return c.Copy(ctx, src, dst)
}

// Copy copies the entry at src to dst.
//
// If dst is an existing directory and CopyInto is set, the copy lands at
// dst/<name of src>; otherwise it lands at dst itself. The Overwrite policy
// decides what happens when that target exists. Below the target, every
// entry is copied with OverwriteAlways and without copy-into, so the policy
// is only consulted once. Symlinks are recreated with their literal target
// and never followed. Fifos, devices and sockets are skipped.
//
// A failure aborts the remaining children of the directory being copied.
// Entries already copied are left in place.
func (c *Copier) Copy(ctx context.Context, src, dst transport.Entry) error {
	c.emit(event.Event{Type: event.CopyStarted, Src: src.Path(), Dst: dst.Path()})
	err := c.copyRoot(ctx, src, dst)
	c.emit(event.Event{Type: event.CopyCompleted, Src: src.Path(), Dst: dst.Path(), Error: err})
	return err
}

func (c *Copier) copyRoot(ctx context.Context, src, dst transport.Entry) error {
	if err := ctx.Err(); err != nil {
		return c.fail("copy", src, dst, err)
	}

	srcInfo, err := src.Stat()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c.fail("stat", src, dst, ErrNotFound)
		}
		return c.fail("stat", src, dst, err)
	}

	dstType, err := dst.Type()
	if err != nil {
		return c.fail("stat", src, dst, err)
	}
	target := dst
	if dstType == transport.Directory && c.cfg.CopyInto && src.Path() != "/" {
		target = dst.Join(src.Name())
	}

	// Skip and raise settle an existing target without writing, so an
	// overlap only matters when the copy would write into its own source.
	if src.Overlaps(target) {
		targetType, err := target.Type()
		if err != nil {
			return c.fail("stat", src, target, err)
		}
		if targetType == transport.NotExists || c.cfg.Overwrite == OverwriteAlways {
			return c.fail("copy", src, target, ErrRecursiveCopy)
		}
	}

	return c.copyEntry(ctx, src, srcInfo, target, c.cfg.Overwrite)
}

// copyEntry applies policy at target and dispatches on the source type.
func (c *Copier) copyEntry(
	ctx context.Context,
	src transport.Entry,
	srcInfo transport.Info,
	target transport.Entry,
	policy Overwrite,
) error {
	targetType, err := target.Type()
	if err != nil {
		return c.fail("stat", src, target, err)
	}
	if targetType != transport.NotExists {
		switch policy {
		case OverwriteRaise:
			return c.fail("copy", src, target, ErrAlreadyExists)
		case OverwriteAlways:
			if err := c.clearTarget(src, srcInfo, target, targetType); err != nil {
				return err
			}
		default:
			c.log.Debug("target exists, skipping", "src", src.Path(), "dst", target.Path())
			c.cfg.Stats.AddTargetsSkipped(1)
			c.emit(event.Event{Type: event.TargetSkipped, Src: src.Path(), Dst: target.Path()})
			return nil
		}
	}

	if srcInfo.Type.IsSpecial() {
		c.log.Debug("skipping special file", "src", src.Path(), "type", srcInfo.Type)
		c.cfg.Stats.AddSpecialsSkipped(1)
		c.emit(event.Event{Type: event.SpecialSkipped, Src: src.Path(), Dst: target.Path()})
		return nil
	}

	switch srcInfo.Type {
	case transport.File:
		return c.copyFile(ctx, src, srcInfo, target)
	case transport.Directory:
		return c.copyDir(ctx, src, srcInfo, target)
	case transport.Symlink:
		return c.copyLink(src, target)
	default:
		return c.fail("copy", src, target, ErrNotFound)
	}
}

// clearTarget removes whatever is at target. A file about to be replaced by
// a file is left for the final rename, so readers never see it missing.
func (c *Copier) clearTarget(
	src transport.Entry,
	srcInfo transport.Info,
	target transport.Entry,
	targetType transport.EntryType,
) error {
	c.cfg.Stats.AddTargetsReplaced(1)
	c.emit(event.Event{Type: event.TargetReplaced, Src: src.Path(), Dst: target.Path()})

	var err error
	switch {
	case srcInfo.Type == transport.File && targetType == transport.File:
		return nil
	case targetType == transport.Directory:
		c.log.Debug("removing target tree", "dst", target.Path())
		err = target.RemoveTree()
	default:
		c.log.Debug("removing target", "dst", target.Path(), "type", targetType)
		err = target.Remove()
	}
	if err != nil {
		return c.fail("remove", src, target, err)
	}
	return nil
}

func (c *Copier) copyFile(ctx context.Context, src transport.Entry, srcInfo transport.Info, target transport.Entry) error {
	n, fast, err := c.transfer(ctx, src, srcInfo, target)
	if err != nil {
		c.cfg.Stats.AddFilesFailed(1)
		return err
	}

	c.log.Debug("copied file", "src", src.Path(), "dst", target.Path(), "bytes", n, "fast", fast)
	c.cfg.Stats.AddFilesCopied(1)
	c.cfg.Stats.AddBytesCopied(n)
	if fast {
		c.cfg.Stats.AddFastCopies(1)
	}
	c.emit(event.Event{Type: event.FileCopied, Src: src.Path(), Dst: target.Path(), Size: n, FastPath: fast})
	return nil
}

func (c *Copier) copyDir(ctx context.Context, src transport.Entry, srcInfo transport.Info, target transport.Entry) error {
	if err := target.Backend().MakeDir(target.Path()); err != nil {
		return c.fail("mkdir", src, target, err)
	}
	c.log.Debug("created directory", "src", src.Path(), "dst", target.Path())
	c.cfg.Stats.AddDirsCreated(1)
	c.emit(event.Event{Type: event.DirCreated, Src: src.Path(), Dst: target.Path()})

	names, err := src.List()
	if err != nil {
		return c.fail("readdir", src, target, err)
	}

	if c.cfg.Workers > 1 && len(names) > 1 {
		err = c.copyChildrenParallel(ctx, src, target, names)
	} else {
		err = c.copyChildren(ctx, src, target, names)
	}
	if err != nil {
		return err
	}

	if c.cfg.CopyPermissions {
		if err := target.Chmod(srcInfo.Perm); err != nil {
			return c.fail("chmod", src, target, err)
		}
	}
	return nil
}

func (c *Copier) copyChildren(ctx context.Context, src, target transport.Entry, names []string) error {
	for _, name := range names {
		if err := c.copyChild(ctx, src.Join(name), target.Join(name)); err != nil {
			return err
		}
	}
	return nil
}

// copyChildrenParallel copies up to Workers siblings at once. The first
// failure stops siblings that have not started yet.
func (c *Copier) copyChildrenParallel(ctx context.Context, src, target transport.Entry, names []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for _, name := range names {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return c.copyChild(gctx, src.Join(name), target.Join(name))
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// errgroup cancels gctx only on failure; a parent cancellation that
	// stopped the loop early still has to surface.
	if err := ctx.Err(); err != nil {
		return c.fail("copy", src, target, err)
	}
	return nil
}

func (c *Copier) copyChild(ctx context.Context, src, target transport.Entry) error {
	if err := ctx.Err(); err != nil {
		return c.fail("copy", src, target, err)
	}
	info, err := src.Stat()
	if err != nil {
		return c.fail("stat", src, target, err)
	}
	return c.copyEntry(ctx, src, info, target, OverwriteAlways)
}

func (c *Copier) copyLink(src, target transport.Entry) error {
	linkTarget, err := src.LinkTarget()
	if err != nil {
		return c.fail("readlink", src, target, err)
	}
	if err := target.SymlinkTo(linkTarget); err != nil {
		return c.fail("symlink", src, target, err)
	}
	c.log.Debug("created symlink", "src", src.Path(), "dst", target.Path(), "target", linkTarget)
	c.cfg.Stats.AddSymlinksCreated(1)
	c.emit(event.Event{Type: event.SymlinkCreated, Src: src.Path(), Dst: target.Path()})
	return nil
}

// fail wraps err in an *OpError and reports it. Errors that already carry
// an *OpError pass through untouched so each failure is reported once.
func (c *Copier) fail(op string, src, dst transport.Entry, err error) error {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}
	opErr = &OpError{Op: op, Src: src.Path(), Dst: dst.Path(), Err: err}
	c.log.Debug("copy failed", "op", op, "src", opErr.Src, "dst", opErr.Dst, "error", err)
	c.emit(event.Event{Type: event.CopyFailed, Src: opErr.Src, Dst: opErr.Dst, Error: opErr})
	return opErr
}

func (c *Copier) emit(e event.Event) {
	emitEvent(c.cfg.Events, e)
}

func emitEvent(ch chan<- event.Event, e event.Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case ch <- e:
	default:
	}
}
