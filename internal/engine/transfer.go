package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/bamsammich/ferry/internal/platform"
	"github.com/bamsammich/ferry/internal/transport"
)

// tmpSibling returns a hidden, unique sibling of target to write into
// before the final rename. The name does not embed the target's, so any
// name the target can have fits.
func tmpSibling(target transport.Entry) transport.Entry {
	return target.Parent().Join(fmt.Sprintf(".ferry-%s.tmp", uuid.New().String()))
}

// transfer moves the content of src to target through a temp sibling and
// reports the bytes written and whether the backend's fast path was used.
// The temp sibling never outlives a failure.
func (c *Copier) transfer(
	ctx context.Context,
	src transport.Entry,
	srcInfo transport.Info,
	target transport.Entry,
) (n int64, fast bool, err error) {
	tmp := tmpSibling(target)
	defer func() {
		if err != nil {
			_ = tmp.Remove()
		}
	}()

	n, fast, err = c.writeContent(ctx, src, tmp)
	if err != nil {
		return n, fast, c.fail("write", src, target, err)
	}

	if c.cfg.Verify {
		if err = c.verify(src, tmp, target); err != nil {
			return n, fast, err
		}
	}

	// Permissions go on after the content so a read-only source never
	// blocks its own copy.
	if c.cfg.CopyPermissions {
		if err = tmp.Chmod(srcInfo.Perm); err != nil {
			return n, fast, c.fail("chmod", src, target, err)
		}
	}

	if err = tmp.Rename(target); err != nil {
		return n, fast, c.fail("rename", src, target, err)
	}
	return n, fast, nil
}

// writeContent copies src into dst, preferring the backend's own copy when
// both live on the same backend.
func (c *Copier) writeContent(ctx context.Context, src, dst transport.Entry) (int64, bool, error) {
	if src.SameBackend(dst) {
		if fc, ok := dst.Backend().(transport.FastCopier); ok {
			n, err := fc.CopyFile(src.Path(), dst.Path())
			if err == nil {
				return n, true, nil
			}
			if !errors.Is(err, transport.ErrUnsupported) {
				return n, false, err
			}
			c.log.Debug("fast copy unavailable, streaming", "src", src.Path(), "error", err)
		}
	}
	n, err := c.stream(ctx, src, dst)
	return n, false, err
}

// stream copies src into dst through a pooled buffer, throttled by the
// shared bandwidth limiter when one is configured.
func (c *Copier) stream(ctx context.Context, src, dst transport.Entry) (int64, error) {
	r, err := src.Backend().OpenRead(src.Path())
	if err != nil {
		return 0, err
	}
	defer r.Close()

	w, err := dst.Backend().OpenWrite(dst.Path())
	if err != nil {
		return 0, err
	}

	bufp := platform.GetBuffer()
	defer platform.PutBuffer(bufp)

	n, err := io.CopyBuffer(w, limitReader(ctx, r, c.limiter), *bufp)
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	return n, err
}
