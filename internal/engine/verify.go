package engine

import (
	"fmt"

	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/transport"
)

// verify compares the BLAKE3 digest of src with the freshly written copy.
// target is only used for reporting.
func (c *Copier) verify(src, written, target transport.Entry) error {
	srcHash, err := transport.Hash(src)
	if err != nil {
		return c.verifyFailed(src, target, fmt.Errorf("hash source: %w", err))
	}
	dstHash, err := transport.Hash(written)
	if err != nil {
		return c.verifyFailed(src, target, fmt.Errorf("hash copy: %w", err))
	}
	if srcHash != dstHash {
		return c.verifyFailed(src, target, fmt.Errorf("%w: %s != %s", ErrVerifyMismatch, srcHash, dstHash))
	}

	c.cfg.Stats.AddFilesVerified(1)
	c.emit(event.Event{Type: event.VerifyOK, Src: src.Path(), Dst: target.Path()})
	return nil
}

func (c *Copier) verifyFailed(src, target transport.Entry, err error) error {
	c.log.Warn("verification failed", "src", src.Path(), "dst", target.Path(), "error", err)
	c.cfg.Stats.AddFilesVerifyFailed(1)
	c.emit(event.Event{Type: event.VerifyFailed, Src: src.Path(), Dst: target.Path(), Error: err})
	return c.fail("verify", src, target, err)
}
