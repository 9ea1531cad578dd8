package engine

import (
	"fmt"
	"log/slog"

	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/stats"
)

// Overwrite decides what happens when the copy target already exists.
type Overwrite string

const (
	// OverwriteSkip leaves an existing target alone and reports success.
	OverwriteSkip Overwrite = "skip"
	// OverwriteRaise fails with ErrAlreadyExists before touching the target.
	OverwriteRaise Overwrite = "raise"
	// OverwriteAlways replaces the target.
	OverwriteAlways Overwrite = "always"
)

// ParseOverwrite converts a user-supplied policy name. The empty string
// means OverwriteSkip.
func ParseOverwrite(s string) (Overwrite, error) {
	switch o := Overwrite(s); o {
	case "", OverwriteSkip:
		return OverwriteSkip, nil
	case OverwriteRaise, OverwriteAlways:
		return o, nil
	default:
		return "", fmt.Errorf("%w: overwrite %q (want skip, raise or always)", ErrInvalidConfig, s)
	}
}

// Config describes a copy operation. Only Overwrite, CopyInto and
// CopyPermissions change what ends up at the destination; the rest tune how
// the copy runs and what it reports.
type Config struct {
	Overwrite       Overwrite
	CopyInto        bool
	CopyPermissions bool

	Verify  bool  // compare BLAKE3 digests of every copied file
	Workers int   // sibling entries copied in parallel; <= 1 is sequential
	BWLimit int64 // bytes/sec for streamed content; 0 = unlimited

	Stats  *stats.Collector   // optional
	Events chan<- event.Event // optional; sends never block
	Logger *slog.Logger       // nil = slog.Default()
}

// DefaultConfig returns the default policy: skip existing targets, copy into
// existing directories, leave permissions to the destination.
func DefaultConfig() Config {
	return Config{
		Overwrite: OverwriteSkip,
		CopyInto:  true,
		Workers:   1,
	}
}

// Validate reports the first malformed field, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	if _, err := ParseOverwrite(string(c.Overwrite)); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers %d", ErrInvalidConfig, c.Workers)
	}
	if c.BWLimit < 0 {
		return fmt.Errorf("%w: bwlimit %d", ErrInvalidConfig, c.BWLimit)
	}
	return nil
}
