package stats

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Collector tracks copy statistics using lock-free atomic counters. A nil
// *Collector is valid and discards every update.
type Collector struct {
	filesCopied       atomic.Int64
	bytesCopied       atomic.Int64
	fastCopies        atomic.Int64
	dirsCreated       atomic.Int64
	symlinksCreated   atomic.Int64
	specialsSkipped   atomic.Int64
	targetsSkipped    atomic.Int64
	targetsReplaced   atomic.Int64
	filesFailed       atomic.Int64
	filesVerified     atomic.Int64
	filesVerifyFailed atomic.Int64
	startTime         time.Time
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	FilesCopied       int64
	BytesCopied       int64
	FastCopies        int64
	DirsCreated       int64
	SymlinksCreated   int64
	SpecialsSkipped   int64
	TargetsSkipped    int64
	TargetsReplaced   int64
	FilesFailed       int64
	FilesVerified     int64
	FilesVerifyFailed int64
	Elapsed           time.Duration
}

func (c *Collector) AddFilesCopied(n int64) {
	if c != nil {
		c.filesCopied.Add(n)
	}
}

func (c *Collector) AddBytesCopied(n int64) {
	if c != nil {
		c.bytesCopied.Add(n)
	}
}

func (c *Collector) AddFastCopies(n int64) {
	if c != nil {
		c.fastCopies.Add(n)
	}
}

func (c *Collector) AddDirsCreated(n int64) {
	if c != nil {
		c.dirsCreated.Add(n)
	}
}

func (c *Collector) AddSymlinksCreated(n int64) {
	if c != nil {
		c.symlinksCreated.Add(n)
	}
}

func (c *Collector) AddSpecialsSkipped(n int64) {
	if c != nil {
		c.specialsSkipped.Add(n)
	}
}

func (c *Collector) AddTargetsSkipped(n int64) {
	if c != nil {
		c.targetsSkipped.Add(n)
	}
}

func (c *Collector) AddTargetsReplaced(n int64) {
	if c != nil {
		c.targetsReplaced.Add(n)
	}
}

func (c *Collector) AddFilesFailed(n int64) {
	if c != nil {
		c.filesFailed.Add(n)
	}
}

func (c *Collector) AddFilesVerified(n int64) {
	if c != nil {
		c.filesVerified.Add(n)
	}
}

func (c *Collector) AddFilesVerifyFailed(n int64) {
	if c != nil {
		c.filesVerifyFailed.Add(n)
	}
}

// Snapshot returns a point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	return Snapshot{
		FilesCopied:       c.filesCopied.Load(),
		BytesCopied:       c.bytesCopied.Load(),
		FastCopies:        c.fastCopies.Load(),
		DirsCreated:       c.dirsCreated.Load(),
		SymlinksCreated:   c.symlinksCreated.Load(),
		SpecialsSkipped:   c.specialsSkipped.Load(),
		TargetsSkipped:    c.targetsSkipped.Load(),
		TargetsReplaced:   c.targetsReplaced.Load(),
		FilesFailed:       c.filesFailed.Load(),
		FilesVerified:     c.filesVerified.Load(),
		FilesVerifyFailed: c.filesVerifyFailed.Load(),
		Elapsed:           c.Elapsed(),
	}
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	if c == nil || c.startTime.IsZero() {
		return 0
	}
	return time.Since(c.startTime)
}

// Changed reports whether anything was written to the destination.
func (s Snapshot) Changed() bool {
	return s.FilesCopied+s.DirsCreated+s.SymlinksCreated+s.TargetsReplaced > 0
}

// Speed returns the average bytes/sec over the elapsed time.
func (s Snapshot) Speed() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.BytesCopied) / s.Elapsed.Seconds()
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"copied=%d bytes=%d fast=%d dirs=%d symlinks=%d specials_skipped=%d targets_skipped=%d replaced=%d failed=%d",
		s.FilesCopied, s.BytesCopied, s.FastCopies, s.DirsCreated, s.SymlinksCreated,
		s.SpecialsSkipped, s.TargetsSkipped, s.TargetsReplaced, s.FilesFailed,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
