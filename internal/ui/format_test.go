package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bamsammich/ferry/internal/stats"
)

func TestFormatRate(t *testing.T) {
	tests := []struct {
		input float64
		want  string
	}{
		{0, "0 B/s"},
		{-1, "0 B/s"},
		{512, "512 B/s"},
		{1024, "1.00 KB/s"},
		{1.5 * 1024 * 1024, "1.50 MB/s"},
		{2.5 * 1024 * 1024 * 1024, "2.50 GB/s"},
		{100 * 1024, "100 KB/s"},
		{15 * 1024, "15.0 KB/s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatRate(tt.input))
		})
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		input int64
		want  string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1000000, "1,000,000"},
		{14302, "14,302"},
		{-1000, "-1,000"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCount(tt.input))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0s", FormatDuration(0))
	assert.Equal(t, "30s", FormatDuration(30*time.Second))
	assert.Equal(t, "3m 17s", FormatDuration(3*time.Minute+17*time.Second))
	assert.Equal(t, "1h 02m 03s", FormatDuration(1*time.Hour+2*time.Minute+3*time.Second))
}

func TestStripRoot(t *testing.T) {
	assert.Equal(t, "a/b.txt", StripRoot("/dst", "/dst/a/b.txt"))
	assert.Equal(t, "a/b.txt", StripRoot("/dst/", "/dst/a/b.txt"))
	assert.Equal(t, "/dst", StripRoot("/dst", "/dst"))
	assert.Equal(t, "/other/x", StripRoot("/dst", "/other/x"))
	assert.Equal(t, "/dstx/y", StripRoot("/dst", "/dstx/y"))
	assert.Equal(t, "/x", StripRoot("", "/x"))
}

func TestSummary(t *testing.T) {
	snap := stats.Snapshot{
		FilesCopied: 1200,
		BytesCopied: 2048,
		DirsCreated: 3,
		Elapsed:     2 * time.Second,
	}
	got := Summary(snap)
	assert.Contains(t, got, "done ✓")
	assert.Contains(t, got, "files 1,200")
	assert.Contains(t, got, "size 2.0 KiB")
	assert.Contains(t, got, "avg 1.00 KB/s")
	assert.Contains(t, got, "dirs 3")
	assert.NotContains(t, got, "skipped")
	assert.Contains(t, got, "errors 0")

	snap.FilesFailed = 1
	snap.TargetsSkipped = 2
	snap.SpecialsSkipped = 1
	got = Summary(snap)
	assert.Contains(t, got, "done ✗")
	assert.Contains(t, got, "skipped 3")
	assert.Contains(t, got, "errors 1")
}
