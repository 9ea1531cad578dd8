package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/stats"
)

func runPresenter(t *testing.T, p Presenter, evs ...event.Event) {
	t.Helper()
	ch := make(chan event.Event, len(evs))
	for _, ev := range evs {
		ch <- ev
	}
	close(ch)
	require.NoError(t, p.Run(ch))
}

func TestFeedPresenterVerbose(t *testing.T) {
	var out bytes.Buffer
	p := NewPresenter(Config{Writer: &out, Stats: stats.NewCollector(), DstRoot: "/dst", Verbose: true})

	runPresenter(t, p,
		event.Event{Type: event.CopyStarted, Src: "/src", Dst: "/dst"},
		event.Event{Type: event.DirCreated, Dst: "/dst/tree"},
		event.Event{Type: event.FileCopied, Dst: "/dst/tree/a.txt", Size: 2048},
		event.Event{Type: event.FileCopied, Dst: "/dst/tree/b.txt", Size: 10, FastPath: true},
		event.Event{Type: event.SymlinkCreated, Dst: "/dst/tree/l"},
		event.Event{Type: event.VerifyOK, Dst: "/dst/tree/a.txt"},
		event.Event{Type: event.CopyCompleted, Src: "/src", Dst: "/dst"},
	)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "tree/", lines[0])
	assert.Equal(t, "tree/a.txt  2.0 KiB", lines[1])
	assert.Contains(t, lines[2], "server-side")
	assert.Equal(t, "tree/l  symlink", lines[3])
}

func TestFeedPresenterDefaultShowsOnlyNotable(t *testing.T) {
	var out bytes.Buffer
	p := NewPresenter(Config{Writer: &out, Stats: stats.NewCollector(), DstRoot: "/dst"})

	runPresenter(t, p,
		event.Event{Type: event.FileCopied, Dst: "/dst/a.txt", Size: 1},
		event.Event{Type: event.DirCreated, Dst: "/dst/d"},
		event.Event{Type: event.TargetSkipped, Dst: "/dst/b.txt"},
		event.Event{Type: event.TargetReplaced, Dst: "/dst/c"},
		event.Event{Type: event.SpecialSkipped, Src: "/src/pipe", Dst: "/dst/pipe"},
		event.Event{Type: event.CopyFailed, Error: assert.AnError},
		event.Event{Type: event.VerifyFailed, Dst: "/dst/e.txt"},
	)

	got := out.String()
	assert.NotContains(t, got, "a.txt")
	assert.NotContains(t, got, "d/")
	assert.Contains(t, got, "b.txt  exists, skipped")
	assert.Contains(t, got, "c  replaced")
	assert.Contains(t, got, "/src/pipe  special file, skipped")
	assert.Contains(t, got, "FAILED: "+assert.AnError.Error())
	assert.Contains(t, got, "MISMATCH: e.txt")
}

func TestFeedPresenterSummary(t *testing.T) {
	collector := stats.NewCollector()
	collector.AddFilesCopied(2)
	p := NewPresenter(Config{Writer: &bytes.Buffer{}, Stats: collector})
	assert.Contains(t, p.Summary(), "files 2")
}

func TestQuietPresenter(t *testing.T) {
	p := NewPresenter(Config{Quiet: true, Stats: stats.NewCollector()})
	runPresenter(t, p, event.Event{Type: event.CopyFailed, Error: assert.AnError})
	assert.Empty(t, p.Summary())
}
