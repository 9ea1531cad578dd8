package engine_test

import (
	"fmt"
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/transport"
)

// backendPair is a source and destination root for one backend combination.
type backendPair struct {
	name string
	src  transport.Entry
	dst  transport.Entry
}

// backendPairs returns fresh, empty roots for every combination the engine
// must treat alike: one shared backend, two unrelated backends of the same
// kind, and both directions across kinds.
func backendPairs(t *testing.T) []backendPair {
	t.Helper()

	mem := transport.NewMemBackend()
	local := transport.NewLocalBackend(t.TempDir())

	mkdir := func(b transport.Backend, p string) transport.Entry {
		e := transport.NewEntry(b, p)
		require.NoError(t, e.Mkdir(true, false))
		return e
	}

	return []backendPair{
		{name: "mem same backend", src: mkdir(mem, "/src"), dst: mkdir(mem, "/dst")},
		{name: "mem to mem", src: mkdir(transport.NewMemBackend(), "/src"), dst: mkdir(transport.NewMemBackend(), "/dst")},
		{name: "local same backend", src: mkdir(local, "/src"), dst: mkdir(local, "/dst")},
		{
			name: "local to local",
			src:  mkdir(transport.NewLocalBackend(t.TempDir()), "/src"),
			dst:  mkdir(transport.NewLocalBackend(t.TempDir()), "/dst"),
		},
		{name: "mem to local", src: mkdir(transport.NewMemBackend(), "/src"), dst: mkdir(transport.NewLocalBackend(t.TempDir()), "/dst")},
		{name: "local to mem", src: mkdir(transport.NewLocalBackend(t.TempDir()), "/src"), dst: mkdir(transport.NewMemBackend(), "/dst")},
	}
}

// buildTree creates entries under root. Each spec is one of:
//
//	"dir/"           directory
//	"file=content"   regular file
//	"link->target"   symlink with a literal target
//	"name|fifo"      named pipe
func buildTree(t *testing.T, root transport.Entry, specs ...string) {
	t.Helper()
	for _, spec := range specs {
		switch {
		case strings.HasSuffix(spec, "/"):
			require.NoError(t, root.Join(spec).Mkdir(true, true), spec)
		case strings.Contains(spec, "->"):
			name, target, _ := strings.Cut(spec, "->")
			e := root.Join(name)
			require.NoError(t, e.Parent().Mkdir(true, true), spec)
			require.NoError(t, e.SymlinkTo(target), spec)
		case strings.HasSuffix(spec, "|fifo"):
			e := root.Join(strings.TrimSuffix(spec, "|fifo"))
			require.NoError(t, e.Parent().Mkdir(true, true), spec)
			require.NoError(t, e.MakeFifo(), spec)
		default:
			name, content, _ := strings.Cut(spec, "=")
			e := root.Join(name)
			require.NoError(t, e.Parent().Mkdir(true, true), spec)
			require.NoError(t, e.WriteBytes([]byte(content)), spec)
		}
	}
}

// snapshot describes every entry below root, keyed by relative path: type,
// content or link target, and permission bits when withPerms is set.
func snapshot(t *testing.T, root transport.Entry, withPerms bool) map[string]string {
	t.Helper()
	out := make(map[string]string)
	var walk func(e transport.Entry, rel string)
	walk = func(e transport.Entry, rel string) {
		info, err := e.Stat()
		require.NoError(t, err, rel)

		desc := info.Type.String()
		switch info.Type {
		case transport.File:
			data, err := e.ReadBytes()
			require.NoError(t, err, rel)
			desc += ":" + string(data)
		case transport.Symlink:
			target, err := e.LinkTarget()
			require.NoError(t, err, rel)
			desc += ":" + target
		}
		if withPerms && info.Type != transport.Symlink {
			desc += fmt.Sprintf(":%o", info.Perm)
		}
		out[rel] = desc

		if info.Type == transport.Directory {
			names, err := e.List()
			require.NoError(t, err, rel)
			for _, name := range names {
				walk(e.Join(name), path.Join(rel, name))
			}
		}
	}
	walk(root, ".")
	return out
}

// tempLeftovers lists names under root that look like abandoned temp files.
func tempLeftovers(t *testing.T, root transport.Entry) []string {
	t.Helper()
	var found []string
	for rel := range snapshot(t, root, false) {
		if name := path.Base(rel); strings.HasPrefix(name, ".ferry-") && strings.HasSuffix(name, ".tmp") {
			found = append(found, rel)
		}
	}
	return found
}

// collectEvents returns a buffered channel and a func that drains it.
func collectEvents() (chan event.Event, func() []event.Event) {
	ch := make(chan event.Event, 1024)
	return ch, func() []event.Event {
		var out []event.Event
		for {
			select {
			case e := <-ch:
				out = append(out, e)
			default:
				return out
			}
		}
	}
}

func countEvents(events []event.Event, typ event.Type) int {
	var n int
	for _, e := range events {
		if e.Type == typ {
			n++
		}
	}
	return n
}
