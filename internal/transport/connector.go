package transport

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"sync"
)

// Connector turns locations into entries. Locations on the same user@host
// share one SFTP backend, so a remote-to-same-remote copy can use the
// server-side fast path. All local locations share one backend rooted at /.
type Connector struct {
	opts SSHOpts

	// dial is swapped out in tests.
	dial func(host, user string, opts SSHOpts) (Backend, error)

	mu       sync.Mutex
	local    *LocalBackend
	backends map[string]Backend
}

// NewConnector returns a Connector that dials remote hosts with opts.
func NewConnector(opts SSHOpts) *Connector {
	return &Connector{
		opts:     opts,
		dial:     dialSFTP,
		backends: make(map[string]Backend),
	}
}

// Connect returns the entry addressed by loc, opening a backend for it if
// none is cached yet. Relative local paths resolve against the working
// directory; relative remote paths against the remote login directory.
func (c *Connector) Connect(loc Location) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !loc.IsRemote() {
		if c.local == nil {
			c.local = NewLocalBackend("/")
		}
		absPath, err := filepath.Abs(loc.Path)
		if err != nil {
			return Entry{}, fmt.Errorf("resolve %s: %w", loc.Path, err)
		}
		return NewEntry(c.local, filepath.ToSlash(absPath)), nil
	}

	key := c.key(loc)
	b, ok := c.backends[key]
	if !ok {
		var err error
		b, err = c.dial(loc.Host, loc.User, c.opts)
		if err != nil {
			return Entry{}, fmt.Errorf("connect %s: %w", loc, err)
		}
		c.backends[key] = b
	}

	p := loc.Path
	if !path.IsAbs(p) {
		wd, err := workingDir(b)
		if err != nil {
			return Entry{}, fmt.Errorf("connect %s: %w", loc, err)
		}
		p = path.Join(wd, p)
	}
	return NewEntry(b, p), nil
}

// Close closes every backend the connector opened.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for key, b := range c.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", key, err))
		}
		delete(c.backends, key)
	}
	return errors.Join(errs...)
}

func (c *Connector) key(loc Location) string {
	port := c.opts.Port
	if port == 0 {
		port = 22
	}
	return loc.User + "@" + loc.Host + ":" + strconv.Itoa(port)
}

//nolint:ireturn // returns Backend interface
func dialSFTP(host, user string, opts SSHOpts) (Backend, error) {
	client, err := DialSSH(host, user, opts)
	if err != nil {
		return nil, err
	}
	b, err := NewSFTPBackend(client, "/")
	if err != nil {
		client.Close()
		return nil, err
	}
	return b, nil
}

// workingDir returns the login directory of backends that have one, or "/".
func workingDir(b Backend) (string, error) {
	type getwder interface {
		Getwd() (string, error)
	}
	if g, ok := b.(getwder); ok {
		return g.Getwd()
	}
	return "/", nil
}
