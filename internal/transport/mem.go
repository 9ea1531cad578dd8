package transport

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// Compile-time interface checks.
var (
	_ Backend    = (*MemBackend)(nil)
	_ FastCopier = (*MemBackend)(nil)
	_ FifoMaker  = (*MemBackend)(nil)
)

var (
	errNotDir   = errors.New("not a directory")
	errIsDir    = errors.New("is a directory")
	errNotEmpty = errors.New("directory not empty")
	errNotLink  = errors.New("not a symlink")
)

const (
	memDirPerm  Perm = 0o755
	memFilePerm Perm = 0o644
	memLinkPerm Perm = 0o777
)

type memNode struct {
	typ     EntryType
	data    []byte
	target  string
	perm    Perm
	modTime time.Time
}

// MemBackend is an in-memory filesystem. It supports every entry type,
// including specials, and can inject failures. Safe for concurrent use.
type MemBackend struct {
	mu       sync.Mutex
	nodes    map[string]*memNode
	failures map[memFailKey]error
}

type memFailKey struct {
	op   string
	path string
}

// NewMemBackend returns an empty filesystem containing only "/".
func NewMemBackend() *MemBackend {
	return &MemBackend{
		nodes: map[string]*memNode{
			"/": {typ: Directory, perm: memDirPerm, modTime: time.Now()},
		},
		failures: make(map[memFailKey]error),
	}
}

// FailOn makes every later call of op (a Backend method name such as
// "OpenWrite" or "Rename") on p return err. A nil err clears the failure.
func (b *MemBackend) FailOn(op, p string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := memFailKey{op: op, path: path.Clean("/" + p)}
	if err == nil {
		delete(b.failures, key)
		return
	}
	b.failures[key] = err
}

// MakeSpecial creates a fifo, device or socket node at p.
func (b *MemBackend) MakeSpecial(p string, typ EntryType) error {
	if !typ.IsSpecial() {
		return &fs.PathError{Op: "mknod", Path: p, Err: fs.ErrInvalid}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.create("mknod", p, &memNode{typ: typ, perm: memFilePerm})
}

func (b *MemBackend) MakeFifo(p string) error {
	return b.MakeSpecial(p, Fifo)
}

// Paths lists every path in the filesystem, sorted.
func (b *MemBackend) Paths() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	paths := make([]string, 0, len(b.nodes))
	for p := range b.nodes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (b *MemBackend) Stat(p string) (Info, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.lookup("stat", p)
	if err != nil {
		return Info{}, err
	}
	return Info{
		Type:    n.typ,
		Size:    int64(len(n.data)),
		Perm:    n.perm,
		ModTime: n.modTime,
	}, nil
}

func (b *MemBackend) ReadLink(p string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.lookup("readlink", p)
	if err != nil {
		return "", err
	}
	if n.typ != Symlink {
		return "", &fs.PathError{Op: "readlink", Path: p, Err: errNotLink}
	}
	return n.target, nil
}

func (b *MemBackend) ListDir(p string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p = path.Clean("/" + p)
	n, err := b.lookup("readdir", p)
	if err != nil {
		return nil, err
	}
	if n.typ != Directory {
		return nil, &fs.PathError{Op: "readdir", Path: p, Err: errNotDir}
	}
	return b.children(p), nil
}

func (b *MemBackend) MakeDir(p string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.create("mkdir", p, &memNode{typ: Directory, perm: memDirPerm})
}

func (b *MemBackend) MakeSymlink(p, target string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.create("symlink", p, &memNode{typ: Symlink, target: target, perm: memLinkPerm})
}

func (b *MemBackend) Remove(p string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p = path.Clean("/" + p)
	n, err := b.lookup("remove", p)
	if err != nil {
		return err
	}
	if n.typ == Directory && len(b.children(p)) > 0 {
		return &fs.PathError{Op: "remove", Path: p, Err: errNotEmpty}
	}
	delete(b.nodes, p)
	return nil
}

func (b *MemBackend) RemoveTree(p string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p = path.Clean("/" + p)
	if _, err := b.lookup("remove", p); err != nil {
		return err
	}
	for q := range b.nodes {
		if q == p || isUnder(q, p) {
			delete(b.nodes, q)
		}
	}
	return nil
}

//nolint:ireturn // implements Backend interface
func (b *MemBackend) OpenRead(p string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.lookup("open", p)
	if err != nil {
		return nil, err
	}
	if n.typ != File {
		return nil, &fs.PathError{Op: "open", Path: p, Err: errIsDir}
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(n.data))), nil
}

//nolint:ireturn // implements Backend interface
func (b *MemBackend) OpenWrite(p string) (io.WriteCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p = path.Clean("/" + p)
	if err := b.fail("OpenWrite", p); err != nil {
		return nil, &fs.PathError{Op: "create", Path: p, Err: err}
	}
	n, ok := b.nodes[p]
	switch {
	case !ok:
		n = &memNode{typ: File, perm: memFilePerm}
		if err := b.create("create", p, n); err != nil {
			return nil, err
		}
	case n.typ != File:
		return nil, &fs.PathError{Op: "create", Path: p, Err: errIsDir}
	default:
		n.data = nil
		n.modTime = time.Now()
	}
	return &memWriter{b: b, p: p, n: n}, nil
}

func (b *MemBackend) SetPermissions(p string, perm Perm) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.lookup("chmod", p)
	if err != nil {
		return err
	}
	if err := b.fail("SetPermissions", p); err != nil {
		return &fs.PathError{Op: "chmod", Path: p, Err: err}
	}
	n.perm = perm & permMask
	return nil
}

func (b *MemBackend) Rename(oldp, newp string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	oldp, newp = path.Clean("/"+oldp), path.Clean("/"+newp)
	n, err := b.lookup("rename", oldp)
	if err != nil {
		return err
	}
	if err := b.fail("Rename", newp); err != nil {
		return &fs.PathError{Op: "rename", Path: newp, Err: err}
	}
	if oldp == newp {
		return nil
	}
	if isUnder(newp, oldp) {
		return &fs.PathError{Op: "rename", Path: newp, Err: fs.ErrInvalid}
	}
	if err := b.checkParent("rename", newp); err != nil {
		return err
	}
	if existing, ok := b.nodes[newp]; ok {
		switch {
		case existing.typ == Directory && n.typ != Directory:
			return &fs.PathError{Op: "rename", Path: newp, Err: errIsDir}
		case existing.typ == Directory && len(b.children(newp)) > 0:
			return &fs.PathError{Op: "rename", Path: newp, Err: errNotEmpty}
		case existing.typ != Directory && n.typ == Directory:
			return &fs.PathError{Op: "rename", Path: newp, Err: errNotDir}
		}
	}

	for q, child := range b.nodes {
		if isUnder(q, oldp) {
			delete(b.nodes, q)
			b.nodes[newp+strings.TrimPrefix(q, oldp)] = child
		}
	}
	delete(b.nodes, oldp)
	b.nodes[newp] = n
	return nil
}

// SameBackend is true only for the identical instance.
func (b *MemBackend) SameBackend(other Backend) bool {
	o, ok := other.(*MemBackend)
	return ok && o == b
}

func (b *MemBackend) CopyFile(src, dst string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.lookup("open", src)
	if err != nil {
		return 0, err
	}
	if n.typ != File {
		return 0, &fs.PathError{Op: "open", Path: src, Err: errIsDir}
	}
	dst = path.Clean("/" + dst)
	if err := b.fail("CopyFile", dst); err != nil {
		return 0, &fs.PathError{Op: "copy", Path: dst, Err: err}
	}
	if existing, ok := b.nodes[dst]; ok {
		if existing.typ != File {
			return 0, &fs.PathError{Op: "create", Path: dst, Err: errIsDir}
		}
		existing.data = bytes.Clone(n.data)
		existing.modTime = time.Now()
		return int64(len(n.data)), nil
	}
	if err := b.create("create", dst, &memNode{typ: File, perm: memFilePerm, data: bytes.Clone(n.data)}); err != nil {
		return 0, err
	}
	return int64(len(n.data)), nil
}

func (*MemBackend) Close() error { return nil }

// lookup returns the node at p. Callers hold b.mu.
func (b *MemBackend) lookup(op, p string) (*memNode, error) {
	p = path.Clean("/" + p)
	if err := b.fail(opName(op), p); err != nil {
		return nil, &fs.PathError{Op: op, Path: p, Err: err}
	}
	n, ok := b.nodes[p]
	if !ok {
		if err := b.checkParent(op, p); err != nil {
			return nil, err
		}
		return nil, &fs.PathError{Op: op, Path: p, Err: fs.ErrNotExist}
	}
	return n, nil
}

// create adds n at p, which must not exist and whose parent must be a
// directory. Callers hold b.mu.
func (b *MemBackend) create(op, p string, n *memNode) error {
	p = path.Clean("/" + p)
	if err := b.fail(opName(op), p); err != nil {
		return &fs.PathError{Op: op, Path: p, Err: err}
	}
	if _, ok := b.nodes[p]; ok {
		return &fs.PathError{Op: op, Path: p, Err: fs.ErrExist}
	}
	if err := b.checkParent(op, p); err != nil {
		return err
	}
	n.modTime = time.Now()
	b.nodes[p] = n
	return nil
}

func (b *MemBackend) checkParent(op, p string) error {
	parent, ok := b.nodes[path.Dir(p)]
	switch {
	case !ok:
		return &fs.PathError{Op: op, Path: p, Err: fs.ErrNotExist}
	case parent.typ != Directory:
		return &fs.PathError{Op: op, Path: p, Err: errNotDir}
	}
	return nil
}

func (b *MemBackend) children(dir string) []string {
	var names []string
	for q := range b.nodes {
		if q != "/" && path.Dir(q) == dir {
			names = append(names, path.Base(q))
		}
	}
	return names
}

func (b *MemBackend) fail(op, p string) error {
	return b.failures[memFailKey{op: op, path: p}]
}

// opName maps the op label used in PathErrors to the Backend method name
// FailOn is keyed by.
func opName(op string) string {
	switch op {
	case "stat":
		return "Stat"
	case "readlink":
		return "ReadLink"
	case "readdir":
		return "ListDir"
	case "mkdir":
		return "MakeDir"
	case "symlink":
		return "MakeSymlink"
	case "remove":
		return "Remove"
	case "open":
		return "OpenRead"
	case "mknod":
		return "MakeFifo"
	default:
		return op
	}
}

func isUnder(p, dir string) bool {
	if dir == "/" {
		return p != "/"
	}
	return strings.HasPrefix(p, dir+"/")
}

// memWriter appends to a file node. Writes after the node was removed or
// replaced are silently dropped, like writes to an unlinked file.
type memWriter struct {
	b      *MemBackend
	p      string
	n      *memNode
	closed bool
}

func (w *memWriter) Write(data []byte) (int, error) {
	w.b.mu.Lock()
	defer w.b.mu.Unlock()
	if w.closed {
		return 0, fs.ErrClosed
	}
	if err := w.b.fail("Write", w.p); err != nil {
		return 0, &fs.PathError{Op: "write", Path: w.p, Err: err}
	}
	w.n.data = append(w.n.data, data...)
	w.n.modTime = time.Now()
	return len(data), nil
}

func (w *memWriter) Close() error {
	w.b.mu.Lock()
	defer w.b.mu.Unlock()
	if w.closed {
		return fs.ErrClosed
	}
	w.closed = true
	return nil
}
