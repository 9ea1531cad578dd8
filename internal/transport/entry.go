package transport

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
)

// maxLinkHops bounds recursive symlink resolution.
const maxLinkHops = 32

// Entry names one location on one backend. It is a plain value: creating an
// Entry touches nothing, and two entries may alias the same location.
type Entry struct {
	backend Backend
	path    string
}

// NewEntry returns an entry for p on b. p is cleaned and made absolute.
func NewEntry(b Backend, p string) Entry {
	return Entry{backend: b, path: path.Clean("/" + p)}
}

func (e Entry) Backend() Backend { return e.backend }
func (e Entry) Path() string     { return e.path }
func (e Entry) String() string   { return e.path }

// Name returns the last element of the path.
func (e Entry) Name() string { return path.Base(e.path) }

// Parent returns the containing directory. The parent of "/" is "/".
func (e Entry) Parent() Entry {
	return Entry{backend: e.backend, path: path.Dir(e.path)}
}

// Join returns the entry for e's path extended by elem.
func (e Entry) Join(elem ...string) Entry {
	return NewEntry(e.backend, path.Join(append([]string{e.path}, elem...)...))
}

// SameBackend reports whether e and other live on the same backend.
func (e Entry) SameBackend(other Entry) bool {
	return e.backend.SameBackend(other.backend)
}

// Overlaps reports whether e and other name the same location or one lies
// inside the other. Entries on unrelated backends never overlap.
func (e Entry) Overlaps(other Entry) bool {
	a, b := e.path, other.path
	if !e.SameBackend(other) {
		hp, ok1 := e.backend.(HostPather)
		ohp, ok2 := other.backend.(HostPather)
		if !ok1 || !ok2 {
			return false
		}
		var ns, ons string
		ns, a = hp.HostPath(e.path)
		ons, b = ohp.HostPath(other.path)
		if ns != ons {
			return false
		}
	}
	return a == b || isUnder(a, b) || isUnder(b, a)
}

// Stat returns metadata without following a final symlink.
func (e Entry) Stat() (Info, error) {
	return e.backend.Stat(e.path)
}

// Type returns the entry type, or NotExists (with a nil error) if nothing
// is at this path.
func (e Entry) Type() (EntryType, error) {
	info, err := e.backend.Stat(e.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NotExists, nil
		}
		return NotExists, err
	}
	return info.Type, nil
}

// Exists reports whether anything, including a dangling symlink, is at this
// path.
func (e Entry) Exists() (bool, error) {
	t, err := e.Type()
	return t != NotExists, err
}

// IsFile reports whether e is a regular file. Errors read as false.
func (e Entry) IsFile() bool { return e.is(File) }

// IsDir reports whether e is a directory. Errors read as false.
func (e Entry) IsDir() bool { return e.is(Directory) }

// IsSymlink reports whether e is a symlink. Errors read as false.
func (e Entry) IsSymlink() bool { return e.is(Symlink) }

func (e Entry) is(want EntryType) bool {
	t, err := e.Type()
	return err == nil && t == want
}

// Size returns the size in bytes.
func (e Entry) Size() (int64, error) {
	info, err := e.Stat()
	return info.Size, err
}

// Perm returns the permission bits.
func (e Entry) Perm() (Perm, error) {
	info, err := e.Stat()
	return info.Perm, err
}

// UID returns the owning user id.
func (e Entry) UID() (uint32, error) {
	info, err := e.Stat()
	return info.UID, err
}

// GID returns the owning group id.
func (e Entry) GID() (uint32, error) {
	info, err := e.Stat()
	return info.GID, err
}

// HasPermission reports whether bit p is set.
func (e Entry) HasPermission(p Perm) (bool, error) {
	perm, err := e.Perm()
	if err != nil {
		return false, err
	}
	return perm.Has(p), nil
}

// SetPermission sets or clears a single bit, leaving the others alone.
func (e Entry) SetPermission(p Perm, on bool) error {
	perm, err := e.Perm()
	if err != nil {
		return err
	}
	return e.backend.SetPermissions(e.path, perm.Set(p, on))
}

// Chmod replaces all permission bits.
func (e Entry) Chmod(perm Perm) error {
	return e.backend.SetPermissions(e.path, perm)
}

// LinkTarget returns the literal target string of a symlink.
func (e Entry) LinkTarget() (string, error) {
	return e.backend.ReadLink(e.path)
}

// Readlink resolves the symlink at e. Relative targets are interpreted
// against the link's directory. With recursive, the chain is followed until
// a non-link (or missing) entry is reached.
func (e Entry) Readlink(recursive bool) (Entry, error) {
	cur := e
	for hops := 0; ; hops++ {
		if hops == maxLinkHops {
			return Entry{}, fmt.Errorf("readlink %s: %w", e.path, ErrTooManyLinks)
		}
		target, err := cur.LinkTarget()
		if err != nil {
			return Entry{}, err
		}
		if !path.IsAbs(target) {
			target = path.Join(cur.Parent().path, target)
		}
		cur = NewEntry(e.backend, target)
		if !recursive || !cur.IsSymlink() {
			return cur, nil
		}
	}
}

// SymlinkTo creates a symlink at e pointing to target, verbatim.
func (e Entry) SymlinkTo(target string) error {
	return e.backend.MakeSymlink(e.path, target)
}

// MakeFifo creates a named pipe at e, if the backend supports it.
func (e Entry) MakeFifo() error {
	fm, ok := e.backend.(FifoMaker)
	if !ok {
		return fmt.Errorf("mkfifo %s: %w", e.path, ErrUnsupported)
	}
	return fm.MakeFifo(e.path)
}

// Mkdir creates a directory at e. With parents, missing ancestors are
// created first. With existOK, an existing directory is not an error.
func (e Entry) Mkdir(parents, existOK bool) error {
	if parents && e.path != "/" {
		parent := e.Parent()
		if err := parent.Mkdir(true, true); err != nil {
			return err
		}
	}

	t, err := e.Type()
	if err != nil {
		return err
	}
	switch {
	case t == Directory && existOK:
		return nil
	case t != NotExists:
		return fmt.Errorf("mkdir %s: %w", e.path, fs.ErrExist)
	}
	return e.backend.MakeDir(e.path)
}

// Touch creates an empty file at e if nothing is there yet.
func (e Entry) Touch() error {
	exists, err := e.Exists()
	if err != nil || exists {
		return err
	}
	w, err := e.backend.OpenWrite(e.path)
	if err != nil {
		return err
	}
	return w.Close()
}

// List returns the names of e's children in no particular order.
func (e Entry) List() ([]string, error) {
	return e.backend.ListDir(e.path)
}

// Children returns entries for e's children in no particular order.
func (e Entry) Children() ([]Entry, error) {
	names, err := e.List()
	if err != nil {
		return nil, err
	}
	children := make([]Entry, 0, len(names))
	for _, name := range names {
		children = append(children, e.Join(name))
	}
	return children, nil
}

// Remove deletes a file, symlink or special file. Directories must use
// Rmdir or RemoveTree.
func (e Entry) Remove() error {
	return e.backend.Remove(e.path)
}

// RemoveTree deletes e and everything below it.
func (e Entry) RemoveTree() error {
	return e.backend.RemoveTree(e.path)
}

// Rmdir removes the directory at e. A missing entry is not an error. With
// recursive, contents are removed first; symlinks inside are unlinked,
// never followed.
func (e Entry) Rmdir(recursive bool) error {
	t, err := e.Type()
	if err != nil || t == NotExists {
		return err
	}
	if t != Directory {
		return fmt.Errorf("rmdir %s: not a directory", e.path)
	}

	if recursive {
		children, err := e.Children()
		if err != nil {
			return err
		}
		for _, child := range children {
			ct, err := child.Type()
			if err != nil {
				return err
			}
			if ct == Directory {
				err = child.Rmdir(true)
			} else {
				err = child.Remove()
			}
			if err != nil {
				return err
			}
		}
	}
	return e.backend.Remove(e.path)
}

// Rename moves e to to. Both entries must be on the same backend.
func (e Entry) Rename(to Entry) error {
	if !e.SameBackend(to) {
		return fmt.Errorf("rename %s -> %s: %w", e.path, to.path, ErrCrossBackend)
	}
	return e.backend.Rename(e.path, to.path)
}

// ReadBytes returns the whole content of the file at e.
func (e Entry) ReadBytes() ([]byte, error) {
	r, err := e.backend.OpenRead(e.path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// WriteBytes replaces the content of the file at e with data.
func (e Entry) WriteBytes(data []byte) error {
	w, err := e.backend.OpenWrite(e.path)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
