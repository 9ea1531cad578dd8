// Package transport defines the storage backends ferry copies between and the
// Entry handle used to address a location on one of them.
//
// Paths handed to a Backend are always slash-separated, regardless of the host
// OS. Each backend resolves them against its own root.
package transport

import (
	"errors"
	"io"
	"io/fs"
	"time"
)

var (
	// ErrCrossBackend is returned by operations that need both entries on the
	// same backend (e.g. Rename).
	ErrCrossBackend = errors.New("entries are on different backends")

	// ErrTooManyLinks is returned when resolving a symlink chain exceeds
	// maxLinkHops.
	ErrTooManyLinks = errors.New("too many levels of symbolic links")

	// ErrUnsupported is returned when a backend lacks an optional capability.
	ErrUnsupported = errors.ErrUnsupported
)

// EntryType classifies a filesystem entry without following symlinks.
type EntryType int

const (
	NotExists EntryType = iota
	File
	Directory
	Symlink
	Fifo
	CharDevice
	BlockDevice
	Socket
)

var entryTypeNames = [...]string{
	NotExists:   "not_exists",
	File:        "file",
	Directory:   "directory",
	Symlink:     "symlink",
	Fifo:        "fifo",
	CharDevice:  "char_device",
	BlockDevice: "block_device",
	Socket:      "socket",
}

func (t EntryType) String() string {
	if t >= 0 && int(t) < len(entryTypeNames) {
		return entryTypeNames[t]
	}
	return "unknown"
}

// IsSpecial reports whether t is a kind ferry never copies: fifos, devices
// and sockets.
func (t EntryType) IsSpecial() bool {
	switch t {
	case Fifo, CharDevice, BlockDevice, Socket:
		return true
	default:
		return false
	}
}

// EntryTypeFromMode classifies an lstat mode.
func EntryTypeFromMode(mode fs.FileMode) EntryType {
	switch {
	case mode&fs.ModeSymlink != 0:
		return Symlink
	case mode.IsDir():
		return Directory
	case mode&fs.ModeNamedPipe != 0:
		return Fifo
	case mode&fs.ModeSocket != 0:
		return Socket
	case mode&fs.ModeCharDevice != 0:
		return CharDevice
	case mode&fs.ModeDevice != 0:
		return BlockDevice
	case mode.IsRegular():
		return File
	default:
		// Irregular files (e.g. Windows reparse points) are treated like
		// sockets: something that exists but is never copied.
		return Socket
	}
}

// Info describes a single entry as returned by Backend.Stat.
type Info struct {
	ModTime time.Time
	Size    int64
	UID     uint32
	GID     uint32
	Perm    Perm
	Type    EntryType
}

// Backend is the capability set the copy engine needs from a storage
// endpoint. Implementations must never follow symlinks in Stat, Remove or
// RemoveTree.
type Backend interface {
	// Stat returns metadata for p without following a final symlink.
	// Absence is reported as an error wrapping fs.ErrNotExist.
	Stat(p string) (Info, error)

	// ReadLink returns the literal target of the symlink at p.
	ReadLink(p string) (string, error)

	// ListDir returns the names of p's children in no particular order.
	ListDir(p string) ([]string, error)

	// MakeDir creates a single directory.
	MakeDir(p string) error

	// MakeSymlink creates a symlink at p pointing to target, verbatim.
	MakeSymlink(p, target string) error

	// Remove deletes a file, symlink, special file or empty directory.
	Remove(p string) error

	// RemoveTree deletes p and, for directories, everything below it.
	RemoveTree(p string) error

	// OpenRead opens a file for reading.
	OpenRead(p string) (io.ReadCloser, error)

	// OpenWrite creates or truncates a file for writing.
	OpenWrite(p string) (io.WriteCloser, error)

	// SetPermissions replaces the permission bits of p.
	SetPermissions(p string, perm Perm) error

	// Rename atomically moves oldp to newp, replacing a file at newp.
	Rename(oldp, newp string) error

	// SameBackend reports whether other addresses the same namespace, so
	// that a path valid on one is valid on the other.
	SameBackend(other Backend) bool

	// Close releases resources held by this backend.
	Close() error
}

// FastCopier is implemented by backends that can copy file content without
// streaming it through the caller.
type FastCopier interface {
	CopyFile(src, dst string) (int64, error)
}

// Hasher is implemented by backends that can compute a BLAKE3 digest of a
// file more cheaply than by streaming it.
type Hasher interface {
	Hash(p string) (string, error)
}

// FifoMaker is implemented by backends that can create named pipes.
type FifoMaker interface {
	MakeFifo(p string) error
}

// HostPather is implemented by backends whose paths are a view onto a
// namespace other backends may also see, such as two local backends with
// different roots. Backends reporting the same namespace are compared by
// host path.
type HostPather interface {
	HostPath(p string) (namespace, hostPath string)
}
