package transport

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/bamsammich/ferry/internal/platform"
)

// Compile-time interface checks.
var (
	_ Backend    = (*LocalBackend)(nil)
	_ FastCopier = (*LocalBackend)(nil)
	_ Hasher     = (*LocalBackend)(nil)
	_ FifoMaker  = (*LocalBackend)(nil)
	_ HostPather = (*LocalBackend)(nil)
)

// LocalBackend serves paths from the local filesystem, resolved under root.
type LocalBackend struct {
	root string
}

// NewLocalBackend creates a local backend rooted at root. An empty root
// means the filesystem root.
func NewLocalBackend(root string) *LocalBackend {
	if root == "" {
		root = string(filepath.Separator)
	}
	return &LocalBackend{root: filepath.Clean(root)}
}

func (b *LocalBackend) Root() string { return b.root }
func (*LocalBackend) Close() error   { return nil }

// AbsPath returns the host path for a backend path. This is the escape
// hatch for tests and local-only tooling that need raw filesystem access.
func (b *LocalBackend) AbsPath(p string) string {
	return filepath.Join(b.root, filepath.FromSlash(p))
}

func (b *LocalBackend) Stat(p string) (Info, error) {
	info, err := os.Lstat(b.AbsPath(p))
	if err != nil {
		return Info{}, err
	}
	return fileInfoToInfo(info), nil
}

func (b *LocalBackend) ReadLink(p string) (string, error) {
	return os.Readlink(b.AbsPath(p))
}

func (b *LocalBackend) ListDir(p string) ([]string, error) {
	f, err := os.Open(b.AbsPath(p))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, fmt.Errorf("readdir %s: %w", p, err)
	}
	return names, nil
}

func (b *LocalBackend) MakeDir(p string) error {
	return os.Mkdir(b.AbsPath(p), 0o777)
}

func (b *LocalBackend) MakeSymlink(p, target string) error {
	return os.Symlink(target, b.AbsPath(p))
}

func (b *LocalBackend) Remove(p string) error {
	return os.Remove(b.AbsPath(p))
}

func (b *LocalBackend) RemoveTree(p string) error {
	absPath := b.AbsPath(p)
	if _, err := os.Lstat(absPath); err != nil {
		return err
	}
	return os.RemoveAll(absPath)
}

//nolint:ireturn // implements Backend interface
func (b *LocalBackend) OpenRead(p string) (io.ReadCloser, error) {
	return os.Open(b.AbsPath(p))
}

//nolint:ireturn // implements Backend interface
func (b *LocalBackend) OpenWrite(p string) (io.WriteCloser, error) {
	return os.OpenFile(b.AbsPath(p), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
}

func (b *LocalBackend) SetPermissions(p string, perm Perm) error {
	return os.Chmod(b.AbsPath(p), perm.FileMode())
}

func (b *LocalBackend) Rename(oldp, newp string) error {
	return os.Rename(b.AbsPath(oldp), b.AbsPath(newp))
}

// HostPath places p in the host filesystem, so local backends with
// different roots can still detect overlapping entries.
func (b *LocalBackend) HostPath(p string) (namespace, hostPath string) {
	return "local", filepath.ToSlash(b.AbsPath(p))
}

// SameBackend is true for any local backend with the same root. Backends
// with nested roots are distinct here and go through HostPath instead.
func (b *LocalBackend) SameBackend(other Backend) bool {
	o, ok := other.(*LocalBackend)
	return ok && o.root == b.root
}

// CopyFile copies src to dst in the kernel where possible
// (copy_file_range, sendfile), falling back to read/write.
func (b *LocalBackend) CopyFile(src, dst string) (int64, error) {
	srcFd, err := os.Open(b.AbsPath(src))
	if err != nil {
		return 0, err
	}
	defer srcFd.Close()

	info, err := srcFd.Stat()
	if err != nil {
		return 0, err
	}

	dstFd, err := os.OpenFile(b.AbsPath(dst), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
	if err != nil {
		return 0, err
	}

	result, err := platform.CopyFile(platform.CopyFileParams{
		Src:  srcFd,
		Dst:  dstFd,
		Size: info.Size(),
	})
	if closeErr := dstFd.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return result.BytesWritten, fmt.Errorf("%s copy %s -> %s: %w", result.Method, src, dst, err)
	}
	return result.BytesWritten, nil
}

func (b *LocalBackend) Hash(p string) (string, error) {
	f, err := os.Open(b.AbsPath(p))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", p, err)
	}
	defer f.Close()
	return hashReader(f)
}

func (b *LocalBackend) MakeFifo(p string) error {
	absPath := b.AbsPath(p)
	if err := unix.Mkfifo(absPath, 0o666); err != nil {
		return &os.PathError{Op: "mkfifo", Path: absPath, Err: err}
	}
	return nil
}

// fileInfoToInfo converts an lstat result to Info.
func fileInfoToInfo(info os.FileInfo) Info {
	out := Info{
		Type:    EntryTypeFromMode(info.Mode()),
		Size:    info.Size(),
		Perm:    PermFromMode(info.Mode()),
		ModTime: info.ModTime(),
	}
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		out.UID = stat.Uid
		out.GID = stat.Gid
	}
	return out
}
