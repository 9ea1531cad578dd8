package transport

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync/atomic"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Compile-time interface checks.
var (
	_ Backend    = (*SFTPBackend)(nil)
	_ FastCopier = (*SFTPBackend)(nil)
	_ HostPather = (*SFTPBackend)(nil)

	_ sftpRenamer = (*sftp.Client)(nil)
)

// SFTPBackend serves paths on a remote host over SFTP.
type SFTPBackend struct {
	client *sftp.Client
	ssh    *ssh.Client
	root   string

	// noExec is set once the server refuses to run commands, so the fast
	// path stops trying.
	noExec atomic.Bool
}

// NewSFTPBackend opens an SFTP session on sshClient. Paths are resolved under
// root. The backend owns sshClient; Close closes both.
func NewSFTPBackend(sshClient *ssh.Client, root string) (*SFTPBackend, error) {
	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return nil, fmt.Errorf("sftp client: %w", err)
	}
	if root == "" {
		root = "/"
	}
	return &SFTPBackend{
		client: sftpClient,
		ssh:    sshClient,
		root:   path.Clean(root),
	}, nil
}

func (b *SFTPBackend) Root() string { return b.root }

// Getwd returns the remote login directory, relative to root.
func (b *SFTPBackend) Getwd() (string, error) {
	wd, err := b.client.Getwd()
	if err != nil {
		return "", fmt.Errorf("sftp getwd: %w", err)
	}
	rel, ok := strings.CutPrefix(path.Clean(wd), b.root)
	if !ok {
		return "/", nil
	}
	return path.Clean("/" + rel), nil
}

func (b *SFTPBackend) abs(p string) string {
	return path.Join(b.root, p)
}

func (b *SFTPBackend) Stat(p string) (Info, error) {
	absPath := b.abs(p)
	info, err := b.client.Lstat(absPath)
	if err != nil {
		return Info{}, sftpErr("lstat", absPath, err)
	}
	return sftpFileInfoToInfo(info), nil
}

func (b *SFTPBackend) ReadLink(p string) (string, error) {
	absPath := b.abs(p)
	target, err := b.client.ReadLink(absPath)
	if err != nil {
		return "", sftpErr("readlink", absPath, err)
	}
	return target, nil
}

func (b *SFTPBackend) ListDir(p string) ([]string, error) {
	absPath := b.abs(p)
	infos, err := b.client.ReadDir(absPath)
	if err != nil {
		return nil, sftpErr("readdir", absPath, err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

func (b *SFTPBackend) MakeDir(p string) error {
	absPath := b.abs(p)
	return sftpErr("mkdir", absPath, b.client.Mkdir(absPath))
}

func (b *SFTPBackend) MakeSymlink(p, target string) error {
	absPath := b.abs(p)
	return sftpErr("symlink", absPath, b.client.Symlink(target, absPath))
}

func (b *SFTPBackend) Remove(p string) error {
	absPath := b.abs(p)
	return sftpErr("remove", absPath, b.client.Remove(absPath))
}

func (b *SFTPBackend) RemoveTree(p string) error {
	absPath := b.abs(p)
	return sftpErr("remove", absPath, removeAllSFTP(b.client, absPath))
}

//nolint:ireturn // implements Backend interface
func (b *SFTPBackend) OpenRead(p string) (io.ReadCloser, error) {
	absPath := b.abs(p)
	f, err := b.client.Open(absPath)
	if err != nil {
		return nil, sftpErr("open", absPath, err)
	}
	return f, nil
}

//nolint:ireturn // implements Backend interface
func (b *SFTPBackend) OpenWrite(p string) (io.WriteCloser, error) {
	absPath := b.abs(p)
	f, err := b.client.OpenFile(absPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return nil, sftpErr("create", absPath, err)
	}
	return f, nil
}

func (b *SFTPBackend) SetPermissions(p string, perm Perm) error {
	absPath := b.abs(p)
	return sftpErr("chmod", absPath, b.client.Chmod(absPath, perm.FileMode()))
}

func (b *SFTPBackend) Rename(oldp, newp string) error {
	oldAbs := b.abs(oldp)
	return sftpErr("rename", oldAbs, renameOver(b.client, oldAbs, b.abs(newp)))
}

const posixRenameExt = "posix-rename@openssh.com"

// sftpRenamer is the slice of *sftp.Client that renameOver needs.
type sftpRenamer interface {
	HasExtension(name string) (string, bool)
	PosixRename(oldname, newname string) error
	Rename(oldname, newname string) error
	Remove(p string) error
	Lstat(p string) (os.FileInfo, error)
}

// renameOver moves oldAbs onto newAbs, replacing a file already there.
// Plain SFTP rename refuses an existing target, so servers without
// posix-rename get remove + rename. Between those two calls the target is
// briefly absent; every other failure leaves it untouched.
func renameOver(c sftpRenamer, oldAbs, newAbs string) error {
	if _, ok := c.HasExtension(posixRenameExt); ok {
		err := c.PosixRename(oldAbs, newAbs)
		var statusErr *sftp.StatusError
		if !errors.As(err, &statusErr) || statusErr.FxCode() != sftp.ErrSSHFxOpUnsupported {
			return err
		}
	}

	err := c.Rename(oldAbs, newAbs)
	if err == nil {
		return nil
	}
	// An existing target is reported as a generic failure. Denied access,
	// dropped connections and the like never reach the remove.
	var statusErr *sftp.StatusError
	if !errors.As(err, &statusErr) || statusErr.FxCode() != sftp.ErrSSHFxFailure {
		return err
	}
	if _, statErr := c.Lstat(newAbs); statErr != nil {
		return err
	}
	if _, statErr := c.Lstat(oldAbs); statErr != nil {
		return err
	}
	if rmErr := c.Remove(newAbs); rmErr != nil {
		return fmt.Errorf("remove %s before rename: %w", newAbs, rmErr)
	}
	return c.Rename(oldAbs, newAbs)
}

// HostPath places p on the remote host reached through this connection.
func (b *SFTPBackend) HostPath(p string) (namespace, hostPath string) {
	return fmt.Sprintf("sftp:%p", b.ssh), b.abs(p)
}

// SameBackend is true for SFTP backends sharing one SSH connection and root.
func (b *SFTPBackend) SameBackend(other Backend) bool {
	o, ok := other.(*SFTPBackend)
	return ok && o.ssh == b.ssh && o.root == b.root
}

// CopyFile runs cp on the remote host so file content never crosses the
// network. Servers that do not allow command execution (for example an
// internal-sftp chroot) yield ErrUnsupported, and the caller streams instead.
func (b *SFTPBackend) CopyFile(src, dst string) (int64, error) {
	if b.noExec.Load() {
		return 0, ErrUnsupported
	}
	srcAbs, dstAbs := b.abs(src), b.abs(dst)

	srcInfo, err := b.client.Lstat(srcAbs)
	if err != nil {
		return 0, sftpErr("lstat", srcAbs, err)
	}

	session, err := b.ssh.NewSession()
	if err != nil {
		b.noExec.Store(true)
		return 0, fmt.Errorf("ssh session: %w", ErrUnsupported)
	}
	defer session.Close()

	cmd := "cp -- " + shellQuote(srcAbs) + " " + shellQuote(dstAbs)
	if out, err := session.CombinedOutput(cmd); err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitStatus() != 127 {
			return 0, fmt.Errorf("remote cp %s -> %s: %s: %w", src, dst, strings.TrimSpace(string(out)), err)
		}
		b.noExec.Store(true)
		return 0, fmt.Errorf("remote cp: %w", ErrUnsupported)
	}

	// A restricted shell may accept the request without running anything.
	dstInfo, err := b.client.Lstat(dstAbs)
	if err != nil || dstInfo.Size() != srcInfo.Size() {
		b.noExec.Store(true)
		_ = b.client.Remove(dstAbs)
		return 0, fmt.Errorf("remote cp produced no output: %w", ErrUnsupported)
	}
	return dstInfo.Size(), nil
}

func (b *SFTPBackend) Close() error {
	err := b.client.Close()
	if sshErr := b.ssh.Close(); sshErr != nil && err == nil {
		err = sshErr
	}
	return err
}

// sftpErr wraps an SFTP error as a PathError, normalising "no such file"
// status codes to fs.ErrNotExist.
func sftpErr(op, p string, err error) error {
	if err == nil {
		return nil
	}
	var statusErr *sftp.StatusError
	if errors.As(err, &statusErr) && statusErr.FxCode() == sftp.ErrSSHFxNoSuchFile {
		err = fs.ErrNotExist
	}
	return &fs.PathError{Op: "sftp " + op, Path: p, Err: err}
}

func sftpFileInfoToInfo(info os.FileInfo) Info {
	out := Info{
		Type:    EntryTypeFromMode(info.Mode()),
		Size:    info.Size(),
		Perm:    PermFromMode(info.Mode()),
		ModTime: info.ModTime(),
	}
	if st, ok := info.Sys().(*sftp.FileStat); ok {
		out.UID = st.UID
		out.GID = st.GID
	}
	return out
}

// removeAllSFTP recursively removes a tree over SFTP. Symlinks are removed,
// never followed.
func removeAllSFTP(client *sftp.Client, absPath string) error {
	info, err := client.Lstat(absPath)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return client.Remove(absPath)
	}

	entries, err := client.ReadDir(absPath)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		childPath := path.Join(absPath, entry.Name())
		if entry.IsDir() {
			err = removeAllSFTP(client, childPath)
		} else {
			err = client.Remove(childPath)
		}
		if err != nil {
			return err
		}
	}
	return client.RemoveDirectory(absPath)
}

// shellQuote single-quotes s for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
