package transport

import (
	"io/fs"
	"os"
	"testing"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRenamer models a server's file table with switchable posix-rename
// support and injectable failures.
type fakeRenamer struct {
	files    map[string]string
	posixExt bool

	posixErr  error
	renameErr error
	calls     []string
}

func (f *fakeRenamer) HasExtension(name string) (string, bool) {
	if name == posixRenameExt && f.posixExt {
		return "1", true
	}
	return "", false
}

func (f *fakeRenamer) PosixRename(oldname, newname string) error {
	f.calls = append(f.calls, "posix-rename")
	if f.posixErr != nil {
		return f.posixErr
	}
	return f.move(oldname, newname, true)
}

func (f *fakeRenamer) Rename(oldname, newname string) error {
	f.calls = append(f.calls, "rename")
	if f.renameErr != nil {
		return f.renameErr
	}
	return f.move(oldname, newname, false)
}

func (f *fakeRenamer) Remove(p string) error {
	f.calls = append(f.calls, "remove")
	if _, ok := f.files[p]; !ok {
		return &sftp.StatusError{Code: 2}
	}
	delete(f.files, p)
	return nil
}

func (f *fakeRenamer) Lstat(p string) (os.FileInfo, error) {
	if _, ok := f.files[p]; !ok {
		return nil, fs.ErrNotExist
	}
	return nil, nil //nolint:nilnil // only existence matters here
}

func (f *fakeRenamer) move(oldname, newname string, replace bool) error {
	data, ok := f.files[oldname]
	if !ok {
		return &sftp.StatusError{Code: 2}
	}
	if _, exists := f.files[newname]; exists && !replace {
		return &sftp.StatusError{Code: 4} // SSH_FX_FAILURE
	}
	delete(f.files, oldname)
	f.files[newname] = data
	return nil
}

func TestRenameOver(t *testing.T) {
	t.Parallel()

	permDenied := &sftp.StatusError{Code: 3}

	tests := []struct {
		name      string
		fake      *fakeRenamer
		wantErr   bool
		wantFiles map[string]string
		wantCalls []string
	}{
		{
			name:      "posix rename replaces target",
			fake:      &fakeRenamer{posixExt: true},
			wantFiles: map[string]string{"/new": "fresh"},
			wantCalls: []string{"posix-rename"},
		},
		{
			name:      "posix rename denied keeps target",
			fake:      &fakeRenamer{posixExt: true, posixErr: permDenied},
			wantErr:   true,
			wantFiles: map[string]string{"/old": "fresh", "/new": "stale"},
			wantCalls: []string{"posix-rename"},
		},
		{
			name:      "op unsupported falls back",
			fake:      &fakeRenamer{posixExt: true, posixErr: &sftp.StatusError{Code: 8}},
			wantFiles: map[string]string{"/new": "fresh"},
			wantCalls: []string{"posix-rename", "rename", "remove", "rename"},
		},
		{
			name:      "no extension removes then renames",
			fake:      &fakeRenamer{},
			wantFiles: map[string]string{"/new": "fresh"},
			wantCalls: []string{"rename", "remove", "rename"},
		},
		{
			name:      "plain rename denied never removes",
			fake:      &fakeRenamer{renameErr: permDenied},
			wantErr:   true,
			wantFiles: map[string]string{"/old": "fresh", "/new": "stale"},
			wantCalls: []string{"rename"},
		},
		{
			name:      "connection lost never removes",
			fake:      &fakeRenamer{posixExt: true, posixErr: sftp.ErrSSHFxConnectionLost},
			wantErr:   true,
			wantFiles: map[string]string{"/old": "fresh", "/new": "stale"},
			wantCalls: []string{"posix-rename"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.fake.files = map[string]string{"/old": "fresh", "/new": "stale"}

			err := renameOver(tt.fake, "/old", "/new")
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantFiles, tt.fake.files)
			assert.Equal(t, tt.wantCalls, tt.fake.calls)
		})
	}
}
