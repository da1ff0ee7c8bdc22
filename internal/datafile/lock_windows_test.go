//go:build windows

package datafile

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/windows"
)

func TestClassify_WindowsLockErrors(t *testing.T) {
	tests := []struct {
		name      string
		errno     windows.Errno
		transient bool
	}{
		{"sharing violation", windows.ERROR_SHARING_VIOLATION, true},
		{"lock violation", windows.ERROR_LOCK_VIOLATION, true},
		{"access denied", windows.ERROR_ACCESS_DENIED, true},
		{"disk full", windows.ERROR_DISK_FULL, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("append", "x.dat", &os.PathError{Op: "open", Path: "x.dat", Err: tt.errno})
			var te *TransientIOError
			assert.Equal(t, tt.transient, errors.As(err, &te), "err = %v", err)
		})
	}
}

func TestAppender_LockedFileIsTransient(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.dat")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	holder, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	defer holder.Close()
	h := windows.Handle(holder.Fd())
	ol := new(windows.Overlapped)
	require.NoError(t, windows.LockFileEx(h, windows.LOCKFILE_EXCLUSIVE_LOCK, 0, math.MaxUint32, math.MaxUint32, ol))

	err = Appender{}.AppendRows(path, []string{"row"})
	var te *TransientIOError
	require.True(t, errors.As(err, &te), "ожидали TransientIOError, получили %v", err)

	require.NoError(t, windows.UnlockFileEx(h, 0, math.MaxUint32, math.MaxUint32, ol))
	require.NoError(t, Appender{}.AppendRows(path, []string{"row"}))
	data, _ := os.ReadFile(path)
	assert.Equal(t, "row\n", string(data))
}
