//go:build linux || darwin || freebsd || netbsd || openbsd

package datafile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// Файл заблокирован другим дескриптором — запись временно невозможна, данные не пишутся.
func TestAppender_LockedFileIsTransient(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.dat")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	holder, err := os.Open(path)
	require.NoError(t, err)
	defer holder.Close()
	require.NoError(t, unix.Flock(int(holder.Fd()), unix.LOCK_EX))

	err = Appender{}.AppendRows(path, []string{"row"})
	var te *TransientIOError
	require.True(t, errors.As(err, &te), "ожидали TransientIOError, получили %v", err)

	data, _ := os.ReadFile(path)
	assert.Empty(t, data)

	require.NoError(t, unix.Flock(int(holder.Fd()), unix.LOCK_UN))
	require.NoError(t, Appender{}.AppendRows(path, []string{"row"}))
	data, _ = os.ReadFile(path)
	assert.Equal(t, "row\n", string(data))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		op        string
		err       error
		transient bool
	}{
		{"header create locked", "create", unix.EWOULDBLOCK, true},
		{"header create denied", "create", unix.EACCES, true},
		{"append busy", "append", unix.EBUSY, true},
		{"no space", "append", unix.ENOSPC, false},
		{"missing dir", "create", unix.ENOENT, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.op, "x.dat", &os.PathError{Op: "open", Path: "x.dat", Err: tt.err})
			var te *TransientIOError
			assert.Equal(t, tt.transient, errors.As(err, &te), "err = %v", err)
			if !tt.transient {
				assert.Contains(t, err.Error(), tt.op+" x.dat")
			}
		})
	}
}
