//go:build windows

package datafile

import (
	"errors"
	"math"
	"os"

	"golang.org/x/sys/windows"
)

// lockFile берёт неблокирующую эксклюзивную блокировку всего файла (LockFileEx).
func lockFile(f *os.File) (func(), error) {
	h := windows.Handle(f.Fd())
	ol := new(windows.Overlapped)
	flags := uint32(windows.LOCKFILE_EXCLUSIVE_LOCK | windows.LOCKFILE_FAIL_IMMEDIATELY)
	if err := windows.LockFileEx(h, flags, 0, math.MaxUint32, math.MaxUint32, ol); err != nil {
		return func() {}, err
	}
	return func() { _ = windows.UnlockFileEx(h, 0, math.MaxUint32, math.MaxUint32, ol) }, nil
}

// isLockErr — файл открыт другой программой (Excel и т.п.) или заблокирован.
func isLockErr(err error) bool {
	return errors.Is(err, windows.ERROR_SHARING_VIOLATION) ||
		errors.Is(err, windows.ERROR_LOCK_VIOLATION) ||
		errors.Is(err, windows.ERROR_ACCESS_DENIED)
}
