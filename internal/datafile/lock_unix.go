//go:build linux || darwin || freebsd || netbsd || openbsd

package datafile

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// lockFile берёт неблокирующую эксклюзивную flock-блокировку.
// Если файл держит другой процесс — EWOULDBLOCK, запись откладывается.
func lockFile(f *os.File) (func(), error) {
	fd := int(f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return func() {}, err
	}
	return func() { _ = unix.Flock(fd, unix.LOCK_UN) }, nil
}

// isLockErr — признаки временной недоступности файла.
func isLockErr(err error) bool {
	return errors.Is(err, unix.EWOULDBLOCK) ||
		errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.EBUSY) ||
		errors.Is(err, unix.ETXTBSY) ||
		errors.Is(err, unix.EACCES) ||
		errors.Is(err, unix.EPERM)
}
