//go:build !(linux || darwin || freebsd || netbsd || openbsd || windows)

package datafile

import "os"

// lockFile — заглушка: на прочих ОС блокировка не поддерживается, временными считаются только ошибки прав.
func lockFile(f *os.File) (func(), error) {
	_ = f
	return func() {}, nil
}

func isLockErr(err error) bool {
	_ = err
	return false
}
