// Package datafile — имена файлов данных, однократный заголовок и дозапись строк.
package datafile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Ext — расширение файлов данных.
const Ext = ".dat"

// TimestampLayout — формат метки времени в строке данных.
const TimestampLayout = "2006-01-02 15:04:05"

// Name строит путь нового файла: <dir>/<instrument>_YYYYMMDD_HHMM.dat
func Name(dir, instrument string, t time.Time) string {
	return filepath.Join(dir, instrument+t.Format("_20060102_1504")+Ext)
}

// TransientIOError — файл временно недоступен для записи (блокировка, нет прав).
// Буфер строк при такой ошибке сохраняется, запись повторяется на следующем такте.
type TransientIOError struct {
	Path string
	Err  error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("%s temporarily unwritable: %v", e.Path, e.Err)
}

func (e *TransientIOError) Unwrap() error { return e.Err }

// Transient помечает ошибку как временную (см. rowbuf).
func (e *TransientIOError) Transient() bool { return true }

// WriteHeaderOnce пишет заголовок (строку с переводом строки), только если файла ещё нет.
// Возвращает true, если заголовок записан. Повторный запуск процесса не дублирует заголовок.
// Ошибки прав и блокировки при создании — *TransientIOError.
func WriteHeaderOnce(header, path string) (bool, error) {
	if header == "" {
		return false, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, classify("create", path, err)
	}
	defer f.Close()
	if !strings.HasSuffix(header, "\n") {
		header += "\n"
	}
	if _, err := io.WriteString(f, header); err != nil {
		return false, fmt.Errorf("write header %s: %w", path, err)
	}
	return true, nil
}

// Appender дописывает строки в файл данных одной записью под advisory-блокировкой.
type Appender struct{}

// AppendRows дописывает rows (каждую с "\n") в path. Пустой список — без ввода-вывода.
// Ошибки прав и блокировки возвращаются как *TransientIOError.
func (Appender) AppendRows(path string, rows []string) error {
	if len(rows) == 0 {
		return nil
	}
	var sb strings.Builder
	for _, r := range rows {
		sb.WriteString(r)
		sb.WriteByte('\n')
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return classify("append", path, err)
	}
	defer f.Close()
	unlock, err := lockFile(f)
	if err != nil {
		return classify("append", path, err)
	}
	defer unlock()
	if _, err := io.WriteString(f, sb.String()); err != nil {
		return classify("append", path, err)
	}
	return nil
}

// classify отделяет временную недоступность файла от фатальных ошибок ввода-вывода.
func classify(op, path string, err error) error {
	if errors.Is(err, fs.ErrPermission) || isLockErr(err) {
		return &TransientIOError{Path: path, Err: err}
	}
	return fmt.Errorf("%s %s: %w", op, path, err)
}

// LastLine возвращает последнюю непустую строку файла.
func LastLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	var last string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimRight(sc.Text(), "\r"); line != "" {
			last = line
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return last, nil
}

// Latest возвращает самый свежий (по времени изменения) .dat файл каталога.
func Latest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	type cand struct {
		path string
		mod  time.Time
	}
	var files []cand
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != Ext {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, cand{filepath.Join(dir, e.Name()), info.ModTime()})
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no %s files in %s", Ext, dir)
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].mod.Equal(files[j].mod) {
			return files[i].path > files[j].path
		}
		return files[i].mod.After(files[j].mod)
	})
	return files[0].path, nil
}
