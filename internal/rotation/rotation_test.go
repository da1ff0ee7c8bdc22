package rotation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shiwa/daqlog/internal/datafile"
	"github.com/shiwa/daqlog/internal/schedule"
)

func newManager(t *testing.T, dir, interval, header string) *Manager {
	t.Helper()
	spec, err := schedule.Parse(interval)
	if err != nil {
		t.Fatal(err)
	}
	return New(spec, func(ts time.Time) string { return datafile.Name(dir, "G2401", ts) }, header)
}

// Ежедневная ротация: файл 23:59:58 и проверка в 00:00:01 дают разные активные файлы.
func TestCheck_DailyRotation(t *testing.T) {
	dir := t.TempDir()
	m := newManager(t, dir, "daily", "")
	before := time.Date(2025, 1, 15, 23, 59, 58, 0, time.UTC)
	old, err := m.Open(before)
	if err != nil {
		t.Fatal(err)
	}

	path, rotated, err := m.Check(before.Add(time.Second))
	if err != nil || rotated || path != old.Path {
		t.Fatalf("23:59:59: path=%s rotated=%v err=%v", path, rotated, err)
	}

	after := time.Date(2025, 1, 16, 0, 0, 1, 0, time.UTC)
	path, rotated, err = m.Check(after)
	if err != nil {
		t.Fatal(err)
	}
	if !rotated || path == old.Path {
		t.Fatalf("00:00:01: ожидали новый файл, path=%s rotated=%v", path, rotated)
	}
	if m.Active().Path != path {
		t.Error("Active() должен вернуть новый файл")
	}

	// Второй такт в том же окне не создаёт ещё один файл.
	path2, rotated, err := m.Check(after.Add(2 * time.Second))
	if err != nil || rotated || path2 != path {
		t.Errorf("повторная проверка в окне: path=%s rotated=%v err=%v", path2, rotated, err)
	}
}

func TestCheck_OutsideWindowKeepsFile(t *testing.T) {
	m := newManager(t, t.TempDir(), "15m", "")
	start := time.Date(2025, 1, 15, 10, 3, 0, 0, time.UTC)
	af, _ := m.Open(start)
	// Граница 10:15, но секунда 5 — уже вне окна.
	path, rotated, err := m.Check(time.Date(2025, 1, 15, 10, 15, 5, 0, time.UTC))
	if err != nil || rotated || path != af.Path {
		t.Errorf("path=%s rotated=%v err=%v", path, rotated, err)
	}
	path, rotated, err = m.Check(time.Date(2025, 1, 15, 10, 15, 0, 0, time.UTC))
	if err != nil || !rotated || path == af.Path {
		t.Errorf("10:15:00: path=%s rotated=%v err=%v", path, rotated, err)
	}
}

// Запуск внутри окна границы: Open уже создал файл этого периода, Check не ротирует.
func TestCheck_StartInsideWindow(t *testing.T) {
	m := newManager(t, t.TempDir(), "1h", "")
	start := time.Date(2025, 1, 15, 11, 0, 1, 0, time.UTC)
	af, _ := m.Open(start)
	path, rotated, err := m.Check(start.Add(2 * time.Second))
	if err != nil || rotated || path != af.Path {
		t.Errorf("path=%s rotated=%v err=%v", path, rotated, err)
	}
}

func TestHeaderWrittenOnce(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	m := newManager(t, dir, "daily", "Name,Time,CO2")
	af, err := m.Open(now)
	if err != nil {
		t.Fatal(err)
	}
	if err := (datafile.Appender{}).AppendRows(af.Path, []string{"G2401,2025-01-15 00:00:00,410"}); err != nil {
		t.Fatal(err)
	}

	// Перезапуск процесса в ту же минуту: тот же файл, заголовок не повторяется.
	m2 := newManager(t, dir, "daily", "Name,Time,CO2")
	af2, err := m2.Open(now.Add(2 * time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if af2.Path != af.Path {
		t.Fatalf("ожидали тот же файл, получили %s и %s", af.Path, af2.Path)
	}
	data, err := os.ReadFile(af.Path)
	if err != nil {
		t.Fatal(err)
	}
	want := "Name,Time,CO2\nG2401,2025-01-15 00:00:00,410\n"
	if string(data) != want {
		t.Errorf("содержимое %q, want %q", data, want)
	}
	if filepath.Dir(af.Path) != dir {
		t.Errorf("файл вне каталога: %s", af.Path)
	}
}

// Временная ошибка заголовка: активный файл не меняется, следующий такт в окне повторяет ротацию.
func TestCheck_TransientHeaderErrorRetries(t *testing.T) {
	m := newManager(t, t.TempDir(), "1h", "Name,Time,CO2")
	start := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	af, err := m.Open(start)
	if err != nil {
		t.Fatal(err)
	}

	fail := true
	m.writeHeader = func(header, path string) (bool, error) {
		if fail {
			return false, &datafile.TransientIOError{Path: path, Err: os.ErrPermission}
		}
		return datafile.WriteHeaderOnce(header, path)
	}

	boundary := time.Date(2025, 1, 15, 11, 0, 0, 0, time.UTC)
	path, rotated, err := m.Check(boundary)
	var te *datafile.TransientIOError
	if !errors.As(err, &te) {
		t.Fatalf("ожидали TransientIOError, получили %v", err)
	}
	if rotated || path != af.Path || m.Active() != af {
		t.Fatalf("при ошибке файл не меняется: path=%s rotated=%v", path, rotated)
	}

	fail = false
	path, rotated, err = m.Check(boundary.Add(2 * time.Second))
	if err != nil || !rotated || path == af.Path {
		t.Errorf("повтор в окне: path=%s rotated=%v err=%v", path, rotated, err)
	}
}
