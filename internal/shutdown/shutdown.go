// Package shutdown читает внешний файл состояния логгеров: первая строка — директива ("Run" / "Quit").
package shutdown

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Директивы файла состояния.
const (
	DirectiveRun  = "Run"
	DirectiveQuit = "Quit"
)

// CheckInterval — как часто цикл сверяется с файлом состояния.
const CheckInterval = 60 * time.Second

// Monitor — только чтение файла состояния; время последней проверки хранит цикл.
type Monitor struct {
	path string
}

// NewMonitor создаёт монитор для файла path.
func NewMonitor(path string) *Monitor {
	return &Monitor{path: path}
}

// Path возвращает путь к файлу состояния.
func (m *Monitor) Path() string {
	return m.path
}

// ShouldStop читает только первую строку; true, если она содержит "Quit".
// Остальные строки не рассматриваются. Отсутствующий файл — продолжать работу.
func (m *Monitor) ShouldStop() (bool, error) {
	if m.path == "" {
		return false, nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read state file: %w", err)
	}
	defer f.Close()
	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && line == "" {
		// пустой файл или ошибка до первой строки
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, fmt.Errorf("read state file: %w", err)
	}
	return strings.Contains(line, DirectiveQuit), nil
}

// Due — пора ли проверять: прошло не меньше CheckInterval с lastChecked.
func Due(lastChecked, now time.Time) bool {
	return now.Sub(lastChecked) >= CheckInterval
}

// WriteDirective записывает директиву в файл состояния (используется менеджером, не циклом).
func WriteDirective(path, directive string) error {
	if directive != DirectiveRun && directive != DirectiveQuit {
		return fmt.Errorf("unknown directive %q", directive)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("state dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(directive), 0o644); err != nil {
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename tmp: %w", err)
	}
	return nil
}
