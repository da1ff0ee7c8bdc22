// Package manager — операторские действия над запущенными логгерами: список приборов,
// последняя записанная строка, директивы Run/Quit в файле состояния.
package manager

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/shiwa/daqlog/internal/config"
	"github.com/shiwa/daqlog/internal/datafile"
	"github.com/shiwa/daqlog/internal/shutdown"
)

// Manager работает с конфигом и файлом состояния; в сами логгеры не вмешивается.
type Manager struct {
	cfg   *config.Config
	sleep func(ctx context.Context, d time.Duration) error
}

// New создаёт менеджер для конфига cfg.
func New(cfg *config.Config) *Manager {
	return &Manager{cfg: cfg, sleep: sleepCtx}
}

// Instruments — включённые приборы.
func (m *Manager) Instruments() []string {
	return m.cfg.Enabled()
}

// DataLine — заголовок и последняя строка самого свежего файла прибора.
type DataLine struct {
	Instrument string
	File       string
	Header     string
	Line       string
}

func (d DataLine) String() string {
	s := fmt.Sprintf("Last recorded dataline for %s (%s):\n", d.Instrument, d.File)
	if d.Header != "" {
		s += d.Header + "\n"
	}
	return s + d.Line
}

// LastDataLine находит самый свежий .dat файл прибора и возвращает его последнюю строку.
func (m *Manager) LastDataLine(name string) (DataLine, error) {
	in, ok := m.cfg.Find(name)
	if !ok {
		return DataLine{}, fmt.Errorf("unknown instrument %q", name)
	}
	path, err := datafile.Latest(in.OutputDir)
	if err != nil {
		return DataLine{}, fmt.Errorf("%s: %w", name, err)
	}
	line, err := datafile.LastLine(path)
	if err != nil {
		return DataLine{}, fmt.Errorf("%s: %w", name, err)
	}
	return DataLine{Instrument: name, File: path, Header: in.Header, Line: line}, nil
}

// Start пишет "Run": логгеры, запущенные после этого, не остановятся на старой директиве Quit.
func (m *Manager) Start() error {
	return shutdown.WriteDirective(m.cfg.StateFile, shutdown.DirectiveRun)
}

// Quit пишет "Quit" и, если out != nil, ведёт обратный отсчёт CheckInterval:
// за это время каждый логгер успевает прочитать файл состояния.
func (m *Manager) Quit(ctx context.Context, out io.Writer) error {
	if err := shutdown.WriteDirective(m.cfg.StateFile, shutdown.DirectiveQuit); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	fmt.Fprintln(out, "Logger quit initiated.")
	for left := int(shutdown.CheckInterval / time.Second); left > 0; left-- {
		fmt.Fprintf(out, "\rAll loggers will shut down in %2d seconds.", left)
		if err := m.sleep(ctx, time.Second); err != nil {
			fmt.Fprintln(out)
			return err
		}
	}
	fmt.Fprintln(out, "\nAll loggers have shut down. Logging terminated.")
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
