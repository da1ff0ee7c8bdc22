// Package daqloop — цикл логгера одного прибора: опрос по выровненным тактам, буфер строк,
// запись и ротация файлов, остановка по файлу состояния.
package daqloop

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shiwa/daqlog/internal/clock"
	"github.com/shiwa/daqlog/internal/cmdselect"
	"github.com/shiwa/daqlog/internal/config"
	"github.com/shiwa/daqlog/internal/datafile"
	"github.com/shiwa/daqlog/internal/logger"
	"github.com/shiwa/daqlog/internal/rotation"
	"github.com/shiwa/daqlog/internal/rowbuf"
	"github.com/shiwa/daqlog/internal/schedule"
	"github.com/shiwa/daqlog/internal/shutdown"
	"github.com/shiwa/daqlog/internal/transport"
)

// StopChecker — источник операторской остановки (*shutdown.Monitor).
type StopChecker interface {
	ShouldStop() (bool, error)
}

// Deps — внешние участники цикла. Пустые поля заменяются рабочими реализациями.
type Deps struct {
	Clock     clock.Clock
	Transport transport.Transport
	Appender  rowbuf.Appender
	Stop      StopChecker
	Log       *logger.Logger
}

// Run запускает цикл прибора in до Quit в файле состояния (возвращает nil) или отмены ctx
// (возвращает ctx.Err()). Ни в одном из случаев буфер напоследок не сбрасывается.
// Ошибки конфигурации, соединения и нетранзитные ошибки записи возвращаются сразу.
func Run(ctx context.Context, in config.Instrument, stateFile string, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.Default()
	}
	if !in.Enabled {
		log.Info("%s: disabled", in.Name)
		return nil
	}
	readEvery, err := in.ReadEvery()
	if err != nil {
		return fmt.Errorf("%s read_interval: %w", in.Name, err)
	}
	write, newFile, secondary, err := in.Schedules()
	if err != nil {
		return fmt.Errorf("%s: %w", in.Name, err)
	}
	if !secondary.IsZero() && cmdselect.MayMiss(readEvery) {
		log.Warn("%s: read_interval %v may skip the secondary command window", in.Name, readEvery)
	}
	if err := os.MkdirAll(in.OutputDir, 0o755); err != nil {
		return fmt.Errorf("%s output dir: %w", in.Name, err)
	}

	clk := d.Clock
	if clk == nil {
		clk = clock.System{}
		if st, err := clock.SyncStatus(); err != nil {
			log.Debug("%s: clock status: %v", in.Name, err)
		} else if w := st.Warning(); w != "" {
			log.Warn("%s: %s", in.Name, w)
		}
	}
	app := d.Appender
	if app == nil {
		app = datafile.Appender{}
	}
	stop := d.Stop
	if stop == nil {
		stop = shutdown.NewMonitor(stateFile)
	}
	tr := d.Transport
	if tr == nil {
		tr, err = transport.New(in.Connection, in.Delimiter)
		if err != nil {
			return fmt.Errorf("%s: %w", in.Name, err)
		}
	}
	defer tr.Close()

	primary, secondaryCmd := transport.Commands(in.Connection)
	l := &loop{
		in:       in,
		log:      log,
		app:      app,
		write:    write,
		sel:      cmdselect.New(secondary, cmdselect.Pair{Primary: primary, Secondary: secondaryCmd}),
		rot:      rotation.New(newFile, func(t time.Time) string { return datafile.Name(in.OutputDir, in.Name, t) }, in.Header),
		buf:      rowbuf.New(),
		retained: make(map[string]*rowbuf.Buffer),
		clean: transport.CleanOptions{
			Multiline:         in.Multiline,
			SentenceDelimiter: in.SentenceDelimiter,
			Delimiter:         in.Delimiter,
			HandleGarbled:     in.HandleGarbled,
			TwoLine:           in.TwoLineResponse,
		},
	}
	if _, err := l.rot.Open(clk.Now()); err != nil {
		return fmt.Errorf("%s: %w", in.Name, err)
	}
	log.Info("%s: read=%v write=%s new_file=%s secondary=%s", in.Name, readEvery, write, newFile, secondary)

	var lastCheck time.Time
	first := true
	for {
		if err := clock.SleepAligned(ctx, clk, readEvery); err != nil {
			log.Info("%s: stopped: %v", in.Name, err)
			return err
		}
		now := clk.Now()
		if first {
			lastCheck = now
			first = false
		}
		if err := l.tick(now, tr); err != nil {
			return fmt.Errorf("%s: %w", in.Name, err)
		}
		if shutdown.Due(lastCheck, now) {
			lastCheck = now
			quit, err := stop.ShouldStop()
			if err != nil {
				log.Error("%s: state file: %v", in.Name, err)
			} else if quit {
				log.Info("%s: logging terminated", in.Name)
				return nil
			}
		}
	}
}

// loop — состояние цикла, принадлежит одной горутине.
type loop struct {
	in    config.Instrument
	log   *logger.Logger
	app   rowbuf.Appender
	write schedule.Spec
	sel   *cmdselect.Selector
	rot   *rotation.Manager
	buf   *rowbuf.Buffer
	clean transport.CleanOptions
	// retained — строки ушедших при ротации файлов, которые не удалось записать; ключ — путь файла.
	retained    map[string]*rowbuf.Buffer
	established bool
}

// tick — один такт: ротация, команда, ответ, строка, запись.
func (l *loop) tick(now time.Time, tr transport.Transport) error {
	prev := l.rot.Active().Path
	path, rotated, err := l.rot.Check(now)
	if err != nil {
		if !rowbuf.IsTransient(err) {
			return err
		}
		l.log.Warn("%s: new file: %v", l.in.Name, err)
	}
	if rotated {
		l.log.Info("%s: new file %s", l.in.Name, path)
		if l.buf.Len() > 0 {
			// строки старого периода остаются в старом файле
			old := l.buf
			l.buf = rowbuf.New()
			if err := l.retain(prev, old); err != nil {
				return err
			}
		}
	}

	cmd, switched := l.sel.Next(now)
	if switched {
		l.log.Debug("%s: secondary command", l.in.Name)
	}
	raw, err := tr.Send(cmd)
	switch {
	case errors.Is(err, transport.ErrNoData):
		l.log.Debug("%s: no data", l.in.Name)
	case err != nil:
		l.log.Warn("%s: %v", l.in.Name, err)
	default:
		if data, ok := transport.Clean(raw, l.clean); ok {
			l.buf.Append(l.in.Name + l.in.Delimiter + now.Format(datafile.TimestampLayout) + l.in.Delimiter + data)
			if !l.established {
				l.established = true
				l.log.Info("%s connection established, writing to %s", l.in.Name, path)
			}
		} else {
			l.log.Debug("%s: invalid response %q", l.in.Name, raw)
		}
	}

	if rowbuf.ShouldFlush(l.write, now) {
		if err := l.flushRetained(); err != nil {
			return err
		}
		if err := l.buf.Flush(l.app, path); err != nil {
			if !rowbuf.IsTransient(err) {
				return err
			}
			l.log.Warn("%s: %v; %d rows kept", l.in.Name, err, l.buf.Len())
		}
	}
	return nil
}

// retain пытается сразу записать буфер в старый файл; при транзитной ошибке оставляет его до следующей записи.
func (l *loop) retain(path string, b *rowbuf.Buffer) error {
	if old, ok := l.retained[path]; ok {
		for _, r := range b.Rows() {
			old.Append(r)
		}
		b = old
	}
	if err := b.Flush(l.app, path); err != nil {
		if !rowbuf.IsTransient(err) {
			return err
		}
		l.log.Warn("%s: %v; %d rows kept for %s", l.in.Name, err, b.Len(), path)
		l.retained[path] = b
		return nil
	}
	delete(l.retained, path)
	return nil
}

func (l *loop) flushRetained() error {
	for path, b := range l.retained {
		if err := b.Flush(l.app, path); err != nil {
			if !rowbuf.IsTransient(err) {
				return err
			}
			l.log.Warn("%s: %v; %d rows kept for %s", l.in.Name, err, b.Len(), path)
			continue
		}
		delete(l.retained, path)
	}
	return nil
}
