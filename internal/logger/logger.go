// Package logger — вывод логов daqlog с префиксом, уровнями и учётом quiet.
//
// Logger передаётся в цикл логгера явно (на каждый прибор — свои файлы),
// пакетные Info/Warn/Error пишут в стандартный log для CLI.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level — уровень детализации.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLevel разбирает имя уровня (error|warn|info|debug).
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LevelError, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "info", "":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelInfo, fmt.Errorf("unknown level %q", s)
	}
}

// LevelFromVerbosity переводит количество флагов -v в уровень: 0 → info, 1+ → debug.
func LevelFromVerbosity(count int) Level {
	if count <= 0 {
		return LevelInfo
	}
	return LevelDebug
}

// Logger пишет Info/Debug/Warn в out, Error — в errOut (и в out, если это разные приёмники).
type Logger struct {
	out    *log.Logger
	errOut *log.Logger
	same   bool
	level  Level
	// Quiet при true отключает Info и Debug; Warn и Error выводятся всегда.
	Quiet bool
}

// New создаёт логгер. errOut == nil означает «ошибки туда же, куда и out».
func New(out, errOut io.Writer, prefix string) *Logger {
	if out == nil {
		out = io.Discard
	}
	l := &Logger{
		out:   log.New(out, prefix, log.LstdFlags|log.Lmsgprefix),
		level: LevelInfo,
	}
	if errOut == nil || errOut == out {
		l.errOut = l.out
		l.same = true
	} else {
		l.errOut = log.New(errOut, prefix, log.LstdFlags|log.Lmsgprefix)
	}
	return l
}

// Discard — логгер без вывода (для тестов и встраивания).
func Discard() *Logger {
	return New(io.Discard, nil, "")
}

// SetLevel задаёт максимальный выводимый уровень.
func (l *Logger) SetLevel(level Level) {
	l.level = level
}

// Level возвращает текущий уровень.
func (l *Logger) Level() Level {
	return l.level
}

func (l *Logger) enabled(level Level) bool {
	if l.Quiet && level >= LevelInfo {
		return false
	}
	return level <= l.level
}

// Debug выводит отладочное сообщение.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.enabled(LevelDebug) {
		l.out.Printf("[debug] "+format, args...)
	}
}

// Info выводит информационное сообщение.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.enabled(LevelInfo) {
		l.out.Printf(format, args...)
	}
}

// Warn выводит предупреждение.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.enabled(LevelWarn) {
		l.out.Printf("[warn] "+format, args...)
	}
}

// Error выводит ошибку всегда: в errOut и, если приёмники разные, дублирует в out.
func (l *Logger) Error(format string, args ...interface{}) {
	l.errOut.Printf("[error] "+format, args...)
	if !l.same {
		l.out.Printf("[error] "+format, args...)
	}
}

var std = New(os.Stderr, nil, "daqlog: ")

// Default возвращает пакетный логгер (stderr, префикс "daqlog: ").
func Default() *Logger {
	return std
}

// SetQuiet переключает quiet у пакетного логгера.
func SetQuiet(q bool) {
	std.Quiet = q
}

// Info выводит сообщение пакетным логгером.
func Info(format string, args ...interface{}) {
	std.Info(format, args...)
}

// Warn выводит предупреждение пакетным логгером.
func Warn(format string, args ...interface{}) {
	std.Warn(format, args...)
}

// Error выводит ошибку пакетным логгером.
func Error(format string, args ...interface{}) {
	std.Error(format, args...)
}
