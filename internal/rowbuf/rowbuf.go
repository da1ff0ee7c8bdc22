// Package rowbuf накапливает отформатированные строки и сбрасывает их в файл
// с семантикой «не менее одного раза»: неудачный сброс не теряет ни одной строки.
package rowbuf

import (
	"errors"
	"time"

	"github.com/shiwa/daqlog/internal/schedule"
)

// ForcedFlushSecond — секунда, на которой сброс выполняется всегда, независимо от расписания записи.
// Под риском потери не больше ~60 секунд данных.
const ForcedFlushSecond = 59

// Appender — внешний писатель строк (datafile.Appender).
type Appender interface {
	AppendRows(path string, rows []string) error
}

// IsTransient — ошибка помечена как временная (блокировка/нет прав на файл).
func IsTransient(err error) bool {
	var t interface{ Transient() bool }
	return errors.As(err, &t) && t.Transient()
}

// Buffer — упорядоченная последовательность строк. Не потокобезопасен: владелец один — цикл.
type Buffer struct {
	rows []string
}

// New создаёт пустой буфер.
func New() *Buffer {
	return &Buffer{}
}

// Append добавляет строку в конец.
func (b *Buffer) Append(row string) {
	b.rows = append(b.rows, row)
}

// Len — количество строк в буфере.
func (b *Buffer) Len() int {
	return len(b.rows)
}

// Rows возвращает копию содержимого.
func (b *Buffer) Rows() []string {
	out := make([]string, len(b.rows))
	copy(out, b.rows)
	return out
}

// Flush дописывает все строки в path. Успех — буфер очищается.
// Любая ошибка (временная или нет) оставляет буфер без изменений; вызывающий решает,
// повторить ли попытку (IsTransient) или завершиться.
func (b *Buffer) Flush(w Appender, path string) error {
	if len(b.rows) == 0 {
		return nil
	}
	if err := w.AppendRows(path, b.rows); err != nil {
		return err
	}
	b.rows = nil
	return nil
}

// ShouldFlush — пора ли сбрасывать: совпадение с расписанием записи или секунда 59.
func ShouldFlush(write schedule.Spec, now time.Time) bool {
	return write.Matches(now) || now.Second() == ForcedFlushSecond
}
