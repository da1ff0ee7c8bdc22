// Package rotation владеет активным файлом данных и заменяет его на границах расписания новых файлов.
package rotation

import (
	"fmt"
	"time"

	"github.com/shiwa/daqlog/internal/datafile"
	"github.com/shiwa/daqlog/internal/schedule"
)

// ActiveFile — текущий файл и период, для которого он создан. Заменяется целиком, не изменяется.
type ActiveFile struct {
	Path   string
	Bucket time.Time
}

// Namer строит путь нового файла для момента t.
type Namer func(t time.Time) string

// HeaderWriter пишет заголовок в path, только если файла нет (datafile.WriteHeaderOnce).
type HeaderWriter func(header, path string) (bool, error)

// Manager — единственный владелец ActiveFile.
type Manager struct {
	spec        schedule.Spec
	name        Namer
	header      string
	writeHeader HeaderWriter
	active      ActiveFile
}

// New создаёт менеджер. header == "" — заголовок не пишется.
func New(spec schedule.Spec, name Namer, header string) *Manager {
	return &Manager{
		spec:        spec,
		name:        name,
		header:      header,
		writeHeader: datafile.WriteHeaderOnce,
	}
}

// Open создаёт начальный активный файл для момента now (при запуске цикла).
func (m *Manager) Open(now time.Time) (ActiveFile, error) {
	af, err := m.create(now)
	if err != nil {
		return ActiveFile{}, err
	}
	m.active = af
	return af, nil
}

// Active возвращает текущий активный файл.
func (m *Manager) Active() ActiveFile {
	return m.active
}

// Check: если now совпадает с расписанием и относится к новому периоду — создаёт новый файл
// (с заголовком, если его ещё нет) и возвращает его путь и rotated = true;
// иначе возвращает текущий путь без изменений.
func (m *Manager) Check(now time.Time) (string, bool, error) {
	if !m.spec.Matches(now) {
		return m.active.Path, false, nil
	}
	bucket := m.spec.Bucket(now)
	if bucket.Equal(m.active.Bucket) {
		return m.active.Path, false, nil
	}
	af, err := m.create(now)
	if err != nil {
		return m.active.Path, false, err
	}
	if af.Path == m.active.Path {
		// Имя с точностью до минуты совпало: тот же файл, обновляем только период.
		m.active = af
		return af.Path, false, nil
	}
	m.active = af
	return af.Path, true, nil
}

func (m *Manager) create(now time.Time) (ActiveFile, error) {
	path := m.name(now)
	if m.header != "" {
		if _, err := m.writeHeader(m.header, path); err != nil {
			return ActiveFile{}, fmt.Errorf("new file %s: %w", path, err)
		}
	}
	return ActiveFile{Path: path, Bucket: m.bucket(now)}, nil
}

func (m *Manager) bucket(now time.Time) time.Time {
	if m.spec.IsZero() {
		return time.Time{}
	}
	return m.spec.Bucket(now)
}
