// Package cmdselect выбирает команду опроса на каждом такте: основную или, в окне расписания, дополнительную.
package cmdselect

import (
	"time"

	"github.com/shiwa/daqlog/internal/schedule"
)

// Cooldown — минимальный интервал между двумя переключениями на дополнительную команду.
// Больше окна срабатывания, поэтому одно окно даёт ровно одно переключение.
const Cooldown = 10 * time.Second

// Pair — неизменяемая пара команд (основная, дополнительная), байты как есть.
type Pair struct {
	Primary   []byte
	Secondary []byte
}

// State — состояние переключения; меняется только при выборе дополнительной команды.
type State struct {
	LastSwitch time.Time
}

// Select — чистая функция выбора: (расписание, состояние, now) → (команда, новое состояние).
//  1. вне окна — основная команда, состояние без изменений;
//  2. в окне и прошло больше Cooldown с последнего переключения — дополнительная, LastSwitch = now;
//  3. в окне, но Cooldown не истёк — основная.
func Select(spec schedule.Spec, st State, now time.Time, pair Pair) ([]byte, State) {
	if !spec.Matches(now) {
		return pair.Primary, st
	}
	if now.Sub(st.LastSwitch) > Cooldown {
		return pair.Secondary, State{LastSwitch: now}
	}
	return pair.Primary, st
}

// Selector — единственный владелец State; вызывается один раз за такт.
type Selector struct {
	spec  schedule.Spec
	pair  Pair
	state State
}

// New создаёт выборщик. Нулевое spec (дополнительная команда не настроена) — всегда основная команда.
func New(spec schedule.Spec, pair Pair) *Selector {
	return &Selector{spec: spec, pair: pair}
}

// Next выбирает команду для момента now и обновляет состояние.
// Второй результат — true, если выбрана дополнительная команда.
func (s *Selector) Next(now time.Time) ([]byte, bool) {
	cmd, st := Select(s.spec, s.state, now, s.pair)
	switched := !st.LastSwitch.Equal(s.state.LastSwitch)
	s.state = st
	return cmd, switched
}

// State возвращает текущее состояние (после Next).
func (s *Selector) State() State {
	return s.state
}

// MayMiss — true, если такт чтения может целиком перешагнуть окно срабатывания:
// интервал длиннее окна и не делит минуту (выровненные такты тогда не попадают на секунду 0).
// Это предел разрешения, а не ошибка: цикл лишь предупреждает о нём при старте.
func MayMiss(readInterval time.Duration) bool {
	if readInterval <= schedule.GraceWindow {
		return false
	}
	if readInterval%time.Second != 0 {
		return true
	}
	sec := int(readInterval / time.Second)
	return sec > 60 || 60%sec != 0
}
