// Package schedule превращает декларативный интервал (каждые N секунд/минут/часов, ежедневно)
// в набор точек срабатывания и отвечает на вопросы «срабатывает ли сейчас» и «какому периоду принадлежит момент».
package schedule

import (
	"fmt"
	"strings"
	"time"
)

// GraceWindow — окно после границы минут/часов/суток, в течение которого событие ещё допустимо.
const GraceWindow = 5 * time.Second

// Kind — вариант интервала.
type Kind int

const (
	KindNone Kind = iota
	KindEveryNSeconds
	KindEveryNMinutes
	KindEveryNHours
	KindDaily
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindEveryNSeconds:
		return "seconds"
	case KindEveryNMinutes:
		return "minutes"
	case KindEveryNHours:
		return "hours"
	case KindDaily:
		return "daily"
	default:
		return "unknown"
	}
}

// unit возвращает размер покрывающей единицы (60 для секунд и минут, 24 для часов).
func (k Kind) unit() int {
	switch k {
	case KindEveryNSeconds, KindEveryNMinutes:
		return 60
	case KindEveryNHours:
		return 24
	default:
		return 0
	}
}

// IntervalSpec — декларативное описание интервала до вычисления набора срабатываний.
type IntervalSpec struct {
	Kind Kind
	N    int
}

// EveryNSeconds — срабатывания по секундам минуты {0, n, 2n, ...}.
func EveryNSeconds(n int) IntervalSpec { return IntervalSpec{Kind: KindEveryNSeconds, N: n} }

// EveryNMinutes — срабатывания по минутам часа {0, n, 2n, ...}.
func EveryNMinutes(n int) IntervalSpec { return IntervalSpec{Kind: KindEveryNMinutes, N: n} }

// EveryNHours — срабатывания по часам суток {0, n, 2n, ...}.
func EveryNHours(n int) IntervalSpec { return IntervalSpec{Kind: KindEveryNHours, N: n} }

// Daily — одно срабатывание в полночь.
func Daily() IntervalSpec { return IntervalSpec{Kind: KindDaily} }

func (s IntervalSpec) String() string {
	switch s.Kind {
	case KindEveryNSeconds:
		return fmt.Sprintf("%ds", s.N)
	case KindEveryNMinutes:
		return fmt.Sprintf("%dm", s.N)
	case KindEveryNHours:
		return fmt.Sprintf("%dh", s.N)
	case KindDaily:
		return "daily"
	default:
		return "none"
	}
}

// ConfigError — некорректный интервал (≤0 или не делит покрывающую единицу).
type ConfigError struct {
	Spec   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid interval %q: %s", e.Spec, e.Reason)
}

// Spec — вычисленное расписание: вариант и упорядоченный набор значений срабатывания.
// Нулевое значение (KindNone) не срабатывает никогда.
type Spec struct {
	kind     Kind
	n        int
	triggers []int
	member   map[int]bool
}

// Build строит расписание по интервалу.
func Build(is IntervalSpec) (Spec, error) {
	switch is.Kind {
	case KindDaily:
		return newSpec(KindDaily, 24, []int{0}), nil
	case KindEveryNSeconds, KindEveryNMinutes, KindEveryNHours:
		unit := is.Kind.unit()
		if is.N <= 0 {
			return Spec{}, &ConfigError{Spec: is.String(), Reason: "interval must be > 0"}
		}
		if is.N > unit || unit%is.N != 0 {
			return Spec{}, &ConfigError{Spec: is.String(), Reason: fmt.Sprintf("%d does not evenly divide %d", is.N, unit)}
		}
		triggers := make([]int, 0, unit/is.N)
		for v := 0; v < unit; v += is.N {
			triggers = append(triggers, v)
		}
		return newSpec(is.Kind, is.N, triggers), nil
	default:
		return Spec{}, &ConfigError{Spec: is.String(), Reason: "unknown interval kind"}
	}
}

func newSpec(k Kind, n int, triggers []int) Spec {
	member := make(map[int]bool, len(triggers))
	for _, v := range triggers {
		member[v] = true
	}
	return Spec{kind: k, n: n, triggers: triggers, member: member}
}

// Kind возвращает вариант расписания.
func (s Spec) Kind() Kind { return s.kind }

// IsZero — расписание не задано.
func (s Spec) IsZero() bool { return s.kind == KindNone }

// Triggers возвращает копию упорядоченного набора срабатываний.
func (s Spec) Triggers() []int {
	out := make([]int, len(s.triggers))
	copy(out, s.triggers)
	return out
}

func (s Spec) String() string {
	switch s.kind {
	case KindDaily:
		return "daily"
	case KindNone:
		return "none"
	default:
		return IntervalSpec{Kind: s.kind, N: s.n}.String()
	}
}

// Matches — true, если now попадает в срабатывание: для секунд — точное совпадение секунды,
// для минут/часов/суток — соответствующее поле в наборе и не более GraceWindow после границы.
func (s Spec) Matches(now time.Time) bool {
	inGrace := now.Second() < int(GraceWindow/time.Second)
	switch s.kind {
	case KindEveryNSeconds:
		return s.member[now.Second()]
	case KindEveryNMinutes:
		return s.member[now.Minute()] && inGrace
	case KindEveryNHours:
		return s.member[now.Hour()] && now.Minute() == 0 && inGrace
	case KindDaily:
		return now.Hour() == 0 && now.Minute() == 0 && inGrace
	default:
		return false
	}
}

// Bucket возвращает начало периода, которому принадлежит t (в зоне t).
// Два момента в одном периоде дают одинаковый Bucket.
func (s Spec) Bucket(t time.Time) time.Time {
	y, mo, d := t.Date()
	loc := t.Location()
	switch s.kind {
	case KindEveryNSeconds:
		return time.Date(y, mo, d, t.Hour(), t.Minute(), t.Second()-t.Second()%s.n, 0, loc)
	case KindEveryNMinutes:
		return time.Date(y, mo, d, t.Hour(), t.Minute()-t.Minute()%s.n, 0, 0, loc)
	case KindEveryNHours:
		return time.Date(y, mo, d, t.Hour()-t.Hour()%s.n, 0, 0, 0, loc)
	case KindDaily:
		return time.Date(y, mo, d, 0, 0, 0, 0, loc)
	default:
		return time.Time{}
	}
}

// ParseInterval разбирает текстовую форму: "daily" или длительность Go ("10s", "15m", "2h", "24h").
// Пустая строка — интервал не задан (KindNone, без ошибки).
func ParseInterval(text string) (IntervalSpec, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return IntervalSpec{}, nil
	}
	if strings.EqualFold(text, "daily") {
		return Daily(), nil
	}
	d, err := time.ParseDuration(text)
	if err != nil {
		return IntervalSpec{}, &ConfigError{Spec: text, Reason: err.Error()}
	}
	switch {
	case d <= 0:
		return IntervalSpec{}, &ConfigError{Spec: text, Reason: "interval must be > 0"}
	case d == 24*time.Hour:
		return Daily(), nil
	case d%time.Hour == 0:
		return EveryNHours(int(d / time.Hour)), nil
	case d%time.Minute == 0:
		return EveryNMinutes(int(d / time.Minute)), nil
	case d%time.Second == 0:
		return EveryNSeconds(int(d / time.Second)), nil
	default:
		return IntervalSpec{}, &ConfigError{Spec: text, Reason: "sub-second intervals are not supported"}
	}
}

// Parse = ParseInterval + Build. Пустая строка даёт нулевое расписание.
func Parse(text string) (Spec, error) {
	is, err := ParseInterval(text)
	if err != nil {
		return Spec{}, err
	}
	if is.Kind == KindNone {
		return Spec{}, nil
	}
	return Build(is)
}
