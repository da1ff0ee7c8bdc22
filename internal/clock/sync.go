package clock

import "time"

// Status — синхронизированы ли системные часы (NTP/PTP) и оценка их максимальной ошибки.
// Такты цикла выровнены по системным часам, поэтому несинхронизированные часы сдвигают и метки, и расписания.
type Status struct {
	Synced   bool
	MaxError time.Duration
	// Known — false, если платформа не сообщает состояние.
	Known bool
}

// Warning возвращает текст предупреждения или "" если всё в порядке.
func (s Status) Warning() string {
	switch {
	case !s.Known:
		return ""
	case !s.Synced:
		return "system clock is not synchronized; timestamps and schedules follow an undisciplined clock"
	case s.MaxError > time.Second:
		return "system clock max error is " + s.MaxError.String()
	default:
		return ""
	}
}
