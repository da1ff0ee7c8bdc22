// Package clock — источник времени цикла и выравнивание пробуждений по границам интервала чтения.
package clock

import (
	"context"
	"time"
)

// Clock — источник времени (системные часы; в тестах — управляемая подделка).
type Clock interface {
	// Now возвращает текущее время
	Now() time.Time
	// Sleep ждёт d или отмены ctx; при отмене возвращает ctx.Err()
	Sleep(ctx context.Context, d time.Duration) error
}

// System — реализация через стандартный time.
type System struct{}

// Now возвращает текущее системное (локальное) время
func (System) Now() time.Time {
	return time.Now()
}

// Sleep ждёт d на таймере; отмена ctx прерывает ожидание.
func (System) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// UntilNextTick возвращает длительность до следующей границы interval,
// отсчитываемой от Unix-эпохи: interval - now mod interval.
// Ровно на границе возвращается полный interval (следующая граница, не текущая).
func UntilNextTick(now time.Time, interval time.Duration) time.Duration {
	if interval <= 0 {
		return 0
	}
	rem := time.Duration(now.UnixNano() % int64(interval))
	if rem < 0 {
		rem += interval
	}
	return interval - rem
}

// SleepAligned ждёт до следующей выровненной границы interval.
func SleepAligned(ctx context.Context, c Clock, interval time.Duration) error {
	return c.Sleep(ctx, UntilNextTick(c.Now(), interval))
}
