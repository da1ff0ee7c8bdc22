package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// TCPOptions — параметры TCP-прибора.
type TCPOptions struct {
	Timeout time.Duration
	// Delay — пауза между отправкой команды и чтением ответа.
	Delay time.Duration
	// LengthMax — максимум байт ответа за одно чтение; более длинное чтение отбрасывается.
	LengthMax int
	// Stream: прибор сам шлёт данные, соединение держится открытым.
	Stream bool
}

// TCP — прибор по TCP. В режиме команд соединение открывается на каждый запрос.
type TCP struct {
	addr   string
	opts   TCPOptions
	conn   net.Conn // только Stream
	sleep  func(time.Duration)
	dialer func(addr string, timeout time.Duration) (net.Conn, error)
}

// DialTCP проверяет доступность прибора; в потоковом режиме оставляет соединение открытым.
func DialTCP(addr string, opts TCPOptions) (*TCP, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second
	}
	if opts.LengthMax <= 0 {
		opts.LengthMax = 1024
	}
	t := &TCP{
		addr:  addr,
		opts:  opts,
		sleep: time.Sleep,
		dialer: func(addr string, timeout time.Duration) (net.Conn, error) {
			return net.DialTimeout("tcp", addr, timeout)
		},
	}
	conn, err := t.dialer(addr, opts.Timeout)
	if err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}
	if opts.Stream {
		if err := t.drain(conn); err != nil {
			conn.Close()
			return nil, &ConnectionError{Addr: addr, Err: err}
		}
		t.conn = conn
	} else {
		conn.Close()
	}
	return t, nil
}

// drain выбрасывает накопленный прибором хвост: читает, пока чтение длиннее LengthMax,
// не дольше Timeout. Тишина на линии — не ошибка.
func (t *TCP) drain(conn net.Conn) error {
	if err := conn.SetReadDeadline(time.Now().Add(t.opts.Timeout)); err != nil {
		return err
	}
	buf := make([]byte, t.readSize())
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return nil
			}
			return err
		}
		if n <= t.opts.LengthMax {
			return nil
		}
	}
}

// readSize — размер одного чтения: 1024 байта, но не меньше LengthMax+1, чтобы длинный ответ был виден.
func (t *TCP) readSize() int {
	if t.opts.LengthMax >= 1024 {
		return t.opts.LengthMax + 1
	}
	return 1024
}

// Name — адрес прибора.
func (t *TCP) Name() string {
	return fmt.Sprintf("tcp:%s", t.addr)
}

// Send отправляет команду и читает один ответ. Ответ длиннее LengthMax отбрасывается (ErrNoData).
func (t *TCP) Send(cmd []byte) (string, error) {
	if t.opts.Stream {
		return t.recv(t.conn)
	}
	conn, err := t.dialer(t.addr, t.opts.Timeout)
	if err != nil {
		return "", fmt.Errorf("%s dial: %w", t.addr, err)
	}
	defer conn.Close()
	if len(cmd) > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(t.opts.Timeout)); err != nil {
			return "", err
		}
		if _, err := conn.Write(cmd); err != nil {
			return "", fmt.Errorf("%s write: %w", t.addr, err)
		}
	}
	if t.opts.Delay > 0 {
		t.sleep(t.opts.Delay)
	}
	return t.recv(conn)
}

func (t *TCP) recv(conn net.Conn) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(t.opts.Timeout)); err != nil {
		return "", err
	}
	buf := make([]byte, t.readSize())
	n, err := conn.Read(buf)
	if n > t.opts.LengthMax {
		// обрезанный ответ дал бы обрывки предложений в следующих строках
		return "", fmt.Errorf("%w: %d bytes over length_max %d", ErrNoData, n, t.opts.LengthMax)
	}
	if n > 0 {
		return string(buf[:n]), nil
	}
	if err == nil || errors.Is(err, os.ErrDeadlineExceeded) {
		return "", ErrNoData
	}
	return "", fmt.Errorf("%s read: %w", t.addr, err)
}

// Close закрывает потоковое соединение.
func (t *TCP) Close() error {
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}
