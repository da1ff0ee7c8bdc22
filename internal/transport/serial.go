package transport

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tarm/serial"
)

// readPoll — таймаут одного чтения порта (VTIME); пустое чтение означает «в буфере ничего нет».
const readPoll = 100 * time.Millisecond

// SerialOptions — режим чтения ответа и действия при открытии порта.
type SerialOptions struct {
	// EndOfString: читать, пока не встретится маркер (не дольше Timeout).
	EndOfString string
	// Wait: пауза между командой и чтением доступных байт.
	Wait    time.Duration
	Timeout time.Duration
	// StartupPurge: секунд холостого опроса PurgeCommand после открытия, ответы выбрасываются.
	StartupPurge int
	PurgeCommand []byte
	// InitCommand отправляется один раз после открытия.
	InitCommand []byte
}

// flusher — сброс входного буфера драйвера (есть у *serial.Port).
type flusher interface {
	Flush() error
}

// Serial — прибор на последовательном порту.
type Serial struct {
	port   io.ReadWriteCloser
	device string
	opts   SerialOptions
	sleep  func(time.Duration)
}

// OpenSerial открывает порт, выполняет init-команду или стартовую очистку и сбрасывает входной буфер.
func OpenSerial(device string, baud int, opts SerialOptions) (*Serial, error) {
	if baud == 0 {
		baud = 9600
	}
	c := &serial.Config{Name: device, Baud: baud, ReadTimeout: readPoll}
	p, err := serial.OpenPort(c)
	if err != nil {
		return nil, &ConnectionError{Addr: device, Err: err}
	}
	s := NewSerial(p, device, opts)
	if err := s.init(); err != nil {
		p.Close()
		return nil, &ConnectionError{Addr: device, Err: err}
	}
	return s, nil
}

// NewSerial оборачивает уже открытый порт (без init).
func NewSerial(port io.ReadWriteCloser, device string, opts SerialOptions) *Serial {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second
	}
	return &Serial{port: port, device: device, opts: opts, sleep: time.Sleep}
}

func (s *Serial) init() error {
	if len(s.opts.InitCommand) > 0 {
		if _, err := s.port.Write(s.opts.InitCommand); err != nil {
			return fmt.Errorf("init command: %w", err)
		}
		s.sleep(200 * time.Millisecond)
	}
	// Некоторые приборы первые секунды после открытия отдают мусор.
	for i := 0; i < s.opts.StartupPurge; i++ {
		if len(s.opts.PurgeCommand) > 0 {
			if _, err := s.port.Write(s.opts.PurgeCommand); err != nil {
				return fmt.Errorf("startup purge: %w", err)
			}
		}
		s.sleep(time.Second)
		if _, err := s.available(); err != nil {
			return fmt.Errorf("startup purge: %w", err)
		}
	}
	return s.purge()
}

// Name — имя устройства.
func (s *Serial) Name() string {
	return fmt.Sprintf("serial:%s", s.device)
}

// Send пишет команду и читает ответ в режиме EndOfString / Wait / доступные байты.
func (s *Serial) Send(cmd []byte) (string, error) {
	if len(cmd) > 0 {
		if _, err := s.port.Write(cmd); err != nil {
			return "", fmt.Errorf("%s write: %w", s.device, err)
		}
	}
	if s.opts.EndOfString != "" {
		return s.readUntil(s.opts.EndOfString)
	}
	if s.opts.Wait > 0 {
		s.sleep(s.opts.Wait)
	}
	data, err := s.available()
	if err != nil {
		return "", fmt.Errorf("%s read: %w", s.device, err)
	}
	if len(data) == 0 {
		return "", ErrNoData
	}
	return string(data), nil
}

// Close закрывает порт.
func (s *Serial) Close() error {
	return s.port.Close()
}

// readUntil читает, пока в ответе нет маркера; по истечении Timeout — ErrNoData.
func (s *Serial) readUntil(eos string) (string, error) {
	deadline := time.Now().Add(s.opts.Timeout)
	var sb strings.Builder
	buf := make([]byte, 256)
	for !strings.Contains(sb.String(), eos) {
		if !time.Now().Before(deadline) {
			return "", ErrNoData
		}
		n, err := s.port.Read(buf)
		if n > 0 {
			sb.Write(buf[:n])
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%s read: %w", s.device, err)
		}
		if n == 0 {
			s.sleep(50 * time.Millisecond)
		}
	}
	return sb.String(), nil
}

// available читает всё, что уже пришло: до первого пустого чтения.
func (s *Serial) available() ([]byte, error) {
	var out []byte
	buf := make([]byte, 256)
	for {
		n, err := s.port.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		if n == 0 {
			return out, nil
		}
	}
}

// purge сбрасывает входной буфер драйвера и дочитывает остаток.
func (s *Serial) purge() error {
	if f, ok := s.port.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flush: %w", err)
		}
	}
	_, err := s.available()
	return err
}
