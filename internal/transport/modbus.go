package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goburrow/modbus"
)

// RegisterType — как интерпретировать holding-регистры.
type RegisterType string

const (
	Uint16  RegisterType = "uint16"
	Uint32  RegisterType = "uint32"
	Float32 RegisterType = "float32" // IEEE 754 в паре регистров
)

// Register — регистр (или пара) с адресом уже за вычетом смещения.
type Register struct {
	Name     string
	Address  uint16
	Type     RegisterType
	Decimals int
}

func (r Register) quantity() uint16 {
	if r.Type == Uint16 {
		return 1
	}
	return 2
}

// ModbusOptions — что читать и как собрать строку.
type ModbusOptions struct {
	Units     []byte
	Registers []Register
	// HiSigFirst: старший регистр пары идёт первым.
	HiSigFirst bool
	Delimiter  string
	// Retries — попыток на регистр; неудача пишется как NaN.
	Retries int
}

// registerReader — часть modbus.Client, которой пользуется логгер.
type registerReader interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
}

// Modbus — прибор, данные которого читаются из регистров (RTU по порту или Modbus TCP).
type Modbus struct {
	addr    string
	client  registerReader
	setUnit func(id byte)
	closer  io.Closer
	opts    ModbusOptions
	sleep   func(time.Duration)
}

// ModbusSerialConfig — параметры RTU-порта.
type ModbusSerialConfig struct {
	Device   string
	Baud     int
	DataBits int
	Parity   string
	StopBits int
	Timeout  time.Duration
}

// OpenModbusSerial открывает RTU-порт; все устройства Units опрашиваются через него.
func OpenModbusSerial(c ModbusSerialConfig, opts ModbusOptions) (*Modbus, error) {
	h := modbus.NewRTUClientHandler(c.Device)
	h.BaudRate = c.Baud
	h.DataBits = c.DataBits
	h.Parity = c.Parity
	h.StopBits = c.StopBits
	if c.Timeout > 0 {
		h.Timeout = c.Timeout
	}
	if err := h.Connect(); err != nil {
		return nil, &ConnectionError{Addr: c.Device, Err: err}
	}
	m := newModbus(c.Device, modbus.NewClient(h), h, opts)
	m.setUnit = func(id byte) { h.SlaveId = id }
	return m, nil
}

// DialModbusTCP подключается к Modbus TCP; при обрыве обработчик переподключается на следующем запросе.
func DialModbusTCP(addr string, timeout time.Duration, opts ModbusOptions) (*Modbus, error) {
	h := modbus.NewTCPClientHandler(addr)
	if timeout > 0 {
		h.Timeout = timeout
	}
	if err := h.Connect(); err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}
	m := newModbus(addr, modbus.NewClient(h), h, opts)
	m.setUnit = func(id byte) { h.SlaveId = id }
	return m, nil
}

func newModbus(addr string, client registerReader, closer io.Closer, opts ModbusOptions) *Modbus {
	if len(opts.Units) == 0 {
		opts.Units = []byte{1}
	}
	if opts.Retries <= 0 {
		opts.Retries = 5
	}
	if opts.Delimiter == "" {
		opts.Delimiter = ","
	}
	return &Modbus{
		addr:    addr,
		client:  client,
		setUnit: func(byte) {},
		closer:  closer,
		opts:    opts,
		sleep:   time.Sleep,
	}
}

// Name — адрес прибора.
func (m *Modbus) Name() string {
	return fmt.Sprintf("modbus:%s", m.addr)
}

// Send читает все регистры всех устройств и склеивает значения через Delimiter.
// cmd не используется. Если не прочитался ни один регистр — ErrNoData.
func (m *Modbus) Send(_ []byte) (string, error) {
	fields := make([]string, 0, len(m.opts.Units)*len(m.opts.Registers))
	var (
		ok      int
		lastErr error
	)
	for _, unit := range m.opts.Units {
		m.setUnit(unit)
		for _, r := range m.opts.Registers {
			v, err := m.read(r)
			if err != nil {
				lastErr = err
				fields = append(fields, "NaN")
				continue
			}
			ok++
			fields = append(fields, v)
		}
	}
	if ok == 0 {
		return "", fmt.Errorf("%w: %s: %v", ErrNoData, m.addr, lastErr)
	}
	return strings.Join(fields, m.opts.Delimiter), nil
}

func (m *Modbus) read(r Register) (string, error) {
	var err error
	for i := 0; i < m.opts.Retries; i++ {
		var raw []byte
		raw, err = m.client.ReadHoldingRegisters(r.Address, r.quantity())
		if err == nil && len(raw) == 2*int(r.quantity()) {
			return DecodeRegister(r, raw, m.opts.HiSigFirst), nil
		}
		if err == nil {
			err = fmt.Errorf("register %d: short response %d bytes", r.Address, len(raw))
		}
		m.sleep(10 * time.Millisecond)
	}
	return "", err
}

// DecodeRegister переводит сырые байты регистров (big-endian по 2 байта) в текст поля.
func DecodeRegister(r Register, raw []byte, hiSigFirst bool) string {
	if r.Type == Uint16 {
		v := binary.BigEndian.Uint16(raw)
		if r.Decimals == 0 {
			return strconv.FormatUint(uint64(v), 10)
		}
		return strconv.FormatFloat(float64(v)/math.Pow10(r.Decimals), 'f', r.Decimals, 64)
	}
	lo, hi := binary.BigEndian.Uint16(raw[0:2]), binary.BigEndian.Uint16(raw[2:4])
	if hiSigFirst {
		lo, hi = hi, lo
	}
	bits := uint32(hi)<<16 | uint32(lo)
	if r.Type == Uint32 {
		return fmt.Sprintf("0x%08x", bits)
	}
	f := float64(math.Float32frombits(bits))
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "NaN"
	}
	return strconv.FormatFloat(math.Round(f*1000)/1000, 'f', -1, 64)
}

// Close закрывает порт или соединение.
func (m *Modbus) Close() error {
	return m.closer.Close()
}
