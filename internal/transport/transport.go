// Package transport — соединение с прибором: последовательный порт, TCP или Modbus, строго запрос-ответ.
package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/shiwa/daqlog/internal/config"
)

// Transport — одна операция запрос-ответ за раз; владелец — цикл логгера.
type Transport interface {
	// Send отправляет cmd (пустой cmd — только чтение, потоковый прибор) и возвращает сырой ответ.
	// Отсутствие ответа — ErrNoData.
	Send(cmd []byte) (string, error)
	Close() error
}

// ErrNoData — прибор не ответил за отведённое время или ответ неполный.
var ErrNoData = errors.New("no data")

// ConnectionError — транспорт не удалось инициализировать.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// New создаёт транспорт из конфига соединения прибора; delimiter склеивает значения modbus-регистров.
func New(c config.Connection, delimiter string) (Transport, error) {
	timeout, wait, delay := c.Durations()
	switch c.Type {
	case "serial":
		return OpenSerial(c.Port, c.Baud, SerialOptions{
			EndOfString:  c.EndOfString,
			Wait:         wait,
			Timeout:      timeout,
			StartupPurge: c.StartupPurge,
			PurgeCommand: EncodeCommand(c.Command, Prefix(c)),
			InitCommand:  EncodeCommand(c.InitCommand, Prefix(c)),
		})
	case "tcp":
		addr := net.JoinHostPort(c.Host, strconv.Itoa(c.TCPPort))
		return DialTCP(addr, TCPOptions{
			Timeout:   timeout,
			Delay:     delay,
			LengthMax: c.LengthMax,
			Stream:    c.Command == "",
		})
	case "modbus_serial":
		return OpenModbusSerial(ModbusSerialConfig{
			Device:   c.Port,
			Baud:     c.Baud,
			DataBits: c.DataBits,
			Parity:   c.Parity,
			StopBits: c.StopBits,
			Timeout:  timeout,
		}, modbusOptions(c.Modbus, delimiter))
	case "modbus_tcp":
		addr := net.JoinHostPort(c.Host, strconv.Itoa(c.TCPPort))
		return DialModbusTCP(addr, timeout, modbusOptions(c.Modbus, delimiter))
	default:
		return nil, fmt.Errorf("unknown connection type: %s", c.Type)
	}
}

func modbusOptions(m config.Modbus, delimiter string) ModbusOptions {
	opts := ModbusOptions{HiSigFirst: m.HiSigFirst, Delimiter: delimiter}
	for _, id := range m.UnitIDs {
		opts.Units = append(opts.Units, byte(id))
	}
	for _, r := range m.Registers {
		opts.Registers = append(opts.Registers, Register{
			Name:     r.Name,
			Address:  uint16(r.Address - m.AddressOffset),
			Type:     RegisterType(r.Type),
			Decimals: r.Decimals,
		})
	}
	return opts
}

// Commands возвращает закодированные основную и дополнительную команды.
func Commands(c config.Connection) (primary, secondary []byte) {
	p := Prefix(c)
	return EncodeCommand(c.Command, p), EncodeCommand(c.SecondaryCommand, p)
}

// Prefix — байт-префикс команды: thermo_id+128 для приборов Thermo, иначе command_prefix.
func Prefix(c config.Connection) []byte {
	switch {
	case c.ThermoID != nil:
		return []byte{byte(*c.ThermoID + 128)}
	case c.CommandPrefix != nil:
		return []byte{byte(*c.CommandPrefix)}
	default:
		return nil
	}
}

// EncodeCommand добавляет префикс к ASCII-команде. Пустая команда остаётся пустой.
func EncodeCommand(text string, prefix []byte) []byte {
	if text == "" {
		return nil
	}
	out := make([]byte, 0, len(prefix)+len(text))
	out = append(out, prefix...)
	return append(out, text...)
}
