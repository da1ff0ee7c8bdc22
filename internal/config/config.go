package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shiwa/daqlog/internal/cmdselect"
	"github.com/shiwa/daqlog/internal/schedule"
)

// Config — конфигурация daqlog: общий файл состояния, каталог логов и список приборов.
type Config struct {
	StateFile   string       `yaml:"state_file"`
	LogDir      string       `yaml:"log_dir"`
	Instruments []Instrument `yaml:"instruments"`
}

// Instrument — один опрашиваемый прибор.
type Instrument struct {
	Name      string `yaml:"name"`
	Enabled   bool   `yaml:"enabled"`
	Delimiter string `yaml:"delimiter"`

	// Интервалы: длительность Go ("1s", "15m", "2h") или "daily"
	ReadInterval             string `yaml:"read_interval"`
	WriteInterval            string `yaml:"write_interval"`
	NewFileInterval          string `yaml:"new_file_interval"`
	SecondaryCommandInterval string `yaml:"secondary_command_interval"` // пусто — только основная команда

	OutputDir string `yaml:"output_dir"`
	Header    string `yaml:"header"`

	// Очистка ответа
	Multiline         bool   `yaml:"multiline"`
	SentenceDelimiter string `yaml:"sentence_delimiter"`
	HandleGarbled     bool   `yaml:"handle_garbled"`
	// Ответ из двух строк, вторая дописывается к первой (Thermo 42C)
	TwoLineResponse bool `yaml:"two_line_response"`

	Connection Connection `yaml:"connection"`
}

// Connection — транспорт до прибора (type: serial | tcp | modbus_serial | modbus_tcp).
type Connection struct {
	Type string `yaml:"type"`

	// serial
	Port    string `yaml:"port"`
	Baud    int    `yaml:"baud"`
	Timeout string `yaml:"timeout"` // таймаут чтения/ответа, например "1s"

	// tcp
	Host      string `yaml:"host"`
	TCPPort   int    `yaml:"tcp_port"`
	LengthMax int    `yaml:"length_max"`

	Command          string `yaml:"command"`
	SecondaryCommand string `yaml:"secondary_command"`
	// Префикс команды одним байтом: command_prefix как есть, thermo_id — id+128 (приборы Thermo)
	CommandPrefix *int `yaml:"command_prefix"`
	ThermoID      *int `yaml:"thermo_id"`

	EndOfString  string `yaml:"end_of_string"`
	CommandWait  string `yaml:"command_wait"`  // пауза между командой и чтением
	CommandDelay string `yaml:"command_delay"` // tcp: пауза перед recv
	StartupPurge int    `yaml:"startup_purge"` // секунд «холостого» опроса при старте
	InitCommand  string `yaml:"init_command"`  // отправляется один раз после открытия порта

	// modbus_serial: формат кадра порта
	DataBits int    `yaml:"data_bits"`
	Parity   string `yaml:"parity"` // N | E | O
	StopBits int    `yaml:"stop_bits"`

	Modbus Modbus `yaml:"modbus"`
}

// Modbus — регистры modbus-прибора; значения попадают в строку в порядке Registers.
type Modbus struct {
	UnitIDs       []int `yaml:"unit_ids"`       // пусто — устройство 1
	AddressOffset int   `yaml:"address_offset"` // вычитается из адресов регистров
	// Старший регистр пары первым (по умолчанию первым идёт младший)
	HiSigFirst bool             `yaml:"hi_sig_first"`
	Registers  []ModbusRegister `yaml:"registers"`
}

// ModbusRegister — один читаемый holding-регистр (или пара для 32-битных типов).
type ModbusRegister struct {
	Name     string `yaml:"name"`
	Address  int    `yaml:"address"`
	Type     string `yaml:"type"`     // uint16 | uint32 | float32
	Decimals int    `yaml:"decimals"` // uint16: значение делится на 10^decimals
}

// Default возвращает конфиг по умолчанию (без приборов)
func Default() *Config {
	return &Config{
		StateFile: filepath.Join("state", "logger_state.txt"),
		LogDir:    "logs",
	}
}

// DefaultInstrument — значения по умолчанию для прибора.
func DefaultInstrument() Instrument {
	return Instrument{
		Enabled:         true,
		Delimiter:       ",",
		ReadInterval:    "1s",
		WriteInterval:   "10s",
		NewFileInterval: "daily",
		Connection: Connection{
			Type:      "serial",
			Port:      "/dev/ttyS0",
			Baud:      9600,
			Timeout:   "1s",
			LengthMax: 1024,
		},
	}
}

// Load читает конфиг из YAML, подставляет значения по умолчанию и проверяет его.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&c, data)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Find возвращает прибор по имени.
func (c *Config) Find(name string) (Instrument, bool) {
	for _, in := range c.Instruments {
		if in.Name == name {
			return in, true
		}
	}
	return Instrument{}, false
}

// Enabled возвращает имена включённых приборов в порядке конфига.
func (c *Config) Enabled() []string {
	var out []string
	for _, in := range c.Instruments {
		if in.Enabled {
			out = append(out, in.Name)
		}
	}
	return out
}

// Validate проверяет конфиг; ошибки интервалов оборачивают *schedule.ConfigError.
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for i := range c.Instruments {
		in := &c.Instruments[i]
		if in.Name == "" {
			return fmt.Errorf("instruments[%d]: name required", i)
		}
		if seen[in.Name] {
			return fmt.Errorf("instrument %s: duplicate name", in.Name)
		}
		seen[in.Name] = true
		if err := in.Validate(); err != nil {
			return fmt.Errorf("instrument %s: %w", in.Name, err)
		}
	}
	return nil
}

// Validate проверяет интервалы и транспорт прибора.
func (in *Instrument) Validate() error {
	if _, err := in.ReadEvery(); err != nil {
		return err
	}
	for _, f := range []struct {
		field, value string
		required     bool
	}{
		{"write_interval", in.WriteInterval, false},
		{"new_file_interval", in.NewFileInterval, true},
		{"secondary_command_interval", in.SecondaryCommandInterval, false},
	} {
		s, err := schedule.Parse(f.value)
		if err != nil {
			return fmt.Errorf("%s: %w", f.field, err)
		}
		if f.required && s.IsZero() {
			return fmt.Errorf("%s: required", f.field)
		}
	}
	if _, _, _, err := in.Schedules(); err != nil {
		return fmt.Errorf("secondary_command_interval: %w", err)
	}
	if in.SecondaryCommandInterval != "" && in.Connection.SecondaryCommand == "" {
		return errors.New("secondary_command_interval set without connection.secondary_command")
	}
	if in.OutputDir == "" {
		return errors.New("output_dir required")
	}
	switch in.Connection.Type {
	case "serial":
		if in.Connection.Port == "" {
			return errors.New("connection.port required")
		}
	case "tcp", "modbus_tcp":
		if in.Connection.Host == "" || in.Connection.TCPPort == 0 {
			return errors.New("connection.host and connection.tcp_port required")
		}
	case "modbus_serial":
		if in.Connection.Port == "" {
			return errors.New("connection.port required")
		}
		switch in.Connection.Parity {
		case "N", "E", "O":
		default:
			return fmt.Errorf("connection.parity: %q (N|E|O)", in.Connection.Parity)
		}
	default:
		return fmt.Errorf("unknown connection type: %s", in.Connection.Type)
	}
	if in.Connection.IsModbus() {
		if err := in.Connection.Modbus.validate(); err != nil {
			return fmt.Errorf("connection.modbus: %w", err)
		}
	}
	if id := in.Connection.ThermoID; id != nil && (*id < 0 || *id > 127) {
		return fmt.Errorf("connection.thermo_id: %d out of range 0..127", *id)
	}
	if p := in.Connection.CommandPrefix; p != nil && (*p < 0 || *p > 255) {
		return fmt.Errorf("connection.command_prefix: %d out of range 0..255", *p)
	}
	for _, d := range []struct{ field, value string }{
		{"connection.timeout", in.Connection.Timeout},
		{"connection.command_wait", in.Connection.CommandWait},
		{"connection.command_delay", in.Connection.CommandDelay},
	} {
		if _, err := parseDuration(d.value); err != nil {
			return fmt.Errorf("%s: %w", d.field, err)
		}
	}
	return nil
}

// ReadEvery — интервал чтения: целое положительное число секунд.
func (in *Instrument) ReadEvery() (time.Duration, error) {
	d, err := time.ParseDuration(in.ReadInterval)
	if err != nil {
		return 0, &schedule.ConfigError{Spec: in.ReadInterval, Reason: err.Error()}
	}
	if d < time.Second || d%time.Second != 0 {
		return 0, &schedule.ConfigError{Spec: in.ReadInterval, Reason: "read interval must be a positive whole number of seconds"}
	}
	return d, nil
}

// Schedules возвращает расписания записи, новых файлов и дополнительной команды.
func (in *Instrument) Schedules() (write, newFile, secondary schedule.Spec, err error) {
	if write, err = schedule.Parse(in.WriteInterval); err != nil {
		return
	}
	if newFile, err = schedule.Parse(in.NewFileInterval); err != nil {
		return
	}
	if secondary, err = schedule.Parse(in.SecondaryCommandInterval); err != nil {
		return
	}
	if secondary.Kind() == schedule.KindEveryNSeconds {
		// окно дополнительной команды короче паузы селектора: срабатывания терялись бы
		err = &schedule.ConfigError{
			Spec:   in.SecondaryCommandInterval,
			Reason: fmt.Sprintf("secondary command interval must be at least 1m (cooldown %v)", cmdselect.Cooldown),
		}
	}
	return
}

// IsModbus — прибор опрашивается чтением регистров, а не текстовой командой.
func (c Connection) IsModbus() bool {
	return c.Type == "modbus_serial" || c.Type == "modbus_tcp"
}

func (m Modbus) validate() error {
	if len(m.Registers) == 0 {
		return errors.New("registers required")
	}
	for _, id := range m.UnitIDs {
		if id < 0 || id > 247 {
			return fmt.Errorf("unit id %d out of range 0..247", id)
		}
	}
	for _, r := range m.Registers {
		addr := r.Address - m.AddressOffset
		if addr < 0 || addr > 0xffff {
			return fmt.Errorf("register %s: address %d-%d out of range", r.Name, r.Address, m.AddressOffset)
		}
		switch r.Type {
		case "uint16":
			if r.Decimals < 0 || r.Decimals > 9 {
				return fmt.Errorf("register %s: decimals %d out of range 0..9", r.Name, r.Decimals)
			}
		case "uint32", "float32":
			if addr == 0xffff {
				return fmt.Errorf("register %s: pair does not fit the address space", r.Name)
			}
		default:
			return fmt.Errorf("register %s: unknown type %q (uint16|uint32|float32)", r.Name, r.Type)
		}
	}
	return nil
}

// Durations возвращает таймаут, паузу после команды и задержку tcp.
func (c Connection) Durations() (timeout, wait, delay time.Duration) {
	timeout, _ = parseDuration(c.Timeout)
	wait, _ = parseDuration(c.CommandWait)
	delay, _ = parseDuration(c.CommandDelay)
	return
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}

// applyDefaults подставляет значения по умолчанию; enabled по умолчанию true,
// поэтому явное "enabled: false" определяется по исходному YAML.
func applyDefaults(c *Config, raw []byte) {
	d := Default()
	if c.StateFile == "" {
		c.StateFile = d.StateFile
	}
	if c.LogDir == "" {
		c.LogDir = d.LogDir
	}
	explicit := explicitEnabled(raw)
	di := DefaultInstrument()
	for i := range c.Instruments {
		in := &c.Instruments[i]
		if v, ok := explicit[i]; ok {
			in.Enabled = v
		} else {
			in.Enabled = di.Enabled
		}
		if in.Delimiter == "" {
			in.Delimiter = di.Delimiter
		}
		if in.ReadInterval == "" {
			in.ReadInterval = di.ReadInterval
		}
		if in.WriteInterval == "" {
			in.WriteInterval = di.WriteInterval
		}
		if in.NewFileInterval == "" {
			in.NewFileInterval = di.NewFileInterval
		}
		if in.OutputDir == "" && in.Name != "" {
			in.OutputDir = filepath.Join("data", in.Name)
		}
		if in.SentenceDelimiter == "" {
			in.SentenceDelimiter = "\r\n"
		}
		cn := &in.Connection
		if cn.Type == "" {
			cn.Type = di.Connection.Type
		}
		if cn.Type == "serial" {
			if cn.Port == "" {
				cn.Port = di.Connection.Port
			}
			if cn.Baud == 0 {
				cn.Baud = di.Connection.Baud
			}
		}
		switch cn.Type {
		case "modbus_serial":
			if cn.Baud == 0 {
				cn.Baud = di.Connection.Baud
			}
			if cn.DataBits == 0 {
				cn.DataBits = 8
			}
			if cn.Parity == "" {
				cn.Parity = "N"
			}
			if cn.StopBits == 0 {
				cn.StopBits = 1
			}
		case "modbus_tcp":
			if cn.TCPPort == 0 {
				cn.TCPPort = 502
			}
		}
		if cn.Timeout == "" {
			cn.Timeout = di.Connection.Timeout
		}
		if cn.LengthMax == 0 {
			cn.LengthMax = di.Connection.LengthMax
		}
	}
}

// explicitEnabled возвращает явно заданные значения enabled по индексу прибора.
func explicitEnabled(raw []byte) map[int]bool {
	var probe struct {
		Instruments []struct {
			Enabled *bool `yaml:"enabled"`
		} `yaml:"instruments"`
	}
	out := make(map[int]bool)
	if err := yaml.Unmarshal(raw, &probe); err != nil {
		return out
	}
	for i, in := range probe.Instruments {
		if in.Enabled != nil {
			out[i] = *in.Enabled
		}
	}
	return out
}
