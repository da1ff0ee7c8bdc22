// Package cli — команды daqlog: запуск логгеров, менеджер (интерактивная оболочка),
// директивы файла состояния, последняя строка данных, список портов.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shiwa/daqlog/internal/config"
	"github.com/shiwa/daqlog/internal/logger"
	"github.com/shiwa/daqlog/internal/manager"
	"github.com/shiwa/daqlog/internal/shutdown"
	"github.com/shiwa/daqlog/internal/transport"
	"github.com/shiwa/daqlog/pkg/daqloop"
)

// DefaultConfigPath — конфиг по умолчанию в рабочем каталоге.
const DefaultConfigPath = "daqlog.yml"

var (
	cfgPath   string
	verbosity int
	quiet     bool
)

// NewRootCmd создаёт корневую команду.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "daqlog",
		Short:         "Логгер данных приборов по последовательному порту и TCP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&cfgPath, "config", DefaultConfigPath, "путь к YAML конфигу")
	cmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "подробнее (-v — debug)")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "только предупреждения и ошибки")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logger.Default().SetLevel(logger.LevelFromVerbosity(verbosity))
		logger.SetQuiet(quiet)
	}

	cmd.AddCommand(
		newRunCmd(),
		newManagerCmd(),
		newStateCmd(),
		newLastCmd(),
		newInstrumentsCmd(),
		newPortsCmd(),
	)
	return cmd
}

// Execute запускает CLI с аргументами процесса.
func Execute() error {
	return NewRootCmd().Execute()
}

func loadConfig() (*config.Config, error) {
	c, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", cfgPath, err)
	}
	return c, nil
}

func newRunCmd() *cobra.Command {
	var (
		port     string
		baud     int
		toStderr bool
	)
	cmd := &cobra.Command{
		Use:   "run [instrument...]",
		Short: "Запустить логгеры (по умолчанию — все включённые приборы)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			names := args
			if len(names) == 0 {
				names = cfg.Enabled()
			}
			if len(names) == 0 {
				return errors.New("no enabled instruments")
			}
			var ins []config.Instrument
			for _, n := range names {
				in, ok := cfg.Find(n)
				if !ok {
					return fmt.Errorf("unknown instrument %q", n)
				}
				if port != "" {
					in.Connection.Port = port
				}
				if baud != 0 {
					in.Connection.Baud = baud
				}
				ins = append(ins, in)
			}
			if (port != "" || baud != 0) && len(ins) > 1 {
				return errors.New("--port/--baud apply to a single instrument")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runInstruments(ctx, cfg, ins, toStderr)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "последовательный порт (переопределяет config)")
	cmd.Flags().IntVar(&baud, "baud", 0, "скорость порта (переопределяет config)")
	cmd.Flags().BoolVar(&toStderr, "stderr", false, "писать журнал в stderr, а не в файлы log_dir")
	return cmd
}

// runInstruments — по горутине на прибор; фатальная ошибка одного прибора не останавливает остальные.
func runInstruments(ctx context.Context, cfg *config.Config, ins []config.Instrument, toStderr bool) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	// журналы открываются до запуска горутин: ошибка открытия не оставляет запущенных логгеров
	logs := make([]*logger.Logger, len(ins))
	closers := make([]func(), 0, len(ins))
	for i, in := range ins {
		log, closeLog, err := instrumentLogger(cfg.LogDir, in.Name, toStderr)
		if err != nil {
			for _, c := range closers {
				c()
			}
			return err
		}
		logs[i] = log
		closers = append(closers, closeLog)
	}
	for i, in := range ins {
		wg.Add(1)
		go func(in config.Instrument, log *logger.Logger, closeLog func()) {
			defer wg.Done()
			defer closeLog()
			err := daqloop.Run(ctx, in, cfg.StateFile, daqloop.Deps{Log: log})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error("%v", err)
				logger.Error("%v", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(in, logs[i], closers[i])
	}
	wg.Wait()
	return errors.Join(errs...)
}

// instrumentLogger открывает журналы прибора <log_dir>/<name>.txt и <log_dir>/<name>_error.txt.
func instrumentLogger(dir, name string, toStderr bool) (*logger.Logger, func(), error) {
	level := logger.Default().Level()
	if toStderr {
		l := logger.New(os.Stderr, nil, name+": ")
		l.SetLevel(level)
		l.Quiet = quiet
		return l, func() {}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("log dir: %w", err)
	}
	open := func(file string) (*os.File, error) {
		return os.OpenFile(filepath.Join(dir, file), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	}
	out, err := open(name + ".txt")
	if err != nil {
		return nil, nil, fmt.Errorf("log file: %w", err)
	}
	errOut, err := open(name + "_error.txt")
	if err != nil {
		out.Close()
		return nil, nil, fmt.Errorf("log file: %w", err)
	}
	l := logger.New(out, errOut, "")
	l.SetLevel(level)
	l.Quiet = quiet
	return l, func() {
		out.Close()
		errOut.Close()
	}, nil
}

func newStateCmd() *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:       "state run|quit",
		Short:     "Записать директиву в файл состояния",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"run", "quit"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			m := manager.New(cfg)
			switch args[0] {
			case "run", shutdown.DirectiveRun:
				if err := m.Start(); err != nil {
					return err
				}
			case "quit", shutdown.DirectiveQuit:
				var out io.Writer
				if wait {
					out = cmd.OutOrStdout()
				}
				if err := m.Quit(cmd.Context(), out); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown directive %q (run|quit)", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", cfg.StateFile, args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "после quit ждать, пока логгеры прочитают директиву")
	return cmd
}

func newLastCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "last <instrument>",
		Short: "Показать последнюю записанную строку прибора",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dl, err := manager.New(cfg).LastDataLine(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dl)
			return nil
		},
	}
}

func newInstrumentsCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "instruments",
		Short: "Список приборов",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, in := range cfg.Instruments {
				switch {
				case in.Enabled:
					fmt.Fprintln(out, in.Name)
				case all:
					fmt.Fprintf(out, "%s (disabled)\n", in.Name)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "включая выключенные")
	return cmd
}

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "Последовательные порты системы",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := transport.ListPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no serial ports found")
				return nil
			}
			for _, p := range ports {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}
