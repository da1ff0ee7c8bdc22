package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/shiwa/daqlog/internal/logger"
	"github.com/shiwa/daqlog/internal/manager"
)

func newManagerCmd() *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "manager",
		Short: "Интерактивный менеджер: пишет Run, показывает строки приборов, Quit останавливает логгеры",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			m := manager.New(cfg)
			if err := m.Start(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			return runInteractiveShell(ctx, m, prompt, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "daqlog> ", "строка приглашения")
	return cmd
}

func runInteractiveShell(ctx context.Context, m *manager.Manager, prompt string, out io.Writer) error {
	historyFile := filepath.Join(os.TempDir(), "daqlog-manager.history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          out,
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	printWelcome(out, m)
	sh := &shell{m: m, out: out, verbosity: verbosity}
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			fmt.Fprintln(out)
			continue
		}
		if err == io.EOF {
			fmt.Fprintln(out)
			return nil
		}
		done, err := sh.exec(ctx, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		if done {
			return nil
		}
	}
}

// shell — состояние сеанса менеджера.
type shell struct {
	m         *manager.Manager
	out       io.Writer
	verbosity int
}

// exec выполняет одну строку; done — сеанс завершён (exit или quit).
func (s *shell) exec(ctx context.Context, line string) (done bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	tokens, err := shlex.Split(line)
	if err != nil {
		return false, fmt.Errorf("parse: %w", err)
	}
	if len(tokens) == 0 {
		return false, nil
	}
	switch tokens[0] {
	case "exit":
		fmt.Fprintln(s.out, "Loggers keep running. Bye!")
		return true, nil
	case "quit", "Quit":
		return true, s.m.Quit(ctx, s.out)
	case "help":
		printShellHelp(s.out)
		return false, nil
	case "list":
		printInstruments(s.out, s.m)
		return false, nil
	case "log":
		return false, s.handleLog(tokens[1:])
	case "last":
		if len(tokens) != 2 {
			return false, fmt.Errorf("usage: last <instrument>")
		}
		return false, s.printLast(tokens[1])
	case "manager":
		fmt.Fprintln(s.out, "already in the manager shell")
		return false, nil
	}
	// Имя прибора без команды — как в исходном менеджере.
	for _, name := range s.m.Instruments() {
		if tokens[0] == name && len(tokens) == 1 {
			return false, s.printLast(name)
		}
	}
	verbosity = s.verbosity
	err = executeArgs(tokens, s.out)
	s.verbosity = verbosity
	return false, err
}

func (s *shell) printLast(name string) error {
	dl, err := s.m.LastDataLine(name)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, dl)
	return nil
}

// handleLog — уровень журнала на время сеанса: log -v, log --level debug, log --show.
func (s *shell) handleLog(args []string) error {
	fs := pflag.NewFlagSet("log", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		vcount int
		level  string
		show   bool
	)
	fs.CountVarP(&vcount, "verbose", "v", "debug")
	fs.StringVar(&level, "level", "", "error|warn|info|debug")
	fs.BoolVarP(&show, "show", "s", false, "показать текущий уровень")
	if err := fs.Parse(args); err != nil {
		return err
	}
	std := logger.Default()
	switch {
	case level != "":
		lv, err := logger.ParseLevel(level)
		if err != nil {
			return err
		}
		std.SetLevel(lv)
		if lv == logger.LevelDebug {
			s.verbosity = 1
		} else {
			s.verbosity = 0
		}
	case vcount > 0 && !show:
		s.verbosity = vcount
		std.SetLevel(logger.LevelFromVerbosity(vcount))
	}
	fmt.Fprintf(s.out, "log level: %s\n", std.Level())
	return nil
}

// executeArgs выполняет подкоманду daqlog внутри оболочки.
// Конфиг и уровень журнала сеанса сохраняются: NewRootCmd заново привязывает флаги к значениям по умолчанию.
func executeArgs(args []string, out io.Writer) error {
	if len(args) == 0 {
		return nil
	}
	path, v, q := cfgPath, verbosity, quiet
	root := NewRootCmd()
	cfgPath, verbosity, quiet = path, v, q
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)
	return root.Execute()
}

func printWelcome(out io.Writer, m *manager.Manager) {
	fmt.Fprintln(out, "daqlog manager")
	fmt.Fprintln(out, "Closing the manager does not stop the loggers; type 'quit' to stop all of them.")
	fmt.Fprintln(out, "Enter an instrument name to see its last recorded dataline. Enabled instruments:")
	printInstruments(out, m)
}

func printInstruments(out io.Writer, m *manager.Manager) {
	for _, n := range m.Instruments() {
		fmt.Fprintf(out, "  %s\n", n)
	}
}

func printShellHelp(out io.Writer) {
	fmt.Fprintln(out, `Commands:
  <instrument>          # last recorded dataline of an instrument
  last <instrument>     # same
  list                  # enabled instruments
  instruments --all     # all instruments from the config
  ports                 # serial ports
  log -v | --level L    # session log level
  log --show            # current log level
  quit                  # write Quit and wait until loggers stop
  exit                  # leave the manager, loggers keep running`)
}
