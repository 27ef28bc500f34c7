package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-lending/library"
)

// settings are the process-level options. Environment values provide the
// defaults; persistent flags override them.
type settings struct {
	Ledger   string `env:"LIBRARY_LEDGER"`
	Seed     string `env:"LIBRARY_SEED"`
	LogLevel string `env:"LIBRARY_LOG_LEVEL" envDefault:"warn"`
}

func loadSettings() (settings, error) {
	var s settings
	if err := env.Parse(&s); err != nil {
		return settings{}, fmt.Errorf("parse env: %w", err)
	}
	return s, nil
}

// app is the state shared by every subcommand once the root command has run
// its pre-run hook.
type app struct {
	svc    *library.LendingService
	ledger *library.Ledger
	logger *slog.Logger
}

type cli struct {
	settings settings
	app      *app

	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

// Execute builds the root command from the environment and runs it against
// the process standard streams.
func Execute() error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	return newCLI(s, os.Stdin, os.Stdout, os.Stderr).execute(os.Args[1:])
}

func newCLI(s settings, in io.Reader, out, errOut io.Writer) *cli {
	return &cli{settings: s, in: in, out: out, errOut: errOut}
}

// execute runs the root command with args. The ledger opened by the pre-run
// hook is closed on every path; cobra skips post-run hooks when a command
// returns an error.
func (c *cli) execute(args []string) error {
	if args == nil {
		args = []string{}
	}
	root := c.rootCommand()
	root.SetArgs(args)
	err := root.Execute()
	if cerr := c.close(); err == nil {
		err = cerr
	}
	return err
}

func (c *cli) rootCommand() *cobra.Command {
	s := c.settings
	root := &cobra.Command{
		Use:           "library",
		Short:         "Lending and fines engine for a shared library",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd.Annotations[readsLedgerOnly] == "true")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.shell()
		},
	}
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	root.PersistentFlags().StringVar(&c.settings.Seed, "seed", s.Seed, "YAML seed file with material types and initial stock")
	root.PersistentFlags().StringVar(&c.settings.Ledger, "ledger", s.Ledger, "circulation ledger database (default in-memory)")
	root.PersistentFlags().StringVar(&c.settings.LogLevel, "log-level", s.LogLevel, "log level: debug, info, warn or error")

	root.AddCommand(c.shellCmd(), c.runCmd(), c.typesCmd(), c.exportCmd(), c.historyCmd(), c.verifyCmd())
	return root
}

// readsLedgerOnly marks subcommands that inspect an existing ledger and must
// not append seed entries to it.
const readsLedgerOnly = "reads-ledger-only"

func (c *cli) open(skipSeed bool) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.settings.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.settings.LogLevel, err)
	}
	logger := slog.New(slog.NewTextHandler(c.errOut, &slog.HandlerOptions{Level: level}))

	cfg, err := library.ConfigFromEnv()
	if err != nil {
		return err
	}

	var seed library.Seed
	if c.settings.Seed != "" && !skipSeed {
		if seed, err = library.ReadSeedFile(c.settings.Seed); err != nil {
			return err
		}
	}
	if cfg.Types, err = seed.Registry(); err != nil {
		return err
	}

	ledger, err := library.OpenLedger(c.settings.Ledger)
	if err != nil {
		return err
	}

	svc, err := library.NewLendingService(cfg,
		library.WithLogger(logger),
		library.WithJournal(ledger),
	)
	if err != nil {
		ledger.Close()
		return err
	}

	for _, r := range seed.Apply(svc) {
		if r.Err != nil {
			logger.Warn("seed row rejected", "kind", r.Kind, "id", r.ID, "name", r.Name, "error", r.Err)
		}
	}

	c.app = &app{svc: svc, ledger: ledger, logger: logger}
	return nil
}

func (c *cli) close() error {
	if c.app == nil || c.app.ledger == nil {
		return nil
	}
	err := c.app.ledger.Close()
	c.app = nil
	return err
}

func (c *cli) shell() error {
	interactive := false
	if f, ok := c.in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}
	if interactive {
		fmt.Fprintln(c.out, "Welcome to the library lending system!")
		printHelp(c.out)
	}
	return newInterpreter(c.app.svc, c.app.ledger, c.out).run(c.in, interactive, false)
}

func (c *cli) shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive command interpreter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.shell()
		},
	}
}

func (c *cli) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <script>",
		Short: "Execute a file of interpreter commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runScript(args[0], c.out)
		},
	}
}

func (c *cli) runScript(path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open script: %w", err)
	}
	defer f.Close()
	return newInterpreter(c.app.svc, c.app.ledger, out).run(f, false, true)
}

func (c *cli) typesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the registered material types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printTypes(c.out, c.app.svc.Types())
			return nil
		},
	}
}

func (c *cli) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [script]",
		Short: "Print a JSON snapshot of the library, optionally after running a script",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if err := c.runScript(args[0], io.Discard); err != nil {
					return err
				}
			}
			data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(c.app.svc.Snapshot(), "", "  ")
			if err != nil {
				return fmt.Errorf("encode snapshot: %w", err)
			}
			fmt.Fprintln(c.out, string(data))
			return nil
		},
	}
}

func (c *cli) historyCmd() *cobra.Command {
	var (
		limit        int
		kinds        []string
		userID       int
		materialID   int
		organization string
	)
	cmd := &cobra.Command{
		Use:         "history",
		Short:       "Show circulation ledger entries",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{readsLedgerOnly: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireLedgerFile(); err != nil {
				return err
			}
			q := library.HistoryQuery{Organization: organization, Limit: limit}
			for _, k := range kinds {
				q.Kinds = append(q.Kinds, library.EventKind(k))
			}
			if cmd.Flags().Changed("user") {
				q.UserID = &userID
			}
			if cmd.Flags().Changed("material") {
				q.MaterialID = &materialID
			}
			entries, err := c.app.ledger.History(q)
			if err != nil {
				return err
			}
			printHistory(c.out, entries)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "show only the most recent N entries")
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "filter by event kind (repeatable)")
	cmd.Flags().IntVar(&userID, "user", 0, "filter by user ID")
	cmd.Flags().IntVar(&materialID, "material", 0, "filter by material ID")
	cmd.Flags().StringVar(&organization, "organization", "", "filter by organization name")
	return cmd
}

func (c *cli) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "verify",
		Short:       "Check the circulation ledger hash chain",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{readsLedgerOnly: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireLedgerFile(); err != nil {
				return err
			}
			if err := c.app.ledger.Verify(); err != nil {
				return err
			}
			entries, err := c.app.ledger.History(library.HistoryQuery{})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Ledger OK: %d entries verified.\n", len(entries))
			return nil
		},
	}
}

var errNoLedgerFile = errors.New("no ledger file given; use --ledger or LIBRARY_LEDGER")

func (c *cli) requireLedgerFile() error {
	if c.settings.Ledger == "" || c.settings.Ledger == ":memory:" {
		return errNoLedgerFile
	}
	return nil
}
