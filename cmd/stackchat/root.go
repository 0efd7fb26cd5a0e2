package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/stackchat/internal/chat"
	"github.com/gosuda/stackchat/internal/config"
	"github.com/gosuda/stackchat/internal/stack"
)

// app carries what every subcommand needs once flags and env are resolved.
type app struct {
	cfg        *config.Config
	out        io.Writer
	newBackend func(cfg config.StackConfig) (chat.Backend, error)
}

func newApp(out io.Writer) *app {
	return &app{out: out, newBackend: newStackClient}
}

func newStackClient(cfg config.StackConfig) (chat.Backend, error) {
	return stack.New(stack.Options{
		Host:     cfg.Host,
		Port:     cfg.Port,
		UseTLS:   cfg.UseTLS,
		CertPath: cfg.CertPath,
		Timeout:  cfg.Timeout,
	})
}

type rootFlags struct {
	host          string
	port          int
	useTLS        bool
	certPath      string
	disableSafety bool
	logLevel      string
	logFormat     string
}

func newRootCmd(a *app) *cobra.Command {
	var f rootFlags

	cmd := &cobra.Command{
		Use:           "stackchat",
		Short:         "Chat with agents on a remote model-serving stack",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `stackchat drives agents on a remote stack server: it builds an agent
configuration, registers memory banks, opens sessions and streams each turn's
events to the terminal or to a small web chat widget.

Settings come from STACKCHAT_* environment variables, optionally loaded from a
.env file; flags override them.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.configure(cmd, &f)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.host, "host", "", "stack server host (STACKCHAT_HOST)")
	pf.IntVar(&f.port, "port", 0, "stack server port (STACKCHAT_PORT)")
	pf.BoolVar(&f.useTLS, "use-tls", false, "connect over https (STACKCHAT_USE_TLS)")
	pf.StringVar(&f.certPath, "cert-path", "", "PEM bundle to trust for TLS (STACKCHAT_CERT_PATH)")
	pf.BoolVar(&f.disableSafety, "disable-safety", false, "run without input and output shields (STACKCHAT_DISABLE_SAFETY)")
	pf.StringVar(&f.logLevel, "log-level", "", "zerolog level (STACKCHAT_LOG_LEVEL)")
	pf.StringVar(&f.logFormat, "log-format", "", "text or json (STACKCHAT_LOG_FORMAT)")

	cmd.AddCommand(newSearchCmd(a), newRagCmd(a), newServeCmd(a))
	return cmd
}

// configure loads .env and the environment, applies flag overrides and sets
// up logging.
func (a *app) configure(cmd *cobra.Command, f *rootFlags) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Stack.Host = f.host
	}
	if flags.Changed("port") {
		cfg.Stack.Port = f.port
	}
	if flags.Changed("use-tls") {
		cfg.Stack.UseTLS = f.useTLS
	}
	if flags.Changed("cert-path") {
		cfg.Stack.CertPath = f.certPath
	}
	if flags.Changed("disable-safety") {
		cfg.Stack.DisableSafety = f.disableSafety
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	setupLogging(cfg.Log, os.Stderr)
	logWarnings(log.Logger, cfg)
	a.cfg = cfg
	return nil
}

func logWarnings(logger zerolog.Logger, cfg *config.Config) {
	for _, w := range cfg.Warnings() {
		logger.Warn().Msg(w)
	}
}

func setupLogging(cfg config.LogConfig, w io.Writer) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	}
}
