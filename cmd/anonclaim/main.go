package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kysee/anon-ownership/chain"
	"github.com/kysee/anon-ownership/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app carries the state every subcommand shares once the root's pre-run
// has loaded the configuration.
type app struct {
	envFile    string
	configFile string
	logLevel   string

	cfg    *config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:           "anonclaim",
		Short:         "Anonymous ownership claims over Semaphore groups",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env", ".env", "dotenv file")
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "optional YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	root.AddCommand(
		a.deploySemaphoreCmd(),
		a.deployRegistryCmd(),
		a.addMemberCmd(),
		a.claimCmd(),
		a.claimOrProveCmd(),
		a.hashCmd(),
		a.identityCmd(),
		a.claimsCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.envFile, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	lvl := cfg.LogLevel
	if a.logLevel != "" {
		lvl = a.logLevel
	}
	level, err := zerolog.ParseLevel(lvl)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", lvl, err)
	}
	out := zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}
	a.logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
	return nil
}

// dial opens the signing chain client from RPC_URL and PRIVATE_KEY.
func (a *app) dial(ctx context.Context) (*chain.Client, error) {
	key, err := a.cfg.Key()
	if err != nil {
		return nil, err
	}
	c, err := chain.Dial(ctx, a.cfg.RPCURL, key, a.logger)
	if err != nil {
		return nil, err
	}
	a.logger.Debug().Str("rpc", a.cfg.RPCURL).Str("from", c.From.Hex()).Str("chainId", c.ChainID.String()).Msg("connected")
	return c, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
