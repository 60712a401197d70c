// conformflow checks event logs against temporal process models and runs
// conformance-aware counterfactual explanation experiments.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/logflow/conformflow/pkg/config"
	"github.com/logflow/conformflow/pkg/logging"
	"github.com/logflow/conformflow/pkg/telemetry"
	"github.com/logflow/conformflow/pkg/tui"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := newApp()
	err := a.rootCmd().ExecuteContext(ctx)
	stop()
	a.teardown(context.Background())
	if err != nil {
		err = classify(err)
		tui.PrintError(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// app carries what every command shares once the root pre-run has loaded
// configuration.
type app struct {
	configPath string
	logLevel   string
	devLog     bool

	// managerOpts are passed to config.NewManager.
	managerOpts []config.Option

	cfg      *config.Config
	logger   *zap.Logger
	shutdown telemetry.ShutdownFunc
}

func newApp() *app {
	return &app{}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "conformflow",
		Short: "Conformance checking and conformance-aware counterfactuals",
		Long: `conformflow checks every trace of an event log against an LTLf formula or a
DFA compiled from one, and runs the dataset × prefix × tier × search
experiment matrix that explains classifier outcomes with counterfactuals.`,
		Version:           fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (overrides search paths)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&a.devLog, "dev-log", false, "Human-readable development logging")

	root.AddCommand(
		a.checkCmd(),
		a.formulaCmd(),
		a.automatonCmd(),
		a.runCmd(),
		a.planCmd(),
		a.encodeCmd(),
		a.watchCmd(),
		a.statsCmd(),
	)
	return root
}

// setup loads configuration, then builds the logger and tracer from it.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	m := config.NewManager(a.managerOpts...)
	if err := m.Load(a.configPath); err != nil {
		return err
	}
	a.cfg = m.Get()

	if cmd.Flags().Changed("log-level") {
		a.cfg.Logging.Level = a.logLevel
	}
	if cmd.Flags().Changed("dev-log") {
		a.cfg.Logging.Development = a.devLog
	}
	logger, err := logging.New(a.cfg.Logging.Level, a.cfg.Logging.Development)
	if err != nil {
		return err
	}
	a.logger = logger
	a.logger.Debug("configuration loaded", zap.Strings("files", m.Paths()))

	shutdown, err := telemetry.Setup(cmd.Context(), a.cfg.TelemetryConfig(version))
	if err != nil {
		return err
	}
	a.shutdown = shutdown
	return nil
}

// teardown flushes spans and logs. It runs after failed commands too.
func (a *app) teardown(ctx context.Context) {
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			a.logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// closeQuietly closes c if it is an io.Closer, logging failures.
func (a *app) closeQuietly(c any, what string) {
	if closer, ok := c.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.logger.Warn("close "+what, zap.Error(err))
		}
	}
}
