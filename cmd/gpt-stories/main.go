package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/theimaginaryfoundation/gpt-stories/stories"
)

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and maps the outcome to an exit code:
// 2 for usage and configuration errors, 1 for runtime failures.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp()
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintln(stderr, err.Error())
	var ue usageError
	if errors.As(err, &ue) {
		return 2
	}
	return 1
}

// usageError marks errors caused by the command line or configuration.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usage(err error) error {
	if err == nil {
		return nil
	}
	return usageError{err: err}
}

// app carries the global flags, the loaded configuration and the logger shared by all subcommands.
type app struct {
	configPath string
	provider   string
	model      string
	apiKey     string
	verbose    bool

	cfg    FileConfig
	logger *zap.Logger

	// clients builds the model clients; tests replace it with fakes.
	clients func(ctx context.Context) (stories.Completer, stories.StructuredCompleter, error)
}

func newApp() *app {
	a := &app{logger: zap.NewNop(), cfg: DefaultFileConfig()}
	a.clients = a.providerClients
	return a
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "gpt-stories",
		Short:         "Generate and analyze AI-written children's story summaries",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadFileConfig(a.configPath)
			if err != nil {
				return usage(err)
			}
			if cmd.Flags().Changed("provider") {
				cfg.Provider = a.provider
			}
			if cmd.Flags().Changed("model") {
				cfg.Model = a.model
			}
			if err := cfg.Validate(); err != nil {
				return usage(err)
			}
			a.cfg = cfg

			zc := zap.NewProductionConfig()
			if a.verbose {
				zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := zc.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usage(err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML config file (default $"+ConfigPathEnv+")")
	pf.StringVar(&a.provider, "provider", "", "model provider: openai, anthropic or gemini")
	pf.StringVar(&a.model, "model", "", "model name (default depends on --provider)")
	pf.StringVar(&a.apiKey, "api-key", "", "API key (default from the provider's environment variable)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newGenerateCmd(a),
		newAnalyzeCmd(a),
		newExtractCmd(a, extractNames),
		newExtractCmd(a, extractNounPhrases),
		newSentimentCmd(a),
		newExportTextsCmd(a),
		newWordFrequencyCmd(a),
		newCompareWordsCmd(a),
		newBoxplotCmd(a),
		newFlowchartCmd(a),
	)
	return root
}

// exactArgs is cobra.ExactArgs reported as a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return usage(cobra.ExactArgs(n)(cmd, args))
	}
}
