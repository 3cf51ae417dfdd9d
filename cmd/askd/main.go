// Package main implements the askd CLI: an interactive chat and one-shot
// queries over the askd orchestration engine, plus session management.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/askd/internal/config"
	"github.com/fyrsmithlabs/askd/internal/engine"
	"github.com/fyrsmithlabs/askd/internal/logging"
	"github.com/fyrsmithlabs/askd/internal/telemetry"
)

var (
	// version information, set at build time
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"

	// global flags
	configPath   string
	envFiles     []string
	answerFlag   string
	memoryFlag   string
	modelFlag    string
	embedFlag    string
	noFilter     bool
	logToStdout  bool
	shutdownWait = 5 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "askd",
	Short: "Chat with an assistant grounded in your documents or the web",
	Long: `askd answers questions from a language model, a private document corpus
or live web search, keeps conversation memory, and scrubs sensitive data from
everything you type before it leaves the process.

Configuration is read from ~/.config/askd/config.yaml, .env files and ASKD_*
environment variables. Flags override both.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/askd/config.yaml)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, ".env files to load")
	rootCmd.PersistentFlags().StringVar(&answerFlag, "mode", "", "answer mode: default, rag, web_search")
	rootCmd.PersistentFlags().StringVar(&memoryFlag, "memory", "", "memory mode: transient, persistent")
	rootCmd.PersistentFlags().StringVar(&modelFlag, "provider", "", "model provider: openai, anthropic, groq, ollama")
	rootCmd.PersistentFlags().StringVar(&embedFlag, "embedding", "", "embedding provider: huggingface, ollama, openai, hash")
	rootCmd.PersistentFlags().BoolVar(&noFilter, "no-filter", false, "start with the privacy filter disabled")
	rootCmd.PersistentFlags().BoolVar(&logToStdout, "log-stdout", false, "write logs to stdout instead of the log file")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "askd by Fyrsmith Labs\n")
		fmt.Fprintf(out, "Version:    %s\n", version)
		fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
		fmt.Fprintf(out, "Build Date: %s\n", buildDate)
	},
}

// loadConfig loads .env files and the config file, then applies flag
// overrides.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}
	applyFlags(cfg)
	return cfg, nil
}

func applyFlags(cfg *config.Config) {
	if answerFlag != "" {
		cfg.Engine.AnswerMode = answerFlag
	}
	if memoryFlag != "" {
		cfg.Engine.MemoryMode = memoryFlag
	}
	if modelFlag != "" {
		cfg.Engine.ModelProvider = modelFlag
	}
	if embedFlag != "" {
		cfg.Engine.EmbeddingProvider = embedFlag
	}
	if noFilter {
		disabled := false
		cfg.Engine.PrivacyFilter = &disabled
	}
}

// runtime holds everything a command needs to talk to the engine.
type runtime struct {
	cfg    *config.Config
	logger *logging.Logger
	tel    *telemetry.Telemetry
	engine *engine.Engine
}

// Close shuts the engine down and flushes telemetry and logs.
func (r *runtime) Close() {
	if r.engine != nil {
		if err := r.engine.Close(); err != nil {
			r.logger.Warn(context.Background(), "closing engine", zap.Error(err))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	if err := r.tel.Shutdown(ctx); err != nil {
		r.logger.Warn(ctx, "telemetry shutdown", zap.Error(err))
	}
	if n := logging.DroppedEntries(); n > 0 {
		r.logger.Info(ctx, "log sampling dropped entries", zap.Uint64("count", n))
	}
	_ = r.logger.Sync()
}

// newRuntime wires configuration, logging, telemetry and the engine.
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	tcfg := telemetry.NewDefaultConfig()
	if err := cfg.UnmarshalSection("telemetry", tcfg); err != nil {
		return nil, err
	}
	tel, err := telemetry.New(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	lcfg := logging.NewDefaultConfig()
	lcfg.Output.Stdout = logToStdout
	lcfg.Output.File = !logToStdout
	if err := cfg.UnmarshalSection("logging", lcfg); err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(lcfg, tel.LoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	if st := tel.Status(); st.Degraded {
		logger.Warn(ctx, "telemetry degraded, exporting nothing", zap.String("reason", st.Reason))
	}

	eng, err := engine.New(ctx, cfg,
		engine.WithLogger(logger),
		engine.WithMeter(tel.Meter("askd")),
		engine.WithTracer(tel.Tracer("askd")),
	)
	if err != nil {
		rt := &runtime{cfg: cfg, logger: logger, tel: tel}
		rt.Close()
		return nil, fmt.Errorf("starting engine: %w", err)
	}
	return &runtime{cfg: cfg, logger: logger, tel: tel, engine: eng}, nil
}
