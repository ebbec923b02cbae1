// Package main is the entry point for the eventgen CLI.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-analytics/internal/config"
	"github.com/capitalize-ai/conversation-analytics/internal/handler"
	"github.com/capitalize-ai/conversation-analytics/internal/llm"
	"github.com/capitalize-ai/conversation-analytics/internal/model"
	"github.com/capitalize-ai/conversation-analytics/internal/service"
	"github.com/capitalize-ai/conversation-analytics/internal/source"
	"github.com/capitalize-ai/conversation-analytics/pkg/logger"
	"github.com/capitalize-ai/conversation-analytics/pkg/tracing"
)

var (
	version    = "dev"
	commit     = "none"
	buildDate  = "unknown"
	jsonOutput bool
)

func main() {
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "eventgen",
		Short: "Discover and tag conversation events",
		Long: `eventgen discovers a taxonomy of event types in assistant conversations
and tags every message against it before sending the events to an
analytics destination.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	rootCmd.PersistentFlags().StringVar(&cfg.Provider, "provider", cfg.Provider, "LLM provider: openai, anthropic or bedrock")
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version info",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"version": version,
					"commit":  commit,
					"date":    buildDate,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "eventgen %s (%s, %s)\n", version, commit, buildDate)
			return nil
		},
	})
	rootCmd.AddCommand(newGenerateSchemaCmd(cfg))
	rootCmd.AddCommand(newTagEventsCmd(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app holds what every run command sets up before its pipeline starts.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	progress *service.Progress
	closers  []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config, command string) (*app, error) {
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	a := &app{
		cfg:      cfg,
		log:      log.WithRun(uuid.Must(uuid.NewV7()).String(), command),
		progress: service.NewProgress(command),
	}
	a.closers = append(a.closers, func(context.Context) error {
		_ = log.Sync()
		return nil
	})

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "eventgen", cfg.TracingEndpoint)
		if err != nil {
			a.log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			a.closers = append(a.closers, func(ctx context.Context) error { return tracing.Shutdown(ctx, tp) })
		}
	}
	return a, nil
}

// serveOps starts the ops HTTP server when OPS_ADDR is set.
func (a *app) serveOps(checks ...handler.ReadinessCheck) {
	if a.cfg.OpsAddr == "" {
		return
	}
	router := handler.NewRouter(handler.NewHealthHandler(a.progress, checks...), handler.RouterConfig{
		JWTSecret:         a.cfg.OpsJWTSecret,
		CORSOrigins:       a.cfg.OpsCORSOrigins,
		RateLimitRequests: a.cfg.OpsRateLimit,
		RateLimitWindow:   a.cfg.OpsRateLimitWindow,
	}, a.log)

	server := &http.Server{
		Addr:              a.cfg.OpsAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		a.log.Info("ops server listening", zap.String("addr", a.cfg.OpsAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("ops server error", zap.Error(err))
		}
	}()
	a.closers = append(a.closers, server.Shutdown)
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.log.Warn("shutdown error", zap.Error(err))
		}
	}
}

func (a *app) executor(backend llm.Backend, model string) *llm.Executor {
	return llm.NewExecutor(backend, model, a.log.With(zap.String("model", model)))
}

func (a *app) backend(ctx context.Context) (llm.Backend, error) {
	backend, err := llm.NewBackend(ctx, a.cfg.Backend())
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM backend: %w", err)
	}
	return backend, nil
}

func (a *app) conversations(ctx context.Context, dataPath string) ([]model.Conversation, error) {
	src, err := source.New(ctx, dataPath, source.Options{AWSRegion: a.cfg.AWSRegion})
	if err != nil {
		return nil, err
	}
	convs, err := src.GetConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}
	a.log.Info("conversations loaded", zap.String("data_path", dataPath), zap.Int("conversations", len(convs)))
	return convs, nil
}

// printJSON writes v as indented JSON to w.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	return nil
}
