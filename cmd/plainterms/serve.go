package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/plainterms/plainterms/analysis"
	"github.com/plainterms/plainterms/config"
	"github.com/plainterms/plainterms/ingest"
	"github.com/plainterms/plainterms/llm"
	"github.com/plainterms/plainterms/server"
	"github.com/plainterms/plainterms/session"
)

// shutdownGrace bounds how long in-flight requests get to finish.
const shutdownGrace = 10 * time.Second

func newServeCommand() *cobra.Command {
	var (
		configPath string
		addr       string
		logLevel   string
		logJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(logLevel, logJSON)

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			if cfg.APIKey() == "" {
				logger.Warn("No API key configured; completion calls will fail",
					"env", cfg.Model.APIKeyEnv)
			}

			client := llm.NewClient(llm.Endpoint{
				Provider: cfg.Model.Provider,
				URL:      cfg.Model.Endpoint,
				Model:    cfg.Model.Name,
				APIKey:   cfg.APIKey(),
			},
				llm.WithTimeout(cfg.Model.Timeout),
				llm.WithRetryConfig(retryConfig(cfg.Model.MaxRetries)),
				llm.WithLogger(logger),
			)

			registry := session.NewRegistry()
			ledger := session.NewLedger()
			parsers := ingest.NewRegistry()
			fetcher := ingest.NewFetcher(cfg.Ingest.FetchTimeout, parsers)

			analyzer := analysis.NewAnalyzer(client, registry, ledger,
				analysis.WithAnalysisLimit(cfg.Limits.AnalysisChars),
				analysis.WithQuestionLimit(cfg.Limits.QuestionChars),
				analysis.WithAnalyzerLogger(logger),
			)

			srv := server.New(analyzer, registry, ledger, parsers, fetcher,
				server.WithLogger(logger),
				server.WithMaxUploadBytes(cfg.Ingest.MaxUploadBytes),
			)

			mux := http.NewServeMux()
			srv.RegisterHandlers(mux)

			httpServer := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Server listening",
					"addr", cfg.Server.Addr,
					"provider", cfg.Model.Provider,
					"model", cfg.Model.Name)
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
			case <-ctx.Done():
				logger.Info("Shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("shutdown: %w", err)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Emit JSON logs")

	return cmd
}

// retryConfig translates the configured retry count into the client policy.
func retryConfig(maxRetries int) llm.RetryConfig {
	cfg := llm.DefaultRetryConfig()
	cfg.MaxAttempts = maxRetries + 1
	return cfg
}
