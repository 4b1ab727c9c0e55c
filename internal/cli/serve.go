package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ppiankov/factaudit/internal/api"
	"github.com/ppiankov/factaudit/internal/pipeline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var listenAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve audit sessions over HTTP",
	Long: `Serve exposes audit sessions over a small JSON API so a UI can start audits,
poll their progress and reset them.

Endpoints:
  GET  /healthz
  POST /v1/sessions
  GET  /v1/sessions/{id}
  POST /v1/sessions/{id}/audits   {"source": "..."} or {"title": "...", "text": "..."}
  POST /v1/sessions/{id}/reset`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (default from config, :8080)")
	serveCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the extraction cache")
	serveCmd.Flags().StringVar(&extractorURL, "extractor-url", "", "base URL of the extraction service")
	serveCmd.Flags().StringVar(&verifierURL, "verifier-url", "", "base URL of the verification service")
	serveCmd.Flags().BoolVar(&llmEnabled, "llm", false, "enable LLM summary generation")
	serveCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, ollama)")
	serveCmd.Flags().StringVar(&llmModel, "llm-model", "gpt-4o-mini", "LLM model name")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}

	logger := newLogger(verbose)
	defer func() { _ = logger.Sync() }()

	p := pipeline.NewPipeline(cfg, logger)
	server := api.NewServer(p, logger)

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: server.Routes(),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	fmt.Fprintf(os.Stderr, "factaudit serving on %s\n", srv.Addr)

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("shutting down server")
	server.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
