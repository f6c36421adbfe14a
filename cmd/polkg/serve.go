package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/systemshift/polkg/internal/llm"
	"github.com/systemshift/polkg/internal/logger"
	"github.com/systemshift/polkg/internal/observability"
	"github.com/systemshift/polkg/internal/server/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP ingest API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup(true)
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		log := logger.L()

		ctx := cmd.Context()
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close(context.Background())

		metrics := observability.NewCollector(metricsNamespace)
		b, err := newBuilder(cfg, store, metrics)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      api.New(b, store, metrics.Handler(), log).Router(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: writeTimeout(cfg.LLM.Timeout),
			IdleTimeout:  60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("starting polkg server", zap.String("addr", cfg.Server.Addr), zap.String("store", cfg.Store.Backend))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case err := <-errCh:
			return err
		case <-quit:
		}

		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		log.Info("server exited")
		return nil
	},
}

// writeTimeout leaves room for a full completion call plus the graph writes
func writeTimeout(llmTimeout time.Duration) time.Duration {
	if llmTimeout <= 0 {
		llmTimeout = llm.DefaultTimeout
	}
	return llmTimeout + 15*time.Second
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}
