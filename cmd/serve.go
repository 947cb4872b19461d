package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/feelens/feelens-core/internal/auth"
	"github.com/feelens/feelens-core/internal/evidence"
	"github.com/feelens/feelens-core/internal/httpapi"
	"github.com/feelens/feelens-core/internal/lifecycle"
	"github.com/feelens/feelens-core/internal/submit"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the platform HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		authn, err := auth.NewStaticAuthenticator(cfg.Auth.StaticTokens)
		if err != nil {
			return err
		}

		registry := initRegistry(st)
		scoreCfg := initScorerConfig()
		maxReason := cfg.Moderation.MaxReasonLength

		submitSvc := submit.NewService(st, registry, initLimiter(), initPolicy(), scoreCfg)
		entries := lifecycle.NewEntryEngine(st, maxReason)
		reports := lifecycle.NewReportEngine(st, maxReason)
		disputes := lifecycle.NewDisputeEngine(st, maxReason)
		evidenceSvc := evidence.NewService(st, scoreCfg, cfg.Evidence.MaxSizeBytes)

		apiCfg := httpapi.Config{
			RequestsPerSec: cfg.Server.RequestsPerSec,
			Burst:          cfg.Server.RequestBurst,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}
		server := httpapi.NewServer(apiCfg, authn, submitSvc, entries, reports, disputes, evidenceSvc, registry, st)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: server.Router(apiCfg),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
