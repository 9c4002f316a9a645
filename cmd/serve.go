package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/Shivanand-hulikatti/sled-race-registration/internal/config"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/handler"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/notify"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/payment"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/service"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/telemetry"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	// ── 1. Configuration ─────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(cfg.Email.Timezone)
	if err != nil {
		return fmt.Errorf("load EMAIL_TIMEZONE: %w", err)
	}

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint, telemetry.ServiceName)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Warn("tracing_shutdown_failed", "error", err)
		}
	}()

	// ── 2. Storage ───────────────────────────────────────────────────────
	st, err := openStores(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer st.close()
	slog.Info("storage_ready", "driver", cfg.Database.Driver)

	// ── 3. Wire up layers ────────────────────────────────────────────────
	metrics := telemetry.NewMetrics()

	var mailer service.Sender = notify.LogSender{}
	if cfg.Email.ResendAPIKey != "" {
		mailer = notify.NewResendSender(cfg.Email.ResendAPIKey)
	} else {
		slog.Warn("email_disabled", "reason", "RESEND_API_KEY not set")
	}

	composer := &notify.Composer{
		From:        cfg.Email.From,
		ContactFrom: cfg.Email.ContactFrom,
		AdminTo:     cfg.Email.AdminTo,
		ContactTo:   cfg.Email.ContactTo,
		SiteURL:     cfg.Email.SiteURL,
		Location:    loc,
	}

	eventSvc := service.NewEventService(st.events, st.registrations)
	submitSvc := service.NewSubmitService(service.SubmitDeps{
		Events:        st.events,
		Registrations: st.registrations,
		Payments:      payment.NewStripeCharger(cfg.Payment.StripeSecretKey),
		Mailer:        mailer,
		Composer:      composer,
		Metrics:       metrics,
		Currency:      cfg.Payment.Currency,
		EmailTimeout:  cfg.Email.Timeout,
	})
	contactSvc := service.NewContactService(mailer, composer, metrics)

	eventHandler := handler.NewEventHandler(eventSvc, submitSvc, contactSvc)

	// ── 4. Build the router ──────────────────────────────────────────────
	r := handler.NewRouter(eventHandler, handler.RouterConfig{
		AllowedOrigin: cfg.AllowedOrigin,
		AdminToken:    cfg.AdminAPIToken,
		Metrics:       metrics,
	})

	// ── 5. Start server with graceful shutdown ───────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	slog.Info("server_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	slog.Info("server_stopped")
	return nil
}
