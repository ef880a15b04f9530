package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	klog "github.com/go-kratos/kratos/v2/log"
	"github.com/spf13/cobra"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/application/worker"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infra/tracing"
	httpapi "github.com/rcarvalho-pb/payment_mediator-go/internal/infrastructure/http"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infrastructure/yookassa"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the retry scheduler and the notification dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.serve(ctx); err != nil {
				klog.NewHelper(logger.Kratos()).Errorf("server stopped: %v", err)
				return err
			}
			return nil
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing.ServiceName, cfg.Tracing.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	scheduler := &worker.RetryScheduler{
		Retrier:  a.service,
		Interval: cfg.Payments.ScanInterval,
		Timeout:  cfg.Payments.ScanTimeout,
		Logger:   a.logger,
	}

	handler := &httpapi.PaymentHandler{
		Service: a.service,
		Decode:  yookassa.DecodeNotification,
		Metrics: a.counters,
		Logger:  a.logger,
		Ready:   a.stores.ready,
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.dispatcher.Run(dispatchCtx)
	}()

	if err := scheduler.Start(); err != nil {
		stopDispatch()
		wg.Wait()
		return fmt.Errorf("start scheduler: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", map[string]any{"addr": cfg.HTTP.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown requested", nil)
	case err = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	errs := []error{err}

	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("scheduler stop: %w", err))
	}

	stopDispatch()
	wg.Wait()
	// messages recorded while draining requests
	a.dispatcher.DispatchOnce(shutdownCtx)

	if err := shutdownTracing(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
	}

	a.logger.Info("shutdown complete", nil)
	return errors.Join(errs...)
}
