package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/application/contracts"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/application/lifecycle"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/application/notify"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/config"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/domain/event"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/domain/payment"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infra/logging"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infra/metrics"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infrastructure/eventbus"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infrastructure/lock"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infrastructure/outbox"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infrastructure/paypal"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infrastructure/persistence/gormstore"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infrastructure/persistence/inmemory"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infrastructure/persistence/sqlite"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infrastructure/telegram"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infrastructure/yookassa"
)

// app holds everything the commands share.
type app struct {
	cfg        *config.Config
	logger     *logging.KratosLogger
	stores     *stores
	counters   *metrics.Counters
	service    *lifecycle.Service
	dispatcher *outbox.Dispatcher
	closers    []func() error
}

func loadConfig() (*config.Config, *logging.KratosLogger, error) {
	cfg, err := config.Load(confPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, logging.NewKratosLogger(os.Stdout, cfg.Tracing.ServiceName, cfg.Log.Level), nil
}

func newApp(cfg *config.Config, logger *logging.KratosLogger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, counters: &metrics.Counters{}}

	st, err := openStores(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.stores = st
	a.closers = append(a.closers, st.close)

	processor, err := newProcessor(cfg.Processor)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("processor: %w", err)
	}

	locker, closeLocker := newLocker(cfg.Redis, logger)
	a.closers = append(a.closers, closeLocker)

	bus := eventbus.NewInMemoryBus()
	bus.Subscribe(a.counters.Handle,
		event.PaymentCreated,
		event.PaymentSucceeded,
		event.PaymentCanceled,
		event.PaymentRetried,
		event.RetriesExhausted,
		event.PaymentRefunded,
	)

	notifyHandler := &notify.Handler{
		Notifier: &outbox.Recorder{Repo: st.outbox},
	}
	bus.Subscribe(notifyHandler.Handle, notify.Types()...)

	a.service = &lifecycle.Service{
		Repo:      st.payments,
		Processor: processor,
		Events:    bus,
		Locker:    locker,
		Logger:    logger,
		Policy: lifecycle.Policy{
			Currency:         cfg.Payments.Currency,
			RetryDelay:       cfg.Payments.RetryDelay,
			ProcessorTimeout: cfg.Processor.Timeout,
		},
	}

	a.dispatcher = &outbox.Dispatcher{
		Repo:         st.outbox,
		Sender:       newSender(cfg.Telegram, logger),
		Logger:       logger,
		Metrics:      a.counters,
		PollInterval: cfg.Notify.PollInterval,
		BatchSize:    cfg.Notify.BatchSize,
		MaxAttempts:  cfg.Notify.Attempts,
		BaseDelay:    cfg.Notify.BaseDelay,
		SendTimeout:  cfg.Notify.SendTimeout,
		Lease:        cfg.Notify.Lease,
	}

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type stores struct {
	payments payment.Repository
	outbox   outbox.Repository
	ready    func(context.Context) error
	close    func() error
}

func openStores(cfg config.Store) (*stores, error) {
	switch cfg.Driver {
	case "memory":
		return &stores{
			payments: inmemory.NewPaymentRepository(),
			outbox:   inmemory.NewOutboxRepository(),
			ready:    func(context.Context) error { return nil },
			close:    func() error { return nil },
		}, nil

	case sqlite.DriverModernc, sqlite.DriverCgo:
		db, err := sqlite.Open(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := sqlite.RunMigrations(db); err != nil {
			db.Close()
			return nil, err
		}
		return &stores{
			payments: sqlite.NewPaymentRepository(db),
			outbox:   outbox.NewSQLiteRepository(db),
			ready:    db.PingContext,
			close:    db.Close,
		}, nil

	case gormstore.DriverMySQL, gormstore.DriverPostgres:
		db, err := gormstore.Open(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		sqlDB, err := gormstore.SQLDB(db)
		if err != nil {
			return nil, err
		}
		return &stores{
			payments: gormstore.NewPaymentRepository(db),
			outbox:   gormstore.NewOutboxRepository(db),
			ready:    sqlDB.PingContext,
			close:    sqlDB.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func newProcessor(cfg config.Processor) (payment.Processor, error) {
	switch cfg.Kind {
	case "yookassa":
		return &yookassa.Client{
			ShopID:    cfg.YooKassa.ShopID,
			SecretKey: cfg.YooKassa.SecretKey,
			BaseURL:   cfg.YooKassa.BaseURL,
			ReturnURL: cfg.ReturnURL,
			HTTP:      &http.Client{Timeout: cfg.Timeout},
		}, nil

	case "paypal":
		p, err := paypal.New(cfg.PayPal.ClientID, cfg.PayPal.ClientSecret, cfg.PayPal.Sandbox)
		if err != nil {
			return nil, err
		}
		p.ReturnURL = cfg.ReturnURL
		p.CancelURL = cfg.PayPal.CancelURL
		return p, nil

	default:
		return nil, fmt.Errorf("unknown processor %q", cfg.Kind)
	}
}

func newSender(cfg config.Telegram, logger logging.Logger) contracts.Notifier {
	if cfg.Token == "" {
		return &notify.LogNotifier{Logger: logger}
	}
	return &telegram.Notifier{
		Token:   cfg.Token,
		ChatID:  cfg.ChatID,
		BaseURL: cfg.BaseURL,
	}
}

func newLocker(cfg config.Redis, logger logging.Logger) (contracts.Locker, func() error) {
	if cfg.Addr == "" {
		return lock.NewLocal(), func() error { return nil }
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return lock.NewRedis(client, cfg.LockExpiry, logger), client.Close
}
