package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	accessAdapter "github.com/kefkio/bloc-sacco/internal/adapter/access"
	"github.com/kefkio/bloc-sacco/internal/adapter/events"
	httpadp "github.com/kefkio/bloc-sacco/internal/adapter/http"
	mw "github.com/kefkio/bloc-sacco/internal/adapter/middleware"
	"github.com/kefkio/bloc-sacco/internal/adapter/repository/mysql"
	vault "github.com/kefkio/bloc-sacco/internal/adapter/settlement"
	"github.com/kefkio/bloc-sacco/internal/config"
	"github.com/kefkio/bloc-sacco/internal/domain/event"
	"github.com/kefkio/bloc-sacco/internal/domain/loan"
	"github.com/kefkio/bloc-sacco/internal/infrastructure/cache"
	"github.com/kefkio/bloc-sacco/internal/infrastructure/db"
	adminUC "github.com/kefkio/bloc-sacco/internal/usecase/admin"
	custodyUC "github.com/kefkio/bloc-sacco/internal/usecase/custody"
	guarantorUC "github.com/kefkio/bloc-sacco/internal/usecase/guarantor"
	loanUC "github.com/kefkio/bloc-sacco/internal/usecase/loan"
	memberUC "github.com/kefkio/bloc-sacco/internal/usecase/member"
	walletUC "github.com/kefkio/bloc-sacco/internal/usecase/wallet"
	"github.com/kefkio/bloc-sacco/pkg/id"
	"github.com/kefkio/bloc-sacco/pkg/lock"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	gdb, err := db.OpenGorm(cfg.DBDriver, cfg.DSN(), cfg.DBLogLevel)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := mysql.Migrate(gdb); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if err := vault.Migrate(gdb); err != nil {
		log.Fatalf("migrate vault: %v", err)
	}

	rdb, err := cache.OpenRedis(context.Background(), cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TLS:      cfg.RedisTLS,
		PoolSize: cfg.RedisPoolSize,
	})
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	var guard lock.Guard = lock.NewKeyed()
	if cfg.GuardBackend == "redis" {
		guard = cache.NewRedisGuard(rdb, cfg.GuardTTL)
	}

	uow := mysql.NewGormUoW(gdb, vault.Factory(loan.ValidAsset))
	checker := accessAdapter.NewChecker(mysql.NewGrantRepository(gdb), cfg.AdminAddresses)

	admins := adminUC.NewUsecase(uow, mysql.NewParamsRepository(gdb), checker, cfg.Params, logger)
	if err := admins.EnsureParams(context.Background()); err != nil {
		log.Fatalf("seed params: %v", err)
	}

	handlers := httpadp.Handlers{
		Health:  httpadp.NewHandler(pinger(gdb)),
		Members: httpadp.NewMemberHandler(memberUC.NewUsecase(uow, mysql.NewMemberRepository(gdb), checker, logger)),
		Loans: httpadp.NewLoanHandler(loanUC.NewUsecase(loanUC.Deps{
			UoW:      uow,
			Loans:    mysql.NewLoanRepository(gdb),
			Pledges:  mysql.NewPledgeRepository(gdb),
			Access:   checker,
			Guard:    guard,
			Logger:   logger,
			Defaults: cfg.Params,
		})),
		Guarantors: httpadp.NewGuarantorHandler(guarantorUC.NewUsecase(guarantorUC.Deps{
			UoW:     uow,
			Pledges: mysql.NewPledgeRepository(gdb),
			Access:  checker,
			Guard:   guard,
			Logger:  logger,
		})),
		Custody: httpadp.NewCustodyHandler(custodyUC.NewUsecase(custodyUC.Deps{
			UoW:      uow,
			Balances: mysql.NewBalanceRepository(gdb),
			Access:   checker,
			Guard:    guard,
			Logger:   logger,
		})),
		Admin:   httpadp.NewAdminHandler(admins),
		Wallets: httpadp.NewWalletHandler(walletUC.NewUsecase(uow, checker, logger)),
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: id.NewRequestID}),
		middleware.Logger(),
		middleware.Recover(),
		mw.Metrics(),
	)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	handlers.Mount(e,
		httpadp.Auth([]byte(cfg.JWTSecret)),
		mw.IdempotencyMiddleware(rdb, time.Duration(cfg.IdempTTLSecs)*time.Second, httpadp.Caller),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publisher, closePublisher := newPublisher(cfg, logger)
	defer closePublisher()
	worker := events.NewOutboxWorker(logger, mysql.NewEventRepository(gdb), publisher, cfg.OutboxInterval, cfg.OutboxBatch)
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("outbox worker stopped", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.AppPort
		logger.Info("listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = e.Shutdown(shutdownCtx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})).
		With("service", "bloc-sacco")
}

// newPublisher returns the Kafka publisher when brokers are configured and the
// structured log otherwise.
func newPublisher(cfg *config.Config, logger *slog.Logger) (event.Publisher, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NewLoggingPublisher(logger), func() {}
	}
	p, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		log.Fatalf("kafka: %v", err)
	}
	return p, func() { _ = p.Close() }
}

func pinger(gdb *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := gdb.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
