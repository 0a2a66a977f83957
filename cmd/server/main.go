package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mamadbah2/dairy/internal/config"
	"github.com/mamadbah2/dairy/internal/lock"
	"github.com/mamadbah2/dairy/internal/metrics"
	"github.com/mamadbah2/dairy/internal/repository"
	"github.com/mamadbah2/dairy/internal/repository/mongodb"
	"github.com/mamadbah2/dairy/internal/repository/sheets"
	"github.com/mamadbah2/dairy/internal/repository/sqlstore"
	"github.com/mamadbah2/dairy/internal/scheduler"
	"github.com/mamadbah2/dairy/internal/server/handlers"
	"github.com/mamadbah2/dairy/internal/server/router"
	"github.com/mamadbah2/dairy/internal/service/advances"
	"github.com/mamadbah2/dairy/internal/service/counterparties"
	"github.com/mamadbah2/dairy/internal/service/lineitems"
	"github.com/mamadbah2/dairy/internal/service/notify"
	"github.com/mamadbah2/dairy/internal/service/reconcile"
	"github.com/mamadbah2/dairy/internal/service/settlement"
	whatsappclient "github.com/mamadbah2/dairy/pkg/clients/whatsapp"
	"github.com/mamadbah2/dairy/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, baseLogger.Named("repo"))
	if err != nil {
		baseLogger.Fatal("failed to init store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close store", zap.Error(err))
		}
	}()

	locker, closeLocker := newLocker(cfg.Lock, baseLogger.Named("lock"))
	defer closeLocker()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	loc := cfg.Settlement.Location
	sinks := notificationSinks(ctx, cfg, loc, baseLogger)
	dispatcher := notify.NewDispatcher(cfg.Notify.Timeout, m, baseLogger.Named("notify"), sinks...)

	deps := settlement.Deps{
		Store:     store,
		Locker:    locker,
		Publisher: dispatcher,
		Metrics:   m,
		Location:  loc,
		Logger:    baseLogger.Named("svc.settlement"),
	}
	farmerSettlements := settlement.NewFarmerService(cfg.Settlement.FarmerMinPayment, deps)
	memberSettlements := settlement.NewMemberService(cfg.Settlement.MemberMinPayment, deps)
	counterpartySvc := counterparties.NewService(store, baseLogger.Named("svc.counterparties"))
	lineItemSvc := lineitems.NewService(store, locker, loc, m, baseLogger.Named("svc.lineitems"))
	advanceSvc := advances.NewService(store, locker, loc, baseLogger.Named("svc.advances"))

	handlerLogger := baseLogger.Named("handlers")
	engine, err := router.New(router.Handlers{
		Counterparties: handlers.NewCounterpartyHandler(counterpartySvc, handlerLogger),
		LineItems:      handlers.NewLineItemHandler(lineItemSvc, loc, handlerLogger),
		Farmer:         handlers.NewSettlementHandler(farmerSettlements, loc, handlerLogger),
		Member:         handlers.NewSettlementHandler(memberSettlements, loc, handlerLogger),
		Advances:       handlers.NewAdvanceHandler(advanceSvc, loc, handlerLogger),
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}, baseLogger.Named("router"))
	if err != nil {
		baseLogger.Fatal("failed to init router", zap.Error(err))
	}

	// Finishes settlements left pending by a non-transactional store.
	job := reconcile.NewJob(cfg.Reconcile.Grace, baseLogger.Named("reconcile"), farmerSettlements, memberSettlements)
	sched := scheduler.NewScheduler(cfg.Reconcile, loc, job, baseLogger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("store", cfg.Store.Driver),
			zap.Bool("transactional", store.Transactional()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	sched.Stop(shutdownCtx)
	dispatcher.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Store, error) {
	switch cfg.Store.Driver {
	case config.StorePostgres, config.StoreSQLite:
		return sqlstore.Open(sqlstore.Config{Driver: cfg.Store.Driver, DSN: cfg.Store.DSN}, log.Named("sql"))
	default:
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		return mongodb.NewMongoDBRepository(connectCtx, cfg.MongoDB.URI, cfg.MongoDB.DBName, cfg.MongoDB.Transactions, log.Named("mongodb"))
	}
}

func newLocker(cfg config.LockConfig, log *zap.Logger) (lock.Locker, func()) {
	if cfg.RedisAddress == "" {
		log.Info("using in-process counterparty lock")
		return lock.NewLocal(), func() {}
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
	log.Info("using redis counterparty lock", zap.String("address", cfg.RedisAddress))
	return lock.NewRedis(client, cfg.TTL, cfg.Wait, log), func() {
		if err := client.Close(); err != nil {
			log.Error("failed to close redis client", zap.Error(err))
		}
	}
}

func notificationSinks(ctx context.Context, cfg *config.Config, loc *time.Location, log *zap.Logger) []notify.Notifier {
	var sinks []notify.Notifier

	if cfg.WhatsApp.Enabled() {
		client := whatsappclient.NewClient(cfg.WhatsApp)
		sinks = append(sinks, notify.NewWhatsAppNotifier(client, loc, log.Named("notify.whatsapp")))
		log.Info("whatsapp settlement messages enabled")
	} else {
		log.Warn("whatsapp credentials missing, settlement messages disabled")
	}

	if cfg.Sheets.Enabled() {
		repo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, log.Named("repo.sheets"))
		if err != nil {
			log.Error("failed to init sheets repository, journal disabled", zap.Error(err))
		} else {
			sinks = append(sinks, notify.NewSheetJournal(repo, cfg.Sheets.JournalRange, loc))
			log.Info("settlement journal enabled", zap.String("range", cfg.Sheets.JournalRange))
		}
	}

	return sinks
}
