package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"myme/internal/account"
	"myme/internal/bill"
	"myme/internal/config"
	"myme/internal/db"
	"myme/internal/dispute"
	"myme/internal/enterprise"
	"myme/internal/logger"
	"myme/internal/notification"
	"myme/internal/scheduler"
	"myme/internal/server"
	"myme/internal/settlement"
	"myme/internal/subscription"
	"myme/internal/transfer"
	"myme/internal/user"
	"myme/internal/wallet"
)

// @title MyMe Wallet API
// @version 1.0
// @description Mobile money wallets, transfers, disputes and enterprise payments.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {

	logger.Init()
	logger.Info("Starting MyMe application")
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	logger.Info("Connecting to database...")
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	logger.Info("Database connected")

	if err := db.RunMigrations(database, cfg.MigrationsPath); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Migrations completed")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	dir := account.NewRepository(database)
	ledger := wallet.NewRepository(database)
	wallets := wallet.NewService(ledger, dir)

	dispatcher := notification.NewDispatcher(rdb, dir, notification.SMTPMailer{
		From:     cfg.EmailFrom,
		FromName: cfg.EmailFromName,
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Pass:     cfg.SMTPPass,
	}, notification.NewRepository(database))
	logger.Info("Notification dispatcher initialized")

	reactor := settlement.NewReactor(ledger, dir, dispatcher, cfg.Currency)
	queue := settlement.NewQueue(rdb)
	engine := transfer.NewEngine(ledger, reactor, queue)
	worker := settlement.NewWorker(queue, reactor, cfg.SettlementMaxAttempts)
	sweeper := settlement.NewSweeper(ledger, queue, reactor, cfg.SettlementStaleAfter, cfg.SettlementFailAfter)

	disputes := dispute.NewService(dispute.NewRepository(database, ledger), ledger, dir, dispatcher, cfg.Currency)

	enterpriseStore := enterprise.NewRepository(database)
	gateway := enterprise.NewGateway(enterpriseStore, ledger, wallets, engine, dir, dispatcher, cfg.Currency)

	subscriptionStore := subscription.NewRepository(database)
	subscriptions := subscription.NewService(subscriptionStore, ledger, wallets, engine, dir)
	biller := subscription.NewBiller(subscriptionStore, ledger, engine)

	bills := bill.NewService(bill.NewRepository(database), ledger, wallets, engine)

	jobs := scheduler.New(cfg.SchedulerInterval)
	jobs.Add("subscription billing", func(ctx context.Context, now time.Time) error {
		res, err := biller.ProcessDue(ctx, now)
		if res.Scheduled+res.Rejected > 0 {
			logger.Info("subscription billing run", "scheduled", res.Scheduled, "rejected", res.Rejected)
		}
		return err
	})
	jobs.Add("bill autopay", func(ctx context.Context, now time.Time) error {
		res, err := bills.ProcessAutopay(ctx, now)
		if res.Scheduled+res.Rejected+res.Reopened > 0 {
			logger.Info("bill autopay run", "scheduled", res.Scheduled, "rejected", res.Rejected, "reopened", res.Reopened)
		}
		return err
	})
	jobs.Add("settlement sweep", func(ctx context.Context, now time.Time) error {
		res, err := sweeper.Sweep(ctx, now)
		if res.Requeued+res.Failed > 0 {
			logger.Info("settlement sweep run", "requeued", res.Requeued, "failed", res.Failed)
		}
		return err
	})
	jobs.Add("queue gauges", func(ctx context.Context, _ time.Time) error {
		dispatcher.QueueLength(ctx)
		_, err := queue.Len(ctx)
		return err
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Start(ctx)
	go worker.Start(ctx)
	go jobs.Start(ctx)

	srv := server.New(cfg, database, rdb, server.Handlers{
		User:         user.NewHandler(user.NewService(user.NewRepository(database), dir, cfg.JWTSecret)),
		Wallet:       wallet.NewHandler(wallets),
		Transfer:     transfer.NewHandler(engine, wallets),
		Dispute:      dispute.NewHandler(disputes, wallets, dir),
		Enterprise:   enterprise.NewHandler(gateway),
		Subscription: subscription.NewHandler(subscriptions),
		Bill:         bill.NewHandler(bills),
		Notification: notification.NewHandler(dispatcher),
	}, enterprise.NewAuthenticator(enterpriseStore), dispatcher)

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := srv.Start(cfg.Port); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v", sig)
	case err := <-serverErrChan:
		logger.Errorf("Server error: %v", err)
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during server shutdown: %v", err)
	}

	logger.Info("Server stopped")
}
