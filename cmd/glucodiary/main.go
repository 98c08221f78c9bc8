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

	"github.com/jmhodges/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"glucodiary/internal/bot"
	"glucodiary/internal/config"
	"glucodiary/internal/http-server/handlers"
	"glucodiary/internal/http-server/middleware/tgauth"
	"glucodiary/internal/metrics"
	"glucodiary/internal/queue"
	"glucodiary/internal/repository"
	"glucodiary/internal/service"
	"glucodiary/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.MustNewMetrics(reg)
	clk := clock.New()
	loc := cfg.Location()

	userRepo := repository.NewUserRepository(db)
	reminderRepo := repository.NewReminderRepository(db)

	reminderSvc := service.NewReminderService(reminderRepo, userRepo, clk, loc, m)

	telegramBot, err := bot.New(cfg.TelegramToken, userRepo, reminderSvc, cfg.WebAppURL, clk, loc)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	dispatcher := service.NewDispatcher(reminderRepo, userRepo, telegramBot, clk, loc, m)

	g, gctx := errgroup.WithContext(ctx)

	var delayer queue.Delayer
	if cfg.AMQPURL != "" {
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			log.Fatalf("amqp: %v", err)
		}
		defer conn.Close()

		pubCh, err := conn.Channel()
		if err != nil {
			log.Fatalf("amqp channel: %v", err)
		}
		if err := queue.Setup(pubCh); err != nil {
			log.Fatalf("amqp setup: %v", err)
		}
		consCh, err := conn.Channel()
		if err != nil {
			log.Fatalf("amqp channel: %v", err)
		}
		delayer = queue.NewAMQPDelayer(pubCh)
		g.Go(func() error {
			err := queue.Consume(gctx, consCh, dispatcher.FireAfterEvent)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		log.Println("[info] after-meal reminders go through AMQP")
	} else {
		memDelayer := queue.NewMemoryDelayer(dispatcher.FireAfterEvent, cfg.JobTimeout)
		defer memDelayer.Close()
		delayer = memDelayer
		log.Println("[info] AMQP_URL is empty, after-meal reminders are kept in memory")
	}

	eventSvc := service.NewEventService(reminderRepo, delayer, clk, m)

	scheduler := service.NewSchedulerService(loc, cfg.JobTimeout)
	if _, err := scheduler.ScheduleInterval(cfg.DispatchInterval, "dispatch", func(ctx context.Context) error {
		n, err := dispatcher.DispatchDue(ctx)
		if n > 0 {
			log.Printf("[info] dispatched %d reminders", n)
		}
		return err
	}); err != nil {
		log.Fatalf("schedule dispatch: %v", err)
	}
	if _, err := scheduler.ScheduleDaily("03:00", "prune-fires", dispatcher.PruneFires); err != nil {
		log.Fatalf("schedule prune: %v", err)
	}
	if _, err := scheduler.ScheduleDaily("07:00", "daily-digest", telegramBot.SendDailyDigest); err != nil {
		log.Fatalf("schedule digest: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	freshness := telegram.Freshness{MaxAge: cfg.InitDataMaxAge, FutureSkew: telegram.DefaultFreshness.FutureSkew}
	auth, err := tgauth.New(logger, cfg.TelegramToken, freshness, clk, cfg.AuthCacheSize, m)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handlers.NewRouter(logger, auth.Handler, reminderSvc, eventSvc, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		logger.Info("http server is starting", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return telegramBot.Start(gctx)
	})

	log.Println("Glucodiary started.")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("stopped with error: %v", err)
	}
	log.Println("Shutdown complete.")
}
