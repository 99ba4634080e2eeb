package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"newsletter_delivery/internal/cache"
	"newsletter_delivery/internal/config"
	"newsletter_delivery/internal/handlers"
	"newsletter_delivery/internal/kafka"
	"newsletter_delivery/internal/mail"
	"newsletter_delivery/internal/metrics"
	"newsletter_delivery/internal/repository"
	"newsletter_delivery/internal/service"

	"github.com/go-chi/chi/v5"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---------- config ----------
	cfg := config.Load()

	// ---------- db ----------
	pool, err := repository.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal("db:", err)
	}
	defer pool.Close()

	// ---------- repositories ----------
	issueRepo := repository.NewIssueRepository(pool)
	subscriberRepo := repository.NewSubscriberRepository(pool)
	queueRepo := repository.NewQueueRepository(pool)
	idemRepo := repository.NewIdempotencyRepository(pool)

	// ---------- mail client ----------
	mailClient := mail.NewClient(cfg.MailBaseURL, cfg.MailAuthToken, cfg.MailSender, cfg.MailTimeout)

	// ---------- redis cache (optional) ----------
	var issueCache cache.Cache
	if cfg.RedisAddr != "" {
		rc := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rc.Close()
		issueCache = rc

		cache.StartRedisSizeCollector(ctx, rc.RawClient(), 30*time.Second, nil)
	}

	// ---------- failure reports (optional) ----------
	var reporter service.FailureReporter
	if cfg.KafkaFailureTopic != "" {
		producer, err := kafka.NewSyncProducer(cfg.KafkaBrokers, cfg.KafkaFailureTopic)
		if err != nil {
			log.Fatal("kafka producer:", err)
		}
		defer producer.Close()
		reporter = producer
	}

	// ---------- services ----------
	issuanceService := service.NewIssuanceService(pool, issueRepo, subscriberRepo, queueRepo, idemRepo, nil)
	subscriptionService := service.NewSubscriptionService(pool, subscriberRepo, mailClient, cfg.BaseURL, nil)
	contentProvider := service.NewIssueContentProvider(issueRepo, issueCache, cfg.IssueCacheTTL)

	// ---------- metrics ----------
	metrics.Register()
	metrics.StartDBCollectors(ctx, queueRepo, subscriberRepo, 10*time.Second, nil)

	// ---------- delivery workers ----------
	workerDone := make([]<-chan struct{}, 0, cfg.WorkerCount)
	for i := 0; i < cfg.WorkerCount; i++ {
		w := service.NewDeliveryWorker(queueRepo, mailClient, contentProvider, reporter, cfg.WorkerIdleInterval, nil)
		workerDone = append(workerDone, w.Start(ctx))
	}

	// ---------- handlers ----------
	nh := handlers.NewNewsletterHandler(issuanceService)
	sh := handlers.NewSubscriptionHandler(subscriptionService)
	auth := handlers.BasicAuth(cfg.PublisherUsername, cfg.PublisherPassword)

	// ---------- router ----------
	r := chi.NewRouter()
	r.Use(metrics.HTTPMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	handlers.RegisterRoutes(r, nh, sh, auth)

	// ---------- start server ----------
	addr := ":" + cfg.HTTPPort
	log.Println("server starting on", addr)

	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}

	// A worker mid-delivery holds a claimed task; exiting before it resolves
	// would hand the task back and risk a duplicate send.
	for _, done := range workerDone {
		<-done
	}
	log.Println("delivery workers drained")
}
