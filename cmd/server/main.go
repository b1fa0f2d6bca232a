package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/storepulse/reconciler/internal/api"
	"github.com/storepulse/reconciler/internal/config"
	"github.com/storepulse/reconciler/internal/credential"
	"github.com/storepulse/reconciler/internal/lock"
	"github.com/storepulse/reconciler/internal/notify"
	"github.com/storepulse/reconciler/internal/reconciliation"
	"github.com/storepulse/reconciler/internal/repository"
	"github.com/storepulse/reconciler/internal/repository/filestate"
	"github.com/storepulse/reconciler/internal/scheduler"
	"github.com/storepulse/reconciler/internal/snapshot"
	"github.com/storepulse/reconciler/internal/steam"
)

func main() {
	cfg := config.FromEnv()
	log := config.Logger("main")
	if !config.SetLogLevel(cfg.LogLevel) {
		log.WithField("level", cfg.LogLevel).Warn("Unknown LOG_LEVEL, keeping info")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("Initializing database at %s", cfg.DBPath)
	db, err := repository.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init DB: %v", err)
	}
	defer db.Close()

	// Create repositories.
	ledgerRepo := repository.NewLedgerRepo(db)
	reviewRepo := repository.NewReviewRepo(db)
	noteRepo := repository.NewNotificationRepo(db)
	passRepo := repository.NewPassRunRepo(db)

	var (
		salesStore  reconciliation.SalesStore  = ledgerRepo
		reviewStore reconciliation.ReviewStore = reviewRepo
	)
	switch cfg.StoreBackend {
	case "sqlite":
		if cfg.LegacyStateDir != "" {
			if err := importLegacy(ctx, ledgerRepo, reviewRepo, cfg.LegacyStateDir); err != nil {
				log.Warnf("Failed to import legacy state: %v", err)
			}
		}
	case "file":
		files, err := filestate.New(cfg.StateDir)
		if err != nil {
			log.Fatalf("Failed to open state dir: %v", err)
		}
		salesStore, reviewStore = files, files
		log.Infof("Using file state in %s", files.Dir())
	default:
		log.Fatalf("Unknown STORE_BACKEND %q (want sqlite or file)", cfg.StoreBackend)
	}

	apiKey, err := credential.FromEnv()
	if err != nil {
		log.Fatalf("Failed to load API key: %v", err)
	}
	steamCfg := steam.ConfigFromEnv()
	steamCfg.APIKey = apiKey
	partner, err := steam.NewPartnerClient(steamCfg)
	if err != nil {
		log.Fatalf("Failed to create partner client: %v", err)
	}
	store := steam.NewStoreClient(steamCfg)

	notifier, closeNotifier, err := buildNotifier(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create notifier: %v", err)
	}
	defer closeNotifier()

	locker, closeLocker, err := buildLocker(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create pass lock: %v", err)
	}
	defer closeLocker()

	sink, closeSink, err := buildSnapshotSink(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create snapshot sink: %v", err)
	}
	defer closeSink()

	// Create services.
	reconSvc, err := reconciliation.NewService(reconciliation.Dependencies{
		Sales:       partner,
		Reviews:     store,
		SalesStore:  salesStore,
		ReviewStore: reviewStore,
		Notifier:    notifier,
		History:     noteRepo,
		Snapshots:   sink,
	})
	if err != nil {
		log.Fatalf("Failed to create reconciliation service: %v", err)
	}

	opts := []scheduler.Option{scheduler.WithRecorder(passRepo)}
	if !cfg.RunOnStart {
		opts = append(opts, scheduler.WithDelayedStart())
	}
	sched := scheduler.New(locker, cfg.SchedulerTick, opts...)
	mustRegister(sched, scheduler.Job{
		Name:     "sales",
		Interval: cfg.SalesInterval,
		Run: func(ctx context.Context) (int, error) {
			res, err := reconSvc.ReconcileSales(ctx)
			if err != nil {
				return 0, err
			}
			return len(res.Notifications), nil
		},
	})
	mustRegister(sched, scheduler.Job{
		Name:     "reviews",
		Interval: cfg.ReviewsInterval,
		Run: func(ctx context.Context) (int, error) {
			res, err := reconSvc.RunReviewPass(ctx)
			if err != nil {
				return 0, err
			}
			return len(res.Notifications), nil
		},
	})

	// Create router.
	router := api.NewRouter(salesStore, reviewStore, noteRepo, passRepo, sched)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.WithFields(logrus.Fields{
		"port":             cfg.Port,
		"store":            cfg.StoreBackend,
		"notifier":         cfg.Notifier,
		"sales_interval":   cfg.SalesInterval.String(),
		"reviews_interval": cfg.ReviewsInterval.String(),
	}).Info("Store sales & review reconciler starting")
	log.Infof("API base: http://localhost:%s/api/v1", cfg.Port)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Server failed: %v", err)
			stop()
		}
	}()

	sched.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Server shutdown: %v", err)
	}
	log.Info("Stopped")
}

func mustRegister(s *scheduler.Scheduler, job scheduler.Job) {
	if err := s.Register(job); err != nil {
		config.Logger("main").Fatalf("Failed to register %s: %v", job.Name, err)
	}
}

func importLegacy(ctx context.Context, ledgerRepo *repository.LedgerRepo, reviewRepo *repository.ReviewRepo, dir string) error {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("legacy state dir %s not found", dir)
	}
	src, err := filestate.New(dir)
	if err != nil {
		return err
	}
	res, err := repository.ImportLegacy(ctx, ledgerRepo, reviewRepo, src)
	if err != nil {
		return err
	}
	log := config.Logger("main")
	if res.Skipped {
		log.Infof("Database already has state (cursor %s), skipping legacy import", res.Cursor)
		return nil
	}
	log.Infof("Imported %d apps, %d sales records and %d review entries from %s (cursor %s)",
		res.Apps, res.Records, res.Reviews, dir, res.Cursor)
	return nil
}

func buildNotifier(ctx context.Context, cfg config.Config) (notify.Notifier, func(), error) {
	var (
		sinks   notify.Multi
		closers []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	for _, name := range strings.Split(cfg.Notifier, ",") {
		switch strings.TrimSpace(name) {
		case "ntfy":
			n, err := notify.NewNtfy(cfg.NtfyURL, 10*time.Second)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			sinks = append(sinks, n)
		case "pubsub":
			p, err := notify.NewPubSub(ctx, cfg.PubSubProject, cfg.PubSubTopic, cfg.PubSubCreds)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			sinks = append(sinks, p)
			closers = append(closers, func() { _ = p.Close() })
		case "log":
			sinks = append(sinks, notify.Log{Entry: config.Logger("notify")})
		case "":
		default:
			closeAll()
			return nil, nil, fmt.Errorf("unknown notifier %q", name)
		}
	}
	if len(sinks) == 0 {
		return nil, nil, errors.New("no notifier configured")
	}
	if len(sinks) == 1 {
		return sinks[0], closeAll, nil
	}
	return sinks, closeAll, nil
}

func buildLocker(ctx context.Context, cfg config.Config) (lock.Locker, func(), error) {
	if cfg.RedisAddress == "" {
		return lock.NewLocal(), func() {}, nil
	}
	r, err := lock.NewRedis(ctx, cfg.RedisAddress, cfg.RedisPassword, cfg.LockTTL)
	if err != nil {
		return nil, nil, err
	}
	config.Logger("main").Infof("Using redis pass lock at %s", cfg.RedisAddress)
	return r, func() { _ = r.Close() }, nil
}

func buildSnapshotSink(ctx context.Context, cfg config.Config) (snapshot.Sink, func(), error) {
	var sinks snapshot.Multi
	closeFn := func() {}
	if cfg.SnapshotDir != "" {
		sinks = append(sinks, snapshot.Dir{Path: cfg.SnapshotDir})
	}
	if cfg.SnapshotBucket != "" {
		g, err := snapshot.NewGCS(ctx, cfg.SnapshotBucket, cfg.SnapshotObject, cfg.GCSCreds)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, g)
		closeFn = func() { _ = g.Close() }
	}
	switch len(sinks) {
	case 0:
		return nil, closeFn, nil
	case 1:
		return sinks[0], closeFn, nil
	}
	return sinks, closeFn, nil
}
