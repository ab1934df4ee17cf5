package main

import (
	"context"
	"fmt"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"log"
	"net/http"
	"os/signal"
	"paperstack/internal/backup"
	"paperstack/internal/config"
	"paperstack/internal/database"
	"paperstack/internal/eventbus"
	"paperstack/internal/httphandlers"
	"paperstack/internal/notify"
	"paperstack/internal/service"
	"paperstack/internal/storage"
	"paperstack/logger"
	"syscall"
	"time"
)

func main() {
	cfg := config.New()
	if err := logger.InitLogger(cfg.LogMode); err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		return
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, teardown, err := setup(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving http(s)", zap.String("addr", cfg.HTTPAddr))
		var err error
		if cfg.HasTLSConfig() {
			err = srv.ListenAndServeTLS(cfg.ServerSSLCertFile, cfg.ServerSSLKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		teardown()
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
}

func setup(ctx context.Context, cfg config.Config) (*http.Server, func(), error) {
	if cfg.AccessKey == "" {
		logger.Warn("ACCESS_KEY is not set, every authenticated request will be rejected")
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}

	uploads, uploadsKind, err := storage.New(cfg.Storage, cfg.Storage.UploadsBucket)
	if err != nil {
		return nil, nil, err
	}
	archives, archivesKind, err := storage.New(cfg.Storage, cfg.Storage.BackupsBucket)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("storage ready",
		zap.String("uploads", uploadsKind.String()),
		zap.String("backups", archivesKind.String()))
	if !cfg.HasObjectStorage() {
		logger.Warn("no object storage endpoint configured, archives stay on this host",
			zap.String("dir", cfg.Storage.Dir))
	}

	if err := archives.Ping(ctx); err != nil {
		logger.Warn("backup storage is not reachable yet", zap.Error(err))
	}

	sender := notify.NewLogSender()
	if cfg.HasSMTP() {
		sender, err = notify.NewSMTPSender(cfg.SMTP)
		if err != nil {
			return nil, nil, err
		}
	}
	notifier := notify.New(sender)
	eventBus := eventbus.New()

	settingsRepo := database.NewBackupSettingsRepository(db)
	jobRepo := database.NewBackupJobRepository(db)
	documentRepo := database.NewDocumentRepository(db)
	userRepo := database.NewUserRepository(db)
	staffRepo := database.NewStaffRepository(db)

	builder := backup.NewBuilder(documentRepo, userRepo, staffRepo, uploads, backup.BuilderOptions{
		StagingDir:   cfg.Backup.StagingDir,
		MinFreeBytes: cfg.Backup.MinFreeBytes,
	})

	settingsSvc := service.NewSettingsService(settingsRepo)
	backupSvc := service.NewBackupService(jobRepo, settingsSvc, builder, archives, notifier, eventBus, service.BackupOptions{
		Workers:      cfg.Backup.Workers,
		QueueSize:    cfg.Backup.QueueSize,
		JobTimeout:   cfg.Backup.JobTimeout,
		StaleCeiling: cfg.Backup.StaleCeiling,
	})
	cleaner := service.NewRetentionCleaner(settingsSvc, jobRepo, archives, notifier)

	scheduler, err := service.NewScheduler(settingsSvc, backupSvc, cleaner, service.SchedulerOptions{
		CleanupTime:       cfg.Backup.CleanupTime,
		ReconcileInterval: cfg.Backup.ReconcileInterval,
	})
	if err != nil {
		return nil, nil, err
	}

	if err := backupSvc.Start(ctx); err != nil {
		return nil, nil, err
	}
	if err := scheduler.Start(ctx); err != nil {
		backupSvc.Stop()
		return nil, nil, err
	}

	apiHandler := httphandlers.NewApiHandler(backupSvc, settingsSvc, scheduler, eventBus, cfg.AccessKey)
	routes := httphandlers.Routes(apiHandler)

	return &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: routes,
		}, func() {
			scheduler.Stop()
			backupSvc.Stop()
			sqlDB, _ := db.DB()
			if sqlDB != nil {
				err := sqlDB.Close()
				logger.Info("DB Closed", zap.Error(err))
			}
		}, nil
}
