// Package main is the back-office API server. It wires the record stores,
// the generic CRUD service, the websocket hub and the audit retention worker
// into a single HTTP process.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/backofficehq/backoffice/internal/api"
	"github.com/backofficehq/backoffice/internal/cache"
	"github.com/backofficehq/backoffice/internal/config"
	"github.com/backofficehq/backoffice/internal/db"
	"github.com/backofficehq/backoffice/internal/db/migrations"
	"github.com/backofficehq/backoffice/internal/dbpool"
	"github.com/backofficehq/backoffice/internal/entities"
	"github.com/backofficehq/backoffice/internal/entity"
	"github.com/backofficehq/backoffice/internal/service"
	"github.com/backofficehq/backoffice/internal/store"
	"github.com/backofficehq/backoffice/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if err := run(log, cfg); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

func run(log *logrus.Logger, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value())
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
		return err
	}

	registry := entity.NewRegistry()
	if err := entities.Register(registry); err != nil {
		return err
	}

	hub := ws.NewHub(log)

	base := store.Base{Pool: pool, Log: log, Registry: registry, Events: hub}
	records := store.NewRecordStore(base)
	mutations := store.NewMutationStore(base)
	audits := store.NewAuditStore(base)
	principals := store.NewPrincipalStore(base)

	var lookup cache.PrincipalLookup
	if cfg.RedisAddr != "" {
		redisLookup, err := cache.NewRedisPrincipalLookup(ctx, principals, cfg.RedisAddr, log)
		if err != nil {
			return err
		}
		defer redisLookup.Close() //nolint:errcheck // best effort on shutdown.
		lookup = redisLookup
	} else {
		lookup = cache.NewMemoryPrincipalLookup(ctx, principals)
	}

	generic := service.NewGeneric(registry, records, mutations, log)
	retention := &service.RetentionWorker{
		Purger:        audits,
		Log:           log,
		RetentionDays: cfg.AuditRetentionDays,
	}

	handler := api.NewRouter(ctx, &api.RouterDeps{
		Log:         log,
		Pool:        pool,
		Hub:         hub,
		Registry:    registry,
		Generic:     generic,
		Audit:       audits,
		Principals:  lookup,
		CORSOrigins: cfg.CORSOrigins,
		Version:     config.Version,
	})

	addr := net.JoinHostPort(cfg.ListenHost, cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	g.Go(func() error {
		return retention.Run(ctx)
	})

	g.Go(func() error {
		log.WithFields(logrus.Fields{
			"addr":    addr,
			"version": config.Version,
		}).Info("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("http shutdown failed")
		}
		hub.Shutdown()
		return nil
	})

	return g.Wait()
}
