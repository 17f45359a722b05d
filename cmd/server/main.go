package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/trackers-salat/tracker-service/internal/config"
	"github.com/trackers-salat/tracker-service/internal/devotion"
	"github.com/trackers-salat/tracker-service/internal/httpapi"
	"github.com/trackers-salat/tracker-service/internal/metrics"
	sharedauth "github.com/trackers-salat/tracker-service/internal/shared/auth"
	"github.com/trackers-salat/tracker-service/internal/shared/logging"
	sharedserver "github.com/trackers-salat/tracker-service/internal/shared/server"
	"github.com/trackers-salat/tracker-service/internal/storage"
)

const serviceName = "tracker-service"

func main() {
	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config error: %w", err))
	}

	logger := logging.NewLogger(serviceName)

	repo, cleanup, err := newRepository(ctx, cfg)
	if err != nil {
		panic(fmt.Errorf("repository init error: %w", err))
	}
	defer cleanup()

	badges, err := loadBadges(cfg.BadgesFile)
	if err != nil {
		panic(fmt.Errorf("badge table error: %w", err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	instruments := metrics.New(registry)

	trackerService, err := devotion.NewService(repo, devotion.NewSystemClock(), devotion.NewUUIDGenerator(), devotion.Options{
		Badges:   badges,
		Location: cfg.Location,
		Recorder: instruments,
	})
	if err != nil {
		panic(fmt.Errorf("tracker service init error: %w", err))
	}

	var photos httpapi.PhotoStore
	if cfg.Storage.Bucket != "" {
		storageService, err := storage.NewService(ctx, cfg.Storage.Bucket)
		if err != nil {
			panic(fmt.Errorf("storage init error: %w", err))
		}
		defer storageService.Close()
		photos = storageService
	} else {
		logger.Warn("PHOTO_BUCKET not set, profile photo uploads disabled")
	}

	verifier, err := sharedauth.NewVerifier(sharedauth.Config{
		Mode:     cfg.Auth.Mode,
		JWKSURL:  cfg.Auth.JWKSURL,
		Audience: cfg.Auth.Audience,
		Issuer:   cfg.Auth.Issuer,
	})
	if err != nil {
		panic(fmt.Errorf("auth verifier error: %w", err))
	}

	router := sharedserver.NewRouter(serviceName, logger, func(r chi.Router) {
		r.Handle("/metrics", metrics.Handler(registry))

		r.Group(func(r chi.Router) {
			r.Use(instruments.Middleware)
			r.Use(sharedauth.Middleware(verifier))

			httpapi.RegisterRoutes(r, trackerService, photos, logger)
		})
	}, sharedserver.WithRequestTimeout(cfg.RequestTimeout()))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("tracker service configured",
		slog.String("datastore", string(cfg.DataStore)),
		slog.String("authMode", string(cfg.Auth.Mode)),
		slog.String("timezone", cfg.Location.String()),
		slog.Int("badges", len(trackerService.BadgeTable())),
	)

	if err := sharedserver.Run(ctx, srv, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}

func newRepository(ctx context.Context, cfg config.Config) (devotion.Repository, func(), error) {
	switch cfg.DataStore {
	case config.DataStoreFirestore:
		if cfg.Firestore.EmulatorHost != "" {
			if err := os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.Firestore.EmulatorHost); err != nil {
				return nil, nil, fmt.Errorf("set FIRESTORE_EMULATOR_HOST: %w", err)
			}
		}

		client, err := firestore.NewClientWithDatabase(ctx, cfg.GCPProjectID, cfg.Firestore.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("firestore client: %w", err)
		}

		repo := devotion.NewFirestoreRepository(client)
		cleanup := func() {
			_ = client.Close()
		}
		return repo, cleanup, nil
	default:
		repo := devotion.NewMemoryRepository(nil)
		return repo, func() {}, nil
	}
}

// loadBadges returns nil, selecting the built-in table, when path is empty.
func loadBadges(path string) ([]devotion.Badge, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return devotion.LoadBadgeTable(f)
}
