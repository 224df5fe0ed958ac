package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"neurolink/internal/db"
	"neurolink/internal/location"
	"neurolink/internal/media"
	"neurolink/internal/server"
	"neurolink/internal/session"
	"neurolink/internal/storage"
	"neurolink/internal/store"
	"neurolink/internal/submit"
	"neurolink/pkg/types"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Start the HTTP server",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "migrate",
			Usage: "Apply database migrations before serving",
		},
	},
	Action: serve,
}

func serve(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, err := loadConfig(cCtx)
	if err != nil {
		return err
	}

	logger := newLogger(config, true)

	resolverOpts := []location.Option{
		location.WithFallback(config.LocationFallback),
		location.WithSession(session.ContextProvider{}),
	}

	if config.RedisURL != "" {
		cache, err := location.NewRedisCache(config.RedisURL, time.Duration(config.LocationCacheTTLSec)*time.Second)
		if err != nil {
			return err
		}
		defer cache.Close()

		if err := cache.Ping(ctx); err != nil {
			logger.WithError(err).Warn("redis unavailable, location lists will not be shared")
		} else {
			resolverOpts = append(resolverOpts, location.WithCache(cache))
		}
	}

	locations := location.NewResolver(config.BackendURL, logger, resolverOpts...)

	drafts, closeDrafts, err := openDrafts(ctx, cCtx.Bool("migrate"), config, logger)
	if err != nil {
		return err
	}
	defer closeDrafts()

	stager, err := openStager(ctx, config)
	if err != nil {
		return err
	}

	transport := submit.NewTransport(
		config.BackendURL,
		session.ContextProvider{},
		media.SchemeOpener{stager.Scheme(): stager},
		submitPolicy(config),
		logger,
	)

	inspector, err := session.NewTokenInspector(ctx, config.JWKSURL, logger)
	if err != nil {
		return err
	}
	auth := session.NewClient(config.BackendURL, nil, inspector, logger)

	srv, err := server.New(
		config,
		logger,
		locations,
		transport,
		auth,
		drafts,
		stager,
	)
	if err != nil {
		return err
	}

	srv.StartJanitor(ctx)

	go func() {
		logger.WithField("port", config.ServerPort).Infof("server starting http://localhost:%d", config.ServerPort)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Stop(shutdownCtx)
}

// openDrafts connects to Postgres when configured and falls back to an
// in-process store otherwise.
func openDrafts(ctx context.Context, migrate bool, config *types.Config, logger *logrus.Logger) (store.Drafts, func(), error) {
	if config.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, drafts are kept in memory")
		return store.NewMemory(), func() {}, nil
	}

	pool, err := db.Connect(ctx, config)
	if err != nil {
		return nil, nil, err
	}

	if migrate {
		if err := db.Migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}

	return store.NewDraftRepository(pool), pool.Close, nil
}

func openStager(ctx context.Context, config *types.Config) (storage.Stager, error) {
	if config.UploadBucket == "" {
		return storage.NewDiskStager(config.UploadDir)
	}

	awsConfig, err := loadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}

	return storage.NewS3Stager(s3.NewFromConfig(awsConfig), config.UploadBucket), nil
}
