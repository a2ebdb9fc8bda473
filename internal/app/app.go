package app

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"ChainAcademy/internal/app/server"
	"ChainAcademy/internal/config"
	"ChainAcademy/internal/delivery/http"
	"ChainAcademy/internal/models"
	"ChainAcademy/internal/service"
	"ChainAcademy/internal/service/auth"
	"ChainAcademy/internal/service/course"
	"ChainAcademy/internal/service/enrollment"
	"ChainAcademy/internal/service/metrics"
	"ChainAcademy/internal/service/progress"
	"ChainAcademy/internal/storage/elastic"
	"ChainAcademy/internal/storage/minio_storage"
	"ChainAcademy/internal/storage/postgres"
	"ChainAcademy/pkg/logger"
)

func Run(cfg *config.Config) {
	log := logger.New(cfg.Env)
	log.Info("starting with env: " + cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := postgres.NewPostgresPool(ctx, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.DBName, cfg.Postgres.SSLMode)
	if err != nil {
		log.FatalErr("error connecting to database", err)
	}
	defer pg.Close()

	if cfg.Postgres.Migrate {
		if err := postgres.RunMigrations(ctx, pg.Pool); err != nil {
			log.FatalErr("failed to apply migrations", err)
		}
	}

	userRepo := postgres.NewUserPostgres(pg.Pool)
	courseRepo := postgres.NewCoursePostgres(pg.Pool)
	progressRepo := postgres.NewProgressPostgres(pg.Pool)
	enrollmentRepo := postgres.NewEnrollmentPostgres(pg.Pool)

	logos := logoStorage(ctx, cfg.Minio, log)
	search := courseSearch(cfg.ES, log)

	jwtManager := auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Issuer, cfg.JWT.AccessTTL)

	courseService := course.NewCourseService(log, courseRepo, search, logos)

	u := service.Collection{
		Auth:        auth.NewAuthService(log, jwtManager, userRepo),
		Courses:     courseService,
		Progress:    progress.NewProgressService(log, progressRepo, courseRepo, enrollmentRepo),
		Enrollments: enrollment.NewEnrollmentService(log, enrollmentRepo, courseRepo, progressRepo, logos),
		Metrics:     metrics.NewMetricsService(log, progressRepo, courseRepo, enrollmentRepo),
	}

	if search != nil && cfg.ES.ReindexOnStart {
		if n, err := courseService.Reindex(ctx); err != nil {
			log.ErrorErr("initial course reindex failed", err)
		} else {
			log.Info("course search index ready", "courses", n)
		}
	}

	r := http.InitRoutes(log.With("component", "http"), cfg, u)

	srv := server.New(cfg.HTTPServer.Address, cfg.HTTPServer.Timeout, cfg.HTTPServer.IdleTimeout, r)
	srv.Start()
	log.Info("http server started", "address", cfg.HTTPServer.Address)

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-srv.Notify():
		log.ErrorErr("http server stopped", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.ErrorErr("graceful shutdown failed", err)
	}
}

type logoStore interface {
	UploadLogo(ctx context.Context, courseID int, filename string, reader io.Reader, size int64, contentType string) (string, error)
	GetLogoURL(ctx context.Context, objectKey string) (string, error)
}

type searchIndex interface {
	CreateIndexIfNotExist(ctx context.Context) error
	Index(ctx context.Context, course models.Course) error
	Search(ctx context.Context, query string, size int) ([]int, error)
}

// logoStorage returns nil when object storage is disabled or unreachable.
func logoStorage(ctx context.Context, cfg config.Minio, log logger.Log) logoStore {
	if !cfg.Enabled {
		return nil
	}
	client, err := minio_storage.NewMinioStorage(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.Region, cfg.UseSSL)
	if err != nil {
		log.ErrorErr("minio is unavailable, course logos disabled", err)
		return nil
	}
	logos := minio_storage.NewLogoStorage(client, cfg.LogoBucket.Name, cfg.LogoBucket.PresignTTL)
	if err := logos.EnsureBucket(ctx); err != nil {
		log.ErrorErr("failed to prepare logo bucket, course logos disabled", err)
		return nil
	}
	return logos
}

// courseSearch returns nil when search is disabled or unreachable.
func courseSearch(cfg config.ES, log logger.Log) searchIndex {
	if !cfg.Enabled {
		return nil
	}
	client, err := elastic.NewElasticClient(cfg.Username, cfg.Password, cfg.Hosts)
	if err != nil {
		log.ErrorErr("elasticsearch is unavailable, falling back to catalog filtering", err)
		return nil
	}
	return elastic.NewCourseSearchRepository(client, cfg.Index)
}
