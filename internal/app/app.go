// Package app wires configuration into repositories and services. Both the
// API server and grievctl build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/timmy/grievo/internal/config"
	"github.com/timmy/grievo/internal/logger"
	"github.com/timmy/grievo/internal/repository"
	"github.com/timmy/grievo/internal/service"
	"github.com/timmy/grievo/internal/storage"
)

const pingTimeout = 5 * time.Second

// App holds every constructed dependency.
type App struct {
	Config *config.Config
	DB     *gorm.DB

	ComplaintRepo *repository.ComplaintRepository
	UserRepo      *repository.UserRepository

	Embedder    *service.EmbeddingService
	Classifier  *service.Classifier
	Complaints  *service.ComplaintService
	Dashboard   *service.DashboardService
	Auth        *service.AuthService
	Attachments *service.AttachmentService // nil when storage is disabled
	Scheduler   *service.EscalationScheduler

	closers []func() error
}

// New connects to the configured backends and builds the services.
// Nothing here contacts the embedding provider; call SeedClassifier for that.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	a.ComplaintRepo = repository.NewComplaintRepository(db)
	a.UserRepo = repository.NewUserRepository(db)

	a.Embedder = service.NewEmbeddingService(service.NewHTTPEmbeddingBackend(&cfg.Embedding), service.EmbeddingServiceConfig{
		ModelVersion: cfg.Embedding.ModelVersion(),
		Dimensions:   cfg.Embedding.Dimensions,
		InitTimeout:  cfg.Embedding.Timeout,
	})

	seedStore, err := a.seedStore()
	if err != nil {
		return err
	}
	a.Classifier = service.NewClassifier(a.Embedder, seedStore, nil)

	now := time.Now
	a.Complaints = service.NewComplaintService(a.ComplaintRepo, a.Embedder, a.Classifier, now)
	a.Dashboard = service.NewDashboardService(a.ComplaintRepo, a.Classifier.Categories(), cfg.Escalation.Threshold, now)

	a.Auth, err = service.NewAuthService(a.UserRepo, service.AuthConfig{
		Secret:   cfg.Auth.JWTSecret,
		TokenTTL: cfg.Auth.TokenTTL,
		Issuer:   cfg.Auth.Issuer,
	}, now)
	if err != nil {
		return err
	}

	if cfg.Storage.Enabled {
		objects, err := a.objectStorage(ctx)
		if err != nil {
			return err
		}
		a.Attachments = service.NewAttachmentService(a.ComplaintRepo, a.ComplaintRepo, objects, cfg.Storage.MaxAttachmentBytes, now)
	}

	locker, err := a.locker(ctx)
	if err != nil {
		return err
	}
	a.Scheduler = service.NewEscalationScheduler(a.ComplaintRepo, a.Complaints, locker, service.EscalationConfig{
		Schedule:  cfg.Escalation.Schedule,
		Threshold: cfg.Escalation.Threshold,
		LockKey:   cfg.Escalation.LockKey,
		LockTTL:   cfg.Escalation.LockTTL,
	}, now)
	return nil
}

func (a *App) seedStore() (service.SeedStore, error) {
	if a.Config.Classifier.SeedStore != "qdrant" {
		return nil, nil
	}
	q := a.Config.Qdrant
	store, err := repository.NewQdrantSeedStore(&repository.QdrantConnectionConfig{
		Host:       q.Host,
		Port:       q.Port,
		Collection: q.Collection,
		APIKey:     q.APIKey,
		UseTLS:     q.UseTLS,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	logger.Info("Seed vectors persisted in Qdrant collection %q", q.Collection)
	return store, nil
}

func (a *App) objectStorage(ctx context.Context) (storage.ObjectStorage, error) {
	objects, err := storage.NewStorage(&a.Config.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if ensurer, ok := objects.(interface{ EnsureBucket(context.Context) error }); ok {
		if err := ensurer.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
		}
	}
	return objects, nil
}

func (a *App) locker(ctx context.Context) (service.Locker, error) {
	r := a.Config.Redis
	if !r.Enabled {
		return nil, nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	rdb, err := repository.NewRedisClient(pingCtx, &repository.RedisConnectionConfig{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, rdb.Close)
	logger.Info("Escalation sweep coordinated through Redis at %s", r.Addr)
	return repository.NewRedisLocker(rdb), nil
}

// SeedClassifier loads the embedding model and the category seeds once.
// A failure leaves classification unavailable but the app usable otherwise.
func (a *App) SeedClassifier(ctx context.Context) error {
	return a.Classifier.InitializeSeeds(ctx)
}

// Close releases connections in reverse construction order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
