package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finze/internal/amqp"
	"finze/internal/live"
	"finze/internal/mongo"
	"finze/internal/storage"
	"finze/internal/storage/memory"
)

const closeTimeout = 5 * time.Second

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MongoBackend:
		return f.createMongoBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	source, publisher, closeTransport := f.changeTransport(config)
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath, "amqp_enabled", closeTransport != nil)

	return &BackendResult{
		Store:     repo.Store(),
		Source:    source,
		Publisher: publisher,
		Cleanup:   chain(closeTransport, repo.Close),
	}, nil
}

// createMongoBackend watches through change streams, which see writes from
// every process. AMQP, when configured, only carries announcements outward.
func (f *DefaultFactory) createMongoBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := mongo.Connect(ctx, config.MongoURI, config.MongoDatabase)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MongoDB store: %w", err)
	}

	var publisher live.Publisher = live.Nop{}
	var closeAMQP CleanupFunc
	if config.AMQPURL != "" {
		if client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange); err != nil {
			f.logger.Warn("Failed to initialize AMQP client, changes stay local to MongoDB", "error", err)
		} else {
			publisher = client
			closeAMQP = client.Close
		}
	}

	f.logger.Info("Initialized MongoDB backend", "database", config.MongoDatabase, "amqp_enabled", closeAMQP != nil)

	closeStore := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		return store.Close(ctx)
	}
	return &BackendResult{
		Store:     store.Storage(),
		Source:    store,
		Publisher: publisher,
		Cleanup:   chain(closeAMQP, closeStore),
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	store := memory.NewStoreFromDir(dataDir)
	source, publisher, closeTransport := f.changeTransport(config)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{
		Store:     store,
		Source:    source,
		Publisher: publisher,
		Cleanup:   chain(closeTransport),
	}, nil
}

// changeTransport picks AMQP when configured and reachable, otherwise an
// in-process hub. The returned cleanup is nil for the hub.
func (f *DefaultFactory) changeTransport(config Config) (live.Source, live.Publisher, CleanupFunc) {
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange)
		if err == nil {
			f.logger.Info("Initialized AMQP change transport", "exchange", config.AMQPExchange)
			return client, client, client.Close
		}
		f.logger.Warn("Failed to initialize AMQP client, live updates stay in-process", "error", err)
	}
	hub := live.NewHub()
	return hub, hub, nil
}

// chain runs every non-nil cleanup in order and joins their errors.
func chain(fns ...CleanupFunc) CleanupFunc {
	return func() error {
		var errs []error
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			if err := fn(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
