package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/enrollment-backend/internal/config"
	"github.com/stemsi/enrollment-backend/internal/port"
	"github.com/stemsi/enrollment-backend/internal/repository"
	"github.com/stemsi/enrollment-backend/internal/repository/sqlite"
)

// Backend bundles the storage ports of one configured store driver.
type Backend struct {
	Driver        string
	Students      port.StudentStore
	Courses       port.CourseStore
	Registrations port.RegistrationStore
	Events        port.EventLog

	close func()
	ping  func(ctx context.Context) error
}

// Ping checks that the store is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	if b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

// Close releases the underlying connections.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// OpenBackend connects the store selected by cfg.StoreDriver.
func OpenBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Backend, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := NewPostgresPool(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Driver:        cfg.StoreDriver,
			Students:      repository.NewStudentRepository(pool),
			Courses:       repository.NewCourseRepository(pool),
			Registrations: repository.NewRegistrationRepository(pool),
			Events:        repository.NewEventRepository(pool),
			close:         pool.Close,
			ping:          pool.Ping,
		}, nil

	case config.DriverSQLite:
		store, err := NewSQLiteStore(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return NewSQLiteBackend(store), nil

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

// NewSQLiteBackend wraps an open SQLite store. Closing the backend closes the store.
func NewSQLiteBackend(store *sqlite.Store) *Backend {
	return &Backend{
		Driver:        config.DriverSQLite,
		Students:      store,
		Courses:       store,
		Registrations: store,
		Events:        store,
		close:         func() { _ = store.Close() },
		ping:          store.Ping,
	}
}
