// Package database owns the PostgreSQL connection pool and ties its
// verification and teardown to the service lifecycle.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/JaimeStill/covenant/pkg/lifecycle"
)

// pingInterval spaces connection attempts during startup.
const pingInterval = 500 * time.Millisecond

// System exposes the pool and its lifecycle hooks.
type System interface {
	Connection() *sql.DB
	// Ready returns ErrNotReady until the startup ping has succeeded.
	Ready() error
	// Start verifies connectivity on startup and closes the pool on shutdown.
	Start(lc *lifecycle.Coordinator) error
}

type database struct {
	conn        *sql.DB
	logger      *slog.Logger
	connTimeout time.Duration

	mu      sync.Mutex
	ready   bool
	pingErr error
}

// New opens the pool without connecting. The first connection is made by
// Start or by the first query, whichever comes first.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	db, err := sql.Open("pgx", cfg.Dsn())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	return &database{
		conn:        db,
		logger:      logger.With("system", "database"),
		connTimeout: cfg.ConnTimeoutDuration(),
	}, nil
}

func (d *database) Connection() *sql.DB {
	return d.conn
}

func (d *database) Ready() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.ready:
		return nil
	case d.pingErr != nil:
		return fmt.Errorf("%w: %w", ErrNotReady, d.pingErr)
	}
	return ErrNotReady
}

func (d *database) setReady(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ready = err == nil
	d.pingErr = err
}

func (d *database) Start(lc *lifecycle.Coordinator) error {
	d.logger.Info("starting database connection")

	lc.OnStartup(func() {
		ctx, cancel := context.WithTimeout(lc.Context(), d.connTimeout)
		defer cancel()

		attempts, err := d.ping(ctx)
		d.setReady(err)
		if err != nil {
			d.logger.Error("database ping failed", "attempts", attempts, "error", err)
			return
		}

		d.logger.Info("database connection established", "attempts", attempts)
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		d.logger.Info("closing database connection")

		if err := d.conn.Close(); err != nil {
			d.logger.Error("database close failed", "error", err)
			return
		}

		d.logger.Info("database connection closed")
	})

	return nil
}

// ping retries until the database answers or ctx ends.
func (d *database) ping(ctx context.Context) (int, error) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		err := d.conn.PingContext(ctx)
		if err == nil {
			return attempt, nil
		}

		select {
		case <-ctx.Done():
			return attempt, err
		case <-ticker.C:
		}
	}
}
