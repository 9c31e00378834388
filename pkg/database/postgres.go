package database

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/das-api/pkg/config"
)

// Handle owns the PostgreSQL pool and its health watcher. It is constructed
// once in main and passed to repositories; nothing in the module keeps a
// package-level connection.
type Handle struct {
	db             *sqlx.DB
	policy         RetryPolicy
	healthInterval time.Duration
	logger         *zap.Logger
	ping           func(context.Context) error

	healthy atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
}

// DSN renders the lib/pq connection string for cfg.
func DSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
}

// Open connects to PostgreSQL, retrying the first ping per the reconnect policy.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Handle, error) {
	db, err := sqlx.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	h := NewHandle(db, RetryPolicy{Interval: cfg.ReconnectInterval}, cfg.HealthInterval, logger)

	connect := RetryPolicy{Interval: cfg.ReconnectInterval, MaxAttempts: cfg.ConnectAttempts}
	err = connect.Do(ctx, h.ping, func(err error, next time.Duration) {
		h.logger.Warn("database not reachable, retrying", zap.Error(err), zap.Duration("retry_in", next))
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}
	h.healthy.Store(true)
	return h, nil
}

// NewHandle wraps an existing pool. The handle starts unhealthy until the
// first successful ping in Open or the watcher.
func NewHandle(db *sqlx.DB, policy RetryPolicy, healthInterval time.Duration, logger *zap.Logger) *Handle {
	if logger == nil {
		logger = zap.NewNop()
	}
	if healthInterval <= 0 {
		healthInterval = 15 * time.Second
	}
	h := &Handle{
		db:             db,
		policy:         policy,
		healthInterval: healthInterval,
		logger:         logger,
	}
	h.ping = func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	}
	return h
}

// DB exposes the pool for repositories.
func (h *Handle) DB() *sqlx.DB {
	return h.db
}

// Healthy reports the last observed datastore state.
func (h *Handle) Healthy() bool {
	return h != nil && h.healthy.Load()
}

// Start launches the health watcher. Calling it twice is a no-op.
func (h *Handle) Start(parent context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil || h.closed {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	h.cancel = cancel
	h.done = make(chan struct{})
	go h.watch(ctx)
}

func (h *Handle) watch(ctx context.Context) {
	defer close(h.done)
	ticker := time.NewTicker(h.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := h.ping(ctx); err == nil {
			h.healthy.Store(true)
			continue
		} else if ctx.Err() != nil {
			return
		} else {
			h.healthy.Store(false)
			h.logger.Warn("database connection lost", zap.Error(err))
		}

		err := h.policy.Do(ctx, h.ping, func(err error, next time.Duration) {
			h.logger.Warn("database reconnect failed", zap.Error(err), zap.Duration("retry_in", next))
		})
		if err != nil {
			return
		}
		h.healthy.Store(true)
		h.logger.Info("database reconnected")
	}
}

// Close stops the watcher and releases the pool.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	cancel, done := h.cancel, h.done
	h.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	h.healthy.Store(false)
	return h.db.Close()
}
