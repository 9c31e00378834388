package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/das-api/internal/models"
	"github.com/noah-isme/das-api/pkg/database"
	appErrors "github.com/noah-isme/das-api/pkg/errors"
)

// TxRunner runs fn inside one datastore transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SuffixFunc produces the random part of a routed row key.
type SuffixFunc func() (string, error)

// RandomSuffix returns a generator of n random bytes rendered as hex.
func RandomSuffix(n int) SuffixFunc {
	if n <= 0 {
		n = 3
	}
	return func() (string, error) {
		buf := make([]byte, n)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random suffix: %w", err)
		}
		return hex.EncodeToString(buf), nil
	}
}

// readRetry runs a read and retries it once when the datastore reported a
// transient failure.
func readRetry[T any](ctx context.Context, metrics *MetricsService, label string, read func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	out, err := read(ctx)
	if err != nil && database.IsTransient(err) && ctx.Err() == nil {
		out, err = read(ctx)
	}
	metrics.ObserveDBQuery(label, time.Since(start))
	return out, err
}

// readFailure converts a read error into the API taxonomy.
func readFailure(logger *zap.Logger, op string, err error) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) || database.IsInvalidInput(err) {
		return appErrors.Clone(appErrors.ErrNotFound, "")
	}
	if database.IsTransient(err) {
		logger.Warn("datastore unavailable", zap.String("op", op), zap.Error(err))
		return appErrors.WrapAs(appErrors.ErrUnavailable, err, "")
	}
	logger.Error("datastore read failed", zap.String("op", op), zap.Error(err))
	return appErrors.WrapAs(appErrors.ErrInternal, err, "")
}

// writeFailure converts the error of a rolled back write. Domain errors pass
// through; anything else is logged with detail and surfaced generically.
func writeFailure(logger *zap.Logger, op string, err error, fields ...zap.Field) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	fields = append(fields, zap.String("op", op), zap.Error(err))
	if database.IsForeignKeyViolation(err) {
		logger.Warn("write refused by a reference", fields...)
		return appErrors.WrapAs(appErrors.ErrConflict, err, "record is still referenced by actions or approvals")
	}
	if database.IsInvalidInput(err) {
		return appErrors.WrapAs(appErrors.ErrNotFound, err, "")
	}
	if database.IsTransient(err) {
		logger.Warn("datastore unavailable during write", fields...)
		return appErrors.WrapAs(appErrors.ErrUnavailable, err, "")
	}
	logger.Error("transaction rolled back", fields...)
	return appErrors.WrapAs(appErrors.ErrTransaction, err, "")
}

func strPtr(s string) *string {
	return &s
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
