package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/das-api/pkg/errors"
)

func TestReadRetryRetriesTransientOnce(t *testing.T) {
	calls := 0
	out, err := readRetry(context.Background(), nil, "test", func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, driver.ErrBadConn
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, out)
	assert.Equal(t, 2, calls)

	calls = 0
	_, err = readRetry(context.Background(), nil, "test", func(ctx context.Context) (int, error) {
		calls++
		return 0, sql.ErrNoRows
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.Equal(t, 1, calls)
}

func TestReadFailureMapping(t *testing.T) {
	logger := zap.NewNop()
	assert.True(t, appErrors.IsCode(readFailure(logger, "op", sql.ErrNoRows), appErrors.ErrNotFound))
	assert.True(t, appErrors.IsCode(readFailure(logger, "op", driver.ErrBadConn), appErrors.ErrUnavailable))
	assert.True(t, appErrors.IsCode(readFailure(logger, "op", errors.New("syntax error")), appErrors.ErrInternal))
	assert.True(t, appErrors.IsCode(readFailure(logger, "op", appErrors.ErrForbidden), appErrors.ErrForbidden))
	assert.True(t, appErrors.IsCode(readFailure(logger, "op", &pq.Error{Code: "22P02"}), appErrors.ErrNotFound))
}

func TestWriteFailureMapping(t *testing.T) {
	logger := zap.NewNop()

	passthrough := appErrors.Clone(appErrors.ErrConflict, "taken")
	assert.Same(t, passthrough, writeFailure(logger, "op", passthrough))

	unavailable := writeFailure(logger, "op", &pq.Error{Code: "08006"})
	assert.True(t, appErrors.IsCode(unavailable, appErrors.ErrUnavailable))
	assert.Equal(t, 503, appErrors.FromError(unavailable).Status)

	referenced := writeFailure(logger, "op", &pq.Error{Code: "23503", Message: "violates foreign key"})
	assert.True(t, appErrors.IsCode(referenced, appErrors.ErrConflict))
	assert.Equal(t, 409, appErrors.FromError(referenced).Status)
	assert.NotContains(t, appErrors.FromError(referenced).Message, "violates")

	malformed := writeFailure(logger, "op", &pq.Error{Code: "22P02", Message: "invalid input syntax for type uuid"})
	assert.True(t, appErrors.IsCode(malformed, appErrors.ErrNotFound))

	failed := writeFailure(logger, "op", &pq.Error{Code: "23514", Message: "violates check constraint"})
	assert.True(t, appErrors.IsCode(failed, appErrors.ErrTransaction))
	assert.NotContains(t, appErrors.FromError(failed).Message, "check constraint")
}

func TestRandomSuffix(t *testing.T) {
	next := RandomSuffix(3)
	a, err := next()
	require.NoError(t, err)
	b, err := next()
	require.NoError(t, err)
	assert.Len(t, a, 6)
	assert.NotEqual(t, a, b)
}
