package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestRetryTransientFailure(t *testing.T) {
	attempts := 0
	v, err := Retry(context.Background(), func() (int, error) {
		attempts++
		if attempts == 1 {
			return 0, &pgconn.PgError{Code: pgerrcode.DeadlockDetected}
		}
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, v)
	require.Equal(t, 2, attempts)
}

func TestRetryPermanentFailure(t *testing.T) {
	pgErr := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "orgs_slug_key"}

	attempts := 0
	_, err := Retry(context.Background(), func() (int, error) {
		attempts++
		return 0, pgErr
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)

	var got *pgconn.PgError
	require.True(t, errors.As(err, &got))
	require.Equal(t, pgErr.ConstraintName, got.ConstraintName)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	_, err := Retry(context.Background(), func() (int, error) {
		attempts++
		return 0, &pgconn.PgError{Code: pgerrcode.SerializationFailure}
	})
	require.Error(t, err)
	require.Equal(t, maxRetryAttempts, attempts)
}

func TestErrorClassification(t *testing.T) {
	fkErr := &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, ConstraintName: "usage_counters_domain_id_fkey"}
	require.True(t, IsForeignKeyViolation(fkErr))
	require.False(t, IsForeignKeyViolation(errors.New("plain")))
	require.False(t, IsRetryable(fkErr))
	require.True(t, IsRetryable(&pgconn.PgError{Code: pgerrcode.ConnectionFailure}))
}
