package txn

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryableRecognizesDeadlockAndSerializationCodes(t *testing.T) {
	assert.True(t, isRetryable(&pgconn.PgError{Code: codeDeadlockDetected}))
	assert.True(t, isRetryable(&pgconn.PgError{Code: codeSerializationFailure}))
	assert.False(t, isRetryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isRetryable(errors.New("boom")))
}

func TestBackoffHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := backoff(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
