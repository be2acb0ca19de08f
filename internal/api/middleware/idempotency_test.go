package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ledgercore/internal/api/middleware"
	"ledgercore/internal/domain/idempotency"
	pkgidempotency "ledgercore/internal/pkg/idempotency"
	"ledgercore/internal/store/postgres"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIdempotencyStore is an in-memory double. onAcquireLock lets a
// test inject a concurrent writer's commit between AcquireLock
// succeeding and the middleware's second Lookup, modeling the race
// spec.md §4.12 step 4 guards against.
type fakeIdempotencyStore struct {
	records       map[string]idempotency.Record
	onAcquireLock func()
	lockWon       bool
	handlerCalls  int
}

func (s *fakeIdempotencyStore) Lookup(ctx context.Context, key string) (idempotency.Record, error) {
	rec, ok := s.records[key]
	if !ok {
		return idempotency.Record{}, postgres.ErrNotFound
	}
	return rec, nil
}

func (s *fakeIdempotencyStore) AcquireLock(ctx context.Context, key string) (bool, error) {
	if s.onAcquireLock != nil {
		s.onAcquireLock()
	}
	return s.lockWon, nil
}

func (s *fakeIdempotencyStore) ReleaseLock(ctx context.Context, key string) error { return nil }

func (s *fakeIdempotencyStore) Save(ctx context.Context, rec idempotency.Record) error {
	s.records[rec.Key] = rec
	return nil
}

func runIdempotent(t *testing.T, store *fakeIdempotencyStore, handler gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/transfers", middleware.Idempotency(store, 24*time.Hour), handler)

	req := httptest.NewRequest(http.MethodPost, "/transfers", strings.NewReader(`{"amount":1}`))
	req.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestIdempotencyReplaysCachedResponseWonBeforeLock(t *testing.T) {
	store := &fakeIdempotencyStore{
		records: map[string]idempotency.Record{
			"key-1": idempotency.New("key-1", middlewareFingerprint(t), http.StatusCreated, []byte(`{"cached":true}`), time.Now().UTC(), 24*time.Hour),
		},
	}
	rec := runIdempotent(t, store, func(c *gin.Context) {
		store.handlerCalls++
		c.JSON(http.StatusCreated, gin.H{"cached": false})
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cached":true`)
	assert.Equal(t, 0, store.handlerCalls)
}

// TestIdempotencyReplaysCommitThatRacedTheLock exercises spec.md
// §4.12 step 4: a concurrent winner commits and releases the lock
// between this request's pre-lock Lookup (miss) and its AcquireLock
// (won because the first writer already released). The second Lookup
// inside the lock must catch the now-committed record instead of
// replaying the handler.
func TestIdempotencyReplaysCommitThatRacedTheLock(t *testing.T) {
	store := &fakeIdempotencyStore{records: map[string]idempotency.Record{}, lockWon: true}
	store.onAcquireLock = func() {
		store.records["key-1"] = idempotency.New("key-1", middlewareFingerprint(t), http.StatusCreated, []byte(`{"cached":true}`), time.Now().UTC(), 24*time.Hour)
	}

	rec := runIdempotent(t, store, func(c *gin.Context) {
		store.handlerCalls++
		c.JSON(http.StatusCreated, gin.H{"cached": false})
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cached":true`)
	assert.Equal(t, 0, store.handlerCalls)
}

func TestIdempotencyRunsHandlerWhenNoRecordExists(t *testing.T) {
	store := &fakeIdempotencyStore{records: map[string]idempotency.Record{}, lockWon: true}

	rec := runIdempotent(t, store, func(c *gin.Context) {
		store.handlerCalls++
		c.JSON(http.StatusCreated, gin.H{"cached": false})
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cached":false`)
	assert.Equal(t, 1, store.handlerCalls)
	require.Len(t, store.records, 1)
}

func middlewareFingerprint(t *testing.T) string {
	t.Helper()
	return pkgidempotency.Fingerprint(http.MethodPost, "/transfers", []byte(`{"amount":1}`))
}
