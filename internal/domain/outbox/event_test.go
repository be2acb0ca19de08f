package outbox

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	B string `json:"b"`
	A string `json:"a"`
}

func TestNewProducesCanonicalPayload(t *testing.T) {
	now := time.Now()
	ev, err := New("transfer", uuid.New(), "transfer.completed", payload{A: "1", B: "2"}, now, now)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"1","b":"2"}`, ev.PayloadJCS)
	assert.Nil(t, ev.PublishedAt)
	assert.Equal(t, 0, ev.AttemptCount)
}

func TestMarkPublished(t *testing.T) {
	now := time.Now()
	ev, _ := New("transfer", uuid.New(), "transfer.completed", payload{}, now, now)
	ev.MarkPublished(now)
	require.NotNil(t, ev.PublishedAt)
	assert.False(t, ev.IsDead(DefaultMaxAttempts))
}

func TestRecordFailureAndDeadLetter(t *testing.T) {
	now := time.Now()
	ev, _ := New("transfer", uuid.New(), "transfer.completed", payload{}, now, now)
	for i := 0; i < DefaultMaxAttempts; i++ {
		ev.RecordFailure(errors.New("broker unreachable"))
	}
	assert.Equal(t, DefaultMaxAttempts, ev.AttemptCount)
	assert.True(t, ev.IsDead(DefaultMaxAttempts))
}

func TestRecordFailureTruncatesLastError(t *testing.T) {
	now := time.Now()
	ev, _ := New("transfer", uuid.New(), "transfer.completed", payload{}, now, now)
	ev.RecordFailure(errors.New(strings.Repeat("x", lastErrorCap+500)))
	assert.LessOrEqual(t, len(ev.LastError), lastErrorCap)
}
