package postgres_test

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/agentboard/internal/domain"
	"github.com/gosuda/agentboard/internal/store/postgres"
)

// These tests need a live database; set AGENTBOARD_TEST_POSTGRES_DSN to run them.
func openStore(t *testing.T) *postgres.Store {
	t.Helper()

	dsn := os.Getenv("AGENTBOARD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("AGENTBOARD_TEST_POSTGRES_DSN not set")
	}

	store, err := postgres.New(context.Background(), dsn, 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestHookEventRepo_ConcurrentDuplicates(t *testing.T) {
	store := openStore(t)
	repo := store.HookEvents()
	ctx := context.Background()

	project := "pg-test-" + uuid.NewString()
	correlation := "corr-1"
	ts := time.Now().UTC().Truncate(time.Microsecond)

	const callers = 8

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := repo.InsertBatch(ctx, []*domain.HookEvent{{
				ProjectID:     project,
				EventType:     domain.EventPreToolUse,
				AgentName:     "builder",
				Status:        domain.HookStatusPending,
				CorrelationID: &correlation,
				Payload:       json.RawMessage(`{}`),
				Timestamp:     ts,
			}})
			assert.NoError(t, err)
			assert.Equal(t, 1, res.Created+res.Skipped)
			mu.Lock()
			created += res.Created
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)

	count, err := repo.Count(ctx, project)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestHookEventRepo_ListSinceOrdersByTimestamp(t *testing.T) {
	store := openStore(t)
	repo := store.HookEvents()
	ctx := context.Background()

	project := "pg-test-" + uuid.NewString()
	base := time.Now().UTC().Truncate(time.Microsecond)

	_, err := repo.InsertBatch(ctx, []*domain.HookEvent{
		{ProjectID: project, EventType: domain.EventStop, AgentName: "a", Status: domain.HookStatusUnknown, Payload: json.RawMessage(`{}`), Timestamp: base.Add(2 * time.Second)},
		{ProjectID: project, EventType: domain.EventStop, AgentName: "a", Status: domain.HookStatusUnknown, Payload: json.RawMessage(`{}`), Timestamp: base.Add(1 * time.Second)},
	})
	require.NoError(t, err)

	got, err := repo.ListSince(ctx, project, base, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Timestamp.Before(got[1].Timestamp))
}
