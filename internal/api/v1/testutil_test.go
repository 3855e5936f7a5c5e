package v1_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gosuda/agentboard/internal/domain"
	"github.com/gosuda/agentboard/internal/ingest"
)

// ---------------------------------------------------------------------------
// Mock IngestService
// ---------------------------------------------------------------------------

type mockIngestService struct {
	ingestHookEventsFunc func(ctx context.Context, projectID string, inputs []ingest.HookEventInput) (domain.InsertResult, error)
	ingestActivityFunc   func(ctx context.Context, projectID string, inputs []ingest.ActivityInput) (int, error)
}

func (m *mockIngestService) IngestHookEvents(ctx context.Context, projectID string, inputs []ingest.HookEventInput) (domain.InsertResult, error) {
	return m.ingestHookEventsFunc(ctx, projectID, inputs)
}

func (m *mockIngestService) IngestActivity(ctx context.Context, projectID string, inputs []ingest.ActivityInput) (int, error) {
	return m.ingestActivityFunc(ctx, projectID, inputs)
}

// ---------------------------------------------------------------------------
// Mock HookEventLister
// ---------------------------------------------------------------------------

type mockHookEventLister struct {
	listRecentFunc func(ctx context.Context, projectID string, limit int) ([]*domain.HookEventSummary, error)
}

func (m *mockHookEventLister) ListRecent(ctx context.Context, projectID string, limit int) ([]*domain.HookEventSummary, error) {
	return m.listRecentFunc(ctx, projectID, limit)
}

// ---------------------------------------------------------------------------
// Recording broker
// ---------------------------------------------------------------------------

type published struct {
	channel string
	payload []byte
}

type recordingBroker struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (b *recordingBroker) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.msgs = append(b.msgs, published{channel: channel, payload: payload})
	return nil
}

func (b *recordingBroker) Subscribe(context.Context, string) (<-chan []byte, func(), error) {
	ch := make(chan []byte)
	return ch, func() {}, nil
}

func (b *recordingBroker) published() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.msgs...)
}

// ---------------------------------------------------------------------------
// Envelope decoding
// ---------------------------------------------------------------------------

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, body []byte) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(body, &env), "body: %s", body)
	return env
}
