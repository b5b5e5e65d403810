package reindex

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/fansearch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsumer(t *testing.T, f *indexFixture, opts ...ConsumerOption) *Consumer {
	t.Helper()
	opts = append([]ConsumerOption{WithConsumerRetries(3, time.Millisecond)}, opts...)
	consumer, err := NewConsumer(f.indexer, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { consumer.Stop() })
	return consumer
}

func createdEvent(memberID uint64) core.ReindexEvent {
	return core.ReindexEvent{
		EventID:   uuid.NewString(),
		MemberID:  memberID,
		EventType: core.EventCreated,
		Timestamp: time.Now().UTC(),
		Source:    "member-service",
	}
}

func TestTriggersReindex(t *testing.T) {
	tests := []struct {
		name          string
		changedFields []string
		want          bool
	}{
		{"semantic field", []string{"description"}, true},
		{"name change", []string{"display_name"}, true},
		{"tags change", []string{"tags"}, true},
		{"activity flip", []string{"active"}, true},
		{"mixed fields", []string{"avatar_url", "personality_summary"}, true},
		{"cosmetic only", []string{"avatar_url", "banner_color"}, false},
		{"no fields", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, triggersReindex(tt.changedFields))
		})
	}
}

func TestHandleEventCreated(t *testing.T) {
	f := newIndexFixture(t)
	f.source.Put(hoshino())
	consumer := newTestConsumer(t, f)

	require.NoError(t, consumer.HandleEvent(context.Background(), createdEvent(7)))

	_, ok, err := f.repo.Exists(context.Background(), 7, core.DefaultModelVersion)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, f.embedder.CallCount())
}

func TestHandleEventUpdatedCosmeticFieldsIsNoOp(t *testing.T) {
	f := newIndexFixture(t)
	f.source.Put(hoshino())
	consumer := newTestConsumer(t, f)

	event := core.ReindexEvent{
		EventID:       uuid.NewString(),
		MemberID:      7,
		EventType:     core.EventUpdated,
		ChangedFields: []string{"avatar_url"},
	}
	require.NoError(t, consumer.HandleEvent(context.Background(), event))

	assert.Equal(t, 0, f.embedder.CallCount(), "cosmetic updates must not reach the provider")

	_, ok, err := f.repo.Exists(context.Background(), 7, core.DefaultModelVersion)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHandleEventUpdatedSemanticFields(t *testing.T) {
	f := newIndexFixture(t)
	f.source.Put(hoshino())
	consumer := newTestConsumer(t, f)

	event := core.ReindexEvent{
		EventID:       uuid.NewString(),
		MemberID:      7,
		EventType:     core.EventUpdated,
		ChangedFields: []string{"description"},
	}
	require.NoError(t, consumer.HandleEvent(context.Background(), event))

	_, ok, err := f.repo.Exists(context.Background(), 7, core.DefaultModelVersion)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, f.embedder.CallCount())
}

func TestHandleEventActiveFlagChangeReachesStore(t *testing.T) {
	f := newIndexFixture(t)
	f.source.Put(hoshino())
	consumer := newTestConsumer(t, f)

	require.NoError(t, consumer.HandleEvent(context.Background(), createdEvent(7)))
	require.Equal(t, 1, f.embedder.CallCount())

	retired := hoshino()
	retired.Active = false
	f.source.Put(retired)

	event := core.ReindexEvent{
		EventID:       uuid.NewString(),
		MemberID:      7,
		EventType:     core.EventUpdated,
		ChangedFields: []string{"active"},
	}
	require.NoError(t, consumer.HandleEvent(context.Background(), event))

	stored, err := f.repo.Get(context.Background(), 7, core.DefaultModelVersion)
	require.NoError(t, err)
	assert.False(t, stored.Active, "allow-listed active change must reach the store")
	assert.Equal(t, 1, f.embedder.CallCount(), "unchanged text must not re-embed")
}

func TestHandleEventDeleted(t *testing.T) {
	f := newIndexFixture(t)
	f.source.Put(hoshino())
	consumer := newTestConsumer(t, f)

	require.NoError(t, consumer.HandleEvent(context.Background(), createdEvent(7)))

	deleted := core.ReindexEvent{
		EventID:   uuid.NewString(),
		MemberID:  7,
		EventType: core.EventDeleted,
	}
	require.NoError(t, consumer.HandleEvent(context.Background(), deleted))

	_, ok, err := f.repo.Exists(context.Background(), 7, core.DefaultModelVersion)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHandleEventDeduplicatesByEventID(t *testing.T) {
	f := newIndexFixture(t)
	f.source.Put(hoshino())
	consumer := newTestConsumer(t, f)

	event := createdEvent(7)
	require.NoError(t, consumer.HandleEvent(context.Background(), event))
	require.NoError(t, consumer.HandleEvent(context.Background(), event))

	assert.Equal(t, 1, f.embedder.CallCount(), "redelivered event must be a fast-path no-op")
}

func TestHandleEventRedeliveryIsIdempotent(t *testing.T) {
	f := newIndexFixture(t)
	f.source.Put(hoshino())
	consumer := newTestConsumer(t, f, WithDedupWindow(1, time.Nanosecond))

	// The dedup window is too small to help here, so the second delivery
	// goes through the indexer and lands on the content-hash fast path.
	event := createdEvent(7)
	require.NoError(t, consumer.HandleEvent(context.Background(), event))
	time.Sleep(time.Millisecond)
	require.NoError(t, consumer.HandleEvent(context.Background(), event))

	assert.Equal(t, 1, f.embedder.CallCount())

	stats, err := f.repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalEmbeddings)
}

func TestHandleEventInvalid(t *testing.T) {
	f := newIndexFixture(t)
	consumer := newTestConsumer(t, f)

	err := consumer.HandleEvent(context.Background(), core.ReindexEvent{
		EventID:   uuid.NewString(),
		EventType: core.EventCreated,
	})
	assert.Equal(t, core.KindInvalidInput, core.KindOf(err))
}

func TestProcessInvokesFailedHandlerAfterRetries(t *testing.T) {
	f := newIndexFixture(t)
	// Member 7 is absent from the source, so indexing fails terminally.

	var failedEvent core.ReindexEvent
	var failedErr error
	consumer := newTestConsumer(t, f, WithFailedHandler(func(ev core.ReindexEvent, err error) {
		failedEvent = ev
		failedErr = err
	}))

	event := createdEvent(7)
	consumer.process(event)

	assert.Equal(t, event.EventID, failedEvent.EventID)
	assert.Equal(t, core.KindEntityNotFound, core.KindOf(failedErr))
}

func TestNewConsumerRequiresIndexer(t *testing.T) {
	_, err := NewConsumer(nil)
	assert.ErrorIs(t, err, ErrIndexerRequired)
}
