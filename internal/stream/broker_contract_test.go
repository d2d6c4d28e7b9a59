package stream_test

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/nikolayk812/cartflow/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokerContract exercises the consumer-group semantics every broker must provide.
func brokerContract(t *testing.T, broker port.StreamBroker, groupCount func(stream string) int) {
	t.Run("ensure group is idempotent", func(t *testing.T) {
		ctx := t.Context()
		stream, group := randomName("stream"), randomName("group")

		require.NoError(t, broker.EnsureGroup(ctx, stream, group))
		require.NoError(t, broker.EnsureGroup(ctx, stream, group))

		assert.Equal(t, 1, groupCount(stream))
	})

	t.Run("group reads entries appended before it existed", func(t *testing.T) {
		ctx := t.Context()
		stream, group := randomName("stream"), randomName("group")

		_, err := broker.Append(ctx, stream, []port.Field{{Name: "message", Value: "early"}})
		require.NoError(t, err)
		require.NoError(t, broker.EnsureGroup(ctx, stream, group))

		entries, err := broker.ReadGroup(ctx, stream, group, "c1", 10, 100*time.Millisecond)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "early", entries[0].Fields[0].Value)
	})

	t.Run("read ack delete", func(t *testing.T) {
		ctx := t.Context()
		stream, group := randomName("stream"), randomName("group")
		require.NoError(t, broker.EnsureGroup(ctx, stream, group))

		id, err := broker.Append(ctx, stream, []port.Field{{Name: "message", Value: `{"k":1}`}})
		require.NoError(t, err)

		entries, err := broker.ReadGroup(ctx, stream, group, "c1", 1, 100*time.Millisecond)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, id, entries[0].ID)
		assert.EqualValues(t, 1, entries[0].Deliveries)
		assert.Equal(t, []port.Field{{Name: "message", Value: `{"k":1}`}}, entries[0].Fields)

		again, err := broker.ReadGroup(ctx, stream, group, "c2", 1, 50*time.Millisecond)
		require.NoError(t, err)
		assert.Empty(t, again, "an entry is delivered once per group")

		require.NoError(t, broker.Ack(ctx, stream, group, id))
		require.NoError(t, broker.Delete(ctx, stream, id))

		claimed, err := broker.ClaimStale(ctx, stream, group, "c2", 0, 10)
		require.NoError(t, err)
		assert.Empty(t, claimed)
	})

	t.Run("claim stale counts deliveries", func(t *testing.T) {
		ctx := t.Context()
		stream, group := randomName("stream"), randomName("group")
		require.NoError(t, broker.EnsureGroup(ctx, stream, group))

		id, err := broker.Append(ctx, stream, []port.Field{{Name: "message", Value: "x"}})
		require.NoError(t, err)

		_, err = broker.ReadGroup(ctx, stream, group, "c1", 1, 100*time.Millisecond)
		require.NoError(t, err)

		claimed, err := broker.ClaimStale(ctx, stream, group, "c2", 0, 10)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, id, claimed[0].ID)
		assert.EqualValues(t, 2, claimed[0].Deliveries)

		notIdle, err := broker.ClaimStale(ctx, stream, group, "c3", time.Hour, 10)
		require.NoError(t, err)
		assert.Empty(t, notIdle)
	})
}

func randomName(prefix string) string {
	return prefix + "-" + gofakeit.UUID()
}
