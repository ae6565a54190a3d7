package loadings

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client, zerolog.Nop())

	table := sampleTable()
	data, err := encodeTable(table)
	require.NoError(t, err)

	t.Run("persist writes one hash field", func(t *testing.T) {
		mock.ExpectHSet("factorlab:loadings:beta", "20180131", string(data)).SetVal(1)

		require.NoError(t, store.Persist(ctx, "beta", "20180131", table))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("load decodes the field", func(t *testing.T) {
		mock.ExpectHGet("factorlab:loadings:beta", "20180131").SetVal(string(data))

		got, err := store.Load(ctx, "beta", "20180131")
		require.NoError(t, err)
		assert.Equal(t, table, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing field is an empty table", func(t *testing.T) {
		mock.ExpectHGet("factorlab:loadings:beta", "20180228").RedisNil()

		got, err := store.Load(ctx, "beta", "20180228")
		require.NoError(t, err)
		assert.True(t, got.IsEmpty())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("garbage is corrupt", func(t *testing.T) {
		mock.ExpectHGet("factorlab:loadings:beta", "20180330").SetVal("\xc1")

		_, err := store.Load(ctx, "beta", "20180330")
		assert.ErrorIs(t, err, ErrCorrupt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("connection errors propagate", func(t *testing.T) {
		mock.ExpectHGet("factorlab:loadings:beta", "20180427").SetErr(errors.New("connection refused"))

		_, err := store.Load(ctx, "beta", "20180427")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCorrupt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEncodeTable_Deterministic(t *testing.T) {
	a, err := encodeTable(sampleTable())
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		b, err := encodeTable(sampleTable())
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}
