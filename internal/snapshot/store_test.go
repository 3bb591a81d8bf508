package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/lab-group/labdash/internal/shared"
)

func testSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	return &Snapshot{
		GeneratedAt: time.Date(2026, 8, 15, 6, 0, 0, 0, time.UTC),
		Source:      "test",
		Entities: map[string]*EntityData{
			"holding": {
				ID:   4,
				Name: "LAB Holding",
				Periods: map[string]PeriodFigures{
					"2026-07": {Revenue: 12500, Costs: 8100, DebitTotal: 50000, CreditTotal: 50000},
				},
			},
		},
	}
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestStoreEmpty(t *testing.T) {
	store := NewStore(newTestRedis(t), time.Hour)
	_, err := store.Current(context.Background())
	require.ErrorIs(t, err, shared.ErrNoSnapshot)
}

func TestStorePublishAndCurrent(t *testing.T) {
	store := NewStore(newTestRedis(t), time.Hour)
	snap := testSnapshot(t)
	require.NoError(t, store.Publish(context.Background(), snap))

	got, err := store.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, "LAB Holding", got.Entities["holding"].Name)
}

func TestStoreSharedThroughRedis(t *testing.T) {
	client := newTestRedis(t)
	writer := NewStore(client, time.Hour)
	require.NoError(t, writer.Publish(context.Background(), testSnapshot(t)))

	// A second process with the same Redis sees the published snapshot.
	reader := NewStore(client, time.Hour)
	got, err := reader.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, "test", got.Source)
	require.InDelta(t, 12500, got.Entities["holding"].Periods["2026-07"].Revenue, 0.001)
}

func TestStoreSeesRepublishedSnapshot(t *testing.T) {
	client := newTestRedis(t)
	worker := NewStore(client, time.Hour)
	web := NewStore(client, time.Hour)

	first := testSnapshot(t)
	first.Source = "odoo:run-1"
	require.NoError(t, worker.Publish(context.Background(), first))

	got, err := web.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, "odoo:run-1", got.Source)

	// The next refresh cycle must reach readers that already hold a copy.
	second := testSnapshot(t)
	second.Source = "odoo:run-2"
	second.GeneratedAt = first.GeneratedAt.Add(30 * time.Minute)
	require.NoError(t, worker.Publish(context.Background(), second))

	got, err = web.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, "odoo:run-2", got.Source)
	require.Equal(t, second.GeneratedAt, got.GeneratedAt)
}

func TestStoreServesMemoryWhenRedisKeyExpires(t *testing.T) {
	client := newTestRedis(t)
	store := NewStore(client, time.Hour)
	require.NoError(t, store.Publish(context.Background(), testSnapshot(t)))

	require.NoError(t, client.Del(context.Background(), redisKey).Err())

	got, err := store.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, "test", got.Source)
}

func TestStoreRejectsInvalid(t *testing.T) {
	store := NewStore(nil, time.Hour)
	err := store.Publish(context.Background(), &Snapshot{Source: "broken"})
	require.Error(t, err)

	_, err = store.Current(context.Background())
	require.ErrorIs(t, err, shared.ErrNoSnapshot)
}

func TestStoreMemoryOnly(t *testing.T) {
	store := NewStore(nil, time.Hour)
	require.NoError(t, store.Publish(context.Background(), testSnapshot(t)))
	got, err := store.Current(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got.Entities["holding"])
}
