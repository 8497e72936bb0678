package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/lethanhtung0208/stock/internal/adapters/storage"
	"github.com/lethanhtung0208/stock/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var session = time.Date(2024, 10, 17, 9, 0, 4, 0, time.UTC)

func newDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteStorage_Tickers(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveTicker(ctx, 30, "005930"))
	require.NoError(t, db.SaveTicker(ctx, 7, "000660"))
	require.NoError(t, db.SaveTicker(ctx, 30, "005930"))

	ids, err := db.FetchTickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{7, 30}, ids)
}

func TestSQLiteStorage_SnapshotRoundTrip(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	snap := domain.Snapshot{
		1: {CurrentPrice: 10000, Volume: 1e6, AskQtyTotal: 96000, BidQtyTotal: 104000, AskPrice: 10010, BidPrice: 10000},
		2: {CurrentPrice: 520, Volume: 8e4, AskQtyTotal: 1000, BidQtyTotal: 900, AskPrice: 521, BidPrice: 519},
	}
	require.NoError(t, db.SaveSnapshot(ctx, session, snap))

	got, err := db.FetchSnapshot(ctx, nil, session)
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	// filtro por tickers
	got, err = db.FetchSnapshot(ctx, []int{2, 99}, session)
	require.NoError(t, err)
	assert.Equal(t, domain.Snapshot{2: snap[2]}, got)

	// instante sin filas
	got, err = db.FetchSnapshot(ctx, nil, session.Add(8*time.Second))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteStorage_Extremes(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	asOf := time.Date(2024, 10, 17, 0, 0, 0, 0, time.UTC)

	closes := map[int]float64{0: 100, 1: 104, 5: 96, 10: 110} // días antes de asOf
	for back, c := range closes {
		require.NoError(t, db.SaveHistoricalClose(ctx, 1, asOf.AddDate(0, 0, -back), c))
	}

	// ventana de 5 días: 100, 104, 96 (el día 5 entra, inclusive)
	high, err := db.IsHighest(ctx, 1, 103, asOf, 5, 0.01)
	require.NoError(t, err)
	assert.True(t, high, "103 ≥ 104 × 0.99")

	high, err = db.IsHighest(ctx, 1, 102, asOf, 5, 0.01)
	require.NoError(t, err)
	assert.False(t, high)

	low, err := db.IsLowest(ctx, 1, 96.9, asOf, 5, 0.01)
	require.NoError(t, err)
	assert.True(t, low, "96.9 ≤ 96 × 1.01")

	// ventana de 10 días incluye el 110
	high, err = db.IsHighest(ctx, 1, 105, asOf, 10, 0.01)
	require.NoError(t, err)
	assert.False(t, high)

	// ventana de 4 días deja fuera el 96: el mínimo pasa a 100
	low, err = db.IsLowest(ctx, 1, 98, asOf, 5, 0.01)
	require.NoError(t, err)
	assert.False(t, low)
	low, err = db.IsLowest(ctx, 1, 98, asOf, 4, 0.01)
	require.NoError(t, err)
	assert.True(t, low)
}

func TestSQLiteStorage_ExtremesWithoutHistory(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	high, err := db.IsHighest(ctx, 42, 1000, session, 78, 0.007)
	require.NoError(t, err)
	assert.False(t, high)

	low, err := db.IsLowest(ctx, 42, 1000, session, 78, 0.007)
	require.NoError(t, err)
	assert.False(t, low)
}

func TestSQLiteStorage_ExtremesAreMemoizedPerDay(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	asOf := time.Date(2024, 10, 17, 10, 0, 0, 0, time.UTC)
	require.NoError(t, db.SaveHistoricalClose(ctx, 1, asOf, 100))

	high, err := db.IsHighest(ctx, 1, 100, asOf, 5, 0)
	require.NoError(t, err)
	assert.True(t, high)

	// un cierre nuevo no cambia la respuesta del mismo día
	require.NoError(t, db.SaveHistoricalClose(ctx, 1, asOf.AddDate(0, 0, -1), 200))
	high, err = db.IsHighest(ctx, 1, 100, asOf.Add(time.Hour), 5, 0)
	require.NoError(t, err)
	assert.True(t, high)
}

func TestSQLiteStorage_ExtremesHonourContext(t *testing.T) {
	db := newDB(t)
	db.LimitExtremes(0.001)

	ctx := context.Background()
	_, err := db.IsHighest(ctx, 1, 100, session, 5, 0)
	require.NoError(t, err, "first lookup uses the burst")

	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = db.IsLowest(ctx, 2, 100, session, 5, 0)
	assert.Error(t, err)
}
