package repository

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"byd-analyzer-go/internal/database"
	"byd-analyzer-go/internal/model"
)

func newTestStore(t *testing.T) *database.Store {
	t.Helper()

	store, err := database.Connect(filepath.Join(t.TempDir(), "historical.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })

	return store
}

// makeTrip собирает кандидата с корректными производными полями
func makeTrip(start, end int64, distance, electricity float64, datetime string) model.Trip {
	month := 0
	day := 0
	if len(datetime) >= 10 {
		fmt.Sscanf(datetime[5:7], "%d", &month)
		fmt.Sscanf(datetime[8:10], "%d", &day)
	}
	return model.Trip{
		Month:          month,
		Date:           day,
		StartTimestamp: start,
		EndTimestamp:   end,
		Duration:       end - start,
		Distance:       distance,
		Electricity:    electricity,
		Efficiency:     distance / electricity,
		StartDatetime:  datetime,
		EndDatetime:    datetime,
		FileHash:       "hash-a",
	}
}

func TestIngestCountsDuplicatesInsideBatch(t *testing.T) {
	repo := NewTripRepository(newTestStore(t))

	trips := make([]model.Trip, 0, 10)
	for i := int64(0); i < 9; i++ {
		trips = append(trips, makeTrip(1700000000+i*1000, 1700000600+i*1000, 5+float64(i), 1, "2023-11-14T10:00:00"))
	}
	// Десятая строка повторяет кортеж первой
	trips = append(trips, makeTrip(1700000000, 1700000600, 5, 1, "2023-11-14T10:00:00"))

	res, err := repo.Ingest(trips, "file_a.db", "hash-a")
	require.NoError(t, err)

	assert.Equal(t, 9, res.Added)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 10, res.Total)
	assert.True(t, res.FileWasNew)
}

func TestIngestIdempotent(t *testing.T) {
	repo := NewTripRepository(newTestStore(t))

	trips := []model.Trip{
		makeTrip(1700000000, 1700000600, 5, 1, "2023-11-14T10:00:00"),
		makeTrip(1700010000, 1700010600, 8, 2, "2023-11-14T13:00:00"),
	}

	first, err := repo.Ingest(trips, "file_a.db", "hash-a")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Added)
	assert.True(t, first.FileWasNew)

	second, err := repo.Ingest(trips, "file_a.db", "hash-a")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Added)
	assert.Equal(t, 2, second.Skipped)
	assert.False(t, second.FileWasNew)

	status, err := repo.Status()
	require.NoError(t, err)
	assert.Equal(t, int64(2), status.TotalTrips)
}

func TestIngestNewFileWithKnownTrips(t *testing.T) {
	repo := NewTripRepository(newTestStore(t))

	trips := []model.Trip{makeTrip(1700000000, 1700000600, 5, 1, "2023-11-14T10:00:00")}

	_, err := repo.Ingest(trips, "file_a.db", "hash-a")
	require.NoError(t, err)

	// Другой файл с теми же поездками: хеш новый, поездок ноль
	res, err := repo.Ingest(trips, "file_b.db", "hash-b")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Added)
	assert.True(t, res.FileWasNew)

	files, err := repo.ListFiles()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, 0, files[1].TripsAdded)
}

func TestIngestAccumulatesProvenance(t *testing.T) {
	repo := NewTripRepository(newTestStore(t))

	_, err := repo.Ingest([]model.Trip{makeTrip(1700000000, 1700000600, 5, 1, "2023-11-14T10:00:00")}, "file_a.db", "hash-a")
	require.NoError(t, err)

	// Тот же файл приносит одну старую и одну новую поездку
	res, err := repo.Ingest([]model.Trip{
		makeTrip(1700000000, 1700000600, 5, 1, "2023-11-14T10:00:00"),
		makeTrip(1700020000, 1700020600, 3, 1, "2023-11-14T16:00:00"),
	}, "file_a.db", "hash-a")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Skipped)

	files, err := repo.ListFiles()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, 2, files[0].TripsAdded)
}

func TestUniquenessEnforcedByEngine(t *testing.T) {
	store := newTestStore(t)
	repo := NewTripRepository(store)

	trip := makeTrip(1700000000, 1700000600, 5, 1, "2023-11-14T10:00:00")
	_, err := repo.Ingest([]model.Trip{trip}, "file_a.db", "hash-a")
	require.NoError(t, err)

	// Прямая вставка дубликата мимо ON CONFLICT должна падать
	err = store.View(func(db *gorm.DB) error {
		dup := makeTrip(1700000000, 1700000600, 5, 1, "2023-11-14T10:00:00")
		return db.Create(&dup).Error
	})
	require.Error(t, err)
}

func TestListTripsOrderAndSpeed(t *testing.T) {
	repo := NewTripRepository(newTestStore(t))

	_, err := repo.Ingest([]model.Trip{
		makeTrip(1700000000, 1700003600, 30, 5, "2023-11-14T10:00:00"),
		makeTrip(1700100000, 1700101800, 10, 2, "2023-11-15T14:00:00"),
	}, "file_a.db", "hash-a")
	require.NoError(t, err)

	desc, err := repo.ListTrips(0, "DESC")
	require.NoError(t, err)
	require.Len(t, desc, 2)
	assert.Equal(t, 10.0, desc[0].Trip)
	assert.Equal(t, 11, desc[0].MonthNum)
	assert.Equal(t, 15, desc[0].DayNum)
	// 30 км за час
	assert.InDelta(t, 30.0, desc[1].AvgSpeed, 0.01)
	// 10 км за полчаса
	assert.InDelta(t, 20.0, desc[0].AvgSpeed, 0.01)

	asc, err := repo.ListTrips(1, "ASC")
	require.NoError(t, err)
	require.Len(t, asc, 1)
	assert.Equal(t, 30.0, asc[0].Trip)
}

func TestStatsBucketsAndMonthly(t *testing.T) {
	repo := NewTripRepository(newTestStore(t))

	_, err := repo.Ingest([]model.Trip{
		makeTrip(1700000000, 1700000600, 3, 1, "2023-11-14T10:00:00"),   // short
		makeTrip(1700100000, 1700100600, 10, 2, "2023-11-15T10:00:00"),  // medium
		makeTrip(1700200000, 1700200600, 25, 5, "2023-11-16T10:00:00"),  // long
		makeTrip(1690000000, 1690000600, 12, 3, "2023-07-22T10:00:00"),  // другой месяц
	}, "file_a.db", "hash-a")
	require.NoError(t, err)

	stats, err := repo.Stats()
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.General.TotalTrips)
	assert.InDelta(t, 50.0, stats.General.TotalDistance, 0.001)
	assert.InDelta(t, 11.0, stats.General.TotalConsumption, 0.001)

	require.Len(t, stats.ByDistance, 3)
	assert.Equal(t, "short (<5km)", stats.ByDistance[0].Category)
	assert.Equal(t, "medium (5-20km)", stats.ByDistance[1].Category)
	assert.Equal(t, "long (>20km)", stats.ByDistance[2].Category)
	assert.Equal(t, int64(2), stats.ByDistance[1].Count)

	require.Len(t, stats.Monthly, 2)
	assert.Equal(t, "2023-11", stats.Monthly[0].Month) // Свежие месяцы первыми
	assert.Equal(t, int64(3), stats.Monthly[0].TripCount)
	assert.Equal(t, "2023-07", stats.Monthly[1].Month)
}

func TestTotalsForRange(t *testing.T) {
	repo := NewTripRepository(newTestStore(t))

	_, err := repo.Ingest([]model.Trip{
		makeTrip(1700000000, 1700000600, 10, 2, "2023-11-14T10:00:00"),
		makeTrip(1700100000, 1700100600, 20, 4, "2023-11-15T10:00:00"),
		makeTrip(1690000000, 1690000600, 5, 1, "2023-07-22T10:00:00"),
	}, "file_a.db", "hash-a")
	require.NoError(t, err)

	all, err := repo.TotalsForRange("", "")
	require.NoError(t, err)
	assert.InDelta(t, 35.0, all.TotalDistance, 0.001)

	november, err := repo.TotalsForRange("2023-11-01", "2023-11-30")
	require.NoError(t, err)
	assert.InDelta(t, 30.0, november.TotalDistance, 0.001)
	assert.InDelta(t, 6.0, november.TotalConsumption, 0.001)
}

func TestStatusEmptyStore(t *testing.T) {
	repo := NewTripRepository(newTestStore(t))

	status, err := repo.Status()
	require.NoError(t, err)

	assert.Equal(t, int64(0), status.TotalTrips)
	assert.Equal(t, int64(0), status.TotalFiles)
	assert.Equal(t, NoDataSentinel, status.FirstTrip)
	assert.Equal(t, NoDataSentinel, status.LastTrip)
}

func TestStatusRange(t *testing.T) {
	repo := NewTripRepository(newTestStore(t))

	_, err := repo.Ingest([]model.Trip{
		makeTrip(1700000000, 1700000600, 10, 2, "2023-11-14T10:00:00"),
		makeTrip(1690000000, 1690000600, 5, 1, "2023-07-22T10:00:00"),
	}, "file_a.db", "hash-a")
	require.NoError(t, err)

	status, err := repo.Status()
	require.NoError(t, err)
	assert.Equal(t, "2023-07-22T10:00:00", status.FirstTrip)
	assert.Equal(t, "2023-11-14T10:00:00", status.LastTrip)
	assert.Equal(t, int64(1), status.UniqueFiles)
}
