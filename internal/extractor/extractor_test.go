package extractor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"byd-analyzer-go/internal/apperr"
)

// createExportDB создает фикстуру файла выгрузки с одной таблицей
func createExportDB(t *testing.T, table string, statements []string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "export.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`CREATE TABLE `+table+` (
		_id INTEGER,
		start_timestamp INTEGER,
		end_timestamp INTEGER,
		duration INTEGER,
		trip REAL,
		electricity REAL,
		fuel REAL
	)`).Error)

	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	return path
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestExtractReadsRows(t *testing.T) {
	path := createExportDB(t, "energy_consumption", []string{
		`INSERT INTO energy_consumption VALUES (1, 1700000000, 1700001800, 1800, 12.5, 2.1, 0)`,
		`INSERT INTO energy_consumption VALUES (2, 1700010000, 1700011200, 1200, 4.0, 0.8, 0)`,
	})

	data, err := NewExtractor(testLogger()).Extract(path)
	require.NoError(t, err)

	assert.Equal(t, "energy_consumption", data.Table)
	require.Len(t, data.Records, 2)
	assert.True(t, data.HasColumn("trip"))
	assert.True(t, data.HasColumn("electricity"))

	first := data.Records[0]
	require.NotNil(t, first.StartTimestamp)
	assert.Equal(t, float64(1700000000), *first.StartTimestamp)
	require.NotNil(t, first.Distance)
	assert.Equal(t, 12.5, *first.Distance)
	require.NotNil(t, first.OriginalID)
	assert.Equal(t, int64(1), *first.OriginalID)
}

func TestExtractNullValuesStayAbsent(t *testing.T) {
	path := createExportDB(t, "consumption_data", []string{
		`INSERT INTO consumption_data (start_timestamp, end_timestamp, trip, electricity) VALUES (1700000000, 1700001800, 5.0, NULL)`,
	})

	data, err := NewExtractor(testLogger()).Extract(path)
	require.NoError(t, err)

	require.Len(t, data.Records, 1)
	assert.Nil(t, data.Records[0].Electricity)
	assert.Nil(t, data.Records[0].Fuel)
	require.NotNil(t, data.Records[0].Distance)
}

func TestExtractPathWithURIMetacharacters(t *testing.T) {
	src := createExportDB(t, "energy_consumption", []string{
		`INSERT INTO energy_consumption VALUES (1, 1700000000, 1700001800, 1800, 12.5, 2.1, 0)`,
	})

	// Имя файла с символами разбора URI не должно ломать mode=ro
	weird := filepath.Join(filepath.Dir(src), "export?v=2#final.db")
	require.NoError(t, os.Rename(src, weird))

	data, err := NewExtractor(testLogger()).Extract(weird)
	require.NoError(t, err)
	require.Len(t, data.Records, 1)
	assert.Equal(t, 12.5, *data.Records[0].Distance)
}

func TestExtractEmptyTable(t *testing.T) {
	path := createExportDB(t, "energy_consumption", nil)

	_, err := NewExtractor(testLogger()).Extract(path)
	require.Error(t, err)

	var extractionErr *apperr.ExtractionError
	assert.ErrorAs(t, err, &extractionErr)
}

func TestExtractGarbageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.db")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a sqlite file"), 0644))

	_, err := NewExtractor(testLogger()).Extract(path)
	require.Error(t, err)

	var extractionErr *apperr.ExtractionError
	assert.ErrorAs(t, err, &extractionErr)
}
