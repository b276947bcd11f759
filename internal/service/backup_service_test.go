package service

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"byd-analyzer-go/internal/apperr"
	"byd-analyzer-go/internal/database"
	"byd-analyzer-go/internal/model"
	"byd-analyzer-go/internal/repository"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newServiceStore(t *testing.T) (*database.Store, repository.TripRepository, string) {
	t.Helper()

	dataDir := t.TempDir()
	store, err := database.Connect(filepath.Join(dataDir, "historical.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })

	return store, repository.NewTripRepository(store), dataDir
}

func tripFixture(start int64, distance float64, datetime string) model.Trip {
	return model.Trip{
		Month:          11,
		Date:           14,
		StartTimestamp: start,
		EndTimestamp:   start + 600,
		Duration:       600,
		Distance:       distance,
		Electricity:    1,
		Efficiency:     distance,
		StartDatetime:  datetime,
		EndDatetime:    datetime,
		FileHash:       "hash-a",
	}
}

func TestBackupExportInspectRestore(t *testing.T) {
	store, repo, dataDir := newServiceStore(t)
	svc := NewBackupService(store, quietLogger(), dataDir, "3.1")

	_, err := repo.Ingest([]model.Trip{
		tripFixture(1700000000, 5, "2023-11-14T10:00:00"),
		tripFixture(1700010000, 8, "2023-11-14T13:00:00"),
	}, "file_a.db", "hash-a")
	require.NoError(t, err)

	path, filename, manifest, err := svc.Export()
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Contains(t, filename, "BYD_Backup_")
	assert.Equal(t, int64(2), manifest.TotalTrips)
	assert.Equal(t, int64(1), manifest.TotalFiles)
	assert.Equal(t, "full", manifest.BackupType)

	// Inspect не меняет состояние хранилища
	inspected, err := svc.Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, manifest.TotalTrips, inspected.TotalTrips)
	assert.Equal(t, manifest.Version, inspected.Version)

	// Третья поездка после снимка пропадет при восстановлении
	_, err = repo.Ingest([]model.Trip{tripFixture(1700020000, 3, "2023-11-14T16:00:00")}, "file_b.db", "hash-b")
	require.NoError(t, err)

	status, err := repo.Status()
	require.NoError(t, err)
	require.Equal(t, int64(3), status.TotalTrips)

	restored, err := svc.Restore(path)
	require.NoError(t, err)
	assert.Equal(t, int64(2), restored.TotalTrips)

	status, err = repo.Status()
	require.NoError(t, err)
	assert.Equal(t, int64(2), status.TotalTrips)
	assert.Equal(t, int64(1), status.TotalFiles)
}

// payloadStatus распаковывает полезную нагрузку архива и читает
// ее состояние как обычное хранилище
func payloadStatus(t *testing.T, archivePath string) *repository.StoreStatus {
	t.Helper()

	reader, err := zip.OpenReader(archivePath)
	require.NoError(t, err)
	defer reader.Close()

	var entry *zip.File
	for _, f := range reader.File {
		if f.Name == "historical.db" {
			entry = f
		}
	}
	require.NotNil(t, entry)

	rc, err := entry.Open()
	require.NoError(t, err)
	defer rc.Close()

	dst := filepath.Join(t.TempDir(), "payload.db")
	out, err := os.Create(dst)
	require.NoError(t, err)
	_, err = io.Copy(out, rc)
	require.NoError(t, err)
	require.NoError(t, out.Close())

	snap, err := database.Connect(dst)
	require.NoError(t, err)
	defer snap.Close()

	status, err := repository.NewTripRepository(snap).Status()
	require.NoError(t, err)
	return status
}

func TestExportUnderConcurrentIngest(t *testing.T) {
	store, repo, dataDir := newServiceStore(t)
	svc := NewBackupService(store, quietLogger(), dataDir, "3.1")

	_, err := repo.Ingest([]model.Trip{tripFixture(1700000000, 5, "2023-11-14T10:00:00")}, "file_a.db", "hash-a")
	require.NoError(t, err)

	// Параллельные вставки не должны портить снимок
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := int64(1); i <= 30; i++ {
			_, _ = repo.Ingest([]model.Trip{tripFixture(1700000000+i*1000, 5, "2023-11-14T10:00:00")}, "file_a.db", "hash-a")
		}
	}()

	path, _, manifest, err := svc.Export()
	<-done
	require.NoError(t, err)

	// Полезная нагрузка читается, а счетчики манифеста совпадают с ней
	status := payloadStatus(t, path)
	assert.Equal(t, manifest.TotalTrips, status.TotalTrips)
	assert.Equal(t, manifest.TotalFiles, status.TotalFiles)
	assert.Equal(t, manifest.FirstTrip, status.FirstTrip)
	assert.Equal(t, manifest.LastTrip, status.LastTrip)
	assert.GreaterOrEqual(t, status.TotalTrips, int64(1))
}

func TestRestoreLeavesSafetyCopy(t *testing.T) {
	store, repo, dataDir := newServiceStore(t)
	svc := NewBackupService(store, quietLogger(), dataDir, "3.1")

	_, err := repo.Ingest([]model.Trip{tripFixture(1700000000, 5, "2023-11-14T10:00:00")}, "file_a.db", "hash-a")
	require.NoError(t, err)

	path, _, _, err := svc.Export()
	require.NoError(t, err)

	_, err = svc.Restore(path)
	require.NoError(t, err)

	matches, err := filepath.Glob(store.Path() + ".backup_*")
	require.NoError(t, err)
	assert.NotEmpty(t, matches)
}

func TestRestoreRejectsArchiveWithoutManifest(t *testing.T) {
	store, repo, dataDir := newServiceStore(t)
	svc := NewBackupService(store, quietLogger(), dataDir, "3.1")

	_, err := repo.Ingest([]model.Trip{tripFixture(1700000000, 5, "2023-11-14T10:00:00")}, "file_a.db", "hash-a")
	require.NoError(t, err)

	// Архив без манифеста
	badPath := filepath.Join(dataDir, "bad.backup")
	f, err := os.Create(badPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("readme.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("not a backup"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = svc.Restore(badPath)
	require.Error(t, err)

	var snapshotErr *apperr.InvalidSnapshotError
	assert.ErrorAs(t, err, &snapshotErr)

	// Хранилище не изменилось
	status, err := repo.Status()
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.TotalTrips)
}

func TestRestoreRejectsGarbageFile(t *testing.T) {
	store, _, dataDir := newServiceStore(t)
	svc := NewBackupService(store, quietLogger(), dataDir, "3.1")

	badPath := filepath.Join(dataDir, "garbage.backup")
	require.NoError(t, os.WriteFile(badPath, []byte("definitely not a zip"), 0644))

	_, err := svc.Restore(badPath)
	require.Error(t, err)

	var snapshotErr *apperr.InvalidSnapshotError
	assert.ErrorAs(t, err, &snapshotErr)
}
