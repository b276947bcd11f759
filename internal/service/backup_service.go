package service

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/flate"
	"github.com/sirupsen/logrus"

	"byd-analyzer-go/internal/apperr"
	"byd-analyzer-go/internal/database"
	"byd-analyzer-go/internal/model"
	"byd-analyzer-go/internal/repository"
)

// Имена записей внутри архива резервной копии
const (
	manifestEntry  = "manifest.json"
	databaseEntry  = "historical.db"
	filesListEntry = "files_list.json"
)

const (
	backupVersion  = "1.0"
	backupTypeFull = "full"
)

// Manifest метаданные резервной копии. Поле version позволяет
// эволюционировать формат архива
type Manifest struct {
	Version    string `json:"version"`
	CreatedAt  string `json:"created_at"`
	AppVersion string `json:"app_version"`
	TotalTrips int64  `json:"total_trips"`
	TotalFiles int64  `json:"total_files"`
	FirstTrip  string `json:"first_trip"`
	LastTrip   string `json:"last_trip"`
	BackupType string `json:"backup_type"`
}

// backupFileEntry запись о загруженном файле внутри files_list.json
type backupFileEntry struct {
	Filename   string `json:"filename"`
	Hash       string `json:"hash"`
	UploadDate string `json:"upload_date"`
	TripsAdded int    `json:"trips_added"`
}

// BackupService создает, проверяет и восстанавливает резервные копии хранилища
type BackupService struct {
	store      *database.Store
	logger     *logrus.Logger
	dataDir    string
	appVersion string
}

// NewBackupService создает новый сервис резервного копирования
func NewBackupService(store *database.Store, logger *logrus.Logger, dataDir, appVersion string) *BackupService {
	return &BackupService{
		store:      store,
		logger:     logger,
		dataDir:    dataDir,
		appVersion: appVersion,
	}
}

// Export собирает сжатый архив: снимок хранилища, манифест и список
// загруженных файлов. Снимок снимается первым, а манифест считается
// уже по нему, поэтому счетчики манифеста всегда совпадают с полезной
// нагрузкой архива. Возвращает путь, имя файла и манифест
func (s *BackupService) Export() (string, string, *Manifest, error) {
	scratchDir := filepath.Join(s.dataDir, "export_"+uuid.New().String())
	if err := os.MkdirAll(scratchDir, 0755); err != nil {
		return "", "", nil, &apperr.BackupError{Err: err}
	}
	defer os.RemoveAll(scratchDir)

	stagedPath := filepath.Join(scratchDir, databaseEntry)
	if err := s.store.Snapshot(stagedPath); err != nil {
		return "", "", nil, &apperr.BackupError{Err: err}
	}

	status, files, err := snapshotInfo(stagedPath)
	if err != nil {
		return "", "", nil, &apperr.BackupError{Err: err}
	}

	manifest := &Manifest{
		Version:    backupVersion,
		CreatedAt:  time.Now().Format(time.RFC3339),
		AppVersion: s.appVersion,
		TotalTrips: status.TotalTrips,
		TotalFiles: status.TotalFiles,
		FirstTrip:  status.FirstTrip,
		LastTrip:   status.LastTrip,
		BackupType: backupTypeFull,
	}

	filename := fmt.Sprintf("BYD_Backup_%s.backup", time.Now().Format("20060102_150405"))
	path := filepath.Join(s.dataDir, filename)

	if err := s.writeArchive(path, stagedPath, manifest, files); err != nil {
		os.Remove(path)
		return "", "", nil, &apperr.BackupError{Err: err}
	}

	s.logger.Infof("Резервная копия создана: %s (поездок: %d, файлов: %d)",
		filename, manifest.TotalTrips, manifest.TotalFiles)

	return path, filename, manifest, nil
}

// snapshotInfo читает состояние и список загруженных файлов из снимка
func snapshotInfo(path string) (*repository.StoreStatus, []model.UploadedFile, error) {
	snap, err := database.Connect(path)
	if err != nil {
		return nil, nil, err
	}
	defer snap.Close()

	repo := repository.NewTripRepository(snap)

	status, err := repo.Status()
	if err != nil {
		return nil, nil, err
	}

	files, err := repo.ListFiles()
	if err != nil {
		return nil, nil, err
	}

	return status, files, nil
}

// writeArchive пишет архив резервной копии на диск
func (s *BackupService) writeArchive(path, stagedPath string, manifest *Manifest, files []model.UploadedFile) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	// Deflate через klauspost/compress: заметно быстрее stdlib на том же уровне
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	dbEntry, err := zw.Create(databaseEntry)
	if err != nil {
		return fmt.Errorf("failed to create database entry: %w", err)
	}
	src, err := os.Open(stagedPath)
	if err != nil {
		return fmt.Errorf("failed to open staged snapshot: %w", err)
	}
	if _, err := io.Copy(dbEntry, src); err != nil {
		src.Close()
		return fmt.Errorf("failed to copy snapshot into backup: %w", err)
	}
	src.Close()

	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := writeEntry(zw, manifestEntry, manifestData); err != nil {
		return err
	}

	entries := make([]backupFileEntry, len(files))
	for i, file := range files {
		entries[i] = backupFileEntry{
			Filename:   file.Filename,
			Hash:       file.FileHash,
			UploadDate: file.UploadDate.Format(time.RFC3339),
			TripsAdded: file.TripsAdded,
		}
	}
	filesData, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal files list: %w", err)
	}
	if err := writeEntry(zw, filesListEntry, filesData); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize backup archive: %w", err)
	}

	return nil
}

// Inspect читает манифест архива, не трогая состояние хранилища
func (s *BackupService) Inspect(path string) (*Manifest, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, &apperr.InvalidSnapshotError{Reason: "не удалось открыть архив"}
	}
	defer reader.Close()

	return readManifest(&reader.Reader)
}

// Restore восстанавливает хранилище из архива. Полезная нагрузка
// полностью распаковывается и проверяется до подмены живого файла;
// перед подменой снимается страховочная копия текущего хранилища.
// На время подмены хранилище заблокировано эксклюзивно
func (s *BackupService) Restore(path string) (*Manifest, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, &apperr.InvalidSnapshotError{Reason: "не удалось открыть архив"}
	}
	defer reader.Close()

	manifest, err := readManifest(&reader.Reader)
	if err != nil {
		return nil, err
	}

	payload := findEntry(&reader.Reader, databaseEntry)
	if payload == nil {
		return nil, &apperr.InvalidSnapshotError{Reason: "отсутствует " + databaseEntry}
	}

	s.logger.Infof("Восстанавливаем резервную копию: версия %s, создана %s, поездок %d",
		manifest.Version, manifest.CreatedAt, manifest.TotalTrips)

	// Распаковываем полезную нагрузку во временную папку
	scratchDir := filepath.Join(s.dataDir, "restore_"+uuid.New().String())
	if err := os.MkdirAll(scratchDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratchDir)

	stagedPath := filepath.Join(scratchDir, databaseEntry)
	if err := extractEntry(payload, stagedPath); err != nil {
		return nil, fmt.Errorf("failed to stage database payload: %w", err)
	}

	err = s.store.Exclusive(func(livePath string) error {
		// Страховочная копия текущего хранилища, если оно существует
		if _, statErr := os.Stat(livePath); statErr == nil {
			safetyPath := fmt.Sprintf("%s.backup_%s", livePath, time.Now().Format("20060102_150405"))
			if copyErr := copyFile(livePath, safetyPath); copyErr != nil {
				return fmt.Errorf("failed to create safety copy: %w", copyErr)
			}
			s.logger.Infof("Страховочная копия сохранена: %s", safetyPath)
		}

		// Подмена атомарна: полностью записываем рядом, затем переименовываем
		tmpPath := livePath + ".tmp"
		if copyErr := copyFile(stagedPath, tmpPath); copyErr != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to write new database: %w", copyErr)
		}
		if renameErr := os.Rename(tmpPath, livePath); renameErr != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to replace database: %w", renameErr)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("База данных восстановлена из резервной копии")
	return manifest, nil
}

// readManifest извлекает и разбирает манифест архива
func readManifest(r *zip.Reader) (*Manifest, error) {
	entry := findEntry(r, manifestEntry)
	if entry == nil {
		return nil, &apperr.InvalidSnapshotError{Reason: "отсутствует " + manifestEntry}
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, &apperr.InvalidSnapshotError{Reason: "не удалось открыть " + manifestEntry}
	}
	defer rc.Close()

	var manifest Manifest
	if err := json.NewDecoder(rc).Decode(&manifest); err != nil {
		return nil, &apperr.InvalidSnapshotError{Reason: "не удалось разобрать " + manifestEntry}
	}

	return &manifest, nil
}

// findEntry ищет запись архива по имени
func findEntry(r *zip.Reader, name string) *zip.File {
	for _, file := range r.File {
		if file.Name == name {
			return file
		}
	}
	return nil
}

// extractEntry распаковывает запись архива в файл
func extractEntry(entry *zip.File, dst string) error {
	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, rc)
	return err
}

// writeEntry добавляет запись с данными в архив
func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write entry %s: %w", name, err)
	}
	return nil
}

// copyFile копирует файл с сохранением содержимого на диске
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}

	return out.Sync()
}
