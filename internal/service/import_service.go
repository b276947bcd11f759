package service

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"byd-analyzer-go/internal/apperr"
	"byd-analyzer-go/internal/extractor"
	"byd-analyzer-go/internal/normalizer"
	"byd-analyzer-go/internal/repository"
)

// Статусы результата загрузки
const (
	StatusSuccess = "success"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// ImportResult структурированный итог загрузки файла выгрузки
type ImportResult struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	TripsAdded   int    `json:"trips_added"`
	TripsSkipped int    `json:"trips_skipped"`
	TotalInFile  int    `json:"total_in_file"`
	FileWasNew   bool   `json:"file_was_new"`
}

// ImportService оркестрирует конвейер загрузки:
// извлечение строк -> нормализация -> вставка в хранилище
type ImportService struct {
	extractor  *extractor.Extractor
	normalizer *normalizer.Normalizer
	repo       repository.TripRepository
	logger     *logrus.Logger
}

// NewImportService создает новый сервис загрузки
func NewImportService(ext *extractor.Extractor, norm *normalizer.Normalizer, repo repository.TripRepository, logger *logrus.Logger) *ImportService {
	return &ImportService{
		extractor:  ext,
		normalizer: norm,
		repo:       repo,
		logger:     logger,
	}
}

// ProcessFile обрабатывает один файл выгрузки. Ошибки извлечения и схемы
// прерывают загрузку целиком и не трогают хранилище; дубликаты строк
// считаются пропущенными, а не ошибочными
func (s *ImportService) ProcessFile(path, filename string) (*ImportResult, error) {
	fileHash, err := FileMD5(path)
	if err != nil {
		s.logger.Errorf("Ошибка вычисления хеша файла: %v", err)
		return errorResult(fmt.Sprintf("не удалось прочитать файл: %v", err)), err
	}

	data, err := s.extractor.Extract(path)
	if err != nil {
		s.logger.Errorf("Ошибка чтения файла выгрузки: %v", err)
		return errorResult(err.Error()), err
	}

	trips, dropped, err := s.normalizer.Normalize(data, fileHash)
	if err != nil {
		var schemaErr *apperr.SchemaError
		if errors.As(err, &schemaErr) {
			s.logger.Errorf("Колонка отсутствует: %s", schemaErr.Field)
		}
		return errorResult(err.Error()), err
	}

	if dropped > 0 {
		s.logger.Warnf("Пропущено %d строк с пустыми обязательными значениями", dropped)
	}

	ingest, err := s.repo.Ingest(trips, filename, fileHash)
	if err != nil {
		s.logger.Errorf("Ошибка вставки поездок: %v", err)
		return errorResult(err.Error()), err
	}

	s.logger.Infof("Обработано: %d новых, %d дубликатов", ingest.Added, ingest.Skipped)

	result := &ImportResult{
		TripsAdded:   ingest.Added,
		TripsSkipped: ingest.Skipped + dropped,
		TotalInFile:  len(data.Records),
		FileWasNew:   ingest.FileWasNew,
	}
	if ingest.Added > 0 {
		result.Status = StatusSuccess
		result.Message = fmt.Sprintf("Файл обработан: добавлено %d новых поездок", ingest.Added)
	} else {
		result.Status = StatusSkipped
		result.Message = "Новых поездок не добавлено (все уже существуют)"
	}

	return result, nil
}

// FileMD5 вычисляет MD5-хеш содержимого файла
func FileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func errorResult(message string) *ImportResult {
	return &ImportResult{
		Status:  StatusError,
		Message: message,
	}
}
