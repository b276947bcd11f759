package service

import (
	"github.com/sirupsen/logrus"

	"byd-analyzer-go/internal/database"
	"byd-analyzer-go/internal/repository"
)

// SystemStatus расширенное состояние системы и хранилища
type SystemStatus struct {
	Database struct {
		TotalTrips       int64   `json:"total_trips"`
		TotalFiles       int64   `json:"total_files"`
		FirstTrip        string  `json:"first_trip"`
		LastTrip         string  `json:"last_trip"`
		TotalDistance    float64 `json:"total_distance"`
		TotalConsumption float64 `json:"total_consumption"`
		SizeBytes        int64   `json:"size_bytes"`
		SizeMB           float64 `json:"size_mb"`
	} `json:"database"`
	System struct {
		Version         string `json:"version"`
		BackupSupported bool   `json:"backup_supported"`
		ServerTime      string `json:"server_time"`
		Timezone        string `json:"timezone"`
	} `json:"system"`
}

// StatsService фасад над запросами чтения хранилища
type StatsService struct {
	repo   repository.TripRepository
	store  *database.Store
	logger *logrus.Logger
}

// NewStatsService создает новый сервис статистики
func NewStatsService(repo repository.TripRepository, store *database.Store, logger *logrus.Logger) *StatsService {
	return &StatsService{
		repo:   repo,
		store:  store,
		logger: logger,
	}
}

// Trips возвращает список поездок
func (s *StatsService) Trips(limit int, order string) ([]repository.TripRow, error) {
	return s.repo.ListTrips(limit, order)
}

// Consumption возвращает детальную статистику потребления
func (s *StatsService) Consumption() (*repository.Stats, error) {
	return s.repo.Stats()
}

// Monthly возвращает помесячную сводку
func (s *StatsService) Monthly() ([]repository.MonthlyStat, error) {
	return s.repo.MonthlyRollup()
}

// Totals возвращает суммарные пробег и расход, опционально за период
func (s *StatsService) Totals(dateFrom, dateTo string) (*repository.RangeTotals, error) {
	return s.repo.TotalsForRange(dateFrom, dateTo)
}

// DBStatus возвращает состояние хранилища
func (s *StatsService) DBStatus() (*repository.StoreStatus, error) {
	return s.repo.Status()
}

// StoreSizeBytes возвращает размер файла хранилища
func (s *StatsService) StoreSizeBytes() (int64, error) {
	return s.store.SizeBytes()
}
