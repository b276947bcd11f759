package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"byd-analyzer-go/internal/apperr"
	"byd-analyzer-go/internal/database"
	"byd-analyzer-go/internal/model"
)

// TripRepository интерфейс для работы с историческим хранилищем поездок
type TripRepository interface {
	Ingest(trips []model.Trip, filename, fileHash string) (*IngestResult, error)
	ListTrips(limit int, order string) ([]TripRow, error)
	Stats() (*Stats, error)
	MonthlyRollup() ([]MonthlyStat, error)
	TotalsForRange(dateFrom, dateTo string) (*RangeTotals, error)
	Status() (*StoreStatus, error)
	ListFiles() ([]model.UploadedFile, error)
}

// IngestResult итог загрузки одного файла выгрузки
type IngestResult struct {
	Added      int  // Новых поездок вставлено
	Skipped    int  // Дубликатов пропущено
	Total      int  // Всего кандидатов в батче
	FileWasNew bool // Хеш файла встречен впервые
}

// TripRow проекция поездки для списка
type TripRow struct {
	ID          uint    `json:"id"`
	MonthNum    int     `json:"month_num"`
	DayNum      int     `json:"day_num"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	Duration    int64   `json:"duration"`
	Trip        float64 `json:"trip"`
	Electricity float64 `json:"electricity"`
	Fuel        float64 `json:"fuel"`
	Efficiency  float64 `json:"efficiency"`
	AvgSpeed    float64 `json:"avg_speed"`
}

// GeneralStats сводная статистика по всем поездкам
type GeneralStats struct {
	TotalTrips       int64   `json:"total_trips"`
	TotalDistance    float64 `json:"total_distance"`
	TotalConsumption float64 `json:"total_consumption"`
	AvgEfficiency    float64 `json:"avg_efficiency"`
	MinEfficiency    float64 `json:"min_efficiency"`
	MaxEfficiency    float64 `json:"max_efficiency"`
	AvgSpeed         float64 `json:"avg_speed"`
}

// DistanceBucket статистика по категории длины поездки
type DistanceBucket struct {
	Category       string  `json:"category"`
	Count          int64   `json:"count"`
	AvgEfficiency  float64 `json:"avg_efficiency"`
	AvgConsumption float64 `json:"avg_consumption"`
}

// MonthlyStat помесячная сводка
type MonthlyStat struct {
	Month            string  `json:"month"`
	TripCount        int64   `json:"trip_count"`
	TotalDistance    float64 `json:"total_distance"`
	TotalConsumption float64 `json:"total_consumption"`
	AvgEfficiency    float64 `json:"avg_efficiency"`
}

// Stats полный статистический срез хранилища
type Stats struct {
	General    GeneralStats     `json:"general"`
	ByDistance []DistanceBucket `json:"by_distance"`
	Monthly    []MonthlyStat    `json:"monthly"`
}

// RangeTotals суммарные пробег и расход за период
type RangeTotals struct {
	TotalDistance    float64 `json:"total_distance"`
	TotalConsumption float64 `json:"total_consumption"`
}

// StoreStatus состояние хранилища
type StoreStatus struct {
	TotalTrips  int64  `json:"total_trips"`
	UniqueFiles int64  `json:"unique_files"`
	TotalFiles  int64  `json:"total_files"`
	FirstTrip   string `json:"first_trip"`
	LastTrip    string `json:"last_trip"`
}

// NoDataSentinel значение first/last trip для пустого хранилища
const NoDataSentinel = "N/A"

// tripRepository реализация TripRepository
type tripRepository struct {
	store *database.Store
}

// NewTripRepository создает новый instance TripRepository
func NewTripRepository(store *database.Store) TripRepository {
	return &tripRepository{
		store: store,
	}
}

// Ingest вставляет кандидатов одной транзакцией. Дубликаты по кортежу
// (start_timestamp, end_timestamp, trip, electricity) отбрасывает сам
// движок через ON CONFLICT DO NOTHING, это не ошибка. Запись о файле
// вставляется или обновляется в той же транзакции
func (r *tripRepository) Ingest(trips []model.Trip, filename, fileHash string) (*IngestResult, error) {
	res := &IngestResult{Total: len(trips)}

	err := r.store.View(func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			var existing model.UploadedFile
			err := tx.Where("file_hash = ?", fileHash).First(&existing).Error
			res.FileWasNew = errors.Is(err, gorm.ErrRecordNotFound)
			if err != nil && !res.FileWasNew {
				return fmt.Errorf("failed to look up uploaded file: %w", err)
			}

			for i := range trips {
				trips[i].ID = 0
				result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&trips[i])
				if result.Error != nil {
					return fmt.Errorf("failed to insert trip %d: %w", i, result.Error)
				}
				if result.RowsAffected > 0 {
					res.Added++
				} else {
					res.Skipped++
				}
			}

			now := time.Now()
			if res.FileWasNew {
				record := model.UploadedFile{
					Filename:   filename,
					FileHash:   fileHash,
					UploadDate: now,
					TripsAdded: res.Added,
				}
				if err := tx.Create(&record).Error; err != nil {
					return fmt.Errorf("failed to create uploaded file record: %w", err)
				}
			} else if res.Added > 0 {
				err := tx.Model(&model.UploadedFile{}).
					Where("file_hash = ?", fileHash).
					Updates(map[string]interface{}{
						"trips_added": gorm.Expr("trips_added + ?", res.Added),
						"upload_date": now,
					}).Error
				if err != nil {
					return fmt.Errorf("failed to update uploaded file record: %w", err)
				}
			}

			return nil
		})
	})
	if err != nil {
		return nil, &apperr.StoreError{Op: "ingest", Err: err}
	}

	return res, nil
}

// ListTrips возвращает поездки, отсортированные по UNIX-метке начала.
// limit <= 0 означает без ограничения
func (r *tripRepository) ListTrips(limit int, order string) ([]TripRow, error) {
	orderSQL := "ASC"
	if order != "ASC" && order != "asc" {
		orderSQL = "DESC"
	}

	query := fmt.Sprintf(`
	SELECT
		id,
		CAST(strftime('%%m', start_datetime) AS INTEGER) AS month_num,
		CAST(strftime('%%d', start_datetime) AS INTEGER) AS day_num,
		datetime(start_datetime) AS start_time,
		datetime(end_datetime) AS end_time,
		duration,
		trip,
		electricity,
		fuel,
		efficiency,
		COALESCE(ROUND(trip / (duration / 3600.0), 1), 0) AS avg_speed
	FROM trips
	ORDER BY start_timestamp %s`, orderSQL)

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var rows []TripRow
	err := r.store.View(func(db *gorm.DB) error {
		return db.Raw(query).Scan(&rows).Error
	})
	if err != nil {
		return nil, &apperr.StoreError{Op: "list trips", Err: err}
	}

	return rows, nil
}

// Stats собирает сводную статистику, разбивку по длине поездки
// и помесячную сводку
func (r *tripRepository) Stats() (*Stats, error) {
	stats := &Stats{
		ByDistance: []DistanceBucket{},
		Monthly:    []MonthlyStat{},
	}

	err := r.store.View(func(db *gorm.DB) error {
		err := db.Raw(`
		SELECT
			COUNT(*) AS total_trips,
			COALESCE(SUM(trip), 0) AS total_distance,
			COALESCE(SUM(electricity), 0) AS total_consumption,
			COALESCE(AVG(efficiency), 0) AS avg_efficiency,
			COALESCE(MIN(efficiency), 0) AS min_efficiency,
			COALESCE(MAX(efficiency), 0) AS max_efficiency,
			COALESCE(AVG(CASE WHEN duration > 0 THEN trip / (duration / 3600.0) END), 0) AS avg_speed
		FROM trips`).Scan(&stats.General).Error
		if err != nil {
			return fmt.Errorf("failed to query general stats: %w", err)
		}

		err = db.Raw(`
		SELECT
			CASE
				WHEN trip < 5 THEN 'short (<5km)'
				WHEN trip BETWEEN 5 AND 20 THEN 'medium (5-20km)'
				ELSE 'long (>20km)'
			END AS category,
			COUNT(*) AS count,
			AVG(efficiency) AS avg_efficiency,
			AVG(electricity) AS avg_consumption
		FROM trips
		WHERE trip > 0
		GROUP BY category
		ORDER BY
			CASE category
				WHEN 'short (<5km)' THEN 1
				WHEN 'medium (5-20km)' THEN 2
				ELSE 3
			END`).Scan(&stats.ByDistance).Error
		if err != nil {
			return fmt.Errorf("failed to query distance buckets: %w", err)
		}

		monthly, err := monthlyRollup(db)
		if err != nil {
			return err
		}
		stats.Monthly = monthly

		return nil
	})
	if err != nil {
		return nil, &apperr.StoreError{Op: "stats", Err: err}
	}

	return stats, nil
}

// MonthlyRollup помесячная сводка за последние 12 месяцев с данными
func (r *tripRepository) MonthlyRollup() ([]MonthlyStat, error) {
	var monthly []MonthlyStat
	err := r.store.View(func(db *gorm.DB) error {
		var err error
		monthly, err = monthlyRollup(db)
		return err
	})
	if err != nil {
		return nil, &apperr.StoreError{Op: "monthly rollup", Err: err}
	}

	if monthly == nil {
		monthly = []MonthlyStat{}
	}
	return monthly, nil
}

func monthlyRollup(db *gorm.DB) ([]MonthlyStat, error) {
	var monthly []MonthlyStat
	err := db.Raw(`
	SELECT
		strftime('%Y-%m', start_datetime) AS month,
		COUNT(*) AS trip_count,
		COALESCE(SUM(trip), 0) AS total_distance,
		COALESCE(SUM(electricity), 0) AS total_consumption,
		COALESCE(AVG(efficiency), 0) AS avg_efficiency
	FROM trips
	GROUP BY month
	ORDER BY month DESC
	LIMIT 12`).Scan(&monthly).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly rollup: %w", err)
	}
	return monthly, nil
}

// TotalsForRange суммирует пробег и расход по всем поездкам либо
// по включительному диапазону локальных дат
func (r *tripRepository) TotalsForRange(dateFrom, dateTo string) (*RangeTotals, error) {
	totals := &RangeTotals{}

	err := r.store.View(func(db *gorm.DB) error {
		query := db.Raw(`
		SELECT
			COALESCE(SUM(trip), 0) AS total_distance,
			COALESCE(SUM(electricity), 0) AS total_consumption
		FROM trips`)
		if dateFrom != "" && dateTo != "" {
			query = db.Raw(`
			SELECT
				COALESCE(SUM(trip), 0) AS total_distance,
				COALESCE(SUM(electricity), 0) AS total_consumption
			FROM trips
			WHERE date(start_datetime) BETWEEN ? AND ?`, dateFrom, dateTo)
		}
		return query.Scan(totals).Error
	})
	if err != nil {
		return nil, &apperr.StoreError{Op: "totals for range", Err: err}
	}

	return totals, nil
}

// Status возвращает состояние хранилища
func (r *tripRepository) Status() (*StoreStatus, error) {
	status := &StoreStatus{
		FirstTrip: NoDataSentinel,
		LastTrip:  NoDataSentinel,
	}

	err := r.store.View(func(db *gorm.DB) error {
		if err := db.Model(&model.Trip{}).Count(&status.TotalTrips).Error; err != nil {
			return fmt.Errorf("failed to count trips: %w", err)
		}

		err := db.Raw("SELECT COUNT(DISTINCT file_hash) FROM uploaded_files").Scan(&status.UniqueFiles).Error
		if err != nil {
			return fmt.Errorf("failed to count unique files: %w", err)
		}

		if err := db.Model(&model.UploadedFile{}).Count(&status.TotalFiles).Error; err != nil {
			return fmt.Errorf("failed to count uploaded files: %w", err)
		}

		var first, last *string
		err = db.Raw("SELECT MIN(start_datetime), MAX(start_datetime) FROM trips").Row().Scan(&first, &last)
		if err != nil {
			return fmt.Errorf("failed to query trip range: %w", err)
		}
		if first != nil {
			status.FirstTrip = *first
		}
		if last != nil {
			status.LastTrip = *last
		}

		return nil
	})
	if err != nil {
		return nil, &apperr.StoreError{Op: "status", Err: err}
	}

	return status, nil
}

// ListFiles возвращает все записи о загруженных файлах
func (r *tripRepository) ListFiles() ([]model.UploadedFile, error) {
	files := []model.UploadedFile{}
	err := r.store.View(func(db *gorm.DB) error {
		return db.Order("id").Find(&files).Error
	})
	if err != nil {
		return nil, &apperr.StoreError{Op: "list files", Err: err}
	}
	return files, nil
}
