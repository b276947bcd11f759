package normalizer

import (
	"time"
	// Встроенная tzdata: конвертация Europe/Madrid не должна зависеть
	// от наличия зоны в контейнере
	_ "time/tzdata"

	"byd-analyzer-go/internal/apperr"
	"byd-analyzer-go/internal/extractor"
	"byd-analyzer-go/internal/model"
)

const (
	// Порог определения миллисекунд: секундные метки не превышают
	// это значение в обозримом будущем
	millisThreshold = 2000000000

	// Минимальный расход для расчета эффективности, кВт·ч
	minElectricity = 0.1

	// Фиксированная эффективность при расходе ниже порога, км/кВт·ч
	fallbackEfficiency = 7.0

	// Локальное время хранится без смещения в этом формате
	datetimeLayout = "2006-01-02T15:04:05"
)

// requiredColumns обязательные колонки выгрузки
var requiredColumns = []string{"trip", "electricity", "start_timestamp", "end_timestamp"}

// Normalizer превращает сырые строки выгрузки в кандидатов Trip
type Normalizer struct {
	loc *time.Location
}

// New создает Normalizer для заданного региона локального времени
func New(loc *time.Location) *Normalizer {
	return &Normalizer{
		loc: loc,
	}
}

// LoadLocation загружает регион по имени (например Europe/Madrid)
func LoadLocation(name string) (*time.Location, error) {
	return time.LoadLocation(name)
}

// Normalize проверяет схему выгрузки и нормализует весь батч:
// определяет единицы времени, считает эффективность и локальное время.
// Возвращает кандидатов в порядке исходных строк и число строк,
// отброшенных из-за пустых обязательных значений
func (n *Normalizer) Normalize(data *extractor.TableData, fileHash string) ([]model.Trip, int, error) {
	for _, col := range requiredColumns {
		if !data.HasColumn(col) {
			return nil, 0, &apperr.SchemaError{Field: col}
		}
	}

	// Определение единиц — одно решение на весь батч, не построчное
	divisor := 1.0
	if maxStartTimestamp(data.Records) > millisThreshold {
		divisor = 1000.0
	}

	trips := make([]model.Trip, 0, len(data.Records))
	dropped := 0

	for _, rec := range data.Records {
		if rec.StartTimestamp == nil || rec.EndTimestamp == nil || rec.Distance == nil || rec.Electricity == nil {
			dropped++
			continue
		}

		start := int64(*rec.StartTimestamp / divisor)
		end := int64(*rec.EndTimestamp / divisor)

		duration := end - start
		if rec.Duration != nil {
			duration = *rec.Duration
		}

		var originalID int64
		if rec.OriginalID != nil {
			originalID = *rec.OriginalID
		}

		var fuel float64
		if rec.Fuel != nil {
			fuel = *rec.Fuel
		}

		startLocal := n.toLocal(start)

		trips = append(trips, model.Trip{
			OriginalID:     originalID,
			Month:          int(startLocal.Month()),
			Date:           startLocal.Day(),
			StartTimestamp: start,
			EndTimestamp:   end,
			Duration:       duration,
			Distance:       *rec.Distance,
			Electricity:    *rec.Electricity,
			Fuel:           fuel,
			Efficiency:     Efficiency(*rec.Distance, *rec.Electricity),
			StartDatetime:  startLocal.Format(datetimeLayout),
			EndDatetime:    n.toLocal(end).Format(datetimeLayout),
			FileHash:       fileHash,
		})
	}

	return trips, dropped, nil
}

// Efficiency считает км/кВт·ч; при расходе ниже порога возвращает
// фиксированное значение, чтобы не взрывать деление около нуля
func Efficiency(distance, electricity float64) float64 {
	if electricity > minElectricity {
		return distance / electricity
	}
	return fallbackEfficiency
}

// toLocal переводит момент UTC в локальное время региона.
// Смещение берется для конкретного момента, переходы на летнее
// время обрабатываются корректно
func (n *Normalizer) toLocal(sec int64) time.Time {
	return time.Unix(sec, 0).UTC().In(n.loc)
}

// maxStartTimestamp максимум сырых начальных меток батча
func maxStartTimestamp(records []extractor.Record) float64 {
	max := 0.0
	for _, rec := range records {
		if rec.StartTimestamp != nil && *rec.StartTimestamp > max {
			max = *rec.StartTimestamp
		}
	}
	return max
}
