package extractor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"byd-analyzer-go/internal/apperr"
)

// Record одна строка выгрузки с явной опциональностью полей:
// nil означает, что колонка отсутствует или значение пустое
type Record struct {
	OriginalID     *int64
	StartTimestamp *float64 // Сырое значение, секунды или миллисекунды
	EndTimestamp   *float64
	Duration       *int64
	Distance       *float64 // Колонка trip, километры
	Electricity    *float64
	Fuel           *float64
}

// TableData материализованная рабочая таблица выгрузки
type TableData struct {
	Table   string
	Columns []string
	Records []Record

	columnSet map[string]struct{}
}

// NewTableData собирает материализованную таблицу из готовых записей
func NewTableData(table string, columns []string, records []Record) *TableData {
	data := &TableData{
		Table:     table,
		Columns:   columns,
		Records:   records,
		columnSet: make(map[string]struct{}, len(columns)),
	}
	for _, col := range columns {
		data.columnSet[strings.ToLower(col)] = struct{}{}
	}
	return data
}

// HasColumn проверяет наличие колонки в выгрузке (без учета регистра)
func (t *TableData) HasColumn(name string) bool {
	_, ok := t.columnSet[strings.ToLower(name)]
	return ok
}

// Extractor читает файлы выгрузки телематики (SQLite)
type Extractor struct {
	logger *logrus.Logger
}

// NewExtractor создает новый Extractor
func NewExtractor(logger *logrus.Logger) *Extractor {
	return &Extractor{
		logger: logger,
	}
}

// Extract открывает файл выгрузки только для чтения, выбирает рабочую
// таблицу и материализует все ее строки
func (e *Extractor) Extract(path string) (*TableData, error) {
	db, err := gorm.Open(sqlite.Open(sqliteURI(path)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, &apperr.ExtractionError{Reason: "не удалось открыть файл", Err: err}
	}
	defer func() {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
	}()

	names, err := listTables(db)
	if err != nil {
		return nil, &apperr.ExtractionError{Reason: "не удалось прочитать список таблиц", Err: err}
	}

	table, err := SelectTable(names)
	if err != nil {
		return nil, err
	}

	e.logger.Infof("Используем таблицу: %s", table)

	data, err := loadTable(db, table)
	if err != nil {
		return nil, err
	}

	if len(data.Records) == 0 {
		return nil, &apperr.ExtractionError{Reason: "данные в файле не найдены"}
	}

	e.logger.Infof("Данные найдены: %d записей", len(data.Records))
	return data, nil
}

// listTables возвращает имена таблиц выгрузки в порядке объявления
func listTables(db *gorm.DB) ([]string, error) {
	rows, err := db.Raw("SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY rowid").Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		// Служебные таблицы SQLite не считаются объявленными
		if strings.HasPrefix(name, "sqlite_") {
			continue
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

// loadTable материализует все строки таблицы
func loadTable(db *gorm.DB, table string) (*TableData, error) {
	rows, err := db.Raw("SELECT * FROM " + quoteIdent(table)).Rows()
	if err != nil {
		return nil, &apperr.ExtractionError{Reason: fmt.Sprintf("не удалось прочитать таблицу %s", table), Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &apperr.ExtractionError{Reason: "не удалось определить колонки", Err: err}
	}

	var records []Record

	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, &apperr.ExtractionError{Reason: "ошибка чтения строки", Err: err}
		}

		var rec Record
		for i, col := range columns {
			switch strings.ToLower(col) {
			case "_id":
				rec.OriginalID = toInt(values[i])
			case "start_timestamp":
				rec.StartTimestamp = toFloat(values[i])
			case "end_timestamp":
				rec.EndTimestamp = toFloat(values[i])
			case "duration":
				rec.Duration = toInt(values[i])
			case "trip":
				rec.Distance = toFloat(values[i])
			case "electricity":
				rec.Electricity = toFloat(values[i])
			case "fuel":
				rec.Fuel = toFloat(values[i])
			}
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, &apperr.ExtractionError{Reason: "ошибка обхода строк", Err: err}
	}

	return NewTableData(table, columns, records), nil
}

// sqliteURI строит DSN только для чтения. Символы, значимые для разбора
// URI (%, ?, #), экранируются: имя файла не должно ломать mode=ro
func sqliteURI(path string) string {
	escaped := strings.NewReplacer("%", "%25", "?", "%3F", "#", "%23").Replace(path)
	return "file:" + escaped + "?mode=ro"
}

// quoteIdent экранирует имя таблицы для подстановки в запрос
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// toFloat приводит значение SQLite к float64, nil если приведение невозможно
func toFloat(v interface{}) *float64 {
	switch val := v.(type) {
	case float64:
		return &val
	case int64:
		f := float64(val)
		return &f
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return &f
		}
	case []byte:
		if f, err := strconv.ParseFloat(string(val), 64); err == nil {
			return &f
		}
	}
	return nil
}

// toInt приводит значение SQLite к int64, nil если приведение невозможно
func toInt(v interface{}) *int64 {
	switch val := v.(type) {
	case int64:
		return &val
	case float64:
		i := int64(val)
		return &i
	case string:
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return &i
		}
	case []byte:
		if i, err := strconv.ParseInt(string(val), 10, 64); err == nil {
			return &i
		}
	}
	return nil
}
