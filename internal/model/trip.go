package model

import (
	"time"
)

// Trip представляет одну поездку в историческом хранилище.
// Кортеж (start_timestamp, end_timestamp, trip, electricity) уникален:
// дедупликация при повторных загрузках обеспечивается самим движком БД
type Trip struct {
	ID         uint  `gorm:"primaryKey;autoIncrement" json:"id"`
	OriginalID int64 `gorm:"not null;default:0" json:"original_id"` // ID из исходной выгрузки, 0 если отсутствует

	Month int `gorm:"not null" json:"month"` // Месяц начала поездки (локальное время)
	Date  int `gorm:"not null" json:"date"`  // День месяца начала поездки

	StartTimestamp int64 `gorm:"not null;uniqueIndex:idx_trips_dedup" json:"start_timestamp"` // Секунды UTC
	EndTimestamp   int64 `gorm:"not null;uniqueIndex:idx_trips_dedup" json:"end_timestamp"`
	Duration       int64 `gorm:"not null" json:"duration"` // Секунды

	Distance    float64 `gorm:"column:trip;not null;uniqueIndex:idx_trips_dedup" json:"trip"` // Километры
	Electricity float64 `gorm:"not null;uniqueIndex:idx_trips_dedup" json:"electricity"`      // кВт·ч
	Fuel        float64 `gorm:"not null;default:0" json:"fuel"`
	Efficiency  float64 `gorm:"not null" json:"efficiency"` // км/кВт·ч

	// Локальное время Europe/Madrid без смещения, формат 2006-01-02T15:04:05
	StartDatetime string `gorm:"type:text;not null" json:"start_datetime"`
	EndDatetime   string `gorm:"type:text;not null" json:"end_datetime"`

	FileHash   string    `gorm:"type:varchar(32);not null;index" json:"file_hash"`
	UploadedAt time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}

// UploadedFile запись о происхождении загруженного файла выгрузки
type UploadedFile struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Filename   string    `gorm:"type:varchar(255);not null" json:"filename"`
	FileHash   string    `gorm:"type:varchar(32);not null;uniqueIndex" json:"file_hash"`
	UploadDate time.Time `gorm:"not null" json:"upload_date"`
	TripsAdded int       `gorm:"not null;default:0" json:"trips_added"` // Накопленное число добавленных поездок
}

// TableName указывает имя таблицы для Trip
func (Trip) TableName() string {
	return "trips"
}

// TableName указывает имя таблицы для UploadedFile
func (UploadedFile) TableName() string {
	return "uploaded_files"
}
