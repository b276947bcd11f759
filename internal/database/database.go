package database

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"byd-analyzer-go/internal/model"
)

// Store дескриптор исторического хранилища на SQLite.
// Все операции чтения и записи берут разделяемую блокировку,
// восстановление из резервной копии — эксклюзивную (см. Exclusive)
type Store struct {
	mu   sync.RWMutex
	db   *gorm.DB
	path string
}

// Connect открывает файл хранилища
func Connect(path string) (*Store, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:   db,
		path: path,
	}, nil
}

// open открывает соединение с файлом SQLite
func open(path string) (*gorm.DB, error) {
	// Настройка логгера GORM
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             time.Second,   // Slow SQL threshold
			LogLevel:                  logger.Silent, // Log level
			IgnoreRecordNotFoundError: true,          // Ignore ErrRecordNotFound error for logger
			Colorful:                  false,         // Disable color
		},
	)

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Один писатель: сериализуем записи на уровне пула соединений
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Migrate выполняет автомиграции
func (s *Store) Migrate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return fmt.Errorf("database connection is not initialized")
	}

	err := s.db.AutoMigrate(
		&model.Trip{},
		&model.UploadedFile{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// HealthCheck проверяет состояние подключения к базе данных
func (s *Store) HealthCheck() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return fmt.Errorf("database connection is not initialized")
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}

// Close закрывает соединение с базой данных
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closeLocked()
}

func (s *Store) closeLocked() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	s.db = nil
	return sqlDB.Close()
}

// View выполняет fn под разделяемой блокировкой хранилища.
// Обычные операции (загрузка, запросы, экспорт) идут через этот метод
func (s *Store) View(fn func(db *gorm.DB) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return fmt.Errorf("database connection is not initialized")
	}

	return fn(s.db)
}

// Exclusive закрывает соединение, выполняет fn над файлом хранилища
// под эксклюзивной блокировкой и заново открывает соединение.
// Используется восстановлением из резервной копии: пока fn работает,
// ни одна другая операция не видит файл в промежуточном состоянии
func (s *Store) Exclusive(fn func(path string) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.closeLocked(); err != nil {
		return fmt.Errorf("failed to close database before maintenance: %w", err)
	}

	opErr := fn(s.path)

	db, err := open(s.path)
	if err != nil {
		if opErr != nil {
			return opErr
		}
		return fmt.Errorf("failed to reopen database after maintenance: %w", err)
	}
	s.db = db

	return opErr
}

// Snapshot записывает согласованный снимок хранилища в новый файл dst.
// Снимок снимается через VACUUM INTO на пуле из одного соединения:
// движок дожидается завершения текущей транзакции и пишет
// зафиксированное состояние независимо от режима журнала
func (s *Store) Snapshot(dst string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return fmt.Errorf("database connection is not initialized")
	}

	if err := s.db.Exec("VACUUM INTO ?", dst).Error; err != nil {
		return fmt.Errorf("failed to snapshot database: %w", err)
	}

	return nil
}

// Path возвращает путь к файлу хранилища
func (s *Store) Path() string {
	return s.path
}

// SizeBytes возвращает размер файла хранилища в байтах.
// Пропавший файл — это ошибка, а не нулевой размер
func (s *Store) SizeBytes() (int64, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat database file: %w", err)
	}
	return info.Size(), nil
}
