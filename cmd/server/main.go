package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"byd-analyzer-go/internal/config"
	"byd-analyzer-go/internal/database"
	"byd-analyzer-go/internal/extractor"
	"byd-analyzer-go/internal/handler"
	"byd-analyzer-go/internal/normalizer"
	"byd-analyzer-go/internal/repository"
	"byd-analyzer-go/internal/service"
)

const appVersion = "3.1"

func main() {
	// Инициализируем логгер
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.Info("Запуск BYD Analyzer API Server")

	// Загружаем .env, если он есть
	if err := godotenv.Load(); err != nil {
		logger.Debug(".env файл не найден, используем переменные окружения")
	}

	// Получаем конфигурацию из переменных окружения
	cfg := config.LoadConfig()

	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}

	// Создаем рабочие папки
	for _, dir := range []string{cfg.Storage.DataDir, cfg.Storage.UploadDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Fatalf("Ошибка создания папки %s: %v", dir, err)
		}
	}

	// Инициализируем хранилище
	logger.Info("Подключение к базе данных...")
	store, err := database.Connect(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Fatalf("Ошибка подключения к базе данных: %v", err)
	}
	defer store.Close()

	// Выполняем миграции
	logger.Info("Выполнение миграций базы данных...")
	if err := store.Migrate(); err != nil {
		logger.Fatalf("Ошибка выполнения миграций: %v", err)
	}

	// Проверяем здоровье базы данных
	if err := store.HealthCheck(); err != nil {
		logger.Fatalf("База данных недоступна: %v", err)
	}

	logger.Info("База данных успешно подключена и готова к работе")

	// Часовой пояс для локального времени поездок
	loc, err := normalizer.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatalf("Неизвестный часовой пояс %s: %v", cfg.Timezone, err)
	}
	logger.Infof("Часовой пояс: %s", cfg.Timezone)

	// Инициализируем репозитории
	tripRepo := repository.NewTripRepository(store)

	// Инициализируем сервисы
	ext := extractor.NewExtractor(logger)
	norm := normalizer.New(loc)
	importService := service.NewImportService(ext, norm, tripRepo, logger)
	statsService := service.NewStatsService(tripRepo, store, logger)
	costService := service.NewCostService(cfg.Energy)
	backupService := service.NewBackupService(store, logger, cfg.Storage.DataDir, appVersion)

	// Инициализируем обработчики
	importHandler := handler.NewImportHandler(importService, logger, cfg.Storage.UploadDir, cfg.Storage.KeepDir)
	statsHandler := handler.NewStatsHandler(statsService, costService, logger, cfg.Storage.DatabasePath, cfg.Timezone, appVersion)
	backupHandler := handler.NewBackupHandler(backupService, logger)

	// Настраиваем Gin router
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = 16 << 20 // 16 MB

	// Добавляем middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Регистрируем маршруты
	importHandler.RegisterRoutes(router)
	statsHandler.RegisterRoutes(router)
	backupHandler.RegisterRoutes(router)

	// Добавляем базовый маршрут для проверки
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "BYD Analyzer API Server",
			"version": appVersion,
			"status":  "running",
		})
	})

	// Запускаем сервер
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("Сервер запущен на %s", serverAddr)
	logger.Infof("API доступно по адресу: http://localhost:%d/api", cfg.Server.Port)

	if err := router.Run(serverAddr); err != nil {
		logger.Fatalf("Ошибка запуска сервера: %v", err)
	}
}

// corsMiddleware добавляет заголовки CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
