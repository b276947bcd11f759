package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// Config структура конфигурации приложения
type Config struct {
	Server struct {
		Port        int
		Host        string
		Environment string
	}
	Storage struct {
		DataDir      string
		UploadDir    string
		DatabasePath string
		KeepDir      string // Копии успешно загруженных файлов выгрузки
	}
	Timezone string // Регион для локального времени поездок
	Logging  struct {
		Level string
	}
	Energy EnergyDefaults
}

// EnergyDefaults параметры по умолчанию для расчета стоимости и выбросов
type EnergyDefaults struct {
	ElectricityPrice    float64 // €/кВт·ч
	GasolinePrice       float64 // €/л
	DieselPrice         float64 // €/л
	GasolineConsumption float64 // л/100км
	DieselConsumption   float64 // л/100км
	CO2Gasoline         float64 // г/км
	CO2Diesel           float64 // г/км
}

// LoadConfig загружает конфигурацию из переменных окружения
func LoadConfig() *Config {
	cfg := &Config{}

	// Конфигурация сервера
	cfg.Server.Port = getEnvInt("SERVER_PORT", 5000)
	cfg.Server.Host = getEnv("SERVER_HOST", "0.0.0.0")
	cfg.Server.Environment = getEnv("ENVIRONMENT", "development")

	// Конфигурация хранилища
	cfg.Storage.DataDir = getEnv("DATA_DIR", "data")
	cfg.Storage.UploadDir = getEnv("UPLOAD_DIR", "uploads")
	cfg.Storage.DatabasePath = getEnv("DATABASE_PATH", filepath.Join(cfg.Storage.DataDir, "historical.db"))
	cfg.Storage.KeepDir = filepath.Join(cfg.Storage.DataDir, "uploaded_files")

	// Часовой пояс для локального времени поездок
	cfg.Timezone = getEnv("TIMEZONE", "Europe/Madrid")

	// Конфигурация логирования
	cfg.Logging.Level = getEnv("LOG_LEVEL", "info")

	// Параметры расчета стоимости по умолчанию
	cfg.Energy.ElectricityPrice = getEnvFloat("ELECTRICITY_PRICE", 0.15)
	cfg.Energy.GasolinePrice = getEnvFloat("GASOLINE_PRICE", 1.50)
	cfg.Energy.DieselPrice = getEnvFloat("DIESEL_PRICE", 1.40)
	cfg.Energy.GasolineConsumption = getEnvFloat("GASOLINE_CONSUMPTION", 7.0)
	cfg.Energy.DieselConsumption = getEnvFloat("DIESEL_CONSUMPTION", 5.5)
	cfg.Energy.CO2Gasoline = getEnvFloat("CO2_GASOLINE", 120)
	cfg.Energy.CO2Diesel = getEnvFloat("CO2_DIESEL", 95)

	return cfg
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает int значение переменной окружения или возвращает значение по умолчанию
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat получает float значение переменной окружения или возвращает значение по умолчанию
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
