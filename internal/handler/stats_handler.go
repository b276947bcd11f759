package handler

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"byd-analyzer-go/internal/service"
)

// StatsHandler обрабатывает HTTP запросы статистики и состояния
type StatsHandler struct {
	statsService *service.StatsService
	costService  *service.CostService
	logger       *logrus.Logger
	dbPath       string
	timezone     string
	appVersion   string
}

// NewStatsHandler создает новый экземпляр StatsHandler
func NewStatsHandler(statsService *service.StatsService, costService *service.CostService, logger *logrus.Logger, dbPath, timezone, appVersion string) *StatsHandler {
	return &StatsHandler{
		statsService: statsService,
		costService:  costService,
		logger:       logger,
		dbPath:       dbPath,
		timezone:     timezone,
		appVersion:   appVersion,
	}
}

// RegisterRoutes регистрирует маршруты статистики
func (h *StatsHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.GET("/trips", h.ListTrips)
		api.GET("/consumption", h.Consumption)
		api.GET("/monthly", h.Monthly)
		api.GET("/db_status", h.DBStatus)
		api.GET("/energy_costs", h.EnergyCosts)
		api.POST("/energy_costs", h.EnergyCostsCustom)
		api.GET("/health", h.CheckHealth)
		api.GET("/system/status", h.SystemStatus)
	}
}

// ListTrips возвращает список поездок
func (h *StatsHandler) ListTrips(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "100")
	order := c.DefaultQuery("order", "DESC")

	h.logger.Infof("Запрос /api/trips: limit=%s, order=%s", limitStr, order)

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат limit"})
		return
	}
	// 10000 исторически означает "без ограничения"
	if limit >= 10000 {
		limit = 0
	}

	trips, err := h.statsService.Trips(limit, order)
	if err != nil {
		h.logger.Errorf("Ошибка в /api/trips: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, trips)
}

// Consumption возвращает детальную статистику потребления
func (h *StatsHandler) Consumption(c *gin.Context) {
	stats, err := h.statsService.Consumption()
	if err != nil {
		h.logger.Errorf("Ошибка в /api/consumption: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Monthly возвращает помесячные данные для графиков
func (h *StatsHandler) Monthly(c *gin.Context) {
	monthly, err := h.statsService.Monthly()
	if err != nil {
		h.logger.Errorf("Ошибка в /api/monthly: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, monthly)
}

// costResponse отчет стоимости с отметкой о пользовательских параметрах
type costResponse struct {
	*service.CostReport
	CustomCalculation bool `json:"custom_calculation"`
}

// EnergyCosts считает сравнение стоимости с параметрами по умолчанию
func (h *StatsHandler) EnergyCosts(c *gin.Context) {
	totals, err := h.statsService.Totals("", "")
	if err != nil {
		h.logger.Errorf("Ошибка в /api/energy_costs: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	report := h.costService.Project(totals.TotalDistance, totals.TotalConsumption, service.CostParams{})
	c.JSON(http.StatusOK, costResponse{CostReport: report, CustomCalculation: false})
}

// costRequest пользовательские параметры расчета и необязательный период
type costRequest struct {
	service.CostParams
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
}

// EnergyCostsCustom считает сравнение стоимости с пользовательскими параметрами
func (h *StatsHandler) EnergyCostsCustom(c *gin.Context) {
	var req costRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Errorf("Ошибка разбора параметров: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат параметров"})
		return
	}

	totals, err := h.statsService.Totals(req.DateFrom, req.DateTo)
	if err != nil {
		h.logger.Errorf("Ошибка в /api/energy_costs: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	report := h.costService.Project(totals.TotalDistance, totals.TotalConsumption, req.CostParams)
	c.JSON(http.StatusOK, costResponse{CostReport: report, CustomCalculation: true})
}

// DBStatus возвращает состояние хранилища
func (h *StatsHandler) DBStatus(c *gin.Context) {
	status, err := h.statsService.DBStatus()
	if err != nil {
		h.logger.Errorf("Ошибка в /api/db_status: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_trips":  status.TotalTrips,
		"unique_files": status.UniqueFiles,
		"total_files":  status.TotalFiles,
		"first_trip":   status.FirstTrip,
		"last_trip":    status.LastTrip,
		"server_time":  time.Now().Format(time.RFC3339),
	})
}

// CheckHealth проверка состояния сервиса
func (h *StatsHandler) CheckHealth(c *gin.Context) {
	_, statErr := os.Stat(h.dbPath)

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "BYD Analyzer",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   h.appVersion,
		"database":  statErr == nil,
		"timezone":  h.timezone,
	})
}

// SystemStatus расширенное состояние системы
func (h *StatsHandler) SystemStatus(c *gin.Context) {
	status, err := h.statsService.DBStatus()
	if err != nil {
		h.logger.Errorf("Ошибка в /api/system/status: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	totals, err := h.statsService.Totals("", "")
	if err != nil {
		h.logger.Errorf("Ошибка в /api/system/status: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	sizeBytes, err := h.statsService.StoreSizeBytes()
	if err != nil {
		h.logger.Warnf("Не удалось определить размер файла хранилища: %v", err)
	}

	response := service.SystemStatus{}
	response.Database.TotalTrips = status.TotalTrips
	response.Database.TotalFiles = status.TotalFiles
	response.Database.FirstTrip = status.FirstTrip
	response.Database.LastTrip = status.LastTrip
	response.Database.TotalDistance = totals.TotalDistance
	response.Database.TotalConsumption = totals.TotalConsumption
	response.Database.SizeBytes = sizeBytes
	response.Database.SizeMB = float64(sizeBytes) / (1024 * 1024)
	response.System.Version = h.appVersion
	response.System.BackupSupported = true
	response.System.ServerTime = time.Now().Format(time.RFC3339)
	response.System.Timezone = h.timezone

	c.JSON(http.StatusOK, response)
}
