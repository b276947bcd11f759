package handler

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"byd-analyzer-go/internal/apperr"
	"byd-analyzer-go/internal/service"
)

// BackupHandler обрабатывает HTTP запросы резервного копирования
type BackupHandler struct {
	backupService *service.BackupService
	logger        *logrus.Logger
}

// NewBackupHandler создает новый экземпляр BackupHandler
func NewBackupHandler(backupService *service.BackupService, logger *logrus.Logger) *BackupHandler {
	return &BackupHandler{
		backupService: backupService,
		logger:        logger,
	}
}

// RegisterRoutes регистрирует маршруты резервного копирования
func (h *BackupHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/backup")
	{
		api.GET("/export", h.Export)
		api.POST("/import", h.Import)
		api.POST("/info", h.Info)
	}
}

// Export создает резервную копию и отдает ее файлом
func (h *BackupHandler) Export(c *gin.Context) {
	path, filename, _, err := h.backupService.Export()
	if err != nil {
		h.logger.Errorf("Ошибка в /api/backup/export: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.FileAttachment(path, filename)
}

// Import восстанавливает хранилище из загруженного архива
func (h *BackupHandler) Import(c *gin.Context) {
	path, ok := h.saveBackupUpload(c)
	if !ok {
		return
	}
	defer os.Remove(path)

	manifest, err := h.backupService.Restore(path)
	if err != nil {
		h.logger.Errorf("Ошибка в /api/backup/import: %v", err)
		c.JSON(backupErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "success",
		"message":     "Резервная копия восстановлена",
		"backup_info": manifest,
		"restored_at": time.Now().Format(time.RFC3339),
	})
}

// Info возвращает манифест архива без восстановления
func (h *BackupHandler) Info(c *gin.Context) {
	path, ok := h.saveBackupUpload(c)
	if !ok {
		return
	}
	defer os.Remove(path)

	manifest, err := h.backupService.Inspect(path)
	if err != nil {
		h.logger.Errorf("Ошибка в /api/backup/info: %v", err)
		c.JSON(backupErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "success",
		"backup_info": manifest,
	})
}

// saveBackupUpload сохраняет загруженный архив во временный файл
func (h *BackupHandler) saveBackupUpload(c *gin.Context) (string, bool) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Файл не найден"})
		return "", false
	}

	if file.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Файл не выбран"})
		return "", false
	}

	if !strings.HasSuffix(strings.ToLower(file.Filename), ".backup") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Допускаются только файлы .backup"})
		return "", false
	}

	path := filepath.Join(os.TempDir(), "byd_backup_"+uuid.New().String())
	if err := c.SaveUploadedFile(file, path); err != nil {
		h.logger.Errorf("Ошибка сохранения архива: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return "", false
	}

	return path, true
}

// backupErrorStatus различает клиентские и серверные ошибки резервного копирования
func backupErrorStatus(err error) int {
	var invalid *apperr.InvalidSnapshotError
	if errors.As(err, &invalid) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
