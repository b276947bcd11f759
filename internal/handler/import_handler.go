package handler

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"byd-analyzer-go/internal/service"
)

// ImportHandler обрабатывает загрузку файлов выгрузки телематики
type ImportHandler struct {
	importService *service.ImportService
	logger        *logrus.Logger
	uploadDir     string
	keepDir       string
}

// NewImportHandler создает новый экземпляр ImportHandler
func NewImportHandler(importService *service.ImportService, logger *logrus.Logger, uploadDir, keepDir string) *ImportHandler {
	return &ImportHandler{
		importService: importService,
		logger:        logger,
		uploadDir:     uploadDir,
		keepDir:       keepDir,
	}
}

// RegisterRoutes регистрирует маршруты загрузки
func (h *ImportHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.POST("/upload", h.Upload)
	}
}

// Upload принимает файл .db, прогоняет его через конвейер загрузки
// и возвращает структурированный результат
func (h *ImportHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		h.logger.Errorf("Файл не найден в запросе: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Файл не найден"})
		return
	}

	if file.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Файл не выбран"})
		return
	}

	if !strings.HasSuffix(strings.ToLower(file.Filename), ".db") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Допускаются только файлы .db"})
		return
	}

	filename := fmt.Sprintf("%s_%s", time.Now().Format("20060102_150405"), filepath.Base(file.Filename))
	path := filepath.Join(h.uploadDir, filename)

	if err := c.SaveUploadedFile(file, path); err != nil {
		h.logger.Errorf("Ошибка сохранения файла: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Ошибка сохранения файла: %v", err)})
		return
	}
	defer os.Remove(path)

	h.logger.Infof("Обрабатываем файл: %s", filename)

	result, procErr := h.importService.ProcessFile(path, filename)
	if result == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": procErr.Error()})
		return
	}

	// Новые файлы сохраняем в архивной папке
	if result.FileWasNew && result.Status != service.StatusError {
		if err := h.keepUploadedFile(path, filename); err != nil {
			h.logger.Warnf("Не удалось сохранить копию файла %s: %v", filename, err)
		}
	}

	c.JSON(http.StatusOK, result)
}

// keepUploadedFile копирует новый файл выгрузки в архивную папку
func (h *ImportHandler) keepUploadedFile(path, filename string) error {
	if err := os.MkdirAll(h.keepDir, 0755); err != nil {
		return err
	}

	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(h.keepDir, filename))
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := dst.ReadFrom(src); err != nil {
		return err
	}

	h.logger.Infof("Копия файла сохранена: %s", filepath.Join(h.keepDir, filename))
	return nil
}
