package main

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"
)

func main() {
	// Проверяем health endpoint
	fmt.Println("Проверяем health endpoint...")
	resp, err := http.Get("http://localhost:5000/api/health")
	if err != nil {
		fmt.Printf("Ошибка при обращении к health endpoint: %v\n", err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("Ошибка чтения ответа: %v\n", err)
		return
	}

	fmt.Printf("Health check ответ (статус %d):\n%s\n\n", resp.StatusCode, string(body))

	// Если есть тестовый файл выгрузки, отправляем его на загрузку
	if len(os.Args) > 1 {
		dbPath := os.Args[1]
		fmt.Printf("Отправляем файл %s на загрузку...\n", dbPath)

		if err := testUpload(dbPath); err != nil {
			fmt.Printf("Ошибка при тестировании загрузки: %v\n", err)
		}
	} else {
		fmt.Println("Для тестирования загрузки запустите: go run test_client.go <путь_к_файлу.db>")
	}
}

func testUpload(dbPath string) error {
	// Читаем файл выгрузки
	dbData, err := os.ReadFile(dbPath)
	if err != nil {
		return fmt.Errorf("ошибка чтения файла выгрузки: %w", err)
	}

	// Формируем multipart запрос
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "export.db")
	if err != nil {
		return fmt.Errorf("ошибка создания form file: %w", err)
	}

	if _, err := part.Write(dbData); err != nil {
		return fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия writer: %w", err)
	}

	// Отправляем запрос
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Post("http://localhost:5000/api/upload", writer.FormDataContentType(), &buf)
	if err != nil {
		return fmt.Errorf("ошибка отправки запроса: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	fmt.Printf("Ответ загрузки (статус %d):\n%s\n", resp.StatusCode, string(body))

	// Для нового файла сразу смотрим состояние хранилища
	statusResp, err := client.Get("http://localhost:5000/api/db_status")
	if err != nil {
		return fmt.Errorf("ошибка запроса состояния: %w", err)
	}
	defer statusResp.Body.Close()

	statusBody, err := io.ReadAll(statusResp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения состояния: %w", err)
	}

	fmt.Printf("Состояние хранилища (статус %d):\n%s\n", statusResp.StatusCode, string(statusBody))
	return nil
}
