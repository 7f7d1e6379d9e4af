package services

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

var allowedImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}

const defaultMaxUploadMB = 10

// MaxUploadBytes reads the configured upload ceiling, default 10 MB.
func MaxUploadBytes() int64 {
	mb, err := strconv.Atoi(GetEnv("MAX_UPLOAD_MB", ""))
	if err != nil || mb <= 0 {
		mb = defaultMaxUploadMB
	}
	return int64(mb) * 1024 * 1024
}

// ValidateUploadFile rejects files before any row is created or remote call
// is made: unsupported extension or a payload above the size ceiling.
func ValidateUploadFile(fileName string, size int64) error {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !slices.Contains(allowedImageExtensions, ext) {
		return fmt.Errorf("unsupported file type %q, allowed: %s", ext, strings.Join(allowedImageExtensions, ", "))
	}
	if size > MaxUploadBytes() {
		return fmt.Errorf("file too large: %d bytes, maximum is %d bytes", size, MaxUploadBytes())
	}
	return nil
}

func StrPointer(str string) *string {
	if str == "" {
		return nil
	}
	return &str
}

func ReadFileFromUrl(url string) ([]byte, error) {
	httpClient := &http.Client{}
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %v", err)
	}

	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get response: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch file, status code: %d", resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}

	return content, nil
}

func GetEnv(key, fallback string) string {
	value := os.Getenv(key)
	if len(value) == 0 {
		return fallback
	}
	return value
}

func CreateTempFile(data []byte, filename string) (string, error) {
	ext := filepath.Ext(filename)
	tempFile, err := os.CreateTemp("", "temp-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %v", err)
	}
	defer tempFile.Close()
	if _, err := tempFile.Write(data); err != nil {
		return "", fmt.Errorf("failed to write to temp file: %v", err)
	}

	return tempFile.Name(), nil
}
