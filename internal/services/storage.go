package services

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// StorageService persists uploaded resume files under the configured upload
// directory.
type StorageService interface {
	SaveResume(file *multipart.FileHeader) (filename string, path string, err error)
	GetFilePath(filename string) string
	DeleteFile(filename string) error
	EnsureUploadDir() error
}

type storageService struct {
	uploadPath  string
	maxFileSize int64
}

func NewStorageService(uploadPath string, maxFileSize int64) StorageService {
	return &storageService{
		uploadPath:  uploadPath,
		maxFileSize: maxFileSize,
	}
}

func (s *storageService) EnsureUploadDir() error {
	if err := os.MkdirAll(s.uploadPath, 0755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	return nil
}

func (s *storageService) SaveResume(file *multipart.FileHeader) (string, string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".pdf" {
		return "", "", fmt.Errorf("invalid file extension: %s (only PDF resumes are accepted)", ext)
	}
	if s.maxFileSize > 0 && file.Size > s.maxFileSize {
		return "", "", fmt.Errorf("file too large: %d bytes (limit %d)", file.Size, s.maxFileSize)
	}

	uniqueFilename := fmt.Sprintf("resume_%s%s", uuid.New().String(), ext)
	filePath := filepath.Join(s.uploadPath, uniqueFilename)

	src, err := file.Open()
	if err != nil {
		return "", "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filePath)
	if err != nil {
		return "", "", fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", "", fmt.Errorf("failed to save file: %w", err)
	}

	return uniqueFilename, filePath, nil
}

func (s *storageService) GetFilePath(filename string) string {
	return filepath.Join(s.uploadPath, filename)
}

func (s *storageService) DeleteFile(filename string) error {
	filePath := s.GetFilePath(filename)
	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
