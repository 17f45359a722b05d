package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// Service handles Cloud Storage operations for profile photos.
type Service struct {
	client     *storage.Client
	bucketName string
}

// NewService creates a new storage service.
func NewService(ctx context.Context, bucketName string) (*Service, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &Service{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// UploadProfilePhoto stores a profile photo and returns its object path.
func (s *Service) UploadProfilePhoto(ctx context.Context, userID string, data io.Reader, filename, contentType string) (string, error) {
	objectPath := ProfilePhotoPath(userID, uuid.NewString(), filename)

	writer := s.client.Bucket(s.bucketName).Object(objectPath).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = "private, max-age=3600"

	if _, err := io.Copy(writer, data); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("failed to write to storage: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}

	return objectPath, nil
}

// SignedURL creates a V4 signed GET URL for an object.
func (s *Service) SignedURL(_ context.Context, objectPath string, expiration time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expiration),
	}

	url, err := s.client.Bucket(s.bucketName).SignedURL(objectPath, opts)
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}
	return url, nil
}

// Close closes the storage client.
func (s *Service) Close() error {
	return s.client.Close()
}

// ProfilePhotoPath builds the object path of a profile photo.
func ProfilePhotoPath(userID, objectID, filename string) string {
	return fmt.Sprintf("profiles/%s/%s%s", userID, objectID, fileExtension(filename))
}

func fileExtension(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" || ext == "." {
		return ".jpg"
	}
	return ext
}
