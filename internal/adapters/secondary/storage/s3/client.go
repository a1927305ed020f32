package s3

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/fibli/story-service/internal/ports/service"
)

// Client обёртка над minio.Client для хранения иллюстраций.
// Реализует service.IImageStore.
type Client struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
	log           *slog.Logger
}

// NewClient создаёт новый S3 клиент
func NewClient(client *minio.Client, bucket, publicBaseURL string, log *slog.Logger) service.IImageStore {
	return &Client{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		log:           log,
	}
}

// Upload сохраняет файл и возвращает публичный URL
func (c *Client) Upload(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	_, err := c.client.PutObject(ctx, c.bucket, filename, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", filename, err)
	}

	url := fmt.Sprintf("%s/%s/%s", c.publicBaseURL, c.bucket, filename)

	c.log.Debug("image uploaded",
		"bucket", c.bucket,
		"filename", filename,
		"size", len(data),
	)

	return url, nil
}

// Remove удаляет файл; отсутствие файла не является ошибкой
func (c *Client) Remove(ctx context.Context, filename string) error {
	if filename == "" {
		return nil
	}

	err := c.client.RemoveObject(ctx, c.bucket, filename, minio.RemoveObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("failed to remove object %s: %w", filename, err)
	}

	return nil
}
