package service

import "context"

// IImageStore объектное хранилище иллюстраций
type IImageStore interface {
	// Upload сохраняет файл и возвращает публичный URL
	Upload(ctx context.Context, filename string, data []byte, contentType string) (string, error)
	// Remove удаляет файл; отсутствие файла не является ошибкой
	Remove(ctx context.Context, filename string) error
}
