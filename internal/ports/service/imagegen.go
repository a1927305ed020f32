package service

import "context"

// IImageGenService генерация иллюстраций по текстовому промпту
type IImageGenService interface {
	// GenerateImage возвращает webp-байты картинки
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}
