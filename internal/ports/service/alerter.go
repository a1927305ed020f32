package service

import "context"

// IAlerterService отправка оперативных алертов команде
type IAlerterService interface {
	SendAlert(ctx context.Context, message string) error
}
