package counterstore

import "context"

// Store надёжное key-value хранилище счётчиков использования.
// Ключи неймспейсятся вызывающим кодом по идентичности пользователя.
// Недоступность бэкенда транслируется в domain.ErrStorageUnavailable.
type Store interface {
	// Get возвращает значение и признак наличия ключа
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
	// SetMulti записывает несколько ключей атомарно: либо все, либо ни одного
	SetMulti(ctx context.Context, values map[string]string) error
	Close() error
}
