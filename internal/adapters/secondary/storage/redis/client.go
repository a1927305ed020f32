package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fibli/story-service/internal/domain"
	"github.com/fibli/story-service/internal/ports/counterstore"
)

// Client обёртка над redis.Client, реализует counterstore.Store.
// Счётчики хранятся без TTL: это биллинговое состояние, а не кэш.
type Client struct {
	client    *redis.Client
	namespace string
}

// NewStore создаёт хранилище счётчиков поверх Redis
func NewStore(client *redis.Client, namespace string) counterstore.Store {
	return &Client{
		client:    client,
		namespace: namespace,
	}
}

func (c *Client) key(key string) string {
	return c.namespace + ":" + key
}

// Get получает значение по ключу; отсутствие ключа не является ошибкой
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: redis get failed: %v", domain.ErrStorageUnavailable, err)
	}
	return val, true, nil
}

// Set устанавливает значение по ключу
func (c *Client) Set(ctx context.Context, key string, value string) error {
	if err := c.client.Set(ctx, c.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: redis set failed: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// SetMulti записывает несколько ключей одной командой MSET (атомарно)
func (c *Client) SetMulti(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	pairs := make([]interface{}, 0, len(values)*2)
	for key, value := range values {
		pairs = append(pairs, c.key(key), value)
	}
	if err := c.client.MSet(ctx, pairs...).Err(); err != nil {
		return fmt.Errorf("%w: redis mset failed: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// Close закрывает подключение
func (c *Client) Close() error {
	return c.client.Close()
}
