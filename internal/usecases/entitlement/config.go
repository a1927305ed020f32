package entitlement

import (
	"time"

	"github.com/fibli/story-service/internal/domain"
)

// Config настройки леджера
type Config struct {
	FreeQuota              int `envconfig:"FREE_QUOTA" default:"1"`
	SubscriptionWindowDays int `envconfig:"SUBSCRIPTION_WINDOW_DAYS" default:"30"`
}

// GetFreeQuota возвращает бесплатную квоту с подстановкой дефолта
func (c *Config) GetFreeQuota() int {
	if c == nil || c.FreeQuota <= 0 {
		return domain.DefaultFreeQuota
	}
	return c.FreeQuota
}

// GetSubscriptionWindow возвращает окно действия подписки
func (c *Config) GetSubscriptionWindow() time.Duration {
	if c == nil || c.SubscriptionWindowDays <= 0 {
		return domain.DefaultSubscriptionWindow
	}
	return time.Duration(c.SubscriptionWindowDays) * 24 * time.Hour
}
