package app

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	server "github.com/fibli/story-service/internal/adapters/primary/http"
	alerterAdapter "github.com/fibli/story-service/internal/adapters/secondary/alerter"
	"github.com/fibli/story-service/internal/adapters/secondary/appstore"
	kafkaAdapter "github.com/fibli/story-service/internal/adapters/secondary/kafka"
	"github.com/fibli/story-service/internal/adapters/secondary/openai"
	"github.com/fibli/story-service/internal/adapters/secondary/stability"
	"github.com/fibli/story-service/internal/adapters/secondary/storage/pg"
	redisAdapter "github.com/fibli/story-service/internal/adapters/secondary/storage/redis"
	s3Adapter "github.com/fibli/story-service/internal/adapters/secondary/storage/s3"
	"github.com/fibli/story-service/internal/pkg/logger"
	"github.com/fibli/story-service/internal/usecases/entitlement"
)

type Config struct {
	Postgres    *pg.Config             `envconfig:"POSTGRES"`
	Redis       *redisAdapter.Config   `envconfig:"REDIS"`
	S3          *s3Adapter.Config      `envconfig:"S3"`
	Log         *logger.Config         `envconfig:"LOG"`
	Server      *server.Config         `envconfig:"APISERVER"`
	OpenAI      *openai.Config         `envconfig:"OPENAI"`
	Stability   *stability.Config      `envconfig:"STABILITY"`
	AppStore    *appstore.Config       `envconfig:"APPSTORE"`
	Alerter     *alerterAdapter.Config `envconfig:"ALERTER"`
	Entitlement *entitlement.Config    `envconfig:"ENTITLEMENT"`

	// Стрим обновлений покупок от store-server и шина аудита
	KafkaPurchases *kafkaAdapter.Config `envconfig:"KAFKA_PURCHASES"`
	KafkaAudit     *kafkaAdapter.Config `envconfig:"KAFKA_AUDIT"`
}

func NewEnvConfig(envPrefix string) (*Config, error) {
	cfg := &Config{}

	_ = godotenv.Load("deployments/local/.env")

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
