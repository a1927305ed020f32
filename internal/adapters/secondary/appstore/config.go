package appstore

type Config struct {
	BaseURL    string `envconfig:"BASE_URL"` // пусто = платёжный слой недоступен
	ApiVersion string `envconfig:"API_VERSION" default:"v1"`
	ApiKey     string `envconfig:"API_KEY"`
	SkipSSL    bool   `envconfig:"SKIP_SSL" default:"false"`
}

// ShouldSkipSSL пропуск верификации сертификата (только для стендов)
func (c *Config) ShouldSkipSSL() bool {
	return c.SkipSSL
}
