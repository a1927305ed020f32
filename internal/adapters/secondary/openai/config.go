package openai

// Config конфигурация клиента OpenAI
type Config struct {
	BaseURL     string  `envconfig:"BASE_URL" default:"https://api.openai.com/v1"`
	ApiKey      string  `envconfig:"API_KEY" required:"true"`
	Model       string  `envconfig:"MODEL" default:"gpt-4o-mini"`
	Temperature float32 `envconfig:"TEMPERATURE" default:"0.9"`
	MaxTokens   int     `envconfig:"MAX_TOKENS" default:"4096"`
}
