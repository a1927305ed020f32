package stability

// Config конфигурация клиента Stability AI
type Config struct {
	BaseURL      string `envconfig:"BASE_URL" default:"https://api.stability.ai"`
	ApiKey       string `envconfig:"API_KEY" required:"true"`
	AspectRatio  string `envconfig:"ASPECT_RATIO" default:"1:1"`
	OutputFormat string `envconfig:"OUTPUT_FORMAT" default:"webp"`
	StylePreset  string `envconfig:"STYLE_PRESET" default:"digital-art"`
}
