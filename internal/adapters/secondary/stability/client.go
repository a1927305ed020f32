package stability

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const generateCoreEndpoint = "v2beta/stable-image/generate/core"

// truncateString обрезает строку до указанной длины
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Client клиент генерации иллюстраций через Stability AI
type Client struct {
	cfg        *Config
	HTTPClient *http.Client
	Log        *slog.Logger
}

// NewClient создаёт новый клиент Stability AI
func NewClient(cfg *Config, log *slog.Logger) *Client {
	return &Client{
		cfg: cfg,
		HTTPClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		Log: log,
	}
}

// GenerateImage генерирует изображение по текстовому промпту и возвращает сырые байты
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fields := map[string]string{
		"prompt":        prompt,
		"aspect_ratio":  c.cfg.AspectRatio,
		"output_format": c.cfg.OutputFormat,
		"style_preset":  c.cfg.StylePreset,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/" + generateCoreEndpoint
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.ApiKey)
	httpReq.Header.Set("Accept", "image/*")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.Log.Debug("stability API returned non-200 status",
			"status_code", resp.StatusCode,
			"body_preview", truncateString(string(body), 200),
		)
		return nil, fmt.Errorf("stability API error [status=%d]: %s", resp.StatusCode, truncateString(string(body), 500))
	}

	c.Log.Debug("image generated",
		"size_bytes", len(body),
		"output_format", c.cfg.OutputFormat,
	)

	return body, nil
}
