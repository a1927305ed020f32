package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fibli/story-service/internal/domain"
	"github.com/fibli/story-service/internal/ports/service"
)

const (
	chatCompletionsEndpoint = "chat/completions"

	suggestedTitlesCount = 6
)

// truncateString обрезает строку до указанной длины
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Client клиент текстовой генерации поверх OpenAI chat completions
type Client struct {
	cfg        *Config
	HTTPClient *http.Client
	Log        *slog.Logger
}

// NewClient создаёт новый клиент OpenAI
func NewClient(cfg *Config, log *slog.Logger) *Client {
	return &Client{
		cfg: cfg,
		HTTPClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		Log: log,
	}
}

// SuggestTitles предлагает новые заголовки историй, избегая уже использованных
func (c *Client) SuggestTitles(ctx context.Context, language string, existingTitles []string) ([]string, error) {
	system := "You are a children's story title generator. " +
		"Respond with a JSON object of the form {\"titles\": [...]} and nothing else."

	var sb strings.Builder
	fmt.Fprintf(&sb, "Suggest %d fresh, imaginative titles for children's bedtime stories in %s.\n",
		suggestedTitlesCount, languageName(language))
	if len(existingTitles) > 0 {
		sb.WriteString("Do not repeat or closely resemble any of these existing titles:\n")
		for _, t := range existingTitles {
			fmt.Fprintf(&sb, "- %s\n", t)
		}
	}

	var payload titlesPayload
	if err := c.completeJSON(ctx, system, sb.String(), &payload); err != nil {
		return nil, fmt.Errorf("failed to suggest titles: %w", err)
	}

	if len(payload.Titles) == 0 {
		return nil, fmt.Errorf("LLM returned no titles")
	}
	if len(payload.Titles) > suggestedTitlesCount {
		payload.Titles = payload.Titles[:suggestedTitlesCount]
	}

	return payload.Titles, nil
}

// GenerateGist генерирует превью истории, промпт обложки и план глав
func (c *Client) GenerateGist(ctx context.Context, req service.GistRequest) (*domain.GistDraft, error) {
	system := "You are a children's story writer. " +
		"Respond with a JSON object {\"preview\": string, \"image_prompt\": string, \"chapters\": [string]} and nothing else. " +
		"\"preview\" is a short teaser (2-3 sentences), \"image_prompt\" describes the cover illustration, " +
		"\"chapters\" is the list of one-line chapter outlines."

	user := fmt.Sprintf(
		"Write the outline of a children's story titled %q in %s.\n"+
			"Target age range: %s years old.\n"+
			"Mood: %s.\n"+
			"The story must have %s.",
		req.Title, languageName(req.Language), req.AgeRange, req.Mood, req.Length.ChapterRange(),
	)

	var payload gistPayload
	if err := c.completeJSON(ctx, system, user, &payload); err != nil {
		return nil, fmt.Errorf("failed to generate gist: %w", err)
	}

	if payload.Preview == "" || len(payload.Chapters) == 0 {
		return nil, fmt.Errorf("LLM returned incomplete gist")
	}

	return &domain.GistDraft{
		Preview:     payload.Preview,
		ImagePrompt: payload.ImagePrompt,
		Chapters:    payload.Chapters,
	}, nil
}

// GenerateChapters пишет полный текст глав по черновику истории
func (c *Client) GenerateChapters(ctx context.Context, gist *domain.StoryGist, language string) ([]domain.ChapterDraft, error) {
	system := "You are a children's story writer. " +
		"Respond with a JSON object {\"chapters\": [{\"title\": string, \"content\": string, \"image_prompt\": string}]} and nothing else. " +
		"Each chapter's \"image_prompt\" describes one illustration for that chapter."

	var sb strings.Builder
	fmt.Fprintf(&sb, "Write the full text of a children's story titled %q in %s.\n", gist.Title, languageName(language))
	fmt.Fprintf(&sb, "Target age range: %s years old. Mood: %s.\n", gist.AgeRange, gist.Mood)
	fmt.Fprintf(&sb, "Story teaser: %s\n", gist.Preview)
	sb.WriteString("Follow this chapter outline exactly, one chapter per outline entry:\n")
	for i, outline := range gist.Chapters {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, outline)
	}

	var payload chaptersPayload
	if err := c.completeJSON(ctx, system, sb.String(), &payload); err != nil {
		return nil, fmt.Errorf("failed to generate chapters: %w", err)
	}

	if len(payload.Chapters) == 0 {
		return nil, fmt.Errorf("LLM returned no chapters")
	}

	chapters := make([]domain.ChapterDraft, 0, len(payload.Chapters))
	for _, ch := range payload.Chapters {
		chapters = append(chapters, domain.ChapterDraft{
			Title:       ch.Title,
			Content:     ch.Content,
			ImagePrompt: ch.ImagePrompt,
		})
	}

	return chapters, nil
}

// completeJSON выполняет запрос в JSON-режиме и разбирает ответ модели в dest
func (c *Client) completeJSON(ctx context.Context, system, user string, dest any) error {
	reqBody := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    c.cfg.Temperature,
		MaxTokens:      c.cfg.MaxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/" + chatCompletionsEndpoint
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.ApiKey)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.Log.Debug("openai API returned non-200 status",
			"status_code", resp.StatusCode,
			"body_preview", truncateString(string(body), 200),
		)
		return fmt.Errorf("openai API error [status=%d]: %s", resp.StatusCode, truncateString(string(body), 500))
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return fmt.Errorf("openai API unmarshal failed [status=%d]: %w", resp.StatusCode, err)
	}

	if len(completion.Choices) == 0 {
		return fmt.Errorf("openai API returned no choices")
	}

	content := completion.Choices[0].Message.Content

	c.Log.Debug("openai completion received",
		"model", c.cfg.Model,
		"finish_reason", completion.Choices[0].FinishReason,
		"total_tokens", completion.Usage.TotalTokens,
	)

	if err := json.Unmarshal([]byte(content), dest); err != nil {
		c.Log.Debug("failed to parse model JSON output",
			"error", err,
			"content_preview", truncateString(content, 200),
		)
		return fmt.Errorf("failed to parse model output: %w", err)
	}

	return nil
}

// languageName разворачивает код языка в название для промпта
func languageName(code string) string {
	switch strings.ToLower(code) {
	case "", "en":
		return "English"
	case "es":
		return "Spanish"
	case "fr":
		return "French"
	case "de":
		return "German"
	case "it":
		return "Italian"
	case "pt":
		return "Portuguese"
	case "ru":
		return "Russian"
	default:
		return code
	}
}
