package openai

// chatMessage сообщение в диалоге chat completions
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// responseFormat формат ответа модели
type responseFormat struct {
	Type string `json:"type"`
}

// chatCompletionRequest запрос к /chat/completions
type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float32         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// chatCompletionResponse ответ /chat/completions
type chatCompletionResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// titlesPayload JSON-структура, которую модель возвращает на запрос заголовков
type titlesPayload struct {
	Titles []string `json:"titles"`
}

// gistPayload JSON-структура черновика истории от модели
type gistPayload struct {
	Preview     string   `json:"preview"`
	ImagePrompt string   `json:"image_prompt"`
	Chapters    []string `json:"chapters"`
}

// chaptersPayload JSON-структура полных глав от модели
type chaptersPayload struct {
	Chapters []struct {
		Title       string `json:"title"`
		Content     string `json:"content"`
		ImagePrompt string `json:"image_prompt"`
	} `json:"chapters"`
}
