package reason

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIReasoner backs the Reasoner capability with the OpenAI chat API,
// forcing JSON-object responses.
type OpenAIReasoner struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *slog.Logger
}

// NewOpenAIReasoner builds a reasoner over the OpenAI API. An empty apiKey
// yields an unavailable reasoner rather than an error, so callers can wire it
// unconditionally and let the resilience layer handle absence.
func NewOpenAIReasoner(apiKey, model string, temperature float32, logger *slog.Logger) *OpenAIReasoner {
	if logger == nil {
		logger = slog.Default()
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	r := &OpenAIReasoner{model: model, temperature: temperature, logger: logger}
	if strings.TrimSpace(apiKey) != "" {
		r.client = openai.NewClient(apiKey)
	}
	return r
}

// IsAvailable reports whether an API client is configured.
func (r *OpenAIReasoner) IsAvailable() bool {
	return r != nil && r.client != nil
}

// GenerateStructured sends the prompts with a JSON response format. The
// schema hint is appended to the system prompt so the model knows the exact
// shape to produce.
func (r *OpenAIReasoner) GenerateStructured(ctx context.Context, systemPrompt, userPrompt, schemaHint string, temperature float32) (json.RawMessage, error) {
	if !r.IsAvailable() {
		return nil, ErrUnavailable
	}
	if temperature <= 0 {
		temperature = r.temperature
	}

	system := systemPrompt
	if schemaHint != "" {
		system += "\n\nRespond with a single JSON object shaped as follows:\n" + schemaHint
	}

	req := openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("reason: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("reason: chat completion returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	r.logger.Debug("structured reasoner response",
		"model", r.model, "finish_reason", resp.Choices[0].FinishReason, "bytes", len(content))
	return json.RawMessage(content), nil
}
