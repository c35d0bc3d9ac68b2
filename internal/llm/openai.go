package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"datakiln/internal/datagen"
)

// OpenAIBackend generates structured rows through the OpenAI chat
// completions API, enforcing the row shape with a JSON-schema response
// format.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

func NewOpenAIBackend(apiKey, model string) *OpenAIBackend {
	return &OpenAIBackend{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (b *OpenAIBackend) GenerateStructured(ctx context.Context, prompt string, shape *datagen.Shape, temperature float32) (json.RawMessage, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       b.model,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "table_rows",
				Schema: shape,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("completion returned no choices")
	}

	return json.RawMessage(resp.Choices[0].Message.Content), nil
}
