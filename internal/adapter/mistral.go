package adapter

import (
	"context"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	MistralName = "Mistral"

	// MistralDefaultBaseURL is Mistral's OpenAI-compatible endpoint.
	MistralDefaultBaseURL = "https://api.mistral.ai/v1"
)

// MistralProvider calls Mistral chat completions. It is stateless: only the
// current prompt is sent, never earlier turns.
type MistralProvider struct {
	client    openai.Client
	modelName string
}

func NewMistralProvider(apiKey, baseURL, modelName string, opts ...option.RequestOption) *MistralProvider {
	if baseURL == "" {
		baseURL = MistralDefaultBaseURL
	}
	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	}, opts...)

	return &MistralProvider{
		client:    openai.NewClient(opts...),
		modelName: modelName,
	}
}

func (p *MistralProvider) Name() string { return MistralName }

func (p *MistralProvider) NewSession() Adapter { return p }

func (p *MistralProvider) Send(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.modelName),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", transportError(MistralName, err)
	}
	if len(resp.Choices) == 0 {
		return "", shapeError(MistralName, "response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
