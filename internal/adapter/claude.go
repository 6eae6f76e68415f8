package adapter

import (
	"context"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

const (
	ClaudeName = "Claude"

	claudeMaxTokens = 4096
)

// ClaudeProvider is registered only when an Anthropic key is configured.
type ClaudeProvider struct {
	client    anthropic.Client
	modelName string
}

func NewClaudeProvider(apiKey, modelName string, opts ...anthropicoption.RequestOption) *ClaudeProvider {
	opts = append([]anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(apiKey),
		anthropicoption.WithMaxRetries(0),
	}, opts...)

	return &ClaudeProvider{
		client:    anthropic.NewClient(opts...),
		modelName: modelName,
	}
}

func (p *ClaudeProvider) Name() string { return ClaudeName }

func (p *ClaudeProvider) NewSession() Adapter { return p }

func (p *ClaudeProvider) Send(ctx context.Context, prompt string) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.modelName),
		MaxTokens: claudeMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", transportError(ClaudeName, err)
	}

	var b strings.Builder
	found := false
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
			found = true
		}
	}
	if !found {
		return "", shapeError(ClaudeName, "message has no text content")
	}
	return b.String(), nil
}
