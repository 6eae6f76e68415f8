package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

const (
	DeepseekName = "Deepseek"

	OllamaDefaultHost = "http://localhost:11434"
)

// DeepseekProvider generates through a local Ollama process. No credentials
// are involved.
type DeepseekProvider struct {
	client    *api.Client
	modelName string
}

func NewDeepseekProvider(host, modelName string, httpClient *http.Client) (*DeepseekProvider, error) {
	if host == "" {
		host = OllamaDefaultHost
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama host %q: %w", host, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &DeepseekProvider{
		client:    api.NewClient(base, httpClient),
		modelName: modelName,
	}, nil
}

func (p *DeepseekProvider) Name() string { return DeepseekName }

func (p *DeepseekProvider) NewSession() Adapter { return p }

func (p *DeepseekProvider) Send(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  p.modelName,
		Prompt: prompt,
		Stream: &stream,
	}

	var record *api.GenerateResponse
	err := p.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		record = &resp
		return nil
	})
	if err != nil {
		return "", transportError(DeepseekName, err)
	}

	// An empty response is a valid, if unhelpful, reply.
	if record == nil {
		return "", shapeError(DeepseekName, "no generate record received")
	}
	return record.Response, nil
}
