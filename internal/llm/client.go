// Package llm wraps the chat-completion service the agent reasons with.
package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Client wraps a langchaingo model for tool-calling chat completions.
type Client struct {
	model     llms.Model
	modelName string
}

// New creates an OpenAI-backed completion client.
func New(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key required")
	}

	m, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai model: %w", err)
	}

	return &Client{model: m, modelName: model}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.modelName
}

// Chat sends one completion request. When tools are supplied the model
// may answer with tool calls (tool choice is automatic); with tools nil
// the model is forced into a plain natural-language reply, which is how
// the second phase of a tool round-trip synthesizes its answer.
func (c *Client) Chat(ctx context.Context, messages []llms.MessageContent, tools []llms.Tool) (*llms.ContentChoice, error) {
	var opts []llms.CallOption
	if len(tools) > 0 {
		opts = append(opts, llms.WithTools(tools))
	}

	response, err := c.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: no response choices")
	}

	return response.Choices[0], nil
}
