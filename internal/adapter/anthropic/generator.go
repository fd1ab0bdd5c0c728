// Package anthropic generates driver warning texts with the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	systemPrompt = "You are an assistant that creates concise driver warnings."
	maxTokens    = 150
	temperature  = 0.7
)

// Generator implements domain.MessageGenerator.
type Generator struct {
	client  sdk.Client
	model   string
	timeout time.Duration
}

// NewGenerator creates a warning generator. Extra request options (base URL,
// retries) are passed through to the SDK client.
func NewGenerator(apiKey, model string, timeout time.Duration, opts ...option.RequestOption) *Generator {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Generator{
		client:  sdk.NewClient(opts...),
		model:   model,
		timeout: timeout,
	}
}

// GenerateWarning asks the model for a short cautionary message about a hazard site.
func (g *Generator) GenerateWarning(ctx context.Context, category, address, name string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	msg, err := g.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(g.model),
		MaxTokens:   maxTokens,
		System:      []sdk.TextBlockParam{{Text: systemPrompt}},
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(Prompt(category, address, name)))},
		Temperature: sdk.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: create message: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", errors.New("anthropic: response has no text content")
	}
	return text, nil
}

// Prompt is the user message sent for one hazard.
func Prompt(category, address, name string) string {
	return fmt.Sprintf(
		"Generate a brief warning message for a food delivery driver approaching %s. "+
			"There is an active %s site operated by %s. "+
			"Keep the message under 100 words, clear and cautionary.",
		address, category, name,
	)
}
