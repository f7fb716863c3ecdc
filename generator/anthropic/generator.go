package anthropic

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/w-h-a/brain/generator"
)

const defaultModel = "claude-3-haiku-20240307"

type anthropicGenerator struct {
	options generator.Options
	client  anthropic.Client
}

func (g *anthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(g.options.Model),
		MaxTokens:   int64(g.options.MaxTokens),
		Temperature: anthropic.Float(float64(g.options.Temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	if len(g.options.System) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: g.options.System}}
	}

	// Claude has no JSON mode; prefilling the turn with "{" keeps it from
	// wrapping the object in prose.
	prefill := ""
	if g.options.JSONOutput {
		prefill = "{"
		params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(prefill)))
	}

	msg, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	if msg.StopReason == anthropic.StopReasonMaxTokens {
		return "", generator.ErrTruncated
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}

	if b.Len() == 0 {
		return "", generator.ErrEmptyResponse
	}

	return prefill + b.String(), nil
}

func NewGenerator(opts ...generator.Option) generator.Generator {
	options := generator.NewOptions(opts...)

	if len(options.ApiKey) == 0 {
		panic("missing api key for anthropic generator")
	}

	if len(options.Model) == 0 {
		options.Model = defaultModel
	}

	clientOpts := []anthropicopt.RequestOption{
		anthropicopt.WithAPIKey(options.ApiKey),
		anthropicopt.WithMaxRetries(0),
	}
	if len(options.Location) > 0 {
		clientOpts = append(clientOpts, anthropicopt.WithBaseURL(options.Location))
	}

	return &anthropicGenerator{
		options: options,
		client:  anthropic.NewClient(clientOpts...),
	}
}
