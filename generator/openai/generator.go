package openai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/w-h-a/brain/generator"
)

const defaultModel = "gpt-4o-mini"

type openAIGenerator struct {
	options generator.Options
	client  *openai.Client
}

func (g *openAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if len(g.options.System) > 0 {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: g.options.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:       g.options.Model,
		MaxTokens:   g.options.MaxTokens,
		Temperature: g.options.Temperature,
		Messages:    messages,
	}

	if g.options.JSONOutput {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	rsp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(rsp.Choices) == 0 {
		return "", generator.ErrEmptyResponse
	}

	choice := rsp.Choices[0]
	if choice.FinishReason == openai.FinishReasonLength {
		return "", generator.ErrTruncated
	}

	if len(choice.Message.Content) == 0 {
		return "", generator.ErrEmptyResponse
	}

	return choice.Message.Content, nil
}

func NewGenerator(opts ...generator.Option) generator.Generator {
	options := generator.NewOptions(opts...)

	if len(options.ApiKey) == 0 {
		panic("missing api key for openai generator")
	}

	if len(options.Model) == 0 {
		options.Model = defaultModel
	}

	cfg := openai.DefaultConfig(options.ApiKey)
	if len(options.Location) > 0 {
		cfg.BaseURL = options.Location
	}

	return &openAIGenerator{
		options: options,
		client:  openai.NewClientWithConfig(cfg),
	}
}
