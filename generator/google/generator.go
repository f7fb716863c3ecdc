package google

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/w-h-a/brain/generator"
	genaiopt "google.golang.org/api/option"
)

const defaultModel = "gemini-1.5-flash"

type googleGenerator struct {
	options generator.Options
	client  *genai.Client
}

func (g *googleGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.options.Model)
	model.SetTemperature(g.options.Temperature)
	model.SetMaxOutputTokens(int32(g.options.MaxTokens))

	if len(g.options.System) > 0 {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(g.options.System)}}
	}

	if g.options.JSONOutput {
		model.ResponseMIMEType = "application/json"
	}

	rsp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	return textFrom(rsp)
}

// textFrom joins the text parts of the first candidate.
func textFrom(rsp *genai.GenerateContentResponse) (string, error) {
	if rsp == nil || len(rsp.Candidates) == 0 || rsp.Candidates[0] == nil {
		return "", generator.ErrEmptyResponse
	}

	candidate := rsp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonMaxTokens {
		return "", generator.ErrTruncated
	}

	if candidate.Content == nil {
		return "", generator.ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}

	if b.Len() == 0 {
		return "", generator.ErrEmptyResponse
	}

	return b.String(), nil
}

func NewGenerator(opts ...generator.Option) generator.Generator {
	options := generator.NewOptions(opts...)

	if len(options.ApiKey) == 0 {
		panic("missing api key for google generator")
	}

	if len(options.Model) == 0 {
		options.Model = defaultModel
	}

	client, err := genai.NewClient(
		options.Context,
		genaiopt.WithAPIKey(options.ApiKey),
	)
	if err != nil {
		panic(err)
	}

	return &googleGenerator{
		options: options,
		client:  client,
	}
}
