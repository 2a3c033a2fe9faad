package providers

import (
	"context"
	"fmt"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAICommentGenerator produces comments through the chat completions API.
type OpenAICommentGenerator struct {
	client openai.Client
	model  string
}

func NewOpenAICommentGenerator(apiKey, model string, opts ...option.RequestOption) *OpenAICommentGenerator {
	if model == "" {
		model = DefaultOpenAIModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAICommentGenerator{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (g *OpenAICommentGenerator) GenerateComments(ctx context.Context, req domain.CommentRequest) ([]string, error) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"comments": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required":             []string{"comments"},
		"additionalProperties": false,
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildPrompt(req)),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "comments_result",
					Schema: any(schema),
					Strict: openai.Bool(true),
				},
			},
		},
	}

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, &domain.GenError{Provider: "openai", Err: err}
	}
	if len(completion.Choices) == 0 {
		return nil, &domain.GenError{Provider: "openai", Err: fmt.Errorf("no response from openai")}
	}

	logrus.WithFields(logrus.Fields{
		"model":         g.model,
		"input_tokens":  completion.Usage.PromptTokens,
		"output_tokens": completion.Usage.CompletionTokens,
	}).Debug("[OPENAI] Comments generated")

	return finish("openai", completion.Choices[0].Message.Content, req.Count)
}
