package providers

import (
	"context"
	"sync"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiCommentGenerator produces comments with structured JSON output.
// The SDK client is created lazily on first use.
type GeminiCommentGenerator struct {
	apiKey string
	model  string

	mu     sync.Mutex
	client *genai.Client
}

func NewGeminiCommentGenerator(apiKey, model string) *GeminiCommentGenerator {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiCommentGenerator{apiKey: apiKey, model: model}
}

func (g *GeminiCommentGenerator) getClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	g.client = client
	return client, nil
}

func (g *GeminiCommentGenerator) GenerateComments(ctx context.Context, req domain.CommentRequest) ([]string, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return nil, &domain.GenError{Provider: "gemini", Err: err}
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, ""),
		ResponseMIMEType:  "application/json",
		ResponseJsonSchema: &genai.Schema{
			Type: "object",
			Properties: map[string]*genai.Schema{
				"comments": {
					Type:        "array",
					Items:       &genai.Schema{Type: "string"},
					Description: "The generated comments, one per entry.",
				},
			},
			Required: []string{"comments"},
		},
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: buildPrompt(req)}}}}

	result, err := client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, &domain.GenError{Provider: "gemini", Err: err}
	}

	logrus.WithField("model", g.model).Debug("[GEMINI] Comments generated")

	return finish("gemini", result.Text(), req.Count)
}
