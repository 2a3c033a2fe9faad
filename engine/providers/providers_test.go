package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AzielCF/az-engage/core/config"
	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseComments(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"wrapped object", `{"comments": ["Great shot", "  ", "Love it"]}`, []string{"Great shot", "Love it"}},
		{"bare array", `["one", "two"]`, []string{"one", "two"}},
		{"fenced json", "```json\n{\"comments\":[\"fenced\"]}\n```", []string{"fenced"}},
		{"numbered lines", "1. First one\n2) Second one\n- Third one", []string{"First one", "Second one", "Third one"}},
		{"quoted lines", "[\n\"alpha\",\n\"beta\"\n", []string{"alpha", "beta"}},
		{"empty", "   ", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseComments(tc.in))
		})
	}
}

func TestFinish(t *testing.T) {
	comments, err := finish("test", `{"comments":["a","b","c"]}`, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, comments)

	_, err = finish("test", `{"comments":[]}`, 2)
	var genErr *domain.GenError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "test", genErr.Provider)
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt(domain.CommentRequest{
		Platform:     domain.PlatformInstagram,
		PostText:     "New collection",
		Count:        3,
		Instructions: "be playful",
		UseEmojis:    true,
	})
	assert.Contains(t, prompt, "Number of comments: 3")
	assert.Contains(t, prompt, "Post caption: New collection")
	assert.Contains(t, prompt, "Emojis: yes")
	assert.Contains(t, prompt, "Hashtags: no.")
	assert.Contains(t, prompt, "Directives: be playful")
}

func TestOpenAICommentGenerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"comments\":[\"Nice!\",\"So good\"]}"}
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	gen := NewOpenAICommentGenerator("sk-test", "", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	comments, err := gen.GenerateComments(context.Background(), domain.CommentRequest{Count: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Nice!", "So good"}, comments)
}

func TestNewCommentGenerator(t *testing.T) {
	assert.Nil(t, NewCommentGenerator(config.AIConfig{Provider: "openai"}))
	assert.Nil(t, NewCommentGenerator(config.AIConfig{Provider: "none", OpenAI: "k"}))
	assert.Nil(t, NewCommentGenerator(config.AIConfig{Provider: "mystery", OpenAI: "k"}))
	assert.IsType(t, &OpenAICommentGenerator{}, NewCommentGenerator(config.AIConfig{Provider: "openai", OpenAI: "k"}))
	assert.IsType(t, &GeminiCommentGenerator{}, NewCommentGenerator(config.AIConfig{Provider: "gemini", Gemini: "k"}))
}
