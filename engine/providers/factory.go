package providers

import (
	"github.com/AzielCF/az-engage/core/config"
	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/sirupsen/logrus"
)

// NewCommentGenerator returns the configured generator, or nil when AI
// comments are disabled or no key is set. A nil generator makes the
// registry fall back to manual comments.
func NewCommentGenerator(cfg config.AIConfig) domain.CommentGenerator {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAI == "" {
			logrus.Warn("[AI] OPENAI_API_KEY is empty, AI comments disabled")
			return nil
		}
		return NewOpenAICommentGenerator(cfg.OpenAI, cfg.Model)
	case "gemini":
		if cfg.Gemini == "" {
			logrus.Warn("[AI] GEMINI_API_KEY is empty, AI comments disabled")
			return nil
		}
		return NewGeminiCommentGenerator(cfg.Gemini, cfg.Model)
	case "", "none":
		return nil
	default:
		logrus.Warnf("[AI] unknown provider %q, AI comments disabled", cfg.Provider)
		return nil
	}
}
