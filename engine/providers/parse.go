package providers

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/AzielCF/az-engage/engine/domain"
)

var listMarker = regexp.MustCompile(`^(\d+[.)]|[-*•])\s+`)

// ParseComments extracts comment texts from a model answer. It accepts
// {"comments": [...]}, a bare JSON array, or one comment per line.
func ParseComments(text string) []string {
	text = stripCodeFence(strings.TrimSpace(text))
	if text == "" {
		return nil
	}

	var wrapped struct {
		Comments []any `json:"comments"`
	}
	if err := json.Unmarshal([]byte(text), &wrapped); err == nil && wrapped.Comments != nil {
		return cleanAll(wrapped.Comments)
	}

	var list []any
	if err := json.Unmarshal([]byte(text), &list); err == nil {
		return cleanAll(list)
	}

	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.ContainsAny(line[:1], "{}[]") {
			continue
		}
		line = listMarker.ReplaceAllString(line, "")
		line = strings.TrimSuffix(line, ",")
		line = strings.TrimSpace(strings.Trim(line, `"`))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func cleanAll(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		s := strings.TrimSpace(fmt.Sprint(v))
		if s != "" && v != nil {
			out = append(out, s)
		}
	}
	return out
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if i := strings.Index(text, "\n"); i >= 0 {
		text = text[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}

// finish trims the parsed list to the requested count and turns an empty
// answer into a GenError.
func finish(provider, text string, count int) ([]string, error) {
	comments := ParseComments(text)
	if len(comments) == 0 {
		return nil, &domain.GenError{Provider: provider, Err: fmt.Errorf("no comments in response")}
	}
	if count > 0 && len(comments) > count {
		comments = comments[:count]
	}
	return comments, nil
}

const systemPrompt = `You write short, natural social media comments for a post.
Answer only with JSON of the form {"comments": ["...", "..."]}.
Every comment must be different, in the language of the post, and sound like a real person.`

func buildPrompt(req domain.CommentRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Platform: %s\n", req.Platform)
	if req.PostURL != "" {
		fmt.Fprintf(&b, "Post URL: %s\n", req.PostURL)
	}
	if req.PostTitle != "" {
		fmt.Fprintf(&b, "Post title: %s\n", req.PostTitle)
	}
	if req.PostText != "" {
		fmt.Fprintf(&b, "Post caption: %s\n", req.PostText)
	}
	fmt.Fprintf(&b, "Number of comments: %d\n", req.Count)
	if req.UseHashtags {
		b.WriteString("Hashtags: yes, add one or two relevant hashtags.\n")
	} else {
		b.WriteString("Hashtags: no.\n")
	}
	if req.UseEmojis {
		b.WriteString("Emojis: yes, use them naturally.\n")
	} else {
		b.WriteString("Emojis: no.\n")
	}
	if strings.TrimSpace(req.Instructions) != "" {
		fmt.Fprintf(&b, "Directives: %s\n", strings.TrimSpace(req.Instructions))
	}
	return b.String()
}
