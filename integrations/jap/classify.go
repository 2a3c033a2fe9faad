package jap

import (
	"strings"
	"unicode"

	"github.com/AzielCF/az-engage/engine/domain"
)

// Keywords match whole words of the service name, so "x" hits "X Followers"
// but not "Max 1M". A keyword with a space must match consecutive words.
var platformKeywords = []struct {
	platform domain.Platform
	words    []string
}{
	{domain.PlatformInstagram, []string{"instagram", "insta", "ig", "igtv"}},
	{domain.PlatformFacebook, []string{"facebook", "fb"}},
	{domain.PlatformX, []string{"twitter", "x", "tweet", "tweets"}},
	{domain.PlatformTikTok, []string{"tiktok", "tik tok"}},
}

var actionKeywords = []struct {
	action domain.ActionType
	words  []string
}{
	{domain.ActionFollow, []string{"followers", "follower", "follows", "subscribers", "subscriber", "members", "member"}},
	{domain.ActionLike, []string{"likes", "like", "love", "loves", "reactions", "reaction"}},
	{domain.ActionView, []string{"views", "view", "watch", "impressions", "impression"}},
	{domain.ActionComment, []string{"comments", "comment"}},
}

// Classify guesses platform and action type from a provider service name.
// Unknown names map to PlatformOther and ActionCustom.
func Classify(name string) (domain.Platform, domain.ActionType) {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	platform := domain.PlatformOther
	for _, p := range platformKeywords {
		if hasAny(words, p.words) {
			platform = p.platform
			break
		}
	}

	action := domain.ActionCustom
	for _, a := range actionKeywords {
		if hasAny(words, a.words) {
			action = a.action
			break
		}
	}
	return platform, action
}

func hasAny(words, keywords []string) bool {
	for _, kw := range keywords {
		if hasPhrase(words, strings.Fields(kw)) {
			return true
		}
	}
	return false
}

func hasPhrase(words, phrase []string) bool {
	if len(phrase) == 0 {
		return false
	}
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j, w := range phrase {
			if words[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
