package jap

import (
	"testing"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		platform domain.Platform
		action   domain.ActionType
	}{
		{"Instagram Likes | Real", domain.PlatformInstagram, domain.ActionLike},
		{"IG Followers [Refill 30D]", domain.PlatformInstagram, domain.ActionFollow},
		{"X (Twitter) Followers", domain.PlatformX, domain.ActionFollow},
		{"Facebook Page Likes", domain.PlatformFacebook, domain.ActionLike},
		{"FB Post Reactions", domain.PlatformFacebook, domain.ActionLike},
		{"Tik Tok Views", domain.PlatformTikTok, domain.ActionView},
		{"TikTok Comments - Custom", domain.PlatformTikTok, domain.ActionComment},
		{"YouTube Views [Max 1M]", domain.PlatformOther, domain.ActionView},
		{"Spotify Plays - Max 10K", domain.PlatformOther, domain.ActionCustom},
		{"Big Fan Page Boost", domain.PlatformOther, domain.ActionCustom},
		{"Telegram Members - Figma Channel", domain.PlatformOther, domain.ActionFollow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			platform, action := Classify(tt.name)
			assert.Equal(t, tt.platform, platform)
			assert.Equal(t, tt.action, action)
		})
	}
}
