package domain

import (
	"strings"
	"time"
)

type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformX         Platform = "x"
	PlatformTikTok    Platform = "tiktok"
	PlatformOther     Platform = "other"
)

var Platforms = []Platform{PlatformInstagram, PlatformFacebook, PlatformX, PlatformTikTok, PlatformOther}

func (p Platform) Valid() bool {
	for _, known := range Platforms {
		if p == known {
			return true
		}
	}
	return false
}

// Host is the public web host used to build profile links. Empty for
// PlatformOther, which needs an explicit profile URL.
func (p Platform) Host() string {
	switch p {
	case PlatformInstagram:
		return "instagram.com"
	case PlatformFacebook:
		return "facebook.com"
	case PlatformX:
		return "x.com"
	case PlatformTikTok:
		return "tiktok.com"
	default:
		return ""
	}
}

type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type Account struct {
	ID          string    `json:"id"`
	Platform    Platform  `json:"platform"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"display_name,omitempty"`
	ProfileURL  string    `json:"profile_url,omitempty"`
	Enabled     bool      `json:"enabled"`
	Tags        []Tag     `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProfileLink is the configured profile URL or, failing that, the canonical
// https://<host>/<handle> form.
func (a Account) ProfileLink() string {
	if a.ProfileURL != "" {
		return a.ProfileURL
	}
	host := a.Platform.Host()
	handle := strings.TrimPrefix(strings.TrimSpace(a.Handle), "@")
	if host == "" || handle == "" {
		return ""
	}
	return "https://" + host + "/" + handle
}

type CreateAccountRequest struct {
	Platform    Platform `json:"platform"`
	Handle      string   `json:"handle"`
	DisplayName string   `json:"display_name"`
	ProfileURL  string   `json:"profile_url"`
	FeedRef     string   `json:"feed_url"`
	TagIDs      []string `json:"tag_ids"`
}

type UpdateAccountRequest struct {
	DisplayName *string  `json:"display_name"`
	ProfileURL  *string  `json:"profile_url"`
	FeedRef     *string  `json:"feed_url"`
	Enabled     *bool    `json:"enabled"`
	TagIDs      []string `json:"tag_ids"`
}

type AccountFilter struct {
	Platform Platform
	TagID    string
	Enabled  *bool
}

// AccountDetail is what the dashboard shows for one account.
type AccountDetail struct {
	Account
	Feed    *Feed        `json:"feed,omitempty"`
	Actions []ActionSpec `json:"actions"`
}
