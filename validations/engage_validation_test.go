package validations

import (
	"context"
	"testing"

	"github.com/AzielCF/az-engage/engine/domain"
	pkgError "github.com/AzielCF/az-engage/pkg/error"
	"github.com/stretchr/testify/assert"
)

func TestValidateCreateAccount(t *testing.T) {
	valid := domain.CreateAccountRequest{
		Platform: domain.PlatformInstagram,
		Handle:   "@brand.official",
		FeedRef:  "https://rss.app/feeds/abc123.xml",
	}

	tests := []struct {
		name    string
		mutate  func(r *domain.CreateAccountRequest)
		wantErr bool
	}{
		{"valid", func(r *domain.CreateAccountRequest) {}, false},
		{"unknown platform", func(r *domain.CreateAccountRequest) { r.Platform = "myspace" }, true},
		{"missing handle", func(r *domain.CreateAccountRequest) { r.Handle = "" }, true},
		{"handle with spaces", func(r *domain.CreateAccountRequest) { r.Handle = "my brand" }, true},
		{"missing feed", func(r *domain.CreateAccountRequest) { r.FeedRef = "" }, true},
		{"bad profile url", func(r *domain.CreateAccountRequest) { r.ProfileURL = "not a url" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := ValidateCreateAccount(context.Background(), req, false)
			if tt.wantErr {
				assert.Error(t, err)
				assert.IsType(t, pkgError.ValidationError(""), err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCreateAccount_FeedOptionalWhenProvisioning(t *testing.T) {
	req := domain.CreateAccountRequest{Platform: domain.PlatformTikTok, Handle: "acme"}

	assert.Error(t, ValidateCreateAccount(context.Background(), req, false))
	assert.NoError(t, ValidateCreateAccount(context.Background(), req, true))

	req.FeedRef = "not a url"
	assert.Error(t, ValidateCreateAccount(context.Background(), req, true))
}

func TestValidateCreateAction(t *testing.T) {
	assert.NoError(t, ValidateCreateAction(context.Background(), domain.CreateActionRequest{Type: domain.ActionLike, ServiceID: 10}))
	assert.Error(t, ValidateCreateAction(context.Background(), domain.CreateActionRequest{Type: "boost", ServiceID: 10}))
	assert.Error(t, ValidateCreateAction(context.Background(), domain.CreateActionRequest{Type: domain.ActionLike}))
}

func TestValidateHistoryFilter(t *testing.T) {
	assert.NoError(t, ValidateHistoryFilter(context.Background(), domain.HistoryFilter{}))
	assert.NoError(t, ValidateHistoryFilter(context.Background(), domain.HistoryFilter{Platform: domain.PlatformX, Status: domain.StatusFailed, Limit: 50}))
	assert.Error(t, ValidateHistoryFilter(context.Background(), domain.HistoryFilter{Limit: 10000}))
	assert.Error(t, ValidateHistoryFilter(context.Background(), domain.HistoryFilter{Kind: "cron"}))
}

func TestValidateCreateTag(t *testing.T) {
	assert.NoError(t, ValidateCreateTag(context.Background(), domain.Tag{Name: "vip", Color: "#FFAA00"}))
	assert.NoError(t, ValidateCreateTag(context.Background(), domain.Tag{Name: "vip"}))
	assert.Error(t, ValidateCreateTag(context.Background(), domain.Tag{Name: "vip", Color: "orange"}))
	assert.Error(t, ValidateCreateTag(context.Background(), domain.Tag{}))
}
