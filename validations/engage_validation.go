package validations

import (
	"context"
	"regexp"

	"github.com/AzielCF/az-engage/engine/domain"
	pkgError "github.com/AzielCF/az-engage/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var (
	handlePattern = regexp.MustCompile(`^@?[A-Za-z0-9._-]{1,64}$`)
	colorPattern  = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

func platformRule() validation.Rule {
	values := make([]any, len(domain.Platforms))
	for i, p := range domain.Platforms {
		values[i] = p
	}
	return validation.In(values...).Error("must be one of instagram, facebook, x, tiktok, other")
}

// ValidateCreateAccount requires a feed URL unless a hosted feed can be
// provisioned for the account.
func ValidateCreateAccount(ctx context.Context, request domain.CreateAccountRequest, provisioning bool) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Platform, validation.Required, platformRule()),
		validation.Field(&request.Handle, validation.Required, validation.Match(handlePattern)),
		validation.Field(&request.DisplayName, validation.Length(0, 120)),
		validation.Field(&request.ProfileURL, is.URL),
		validation.Field(&request.FeedRef, validation.When(!provisioning, validation.Required), is.URL),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateUpdateAccount(ctx context.Context, request domain.UpdateAccountRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.DisplayName, validation.NilOrNotEmpty, validation.Length(0, 120)),
		validation.Field(&request.ProfileURL, is.URL),
		validation.Field(&request.FeedRef, validation.NilOrNotEmpty, is.URL),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateCreateTag(ctx context.Context, request domain.Tag) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Name, validation.Required, validation.Length(1, 50)),
		validation.Field(&request.Color, validation.Match(colorPattern)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

// ValidateCreateAction checks the envelope; the typed parameters are checked
// by ActionSpec.Validate once decoded.
func ValidateCreateAction(ctx context.Context, request domain.CreateActionRequest) error {
	types := make([]any, len(domain.ActionTypes))
	for i, t := range domain.ActionTypes {
		types[i] = t
	}
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Type, validation.Required, validation.In(types...)),
		validation.Field(&request.ServiceID, validation.Required, validation.Min(1)),
		validation.Field(&request.ServiceName, validation.Length(0, 200)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateInstantRequest(ctx context.Context, request domain.InstantRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.ActionID, validation.Required),
		validation.Field(&request.Link, is.URL),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateHistoryFilter(ctx context.Context, request domain.HistoryFilter) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Platform, platformRule()),
		validation.Field(&request.Kind, validation.In(domain.KindFeedTrigger, domain.KindInstant)),
		validation.Field(&request.Status, validation.In(domain.StatusPending, domain.StatusCompleted, domain.StatusPartial, domain.StatusFailed)),
		validation.Field(&request.Limit, validation.Min(0), validation.Max(domain.MaxHistoryLimit)),
		validation.Field(&request.Offset, validation.Min(0)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}
