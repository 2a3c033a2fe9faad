package middleware

import (
	"errors"
	"fmt"

	"github.com/AzielCF/az-engage/engine/domain"
	pkgError "github.com/AzielCF/az-engage/pkg/error"
	"github.com/AzielCF/az-engage/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func Recovery() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		defer func() {
			err := recover()
			if err != nil {
				var res utils.ResponseData
				res.Status = 500
				res.Code = "INTERNAL_SERVER_ERROR"
				res.Message = fmt.Sprintf("%v", err)

				if generic, ok := ToGenericError(err); ok {
					res.Status = generic.StatusCode()
					res.Code = generic.ErrCode()
					res.Message = generic.Error()
				}

				if res.Status >= 500 {
					logrus.Errorf("[REST] Panic recovered in %s %s: %v", ctx.Method(), ctx.Path(), err)
				} else {
					logrus.Debugf("[REST] %s %s: %v", ctx.Method(), ctx.Path(), err)
				}

				_ = ctx.Status(res.Status).JSON(res)
			}
		}()

		return ctx.Next()
	}
}

// ToGenericError maps engine errors onto the HTTP error types. Values that
// already implement GenericError pass through.
func ToGenericError(v any) (pkgError.GenericError, bool) {
	err, ok := v.(error)
	if !ok {
		return nil, false
	}

	var generic pkgError.GenericError
	if errors.As(err, &generic) {
		return generic, true
	}

	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrFeedNotFound),
		errors.Is(err, domain.ErrActionNotFound),
		errors.Is(err, domain.ErrExecutionNotFound),
		errors.Is(err, domain.ErrTagNotFound),
		errors.Is(err, domain.ErrBaselineNotFound):
		return pkgError.NotFoundError(err.Error()), true
	case errors.Is(err, domain.ErrDuplicateAccount),
		errors.Is(err, domain.ErrDuplicateTag),
		errors.Is(err, domain.ErrBaselineAlreadyEstablished),
		errors.Is(err, domain.ErrFeedBusy),
		errors.Is(err, domain.ErrNotRetryable),
		errors.Is(err, domain.ErrNoOrderID):
		return pkgError.ConflictError(err.Error()), true
	case errors.Is(err, domain.ErrQueueFull),
		errors.Is(err, domain.ErrEngineDisabled),
		errors.Is(err, domain.ErrProvisioningDisabled):
		return pkgError.ServiceUnavailableError(err.Error()), true
	case errors.Is(err, domain.ErrNoTargetLink):
		return pkgError.ValidationError(err.Error()), true
	}

	var cfgErr *domain.ConfigError
	if errors.As(err, &cfgErr) {
		return pkgError.ValidationError(err.Error()), true
	}
	var fetchErr *domain.FetchError
	var orderErr *domain.OrderError
	var genErr *domain.GenError
	if errors.As(err, &fetchErr) || errors.As(err, &orderErr) || errors.As(err, &genErr) {
		return pkgError.UpstreamError(err.Error()), true
	}
	return nil, false
}
