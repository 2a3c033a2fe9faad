package rest

import (
	"errors"

	"github.com/AzielCF/az-engage/engine"
	"github.com/AzielCF/az-engage/engine/domain"
	pkgError "github.com/AzielCF/az-engage/pkg/error"
	"github.com/AzielCF/az-engage/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Executions struct {
	Engine *engine.Engine
}

func InitRestExecutions(app fiber.Router, e *engine.Engine) Executions {
	rest := Executions{Engine: e}
	app.Get("/executions", rest.History)
	app.Get("/executions/stats", rest.Stats)
	app.Post("/executions/refresh", rest.RefreshAll)
	app.Get("/executions/:id", rest.GetExecution)
	app.Post("/executions/:id/refresh", rest.Refresh)
	app.Post("/executions/:id/retry", rest.Retry)
	app.Post("/instant", rest.ExecuteInstant)
	return rest
}

func (h *Executions) History(c *fiber.Ctx) error {
	var filter domain.HistoryFilter
	if err := c.QueryParser(&filter); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError("invalid query parameters"))
	}

	page, err := h.Engine.GetExecutionHistory(c.UserContext(), filter)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Execution history fetched",
		Results: page,
	})
}

func (h *Executions) Stats(c *fiber.Ctx) error {
	stats, err := h.Engine.ExecutionStats(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Execution stats fetched",
		Results: stats,
	})
}

func (h *Executions) GetExecution(c *fiber.Ctx) error {
	rec, err := h.Engine.GetExecution(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Execution fetched",
		Results: rec,
	})
}

func (h *Executions) Refresh(c *fiber.Ctx) error {
	rec, err := h.Engine.RefreshExecutionStatus(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Execution refreshed",
		Results: rec,
	})
}

func (h *Executions) RefreshAll(c *fiber.Ctx) error {
	summary, err := h.Engine.RefreshAllExecutions(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Pending executions refreshed",
		Results: summary,
	})
}

func (h *Executions) ExecuteInstant(c *fiber.Ctx) error {
	var req domain.InstantRequest
	if err := c.BodyParser(&req); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError("invalid request body"))
	}

	rec, err := h.Engine.ExecuteInstant(c.UserContext(), req)
	return h.dispatchResponse(c, rec, err, "Action executed")
}

func (h *Executions) Retry(c *fiber.Ctx) error {
	rec, err := h.Engine.RetryExecution(c.UserContext(), c.Params("id"))
	return h.dispatchResponse(c, rec, err, "Execution retried")
}

// dispatchResponse returns the failed record alongside the error when the
// dispatch itself ran, so callers can see what was recorded.
func (h *Executions) dispatchResponse(c *fiber.Ctx, rec domain.ExecutionRecord, err error, message string) error {
	if err == nil {
		return c.JSON(utils.ResponseData{
			Status:  200,
			Code:    "SUCCESS",
			Message: message,
			Results: rec,
		})
	}
	if rec.ID == "" {
		utils.PanicIfNeeded(err)
	}

	status := fiber.StatusBadGateway
	var cfgErr *domain.ConfigError
	if errors.As(err, &cfgErr) {
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(utils.ResponseData{
		Status:  status,
		Code:    "DISPATCH_FAILED",
		Message: err.Error(),
		Results: rec,
	})
}
