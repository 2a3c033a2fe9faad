package rest

import (
	"github.com/AzielCF/az-engage/core/config"
	"github.com/AzielCF/az-engage/engine"
	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/AzielCF/az-engage/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Engine struct {
	Engine *engine.Engine
}

func InitRestEngine(app fiber.Router, e *engine.Engine) Engine {
	rest := Engine{Engine: e}
	app.Get("/engine/status", rest.Status)
	app.Get("/engine/settings", rest.Settings)
	app.Post("/engine/start", rest.Start)
	app.Post("/engine/stop", rest.Stop)
	app.Get("/services", rest.ListServices)
	app.Get("/services/balance", rest.Balance)
	app.Get("/services/:platform", rest.ListServices)
	return rest
}

func (h *Engine) Status(c *fiber.Ctx) error {
	status, err := h.Engine.Status(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Engine status fetched",
		Results: status,
	})
}

// Start resumes polling; it is a no-op when polling already runs.
func (h *Engine) Start(c *fiber.Ctx) error {
	started := h.Engine.StartPolling()
	status, err := h.Engine.Status(c.UserContext())
	utils.PanicIfNeeded(err)

	message := "Engine started"
	if !started {
		message = "Engine already running"
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: message,
		Results: status,
	})
}

// Stop halts polling and waits for in-flight cycles.
func (h *Engine) Stop(c *fiber.Ctx) error {
	stopped := h.Engine.StopPolling()
	status, err := h.Engine.Status(c.UserContext())
	utils.PanicIfNeeded(err)

	message := "Engine stopped"
	if !stopped {
		message = "Engine was not running"
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: message,
		Results: status,
	})
}

func (h *Engine) Settings(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Settings fetched",
		Results: config.Settings(),
	})
}

// ListServices proxies the provider catalog; the platform (path or query) and
// ?action= narrow it to what fits an action form.
func (h *Engine) ListServices(c *fiber.Ctx) error {
	platform := c.Params("platform", c.Query("platform"))
	services, err := h.Engine.Services(c.UserContext(), domain.Platform(platform), domain.ActionType(c.Query("action")))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Services fetched",
		Results: services,
	})
}

func (h *Engine) Balance(c *fiber.Ctx) error {
	balance, err := h.Engine.Balance(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Balance fetched",
		Results: balance,
	})
}
