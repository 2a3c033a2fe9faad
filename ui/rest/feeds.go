package rest

import (
	"github.com/AzielCF/az-engage/engine"
	pkgError "github.com/AzielCF/az-engage/pkg/error"
	"github.com/AzielCF/az-engage/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Feeds struct {
	Engine *engine.Engine
}

func InitRestFeeds(app fiber.Router, e *engine.Engine) Feeds {
	rest := Feeds{Engine: e}
	app.Get("/feeds", rest.ListFeeds)
	app.Post("/feeds/poll", rest.PollAll)
	app.Get("/feeds/provider", rest.Provider)
	app.Get("/feeds/:id/status", rest.GetStatus)
	app.Post("/feeds/:id/poll", rest.PollNow)
	app.Put("/feeds/:id/enabled", rest.SetEnabled)
	return rest
}

func (h *Feeds) ListFeeds(c *fiber.Ctx) error {
	feeds, err := h.Engine.ListFeeds(c.UserContext(), c.QueryBool("eligible", false))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Feeds fetched",
		Results: feeds,
	})
}

func (h *Feeds) GetStatus(c *fiber.Ctx) error {
	view, err := h.Engine.GetFeedStatus(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Feed status fetched",
		Results: view,
	})
}

// PollNow only queues the cycle; its outcome shows up in the feed status.
func (h *Feeds) PollNow(c *fiber.Ctx) error {
	feedID := c.Params("id")
	err := h.Engine.TriggerPollNow(c.UserContext(), feedID)
	utils.PanicIfNeeded(err)

	return c.Status(fiber.StatusAccepted).JSON(utils.ResponseData{
		Status:  202,
		Code:    "SUCCESS",
		Message: "Poll queued",
		Results: map[string]any{"feed_id": feedID},
	})
}

func (h *Feeds) PollAll(c *fiber.Ctx) error {
	summary, err := h.Engine.TriggerPollAll(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.Status(fiber.StatusAccepted).JSON(utils.ResponseData{
		Status:  202,
		Code:    "SUCCESS",
		Message: "Polls queued",
		Results: summary,
	})
}

func (h *Feeds) SetEnabled(c *fiber.Ctx) error {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := c.BodyParser(&req); err != nil || req.Enabled == nil {
		utils.PanicIfNeeded(pkgError.ValidationError("enabled must be true or false"))
	}

	feed, err := h.Engine.Accounts().SetFeedEnabled(c.UserContext(), c.Params("id"), *req.Enabled)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Feed updated",
		Results: feed,
	})
}

// Provider checks the RSS.app credentials used for hosted feeds.
func (h *Feeds) Provider(c *fiber.Ctx) error {
	status, err := h.Engine.FeedProvider(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Feed provider reachable",
		Results: status,
	})
}
