package rest

import (
	"strconv"

	"github.com/AzielCF/az-engage/engine"
	"github.com/AzielCF/az-engage/engine/domain"
	pkgError "github.com/AzielCF/az-engage/pkg/error"
	"github.com/AzielCF/az-engage/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Accounts struct {
	Engine *engine.Engine
}

func InitRestAccounts(app fiber.Router, e *engine.Engine) Accounts {
	rest := Accounts{Engine: e}
	app.Get("/accounts", rest.ListAccounts)
	app.Post("/accounts", rest.CreateAccount)
	app.Get("/accounts/:id", rest.GetAccount)
	app.Put("/accounts/:id", rest.UpdateAccount)
	app.Delete("/accounts/:id", rest.DeleteAccount)
	app.Put("/accounts/:id/tags", rest.SetTags)

	// Feed lifecycle
	app.Post("/accounts/:id/feed/activate", rest.ActivateFeed)
	app.Post("/accounts/:id/feed/reset", rest.ResetFeed)
	app.Post("/accounts/:id/feed/provision", rest.ProvisionFeed)

	// Actions
	app.Get("/accounts/:id/actions", rest.ListActions)
	app.Post("/accounts/:id/actions", rest.AddAction)
	app.Put("/actions/:action_id/active", rest.SetActionActive)
	app.Delete("/actions/:action_id", rest.DeleteAction)

	// Tags
	app.Get("/tags", rest.ListTags)
	app.Post("/tags", rest.CreateTag)
	app.Delete("/tags/:id", rest.DeleteTag)

	return rest
}

func (h *Accounts) ListAccounts(c *fiber.Ctx) error {
	filter := domain.AccountFilter{
		Platform: domain.Platform(c.Query("platform")),
		TagID:    c.Query("tag_id"),
	}
	if v := c.Query("enabled"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			utils.PanicIfNeeded(pkgError.ValidationError("enabled must be true or false"))
		}
		filter.Enabled = &enabled
	}

	accounts, err := h.Engine.Accounts().List(c.UserContext(), filter)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Accounts fetched",
		Results: accounts,
	})
}

func (h *Accounts) CreateAccount(c *fiber.Ctx) error {
	var req domain.CreateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError("invalid request body"))
	}

	detail, err := h.Engine.Accounts().Create(c.UserContext(), req)
	utils.PanicIfNeeded(err)

	return c.Status(fiber.StatusCreated).JSON(utils.ResponseData{
		Status:  201,
		Code:    "SUCCESS",
		Message: "Account created",
		Results: detail,
	})
}

func (h *Accounts) GetAccount(c *fiber.Ctx) error {
	detail, err := h.Engine.Accounts().Get(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Account fetched",
		Results: detail,
	})
}

func (h *Accounts) UpdateAccount(c *fiber.Ctx) error {
	var req domain.UpdateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError("invalid request body"))
	}

	account, err := h.Engine.Accounts().Update(c.UserContext(), c.Params("id"), req)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Account updated",
		Results: account,
	})
}

func (h *Accounts) DeleteAccount(c *fiber.Ctx) error {
	err := h.Engine.Accounts().Delete(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Account deleted",
	})
}

func (h *Accounts) SetTags(c *fiber.Ctx) error {
	var req struct {
		TagIDs []string `json:"tag_ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError("invalid request body"))
	}

	err := h.Engine.Accounts().SetTags(c.UserContext(), c.Params("id"), req.TagIDs)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Account tags updated",
	})
}

func (h *Accounts) ActivateFeed(c *fiber.Ctx) error {
	baseline, err := h.Engine.Accounts().ActivateFeed(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Feed activated",
		Results: map[string]any{
			"feed_id":       baseline.FeedID,
			"cutoff":        baseline.Cutoff,
			"known_entries": len(baseline.PostIDs),
		},
	})
}

func (h *Accounts) ResetFeed(c *fiber.Ctx) error {
	err := h.Engine.Accounts().ResetFeed(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Feed baseline cleared, it will be re-established on the next poll",
	})
}

// ProvisionFeed replaces the account's hosted feed with a fresh one.
func (h *Accounts) ProvisionFeed(c *fiber.Ctx) error {
	feed, err := h.Engine.Accounts().ProvisionFeed(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Feed provisioned",
		Results: feed,
	})
}

func (h *Accounts) ListActions(c *fiber.Ctx) error {
	actions, err := h.Engine.Accounts().ListActions(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Actions fetched",
		Results: actions,
	})
}

func (h *Accounts) AddAction(c *fiber.Ctx) error {
	var req domain.CreateActionRequest
	if err := c.BodyParser(&req); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError("invalid request body"))
	}

	spec, err := h.Engine.Accounts().AddAction(c.UserContext(), c.Params("id"), req)
	utils.PanicIfNeeded(err)

	return c.Status(fiber.StatusCreated).JSON(utils.ResponseData{
		Status:  201,
		Code:    "SUCCESS",
		Message: "Action added",
		Results: spec,
	})
}

func (h *Accounts) SetActionActive(c *fiber.Ctx) error {
	var req struct {
		Active bool `json:"active"`
	}
	if err := c.BodyParser(&req); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError("invalid request body"))
	}

	err := h.Engine.Accounts().SetActionActive(c.UserContext(), c.Params("action_id"), req.Active)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Action updated",
	})
}

func (h *Accounts) DeleteAction(c *fiber.Ctx) error {
	err := h.Engine.Accounts().DeleteAction(c.UserContext(), c.Params("action_id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Action deleted",
	})
}

func (h *Accounts) ListTags(c *fiber.Ctx) error {
	tags, err := h.Engine.Accounts().ListTags(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Tags fetched",
		Results: tags,
	})
}

func (h *Accounts) CreateTag(c *fiber.Ctx) error {
	var req domain.Tag
	if err := c.BodyParser(&req); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError("invalid request body"))
	}

	tag, err := h.Engine.Accounts().CreateTag(c.UserContext(), req)
	utils.PanicIfNeeded(err)

	return c.Status(fiber.StatusCreated).JSON(utils.ResponseData{
		Status:  201,
		Code:    "SUCCESS",
		Message: "Tag created",
		Results: tag,
	})
}

func (h *Accounts) DeleteTag(c *fiber.Ctx) error {
	err := h.Engine.Accounts().DeleteTag(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Tag deleted",
	})
}
