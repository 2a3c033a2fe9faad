package rest

import (
	"context"
	"time"

	"github.com/AzielCF/az-engage/infrastructure/valkey"
	"github.com/AzielCF/az-engage/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type Health struct {
	DB     *gorm.DB
	Valkey *valkey.Client
}

type componentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// InitRestHealth mounts a dependency check. vk may be nil.
func InitRestHealth(app fiber.Router, db *gorm.DB, vk *valkey.Client) Health {
	handler := Health{DB: db, Valkey: vk}
	app.Get("/health", handler.GetStatus)
	return handler
}

func (h *Health) GetStatus(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	healthy := true
	components := map[string]componentHealth{}

	components["database"] = check(func() error {
		sqlDB, err := h.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	if h.Valkey != nil {
		components["valkey"] = check(func() error { return h.Valkey.Ping(ctx) })
	}
	for _, comp := range components {
		if comp.Status != "up" {
			healthy = false
		}
	}

	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(utils.ResponseData{
			Status:  503,
			Code:    "SERVICE_UNAVAILABLE",
			Message: "Some dependencies are down",
			Results: components,
		})
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Health status retrieved",
		Results: components,
	})
}

func check(fn func() error) componentHealth {
	if err := fn(); err != nil {
		return componentHealth{Status: "down", Error: err.Error()}
	}
	return componentHealth{Status: "up"}
}
