package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings returns the non-secret runtime settings, served by the status API.
func Settings() map[string]any {
	if Global == nil {
		return map[string]any{}
	}
	return map[string]any{
		"app_version":            Global.App.Version,
		"app_debug":              Global.App.Debug,
		"db_driver":              Global.Database.Driver,
		"valkey_enabled":         Global.Database.ValkeyEnabled,
		"engine_enabled":         Global.Engine.Enabled,
		"engine_poll_interval":   Global.Engine.PollInterval.String(),
		"engine_workers":         Global.Engine.Workers,
		"engine_feed_deadline":   Global.Engine.FeedDeadline.String(),
		"engine_lease_ttl":       Global.Engine.LeaseTTL.String(),
		"engine_retry_attempts":  Global.Engine.RetryAttempts,
		"engine_comment_timeout": Global.Engine.CommentTimeout.String(),
		"ai_provider":            Global.AI.Provider,
		"order_service_url":      Global.OrderService.URL,
		"feed_provisioning":      Global.Feeds.Enabled(),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		vLower := strings.ToLower(v)
		return vLower == "1" || vLower == "true" || vLower == "yes" || vLower == "on"
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s", "5m") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
