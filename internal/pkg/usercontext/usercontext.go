package usercontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Arcana/internal/pkg/entitlements"
)

// UserContext represents the authenticated caller of a request
type UserContext struct {
	UserID     string            `json:"user_id"`
	Name       string            `json:"name"`
	IsLoggedIn bool              `json:"is_logged_in"`
	Tier       entitlements.Tier `json:"tier"`
}

// Set stores the user context and the legacy per-key locals.
func Set(c *fiber.Ctx, uc UserContext) {
	if !uc.Tier.Valid() {
		uc.Tier = entitlements.TierFree
	}
	c.Locals(KeyUserContext, uc)
	c.Locals(KeyFromProtected, uc.IsLoggedIn)
	c.Locals(KeyUserID, uc.UserID)
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if uc, ok := c.Locals(KeyUserContext).(UserContext); ok {
		return uc
	}
	return UserContext{IsLoggedIn: false, Tier: entitlements.TierFree}
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// GetUserID returns the current user's ID, or "" if not logged in
func GetUserID(c *fiber.Ctx) string {
	return GetUserContext(c).UserID
}

// GetTier returns the caller's tier, FREE for anonymous requests
func GetTier(c *fiber.Ctx) entitlements.Tier {
	return GetUserContext(c).Tier
}
