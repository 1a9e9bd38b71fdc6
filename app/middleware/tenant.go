package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
)

// Locals keys set by TenantContext
const (
	TenantIDKey = "tenant_id"
	UserIDKey   = "user_id"
)

// TenantContext extracts the tenant and user identity from the gateway headers
// and rejects requests that lack them. Authentication itself happens upstream;
// this service only trusts the forwarded identity.
func TenantContext() fiber.Handler {
	return func(c fiber.Ctx) error {
		tenantID, err := strconv.ParseUint(c.Get("X-Tenant-ID"), 10, 64)
		if err != nil || tenantID == 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "missing or invalid tenant identity",
			})
		}
		userID, err := strconv.ParseUint(c.Get("X-User-ID"), 10, 64)
		if err != nil || userID == 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "missing or invalid user identity",
			})
		}

		c.Locals(TenantIDKey, uint(tenantID))
		c.Locals(UserIDKey, uint(userID))
		return c.Next()
	}
}

// TenantID reads the tenant set by TenantContext
func TenantID(c fiber.Ctx) uint {
	if v, ok := c.Locals(TenantIDKey).(uint); ok {
		return v
	}
	return 0
}

// UserID reads the user set by TenantContext
func UserID(c fiber.Ctx) uint {
	if v, ok := c.Locals(UserIDKey).(uint); ok {
		return v
	}
	return 0
}
