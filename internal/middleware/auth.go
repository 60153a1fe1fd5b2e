package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gitbounty/backend/internal/auth"
	"github.com/gitbounty/backend/internal/config"
)

const (
	CtxSubject = "subject"
	CtxIsAdmin = "is_admin"
)

func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals(CtxSubject, claims.Subject)
		c.Locals(CtxIsAdmin, claims.Admin)

		return c.Next()
	}
}

func GetSubject(c *fiber.Ctx) string {
	s, _ := c.Locals(CtxSubject).(string)
	return s
}

func IsAdmin(c *fiber.Ctx) bool {
	admin, _ := c.Locals(CtxIsAdmin).(bool)
	return admin
}

// AdminMiddleware gates the fee-admin and manual-remediation surface.
func AdminMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !IsAdmin(c) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin access required"})
		}
		return c.Next()
	}
}
