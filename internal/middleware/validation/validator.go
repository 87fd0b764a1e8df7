package validation

import (
	"bytes"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Config struct {
	MaxBodySize         int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware gates request shape before handlers parse anything: content
// type, body size and embedded null bytes. Field-level validation
// (coordinate ranges, enums) stays with the handlers that own the fields.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = 1 << 20
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		contentType := c.Get("Content-Type")
		if contentType != "" && !allowed(contentType, cfg.AllowedContentTypes) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		body := c.Body()
		if len(body) > cfg.MaxBodySize {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error": "Request body too large",
			})
		}

		if bytes.ContainsRune(body, 0) {
			cfg.Logger.Warn("Request body contains null bytes",
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()),
			)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Request body contains invalid characters",
			})
		}

		return c.Next()
	}
}

func allowed(contentType string, allowlist []string) bool {
	for _, t := range allowlist {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}
