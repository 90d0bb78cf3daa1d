package middleware

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// AccessLog tags each request with an X-Request-ID and writes one line per
// request after the handler chain returns.
func AccessLog(logger *log.Logger) fiber.Handler {
	if logger == nil {
		logger = log.Default()
	}
	return func(c fiber.Ctx) error {
		start := time.Now()

		rid := c.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
			c.Set("X-Request-ID", rid)
		}

		err := c.Next()

		logger.Printf("[HTTP] rid=%s method=%s path=%s status=%d dur=%s ip=%s ua=%q",
			rid, c.Method(), c.OriginalURL(), c.Response().StatusCode(),
			time.Since(start).Round(time.Millisecond), c.IP(), c.Get("User-Agent"))
		return err
	}
}
