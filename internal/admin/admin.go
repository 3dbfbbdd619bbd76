// Package admin serves a read-only HTTP view of a running chat server.
package admin

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"minichat/internal/server"
)

// Source is what the status endpoints report on.  *server.Server implements it.
type Source interface {
	Stats() server.Stats
	Clients() []server.ClientInfo
}

// New builds the fiber app.  Requests are logged to logOutput unless it is nil.
func New(src Source, logOutput io.Writer) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "minichat",
		DisableStartupMessage: true,
	})

	if logOutput != nil {
		app.Use(logger.New(logger.Config{Output: logOutput}))
	}

	defineRoutes(app, src)
	return app
}

func defineRoutes(app *fiber.App, src Source) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(src.Stats())
	})
	app.Get("/clients", func(c *fiber.Ctx) error {
		return c.JSON(src.Clients())
	})
}
