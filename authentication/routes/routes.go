package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/leonovk/wg-rest-api/authentication/middleware"
	"github.com/leonovk/wg-rest-api/handlers"
)

func SetupRoutes(app *fiber.App, auth middleware.AuthConfig, clients *handlers.ClientHandler, server *handlers.ServerHandler) {
	app.Get("/healthz", server.Health)

	api := app.Group("/", middleware.BearerAuth(auth))

	api.Get("/server", server.GetServer)

	api.Get("/clients", clients.ListClients)
	api.Post("/clients", clients.CreateClient)
	// Registered before /clients/:id so "inactive" is not taken for an id.
	api.Delete("/clients/inactive", clients.DeleteInactiveClients)
	api.Get("/clients/:id", clients.GetClient)
	api.Patch("/clients/:id", clients.UpdateClient)
	api.Delete("/clients/:id", clients.DeleteClient)
}
