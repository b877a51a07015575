package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/orchardhire/marketplace/handlers"
	"github.com/orchardhire/marketplace/middleware"
)

func AdminRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(), middleware.AdminRequired())
	admin.Get("/users", handlers.GetAllUsers)
	admin.Patch("/users/:userId/toggle-status", handlers.ToggleUserStatus)
	admin.Patch("/freelancers/:freelancerId/verify", handlers.VerifyFreelancer)

	admin.Get("/orders", handlers.AdminGetOrders)
	admin.Post("/orders", handlers.AdminCreateOrder)
	admin.Patch("/orders/:orderId", handlers.AdminUpdateOrder)
	admin.Delete("/orders/:orderId", handlers.AdminDestroyOrder)
}
