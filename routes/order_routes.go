package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/orchardhire/marketplace/handlers"
	"github.com/orchardhire/marketplace/middleware"
)

func OrderRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	orders := api.Group("/orders", middleware.Protected())
	orders.Get("/me", handlers.GetMyOrders)
	orders.Post("", handlers.CreateOrder)
	orders.Get("/:orderId", handlers.GetOrder)
	orders.Post("/:orderId/payment-slip", handlers.UploadPaymentSlip)
	orders.Post("/:orderId/complete", handlers.CompleteOrder)

	freelancerOrders := api.Group("/freelancer/orders", middleware.Protected(), middleware.FreelancerRequired())
	freelancerOrders.Get("", handlers.GetMyFreelancerOrders)
	freelancerOrders.Post("/:orderId/accept", handlers.AcceptOrder)
	freelancerOrders.Post("/:orderId/reject", handlers.RejectOrder)
	freelancerOrders.Post("/:orderId/deliver", handlers.DeliverOrder)
}
