package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/orchardhire/marketplace/handlers"
	"github.com/orchardhire/marketplace/middleware"
)

func FreelancerRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Get("/freelancers", handlers.ListFreelancers)
	api.Get("/freelancers/:freelancerId", handlers.GetFreelancerProfile)
	api.Get("/freelancers/:freelancerId/availability", handlers.GetFreelancerAvailability)
	api.Get("/freelancers/:freelancerId/booked", handlers.GetFreelancerBookedDates)

	freelancer := api.Group("/freelancer", middleware.Protected(), middleware.FreelancerRequired())
	freelancer.Get("/profile/me", handlers.GetMyFreelancerProfile)
	freelancer.Put("/profile/me", handlers.UpdateMyFreelancerProfile)

	availability := freelancer.Group("/availability")
	availability.Get("/me", handlers.GetMyAvailability)
	availability.Put("", handlers.SetAvailability)
	availability.Delete("/:date", handlers.RemoveAvailability)

	offered := freelancer.Group("/services")
	offered.Get("/me", handlers.GetMyServices)
	offered.Post("", handlers.CreateService)
	offered.Put("/:serviceId", handlers.UpdateService)
	offered.Delete("/:serviceId", handlers.DeactivateService)
}
