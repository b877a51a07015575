package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/orchardhire/marketplace/database"
	"github.com/orchardhire/marketplace/services"
)

func availabilityService() *services.AvailabilityService {
	return services.NewAvailabilityService(database.DB)
}

type SetAvailabilityRequest struct {
	Entries []services.DateEntry `json:"entries" validate:"required,min=1,dive"`
}

func SetAvailability(c *fiber.Ctx) error {
	actor := currentActor(c)

	var req SetAvailabilityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	rows, err := availabilityService().SetDates(actor, req.Entries)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(rows)
}

func RemoveAvailability(c *fiber.Ctx) error {
	actor := currentActor(c)

	if err := availabilityService().RemoveDate(actor, c.Params("date")); err != nil {
		return domainError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Availability entry removed"})
}

func GetMyAvailability(c *fiber.Ctx) error {
	actor := currentActor(c)

	rows, err := availabilityService().ListMine(actor.ID, fromDate(c))
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(rows)
}

// GetFreelancerAvailability returns the dates a freelancer has opened for
// booking. The client merges this with the booked projection into one
// calendar view.
func GetFreelancerAvailability(c *fiber.Ctx) error {
	freelancerID, err := uuid.Parse(c.Params("freelancerId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid freelancer id"})
	}

	rows, err := availabilityService().ListAvailable(freelancerID, fromDate(c))
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(rows)
}

func GetFreelancerBookedDates(c *fiber.Ctx) error {
	freelancerID, err := uuid.Parse(c.Params("freelancerId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid freelancer id"})
	}

	dates, err := availabilityService().ListBookedDates(freelancerID, fromDate(c))
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(dates)
}

func fromDate(c *fiber.Ctx) time.Time {
	if from := c.Query("from"); from != "" {
		if parsed, err := time.Parse(time.DateOnly, from); err == nil {
			return parsed
		}
	}
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
