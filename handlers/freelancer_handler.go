package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/orchardhire/marketplace/database"
	"github.com/orchardhire/marketplace/models"
)

func GetMyFreelancerProfile(c *fiber.Ctx) error {
	actor := currentActor(c)

	var profile models.FreelancerProfile
	if err := database.DB.Preload("User").First(&profile, "user_id = ?", actor.ID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Freelancer profile not found"})
	}
	return c.JSON(profile)
}

type UpdateFreelancerProfileRequest struct {
	Headline *string `json:"headline,omitempty" validate:"omitempty,max=255"`
	Bio      *string `json:"bio,omitempty"`
}

func UpdateMyFreelancerProfile(c *fiber.Ctx) error {
	actor := currentActor(c)

	var req UpdateFreelancerProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var profile models.FreelancerProfile
	if err := database.DB.First(&profile, "user_id = ?", actor.ID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Freelancer profile not found"})
	}

	if req.Headline != nil {
		profile.Headline = req.Headline
	}
	if req.Bio != nil {
		profile.Bio = req.Bio
	}
	if err := database.DB.Save(&profile).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
	}
	return c.JSON(profile)
}

func ListFreelancers(c *fiber.Ctx) error {
	var profiles []models.FreelancerProfile
	database.DB.
		Preload("User").
		Where("status = ?", models.FreelancerStatusApproved).
		Order("avg_rating desc").
		Find(&profiles)
	return c.JSON(profiles)
}

func GetFreelancerProfile(c *fiber.Ctx) error {
	freelancerID := c.Params("freelancerId")

	var profile models.FreelancerProfile
	if err := database.DB.
		Preload("User").
		First(&profile, "user_id = ? AND status = ?", freelancerID, models.FreelancerStatusApproved).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Freelancer not found"})
	}

	var offeredServices []models.Service
	database.DB.Where("freelancer_id = ? AND is_active = ?", freelancerID, true).Find(&offeredServices)

	var reviews []models.Review
	database.DB.
		Preload("Customer").
		Where("freelancer_id = ?", freelancerID).
		Order("created_at desc").
		Limit(20).
		Find(&reviews)

	return c.JSON(fiber.Map{
		"profile":  profile,
		"services": offeredServices,
		"reviews":  reviews,
	})
}

type ServiceRequest struct {
	Title       string  `json:"title" validate:"required,min=3,max=255"`
	Description *string `json:"description,omitempty"`
	Price       float64 `json:"price" validate:"required,gte=0"`
}

func CreateService(c *fiber.Ctx) error {
	actor := currentActor(c)

	var req ServiceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	newService := models.Service{
		FreelancerID: actor.ID,
		Title:        req.Title,
		Description:  req.Description,
		Price:        req.Price,
		IsActive:     true,
	}
	if err := database.DB.Create(&newService).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create service"})
	}
	return c.Status(fiber.StatusCreated).JSON(newService)
}

func UpdateService(c *fiber.Ctx) error {
	actor := currentActor(c)
	serviceID, err := uuid.Parse(c.Params("serviceId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid service id"})
	}

	var req ServiceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var service models.Service
	if err := database.DB.First(&service, "id = ?", serviceID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Service not found"})
	}
	if service.FreelancerID != actor.ID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	service.Title = req.Title
	service.Description = req.Description
	service.Price = req.Price
	if err := database.DB.Save(&service).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update service"})
	}
	return c.JSON(service)
}

func DeactivateService(c *fiber.Ctx) error {
	actor := currentActor(c)
	serviceID := c.Params("serviceId")

	var service models.Service
	if err := database.DB.First(&service, "id = ?", serviceID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Service not found"})
	}
	if service.FreelancerID != actor.ID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	service.IsActive = false
	if err := database.DB.Save(&service).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to deactivate service"})
	}
	return c.JSON(fiber.Map{"message": "Service deactivated"})
}

func GetMyServices(c *fiber.Ctx) error {
	actor := currentActor(c)

	var myServices []models.Service
	database.DB.Where("freelancer_id = ?", actor.ID).Order("created_at desc").Find(&myServices)
	return c.JSON(myServices)
}
