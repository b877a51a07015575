package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/orchardhire/marketplace/database"
	"github.com/orchardhire/marketplace/models"
	"github.com/orchardhire/marketplace/services"
)

func AdminGetOrders(c *fiber.Ctx) error {
	query := database.DB.
		Preload("Customer").
		Preload("Freelancer").
		Preload("Service").
		Order("created_at desc")

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if freelancerID := c.Query("freelancer_id"); freelancerID != "" {
		query = query.Where("freelancer_id = ?", freelancerID)
	}

	var orders []models.Order
	query.Find(&orders)
	return c.JSON(orders)
}

type AdminCreateOrderRequest struct {
	CustomerID  string   `json:"customer_id" validate:"required,uuid"`
	ServiceID   string   `json:"service_id" validate:"required,uuid"`
	BookingDate string   `json:"booking_date" validate:"required"`
	AgreedPrice *float64 `json:"agreed_price,omitempty"`
	Notes       *string  `json:"notes,omitempty"`
}

// AdminCreateOrder books on behalf of a customer. The availability calendar is
// not consulted; the date-conflict invariant still applies.
func AdminCreateOrder(c *fiber.Ctx) error {
	actor := currentActor(c)

	var req AdminCreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	customerID, _ := uuid.Parse(req.CustomerID)
	serviceID, _ := uuid.Parse(req.ServiceID)

	order, err := workflow().CreateOrder(actor, services.CreateOrderInput{
		CustomerID:  customerID,
		ServiceID:   serviceID,
		BookingDate: req.BookingDate,
		AgreedPrice: req.AgreedPrice,
		Notes:       req.Notes,
	})
	if err != nil {
		return domainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

type AdminUpdateOrderRequest struct {
	Status string  `json:"status" validate:"required"`
	Reason *string `json:"reason,omitempty"`
}

func AdminUpdateOrder(c *fiber.Ctx) error {
	actor := currentActor(c)
	orderID, err := uuid.Parse(c.Params("orderId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid order id"})
	}

	var req AdminUpdateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	order, err := workflow().AdminUpdateStatus(actor, orderID, req.Status, req.Reason)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(order)
}

func AdminDestroyOrder(c *fiber.Ctx) error {
	actor := currentActor(c)
	orderID, err := uuid.Parse(c.Params("orderId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid order id"})
	}

	if err := workflow().AdminDestroyOrder(c.Context(), actor, orderID); err != nil {
		return domainError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Order deleted"})
}

type VerifyFreelancerRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
}

func VerifyFreelancer(c *fiber.Ctx) error {
	freelancerID := c.Params("freelancerId")

	var req VerifyFreelancerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var profile models.FreelancerProfile
	if err := database.DB.Preload("User").First(&profile, "user_id = ?", freelancerID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Freelancer profile not found"})
	}

	profile.Status = req.Status
	if err := database.DB.Save(&profile).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update freelancer status"})
	}
	return c.JSON(profile)
}

func GetAllUsers(c *fiber.Ctx) error {
	query := database.DB.Order("created_at desc")
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}

	var users []models.User
	query.Find(&users)
	return c.JSON(users)
}

func ToggleUserStatus(c *fiber.Ctx) error {
	userID := c.Params("userId")

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}

	user.IsActive = !user.IsActive
	if err := database.DB.Save(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update user"})
	}
	return c.JSON(user)
}
