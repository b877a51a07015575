package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/orchardhire/marketplace/database"
	"github.com/orchardhire/marketplace/models"
	"github.com/orchardhire/marketplace/notifications"
	"github.com/orchardhire/marketplace/services"
)

func workflow() *services.OrderWorkflow {
	return services.NewOrderWorkflow(database.DB, services.ActiveStorage())
}

type CreateOrderRequest struct {
	ServiceID   string   `json:"service_id" validate:"required,uuid"`
	BookingDate string   `json:"booking_date" validate:"required"`
	AgreedPrice *float64 `json:"agreed_price,omitempty"`
	Notes       *string  `json:"notes,omitempty"`
}

func CreateOrder(c *fiber.Ctx) error {
	actor := currentActor(c)

	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	serviceID, _ := uuid.Parse(req.ServiceID)

	order, err := workflow().CreateOrder(actor, services.CreateOrderInput{
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

func UploadPaymentSlip(c *fiber.Ctx) error {
	actor := currentActor(c)
	orderID, err := uuid.Parse(c.Params("orderId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid order id"})
	}

	fileHeader, err := c.FormFile("payment_slip")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "A payment_slip file is required"})
	}
	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Could not read the uploaded file"})
	}
	defer file.Close()

	order, err := workflow().UploadPaymentSlip(c.Context(), actor, orderID, file)
	if err != nil {
		return domainError(c, err)
	}

	go notifyOrderParty(order.FreelancerID, "New Payment Slip",
		fmt.Sprintf("<h1>Payment Received</h1><p>A payment slip was uploaded for order %s. Please review and accept or reject the booking.</p>", order.OrderNumber))

	return c.JSON(order)
}

func AcceptOrder(c *fiber.Ctx) error {
	actor := currentActor(c)
	orderID, err := uuid.Parse(c.Params("orderId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid order id"})
	}

	order, err := workflow().Accept(actor, orderID)
	if err != nil {
		return domainError(c, err)
	}

	go notifyOrderParty(order.CustomerID, "Your Booking Was Accepted",
		fmt.Sprintf("<h1>Booking Accepted</h1><p>The freelancer accepted order %s. You can now chat with them directly.</p>", order.OrderNumber))

	return c.JSON(order)
}

type RejectOrderRequest struct {
	Reason *string `json:"reason,omitempty"`
}

func RejectOrder(c *fiber.Ctx) error {
	actor := currentActor(c)
	orderID, err := uuid.Parse(c.Params("orderId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid order id"})
	}

	var req RejectOrderRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
		}
	}

	order, err := workflow().Reject(actor, orderID, req.Reason)
	if err != nil {
		return domainError(c, err)
	}

	go notifyOrderParty(order.CustomerID, "Your Booking Was Declined",
		fmt.Sprintf("<h1>Booking Declined</h1><p>The freelancer declined order %s.</p>", order.OrderNumber))

	return c.JSON(order)
}

func DeliverOrder(c *fiber.Ctx) error {
	actor := currentActor(c)
	orderID, err := uuid.Parse(c.Params("orderId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid order id"})
	}

	order, err := workflow().Deliver(actor, orderID)
	if err != nil {
		return domainError(c, err)
	}

	go notifyOrderParty(order.CustomerID, "Your Order Was Delivered",
		fmt.Sprintf("<h1>Order Delivered</h1><p>Order %s has been delivered. Review the work and complete the order to leave a rating.</p>", order.OrderNumber))

	return c.JSON(order)
}

type CompleteOrderRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

func CompleteOrder(c *fiber.Ctx) error {
	actor := currentActor(c)
	orderID, err := uuid.Parse(c.Params("orderId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid order id"})
	}

	var req CompleteOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	order, review, err := workflow().Complete(actor, orderID, req.Rating, req.Comment)
	if err != nil {
		return domainError(c, err)
	}

	go services.GenerateOrderReceipt(database.DB, services.ActiveStorage(), *order)
	go notifyOrderParty(order.FreelancerID, "Order Completed",
		fmt.Sprintf("<h1>Order Completed</h1><p>Order %s is complete and the customer left a %d-star review.</p>", order.OrderNumber, review.Rating))

	return c.JSON(fiber.Map{"order": order, "review": review})
}

func GetMyOrders(c *fiber.Ctx) error {
	actor := currentActor(c)

	var orders []models.Order
	database.DB.
		Preload("Freelancer").
		Preload("Service").
		Where("customer_id = ?", actor.ID).
		Order("booking_date desc").
		Find(&orders)

	return c.JSON(orders)
}

func GetMyFreelancerOrders(c *fiber.Ctx) error {
	actor := currentActor(c)

	var orders []models.Order
	database.DB.
		Preload("Customer").
		Preload("Service").
		Where("freelancer_id = ?", actor.ID).
		Order("booking_date desc").
		Find(&orders)

	return c.JSON(orders)
}

func GetOrder(c *fiber.Ctx) error {
	actor := currentActor(c)
	orderID := c.Params("orderId")

	var order models.Order
	if err := database.DB.
		Preload("Customer").
		Preload("Freelancer").
		Preload("Service").
		First(&order, "id = ?", orderID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Order not found"})
	}

	if order.CustomerID != actor.ID && order.FreelancerID != actor.ID && !actor.IsAdmin() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	return c.JSON(order)
}

func notifyOrderParty(userID uuid.UUID, subject, htmlContent string) {
	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		return
	}
	notifications.SendEmail(user.FullName, user.Email, subject, htmlContent)
}
