package jobs

import (
	"fmt"
	"log"
	"time"

	"gorm.io/datatypes"

	"github.com/orchardhire/marketplace/database"
	"github.com/orchardhire/marketplace/models"
)

// SendBookingReminders emails both parties of every active order booked for
// tomorrow.
func SendBookingReminders() {
	log.Println("Running job: SendBookingReminders...")

	now := time.Now().UTC()
	tomorrow := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)

	var upcoming []models.Order
	err := database.DB.
		Preload("Customer").
		Preload("Freelancer").
		Preload("Service").
		Where("status = ? AND booking_date = ?", models.OrderStatusActive, datatypes.Date(tomorrow)).
		Find(&upcoming).Error
	if err != nil {
		log.Printf("Error checking for upcoming bookings: %v", err)
		return
	}
	if len(upcoming) == 0 {
		return
	}

	for _, order := range upcoming {
		log.Printf("Sending reminder for order %s", order.OrderNumber)

		subject := "Reminder: Your Booking Is Tomorrow"
		body := fmt.Sprintf(
			"<h1>Booking Reminder</h1><p>This is a friendly reminder that order %s (%s) is scheduled for %s.</p>",
			order.OrderNumber,
			order.Service.Title,
			tomorrow.Format("January 2, 2006"),
		)

		go notifyUser(order.CustomerID, subject, body)
		go notifyUser(order.FreelancerID, subject, body)
	}
}
