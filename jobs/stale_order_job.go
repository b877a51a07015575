package jobs

import (
	"fmt"
	"log"
	"strconv"
	"time"

	config "github.com/orchardhire/marketplace/configs"
	"github.com/orchardhire/marketplace/database"
	"github.com/orchardhire/marketplace/notifications"
	"github.com/orchardhire/marketplace/services"
)

// CancelStaleOrders cancels bookings whose payment never arrived, releasing
// the freelancer's date for someone else.
func CancelStaleOrders() {
	log.Println("Running job: CancelStaleOrders...")

	staleDays := 3
	if v := config.Config("STALE_ORDER_DAYS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			staleDays = parsed
		}
	}
	cutoff := time.Now().AddDate(0, 0, -staleDays)

	wf := services.NewOrderWorkflow(database.DB, services.ActiveStorage())
	cancelled, err := wf.CancelStale(cutoff)
	if err != nil {
		log.Printf("Error cancelling stale orders: %v", err)
		return
	}
	if len(cancelled) == 0 {
		return
	}

	for _, order := range cancelled {
		log.Printf("Cancelled stale order %s", order.OrderNumber)
		go notifyUser(order.CustomerID,
			"Your Booking Was Cancelled",
			fmt.Sprintf("<h1>Booking Cancelled</h1><p>Order %s was cancelled because no payment slip was uploaded within %d days.</p>", order.OrderNumber, staleDays))
	}
}

func notifyUser(userID interface{}, subject, htmlContent string) {
	var user struct {
		FullName string
		Email    string
	}
	if err := database.DB.Table("users").Where("id = ?", userID).Take(&user).Error; err != nil {
		return
	}
	notifications.SendEmail(user.FullName, user.Email, subject, htmlContent)
}
