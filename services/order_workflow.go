package services

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/orchardhire/marketplace/models"
	"github.com/orchardhire/marketplace/utils"
)

// OrderWorkflow is the authoritative state machine for an order. Every
// transition runs as a single transaction and flips the status with a
// compare-and-swap on the previous status, so a concurrent transition that
// wins the race surfaces as a StateConflictError instead of a lost update.
type OrderWorkflow struct {
	db      *gorm.DB
	storage Storage
}

func NewOrderWorkflow(db *gorm.DB, storage Storage) *OrderWorkflow {
	return &OrderWorkflow{db: db, storage: storage}
}

type CreateOrderInput struct {
	// CustomerID is honored for admin-created orders only; customers always
	// book for themselves.
	CustomerID  uuid.UUID
	ServiceID   uuid.UUID
	BookingDate string
	AgreedPrice *float64
	Notes       *string
}

func parseBookingDate(value string) (time.Time, error) {
	date, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, validationf("date must be in YYYY-MM-DD format")
	}
	return date, nil
}

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// IsDateFree reports whether no order outside the cancelled/rejected statuses
// exists for the freelancer on the given date. CreateOrder re-evaluates this
// inside its transaction; the partial unique index on (freelancer_id,
// booking_date) backstops the race between two concurrent bookings.
func (w *OrderWorkflow) IsDateFree(freelancerID uuid.UUID, date time.Time) (bool, error) {
	taken, err := dateTaken(w.db, freelancerID, datatypes.Date(date))
	return !taken, err
}

func dateTaken(tx *gorm.DB, freelancerID uuid.UUID, date datatypes.Date) (bool, error) {
	var count int64
	err := tx.Model(&models.Order{}).
		Where("freelancer_id = ? AND booking_date = ? AND status NOT IN ?",
			freelancerID, date, models.DateReleasingStatuses).
		Count(&count).Error
	return count > 0, err
}

func (w *OrderWorkflow) CreateOrder(actor Actor, in CreateOrderInput) (*models.Order, error) {
	var customerID uuid.UUID
	switch {
	case actor.IsCustomer():
		customerID = actor.ID
	case actor.IsAdmin():
		if in.CustomerID == uuid.Nil {
			return nil, validationf("customer_id is required")
		}
		customerID = in.CustomerID
	default:
		return nil, ErrForbidden
	}

	date, err := parseBookingDate(in.BookingDate)
	if err != nil {
		return nil, err
	}
	if date.Before(today()) {
		return nil, validationf("booking date cannot be in the past")
	}

	var order models.Order
	err = w.db.Transaction(func(tx *gorm.DB) error {
		var service models.Service
		if err := tx.First(&service, "id = ? AND is_active = ?", in.ServiceID, true).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return validationf("service not found or no longer offered")
			}
			return err
		}
		if service.FreelancerID == customerID {
			return validationf("you cannot book your own service")
		}

		price := service.Price
		if in.AgreedPrice != nil {
			price = *in.AgreedPrice
		}
		if price < 0 {
			return validationf("agreed price cannot be negative")
		}
		if math.Abs(price*100-math.Round(price*100)) > 1e-9 {
			return validationf("agreed price cannot have more than 2 decimal places")
		}

		// Customers may only book dates the freelancer has opened. Admin
		// bookings skip this: availability is a hint, not a constraint.
		if !actor.IsAdmin() {
			var avail models.FreelancerAvailability
			err := tx.Where("user_id = ? AND date = ? AND type = ?",
				service.FreelancerID, datatypes.Date(date), models.AvailabilityTypeAvailable).
				First(&avail).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return conflictf("this date is not open for booking")
			} else if err != nil {
				return err
			}
		}

		taken, err := dateTaken(tx, service.FreelancerID, datatypes.Date(date))
		if err != nil {
			return err
		}
		if taken {
			return conflictf("the freelancer is already booked on this date")
		}

		number, err := utils.GenerateUniqueOrderNumber(tx)
		if err != nil {
			return err
		}

		order = models.Order{
			OrderNumber:   number,
			CustomerID:    customerID,
			FreelancerID:  service.FreelancerID,
			ServiceID:     service.ID,
			BookingDate:   datatypes.Date(date),
			AgreedPrice:   price,
			CustomerNotes: in.Notes,
			Status:        models.OrderStatusPendingPayment,
		}
		if err := tx.Create(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return conflictf("the freelancer is already booked on this date")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// transition flips the status with a guard on the previous one. Zero affected
// rows after a successful read means a concurrent transition won.
func transition(tx *gorm.DB, orderID uuid.UUID, from string, updates map[string]interface{}) error {
	res := tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return conflictf("order is no longer in the %s status", from)
	}
	return nil
}

func (w *OrderWorkflow) loadOrder(tx *gorm.DB, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := tx.First(&order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// UploadPaymentSlip stores the slip and moves the order from pending_payment
// to pending_approval. Re-uploading while still pending replaces the previous
// file.
func (w *OrderWorkflow) UploadPaymentSlip(ctx context.Context, actor Actor, orderID uuid.UUID, file io.Reader) (*models.Order, error) {
	path, err := w.storage.Store(ctx, file, "payment_slips")
	if err != nil {
		return nil, err
	}

	var order *models.Order
	var previousSlip *string
	err = w.db.Transaction(func(tx *gorm.DB) error {
		order, err = w.loadOrder(tx, orderID)
		if err != nil {
			return err
		}
		if !actor.IsCustomer() || order.CustomerID != actor.ID {
			return ErrForbidden
		}
		if order.Status != models.OrderStatusPendingPayment {
			return conflictf("a payment slip can only be uploaded while the order is awaiting payment")
		}

		previousSlip = order.PaymentSlip
		now := time.Now()
		if err := transition(tx, order.ID, models.OrderStatusPendingPayment, map[string]interface{}{
			"status":                   models.OrderStatusPendingApproval,
			"payment_slip":             path,
			"payment_slip_uploaded_at": now,
		}); err != nil {
			return err
		}
		order.Status = models.OrderStatusPendingApproval
		order.PaymentSlip = &path
		order.PaymentSlipUploadedAt = &now
		return nil
	})
	if err != nil {
		if delErr := w.storage.Delete(ctx, path); delErr != nil {
			log.Printf("Failed to clean up orphaned payment slip %s: %v", path, delErr)
		}
		return nil, err
	}

	if previousSlip != nil {
		if delErr := w.storage.Delete(ctx, *previousSlip); delErr != nil {
			log.Printf("Failed to delete replaced payment slip %s: %v", *previousSlip, delErr)
		}
	}
	return order, nil
}

// Accept moves the order to active and opens the order conversation between
// the two parties. Creating the conversation is idempotent.
func (w *OrderWorkflow) Accept(actor Actor, orderID uuid.UUID) (*models.Order, error) {
	var order *models.Order
	err := w.db.Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = w.loadOrder(tx, orderID)
		if err != nil {
			return err
		}
		if !actor.IsFreelancer() || order.FreelancerID != actor.ID {
			return ErrForbidden
		}
		if order.Status != models.OrderStatusPendingApproval {
			return conflictf("only orders awaiting approval can be accepted")
		}

		now := time.Now()
		if err := transition(tx, order.ID, models.OrderStatusPendingApproval, map[string]interface{}{
			"status":                  models.OrderStatusActive,
			"freelancer_responded_at": now,
		}); err != nil {
			return err
		}
		order.Status = models.OrderStatusActive
		order.FreelancerRespondedAt = &now

		_, err = getOrCreateOrderConversation(tx, order)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func getOrCreateOrderConversation(tx *gorm.DB, order *models.Order) (*models.Conversation, error) {
	var conv models.Conversation
	err := tx.Where("order_id = ?", order.ID).First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	one, two := models.SortParticipants(order.CustomerID, order.FreelancerID)
	orderID := order.ID
	conv = models.Conversation{
		UserOneID: one,
		UserTwoID: two,
		Type:      models.ConversationTypeOrder,
		OrderID:   &orderID,
	}
	if err := tx.Create(&conv).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = tx.Where("order_id = ?", order.ID).First(&conv).Error
		}
		if err != nil {
			return nil, err
		}
	}
	return &conv, nil
}

func (w *OrderWorkflow) Reject(actor Actor, orderID uuid.UUID, reason *string) (*models.Order, error) {
	var order *models.Order
	err := w.db.Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = w.loadOrder(tx, orderID)
		if err != nil {
			return err
		}
		if !actor.IsFreelancer() || order.FreelancerID != actor.ID {
			return ErrForbidden
		}
		if order.Status != models.OrderStatusPendingApproval {
			return conflictf("only orders awaiting approval can be rejected")
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":                  models.OrderStatusRejected,
			"freelancer_responded_at": now,
		}
		if reason != nil {
			updates["cancellation_reason"] = *reason
		}
		if err := transition(tx, order.ID, models.OrderStatusPendingApproval, updates); err != nil {
			return err
		}
		order.Status = models.OrderStatusRejected
		order.FreelancerRespondedAt = &now
		order.CancellationReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (w *OrderWorkflow) Deliver(actor Actor, orderID uuid.UUID) (*models.Order, error) {
	var order *models.Order
	err := w.db.Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = w.loadOrder(tx, orderID)
		if err != nil {
			return err
		}
		if !actor.IsFreelancer() || order.FreelancerID != actor.ID {
			return ErrForbidden
		}
		if order.Status != models.OrderStatusActive {
			return conflictf("only active orders can be delivered")
		}

		now := time.Now()
		if err := transition(tx, order.ID, models.OrderStatusActive, map[string]interface{}{
			"status":       models.OrderStatusDelivered,
			"delivered_at": now,
		}); err != nil {
			return err
		}
		order.Status = models.OrderStatusDelivered
		order.DeliveredAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Complete closes the order and writes its one and only review. The
// freelancer's average rating is recomputed in the same transaction.
func (w *OrderWorkflow) Complete(actor Actor, orderID uuid.UUID, rating int, comment string) (*models.Order, *models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, nil, validationf("rating must be between 1 and 5")
	}

	var order *models.Order
	var review models.Review
	err := w.db.Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = w.loadOrder(tx, orderID)
		if err != nil {
			return err
		}
		if !actor.IsCustomer() || order.CustomerID != actor.ID {
			return ErrForbidden
		}
		if order.Status != models.OrderStatusDelivered {
			return conflictf("only delivered orders can be completed")
		}

		now := time.Now()
		if err := transition(tx, order.ID, models.OrderStatusDelivered, map[string]interface{}{
			"status":       models.OrderStatusCompleted,
			"completed_at": now,
		}); err != nil {
			return err
		}
		order.Status = models.OrderStatusCompleted
		order.CompletedAt = &now

		review = models.Review{
			OrderID:      order.ID,
			CustomerID:   order.CustomerID,
			FreelancerID: order.FreelancerID,
			Rating:       rating,
			Comment:      comment,
		}
		if err := tx.Create(&review).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return conflictf("this order has already been reviewed")
			}
			return err
		}

		var result struct{ Avg float64 }
		if err := tx.Model(&models.Review{}).
			Where("freelancer_id = ?", order.FreelancerID).
			Select("avg(rating) as avg").
			Scan(&result).Error; err != nil {
			return err
		}
		return tx.Model(&models.FreelancerProfile{}).
			Where("user_id = ?", order.FreelancerID).
			Update("avg_rating", result.Avg).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return order, &review, nil
}

// AdminUpdateStatus force-sets any status and stamps the matching timestamp.
// It deliberately skips the transition-order checks: this is the
// administrative escape hatch, not a bug.
func (w *OrderWorkflow) AdminUpdateStatus(actor Actor, orderID uuid.UUID, target string, reason *string) (*models.Order, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if !models.IsValidOrderStatus(target) {
		return nil, validationf("unknown order status %q", target)
	}

	var order *models.Order
	err := w.db.Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = w.loadOrder(tx, orderID)
		if err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]interface{}{"status": target}
		switch target {
		case models.OrderStatusPendingApproval:
			updates["payment_slip_uploaded_at"] = now
		case models.OrderStatusActive:
			updates["freelancer_responded_at"] = now
		case models.OrderStatusDelivered:
			updates["delivered_at"] = now
		case models.OrderStatusCompleted:
			updates["completed_at"] = now
		case models.OrderStatusRejected:
			updates["freelancer_responded_at"] = now
			if reason != nil {
				updates["cancellation_reason"] = *reason
			}
		case models.OrderStatusCancelled:
			updates["cancelled_at"] = now
			cancellationReason := "Cancelled by an administrator"
			if reason != nil {
				cancellationReason = *reason
			}
			updates["cancellation_reason"] = cancellationReason
		}

		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(order, "id = ?", order.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// AdminDestroyOrder removes the order, its review and its stored files.
// Irreversible by design.
func (w *OrderWorkflow) AdminDestroyOrder(ctx context.Context, actor Actor, orderID uuid.UUID) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}

	var slip, receipt *string
	err := w.db.Transaction(func(tx *gorm.DB) error {
		order, err := w.loadOrder(tx, orderID)
		if err != nil {
			return err
		}
		slip = order.PaymentSlip
		receipt = order.ReceiptPath

		if err := tx.Where("order_id = ?", order.ID).Delete(&models.Review{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Order{}, "id = ?", order.ID).Error
	})
	if err != nil {
		return err
	}

	for _, path := range []*string{slip, receipt} {
		if path == nil {
			continue
		}
		if delErr := w.storage.Delete(ctx, *path); delErr != nil {
			log.Printf("Failed to delete order file %s: %v", *path, delErr)
		}
	}
	return nil
}

// CancelStale cancels orders that sat in pending_payment longer than the
// cutoff. Used by the maintenance job; each order is cancelled independently
// with the same CAS guard as every other transition.
func (w *OrderWorkflow) CancelStale(cutoff time.Time) ([]models.Order, error) {
	var stale []models.Order
	if err := w.db.
		Where("status = ? AND created_at < ?", models.OrderStatusPendingPayment, cutoff).
		Find(&stale).Error; err != nil {
		return nil, err
	}

	var cancelled []models.Order
	for _, order := range stale {
		err := w.db.Transaction(func(tx *gorm.DB) error {
			return transition(tx, order.ID, models.OrderStatusPendingPayment, map[string]interface{}{
				"status":              models.OrderStatusCancelled,
				"cancelled_at":        time.Now(),
				"cancellation_reason": "Payment was not received in time",
			})
		})
		if err != nil {
			var conflict *StateConflictError
			if errors.As(err, &conflict) {
				continue
			}
			return cancelled, err
		}
		order.Status = models.OrderStatusCancelled
		cancelled = append(cancelled, order)
	}
	return cancelled, nil
}
