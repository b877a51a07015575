package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	OrderStatusPendingPayment  = "pending_payment"
	OrderStatusPendingApproval = "pending_approval"
	OrderStatusActive          = "active"
	OrderStatusDelivered       = "delivered"
	OrderStatusCompleted       = "completed"
	OrderStatusCancelled       = "cancelled"
	OrderStatusRejected        = "rejected"
)

// OrderStatuses lists every legal status, in lifecycle order.
var OrderStatuses = []string{
	OrderStatusPendingPayment,
	OrderStatusPendingApproval,
	OrderStatusActive,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusRejected,
}

// DateReleasingStatuses are the statuses that free up the freelancer+date slot
// for a new booking. Note completed does NOT release the date: the work
// happened, the day was taken.
var DateReleasingStatuses = []string{OrderStatusCancelled, OrderStatusRejected}

func IsValidOrderStatus(status string) bool {
	for _, s := range OrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type Order struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	OrderNumber string    `gorm:"size:20;not null;unique" json:"order_number"`

	CustomerID   uuid.UUID `gorm:"type:uuid;not null;index" json:"customer_id"`
	FreelancerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uniq_active_freelancer_date,where:status NOT IN ('cancelled','rejected')" json:"freelancer_id"`
	ServiceID    uuid.UUID `gorm:"type:uuid;not null" json:"service_id"`

	BookingDate   datatypes.Date `gorm:"not null;uniqueIndex:uniq_active_freelancer_date,where:status NOT IN ('cancelled','rejected')" json:"booking_date"`
	AgreedPrice   float64        `gorm:"type:numeric(10,2);not null" json:"agreed_price"`
	CustomerNotes *string        `gorm:"type:text" json:"customer_notes"`
	PaymentSlip   *string        `gorm:"size:255" json:"payment_slip"`
	ReceiptPath   *string        `gorm:"size:255" json:"receipt_path"`
	Status        string         `gorm:"size:20;not null;default:'pending_payment'" json:"status"`

	PaymentSlipUploadedAt *time.Time `json:"payment_slip_uploaded_at"`
	FreelancerRespondedAt *time.Time `json:"freelancer_responded_at"`
	DeliveredAt           *time.Time `json:"delivered_at"`
	CompletedAt           *time.Time `json:"completed_at"`
	CancelledAt           *time.Time `json:"cancelled_at"`
	CancellationReason    *string    `gorm:"type:text" json:"cancellation_reason"`

	Customer   User    `gorm:"foreignkey:CustomerID" json:"customer,omitempty"`
	Freelancer User    `gorm:"foreignkey:FreelancerID" json:"freelancer,omitempty"`
	Service    Service `gorm:"foreignkey:ServiceID" json:"service,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
