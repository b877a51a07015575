package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Review is written exactly once, when the customer completes the order.
type Review struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	OrderID      uuid.UUID `gorm:"type:uuid;not null;unique" json:"order_id"`
	CustomerID   uuid.UUID `gorm:"type:uuid;not null" json:"customer_id"`
	FreelancerID uuid.UUID `gorm:"type:uuid;not null;index" json:"freelancer_id"`
	Rating       int       `gorm:"not null;check:rating >= 1 AND rating <= 5" json:"rating"`
	Comment      string    `gorm:"type:text" json:"comment"`

	Order      Order `gorm:"foreignkey:OrderID" json:"-"`
	Customer   User  `gorm:"foreignkey:CustomerID" json:"customer,omitempty"`
	Freelancer User  `gorm:"foreignkey:FreelancerID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
