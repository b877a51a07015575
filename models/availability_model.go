package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	AvailabilityTypeAvailable = "available"
	AvailabilityTypeBlocked   = "blocked"
)

// FreelancerAvailability is advisory: a freelancer may mark a date blocked even
// if an order already exists for it, and an unmarked date simply does not show
// on the public calendar.
type FreelancerAvailability struct {
	ID     uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	UserID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uniq_freelancer_date" json:"user_id"`
	Date   datatypes.Date `gorm:"not null;uniqueIndex:uniq_freelancer_date" json:"date"`
	Type   string         `gorm:"size:20;not null;default:'available'" json:"type"`

	User User `gorm:"foreignkey:UserID" json:"-"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (a *FreelancerAvailability) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
