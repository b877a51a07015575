package services

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/orchardhire/marketplace/models"
)

// AvailabilityService maintains the freelancer's advisory calendar. Writes are
// last-write-wins and never checked against existing orders: a freelancer may
// block a date that is already booked.
type AvailabilityService struct {
	db *gorm.DB
}

func NewAvailabilityService(db *gorm.DB) *AvailabilityService {
	return &AvailabilityService{db: db}
}

type DateEntry struct {
	Date string `json:"date" validate:"required"`
	Type string `json:"type" validate:"required,oneof=available blocked"`
}

// SetDates upserts calendar entries keyed by (user, date).
func (s *AvailabilityService) SetDates(actor Actor, entries []DateEntry) ([]models.FreelancerAvailability, error) {
	if !actor.IsFreelancer() {
		return nil, ErrForbidden
	}
	if len(entries) == 0 {
		return nil, validationf("at least one date entry is required")
	}

	rows := make([]models.FreelancerAvailability, 0, len(entries))
	for _, entry := range entries {
		date, err := parseBookingDate(entry.Date)
		if err != nil {
			return nil, err
		}
		if date.Before(today()) {
			return nil, validationf("cannot set availability for a past date")
		}
		if entry.Type != models.AvailabilityTypeAvailable && entry.Type != models.AvailabilityTypeBlocked {
			return nil, validationf("availability type must be available or blocked")
		}
		rows = append(rows, models.FreelancerAvailability{
			UserID: actor.ID,
			Date:   datatypes.Date(date),
			Type:   entry.Type,
		})
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// RemoveDate deletes a calendar entry. A no-op when the entry does not exist.
func (s *AvailabilityService) RemoveDate(actor Actor, dateValue string) error {
	if !actor.IsFreelancer() {
		return ErrForbidden
	}
	date, err := parseBookingDate(dateValue)
	if err != nil {
		return err
	}
	return s.db.
		Where("user_id = ? AND date = ?", actor.ID, datatypes.Date(date)).
		Delete(&models.FreelancerAvailability{}).Error
}

// ListMine returns all of a freelancer's own entries from the given date.
func (s *AvailabilityService) ListMine(userID uuid.UUID, from time.Time) ([]models.FreelancerAvailability, error) {
	var rows []models.FreelancerAvailability
	err := s.db.
		Where("user_id = ? AND date >= ?", userID, datatypes.Date(from)).
		Order("date asc").
		Find(&rows).Error
	return rows, err
}

// ListAvailable returns the dates the freelancer has opened for booking.
func (s *AvailabilityService) ListAvailable(freelancerID uuid.UUID, from time.Time) ([]models.FreelancerAvailability, error) {
	var rows []models.FreelancerAvailability
	err := s.db.
		Where("user_id = ? AND type = ? AND date >= ?", freelancerID, models.AvailabilityTypeAvailable, datatypes.Date(from)).
		Order("date asc").
		Find(&rows).Error
	return rows, err
}

// ListBookedDates projects the freelancer's taken dates from the order table.
// Booked is derived from orders, never from the calendar itself.
func (s *AvailabilityService) ListBookedDates(freelancerID uuid.UUID, from time.Time) ([]datatypes.Date, error) {
	var dates []datatypes.Date
	err := s.db.Model(&models.Order{}).
		Where("freelancer_id = ? AND booking_date >= ? AND status NOT IN ?",
			freelancerID, datatypes.Date(from), models.DateReleasingStatuses).
		Order("booking_date asc").
		Pluck("booking_date", &dates).Error
	return dates, err
}
