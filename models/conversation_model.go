package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ConversationTypeGeneral = "general"
	ConversationTypeOrder   = "order"
)

// Conversation holds an explicit ordered participant pair rather than a join
// table: UserOneID always sorts before UserTwoID, so a general conversation
// between two users maps to exactly one row. Order conversations are keyed by
// the order instead and created when the freelancer accepts.
type Conversation struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	UserOneID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uniq_general_pair,where:type = 'general'" json:"user_one_id"`
	UserTwoID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uniq_general_pair,where:type = 'general'" json:"user_two_id"`
	Type      string     `gorm:"size:20;not null;default:'general'" json:"type"`
	OrderID   *uuid.UUID `gorm:"type:uuid;unique" json:"order_id"`

	UserOne  User      `gorm:"foreignkey:UserOneID" json:"user_one,omitempty"`
	UserTwo  User      `gorm:"foreignkey:UserTwoID" json:"user_two,omitempty"`
	Messages []Message `json:"messages,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// SortParticipants returns the pair in canonical storage order.
func SortParticipants(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if strings.Compare(a.String(), b.String()) > 0 {
		return b, a
	}
	return a, b
}

// HasParticipant reports whether the user is one of the two parties.
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.UserOneID == userID || c.UserTwoID == userID
}

// OtherParticipant returns the counterpart of the given user. The pair is
// explicit, so this is a two-case lookup with no nil branching.
func (c *Conversation) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.UserOneID == userID {
		return c.UserTwoID
	}
	return c.UserOneID
}
