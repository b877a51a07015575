package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSortParticipants(t *testing.T) {
	a := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	b := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	one, two := SortParticipants(a, b)
	assert.Equal(t, a, one)
	assert.Equal(t, b, two)

	// Reversed input lands in the same storage order.
	one, two = SortParticipants(b, a)
	assert.Equal(t, a, one)
	assert.Equal(t, b, two)
}

func TestConversationParticipants(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	one, two := SortParticipants(a, b)
	conv := Conversation{UserOneID: one, UserTwoID: two}

	assert.True(t, conv.HasParticipant(a))
	assert.True(t, conv.HasParticipant(b))
	assert.False(t, conv.HasParticipant(uuid.New()))

	assert.Equal(t, b, conv.OtherParticipant(a))
	assert.Equal(t, a, conv.OtherParticipant(b))
}
