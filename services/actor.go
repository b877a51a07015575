package services

import (
	"github.com/google/uuid"

	"github.com/orchardhire/marketplace/models"
)

// Actor is the authenticated principal behind a workflow call. Handlers build
// it from the JWT claims; the services layer never reads ambient session state.
type Actor struct {
	ID   uuid.UUID
	Role string
}

func (a Actor) IsCustomer() bool   { return a.Role == models.RoleCustomer }
func (a Actor) IsFreelancer() bool { return a.Role == models.RoleFreelancer }
func (a Actor) IsAdmin() bool      { return a.Role == models.RoleAdmin }
