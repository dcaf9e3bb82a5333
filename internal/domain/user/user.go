package user

import (
	"github.com/google/uuid"
)

// Identity is the coarse "who is this user" claim carried in the API
// server's own tokens. Email and phone are optional profile fields.
type Identity struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email *string   `json:"email,omitempty"`
	Phone *string   `json:"phone,omitempty"`
}
