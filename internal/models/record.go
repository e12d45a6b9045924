package models

import (
	"time"

	"github.com/google/uuid"
)

type Record struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Title     string    `json:"title"`
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	URL       *string   `json:"url,omitempty"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordFields is the caller-supplied part of a record; the store assigns the rest.
type RecordFields struct {
	Title    string
	Username string
	Password string
	URL      string
	Notes    string
}
