package dto

import (
	"time"

	"github.com/dimitrije/passkeep/internal/models"
	"github.com/google/uuid"
)

type CreateRecordRequest struct {
	Title    string `json:"title"`
	Username string `json:"username"`
	Password string `json:"password"`
	URL      string `json:"url"`
	Notes    string `json:"notes"`
}

func (r CreateRecordRequest) Fields() models.RecordFields {
	return models.RecordFields{
		Title:    r.Title,
		Username: r.Username,
		Password: r.Password,
		URL:      r.URL,
		Notes:    r.Notes,
	}
}

// RecordSummary is a list entry; it never carries the password.
type RecordSummary struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Username  string    `json:"username"`
	URL       *string   `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type RecordResponse struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	URL       *string   `json:"url,omitempty"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SecretResponse struct {
	Password string `json:"password"`
}

func NewRecordSummary(r models.Record) RecordSummary {
	return RecordSummary{
		ID:        r.ID,
		Title:     r.Title,
		Username:  r.Username,
		URL:       r.URL,
		CreatedAt: r.CreatedAt,
	}
}

func NewRecordResponse(r *models.Record) RecordResponse {
	return RecordResponse{
		ID:        r.ID,
		Title:     r.Title,
		Username:  r.Username,
		Password:  r.Password,
		URL:       r.URL,
		Notes:     r.Notes,
		CreatedAt: r.CreatedAt,
	}
}
