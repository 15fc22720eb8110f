package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Plant struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Nickname  *string   `json:"nickname,omitempty"`
	Species   *string   `json:"species,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName prefers the nickname the owner gave the plant.
func (p Plant) DisplayName() string {
	return PlantDisplayName(p.Name, p.Nickname)
}

func PlantDisplayName(name string, nickname *string) string {
	if nickname != nil && strings.TrimSpace(*nickname) != "" {
		return strings.TrimSpace(*nickname)
	}
	if strings.TrimSpace(name) == "" {
		return "your plant"
	}
	return name
}
