package models

import (
	"time"

	"github.com/google/uuid"
)

// Workshop is a scheduled two-party tutoring call. Its ID doubles as the
// signaling room key.
type Workshop struct {
	ID          uuid.UUID `json:"id" db:"id"`
	HostID      uuid.UUID `json:"host_id" db:"host_id"`
	Title       string    `json:"title" db:"title"`
	ScheduledAt time.Time `json:"scheduled_at" db:"scheduled_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

func NewWorkshop(hostID uuid.UUID, title string, scheduledAt time.Time) *Workshop {
	return &Workshop{
		ID:          uuid.New(),
		HostID:      hostID,
		Title:       title,
		ScheduledAt: scheduledAt,
		CreatedAt:   time.Now(),
	}
}
