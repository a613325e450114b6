package activity

import (
	"time"

	"github.com/google/uuid"
)

// Activity is one patient-side usage record of a portal service.
type Activity struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	ServiceUsed string    `json:"serviceUsed"`
	Notes       *string   `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type LogRequest struct {
	ServiceUsed string  `json:"serviceUsed" binding:"required"`
	Notes       *string `json:"notes"`
}

func NewFromLogRequest(userID string, req LogRequest) Activity {
	return Activity{
		ID:          uuid.NewString(),
		UserID:      userID,
		ServiceUsed: req.ServiceUsed,
		Notes:       req.Notes,
		CreatedAt:   time.Now().UTC(),
	}
}
