package model

import "time"

// Rating is a 1-5 star review one user leaves another after a transaction.
type Rating struct {
	ID          int64     `json:"id"`
	RaterID     int64     `json:"rater_id"`
	RatedUserID int64     `json:"rated_user_id"`
	ItemID      int64     `json:"item_id"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	// Joined fields (not always populated).
	RaterUsername string `json:"rater_username,omitempty"`
	ItemName      string `json:"item_name,omitempty"`
}

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)
