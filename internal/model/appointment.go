package model

import "time"

// Appointment is a meeting between a requester and an item's owner, arranged
// from a conversation.
type Appointment struct {
	ID           int64     `json:"id"`
	ItemID       int64     `json:"item_id"`
	RequesterID  int64     `json:"requester_id"`
	OwnerID      int64     `json:"owner_id"`
	Time         time.Time `json:"appointment_time"`
	Location     string    `json:"location"`
	LocationLat  *float64  `json:"location_lat,omitempty"`
	LocationLng  *float64  `json:"location_lng,omitempty"`
	Status       string    `json:"status"`
	Notes        string    `json:"notes"`
	ReminderSent bool      `json:"reminder_sent"`
	CreatedAt    time.Time `json:"created_at"`

	// Joined fields (not always populated).
	ItemName      string `json:"item_name,omitempty"`
	RequesterName string `json:"requester_name,omitempty"`
	OwnerName     string `json:"owner_name,omitempty"`
}

// Appointment statuses.
const (
	AppointmentPending   = "pending"
	AppointmentConfirmed = "confirmed"
	AppointmentCancelled = "cancelled"
	AppointmentCompleted = "completed"
)

// ValidAppointmentStatus reports whether s is a status an owner may set.
func ValidAppointmentStatus(s string) bool {
	switch s {
	case AppointmentConfirmed, AppointmentCancelled, AppointmentCompleted:
		return true
	}
	return false
}

// HasParticipant reports whether userID is the requester or the owner.
func (a *Appointment) HasParticipant(userID int64) bool {
	return a.RequesterID == userID || a.OwnerID == userID
}

// AppointmentPatch is a participant's partial edit. Nil fields are left
// unchanged.
type AppointmentPatch struct {
	Time     *time.Time `json:"appointment_time"`
	Location *string    `json:"location"`
	Notes    *string    `json:"notes"`
}

// Apply copies the set fields of p onto a.
func (p AppointmentPatch) Apply(a *Appointment) {
	if p.Time != nil {
		a.Time = p.Time.UTC()
	}
	if p.Location != nil {
		a.Location = *p.Location
	}
	if p.Notes != nil {
		a.Notes = *p.Notes
	}
}
