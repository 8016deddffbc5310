package domain

import "time"

type RequestStatus string

const (
	RequestOpen     RequestStatus = "Open"
	RequestApproved RequestStatus = "Approved"
	RequestDeclined RequestStatus = "Declined"
)

// Terminal reports whether no further status transition is permitted.
func (s RequestStatus) Terminal() bool {
	return s == RequestApproved || s == RequestDeclined
}

// GuestRequest is one guest parking request. Status only ever moves
// Open -> Approved or Open -> Declined; SecretToken is assigned at creation
// and never regenerated.
type GuestRequest struct {
	ID              int           `json:"id"`
	UserID          string        `json:"user_id"`
	Email           string        `json:"email"`
	Title           string        `json:"title"`
	Purpose         string        `json:"purpose"`
	AppointmentDate time.Time     `json:"appointment_date"`
	StartTime       string        `json:"parking_start_time"` // "HH:MM", 24h
	EndTime         string        `json:"parking_end_time"`
	Status          RequestStatus `json:"status"`
	SecretToken     string        `json:"secret_token,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

type SubmitGuestRequestDTO struct {
	Email           string `json:"email" binding:"required,email"`
	Title           string `json:"title" binding:"required"`
	Purpose         string `json:"purpose" binding:"required"`
	AppointmentDate string `json:"appointment_date" binding:"required"` // "2006-01-02"
	StartTime       string `json:"parking_start_time" binding:"required"`
	EndTime         string `json:"parking_end_time" binding:"required"`
}

type GuestRequestFilterDTO struct {
	UserID string `form:"userId"`
	Status string `form:"status"`
}
