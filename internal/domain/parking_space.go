package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

type SpaceStatus string

const (
	SpaceAvailable SpaceStatus = "Available"
	SpaceOccupied  SpaceStatus = "Occupied"
	SpaceReserved  SpaceStatus = "Reserved"
)

func (s SpaceStatus) Valid() bool {
	switch s {
	case SpaceAvailable, SpaceOccupied, SpaceReserved:
		return true
	}
	return false
}

// ParkingSpace is owned by the persistence layer; clients hold read-only
// replicas kept current through the change feed.
type ParkingSpace struct {
	ID        int         `json:"id"`
	Name      string      `json:"name"`
	Status    SpaceStatus `json:"status"`
	User      null.String `json:"user"` // occupant reference, empty while Available
	Location  string      `json:"location"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type ParkingSpaceDTO struct {
	Name     string `json:"name" binding:"required"`
	Location string `json:"location" binding:"required"`
	Status   string `json:"status,omitempty"`
}

type ParkingSpaceStatusDTO struct {
	Status string `json:"status" binding:"required"`
	User   string `json:"user,omitempty"`
}
