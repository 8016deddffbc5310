package repository

import (
	"context"
	"errors"
	"time"

	"github.com/naigggs/hau2park.web-sub001/internal/domain"
)

var ErrNotFound = errors.New("record not found")
var ErrDuplicateEntry = errors.New("record already exists")

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}

type ParkingSpaceRepository interface {
	Create(ctx context.Context, space *domain.ParkingSpace) (*domain.ParkingSpace, error)
	FindByID(ctx context.Context, id int) (*domain.ParkingSpace, error)
	FindAll(ctx context.Context) ([]domain.ParkingSpace, error)
	UpdateStatus(ctx context.Context, id int, status domain.SpaceStatus, user string) error
	Delete(ctx context.Context, id int) error
}

type GuestRequestRepository interface {
	Create(ctx context.Context, req *domain.GuestRequest) (*domain.GuestRequest, error)
	FindByID(ctx context.Context, id int) (*domain.GuestRequest, error)
	// FindOpenBySlot locates an Open request for the same requester,
	// appointment date and start time; used for duplicate detection.
	FindOpenBySlot(ctx context.Context, userID string, date time.Time, startTime string) (*domain.GuestRequest, error)
	FindBySecretToken(ctx context.Context, token string) (*domain.GuestRequest, error)
	Find(ctx context.Context, filter domain.GuestRequestFilterDTO) ([]domain.GuestRequest, error)
	// UpdateStatus is a compare-and-set: the row moves from -> to in one
	// statement, so a decision racing another cannot overwrite a terminal
	// status. ErrNotFound when no row matches both id and from.
	UpdateStatus(ctx context.Context, id int, from, to domain.RequestStatus) error
	Delete(ctx context.Context, id int) error
}

type PendingApprovalRepository interface {
	Create(ctx context.Context, approval *domain.PendingApproval) (*domain.PendingApproval, error)
	FindByID(ctx context.Context, id int) (*domain.PendingApproval, error)
	FindByStatus(ctx context.Context, status domain.ApprovalStatus) ([]domain.PendingApproval, error)
	// UpdateStatus is a compare-and-set, matching GuestRequestRepository.
	UpdateStatus(ctx context.Context, id int, from, to domain.ApprovalStatus) error
}
