package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/naigggs/hau2park.web-sub001/internal/domain"
	"github.com/naigggs/hau2park.web-sub001/internal/repository"
)

// GuestService enforces the guest-request lifecycle: Open -> Approved or
// Open -> Declined, nothing else. Writes go through the repository, whose
// change events are what downstream mirrors eventually reconcile; the
// service never touches a mirror directly.
type GuestService struct {
	requestRepo repository.GuestRequestRepository
	genToken    TokenGenerator
	tokenLength int
}

func NewGuestService(requestRepo repository.GuestRequestRepository, genToken TokenGenerator, tokenLength int) *GuestService {
	if genToken == nil {
		genToken = GenerateSecretToken
	}
	return &GuestService{
		requestRepo: requestRepo,
		genToken:    genToken,
		tokenLength: tokenLength,
	}
}

// SubmitRequest validates the fields, rejects a duplicate Open request for
// the same (requester, date, start time), then persists a new Open record
// with a freshly generated secret token. The token is assigned here exactly
// once and never regenerated.
func (s *GuestService) SubmitRequest(ctx context.Context, userID string, dto domain.SubmitGuestRequestDTO) (*domain.GuestRequest, error) {
	const op = "GuestService.SubmitRequest"

	if userID == "" {
		return nil, &domain.ValidationError{Op: op, Field: "user_id", Msg: "must not be empty"}
	}
	required := []struct{ field, value string }{
		{"email", dto.Email},
		{"title", dto.Title},
		{"purpose", dto.Purpose},
		{"appointment_date", dto.AppointmentDate},
		{"parking_start_time", dto.StartTime},
		{"parking_end_time", dto.EndTime},
	}
	for _, f := range required {
		if f.value == "" {
			return nil, &domain.ValidationError{Op: op, Field: f.field, Msg: "must not be empty"}
		}
	}

	date, err := time.Parse("2006-01-02", dto.AppointmentDate)
	if err != nil {
		return nil, &domain.ValidationError{Op: op, Field: "appointment_date", Msg: "must be YYYY-MM-DD"}
	}
	if _, err := time.Parse("15:04", dto.StartTime); err != nil {
		return nil, &domain.ValidationError{Op: op, Field: "parking_start_time", Msg: "must be HH:MM"}
	}
	if _, err := time.Parse("15:04", dto.EndTime); err != nil {
		return nil, &domain.ValidationError{Op: op, Field: "parking_end_time", Msg: "must be HH:MM"}
	}

	existing, err := s.requestRepo.FindOpenBySlot(ctx, userID, date, dto.StartTime)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, &domain.PersistenceError{Op: op, EntityID: userID, Err: err}
	}
	if existing != nil {
		return nil, &domain.ConflictError{Op: op, ExistingID: existing.ID}
	}

	req := &domain.GuestRequest{
		UserID:          userID,
		Email:           dto.Email,
		Title:           dto.Title,
		Purpose:         dto.Purpose,
		AppointmentDate: date,
		StartTime:       dto.StartTime,
		EndTime:         dto.EndTime,
		Status:          domain.RequestOpen,
		SecretToken:     s.genToken(s.tokenLength),
	}

	created, err := s.requestRepo.Create(ctx, req)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			// Raced with an identical submission that won the insert.
			return nil, &domain.ConflictError{Op: op}
		}
		return nil, &domain.PersistenceError{Op: op, EntityID: userID, Err: err}
	}
	log.Printf("GuestService: request %d submitted by %s for %s %s", created.ID, userID, dto.AppointmentDate, dto.StartTime)
	return created, nil
}

// Approve moves an Open request to Approved.
func (s *GuestService) Approve(ctx context.Context, id int) (*domain.GuestRequest, error) {
	return s.transition(ctx, "GuestService.Approve", id, domain.RequestApproved)
}

// Decline moves an Open request to Declined.
func (s *GuestService) Decline(ctx context.Context, id int) (*domain.GuestRequest, error) {
	return s.transition(ctx, "GuestService.Decline", id, domain.RequestDeclined)
}

func (s *GuestService) transition(ctx context.Context, op string, id int, to domain.RequestStatus) (*domain.GuestRequest, error) {
	req, err := s.requestRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, &domain.PersistenceError{Op: op, EntityID: fmt.Sprint(id), Err: err}
	}

	if req.Status.Terminal() {
		ierr := &domain.IllegalTransitionError{Op: op, EntityID: id, From: req.Status, To: to}
		log.Printf("GuestService: %v", ierr)
		return nil, ierr
	}

	// The write is a compare-and-set from Open; a concurrent decision that
	// committed between the read above and this statement makes it match
	// nothing instead of overwriting a terminal status.
	if err := s.requestRepo.UpdateStatus(ctx, id, domain.RequestOpen, to); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			cur, ferr := s.requestRepo.FindByID(ctx, id)
			if ferr != nil {
				if errors.Is(ferr, repository.ErrNotFound) {
					return nil, ferr
				}
				return nil, &domain.PersistenceError{Op: op, EntityID: fmt.Sprint(id), Err: ferr}
			}
			ierr := &domain.IllegalTransitionError{Op: op, EntityID: id, From: cur.Status, To: to}
			log.Printf("GuestService: %v", ierr)
			return nil, ierr
		}
		return nil, &domain.PersistenceError{Op: op, EntityID: fmt.Sprint(id), Err: err}
	}
	req.Status = to
	log.Printf("GuestService: request %d -> %s", id, to)
	return req, nil
}

func (s *GuestService) GetRequest(ctx context.Context, id int) (*domain.GuestRequest, error) {
	return s.requestRepo.FindByID(ctx, id)
}

// VerifyToken resolves a secret token back to its request, used by the
// gate check-in flow.
func (s *GuestService) VerifyToken(ctx context.Context, token string) (*domain.GuestRequest, error) {
	if token == "" {
		return nil, &domain.ValidationError{Op: "GuestService.VerifyToken", Field: "token", Msg: "must not be empty"}
	}
	return s.requestRepo.FindBySecretToken(ctx, token)
}

func (s *GuestService) ListRequests(ctx context.Context, filter domain.GuestRequestFilterDTO) ([]domain.GuestRequest, error) {
	return s.requestRepo.Find(ctx, filter)
}
