package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/naigggs/hau2park.web-sub001/internal/domain"
	"github.com/naigggs/hau2park.web-sub001/internal/repository"
)

var ErrApprovalDecided = errors.New("signup approval already decided")

// ApprovalService decides pending account signups. pending is the only
// state that admits a transition; approved and declined are terminal.
type ApprovalService struct {
	approvalRepo repository.PendingApprovalRepository
	userRepo     repository.UserRepository
}

func NewApprovalService(approvalRepo repository.PendingApprovalRepository, userRepo repository.UserRepository) *ApprovalService {
	return &ApprovalService{approvalRepo: approvalRepo, userRepo: userRepo}
}

func (s *ApprovalService) ListPending(ctx context.Context) ([]domain.PendingApproval, error) {
	return s.approvalRepo.FindByStatus(ctx, domain.ApprovalPending)
}

// Approve marks the signup approved.
func (s *ApprovalService) Approve(ctx context.Context, id int) (*domain.PendingApproval, error) {
	return s.decide(ctx, "ApprovalService.Approve", id, domain.ApprovalApproved)
}

// Decline marks the signup declined and removes the provisional account.
func (s *ApprovalService) Decline(ctx context.Context, id int) (*domain.PendingApproval, error) {
	approval, err := s.decide(ctx, "ApprovalService.Decline", id, domain.ApprovalDeclined)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.Delete(ctx, approval.UserID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Printf("ApprovalService: removing declined account %s: %v", approval.UserID, err)
	}
	return approval, nil
}

func (s *ApprovalService) decide(ctx context.Context, op string, id int, to domain.ApprovalStatus) (*domain.PendingApproval, error) {
	approval, err := s.approvalRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, &domain.PersistenceError{Op: op, EntityID: fmt.Sprint(id), Err: err}
	}

	if approval.Status != domain.ApprovalPending {
		return nil, fmt.Errorf("%w: approval %d is %s", ErrApprovalDecided, id, approval.Status)
	}

	// Compare-and-set from pending; a decision racing another cannot
	// overwrite the winner's terminal status.
	if err := s.approvalRepo.UpdateStatus(ctx, id, domain.ApprovalPending, to); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			cur, ferr := s.approvalRepo.FindByID(ctx, id)
			if ferr != nil {
				if errors.Is(ferr, repository.ErrNotFound) {
					return nil, ferr
				}
				return nil, &domain.PersistenceError{Op: op, EntityID: fmt.Sprint(id), Err: ferr}
			}
			return nil, fmt.Errorf("%w: approval %d is %s", ErrApprovalDecided, id, cur.Status)
		}
		return nil, &domain.PersistenceError{Op: op, EntityID: fmt.Sprint(id), Err: err}
	}
	approval.Status = to
	log.Printf("ApprovalService: signup %d -> %s", id, to)
	return approval, nil
}
