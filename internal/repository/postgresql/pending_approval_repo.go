package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/naigggs/hau2park.web-sub001/internal/changefeed"
	"github.com/naigggs/hau2park.web-sub001/internal/domain"
	"github.com/naigggs/hau2park.web-sub001/internal/repository"
)

type pgPendingApprovalRepository struct {
	db   *sql.DB
	feed changefeed.Publisher
}

func NewPgPendingApprovalRepository(db *sql.DB, feed changefeed.Publisher) repository.PendingApprovalRepository {
	return &pgPendingApprovalRepository{db: db, feed: feed}
}

func (r *pgPendingApprovalRepository) Create(ctx context.Context, approval *domain.PendingApproval) (*domain.PendingApproval, error) {
	query := `INSERT INTO pending_approvals (user_id, first_name, last_name, email, status, created_at)
	           VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP)
	           RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		approval.UserID, approval.FirstName, approval.LastName, approval.Email, approval.Status,
	).Scan(&approval.ID, &approval.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("PendingApprovalRepository.Create: %w", err)
	}
	approval.CreatedAt = approval.CreatedAt.In(time.UTC)

	r.publish(changefeed.NewInsert(changefeed.TopicPendingApprovals, approval))
	return approval, nil
}

func (r *pgPendingApprovalRepository) FindByID(ctx context.Context, id int) (*domain.PendingApproval, error) {
	approval := &domain.PendingApproval{}
	query := `SELECT id, user_id, first_name, last_name, email, status, created_at
	           FROM pending_approvals WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&approval.ID, &approval.UserID, &approval.FirstName, &approval.LastName,
		&approval.Email, &approval.Status, &approval.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("PendingApprovalRepository.FindByID: %w", err)
	}
	approval.CreatedAt = approval.CreatedAt.In(time.UTC)
	return approval, nil
}

func (r *pgPendingApprovalRepository) FindByStatus(ctx context.Context, status domain.ApprovalStatus) ([]domain.PendingApproval, error) {
	query := `SELECT id, user_id, first_name, last_name, email, status, created_at
	           FROM pending_approvals WHERE status = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("PendingApprovalRepository.FindByStatus: %w", err)
	}
	defer rows.Close()

	var approvals []domain.PendingApproval
	for rows.Next() {
		var approval domain.PendingApproval
		if err := rows.Scan(
			&approval.ID, &approval.UserID, &approval.FirstName, &approval.LastName,
			&approval.Email, &approval.Status, &approval.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("PendingApprovalRepository.FindByStatus (scanning row): %w", err)
		}
		approval.CreatedAt = approval.CreatedAt.In(time.UTC)
		approvals = append(approvals, approval)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("PendingApprovalRepository.FindByStatus (rows error): %w", err)
	}
	return approvals, nil
}

func (r *pgPendingApprovalRepository) UpdateStatus(ctx context.Context, id int, from, to domain.ApprovalStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE pending_approvals SET status = $1 WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return fmt.Errorf("PendingApprovalRepository.UpdateStatus: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	updated, err := r.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("PendingApprovalRepository.UpdateStatus (reload): %w", err)
	}
	r.publish(changefeed.NewUpdate(changefeed.TopicPendingApprovals, nil, updated))
	return nil
}

func (r *pgPendingApprovalRepository) publish(ev changefeed.Event, err error) {
	if err != nil {
		log.Printf("PendingApprovalRepository: building change event: %v", err)
		return
	}
	r.feed.Publish(ev)
}
