package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"

	"github.com/naigggs/hau2park.web-sub001/internal/changefeed"
	"github.com/naigggs/hau2park.web-sub001/internal/domain"
	"github.com/naigggs/hau2park.web-sub001/internal/repository"
)

type pgGuestRequestRepository struct {
	db   *sql.DB
	feed changefeed.Publisher
}

func NewPgGuestRequestRepository(db *sql.DB, feed changefeed.Publisher) repository.GuestRequestRepository {
	return &pgGuestRequestRepository{db: db, feed: feed}
}

const guestRequestColumns = `id, user_id, email, title, purpose, appointment_date,
	parking_start_time, parking_end_time, status, secret_token, created_at`

func (r *pgGuestRequestRepository) Create(ctx context.Context, req *domain.GuestRequest) (*domain.GuestRequest, error) {
	query := `INSERT INTO guest_requests (user_id, email, title, purpose, appointment_date,
	           parking_start_time, parking_end_time, status, secret_token, created_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, CURRENT_TIMESTAMP)
	           RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		req.UserID, req.Email, req.Title, req.Purpose, req.AppointmentDate,
		req.StartTime, req.EndTime, req.Status, req.SecretToken,
	).Scan(&req.ID, &req.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return nil, fmt.Errorf("%w: guest request for %s on %s at %s",
				repository.ErrDuplicateEntry, req.UserID, req.AppointmentDate.Format("2006-01-02"), req.StartTime)
		}
		return nil, fmt.Errorf("GuestRequestRepository.Create: %w", err)
	}
	req.CreatedAt = req.CreatedAt.In(time.UTC)

	r.publish(changefeed.NewInsert(changefeed.TopicGuestRequests, req))
	return req, nil
}

func (r *pgGuestRequestRepository) FindByID(ctx context.Context, id int) (*domain.GuestRequest, error) {
	query := `SELECT ` + guestRequestColumns + ` FROM guest_requests WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id), "FindByID")
}

func (r *pgGuestRequestRepository) FindOpenBySlot(ctx context.Context, userID string, date time.Time, startTime string) (*domain.GuestRequest, error) {
	query := `SELECT ` + guestRequestColumns + ` FROM guest_requests
	           WHERE user_id = $1 AND appointment_date = $2 AND parking_start_time = $3 AND status = $4
	           LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, userID, date, startTime, domain.RequestOpen), "FindOpenBySlot")
}

func (r *pgGuestRequestRepository) FindBySecretToken(ctx context.Context, token string) (*domain.GuestRequest, error) {
	query := `SELECT ` + guestRequestColumns + ` FROM guest_requests WHERE secret_token = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, token), "FindBySecretToken")
}

func (r *pgGuestRequestRepository) Find(ctx context.Context, filter domain.GuestRequestFilterDTO) ([]domain.GuestRequest, error) {
	query := `SELECT ` + guestRequestColumns + ` FROM guest_requests WHERE 1=1`
	args := []any{}
	argIdx := 1
	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("GuestRequestRepository.Find: %w", err)
	}
	defer rows.Close()

	var requests []domain.GuestRequest
	for rows.Next() {
		var req domain.GuestRequest
		if err := rows.Scan(
			&req.ID, &req.UserID, &req.Email, &req.Title, &req.Purpose, &req.AppointmentDate,
			&req.StartTime, &req.EndTime, &req.Status, &req.SecretToken, &req.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("GuestRequestRepository.Find (scanning row): %w", err)
		}
		req.CreatedAt = req.CreatedAt.In(time.UTC)
		requests = append(requests, req)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("GuestRequestRepository.Find (rows error): %w", err)
	}
	return requests, nil
}

func (r *pgGuestRequestRepository) UpdateStatus(ctx context.Context, id int, from, to domain.RequestStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE guest_requests SET status = $1 WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return fmt.Errorf("GuestRequestRepository.UpdateStatus: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	updated, err := r.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("GuestRequestRepository.UpdateStatus (reload): %w", err)
	}
	r.publish(changefeed.NewUpdate(changefeed.TopicGuestRequests, nil, updated))
	return nil
}

func (r *pgGuestRequestRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM guest_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("GuestRequestRepository.Delete: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	r.publish(changefeed.NewDelete(changefeed.TopicGuestRequests, domain.GuestRequest{ID: id}))
	return nil
}

func (r *pgGuestRequestRepository) scanOne(row *sql.Row, op string) (*domain.GuestRequest, error) {
	req := &domain.GuestRequest{}
	err := row.Scan(
		&req.ID, &req.UserID, &req.Email, &req.Title, &req.Purpose, &req.AppointmentDate,
		&req.StartTime, &req.EndTime, &req.Status, &req.SecretToken, &req.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("GuestRequestRepository.%s: %w", op, err)
	}
	req.CreatedAt = req.CreatedAt.In(time.UTC)
	return req, nil
}

func (r *pgGuestRequestRepository) publish(ev changefeed.Event, err error) {
	if err != nil {
		log.Printf("GuestRequestRepository: building change event: %v", err)
		return
	}
	r.feed.Publish(ev)
}
