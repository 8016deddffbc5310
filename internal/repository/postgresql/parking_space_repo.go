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

type pgParkingSpaceRepository struct {
	db   *sql.DB
	feed changefeed.Publisher
}

// NewPgParkingSpaceRepository builds the parking-space store. Every
// successful write publishes a change event on the feed; mirrors learn of
// mutations only through that path.
func NewPgParkingSpaceRepository(db *sql.DB, feed changefeed.Publisher) repository.ParkingSpaceRepository {
	return &pgParkingSpaceRepository{db: db, feed: feed}
}

func (r *pgParkingSpaceRepository) Create(ctx context.Context, space *domain.ParkingSpace) (*domain.ParkingSpace, error) {
	query := `INSERT INTO parking_spaces (name, status, "user", location, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		space.Name, space.Status, space.User, space.Location,
	).Scan(&space.ID, &space.CreatedAt, &space.UpdatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return nil, fmt.Errorf("%w: parking space '%s'", repository.ErrDuplicateEntry, space.Name)
		}
		return nil, fmt.Errorf("ParkingSpaceRepository.Create: %w", err)
	}
	space.CreatedAt = space.CreatedAt.In(time.UTC)
	space.UpdatedAt = space.UpdatedAt.In(time.UTC)

	r.publish(changefeed.NewInsert(changefeed.TopicParkingSpaces, space))
	return space, nil
}

func (r *pgParkingSpaceRepository) FindByID(ctx context.Context, id int) (*domain.ParkingSpace, error) {
	space := &domain.ParkingSpace{}
	query := `SELECT id, name, status, "user", location, created_at, updated_at
	           FROM parking_spaces WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&space.ID, &space.Name, &space.Status, &space.User, &space.Location,
		&space.CreatedAt, &space.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ParkingSpaceRepository.FindByID: %w", err)
	}
	space.CreatedAt = space.CreatedAt.In(time.UTC)
	space.UpdatedAt = space.UpdatedAt.In(time.UTC)
	return space, nil
}

func (r *pgParkingSpaceRepository) FindAll(ctx context.Context) ([]domain.ParkingSpace, error) {
	query := `SELECT id, name, status, "user", location, created_at, updated_at
	           FROM parking_spaces ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ParkingSpaceRepository.FindAll: %w", err)
	}
	defer rows.Close()

	var spaces []domain.ParkingSpace
	for rows.Next() {
		var space domain.ParkingSpace
		if err := rows.Scan(
			&space.ID, &space.Name, &space.Status, &space.User, &space.Location,
			&space.CreatedAt, &space.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ParkingSpaceRepository.FindAll (scanning row): %w", err)
		}
		space.CreatedAt = space.CreatedAt.In(time.UTC)
		space.UpdatedAt = space.UpdatedAt.In(time.UTC)
		spaces = append(spaces, space)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ParkingSpaceRepository.FindAll (rows error): %w", err)
	}
	return spaces, nil
}

func (r *pgParkingSpaceRepository) UpdateStatus(ctx context.Context, id int, status domain.SpaceStatus, user string) error {
	query := `UPDATE parking_spaces SET status = $1, "user" = $2, updated_at = CURRENT_TIMESTAMP
	           WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, status, sql.NullString{String: user, Valid: user != ""}, id)
	if err != nil {
		return fmt.Errorf("ParkingSpaceRepository.UpdateStatus: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	updated, err := r.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("ParkingSpaceRepository.UpdateStatus (reload): %w", err)
	}
	r.publish(changefeed.NewUpdate(changefeed.TopicParkingSpaces, nil, updated))
	return nil
}

func (r *pgParkingSpaceRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM parking_spaces WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ParkingSpaceRepository.Delete: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	r.publish(changefeed.NewDelete(changefeed.TopicParkingSpaces, domain.ParkingSpace{ID: id}))
	return nil
}

func (r *pgParkingSpaceRepository) publish(ev changefeed.Event, err error) {
	if err != nil {
		log.Printf("ParkingSpaceRepository: building change event: %v", err)
		return
	}
	r.feed.Publish(ev)
}
