package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naigggs/hau2park.web-sub001/internal/domain"
	"github.com/naigggs/hau2park.web-sub001/internal/repository"
)

// memGuestRequestRepo is a stateful in-memory stand-in for the postgres
// repository, enough to drive the lifecycle end to end.
type memGuestRequestRepo struct {
	nextID   int
	requests map[int]domain.GuestRequest
}

func newMemGuestRequestRepo() *memGuestRequestRepo {
	return &memGuestRequestRepo{nextID: 1, requests: make(map[int]domain.GuestRequest)}
}

func (r *memGuestRequestRepo) Create(_ context.Context, req *domain.GuestRequest) (*domain.GuestRequest, error) {
	req.ID = r.nextID
	req.CreatedAt = time.Now().UTC()
	r.nextID++
	r.requests[req.ID] = *req
	return req, nil
}

func (r *memGuestRequestRepo) FindByID(_ context.Context, id int) (*domain.GuestRequest, error) {
	req, ok := r.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &req, nil
}

func (r *memGuestRequestRepo) FindOpenBySlot(_ context.Context, userID string, date time.Time, startTime string) (*domain.GuestRequest, error) {
	for _, req := range r.requests {
		if req.UserID == userID && req.AppointmentDate.Equal(date) && req.StartTime == startTime && req.Status == domain.RequestOpen {
			return &req, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memGuestRequestRepo) FindBySecretToken(_ context.Context, token string) (*domain.GuestRequest, error) {
	for _, req := range r.requests {
		if req.SecretToken == token {
			return &req, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memGuestRequestRepo) Find(_ context.Context, filter domain.GuestRequestFilterDTO) ([]domain.GuestRequest, error) {
	var out []domain.GuestRequest
	for _, req := range r.requests {
		if filter.UserID != "" && req.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && string(req.Status) != filter.Status {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

func (r *memGuestRequestRepo) UpdateStatus(_ context.Context, id int, from, to domain.RequestStatus) error {
	req, ok := r.requests[id]
	if !ok || req.Status != from {
		return repository.ErrNotFound
	}
	req.Status = to
	r.requests[id] = req
	return nil
}

func (r *memGuestRequestRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.requests[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.requests, id)
	return nil
}

func validDTO() domain.SubmitGuestRequestDTO {
	return domain.SubmitGuestRequestDTO{
		Email:           "guest@example.com",
		Title:           "Campus visit",
		Purpose:         "Thesis defense panel",
		AppointmentDate: "2024-05-01",
		StartTime:       "09:00",
		EndTime:         "11:00",
	}
}

func newTestGuestService(repo repository.GuestRequestRepository) *GuestService {
	return NewGuestService(repo, GenerateSecretToken, 16)
}

func TestSubmitRequestValidatesFields(t *testing.T) {
	svc := newTestGuestService(newMemGuestRequestRepo())

	dto := validDTO()
	dto.Purpose = ""
	_, err := svc.SubmitRequest(context.Background(), "user-1", dto)

	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "purpose", vErr.Field)
}

func TestSubmitRequestRejectsBadDate(t *testing.T) {
	svc := newTestGuestService(newMemGuestRequestRepo())

	dto := validDTO()
	dto.AppointmentDate = "05/01/2024"
	_, err := svc.SubmitRequest(context.Background(), "user-1", dto)

	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "appointment_date", vErr.Field)
}

func TestSubmitRequestAssignsTokenOnce(t *testing.T) {
	repo := newMemGuestRequestRepo()
	svc := newTestGuestService(repo)

	req, err := svc.SubmitRequest(context.Background(), "user-1", validDTO())
	require.NoError(t, err)
	assert.Equal(t, domain.RequestOpen, req.Status)
	assert.Len(t, req.SecretToken, 16)

	// The token survives the approval untouched.
	approved, err := svc.Approve(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.SecretToken, approved.SecretToken)

	stored, err := repo.FindByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.SecretToken, stored.SecretToken)
}

func TestDuplicateOpenSubmissionConflicts(t *testing.T) {
	repo := newMemGuestRequestRepo()
	svc := newTestGuestService(repo)

	_, err := svc.SubmitRequest(context.Background(), "user-1", validDTO())
	require.NoError(t, err)

	_, err = svc.SubmitRequest(context.Background(), "user-1", validDTO())
	var cErr *domain.ConflictError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, 1, cErr.ExistingID)
	assert.Len(t, repo.requests, 1, "exactly one record persists")

	// A different start time is a different slot, not a conflict.
	dto := validDTO()
	dto.StartTime = "14:00"
	_, err = svc.SubmitRequest(context.Background(), "user-1", dto)
	assert.NoError(t, err)

	// So is the same slot for another requester.
	_, err = svc.SubmitRequest(context.Background(), "user-2", validDTO())
	assert.NoError(t, err)
}

func TestResubmitAllowedAfterDecline(t *testing.T) {
	svc := newTestGuestService(newMemGuestRequestRepo())

	first, err := svc.SubmitRequest(context.Background(), "user-1", validDTO())
	require.NoError(t, err)
	_, err = svc.Decline(context.Background(), first.ID)
	require.NoError(t, err)

	// Only Open requests participate in duplicate detection.
	_, err = svc.SubmitRequest(context.Background(), "user-1", validDTO())
	assert.NoError(t, err)
}

func TestTerminalStatusIsImmutable(t *testing.T) {
	repo := newMemGuestRequestRepo()
	svc := newTestGuestService(repo)

	req, err := svc.SubmitRequest(context.Background(), "user-1", validDTO())
	require.NoError(t, err)

	_, err = svc.Decline(context.Background(), req.ID)
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), req.ID)
	var tErr *domain.IllegalTransitionError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, domain.RequestDeclined, tErr.From)

	stored, err := repo.FindByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestDeclined, stored.Status, "stored state unchanged after the rejected transition")
}

// interposingGuestRepo runs a hook after a successful read, standing in
// for a concurrent decision that commits between a service's read and its
// write.
type interposingGuestRepo struct {
	*memGuestRequestRepo
	afterRead func()
}

func (r *interposingGuestRepo) FindByID(ctx context.Context, id int) (*domain.GuestRequest, error) {
	req, err := r.memGuestRequestRepo.FindByID(ctx, id)
	if err == nil && r.afterRead != nil {
		r.afterRead()
	}
	return req, err
}

func TestConcurrentDecisionsCannotOverwriteTerminalStatus(t *testing.T) {
	mem := newMemGuestRequestRepo()
	req, err := newTestGuestService(mem).SubmitRequest(context.Background(), "user-1", validDTO())
	require.NoError(t, err)

	// Both admins read the request as Open; the decline commits first.
	repo := &interposingGuestRepo{memGuestRequestRepo: mem}
	fired := false
	repo.afterRead = func() {
		if fired {
			return
		}
		fired = true
		require.NoError(t, mem.UpdateStatus(context.Background(), req.ID, domain.RequestOpen, domain.RequestDeclined))
	}

	_, err = newTestGuestService(repo).Approve(context.Background(), req.ID)
	var tErr *domain.IllegalTransitionError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, domain.RequestDeclined, tErr.From)

	stored, err := mem.FindByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestDeclined, stored.Status, "the losing approve must not overwrite the decline")
}

func TestLifecycleEndToEnd(t *testing.T) {
	repo := newMemGuestRequestRepo()
	svc := newTestGuestService(repo)

	req, err := svc.SubmitRequest(context.Background(), "user-u", validDTO())
	require.NoError(t, err)
	require.Equal(t, domain.RequestOpen, req.Status)
	token := req.SecretToken
	require.NotEmpty(t, token)

	approved, err := svc.Approve(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestApproved, approved.Status)
	assert.Equal(t, token, approved.SecretToken)

	_, err = svc.Decline(context.Background(), req.ID)
	var tErr *domain.IllegalTransitionError
	require.ErrorAs(t, err, &tErr)

	stored, err := repo.FindByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestApproved, stored.Status)
	assert.Equal(t, token, stored.SecretToken)
}

func TestVerifyToken(t *testing.T) {
	repo := newMemGuestRequestRepo()
	svc := newTestGuestService(repo)

	req, err := svc.SubmitRequest(context.Background(), "user-1", validDTO())
	require.NoError(t, err)

	found, err := svc.VerifyToken(context.Background(), req.SecretToken)
	require.NoError(t, err)
	assert.Equal(t, req.ID, found.ID)

	_, err = svc.VerifyToken(context.Background(), "nonexistent-token")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = svc.VerifyToken(context.Background(), "")
	var vErr *domain.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestGenerateSecretTokenProperties(t *testing.T) {
	const n = 3000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		token := GenerateSecretToken(16)
		require.Len(t, token, 16)
		for _, r := range token {
			assert.Contains(t, tokenAlphabet, string(r))
		}
		_, dup := seen[token]
		require.False(t, dup, "token collision after %d draws", i)
		seen[token] = struct{}{}
	}
}
