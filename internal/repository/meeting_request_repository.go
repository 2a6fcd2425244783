package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"meetspot-api/internal/model"
)

type MeetingRequestRepository interface {
	Create(ctx context.Context, req *model.MeetingRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.MeetingRequest, error)
	ListByUserA(ctx context.Context, userID uuid.UUID) ([]model.MeetingRequest, error)
	Update(ctx context.Context, req *model.MeetingRequest) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.Status) error
	Delete(ctx context.Context, id uuid.UUID) error
	ExpireStale(ctx context.Context) (int64, error)
}

type postgresMeetingRequestRepository struct {
	db *sqlx.DB
}

func NewPostgresMeetingRequestRepository(db *sqlx.DB) MeetingRequestRepository {
	return &postgresMeetingRequestRepository{db: db}
}

func (r *postgresMeetingRequestRepository) Create(ctx context.Context, req *model.MeetingRequest) error {
	query := `
		INSERT INTO meeting_requests (
			user_a_id, user_b_contact_type, user_b_contact_encrypted, location_type,
			address_a_lat, address_a_lon, status, token_b, session_identifier_a, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING request_id, created_at, updated_at
	`

	row := r.db.QueryRowxContext(ctx, query,
		req.UserAID, req.ContactType, req.ContactEncrypted, req.LocationType,
		req.AddressALat, req.AddressALon, req.Status, req.TokenB,
		req.SessionIdentifierA, req.ExpiresAt,
	)

	return row.Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
}

func (r *postgresMeetingRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.MeetingRequest, error) {
	var req model.MeetingRequest
	query := `SELECT * FROM meeting_requests WHERE request_id = $1`
	err := r.db.GetContext(ctx, &req, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return &req, nil
}

func (r *postgresMeetingRequestRepository) ListByUserA(ctx context.Context, userID uuid.UUID) ([]model.MeetingRequest, error) {
	var reqs []model.MeetingRequest
	query := `SELECT * FROM meeting_requests WHERE user_a_id = $1 ORDER BY created_at DESC`
	err := r.db.SelectContext(ctx, &reqs, query, userID)

	if err != nil {
		return nil, err
	}

	if reqs == nil {
		reqs = []model.MeetingRequest{}
	}

	return reqs, nil
}

func (r *postgresMeetingRequestRepository) Update(ctx context.Context, req *model.MeetingRequest) error {
	query := `
		UPDATE meeting_requests SET
			address_b_lat = $2,
			address_b_lon = $3,
			status = $4,
			selected_place_google_id = $5,
			selected_place_details = $6,
			suggested_options = $7,
			updated_at = now()
		WHERE request_id = $1
		RETURNING updated_at
	`

	row := r.db.QueryRowxContext(ctx, query,
		req.ID, req.AddressBLat, req.AddressBLon, req.Status,
		req.SelectedPlaceGoogleID, req.SelectedPlaceDetails, req.SuggestedOptions,
	)

	return row.Scan(&req.UpdatedAt)
}

func (r *postgresMeetingRequestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.Status) error {
	query := `UPDATE meeting_requests SET status = $2, updated_at = now() WHERE request_id = $1`
	_, err := r.db.ExecContext(ctx, query, id, status)
	return err
}

func (r *postgresMeetingRequestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM meeting_requests WHERE request_id = $1`
	res, err := r.db.ExecContext(ctx, query, id)

	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// ExpireStale marks requests past their deadline while still in a live state.
func (r *postgresMeetingRequestRepository) ExpireStale(ctx context.Context) (int64, error) {
	query := `
		UPDATE meeting_requests
		SET status = $1, updated_at = now()
		WHERE expires_at < now() AND status IN ($2, $3)
	`

	res, err := r.db.ExecContext(ctx, query, model.StatusExpired, model.StatusPendingBAddress, model.StatusCalculating)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
