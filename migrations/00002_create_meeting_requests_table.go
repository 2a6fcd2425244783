package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateMeetingRequestsTable, downCreateMeetingRequestsTable)
}

func upCreateMeetingRequestsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
		CREATE TABLE meeting_requests (
			request_id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_a_id UUID REFERENCES users(id) ON DELETE SET NULL,
			user_b_contact_type TEXT NOT NULL,
			user_b_contact_encrypted TEXT NOT NULL,
			location_type TEXT NOT NULL,
			address_a_lat DOUBLE PRECISION NOT NULL,
			address_a_lon DOUBLE PRECISION NOT NULL,
			address_b_lat DOUBLE PRECISION,
			address_b_lon DOUBLE PRECISION,
			status TEXT NOT NULL DEFAULT 'pending_b_address',
			token_b TEXT NOT NULL UNIQUE,
			selected_place_google_id TEXT,
			selected_place_details JSONB,
			suggested_options JSONB,
			session_identifier_a TEXT,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			expires_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now() + interval '1 day'
		);

		CREATE INDEX ix_meeting_requests_status ON meeting_requests (status);
		CREATE INDEX ix_meeting_requests_user_a_id ON meeting_requests (user_a_id);
		CREATE INDEX ix_meeting_requests_session_identifier_a ON meeting_requests (session_identifier_a);
	`

	_, err := tx.ExecContext(ctx, query)

	if err != nil {
		return err
	}

	return nil
}

func downCreateMeetingRequestsTable(ctx context.Context, tx *sql.Tx) error {
	query := `DROP TABLE IF EXISTS meeting_requests;`
	_, err := tx.ExecContext(ctx, query)

	if err != nil {
		return err
	}

	return nil
}
