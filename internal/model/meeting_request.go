package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

type Status string

const (
	StatusPendingBAddress Status = "pending_b_address"
	StatusCalculating     Status = "calculating"
	StatusCompleted       Status = "completed"
	StatusExpired         Status = "expired"
	StatusFailed          Status = "failed"
)

var validTransitions = map[Status][]Status{
	StatusPendingBAddress: {StatusCalculating, StatusExpired, StatusFailed},
	StatusCalculating:     {StatusCompleted, StatusExpired, StatusFailed},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPendingBAddress, StatusCalculating, StatusCompleted, StatusExpired, StatusFailed:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusExpired || s == StatusFailed
}

// CanTransitionTo enforces the one-directional lifecycle. Terminal states
// accept no further transitions.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

type ContactType string

const (
	ContactTypeEmail ContactType = "email"
	ContactTypePhone ContactType = "phone"
	ContactTypeSMS   ContactType = "sms"
)

func (c ContactType) Valid() bool {
	switch c {
	case ContactTypeEmail, ContactTypePhone, ContactTypeSMS:
		return true
	}
	return false
}

type MeetingRequest struct {
	ID                    uuid.UUID      `db:"request_id" json:"request_id"`
	UserAID               *uuid.UUID     `db:"user_a_id" json:"user_a_id,omitempty"`
	ContactType           ContactType    `db:"user_b_contact_type" json:"user_b_contact_type"`
	ContactEncrypted      string         `db:"user_b_contact_encrypted" json:"-"`
	LocationType          string         `db:"location_type" json:"location_type"`
	AddressALat           float64        `db:"address_a_lat" json:"address_a_lat"`
	AddressALon           float64        `db:"address_a_lon" json:"address_a_lon"`
	AddressBLat           *float64       `db:"address_b_lat" json:"address_b_lat,omitempty"`
	AddressBLon           *float64       `db:"address_b_lon" json:"address_b_lon,omitempty"`
	Status                Status         `db:"status" json:"status"`
	TokenB                string         `db:"token_b" json:"-"`
	SelectedPlaceGoogleID *string        `db:"selected_place_google_id" json:"selected_place_google_id,omitempty"`
	SelectedPlaceDetails  types.JSONText `db:"selected_place_details" json:"selected_place_details,omitempty"`
	SuggestedOptions      types.JSONText `db:"suggested_options" json:"suggested_options,omitempty"`
	SessionIdentifierA    *string        `db:"session_identifier_a" json:"-"`
	CreatedAt             time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at" json:"updated_at"`
	ExpiresAt             time.Time      `db:"expires_at" json:"expires_at"`
}

func (m *MeetingRequest) Expired(now time.Time) bool {
	return now.After(m.ExpiresAt)
}

func (m *MeetingRequest) OwnedBy(userID uuid.UUID) bool {
	return m.UserAID != nil && *m.UserAID == userID
}
