package events

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"meetspot-api/internal/model"
)

const (
	SubjectRequestCreated   = "meeting.request.created"
	SubjectRequestResponded = "meeting.request.responded"
	SubjectSpotSelected     = "meeting.request.spot_selected"
)

type EventPublisher interface {
	PublishRequestCreated(req *model.MeetingRequest) error
	PublishRequestResponded(req *model.MeetingRequest) error
	PublishSpotSelected(req *model.MeetingRequest) error
}

type NatsPublisher struct {
	conn *nats.Conn
}

func NewNatsPublisher(natsURL string) (EventPublisher, error) {
	nc, err := nats.Connect(natsURL)

	if err != nil {
		return nil, err
	}

	return &NatsPublisher{conn: nc}, nil
}

// Payloads carry identifiers and the contact type only. The decrypted
// contact never leaves the database layer.
type RequestCreatedEvent struct {
	EventType   string            `json:"event_type"`
	RequestID   uuid.UUID         `json:"request_id"`
	ContactType model.ContactType `json:"contact_type"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

type RequestRespondedEvent struct {
	EventType   string    `json:"event_type"`
	RequestID   uuid.UUID `json:"request_id"`
	RespondedAt time.Time `json:"responded_at"`
}

type SpotSelectedEvent struct {
	EventType     string    `json:"event_type"`
	RequestID     uuid.UUID `json:"request_id"`
	GooglePlaceID string    `json:"google_place_id"`
}

func (p *NatsPublisher) PublishRequestCreated(req *model.MeetingRequest) error {
	event := RequestCreatedEvent{
		EventType:   SubjectRequestCreated,
		RequestID:   req.ID,
		ContactType: req.ContactType,
		ExpiresAt:   req.ExpiresAt,
	}

	return p.publish(SubjectRequestCreated, event)
}

func (p *NatsPublisher) PublishRequestResponded(req *model.MeetingRequest) error {
	event := RequestRespondedEvent{
		EventType:   SubjectRequestResponded,
		RequestID:   req.ID,
		RespondedAt: time.Now(),
	}

	return p.publish(SubjectRequestResponded, event)
}

func (p *NatsPublisher) PublishSpotSelected(req *model.MeetingRequest) error {
	placeID := ""
	if req.SelectedPlaceGoogleID != nil {
		placeID = *req.SelectedPlaceGoogleID
	}

	event := SpotSelectedEvent{
		EventType:     SubjectSpotSelected,
		RequestID:     req.ID,
		GooglePlaceID: placeID,
	}

	return p.publish(SubjectSpotSelected, event)
}

func (p *NatsPublisher) publish(subject string, event any) error {
	eventJSON, err := json.Marshal(event)

	if err != nil {
		slog.Error("Error marshalling event JSON", "subject", subject, "error", err)
		return err
	}

	if err := p.conn.Publish(subject, eventJSON); err != nil {
		slog.Error("Error publishing to NATS", "subject", subject, "error", err)
		return err
	}

	slog.Info("Published event to NATS", "subject", subject)

	return nil
}
