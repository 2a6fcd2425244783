package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"meetspot-api/internal/crypto"
	"meetspot-api/internal/events"
	"meetspot-api/internal/model"
	"meetspot-api/internal/notify"
	"meetspot-api/internal/repository"
)

const sweepInterval = time.Minute * 10

// Worker turns meeting events into notifications for User B. The contact is
// loaded and decrypted here, never carried on the bus.
type Worker struct {
	natsConn    *nats.Conn
	repo        repository.MeetingRequestRepository
	notifier    notify.Notifier
	key         *fernet.Key
	frontendURL string
}

func New(natsConn *nats.Conn, repo repository.MeetingRequestRepository, notifier notify.Notifier, key *fernet.Key, frontendURL string) *Worker {
	return &Worker{
		natsConn:    natsConn,
		repo:        repo,
		notifier:    notifier,
		key:         key,
		frontendURL: frontendURL,
	}
}

func (w *Worker) Start() error {
	if _, err := w.natsConn.Subscribe(events.SubjectRequestCreated, w.handleRequestCreated); err != nil {
		return err
	}

	if _, err := w.natsConn.Subscribe(events.SubjectSpotSelected, w.handleSpotSelected); err != nil {
		return err
	}

	slog.Info("Notification worker subscribed",
		"subjects", []string{events.SubjectRequestCreated, events.SubjectSpotSelected})

	return nil
}

// RunExpirySweep marks stale requests expired until ctx is cancelled.
func (w *Worker) RunExpirySweep(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := w.repo.ExpireStale(ctx)
			if err != nil {
				slog.Error("Expiry sweep failed", "error", err)
				continue
			}
			if expired > 0 {
				slog.Info("Expired stale meeting requests", "count", expired)
			}
		}
	}
}

func (w *Worker) handleRequestCreated(msg *nats.Msg) {
	var event events.RequestCreatedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		slog.Error("Failed to unmarshal created event", "error", err)
		return
	}

	ctx := context.Background()

	req, contact, err := w.loadContact(ctx, event.RequestID)
	if err != nil {
		slog.Error("Could not resolve contact for created event", "request_id", event.RequestID, "error", err)
		return
	}

	responseURL := fmt.Sprintf("%s/request/%s?token=%s", w.frontendURL, req.ID, req.TokenB)

	switch req.ContactType {
	case model.ContactTypeEmail:
		subject := "You've been invited to find a meeting spot!"
		body := fmt.Sprintf(
			"Hello!\n\nSomeone has invited you to find a convenient meeting spot.\n\n"+
				"To respond with your location, please use the following link:\n%s\n\n"+
				"This link will expire in 24 hours.\n\nBest regards,\nFind a Meeting Spot Team",
			responseURL,
		)
		if err := w.notifier.SendEmail(ctx, contact, subject, body); err != nil {
			slog.Error("Failed to send invitation email", "request_id", req.ID, "error", err)
		}
	case model.ContactTypePhone, model.ContactTypeSMS:
		message := fmt.Sprintf("You've been invited to find a meeting spot. Respond here: %s", responseURL)
		if err := w.notifier.SendSMS(ctx, contact, message); err != nil {
			slog.Error("Failed to send invitation SMS", "request_id", req.ID, "error", err)
		}
	}
}

func (w *Worker) handleSpotSelected(msg *nats.Msg) {
	var event events.SpotSelectedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		slog.Error("Failed to unmarshal spot selected event", "error", err)
		return
	}

	ctx := context.Background()

	req, contact, err := w.loadContact(ctx, event.RequestID)
	if err != nil {
		slog.Error("Could not resolve contact for spot selected event", "request_id", event.RequestID, "error", err)
		return
	}

	var place struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	}
	if len(req.SelectedPlaceDetails) > 0 {
		if err := json.Unmarshal(req.SelectedPlaceDetails, &place); err != nil {
			slog.Warn("Selected place details unreadable", "request_id", req.ID, "error", err)
		}
	}

	message := fmt.Sprintf("A meeting spot has been chosen: %s, %s", place.Name, place.Address)

	switch req.ContactType {
	case model.ContactTypeEmail:
		if err := w.notifier.SendEmail(ctx, contact, "Your meeting spot is set!", message); err != nil {
			slog.Error("Failed to send selection email", "request_id", req.ID, "error", err)
		}
	case model.ContactTypePhone, model.ContactTypeSMS:
		if err := w.notifier.SendSMS(ctx, contact, message); err != nil {
			slog.Error("Failed to send selection SMS", "request_id", req.ID, "error", err)
		}
	}
}

func (w *Worker) loadContact(ctx context.Context, requestID uuid.UUID) (*model.MeetingRequest, string, error) {
	req, err := w.repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, "", err
	}
	if req == nil {
		return nil, "", fmt.Errorf("meeting request %s not found", requestID)
	}

	contact, err := crypto.Decrypt(req.ContactEncrypted, w.key)
	if err != nil {
		return nil, "", err
	}

	return req, contact, nil
}
