package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	maxRetries    = 3
	retryDelaySec = 2
	dlqSubject    = "meeting.request.calculation_failed"
)

// CalculationService is the slice of the meeting service the subscriber
// needs: advancing a responded request through the stubbed calculation.
type CalculationService interface {
	CompleteCalculation(ctx context.Context, requestID uuid.UUID) error
}

type CalculationSubscriber struct {
	natsConn *nats.Conn
	svc      CalculationService
}

// NewCalculationSubscriber listens for responded requests and runs the
// placeholder suggestion calculation, moving them to completed.
func NewCalculationSubscriber(natsURL string, svc CalculationService) (*CalculationSubscriber, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, err
	}

	subscriber := &CalculationSubscriber{
		natsConn: nc,
		svc:      svc,
	}

	subscriber.subscribe()

	return subscriber, nil
}

func (s *CalculationSubscriber) subscribe() {
	_, err := s.natsConn.Subscribe(SubjectRequestResponded, func(msg *nats.Msg) {
		var event RequestRespondedEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			slog.Error("Failed to unmarshal responded event", "error", err)
			return
		}

		slog.Info("Responded event received, running calculation", "request_id", event.RequestID)

		var calcErr error
		for attempt := 1; attempt <= maxRetries; attempt++ {
			calcErr = s.svc.CompleteCalculation(context.Background(), event.RequestID)
			if calcErr == nil {
				return
			}

			slog.Warn("Calculation attempt failed, retrying",
				"request_id", event.RequestID, "attempt", attempt, "error", calcErr)
			time.Sleep(time.Second * retryDelaySec)
		}

		slog.Error("Calculation failed after all retries, publishing to DLQ",
			"request_id", event.RequestID, "error", calcErr)

		if err := s.natsConn.Publish(dlqSubject, msg.Data); err != nil {
			slog.Error("Failed to publish to DLQ", "subject", dlqSubject, "error", err)
		}
	})

	if err != nil {
		slog.Error("Failed to subscribe to responded events", "error", err)
	} else {
		slog.Info("Calculation subscriber listening", "subject", SubjectRequestResponded)
	}
}
