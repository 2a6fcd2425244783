package events_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"meetspot-api/internal/events"
	"meetspot-api/internal/model"
)

func TestRequestCreatedEvent_Marshal(t *testing.T) {
	ev := events.RequestCreatedEvent{
		EventType:   events.SubjectRequestCreated,
		RequestID:   uuid.New(),
		ContactType: model.ContactTypeEmail,
		ExpiresAt:   time.Now().Add(24 * time.Hour),
	}

	b, err := json.Marshal(ev)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Equal(t, "meeting.request.created", decoded["event_type"])
	require.Equal(t, "email", decoded["contact_type"])

	// The payload must never carry the contact itself.
	require.NotContains(t, decoded, "user_b_contact_encrypted")
	require.NotContains(t, decoded, "contact")
}

func TestRequestRespondedEvent_Marshal(t *testing.T) {
	ev := events.RequestRespondedEvent{
		EventType:   events.SubjectRequestResponded,
		RequestID:   uuid.New(),
		RespondedAt: time.Now(),
	}

	b, err := json.Marshal(ev)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Equal(t, "meeting.request.responded", decoded["event_type"])
}

func TestSpotSelectedEvent_Marshal(t *testing.T) {
	id := uuid.New()
	ev := events.SpotSelectedEvent{
		EventType:     events.SubjectSpotSelected,
		RequestID:     id,
		GooglePlaceID: "ChIJd8BlQ2BZwokRAFUEcm_qrcA",
	}

	b, err := json.Marshal(ev)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Equal(t, "meeting.request.spot_selected", decoded["event_type"])
	require.Equal(t, id.String(), decoded["request_id"])
}
