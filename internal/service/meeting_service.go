package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"regexp"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/google/uuid"

	"meetspot-api/internal/crypto"
	"meetspot-api/internal/events"
	"meetspot-api/internal/model"
	"meetspot-api/internal/places"
	"meetspot-api/internal/repository"
)

var (
	ErrRequestNotFound   = errors.New("meeting request not found")
	ErrNotRequestOwner   = errors.New("meeting request belongs to another user")
	ErrInvalidToken      = errors.New("invalid response token")
	ErrRequestExpired    = errors.New("meeting request has expired")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrNotCompleted      = errors.New("meeting request has no results yet")
	ErrInvalidContact    = errors.New("contact does not match contact type")
)

// Geocoding is not implemented. Both parties get fixed downtown coordinates.
// TODO: geocode the submitted addresses via the maps client instead.
const (
	dummyLatA = 37.7749
	dummyLonA = -122.4194
	dummyLatB = 37.7833
	dummyLonB = -122.4167
)

const requestTTL = time.Hour * 24

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?1?\d{9,15}$`)
)

type CreateRequestInput struct {
	AddressA     string
	LocationType string
	ContactType  model.ContactType
	Contact      string
}

type UpdateRequestInput struct {
	AddressBLat     *float64
	AddressBLon     *float64
	Status          *model.Status
	MeetingLocation *string
}

type StatusInfo struct {
	RequestID uuid.UUID    `json:"request_id"`
	Status    model.Status `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type Results struct {
	RequestID        uuid.UUID       `json:"request_id"`
	Status           model.Status    `json:"status"`
	SuggestedOptions json.RawMessage `json:"suggested_options,omitempty"`
	SelectedPlace    json.RawMessage `json:"selected_place,omitempty"`
}

type MeetingService interface {
	CreateRequest(ctx context.Context, userID uuid.UUID, in CreateRequestInput) (*model.MeetingRequest, error)
	GetRequest(ctx context.Context, userID, requestID uuid.UUID) (*model.MeetingRequest, error)
	ListRequests(ctx context.Context, userID uuid.UUID) ([]model.MeetingRequest, error)
	UpdateRequest(ctx context.Context, userID, requestID uuid.UUID, in UpdateRequestInput) (*model.MeetingRequest, error)
	DeleteRequest(ctx context.Context, userID, requestID uuid.UUID) error
	GetStatus(ctx context.Context, userID, requestID uuid.UUID) (*StatusInfo, error)
	GetResults(ctx context.Context, userID, requestID uuid.UUID) (*Results, error)
	GetContact(ctx context.Context, userID, requestID uuid.UUID) (contactType model.ContactType, contact string, err error)
	Respond(ctx context.Context, requestID uuid.UUID, token, addressB string) (*model.MeetingRequest, error)
	SelectSpot(ctx context.Context, userID, requestID uuid.UUID, googlePlaceID string) (*model.MeetingRequest, error)
	CompleteCalculation(ctx context.Context, requestID uuid.UUID) error
}

type meetingService struct {
	repo      repository.MeetingRequestRepository
	publisher events.EventPublisher
	places    places.Client
	key       *fernet.Key
}

func NewMeetingService(
	repo repository.MeetingRequestRepository,
	publisher events.EventPublisher,
	placesClient places.Client,
	key *fernet.Key,
) MeetingService {
	return &meetingService{
		repo:      repo,
		publisher: publisher,
		places:    placesClient,
		key:       key,
	}
}

func (s *meetingService) CreateRequest(ctx context.Context, userID uuid.UUID, in CreateRequestInput) (*model.MeetingRequest, error) {
	if !validContact(in.ContactType, in.Contact) {
		return nil, ErrInvalidContact
	}

	encrypted, err := crypto.Encrypt(in.Contact, s.key)
	if err != nil {
		return nil, err
	}

	token, err := newResponseToken()
	if err != nil {
		return nil, err
	}

	req := &model.MeetingRequest{
		UserAID:          &userID,
		ContactType:      in.ContactType,
		ContactEncrypted: encrypted,
		LocationType:     in.LocationType,
		AddressALat:      dummyLatA,
		AddressALon:      dummyLonA,
		Status:           model.StatusPendingBAddress,
		TokenB:           token,
		ExpiresAt:        time.Now().Add(requestTTL),
	}

	if err := s.repo.Create(ctx, req); err != nil {
		return nil, err
	}

	go s.publisher.PublishRequestCreated(req)

	return req, nil
}

func (s *meetingService) GetRequest(ctx context.Context, userID, requestID uuid.UUID) (*model.MeetingRequest, error) {
	return s.ownedRequest(ctx, userID, requestID)
}

func (s *meetingService) ListRequests(ctx context.Context, userID uuid.UUID) ([]model.MeetingRequest, error) {
	return s.repo.ListByUserA(ctx, userID)
}

func (s *meetingService) UpdateRequest(ctx context.Context, userID, requestID uuid.UUID, in UpdateRequestInput) (*model.MeetingRequest, error) {
	req, err := s.ownedRequest(ctx, userID, requestID)
	if err != nil {
		return nil, err
	}

	if err := s.rejectExpired(ctx, req); err != nil {
		return nil, err
	}

	switch {
	case in.AddressBLat != nil && in.AddressBLon != nil:
		if !req.Status.CanTransitionTo(model.StatusCalculating) {
			return nil, ErrInvalidTransition
		}
		req.AddressBLat = in.AddressBLat
		req.AddressBLon = in.AddressBLon
		req.Status = model.StatusCalculating
	case in.Status != nil:
		if !in.Status.Valid() || !req.Status.CanTransitionTo(*in.Status) {
			return nil, ErrInvalidTransition
		}
		req.Status = *in.Status
	}

	if in.MeetingLocation != nil {
		details, err := json.Marshal(map[string]string{"description": *in.MeetingLocation})
		if err != nil {
			return nil, err
		}
		req.SelectedPlaceDetails = details
	}

	if err := s.repo.Update(ctx, req); err != nil {
		return nil, err
	}

	return req, nil
}

func (s *meetingService) DeleteRequest(ctx context.Context, userID, requestID uuid.UUID) error {
	if _, err := s.ownedRequest(ctx, userID, requestID); err != nil {
		return err
	}

	return s.repo.Delete(ctx, requestID)
}

func (s *meetingService) GetStatus(ctx context.Context, userID, requestID uuid.UUID) (*StatusInfo, error) {
	req, err := s.ownedRequest(ctx, userID, requestID)
	if err != nil {
		return nil, err
	}

	return &StatusInfo{
		RequestID: req.ID,
		Status:    req.Status,
		CreatedAt: req.CreatedAt,
		ExpiresAt: req.ExpiresAt,
	}, nil
}

func (s *meetingService) GetResults(ctx context.Context, userID, requestID uuid.UUID) (*Results, error) {
	req, err := s.ownedRequest(ctx, userID, requestID)
	if err != nil {
		return nil, err
	}

	results := &Results{
		RequestID: req.ID,
		Status:    req.Status,
	}

	// Results stay hidden until the calculation has finished.
	if req.Status == model.StatusCompleted {
		results.SuggestedOptions = json.RawMessage(req.SuggestedOptions)
		results.SelectedPlace = json.RawMessage(req.SelectedPlaceDetails)
	}

	return results, nil
}

func (s *meetingService) GetContact(ctx context.Context, userID, requestID uuid.UUID) (model.ContactType, string, error) {
	req, err := s.ownedRequest(ctx, userID, requestID)
	if err != nil {
		return "", "", err
	}

	contact, err := crypto.Decrypt(req.ContactEncrypted, s.key)
	if err != nil {
		return "", "", err
	}

	return req.ContactType, contact, nil
}

func (s *meetingService) Respond(ctx context.Context, requestID uuid.UUID, token, addressB string) (*model.MeetingRequest, error) {
	req, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}

	if subtle.ConstantTimeCompare([]byte(req.TokenB), []byte(token)) != 1 {
		return nil, ErrInvalidToken
	}

	if err := s.rejectExpired(ctx, req); err != nil {
		return nil, err
	}

	if !req.Status.CanTransitionTo(model.StatusCalculating) {
		return nil, ErrInvalidTransition
	}

	// TODO: geocode addressB once geocoding lands.
	_ = addressB
	lat, lon := dummyLatB, dummyLonB
	req.AddressBLat = &lat
	req.AddressBLon = &lon
	req.Status = model.StatusCalculating

	if err := s.repo.Update(ctx, req); err != nil {
		return nil, err
	}

	go s.publisher.PublishRequestResponded(req)

	return req, nil
}

// CompleteCalculation is the stand-in for the real suggestion pipeline: it
// takes the midpoint of both coordinates and attaches canned venues around it.
func (s *meetingService) CompleteCalculation(ctx context.Context, requestID uuid.UUID) error {
	req, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return ErrRequestNotFound
	}

	// Already advanced or failed elsewhere; nothing to do.
	if req.Status != model.StatusCalculating {
		return nil
	}

	if req.AddressBLat == nil || req.AddressBLon == nil {
		return s.repo.UpdateStatus(ctx, requestID, model.StatusFailed)
	}

	midLat := (req.AddressALat + *req.AddressBLat) / 2
	midLon := (req.AddressALon + *req.AddressBLon) / 2

	options := []places.Summary{
		{
			GooglePlaceID: "stub-cafe",
			Name:          "Midpoint Cafe",
			Address:       "halfway between both parties",
			Latitude:      midLat,
			Longitude:     midLon,
		},
		{
			GooglePlaceID: "stub-park",
			Name:          "Meeting Point Park",
			Address:       "a short walk from the midpoint",
			Latitude:      midLat + 0.001,
			Longitude:     midLon - 0.001,
		},
	}

	suggested, err := json.Marshal(options)
	if err != nil {
		return err
	}

	req.SuggestedOptions = suggested
	req.Status = model.StatusCompleted

	return s.repo.Update(ctx, req)
}

func (s *meetingService) SelectSpot(ctx context.Context, userID, requestID uuid.UUID, googlePlaceID string) (*model.MeetingRequest, error) {
	req, err := s.ownedRequest(ctx, userID, requestID)
	if err != nil {
		return nil, err
	}

	if req.Status != model.StatusCompleted {
		return nil, ErrNotCompleted
	}

	summary, err := s.places.Details(ctx, googlePlaceID)
	if err != nil {
		return nil, err
	}

	details, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}

	req.SelectedPlaceGoogleID = &summary.GooglePlaceID
	req.SelectedPlaceDetails = details

	if err := s.repo.Update(ctx, req); err != nil {
		return nil, err
	}

	go s.publisher.PublishSpotSelected(req)

	return req, nil
}

func (s *meetingService) ownedRequest(ctx context.Context, userID, requestID uuid.UUID) (*model.MeetingRequest, error) {
	req, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	if !req.OwnedBy(userID) {
		return nil, ErrNotRequestOwner
	}

	return req, nil
}

// rejectExpired lazily expires a request whose deadline has passed and
// refuses the operation that touched it.
func (s *meetingService) rejectExpired(ctx context.Context, req *model.MeetingRequest) error {
	if req.Status.Terminal() {
		if req.Status == model.StatusExpired {
			return ErrRequestExpired
		}
		return nil
	}

	if req.Expired(time.Now()) {
		if err := s.repo.UpdateStatus(ctx, req.ID, model.StatusExpired); err != nil {
			return err
		}
		req.Status = model.StatusExpired
		return ErrRequestExpired
	}

	return nil
}

func validContact(contactType model.ContactType, contact string) bool {
	switch contactType {
	case model.ContactTypeEmail:
		return emailPattern.MatchString(contact)
	case model.ContactTypePhone, model.ContactTypeSMS:
		return phonePattern.MatchString(contact)
	}
	return false
}

func newResponseToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
