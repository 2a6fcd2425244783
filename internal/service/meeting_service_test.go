package service_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"meetspot-api/internal/crypto"
	"meetspot-api/internal/model"
	"meetspot-api/internal/places"
	"meetspot-api/internal/service"
)

type fakeMeetingRepo struct {
	mu       sync.Mutex
	requests map[uuid.UUID]model.MeetingRequest
}

func newFakeMeetingRepo() *fakeMeetingRepo {
	return &fakeMeetingRepo{requests: make(map[uuid.UUID]model.MeetingRequest)}
}

func (f *fakeMeetingRepo) Create(_ context.Context, req *model.MeetingRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	req.ID = uuid.New()
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	f.requests[req.ID] = *req
	return nil
}

func (f *fakeMeetingRepo) FindByID(_ context.Context, id uuid.UUID) (*model.MeetingRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return nil, nil
	}
	copied := req
	return &copied, nil
}

func (f *fakeMeetingRepo) ListByUserA(_ context.Context, userID uuid.UUID) ([]model.MeetingRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.MeetingRequest{}
	for _, req := range f.requests {
		if req.UserAID != nil && *req.UserAID == userID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (f *fakeMeetingRepo) Update(_ context.Context, req *model.MeetingRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	req.UpdatedAt = time.Now()
	f.requests[req.ID] = *req
	return nil
}

func (f *fakeMeetingRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	req := f.requests[id]
	req.Status = status
	f.requests[id] = req
	return nil
}

func (f *fakeMeetingRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.requests, id)
	return nil
}

func (f *fakeMeetingRepo) ExpireStale(_ context.Context) (int64, error) {
	return 0, nil
}

func (f *fakeMeetingRepo) stored(id uuid.UUID) model.MeetingRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[id]
}

type fakePublisher struct{}

func (fakePublisher) PublishRequestCreated(*model.MeetingRequest) error   { return nil }
func (fakePublisher) PublishRequestResponded(*model.MeetingRequest) error { return nil }
func (fakePublisher) PublishSpotSelected(*model.MeetingRequest) error     { return nil }

type fakePlaces struct{}

func (fakePlaces) Details(_ context.Context, placeID string) (*places.Summary, error) {
	return &places.Summary{
		GooglePlaceID: placeID,
		Name:          "Blue Bottle Coffee",
		Address:       "66 Mint St, San Francisco",
		Latitude:      37.7822,
		Longitude:     -122.4075,
	}, nil
}

func testKey(t *testing.T) *fernet.Key {
	t.Helper()
	key, err := crypto.DeriveKey("service-test-secret")
	require.NoError(t, err)
	return key
}

func newTestService(t *testing.T) (service.MeetingService, *fakeMeetingRepo, *fernet.Key) {
	t.Helper()
	repo := newFakeMeetingRepo()
	key := testKey(t)
	svc := service.NewMeetingService(repo, fakePublisher{}, fakePlaces{}, key)
	return svc, repo, key
}

func TestMeetingService_CreateRequest(t *testing.T) {
	svc, repo, key := newTestService(t)
	userID := uuid.New()

	req, err := svc.CreateRequest(context.Background(), userID, service.CreateRequestInput{
		AddressA:     "123 Main St",
		LocationType: "restaurant",
		ContactType:  model.ContactTypeEmail,
		Contact:      "userb@example.com",
	})
	require.NoError(t, err)

	require.Equal(t, model.StatusPendingBAddress, req.Status)
	require.NotEmpty(t, req.TokenB)
	require.True(t, req.ExpiresAt.After(time.Now()))

	// The contact must only ever be stored encrypted.
	stored := repo.stored(req.ID)
	require.NotEqual(t, "userb@example.com", stored.ContactEncrypted)

	decrypted, err := crypto.Decrypt(stored.ContactEncrypted, key)
	require.NoError(t, err)
	require.Equal(t, "userb@example.com", decrypted)
}

func TestMeetingService_CreateRequest_InvalidContact(t *testing.T) {
	svc, _, _ := newTestService(t)

	cases := []service.CreateRequestInput{
		{ContactType: model.ContactTypeEmail, Contact: "not-an-email"},
		{ContactType: model.ContactTypePhone, Contact: "abc"},
		{ContactType: model.ContactType("fax"), Contact: "userb@example.com"},
	}

	for _, in := range cases {
		in.AddressA = "123 Main St"
		in.LocationType = "restaurant"
		_, err := svc.CreateRequest(context.Background(), uuid.New(), in)
		require.ErrorIs(t, err, service.ErrInvalidContact)
	}
}

func TestMeetingService_Respond_Success(t *testing.T) {
	svc, repo, _ := newTestService(t)

	created, err := svc.CreateRequest(context.Background(), uuid.New(), service.CreateRequestInput{
		AddressA: "123 Main St", LocationType: "cafe",
		ContactType: model.ContactTypeEmail, Contact: "userb@example.com",
	})
	require.NoError(t, err)

	updated, err := svc.Respond(context.Background(), created.ID, created.TokenB, "456 Market St")
	require.NoError(t, err)
	require.Equal(t, model.StatusCalculating, updated.Status)
	require.NotNil(t, updated.AddressBLat)
	require.NotNil(t, updated.AddressBLon)

	require.Equal(t, model.StatusCalculating, repo.stored(created.ID).Status)
}

func TestMeetingService_Respond_WrongToken(t *testing.T) {
	svc, repo, _ := newTestService(t)

	created, err := svc.CreateRequest(context.Background(), uuid.New(), service.CreateRequestInput{
		AddressA: "123 Main St", LocationType: "cafe",
		ContactType: model.ContactTypeEmail, Contact: "userb@example.com",
	})
	require.NoError(t, err)

	_, err = svc.Respond(context.Background(), created.ID, "forged-token", "456 Market St")
	require.ErrorIs(t, err, service.ErrInvalidToken)

	// The request is untouched.
	require.Equal(t, model.StatusPendingBAddress, repo.stored(created.ID).Status)
}

func TestMeetingService_Respond_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Respond(context.Background(), uuid.New(), "any-token", "456 Market St")
	require.ErrorIs(t, err, service.ErrRequestNotFound)
}

func TestMeetingService_Respond_Expired(t *testing.T) {
	svc, repo, _ := newTestService(t)

	created, err := svc.CreateRequest(context.Background(), uuid.New(), service.CreateRequestInput{
		AddressA: "123 Main St", LocationType: "cafe",
		ContactType: model.ContactTypeEmail, Contact: "userb@example.com",
	})
	require.NoError(t, err)

	// Push the deadline into the past.
	stale := repo.stored(created.ID)
	stale.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, repo.Update(context.Background(), &stale))

	_, err = svc.Respond(context.Background(), created.ID, created.TokenB, "456 Market St")
	require.ErrorIs(t, err, service.ErrRequestExpired)

	require.Equal(t, model.StatusExpired, repo.stored(created.ID).Status)
}

func TestMeetingService_Respond_AlreadyResponded(t *testing.T) {
	svc, _, _ := newTestService(t)

	created, err := svc.CreateRequest(context.Background(), uuid.New(), service.CreateRequestInput{
		AddressA: "123 Main St", LocationType: "cafe",
		ContactType: model.ContactTypeEmail, Contact: "userb@example.com",
	})
	require.NoError(t, err)

	_, err = svc.Respond(context.Background(), created.ID, created.TokenB, "456 Market St")
	require.NoError(t, err)

	_, err = svc.Respond(context.Background(), created.ID, created.TokenB, "789 Mission St")
	require.ErrorIs(t, err, service.ErrInvalidTransition)
}

func TestMeetingService_CompleteCalculation(t *testing.T) {
	svc, repo, _ := newTestService(t)

	created, err := svc.CreateRequest(context.Background(), uuid.New(), service.CreateRequestInput{
		AddressA: "123 Main St", LocationType: "cafe",
		ContactType: model.ContactTypeEmail, Contact: "userb@example.com",
	})
	require.NoError(t, err)

	_, err = svc.Respond(context.Background(), created.ID, created.TokenB, "456 Market St")
	require.NoError(t, err)

	require.NoError(t, svc.CompleteCalculation(context.Background(), created.ID))

	stored := repo.stored(created.ID)
	require.Equal(t, model.StatusCompleted, stored.Status)

	var options []places.Summary
	require.NoError(t, json.Unmarshal(stored.SuggestedOptions, &options))
	require.NotEmpty(t, options)
	require.InDelta(t, (37.7749+37.7833)/2, options[0].Latitude, 0.00001)

	// Running it again is a no-op on a completed request.
	require.NoError(t, svc.CompleteCalculation(context.Background(), created.ID))
	require.Equal(t, model.StatusCompleted, repo.stored(created.ID).Status)
}

func TestMeetingService_CompleteCalculation_MissingCoordinates(t *testing.T) {
	svc, repo, _ := newTestService(t)

	created, err := svc.CreateRequest(context.Background(), uuid.New(), service.CreateRequestInput{
		AddressA: "123 Main St", LocationType: "cafe",
		ContactType: model.ContactTypeEmail, Contact: "userb@example.com",
	})
	require.NoError(t, err)

	// Force the calculating state without User B coordinates.
	broken := repo.stored(created.ID)
	broken.Status = model.StatusCalculating
	require.NoError(t, repo.Update(context.Background(), &broken))

	require.NoError(t, svc.CompleteCalculation(context.Background(), created.ID))
	require.Equal(t, model.StatusFailed, repo.stored(created.ID).Status)
}

func TestMeetingService_GetRequest_Ownership(t *testing.T) {
	svc, _, _ := newTestService(t)
	owner := uuid.New()

	created, err := svc.CreateRequest(context.Background(), owner, service.CreateRequestInput{
		AddressA: "123 Main St", LocationType: "cafe",
		ContactType: model.ContactTypeEmail, Contact: "userb@example.com",
	})
	require.NoError(t, err)

	got, err := svc.GetRequest(context.Background(), owner, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)

	_, err = svc.GetRequest(context.Background(), uuid.New(), created.ID)
	require.ErrorIs(t, err, service.ErrNotRequestOwner)

	_, err = svc.GetRequest(context.Background(), owner, uuid.New())
	require.ErrorIs(t, err, service.ErrRequestNotFound)
}

func TestMeetingService_GetResults_HiddenUntilCompleted(t *testing.T) {
	svc, _, _ := newTestService(t)
	owner := uuid.New()

	created, err := svc.CreateRequest(context.Background(), owner, service.CreateRequestInput{
		AddressA: "123 Main St", LocationType: "cafe",
		ContactType: model.ContactTypeEmail, Contact: "userb@example.com",
	})
	require.NoError(t, err)

	results, err := svc.GetResults(context.Background(), owner, created.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusPendingBAddress, results.Status)
	require.Empty(t, results.SuggestedOptions)

	_, err = svc.Respond(context.Background(), created.ID, created.TokenB, "456 Market St")
	require.NoError(t, err)
	require.NoError(t, svc.CompleteCalculation(context.Background(), created.ID))

	results, err = svc.GetResults(context.Background(), owner, created.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, results.Status)
	require.NotEmpty(t, results.SuggestedOptions)
}

func TestMeetingService_GetContact(t *testing.T) {
	svc, _, _ := newTestService(t)
	owner := uuid.New()

	created, err := svc.CreateRequest(context.Background(), owner, service.CreateRequestInput{
		AddressA: "123 Main St", LocationType: "cafe",
		ContactType: model.ContactTypeSMS, Contact: "+14155550123",
	})
	require.NoError(t, err)

	contactType, contact, err := svc.GetContact(context.Background(), owner, created.ID)
	require.NoError(t, err)
	require.Equal(t, model.ContactTypeSMS, contactType)
	require.Equal(t, "+14155550123", contact)
}

func TestMeetingService_SelectSpot(t *testing.T) {
	svc, repo, _ := newTestService(t)
	owner := uuid.New()

	created, err := svc.CreateRequest(context.Background(), owner, service.CreateRequestInput{
		AddressA: "123 Main St", LocationType: "cafe",
		ContactType: model.ContactTypeEmail, Contact: "userb@example.com",
	})
	require.NoError(t, err)

	// Selection is only allowed once suggestions exist.
	_, err = svc.SelectSpot(context.Background(), owner, created.ID, "some-place")
	require.ErrorIs(t, err, service.ErrNotCompleted)

	_, err = svc.Respond(context.Background(), created.ID, created.TokenB, "456 Market St")
	require.NoError(t, err)
	require.NoError(t, svc.CompleteCalculation(context.Background(), created.ID))

	selected, err := svc.SelectSpot(context.Background(), owner, created.ID, "some-place")
	require.NoError(t, err)
	require.NotNil(t, selected.SelectedPlaceGoogleID)
	require.Equal(t, "some-place", *selected.SelectedPlaceGoogleID)

	stored := repo.stored(created.ID)
	var details places.Summary
	require.NoError(t, json.Unmarshal(stored.SelectedPlaceDetails, &details))
	require.Equal(t, "Blue Bottle Coffee", details.Name)
}

func TestMeetingService_UpdateRequest_InvalidTransition(t *testing.T) {
	svc, _, _ := newTestService(t)
	owner := uuid.New()

	created, err := svc.CreateRequest(context.Background(), owner, service.CreateRequestInput{
		AddressA: "123 Main St", LocationType: "cafe",
		ContactType: model.ContactTypeEmail, Contact: "userb@example.com",
	})
	require.NoError(t, err)

	completed := model.StatusCompleted
	_, err = svc.UpdateRequest(context.Background(), owner, created.ID, service.UpdateRequestInput{
		Status: &completed,
	})
	require.ErrorIs(t, err, service.ErrInvalidTransition)
}

func TestMeetingService_DeleteRequest(t *testing.T) {
	svc, repo, _ := newTestService(t)
	owner := uuid.New()

	created, err := svc.CreateRequest(context.Background(), owner, service.CreateRequestInput{
		AddressA: "123 Main St", LocationType: "cafe",
		ContactType: model.ContactTypeEmail, Contact: "userb@example.com",
	})
	require.NoError(t, err)

	require.ErrorIs(t, svc.DeleteRequest(context.Background(), uuid.New(), created.ID), service.ErrNotRequestOwner)

	require.NoError(t, svc.DeleteRequest(context.Background(), owner, created.ID))

	_, ok := repo.requests[created.ID]
	require.False(t, ok)
}
