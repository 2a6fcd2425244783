package api

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"meetspot-api/internal/crypto"
	"meetspot-api/internal/model"
	"meetspot-api/internal/service"
)

type MeetingHandler struct {
	meetingService service.MeetingService
	validate       *validator.Validate
}

func NewMeetingHandler(meetingService service.MeetingService) *MeetingHandler {
	return &MeetingHandler{
		meetingService: meetingService,
		validate:       validator.New(),
	}
}

type CreateMeetingRequest struct {
	AddressA         string `json:"address_a" validate:"required"`
	LocationType     string `json:"location_type" validate:"required"`
	UserBContactType string `json:"user_b_contact_type" validate:"required,oneof=email phone sms"`
	UserBContact     string `json:"user_b_contact" validate:"required"`
}

func (h *MeetingHandler) CreateRequest(c *fiber.Ctx) error {
	userID, err := GetUserIDFromClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user claims"})
	}

	var request CreateMeetingRequest

	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	if err := h.validate.Struct(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input", "details": err.Error()})
	}

	req, err := h.meetingService.CreateRequest(c.Context(), userID, service.CreateRequestInput{
		AddressA:     request.AddressA,
		LocationType: request.LocationType,
		ContactType:  model.ContactType(request.UserBContactType),
		Contact:      request.UserBContact,
	})

	if err != nil {
		return h.meetingError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"request_id": req.ID,
		"token_b":    req.TokenB,
		"status":     req.Status,
		"expires_at": req.ExpiresAt,
	})
}

func (h *MeetingHandler) ListRequests(c *fiber.Ctx) error {
	userID, err := GetUserIDFromClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user claims"})
	}

	reqs, err := h.meetingService.ListRequests(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch meeting requests"})
	}

	return c.Status(fiber.StatusOK).JSON(reqs)
}

func (h *MeetingHandler) GetRequest(c *fiber.Ctx) error {
	userID, requestID, ok := h.callerAndRequestID(c)
	if !ok {
		return nil
	}

	req, err := h.meetingService.GetRequest(c.Context(), userID, requestID)
	if err != nil {
		return h.meetingError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(req)
}

type UpdateMeetingRequest struct {
	AddressBLat     *float64 `json:"address_b_lat"`
	AddressBLon     *float64 `json:"address_b_lon"`
	Status          *string  `json:"status"`
	MeetingLocation *string  `json:"meeting_location"`
}

func (h *MeetingHandler) UpdateRequest(c *fiber.Ctx) error {
	userID, requestID, ok := h.callerAndRequestID(c)
	if !ok {
		return nil
	}

	var request UpdateMeetingRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	in := service.UpdateRequestInput{
		AddressBLat:     request.AddressBLat,
		AddressBLon:     request.AddressBLon,
		MeetingLocation: request.MeetingLocation,
	}
	if request.Status != nil {
		status := model.Status(*request.Status)
		if !status.Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid status value"})
		}
		in.Status = &status
	}

	req, err := h.meetingService.UpdateRequest(c.Context(), userID, requestID, in)
	if err != nil {
		return h.meetingError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(req)
}

func (h *MeetingHandler) DeleteRequest(c *fiber.Ctx) error {
	userID, requestID, ok := h.callerAndRequestID(c)
	if !ok {
		return nil
	}

	if err := h.meetingService.DeleteRequest(c.Context(), userID, requestID); err != nil {
		return h.meetingError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *MeetingHandler) GetStatus(c *fiber.Ctx) error {
	userID, requestID, ok := h.callerAndRequestID(c)
	if !ok {
		return nil
	}

	info, err := h.meetingService.GetStatus(c.Context(), userID, requestID)
	if err != nil {
		return h.meetingError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(info)
}

func (h *MeetingHandler) GetResults(c *fiber.Ctx) error {
	userID, requestID, ok := h.callerAndRequestID(c)
	if !ok {
		return nil
	}

	results, err := h.meetingService.GetResults(c.Context(), userID, requestID)
	if err != nil {
		return h.meetingError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(results)
}

func (h *MeetingHandler) GetContact(c *fiber.Ctx) error {
	userID, requestID, ok := h.callerAndRequestID(c)
	if !ok {
		return nil
	}

	contactType, contact, err := h.meetingService.GetContact(c.Context(), userID, requestID)
	if err != nil {
		return h.meetingError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"contact_type": contactType,
		"contact":      contact,
	})
}

type RespondRequest struct {
	Token    string `json:"token" validate:"required"`
	AddressB string `json:"address_b" validate:"required"`
}

// Respond is the only unauthenticated write: User B proves possession of the
// response token instead of logging in.
func (h *MeetingHandler) Respond(c *fiber.Ctx) error {
	requestID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request ID format"})
	}

	var request RespondRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	if err := h.validate.Struct(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing required fields"})
	}

	req, err := h.meetingService.Respond(c.Context(), requestID, request.Token, request.AddressB)
	if err != nil {
		return h.meetingError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": req.Status})
}

type SelectSpotRequest struct {
	GooglePlaceID string `json:"google_place_id" validate:"required"`
}

func (h *MeetingHandler) SelectSpot(c *fiber.Ctx) error {
	userID, requestID, ok := h.callerAndRequestID(c)
	if !ok {
		return nil
	}

	var request SelectSpotRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	if err := h.validate.Struct(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input", "details": err.Error()})
	}

	req, err := h.meetingService.SelectSpot(c.Context(), userID, requestID, request.GooglePlaceID)
	if err != nil {
		return h.meetingError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":         "spot_selected",
		"selected_place": req.SelectedPlaceDetails,
	})
}

// callerAndRequestID writes the error response itself when either the JWT
// claims or the path id are unusable.
func (h *MeetingHandler) callerAndRequestID(c *fiber.Ctx) (uuid.UUID, uuid.UUID, bool) {
	userID, err := GetUserIDFromClaims(c)
	if err != nil {
		_ = c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user claims"})
		return uuid.Nil, uuid.Nil, false
	}

	requestID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request ID format"})
		return uuid.Nil, uuid.Nil, false
	}

	return userID, requestID, true
}

func (h *MeetingHandler) meetingError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrRequestNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNotRequestOwner), errors.Is(err, service.ErrInvalidToken):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrRequestExpired):
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrNotCompleted):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidContact):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, crypto.ErrDecryptFailed), errors.Is(err, crypto.ErrKeyMissing):
		slog.ErrorContext(c.UserContext(), "Contact field encryption error", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not process contact information"})
	default:
		slog.ErrorContext(c.UserContext(), "Unhandled meeting request error", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
}
