/*
handlers.go - HTTP API handlers for the booking engine

PURPOSE:
  Exposes the booking engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Bookings:
    POST   /api/bookings                      Create regular booking
    POST   /api/bookings/transportation      Create transportation booking
    GET    /api/bookings/{id}                 Get booking with history
    POST   /api/bookings/{id}/status          Transition status
    POST   /api/bookings/{id}/sla             Record SLA response/completion
    POST   /api/bookings/{id}/reprice         Admin pricing correction
    POST   /api/bookings/{id}/payment         Settle payment (cash/online)
    POST   /api/bookings/{id}/feedback        Submit guest feedback

  Providers:
    POST   /api/providers                     Register provider
    GET    /api/providers/{id}                Get provider
    PUT    /api/providers/{id}/markup         Change markup

  Hotels:
    GET    /api/hotels/{id}/bookings          List hotel bookings
    GET    /api/hotels/{id}/providers         List hotel providers
    POST   /api/hotels/{id}/assignments       Assign category provider
    GET    /api/hotels/{id}/revenue           Revenue reconciliation
    PUT    /api/hotels/{id}/config            Update SLA/loyalty config
    GET    /api/hotels/{id}/loyalty/{guest}   Loyalty member

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid transitions
  - 404: Resource not found
  - 409: Conflict (version conflict, duplicate feedback)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/concierge-engine/booking"
	"github.com/warp/concierge-engine/factory"
	"github.com/warp/concierge-engine/lifecycle"
	"github.com/warp/concierge-engine/loyalty"
	"github.com/warp/concierge-engine/metrics"
	"github.com/warp/concierge-engine/pricing"
	"github.com/warp/concierge-engine/provider"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// ProgramSaver persists a hotel's loyalty program configuration.
type ProgramSaver interface {
	SaveProgram(ctx context.Context, hotelID string, p loyalty.Program) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Bookings    *booking.Service
	Feedback    booking.FeedbackStore
	Providers   provider.Store
	Assignments provider.AssignmentStore
	Members     loyalty.MemberStore
	Programs    ProgramSaver
	Factory     *factory.ConfigFactory

	// Metrics is optional; nil disables instrumentation.
	Metrics *metrics.Metrics
}

// NewHandler creates a handler over the booking façade and stores.
func NewHandler(svc *booking.Service, feedback booking.FeedbackStore, providers provider.Store, assignments provider.AssignmentStore, members loyalty.MemberStore, programs ProgramSaver) *Handler {
	return &Handler{
		Bookings:    svc,
		Feedback:    feedback,
		Providers:   providers,
		Assignments: assignments,
		Members:     members,
		Programs:    programs,
		Factory:     factory.NewConfigFactory(),
	}
}

// =============================================================================
// BOOKING HANDLERS
// =============================================================================

// CreateBooking creates a regular service booking.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	h.createBooking(w, r, booking.KindRegular)
}

// CreateTransportationBooking creates a transportation booking.
func (h *Handler) CreateTransportationBooking(w http.ResponseWriter, r *http.Request) {
	h.createBooking(w, r, booking.KindTransportation)
}

func (h *Handler) createBooking(w http.ResponseWriter, r *http.Request, kind lifecycle.Kind) {
	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := booking.CreateInput{
		HotelID:       req.HotelID,
		GuestID:       req.GuestID,
		ServiceID:     req.ServiceID,
		ServiceType:   req.ServiceType,
		Currency:      req.Currency,
		LineItems:     toLineItems(req.LineItems),
		ActorID:       req.ActorID,
		PaymentMethod: booking.PaymentMethod(req.PaymentMethod),
	}

	if req.StartDate != "" && req.EndDate != "" {
		start, err := time.Parse(time.RFC3339, req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date (use RFC3339)", err)
			return
		}
		end, err := time.Parse(time.RFC3339, req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date (use RFC3339)", err)
			return
		}
		in.Schedule = &booking.Schedule{StartDate: start, EndDate: end}
	}

	var b *booking.Booking
	var err error
	if kind == booking.KindTransportation {
		b, err = h.Bookings.CreateTransportation(r.Context(), in)
	} else {
		b, err = h.Bookings.CreateRegular(r.Context(), in)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if h.Metrics != nil {
		h.Metrics.BookingsCreated.WithLabelValues(string(b.Kind)).Inc()
	}
	writeJSON(w, http.StatusCreated, toBookingDTO(b, string(h.Bookings.SLAStatus(b))))
}

// GetBooking returns a booking with its full history.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	b, err := h.Bookings.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b, string(h.Bookings.SLAStatus(b))))
}

// TransitionBooking advances a booking's status.
func (h *Handler) TransitionBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Target == "" {
		writeError(w, http.StatusBadRequest, "target is required", nil)
		return
	}

	b, err := h.Bookings.TransitionStatus(r.Context(), id, lifecycle.Status(req.Target), req.ActorID, req.Note)
	if h.Metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "rejected"
		}
		kind := "unknown"
		if b != nil {
			kind = string(b.Kind)
		}
		h.Metrics.TransitionsTotal.WithLabelValues(kind, req.Target, outcome).Inc()
		if booking.IsConflict(err) {
			h.Metrics.ConcurrencyConflict.Inc()
		}
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b, string(h.Bookings.SLAStatus(b))))
}

// RecordSLAEvent stamps a response or completion timestamp.
func (h *Handler) RecordSLAEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SLAEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var at time.Time
	if req.At != "" {
		var err error
		at, err = time.Parse(time.RFC3339, req.At)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid at (use RFC3339)", err)
			return
		}
	}

	b, err := h.Bookings.RecordSLAEvent(r.Context(), id, booking.SLAEventKind(req.Kind), at)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b, string(h.Bookings.SLAStatus(b))))
}

// RepriceBooking replaces a booking's pricing, admin-only correction.
func (h *Handler) RepriceBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req RepriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	b, err := h.Bookings.Reprice(r.Context(), id, toLineItems(req.LineItems), req.ActorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b, string(h.Bookings.SLAStatus(b))))
}

// SettlePayment marks the booking paid.
func (h *Handler) SettlePayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	b, err := h.Bookings.MarkPaid(r.Context(), id, booking.PaymentMethod(req.Method), req.ActorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b, string(h.Bookings.SLAStatus(b))))
}

// SubmitFeedback records guest feedback for an eligible booking.
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	f, err := h.Bookings.SubmitFeedback(r.Context(), h.Feedback, id, req.Rating, req.Comment)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, FeedbackDTO{
		ID:        f.ID,
		BookingID: f.BookingID,
		GuestID:   f.GuestID,
		Rating:    f.Rating,
		Comment:   f.Comment,
		CreatedAt: f.CreatedAt.Format(time.RFC3339),
	})
}

// =============================================================================
// PROVIDER HANDLERS
// =============================================================================

// CreateProvider registers a provider with a hotel.
func (h *Handler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	var req CreateProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.HotelID == "" {
		writeError(w, http.StatusBadRequest, "hotel_id is required", nil)
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	p, err := provider.New(id, req.HotelID, req.Name,
		pricing.ProviderType(req.Type), decimal.NewFromFloat(req.MarkupPercent),
		req.ActorID, time.Now().UTC())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.Providers.Put(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save provider", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProviderDTO(p))
}

// GetProvider returns a provider record.
func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.Providers.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProviderDTO(p))
}

// SetMarkup changes a provider's markup percentage.
func (h *Handler) SetMarkup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SetMarkupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p, err := h.Providers.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := p.SetMarkup(decimal.NewFromFloat(req.MarkupPercent), req.ActorID, req.Reason, time.Now().UTC()); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.Providers.Put(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save provider", err)
		return
	}
	writeJSON(w, http.StatusOK, toProviderDTO(p))
}

// =============================================================================
// HOTEL HANDLERS
// =============================================================================

// ListHotelBookings returns all bookings of a hotel.
func (h *Handler) ListHotelBookings(w http.ResponseWriter, r *http.Request) {
	hotelID := chi.URLParam(r, "id")

	bookings, err := h.Bookings.Bookings.ListByHotel(r.Context(), hotelID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bookings", err)
		return
	}

	dtos := make([]BookingDTO, len(bookings))
	for i, b := range bookings {
		dtos[i] = toBookingDTO(b, string(h.Bookings.SLAStatus(b)))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListHotelProviders returns a hotel's providers.
func (h *Handler) ListHotelProviders(w http.ResponseWriter, r *http.Request) {
	hotelID := chi.URLParam(r, "id")

	providers, err := h.Providers.ListByHotel(r.Context(), hotelID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list providers", err)
		return
	}

	dtos := make([]ProviderDTO, len(providers))
	for i, p := range providers {
		dtos[i] = toProviderDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AssignProvider sets a hotel's category-level provider assignment.
func (h *Handler) AssignProvider(w http.ResponseWriter, r *http.Request) {
	hotelID := chi.URLParam(r, "id")

	var req AssignProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Category == "" || req.ProviderID == "" {
		writeError(w, http.StatusBadRequest, "category and provider_id are required", nil)
		return
	}

	// The provider must exist and belong to the hotel.
	p, err := h.Providers.Get(r.Context(), req.ProviderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if p.HotelID != hotelID {
		writeError(w, http.StatusBadRequest, "provider belongs to another hotel", nil)
		return
	}

	if err := h.Assignments.Assign(r.Context(), hotelID, req.Category, req.ProviderID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save assignment", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"hotel_id":    hotelID,
		"category":    req.Category,
		"provider_id": req.ProviderID,
	})
}

// HotelRevenue returns the reconciliation report over completed bookings.
func (h *Handler) HotelRevenue(w http.ResponseWriter, r *http.Request) {
	hotelID := chi.URLParam(r, "id")

	report, err := h.Bookings.HotelRevenue(r.Context(), hotelID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute revenue", err)
		return
	}
	writeJSON(w, http.StatusOK, RevenueDTO{
		Bookings:         report.Bookings,
		ProviderEarnings: money(report.ProviderEarnings),
		HotelEarnings:    money(report.HotelEarnings),
		TotalAmount:      money(report.TotalAmount),
		Balanced:         report.Balanced,
	})
}

// UpdateHotelConfig parses and applies a hotel's SLA/loyalty configuration.
func (h *Handler) UpdateHotelConfig(w http.ResponseWriter, r *http.Request) {
	hotelID := chi.URLParam(r, "id")

	var cj factory.HotelConfigJSON
	if err := json.NewDecoder(r.Body).Decode(&cj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	cj.HotelID = hotelID

	cfg, err := h.Factory.FromJSON(cj)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hotel config", err)
		return
	}

	// SLA targets apply to newly created bookings; existing bookings keep
	// the targets resolved at their creation.
	for _, category := range cfg.SLATable.Categories() {
		h.Bookings.SLA.Set(cfg.SLATable.For(category))
	}

	if h.Programs != nil {
		if err := h.Programs.SaveProgram(r.Context(), hotelID, cfg.Program); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save loyalty program", err)
			return
		}
	}

	writeJSON(w, http.StatusOK, h.Factory.ToJSON(cfg))
}

// GetLoyaltyMember returns a guest's loyalty record at a hotel.
func (h *Handler) GetLoyaltyMember(w http.ResponseWriter, r *http.Request) {
	hotelID := chi.URLParam(r, "id")
	guestID := chi.URLParam(r, "guestID")

	m, err := h.Members.Get(r.Context(), guestID, hotelID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTO(m))
}

// =============================================================================
// ERROR MAPPING & RESPONSE HELPERS
// =============================================================================

// writeDomainError maps domain errors to HTTP statuses:
// validation / invalid transition -> 400, not found -> 404,
// conflicts and duplicates -> 409, everything else -> 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case pricing.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case lifecycle.IsInvalidTransition(err):
		writeErrorCode(w, http.StatusBadRequest, err.Error(), "invalid_transition")
	case errors.Is(err, lifecycle.ErrUnknownKind):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case booking.IsNotFound(err),
		errors.Is(err, provider.ErrNotFound),
		errors.Is(err, loyalty.ErrMemberNotFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case booking.IsConflict(err):
		writeErrorCode(w, http.StatusConflict, err.Error(), "version_conflict")
	case errors.Is(err, booking.ErrFeedbackExists),
		errors.Is(err, loyalty.ErrDuplicateAccrual):
		writeErrorCode(w, http.StatusConflict, err.Error(), "duplicate")
	case errors.Is(err, booking.ErrFeedbackNotEligible),
		errors.Is(err, provider.ErrInternalMarkup):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeErrorCode(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
