/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Internally all money is decimal. DTOs round to 2 places at this
  boundary only (pricing.RoundForDisplay); nothing upstream ever rounds.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: HotelConfigJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/concierge-engine/booking"
	"github.com/warp/concierge-engine/loyalty"
	"github.com/warp/concierge-engine/pricing"
	"github.com/warp/concierge-engine/provider"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// LineItemRequest is one priced unit in a creation or reprice request.
type LineItemRequest struct {
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category"`
	ProviderID  string  `json:"provider_id,omitempty"`
	BasePrice   float64 `json:"base_price"`
	Quantity    int     `json:"quantity,omitempty"`
}

// CreateBookingRequest is the request to create a booking of either kind.
type CreateBookingRequest struct {
	HotelID       string            `json:"hotel_id"`
	GuestID       string            `json:"guest_id"`
	ServiceID     string            `json:"service_id,omitempty"`
	ServiceType   string            `json:"service_type"`
	Currency      string            `json:"currency,omitempty"`
	PaymentMethod string            `json:"payment_method,omitempty"`
	LineItems     []LineItemRequest `json:"line_items"`
	StartDate     string            `json:"start_date,omitempty"` // RFC3339
	EndDate       string            `json:"end_date,omitempty"`
	ActorID       string            `json:"actor_id,omitempty"`
}

// TransitionRequest advances a booking's status.
type TransitionRequest struct {
	Target  string `json:"target"`
	ActorID string `json:"actor_id,omitempty"`
	Note    string `json:"note,omitempty"`
}

// SLAEventRequest records a response or completion timestamp.
type SLAEventRequest struct {
	Kind string `json:"kind"` // "response" or "completion"
	At   string `json:"at,omitempty"`
}

// RepriceRequest replaces a booking's line items.
type RepriceRequest struct {
	LineItems []LineItemRequest `json:"line_items"`
	ActorID   string            `json:"actor_id,omitempty"`
}

// PaymentRequest settles the payment sub-record.
type PaymentRequest struct {
	Method  string `json:"method"` // "cash" or "online"
	ActorID string `json:"actor_id,omitempty"`
}

// FeedbackRequest submits guest feedback for a booking.
type FeedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// CreateProviderRequest registers a provider with a hotel.
type CreateProviderRequest struct {
	ID            string  `json:"id,omitempty"`
	HotelID       string  `json:"hotel_id"`
	Name          string  `json:"name"`
	Type          string  `json:"type"` // "internal" or "external"
	MarkupPercent float64 `json:"markup_percent,omitempty"`
	ActorID       string  `json:"actor_id,omitempty"`
}

// SetMarkupRequest changes a provider's markup.
type SetMarkupRequest struct {
	MarkupPercent float64 `json:"markup_percent"`
	Reason        string  `json:"reason,omitempty"`
	ActorID       string  `json:"actor_id,omitempty"`
}

// AssignProviderRequest sets a hotel's category-level provider.
type AssignProviderRequest struct {
	Category   string `json:"category"`
	ProviderID string `json:"provider_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// HistoryEntryDTO is one row of a booking's status history.
type HistoryEntryDTO struct {
	Status  string `json:"status"`
	ActorID string `json:"actor_id,omitempty"`
	At      string `json:"at"`
	Note    string `json:"note,omitempty"`
}

// LineSplitDTO is one attributed line item.
type LineSplitDTO struct {
	Description      string  `json:"description,omitempty"`
	Category         string  `json:"category,omitempty"`
	ProviderID       string  `json:"provider_id"`
	ProviderType     string  `json:"provider_type"`
	BasePrice        float64 `json:"base_price"`
	MarkupPercent    float64 `json:"markup_percent"`
	Quantity         int     `json:"quantity"`
	ProviderEarnings float64 `json:"provider_earnings"`
	HotelEarnings    float64 `json:"hotel_earnings"`
	TotalAmount      float64 `json:"total_amount"`
}

// PricingDTO is the booking's pricing breakdown.
type PricingDTO struct {
	BasePrice        float64        `json:"base_price"`
	MarkupPercent    float64        `json:"markup_percent"`
	MarkupAmount     float64        `json:"markup_amount"`
	TotalAmount      float64        `json:"total_amount"`
	ProviderEarnings float64        `json:"provider_earnings"`
	HotelEarnings    float64        `json:"hotel_earnings"`
	Currency         string         `json:"currency"`
	Lines            []LineSplitDTO `json:"lines,omitempty"`
}

// SLADTO is the booking's SLA block plus the derived current status.
type SLADTO struct {
	TargetResponseMinutes   int64  `json:"target_response_minutes"`
	TargetCompletionMinutes int64  `json:"target_completion_minutes"`
	ActualResponseMinutes   *int64 `json:"actual_response_minutes,omitempty"`
	ActualCompletionMinutes *int64 `json:"actual_completion_minutes,omitempty"`
	ResponseOnTime          *bool  `json:"response_on_time,omitempty"`
	CompletionOnTime        *bool  `json:"completion_on_time,omitempty"`
	ResponseDelayMinutes    int64  `json:"response_delay_minutes,omitempty"`
	CompletionDelayMinutes  int64  `json:"completion_delay_minutes,omitempty"`
	Status                  string `json:"status,omitempty"`
}

// PaymentDTO is the payment sub-record.
type PaymentDTO struct {
	Method string `json:"method,omitempty"`
	Status string `json:"status"`
	PaidAt string `json:"paid_at,omitempty"`
}

// BookingDTO represents a booking in API responses.
type BookingDTO struct {
	ID            string            `json:"id"`
	Reference     string            `json:"reference"`
	HotelID       string            `json:"hotel_id"`
	GuestID       string            `json:"guest_id"`
	ServiceID     string            `json:"service_id,omitempty"`
	ProviderID    string            `json:"provider_id,omitempty"`
	Kind          string            `json:"kind"`
	ServiceType   string            `json:"service_type,omitempty"`
	Status        string            `json:"status"`
	GenericStatus string            `json:"generic_status"`
	History       []HistoryEntryDTO `json:"history"`
	Pricing       PricingDTO        `json:"pricing"`
	SLA           SLADTO            `json:"sla"`
	Payment       PaymentDTO        `json:"payment"`
	StartDate     string            `json:"start_date,omitempty"`
	EndDate       string            `json:"end_date,omitempty"`
	Version       int               `json:"version"`
	CreatedAt     string            `json:"created_at"`
	UpdatedAt     string            `json:"updated_at"`
}

// FeedbackDTO represents submitted feedback.
type FeedbackDTO struct {
	ID        string `json:"id"`
	BookingID string `json:"booking_id"`
	GuestID   string `json:"guest_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ProviderDTO represents a provider.
type ProviderDTO struct {
	ID            string  `json:"id"`
	HotelID       string  `json:"hotel_id"`
	Name          string  `json:"name,omitempty"`
	Type          string  `json:"type"`
	MarkupPercent float64 `json:"markup_percent"`
	MarkupSetBy   string  `json:"markup_set_by,omitempty"`
	MarkupReason  string  `json:"markup_reason,omitempty"`
	Active        bool    `json:"active"`
	CreatedAt     string  `json:"created_at"`
}

// MemberDTO represents a loyalty member.
type MemberDTO struct {
	GuestID         string          `json:"guest_id"`
	HotelID         string          `json:"hotel_id"`
	Tier            string          `json:"tier"`
	LifetimePoints  int64           `json:"lifetime_points"`
	AvailablePoints int64           `json:"available_points"`
	TierHistory     []TierChangeDTO `json:"tier_history,omitempty"`
	Active          bool            `json:"active"`
	EnrolledAt      string          `json:"enrolled_at"`
	LastActivity    string          `json:"last_activity"`
}

// TierChangeDTO is one tier crossing.
type TierChangeDTO struct {
	From string `json:"from"`
	To   string `json:"to"`
	At   string `json:"at"`
}

// RevenueDTO is a hotel's reconciliation report over completed bookings.
type RevenueDTO struct {
	Bookings         int     `json:"bookings"`
	ProviderEarnings float64 `json:"provider_earnings"`
	HotelEarnings    float64 `json:"hotel_earnings"`
	TotalAmount      float64 `json:"total_amount"`
	Balanced         bool    `json:"balanced"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

// money rounds a decimal at the API boundary.
func money(d decimal.Decimal) float64 {
	return pricing.RoundForDisplay(d).InexactFloat64()
}

func toBookingDTO(b *booking.Booking, slaStatus string) BookingDTO {
	dto := BookingDTO{
		ID:            b.ID,
		Reference:     b.Reference,
		HotelID:       b.HotelID,
		GuestID:       b.GuestID,
		ServiceID:     b.ServiceID,
		ProviderID:    b.ProviderID,
		Kind:          string(b.Kind),
		ServiceType:   b.ServiceType,
		Status:        string(b.Status),
		GenericStatus: string(b.GenericStatus()),
		Pricing:       toPricingDTO(b.Pricing),
		SLA:           toSLADTO(b, slaStatus),
		Payment:       toPaymentDTO(b),
		Version:       b.Version,
		CreatedAt:     b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     b.UpdatedAt.Format(time.RFC3339),
	}
	for _, e := range b.History {
		dto.History = append(dto.History, HistoryEntryDTO{
			Status:  string(e.Status),
			ActorID: e.ActorID,
			At:      e.At.Format(time.RFC3339),
			Note:    e.Note,
		})
	}
	if b.Schedule != nil {
		dto.StartDate = b.Schedule.StartDate.Format(time.RFC3339)
		dto.EndDate = b.Schedule.EndDate.Format(time.RFC3339)
	}
	return dto
}

func toPricingDTO(p pricing.Breakdown) PricingDTO {
	dto := PricingDTO{
		BasePrice:        money(p.BasePrice),
		MarkupPercent:    p.MarkupPercent.InexactFloat64(),
		MarkupAmount:     money(p.MarkupAmount),
		TotalAmount:      money(p.TotalAmount),
		ProviderEarnings: money(p.ProviderEarnings),
		HotelEarnings:    money(p.HotelEarnings),
		Currency:         p.Currency,
	}
	for _, l := range p.Lines {
		dto.Lines = append(dto.Lines, LineSplitDTO{
			Description:      l.Description,
			Category:         l.Category,
			ProviderID:       l.ProviderID,
			ProviderType:     string(l.ProviderType),
			BasePrice:        money(l.BasePrice),
			MarkupPercent:    l.MarkupPercent.InexactFloat64(),
			Quantity:         l.Quantity,
			ProviderEarnings: money(l.ProviderEarnings),
			HotelEarnings:    money(l.HotelEarnings),
			TotalAmount:      money(l.TotalAmount),
		})
	}
	return dto
}

func toSLADTO(b *booking.Booking, status string) SLADTO {
	s := b.SLA
	return SLADTO{
		TargetResponseMinutes:   s.TargetResponseMinutes,
		TargetCompletionMinutes: s.TargetCompletionMinutes,
		ActualResponseMinutes:   s.ActualResponseMinutes,
		ActualCompletionMinutes: s.ActualCompletionMinutes,
		ResponseOnTime:          s.ResponseOnTime,
		CompletionOnTime:        s.CompletionOnTime,
		ResponseDelayMinutes:    s.ResponseDelayMinutes,
		CompletionDelayMinutes:  s.CompletionDelayMinutes,
		Status:                  status,
	}
}

func toPaymentDTO(b *booking.Booking) PaymentDTO {
	dto := PaymentDTO{
		Method: string(b.Payment.Method),
		Status: string(b.Payment.Status),
	}
	if b.Payment.PaidAt != nil {
		dto.PaidAt = b.Payment.PaidAt.Format(time.RFC3339)
	}
	return dto
}

func toProviderDTO(p *provider.Provider) ProviderDTO {
	return ProviderDTO{
		ID:            p.ID,
		HotelID:       p.HotelID,
		Name:          p.Name,
		Type:          string(p.Type),
		MarkupPercent: p.Markup.Percent.InexactFloat64(),
		MarkupSetBy:   p.Markup.SetBy,
		MarkupReason:  p.Markup.Reason,
		Active:        p.Active,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
	}
}

func toMemberDTO(m *loyalty.Member) MemberDTO {
	dto := MemberDTO{
		GuestID:         m.GuestID,
		HotelID:         m.HotelID,
		Tier:            string(m.Tier),
		LifetimePoints:  m.LifetimePoints,
		AvailablePoints: m.AvailablePoints,
		Active:          m.Active,
		EnrolledAt:      m.EnrolledAt.Format(time.RFC3339),
		LastActivity:    m.LastActivity.Format(time.RFC3339),
	}
	for _, c := range m.TierHistory {
		dto.TierHistory = append(dto.TierHistory, TierChangeDTO{
			From: string(c.From),
			To:   string(c.To),
			At:   c.At.Format(time.RFC3339),
		})
	}
	return dto
}

func toLineItems(items []LineItemRequest) []pricing.LineItem {
	out := make([]pricing.LineItem, len(items))
	for i, it := range items {
		out[i] = pricing.LineItem{
			Description: it.Description,
			Category:    it.Category,
			ProviderID:  it.ProviderID,
			BasePrice:   decimal.NewFromFloat(it.BasePrice),
			Quantity:    it.Quantity,
		}
	}
	return out
}
