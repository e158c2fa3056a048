/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements every persistence interface of the engine (booking.Store,
  booking.FeedbackStore, provider.Store, provider.AssignmentStore,
  loyalty.MemberStore, loyalty.MarkerStore, loyalty.ProgramStore,
  loyalty.GuestStays) on SQLite. In production the same patterns apply to
  PostgreSQL with minor dialect differences.

KEY TABLES:
  bookings:             One row per booking, versioned for optimistic
                        concurrency; pricing and SLA blocks as JSON
  booking_history:      Append-only status history, one row per entry
  providers:            Service providers with markup audit fields
  category_assignments: Hotel's per-category provider assignment
  loyalty_members:      One row per (guest, hotel)
  loyalty_accruals:     Per-booking accrual markers (PRIMARY KEY booking_id)
  feedback:             One row per booking (UNIQUE booking_id)
  guest_stays:          Check-in/check-out per (guest, hotel)
  hotel_programs:       Loyalty program JSON per hotel

INVARIANT ENFORCEMENT:
  Uniqueness constraints are the last line of defense for the engine's
  idempotency guarantees: the accrual-marker primary key stops a
  concurrent redelivery from double-crediting even if both goroutines
  pass the in-process check, and the feedback unique index keeps one
  feedback per booking. Status writes are conditional on the stored
  version; zero affected rows surfaces as a concurrency conflict.

APPEND-ONLY:
  booking_history has no UPDATE or DELETE path. Corrections happen as
  new transitions, never edits.

WAL MODE:
  The database is opened with WAL so readers don't block the writer.

USAGE:
  store, err := sqlite.New("./data/concierge.db")
  if err != nil { log.Fatal(err) }
  defer store.Close()

SEE ALSO:
  - booking/types.go: Interface definitions and sentinel errors
  - store/memory: In-memory implementations for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/concierge-engine/booking"
	"github.com/warp/concierge-engine/lifecycle"
	"github.com/warp/concierge-engine/loyalty"
	"github.com/warp/concierge-engine/pricing"
	"github.com/warp/concierge-engine/provider"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	// defaultProgram backs ProgramFor when a hotel has no stored
	// configuration.
	defaultProgram loyalty.Program
}

// New creates a SQLite store. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, defaultProgram: loyalty.DefaultProgram()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// SetDefaultProgram overrides the fallback loyalty program.
func (s *Store) SetDefaultProgram(p loyalty.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultProgram = p
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		reference TEXT NOT NULL,
		hotel_id TEXT NOT NULL,
		guest_id TEXT NOT NULL,
		service_id TEXT,
		provider_id TEXT,
		kind TEXT NOT NULL,
		service_type TEXT,
		status TEXT NOT NULL,
		pricing_json TEXT NOT NULL,
		sla_json TEXT NOT NULL,
		payment_method TEXT,
		payment_status TEXT NOT NULL,
		paid_at TEXT,
		schedule_start TEXT,
		schedule_end TEXT,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bookings_hotel ON bookings(hotel_id);
	CREATE INDEX IF NOT EXISTS idx_bookings_guest ON bookings(guest_id);
	CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status);

	-- Append-only status history. No UPDATE, no DELETE.
	CREATE TABLE IF NOT EXISTS booking_history (
		booking_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		status TEXT NOT NULL,
		actor_id TEXT,
		at TEXT NOT NULL,
		note TEXT,
		PRIMARY KEY (booking_id, seq)
	);

	CREATE TABLE IF NOT EXISTS providers (
		id TEXT PRIMARY KEY,
		hotel_id TEXT NOT NULL,
		name TEXT,
		type TEXT NOT NULL,
		markup_percent TEXT NOT NULL,
		markup_set_by TEXT,
		markup_set_at TEXT,
		markup_reason TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_providers_hotel ON providers(hotel_id);

	CREATE TABLE IF NOT EXISTS category_assignments (
		hotel_id TEXT NOT NULL,
		category TEXT NOT NULL,
		provider_id TEXT NOT NULL,
		PRIMARY KEY (hotel_id, category)
	);

	CREATE TABLE IF NOT EXISTS loyalty_members (
		guest_id TEXT NOT NULL,
		hotel_id TEXT NOT NULL,
		tier TEXT NOT NULL,
		lifetime_points INTEGER NOT NULL DEFAULT 0,
		available_points INTEGER NOT NULL DEFAULT 0,
		tier_history_json TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		enrolled_at TEXT NOT NULL,
		last_activity TEXT NOT NULL,
		PRIMARY KEY (guest_id, hotel_id)
	);

	-- CRITICAL: one accrual per booking, ever. The primary key is the
	-- redelivery guard of the loyalty trigger.
	CREATE TABLE IF NOT EXISTS loyalty_accruals (
		booking_id TEXT PRIMARY KEY,
		guest_id TEXT NOT NULL,
		hotel_id TEXT NOT NULL,
		points INTEGER NOT NULL,
		awarded_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		booking_id TEXT NOT NULL,
		guest_id TEXT NOT NULL,
		hotel_id TEXT NOT NULL,
		rating INTEGER NOT NULL,
		comment TEXT,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_feedback_booking ON feedback(booking_id);

	CREATE TABLE IF NOT EXISTS guest_stays (
		guest_id TEXT NOT NULL,
		hotel_id TEXT NOT NULL,
		check_in TEXT NOT NULL,
		check_out TEXT NOT NULL,
		PRIMARY KEY (guest_id, hotel_id)
	);

	CREATE TABLE IF NOT EXISTS hotel_programs (
		hotel_id TEXT PRIMARY KEY,
		program_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BOOKING STORE (booking.Store interface)
// =============================================================================

var _ booking.Store = (*Store)(nil)

// Create inserts a booking and its initial history rows.
func (s *Store) Create(ctx context.Context, b *booking.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	pricingJSON, err := json.Marshal(b.Pricing)
	if err != nil {
		return fmt.Errorf("marshal pricing: %w", err)
	}
	slaJSON, err := json.Marshal(b.SLA)
	if err != nil {
		return fmt.Errorf("marshal sla: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bookings
		(id, reference, hotel_id, guest_id, service_id, provider_id, kind, service_type,
		 status, pricing_json, sla_json, payment_method, payment_status, paid_at,
		 schedule_start, schedule_end, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID, b.Reference, b.HotelID, b.GuestID, b.ServiceID, b.ProviderID,
		string(b.Kind), b.ServiceType, string(b.Status),
		string(pricingJSON), string(slaJSON),
		string(b.Payment.Method), string(b.Payment.Status), formatTimePtr(b.Payment.PaidAt),
		scheduleStart(b.Schedule), scheduleEnd(b.Schedule),
		b.Version,
		b.CreatedAt.UTC().Format(time.RFC3339Nano),
		b.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	for i, entry := range b.History {
		if err := insertHistory(ctx, tx, b.ID, i, entry); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Get loads a booking with its full status history.
func (s *Store) Get(ctx context.Context, id string) (*booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(ctx, id)
}

func (s *Store) getLocked(ctx context.Context, id string) (*booking.Booking, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, reference, hotel_id, guest_id, service_id, provider_id, kind, service_type,
		       status, pricing_json, sla_json, payment_method, payment_status, paid_at,
		       schedule_start, schedule_end, version, created_at, updated_at
		FROM bookings WHERE id = ?
	`, id)

	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, booking.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	history, err := s.loadHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	b.History = history
	return b, nil
}

func (s *Store) loadHistory(ctx context.Context, bookingID string) ([]lifecycle.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, actor_id, at, note FROM booking_history
		WHERE booking_id = ? ORDER BY seq ASC
	`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var history []lifecycle.Entry
	for rows.Next() {
		var e lifecycle.Entry
		var status, at string
		var actor, note sql.NullString
		if err := rows.Scan(&status, &actor, &at, &note); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Status = lifecycle.Status(status)
		e.ActorID = actor.String
		e.Note = note.String
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		history = append(history, e)
	}
	return history, rows.Err()
}

// Update writes the booking conditionally on the expected version and
// appends any new history rows in the same transaction. A stale version
// affects zero rows and returns ErrConcurrencyConflict.
func (s *Store) Update(ctx context.Context, b *booking.Booking, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	pricingJSON, err := json.Marshal(b.Pricing)
	if err != nil {
		return fmt.Errorf("marshal pricing: %w", err)
	}
	slaJSON, err := json.Marshal(b.SLA)
	if err != nil {
		return fmt.Errorf("marshal sla: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE bookings SET
			status = ?, provider_id = ?, pricing_json = ?, sla_json = ?,
			payment_method = ?, payment_status = ?, paid_at = ?,
			schedule_start = ?, schedule_end = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`,
		string(b.Status), b.ProviderID, string(pricingJSON), string(slaJSON),
		string(b.Payment.Method), string(b.Payment.Status), formatTimePtr(b.Payment.PaidAt),
		scheduleStart(b.Schedule), scheduleEnd(b.Schedule),
		b.UpdatedAt.UTC().Format(time.RFC3339Nano),
		b.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either absent or a stale version; disambiguate for the caller.
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM bookings WHERE id = ?", b.ID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return booking.ErrNotFound
		}
		return booking.ErrConcurrencyConflict
	}

	// Append history rows past the stored count. Existing rows are
	// never touched.
	var stored int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM booking_history WHERE booking_id = ?", b.ID).Scan(&stored); err != nil {
		return err
	}
	for i := stored; i < len(b.History); i++ {
		if err := insertHistory(ctx, tx, b.ID, i, b.History[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	b.Version = expectedVersion + 1
	return nil
}

// ListByHotel returns all bookings of a hotel, history included.
func (s *Store) ListByHotel(ctx context.Context, hotelID string) ([]*booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reference, hotel_id, guest_id, service_id, provider_id, kind, service_type,
		       status, pricing_json, sla_json, payment_method, payment_status, paid_at,
		       schedule_start, schedule_end, version, created_at, updated_at
		FROM bookings WHERE hotel_id = ? ORDER BY created_at ASC
	`, hotelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var out []*booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, b := range out {
		history, err := s.loadHistory(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		b.History = history
	}
	return out, nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, bookingID string, seq int, e lifecycle.Entry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO booking_history (booking_id, seq, status, actor_id, at, note)
		VALUES (?, ?, ?, ?, ?, ?)
	`, bookingID, seq, string(e.Status), nullString(e.ActorID), e.At.UTC().Format(time.RFC3339Nano), nullString(e.Note))
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*booking.Booking, error) {
	var (
		b                          booking.Booking
		kind, status               string
		serviceID, providerID      sql.NullString
		serviceType                sql.NullString
		pricingJSON, slaJSON       string
		payMethod, payStatus       sql.NullString
		paidAt, schedStart         sql.NullString
		schedEnd                   sql.NullString
		createdAt, updatedAt       string
	)

	err := row.Scan(
		&b.ID, &b.Reference, &b.HotelID, &b.GuestID, &serviceID, &providerID,
		&kind, &serviceType, &status, &pricingJSON, &slaJSON,
		&payMethod, &payStatus, &paidAt, &schedStart, &schedEnd,
		&b.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.ServiceID = serviceID.String
	b.ProviderID = providerID.String
	b.Kind = lifecycle.Kind(kind)
	b.ServiceType = serviceType.String
	b.Status = lifecycle.Status(status)

	if err := json.Unmarshal([]byte(pricingJSON), &b.Pricing); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pricing: %w", err)
	}
	if err := json.Unmarshal([]byte(slaJSON), &b.SLA); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sla: %w", err)
	}

	b.Payment = booking.Payment{
		Method: booking.PaymentMethod(payMethod.String),
		Status: booking.PaymentStatus(payStatus.String),
		PaidAt: parseTimePtr(paidAt),
	}
	if schedStart.Valid && schedEnd.Valid {
		start, _ := time.Parse(time.RFC3339Nano, schedStart.String)
		end, _ := time.Parse(time.RFC3339Nano, schedEnd.String)
		b.Schedule = &booking.Schedule{StartDate: start, EndDate: end}
	}
	b.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	b.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &b, nil
}

// =============================================================================
// FEEDBACK STORE (booking.FeedbackStore via FeedbackStore facet)
// =============================================================================

// CreateFeedback inserts a feedback row; the unique booking index keeps
// one feedback per booking.
func (s *Store) CreateFeedback(ctx context.Context, f *booking.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, booking_id, guest_id, hotel_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.BookingID, f.GuestID, f.HotelID, f.Rating, f.Comment, f.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueConstraintError(err) {
			return booking.ErrFeedbackExists
		}
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

func (s *Store) GetByBooking(ctx context.Context, bookingID string) (*booking.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var f booking.Feedback
	var comment sql.NullString
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, booking_id, guest_id, hotel_id, rating, comment, created_at
		FROM feedback WHERE booking_id = ?
	`, bookingID).Scan(&f.ID, &f.BookingID, &f.GuestID, &f.HotelID, &f.Rating, &comment, &createdAt)
	if err == sql.ErrNoRows {
		return nil, booking.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	f.Comment = comment.String
	f.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &f, nil
}

// =============================================================================
// PROVIDER STORE (provider.Store via ProviderStore facet)
// =============================================================================

var _ provider.AssignmentStore = (*Store)(nil)

// Put upserts a provider record.
func (s *Store) Put(ctx context.Context, p *provider.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO providers
		(id, hotel_id, name, type, markup_percent, markup_set_by, markup_set_at, markup_reason, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			markup_percent = excluded.markup_percent,
			markup_set_by = excluded.markup_set_by,
			markup_set_at = excluded.markup_set_at,
			markup_reason = excluded.markup_reason,
			active = excluded.active
	`,
		p.ID, p.HotelID, p.Name, string(p.Type),
		p.Markup.Percent.String(), p.Markup.SetBy, formatTime(p.Markup.SetAt), p.Markup.Reason,
		p.Active, p.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save provider: %w", err)
	}
	return nil
}

// GetProvider loads a provider by id. The method carries the Provider
// suffix because the booking facet already owns Get on this receiver.
func (s *Store) GetProvider(ctx context.Context, id string) (*provider.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryProvider(ctx, "SELECT id, hotel_id, name, type, markup_percent, markup_set_by, markup_set_at, markup_reason, active, created_at FROM providers WHERE id = ?", id)
}

func (s *Store) GetInternal(ctx context.Context, hotelID string) (*provider.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryProvider(ctx, `
		SELECT id, hotel_id, name, type, markup_percent, markup_set_by, markup_set_at, markup_reason, active, created_at
		FROM providers WHERE hotel_id = ? AND type = 'internal' AND active = TRUE
		ORDER BY created_at ASC LIMIT 1
	`, hotelID)
}

func (s *Store) queryProvider(ctx context.Context, query string, args ...any) (*provider.Provider, error) {
	var (
		p                      provider.Provider
		typ, percent           string
		setBy, setAt, reason   sql.NullString
		name                   sql.NullString
		createdAt              string
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&p.ID, &p.HotelID, &name, &typ, &percent, &setBy, &setAt, &reason, &p.Active, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, provider.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Name = name.String
	p.Type = pricing.ProviderType(typ)
	p.Markup = provider.Markup{
		Percent: mustDecimal(percent),
		SetBy:   setBy.String,
		Reason:  reason.String,
	}
	if setAt.Valid {
		p.Markup.SetAt, _ = time.Parse(time.RFC3339Nano, setAt.String)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &p, nil
}

func (s *Store) ListByHotelProviders(ctx context.Context, hotelID string) ([]*provider.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hotel_id, name, type, markup_percent, markup_set_by, markup_set_at, markup_reason, active, created_at
		FROM providers WHERE hotel_id = ? ORDER BY created_at ASC
	`, hotelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*provider.Provider
	for rows.Next() {
		var (
			p                    provider.Provider
			typ, percent         string
			setBy, setAt, reason sql.NullString
			name                 sql.NullString
			createdAt            string
		)
		if err := rows.Scan(&p.ID, &p.HotelID, &name, &typ, &percent, &setBy, &setAt, &reason, &p.Active, &createdAt); err != nil {
			return nil, err
		}
		p.Name = name.String
		p.Type = pricing.ProviderType(typ)
		p.Markup = provider.Markup{Percent: mustDecimal(percent), SetBy: setBy.String, Reason: reason.String}
		if setAt.Valid {
			p.Markup.SetAt, _ = time.Parse(time.RFC3339Nano, setAt.String)
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, &p)
	}
	return out, rows.Err()
}

// Assign upserts a hotel's category-level provider assignment.
func (s *Store) Assign(ctx context.Context, hotelID, category, providerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO category_assignments (hotel_id, category, provider_id)
		VALUES (?, ?, ?)
		ON CONFLICT(hotel_id, category) DO UPDATE SET provider_id = excluded.provider_id
	`, hotelID, category, providerID)
	return err
}

func (s *Store) AssignedProvider(ctx context.Context, hotelID, category string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var providerID string
	err := s.db.QueryRowContext(ctx,
		"SELECT provider_id FROM category_assignments WHERE hotel_id = ? AND category = ?",
		hotelID, category,
	).Scan(&providerID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return providerID, nil
}

// =============================================================================
// LOYALTY STORES (MemberStore, MarkerStore, ProgramStore, GuestStays)
// =============================================================================

var (
	_ loyalty.ProgramStore = (*Store)(nil)
	_ loyalty.GuestStays   = (*Store)(nil)
)

// GetMember loads a loyalty member.
func (s *Store) GetMember(ctx context.Context, guestID, hotelID string) (*loyalty.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		m           loyalty.Member
		tier        string
		historyJSON sql.NullString
		enrolledAt  string
		lastAct     string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT guest_id, hotel_id, tier, lifetime_points, available_points,
		       tier_history_json, active, enrolled_at, last_activity
		FROM loyalty_members WHERE guest_id = ? AND hotel_id = ?
	`, guestID, hotelID).Scan(
		&m.GuestID, &m.HotelID, &tier, &m.LifetimePoints, &m.AvailablePoints,
		&historyJSON, &m.Active, &enrolledAt, &lastAct,
	)
	if err == sql.ErrNoRows {
		return nil, loyalty.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Tier = loyalty.Tier(tier)
	if historyJSON.Valid && historyJSON.String != "" {
		json.Unmarshal([]byte(historyJSON.String), &m.TierHistory)
	}
	m.EnrolledAt, _ = time.Parse(time.RFC3339Nano, enrolledAt)
	m.LastActivity, _ = time.Parse(time.RFC3339Nano, lastAct)
	return &m, nil
}

// PutMember upserts a loyalty member.
func (s *Store) PutMember(ctx context.Context, m *loyalty.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	historyJSON, _ := json.Marshal(m.TierHistory)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO loyalty_members
		(guest_id, hotel_id, tier, lifetime_points, available_points, tier_history_json, active, enrolled_at, last_activity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guest_id, hotel_id) DO UPDATE SET
			tier = excluded.tier,
			lifetime_points = excluded.lifetime_points,
			available_points = excluded.available_points,
			tier_history_json = excluded.tier_history_json,
			active = excluded.active,
			last_activity = excluded.last_activity
	`,
		m.GuestID, m.HotelID, string(m.Tier), m.LifetimePoints, m.AvailablePoints,
		string(historyJSON), m.Active,
		m.EnrolledAt.UTC().Format(time.RFC3339Nano),
		m.LastActivity.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}
	return nil
}

// PutMarker inserts an accrual marker. The primary key on booking_id
// turns a redelivery into ErrDuplicateAccrual.
func (s *Store) PutMarker(ctx context.Context, m loyalty.Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO loyalty_accruals (booking_id, guest_id, hotel_id, points, awarded_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.BookingID, m.GuestID, m.HotelID, m.Points, m.AwardedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueConstraintError(err) {
			return loyalty.ErrDuplicateAccrual
		}
		return fmt.Errorf("failed to insert accrual marker: %w", err)
	}
	return nil
}

// DeleteMarker releases an accrual marker whose member write failed.
func (s *Store) DeleteMarker(ctx context.Context, bookingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM loyalty_accruals WHERE booking_id = ?", bookingID)
	if err != nil {
		return fmt.Errorf("failed to delete accrual marker: %w", err)
	}
	return nil
}

// MarkerExists checks whether points were already awarded for a booking.
func (s *Store) MarkerExists(ctx context.Context, bookingID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM loyalty_accruals WHERE booking_id = ?", bookingID,
	).Scan(&count)
	return count > 0, err
}

// SaveProgram stores a hotel's loyalty program configuration.
func (s *Store) SaveProgram(ctx context.Context, hotelID string, p loyalty.Program) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.HotelID = hotelID
	programJSON, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO hotel_programs (hotel_id, program_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(hotel_id) DO UPDATE SET
			program_json = excluded.program_json,
			updated_at = excluded.updated_at
	`, hotelID, string(programJSON), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// ProgramFor resolves a hotel's program, falling back to the default.
func (s *Store) ProgramFor(ctx context.Context, hotelID string) (loyalty.Program, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var programJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT program_json FROM hotel_programs WHERE hotel_id = ?", hotelID,
	).Scan(&programJSON)
	if err == sql.ErrNoRows {
		p := s.defaultProgram
		p.HotelID = hotelID
		return p, nil
	}
	if err != nil {
		return loyalty.Program{}, err
	}

	var p loyalty.Program
	if err := json.Unmarshal([]byte(programJSON), &p); err != nil {
		return loyalty.Program{}, fmt.Errorf("failed to unmarshal program: %w", err)
	}
	return p, nil
}

// SaveStay upserts a guest's stay window at a hotel.
func (s *Store) SaveStay(ctx context.Context, guestID, hotelID string, checkIn, checkOut time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guest_stays (guest_id, hotel_id, check_in, check_out)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(guest_id, hotel_id) DO UPDATE SET
			check_in = excluded.check_in,
			check_out = excluded.check_out
	`, guestID, hotelID, checkIn.UTC().Format(time.RFC3339Nano), checkOut.UTC().Format(time.RFC3339Nano))
	return err
}

// Stay implements loyalty.GuestStays.
func (s *Store) Stay(ctx context.Context, guestID, hotelID string) (time.Time, time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var in, out string
	err := s.db.QueryRowContext(ctx,
		"SELECT check_in, check_out FROM guest_stays WHERE guest_id = ? AND hotel_id = ?",
		guestID, hotelID,
	).Scan(&in, &out)
	if err == sql.ErrNoRows {
		return time.Time{}, time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	checkIn, _ := time.Parse(time.RFC3339Nano, in)
	checkOut, _ := time.Parse(time.RFC3339Nano, out)
	return checkIn, checkOut, true, nil
}

// =============================================================================
// INTERFACE ADAPTERS
// =============================================================================

// The Store implements several interfaces whose method names collide
// (booking.Store.Get vs provider.Store.Get, and the three Put/Exists
// pairs). These thin adapters expose each facet under its own receiver.

// ProviderStore returns the provider.Store facet.
func (s *Store) ProviderStore() provider.Store { return providerFacet{s} }

type providerFacet struct{ s *Store }

func (f providerFacet) Put(ctx context.Context, p *provider.Provider) error { return f.s.Put(ctx, p) }
func (f providerFacet) Get(ctx context.Context, id string) (*provider.Provider, error) {
	return f.s.GetProvider(ctx, id)
}
func (f providerFacet) GetInternal(ctx context.Context, hotelID string) (*provider.Provider, error) {
	return f.s.GetInternal(ctx, hotelID)
}
func (f providerFacet) ListByHotel(ctx context.Context, hotelID string) ([]*provider.Provider, error) {
	return f.s.ListByHotelProviders(ctx, hotelID)
}

// MemberStore returns the loyalty.MemberStore facet.
func (s *Store) MemberStore() loyalty.MemberStore { return memberFacet{s} }

type memberFacet struct{ s *Store }

func (f memberFacet) Get(ctx context.Context, guestID, hotelID string) (*loyalty.Member, error) {
	return f.s.GetMember(ctx, guestID, hotelID)
}
func (f memberFacet) Put(ctx context.Context, m *loyalty.Member) error {
	return f.s.PutMember(ctx, m)
}

// MarkerStore returns the loyalty.MarkerStore facet.
func (s *Store) MarkerStore() loyalty.MarkerStore { return markerFacet{s} }

type markerFacet struct{ s *Store }

func (f markerFacet) Put(ctx context.Context, m loyalty.Marker) error { return f.s.PutMarker(ctx, m) }
func (f markerFacet) Exists(ctx context.Context, bookingID string) (bool, error) {
	return f.s.MarkerExists(ctx, bookingID)
}
func (f markerFacet) Delete(ctx context.Context, bookingID string) error {
	return f.s.DeleteMarker(ctx, bookingID)
}

// FeedbackStore returns the booking.FeedbackStore facet.
func (s *Store) FeedbackStore() booking.FeedbackStore { return feedbackFacet{s} }

type feedbackFacet struct{ s *Store }

func (f feedbackFacet) Create(ctx context.Context, fb *booking.Feedback) error {
	return f.s.CreateFeedback(ctx, fb)
}
func (f feedbackFacet) GetByBooking(ctx context.Context, bookingID string) (*booking.Feedback, error) {
	return f.s.GetByBooking(ctx, bookingID)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"booking_history", "bookings", "providers", "category_assignments",
		"loyalty_accruals", "loyalty_members", "feedback", "guest_stays", "hotel_programs",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return formatTime(*t)
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func scheduleStart(s *booking.Schedule) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return formatTime(s.StartDate)
}

func scheduleEnd(s *booking.Schedule) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return formatTime(s.EndDate)
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
