package supabase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/altarlane/marketplace/internal/database"
	"github.com/altarlane/marketplace/internal/domain/booking"
)

const (
	tableBookings  = "bookings"
	tableBlackouts = "vendor_blackouts"
	tableTimeline  = "timeline_events"
)

// RepositoryInterface defines booking data access.
type RepositoryInterface interface {
	IsBlackout(ctx context.Context, vendorID, date string) (bool, error)
	CountActive(ctx context.Context, vendorID, date string, now time.Time) (int, error)
	InsertHold(ctx context.Context, b *booking.Booking, perDay int, now time.Time) (bool, error)
	SetOrderStatus(ctx context.Context, orderID string, from []booking.Status, to booking.Status, now time.Time) (int, error)
	CancelBookings(ctx context.Context, ids []string, now time.Time) error
	ListByUser(ctx context.Context, userID string) ([]booking.Booking, error)
	ListByOrder(ctx context.Context, orderID string) ([]booking.Booking, error)
	HasConfirmed(ctx context.Context, userID, vendorID string) (bool, error)

	ListTimeline(ctx context.Context, userID string) ([]booking.TimelineEvent, error)
	GetTimelineEvent(ctx context.Context, id string) (*booking.TimelineEvent, error)
	CreateTimelineEvent(ctx context.Context, e *booking.TimelineEvent) error
	UpdateTimelineEvent(ctx context.Context, e *booking.TimelineEvent) error
	DeleteTimelineEvent(ctx context.Context, id string) error
}

var _ RepositoryInterface = (*Repository)(nil)

// Repository provides booking data access over PostgREST.
//
// PostgREST cannot lock, so InsertHold counts then inserts. Two concurrent
// holds for the last slot can both succeed; deployments that need strict
// capacity set DATABASE_URL and use the postgres store instead.
type Repository struct {
	base database.RepositoryInterface
}

func NewRepository(base database.RepositoryInterface) *Repository {
	return &Repository{base: base}
}

// IsBlackout reports whether the vendor blocked the date.
func (r *Repository) IsBlackout(ctx context.Context, vendorID, date string) (bool, error) {
	q := database.NewQuery().Eq("vendor_id", vendorID).Eq("date", date).Select("vendor_id").Limit(1)
	rows, err := database.GenericListWithQuery[Blackout](r.base, ctx, tableBlackouts, q.Build())
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// CountActive counts confirmed bookings and unexpired holds for a vendor on a date.
func (r *Repository) CountActive(ctx context.Context, vendorID, date string, now time.Time) (int, error) {
	q := database.NewQuery().
		Eq("vendor_id", vendorID).
		Eq("event_date", date).
		In("status", []string{string(booking.StatusHeld), string(booking.StatusConfirmed)}).
		Select("id,status,hold_expires_at")
	rows, err := database.GenericListWithQuery[Booking](r.base, ctx, tableBookings, q.Build())
	if err != nil {
		return 0, err
	}
	n := 0
	for _, row := range rows {
		if row.ToDomain().Occupies(now) {
			n++
		}
	}
	return n, nil
}

// InsertHold stores b when fewer than perDay bookings occupy the date.
// It reports false without inserting when the date is full.
func (r *Repository) InsertHold(ctx context.Context, b *booking.Booking, perDay int, now time.Time) (bool, error) {
	if b == nil {
		return false, fmt.Errorf("%w: booking cannot be nil", database.ErrInvalidInput)
	}
	n, err := r.CountActive(ctx, b.VendorID, b.EventDate, now)
	if err != nil {
		return false, err
	}
	if perDay <= 0 {
		perDay = 1
	}
	if n >= perDay {
		return false, nil
	}
	err = database.GenericCreate[Booking](r.base, ctx, tableBookings, BookingFromDomain(*b), func(rows []Booking) {
		if len(rows) > 0 {
			*b = rows[0].ToDomain()
		}
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

type statusPatch struct {
	Status        string     `json:"status"`
	HoldExpiresAt *time.Time `json:"hold_expires_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// SetOrderStatus moves an order's bookings from any of the from states to to
// and returns how many changed. Leaving the held state clears the hold expiry.
func (r *Repository) SetOrderStatus(ctx context.Context, orderID string, from []booking.Status, to booking.Status, now time.Time) (int, error) {
	if strings.TrimSpace(orderID) == "" {
		return 0, fmt.Errorf("%w: order id required", database.ErrInvalidInput)
	}
	q := database.NewQuery().Eq("order_id", orderID).In("status", statusStrings(from)).Select("id")
	rows, err := database.GenericUpdateWhere[Booking](r.base, ctx, tableBookings, q.Build(),
		statusPatch{Status: string(to), UpdatedAt: now.UTC()})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// CancelBookings cancels the given bookings unless already terminal.
func (r *Repository) CancelBookings(ctx context.Context, ids []string, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	q := database.NewQuery().In("id", ids).In("status", []string{string(booking.StatusHeld), string(booking.StatusConfirmed)})
	_, err := database.GenericUpdateWhere[Booking](r.base, ctx, tableBookings, q.Build(),
		statusPatch{Status: string(booking.StatusCancelled), UpdatedAt: now.UTC()})
	return err
}

// ListByUser lists a user's bookings by event date.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]booking.Booking, error) {
	q := database.NewQuery().Eq("user_id", userID).OrderAsc("event_date").OrderAsc("start_time")
	return r.listBookings(ctx, q)
}

// ListByOrder lists the bookings placed for an order.
func (r *Repository) ListByOrder(ctx context.Context, orderID string) ([]booking.Booking, error) {
	return r.listBookings(ctx, database.NewQuery().Eq("order_id", orderID).OrderAsc("created_at"))
}

func (r *Repository) listBookings(ctx context.Context, q *database.Query) ([]booking.Booking, error) {
	rows, err := database.GenericListWithQuery[Booking](r.base, ctx, tableBookings, q.Build())
	if err != nil {
		return nil, err
	}
	out := make([]booking.Booking, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToDomain())
	}
	return out, nil
}

// HasConfirmed reports whether the user holds a confirmed booking with the vendor.
func (r *Repository) HasConfirmed(ctx context.Context, userID, vendorID string) (bool, error) {
	q := database.NewQuery().
		Eq("user_id", userID).
		Eq("vendor_id", vendorID).
		Eq("status", string(booking.StatusConfirmed)).
		Select("id").
		Limit(1)
	rows, err := database.GenericListWithQuery[Booking](r.base, ctx, tableBookings, q.Build())
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func statusStrings(in []booking.Status) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, string(s))
	}
	return out
}

// ListTimeline lists a user's timeline events.
func (r *Repository) ListTimeline(ctx context.Context, userID string) ([]booking.TimelineEvent, error) {
	q := database.NewQuery().Eq("user_id", userID).OrderAsc("starts_at")
	rows, err := database.GenericListWithQuery[TimelineEvent](r.base, ctx, tableTimeline, q.Build())
	if err != nil {
		return nil, err
	}
	out := make([]booking.TimelineEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToDomain())
	}
	return out, nil
}

func (r *Repository) GetTimelineEvent(ctx context.Context, id string) (*booking.TimelineEvent, error) {
	row, err := database.GenericGetByField[TimelineEvent](r.base, ctx, tableTimeline, "id", id)
	if err != nil {
		return nil, err
	}
	e := row.ToDomain()
	return &e, nil
}

func (r *Repository) CreateTimelineEvent(ctx context.Context, e *booking.TimelineEvent) error {
	if e == nil {
		return fmt.Errorf("%w: timeline event cannot be nil", database.ErrInvalidInput)
	}
	return database.GenericCreate[TimelineEvent](r.base, ctx, tableTimeline, TimelineEventFromDomain(*e), nil)
}

func (r *Repository) UpdateTimelineEvent(ctx context.Context, e *booking.TimelineEvent) error {
	if e == nil {
		return fmt.Errorf("%w: timeline event cannot be nil", database.ErrInvalidInput)
	}
	return database.GenericUpdate(r.base, ctx, tableTimeline, "id", e.ID, TimelineEventFromDomain(*e))
}

func (r *Repository) DeleteTimelineEvent(ctx context.Context, id string) error {
	return database.GenericDelete(r.base, ctx, tableTimeline, "id", id)
}
