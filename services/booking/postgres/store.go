// Package postgres implements the booking availability and hold store over a
// direct Postgres connection. Holds are serialized per vendor and date with a
// transaction-scoped advisory lock, so capacity is never oversold.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/altarlane/marketplace/internal/database"
	"github.com/altarlane/marketplace/internal/domain/booking"
)

const bookingColumns = `id, order_id, user_id, vendor_id, package_id,
	event_date::text AS event_date,
	to_char(start_time, 'HH24:MI') AS start_time,
	to_char(end_time, 'HH24:MI') AS end_time,
	guest_count, status, hold_expires_at, created_at, updated_at`

const activeFilter = `vendor_id = $1 AND event_date = $2
	AND (status = 'confirmed' OR (status = 'held' AND (hold_expires_at IS NULL OR hold_expires_at > $3)))`

// Store is a sqlx-backed booking store.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func dbErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", database.ErrDatabaseError, op, err)
}

// IsBlackout reports whether the vendor blocked the date.
func (s *Store) IsBlackout(ctx context.Context, vendorID, date string) (bool, error) {
	var blocked bool
	err := s.db.GetContext(ctx, &blocked,
		`SELECT EXISTS (SELECT 1 FROM vendor_blackouts WHERE vendor_id = $1 AND date = $2)`, vendorID, date)
	if err != nil {
		return false, dbErr("blackout lookup", err)
	}
	return blocked, nil
}

// CountActive counts confirmed bookings and unexpired holds.
func (s *Store) CountActive(ctx context.Context, vendorID, date string, now time.Time) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM bookings WHERE `+activeFilter, vendorID, date, now.UTC()); err != nil {
		return 0, dbErr("count bookings", err)
	}
	return n, nil
}

// InsertHold stores b if the vendor still has room on the date.
func (s *Store) InsertHold(ctx context.Context, b *booking.Booking, perDay int, now time.Time) (bool, error) {
	if b == nil {
		return false, fmt.Errorf("%w: booking cannot be nil", database.ErrInvalidInput)
	}
	if perDay <= 0 {
		perDay = 1
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, dbErr("begin", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, b.VendorID+"|"+b.EventDate); err != nil {
		return false, dbErr("lock vendor date", err)
	}
	var n int
	if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM bookings WHERE `+activeFilter, b.VendorID, b.EventDate, now.UTC()); err != nil {
		return false, dbErr("count bookings", err)
	}
	if n >= perDay {
		return false, nil
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO bookings
		(id, order_id, user_id, vendor_id, package_id, event_date, start_time, end_time,
		 guest_count, status, hold_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		b.ID, b.OrderID, b.UserID, b.VendorID, b.PackageID, b.EventDate, b.StartTime, b.EndTime,
		b.GuestCount, string(b.Status), b.HoldExpiresAt, b.CreatedAt.UTC(), b.UpdatedAt.UTC())
	if err != nil {
		return false, dbErr("insert hold", err)
	}
	if err := tx.Commit(); err != nil {
		return false, dbErr("commit", err)
	}
	return true, nil
}

// SetOrderStatus moves an order's bookings from any of the from states to to.
func (s *Store) SetOrderStatus(ctx context.Context, orderID string, from []booking.Status, to booking.Status, now time.Time) (int, error) {
	if orderID == "" {
		return 0, fmt.Errorf("%w: order id required", database.ErrInvalidInput)
	}
	states := make([]string, 0, len(from))
	for _, st := range from {
		states = append(states, string(st))
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE bookings SET status = $1, hold_expires_at = NULL, updated_at = $2
		 WHERE order_id = $3 AND status = ANY($4)`,
		string(to), now.UTC(), orderID, pq.Array(states))
	if err != nil {
		return 0, dbErr("update order bookings", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbErr("rows affected", err)
	}
	return int(n), nil
}

// CancelBookings cancels the given bookings unless already terminal.
func (s *Store) CancelBookings(ctx context.Context, ids []string, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE bookings SET status = 'cancelled', hold_expires_at = NULL, updated_at = $1
		 WHERE id = ANY($2) AND status IN ('held', 'confirmed')`,
		now.UTC(), pq.Array(ids))
	if err != nil {
		return dbErr("cancel bookings", err)
	}
	return nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]booking.Booking, error) {
	return s.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE user_id = $1 ORDER BY event_date, start_time`, userID)
}

func (s *Store) ListByOrder(ctx context.Context, orderID string) ([]booking.Booking, error) {
	return s.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE order_id = $1 ORDER BY created_at`, orderID)
}

func (s *Store) list(ctx context.Context, query string, arg string) ([]booking.Booking, error) {
	out := []booking.Booking{}
	if err := s.db.SelectContext(ctx, &out, query, arg); err != nil {
		if err == sql.ErrNoRows {
			return out, nil
		}
		return nil, dbErr("list bookings", err)
	}
	return out, nil
}

// HasConfirmed reports whether the user holds a confirmed booking with the vendor.
func (s *Store) HasConfirmed(ctx context.Context, userID, vendorID string) (bool, error) {
	var ok bool
	err := s.db.GetContext(ctx, &ok,
		`SELECT EXISTS (SELECT 1 FROM bookings WHERE user_id = $1 AND vendor_id = $2 AND status = 'confirmed')`,
		userID, vendorID)
	if err != nil {
		return false, dbErr("confirmed lookup", err)
	}
	return ok, nil
}
