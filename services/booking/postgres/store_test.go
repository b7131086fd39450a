package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/altarlane/marketplace/internal/database"
	"github.com/altarlane/marketplace/internal/domain/booking"
)

var now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("expectations: %v", err)
		}
		db.Close()
	})
	return NewStore(sqlx.NewDb(db, "postgres")), mock
}

func hold() *booking.Booking {
	exp := now.Add(30 * time.Minute)
	return &booking.Booking{
		ID: "b1", OrderID: "o1", UserID: "u1", VendorID: "v1", PackageID: "p1",
		EventDate: "2026-09-12", StartTime: "16:00", EndTime: "22:00", GuestCount: 120,
		Status: booking.StatusHeld, HoldExpiresAt: &exp, CreatedAt: now, UpdatedAt: now,
	}
}

func TestInsertHold_LocksCountsInserts(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WithArgs("v1|2026-09-12").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM bookings`)).
		WithArgs("v1", "2026-09-12", now).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO bookings`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := store.InsertHold(context.Background(), hold(), 2, now)
	if err != nil || !ok {
		t.Fatalf("InsertHold = %v, %v", ok, err)
	}
}

func TestInsertHold_FullDateRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`pg_advisory_xact_lock`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM bookings`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	ok, err := store.InsertHold(context.Background(), hold(), 1, now)
	if err != nil || ok {
		t.Fatalf("InsertHold = %v, %v", ok, err)
	}
}

func TestInsertHold_DatabaseError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	_, err := store.InsertHold(context.Background(), hold(), 1, now)
	if !errors.Is(err, database.ErrDatabaseError) {
		t.Fatalf("err = %v, want ErrDatabaseError", err)
	}
}

func TestSetOrderStatus(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE bookings SET status = $1`)).
		WithArgs("confirmed", now, "o1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := store.SetOrderStatus(context.Background(), "o1", []booking.Status{booking.StatusHeld}, booking.StatusConfirmed, now)
	if err != nil {
		t.Fatalf("SetOrderStatus: %v", err)
	}
	if n != 2 {
		t.Errorf("changed = %d, want 2", n)
	}
}

func TestIsBlackoutAndCount(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM vendor_blackouts`)).
		WithArgs("v1", "2026-09-12").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM bookings`)).
		WithArgs("v1", "2026-09-12", now).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	blocked, err := store.IsBlackout(context.Background(), "v1", "2026-09-12")
	if err != nil || !blocked {
		t.Fatalf("IsBlackout = %v, %v", blocked, err)
	}
	n, err := store.CountActive(context.Background(), "v1", "2026-09-12", now)
	if err != nil || n != 3 {
		t.Fatalf("CountActive = %d, %v", n, err)
	}
}

func TestListByUser(t *testing.T) {
	store, mock := newMockStore(t)
	cols := []string{"id", "order_id", "user_id", "vendor_id", "package_id", "event_date", "start_time", "end_time",
		"guest_count", "status", "hold_expires_at", "created_at", "updated_at"}
	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE user_id = $1`)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("b1", "o1", "u1", "v1", "p1", "2026-09-12", "16:00", "22:00", 120, "confirmed", nil, now, now))

	got, err := store.ListByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(got) != 1 || got[0].Status != booking.StatusConfirmed || got[0].HoldExpiresAt != nil {
		t.Fatalf("bookings = %+v", got)
	}
}

func TestCancelBookings_Empty(t *testing.T) {
	store, _ := newMockStore(t)
	if err := store.CancelBookings(context.Background(), nil, now); err != nil {
		t.Fatalf("CancelBookings: %v", err)
	}
}
