package checkoutapi

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altarlane/marketplace/internal/database"
	"github.com/altarlane/marketplace/internal/domain/booking"
	"github.com/altarlane/marketplace/internal/domain/cart"
	"github.com/altarlane/marketplace/internal/domain/order"
	"github.com/altarlane/marketplace/internal/errors"
	"github.com/altarlane/marketplace/internal/logging"
	"github.com/altarlane/marketplace/pkg/testutil"
	"github.com/altarlane/marketplace/services/checkout/payments"
	checkoutsupabase "github.com/altarlane/marketplace/services/checkout/supabase"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type memOrders struct {
	mu     sync.Mutex
	orders map[string]order.Order
	fail   error
}

func (m *memOrders) CreateOrder(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.orders[o.ID] = *o
	return nil
}

func (m *memOrders) GetOrder(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, database.NotFoundError("orders", "id", id)
	}
	return &o, nil
}

func (m *memOrders) ListOrdersByUser(_ context.Context, userID string) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []order.Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrders) AttachSession(_ context.Context, id, sessionID, url, pi string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[id]
	o.CheckoutSessionID, o.CheckoutURL, o.PaymentIntentID = sessionID, url, pi
	m.orders[id] = o
	return nil
}

func (m *memOrders) TransitionStatus(_ context.Context, id string, from []order.Status, to order.Status, t checkoutsupabase.Transition) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if o.Status == s {
			o.Status = to
			if t.PaymentIntentID != "" {
				o.PaymentIntentID = t.PaymentIntentID
			}
			o.PaidAt = t.PaidAt
			m.orders[id] = o
			return true, nil
		}
	}
	return false, nil
}

func (m *memOrders) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Order
	for _, o := range m.orders {
		if o.Expired(now) && len(out) < limit {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrders) status(id string) order.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id].Status
}

type fakeCarts struct {
	carts      map[string]cart.Cart
	repriceErr error
	cleared    []string
}

func (f *fakeCarts) Get(_ context.Context, userID string) (cart.Cart, error) {
	if c, ok := f.carts[userID]; ok {
		return c, nil
	}
	return cart.New(userID), nil
}

func (f *fakeCarts) Reprice(ctx context.Context, userID string) (cart.Cart, error) {
	if f.repriceErr != nil {
		return cart.Cart{}, f.repriceErr
	}
	return f.Get(ctx, userID)
}

func (f *fakeCarts) Clear(_ context.Context, userID string) (cart.Cart, error) {
	f.cleared = append(f.cleared, userID)
	delete(f.carts, userID)
	return cart.New(userID), nil
}

type fakeBookings struct {
	holdErr  error
	held     map[string][]booking.HoldRequest
	status   map[string]booking.Status
	confirms int
}

func (f *fakeBookings) PlaceHolds(_ context.Context, orderID, _ string, items []booking.HoldRequest, _ time.Time) ([]booking.Booking, error) {
	if f.holdErr != nil {
		return nil, f.holdErr
	}
	f.held[orderID] = items
	f.status[orderID] = booking.StatusHeld
	return make([]booking.Booking, len(items)), nil
}

func (f *fakeBookings) ConfirmOrder(_ context.Context, orderID string) (int, error) {
	f.confirms++
	if f.status[orderID] != booking.StatusHeld {
		return 0, nil
	}
	f.status[orderID] = booking.StatusConfirmed
	return len(f.held[orderID]), nil
}

func (f *fakeBookings) ReleaseOrder(_ context.Context, orderID string, st booking.Status) (int, error) {
	if f.status[orderID] != booking.StatusHeld {
		return 0, nil
	}
	f.status[orderID] = st
	return len(f.held[orderID]), nil
}

type fakePayments struct {
	requests []payments.SessionRequest
	expired  []string
	err      error
}

func (f *fakePayments) CreateSession(_ context.Context, req payments.SessionRequest) (*payments.Session, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	id := "cs_" + req.OrderID
	return &payments.Session{ID: id, URL: "https://checkout.stripe.com/c/pay/" + id, ExpiresAt: req.ExpiresAt}, nil
}

func (f *fakePayments) ExpireSession(_ context.Context, id string) error {
	f.expired = append(f.expired, id)
	return nil
}

// ParseEvent accepts the signature "valid" and a JSON-encoded payments.Event.
func (f *fakePayments) ParseEvent(payload []byte, sig string) (*payments.Event, error) {
	if sig != "valid" {
		return nil, stdErrors.New("no signatures found matching the expected signature")
	}
	var ev payments.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

type fakeConversations struct {
	opened map[string][]string
	err    error
}

func (f *fakeConversations) OpenConversations(_ context.Context, userID, orderID string, vendorIDs []string) error {
	if f.err != nil {
		return f.err
	}
	f.opened[orderID] = vendorIDs
	return nil
}

type fixture struct {
	svc      *Service
	orders   *memOrders
	carts    *fakeCarts
	bookings *fakeBookings
	payments *fakePayments
	convs    *fakeConversations
	mr       *miniredis.Miniredis
	now      time.Time
}

func selection(vendorID, date string) *booking.Selection {
	return &booking.Selection{
		EventDetails: booking.EventDetails{Date: date, StartTime: "16:00", EndTime: "23:00", GuestCount: 120, EventType: "wedding"},
		VenueChoice:  booking.VenueChoice{VenueVendorID: "v-hall"},
		VendorID:     vendorID,
	}
}

func readyCart(userID string) cart.Cart {
	return cart.Cart{
		UserID: userID,
		Items: []cart.Item{
			{ID: "i1", PackageID: "p-hall", VendorID: "v-hall", Name: "Grand Hall", Category: "venue", UnitPriceCents: 500000, Quantity: 1, Selection: selection("v-hall", "2026-09-12")},
			{ID: "i2", PackageID: "p-flora", Name: "Peonies", Category: "florist", UnitPriceCents: 2500, Quantity: 10, Selection: selection("v-bloom", "2026-09-12")},
		},
		Discount: &cart.Discount{Code: "SPRING10", AmountOffCents: 5000},
		Totals:   cart.Totals{ItemCount: 11, SubtotalCents: 525000, DiscountCents: 5000, TotalCents: 520000},
		Currency: "usd",
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr, rdb := testutil.NewRedis(t)
	f := &fixture{
		orders:   &memOrders{orders: map[string]order.Order{}},
		carts:    &fakeCarts{carts: map[string]cart.Cart{"u1": readyCart("u1")}},
		bookings: &fakeBookings{held: map[string][]booking.HoldRequest{}, status: map[string]booking.Status{}},
		payments: &fakePayments{},
		convs:    &fakeConversations{opened: map[string][]string{}},
		mr:       mr,
		now:      testNow,
	}
	ids := 0
	svc, err := New(Config{
		Orders:        f.orders,
		Carts:         f.carts,
		Bookings:      f.bookings,
		Payments:      f.payments,
		Conversations: f.convs,
		Redis:         rdb,
		Currency:      "USD",
		HoldTTL:       45 * time.Minute,
		Logger:        logging.NewDiscard("checkout-test"),
		Now:           func() time.Time { return f.now },
		NewID: func() string {
			ids++
			return "order-" + string(rune('0'+ids))
		},
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func checkoutReq(userID string) CheckoutRequest {
	return CheckoutRequest{
		UserID:     userID,
		Email:      "couple@example.com",
		SuccessURL: "https://altarlane.test/orders/success",
		CancelURL:  "https://altarlane.test/cart",
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestCreateCheckout(t *testing.T) {
	f := newFixture(t)

	o, err := f.svc.CreateCheckout(context.Background(), checkoutReq("u1"))
	require.NoError(t, err)
	assert.Equal(t, "order-1", o.ID)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, "usd", o.Currency)
	assert.Equal(t, "SPRING10", o.PromoCode)
	assert.Equal(t, testNow.Add(45*time.Minute), o.ExpiresAt)
	assert.Equal(t, "cs_order-1", o.CheckoutSessionID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_order-1", o.CheckoutURL)

	stored := f.orders.orders["order-1"]
	assert.Equal(t, "cs_order-1", stored.CheckoutSessionID)
	assert.Len(t, f.bookings.held["order-1"], 2)
	assert.Equal(t, "v-bloom", f.bookings.held["order-1"][1].VendorID)

	require.Len(t, f.payments.requests, 1)
	req := f.payments.requests[0]
	assert.Equal(t, "Grand Hall — venue", req.Lines[0].Name)
	assert.Equal(t, int64(10), req.Lines[1].Quantity)
	assert.Equal(t, int64(5000), req.DiscountCents)
	assert.Equal(t, "couple@example.com", req.Email)
	assert.Empty(t, req.CouponID)
}

func TestCreateCheckout_UsesPromoCoupon(t *testing.T) {
	f := newFixture(t)
	c := f.carts.carts["u1"]
	c.Discount.StripeCouponID = "co_spring"
	f.carts.carts["u1"] = c

	_, err := f.svc.CreateCheckout(context.Background(), checkoutReq("u1"))
	require.NoError(t, err)
	assert.Equal(t, "co_spring", f.payments.requests[0].CouponID)
}

func TestCreateCheckout_HoldTTLClampedAboveSessionMinimum(t *testing.T) {
	f := newFixture(t)
	f.svc.holdTTL = payments.ClampSessionTTL(5 * time.Minute)
	o, err := f.svc.CreateCheckout(context.Background(), checkoutReq("u1"))
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(35*time.Minute), o.ExpiresAt)

	// The session request leaves room for the Stripe round trip.
	req := f.payments.requests[0]
	assert.Equal(t, o.ExpiresAt, req.ExpiresAt)
	assert.Greater(t, req.ExpiresAt.Sub(testNow), payments.MinSessionTTL)
}

func TestCreateCheckout_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bad := checkoutReq("u1")
	bad.SuccessURL = "/relative"
	_, err := f.svc.CreateCheckout(ctx, bad)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))

	_, err = f.svc.CreateCheckout(ctx, checkoutReq("empty"))
	assert.True(t, errors.IsCode(err, errors.CodeValidation))

	c := f.carts.carts["u1"]
	c.Items[1].Selection = nil
	f.carts.carts["u1"] = c
	_, err = f.svc.CreateCheckout(ctx, checkoutReq("u1"))
	require.True(t, errors.IsCode(err, errors.CodeValidation))
	assert.Equal(t, []string{"i2"}, errors.GetServiceError(err).Details["item_ids"])
	assert.Empty(t, f.orders.orders)
}

func TestCreateCheckout_RepriceConflict(t *testing.T) {
	f := newFixture(t)
	f.carts.repriceErr = errors.Conflict("some packages are no longer available").WithDetails("package_ids", []string{"p-flora"})

	_, err := f.svc.CreateCheckout(context.Background(), checkoutReq("u1"))
	assert.True(t, errors.IsCode(err, errors.CodeConflict))
	assert.Empty(t, f.orders.orders)
	assert.Empty(t, f.payments.requests)
}

func TestCreateCheckout_HoldsFail(t *testing.T) {
	f := newFixture(t)
	f.bookings.holdErr = errors.Conflict("vendor is not available on 2026-09-12")

	_, err := f.svc.CreateCheckout(context.Background(), checkoutReq("u1"))
	assert.True(t, errors.IsCode(err, errors.CodeConflict))
	assert.Equal(t, order.StatusFailed, f.orders.status("order-1"))
	assert.Empty(t, f.payments.requests)
}

func TestCreateCheckout_SessionFails(t *testing.T) {
	f := newFixture(t)
	f.payments.err = stdErrors.New("stripe down")

	_, err := f.svc.CreateCheckout(context.Background(), checkoutReq("u1"))
	assert.True(t, errors.IsCode(err, errors.CodeUnavailable))
	assert.Equal(t, order.StatusFailed, f.orders.status("order-1"))
	assert.Equal(t, booking.StatusCancelled, f.bookings.status["order-1"])
}

func TestCreateCheckout_StoreUnavailable(t *testing.T) {
	f := newFixture(t)
	f.orders.fail = database.ErrDatabaseError
	_, err := f.svc.CreateCheckout(context.Background(), checkoutReq("u1"))
	assert.True(t, errors.IsCode(err, errors.CodeUnavailable))
}

func event(t *testing.T, ev payments.Event) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return b
}

func checkedOut(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	_, err := f.svc.CreateCheckout(context.Background(), checkoutReq("u1"))
	require.NoError(t, err)
	return f
}

func TestWebhook_Paid(t *testing.T) {
	f := checkedOut(t)
	ctx := context.Background()
	payload := event(t, payments.Event{ID: "evt_1", Type: payments.EventSessionCompleted, OrderID: "order-1", PaymentStatus: "paid", PaymentIntentID: "pi_1"})

	require.NoError(t, f.svc.HandleWebhook(ctx, payload, "valid"))
	o := f.orders.orders["order-1"]
	assert.Equal(t, order.StatusPaid, o.Status)
	assert.Equal(t, "pi_1", o.PaymentIntentID)
	require.NotNil(t, o.PaidAt)
	assert.Equal(t, booking.StatusConfirmed, f.bookings.status["order-1"])
	assert.Equal(t, []string{"v-bloom", "v-hall"}, f.convs.opened["order-1"])
	assert.Equal(t, []string{"u1"}, f.carts.cleared)

	// Redelivery is a no-op.
	require.NoError(t, f.svc.HandleWebhook(ctx, payload, "valid"))
	assert.Equal(t, 1, f.bookings.confirms)
	assert.True(t, f.mr.Exists("stripe:event:evt_1"))
	assert.Equal(t, eventDedupeTTL, f.mr.TTL("stripe:event:evt_1"))
}

func TestWebhook_CompletedUnpaidWaitsForAsync(t *testing.T) {
	f := checkedOut(t)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleWebhook(ctx, event(t, payments.Event{ID: "evt_1", Type: payments.EventSessionCompleted, OrderID: "order-1", PaymentStatus: "unpaid"}), "valid"))
	assert.Equal(t, order.StatusPending, f.orders.status("order-1"))

	require.NoError(t, f.svc.HandleWebhook(ctx, event(t, payments.Event{ID: "evt_2", Type: payments.EventAsyncPaymentSucceeded, OrderID: "order-1"}), "valid"))
	assert.Equal(t, order.StatusPaid, f.orders.status("order-1"))
}

func TestWebhook_ExpiredAndFailed(t *testing.T) {
	f := checkedOut(t)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleWebhook(ctx, event(t, payments.Event{ID: "evt_1", Type: payments.EventSessionExpired, OrderID: "order-1"}), "valid"))
	assert.Equal(t, order.StatusExpired, f.orders.status("order-1"))
	assert.Equal(t, booking.StatusExpired, f.bookings.status["order-1"])

	g := checkedOut(t)
	require.NoError(t, g.svc.HandleWebhook(ctx, event(t, payments.Event{ID: "evt_2", Type: payments.EventAsyncPaymentFailed, OrderID: "order-1"}), "valid"))
	assert.Equal(t, order.StatusFailed, g.orders.status("order-1"))
	assert.Equal(t, booking.StatusCancelled, g.bookings.status["order-1"])
}

func TestWebhook_PaidIsNeverDowngraded(t *testing.T) {
	f := checkedOut(t)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleWebhook(ctx, event(t, payments.Event{ID: "evt_1", Type: payments.EventSessionCompleted, OrderID: "order-1", PaymentStatus: "paid"}), "valid"))
	require.NoError(t, f.svc.HandleWebhook(ctx, event(t, payments.Event{ID: "evt_2", Type: payments.EventSessionExpired, OrderID: "order-1"}), "valid"))
	assert.Equal(t, order.StatusPaid, f.orders.status("order-1"))
	assert.Equal(t, booking.StatusConfirmed, f.bookings.status["order-1"])
}

func TestWebhook_LatePaymentAfterExpiry(t *testing.T) {
	f := checkedOut(t)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleWebhook(ctx, event(t, payments.Event{ID: "evt_1", Type: payments.EventSessionExpired, OrderID: "order-1"}), "valid"))
	f.now = testNow.Add(50 * time.Minute)
	require.NoError(t, f.svc.HandleWebhook(ctx, event(t, payments.Event{ID: "evt_2", Type: payments.EventSessionCompleted, OrderID: "order-1", PaymentStatus: "paid"}), "valid"))
	assert.Equal(t, order.StatusPaid, f.orders.status("order-1"))
	assert.Equal(t, booking.StatusExpired, f.bookings.status["order-1"])
	assert.Empty(t, f.carts.cleared, "a late payment must not clear the current cart")

	// A second paid event for the same order still leaves the cart alone.
	require.NoError(t, f.svc.HandleWebhook(ctx, event(t, payments.Event{ID: "evt_3", Type: payments.EventAsyncPaymentSucceeded, OrderID: "order-1"}), "valid"))
	assert.Empty(t, f.carts.cleared)
}

func TestWebhook_IgnoredEvents(t *testing.T) {
	f := checkedOut(t)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleWebhook(ctx, event(t, payments.Event{ID: "evt_1", Type: "customer.created"}), "valid"))
	require.NoError(t, f.svc.HandleWebhook(ctx, event(t, payments.Event{ID: "evt_2", Type: payments.EventSessionCompleted, OrderID: "missing", PaymentStatus: "paid"}), "valid"))
	assert.Equal(t, order.StatusPending, f.orders.status("order-1"))
}

func TestWebhook_BadSignature(t *testing.T) {
	f := checkedOut(t)
	err := f.svc.HandleWebhook(context.Background(), event(t, payments.Event{ID: "evt_1"}), "forged")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidInput))
}

func TestWebhook_FailureReleasesClaim(t *testing.T) {
	f := checkedOut(t)
	ctx := context.Background()
	payload := event(t, payments.Event{ID: "evt_1", Type: payments.EventSessionCompleted, OrderID: "order-1", PaymentStatus: "paid"})

	f.convs.err = errors.Unavailable("messaging unavailable", nil)
	require.Error(t, f.svc.HandleWebhook(ctx, payload, "valid"))
	assert.False(t, f.mr.Exists("stripe:event:evt_1"))
	assert.Equal(t, order.StatusPaid, f.orders.status("order-1"))

	f.convs.err = nil
	require.NoError(t, f.svc.HandleWebhook(ctx, payload, "valid"))
	assert.Equal(t, []string{"v-bloom", "v-hall"}, f.convs.opened["order-1"])
	assert.Equal(t, []string{"u1"}, f.carts.cleared)
}

func TestExpireHolds(t *testing.T) {
	f := checkedOut(t)
	ctx := context.Background()

	n, err := f.svc.ExpireHolds(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.now = testNow.Add(46 * time.Minute)
	n, err = f.svc.ExpireHolds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, order.StatusExpired, f.orders.status("order-1"))
	assert.Equal(t, booking.StatusExpired, f.bookings.status["order-1"])
	assert.Equal(t, []string{"cs_order-1"}, f.payments.expired)

	job := f.svc.Job("@every 5m")
	assert.Equal(t, "expire-holds", job.Name)
	require.NoError(t, job.Run(ctx))
	assert.Len(t, f.payments.expired, 1)
}

func TestGetOrder_Ownership(t *testing.T) {
	f := checkedOut(t)
	ctx := context.Background()

	o, err := f.svc.GetOrder(ctx, "u1", "order-1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", o.ID)

	_, err = f.svc.GetOrder(ctx, "u2", "order-1")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
	_, err = f.svc.GetOrder(ctx, "u1", "missing")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	list, err := f.svc.ListOrders(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func serve(t *testing.T, svc *Service, method, path, body, userID string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	if userID != "" {
		ctx := logging.WithUserID(req.Context(), userID)
		req = req.WithContext(logging.WithEmail(ctx, "couple@example.com"))
	}
	rr := httptest.NewRecorder()
	svc.Router().ServeHTTP(rr, req)
	return rr
}

func TestHandlers(t *testing.T) {
	f := newFixture(t)
	body := `{"success_url":"https://altarlane.test/ok","cancel_url":"https://altarlane.test/cart"}`

	rr := serve(t, f.svc, http.MethodPost, "/v1/checkout", body, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = serve(t, f.svc, http.MethodPost, "/v1/checkout", body, "u1", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	var created struct {
		Order       order.Order `json:"order"`
		CheckoutURL string      `json:"checkout_url"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_order-1", created.CheckoutURL)
	assert.Equal(t, "couple@example.com", f.payments.requests[0].Email)

	rr = serve(t, f.svc, http.MethodGet, "/v1/orders", "", "u1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"orders"`)

	rr = serve(t, f.svc, http.MethodGet, "/v1/orders/order-1", "", "u2", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	payload := string(event(t, payments.Event{ID: "evt_1", Type: payments.EventSessionCompleted, OrderID: "order-1", PaymentStatus: "paid"}))
	rr = serve(t, f.svc, http.MethodPost, "/v1/webhooks/stripe", payload, "", map[string]string{"Stripe-Signature": "forged"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = serve(t, f.svc, http.MethodPost, "/v1/webhooks/stripe", payload, "", map[string]string{"Stripe-Signature": "valid"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, order.StatusPaid, f.orders.status("order-1"))

	rr = serve(t, f.svc, http.MethodPost, "/v1/webhooks/stripe", strings.Repeat("x", maxWebhookBytes+1), "", map[string]string{"Stripe-Signature": "valid"})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}
