package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const testWebhookSecret = "whsec_test"

type fakeStripe struct {
	mu       sync.Mutex
	sessions []url.Values
	coupons  []url.Values
	expired  []string
	fail     bool
}

func (f *fakeStripe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if f.fail {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"bad session"}}`))
		return
	}
	switch {
	case r.URL.Path == "/v1/coupons":
		f.coupons = append(f.coupons, r.PostForm)
		_, _ = w.Write([]byte(`{"id":"co_once","object":"coupon"}`))
	case r.URL.Path == "/v1/checkout/sessions":
		f.sessions = append(f.sessions, r.PostForm)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":             "cs_test_1",
			"object":         "checkout.session",
			"url":            "https://checkout.stripe.com/c/pay/cs_test_1",
			"expires_at":     1777640400,
			"payment_intent": "pi_1",
		})
	case r.URL.Path == "/v1/checkout/sessions/cs_test_1/expire":
		f.expired = append(f.expired, "cs_test_1")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","status":"expired"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"no route"}}`))
	}
}

func (f *fakeStripe) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *fakeStripe) recorded() (sessions, coupons []url.Values, expired []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions, f.coupons, f.expired
}

func newProcessor(t *testing.T) (*Processor, *fakeStripe) {
	t.Helper()
	fake := &fakeStripe{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	p, err := New(Config{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
		Backends:      &stripe.Backends{API: backend, Connect: backend, Uploads: backend},
	})
	require.NoError(t, err)
	return p, fake
}

func sessionRequest() SessionRequest {
	return SessionRequest{
		OrderID:  "order-1",
		UserID:   "user-1",
		Email:    "couple@example.com",
		Currency: "USD",
		Lines: []Line{
			{Name: "Grand Hall — venue", UnitAmountCents: 500000, Quantity: 1},
			{Name: "Peonies — florist", UnitAmountCents: 2500, Quantity: 10},
		},
		SuccessURL: "https://altarlane.test/success",
		CancelURL:  "https://altarlane.test/cart",
		ExpiresAt:  time.Unix(1777640400, 0),
	}
}

func TestNew_RequiresSecrets(t *testing.T) {
	_, err := New(Config{WebhookSecret: "whsec"})
	assert.Error(t, err)
	_, err = New(Config{SecretKey: "sk"})
	assert.Error(t, err)
}

func TestCreateSession(t *testing.T) {
	p, fake := newProcessor(t)

	s, err := p.CreateSession(context.Background(), sessionRequest())
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", s.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", s.URL)
	assert.Equal(t, "pi_1", s.PaymentIntentID)
	assert.Equal(t, int64(1777640400), s.ExpiresAt.Unix())

	sessions, coupons, _ := fake.recorded()
	require.Len(t, sessions, 1)
	form := sessions[0]
	assert.Equal(t, "payment", form.Get("mode"))
	assert.Equal(t, "order-1", form.Get("metadata[order_id]"))
	assert.Equal(t, "user-1", form.Get("client_reference_id"))
	assert.Equal(t, "couple@example.com", form.Get("customer_email"))
	assert.Equal(t, "1777640400", form.Get("expires_at"))
	assert.Equal(t, "usd", form.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "500000", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "Peonies — florist", form.Get("line_items[1][price_data][product_data][name]"))
	assert.Equal(t, "10", form.Get("line_items[1][quantity]"))
	assert.Empty(t, form.Get("discounts[0][coupon]"))
	assert.Empty(t, coupons)
}

func TestCreateSession_OneOffCoupon(t *testing.T) {
	p, fake := newProcessor(t)
	req := sessionRequest()
	req.DiscountCents = 5000

	_, err := p.CreateSession(context.Background(), req)
	require.NoError(t, err)

	sessions, coupons, _ := fake.recorded()
	require.Len(t, coupons, 1)
	assert.Equal(t, "5000", coupons[0].Get("amount_off"))
	assert.Equal(t, "once", coupons[0].Get("duration"))
	assert.Equal(t, "1", coupons[0].Get("max_redemptions"))
	assert.Equal(t, "co_once", sessions[0].Get("discounts[0][coupon]"))
}

func TestCreateSession_ExistingCoupon(t *testing.T) {
	p, fake := newProcessor(t)
	req := sessionRequest()
	req.CouponID = "SPRING10"
	req.DiscountCents = 5000

	_, err := p.CreateSession(context.Background(), req)
	require.NoError(t, err)
	sessions, coupons, _ := fake.recorded()
	assert.Empty(t, coupons)
	assert.Equal(t, "SPRING10", sessions[0].Get("discounts[0][coupon]"))
}

func TestCreateSession_Errors(t *testing.T) {
	p, fake := newProcessor(t)

	_, err := p.CreateSession(context.Background(), SessionRequest{OrderID: "o"})
	assert.Error(t, err)

	fake.setFail(true)
	_, err = p.CreateSession(context.Background(), sessionRequest())
	require.Error(t, err)
	var se *stripe.Error
	assert.ErrorAs(t, err, &se)
}

func TestExpireSession(t *testing.T) {
	p, fake := newProcessor(t)
	require.NoError(t, p.ExpireSession(context.Background(), "cs_test_1"))
	_, _, expired := fake.recorded()
	assert.Equal(t, []string{"cs_test_1"}, expired)
	assert.Error(t, p.ExpireSession(context.Background(), "cs_unknown"))
}

func signed(t *testing.T, payload string) (string, []byte) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return sp.Header, sp.Payload
}

func TestParseEvent(t *testing.T) {
	p, _ := newProcessor(t)

	header, body := signed(t, `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_test_1","object":"checkout.session","client_reference_id":"user-1","payment_status":"paid","payment_intent":"pi_1","metadata":{"order_id":"order-1"}}}}`)
	ev, err := p.ParseEvent(body, header)
	require.NoError(t, err)
	assert.Equal(t, &Event{
		ID:              "evt_1",
		Type:            EventSessionCompleted,
		SessionID:       "cs_test_1",
		OrderID:         "order-1",
		UserID:          "user-1",
		PaymentStatus:   "paid",
		PaymentIntentID: "pi_1",
	}, ev)
	assert.True(t, ev.Paid())
}

func TestParseEvent_ExpandedPaymentIntent(t *testing.T) {
	p, _ := newProcessor(t)
	header, body := signed(t, `{"id":"evt_2","object":"event","type":"checkout.session.async_payment_succeeded","data":{"object":{"id":"cs_2","payment_intent":{"id":"pi_2","object":"payment_intent"},"metadata":{"order_id":"order-2"}}}}`)
	ev, err := p.ParseEvent(body, header)
	require.NoError(t, err)
	assert.Equal(t, "pi_2", ev.PaymentIntentID)
	assert.True(t, ev.Paid())
}

func TestParseEvent_Rejects(t *testing.T) {
	p, _ := newProcessor(t)
	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{}}}`)

	_, err := p.ParseEvent(payload, "t=1,v1=deadbeef")
	assert.Error(t, err)

	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: "whsec_other", Timestamp: time.Now()})
	_, err = p.ParseEvent(sp.Payload, sp.Header)
	assert.Error(t, err)
}

func TestParseEvent_OtherTypes(t *testing.T) {
	p, _ := newProcessor(t)
	header, body := signed(t, `{"id":"evt_3","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)
	ev, err := p.ParseEvent(body, header)
	require.NoError(t, err)
	assert.Equal(t, "customer.created", ev.Type)
	assert.Empty(t, ev.SessionID)
	assert.False(t, ev.Paid())
}

func TestEventPaid(t *testing.T) {
	assert.False(t, Event{Type: EventSessionCompleted, PaymentStatus: "unpaid"}.Paid())
	assert.True(t, Event{Type: EventSessionCompleted, PaymentStatus: "no_payment_required"}.Paid())
	assert.False(t, Event{Type: EventSessionExpired}.Paid())
}

func TestClampSessionTTL(t *testing.T) {
	assert.Equal(t, 35*time.Minute, ClampSessionTTL(10*time.Minute))
	assert.Equal(t, 35*time.Minute, ClampSessionTTL(MinSessionTTL))
	assert.Equal(t, 35*time.Minute, ClampSessionTTL(35*time.Minute))
	assert.Equal(t, 45*time.Minute, ClampSessionTTL(45*time.Minute))
	assert.Equal(t, MaxSessionTTL, ClampSessionTTL(48*time.Hour))
}
