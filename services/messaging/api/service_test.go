package messagingapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altarlane/marketplace/internal/database"
	"github.com/altarlane/marketplace/internal/domain/messaging"
	"github.com/altarlane/marketplace/internal/errors"
	"github.com/altarlane/marketplace/internal/logging"
	"github.com/altarlane/marketplace/pkg/testutil"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type memStore struct {
	mu       sync.Mutex
	convs    map[string]messaging.Conversation
	messages []messaging.Message
	// raceWith simulates a concurrent open inserting first.
	raceWith *messaging.Conversation
}

func newMemStore() *memStore {
	return &memStore{convs: map[string]messaging.Conversation{}}
}

func (m *memStore) GetConversation(_ context.Context, id string) (*messaging.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok {
		return nil, database.NotFoundError("conversations", "id", id)
	}
	return &c, nil
}

func (m *memStore) FindConversation(_ context.Context, userID, vendorID string) (*messaging.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.convs {
		if c.UserID == userID && c.VendorID == vendorID {
			return &c, nil
		}
	}
	return nil, database.NotFoundError("conversations", "user_id,vendor_id", userID+","+vendorID)
}

func (m *memStore) CreateConversation(_ context.Context, c *messaging.Conversation) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raceWith != nil {
		m.convs[m.raceWith.ID] = *m.raceWith
		m.raceWith = nil
	}
	for _, existing := range m.convs {
		if existing.UserID == c.UserID && existing.VendorID == c.VendorID {
			return false, nil
		}
	}
	m.convs[c.ID] = *c
	return true, nil
}

func (m *memStore) list(match func(messaging.Conversation) bool) []messaging.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []messaging.Conversation{}
	for _, c := range m.convs {
		if match(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) ListConversationsByUser(_ context.Context, userID string) ([]messaging.Conversation, error) {
	return m.list(func(c messaging.Conversation) bool { return c.UserID == userID }), nil
}

func (m *memStore) ListConversationsByVendors(_ context.Context, vendorIDs []string) ([]messaging.Conversation, error) {
	return m.list(func(c messaging.Conversation) bool {
		for _, id := range vendorIDs {
			if c.VendorID == id {
				return true
			}
		}
		return false
	}), nil
}

func (m *memStore) TouchConversation(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.convs[id]
	c.LastMessageAt = &at
	m.convs[id] = c
	return nil
}

func (m *memStore) CreateMessage(_ context.Context, msg *messaging.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memStore) ListMessages(_ context.Context, conversationID string, before *time.Time, limit int) ([]messaging.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []messaging.Message{}
	for i := len(m.messages) - 1; i >= 0 && len(out) < limit; i-- {
		msg := m.messages[i]
		if msg.ConversationID != conversationID || (before != nil && !msg.CreatedAt.Before(*before)) {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (m *memStore) MarkRead(_ context.Context, conversationID string, role messaging.Role, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i := range m.messages {
		msg := &m.messages[i]
		if msg.ConversationID == conversationID && msg.SenderRole == role && msg.ReadAt == nil {
			msg.ReadAt = &at
			n++
		}
	}
	return n, nil
}

func (m *memStore) UnreadCounts(_ context.Context, ids []string) (map[string]map[messaging.Role]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]map[messaging.Role]int{}
	for _, msg := range m.messages {
		if msg.ReadAt != nil {
			continue
		}
		if out[msg.ConversationID] == nil {
			out[msg.ConversationID] = map[messaging.Role]int{}
		}
		out[msg.ConversationID][msg.SenderRole]++
	}
	return out, nil
}

type fakeVendors struct {
	owners map[string]string
}

func (f *fakeVendors) VendorOwnedBy(_ context.Context, vendorID, userID string) (bool, error) {
	return f.owners[vendorID] == userID, nil
}

func (f *fakeVendors) OwnedVendorIDs(_ context.Context, userID string) ([]string, error) {
	var out []string
	for v, owner := range f.owners {
		if owner == userID {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out, nil
}

type fakeBookings struct {
	confirmed map[string]bool
}

func (f *fakeBookings) HasConfirmedBooking(_ context.Context, userID, vendorID string) (bool, error) {
	return f.confirmed[userID+"|"+vendorID], nil
}

type fixture struct {
	svc   *Service
	store *memStore
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	_, rdb := testutil.NewRedis(t)
	f := &fixture{store: newMemStore(), now: testNow}
	ids := 0
	svc, err := New(Config{
		Store:        f.store,
		Broker:       NewRedisBroker(rdb),
		Vendors:      &fakeVendors{owners: map[string]string{"v-hall": "owner-hall", "v-bloom": "owner-bloom"}},
		Bookings:     &fakeBookings{confirmed: map[string]bool{"u1|v-bloom": true}},
		PingInterval: 50 * time.Millisecond,
		Logger:       logging.NewDiscard("messaging-test"),
		Now: func() time.Time {
			f.now = f.now.Add(time.Second)
			return f.now
		},
		NewID: func() string {
			ids++
			return fmt.Sprintf("id-%d", ids)
		},
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestOpenConversation_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.OpenConversation(ctx, "u1", "v-hall", "order-1")
	require.NoError(t, err)
	b, err := f.svc.OpenConversation(ctx, "u1", "v-hall", "order-2")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "order-1", b.OrderID)
	assert.Len(t, f.store.convs, 1)

	require.NoError(t, f.svc.OpenConversations(ctx, "u1", "order-1", []string{"v-hall", "v-bloom"}))
	assert.Len(t, f.store.convs, 2)

	_, err = f.svc.OpenConversation(ctx, "u1", " ", "")
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
}

func TestOpenConversation_LosesRace(t *testing.T) {
	f := newFixture(t)
	f.store.raceWith = &messaging.Conversation{ID: "winner", UserID: "u1", VendorID: "v-hall"}

	c, err := f.svc.OpenConversation(context.Background(), "u1", "v-hall", "")
	require.NoError(t, err)
	assert.Equal(t, "winner", c.ID)
}

func TestStartConversation_RequiresConfirmedBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.StartConversation(ctx, "u1", "v-hall")
	assert.True(t, errors.IsCode(err, errors.CodeForbidden))

	c, err := f.svc.StartConversation(ctx, "u1", "v-bloom")
	require.NoError(t, err)
	assert.Equal(t, "v-bloom", c.VendorID)
}

func TestSendAndRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.OpenConversation(ctx, "u1", "v-hall", "order-1")
	require.NoError(t, err)

	m, err := f.svc.Send(ctx, "u1", c.ID, "  Can we tour on Saturday?  ")
	require.NoError(t, err)
	assert.Equal(t, "Can we tour on Saturday?", m.Body)
	assert.Equal(t, messaging.RoleCouple, m.SenderRole)
	assert.NotNil(t, f.store.convs[c.ID].LastMessageAt)

	reply, err := f.svc.Send(ctx, "owner-hall", c.ID, "Yes, 10am works.")
	require.NoError(t, err)
	assert.Equal(t, messaging.RoleVendor, reply.SenderRole)

	_, err = f.svc.Send(ctx, "stranger", c.ID, "hello")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
	_, err = f.svc.Send(ctx, "u1", c.ID, "   ")
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
	_, err = f.svc.Send(ctx, "u1", c.ID, strings.Repeat("x", messaging.MaxBodyLength+1))
	assert.True(t, errors.IsCode(err, errors.CodeValidation))

	summaries, err := f.svc.ListConversations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].Unread)
	assert.Equal(t, messaging.RoleCouple, summaries[0].Role)

	n, err := f.svc.MarkRead(ctx, "u1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	vendorView, err := f.svc.ListConversations(ctx, "owner-hall")
	require.NoError(t, err)
	require.Len(t, vendorView, 1)
	assert.Equal(t, messaging.RoleVendor, vendorView[0].Role)
	assert.Equal(t, 1, vendorView[0].Unread)
}

func TestListMessages_Paging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.OpenConversation(ctx, "u1", "v-hall", "")
	require.NoError(t, err)
	var sent []*messaging.Message
	for i := 0; i < 5; i++ {
		m, err := f.svc.Send(ctx, "u1", c.ID, fmt.Sprintf("message %d", i))
		require.NoError(t, err)
		sent = append(sent, m)
	}

	page, err := f.svc.ListMessages(ctx, "u1", c.ID, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "message 4", page[0].Body)

	older, err := f.svc.ListMessages(ctx, "u1", c.ID, &page[1].CreatedAt, 0)
	require.NoError(t, err)
	assert.Len(t, older, 3)
	assert.Equal(t, sent[0].ID, older[2].ID)

	_, err = f.svc.ListMessages(ctx, "stranger", c.ID, nil, 10)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestListConversations_SortedByActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.svc.OpenConversation(ctx, "u1", "v-hall", "")
	require.NoError(t, err)
	b, err := f.svc.OpenConversation(ctx, "u1", "v-bloom", "")
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, "u1", a.ID, "latest")
	require.NoError(t, err)

	list, err := f.svc.ListConversations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)
}

func withUser(h http.Handler, userID string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID != "" {
			r = r.WithContext(logging.WithUserID(r.Context(), userID))
		}
		h.ServeHTTP(w, r)
	})
}

func serve(t *testing.T, svc *Service, method, path, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	withUser(svc.Router(), userID).ServeHTTP(rr, req)
	return rr
}

func TestHandlers(t *testing.T) {
	f := newFixture(t)

	rr := serve(t, f.svc, http.MethodPost, "/v1/conversations", `{"vendor_id":"v-hall"}`, "u1")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = serve(t, f.svc, http.MethodPost, "/v1/conversations", `{"vendor_id":"v-bloom"}`, "u1")
	require.Equal(t, http.StatusCreated, rr.Code)
	var c messaging.Conversation
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&c))

	rr = serve(t, f.svc, http.MethodPost, "/v1/conversations/"+c.ID+"/messages", `{"body":"hello"}`, "owner-bloom")
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = serve(t, f.svc, http.MethodGet, "/v1/conversations/"+c.ID+"/messages?limit=500", "", "u1")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"hello"`)

	rr = serve(t, f.svc, http.MethodGet, "/v1/conversations/"+c.ID+"/messages?before=yesterday", "", "u1")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(t, f.svc, http.MethodPost, "/v1/conversations/"+c.ID+"/read", "", "u1")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"marked":1}`, rr.Body.String())

	rr = serve(t, f.svc, http.MethodGet, "/v1/conversations", "", "u1")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"unread":0`)

	rr = serve(t, f.svc, http.MethodGet, "/v1/conversations", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func dialStream(t *testing.T, srv *httptest.Server, conversationID string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/conversations/" + conversationID + "/stream"
	return websocket.DefaultDialer.Dial(url, nil)
}

func TestStream(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.OpenConversation(ctx, "u1", "v-hall", "")
	require.NoError(t, err)

	srv := httptest.NewServer(withUser(f.svc.Router(), "u1"))
	t.Cleanup(srv.Close)

	conn, _, err := dialStream(t, srv, c.ID)
	require.NoError(t, err)
	defer conn.Close()

	var pings atomic.Int32
	conn.SetPingHandler(func(data string) error {
		pings.Add(1)
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	received := make(chan messaging.Message, 4)
	go func() {
		for {
			var m messaging.Message
			if err := conn.ReadJSON(&m); err != nil {
				close(received)
				return
			}
			received <- m
		}
	}()

	_, err = f.svc.Send(ctx, "owner-hall", c.ID, "Your date is confirmed!")
	require.NoError(t, err)

	select {
	case m := <-received:
		assert.Equal(t, "Your date is confirmed!", m.Body)
		assert.Equal(t, messaging.RoleVendor, m.SenderRole)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for streamed message")
	}

	assert.Eventually(t, func() bool { return pings.Load() > 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestStream_RejectsNonParticipant(t *testing.T) {
	f := newFixture(t)
	c, err := f.svc.OpenConversation(context.Background(), "u1", "v-hall", "")
	require.NoError(t, err)

	srv := httptest.NewServer(withUser(f.svc.Router(), "stranger"))
	t.Cleanup(srv.Close)

	_, resp, err := dialStream(t, srv, c.ID)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStream_RejectsForeignOrigin(t *testing.T) {
	f := newFixture(t)
	f.svc.allowedOrigins = map[string]bool{"https://altarlane.test": true}
	c, err := f.svc.OpenConversation(context.Background(), "u1", "v-hall", "")
	require.NoError(t, err)

	srv := httptest.NewServer(withUser(f.svc.Router(), "u1"))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/conversations/" + c.ID + "/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.test"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
