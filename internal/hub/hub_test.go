package hub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbraun92/boardcast/internal/domain"
)

func newTestHub(t *testing.T, maxGroupMembers int) *Hub {
	t.Helper()
	h := New(clockwork.NewRealClock(), maxGroupMembers)
	t.Cleanup(func() { h.Stop() })
	return h
}

func newTestConnPair(t *testing.T) (server *ws.Conn, client *ws.Conn) {
	t.Helper()
	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	ready := make(chan *ws.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		ready <- conn
	}))
	t.Cleanup(func() { srv.Close() })

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })

	serverConn := <-ready
	t.Cleanup(func() { serverConn.Close() })

	return serverConn, clientConn
}

// connectSession registers a fresh connection pair with the hub and
// returns the session ID plus the client side of the connection.
func connectSession(t *testing.T, h *Hub) (uuid.UUID, *ws.Conn) {
	t.Helper()
	server, client := newTestConnPair(t)
	sessionID, err := h.Connect(server)
	require.NoError(t, err)
	return sessionID, client
}

func readUpdate(t *testing.T, conn *ws.Conn) domain.ItemUpdate {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var update domain.ItemUpdate
	require.NoError(t, json.Unmarshal(data, &update))
	return update
}

func expectNoMessage(t *testing.T, conn *ws.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "expected no message to arrive")
}

func waitFor(cond func() bool) bool {
	for i := 0; i < 100; i++ {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func testItem(state domain.ItemState) domain.Item {
	return domain.Item{ID: 1, Title: "Fix login redirect loop", State: state, UpdatedAt: time.Now()}
}

func TestHub_ConnectDisconnect(t *testing.T) {
	h := newTestHub(t, 0)

	sessionID, _ := connectSession(t, h)
	assert.Equal(t, 1, h.SessionCount())

	h.Disconnect(sessionID)
	require.True(t, waitFor(func() bool { return h.SessionCount() == 0 }))

	// Second disconnect for the same session is a no-op
	h.Disconnect(sessionID)
	assert.Equal(t, 0, h.SessionCount())
}

func TestHub_JoinIsIdempotent(t *testing.T) {
	h := newTestHub(t, 0)
	sessionID, _ := connectSession(t, h)

	require.NoError(t, h.Join(sessionID, 1))
	require.NoError(t, h.Join(sessionID, 1))
	assert.Equal(t, 1, h.GroupSize(1))

	h.Leave(sessionID, 1)
	require.True(t, waitFor(func() bool { return h.GroupSize(1) == 0 }))

	// Leaving again is a no-op, not an error
	h.Leave(sessionID, 1)
	assert.Equal(t, 0, h.GroupSize(1))
}

func TestHub_LeaveNonMemberIsNoOp(t *testing.T) {
	h := newTestHub(t, 0)
	a, _ := connectSession(t, h)
	b, _ := connectSession(t, h)

	require.NoError(t, h.Join(a, 1))
	h.Leave(b, 1)

	require.True(t, waitFor(func() bool { return h.GroupSize(1) == 1 }))
	assert.ElementsMatch(t, []uuid.UUID{a}, h.Members(1))
}

func TestHub_MembersSnapshot(t *testing.T) {
	h := newTestHub(t, 0)
	a, _ := connectSession(t, h)
	b, _ := connectSession(t, h)

	require.NoError(t, h.Join(a, 7))
	require.NoError(t, h.Join(b, 7))
	require.NoError(t, h.Join(a, 9))

	assert.ElementsMatch(t, []uuid.UUID{a, b}, h.Members(7))
	assert.ElementsMatch(t, []uuid.UUID{a}, h.Members(9))
	assert.Empty(t, h.Members(42))
}

func TestHub_NotifyFansOutToAllMembers(t *testing.T) {
	h := newTestHub(t, 0)
	a, connA := connectSession(t, h)
	b, connB := connectSession(t, h)
	_, connC := connectSession(t, h) // never joins

	require.NoError(t, h.Join(a, 1))
	require.NoError(t, h.Join(b, 1))

	h.Notify(1, testItem(domain.StateActive))

	updateA := readUpdate(t, connA)
	updateB := readUpdate(t, connB)
	assert.Equal(t, domain.EventItemUpdated, updateA.Type)
	assert.Equal(t, domain.StateActive, updateA.Item.State)
	assert.Equal(t, domain.StateActive, updateB.Item.State)
	assert.EqualValues(t, 1, updateA.Item.ID)

	expectNoMessage(t, connC)
}

func TestHub_NotifyAfterLeaveSkipsFormerMember(t *testing.T) {
	h := newTestHub(t, 0)
	a, connA := connectSession(t, h)
	b, connB := connectSession(t, h)

	require.NoError(t, h.Join(a, 1))
	require.NoError(t, h.Join(b, 1))

	h.Leave(a, 1)
	require.True(t, waitFor(func() bool { return h.GroupSize(1) == 1 }))

	h.Notify(1, testItem(domain.StateResolved))

	update := readUpdate(t, connB)
	assert.Equal(t, domain.StateResolved, update.Item.State)

	expectNoMessage(t, connA)
}

func TestHub_NotifyEmptyGroupIsNoOp(t *testing.T) {
	h := newTestHub(t, 0)
	_, conn := connectSession(t, h)

	h.Notify(999, testItem(domain.StateClosed))
	expectNoMessage(t, conn)
}

func TestHub_DisconnectCleansUpAllGroups(t *testing.T) {
	h := newTestHub(t, 0)
	a, connA := connectSession(t, h)
	b, connB := connectSession(t, h)

	require.NoError(t, h.Join(a, 1))
	require.NoError(t, h.Join(a, 2))
	require.NoError(t, h.Join(b, 1))

	h.Disconnect(a)
	require.True(t, waitFor(func() bool { return h.SessionCount() == 1 }))

	assert.ElementsMatch(t, []uuid.UUID{b}, h.Members(1))
	assert.Empty(t, h.Members(2))

	// Deliveries after disconnect never reach the dropped session.
	h.Notify(1, testItem(domain.StateClosed))
	update := readUpdate(t, connB)
	assert.Equal(t, domain.StateClosed, update.Item.State)
	_ = connA
}

func TestHub_JoinAfterDisconnectIsNoOp(t *testing.T) {
	h := newTestHub(t, 0)
	sessionID, _ := connectSession(t, h)

	h.Disconnect(sessionID)
	require.True(t, waitFor(func() bool { return h.SessionCount() == 0 }))

	// The disconnect wins: the in-flight join is silently dropped.
	require.NoError(t, h.Join(sessionID, 1))
	assert.Equal(t, 0, h.GroupSize(1))
}

func TestHub_GroupMemberLimit(t *testing.T) {
	h := newTestHub(t, 2)
	a, _ := connectSession(t, h)
	b, _ := connectSession(t, h)
	c, _ := connectSession(t, h)

	require.NoError(t, h.Join(a, 1))
	require.NoError(t, h.Join(b, 1))

	err := h.Join(c, 1)
	require.ErrorIs(t, err, domain.ErrSessionLimit)
	assert.Equal(t, 2, h.GroupSize(1))

	// Rejoining as an existing member still succeeds
	require.NoError(t, h.Join(a, 1))
}

func TestHub_SlowClientDoesNotBlockOthers(t *testing.T) {
	h := newTestHub(t, 0)
	a, connA := connectSession(t, h)
	b, connB := connectSession(t, h)

	require.NoError(t, h.Join(a, 1))
	require.NoError(t, h.Join(b, 1))

	// Kill A's transport underneath the hub. Its writer dies on the next
	// write, the buffer fills, and the hub evicts it mid-fan-out.
	connA.Close()

	const updates = 25
	for i := 0; i < updates; i++ {
		h.Notify(1, testItem(domain.StateActive))
	}

	// B receives every update despite A being gone.
	for i := 0; i < updates; i++ {
		update := readUpdate(t, connB)
		assert.Equal(t, domain.StateActive, update.Item.State)
	}

	// Eviction happens during fan-out, so keep notifying until the hub
	// notices A's dead writer.
	require.True(t, waitFor(func() bool {
		h.Notify(1, testItem(domain.StateActive))
		return h.GroupSize(1) == 1
	}))
	assert.ElementsMatch(t, []uuid.UUID{b}, h.Members(1))
}

func TestHub_SendDeliversToOneSession(t *testing.T) {
	h := newTestHub(t, 0)
	a, connA := connectSession(t, h)
	_, connB := connectSession(t, h)

	h.Send(a, []byte(`{"type":"error","error":"item not found"}`))

	require.NoError(t, connA.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := connA.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","error":"item not found"}`, string(data))

	expectNoMessage(t, connB)
}

func TestHub_StopClosesAllSessions(t *testing.T) {
	h := New(clockwork.NewRealClock(), 0)
	_, connA := connectSession(t, h)
	_, connB := connectSession(t, h)

	h.Stop()

	for _, conn := range []*ws.Conn{connA, connB} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		_, _, err := conn.ReadMessage()
		assert.Error(t, err, "connection should be closed after Stop")
	}

	// Post-stop API calls fail fast instead of hanging.
	server, _ := newTestConnPair(t)
	_, err := h.Connect(server)
	assert.ErrorIs(t, err, domain.ErrHubStopped)
}
