package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/tbraun92/boardcast/internal/domain"
	"github.com/tbraun92/boardcast/internal/metrics"
)

const (
	commandBufferSize = 256
	commandTimeout    = 5 * time.Second
	stopTimeout       = 10 * time.Second
)

// session is the hub-side view of one connection: its writer and the set
// of item IDs it has joined. Mutated only on the hub goroutine.
type session struct {
	writer *sessionWriter
	joined map[int64]struct{}
}

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type connectCmd struct {
	baseHubCmd
	connection   *websocket.Conn
	replyChannel chan uuid.UUID
}

type disconnectCmd struct {
	baseHubCmd
	sessionID uuid.UUID
}

type joinCmd struct {
	baseHubCmd
	sessionID    uuid.UUID
	itemID       int64
	errorChannel chan error
}

type leaveCmd struct {
	baseHubCmd
	sessionID uuid.UUID
	itemID    int64
}

type membersCmd struct {
	baseHubCmd
	itemID       int64
	replyChannel chan []uuid.UUID
}

type notifyCmd struct {
	baseHubCmd
	itemID int64
	data   []byte
}

type sendCmd struct {
	baseHubCmd
	sessionID uuid.UUID
	data      []byte
}

type sessionCountCmd struct {
	baseHubCmd
	replyChannel chan int
}

type groupSizeCmd struct {
	baseHubCmd
	itemID       int64
	replyChannel chan int
}

type stopCmd struct {
	baseHubCmd
}

// Hub owns all sessions and interest groups. A single goroutine processes
// commands from cmdCh, so the membership maps need no locks; every
// membership change and every fan-out happens on that goroutine, which
// keeps the session/group sets consistent with each other at all times.
type Hub struct {
	cmdCh           chan hubCmd
	clock           clockwork.Clock
	sessions        map[uuid.UUID]*session
	groups          map[int64]map[uuid.UUID]struct{}
	maxGroupMembers int
	done            chan struct{}
	stopTimeout     time.Duration
}

// New creates a hub and starts its command loop. maxGroupMembers caps how
// many sessions may join one item's group (0 means unlimited).
func New(clock clockwork.Clock, maxGroupMembers int) *Hub {
	h := &Hub{
		cmdCh:           make(chan hubCmd, commandBufferSize),
		clock:           clock,
		sessions:        make(map[uuid.UUID]*session),
		groups:          make(map[int64]map[uuid.UUID]struct{}),
		maxGroupMembers: maxGroupMembers,
		done:            make(chan struct{}),
		stopTimeout:     stopTimeout,
	}
	go h.run()
	return h
}

// Connect registers a new session for conn and returns its connection ID.
// The hub takes ownership of all writes to conn from this point on.
func (h *Hub) Connect(conn *websocket.Conn) (uuid.UUID, error) {
	replyCh := make(chan uuid.UUID, 1)
	select {
	case h.cmdCh <- connectCmd{connection: conn, replyChannel: replyCh}:
	case <-h.done:
		return uuid.Nil, domain.ErrHubStopped
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case id := <-replyCh:
		return id, nil
	case <-h.done:
		return uuid.Nil, domain.ErrHubStopped
	case <-timer.Chan():
		return uuid.Nil, fmt.Errorf("connect command timed out after %v", commandTimeout)
	}
}

// Disconnect removes the session from every group it joined and stops its
// writer. Idempotent: a second call for the same ID is a no-op.
func (h *Hub) Disconnect(sessionID uuid.UUID) {
	select {
	case h.cmdCh <- disconnectCmd{sessionID: sessionID}:
	case <-h.done:
	}
}

// Join adds the session to the item's interest group. Joining twice is a
// no-op; joining after disconnect is a no-op. Returns ErrSessionLimit when
// the group is full.
func (h *Hub) Join(sessionID uuid.UUID, itemID int64) error {
	errCh := make(chan error, 1)
	select {
	case h.cmdCh <- joinCmd{sessionID: sessionID, itemID: itemID, errorChannel: errCh}:
	case <-h.done:
		return domain.ErrHubStopped
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-h.done:
		return domain.ErrHubStopped
	case <-timer.Chan():
		return fmt.Errorf("join command timed out after %v", commandTimeout)
	}
}

// Leave removes the session from the item's group. Leaving a group the
// session never joined is a no-op.
func (h *Hub) Leave(sessionID uuid.UUID, itemID int64) {
	select {
	case h.cmdCh <- leaveCmd{sessionID: sessionID, itemID: itemID}:
	case <-h.done:
	}
}

// Members returns a snapshot of the item's group. The snapshot may be
// stale by the time the caller acts on it; delivery is best-effort.
func (h *Hub) Members(itemID int64) []uuid.UUID {
	replyCh := make(chan []uuid.UUID, 1)
	select {
	case h.cmdCh <- membersCmd{itemID: itemID, replyChannel: replyCh}:
	case <-h.done:
		return nil
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case members := <-replyCh:
		return members
	case <-h.done:
		return nil
	case <-timer.Chan():
		slog.Warn("Members command timed out", "timeout", commandTimeout)
		return nil
	}
}

// Notify fans the post-write item snapshot out to every member of the
// item's group. Fire-and-forget: it never blocks on delivery and never
// reports per-recipient failures to the caller.
func (h *Hub) Notify(itemID int64, item domain.Item) {
	data, err := json.Marshal(domain.NewItemUpdate(item))
	if err != nil {
		slog.Error("Failed to marshal item update", "item_id", itemID, "error", err)
		return
	}

	select {
	case h.cmdCh <- notifyCmd{itemID: itemID, data: data}:
	case <-h.done:
	}
}

// Send delivers a frame to one session, best-effort. Used for per-client
// error events.
func (h *Hub) Send(sessionID uuid.UUID, data []byte) {
	select {
	case h.cmdCh <- sendCmd{sessionID: sessionID, data: data}:
	case <-h.done:
	}
}

// SessionCount returns the number of connected sessions, or -1 on timeout.
func (h *Hub) SessionCount() int {
	replyCh := make(chan int, 1)
	select {
	case h.cmdCh <- sessionCountCmd{replyChannel: replyCh}:
	case <-h.done:
		return 0
	}
	return h.awaitInt(replyCh)
}

// GroupSize returns the number of members in the item's group, or -1 on
// timeout.
func (h *Hub) GroupSize(itemID int64) int {
	replyCh := make(chan int, 1)
	select {
	case h.cmdCh <- groupSizeCmd{itemID: itemID, replyChannel: replyCh}:
	case <-h.done:
		return 0
	}
	return h.awaitInt(replyCh)
}

func (h *Hub) awaitInt(replyCh chan int) int {
	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case n := <-replyCh:
		return n
	case <-h.done:
		return 0
	case <-timer.Chan():
		return -1
	}
}

// Stop shuts the hub down, closing every session with a close frame.
// Blocks until the hub goroutine exits or the stop timeout is reached.
func (h *Hub) Stop() {
	select {
	case h.cmdCh <- stopCmd{}:
	case <-h.done:
		return
	}

	timer := h.clock.NewTimer(h.stopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		slog.Info("Hub stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Hub stop timeout exceeded", "timeout", h.stopTimeout)
		metrics.HubStopTimeoutsTotal.Inc()
	}
}

func (h *Hub) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Hub panic recovered", "panic", r)
			h.closeAllSessions("hub failure")
		}
	}()
	defer close(h.done)

	depthTicker := h.clock.NewTicker(1 * time.Second)
	defer depthTicker.Stop()

	for {
		select {
		case <-depthTicker.Chan():
			depth := len(h.cmdCh)
			metrics.HubCommandChannelDepth.Set(float64(depth))
			if depth > commandBufferSize*4/5 {
				slog.Warn("Hub command channel near capacity", "depth", depth, "capacity", cap(h.cmdCh))
			}

		case cmd := <-h.cmdCh:
			switch c := cmd.(type) {
			case connectCmd:
				h.handleConnect(c)
			case disconnectCmd:
				h.handleDisconnect(c.sessionID)
			case joinCmd:
				h.handleJoin(c)
			case leaveCmd:
				h.handleLeave(c)
			case membersCmd:
				c.replyChannel <- h.snapshotMembers(c.itemID)
			case notifyCmd:
				h.handleNotify(c)
			case sendCmd:
				h.handleSend(c)
			case sessionCountCmd:
				c.replyChannel <- len(h.sessions)
			case groupSizeCmd:
				c.replyChannel <- len(h.groups[c.itemID])
			case stopCmd:
				h.handleStop()
				return
			default:
				slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

func (h *Hub) handleConnect(c connectCmd) {
	sessionID := uuid.New()
	h.sessions[sessionID] = &session{
		writer: newSessionWriter(c.connection, h.clock),
		joined: make(map[int64]struct{}),
	}

	metrics.HubConnectedSessions.Set(float64(len(h.sessions)))
	slog.Debug("Session connected", "session_id", sessionID.String(), "total_sessions", len(h.sessions))
	c.replyChannel <- sessionID
}

func (h *Hub) handleDisconnect(sessionID uuid.UUID) {
	sess, exists := h.sessions[sessionID]
	if !exists {
		return
	}

	for itemID := range sess.joined {
		h.removeFromGroup(sessionID, itemID)
	}
	sess.writer.stop()
	delete(h.sessions, sessionID)

	metrics.HubConnectedSessions.Set(float64(len(h.sessions)))
	slog.Debug("Session disconnected", "session_id", sessionID.String(), "total_sessions", len(h.sessions))
}

func (h *Hub) handleJoin(c joinCmd) {
	sess, exists := h.sessions[c.sessionID]
	if !exists {
		// Session already disconnected; the in-flight join loses.
		c.errorChannel <- nil
		return
	}

	if _, already := sess.joined[c.itemID]; already {
		c.errorChannel <- nil
		return
	}

	group, exists := h.groups[c.itemID]
	if !exists {
		group = make(map[uuid.UUID]struct{})
		h.groups[c.itemID] = group
	}

	if h.maxGroupMembers > 0 && len(group) >= h.maxGroupMembers {
		slog.Warn("Rejecting join: group full", "item_id", c.itemID, "max_members", h.maxGroupMembers)
		c.errorChannel <- domain.ErrSessionLimit
		return
	}

	// Both sides of the membership relation change in this one step.
	group[c.sessionID] = struct{}{}
	sess.joined[c.itemID] = struct{}{}

	metrics.HubActiveGroups.Set(float64(len(h.groups)))
	slog.Debug("Session joined group", "session_id", c.sessionID.String(), "item_id", c.itemID, "group_size", len(group))
	c.errorChannel <- nil
}

func (h *Hub) handleLeave(c leaveCmd) {
	sess, exists := h.sessions[c.sessionID]
	if !exists {
		return
	}

	if _, member := sess.joined[c.itemID]; !member {
		return
	}

	delete(sess.joined, c.itemID)
	h.removeFromGroup(c.sessionID, c.itemID)
	slog.Debug("Session left group", "session_id", c.sessionID.String(), "item_id", c.itemID)
}

// removeFromGroup drops the session from one group, deleting the group
// when it empties.
func (h *Hub) removeFromGroup(sessionID uuid.UUID, itemID int64) {
	group, exists := h.groups[itemID]
	if !exists {
		return
	}
	delete(group, sessionID)
	if len(group) == 0 {
		delete(h.groups, itemID)
	}
	metrics.HubActiveGroups.Set(float64(len(h.groups)))
}

func (h *Hub) snapshotMembers(itemID int64) []uuid.UUID {
	group := h.groups[itemID]
	members := make([]uuid.UUID, 0, len(group))
	for sessionID := range group {
		members = append(members, sessionID)
	}
	return members
}

func (h *Hub) handleNotify(c notifyCmd) {
	group, exists := h.groups[c.itemID]
	if !exists {
		return
	}

	start := h.clock.Now()

	var slow []uuid.UUID
	for sessionID := range group {
		sess, ok := h.sessions[sessionID]
		if !ok {
			// Should not happen: groups and sessions change together.
			h.removeFromGroup(sessionID, c.itemID)
			continue
		}
		select {
		case sess.writer.sendChannel <- c.data:
			metrics.NotificationsSentTotal.Inc()
		default:
			metrics.NotificationsDroppedTotal.Inc()
			slow = append(slow, sessionID)
		}
	}

	for _, sessionID := range slow {
		slog.Warn("Disconnecting slow client", "session_id", sessionID.String(), "item_id", c.itemID)
		metrics.HubSlowClientsEvicted.Inc()
		h.handleDisconnect(sessionID)
	}

	metrics.NotifyFanoutDuration.Observe(h.clock.Since(start).Seconds())
}

func (h *Hub) handleSend(c sendCmd) {
	sess, exists := h.sessions[c.sessionID]
	if !exists {
		return
	}
	select {
	case sess.writer.sendChannel <- c.data:
	default:
	}
}

func (h *Hub) handleStop() {
	total := len(h.sessions)
	slog.Info("Hub shutting down", "sessions", total, "groups", len(h.groups))
	h.closeAllSessions("Server shutting down")
	slog.Info("Hub shutdown complete", "disconnected_sessions", total)
}

// closeAllSessions closes every connection with the given reason. Used on
// shutdown and panic recovery.
func (h *Hub) closeAllSessions(reason string) {
	for sessionID, sess := range h.sessions {
		sess.writer.stopGraceful(reason)
		delete(h.sessions, sessionID)
	}
	for itemID := range h.groups {
		delete(h.groups, itemID)
	}
	metrics.HubConnectedSessions.Set(0)
	metrics.HubActiveGroups.Set(0)
}
