package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/tbraun92/boardcast/internal/metrics"
)

const (
	writeDeadline   = 5 * time.Second
	pingInterval    = 30 * time.Second
	pongDeadline    = 60 * time.Second
	idleTimeout     = 5 * time.Minute
	idleWarningTime = 4 * time.Minute
	sendBufferSize  = 16
)

// sessionWriter owns all writes to one WebSocket connection. Exactly one
// goroutine drains sendChannel, so frames are never interleaved.
type sessionWriter struct {
	connection    *websocket.Conn
	clock         clockwork.Clock
	sendChannel   chan []byte
	doneChannel   chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
	lastActivity  time.Time
	activityMutex sync.Mutex
	warningSent   bool
}

func newSessionWriter(connection *websocket.Conn, clock clockwork.Clock) *sessionWriter {
	sw := &sessionWriter{
		connection:   connection,
		clock:        clock,
		sendChannel:  make(chan []byte, sendBufferSize),
		doneChannel:  make(chan struct{}),
		lastActivity: clock.Now(),
	}
	sw.configurePongHandler()
	sw.wg.Add(1)
	go sw.run()
	return sw
}

func (sw *sessionWriter) run() {
	ticker := sw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer sw.wg.Done()

	for {
		select {
		case msg, ok := <-sw.sendChannel:
			if !ok {
				return
			}
			start := sw.clock.Now()
			sw.updateWriteDeadline()
			if err := sw.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
			metrics.WebSocketMessageSendDuration.Observe(sw.clock.Since(start).Seconds())
		case <-ticker.Chan():
			if sw.checkIdleTimeout() {
				// Close so the read pump fails and the hub drops the session.
				_ = sw.connection.Close()
				return
			}

			sw.updateWriteDeadline()
			if err := sw.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.WebSocketPingFailures.Inc()
				_ = sw.connection.Close()
				return
			}
		case <-sw.doneChannel:
			return
		}
	}
}

func (sw *sessionWriter) stop() {
	sw.stopOnce.Do(func() {
		close(sw.doneChannel)
		_ = sw.connection.Close()
	})
	sw.wg.Wait()
}

// stopGraceful sends a close frame with reason before closing.
func (sw *sessionWriter) stopGraceful(reason string) {
	sw.stopOnce.Do(func() {
		close(sw.doneChannel)

		// Wait for run to exit so the close frame is not written
		// concurrently with a pending message.
		sw.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		sw.updateWriteDeadline()
		_ = sw.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = sw.connection.Close()
	})
}

func (sw *sessionWriter) configurePongHandler() {
	sw.updateReadDeadline()
	sw.connection.SetPongHandler(func(string) error {
		sw.updateReadDeadline()
		sw.recordActivity()
		return nil
	})
}

func (sw *sessionWriter) updateWriteDeadline() {
	_ = sw.connection.SetWriteDeadline(sw.clock.Now().Add(writeDeadline))
}

func (sw *sessionWriter) updateReadDeadline() {
	_ = sw.connection.SetReadDeadline(sw.clock.Now().Add(pongDeadline))
}

// recordActivity updates the last activity timestamp. Called on pong and
// on every inbound command.
func (sw *sessionWriter) recordActivity() {
	sw.activityMutex.Lock()
	defer sw.activityMutex.Unlock()
	sw.lastActivity = sw.clock.Now()
	sw.warningSent = false
}

// checkIdleTimeout reports whether the connection has been idle past the
// timeout, sending a warning frame one minute ahead of the cutoff.
func (sw *sessionWriter) checkIdleTimeout() bool {
	sw.activityMutex.Lock()
	idleDuration := sw.clock.Since(sw.lastActivity)
	warningSent := sw.warningSent
	sw.activityMutex.Unlock()

	if idleDuration >= idleTimeout {
		metrics.WebSocketIdleDisconnects.Inc()
		return true
	}

	if !warningSent && idleDuration >= idleWarningTime {
		warning := []byte(`{"type":"warning","warning":"Connection idle. Will disconnect if no activity within 1 minute."}`)
		sw.updateWriteDeadline()
		if err := sw.connection.WriteMessage(websocket.TextMessage, warning); err == nil {
			sw.activityMutex.Lock()
			sw.warningSent = true
			sw.activityMutex.Unlock()
		}
	}

	return false
}
