// Package realtime is the WebSocket hub: a concurrent registry of one
// logical Session per connection, keyed by user identity, fanning
// typed events out to the Sessions of whichever dialog they concern.
// The Session map is sharded so register/unregister don't contend with
// a broadcast storm under high connection churn.
package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/pohodnya/mtchat/internal/database"
	"github.com/pohodnya/mtchat/internal/models"
	"github.com/pohodnya/mtchat/internal/presence"
)

const (
	shardCount = 16

	// HeartbeatInterval mirrors the client ping cadence the protocol
	// requires; IdleTimeout is 2x that, per the hub's Session model.
	HeartbeatInterval = 30 * time.Second
	IdleTimeout       = 60 * time.Second

	// outboundBufferSize bounds each Session's channel. On saturation
	// the hub drops the oldest queued frame rather than block the
	// publisher or close the Session outright.
	outboundBufferSize = 64
)

// Session is one logical WebSocket connection.
type Session struct {
	userID   string
	conn     *websocket.Conn
	outbound chan models.WSFrame
	closed   chan struct{}
	once     sync.Once
	lastSeen time.Time
	mu       sync.Mutex
}

// Touch refreshes the session's last-activity time; call on every
// inbound client frame (ping included) so IdleSince reflects reality.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// IdleSince reports how long it has been since the last inbound frame.
func (s *Session) IdleSince() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastSeen)
}

// Outbound is the channel the connection's write loop drains.
func (s *Session) Outbound() <-chan models.WSFrame {
	return s.outbound
}

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

// UserID is the identity this session was registered under.
func (s *Session) UserID() string {
	return s.userID
}

// Conn is the underlying WebSocket connection, for the read loop.
func (s *Session) Conn() *websocket.Conn {
	return s.conn
}

// enqueue pushes frame onto the Session's outbound channel, dropping
// the oldest queued frame first if the channel is already full.
func (s *Session) enqueue(frame models.WSFrame) {
	select {
	case s.outbound <- frame:
		return
	default:
	}
	select {
	case <-s.outbound:
	default:
	}
	select {
	case s.outbound <- frame:
	default:
	}
}

func (s *Session) close() {
	s.once.Do(func() {
		close(s.closed)
		s.conn.Close()
	})
}

type shard struct {
	mu       sync.RWMutex
	Sessions map[string]map[*Session]struct{} // user_id -> Sessions
}

// Hub is the realtime event plane. It owns the Session registry and
// the presence side effects of Sessions opening/closing.
type Hub struct {
	shards   [shardCount]*shard
	db       *database.DB
	presence *presence.Tracker
}

func New(db *database.DB, presenceTracker *presence.Tracker) *Hub {
	h := &Hub{db: db, presence: presenceTracker}
	for i := range h.shards {
		h.shards[i] = &shard{Sessions: make(map[string]map[*Session]struct{})}
	}
	return h
}

func (h *Hub) shardFor(userID string) *shard {
	var sum uint32
	for i := 0; i < len(userID); i++ {
		sum = sum*31 + uint32(userID[i])
	}
	return h.shards[sum%shardCount]
}

// Register creates a Session for a connected socket and returns it.
// The caller's read loop must call Unregister when the connection ends.
func (h *Hub) Register(userID string, conn *websocket.Conn) *Session {
	s := &Session{
		userID:   userID,
		conn:     conn,
		outbound: make(chan models.WSFrame, outboundBufferSize),
		closed:   make(chan struct{}),
		lastSeen: time.Now(),
	}

	sh := h.shardFor(userID)
	sh.mu.Lock()
	wentOnline := len(sh.Sessions[userID]) == 0
	if sh.Sessions[userID] == nil {
		sh.Sessions[userID] = make(map[*Session]struct{})
	}
	sh.Sessions[userID][s] = struct{}{}
	sh.mu.Unlock()

	if wentOnline && h.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := h.presence.MarkOnline(ctx, userID); err != nil {
			slog.Warn("presence mark online failed", "user_id", userID, "error", err)
		}
		h.broadcastPresence(ctx, userID, true)
	}

	return s
}

// Unregister removes s from the registry and, if it was the user's
// last Session, clears presence and broadcasts presence.update.
func (h *Hub) Unregister(s *Session) {
	s.close()
	sh := h.shardFor(s.userID)
	sh.mu.Lock()
	set := sh.Sessions[s.userID]
	delete(set, s)
	wentOffline := len(set) == 0
	if wentOffline {
		delete(sh.Sessions, s.userID)
	}
	sh.mu.Unlock()

	if wentOffline && h.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.presence.MarkOffline(ctx, s.userID); err != nil {
			slog.Warn("presence mark offline failed", "user_id", s.userID, "error", err)
		}
		h.broadcastPresence(ctx, s.userID, false)
	}
}

// RefreshPresence renews userID's presence TTL without touching the
// Session registry. Call this on every inbound heartbeat so a
// long-lived connection's presence key never expires out from under it.
func (h *Hub) RefreshPresence(ctx context.Context, userID string) {
	if h.presence == nil {
		return
	}
	if _, err := h.presence.MarkOnline(ctx, userID); err != nil {
		slog.Warn("presence refresh failed", "user_id", userID, "error", err)
	}
}

// SessionsFor returns every live Session belonging to userID.
func (h *Hub) SessionsFor(userID string) []*Session {
	sh := h.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	set := sh.Sessions[userID]
	out := make([]*Session, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// SendToUser enqueues frame on every live Session of userID.
func (h *Hub) SendToUser(userID string, frame models.WSFrame) {
	for _, s := range h.SessionsFor(userID) {
		s.enqueue(frame)
	}
}

// BroadcastToDialog fans frame to the Sessions of every participant of
// dialogID. Scoping to participants instead of every connected Session
// is what keeps this correct at scale.
func (h *Hub) BroadcastToDialog(ctx context.Context, dialogID string, frame models.WSFrame) {
	userIDs, err := h.db.ListParticipantUserIDs(ctx, dialogID)
	if err != nil {
		slog.Error("broadcast: failed to list participants", "dialog_id", dialogID, "error", err)
		return
	}
	for _, uid := range userIDs {
		h.SendToUser(uid, frame)
	}
}

// broadcastPresence notifies every user who shares a dialog with
// subjectID that its online state changed.
func (h *Hub) broadcastPresence(ctx context.Context, subjectID string, online bool) {
	peers, err := h.db.ListDialogPeers(ctx, subjectID)
	if err != nil {
		slog.Warn("presence broadcast: failed to list peers", "user_id", subjectID, "error", err)
		return
	}
	frame := models.WSFrame{Type: models.EventPresenceUpdate, Data: models.PresenceEventData{UserID: subjectID, Online: online}}
	for _, peer := range peers {
		h.SendToUser(peer, frame)
	}
}

// Frame builds a WSFrame from a typed payload.
func Frame(eventType models.EventType, payload interface{}) models.WSFrame {
	return models.WSFrame{Type: eventType, Data: payload}
}
