package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"collab-service/internal/domain"
	"collab-service/internal/service"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub is the collaboration server: it owns the connection registry (one entry
// per userId, mutex-guarded because gorilla dispatches each connection on its
// own goroutine), routes inbound envelopes to the stores, and fans events out
// to co-located peers. Constructed once in main and passed by handle; there is
// no package-level registry.
//
// The hub performs no authentication: identity is whatever the first
// presence_update claims. That trust boundary is intentional for an
// internal-only tool and documented rather than hardened.
type Hub struct {
	presence      *service.PresenceService
	activities    *service.ActivityService
	notifications *service.NotificationService
	logger        *zap.Logger

	sweepInterval time.Duration
	maxIdle       time.Duration

	mu      sync.RWMutex
	clients map[string]*client
}

func NewHub(
	presence *service.PresenceService,
	activities *service.ActivityService,
	notifications *service.NotificationService,
	sweepInterval time.Duration,
	maxIdle time.Duration,
	logger *zap.Logger,
) *Hub {
	return &Hub{
		presence:      presence,
		activities:    activities,
		notifications: notifications,
		logger:        logger,
		sweepInterval: sweepInterval,
		maxIdle:       maxIdle,
		clients:       make(map[string]*client),
	}
}

// Run drives the periodic liveness sweep until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if evicted := h.Sweep(h.maxIdle); len(evicted) > 0 {
				h.logger.Info("swept idle connections", zap.Strings("userIds", evicted))
			}
		case <-ctx.Done():
			return
		}
	}
}

// HandleWebSocket godoc
// @Summary      Collaboration WebSocket 연결
// @Description  프레즌스/활동 이벤트용 WebSocket에 연결합니다
// @Tags         websocket
// @Success      101 {string} string "Switching Protocols"
// @Router       /ws/collaboration [get]
func (h *Hub) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	cl := newClient(conn, uuid.NewString())

	wsConnectionsTotal.Inc()

	go h.writePump(cl)
	go h.readPump(cl)

	// Welcome ack. Presence is not assumed until the client sends one.
	if data, err := marshalEnvelope(TypeConnected, gin.H{"sessionId": cl.sessionID}, "", ""); err == nil {
		cl.trySend(data)
	}
}

func (h *Hub) handleMessage(c *client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		wsProtocolErrors.Inc()
		h.sendError(c, "invalid envelope")
		return
	}

	h.touch(c)

	switch env.Type {
	case TypePresenceUpdate:
		h.handlePresenceUpdate(c, &env)
	case TypeActivityBroadcast:
		h.handleActivityBroadcast(c, &env)
	case TypeSessionJoin, TypeSessionLeave:
		h.handleSessionSignal(c, &env)
	default:
		// Unknown types are ignored by contract, never an error.
		h.logger.Warn("unknown message type", zap.String("type", string(env.Type)))
	}
}

func (h *Hub) handlePresenceUpdate(c *client, env *Envelope) {
	var p presencePayload
	if env.UserID == "" || env.Payload == nil || json.Unmarshal(env.Payload, &p) != nil || p.CurrentPage == "" {
		wsProtocolErrors.Inc()
		h.sendError(c, "presence_update requires userId and payload.currentPage")
		return
	}

	h.register(c, env, &p)

	isActive := true
	if p.IsActive != nil {
		isActive = *p.IsActive
	}

	presence := &domain.UserPresence{
		UserID:         env.UserID,
		UserName:       env.UserName,
		UserRole:       p.UserRole,
		CurrentPage:    p.CurrentPage,
		CurrentSection: p.CurrentSection,
		IsActive:       isActive,
		SessionID:      c.sessionID,
		Metadata:       p.Metadata,
		LastActivity:   time.Now(),
	}

	// A store failure leaves presence stale until the next successful write;
	// the socket stays open either way.
	_ = h.presence.Upsert(context.Background(), presence)

	if data, err := marshalEnvelope(TypePresenceUpdate, &p, env.UserID, env.UserName); err == nil {
		h.broadcastToPage(p.CurrentPage, data, env.UserID)
	}
}

func (h *Hub) handleActivityBroadcast(c *client, env *Envelope) {
	var p activityPayload
	if env.UserID == "" || env.Payload == nil || json.Unmarshal(env.Payload, &p) != nil || p.TargetEntity == "" {
		wsProtocolErrors.Inc()
		h.sendError(c, "activity_broadcast requires userId and payload.targetEntity")
		return
	}

	activity := &domain.CollaborationActivity{
		UserID:       env.UserID,
		UserName:     env.UserName,
		ActivityType: p.ActivityType,
		TargetEntity: p.TargetEntity,
		TargetID:     p.TargetID,
		Description:  p.Description,
		Metadata:     p.Metadata,
		CreatedAt:    time.Now(),
	}
	_ = h.activities.Record(context.Background(), activity)

	if data, err := marshalEnvelope(TypeActivityBroadcast, &p, env.UserID, env.UserName); err == nil {
		h.broadcastToPage(p.TargetEntity, data, env.UserID)
	}

	h.notifyPeers(env, &p)
}

// notifyPeers enqueues a durable notification for every other user currently
// on the activity's entity and pushes it over their sockets.
func (h *Hub) notifyPeers(env *Envelope, p *activityPayload) {
	payload := domain.JSONMap{
		"event":        string(TypeActivityBroadcast),
		"activityType": p.ActivityType,
		"targetEntity": p.TargetEntity,
		"targetId":     p.TargetID,
		"description":  p.Description,
		"actorId":      env.UserID,
		"actorName":    env.UserName,
	}

	for _, uid := range h.usersOnPage(p.TargetEntity, env.UserID) {
		notification, err := h.notifications.Enqueue(context.Background(), uid, payload)
		if err != nil {
			continue
		}
		if data, err := marshalEnvelope(TypeNotification, notification, env.UserID, env.UserName); err == nil {
			h.sendToUser(uid, data)
		}
	}
}

// handleSessionSignal relays session_join/session_leave to other participants
// on the target page. No persistence.
func (h *Hub) handleSessionSignal(c *client, env *Envelope) {
	var p sessionPayload
	if env.Payload != nil {
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			wsProtocolErrors.Inc()
			h.sendError(c, "malformed session payload")
			return
		}
	}

	page := p.Page
	if page == "" {
		h.mu.RLock()
		page = c.currentPage
		h.mu.RUnlock()
	}
	if page == "" {
		return
	}

	if data, err := marshalEnvelope(env.Type, &p, env.UserID, env.UserName); err == nil {
		h.broadcastToPage(page, data, env.UserID)
	}
}

// register upserts the runtime registry entry. A new connection for the same
// userId supersedes the old one; the superseded socket is closed without the
// disconnect treatment so no spurious "left" event is emitted. A connection
// re-claiming a different userId gives up its old key, the registry never
// holds two entries for one socket.
func (h *Hub) register(c *client, env *Envelope, p *presencePayload) {
	var superseded *client

	h.mu.Lock()
	if c.registered && c.userID != env.UserID && h.clients[c.userID] == c {
		delete(h.clients, c.userID)
	}
	if old, ok := h.clients[env.UserID]; ok && old != c {
		old.registered = false
		superseded = old
	}
	c.userID = env.UserID
	c.userName = env.UserName
	c.userRole = p.UserRole
	c.currentPage = p.CurrentPage
	c.lastActivity = time.Now()
	c.registered = true
	h.clients[env.UserID] = c
	wsActiveConnections.Set(float64(len(h.clients)))
	h.mu.Unlock()

	if superseded != nil {
		superseded.shutdown()
		h.logger.Info("connection superseded", zap.String("userId", env.UserID))
	}
}

// touch refreshes the liveness clock for a registered connection.
func (h *Hub) touch(c *client) {
	h.mu.Lock()
	if c.registered {
		c.lastActivity = time.Now()
	}
	h.mu.Unlock()
}

// disconnect runs the close/error/sweep cleanup: flip presence inactive, fan
// out a leave event to the last-known page, drop the registry entry. Clean
// closes, socket errors and sweep evictions all land here and are treated
// identically. Idempotent per connection.
func (h *Hub) disconnect(c *client) {
	h.mu.Lock()
	wasCurrent := c.registered && h.clients[c.userID] == c
	userID, userName := c.userID, c.userName
	page := c.currentPage
	if wasCurrent {
		delete(h.clients, c.userID)
		c.registered = false
		wsActiveConnections.Set(float64(len(h.clients)))
	}
	h.mu.Unlock()

	if !wasCurrent {
		return
	}

	_ = h.presence.MarkInactive(context.Background(), userID)

	leave := presencePayload{CurrentPage: page, IsActive: boolPtr(false)}
	if data, err := marshalEnvelope(TypePresenceUpdate, &leave, userID, userName); err == nil {
		h.broadcastToPage(page, data, userID)
	}

	h.logger.Info("client disconnected",
		zap.String("userId", userID),
		zap.String("page", page))
}

// Sweep evicts every registered connection idle for longer than maxIdle and
// gives it the full disconnect treatment. Returns the evicted userIds.
func (h *Hub) Sweep(maxIdle time.Duration) []string {
	now := time.Now()

	h.mu.RLock()
	var stale []*client
	var evicted []string
	for uid, c := range h.clients {
		if now.Sub(c.lastActivity) > maxIdle {
			stale = append(stale, c)
			evicted = append(evicted, uid)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.disconnect(c)
		c.shutdown()
		wsSweepEvictions.Inc()
	}
	return evicted
}

// broadcastToPage pushes data to every registered connection on the page,
// sender excluded. Per-peer delivery is best effort: a full buffer means the
// peer is skipped, and one broken peer never blocks the rest.
func (h *Hub) broadcastToPage(page string, data []byte, excludeUserID string) {
	type fanoutTarget struct {
		c      *client
		userID string
	}

	h.mu.RLock()
	targets := make([]fanoutTarget, 0, len(h.clients))
	for uid, c := range h.clients {
		if uid == excludeUserID || c.currentPage != page {
			continue
		}
		targets = append(targets, fanoutTarget{c: c, userID: uid})
	}
	h.mu.RUnlock()

	for _, t := range targets {
		if !t.c.trySend(data) {
			wsFanoutDropped.Inc()
			h.logger.Warn("dropped fan-out frame for slow peer",
				zap.String("userId", t.userID),
				zap.String("page", page))
		}
	}
}

func (h *Hub) usersOnPage(page string, excludeUserID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]string, 0, len(h.clients))
	for uid, c := range h.clients {
		if uid == excludeUserID || c.currentPage != page {
			continue
		}
		users = append(users, uid)
	}
	return users
}

func (h *Hub) sendToUser(userID string, data []byte) {
	h.mu.RLock()
	c := h.clients[userID]
	h.mu.RUnlock()

	if c != nil && !c.trySend(data) {
		wsFanoutDropped.Inc()
	}
}

// sendError answers a malformed message with an error envelope. The
// connection stays open; protocol errors are never fatal.
func (h *Hub) sendError(c *client, message string) {
	if data, err := marshalEnvelope(TypeError, gin.H{"message": message}, "", ""); err == nil {
		c.trySend(data)
	}
}

// ActiveUserIDs returns the userIds currently registered, mainly for health
// and metrics surfaces.
func (h *Hub) ActiveUserIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]string, 0, len(h.clients))
	for uid := range h.clients {
		users = append(users, uid)
	}
	return users
}

func boolPtr(b bool) *bool { return &b }
