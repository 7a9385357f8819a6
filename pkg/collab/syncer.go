package collab

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Envelope mirrors the socket wire format.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	UserID    string          `json:"userId,omitempty"`
	UserName  string          `json:"userName,omitempty"`
}

const (
	defaultPresencePoll     = 30 * time.Second
	defaultActivityPoll     = 15 * time.Second
	defaultNotificationPoll = 30 * time.Second
	defaultReconnect        = 3 * time.Second
	defaultActivityLimit    = 20
)

type Options struct {
	// BaseURL is the REST base, e.g. http://host:8004/api/collab.
	BaseURL string
	// WSURL is the socket endpoint; derived from BaseURL when empty.
	WSURL string

	User    Identity
	Page    string
	Section string

	PresencePollInterval     time.Duration
	ActivityPollInterval     time.Duration
	NotificationPollInterval time.Duration
	// ReconnectInterval is a fixed backoff; the syncer redials forever.
	// Dashboard sessions are long-lived, so no cap and no exponential growth.
	ReconnectInterval time.Duration
	ActivityLimit     int

	Logger *zap.Logger

	// OnEvent observes every pushed envelope, after the syncer has handled it.
	OnEvent func(Envelope)
}

// Syncer keeps a client-side view of presence, activities and notifications
// for one mounted page. Polling is the source of truth; socket pushes only
// invalidate the matching query so the next read refetches. One socket per
// Syncer lifetime, re-dialed on a fixed backoff.
type Syncer struct {
	opts Options
	api  *Client

	mu            sync.RWMutex
	page          string
	section       string
	presences     []UserPresence
	activities    []Activity
	notifications []Notification

	invalidatePresence      chan struct{}
	invalidateActivities    chan struct{}
	invalidateNotifications chan struct{}

	connMu sync.Mutex
	conn   *websocket.Conn

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSyncer(opts Options) *Syncer {
	if opts.PresencePollInterval <= 0 {
		opts.PresencePollInterval = defaultPresencePoll
	}
	if opts.ActivityPollInterval <= 0 {
		opts.ActivityPollInterval = defaultActivityPoll
	}
	if opts.NotificationPollInterval <= 0 {
		opts.NotificationPollInterval = defaultNotificationPoll
	}
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = defaultReconnect
	}
	if opts.ActivityLimit <= 0 {
		opts.ActivityLimit = defaultActivityLimit
	}
	if opts.WSURL == "" {
		wsURL := strings.Replace(opts.BaseURL, "http://", "ws://", 1)
		wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
		opts.WSURL = wsURL + "/ws/collaboration"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Syncer{
		opts:                    opts,
		api:                     NewClient(opts.BaseURL, 10*time.Second),
		page:                    opts.Page,
		section:                 opts.Section,
		invalidatePresence:      make(chan struct{}, 1),
		invalidateActivities:    make(chan struct{}, 1),
		invalidateNotifications: make(chan struct{}, 1),
	}
}

// Start launches the poll loops and the socket loop. Call Close to stop.
func (s *Syncer) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(4)
	go s.pollLoop(ctx, s.opts.PresencePollInterval, s.invalidatePresence, s.refreshPresence)
	go s.pollLoop(ctx, s.opts.ActivityPollInterval, s.invalidateActivities, s.refreshActivities)
	go s.pollLoop(ctx, s.opts.NotificationPollInterval, s.invalidateNotifications, s.refreshNotifications)
	go s.socketLoop(ctx)
}

// Close best-effort announces departure, then stops all loops. The final
// inactive presence may not arrive; the server's sweep covers that case.
func (s *Syncer) Close() {
	s.emitPresence(false)

	if s.cancel != nil {
		s.cancel()
	}
	s.closeConn()
	s.wg.Wait()
}

// SetLocation re-announces presence for a route change and invalidates the
// location-scoped queries.
func (s *Syncer) SetLocation(page, section string) {
	s.mu.Lock()
	s.page = page
	s.section = section
	s.mu.Unlock()

	s.emitPresence(true)
	s.invalidate(s.invalidatePresence)
	s.invalidate(s.invalidateActivities)
}

// ActiveUsers returns the last-polled presence rows with isActive set.
func (s *Syncer) ActiveUsers() []UserPresence {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]UserPresence, 0, len(s.presences))
	for _, p := range s.presences {
		if p.IsActive {
			active = append(active, p)
		}
	}
	return active
}

func (s *Syncer) RecentActivities() []Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Activity(nil), s.activities...)
}

func (s *Syncer) Notifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Notification(nil), s.notifications...)
}

// UpdatePresence writes presence over REST for durability and emits it on the
// socket for low-latency fan-out.
func (s *Syncer) UpdatePresence(ctx context.Context, section string, metadata map[string]interface{}) error {
	s.mu.Lock()
	s.section = section
	page := s.page
	s.mu.Unlock()

	active := true
	update := PresenceUpdate{
		UserID:         s.opts.User.ID,
		UserName:       s.opts.User.Name,
		UserRole:       s.opts.User.Role,
		CurrentPage:    page,
		CurrentSection: section,
		IsActive:       &active,
		Metadata:       metadata,
	}

	err := s.api.UpdatePresence(ctx, update)
	s.emitPresence(true)
	return err
}

// SendActivityBroadcast writes the activity over REST for durability and
// emits it on the socket for low-latency fan-out. Both paths are attempted;
// the REST error is the one reported.
func (s *Syncer) SendActivityBroadcast(ctx context.Context, activity ActivityBroadcast) error {
	activity.UserID = s.opts.User.ID
	activity.UserName = s.opts.User.Name

	err := s.api.AppendActivity(ctx, activity)

	s.sendEnvelope("activity_broadcast", map[string]interface{}{
		"activityType": activity.ActivityType,
		"targetEntity": activity.TargetEntity,
		"targetId":     activity.TargetID,
		"description":  activity.Description,
		"metadata":     activity.Metadata,
	})

	return err
}

func (s *Syncer) MarkNotificationsAsRead(ctx context.Context, ids ...string) error {
	if err := s.api.MarkNotificationsRead(ctx, s.opts.User.ID, ids); err != nil {
		return err
	}
	s.invalidate(s.invalidateNotifications)
	return nil
}

func (s *Syncer) pollLoop(ctx context.Context, interval time.Duration, invalidated <-chan struct{}, refresh func(context.Context)) {
	defer s.wg.Done()

	// Poll immediately so mount does not wait a full interval.
	refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			refresh(ctx)
		case <-invalidated:
			refresh(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Syncer) refreshPresence(ctx context.Context) {
	s.mu.RLock()
	page := s.page
	s.mu.RUnlock()

	presences, err := s.api.GetPresence(ctx, page)
	if err != nil {
		s.opts.Logger.Warn("presence poll failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.presences = presences
	s.mu.Unlock()
}

func (s *Syncer) refreshActivities(ctx context.Context) {
	s.mu.RLock()
	page := s.page
	s.mu.RUnlock()

	activities, err := s.api.GetActivities(ctx, page, s.opts.ActivityLimit)
	if err != nil {
		s.opts.Logger.Warn("activity poll failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.activities = activities
	s.mu.Unlock()
}

func (s *Syncer) refreshNotifications(ctx context.Context) {
	notifications, err := s.api.GetNotifications(ctx, s.opts.User.ID)
	if err != nil {
		s.opts.Logger.Warn("notification poll failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.notifications = notifications
	s.mu.Unlock()
}

func (s *Syncer) socketLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.opts.WSURL, nil)
		if err != nil {
			s.opts.Logger.Warn("socket dial failed, retrying",
				zap.Duration("backoff", s.opts.ReconnectInterval),
				zap.Error(err))
			if !s.sleep(ctx, s.opts.ReconnectInterval) {
				return
			}
			continue
		}

		s.connMu.Lock()
		s.conn = conn
		s.connMu.Unlock()

		// Announce presence as soon as the socket opens; the server holds no
		// identity until this arrives.
		s.emitPresence(true)

		s.readLoop(conn)
		s.closeConn()

		if !s.sleep(ctx, s.opts.ReconnectInterval) {
			return
		}
	}
}

func (s *Syncer) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.opts.Logger.Warn("malformed push event", zap.Error(err))
			continue
		}

		// Pushed events are cache-invalidation signals, never state transfer:
		// the refetch through REST is what makes the view correct.
		switch env.Type {
		case "presence_update", "session_join", "session_leave":
			s.invalidate(s.invalidatePresence)
		case "activity_broadcast":
			s.invalidate(s.invalidateActivities)
		case "notification":
			s.invalidate(s.invalidateNotifications)
		case "connected":
			// welcome ack, nothing to refetch
		case "error":
			s.opts.Logger.Warn("server rejected a message", zap.String("payload", string(env.Payload)))
		default:
			s.opts.Logger.Debug("ignoring unknown push type", zap.String("type", env.Type))
		}

		if s.opts.OnEvent != nil {
			s.opts.OnEvent(env)
		}
	}
}

func (s *Syncer) emitPresence(active bool) {
	s.mu.RLock()
	page, section := s.page, s.section
	s.mu.RUnlock()

	s.sendEnvelope("presence_update", map[string]interface{}{
		"currentPage":    page,
		"currentSection": section,
		"userRole":       s.opts.User.Role,
		"isActive":       active,
	})
}

func (s *Syncer) sendEnvelope(msgType string, payload map[string]interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}

	env := Envelope{
		Type:      msgType,
		Payload:   raw,
		Timestamp: time.Now(),
		UserID:    s.opts.User.ID,
		UserName:  s.opts.User.Name,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return
	}
	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.opts.Logger.Warn("socket send failed", zap.String("type", msgType), zap.Error(err))
	}
}

func (s *Syncer) invalidate(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (s *Syncer) closeConn() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *Syncer) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
