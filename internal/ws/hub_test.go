package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"collab-service/internal/repository"
	"collab-service/internal/service"
)

type hubFixture struct {
	hub           *Hub
	wsURL         string
	presenceRepo  repository.PresenceRepository
	activityRepo  repository.ActivityRepository
	notifications repository.NotificationRepository
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)

	db.Exec(`CREATE TABLE user_presences (
		user_id TEXT PRIMARY KEY,
		user_name TEXT NOT NULL,
		user_role TEXT,
		current_page TEXT NOT NULL,
		current_section TEXT,
		is_active BOOLEAN NOT NULL DEFAULT true,
		session_id TEXT,
		metadata TEXT,
		last_activity DATETIME NOT NULL
	)`)
	db.Exec(`CREATE TABLE collaboration_activities (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		user_name TEXT NOT NULL,
		activity_type TEXT NOT NULL,
		target_entity TEXT NOT NULL,
		target_id TEXT,
		description TEXT,
		metadata TEXT,
		created_at DATETIME NOT NULL
	)`)
	db.Exec(`CREATE TABLE collaboration_notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		payload TEXT,
		is_read BOOLEAN NOT NULL DEFAULT false,
		read_at DATETIME,
		created_at DATETIME NOT NULL
	)`)

	logger := zap.NewNop()
	presenceRepo := repository.NewPresenceRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	hub := NewHub(
		service.NewPresenceService(presenceRepo, nil, logger),
		service.NewActivityService(activityRepo, 20, logger),
		service.NewNotificationService(notificationRepo, nil, logger),
		30*time.Second,
		5*time.Minute,
		logger,
	)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", hub.HandleWebSocket)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &hubFixture{
		hub:           hub,
		wsURL:         "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		presenceRepo:  presenceRepo,
		activityRepo:  activityRepo,
		notifications: notificationRepo,
	}
}

func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "expected no frame on this connection")
}

func sendEnvelope(t *testing.T, conn *websocket.Conn, msgType MessageType, userID, userName string, payload interface{}) {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{
		Type:     msgType,
		Payload:  raw,
		UserID:   userID,
		UserName: userName,
	}))
}

func joinPage(t *testing.T, f *hubFixture, conn *websocket.Conn, userID, userName, page string) {
	t.Helper()

	env := readEnvelope(t, conn)
	require.Equal(t, TypeConnected, env.Type)

	sendEnvelope(t, conn, TypePresenceUpdate, userID, userName, presencePayload{CurrentPage: page})
	require.Eventually(t, func() bool {
		for _, uid := range f.hub.ActiveUserIDs() {
			if uid == userID {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "user %s never registered", userID)
}

func TestHubPresenceFanOutExcludesSender(t *testing.T) {
	f := newHubFixture(t)

	alice := dialWS(t, f.wsURL)
	joinPage(t, f, alice, "u1", "Alice", "dashboard")

	bob := dialWS(t, f.wsURL)
	joinPage(t, f, bob, "u2", "Bob", "dashboard")

	// Alice sees Bob arrive; Bob never receives his own update.
	env := readEnvelope(t, alice)
	assert.Equal(t, TypePresenceUpdate, env.Type)
	assert.Equal(t, "u2", env.UserID)
	assert.Equal(t, "Bob", env.UserName)
	expectSilence(t, bob)

	// Presence landed in the store as a side effect of the socket message.
	presence, err := f.presenceRepo.GetByUser(context.Background(), "u2")
	require.NoError(t, err)
	assert.Equal(t, "dashboard", presence.CurrentPage)
	assert.True(t, presence.IsActive)
}

func TestHubFanOutIsPageScoped(t *testing.T) {
	f := newHubFixture(t)

	alice := dialWS(t, f.wsURL)
	joinPage(t, f, alice, "u1", "Alice", "dashboard")

	carol := dialWS(t, f.wsURL)
	joinPage(t, f, carol, "u3", "Carol", "reports")

	bob := dialWS(t, f.wsURL)
	joinPage(t, f, bob, "u2", "Bob", "dashboard")

	env := readEnvelope(t, alice)
	assert.Equal(t, "u2", env.UserID)
	expectSilence(t, carol)
}

func TestHubMalformedMessageKeepsConnectionOpen(t *testing.T) {
	f := newHubFixture(t)

	conn := dialWS(t, f.wsURL)
	env := readEnvelope(t, conn)
	require.Equal(t, TypeConnected, env.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("this is not json")))
	env = readEnvelope(t, conn)
	assert.Equal(t, TypeError, env.Type)

	// Missing currentPage is a protocol error too.
	sendEnvelope(t, conn, TypePresenceUpdate, "u1", "Alice", presencePayload{})
	env = readEnvelope(t, conn)
	assert.Equal(t, TypeError, env.Type)

	// The same connection still registers with a valid update.
	sendEnvelope(t, conn, TypePresenceUpdate, "u1", "Alice", presencePayload{CurrentPage: "dashboard"})
	require.Eventually(t, func() bool {
		return len(f.hub.ActiveUserIDs()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHubUnknownTypeIsIgnored(t *testing.T) {
	f := newHubFixture(t)

	conn := dialWS(t, f.wsURL)
	env := readEnvelope(t, conn)
	require.Equal(t, TypeConnected, env.Type)

	sendEnvelope(t, conn, MessageType("cursor_blink"), "u1", "Alice", gin.H{"x": 1})
	expectSilence(t, conn)
}

func TestHubActivityBroadcastNotifiesPeers(t *testing.T) {
	f := newHubFixture(t)

	alice := dialWS(t, f.wsURL)
	joinPage(t, f, alice, "u1", "Alice", "report-7")

	bob := dialWS(t, f.wsURL)
	joinPage(t, f, bob, "u2", "Bob", "report-7")
	_ = readEnvelope(t, alice) // Bob's presence fan-out

	sendEnvelope(t, alice, TypeActivityBroadcast, "u1", "Alice", activityPayload{
		ActivityType: "edit",
		TargetEntity: "report-7",
		Description:  "updated the revenue widget",
	})

	// Bob gets the live broadcast and a notification push.
	got := map[MessageType]Envelope{}
	for i := 0; i < 2; i++ {
		env := readEnvelope(t, bob)
		got[env.Type] = env
	}
	require.Contains(t, got, TypeActivityBroadcast)
	require.Contains(t, got, TypeNotification)
	assert.Equal(t, "u1", got[TypeActivityBroadcast].UserID)

	// Both the activity and Bob's notification are durable.
	activities, err := f.activityRepo.List(context.Background(), "report-7", 20)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, "edit", activities[0].ActivityType)

	notifications, err := f.notifications.ListByUser(context.Background(), "u2")
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.False(t, notifications[0].IsRead)
	assert.Equal(t, "u1", notifications[0].Payload["actorId"])
}

func TestHubSessionSignalIsRelayedNotPersisted(t *testing.T) {
	f := newHubFixture(t)

	alice := dialWS(t, f.wsURL)
	joinPage(t, f, alice, "u1", "Alice", "dashboard")

	bob := dialWS(t, f.wsURL)
	joinPage(t, f, bob, "u2", "Bob", "dashboard")
	_ = readEnvelope(t, alice)

	sendEnvelope(t, bob, TypeSessionJoin, "u2", "Bob", sessionPayload{SessionID: "s-1", Page: "dashboard"})

	env := readEnvelope(t, alice)
	assert.Equal(t, TypeSessionJoin, env.Type)
	assert.Equal(t, "u2", env.UserID)

	activities, err := f.activityRepo.List(context.Background(), "dashboard", 20)
	require.NoError(t, err)
	assert.Empty(t, activities)
}

func TestHubDisconnectMarksInactiveAndNotifiesPage(t *testing.T) {
	f := newHubFixture(t)

	alice := dialWS(t, f.wsURL)
	joinPage(t, f, alice, "u1", "Alice", "dashboard")

	bob := dialWS(t, f.wsURL)
	joinPage(t, f, bob, "u2", "Bob", "dashboard")
	_ = readEnvelope(t, alice)

	require.NoError(t, bob.Close())

	env := readEnvelope(t, alice)
	assert.Equal(t, TypePresenceUpdate, env.Type)
	assert.Equal(t, "u2", env.UserID)

	var leave presencePayload
	require.NoError(t, json.Unmarshal(env.Payload, &leave))
	require.NotNil(t, leave.IsActive)
	assert.False(t, *leave.IsActive)

	require.Eventually(t, func() bool {
		presence, err := f.presenceRepo.GetByUser(context.Background(), "u2")
		return err == nil && !presence.IsActive
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"u1"}, f.hub.ActiveUserIDs())
}

func TestHubSupersedeClosesOldConnectionWithoutLeaveEvent(t *testing.T) {
	f := newHubFixture(t)

	alice := dialWS(t, f.wsURL)
	joinPage(t, f, alice, "u1", "Alice", "dashboard")

	first := dialWS(t, f.wsURL)
	joinPage(t, f, first, "u2", "Bob", "dashboard")
	_ = readEnvelope(t, alice)

	second := dialWS(t, f.wsURL)
	joinPage(t, f, second, "u2", "Bob", "dashboard")

	// The stale socket is closed by the server.
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	// Alice sees the re-join but no isActive=false for u2; the user is still
	// active in the store and registered exactly once.
	env := readEnvelope(t, alice)
	assert.Equal(t, TypePresenceUpdate, env.Type)
	assert.Equal(t, "u2", env.UserID)
	var p presencePayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Nil(t, p.IsActive)
	expectSilence(t, alice)

	presence, err := f.presenceRepo.GetByUser(context.Background(), "u2")
	require.NoError(t, err)
	assert.True(t, presence.IsActive)
	assert.Len(t, f.hub.ActiveUserIDs(), 2)
}

func TestHubIdentitySwitchReleasesOldRegistryEntry(t *testing.T) {
	f := newHubFixture(t)

	conn := dialWS(t, f.wsURL)
	joinPage(t, f, conn, "u1", "Alice", "dashboard")

	// The same socket re-claims a different identity; identity is whatever the
	// latest presence_update says, so the old key must be released.
	sendEnvelope(t, conn, TypePresenceUpdate, "u2", "Bob", presencePayload{CurrentPage: "dashboard"})
	require.Eventually(t, func() bool {
		ids := f.hub.ActiveUserIDs()
		return len(ids) == 1 && ids[0] == "u2"
	}, 2*time.Second, 10*time.Millisecond, "registry should hold exactly the re-claimed identity")

	// Closing the socket empties the registry; no orphaned entry survives for
	// the sweep to report forever.
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return len(f.hub.ActiveUserIDs()) == 0
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		presence, err := f.presenceRepo.GetByUser(context.Background(), "u2")
		return err == nil && !presence.IsActive
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, f.hub.Sweep(0))
}

func TestHubSweepEvictsIdleConnections(t *testing.T) {
	f := newHubFixture(t)

	conn := dialWS(t, f.wsURL)
	joinPage(t, f, conn, "u1", "Alice", "dashboard")

	// Nothing is idle yet.
	assert.Empty(t, f.hub.Sweep(5*time.Minute))

	f.hub.mu.Lock()
	f.hub.clients["u1"].lastActivity = time.Now().Add(-10 * time.Minute)
	f.hub.mu.Unlock()

	evicted := f.hub.Sweep(5 * time.Minute)
	assert.Equal(t, []string{"u1"}, evicted)
	assert.Empty(t, f.hub.ActiveUserIDs())

	require.Eventually(t, func() bool {
		presence, err := f.presenceRepo.GetByUser(context.Background(), "u1")
		return err == nil && !presence.IsActive
	}, 2*time.Second, 10*time.Millisecond)

	// The evicted socket is closed server side.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
