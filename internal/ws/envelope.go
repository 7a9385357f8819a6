package ws

import (
	"encoding/json"
	"time"

	"collab-service/internal/domain"
)

// MessageType is the closed set of envelope types on the wire. Inbound
// messages with a type outside this set are logged and ignored, never an
// error; the switch in handleMessage is the single dispatch point.
type MessageType string

const (
	TypeConnected         MessageType = "connected"
	TypeError             MessageType = "error"
	TypePresenceUpdate    MessageType = "presence_update"
	TypeActivityBroadcast MessageType = "activity_broadcast"
	TypeNotification      MessageType = "notification"
	TypeSessionJoin       MessageType = "session_join"
	TypeSessionLeave      MessageType = "session_leave"
)

// Envelope is the uniform wrapper for every socket message. Payload stays
// opaque here and is only destructured where a specific field is required.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	UserID    string          `json:"userId,omitempty"`
	UserName  string          `json:"userName,omitempty"`
}

type presencePayload struct {
	CurrentPage    string         `json:"currentPage"`
	CurrentSection string         `json:"currentSection,omitempty"`
	UserRole       string         `json:"userRole,omitempty"`
	SessionID      string         `json:"sessionId,omitempty"`
	IsActive       *bool          `json:"isActive,omitempty"`
	Metadata       domain.JSONMap `json:"metadata,omitempty"`
}

type activityPayload struct {
	ActivityType string         `json:"activityType"`
	TargetEntity string         `json:"targetEntity"`
	TargetID     string         `json:"targetId,omitempty"`
	Description  string         `json:"description,omitempty"`
	Metadata     domain.JSONMap `json:"metadata,omitempty"`
}

type sessionPayload struct {
	SessionID string `json:"sessionId,omitempty"`
	Page      string `json:"page,omitempty"`
}

func marshalEnvelope(t MessageType, payload interface{}, userID, userName string) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Type:      t,
		Payload:   raw,
		Timestamp: time.Now(),
		UserID:    userID,
		UserName:  userName,
	})
}
