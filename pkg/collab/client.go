// Package collab is the client side of the collaboration service: a REST
// client for the presence/activity/notification endpoints and a Syncer that
// reconciles polled snapshots with pushed socket events.
package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Identity is the caller's externally-issued identity. The service trusts it
// as claimed; authentication happens upstream.
type Identity struct {
	ID   string `json:"userId"`
	Name string `json:"userName"`
	Role string `json:"userRole"`
}

type UserPresence struct {
	UserID         string                 `json:"userId"`
	UserName       string                 `json:"userName"`
	UserRole       string                 `json:"userRole"`
	CurrentPage    string                 `json:"currentPage"`
	CurrentSection string                 `json:"currentSection,omitempty"`
	IsActive       bool                   `json:"isActive"`
	SessionID      string                 `json:"sessionId,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	LastActivity   time.Time              `json:"lastActivity"`
}

type Activity struct {
	ID           string                 `json:"id"`
	UserID       string                 `json:"userId"`
	UserName     string                 `json:"userName"`
	ActivityType string                 `json:"activityType"`
	TargetEntity string                 `json:"targetEntity"`
	TargetID     string                 `json:"targetId,omitempty"`
	Description  string                 `json:"description"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"userId"`
	Payload   map[string]interface{} `json:"payload"`
	IsRead    bool                   `json:"isRead"`
	ReadAt    *time.Time             `json:"readAt,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

type PresenceUpdate struct {
	UserID         string                 `json:"userId"`
	UserName       string                 `json:"userName"`
	UserRole       string                 `json:"userRole,omitempty"`
	CurrentPage    string                 `json:"currentPage"`
	CurrentSection string                 `json:"currentSection,omitempty"`
	IsActive       *bool                  `json:"isActive,omitempty"`
	SessionID      string                 `json:"sessionId,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

type ActivityBroadcast struct {
	UserID       string                 `json:"userId"`
	UserName     string                 `json:"userName"`
	ActivityType string                 `json:"activityType"`
	TargetEntity string                 `json:"targetEntity"`
	TargetID     string                 `json:"targetId,omitempty"`
	Description  string                 `json:"description"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Client is the REST client for the collaboration endpoints. Polling through
// it is the authoritative read path; socket pushes only hint that a re-read
// is worthwhile.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) GetPresence(ctx context.Context, page string) ([]UserPresence, error) {
	var presences []UserPresence
	path := "/presence/" + url.PathEscape(page)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &presences); err != nil {
		return nil, err
	}
	return presences, nil
}

func (c *Client) UpdatePresence(ctx context.Context, update PresenceUpdate) error {
	return c.doJSON(ctx, http.MethodPost, "/presence", update, nil)
}

func (c *Client) GetActivities(ctx context.Context, page string, limit int) ([]Activity, error) {
	var activities []Activity
	path := "/activities?page=" + url.QueryEscape(page)
	if limit > 0 {
		path += "&limit=" + strconv.Itoa(limit)
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

func (c *Client) AppendActivity(ctx context.Context, activity ActivityBroadcast) error {
	return c.doJSON(ctx, http.MethodPost, "/activities", activity, nil)
}

func (c *Client) GetNotifications(ctx context.Context, userID string) ([]Notification, error) {
	var notifications []Notification
	path := "/notifications/" + url.PathEscape(userID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkNotificationsRead marks the listed notifications read; with no ids it
// marks all of the user's notifications.
func (c *Client) MarkNotificationsRead(ctx context.Context, userID string, ids []string) error {
	body := map[string]interface{}{}
	if len(ids) > 0 {
		body["notificationIds"] = ids
	}
	path := "/notifications/" + url.PathEscape(userID) + "/read"
	return c.doJSON(ctx, http.MethodPatch, path, body, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
