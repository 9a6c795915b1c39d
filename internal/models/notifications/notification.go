package models

import "time"

// Notification is an inbox row; unread rows drive the badge count.
type Notification struct {
	ID        string            `json:"id" db:"id"`
	UserID    string            `json:"userId" db:"user_id"`
	Type      string            `json:"type" db:"type"`
	Title     string            `json:"title" db:"title"`
	Body      string            `json:"body" db:"body"`
	Data      map[string]string `json:"data" db:"data"`
	Read      bool              `json:"read" db:"read"`
	CreatedAt time.Time         `json:"createdAt" db:"created_at"`
}

// TestNotificationRequest asks the backend to push a sample notification to
// the caller's own devices.
type TestNotificationRequest struct {
	Type  string            `json:"type" binding:"required"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}

type UnreadCountResponse struct {
	UnreadCount int `json:"unreadCount"`
}
