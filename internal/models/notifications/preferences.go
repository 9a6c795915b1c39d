package models

import "time"

// Preferences mirrors the client's notification category toggles.
type Preferences struct {
	Enabled        bool      `json:"enabled" db:"enabled"`
	FriendRequests bool      `json:"friendRequests" db:"friend_requests"`
	EventUpdates   bool      `json:"eventUpdates" db:"event_updates"`
	EventReminders bool      `json:"eventReminders" db:"event_reminders"`
	CommunityNotes bool      `json:"communityNotes" db:"community_notes"`
	UpdatedAt      time.Time `json:"updatedAt,omitempty" db:"updated_at"`
}

// DefaultPreferences has every category enabled.
func DefaultPreferences() Preferences {
	return Preferences{
		Enabled:        true,
		FriendRequests: true,
		EventUpdates:   true,
		EventReminders: true,
		CommunityNotes: true,
	}
}

// UpdatePreferencesRequest is a partial update; omitted keys keep their value.
type UpdatePreferencesRequest struct {
	Enabled        *bool `json:"enabled,omitempty"`
	FriendRequests *bool `json:"friendRequests,omitempty"`
	EventUpdates   *bool `json:"eventUpdates,omitempty"`
	EventReminders *bool `json:"eventReminders,omitempty"`
	CommunityNotes *bool `json:"communityNotes,omitempty"`
}

// Apply merges the request into p.
func (r UpdatePreferencesRequest) Apply(p Preferences) Preferences {
	if r.Enabled != nil {
		p.Enabled = *r.Enabled
	}
	if r.FriendRequests != nil {
		p.FriendRequests = *r.FriendRequests
	}
	if r.EventUpdates != nil {
		p.EventUpdates = *r.EventUpdates
	}
	if r.EventReminders != nil {
		p.EventReminders = *r.EventReminders
	}
	if r.CommunityNotes != nil {
		p.CommunityNotes = *r.CommunityNotes
	}
	return p
}
