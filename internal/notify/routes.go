package notify

import (
	"fmt"
	"strings"
)

// Kind is the closed set of notification types the backend sends.
type Kind int

const (
	KindGeneral Kind = iota
	KindFriendRequest
	KindFriendAccepted
	KindEventUpdate
	KindEventReminder
	KindEventInvitation
	KindEventRoster
	KindCommunityNote
	KindVenueUpdate
	KindSpaceUpdate

	kindCount
)

var kindNames = [kindCount]string{
	KindGeneral:         "general",
	KindFriendRequest:   "friend_request",
	KindFriendAccepted:  "friend_accepted",
	KindEventUpdate:     "event_update",
	KindEventReminder:   "event_reminder",
	KindEventInvitation: "event_invitation",
	KindEventRoster:     "event_roster",
	KindCommunityNote:   "community_note",
	KindVenueUpdate:     "venue_update",
	KindSpaceUpdate:     "space_update",
}

func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a wire type string to a Kind. ok is false for unknown or
// empty values, which callers route as KindGeneral.
func ParseKind(v string) (Kind, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	for k, name := range kindNames {
		if name == v {
			return Kind(k), true
		}
	}
	return KindGeneral, false
}

// Kinds lists every notification kind.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// Category groups kinds for settings toggles and Android channels.
type Category string

const (
	CategoryFriends   Category = "friends"
	CategoryEvents    Category = "events"
	CategoryReminders Category = "reminders"
	CategoryCommunity Category = "community"
	CategoryVenues    Category = "venues"
	CategoryGeneral   Category = "general"
)

func (k Kind) Category() Category {
	switch k {
	case KindFriendRequest, KindFriendAccepted:
		return CategoryFriends
	case KindEventUpdate, KindEventInvitation, KindEventRoster:
		return CategoryEvents
	case KindEventReminder:
		return CategoryReminders
	case KindCommunityNote:
		return CategoryCommunity
	case KindVenueUpdate, KindSpaceUpdate:
		return CategoryVenues
	case KindGeneral:
		return CategoryGeneral
	default:
		panic(fmt.Sprintf("notify: unhandled kind %d", int(k)))
	}
}

// Record is a normalized notification payload.
type Record struct {
	Kind Kind
	// Type is the raw wire type; it differs from Kind.String() when the
	// backend sent a type this client does not know.
	Type   string
	Fields map[string]string
}

// NewRecord normalizes a transport data map. The input map is copied.
func NewRecord(data map[string]string) Record {
	fields := make(map[string]string, len(data))
	for k, v := range data {
		fields[k] = v
	}
	raw := fields["type"]
	kind, _ := ParseKind(raw)
	return Record{Kind: kind, Type: raw, Fields: fields}
}

// Get returns the field value, or "" when absent.
func (r Record) Get(key string) string {
	return r.Fields[key]
}

// first returns the first non-empty field among keys.
func (r Record) first(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r.Fields[k]); v != "" {
			return v
		}
	}
	return ""
}

// Destination is a navigation target: a tab and a screen nested inside it.
type Destination struct {
	Tab    string
	Screen string
	Params map[string]string
}

func (d Destination) String() string {
	return d.Tab + "/" + d.Screen
}

// route describes the fixed destination of one kind. The id keys are tried in
// order; the first present value is passed under param.
type route struct {
	tab    string
	screen string
	param  string
	ids    []string
	extra  map[string][]string
}

// routeFor returns the fixed route of k. ok is false for KindGeneral, which
// has no fixed destination.
func routeFor(k Kind) (route, bool) {
	switch k {
	case KindFriendRequest:
		return route{tab: "Profile", screen: "FriendRequests", param: "userId", ids: []string{"requesterId", "senderId", "userId"}}, true
	case KindFriendAccepted:
		return route{tab: "Profile", screen: "UserProfile", param: "userId", ids: []string{"accepterId", "userId"}}, true
	case KindEventUpdate:
		return route{tab: "Local", screen: "EventDetails", param: "eventId", ids: []string{"eventId"}}, true
	case KindEventReminder:
		return route{tab: "Local", screen: "EventDetails", param: "eventId", ids: []string{"eventId"}}, true
	case KindEventInvitation:
		return route{
			tab: "Local", screen: "EventDetails", param: "eventId", ids: []string{"eventId"},
			extra: map[string][]string{"invitationId": {"invitationId"}, "inviterId": {"inviterId", "userId"}},
		}, true
	case KindEventRoster:
		return route{tab: "Local", screen: "EventRoster", param: "eventId", ids: []string{"eventId"}}, true
	case KindCommunityNote:
		return route{tab: "Community", screen: "PostDetails", param: "postId", ids: []string{"noteId", "postId"}}, true
	case KindVenueUpdate:
		return route{tab: "Venues", screen: "VenueDetails", param: "venueId", ids: []string{"venueId"}}, true
	case KindSpaceUpdate:
		return route{
			tab: "Venues", screen: "SpaceDetails", param: "spaceId", ids: []string{"spaceId"},
			extra: map[string][]string{"venueId": {"venueId"}},
		}, true
	case KindGeneral:
		return route{}, false
	default:
		panic(fmt.Sprintf("notify: unhandled kind %d", int(k)))
	}
}

// Resolve maps a record to its destination. ok is false when the record has
// nowhere sensible to go.
//
// A known kind whose correlated id is missing is routed like a general
// notification, so a screen is never opened without the id it needs.
func Resolve(r Record) (Destination, bool) {
	if rt, ok := routeFor(r.Kind); ok {
		if id := r.first(rt.ids...); id != "" {
			params := map[string]string{rt.param: id}
			for name, keys := range rt.extra {
				if v := r.first(keys...); v != "" {
					params[name] = v
				}
			}
			return Destination{Tab: rt.tab, Screen: rt.screen, Params: params}, true
		}
	}
	return resolveScreen(r)
}

// resolveScreen handles the general branch: a "Tab/Screen" value in the
// screen field navigates there with the whole payload as params.
func resolveScreen(r Record) (Destination, bool) {
	tab, screen, found := strings.Cut(strings.TrimSpace(r.Get("screen")), "/")
	tab, screen = strings.TrimSpace(tab), strings.TrimSpace(screen)
	if !found || tab == "" || screen == "" || strings.Contains(screen, "/") {
		return Destination{}, false
	}
	params := make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		params[k] = v
	}
	return Destination{Tab: tab, Screen: screen, Params: params}, true
}
