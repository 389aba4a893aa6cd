package types

import (
	"time"
)

// AdminSessionId is the sentinel session id carried by messages sent
// through the admin broadcast path. It can never be banned.
const AdminSessionId = "admin-broadcast"

type Message struct {
	Id        int       `json:"id"`
	Ref       string    `json:"ref,omitempty"`
	Nickname  string    `json:"nickname"`
	Body      string    `json:"body"`
	SessionId string    `json:"session_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PresenceEntry is one announced connection on the listener channel.
// Key is a per-connection random key, so the same nickname may appear
// more than once in a roster.
type PresenceEntry struct {
	Key      string    `json:"key"`
	Nickname string    `json:"nickname"`
	JoinedAt time.Time `json:"joined_at"`
}

type Ban struct {
	Id        int        `json:"id"`
	SessionId string     `json:"session_id"`
	Nickname  string     `json:"nickname,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Active reports whether the ban is in force at time now. A ban with no
// expiry never expires on its own.
func (b Ban) Active(now time.Time) bool {
	return b.ExpiresAt == nil || b.ExpiresAt.After(now)
}

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}
