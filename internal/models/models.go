package models

import "time"

// Session is one recorded hosting or joining run of the CLI.
type Session struct {
	ID        int64      `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at"`
	Name      string     `json:"name"`
	Role      string     `json:"role"`
	Port      int        `json:"port"`
}

// SessionEvent is one connection or traffic event inside a session.
type SessionEvent struct {
	ID        int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	Kind      string    `json:"kind"`
	PeerIndex int       `json:"peer_index"`
	Channel   int       `json:"channel"`
	Size      int       `json:"size"`
}
