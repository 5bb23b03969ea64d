package fairness

import (
	"context"
	"time"

	"fairplay/entropy"
)

// Commitment is what a player sees before any draw: the session id and the
// hash of the server secret.
type Commitment struct {
	SessionID  string `json:"sessionId"`
	SecretHash string `json:"secretHash"`
}

// Entry records one derived seed and the inputs that produced it.
type Entry struct {
	Label     string              `json:"label"`
	Block     entropy.BlockRecord `json:"block"`
	Seed      string              `json:"seed"`
	DerivedAt time.Time           `json:"derivedAt"`
}

// Session is the server-side record of a commit-reveal session. Secret is
// never returned to a player before EndedAt is set.
type Session struct {
	ID         string              `json:"sessionId"`
	Secret     string              `json:"secret"`
	SecretHash string              `json:"secretHash"`
	Block      entropy.BlockRecord `json:"block"`
	PurposeLog []Entry             `json:"purposeLog"`
	CreatedAt  time.Time           `json:"createdAt"`
	EndedAt    *time.Time          `json:"endedAt,omitempty"`
}

// Ended reports whether the secret has been revealed.
func (s *Session) Ended() bool { return s.EndedAt != nil }

// HasLabel reports whether label was already used in this session.
func (s *Session) HasLabel(label string) bool {
	for _, e := range s.PurposeLog {
		if e.Label == label {
			return true
		}
	}
	return false
}

// Commitment returns the public half of the session.
func (s *Session) Commitment() Commitment {
	return Commitment{SessionID: s.ID, SecretHash: s.SecretHash}
}

// Reveal is published when a session ends.
type Reveal struct {
	SessionID  string  `json:"sessionId"`
	Secret     string  `json:"secret"`
	SecretHash string  `json:"secretHash"`
	PurposeLog []Entry `json:"purposeLog"`
}

// SessionStore persists sessions. Load and Update return an error of kind
// KindSessionNotFound for unknown ids.
type SessionStore interface {
	CreateSession(ctx context.Context, s *Session) error
	LoadSession(ctx context.Context, id string) (*Session, error)
	// UpdateSession applies fn to the stored session as one atomic
	// read-modify-write, also across processes sharing the store. fn may run
	// more than once; when it returns an error nothing is written.
	UpdateSession(ctx context.Context, id string, fn func(*Session) error) error
}

// Notifier is told about every derived entry, e.g. to stream draws to
// connected players.
type Notifier interface {
	Derived(sessionID string, e Entry)
	Revealed(r Reveal)
}
