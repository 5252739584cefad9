// Package session tracks viewing sessions: bounded windows of continuous
// user activity that reset after a timeout of inactivity. Resolution is a
// pure function of the prior persisted record and the current time, so it is
// testable without simulating storage; persisting the returned record is the
// caller's responsibility.
package session

import (
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout is the inactivity gap after which a session expires.
const DefaultTimeout = 30 * time.Minute

// Info is the persisted session record for a user.
type Info struct {
	SessionID      string    `json:"session_id"`
	IsNewSession   bool      `json:"is_new_session"`
	StartTime      time.Time `json:"session_start_time"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Resolve advances the session state machine for one activity event.
//
// A nil, empty, or corrupt prior record starts a new session (silent
// recovery, never fatal). While consecutive activity gaps stay strictly below
// timeout the session continues: the identifier and start time are preserved
// and only the activity timestamp moves. Once the gap reaches the timeout a
// fresh session begins with a new identifier.
//
// Activity observed out of order (now before the recorded last activity, as
// happens with racing writers on multiple devices) counts as a zero gap and
// continues the session.
func Resolve(prior *Info, now time.Time, timeout time.Duration) Info {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if prior == nil || prior.SessionID == "" || prior.LastActivityAt.IsZero() {
		return newSession(now)
	}

	gap := now.Sub(prior.LastActivityAt)
	if gap >= timeout {
		return newSession(now)
	}

	return Info{
		SessionID:      prior.SessionID,
		IsNewSession:   false,
		StartTime:      prior.StartTime,
		LastActivityAt: now,
	}
}

func newSession(now time.Time) Info {
	return Info{
		SessionID:      uuid.New().String(),
		IsNewSession:   true,
		StartTime:      now,
		LastActivityAt: now,
	}
}
