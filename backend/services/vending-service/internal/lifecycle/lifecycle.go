// Package lifecycle decides what a scan does to the set of open sessions.
//
// The kiosk has one physical scanner, so only one user's session may be live at a
// time: a scan by the owner of the live session extends it, any other scan first
// closes every open session and then opens a new one for the scanning user.
package lifecycle

import (
	"github.com/google/uuid"

	"snackbox/backend/services/vending-service/internal/models"
)

// State is a user's position in the session lifecycle.
type State int

const (
	NoActiveSession State = iota
	ActiveSession
)

func (s State) String() string {
	switch s {
	case NoActiveSession:
		return "no_active_session"
	case ActiveSession:
		return "active_session"
	default:
		return "unknown"
	}
}

// StateOf maps the user's current active session (nil when none) to a State.
func StateOf(active *models.Session) State {
	if active != nil && active.Active() {
		return ActiveSession
	}
	return NoActiveSession
}

// Action is what the coordinator must do for a scan.
type Action int

const (
	// Extend appends the scan to Decision.Target.
	Extend Action = iota + 1
	// Open closes Decision.Close and then opens a new session seeded with the scan.
	Open
)

func (a Action) String() string {
	switch a {
	case Extend:
		return "extend"
	case Open:
		return "open"
	default:
		return "unknown"
	}
}

// Decision is the outcome of Decide.
type Decision struct {
	Action Action
	// Target is the session to extend; nil for Open.
	Target *models.Session
	// Close lists the sessions that must be closed before opening, in the order given.
	Close []uuid.UUID
}

// Decide returns the action for a scan of barcode. active is the scanning user's open
// session (nil when none) and others are all currently open sessions; closed or duplicate
// entries are ignored. Admin barcodes follow the same
// rules as payment barcodes.
func Decide(barcode models.Barcode, active *models.Session, others []models.Session) Decision {
	if StateOf(active) == ActiveSession && active.UserID == barcode.UserID {
		return Decision{Action: Extend, Target: active}
	}

	var toClose []uuid.UUID
	seen := make(map[uuid.UUID]struct{}, len(others))
	for i := range others {
		s := &others[i]
		if !s.Active() {
			continue
		}
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		toClose = append(toClose, s.ID)
	}
	return Decision{Action: Open, Close: toClose}
}
