package monitor

import (
	"github.com/jorabeknazarmatov/test-platform/internal/model"
	"github.com/jorabeknazarmatov/test-platform/internal/session"
)

// Event types published on the monitor channels.
const (
	EventProgress = "progress"
	EventFinished = "finished"
	EventReset    = "reset"
)

// Event is the progress record a proctor dashboard receives for one session.
type Event struct {
	Type          string        `json:"type"`
	SessionID     int           `json:"session_id"`
	State         session.State `json:"state"`
	Answered      int           `json:"answered"`
	Total         int           `json:"total"`
	CurrentIndex  int           `json:"current_index"`
	TimeRemaining int           `json:"time_remaining"`
	Expired       bool          `json:"expired"`
	Result        *model.Result `json:"result,omitempty"`
	Timestamp     int64         `json:"timestamp"`
}

// same reports whether two events carry the same payload, ignoring Timestamp.
func (e Event) same(o Event) bool {
	e.Timestamp, o.Timestamp = 0, 0
	if (e.Result == nil) != (o.Result == nil) {
		return false
	}
	if e.Result != nil && *e.Result != *o.Result {
		return false
	}
	e.Result, o.Result = nil, nil
	return e == o
}

// deriveEvent turns a snapshot into an event. prev is the last session-bearing
// event, used to announce a reset for the session that was dropped. ok is false
// when there is nothing to publish.
func deriveEvent(prev *Event, snap session.Snapshot) (Event, bool) {
	if snap.SessionID == 0 {
		if prev == nil || prev.Type == EventReset {
			return Event{}, false
		}
		return Event{Type: EventReset, SessionID: prev.SessionID, State: snap.State}, true
	}

	ev := Event{
		Type:          EventProgress,
		SessionID:     snap.SessionID,
		State:         snap.State,
		Answered:      len(snap.Answers),
		Total:         len(snap.Questions),
		CurrentIndex:  snap.CurrentIndex,
		TimeRemaining: snap.TimeRemaining,
		Expired:       snap.Expired,
	}
	if snap.State == session.StateFinished {
		ev.Type = EventFinished
		if snap.Result != nil {
			r := *snap.Result
			ev.Result = &r
		}
	}
	return ev, true
}
