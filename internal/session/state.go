package session

import "github.com/jorabeknazarmatov/test-platform/internal/model"

// State enumerates the controller lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateActive    State = "active"
	StateFinishing State = "finishing"
	StateFinished  State = "finished"
)

type trigger string

const (
	triggerStart        trigger = "start"
	triggerLoaded       trigger = "loaded"
	triggerLoadFailed   trigger = "load_failed"
	triggerFinish       trigger = "finish"
	triggerExpire       trigger = "expire"
	triggerFinished     trigger = "finished"
	triggerFinishFailed trigger = "finish_failed"
	triggerReset        trigger = "reset"
)

// Snapshot is a copy of the controller state at one point in time. Mutating it
// has no effect on the controller.
type Snapshot struct {
	State     State            `json:"state"`
	SessionID int              `json:"session_id"`
	Questions []model.Question `json:"questions"`
	// Answers maps question id to the latest selected value.
	Answers      map[int]string `json:"answers"`
	CurrentIndex int            `json:"current_index"`
	// TimeRemaining is in whole seconds.
	TimeRemaining int  `json:"time_remaining"`
	Active        bool `json:"active"`
	// Expired is set when the countdown reached zero and finished the attempt.
	Expired bool          `json:"expired"`
	Result  *model.Result `json:"result,omitempty"`
	// LastError is the reason of the last load or finish failure.
	LastError string `json:"last_error,omitempty"`
}

// Current returns the question under the cursor, or nil when none is loaded.
func (s Snapshot) Current() *model.Question {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return nil
	}
	q := s.Questions[s.CurrentIndex]
	return &q
}
