package websocket

import (
	"github.com/jorabeknazarmatov/test-platform/internal/model"
	"github.com/jorabeknazarmatov/test-platform/internal/session"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer   Action = "answer"
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
	ActionGoTo     Action = "goto"
	ActionFinish   Action = "finish"
	ActionPing     Action = "ping"
)

// Request is one client action. Only the fields the action needs are read.
type Request struct {
	Action     Action `json:"action"`
	QuestionID int    `json:"q_id,omitempty"`
	Answer     string `json:"ans,omitempty"`
	Index      int    `json:"index,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState    Event = "state"
	EventFinished Event = "finished"
	EventError    Event = "error"
	EventPong     Event = "pong"
)

// StateResponse carries the full session snapshot. It is pushed on connect and
// after every change.
type StateResponse struct {
	Event   Event            `json:"event"`
	Session session.Snapshot `json:"session"`
}

// FinishedResponse is pushed once when the attempt is finalized, either by the
// student or by the countdown.
type FinishedResponse struct {
	Event   Event         `json:"event"`
	Expired bool          `json:"expired"`
	Result  *model.Result `json:"result"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
