package session

import (
	"errors"
	"fmt"
)

var (
	ErrNotActive         = errors.New("session is not active")
	ErrUnknownQuestion   = errors.New("question is not part of this session")
	ErrEmptyAnswer       = errors.New("answer is empty")
	ErrSessionInProgress = errors.New("a session is already loaded")
	ErrFinishInProgress  = errors.New("session is already finishing")
	ErrAlreadyFinished   = errors.New("session is already finished")
	// ErrAborted is returned by a start or finish whose session was reset while
	// the call was in flight.
	ErrAborted = errors.New("session was reset")

	ErrNotStartable = errors.New("session is not startable")
	ErrNoQuestions  = errors.New("session has no questions")
	ErrTimeElapsed  = errors.New("session time has elapsed")
	ErrEmptyResult  = errors.New("empty result")
)

// SessionLoadError is returned when a session cannot be started. Reason holds
// the server-provided explanation when there is one.
type SessionLoadError struct {
	SessionID int
	Reason    string
	Err       error
}

func (e *SessionLoadError) Error() string {
	return fmt.Sprintf("load session %d: %s", e.SessionID, e.Reason)
}

func (e *SessionLoadError) Unwrap() error { return e.Err }

// AnswerSubmitError reports a single answer write that did not reach the
// server. The local selection is kept.
type AnswerSubmitError struct {
	SessionID  int
	QuestionID int
	Answer     string
	Err        error
}

func (e *AnswerSubmitError) Error() string {
	return fmt.Sprintf("submit answer for question %d in session %d: %v", e.QuestionID, e.SessionID, e.Err)
}

func (e *AnswerSubmitError) Unwrap() error { return e.Err }

// FinishError is returned when finalizing fails. The attempt stays open and
// the caller may retry.
type FinishError struct {
	SessionID int
	Reason    string
	Err       error
}

func (e *FinishError) Error() string {
	return fmt.Sprintf("finish session %d: %s", e.SessionID, e.Reason)
}

func (e *FinishError) Unwrap() error { return e.Err }
