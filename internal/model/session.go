package model

import (
	"bytes"
	"fmt"
	"time"
)

// SessionStatus enumerates test session states as reported by the backend.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusExpired   SessionStatus = "expired"
	SessionStatusBlocked   SessionStatus = "blocked"
)

// SessionInfo describes one OTP-bound attempt of a student at a test.
type SessionInfo struct {
	ID           int           `json:"id"`
	StudentID    int           `json:"student_id,omitempty"`
	TestID       int           `json:"test_id,omitempty"`
	Status       SessionStatus `json:"status"`
	OTPAttempts  int           `json:"otp_attempts"`
	BlockedUntil *Timestamp    `json:"blocked_until,omitempty"`
	ExpiresAt    *Timestamp    `json:"expires_at,omitempty"`
	StartedAt    *Timestamp    `json:"started_at,omitempty"`
	CompletedAt  *Timestamp    `json:"completed_at,omitempty"`
	// DurationMinutes is zero when the backend does not report the test length.
	DurationMinutes int `json:"duration_minutes,omitempty"`
}

// OTPVerification is the backend answer to a successful OTP check.
type OTPVerification struct {
	Success   bool `json:"success"`
	SessionID int  `json:"session_id"`
	TestID    int  `json:"test_id"`
}

// Timestamp accepts both RFC 3339 and the naive UTC datetimes the backend emits
// ("2006-01-02T15:04:05.999999").
type Timestamp struct {
	time.Time
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("timestamp: expected string, got %s", b)
	}
	s := string(b[1 : len(b)-1])

	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}
	for _, layout := range naiveLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unsupported format %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(time.RFC3339) + `"`), nil
}
