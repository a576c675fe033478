package sessionapi

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jorabeknazarmatov/test-platform/internal/model"
)

// Backend is the whole Session API surface the presentation layers use.
type Backend interface {
	VerifyOTP(ctx context.Context, sessionID int, otp string) (*model.OTPVerification, error)
	GetSession(ctx context.Context, sessionID int) (*model.SessionInfo, error)
	GetQuestions(ctx context.Context, sessionID int) ([]model.Question, error)
	SubmitAnswer(ctx context.Context, sessionID, questionID int, answer string) error
	FinishTest(ctx context.Context, sessionID int) (*model.Result, error)
	GetResult(ctx context.Context, sessionID int) (*model.Result, error)
	ListGroups(ctx context.Context) ([]model.Group, error)
	ListStudents(ctx context.Context, groupID int) ([]model.Student, error)
	ListSubjects(ctx context.Context) ([]model.Subject, error)
}

var (
	_ Backend = (*Client)(nil)
	_ Backend = (*Fixture)(nil)
)

// NewBackend returns the offline fixture loaded from fixtureFile when it is
// set, and a REST client for baseURL otherwise.
func NewBackend(fixtureFile, baseURL string, timeout time.Duration, log zerolog.Logger) (Backend, error) {
	if fixtureFile != "" {
		fx, err := LoadFixture(fixtureFile)
		if err != nil {
			return nil, err
		}
		log.Warn().Str("file", fixtureFile).Msg("Using offline fixture backend")
		return fx, nil
	}
	log.Info().Str("base_url", baseURL).Msg("Using Session API")
	return NewClient(baseURL, timeout, log), nil
}
