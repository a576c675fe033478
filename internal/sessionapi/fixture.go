package sessionapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jorabeknazarmatov/test-platform/internal/model"
)

// Fixture is an in-memory Session API backed by a YAML file. It stands in for
// the real backend in offline demos and tests; its scoring is a plain
// correct-answer count.
type Fixture struct {
	mu       sync.Mutex
	groups   []model.Group
	students []model.Student
	subjects []model.Subject
	sessions map[int]*fixtureSession
	now      func() time.Time
}

type fixtureFile struct {
	Groups []struct {
		ID   int    `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"groups"`
	Students []struct {
		ID       int    `yaml:"id"`
		GroupID  int    `yaml:"group_id"`
		FullName string `yaml:"full_name"`
	} `yaml:"students"`
	Subjects []struct {
		ID   int    `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"subjects"`
	Sessions []struct {
		ID              int    `yaml:"id"`
		StudentID       int    `yaml:"student_id"`
		TestID          int    `yaml:"test_id"`
		OTP             string `yaml:"otp"`
		Status          string `yaml:"status"`
		DurationMinutes int    `yaml:"duration_minutes"`
		Questions       []struct {
			ID      int    `yaml:"id"`
			Text    string `yaml:"text"`
			Correct string `yaml:"correct"`
			Options []struct {
				ID   int    `yaml:"id"`
				Text string `yaml:"text"`
			} `yaml:"options"`
		} `yaml:"questions"`
	} `yaml:"sessions"`
}

type fixtureSession struct {
	info      model.SessionInfo
	otp       string
	questions []model.Question
	correct   map[int]string
	answers   map[int]string
	result    *model.Result
}

// LoadFixture reads a fixture from a YAML file.
func LoadFixture(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()
	return ParseFixture(f)
}

// ParseFixture decodes a YAML fixture.
func ParseFixture(r io.Reader) (*Fixture, error) {
	var raw fixtureFile
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}

	fx := &Fixture{
		sessions: make(map[int]*fixtureSession, len(raw.Sessions)),
		now:      time.Now,
	}
	for _, g := range raw.Groups {
		fx.groups = append(fx.groups, model.Group{ID: g.ID, Name: g.Name})
	}
	for _, s := range raw.Students {
		fx.students = append(fx.students, model.Student{ID: s.ID, GroupID: s.GroupID, FullName: s.FullName})
	}
	for _, s := range raw.Subjects {
		fx.subjects = append(fx.subjects, model.Subject{ID: s.ID, Name: s.Name})
	}

	for _, s := range raw.Sessions {
		if _, dup := fx.sessions[s.ID]; dup {
			return nil, fmt.Errorf("decode fixture: duplicate session %d", s.ID)
		}
		status := model.SessionStatus(s.Status)
		if status == "" {
			status = model.SessionStatusActive
		}
		sess := &fixtureSession{
			info: model.SessionInfo{
				ID:              s.ID,
				StudentID:       s.StudentID,
				TestID:          s.TestID,
				Status:          status,
				DurationMinutes: s.DurationMinutes,
			},
			otp:     s.OTP,
			correct: make(map[int]string, len(s.Questions)),
			answers: make(map[int]string),
		}
		for _, q := range s.Questions {
			question := model.Question{ID: q.ID, Text: q.Text}
			for _, o := range q.Options {
				question.Options = append(question.Options, model.Option{ID: o.ID, Text: o.Text})
			}
			sess.questions = append(sess.questions, question)
			sess.correct[q.ID] = q.Correct
		}
		fx.sessions[s.ID] = sess
	}
	return fx, nil
}

func (f *Fixture) session(sessionID int) (*fixtureSession, error) {
	sess, ok := f.sessions[sessionID]
	if !ok {
		return nil, &APIError{StatusCode: http.StatusNotFound, Message: fmt.Sprintf("Sessiya (ID: %d) topilmadi", sessionID)}
	}
	return sess, nil
}

func (f *Fixture) activeSession(sessionID int) (*fixtureSession, error) {
	sess, err := f.session(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.info.Status != model.SessionStatusActive {
		return nil, &APIError{StatusCode: http.StatusUnauthorized, Message: "Sessiya faol emas yoki vaqti o'tgan"}
	}
	return sess, nil
}

// VerifyOTP implements the OTP check against the fixture's stored code.
func (f *Fixture) VerifyOTP(_ context.Context, sessionID int, otp string) (*model.OTPVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sess, err := f.session(sessionID)
	if err != nil {
		return nil, err
	}
	switch sess.info.Status {
	case model.SessionStatusExpired:
		return nil, &APIError{StatusCode: http.StatusUnauthorized, Message: "OTP vaqti o'tgan"}
	case model.SessionStatusBlocked:
		return nil, &APIError{StatusCode: http.StatusTooManyRequests, Message: "Juda ko'p urinish"}
	}
	if sess.otp != otp {
		sess.info.OTPAttempts++
		return nil, &APIError{StatusCode: http.StatusUnauthorized, Message: "OTP noto'g'ri"}
	}
	if sess.info.StartedAt == nil {
		sess.info.StartedAt = &model.Timestamp{Time: f.now().UTC()}
	}
	return &model.OTPVerification{Success: true, SessionID: sessionID, TestID: sess.info.TestID}, nil
}

// GetSession returns a copy of the stored session info.
func (f *Fixture) GetSession(_ context.Context, sessionID int) (*model.SessionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sess, err := f.session(sessionID)
	if err != nil {
		return nil, err
	}
	info := sess.info
	return &info, nil
}

// GetQuestions returns the session's questions in file order.
func (f *Fixture) GetQuestions(_ context.Context, sessionID int) ([]model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sess, err := f.activeSession(sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Question, len(sess.questions))
	copy(out, sess.questions)
	return out, nil
}

// SubmitAnswer records the latest answer per question.
func (f *Fixture) SubmitAnswer(_ context.Context, sessionID, questionID int, answer string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	sess, err := f.activeSession(sessionID)
	if err != nil {
		return err
	}
	if _, ok := sess.correct[questionID]; !ok {
		return &APIError{StatusCode: http.StatusNotFound, Message: fmt.Sprintf("Savol (ID: %d) topilmadi", questionID)}
	}
	sess.answers[questionID] = answer
	return nil
}

// FinishTest completes the session and scores the stored answers.
func (f *Fixture) FinishTest(_ context.Context, sessionID int) (*model.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sess, err := f.session(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.result != nil {
		res := *sess.result
		return &res, nil
	}

	correct := 0
	for qid, want := range sess.correct {
		if got, ok := sess.answers[qid]; ok && strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(want)) {
			correct++
		}
	}
	total := len(sess.questions)
	var pct float64
	if total > 0 {
		pct = float64(correct) / float64(total) * 100
	}

	sess.info.Status = model.SessionStatusCompleted
	sess.info.CompletedAt = &model.Timestamp{Time: f.now().UTC()}
	sess.result = &model.Result{
		CorrectCount: correct,
		TotalCount:   total,
		Percentage:   pct,
		ResultText:   fmt.Sprintf("%d / %d (%.1f%%)", correct, total, pct),
	}
	res := *sess.result
	return &res, nil
}

// GetResult returns the score of a finished session.
func (f *Fixture) GetResult(_ context.Context, sessionID int) (*model.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sess, err := f.session(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.result == nil {
		return nil, &APIError{StatusCode: http.StatusNotFound, Message: "Natija topilmadi"}
	}
	res := *sess.result
	return &res, nil
}

// ListGroups returns the fixture's groups.
func (f *Fixture) ListGroups(context.Context) ([]model.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Group(nil), f.groups...), nil
}

// ListStudents returns the fixture's students of one group.
func (f *Fixture) ListStudents(_ context.Context, groupID int) ([]model.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.Student
	for _, s := range f.students {
		if s.GroupID == groupID {
			out = append(out, s)
		}
	}
	return out, nil
}

// ListSubjects returns the fixture's subjects.
func (f *Fixture) ListSubjects(context.Context) ([]model.Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Subject(nil), f.subjects...), nil
}
