package sessionapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jorabeknazarmatov/test-platform/internal/model"
	"github.com/jorabeknazarmatov/test-platform/internal/validator"
)

const (
	testPrefix    = "/api/test"
	studentPrefix = "/api/student"

	// maxErrorBody bounds how much of a failed response is read for the reason.
	maxErrorBody = 64 << 10
)

// Client talks to the Session API over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a Client for baseURL. timeout bounds every single request.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "session_api").Logger(),
	}
}

// VerifyOTP checks the one-time code an administrator issued for sessionID.
func (c *Client) VerifyOTP(ctx context.Context, sessionID int, otp string) (*model.OTPVerification, error) {
	q := url.Values{}
	q.Set("session_id", strconv.Itoa(sessionID))
	q.Set("otp", otp)

	var out model.OTPVerification
	if err := c.do(ctx, http.MethodPost, testPrefix+"/verify-otp", q, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, ErrOTPRejected
	}
	if out.SessionID == 0 {
		out.SessionID = sessionID
	}
	return &out, nil
}

// GetSession returns the current backend view of a session.
func (c *Client) GetSession(ctx context.Context, sessionID int) (*model.SessionInfo, error) {
	var out model.SessionInfo
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/session/%d", testPrefix, sessionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetQuestions returns the ordered question set of a session.
func (c *Client) GetQuestions(ctx context.Context, sessionID int) ([]model.Question, error) {
	var out []model.Question
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/questions/%d", testPrefix, sessionID), nil, &out); err != nil {
		return nil, err
	}
	if err := validator.Struct(out); err != nil {
		return nil, fmt.Errorf("invalid questions payload: %s", validator.Summary(err))
	}
	return out, nil
}

// SubmitAnswer stores one answer. The backend keys answers by question id.
func (c *Client) SubmitAnswer(ctx context.Context, sessionID, questionID int, answer string) error {
	q := url.Values{}
	q.Set("session_id", strconv.Itoa(sessionID))
	q.Set("question_id", strconv.Itoa(questionID))
	q.Set("answer", answer)

	return c.do(ctx, http.MethodPost, testPrefix+"/submit-answer", q, nil)
}

// FinishTest finalizes a session and returns the authoritative score.
func (c *Client) FinishTest(ctx context.Context, sessionID int) (*model.Result, error) {
	return c.result(ctx, http.MethodPost, fmt.Sprintf("%s/finish-test/%d", testPrefix, sessionID))
}

// GetResult fetches the stored score of a finished session.
func (c *Client) GetResult(ctx context.Context, sessionID int) (*model.Result, error) {
	return c.result(ctx, http.MethodGet, fmt.Sprintf("%s/result/%d", testPrefix, sessionID))
}

// ListGroups returns every study group.
func (c *Client) ListGroups(ctx context.Context) ([]model.Group, error) {
	var out []model.Group
	if err := c.do(ctx, http.MethodGet, studentPrefix+"/groups", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListStudents returns the students of one group.
func (c *Client) ListStudents(ctx context.Context, groupID int) ([]model.Student, error) {
	var out []model.Student
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/groups/%d/students", studentPrefix, groupID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListSubjects returns every subject.
func (c *Client) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	var out []model.Subject
	if err := c.do(ctx, http.MethodGet, studentPrefix+"/subjects", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) result(ctx context.Context, method, path string) (*model.Result, error) {
	var out model.Result
	if err := c.do(ctx, method, path, nil, &out); err != nil {
		return nil, err
	}
	if err := validator.Struct(&out); err != nil {
		return nil, fmt.Errorf("invalid result payload: %s", validator.Summary(err))
	}
	return &out, nil
}

// do sends one request and decodes a JSON body into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	reqID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("method", method).Str("path", path).Str("request_id", reqID).Msg("Request failed")
		return fmt.Errorf("%s %s: %w: %w", method, path, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Str("request_id", reqID).
		Msg("Session API call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return decodeAPIError(resp.StatusCode, body)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
