package sessionapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method    string
	Path      string
	Query     map[string]string
	RequestID string
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *[]recordedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := map[string]string{}
		for k := range r.URL.Query() {
			q[k] = r.URL.Query().Get(k)
		}
		mu.Lock()
		reqs = append(reqs, recordedRequest{Method: r.Method, Path: r.URL.Path, Query: q, RequestID: r.Header.Get("X-Request-ID")})
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	return NewClient(srv.URL, 2*time.Second, zerolog.Nop()), &reqs
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestGetQuestions(t *testing.T) {
	client, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]interface{}{
			{"id": 1, "text": "2+2?", "options": []map[string]interface{}{{"id": 11, "text": "4"}, {"id": 12, "text": "5"}}},
			{"id": 2, "text": "3*3?", "options": []map[string]interface{}{{"id": 21, "text": "9"}}},
		})
	})

	questions, err := client.GetQuestions(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "2+2?", questions[0].Text)
	assert.Equal(t, 12, questions[0].Options[1].ID)

	require.Len(t, *reqs, 1)
	assert.Equal(t, http.MethodGet, (*reqs)[0].Method)
	assert.Equal(t, "/api/test/questions/42", (*reqs)[0].Path)
	assert.NotEmpty(t, (*reqs)[0].RequestID)
}

func TestGetQuestionsRejectsMalformedPayload(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]interface{}{{"id": 1, "text": "no options"}})
	})

	_, err := client.GetQuestions(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid questions payload")
}

func TestSubmitAnswerUsesQueryParameters(t *testing.T) {
	client, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"question_id": 7, "is_correct": true})
	})

	require.NoError(t, client.SubmitAnswer(context.Background(), 42, 7, "C"))

	got := (*reqs)[0]
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/api/test/submit-answer", got.Path)
	assert.Equal(t, map[string]string{"session_id": "42", "question_id": "7", "answer": "C"}, got.Query)
}

func TestFinishTest(t *testing.T) {
	client, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"correct_count": 7, "total_count": 10, "percentage": 70.0, "result_text": "Good",
		})
	})

	res, err := client.FinishTest(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 7, res.CorrectCount)
	assert.Equal(t, 10, res.TotalCount)
	assert.Equal(t, 70.0, res.Percentage)
	assert.Equal(t, "Good", res.ResultText)
	assert.Equal(t, "/api/test/finish-test/42", (*reqs)[0].Path)
}

func TestVerifyOTP(t *testing.T) {
	client, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "session_id": 42, "test_id": 3})
	})

	out, err := client.VerifyOTP(context.Background(), 42, "123456")
	require.NoError(t, err)
	assert.Equal(t, 42, out.SessionID)
	assert.Equal(t, 3, out.TestID)
	assert.Equal(t, "123456", (*reqs)[0].Query["otp"])
}

func TestGetSessionParsesNaiveTimestamps(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id": 42, "status": "active", "otp_attempts": 0,
			"expires_at": "2026-10-15T12:00:00.123456", "started_at": "2026-10-15T11:00:00",
			"blocked_until": nil,
		})
	})

	info, err := client.GetSession(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, info.StartedAt)
	assert.Equal(t, time.Date(2026, 10, 15, 11, 0, 0, 0, time.UTC), info.StartedAt.Time)
	assert.Nil(t, info.BlockedUntil)
}

func TestErrorDecoding(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    interface{}
		message string
	}{
		{"application error", http.StatusUnauthorized, map[string]interface{}{"success": false, "message": "session expired", "detail": nil}, "session expired"},
		{"http exception", http.StatusNotFound, map[string]interface{}{"detail": "Sessiya topilmadi"}, "Sessiya topilmadi"},
		{"structured detail", http.StatusTooManyRequests, map[string]interface{}{"message": "Juda ko'p urinish", "detail": map[string]string{"blocked_until": "x"}}, "Juda ko'p urinish"},
		{"empty body", http.StatusBadGateway, nil, "Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.body == nil {
					w.WriteHeader(tt.status)
					return
				}
				writeJSON(w, tt.status, tt.body)
			})

			_, err := client.GetSession(context.Background(), 1)
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.Equal(t, tt.message, Reason(err))
			assert.True(t, IsStatus(err, tt.status))
		})
	}
}

func TestTransportErrorIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := NewClient(srv.URL, time.Second, zerolog.Nop())
	_, err := client.GetSession(context.Background(), 1)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Empty(t, Reason(err))
}

func TestDirectoryRoutes(t *testing.T) {
	client, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/student/groups":
			writeJSON(w, http.StatusOK, []map[string]interface{}{{"id": 1, "name": "IT-21"}})
		case "/api/student/groups/1/students":
			writeJSON(w, http.StatusOK, []map[string]interface{}{{"id": 5, "group_id": 1, "full_name": "Aziz Karimov"}})
		default:
			writeJSON(w, http.StatusOK, []map[string]interface{}{{"id": 2, "name": "Matematika"}})
		}
	})

	groups, err := client.ListGroups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "IT-21", groups[0].Name)

	students, err := client.ListStudents(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Aziz Karimov", students[0].FullName)

	subjects, err := client.ListSubjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Matematika", subjects[0].Name)

	assert.Len(t, *reqs, 3)
}
