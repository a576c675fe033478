package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jorabeknazarmatov/test-platform/internal/model"
	"github.com/jorabeknazarmatov/test-platform/internal/sessionapi"
)

// fakeAPI is an in-memory Session API. FinishTest scores the answers it
// received through SubmitAnswer against correct.
type fakeAPI struct {
	mu sync.Mutex

	info         *model.SessionInfo
	sessionErr   error
	questions    []model.Question
	questionsErr error
	correct      map[int]string

	submitErr  error
	submitGate chan struct{}
	submitted  map[int]string

	finishErr     error
	finishGate    chan struct{}
	finishEntered chan struct{}
	finishCalls   int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		info:      &model.SessionInfo{ID: 42, Status: model.SessionStatusActive, DurationMinutes: 30},
		questions: sampleQuestions(),
		correct:   map[int]string{1: "B", 2: "A", 3: "C"},
		submitted: make(map[int]string),
	}
}

func sampleQuestions() []model.Question {
	opts := func() []model.Option {
		return []model.Option{{ID: 1, Text: "A"}, {ID: 2, Text: "B"}, {ID: 3, Text: "C"}}
	}
	return []model.Question{
		{ID: 1, Text: "2 + 2 = ?", Options: opts()},
		{ID: 2, Text: "Capital of Uzbekistan?", Options: opts()},
		{ID: 3, Text: "Largest planet?", Options: opts()},
	}
}

func (f *fakeAPI) GetSession(_ context.Context, _ int) (*model.SessionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	info := *f.info
	return &info, nil
}

func (f *fakeAPI) GetQuestions(_ context.Context, _ int) ([]model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.questionsErr != nil {
		return nil, f.questionsErr
	}
	return append([]model.Question(nil), f.questions...), nil
}

func (f *fakeAPI) SubmitAnswer(_ context.Context, _ int, questionID int, answer string) error {
	f.mu.Lock()
	gate := f.submitGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted[questionID] = answer
	return nil
}

func (f *fakeAPI) FinishTest(_ context.Context, _ int) (*model.Result, error) {
	f.mu.Lock()
	f.finishCalls++
	gate, entered := f.finishGate, f.finishEntered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finishErr != nil {
		return nil, f.finishErr
	}
	correct := 0
	for id, want := range f.correct {
		if strings.EqualFold(f.submitted[id], want) {
			correct++
		}
	}
	total := len(f.questions)
	pct := float64(correct) / float64(total) * 100
	return &model.Result{
		CorrectCount: correct,
		TotalCount:   total,
		Percentage:   pct,
		ResultText:   fmt.Sprintf("%d / %d", correct, total),
	}, nil
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finishCalls
}

func (f *fakeAPI) set(fn func(f *fakeAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func newTestController(api API, opts Options) *Controller {
	opts.ManualClock = true
	opts.Logger = zerolog.Nop()
	return NewController(api, opts)
}

func startedController(t *testing.T, api *fakeAPI) *Controller {
	t.Helper()
	c := newTestController(api, Options{})
	require.NoError(t, c.StartSession(context.Background(), 42))
	return c
}

func TestStartSession(t *testing.T) {
	c := startedController(t, newFakeAPI())

	snap := c.Snapshot()
	assert.Equal(t, StateActive, snap.State)
	assert.Equal(t, 42, snap.SessionID)
	assert.Len(t, snap.Questions, 3)
	assert.Empty(t, snap.Answers)
	assert.Equal(t, 0, snap.CurrentIndex)
	assert.Equal(t, 30*60, snap.TimeRemaining)
	assert.True(t, snap.Active)
	assert.False(t, snap.Expired)
	assert.Nil(t, snap.Result)
	assert.Equal(t, 1, snap.Current().ID)
}

func TestStartSessionSubtractsElapsedTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	api := newFakeAPI()
	api.info.StartedAt = &model.Timestamp{Time: now.Add(-10*time.Minute - 500*time.Millisecond)}

	c := newTestController(api, Options{now: func() time.Time { return now }})
	require.NoError(t, c.StartSession(context.Background(), 42))

	// 19m59.5s left, floored to whole seconds.
	assert.Equal(t, 20*60-1, c.Snapshot().TimeRemaining)
}

func TestStartSessionFallsBackToDefaultDuration(t *testing.T) {
	api := newFakeAPI()
	api.info.DurationMinutes = 0

	c := newTestController(api, Options{DefaultDuration: 5 * time.Second})
	require.NoError(t, c.StartSession(context.Background(), 42))

	assert.Equal(t, 5, c.Snapshot().TimeRemaining)
}

func TestStartSessionFailures(t *testing.T) {
	longAgo := &model.Timestamp{Time: time.Now().Add(-2 * time.Hour)}

	tests := []struct {
		name       string
		setup      func(f *fakeAPI)
		wantReason string
		wantErr    error
	}{
		{
			name: "server rejects session",
			setup: func(f *fakeAPI) {
				f.sessionErr = &sessionapi.APIError{StatusCode: http.StatusUnauthorized, Message: "session expired"}
			},
			wantReason: "session expired",
		},
		{
			name: "server rejects questions",
			setup: func(f *fakeAPI) {
				f.questionsErr = &sessionapi.APIError{StatusCode: http.StatusNotFound, Message: "Test topilmadi"}
			},
			wantReason: "Test topilmadi",
		},
		{
			name:       "session not active",
			setup:      func(f *fakeAPI) { f.info.Status = model.SessionStatusCompleted },
			wantReason: "session is completed",
			wantErr:    ErrNotStartable,
		},
		{
			name:    "no questions",
			setup:   func(f *fakeAPI) { f.questions = nil },
			wantErr: ErrNoQuestions,
		},
		{
			name: "question without options",
			setup: func(f *fakeAPI) {
				f.questions = []model.Question{{ID: 1, Text: "Empty?"}}
			},
		},
		{
			name: "duplicate question ids",
			setup: func(f *fakeAPI) {
				f.questions = append(f.questions, sampleQuestions()[0])
			},
		},
		{
			name:    "time already elapsed",
			setup:   func(f *fakeAPI) { f.info.StartedAt = longAgo },
			wantErr: ErrTimeElapsed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			tt.setup(api)
			c := newTestController(api, Options{})

			err := c.StartSession(context.Background(), 42)

			var loadErr *SessionLoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Equal(t, 42, loadErr.SessionID)
			assert.NotEmpty(t, loadErr.Reason)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, loadErr.Reason)
			}
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			snap := c.Snapshot()
			assert.Equal(t, StateIdle, snap.State)
			assert.False(t, snap.Active)
			assert.Empty(t, snap.Questions)
			assert.Equal(t, loadErr.Reason, snap.LastError)
		})
	}
}

func TestStartSessionWhileActive(t *testing.T) {
	c := startedController(t, newFakeAPI())

	err := c.StartSession(context.Background(), 43)

	assert.ErrorIs(t, err, ErrSessionInProgress)
	assert.Equal(t, 42, c.Snapshot().SessionID)
}

func TestFullAttempt(t *testing.T) {
	api := newFakeAPI()
	c := startedController(t, api)

	require.NoError(t, c.SelectAnswer(1, "B"))
	c.Next()
	require.NoError(t, c.SelectAnswer(2, "A"))

	res, err := c.Finish(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.CorrectCount)
	assert.Equal(t, 3, res.TotalCount)

	snap := c.Snapshot()
	assert.Equal(t, StateFinished, snap.State)
	assert.False(t, snap.Active)
	assert.False(t, snap.Expired)
	require.NotNil(t, snap.Result)
	assert.Equal(t, *res, *snap.Result)
	assert.Equal(t, map[int]string{1: "B", 2: "A"}, snap.Answers)
	assert.Equal(t, 1, api.calls())
}

func TestSelectAnswerOverwrites(t *testing.T) {
	api := newFakeAPI()
	c := startedController(t, api)

	require.NoError(t, c.SelectAnswer(1, "A"))
	require.NoError(t, c.SelectAnswer(1, "C"))
	c.Wait()

	assert.Equal(t, map[int]string{1: "C"}, c.Snapshot().Answers)
}

func TestSelectAnswerRejections(t *testing.T) {
	api := newFakeAPI()

	idle := newTestController(api, Options{})
	assert.ErrorIs(t, idle.SelectAnswer(1, "A"), ErrNotActive)

	c := startedController(t, api)
	assert.ErrorIs(t, c.SelectAnswer(99, "A"), ErrUnknownQuestion)
	assert.ErrorIs(t, c.SelectAnswer(1, ""), ErrEmptyAnswer)
	assert.Empty(t, c.Snapshot().Answers)

	_, err := c.Finish(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, c.SelectAnswer(1, "A"), ErrNotActive)
}

func TestAnswerWriteFailureKeepsSelection(t *testing.T) {
	api := newFakeAPI()
	api.submitErr = errors.New("connection refused")

	failures := make(chan *AnswerSubmitError, 1)
	c := newTestController(api, Options{
		OnAnswerError: func(e *AnswerSubmitError) { failures <- e },
	})
	require.NoError(t, c.StartSession(context.Background(), 42))

	require.NoError(t, c.SelectAnswer(2, "A"))
	c.Wait()

	select {
	case e := <-failures:
		assert.Equal(t, 42, e.SessionID)
		assert.Equal(t, 2, e.QuestionID)
		assert.Equal(t, "A", e.Answer)
		assert.EqualError(t, errors.Unwrap(e), "connection refused")
	default:
		t.Fatal("expected an answer write failure")
	}
	assert.Equal(t, "A", c.Snapshot().Answers[2])
	assert.Equal(t, StateActive, c.State())
}

func TestNavigationClamps(t *testing.T) {
	c := startedController(t, newFakeAPI())

	c.Previous()
	assert.Equal(t, 0, c.Snapshot().CurrentIndex)

	c.GoTo(2)
	c.Next()
	assert.Equal(t, 2, c.Snapshot().CurrentIndex)

	c.GoTo(10)
	assert.Equal(t, 2, c.Snapshot().CurrentIndex)

	c.GoTo(-3)
	assert.Equal(t, 0, c.Snapshot().CurrentIndex)

	c.Next()
	c.Next()
	c.Previous()
	assert.Equal(t, 1, c.Snapshot().CurrentIndex)
}

func TestNavigationWithoutQuestions(t *testing.T) {
	c := newTestController(newFakeAPI(), Options{})

	c.Next()
	c.Previous()
	c.GoTo(3)

	assert.Equal(t, 0, c.Snapshot().CurrentIndex)
}

func TestTickCountsDown(t *testing.T) {
	c := startedController(t, newFakeAPI())
	ctx := context.Background()

	before := c.Snapshot().TimeRemaining
	for i := 0; i < 3; i++ {
		c.Tick(ctx)
	}

	assert.Equal(t, before-3, c.Snapshot().TimeRemaining)
	assert.Equal(t, StateActive, c.State())
}

func TestTickOutsideActiveDoesNothing(t *testing.T) {
	api := newFakeAPI()
	c := newTestController(api, Options{})

	c.Tick(context.Background())

	assert.Equal(t, 0, c.Snapshot().TimeRemaining)
	assert.Equal(t, StateIdle, c.State())
	assert.Zero(t, api.calls())
}

func TestTimeoutFinishesOnce(t *testing.T) {
	api := newFakeAPI()
	api.info.DurationMinutes = 0
	c := newTestController(api, Options{DefaultDuration: 5 * time.Second})
	require.NoError(t, c.StartSession(context.Background(), 42))
	require.NoError(t, c.SelectAnswer(1, "B"))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		c.Tick(ctx)
	}

	snap := c.Snapshot()
	assert.Equal(t, StateFinished, snap.State)
	assert.True(t, snap.Expired)
	assert.False(t, snap.Active)
	assert.Equal(t, 0, snap.TimeRemaining)
	require.NotNil(t, snap.Result)
	assert.Equal(t, 1, snap.Result.CorrectCount)

	for i := 0; i < 3; i++ {
		c.Tick(ctx)
	}
	assert.Equal(t, 0, c.Snapshot().TimeRemaining)
	assert.Equal(t, 1, api.calls())
}

func TestFinishWaitsForAnswerWrites(t *testing.T) {
	api := newFakeAPI()
	api.submitGate = make(chan struct{})
	c := startedController(t, api)

	require.NoError(t, c.SelectAnswer(3, "C"))

	done := make(chan *model.Result, 1)
	go func() {
		res, err := c.Finish(context.Background())
		assert.NoError(t, err)
		done <- res
	}()

	assert.Never(t, func() bool { return api.calls() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	close(api.submitGate)

	select {
	case res := <-done:
		assert.Equal(t, 1, res.CorrectCount)
	case <-time.After(time.Second):
		t.Fatal("finish did not complete")
	}
}

func TestConcurrentFinishIsRejected(t *testing.T) {
	api := newFakeAPI()
	api.finishGate = make(chan struct{})
	api.finishEntered = make(chan struct{}, 1)
	c := startedController(t, api)

	first := make(chan error, 1)
	go func() {
		_, err := c.Finish(context.Background())
		first <- err
	}()
	<-api.finishEntered

	_, err := c.Finish(context.Background())
	assert.ErrorIs(t, err, ErrFinishInProgress)
	assert.Equal(t, StateFinishing, c.State())
	assert.True(t, c.Snapshot().Active)

	close(api.finishGate)
	require.NoError(t, <-first)
	assert.Equal(t, 1, api.calls())

	_, err = c.Finish(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyFinished)
	assert.Equal(t, 1, api.calls())
}

func TestFinishNotActive(t *testing.T) {
	c := newTestController(newFakeAPI(), Options{})

	_, err := c.Finish(context.Background())

	assert.ErrorIs(t, err, ErrNotActive)
}

func TestFinishFailureKeepsAttemptOpen(t *testing.T) {
	api := newFakeAPI()
	api.finishErr = &sessionapi.APIError{StatusCode: http.StatusInternalServerError, Message: "Ichki xatolik"}
	c := startedController(t, api)
	require.NoError(t, c.SelectAnswer(1, "B"))
	c.Tick(context.Background())
	remaining := c.Snapshot().TimeRemaining

	res, err := c.Finish(context.Background())

	assert.Nil(t, res)
	var finErr *FinishError
	require.ErrorAs(t, err, &finErr)
	assert.Equal(t, "Ichki xatolik", finErr.Reason)

	snap := c.Snapshot()
	assert.Equal(t, StateActive, snap.State)
	assert.Nil(t, snap.Result)
	assert.Equal(t, remaining, snap.TimeRemaining)
	assert.Equal(t, "B", snap.Answers[1])
	assert.Equal(t, "Ichki xatolik", snap.LastError)

	api.set(func(f *fakeAPI) { f.finishErr = nil })
	res, err = c.Finish(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.CorrectCount)
	assert.Empty(t, c.Snapshot().LastError)
	assert.Equal(t, 2, api.calls())
}

func TestTimeoutFinishFailureLeavesExpiredAttempt(t *testing.T) {
	api := newFakeAPI()
	api.info.DurationMinutes = 0
	api.finishErr = errors.New("network down")
	c := newTestController(api, Options{DefaultDuration: 2 * time.Second})
	require.NoError(t, c.StartSession(context.Background(), 42))

	c.Tick(context.Background())
	c.Tick(context.Background())

	snap := c.Snapshot()
	assert.Equal(t, StateActive, snap.State)
	assert.True(t, snap.Expired)
	assert.Equal(t, 0, snap.TimeRemaining)
	assert.Equal(t, "network down", snap.LastError)

	// No second automatic finish at zero; the caller retries explicitly.
	c.Tick(context.Background())
	assert.Equal(t, 1, api.calls())

	api.set(func(f *fakeAPI) { f.finishErr = nil })
	_, err := c.Finish(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFinished, c.State())
}

func TestExpiredAttemptRejectsAnswers(t *testing.T) {
	api := newFakeAPI()
	api.info.DurationMinutes = 0
	api.finishErr = errors.New("network down")
	c := newTestController(api, Options{DefaultDuration: time.Second})
	require.NoError(t, c.StartSession(context.Background(), 42))
	require.NoError(t, c.SelectAnswer(1, "B"))

	c.Tick(context.Background())
	require.Equal(t, StateActive, c.State())

	err := c.SelectAnswer(1, "C")
	assert.ErrorIs(t, err, ErrTimeElapsed)
	err = c.SelectAnswer(2, "A")
	assert.ErrorIs(t, err, ErrTimeElapsed)

	snap := c.Snapshot()
	assert.Equal(t, map[int]string{1: "B"}, snap.Answers)
	assert.True(t, snap.Expired)
	assert.Equal(t, "network down", snap.LastError)

	// Navigation and the finish retry still work.
	c.Next()
	assert.Equal(t, 1, c.Snapshot().CurrentIndex)
	api.set(func(f *fakeAPI) { f.finishErr = nil })
	_, err = c.Finish(context.Background())
	require.NoError(t, err)
}

func TestResetRestoresInitialState(t *testing.T) {
	fresh := newTestController(newFakeAPI(), Options{}).Snapshot()

	c := startedController(t, newFakeAPI())
	require.NoError(t, c.SelectAnswer(1, "B"))
	c.Next()
	c.Tick(context.Background())
	c.Wait()

	c.Reset()

	assert.Equal(t, fresh, c.Snapshot())
	assert.Equal(t, StateIdle, c.State())

	// Idle accepts a new session after reset.
	require.NoError(t, c.StartSession(context.Background(), 42))
	assert.Empty(t, c.Snapshot().Answers)
}

func TestResetAfterFinish(t *testing.T) {
	fresh := newTestController(newFakeAPI(), Options{}).Snapshot()
	c := startedController(t, newFakeAPI())
	_, err := c.Finish(context.Background())
	require.NoError(t, err)

	c.Reset()

	assert.Equal(t, fresh, c.Snapshot())
}

func TestResetDuringFinishDiscardsResult(t *testing.T) {
	api := newFakeAPI()
	api.finishGate = make(chan struct{})
	api.finishEntered = make(chan struct{}, 1)
	c := startedController(t, api)

	done := make(chan error, 1)
	go func() {
		_, err := c.Finish(context.Background())
		done <- err
	}()
	<-api.finishEntered

	c.Reset()
	close(api.finishGate)

	assert.ErrorIs(t, <-done, ErrAborted)
	assert.Equal(t, StateIdle, c.State())
	assert.Nil(t, c.Snapshot().Result)
}

func TestSnapshotIsACopy(t *testing.T) {
	c := startedController(t, newFakeAPI())
	require.NoError(t, c.SelectAnswer(1, "B"))

	snap := c.Snapshot()
	snap.Answers[1] = "tampered"
	snap.Questions[0].Text = "tampered"
	snap.Questions[0].Options[0].Text = "tampered"

	again := c.Snapshot()
	assert.Equal(t, "B", again.Answers[1])
	assert.Equal(t, "2 + 2 = ?", again.Questions[0].Text)
	assert.Equal(t, "A", again.Questions[0].Options[0].Text)
}

func TestSubscribeDeliversLatest(t *testing.T) {
	c := newTestController(newFakeAPI(), Options{})
	updates, cancel := c.Subscribe()

	initial := <-updates
	assert.Equal(t, StateIdle, initial.State)

	require.NoError(t, c.StartSession(context.Background(), 42))
	c.Next()
	c.Next()

	latest := <-updates
	assert.Equal(t, StateActive, latest.State)
	assert.Equal(t, 2, latest.CurrentIndex)

	select {
	case extra := <-updates:
		t.Fatalf("unexpected queued snapshot: %+v", extra)
	default:
	}

	cancel()
	_, ok := <-updates
	assert.False(t, ok)
	cancel()
}

func TestBackgroundCountdownExpires(t *testing.T) {
	api := newFakeAPI()
	api.info.DurationMinutes = 0
	c := NewController(api, Options{
		DefaultDuration: 3 * time.Second,
		TickInterval:    5 * time.Millisecond,
		Logger:          zerolog.Nop(),
	})
	require.NoError(t, c.StartSession(context.Background(), 42))

	require.Eventually(t, func() bool { return c.State() == StateFinished }, time.Second, 5*time.Millisecond)

	snap := c.Snapshot()
	assert.True(t, snap.Expired)
	assert.Equal(t, 0, snap.TimeRemaining)
	assert.Equal(t, 1, api.calls())
}

func TestBackgroundCountdownStopsOnFinishAndReset(t *testing.T) {
	newRunning := func() *Controller {
		c := NewController(newFakeAPI(), Options{
			TickInterval: 2 * time.Millisecond,
			Logger:       zerolog.Nop(),
		})
		require.NoError(t, c.StartSession(context.Background(), 42))
		require.Eventually(t, func() bool { return c.Snapshot().TimeRemaining < 30*60 }, time.Second, time.Millisecond)
		return c
	}

	t.Run("finish", func(t *testing.T) {
		c := newRunning()
		_, err := c.Finish(context.Background())
		require.NoError(t, err)

		frozen := c.Snapshot().TimeRemaining
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, frozen, c.Snapshot().TimeRemaining)
	})

	t.Run("reset", func(t *testing.T) {
		c := newRunning()
		c.Reset()

		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 0, c.Snapshot().TimeRemaining)
		assert.Equal(t, StateIdle, c.State())
	})
}
