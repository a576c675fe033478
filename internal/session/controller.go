package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qmuntal/stateless"
	"github.com/rs/zerolog"

	"github.com/jorabeknazarmatov/test-platform/internal/model"
	"github.com/jorabeknazarmatov/test-platform/internal/sessionapi"
	"github.com/jorabeknazarmatov/test-platform/internal/validator"
)

const (
	DefaultDuration     = 60 * time.Minute
	DefaultTickInterval = time.Second
)

// API is the part of the Session API the controller needs.
type API interface {
	GetSession(ctx context.Context, sessionID int) (*model.SessionInfo, error)
	GetQuestions(ctx context.Context, sessionID int) ([]model.Question, error)
	SubmitAnswer(ctx context.Context, sessionID, questionID int, answer string) error
	FinishTest(ctx context.Context, sessionID int) (*model.Result, error)
}

// Options configures a Controller. Zero values fall back to the defaults.
type Options struct {
	// DefaultDuration is used when the server does not report a test duration.
	DefaultDuration time.Duration
	TickInterval    time.Duration
	// ManualClock disables the background countdown; the caller drives Tick.
	ManualClock bool
	Logger      zerolog.Logger
	// OnAnswerError is called from the submitting goroutine when an answer
	// write fails.
	OnAnswerError func(*AnswerSubmitError)

	now func() time.Time
}

// Controller holds the client-side state of one test attempt. All methods are
// safe for concurrent use.
type Controller struct {
	api  API
	opts Options
	log  zerolog.Logger
	sm   *stateless.StateMachine

	mu sync.Mutex
	// epoch changes on every reset so completions of calls issued before the
	// reset can be recognised and dropped.
	epoch uint64

	sessionID int
	questions []model.Question
	known     map[int]struct{}
	answers   map[int]string
	current   int
	remaining int
	expired   bool
	result    *model.Result
	lastErr   string

	countdown *countdown
	pending   *sync.WaitGroup

	subs    map[int]chan Snapshot
	nextSub int
}

// NewController returns an idle controller backed by api.
func NewController(api API, opts Options) *Controller {
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = DefaultDuration
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.now == nil {
		opts.now = time.Now
	}

	c := &Controller{
		api:     api,
		opts:    opts,
		log:     opts.Logger.With().Str("component", "session").Logger(),
		pending: &sync.WaitGroup{},
		subs:    make(map[int]chan Snapshot),
	}
	c.sm = c.newStateMachine()
	return c
}

func (c *Controller) newStateMachine() *stateless.StateMachine {
	sm := stateless.NewStateMachine(StateIdle)

	sm.Configure(StateIdle).
		Permit(triggerStart, StateLoading).
		Ignore(triggerReset)

	sm.Configure(StateLoading).
		Permit(triggerLoaded, StateActive).
		Permit(triggerLoadFailed, StateIdle).
		Permit(triggerReset, StateIdle)

	sm.Configure(StateActive).
		OnEntry(c.onActiveEntry).
		OnExit(c.onActiveExit).
		Permit(triggerFinish, StateFinishing).
		Permit(triggerExpire, StateFinishing).
		Permit(triggerReset, StateIdle)

	sm.Configure(StateFinishing).
		Permit(triggerFinished, StateFinished).
		Permit(triggerFinishFailed, StateActive).
		Permit(triggerReset, StateIdle)

	sm.Configure(StateFinished).
		Permit(triggerReset, StateIdle)

	sm.OnTransitioned(func(_ context.Context, tr stateless.Transition) {
		c.log.Debug().
			Int("session_id", c.sessionID).
			Str("trigger", fmt.Sprint(tr.Trigger)).
			Str("from", fmt.Sprint(tr.Source)).
			Str("to", fmt.Sprint(tr.Destination)).
			Msg("Session state changed")
	})
	return sm
}

// onActiveEntry and onActiveExit run inside Fire, with c.mu held.
func (c *Controller) onActiveEntry(context.Context, ...any) error {
	if c.opts.ManualClock || c.remaining == 0 {
		return nil
	}
	c.countdown = startCountdown(c.opts.TickInterval, c.countdownTick)
	return nil
}

func (c *Controller) onActiveExit(context.Context, ...any) error {
	if c.countdown != nil {
		c.countdown.stop()
		c.countdown = nil
	}
	return nil
}

func (c *Controller) fire(t trigger) {
	if err := c.sm.Fire(t); err != nil {
		c.log.Error().Err(err).Str("trigger", string(t)).Msg("Rejected state transition")
	}
}

func (c *Controller) state() State {
	return c.sm.MustState().(State)
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state()
}

// StartSession loads the session and its questions and starts the countdown.
// On failure the controller is back in Idle and the error is a
// *SessionLoadError.
func (c *Controller) StartSession(ctx context.Context, sessionID int) error {
	c.mu.Lock()
	if c.state() != StateIdle {
		c.mu.Unlock()
		return ErrSessionInProgress
	}
	c.sessionID = sessionID
	c.lastErr = ""
	c.fire(triggerStart)
	epoch := c.epoch
	c.publishLocked()
	c.mu.Unlock()

	questions, remaining, reason, err := c.load(ctx, sessionID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch || c.state() != StateLoading {
		return ErrAborted
	}

	if err != nil {
		loadErr := &SessionLoadError{SessionID: sessionID, Reason: reason, Err: err}
		c.log.Error().Err(err).Int("session_id", sessionID).Msg("Failed to start session")
		c.clearLocked()
		c.lastErr = reason
		c.fire(triggerLoadFailed)
		c.publishLocked()
		return loadErr
	}

	c.questions = questions
	c.known = make(map[int]struct{}, len(questions))
	for _, q := range questions {
		c.known[q.ID] = struct{}{}
	}
	c.answers = make(map[int]string, len(questions))
	c.current = 0
	c.remaining = remaining
	c.fire(triggerLoaded)

	c.log.Info().
		Int("session_id", sessionID).
		Int("questions", len(questions)).
		Int("time_remaining", remaining).
		Msg("Session started")
	c.publishLocked()
	return nil
}

// load fetches everything needed to activate a session. reason is the text to
// show when err is non-nil.
func (c *Controller) load(ctx context.Context, sessionID int) ([]model.Question, int, string, error) {
	info, err := c.api.GetSession(ctx, sessionID)
	if err != nil {
		return nil, 0, reasonOf(err), fmt.Errorf("get session: %w", err)
	}
	if info.Status != model.SessionStatusActive {
		return nil, 0, fmt.Sprintf("session is %s", info.Status), fmt.Errorf("status %s: %w", info.Status, ErrNotStartable)
	}

	questions, err := c.api.GetQuestions(ctx, sessionID)
	if err != nil {
		return nil, 0, reasonOf(err), fmt.Errorf("get questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, 0, ErrNoQuestions.Error(), ErrNoQuestions
	}
	if err := validator.Struct(questions); err != nil {
		return nil, 0, "invalid questions: " + validator.Summary(err), fmt.Errorf("validate questions: %w", err)
	}
	seen := make(map[int]struct{}, len(questions))
	for _, q := range questions {
		if _, dup := seen[q.ID]; dup {
			return nil, 0, fmt.Sprintf("duplicate question %d", q.ID), fmt.Errorf("duplicate question id %d", q.ID)
		}
		seen[q.ID] = struct{}{}
	}

	remaining := c.remainingFor(info)
	if remaining <= 0 {
		return nil, 0, ErrTimeElapsed.Error(), ErrTimeElapsed
	}

	// The slice is ours from here on; copy so callers of the API cannot alias it.
	out := make([]model.Question, len(questions))
	for i, q := range questions {
		q.Options = append([]model.Option(nil), q.Options...)
		out[i] = q
	}
	return out, remaining, "", nil
}

// remainingFor returns the seconds left in the attempt, floored at zero.
func (c *Controller) remainingFor(info *model.SessionInfo) int {
	duration := c.opts.DefaultDuration
	if info.DurationMinutes > 0 {
		duration = time.Duration(info.DurationMinutes) * time.Minute
	}

	var elapsed time.Duration
	if info.StartedAt != nil && !info.StartedAt.IsZero() {
		elapsed = c.opts.now().Sub(info.StartedAt.Time)
		if elapsed < 0 {
			elapsed = 0
		}
	}

	left := duration - elapsed
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

func reasonOf(err error) string {
	if reason := sessionapi.Reason(err); reason != "" {
		return reason
	}
	return err.Error()
}

// SelectAnswer records value as the answer to questionID and sends it to the
// server in the background. A failed write is reported through
// Options.OnAnswerError and never rolls back the local selection. Once the time
// is up it returns ErrTimeElapsed.
func (c *Controller) SelectAnswer(questionID int, value string) error {
	if value == "" {
		return ErrEmptyAnswer
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state() != StateActive {
		return ErrNotActive
	}
	// A timed-out attempt whose finish failed stays Active only for the retry.
	if c.expired || c.remaining == 0 {
		return ErrTimeElapsed
	}
	if _, ok := c.known[questionID]; !ok {
		return ErrUnknownQuestion
	}

	c.answers[questionID] = value
	c.pending.Add(1)
	go c.submit(c.pending, c.sessionID, questionID, value)

	c.publishLocked()
	return nil
}

func (c *Controller) submit(wg *sync.WaitGroup, sessionID, questionID int, value string) {
	defer wg.Done()

	err := c.api.SubmitAnswer(context.Background(), sessionID, questionID, value)
	if err == nil {
		return
	}

	c.log.Warn().Err(err).
		Int("session_id", sessionID).
		Int("question_id", questionID).
		Msg("Answer write failed, keeping local selection")

	if c.opts.OnAnswerError != nil {
		c.opts.OnAnswerError(&AnswerSubmitError{
			SessionID:  sessionID,
			QuestionID: questionID,
			Answer:     value,
			Err:        err,
		})
	}
}

// Wait blocks until every answer write issued so far has completed.
func (c *Controller) Wait() {
	c.mu.Lock()
	wg := c.pending
	c.mu.Unlock()
	wg.Wait()
}

// Next moves to the following question. It is a no-op on the last one.
func (c *Controller) Next() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.moveLocked(c.current + 1)
}

// Previous moves to the preceding question. It is a no-op on the first one.
func (c *Controller) Previous() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.moveLocked(c.current - 1)
}

// GoTo moves to index i, clamped to the loaded questions.
func (c *Controller) GoTo(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.moveLocked(i)
}

func (c *Controller) moveLocked(i int) {
	if len(c.questions) == 0 {
		return
	}
	if i < 0 {
		i = 0
	}
	if i > len(c.questions)-1 {
		i = len(c.questions) - 1
	}
	if i == c.current {
		return
	}
	c.current = i
	c.publishLocked()
}

// Tick advances the countdown by one step. The step that reaches zero
// finishes the attempt; ticks outside Active or at zero do nothing.
// The background countdown calls it itself unless ManualClock is set.
func (c *Controller) Tick(ctx context.Context) {
	c.tick(ctx, nil)
}

func (c *Controller) countdownTick(cd *countdown) {
	c.tick(context.Background(), cd)
}

// tick is shared by manual and background ticks. source is nil for manual
// ticks; a background tick from a countdown the controller no longer owns is
// dropped.
func (c *Controller) tick(ctx context.Context, source *countdown) {
	c.mu.Lock()
	if source != nil && (source != c.countdown || source.ctx.Err() != nil) {
		c.mu.Unlock()
		return
	}
	if c.state() != StateActive || c.remaining == 0 {
		c.mu.Unlock()
		return
	}

	c.remaining--
	if c.remaining > 0 {
		c.publishLocked()
		c.mu.Unlock()
		return
	}

	c.expired = true
	sessionID, epoch, wg := c.beginFinishLocked(triggerExpire)
	c.mu.Unlock()

	c.log.Info().Int("session_id", sessionID).Msg("Time is up, finishing session")
	// Failures are logged and kept in LastError by completeFinish.
	_, _ = c.completeFinish(ctx, sessionID, epoch, wg)
}

// Finish finalizes the attempt. Only one finalize call is ever in flight:
// calling Finish while another finish is running returns ErrFinishInProgress.
// On failure the error is a *FinishError and the attempt stays open.
func (c *Controller) Finish(ctx context.Context) (*model.Result, error) {
	c.mu.Lock()
	switch c.state() {
	case StateActive:
	case StateFinishing:
		c.mu.Unlock()
		return nil, ErrFinishInProgress
	case StateFinished:
		c.mu.Unlock()
		return nil, ErrAlreadyFinished
	default:
		c.mu.Unlock()
		return nil, ErrNotActive
	}
	sessionID, epoch, wg := c.beginFinishLocked(triggerFinish)
	c.mu.Unlock()

	return c.completeFinish(ctx, sessionID, epoch, wg)
}

// beginFinishLocked moves Active to Finishing, which also cancels the countdown.
func (c *Controller) beginFinishLocked(t trigger) (int, uint64, *sync.WaitGroup) {
	c.lastErr = ""
	c.fire(t)
	c.publishLocked()
	return c.sessionID, c.epoch, c.pending
}

func (c *Controller) completeFinish(ctx context.Context, sessionID int, epoch uint64, wg *sync.WaitGroup) (*model.Result, error) {
	// Let buffered answers land before the server scores the attempt.
	wg.Wait()

	res, err := c.api.FinishTest(ctx, sessionID)
	if err == nil && res == nil {
		err = ErrEmptyResult
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch || c.state() != StateFinishing {
		return nil, ErrAborted
	}

	if err != nil {
		finErr := &FinishError{SessionID: sessionID, Reason: reasonOf(err), Err: err}
		c.log.Error().Err(err).Int("session_id", sessionID).Msg("Failed to finish session")
		c.lastErr = finErr.Reason
		c.fire(triggerFinishFailed)
		c.publishLocked()
		return nil, finErr
	}

	stored := *res
	c.result = &stored
	c.fire(triggerFinished)

	c.log.Info().
		Int("session_id", sessionID).
		Int("correct", res.CorrectCount).
		Int("total", res.TotalCount).
		Bool("expired", c.expired).
		Msg("Session finished")
	c.publishLocked()

	out := stored
	return &out, nil
}

// Reset abandons the current attempt and returns to the initial state.
// Calls still in flight complete with ErrAborted.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fire(triggerReset)
	c.epoch++
	c.clearLocked()
	c.pending = &sync.WaitGroup{}
	c.publishLocked()
}

func (c *Controller) clearLocked() {
	c.sessionID = 0
	c.questions = nil
	c.known = nil
	c.answers = nil
	c.current = 0
	c.remaining = 0
	c.expired = false
	c.result = nil
	c.lastErr = ""
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	st := c.state()
	snap := Snapshot{
		State:         st,
		SessionID:     c.sessionID,
		Answers:       make(map[int]string, len(c.answers)),
		CurrentIndex:  c.current,
		TimeRemaining: c.remaining,
		Active:        st == StateActive || st == StateFinishing,
		Expired:       c.expired,
		LastError:     c.lastErr,
	}
	if c.questions != nil {
		snap.Questions = make([]model.Question, len(c.questions))
		for i, q := range c.questions {
			q.Options = append([]model.Option(nil), q.Options...)
			snap.Questions[i] = q
		}
	}
	for id, v := range c.answers {
		snap.Answers[id] = v
	}
	if c.result != nil {
		r := *c.result
		snap.Result = &r
	}
	return snap
}

// Subscribe returns a channel that receives a snapshot after every change,
// starting with the current one. Slow readers only see the latest snapshot.
// The returned function unsubscribes and closes the channel.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.snapshotLocked()
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			close(ch)
			c.mu.Unlock()
		})
	}
	return ch, cancel
}

// publishLocked replaces whatever a subscriber has not read yet. All sends
// happen under c.mu, so the drain-then-send cannot race another sender.
func (c *Controller) publishLocked() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
