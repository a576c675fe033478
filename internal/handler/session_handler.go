package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jorabeknazarmatov/test-platform/internal/model"
	"github.com/jorabeknazarmatov/test-platform/internal/response"
	"github.com/jorabeknazarmatov/test-platform/internal/session"
	"github.com/jorabeknazarmatov/test-platform/internal/validator"
)

// OTPVerifier checks a one-time code against the Session API.
type OTPVerifier interface {
	VerifyOTP(ctx context.Context, sessionID int, otp string) (*model.OTPVerification, error)
}

// SessionHandler exposes the kiosk's test session controller over REST.
type SessionHandler struct {
	ctrl     *session.Controller
	verifier OTPVerifier
	log      zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(ctrl *session.Controller, verifier OTPVerifier, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		ctrl:     ctrl,
		verifier: verifier,
		log:      log.With().Str("component", "session_handler").Logger(),
	}
}

// VerifyOTP godoc
// POST /api/v1/session/verify
// Checks the OTP for a session. Starting the session is a separate call.
func (h *SessionHandler) VerifyOTP(c *gin.Context) {
	var req model.VerifyOTPRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	verification, err := h.verifier.VerifyOTP(c.Request.Context(), req.SessionID, req.OTP)
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Info().Err(err).Int("session_id", req.SessionID).Msg("OTP rejected")
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"verification": verification})
}

// Start godoc
// POST /api/v1/session/start
// Loads the session and its questions and starts the countdown.
func (h *SessionHandler) Start(c *gin.Context) {
	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.ctrl.StartSession(c.Request.Context(), req.SessionID); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": h.ctrl.Snapshot()})
}

// State godoc
// GET /api/v1/session/state
func (h *SessionHandler) State(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"session": h.ctrl.Snapshot()})
}

// SelectAnswer godoc
// POST /api/v1/session/answers
// Records the answer locally; the write to the test server happens in the
// background.
func (h *SessionHandler) SelectAnswer(c *gin.Context) {
	var req model.SelectAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.ctrl.SelectAnswer(req.QuestionID, req.Answer); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"session": h.ctrl.Snapshot()})
}

// Next godoc
// POST /api/v1/session/next
func (h *SessionHandler) Next(c *gin.Context) {
	h.ctrl.Next()
	response.Success(c, http.StatusOK, gin.H{"session": h.ctrl.Snapshot()})
}

// Previous godoc
// POST /api/v1/session/previous
func (h *SessionHandler) Previous(c *gin.Context) {
	h.ctrl.Previous()
	response.Success(c, http.StatusOK, gin.H{"session": h.ctrl.Snapshot()})
}

// GoTo godoc
// POST /api/v1/session/goto
func (h *SessionHandler) GoTo(c *gin.Context) {
	var req model.GoToRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	h.ctrl.GoTo(req.Index)
	response.Success(c, http.StatusOK, gin.H{"session": h.ctrl.Snapshot()})
}

// Finish godoc
// POST /api/v1/session/finish
// Finalizes the attempt. The finalize call outlives the HTTP request so a
// dropped connection cannot leave the attempt half-finished.
func (h *SessionHandler) Finish(c *gin.Context) {
	ctx := context.WithoutCancel(c.Request.Context())

	result, err := h.ctrl.Finish(ctx)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// Reset godoc
// POST /api/v1/session/reset
// Drops the current attempt and returns the kiosk to its initial state.
func (h *SessionHandler) Reset(c *gin.Context) {
	h.ctrl.Reset()
	h.log.Info().Msg("Session reset")
	response.Success(c, http.StatusOK, gin.H{"session": h.ctrl.Snapshot()})
}
