package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jorabeknazarmatov/test-platform/internal/response"
	"github.com/jorabeknazarmatov/test-platform/internal/session"
	"github.com/jorabeknazarmatov/test-platform/internal/sessionapi"
)

// classify maps controller and Session API errors to an HTTP status, an
// error code and a message. An empty message means the code's default.
func classify(err error) (int, response.ErrCode, string) {
	var (
		loadErr   *session.SessionLoadError
		finishErr *session.FinishError
		apiErr    *sessionapi.APIError
	)

	switch {
	case errors.Is(err, session.ErrSessionInProgress):
		return http.StatusConflict, response.ErrSessionInProgress, ""
	case errors.Is(err, session.ErrNotActive):
		return http.StatusConflict, response.ErrNotActive, ""
	case errors.Is(err, session.ErrUnknownQuestion):
		return http.StatusBadRequest, response.ErrUnknownQuestion, ""
	case errors.Is(err, session.ErrEmptyAnswer):
		return http.StatusBadRequest, response.ErrValidation, ""
	case errors.Is(err, session.ErrFinishInProgress):
		return http.StatusConflict, response.ErrFinishInProgress, ""
	case errors.Is(err, session.ErrAlreadyFinished):
		return http.StatusConflict, response.ErrAlreadyFinished, ""
	case errors.Is(err, session.ErrAborted):
		return http.StatusConflict, response.ErrAborted, ""
	case errors.As(err, &loadErr):
		return http.StatusUnprocessableEntity, response.ErrSessionLoadFailed, loadErr.Reason
	// After the load case: a load rejected for lack of time wraps the same sentinel.
	case errors.Is(err, session.ErrTimeElapsed):
		return http.StatusConflict, response.ErrTimeElapsed, ""
	case errors.As(err, &finishErr):
		return http.StatusBadGateway, response.ErrFinishFailed, finishErr.Reason
	case errors.Is(err, sessionapi.ErrOTPRejected):
		return http.StatusUnauthorized, response.ErrOTPInvalid, ""
	case errors.As(err, &apiErr):
		return classifyAPIError(apiErr)
	case errors.Is(err, sessionapi.ErrUnavailable):
		return http.StatusBadGateway, response.ErrUpstream, ""
	default:
		return http.StatusInternalServerError, response.ErrInternal, ""
	}
}

func classifyAPIError(apiErr *sessionapi.APIError) (int, response.ErrCode, string) {
	switch apiErr.StatusCode {
	case http.StatusUnauthorized:
		return http.StatusUnauthorized, response.ErrOTPInvalid, apiErr.Message
	case http.StatusTooManyRequests, http.StatusForbidden:
		return http.StatusTooManyRequests, response.ErrOTPBlocked, apiErr.Message
	case http.StatusNotFound:
		return http.StatusNotFound, response.ErrNotFound, apiErr.Message
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return http.StatusBadRequest, response.ErrValidation, apiErr.Message
	default:
		return http.StatusBadGateway, response.ErrUpstream, apiErr.Message
	}
}

// fail writes the envelope for err.
func fail(c *gin.Context, err error) {
	status, code, msg := classify(err)
	response.FailWithMessage(c, status, code, msg)
}
