package sessionapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrOTPRejected is returned when the backend answers an OTP check without success.
var ErrOTPRejected = errors.New("otp rejected")

// ErrUnavailable wraps transport failures: the request never got an HTTP answer.
var ErrUnavailable = errors.New("session api unavailable")

// APIError is a non-2xx answer from the Session API.
type APIError struct {
	StatusCode int
	// Message is the server-provided reason, suitable for showing to the student.
	Message string
	Detail  json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("session api: %d %s", e.StatusCode, e.Message)
}

// errorBody covers both backend shapes: {"success":false,"message":..,"detail":..}
// from application errors and {"detail": ".."} from plain HTTP exceptions.
type errorBody struct {
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		apiErr.Message = strings.TrimSpace(eb.Message)
		if len(eb.Detail) > 0 && string(eb.Detail) != "null" {
			apiErr.Detail = eb.Detail
		}
		if apiErr.Message == "" && len(apiErr.Detail) > 0 {
			var detail string
			if json.Unmarshal(apiErr.Detail, &detail) == nil {
				apiErr.Message = strings.TrimSpace(detail)
			}
		}
	}

	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// Reason extracts the server-provided reason from err, or "" when err did not
// come from the Session API.
func Reason(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
