package model

// VerifyOTPRequest is the kiosk payload for an OTP check.
type VerifyOTPRequest struct {
	SessionID int    `json:"session_id" binding:"required,gt=0"`
	OTP       string `json:"otp" binding:"required,len=6,numeric"`
}

// StartSessionRequest loads a session into the kiosk controller.
type StartSessionRequest struct {
	SessionID int `json:"session_id" binding:"required,gt=0"`
}

// SelectAnswerRequest records the chosen option for one question.
type SelectAnswerRequest struct {
	QuestionID int    `json:"question_id" binding:"required"`
	Answer     string `json:"answer" binding:"required,max=255"`
}

// GoToRequest moves the cursor to a question index (zero-based).
type GoToRequest struct {
	Index int `json:"index" binding:"gte=0"`
}
