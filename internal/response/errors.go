package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── OTP ───────────────────────────────────────────────────────────
	ErrOTPInvalid ErrCode = "OTP_INVALID"
	ErrOTPExpired ErrCode = "OTP_EXPIRED"
	ErrOTPBlocked ErrCode = "OTP_BLOCKED"

	// ─── Session lifecycle ─────────────────────────────────────────────
	ErrSessionLoadFailed ErrCode = "SESSION_LOAD_FAILED"
	ErrSessionInProgress ErrCode = "SESSION_IN_PROGRESS"
	ErrNotActive         ErrCode = "SESSION_NOT_ACTIVE"
	ErrUnknownQuestion   ErrCode = "UNKNOWN_QUESTION"
	ErrFinishInProgress  ErrCode = "FINISH_IN_PROGRESS"
	ErrAlreadyFinished   ErrCode = "ALREADY_FINISHED"
	ErrFinishFailed      ErrCode = "FINISH_FAILED"
	ErrAborted           ErrCode = "SESSION_RESET"
	ErrTimeElapsed       ErrCode = "TIME_ELAPSED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Upstream ──────────────────────────────────────────────────────
	ErrUpstream ErrCode = "UPSTREAM_ERROR"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── OTP ───────────────────────────────────────────────────────────
	case ErrOTPInvalid:
		return "OTP noto'g'ri."
	case ErrOTPExpired:
		return "OTP vaqti o'tgan."
	case ErrOTPBlocked:
		return "Juda ko'p urinish. Keyinroq qayta urinib ko'ring."

	// ─── Session lifecycle ─────────────────────────────────────────────
	case ErrSessionLoadFailed:
		return "Testni yuklab bo'lmadi."
	case ErrSessionInProgress:
		return "Boshqa test allaqachon ochilgan."
	case ErrNotActive:
		return "Test faol emas."
	case ErrUnknownQuestion:
		return "Savol bu testga tegishli emas."
	case ErrFinishInProgress:
		return "Test yakunlanmoqda, iltimos kuting."
	case ErrAlreadyFinished:
		return "Test allaqachon yakunlangan."
	case ErrFinishFailed:
		return "Testni yakunlab bo'lmadi. Qayta urinib ko'ring."
	case ErrAborted:
		return "Test bekor qilindi."
	case ErrTimeElapsed:
		return "Vaqt tugadi. Javoblarni o'zgartirib bo'lmaydi, testni yakunlang."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Ma'lumotlar noto'g'ri. Iltimos, tekshirib qayta kiriting."
	case ErrInvalidID:
		return "ID formati noto'g'ri."
	case ErrInvalidPayload:
		return "So'rov ma'lumotlari noto'g'ri."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Ma'lumot topilmadi."

	// ─── Upstream ──────────────────────────────────────────────────────
	case ErrUpstream:
		return "Test serveriga ulanib bo'lmadi."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "So'rovlar juda ko'p. Birozdan keyin qayta urinib ko'ring."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Serverda ichki xatolik yuz berdi."
	default:
		return "Kutilmagan xatolik yuz berdi."
	}
}
