package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Test session ──────────────────────────────────────────────────
	ErrAlreadySubmitted        ErrCode = "ALREADY_SUBMITTED"
	ErrNoSavedProgress         ErrCode = "NO_SAVED_PROGRESS"
	ErrNoDurationConfigured    ErrCode = "NO_DURATION_CONFIGURED"
	ErrNoQuestions             ErrCode = "NO_QUESTIONS"
	ErrQuestionIndexOutOfRange ErrCode = "QUESTION_INDEX_OUT_OF_RANGE"
	ErrTimeUp                  ErrCode = "TIME_UP"
	ErrInvalidTestType         ErrCode = "INVALID_TEST_TYPE"
	ErrStaleAttempt            ErrCode = "STALE_ATTEMPT"
	ErrAnswerCountMismatch     ErrCode = "ANSWER_COUNT_MISMATCH"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Kode akses atau kata sandi salah."
	case ErrSessionInvalidated:
		return "Sesi Anda telah berakhir. Silakan login kembali."
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."
	case ErrAdminAccessOnly:
		return "Sumber daya ini terbatas untuk administrator."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrConflict:
		return "Sumber daya sudah ada."

	// ─── Test session ──────────────────────────────────────────────────
	case ErrAlreadySubmitted:
		return "Tes ini sudah dikumpulkan dan tidak ada izin mengulang."
	case ErrNoSavedProgress:
		return "Tidak ada tes yang sedang berlangsung."
	case ErrNoDurationConfigured:
		return "Durasi tes ini belum diatur."
	case ErrNoQuestions:
		return "Tes ini tidak memiliki pertanyaan."
	case ErrQuestionIndexOutOfRange:
		return "Nomor soal di luar jangkauan."
	case ErrTimeUp:
		return "Waktu habis. Tes telah dikumpulkan otomatis."
	case ErrInvalidTestType:
		return "Jenis tes tidak valid."
	case ErrStaleAttempt:
		return "Data berasal dari percobaan sebelumnya."
	case ErrAnswerCountMismatch:
		return "Jumlah jawaban tidak sesuai dengan jumlah soal."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
