package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrTeacherAccessOnly ErrCode = "TEACHER_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	ErrAssessmentNotOpen    ErrCode = "ASSESSMENT_NOT_OPEN"
	ErrNotEnrolled          ErrCode = "NOT_ENROLLED"
	ErrAttemptLocked        ErrCode = "ATTEMPT_LOCKED"
	ErrAlreadySubmitted     ErrCode = "ALREADY_SUBMITTED"
	ErrDeadlinePassed       ErrCode = "DEADLINE_PASSED"
	ErrUnsupportedOperation ErrCode = "UNSUPPORTED_OPERATION"
	ErrInvalidViolationKind ErrCode = "INVALID_VIOLATION_KIND"

	// ─── Reopen ────────────────────────────────────────────────────────
	ErrNotSupervised    ErrCode = "NOT_SUPERVISED"
	ErrNotInterrupted   ErrCode = "NOT_INTERRUPTED"
	ErrTimeFullyElapsed ErrCode = "TIME_FULLY_ELAPSED"

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
		return "Nama pengguna atau kata sandi salah."
	case ErrSessionActive:
		return "Anda sudah login di perangkat lain."
	case ErrSessionInvalidated:
		return "Sesi Anda telah berakhir. Silakan login kembali."
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."
	case ErrTokenExpired:
		return "Token autentikasi telah kedaluwarsa."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."
	case ErrTeacherAccessOnly:
		return "Sumber daya ini terbatas untuk guru."

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

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	case ErrAssessmentNotOpen:
		return "Asesmen ini belum dibuka."
	case ErrNotEnrolled:
		return "Anda tidak terdaftar di kelas asesmen ini."
	case ErrAttemptLocked:
		return "Pengerjaan Anda telah dikunci dan tidak dapat diubah."
	case ErrAlreadySubmitted:
		return "Jawaban Anda sudah dikumpulkan."
	case ErrDeadlinePassed:
		return "Batas waktu pengerjaan telah berakhir."
	case ErrUnsupportedOperation:
		return "Operasi ini tidak didukung untuk mode asesmen tersebut."
	case ErrInvalidViolationKind:
		return "Jenis pelanggaran tidak dikenal."

	// ─── Reopen ────────────────────────────────────────────────────────
	case ErrNotSupervised:
		return "Asesmen ini tidak diawasi sehingga tidak dapat dibuka kembali."
	case ErrNotInterrupted:
		return "Pengerjaan ini tidak berakhir karena gangguan."
	case ErrTimeFullyElapsed:
		return "Sisa waktu pengerjaan sudah habis."

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
