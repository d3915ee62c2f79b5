// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are stable, lowercase snake_case strings that clients branch on; the
// accompanying message is human-readable Persian meant for end users.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "not_verified",
//	  "message": "ایمیل شما هنوز تأیید نشده است"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"

	// Identity
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeNotVerified        = "not_verified"
	ErrCodeInvalidToken       = "invalid_token"

	// Relay
	ErrCodeUpstreamUnavailable = "upstream_unavailable"
	ErrCodeStreamInterrupted   = "stream_interrupted"
	ErrCodeStreamCancelled     = "stream_cancelled"
	ErrCodeIdempotencyMismatch = "idempotency_key_reused"
)

// User-facing messages.
const (
	msgBadRequest          = "درخواست نامعتبر"
	msgEmailMissing        = "ایمیل ارسال نشده است."
	msgEmailAndAvatar      = "ایمیل و آواتار الزامی است."
	msgEmptyMessage        = "پیام خالی است"
	msgTooLong             = "پیام بیش از حد طولانی است"
	msgInvalidEmail        = "ایمیل نامعتبر است"
	msgWeakPassword        = "رمز عبور نامعتبر است"
	msgInvalidAvatar       = "آواتار انتخاب‌شده معتبر نیست"
	msgInvalidToken        = "لینک تأیید نامعتبر است یا قبلاً استفاده شده است"
	msgUnauthorized        = "کاربر شناسایی نشد"
	msgInvalidCredentials  = "ایمیل یا رمز عبور اشتباه است"
	msgNotVerified         = "ایمیل شما هنوز تأیید نشده است"
	msgEmailAlreadyUsed    = "این ایمیل قبلاً ثبت شده است"
	msgUpstreamUnavailable = "پاسخ‌گوی هوش مصنوعی در دسترس نیست؛ لطفاً دوباره تلاش کنید"
	msgStreamInterrupted   = "پاسخ ناقص ماند؛ لطفاً دوباره تلاش کنید"
	msgTimeout             = "زمان پاسخ‌گویی به پایان رسید"
	msgIdempotencyMismatch = "این کلید تکرار قبلاً برای پیام دیگری استفاده شده است"
	msgInternal            = "خطای داخلی سرور"
	msgNotFound            = "مسیر پیدا نشد"
	msgMethodNotAllowed    = "متد مجاز نیست"
)
