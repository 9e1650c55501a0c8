package httputil

// Machine-readable error codes returned next to the human message. Internal
// detail (stack traces, store error text) never appears in either.
const (
	CodeInvalidRequestBody  = "invalid_request_body"
	CodeEmailRequired       = "email_required"
	CodeInvalidEmailFormat  = "invalid_email_format"
	CodeUsernameRequired    = "username_required"
	CodePasswordRequired    = "password_required"
	CodePasswordTooShort    = "password_too_short"
	CodeTokenRequired       = "token_required"
	CodeEmailAlreadyExists  = "email_already_exists"
	CodeInvalidCredentials  = "invalid_credentials"
	CodeInvalidOrExpired    = "invalid_or_expired_token"
	CodeAlreadyVerified     = "already_verified"
	CodeMissingAuth         = "missing_authentication"
	CodeInvalidAuthHeader   = "invalid_authorization_header"
	CodeInvalidToken        = "invalid_token"
	CodeForbidden           = "forbidden"
	CodeServerMisconfigured = "server_misconfigured"
	CodeEmailSendFailed     = "email_send_failed"
	CodeTooManyRequests     = "too_many_requests"
	CodeInternalError       = "internal_error"
)
