package wire

// Code is a machine-readable API error code, returned alongside a short human message per spec §7. Internal
// packages never import an HTTP framework type; handlers translate a package's sentinel errors into one of these
// at the boundary.
type Code string

const (
	CodeUnauthorized          Code = "unauthorized"
	CodeForbidden             Code = "forbidden"
	CodeNotFound              Code = "not_found"
	CodeConflict              Code = "conflict"
	CodeRateLimited           Code = "rate_limited"
	CodeValidation            Code = "validation"
	CodeDependencyUnavailable Code = "dependency_unavailable"
	CodeInternal              Code = "internal"
)

// ErrorBody is the structured error shape returned in REST responses.
type ErrorBody struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// SuccessResponse wraps successful API responses.
type SuccessResponse struct {
	Data any `json:"data"`
}

// ErrorResponse wraps failed API responses.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// RateLimitedBody is the additional payload attached to a CodeRateLimited error, per spec §7.
type RateLimitedBody struct {
	ErrorBody
	RetryAfterSeconds int `json:"retry_after_seconds"`
}
