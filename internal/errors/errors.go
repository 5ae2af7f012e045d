package errors

import "fmt"

// Error codes for the ingest-and-aggregate core. Each corresponds to one of
// the kinds named in the error handling design: platform-side failures,
// repository-side failures, and value-object validation failures.
const (
	ErrCodePlatformNetwork   = "PLATFORM_NETWORK"
	ErrCodePlatformAPI       = "PLATFORM_API"
	ErrCodePlatformParse     = "PLATFORM_PARSE"
	ErrCodeRepositoryDatabase = "REPOSITORY_DATABASE"
	ErrCodeInvalidFen        = "INVALID_FEN"
	ErrCodeInvalidPgn        = "INVALID_PGN"
)

// AppError is the error taxonomy shared by every component: a stable code,
// a human-readable message, and the wrapped cause (if any).
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may reasonably retry the operation
// that produced this error. Only transient platform/network failures are.
func (e *AppError) Retryable() bool {
	return e.Code == ErrCodePlatformNetwork
}

// NewPlatformNetworkError wraps a transient/unreachable failure after retries
// have been exhausted. Retryable by the caller.
func NewPlatformNetworkError(err error) *AppError {
	return &AppError{Code: ErrCodePlatformNetwork, Message: "platform unreachable", Err: err}
}

// NewPlatformAPIError wraps a non-transient upstream error (4xx other than 429).
func NewPlatformAPIError(status int, body string) *AppError {
	return &AppError{Code: ErrCodePlatformAPI, Message: fmt.Sprintf("platform returned status %d: %s", status, body)}
}

// NewPlatformParseError wraps an unexpected upstream response shape.
func NewPlatformParseError(err error) *AppError {
	return &AppError{Code: ErrCodePlatformParse, Message: "failed to parse platform response", Err: err}
}

// NewRepositoryDatabaseError wraps a connectivity or constraint failure during persistence.
func NewRepositoryDatabaseError(err error) *AppError {
	return &AppError{Code: ErrCodeRepositoryDatabase, Message: "repository operation failed", Err: err}
}

// NewInvalidFenError reports a FEN value-object validation failure.
func NewInvalidFenError(fen string) *AppError {
	return &AppError{Code: ErrCodeInvalidFen, Message: fmt.Sprintf("invalid FEN: %q", fen)}
}

// NewInvalidPgnError reports a PGN that could not be replayed to completion.
func NewInvalidPgnError(reason string) *AppError {
	return &AppError{Code: ErrCodeInvalidPgn, Message: fmt.Sprintf("invalid PGN: %s", reason)}
}
