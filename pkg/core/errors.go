package core

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrorType represents the category of an SDK error.
type ErrorType int

// Error type constants categorize errors so callers can decide what to do next.
// The SDK never retries on its own.
const (
	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeConnectivity indicates a transport or socket failure.
	ErrorTypeConnectivity
	// ErrorTypeTimeout indicates the request exceeded its deadline.
	ErrorTypeTimeout
	// ErrorTypeRateLimit indicates a local rate window denied the request before it was sent.
	ErrorTypeRateLimit
	// ErrorTypeSignature indicates a malformed credential or a signing failure.
	ErrorTypeSignature
	// ErrorTypeParameter indicates invalid caller input or a request that could not be encoded.
	ErrorTypeParameter
	// ErrorTypeDeserialize indicates a malformed or unexpected body or frame.
	ErrorTypeDeserialize
	// ErrorTypeUpstream indicates a structured error returned by the exchange.
	ErrorTypeUpstream
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	if t < 0 || int(t) >= len(errorTypeNames) {
		return "UNKNOWN"
	}
	return errorTypeNames[t]
}

var errorTypeNames = [...]string{
	"UNKNOWN",
	"CONNECTIVITY",
	"TIMEOUT",
	"RATE_LIMIT",
	"SIGNATURE",
	"PARAMETER",
	"DESERIALIZE",
	"UPSTREAM",
}

// Sentinel errors for common error conditions.
var (
	// ErrClientClosed is returned when attempting to use a closed client.
	ErrClientClosed = errors.New("client is closed")
	// ErrStreamClosed is returned when attempting to use a closed stream.
	ErrStreamClosed = errors.New("stream is closed")
	// ErrCircuitBreakerOpen is returned when circuit breaker is open.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	// ErrNoCredentials is returned when an authenticated request has no credential to use.
	ErrNoCredentials = errors.New("no credentials configured")
)

// ExchangeError represents a structured error raised by the SDK or returned from the exchange.
type ExchangeError struct {
	// Type categorizes the error for programmatic handling.
	Type ErrorType `json:"type"`
	// StatusCode is the HTTP status code, zero for local and stream errors.
	StatusCode int `json:"status_code"`
	// Code is the exchange error code, or a local ErrorCode.
	Code string `json:"code"`
	// Message is the human-readable error description.
	Message string `json:"message"`
	// Err is the underlying cause, if any.
	Err error `json:"-"`
	// Timestamp is when the error occurred.
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface for ExchangeError.
func (e *ExchangeError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Code != "" {
		return fmt.Sprintf("[binance] %s (%d/%s): %s", e.Type, e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("[binance] %s (%d): %s", e.Type, e.StatusCode, msg)
}

// Unwrap returns the underlying cause.
func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// WithCode sets the error code and returns the error for chaining.
func (e *ExchangeError) WithCode(code ErrorCode) *ExchangeError {
	e.Code = string(code)
	return e
}

// NewExchangeError creates a new ExchangeError with the specified details.
// The timestamp is automatically set to the current time.
func NewExchangeError(errorType ErrorType, statusCode int, message string, cause error) *ExchangeError {
	return &ExchangeError{
		Type:       errorType,
		StatusCode: statusCode,
		Message:    message,
		Err:        cause,
		Timestamp:  time.Now(),
	}
}

// NewRateLimitError reports a request denied by a local rate window.
func NewRateLimitError(message string) *ExchangeError {
	return NewExchangeError(ErrorTypeRateLimit, 0, message, nil).WithCode(ErrCodeRateLimit)
}

// NewTimeoutError reports a request that did not finish before its deadline.
func NewTimeoutError(message string, cause error) *ExchangeError {
	return NewExchangeError(ErrorTypeTimeout, 0, message, cause).WithCode(ErrCodeTimeout)
}

// NewSignatureError reports a credential or signing failure.
func NewSignatureError(message string, cause error) *ExchangeError {
	return NewExchangeError(ErrorTypeSignature, 0, message, cause).WithCode(ErrCodeSignature)
}

// NewConnectivityError reports a transport or socket failure.
func NewConnectivityError(message string, cause error) *ExchangeError {
	return NewExchangeError(ErrorTypeConnectivity, 0, message, cause).WithCode(ErrCodeConnectivity)
}

// NewDeserializeError reports a body or frame that could not be decoded.
func NewDeserializeError(message string, cause error) *ExchangeError {
	return NewExchangeError(ErrorTypeDeserialize, 0, message, cause).WithCode(ErrCodeDeserialize)
}

// NewParameterError reports invalid caller input.
func NewParameterError(message string, cause error) *ExchangeError {
	return NewExchangeError(ErrorTypeParameter, 0, message, cause).WithCode(ErrCodeParameter)
}

// NewUpstreamError reports a structured error returned by the exchange.
// The numeric exchange code is kept verbatim in Code.
func NewUpstreamError(statusCode, code int, message string) *ExchangeError {
	return &ExchangeError{
		Type:       ErrorTypeUpstream,
		StatusCode: statusCode,
		Code:       strconv.Itoa(code),
		Message:    message,
		Timestamp:  time.Now(),
	}
}

func isType(err error, t ErrorType) bool {
	var e *ExchangeError
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsConnectivityError returns true if the error is a transport or socket failure.
func IsConnectivityError(err error) bool {
	return isType(err, ErrorTypeConnectivity)
}

// IsTimeoutError returns true if the error is a timeout.
func IsTimeoutError(err error) bool {
	return isType(err, ErrorTypeTimeout)
}

// IsRateLimitError returns true if a local rate window denied the request.
func IsRateLimitError(err error) bool {
	return isType(err, ErrorTypeRateLimit)
}

// IsSignatureError returns true if the error is a signing failure.
func IsSignatureError(err error) bool {
	return isType(err, ErrorTypeSignature)
}

// IsParameterError returns true if the error is caused by invalid input.
func IsParameterError(err error) bool {
	return isType(err, ErrorTypeParameter)
}

// IsDeserializeError returns true if a body or frame could not be decoded.
func IsDeserializeError(err error) bool {
	return isType(err, ErrorTypeDeserialize)
}

// IsUpstreamError returns true if the exchange returned a structured error.
func IsUpstreamError(err error) bool {
	return isType(err, ErrorTypeUpstream)
}

// UpstreamCode returns the numeric exchange code carried by an upstream error.
func UpstreamCode(err error) (int, bool) {
	var e *ExchangeError
	if !errors.As(err, &e) || e.Type != ErrorTypeUpstream {
		return 0, false
	}
	code, convErr := strconv.Atoi(e.Code)
	if convErr != nil {
		return 0, false
	}
	return code, true
}
