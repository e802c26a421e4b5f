package core

import "errors"

// ErrorCode represents a local, machine-readable error identifier.
type ErrorCode string

// Local error codes attached to errors raised inside the SDK.
const (
	ErrCodeConnectivity ErrorCode = "CONNECTIVITY_ERROR"
	ErrCodeTimeout      ErrorCode = "TIMEOUT"
	ErrCodeRateLimit    ErrorCode = "RATE_LIMIT"
	ErrCodeSignature    ErrorCode = "SIGNATURE_ERROR"
	ErrCodeParameter    ErrorCode = "PARAMETER_ERROR"
	ErrCodeDeserialize  ErrorCode = "DESERIALIZE_ERROR"

	// Configuration errors
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// Stream errors
	ErrCodeStreamClosed ErrorCode = "STREAM_CLOSED"

	// Circuit breaker errors
	ErrCodeCircuitBreaker ErrorCode = "CIRCUIT_BREAKER_OPEN"

	// Authentication errors
	ErrCodeNoCredentials ErrorCode = "NO_CREDENTIALS"
)

// IsErrorCode checks if the error matches the specified error code.
func IsErrorCode(err error, code ErrorCode) bool {
	var exErr *ExchangeError
	if errors.As(err, &exErr) {
		return ErrorCode(exErr.Code) == code
	}
	return false
}

// UpstreamClass groups exchange error codes by what the caller can do about them.
type UpstreamClass int

const (
	ClassUnknown UpstreamClass = iota
	// ClassServer covers server and network problems on the exchange side (-1000 range).
	ClassServer
	// ClassRateLimit covers request weight and order rate violations.
	ClassRateLimit
	// ClassAuth covers rejected keys, signatures and timestamps.
	ClassAuth
	// ClassRequest covers malformed requests (-1100 range).
	ClassRequest
	// ClassOrder covers order and processing failures (-2000 range).
	ClassOrder
)

func (c UpstreamClass) String() string {
	switch c {
	case ClassServer:
		return "server"
	case ClassRateLimit:
		return "rate_limit"
	case ClassAuth:
		return "auth"
	case ClassRequest:
		return "request"
	case ClassOrder:
		return "order"
	default:
		return "unknown"
	}
}

// UpstreamCodeInfo describes one exchange error code.
type UpstreamCodeInfo struct {
	Code  int
	Name  string
	Class UpstreamClass
}

var upstreamCodes = map[int]UpstreamCodeInfo{
	-1000: {-1000, "UNKNOWN", ClassServer},
	-1001: {-1001, "DISCONNECTED", ClassServer},
	-1002: {-1002, "UNAUTHORIZED", ClassAuth},
	-1003: {-1003, "TOO_MANY_REQUESTS", ClassRateLimit},
	-1006: {-1006, "UNEXPECTED_RESP", ClassServer},
	-1007: {-1007, "TIMEOUT", ClassServer},
	-1008: {-1008, "SERVER_BUSY", ClassServer},
	-1013: {-1013, "INVALID_MESSAGE", ClassRequest},
	-1014: {-1014, "UNKNOWN_ORDER_COMPOSITION", ClassRequest},
	-1015: {-1015, "TOO_MANY_ORDERS", ClassRateLimit},
	-1016: {-1016, "SERVICE_SHUTTING_DOWN", ClassServer},
	-1020: {-1020, "UNSUPPORTED_OPERATION", ClassRequest},
	-1021: {-1021, "INVALID_TIMESTAMP", ClassAuth},
	-1022: {-1022, "INVALID_SIGNATURE", ClassAuth},
	-1100: {-1100, "ILLEGAL_CHARS", ClassRequest},
	-1101: {-1101, "TOO_MANY_PARAMETERS", ClassRequest},
	-1102: {-1102, "MANDATORY_PARAM_EMPTY_OR_MALFORMED", ClassRequest},
	-1103: {-1103, "UNKNOWN_PARAM", ClassRequest},
	-1104: {-1104, "UNREAD_PARAMETERS", ClassRequest},
	-1105: {-1105, "PARAM_EMPTY", ClassRequest},
	-1106: {-1106, "PARAM_NOT_REQUIRED", ClassRequest},
	-1111: {-1111, "BAD_PRECISION", ClassRequest},
	-1112: {-1112, "NO_DEPTH", ClassRequest},
	-1114: {-1114, "TIF_NOT_REQUIRED", ClassRequest},
	-1115: {-1115, "INVALID_TIF", ClassRequest},
	-1116: {-1116, "INVALID_ORDER_TYPE", ClassRequest},
	-1117: {-1117, "INVALID_SIDE", ClassRequest},
	-1118: {-1118, "EMPTY_NEW_CL_ORD_ID", ClassRequest},
	-1119: {-1119, "EMPTY_ORG_CL_ORD_ID", ClassRequest},
	-1120: {-1120, "BAD_INTERVAL", ClassRequest},
	-1121: {-1121, "BAD_SYMBOL", ClassRequest},
	-1125: {-1125, "INVALID_LISTEN_KEY", ClassRequest},
	-1127: {-1127, "MORE_THAN_XX_HOURS", ClassRequest},
	-1128: {-1128, "OPTIONAL_PARAMS_BAD_COMBO", ClassRequest},
	-1130: {-1130, "INVALID_PARAMETER", ClassRequest},
	-1131: {-1131, "BAD_RECV_WINDOW", ClassRequest},
	-2010: {-2010, "NEW_ORDER_REJECTED", ClassOrder},
	-2011: {-2011, "CANCEL_REJECTED", ClassOrder},
	-2013: {-2013, "NO_SUCH_ORDER", ClassOrder},
	-2014: {-2014, "BAD_API_KEY_FMT", ClassAuth},
	-2015: {-2015, "REJECTED_MBX_KEY", ClassAuth},
	-2016: {-2016, "NO_TRADING_WINDOW", ClassOrder},
	-2026: {-2026, "ORDER_ARCHIVED", ClassOrder},
}

// LookupCode returns the catalog entry for an exchange error code.
// Unlisted codes are classified by range.
func LookupCode(code int) UpstreamCodeInfo {
	if info, ok := upstreamCodes[code]; ok {
		return info
	}
	info := UpstreamCodeInfo{Code: code, Name: "UNLISTED"}
	switch {
	case code <= -1000 && code > -1100:
		info.Class = ClassServer
	case code <= -1100 && code > -2000:
		info.Class = ClassRequest
	case code <= -2000 && code > -3000:
		info.Class = ClassOrder
	}
	return info
}

// IsAuthRejection reports whether the exchange rejected the credential itself,
// as opposed to the request content.
func IsAuthRejection(err error) bool {
	code, ok := UpstreamCode(err)
	if !ok {
		return false
	}
	switch code {
	case -1022, -2014, -2015:
		return true
	}
	return false
}
