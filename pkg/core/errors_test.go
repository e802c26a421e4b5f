package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorType_String(t *testing.T) {
	tests := []struct {
		name      string
		errorType ErrorType
		want      string
	}{
		{"unknown", ErrorTypeUnknown, "UNKNOWN"},
		{"connectivity", ErrorTypeConnectivity, "CONNECTIVITY"},
		{"timeout", ErrorTypeTimeout, "TIMEOUT"},
		{"rate_limit", ErrorTypeRateLimit, "RATE_LIMIT"},
		{"signature", ErrorTypeSignature, "SIGNATURE"},
		{"parameter", ErrorTypeParameter, "PARAMETER"},
		{"deserialize", ErrorTypeDeserialize, "DESERIALIZE"},
		{"upstream", ErrorTypeUpstream, "UPSTREAM"},
		{"out_of_range", ErrorType(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.errorType.String())
		})
	}
}

func TestExchangeError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ExchangeError
		want string
	}{
		{
			name: "without_code",
			err: &ExchangeError{
				Type:    ErrorTypeTimeout,
				Message: "deadline elapsed",
			},
			want: "[binance] TIMEOUT (0): deadline elapsed",
		},
		{
			name: "with_code",
			err: &ExchangeError{
				Type:       ErrorTypeUpstream,
				StatusCode: 400,
				Code:       "-1121",
				Message:    "Invalid symbol.",
			},
			want: "[binance] UPSTREAM (400/-1121): Invalid symbol.",
		},
		{
			name: "with_cause",
			err: &ExchangeError{
				Type:    ErrorTypeConnectivity,
				Code:    string(ErrCodeConnectivity),
				Message: "send request",
				Err:     errors.New("connection refused"),
			},
			want: "[binance] CONNECTIVITY (0/CONNECTIVITY_ERROR): send request: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestExchangeError_Unwrap(t *testing.T) {
	err := NewTimeoutError("request timed out", context.DeadlineExceeded)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, err.Timestamp.IsZero())
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"rate_limit", NewRateLimitError("denied"), IsRateLimitError},
		{"timeout", NewTimeoutError("late", nil), IsTimeoutError},
		{"signature", NewSignatureError("bad key", nil), IsSignatureError},
		{"connectivity", NewConnectivityError("dial", nil), IsConnectivityError},
		{"deserialize", NewDeserializeError("frame", nil), IsDeserializeError},
		{"parameter", NewParameterError("missing", nil), IsParameterError},
		{"upstream", NewUpstreamError(400, -1100, "illegal"), IsUpstreamError},
		{"wrapped", fmt.Errorf("call: %w", NewRateLimitError("denied")), IsRateLimitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.False(t, tt.check(errors.New("plain")))
		})
	}
}

func TestIsErrorCode(t *testing.T) {
	err := NewRateLimitError("denied")

	assert.True(t, IsErrorCode(err, ErrCodeRateLimit))
	assert.False(t, IsErrorCode(err, ErrCodeTimeout))
	assert.False(t, IsErrorCode(errors.New("plain"), ErrCodeRateLimit))
}

func TestUpstreamCode(t *testing.T) {
	code, ok := UpstreamCode(fmt.Errorf("wrapped: %w", NewUpstreamError(401, -2015, "Invalid API-key")))
	assert.True(t, ok)
	assert.Equal(t, -2015, code)

	_, ok = UpstreamCode(NewTimeoutError("late", nil))
	assert.False(t, ok)
}

func TestLookupCode(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		wantName  string
		wantClass UpstreamClass
	}{
		{"too_many_requests", -1003, "TOO_MANY_REQUESTS", ClassRateLimit},
		{"invalid_signature", -1022, "INVALID_SIGNATURE", ClassAuth},
		{"no_such_order", -2013, "NO_SUCH_ORDER", ClassOrder},
		{"bad_symbol", -1121, "BAD_SYMBOL", ClassRequest},
		{"unlisted_server", -1099, "UNLISTED", ClassServer},
		{"unlisted_request", -1199, "UNLISTED", ClassRequest},
		{"unlisted_order", -2999, "UNLISTED", ClassOrder},
		{"foreign", 7, "UNLISTED", ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := LookupCode(tt.code)
			assert.Equal(t, tt.wantName, info.Name)
			assert.Equal(t, tt.wantClass, info.Class)
		})
	}
}

func TestIsAuthRejection(t *testing.T) {
	assert.True(t, IsAuthRejection(NewUpstreamError(400, -1022, "Signature for this request is not valid.")))
	assert.True(t, IsAuthRejection(NewUpstreamError(401, -2015, "Invalid API-key, IP, or permissions for action.")))
	assert.False(t, IsAuthRejection(NewUpstreamError(400, -1121, "Invalid symbol.")))
	assert.False(t, IsAuthRejection(NewSignatureError("bad pem", nil)))
}
