package signing

import (
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"binancex/pkg/core"
)

const (
	// HeaderAPIKey carries the API key on authenticated requests.
	HeaderAPIKey = "X-MBX-APIKEY"

	MinRecvWindow     = 5000
	MaxRecvWindow     = 60000
	DefaultRecvWindow = MinRecvWindow
)

// CredentialSource supplies a credential when a request does not carry its own.
type CredentialSource interface {
	Credential() (core.Credentials, bool)
}

// ClampRecvWindow converts d to milliseconds bounded to [5000, 60000].
// Zero means unset and yields the default.
func ClampRecvWindow(d time.Duration) int64 {
	ms := d.Milliseconds()
	switch {
	case ms == 0:
		return DefaultRecvWindow
	case ms < MinRecvWindow:
		return MinRecvWindow
	case ms > MaxRecvWindow:
		return MaxRecvWindow
	}
	return ms
}

// Authorizer attaches API key headers and signs requests that need it.
type Authorizer struct {
	signer     Signer
	keys       CredentialSource
	recvWindow time.Duration
	clock      func() time.Time
	logger     zerolog.Logger
}

// AuthorizerOption configures an Authorizer.
type AuthorizerOption func(*Authorizer)

// WithCredentialSource sets the fallback used when a request carries no credential.
func WithCredentialSource(keys CredentialSource) AuthorizerOption {
	return func(a *Authorizer) {
		a.keys = keys
	}
}

// WithRecvWindow sets the window used when a request does not set one.
func WithRecvWindow(d time.Duration) AuthorizerOption {
	return func(a *Authorizer) {
		a.recvWindow = d
	}
}

// WithClock sets the time source for the timestamp parameter.
func WithClock(clock func() time.Time) AuthorizerOption {
	return func(a *Authorizer) {
		a.clock = clock
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) AuthorizerOption {
	return func(a *Authorizer) {
		a.logger = logger
	}
}

// NewAuthorizer returns an Authorizer that signs with signer and reads time.Now.
func NewAuthorizer(signer Signer, opts ...AuthorizerOption) *Authorizer {
	a := &Authorizer{
		signer: signer,
		clock:  time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authorize returns a copy of req ready for the transport.
// The credential and recvWindow are consumed and cleared from the metadata.
func (a *Authorizer) Authorize(req core.Request) (core.Request, error) {
	auth := req.Meta.Auth
	cred := req.Meta.Credential
	window := req.Meta.RecvWindow
	req.Meta.Credential = nil
	req.Meta.RecvWindow = 0

	switch auth {
	case core.AuthNone:
		return req, nil
	case core.AuthKeyOnly, core.AuthSigned:
	default:
		return req, core.NewParameterError("unknown auth type "+auth.String(), nil)
	}

	resolved, err := a.credential(cred)
	if err != nil {
		return req, err
	}
	req = req.CloneHeader()
	req.Header.Set(HeaderAPIKey, resolved.APIKey)
	req.Meta.KeyID = resolved.ID
	if auth == core.AuthKeyOnly {
		return req, nil
	}

	if window == 0 {
		window = a.recvWindow
	}
	canonical := appendParam(req.Params(), "timestamp="+strconv.FormatInt(a.clock().UnixMilli(), 10)+
		"&recvWindow="+strconv.FormatInt(ClampRecvWindow(window), 10))

	signature, err := a.signer.Sign(canonical, resolved)
	if err != nil {
		a.logger.Warn().
			Str("key_id", resolved.ID).
			Str("scheme", string(a.signer.Scheme())).
			Err(err).
			Msg("sign request")
		return req, err
	}

	return req.WithParams(canonical + "&signature=" + url.QueryEscape(signature)), nil
}

func (a *Authorizer) credential(cred *core.Credentials) (core.Credentials, error) {
	if cred != nil && cred.APIKey != "" {
		return *cred, nil
	}
	if a.keys != nil {
		if c, ok := a.keys.Credential(); ok {
			return c, nil
		}
	}
	return core.Credentials{}, core.NewParameterError("authenticated request", core.ErrNoCredentials).
		WithCode(core.ErrCodeNoCredentials)
}

func appendParam(params, extra string) string {
	if params == "" {
		return extra
	}
	return params + "&" + extra
}
