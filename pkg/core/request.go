package core

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// AuthType is the authentication an endpoint requires.
type AuthType int

const (
	// AuthNone forwards the request unchanged.
	AuthNone AuthType = iota
	// AuthKeyOnly attaches the API key header.
	AuthKeyOnly
	// AuthSigned attaches the API key header and signs the parameters.
	AuthSigned
)

// Endpoint security names used in the exchange documentation.
const (
	AuthMarketData = AuthKeyOnly
	AuthUserStream = AuthKeyOnly
	AuthTrade      = AuthSigned
	AuthUserData   = AuthSigned
)

func (a AuthType) String() string {
	switch a {
	case AuthNone:
		return "none"
	case AuthKeyOnly:
		return "key_only"
	case AuthSigned:
		return "signed"
	default:
		return "unknown"
	}
}

// RateScope is the kind of budget a request consumes.
type RateScope int

const (
	ScopeIP RateScope = iota
	ScopeAccount
	ScopeOrder
)

func (s RateScope) String() string {
	switch s {
	case ScopeIP:
		return "ip"
	case ScopeAccount:
		return "account"
	case ScopeOrder:
		return "order"
	default:
		return "unknown"
	}
}

// APIGroup distinguishes /api and /sapi budgets.
type APIGroup int

const (
	GroupAPI APIGroup = iota
	GroupSAPI
)

func (g APIGroup) String() string {
	switch g {
	case GroupAPI:
		return "api"
	case GroupSAPI:
		return "sapi"
	default:
		return "unknown"
	}
}

// RateDimension names one budget a request is charged against.
// AccountID is ignored for ScopeIP.
type RateDimension struct {
	Scope     RateScope
	Group     APIGroup
	AccountID string
}

// IPWeight charges the request weight against the IP budget of group.
func IPWeight(group APIGroup) RateDimension {
	return RateDimension{Scope: ScopeIP, Group: group}
}

// AccountWeight charges the request weight against an account budget of group.
func AccountWeight(accountID string, group APIGroup) RateDimension {
	return RateDimension{Scope: ScopeAccount, Group: group, AccountID: accountID}
}

// OrderRate charges one order against the order-rate windows of an account.
func OrderRate(accountID string) RateDimension {
	return RateDimension{Scope: ScopeOrder, AccountID: accountID}
}

// Meta is the typed metadata a request carries through the pipeline.
// Stages clear the fields they consume.
type Meta struct {
	Weight     int
	Auth       AuthType
	Dimensions []RateDimension
	Credential *Credentials
	// RecvWindow is clamped by the authorizer. Zero means unset.
	RecvWindow time.Duration
	// KeyID is set by the authorizer to the ID of the credential it used.
	KeyID string
}

// Request is one outgoing REST call. It is passed by value between stages.
type Request struct {
	Method string
	Path   string
	// Query is an already encoded query string without the leading '?'.
	Query string
	// Body is an already encoded form body.
	Body   string
	Header http.Header
	Meta   Meta
}

func NewRequest(method, path string) Request {
	return Request{
		Method: method,
		Path:   path,
		Header: make(http.Header),
		Meta:   Meta{Weight: 1},
	}
}

// CarriesBody reports whether parameters travel in the body for this verb.
func (r Request) CarriesBody() bool {
	switch strings.ToUpper(r.Method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// Params returns the side that carries parameters for this verb.
func (r Request) Params() string {
	if r.CarriesBody() {
		return r.Body
	}
	return r.Query
}

// WithParams returns a copy of r with the parameter side replaced.
func (r Request) WithParams(encoded string) Request {
	if r.CarriesBody() {
		r.Body = encoded
	} else {
		r.Query = encoded
	}
	return r
}

// CloneHeader returns a copy of r whose header can be mutated safely.
func (r Request) CloneHeader() Request {
	if r.Header == nil {
		r.Header = make(http.Header)
	} else {
		r.Header = r.Header.Clone()
	}
	return r
}

// URL returns the path with the query appended.
func (r Request) URL() string {
	if r.Query == "" {
		return r.Path
	}
	return r.Path + "?" + r.Query
}

func (r Request) String() string {
	return fmt.Sprintf("%s %s", r.Method, r.Path)
}

// Credentials holds an API key pair. It is never logged.
type Credentials struct {
	// ID names the key for rotation and logging.
	ID string `json:"id" yaml:"id"`
	// APIKey is the public API key identifier.
	APIKey string `json:"api_key" yaml:"api_key" validate:"required"`
	// SecretKey is the HMAC secret or an Ed25519 PKCS#8 PEM private key.
	SecretKey string `json:"secret_key" yaml:"secret_key" validate:"required"`
}

func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{ID:%s, APIKey:%s}", c.ID, MaskKey(c.APIKey))
}

// MaskKey hides all but the edges of a key.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
