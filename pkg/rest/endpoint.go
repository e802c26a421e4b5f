package rest

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"

	"binancex/pkg/core"
)

// Endpoint describes one REST operation.
type Endpoint struct {
	Method string
	Path   string
	// Weight is charged against every dimension. Zero is free; negative values count as zero.
	Weight int
	Auth   core.AuthType
	// Dimensions defaults to the IP budget of the endpoint's API group.
	Dimensions []core.RateDimension
}

// Group returns GroupSAPI for /sapi paths.
func (e Endpoint) Group() core.APIGroup {
	if strings.HasPrefix(e.Path, "/sapi/") {
		return core.GroupSAPI
	}
	return core.GroupAPI
}

// Params holds request parameters. Values may be string, bool, any integer
// or float type, apd.Decimal, *apd.Decimal, time.Time (sent as epoch
// milliseconds) or fmt.Stringer. Nil values are dropped.
type Params map[string]any

// Encode returns the parameters url-encoded in key order.
func (p Params) Encode() (string, error) {
	values := make(url.Values, len(p))
	for k, v := range p {
		s, ok, err := formatParam(v)
		if err != nil {
			return "", core.NewParameterError(fmt.Sprintf("parameter %q", k), err)
		}
		if ok {
			values.Set(k, s)
		}
	}
	return values.Encode(), nil
}

func formatParam(v any) (string, bool, error) {
	switch val := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return val, true, nil
	case bool:
		return strconv.FormatBool(val), true, nil
	case int:
		return strconv.Itoa(val), true, nil
	case int32:
		return strconv.FormatInt(int64(val), 10), true, nil
	case int64:
		return strconv.FormatInt(val, 10), true, nil
	case uint64:
		return strconv.FormatUint(val, 10), true, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true, nil
	case apd.Decimal:
		return val.Text('f'), true, nil
	case *apd.Decimal:
		if val == nil {
			return "", false, nil
		}
		return val.Text('f'), true, nil
	case time.Time:
		return strconv.FormatInt(val.UnixMilli(), 10), true, nil
	case fmt.Stringer:
		return val.String(), true, nil
	default:
		return "", false, fmt.Errorf("unsupported type %T", v)
	}
}

// RequestOption adjusts the metadata of a single call.
type RequestOption func(*core.Meta)

// WithCredential signs the call with cred instead of the key ring.
func WithCredential(cred core.Credentials) RequestOption {
	return func(m *core.Meta) {
		m.Credential = &cred
	}
}

// WithRecvWindow overrides the configured recvWindow for a signed call.
func WithRecvWindow(d time.Duration) RequestOption {
	return func(m *core.Meta) {
		m.RecvWindow = d
	}
}

// WithAccount charges the call against the account budget of accountID in
// addition to the endpoint's dimensions.
func WithAccount(accountID string) RequestOption {
	return func(m *core.Meta) {
		group := core.GroupAPI
		for _, d := range m.Dimensions {
			if d.Scope == core.ScopeIP {
				group = d.Group
			}
		}
		m.Dimensions = append(m.Dimensions, core.AccountWeight(accountID, group))
	}
}

// WithOrderRate charges one order against the order windows of accountID.
func WithOrderRate(accountID string) RequestOption {
	return func(m *core.Meta) {
		m.Dimensions = append(m.Dimensions, core.OrderRate(accountID))
	}
}

// NewRequest builds the pipeline request for ep with params on the side the
// method carries them.
func NewRequest(ep Endpoint, params Params, opts ...RequestOption) (core.Request, error) {
	req := core.NewRequest(ep.Method, ep.Path)
	req.Meta.Weight = max(ep.Weight, 0)
	req.Meta.Auth = ep.Auth
	if len(ep.Dimensions) > 0 {
		req.Meta.Dimensions = append([]core.RateDimension(nil), ep.Dimensions...)
	} else {
		req.Meta.Dimensions = []core.RateDimension{core.IPWeight(ep.Group())}
	}
	for _, opt := range opts {
		opt(&req.Meta)
	}

	encoded, err := params.Encode()
	if err != nil {
		return core.Request{}, err
	}
	return req.WithParams(encoded), nil
}

// Call sends ep and decodes a successful body into O.
func Call[O any](ctx context.Context, c *Client, ep Endpoint, params Params, opts ...RequestOption) (*O, error) {
	req, err := NewRequest(ep, params, opts...)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	out := new(O)
	if err := resp.Decode(out); err != nil {
		return nil, err
	}
	return out, nil
}
