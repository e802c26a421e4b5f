package core

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

const usedWeightPrefix = "X-Mbx-Used-Weight-"

// Response is the raw result of a REST call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// UsedWeight maps interval (e.g. "1m") to the weight the exchange has counted.
	UsedWeight map[string]int
}

// NewResponse builds a Response and reads the used-weight headers.
func NewResponse(statusCode int, header http.Header, body []byte) *Response {
	return &Response{
		StatusCode: statusCode,
		Header:     header,
		Body:       body,
		UsedWeight: parseUsedWeight(header),
	}
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) IsError() bool {
	return r.StatusCode >= 400
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if err := sonic.Unmarshal(r.Body, v); err != nil {
		return NewDeserializeError("decode response body", err)
	}
	return nil
}

func parseUsedWeight(header http.Header) map[string]int {
	var used map[string]int
	for key, values := range header {
		canonical := http.CanonicalHeaderKey(key)
		if !strings.HasPrefix(canonical, usedWeightPrefix) || len(values) == 0 {
			continue
		}
		n, err := strconv.Atoi(values[0])
		if err != nil {
			continue
		}
		if used == nil {
			used = make(map[string]int)
		}
		used[strings.ToLower(strings.TrimPrefix(canonical, usedWeightPrefix))] = n
	}
	return used
}
