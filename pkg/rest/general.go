package rest

import (
	"context"
	"net/http"
	"time"

	"binancex/pkg/core"
)

var (
	endpointPing = Endpoint{Method: http.MethodGet, Path: "/api/v3/ping", Weight: 1, Auth: core.AuthNone}
	endpointTime = Endpoint{Method: http.MethodGet, Path: "/api/v3/time", Weight: 1, Auth: core.AuthNone}
)

// Ping checks connectivity to the REST API.
func (c *Client) Ping(ctx context.Context) error {
	_, err := Call[struct{}](ctx, c, endpointPing, nil)
	return err
}

type serverTime struct {
	ServerTime int64 `json:"serverTime"`
}

// ServerTime returns the exchange clock.
func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	out, err := Call[serverTime](ctx, c, endpointTime, nil)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(out.ServerTime), nil
}
