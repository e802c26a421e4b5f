package rest

import (
	"context"
	"net/http"

	"binancex/pkg/core"
)

const userDataStreamPath = "/api/v3/userDataStream"

var (
	endpointCreateListenKey = Endpoint{Method: http.MethodPost, Path: userDataStreamPath, Weight: 2, Auth: core.AuthUserStream}
	endpointKeepAlive       = Endpoint{Method: http.MethodPut, Path: userDataStreamPath, Weight: 2, Auth: core.AuthUserStream}
	endpointCloseListenKey  = Endpoint{Method: http.MethodDelete, Path: userDataStreamPath, Weight: 2, Auth: core.AuthUserStream}
)

type listenKeyResponse struct {
	ListenKey string `json:"listenKey"`
}

// CreateListenKey starts a user data stream. The key expires after 60 minutes
// unless kept alive.
func (c *Client) CreateListenKey(ctx context.Context, opts ...RequestOption) (string, error) {
	out, err := Call[listenKeyResponse](ctx, c, endpointCreateListenKey, nil, opts...)
	if err != nil {
		return "", err
	}
	if out.ListenKey == "" {
		return "", core.NewDeserializeError("empty listenKey", nil)
	}
	return out.ListenKey, nil
}

// KeepAliveListenKey extends the validity of listenKey by 60 minutes.
func (c *Client) KeepAliveListenKey(ctx context.Context, listenKey string, opts ...RequestOption) error {
	_, err := Call[struct{}](ctx, c, endpointKeepAlive, Params{"listenKey": listenKey}, opts...)
	return err
}

// CloseListenKey ends the user data stream of listenKey.
func (c *Client) CloseListenKey(ctx context.Context, listenKey string, opts ...RequestOption) error {
	_, err := Call[struct{}](ctx, c, endpointCloseListenKey, Params{"listenKey": listenKey}, opts...)
	return err
}
