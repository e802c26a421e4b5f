package ws

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"

	"binancex/pkg/core"
)

// ItemKind classifies an item delivered to the consumer.
type ItemKind int

const (
	// ItemPayload carries a typed event.
	ItemPayload ItemKind = iota
	// ItemAck carries the acknowledgement of a control frame.
	ItemAck
	// ItemError carries a recoverable frame error or the error that ended the connection.
	ItemError
	// ItemClosed is the single terminal item of a connection closed by a close frame.
	ItemClosed
)

func (k ItemKind) String() string {
	switch k {
	case ItemPayload:
		return "payload"
	case ItemAck:
		return "ack"
	case ItemError:
		return "error"
	case ItemClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Ack is the server reply to a SUBSCRIBE or UNSUBSCRIBE frame.
type Ack struct {
	// Result is nil when the server replied with null.
	Result *string `json:"result"`
	ID     uint64  `json:"id"`
}

// CloseInfo describes how a connection ended.
type CloseInfo struct {
	Code   uint16
	Reason string
	// ByServer is false when the close was requested through Close.
	ByServer bool
}

// Item is one element of the consumer channel.
type Item[O any] struct {
	Kind    ItemKind
	Payload O
	Ack     *Ack
	Err     error
	Close   *CloseInfo
}

// Validator is implemented by payload types that can reject a frame
// which decoded without error but is not of the expected shape.
type Validator interface {
	Validate() error
}

// Router classifies raw text frames. It never blocks.
type Router[O any] struct {
	decode func([]byte, any) error
}

func NewRouter[O any]() Router[O] {
	return Router[O]{decode: sonic.Unmarshal}
}

type errorFrame struct {
	Error *struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"error"`
	ID *uint64 `json:"id"`
}

var idKey = []byte(`"id"`)

// Route turns one text frame into an item.
//
// Control replies are recognised by their exact shape before the typed decode,
// since a permissive decode would otherwise accept them as an empty payload.
func (r Router[O]) Route(data []byte) Item[O] {
	if bytes.Contains(data, idKey) {
		if item, ok := r.control(data); ok {
			return item
		}
	}

	var payload O
	if err := r.decode(data, &payload); err != nil {
		return Item[O]{Kind: ItemError, Err: core.NewDeserializeError("decode stream frame", err)}
	}
	if v, ok := any(&payload).(Validator); ok {
		if err := v.Validate(); err != nil {
			return Item[O]{Kind: ItemError, Err: core.NewDeserializeError("unexpected stream frame", err)}
		}
	}
	return Item[O]{Kind: ItemPayload, Payload: payload}
}

func (r Router[O]) control(data []byte) (Item[O], bool) {
	var fields map[string]json.RawMessage
	if err := r.decode(data, &fields); err != nil || len(fields) != 2 {
		return Item[O]{}, false
	}
	if _, ok := fields["id"]; !ok {
		return Item[O]{}, false
	}

	if _, ok := fields["result"]; ok {
		var ack Ack
		if err := r.decode(data, &ack); err != nil {
			return Item[O]{}, false
		}
		return Item[O]{Kind: ItemAck, Ack: &ack}, true
	}

	if _, ok := fields["error"]; ok {
		var frame errorFrame
		if err := r.decode(data, &frame); err != nil || frame.Error == nil {
			return Item[O]{}, false
		}
		err := core.NewUpstreamError(0, frame.Error.Code, frame.Error.Msg)
		if frame.ID != nil {
			err.Message = fmt.Sprintf("%s (request %d)", frame.Error.Msg, *frame.ID)
		}
		return Item[O]{Kind: ItemError, Err: err}, true
	}
	return Item[O]{}, false
}
