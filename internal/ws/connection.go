package ws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lxzan/gws"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"binancex/pkg/core"
)

const (
	methodSubscribe   = "SUBSCRIBE"
	methodUnsubscribe = "UNSUBSCRIBE"

	closeNormal = 1000
	closeGrace  = 2 * time.Second
)

// Config holds settings for one stream connection.
type Config struct {
	// URL is the websocket endpoint to connect to.
	URL string `validate:"required"`
	// ControlFramesPerSecond paces SUBSCRIBE/UNSUBSCRIBE frames.
	ControlFramesPerSecond float64 `validate:"gt=0"`
	// CommandBuffer is the capacity of the command channel.
	CommandBuffer int `validate:"min=1"`
	// HandshakeTimeout bounds the dial. Zero uses the gws default.
	HandshakeTimeout time.Duration `validate:"min=0"`
}

// ConfigFrom extracts stream settings from a client config.
func ConfigFrom(cfg core.StreamConfig) Config {
	return Config{
		URL:                    cfg.URL,
		ControlFramesPerSecond: cfg.ControlFramesPerSecond,
		CommandBuffer:          cfg.CommandBuffer,
		HandshakeTimeout:       cfg.HandshakeTimeout,
	}
}

type commandKind int

const (
	cmdAdd commandKind = iota
	cmdRemove
	cmdSnapshot
	cmdClose
)

type command struct {
	kind  commandKind
	items []string
	reply chan []string
}

type controlFrame struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     uint64   `json:"id"`
}

type options struct {
	logger        zerolog.Logger
	meterProvider metric.MeterProvider
}

// Option configures a connection.
type Option func(*options)

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// Connection owns one websocket. A writer goroutine owns the subscription set and
// turns commands into control frames; a reader goroutine routes inbound frames to Items.
// When either goroutine ends the other is stopped.
type Connection[O any] struct {
	id     string
	config Config
	state  *State
	socket *gws.Conn
	router Router[O]
	logger zerolog.Logger

	commands chan command
	pongs    chan []byte
	items    *Queue[Item[O]]
	pacer    *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     conc.WaitGroup

	terminated chan struct{}
	termOnce   sync.Once
	writerDone chan struct{}

	framesIn   metric.Int64Counter
	framesSent metric.Int64Counter
}

type eventHandler[O any] struct {
	conn *Connection[O]
}

// Dial connects to config.URL and starts the reader and writer loops.
func Dial[O any](ctx context.Context, config Config, opts ...Option) (*Connection[O], error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, core.NewParameterError("invalid stream config", err).WithCode(core.ErrCodeInvalidConfig)
	}

	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.meterProvider == nil {
		o.meterProvider = otel.GetMeterProvider()
	}

	id := uuid.NewString()
	c := &Connection[O]{
		id:         id,
		config:     config,
		state:      &State{},
		router:     NewRouter[O](),
		logger:     o.logger.With().Str("conn_id", id).Logger(),
		commands:   make(chan command, config.CommandBuffer),
		pongs:      make(chan []byte, 1),
		items:      NewQueue[Item[O]](),
		pacer:      rate.NewLimiter(rate.Limit(config.ControlFramesPerSecond), 1),
		done:       make(chan struct{}),
		terminated: make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	c.initMetrics(o.meterProvider)

	handshake := config.HandshakeTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); handshake == 0 || remaining < handshake {
			handshake = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		c.items.Close()
		return nil, core.NewTimeoutError("dial "+config.URL, err)
	}

	socket, _, err := gws.NewClient(&eventHandler[O]{conn: c}, &gws.ClientOption{
		Addr:             config.URL,
		HandshakeTimeout: handshake,
	})
	if err != nil {
		c.items.Close()
		return nil, core.NewConnectivityError("dial "+config.URL, err)
	}
	c.socket = socket
	c.state.Store(StateConnected)
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.wg.Go(func() {
		socket.ReadLoop()
	})
	c.wg.Go(c.writeLoop)
	go func() {
		if recovered := c.wg.WaitAndRecover(); recovered != nil {
			c.logger.Error().Str("panic", recovered.String()).Msg("stream loop panicked")
			c.terminate(core.NewConnectivityError("stream loop panicked", recovered.AsError()))
		}
		close(c.done)
	}()

	c.logger.Info().Str("url", config.URL).Msg("websocket connected")
	return c, nil
}

func (c *Connection[O]) initMetrics(mp metric.MeterProvider) {
	meter := mp.Meter("binancex/ws")
	if counter, err := meter.Int64Counter("binancex.ws.frames.received",
		metric.WithDescription("Inbound frames by item kind"),
		metric.WithUnit("{frame}")); err == nil {
		c.framesIn = counter
	}
	if counter, err := meter.Int64Counter("binancex.ws.control_frames.sent",
		metric.WithDescription("Control frames written by method"),
		metric.WithUnit("{frame}")); err == nil {
		c.framesSent = counter
	}
}

// ID returns the connection id used in logs.
func (c *Connection[O]) ID() string {
	return c.id
}

func (c *Connection[O]) State() ConnState {
	return c.state.Load()
}

// Items returns the consumer channel. It is closed after the terminal item.
func (c *Connection[O]) Items() <-chan Item[O] {
	return c.items.Out()
}

// Done is closed once both loops have exited.
func (c *Connection[O]) Done() <-chan struct{} {
	return c.done
}

// Subscribe queues an Add command. Only names not yet subscribed are sent.
func (c *Connection[O]) Subscribe(ctx context.Context, names ...string) error {
	return c.send(ctx, command{kind: cmdAdd, items: names})
}

// Unsubscribe queues a Remove command. Only names currently subscribed are sent.
func (c *Connection[O]) Unsubscribe(ctx context.Context, names ...string) error {
	return c.send(ctx, command{kind: cmdRemove, items: names})
}

// Subscriptions returns the current set as seen by the writer, after all
// previously queued commands were applied.
func (c *Connection[O]) Subscriptions(ctx context.Context) ([]string, error) {
	reply := make(chan []string, 1)
	if err := c.send(ctx, command{kind: cmdSnapshot, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case items := <-reply:
		return items, nil
	case <-c.terminated:
		return nil, core.ErrStreamClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close queues a close command behind any pending commands and waits for both loops to stop.
func (c *Connection[O]) Close() error {
	if err := c.send(context.Background(), command{kind: cmdClose}); err != nil && !errors.Is(err, core.ErrStreamClosed) {
		return err
	}
	<-c.done
	return nil
}

func (c *Connection[O]) send(ctx context.Context, cmd command) error {
	if c.state.Load() != StateConnected {
		return core.ErrStreamClosed
	}
	select {
	case c.commands <- cmd:
		return nil
	case <-c.terminated:
		return core.ErrStreamClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Connection[O]) writeLoop() {
	defer close(c.writerDone)

	set := NewSubscriptionSet()
	var nextID uint64 = 1

	for {
		// A pending pong goes out before the next command.
		select {
		case payload := <-c.pongs:
			if !c.writePong(payload) {
				return
			}
			continue
		default:
		}

		select {
		case <-c.terminated:
			return
		case payload := <-c.pongs:
			if !c.writePong(payload) {
				return
			}
		case cmd := <-c.commands:
			switch cmd.kind {
			case cmdAdd:
				delta := set.Missing(cmd.items)
				if len(delta) == 0 {
					continue
				}
				if !c.writeControl(methodSubscribe, delta, nextID) {
					return
				}
				nextID++
				set.Add(delta)
			case cmdRemove:
				delta := set.Present(cmd.items)
				if len(delta) == 0 {
					continue
				}
				if !c.writeControl(methodUnsubscribe, delta, nextID) {
					return
				}
				nextID++
				set.Remove(delta)
			case cmdSnapshot:
				cmd.reply <- set.Items()
			case cmdClose:
				if !c.state.CompareAndSwap(StateConnected, StateClosing) {
					return
				}
				c.logger.Debug().Int("subscriptions", set.Len()).Msg("closing websocket")
				c.socket.WriteClose(closeNormal, nil)
				_ = c.socket.SetDeadline(time.Now().Add(closeGrace))
				return
			}
		}
	}
}

func (c *Connection[O]) writePong(payload []byte) bool {
	if err := c.socket.WritePong(payload); err != nil {
		c.fail(fmt.Errorf("write pong: %w", err))
		return false
	}
	return true
}

func (c *Connection[O]) writeControl(method string, params []string, id uint64) bool {
	if !c.pace() {
		return false
	}
	data, err := sonic.Marshal(controlFrame{Method: method, Params: params, ID: id})
	if err != nil {
		c.fail(fmt.Errorf("encode control frame: %w", err))
		return false
	}
	if err := c.socket.WriteMessage(gws.OpcodeText, data); err != nil {
		c.fail(fmt.Errorf("write control frame: %w", err))
		return false
	}

	if c.framesSent != nil {
		c.framesSent.Add(c.ctx, 1, metric.WithAttributes(attribute.String("method", method)))
	}
	c.logger.Debug().
		Str("method", method).
		Strs("params", params).
		Uint64("id", id).
		Msg("control frame sent")
	return true
}

// pace waits for the control frame limiter. Pongs are still written while waiting.
func (c *Connection[O]) pace() bool {
	reservation := c.pacer.Reserve()
	delay := reservation.Delay()
	if delay == 0 {
		return true
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			return true
		case payload := <-c.pongs:
			if !c.writePong(payload) {
				reservation.Cancel()
				return false
			}
		case <-c.terminated:
			reservation.Cancel()
			return false
		}
	}
}

// fail ends the connection after a write error.
func (c *Connection[O]) fail(err error) {
	c.terminate(core.NewConnectivityError("websocket write", err))
	_ = c.socket.NetConn().Close()
}

// terminate delivers the single terminal item, closes the consumer queue and stops the writer.
// Later calls are no-ops.
func (c *Connection[O]) terminate(cause error) {
	c.termOnce.Do(func() {
		c.finish(cause)
	})
}

func (c *Connection[O]) finish(cause error) {
	prev := c.state.Load()
	c.state.Store(StateClosed)
	close(c.terminated)
	if c.cancel != nil {
		c.cancel()
	}

	var item Item[O]
	var closeErr *gws.CloseError
	var exErr *core.ExchangeError
	switch {
	case errors.As(cause, &exErr):
		item = Item[O]{Kind: ItemError, Err: cause}
	case prev == StateClosing:
		item = Item[O]{Kind: ItemClosed, Close: &CloseInfo{Code: closeNormal}}
	case errors.As(cause, &closeErr):
		item = Item[O]{Kind: ItemClosed, Close: &CloseInfo{
			Code:     closeErr.Code,
			Reason:   string(closeErr.Reason),
			ByServer: true,
		}}
	default:
		item = Item[O]{Kind: ItemError, Err: core.NewConnectivityError("websocket read", cause)}
	}

	if item.Kind == ItemError {
		c.logger.Error().Err(item.Err).Msg("websocket connection lost")
	} else {
		c.logger.Info().
			Uint16("code", item.Close.Code).
			Bool("by_server", item.Close.ByServer).
			Msg("websocket closed")
	}
	c.record(item.Kind)
	c.items.CloseWith(item)
}

func (c *Connection[O]) record(kind ItemKind) {
	if c.framesIn == nil {
		return
	}
	c.framesIn.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind.String())))
}

func (h *eventHandler[O]) OnOpen(socket *gws.Conn) {}

func (h *eventHandler[O]) OnClose(socket *gws.Conn, err error) {
	h.conn.terminate(err)
}

// OnPing hands the payload to the writer and waits until it is taken,
// so every ping gets its own pong.
func (h *eventHandler[O]) OnPing(socket *gws.Conn, payload []byte) {
	select {
	case h.conn.pongs <- bytes.Clone(payload):
	case <-h.conn.writerDone:
	case <-h.conn.terminated:
	}
}

func (h *eventHandler[O]) OnPong(socket *gws.Conn, payload []byte) {}

func (h *eventHandler[O]) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()

	select {
	case <-h.conn.terminated:
		return
	default:
	}

	if message.Opcode != gws.OpcodeText {
		h.conn.logger.Debug().Int("opcode", int(message.Opcode)).Msg("ignoring non-text frame")
		return
	}

	item := h.conn.router.Route(bytes.Clone(message.Bytes()))
	if item.Kind == ItemError {
		h.conn.logger.Warn().Err(item.Err).Msg("stream frame rejected")
	}
	h.conn.record(item.Kind)
	h.conn.items.Push(item)
}
