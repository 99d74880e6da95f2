package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"

	"mediaferry/internal/logging"
)

// Binary frame opcodes.
const (
	OpUpload   byte = 0x01
	OpDownload byte = 0x02
)

const sendQueueSize = 256

// ErrClosed is returned when sending on a connection that has shut down.
var ErrClosed = errors.New("connection closed")

// Envelope is the JSON shape of every text frame.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type frame struct {
	typ  websocket.MessageType
	data []byte
}

type messageHandler func(ctx context.Context, typ websocket.MessageType, data []byte)

// Connection pumps frames between one websocket and the transfer layer. It
// implements the registry's Sender and Closer.
type Connection struct {
	id     string
	ws     *websocket.Conn
	config Config
	send   chan frame

	onMessage messageHandler
	onClose   func(reason string)

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}

	logger *slog.Logger
}

func newConnection(parent context.Context, id string, ws *websocket.Conn, config Config, logger *slog.Logger) *Connection {
	ctx, cancel := context.WithCancel(parent)
	return &Connection{
		id:     id,
		ws:     ws,
		config: config,
		send:   make(chan frame, sendQueueSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: logger.With(logging.ConnectionID(id)),
	}
}

// run starts both pumps and blocks until the connection has closed.
func (c *Connection) run() {
	go c.writePump()
	c.readPump()
	<-c.done
}

func (c *Connection) readPump() {
	reason := "client disconnected"
	defer func() { c.Close(reason) }()

	for {
		readCtx, cancel := c.ctx, context.CancelFunc(func() {})
		if c.config.ReadTimeout > 0 {
			readCtx, cancel = context.WithTimeout(c.ctx, c.config.ReadTimeout)
		}
		typ, data, err := c.ws.Read(readCtx)
		cancel()
		if err != nil {
			if status := websocket.CloseStatus(err); status == -1 && c.ctx.Err() == nil {
				c.logger.Debug("socket read failed", logging.Error(err))
				reason = "read failed"
			}
			return
		}
		c.onMessage(c.ctx, typ, data)
	}
}

func (c *Connection) writePump() {
	reason := "server shutdown"
	defer func() { c.Close(reason) }()

	for {
		select {
		case f := <-c.send:
			writeCtx, cancel := c.ctx, context.CancelFunc(func() {})
			if c.config.WriteTimeout > 0 {
				writeCtx, cancel = context.WithTimeout(c.ctx, c.config.WriteTimeout)
			}
			err := c.ws.Write(writeCtx, f.typ, f.data)
			cancel()
			if err != nil {
				reason = "write failed"
				c.logger.Debug("socket write failed", logging.Error(err))
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Connection) enqueue(f frame) error {
	select {
	case <-c.ctx.Done():
		return ErrClosed
	default:
	}
	select {
	case c.send <- f:
		return nil
	case <-c.ctx.Done():
		return ErrClosed
	}
}

// SendEvent queues a JSON envelope. It blocks while the send queue is full.
func (c *Connection) SendEvent(event string, payload any) error {
	env := Envelope{Event: event}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", event, err)
		}
		env.Payload = raw
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", event, err)
	}
	return c.enqueue(frame{typ: websocket.MessageText, data: data})
}

// SendChunk queues a binary download chunk.
func (c *Connection) SendChunk(data []byte) error {
	buf := make([]byte, len(data)+1)
	buf[0] = OpDownload
	copy(buf[1:], data)
	return c.enqueue(frame{typ: websocket.MessageBinary, data: buf})
}

// Close shuts the socket down once. The close callback runs before Done is
// signalled.
func (c *Connection) Close(reason string) {
	c.closeOnce.Do(func() {
		_ = c.ws.Close(websocket.StatusNormalClosure, reason)
		c.cancel()
		c.logger.Info("socket closed", logging.String("reason", reason))
		if c.onClose != nil {
			c.onClose(reason)
		}
		close(c.done)
	})
}

// Done is closed once the connection has fully shut down.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// ID returns the connection id shared with the registry.
func (c *Connection) ID() string {
	return c.id
}
