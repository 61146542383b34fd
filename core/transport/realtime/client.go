// Package realtime binds the abstract session contract to a JSON-over-
// websocket realtime voice protocol. Outbound operations serialize through a
// single writer; inbound messages are decoded into session events and handed
// to the registered handler in arrival order.
package realtime

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/bridge-core/core/agents/order"
	"github.com/koscakluka/bridge-core/core/events"
	"go.opentelemetry.io/otel/codes"
)

// Handler receives decoded session events in arrival order, on the client's
// read goroutine. Handlers must not block.
type Handler func(events.Event)

// SessionConfig is the session.update payload sent after connecting.
type SessionConfig struct {
	Instructions string               `json:"instructions,omitempty"`
	Voice        string               `json:"voice,omitempty"`
	Modalities   []string             `json:"modalities,omitempty"`
	Tools        []order.FunctionTool `json:"tools,omitempty"`
}

type Client struct {
	conn    *websocket.Conn
	handler Handler

	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}

	header http.Header
	dialer *websocket.Dialer
}

type Option func(*Client)

// WithHeader adds handshake headers, typically authorization.
func WithHeader(header http.Header) Option {
	return func(c *Client) { c.header = header }
}

func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Client) {
		if dialer != nil {
			c.dialer = dialer
		}
	}
}

// WithHandler registers the event handler. Without one, inbound events are
// dropped after decoding.
func WithHandler(handler Handler) Option {
	return func(c *Client) {
		if handler != nil {
			c.handler = handler
		}
	}
}

// Connect dials the realtime endpoint and starts the read loop.
func Connect(ctx context.Context, url string, opts ...Option) (*Client, error) {
	ctx, span := tracer.Start(ctx, "connect realtime session")
	defer span.End()

	c := &Client{
		handler: func(events.Event) {},
		done:    make(chan struct{}),
		dialer:  websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}

	conn, _, err := c.dialer.DialContext(ctx, url, c.header)
	if err != nil {
		err = fmt.Errorf("failed to dial realtime endpoint: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	c.conn = conn

	go c.readLoop()
	return c, nil
}

// Close tears the connection down. The read loop ends with a fatal protocol
// error event unless the peer closed normally first.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// Done is closed when the read loop terminates.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// UpdateSession pushes instructions, voice, and the tool surface.
func (c *Client) UpdateSession(config SessionConfig) error {
	return c.send(clientMessage{Type: "session.update", Session: &config})
}

// AppendAudioInput streams one chunk of captured audio.
func (c *Client) AppendAudioInput(audio []byte) error {
	return c.send(clientMessage{
		Type:  "input_audio_buffer.append",
		Audio: base64.StdEncoding.EncodeToString(audio),
	})
}

// CommitAudioInput marks the end of the current utterance.
func (c *Client) CommitAudioInput() error {
	return c.send(clientMessage{Type: "input_audio_buffer.commit"})
}

// CreateTextItem inserts a text message into the conversation, after anchor
// when one is given.
func (c *Client) CreateTextItem(role, text, anchor string) error {
	return c.send(clientMessage{
		Type:           "conversation.item.create",
		PreviousItemID: anchor,
		Item: &clientItem{
			Type:    "message",
			Role:    role,
			Content: []clientContent{{Type: contentType(role), Text: text}},
		},
	})
}

// RequestNextTurn asks the model to generate the next response.
func (c *Client) RequestNextTurn() error {
	return c.send(clientMessage{Type: "response.create"})
}

// CancelTurn cancels the in-flight response. Cancelling with nothing active
// is reported by the peer as a protocol error event, not a write error.
func (c *Client) CancelTurn() error {
	return c.send(clientMessage{Type: "response.cancel"})
}

// SendToolResult answers a delegated tool call.
func (c *Client) SendToolResult(callID, payload, anchor string) error {
	return c.send(clientMessage{
		Type:           "conversation.item.create",
		PreviousItemID: anchor,
		Item: &clientItem{
			Type:   "function_call_output",
			CallID: callID,
			Output: payload,
		},
	})
}

func (c *Client) send(message clientMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(message); err != nil {
		return fmt.Errorf("failed to send %s: %w", message.Type, err)
	}
	return nil
}

// readLoop decodes inbound messages until the connection ends. Connection-
// level failures are fatal to the session and surface as a final protocol
// error event.
func (c *Client) readLoop() {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				// Deliberate close, not a fault.
			default:
				logger.Error("realtime connection failed", "error", err)
				c.handler(events.NewProtocolError(err.Error(), true))
				c.closeOnce.Do(func() {
					close(c.done)
					c.conn.Close()
				})
			}
			return
		}

		event, err := decodeServerEvent(raw)
		if err != nil {
			logger.Warn("undecodable server event", "error", err)
			continue
		}
		if event != nil {
			c.handler(event)
		}
	}
}
