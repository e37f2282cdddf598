package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/noteduco342/om-relay/internal/logging"
	"github.com/noteduco342/om-relay/internal/metrics"
	"github.com/noteduco342/om-relay/internal/realtime"
)

const defaultWriteTimeout = 10 * time.Second

var (
	ErrJoinRejected  = errors.New("join rejected")
	ErrAlreadyJoined = errors.New("connection already joined as another user")
)

// Conn is the subset of *websocket.Conn a Client drives.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// TokenVerifier returns the subject of a valid token.
type TokenVerifier func(token string) (string, error)

type ClientConfig struct {
	SendBuffer      int
	WriteTimeout    time.Duration
	PingInterval    time.Duration
	PongTimeout     time.Duration
	JoinWaitTimeout time.Duration
}

// Client is one websocket connection. It starts unidentified; a successful
// join registers a queue channel and starts the write pump, which becomes the
// only writer on the socket.
type Client struct {
	conn     Conn
	codec    Codec
	registry *realtime.Registry
	verify   TokenVerifier
	cfg      ClientConfig

	mu       sync.Mutex
	channel  *realtime.QueueChannel
	pumpDone chan struct{}
}

// NewClient wraps conn. verify may be nil, in which case the join claim is
// trusted.
func NewClient(conn Conn, codec Codec, registry *realtime.Registry, verify TokenVerifier, cfg ClientConfig) *Client {
	c := &Client{
		conn:     conn,
		codec:    codec,
		registry: registry,
		verify:   verify,
		cfg:      cfg,
	}
	conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})
	return c
}

func (c *Client) current() *realtime.QueueChannel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

// UserID is empty until the connection has joined.
func (c *Client) UserID() string {
	if ch := c.current(); ch != nil {
		return ch.UserID()
	}
	return ""
}

func (c *Client) Join(userID, token string) error {
	if userID == "" {
		return ErrJoinRejected
	}
	if c.verify != nil {
		subject, err := c.verify(token)
		if err != nil || subject != userID {
			return ErrJoinRejected
		}
	}

	c.mu.Lock()
	if c.channel != nil {
		joinedAs := c.channel.UserID()
		c.mu.Unlock()
		if joinedAs == userID {
			return nil
		}
		return ErrAlreadyJoined
	}
	ch := realtime.NewQueueChannel(userID, c.cfg.SendBuffer, c.cfg.PongTimeout)
	c.channel = ch
	c.pumpDone = make(chan struct{})
	done := c.pumpDone
	c.mu.Unlock()

	if c.cfg.PongTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	}
	c.registry.Register(userID, ch)
	go c.writePump(ch, done)

	logging.Debug().Str("user_id", userID).Str("channel_id", ch.ID()).Str("codec", c.codec.Name()).Msg("websocket joined")
	return ch.Send(realtime.Connected{UserID: userID, ChannelID: ch.ID()})
}

// Write queues e once joined. Before that it writes directly; only the read
// loop calls it in that state, so writes never overlap.
func (c *Client) Write(e realtime.Event) error {
	if ch := c.current(); ch != nil {
		return ch.Send(e)
	}
	return c.writeFrame(e)
}

func (c *Client) writeFrame(e realtime.Event) error {
	frameType, data, err := c.codec.Encode(e)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout()))
	return c.conn.WriteMessage(frameType, data)
}

func (c *Client) writeTimeout() time.Duration {
	if c.cfg.WriteTimeout > 0 {
		return c.cfg.WriteTimeout
	}
	return defaultWriteTimeout
}

func (c *Client) touch() {
	ch := c.current()
	if ch == nil {
		return
	}
	ch.Touch()
	if c.cfg.PongTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	}
}

func (c *Client) writePump(ch *realtime.QueueChannel, done chan struct{}) {
	defer close(done)

	var tick <-chan time.Time
	if c.cfg.PingInterval > 0 {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ch.Done():
			return
		case e := <-ch.Events():
			if err := c.writeFrame(e); err != nil {
				metrics.ChannelWriteFailures.WithLabelValues(string(e.EventName())).Inc()
				logging.Debug().Err(err).Str("user_id", ch.UserID()).Msg("websocket write failed")
				c.shutdown(ch)
				return
			}
		case <-tick:
			deadline := time.Now().Add(c.writeTimeout())
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logging.Debug().Err(err).Str("user_id", ch.UserID()).Msg("websocket ping failed")
				c.shutdown(ch)
				return
			}
		}
	}
}

// shutdown closes the channel and the socket so the read loop unblocks.
func (c *Client) shutdown(ch *realtime.QueueChannel) {
	c.registry.Unregister(ch.UserID(), ch)
	ch.Close()
	c.conn.Close()
}

// Run reads frames until the peer goes away, then unregisters before
// returning.
func (c *Client) Run() {
	defer c.Close()

	if c.cfg.JoinWaitTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.JoinWaitTimeout))
	}
	for {
		frameType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.touch()
		c.handleFrame(frameType, data)
	}
}

func (c *Client) handleFrame(frameType int, data []byte) {
	if frameType == websocket.BinaryMessage {
		decompressed, err := DecompressMessage(data)
		if err != nil {
			c.reject("decompression_failed", "Failed to decompress message", err.Error())
			return
		}
		data = decompressed
	}

	msg, err := Deserialize(data)
	if err != nil {
		c.reject("invalid_message", "Invalid message format", err.Error())
		return
	}

	if !allowedBeforeJoin(msg.GetType()) && c.current() == nil {
		c.reject("not_joined", "Join first", msg.GetType())
		return
	}

	if err := msg.Process(&MessageContext{Client: c}); err != nil {
		code := "processing_failed"
		if errors.Is(err, ErrJoinRejected) || errors.Is(err, ErrAlreadyJoined) {
			code = "join_rejected"
		}
		c.reject(code, "Failed to process message", err.Error())
	}
}

func (c *Client) reject(code, message, details string) {
	metrics.InboundRejected.WithLabelValues(code).Inc()
	if err := c.Write(realtime.ErrorEvent{Error: message, Code: code, Details: details}); err != nil {
		logging.Debug().Err(err).Str("code", code).Msg("failed to send websocket error")
	}
}

// Close unregisters the channel and waits for the write pump. Safe to call
// more than once.
func (c *Client) Close() {
	c.mu.Lock()
	ch, done := c.channel, c.pumpDone
	c.mu.Unlock()
	if ch == nil {
		return
	}
	c.registry.Unregister(ch.UserID(), ch)
	ch.Close()
	<-done
}
