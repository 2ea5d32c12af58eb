package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ZentaChain/zerocom/pkg/protocol"
)

// DefaultClientTimeout bounds every client read and write unless overridden.
const DefaultClientTimeout = 3 * time.Second

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	logger   zerolog.Logger
	timeout  time.Duration
	version  uint32
	registry *protocol.Registry
	metrics  *Metrics
}

// WithClientLogger sets the logger. The default logger discards everything.
func WithClientLogger(logger zerolog.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = logger }
}

// WithClientTimeout bounds dialing and every read and write. Zero means no timeout.
func WithClientTimeout(timeout time.Duration) ClientOption {
	return func(o *clientOptions) { o.timeout = timeout }
}

// WithProtocolVersion sets the version announced in the handshake.
func WithProtocolVersion(v uint32) ClientOption {
	return func(o *clientOptions) { o.version = v }
}

// WithClientRegistry sets the registry inbound packets are decoded with.
func WithClientRegistry(reg *protocol.Registry) ClientOption {
	return func(o *clientOptions) { o.registry = reg }
}

// WithClientMetrics records client activity on m.
func WithClientMetrics(m *Metrics) ClientOption {
	return func(o *clientOptions) { o.metrics = m }
}

func newClientOptions(opts []ClientOption) clientOptions {
	o := clientOptions{
		logger:  zerolog.Nop(),
		timeout: DefaultClientTimeout,
		version: protocol.ProtocolVersion,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = protocol.DefaultRegistry()
	}
	return o
}

// Client is the connecting side of a session.
// Its methods are safe for concurrent use; round trips are serialized.
type Client struct {
	peer      *Peer
	opts      clientOptions
	connected bool
	mu        sync.Mutex
}

// Dial opens a TCP connection to addr and wraps it in a Client. No packet is sent yet.
func Dial(ctx context.Context, addr string, opts ...ClientOption) (*Client, error) {
	o := newClientOptions(opts)
	d := net.Dialer{Timeout: o.timeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	o.logger.Debug().Str("address", addr).Msg("Connected")
	return newClient(nc, o), nil
}

// NewClient wraps an already open stream.
func NewClient(rw io.ReadWriteCloser, opts ...ClientOption) *Client {
	return newClient(rw, newClientOptions(opts))
}

func newClient(rw io.ReadWriteCloser, o clientOptions) *Client {
	conn := NewConnection(rw, o.timeout)
	return &Client{
		peer: newPeer(conn, protocol.ServerBound, o.registry, o.logger, o.metrics),
		opts: o,
	}
}

// Peer returns the client's handle on the connection.
func (c *Client) Peer() *Peer { return c.peer }

// RemoteAddr returns the server address.
func (c *Client) RemoteAddr() string { return c.peer.RemoteAddr }

// Connect performs a handshake followed by a ping round trip with token
// (a random token if empty). Any failure is a *DisconnectError and the session must not be
// used for application traffic afterwards.
//
// Connect may be called again on the same transport; each call is a fresh handshake.
func (c *Client) Connect(token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = false
	if c.peer.Conn().Closed() {
		return &DisconnectError{Reason: "connection is closed", Err: ErrNotConnected}
	}
	if err := c.peer.Send(&protocol.Handshake{ProtocolVersion: c.opts.version}); err != nil {
		return &DisconnectError{Reason: "failed to send handshake", Err: err}
	}
	if _, err := c.roundTrip(token); err != nil {
		return err
	}
	c.connected = true
	c.peer.SetProtocolVersion(c.opts.version)
	c.peer.Logger().Info().Uint32("version", c.opts.version).Msg("Handshake completed")
	return nil
}

// Ping sends a Ping with token (a random token if empty) and waits for the matching Pong.
// It returns the round trip time.
func (c *Client) Ping(token string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.peer.Conn().Closed() {
		return 0, ErrNotConnected
	}
	rtt, err := c.roundTrip(token)
	if err != nil {
		c.connected = false
	}
	return rtt, err
}

func (c *Client) roundTrip(token string) (time.Duration, error) {
	if token == "" {
		token = uuid.NewString()
	}
	start := time.Now()
	if err := c.peer.Send(&protocol.Ping{Token: token}); err != nil {
		return 0, &DisconnectError{Reason: "failed to send ping", Err: err}
	}

	pkt, err := c.peer.ReadPacket()
	if err != nil {
		var mpe *protocol.MalformedPacketError
		if errors.As(err, &mpe) && mpe.State == protocol.StateUnexpectedPacket {
			return 0, &DisconnectError{Reason: "expected pong, got " + c.peer.Registry().Name(mpe.PacketID), Err: err}
		}
		return 0, &DisconnectError{Reason: "no pong received", Err: err}
	}
	pong, ok := pkt.(*protocol.Pong)
	if !ok {
		return 0, &DisconnectError{
			Reason: "expected pong, got " + c.peer.Registry().Name(pkt.ID()),
			Err:    protocol.NewUnexpectedPacketError(pkt),
		}
	}
	if pong.Token != token {
		return 0, &DisconnectError{
			Reason: fmt.Sprintf("sent ping token %q, received pong token %q", token, pong.Token),
			Err:    ErrTokenMismatch,
		}
	}

	rtt := time.Since(start)
	c.opts.metrics.pingObserved(rtt)
	c.peer.Logger().Debug().Dur("rtt", rtt).Msg("Pong received")
	return rtt, nil
}

// KeepAlive pings the server every interval until ctx is done or a ping fails.
// It returns nil when ctx is done.
func (c *Client) KeepAlive(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := c.Ping(""); err != nil {
				c.peer.Logger().Warn().Err(err).Msg("Keepalive ping failed")
				return err
			}
		}
	}
}

// Close closes the connection. Closing twice is a no-op.
func (c *Client) Close() error {
	return c.peer.Close()
}
