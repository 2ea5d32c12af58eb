package network

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZentaChain/zerocom/pkg/protocol"
)

// ServerOption configures a Server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	logger         zerolog.Logger
	timeout        time.Duration
	handler        Handler
	registry       *protocol.Registry
	maxConnections int
	metrics        *Metrics
}

// WithServerLogger sets the logger. The default logger discards everything.
func WithServerLogger(logger zerolog.Logger) ServerOption {
	return func(o *serverOptions) { o.logger = logger }
}

// WithServerTimeout bounds every read and write on accepted connections. Zero means no timeout.
func WithServerTimeout(timeout time.Duration) ServerOption {
	return func(o *serverOptions) { o.timeout = timeout }
}

// WithHandler sets the lifecycle handler. The default is NewDefaultHandler().
func WithHandler(h Handler) ServerOption {
	return func(o *serverOptions) { o.handler = h }
}

// WithRegistry sets the registry inbound packets are decoded with.
func WithRegistry(reg *protocol.Registry) ServerOption {
	return func(o *serverOptions) { o.registry = reg }
}

// WithMaxConnections caps the number of concurrently served connections.
// Connections beyond the cap are closed right after accept. Zero means unlimited.
func WithMaxConnections(n int) ServerOption {
	return func(o *serverOptions) { o.maxConnections = n }
}

// WithServerMetrics records server activity on m.
func WithServerMetrics(m *Metrics) ServerOption {
	return func(o *serverOptions) { o.metrics = m }
}

// Stats is a snapshot of server activity.
type Stats struct {
	Address             string     `json:"address"`
	StartedAt           time.Time  `json:"started_at"`
	UptimeSeconds       float64    `json:"uptime_seconds"`
	ActiveConnections   int        `json:"active_connections"`
	MaxConnections      int        `json:"max_connections"`
	AcceptedConnections uint64     `json:"accepted_connections"`
	RejectedConnections uint64     `json:"rejected_connections"`
	PacketsReceived     uint64     `json:"packets_received"`
	PacketsSent         uint64     `json:"packets_sent"`
	Peers               []PeerInfo `json:"peers"`
}

// Server accepts TCP connections and serves each one on its own goroutine.
type Server struct {
	addr string
	opts serverOptions

	listener  net.Listener
	startTime time.Time
	done      chan struct{}
	started   atomic.Bool
	stopping  atomic.Bool
	wg        sync.WaitGroup

	peers map[string]*Peer
	mu    sync.RWMutex

	accepted atomic.Uint64
	rejected atomic.Uint64
	// Packet totals of sessions that already ended.
	closedReceived atomic.Uint64
	closedSent     atomic.Uint64
}

// NewServer creates a server that will listen on addr (host:port).
func NewServer(addr string, opts ...ServerOption) *Server {
	o := serverOptions{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.handler == nil {
		o.handler = NewDefaultHandler()
	}
	if o.registry == nil {
		o.registry = protocol.DefaultRegistry()
	}
	return &Server{
		addr:  addr,
		opts:  o,
		done:  make(chan struct{}),
		peers: make(map[string]*Peer),
	}
}

// Start binds the listener and starts accepting connections in the background.
func (s *Server) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrServerStarted
	}
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		s.started.Store(false)
		return err
	}
	s.mu.Lock()
	s.listener = listener
	s.startTime = time.Now()
	s.mu.Unlock()

	s.opts.logger.Info().
		Str("address", listener.Addr().String()).
		Dur("timeout", s.opts.timeout).
		Int("max connections", s.opts.maxConnections).
		Msg("Server listening")

	go s.acceptLoop()
	return nil
}

// Listen starts the server and blocks until ctx is done or the listener fails, then stops it.
func (s *Server) Listen(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-s.done:
	}
	return s.Stop()
}

// Stop closes the listener and every active connection, then waits for their sessions to end.
func (s *Server) Stop() error {
	if !s.started.Load() || !s.stopping.CompareAndSwap(false, true) {
		return nil
	}
	s.opts.logger.Info().Msg("Server shutting down")

	s.mu.RLock()
	listener := s.listener
	s.mu.RUnlock()
	if listener == nil {
		return nil
	}
	err := listener.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}

	s.mu.RLock()
	for _, p := range s.peers {
		_ = p.Close()
	}
	s.mu.RUnlock()

	<-s.done
	s.wg.Wait()
	return err
}

// Addr returns the bound address once started, and the configured one before.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addrLocked()
}

func (s *Server) addrLocked() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stats returns a snapshot of server activity.
func (s *Server) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Address:             s.addrLocked(),
		StartedAt:           s.startTime,
		ActiveConnections:   len(s.peers),
		MaxConnections:      s.opts.maxConnections,
		AcceptedConnections: s.accepted.Load(),
		RejectedConnections: s.rejected.Load(),
		PacketsReceived:     s.closedReceived.Load(),
		PacketsSent:         s.closedSent.Load(),
		Peers:               make([]PeerInfo, 0, len(s.peers)),
	}
	if !s.startTime.IsZero() {
		stats.UptimeSeconds = time.Since(s.startTime).Seconds()
	}
	for _, p := range s.peers {
		info := p.Info()
		stats.PacketsReceived += info.PacketsReceived
		stats.PacketsSent += info.PacketsSent
		stats.Peers = append(stats.Peers, info)
	}
	return stats
}

// acceptLoop accepts incoming connections until the listener is closed.
func (s *Server) acceptLoop() {
	defer close(s.done)
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			if !s.stopping.Load() {
				s.opts.logger.Error().Err(err).Msg("Accept failed")
			}
			return
		}

		if peer, ok := s.register(nc); ok {
			go s.serve(peer)
		}
	}
}

// register admits nc as a new peer unless the server is stopping or full.
func (s *Server) register(nc net.Conn) (*Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopping.Load() {
		_ = nc.Close()
		return nil, false
	}
	if s.opts.maxConnections > 0 && len(s.peers) >= s.opts.maxConnections {
		s.rejected.Add(1)
		s.opts.metrics.connectionRejected()
		s.opts.logger.Warn().
			Str("remote", nc.RemoteAddr().String()).
			Int("max connections", s.opts.maxConnections).
			Msg("Connection limit reached, closing connection")
		_ = nc.Close()
		return nil, false
	}

	conn := NewConnection(nc, s.opts.timeout)
	peer := newPeer(conn, protocol.ClientBound, s.opts.registry, s.opts.logger, s.opts.metrics)
	s.peers[peer.ID] = peer
	s.wg.Add(1)
	s.accepted.Add(1)
	s.opts.metrics.connectionAccepted()
	peer.Logger().Info().Msg("New connection")
	return peer, true
}

// serve runs the lifecycle of one connection and always closes it.
func (s *Server) serve(peer *Peer) {
	defer s.wg.Done()
	defer func() {
		_ = peer.Close()

		s.mu.Lock()
		delete(s.peers, peer.ID)
		info := peer.Info()
		s.closedReceived.Add(info.PacketsReceived)
		s.closedSent.Add(info.PacketsSent)
		s.mu.Unlock()
	}()

	reason := s.runSession(peer)
	if s.stopping.Load() && !errors.Is(reason, ErrServerClosed) {
		reason = &DisconnectError{Reason: "server shutting down", Err: errors.Join(ErrServerClosed, reason)}
	}
	s.opts.metrics.connectionClosed(reason)
	s.opts.handler.OnClose(peer, reason)
}

// runSession drives OnConnect and the serve loop until the session ends.
//
// A closure between two packets ends the session directly. Every other failure, timeouts and
// packets travelling the wrong way included, goes through OnError, and whatever OnError returns
// is turned into a disconnect.
func (s *Server) runSession(peer *Peer) *DisconnectError {
	if err := s.opts.handler.OnConnect(peer); err != nil {
		return AsDisconnect(err)
	}

	for {
		pkt, err := peer.ReadPacket()
		if err != nil {
			if protocol.IsMalformed(err, protocol.StateNoData) {
				return AsDisconnect(err)
			}
			return s.fail(peer, &ReadError{Err: err})
		}

		if err := s.opts.handler.OnPacket(peer, pkt); err != nil {
			var de *DisconnectError
			if errors.As(err, &de) {
				return de
			}
			return s.fail(peer, &ProcessingError{Err: err})
		}
	}
}

func (s *Server) fail(peer *Peer, err error) *DisconnectError {
	if herr := s.opts.handler.OnError(peer, err); herr != nil {
		return AsDisconnect(herr)
	}
	peer.Logger().Warn().Err(err).Msg("Error handler did not disconnect, disconnecting anyway")
	return AsDisconnect(err)
}
