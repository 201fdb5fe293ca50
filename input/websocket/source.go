// Package websocket serves the chat-gateway socket endpoint. Gateways
// connect, stream inbound chat messages, and receive command responses
// over the same connection.
package websocket

import (
	"context"
	"crypto/subtle"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/cmdtree/config"
	"github.com/c360/cmdtree/errors"
	"github.com/c360/cmdtree/input"
	"github.com/c360/cmdtree/metric"
	"github.com/c360/cmdtree/pkg/security"
	"github.com/c360/cmdtree/pkg/tlsutil"
	"github.com/c360/cmdtree/service"
)

// Source accepts gateway connections and submits decoded invocations to
// the dispatcher. Each connection gets a read pump enforcing the read
// limit and pong deadline, and a ping loop keeping half-dead gateways
// from lingering.
type Source struct {
	*service.BaseService

	cfg      config.WebSocketSourceConfig
	security security.Config
	sink     input.Submitter
	logger   *slog.Logger
	metrics  *sourceMetrics

	upgrader websocket.Upgrader

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	shutdown chan struct{}
	conns    map[*wsConn]struct{}

	connSeq atomic.Int64
	wg      sync.WaitGroup
}

// Deps holds runtime dependencies for the WebSocket source.
type Deps struct {
	Config          config.WebSocketSourceConfig
	Security        security.Config
	Submitter       input.Submitter
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// New creates a WebSocket source. Zero config values fall back to the
// defaults from the config package so callers can pass the section as-is.
func New(deps Deps) (*Source, error) {
	if deps.Submitter == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("submitter is required"),
			"websocket_source", "New", "validate dependencies")
	}

	cfg := deps.Config
	if cfg.Address == "" {
		cfg.Address = ":8081"
	}
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 64 << 10
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "websocket_source")
	}

	metrics, err := newSourceMetrics(deps.MetricsRegistry)
	if err != nil {
		logger.Error("Failed to initialize WebSocket source metrics", "error", err)
		metrics = nil // Continue without metrics
	}

	s := &Source{
		BaseService: service.NewBaseServiceWithOptions("websocket-source", nil,
			service.WithMetrics(deps.MetricsRegistry),
			service.WithLogger(logger)),
		cfg:      cfg,
		security: deps.Security,
		sink:     deps.Submitter,
		logger:   logger,
		metrics:  metrics,
		conns:    make(map[*wsConn]struct{}),
		upgrader: websocket.Upgrader{
			// Gateways are services, not browsers; the upgrade is gated
			// by authenticate, not by Origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.SetHealthCheck(s.healthCheck)

	return s, nil
}

// Start binds the listener and begins serving upgrades.
func (s *Source) Start(ctx context.Context) error {
	if err := s.BaseService.Start(ctx); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleUpgrade)

	server := &http.Server{
		Addr:    s.cfg.Address,
		Handler: mux,
	}

	if s.security.TLS.Server.Enabled {
		tlsConfig, err := tlsutil.LoadServerTLSConfigWithMTLS(
			s.security.TLS.Server,
			s.security.TLS.Server.MTLS,
		)
		if err != nil {
			return errors.WrapFatal(err, "websocket_source", "Start", "load TLS config")
		}
		server.TLSConfig = tlsConfig
	}

	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return errors.WrapFatal(err, "websocket_source", "Start", "bind listen address")
	}

	s.mu.Lock()
	s.server = server
	s.listener = ln
	s.shutdown = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		var err error
		if server.TLSConfig != nil {
			err = server.ServeTLS(ln, "", "")
		} else {
			err = server.Serve(ln)
		}
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("WebSocket server terminated", "error", err)
		}
	}()

	s.logger.Info("WebSocket source started",
		"address", ln.Addr().String(),
		"path", s.cfg.Path,
		"tls", server.TLSConfig != nil,
		"auth", authLabel(s.cfg.Auth.Type))
	return nil
}

// Stop shuts the server down, closes every gateway connection, and waits
// for the read pumps to drain.
func (s *Source) Stop(timeout time.Duration) error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	if s.shutdown != nil {
		close(s.shutdown)
		s.shutdown = nil
	}
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			s.logger.Warn("WebSocket server shutdown timeout", "error", err)
		}
	}

	// Shutdown does not touch hijacked connections; closing them unblocks
	// the read pumps.
	for _, c := range conns {
		c.close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		s.logger.Warn("Connection handlers did not drain", "timeout", timeout)
	}

	if err := s.BaseService.Stop(timeout); err != nil {
		return err
	}

	s.logger.Info("WebSocket source stopped")
	return nil
}

// Addr returns the bound listen address, or nil when the source is not
// running. Useful with a ":0" address in tests.
func (s *Source) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// handleUpgrade authenticates the request and promotes it to a gateway
// connection.
func (s *Source) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.Status() != service.StatusRunning {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	if !s.authenticate(r) {
		s.metrics.recordAuthFailure()
		s.logger.Debug("Upgrade rejected", "remote", r.RemoteAddr)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Debug("Upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &wsConn{
		id:        fmt.Sprintf("conn-%d", s.connSeq.Add(1)),
		ws:        ws,
		writeWait: s.cfg.WriteWait,
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	if s.server == nil {
		s.mu.Unlock()
		_ = ws.Close()
		return
	}
	shutdown := s.shutdown
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	s.metrics.recordConnected()
	s.logger.Debug("Gateway connected", "conn", c.id, "remote", r.RemoteAddr)

	s.wg.Add(2)
	go s.readPump(c)
	go s.pingLoop(c, shutdown)
}

// authenticate validates the credentials on an upgrade request. Expected
// values come from the environment variables named in the config, so an
// unset variable fails closed.
func (s *Source) authenticate(r *http.Request) bool {
	switch s.cfg.Auth.Type {
	case "", "none":
		return true

	case "bearer":
		expected := os.Getenv(s.cfg.Auth.BearerTokenEnv)
		if expected == "" {
			return false
		}
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return false
		}
		token := strings.TrimPrefix(header, "Bearer ")
		return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1

	case "basic":
		username := os.Getenv(s.cfg.Auth.BasicUsernameEnv)
		password := os.Getenv(s.cfg.Auth.BasicPasswordEnv)
		if username == "" || password == "" {
			return false
		}
		reqUser, reqPass, ok := r.BasicAuth()
		if !ok {
			return false
		}
		userMatch := subtle.ConstantTimeCompare([]byte(reqUser), []byte(username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(reqPass), []byte(password)) == 1
		return userMatch && passMatch

	default:
		return false
	}
}

// readPump processes inbound frames until the connection dies. The pong
// handler extends the read deadline; a gateway that stops answering
// pings times out within PongWait.
func (s *Source) readPump(c *wsConn) {
	defer s.wg.Done()
	defer s.dropConn(c)

	c.ws.SetReadLimit(s.cfg.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("Gateway connection lost", "conn", c.id, "error", err)
			}
			return
		}
		s.handleData(c, data)
	}
}

// pingLoop keeps the connection alive until it or the source dies.
func (s *Source) pingLoop(c *wsConn, shutdown <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-shutdown:
			return
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleData decodes one frame and submits it, mirroring the NATS
// source's drop semantics: bad frames and refused submissions never
// tear the connection down.
func (s *Source) handleData(c *wsConn, data []byte) {
	msg, err := input.ParseMessage(data)
	if err != nil {
		s.metrics.recordRejected(reasonParse)
		s.logger.Debug("Discarding malformed frame", "conn", c.id, "error", err)
		return
	}

	inv := msg.Invocation(nil)
	// The replier reads the invocation ID at reply time, after the
	// dispatcher has assigned it.
	inv.Replier = &wsReplier{conn: c, inv: inv, metrics: s.metrics}

	if err := s.sink.Submit(inv); err != nil {
		switch {
		case errors.IsState(err):
			s.metrics.recordRejected(reasonRefused)
			s.logger.Debug("Invocation refused",
				"invocation", inv.ID, "client", inv.Client, "error", err)
		case errors.IsTransient(err):
			s.metrics.recordRejected(reasonDropped)
			s.logger.Warn("Invocation dropped, dispatcher queue full",
				"invocation", inv.ID, "client", inv.Client)
		default:
			s.metrics.recordRejected(reasonError)
			s.logger.Error("Invocation submit failed",
				"invocation", inv.ID, "client", inv.Client, "error", err)
		}
		return
	}

	s.metrics.recordAccepted()
	s.RecordProcessed()
}

// dropConn unregisters and closes one connection. Safe to race with
// Stop; only the call that finds the connection registered records the
// disconnect.
func (s *Source) dropConn(c *wsConn) {
	s.mu.Lock()
	_, registered := s.conns[c]
	delete(s.conns, c)
	s.mu.Unlock()

	c.close()

	if registered {
		s.metrics.recordDisconnected()
		s.logger.Debug("Gateway disconnected", "conn", c.id)
	}
}

// healthCheck reports unhealthy while the server is down.
func (s *Source) healthCheck() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return errors.ErrNotStarted
	}
	return nil
}

func authLabel(authType string) string {
	if authType == "" {
		return "none"
	}
	return authType
}
