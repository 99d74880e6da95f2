package transport

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"mediaferry/internal/config"
	"mediaferry/internal/logging"
	"mediaferry/internal/registry"
	"mediaferry/internal/services"
	"mediaferry/internal/transfer"
)

// Transfers is the transfer state machine the transport drives.
type Transfers interface {
	DownloadInit(ctx context.Context, conn *registry.Connection, req *transfer.DownloadInitRequest)
	CancelDownload(conn *registry.Connection)
	UploadInit(ctx context.Context, conn *registry.Connection, req *transfer.UploadInitRequest)
	Upload(conn *registry.Connection, chunk []byte)
	UploadEnd(ctx context.Context, conn *registry.Connection)
	Reject(conn *registry.Connection, err error)
	Disconnect(conn *registry.Connection)
}

// Config tunes socket behavior. Zero timeouts disable the deadline.
type Config struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	ReadLimit      int64
	AllowedOrigins []string
}

// ConfigFromConfig derives transport settings from the daemon configuration.
// The read limit leaves room for a base64 encoded chunk inside an envelope.
func ConfigFromConfig(cfg *config.Config) Config {
	return Config{
		WriteTimeout:   30 * time.Second,
		ReadLimit:      int64(cfg.Server.ChunkSize)*4/3 + 4096,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
}

// Server accepts websocket clients and registers them.
type Server struct {
	ctx       context.Context
	registry  *registry.Registry
	transfers Transfers
	config    Config
	logger    *slog.Logger

	mu     sync.Mutex
	conns  map[string]*Connection
	wg     sync.WaitGroup
	closed bool
}

// NewServer constructs a Server. Connections inherit ctx and are torn down
// when it is cancelled.
func NewServer(ctx context.Context, reg *registry.Registry, transfers Transfers, config Config, logger *slog.Logger) *Server {
	return &Server{
		ctx:       ctx,
		registry:  reg,
		transfers: transfers,
		config:    config,
		logger:    logging.NewComponentLogger(logger, "transport"),
		conns:     make(map[string]*Connection),
	}
}

// Handler returns the http handler serving the socket endpoint.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.accept)
}

func (s *Server) accept(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.config.AllowedOrigins,
	})
	if err != nil {
		s.logger.Warn("websocket accept failed",
			logging.String("remote_addr", r.RemoteAddr),
			logging.Error(err),
		)
		return
	}
	if s.config.ReadLimit > 0 {
		ws.SetReadLimit(s.config.ReadLimit)
	}

	id := uuid.NewString()
	conn := newConnection(services.WithConnectionID(s.ctx, id), id, ws, s.config, s.logger)
	regConn := registry.NewConnection(id, r.RemoteAddr, conn, conn)
	conn.onMessage = func(ctx context.Context, typ websocket.MessageType, data []byte) {
		s.dispatch(ctx, regConn, typ, data)
	}
	conn.onClose = func(string) {
		s.transfers.Disconnect(regConn)
		s.forget(id)
	}

	if !s.track(conn) {
		conn.Close("server shutting down")
		return
	}
	s.registry.Add(regConn)
	conn.logger.Info("socket connected", logging.String("remote_addr", r.RemoteAddr))
	conn.run()
}

func (s *Server) track(conn *Connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn.id] = conn
	s.wg.Add(1)
	return true
}

func (s *Server) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[id]; ok {
		delete(s.conns, id)
		s.wg.Done()
	}
}

// Shutdown closes every open socket and waits for their cleanup, or for ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	open := make([]*Connection, 0, len(s.conns))
	for _, conn := range s.conns {
		open = append(open, conn)
	}
	s.mu.Unlock()

	for _, conn := range open {
		go conn.Close("server shutting down")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
