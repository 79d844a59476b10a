// Package daemon serves the command interface and the push channel over a
// local HTTP listener.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/runnerr0/worktimer/internal/broadcast"
	"github.com/runnerr0/worktimer/internal/dispatch"
)

const (
	defaultMaxRequestBytes = 1 << 20 // 1MB
	defaultEventBuffer     = 32
	pingInterval           = 30 * time.Second
	pongWait               = 90 * time.Second
	writeWait              = 10 * time.Second
	shutdownTimeout        = 5 * time.Second
)

// Handler executes dispatched commands.
type Handler interface {
	Handle(ctx context.Context, msg dispatch.Message) (any, error)
}

// Events is the push source streamed to websocket clients.
type Events interface {
	Subscribe(buffer int) (<-chan broadcast.Event, func())
	// Subscribers counts open subscriptions, reported by /status.
	Subscribers() int
}

// Options configures a Server.
type Options struct {
	Version string
	// AuthToken, when set, must be presented as "Authorization: Bearer <token>"
	// or a token query parameter on /api routes.
	AuthToken       string
	MaxRequestBytes int64
	EventBuffer     int
	Logger          *slog.Logger
}

// Server is the daemon's HTTP front end.
type Server struct {
	handler  Handler
	events   Events
	opts     Options
	log      *slog.Logger
	router   *gin.Engine
	upgrader websocket.Upgrader

	closing   chan struct{}
	closeOnce sync.Once
}

// NewServer wires the routes.
func NewServer(h Handler, events Events, opts Options) *Server {
	if opts.MaxRequestBytes <= 0 {
		opts.MaxRequestBytes = defaultMaxRequestBytes
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = defaultEventBuffer
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		handler: h,
		events:  events,
		opts:    opts,
		log:     opts.Logger.With("component", "daemon"),
		closing: make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return r.Header.Get("Origin") == "" },
		},
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/status", s.handleStatus)

	api := router.Group("/api")
	api.Use(rejectBrowserOrigin(), s.requireToken())
	{
		api.POST("/message", s.handleMessage)
		api.GET("/events", s.handleEvents)
	}

	s.router = router
	return s
}

// Handler returns the HTTP handler, for tests and custom listeners.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("daemon listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close ends every open event stream.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.closing) })
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// rejectBrowserOrigin refuses requests made from web pages. The CLI surfaces
// never send an Origin header.
func rejectBrowserOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Origin") != "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "cross-origin requests are not allowed"})
			return
		}
		c.Next()
	}
}

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.opts.AuthToken == "" {
			c.Next()
			return
		}
		token := c.Query("token")
		if h := c.GetHeader("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
			token = h[7:]
		}
		if token != s.opts.AuthToken {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.opts.Version, "observers": s.events.Subscribers()})
}

func (s *Server) handleMessage(c *gin.Context) {
	if c.ContentType() != "application/json" {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "content type must be application/json"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxRequestBytes)

	var msg dispatch.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message: " + err.Error()})
		return
	}
	if msg.Action == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action is required"})
		return
	}

	reply, err := s.handler.Handle(c.Request.Context(), msg)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, reply)
}

func statusFor(err error) int {
	var summaryErr *dispatch.SummaryError
	switch {
	case errors.Is(err, dispatch.ErrUnknownAction), errors.Is(err, dispatch.ErrInvalidMessage):
		return http.StatusBadRequest
	case errors.As(err, &summaryErr):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// handleEvents upgrades to a websocket and streams pushed events until the
// client goes away or the server closes.
func (s *Server) handleEvents(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := s.events.Subscribe(s.opts.EventBuffer)
	defer unsubscribe()

	// the read side only exists to notice the client leaving and to see pongs
	gone := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	s.log.Debug("event stream opened", "remote", c.Request.RemoteAddr)
	for {
		select {
		case <-gone:
			return
		case <-s.closing:
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "daemon shutting down")
			conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)) //nolint:errcheck
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case e, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := conn.WriteJSON(e); err != nil {
				s.log.Debug("event stream write failed", "error", err)
				return
			}
		}
	}
}
