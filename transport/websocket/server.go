// Package websocket serves the game over WebSocket, one JSON document per text frame.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
	"github.com/rocketscienceinc/tictactoe-server/internal/participant"
)

const pathGame = "/ws"

type connHandler interface {
	Admit(conn participant.Conn) (entity.Role, bool)
	Serve(ctx context.Context, conn participant.Conn, role entity.Role)
}

type Server struct {
	logger   *slog.Logger
	handler  connHandler
	upgrader websocket.Upgrader

	writeTimeout   time.Duration
	maxMessageSize int

	// admitMu keeps admission serial across concurrent upgrades.
	admitMu sync.Mutex
}

func New(logger *slog.Logger, handler connHandler, writeTimeout time.Duration, maxMessageSize int) *Server {
	return &Server{
		logger:  logger.With("component", "websocket_server"),
		handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		writeTimeout:   writeTimeout,
		maxMessageSize: maxMessageSize,
	}
}

// Start - starts WebSocket server and blocks until ctx is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shutdown websocket server", "error", err)
		}
	}()

	that.logger.Info("accepting connections", "port", port, "path", pathGame)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Handler - routes upgrade requests on /ws. Peer loops run under ctx.
func (that *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(pathGame, func(w http.ResponseWriter, r *http.Request) {
		that.upgradeToWebSocket(ctx, w, r)
	})

	return mux
}

// upgradeToWebSocket - upgrades the request and runs the participant loop on it.
func (that *Server) upgradeToWebSocket(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeToWebSocket")

	wsConn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		log.Warn("failed to upgrade connection", "error", err)
		return
	}

	conn := newConn(wsConn, that.writeTimeout, that.maxMessageSize)
	log.Debug("connection accepted", "conn_id", conn.ID(), "remote_addr", req.RemoteAddr)

	that.admitMu.Lock()
	role, ok := that.handler.Admit(conn)
	that.admitMu.Unlock()

	if !ok {
		return
	}

	that.handler.Serve(ctx, conn, role)
}
