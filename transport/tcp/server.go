// Package tcp serves the game over plain TCP, one JSON document per line.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
	"github.com/rocketscienceinc/tictactoe-server/internal/participant"
)

type connHandler interface {
	Admit(conn participant.Conn) (entity.Role, bool)
	Serve(ctx context.Context, conn participant.Conn, role entity.Role)
}

type Server struct {
	logger  *slog.Logger
	handler connHandler

	writeTimeout   time.Duration
	maxMessageSize int
}

func New(logger *slog.Logger, handler connHandler, writeTimeout time.Duration, maxMessageSize int) *Server {
	return &Server{
		logger:         logger.With("component", "tcp_server"),
		handler:        handler,
		writeTimeout:   writeTimeout,
		maxMessageSize: maxMessageSize,
	}
}

// Start - listens on port and serves until ctx is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", port, err)
	}

	return that.Serve(ctx, listener)
}

// Serve - accepts connections from listener one at a time. Admission happens in the
// accept loop, so roles are handed out in accept order.
func (that *Server) Serve(ctx context.Context, listener net.Listener) error {
	log := that.logger.With("method", "Serve", "addr", listener.Addr().String())

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	log.Info("accepting connections")

	for {
		netConn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				log.Info("listener closed")
				return nil
			}
			return fmt.Errorf("failed to accept connection: %w", err)
		}

		conn := newConn(netConn, that.writeTimeout, that.maxMessageSize)
		log.Debug("connection accepted", "conn_id", conn.ID(), "remote_addr", netConn.RemoteAddr().String())

		role, ok := that.handler.Admit(conn)
		if !ok {
			continue
		}

		go that.handler.Serve(ctx, conn, role)
	}
}
