// Package participant runs the per-connection loop: it admits the peer, reads its
// requests one at a time and forwards them to the game manager under the peer's role.
package participant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
	"github.com/rocketscienceinc/tictactoe-server/internal/protocol"
	"github.com/rocketscienceinc/tictactoe-server/internal/session"
)

// Conn is a framed, bidirectional peer connection.
// ReadMessage returns exactly one frame, or io.EOF once the peer is gone.
// A frame the transport had to skip comes back as apperror.ErrProtocol
// and the connection stays usable.
type Conn interface {
	session.Peer
	ReadMessage() ([]byte, error)
}

type gameManager interface {
	Join(peer session.Peer) (entity.Role, error)
	MakeMove(ctx context.Context, role entity.Role, row, col int) error
	Rematch(ctx context.Context, role entity.Role)
	Leave(role entity.Role)
	ProtocolError()
}

type Handler struct {
	logger  *slog.Logger
	manager gameManager
}

func NewHandler(logger *slog.Logger, manager gameManager) *Handler {
	return &Handler{
		logger:  logger.With("component", "participant"),
		manager: manager,
	}
}

// Admit - binds conn to a role. A refused conn is told why and closed.
func (that *Handler) Admit(conn Conn) (entity.Role, bool) {
	log := that.logger.With("method", "Admit", "conn_id", conn.ID())

	role, err := that.manager.Join(conn)
	if err == nil {
		return role, true
	}

	if errors.Is(err, apperror.ErrSessionFull) {
		log.Warn("connection refused", "error", err)
		that.reply(log, conn, err)
	} else {
		log.Error("failed to admit connection", "error", err)
	}

	if closeErr := conn.Close(); closeErr != nil {
		log.Debug("failed to close refused connection", "error", closeErr)
	}

	return role, false
}

// Serve - blocks reading requests from conn until it ends, then releases the role.
func (that *Handler) Serve(ctx context.Context, conn Conn, role entity.Role) {
	log := that.logger.With("method", "Serve", "conn_id", conn.ID(), "role", role.String())

	defer func() {
		that.manager.Leave(role)

		if err := conn.Close(); err != nil {
			log.Debug("connection already closed", "error", err)
		}
	}()

	for {
		payload, err := conn.ReadMessage()
		if errors.Is(err, apperror.ErrProtocol) {
			that.manager.ProtocolError()
			log.Warn("dropping message", "error", err)
			continue
		}

		if err != nil {
			if isClosed(err) {
				log.Info("participant left")
			} else {
				log.Warn("failed to read message", "error", err)
			}
			return
		}

		req, err := protocol.Decode(payload)
		if err != nil {
			that.manager.ProtocolError()
			log.Warn("dropping message", "error", err)
			continue
		}

		switch req := req.(type) {
		case protocol.Move:
			if err = that.manager.MakeMove(ctx, role, req.Row, req.Col); err != nil {
				log.Info("move rejected", "row", req.Row, "col", req.Col, "error", err)
				that.reply(log, conn, err)
			}
		case protocol.Rematch:
			that.manager.Rematch(ctx, role)
		}
	}
}

// reply - reports err to this peer only.
func (that *Handler) reply(log *slog.Logger, conn Conn, err error) {
	payload, encodeErr := protocol.Encode(protocol.NewError(err))
	if encodeErr != nil {
		log.Error("failed to encode error reply", "error", encodeErr)
		return
	}

	if sendErr := conn.Send(payload); sendErr != nil {
		log.Warn("failed to send error reply", "error", sendErr)
	}
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
