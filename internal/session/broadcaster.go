package session

import (
	"log/slog"

	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

// Peer is the outbound side of one participant connection.
// Send must give up after a bounded time.
type Peer interface {
	ID() string
	Send(payload []byte) error
	Close() error
}

type Broadcaster struct {
	logger *slog.Logger
}

func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{logger: logger.With("component", "broadcaster")}
}

// Broadcast - sends the same payload to every live peer except the skipped role
// and returns the roles whose send failed. A failure never stops delivery to the rest.
func (that *Broadcaster) Broadcast(peers *[2]Peer, payload []byte, skip *entity.Role) []entity.Role {
	var failed []entity.Role

	for _, role := range entity.Roles {
		peer := peers[role]
		if peer == nil || (skip != nil && *skip == role) {
			continue
		}

		if err := peer.Send(payload); err != nil {
			that.logger.Warn("failed to deliver message", "role", role.String(), "conn_id", peer.ID(), "error", err)
			failed = append(failed, role)
		}
	}

	return failed
}
