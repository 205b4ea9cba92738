// Package session holds the single authoritative game state shared by both participants.
//
// Every exported operation takes the same mutex, so Admit, ApplyMove, RequestRematch and
// Disconnect never interleave. Broadcasts happen while the mutex is held, which keeps the
// order of snapshots observed by peers identical to the order of mutations.
package session

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
	"github.com/rocketscienceinc/tictactoe-server/internal/protocol"
)

type Session struct {
	logger      *slog.Logger
	broadcaster *Broadcaster

	mu           sync.Mutex
	board        entity.Board
	turn         entity.Role
	status       string
	winner       *entity.Role
	participants [2]Peer
	admitted     int
	rematchVotes [2]bool
}

func New(logger *slog.Logger, broadcaster *Broadcaster) *Session {
	return &Session{
		logger:      logger.With("component", "session"),
		broadcaster: broadcaster,
		turn:        entity.First,
		status:      entity.StatusWaiting,
	}
}

// Admit - binds the next free role to peer and greets it with an init message.
// Roles are handed out once: every admission after the second fails with ErrSessionFull.
func (that *Session) Admit(peer Peer) (entity.Role, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.admitted >= len(entity.Roles) {
		return 0, apperror.ErrSessionFull
	}

	role := entity.Roles[that.admitted]
	that.admitted++
	that.participants[role] = peer

	log := that.logger.With("role", role.String(), "conn_id", peer.ID())

	err := that.send(role, protocol.NewInit(role))
	if err != nil {
		that.participants[role] = nil
		log.Warn("failed to greet participant", "error", err)
	} else {
		log.Info("participant admitted")
	}

	if that.admitted == len(entity.Roles) {
		that.status = entity.StatusOngoing
		that.broadcastState()
		that.logger.Info("game started")
	}

	if err != nil {
		return role, fmt.Errorf("%w: %w", apperror.ErrPeerDisconnected, err)
	}

	return role, nil
}

// ApplyMove - places the role's mark and broadcasts exactly once on success.
// On failure nothing changes and nothing is broadcast.
func (that *Session) ApplyMove(role entity.Role, row, col int) (entity.Snapshot, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	switch {
	case that.status == entity.StatusWaiting:
		return that.snapshot(), apperror.ErrGameIsNotStarted
	case that.status == entity.StatusFinished:
		return that.snapshot(), apperror.ErrGameFinished
	case role != that.turn:
		return that.snapshot(), apperror.ErrNotYourTurn
	}

	if err := that.board.Place(row, col, role.Mark()); err != nil {
		return that.snapshot(), err
	}

	switch outcome := that.board.Evaluate(); outcome.Verdict {
	case entity.Win:
		winner, _ := entity.RoleOf(outcome.Winner)
		that.winner = &winner
		that.status = entity.StatusFinished
	case entity.Tie:
		that.winner = nil
		that.status = entity.StatusFinished
	default:
		that.turn = role.Opponent()
	}

	that.broadcastState()

	return that.snapshot(), nil
}

// RequestRematch - records the role's vote and reports whether the board was reset.
// It is a no-op while the game is not over.
func (that *Session) RequestRematch(role entity.Role) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.status != entity.StatusFinished {
		return false
	}

	that.rematchVotes[role] = true

	if that.rematchVotes[entity.First] && that.rematchVotes[entity.Second] && that.allPresent() {
		that.reset()
		that.broadcastState()
		that.logger.Info("rematch started")
		return true
	}

	that.broadcast(protocol.NewRematchRequest(role), &role)

	return false
}

// Disconnect - marks the role absent. The game itself is left as is.
func (that *Session) Disconnect(role entity.Role) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.dropParticipant(role)
}

// Snapshot - a consistent copy of the current state.
func (that *Session) Snapshot() entity.Snapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.snapshot()
}

// Connected - the number of live participants.
func (that *Session) Connected() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	connected := 0
	for _, peer := range that.participants {
		if peer != nil {
			connected++
		}
	}

	return connected
}

// Shutdown - closes every live participant connection.
func (that *Session) Shutdown() {
	that.mu.Lock()
	defer that.mu.Unlock()

	for _, role := range entity.Roles {
		if peer := that.participants[role]; peer != nil {
			if err := peer.Close(); err != nil {
				that.logger.Warn("failed to close participant", "role", role.String(), "error", err)
			}
			that.participants[role] = nil
		}
	}
}

func (that *Session) reset() {
	that.board = entity.Board{}
	that.turn = entity.First
	that.status = entity.StatusOngoing
	that.winner = nil
	that.rematchVotes = [2]bool{}
}

func (that *Session) allPresent() bool {
	return that.participants[entity.First] != nil && that.participants[entity.Second] != nil
}

func (that *Session) snapshot() entity.Snapshot {
	snapshot := entity.Snapshot{
		Board:    that.board,
		Turn:     that.turn,
		Status:   that.status,
		GameOver: that.status == entity.StatusFinished,
	}

	if that.winner != nil {
		winner := *that.winner
		snapshot.Winner = &winner
	}

	return snapshot
}

func (that *Session) broadcastState() {
	that.broadcast(protocol.NewGameState(that.snapshot()), nil)
}

// broadcast must be called with mu held.
func (that *Session) broadcast(msg interface{}, skip *entity.Role) {
	payload, err := protocol.Encode(msg)
	if err != nil {
		that.logger.Error("failed to encode broadcast", "error", err)
		return
	}

	for _, role := range that.broadcaster.Broadcast(&that.participants, payload, skip) {
		that.dropParticipant(role)
	}
}

// send delivers msg to a single role, must be called with mu held.
func (that *Session) send(role entity.Role, msg interface{}) error {
	payload, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	return that.participants[role].Send(payload)
}

func (that *Session) dropParticipant(role entity.Role) {
	peer := that.participants[role]
	if peer == nil {
		return
	}

	that.participants[role] = nil

	if err := peer.Close(); err != nil {
		that.logger.Debug("participant already closed", "role", role.String(), "error", err)
	}

	that.logger.Info("participant disconnected", "role", role.String(), "conn_id", peer.ID())
}
