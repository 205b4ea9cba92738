package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
	"github.com/rocketscienceinc/tictactoe-server/internal/metrics"
	"github.com/rocketscienceinc/tictactoe-server/internal/session"
)

type gameSession interface {
	Admit(peer session.Peer) (entity.Role, error)
	ApplyMove(role entity.Role, row, col int) (entity.Snapshot, error)
	RequestRematch(role entity.Role) bool
	Disconnect(role entity.Role)
}

type resultRepo interface {
	Save(ctx context.Context, result *entity.Result) error
}

// GameManager sits between the connection handlers and the session:
// it counts what happens and records finished games.
type GameManager struct {
	logger  *slog.Logger
	session gameSession
	metrics *metrics.Collector

	// resultRepo is optional, nil disables history.
	resultRepo resultRepo
}

func NewGameManager(logger *slog.Logger, session gameSession, resultRepo resultRepo, collector *metrics.Collector) *GameManager {
	return &GameManager{
		logger:     logger.With("component", "game_manager"),
		session:    session,
		metrics:    collector,
		resultRepo: resultRepo,
	}
}

// Join - admits a new participant connection.
func (that *GameManager) Join(peer session.Peer) (entity.Role, error) {
	role, err := that.session.Admit(peer)
	if errors.Is(err, apperror.ErrSessionFull) {
		that.metrics.ConnectionRefused()
		return role, fmt.Errorf("failed to join game: %w", err)
	}

	if err != nil {
		return role, fmt.Errorf("failed to join game: %w", err)
	}

	that.metrics.ConnectionAccepted()

	return role, nil
}

func (that *GameManager) MakeMove(ctx context.Context, role entity.Role, row, col int) error {
	snapshot, err := that.session.ApplyMove(role, row, col)
	if err != nil {
		that.metrics.MoveRejected()
		return fmt.Errorf("failed to make move: %w", err)
	}

	that.metrics.MoveApplied()

	if snapshot.IsFinished() {
		that.metrics.GameFinished()
		that.saveResult(ctx, snapshot)
	}

	return nil
}

func (that *GameManager) Rematch(_ context.Context, role entity.Role) {
	if that.session.RequestRematch(role) {
		that.metrics.Rematch()
	}
}

// Leave - the participant's connection is gone for good.
func (that *GameManager) Leave(role entity.Role) {
	that.session.Disconnect(role)
	that.metrics.ConnectionClosed()
}

func (that *GameManager) ProtocolError() {
	that.metrics.ProtocolError()
}

func (that *GameManager) saveResult(ctx context.Context, snapshot entity.Snapshot) {
	if that.resultRepo == nil {
		return
	}

	log := that.logger.With("method", "saveResult")

	result := &entity.Result{
		ID:         uuid.NewString(),
		Tie:        snapshot.Winner == nil,
		Board:      snapshot.Board,
		FinishedAt: time.Now().UTC(),
	}

	if snapshot.Winner != nil {
		result.Winner = snapshot.Winner.Mark()
	}

	if err := that.resultRepo.Save(ctx, result); err != nil {
		log.Error("failed to save result", "result_id", result.ID, "error", err)
		return
	}

	log.Info("game result saved", "result_id", result.ID, "winner", string(result.Winner), "tie", result.Tie)
}
