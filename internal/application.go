package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rocketscienceinc/tictactoe-server/internal/config"
	"github.com/rocketscienceinc/tictactoe-server/internal/metrics"
	"github.com/rocketscienceinc/tictactoe-server/internal/participant"
	"github.com/rocketscienceinc/tictactoe-server/internal/repository"
	"github.com/rocketscienceinc/tictactoe-server/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-server/internal/session"
	"github.com/rocketscienceinc/tictactoe-server/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-server/transport/rest"
	"github.com/rocketscienceinc/tictactoe-server/transport/tcp"
	"github.com/rocketscienceinc/tictactoe-server/transport/websocket"
)

type gameServer interface {
	Start(ctx context.Context, port string) error
}

// RunApp - runs the application until a signal arrives or a server fails.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	go func() {
		select {
		case sig := <-sigs:
			log.Info("Received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var results repository.ResultRepository

	if conf.Redis.Enabled {
		redisStorage, err := storage.NewRedisStorage(ctx, conf.Redis.GetRedisAddr())
		if err != nil {
			return fmt.Errorf("could not connect to redis storage: %w", err)
		}

		defer func() {
			if err = redisStorage.Close(); err != nil {
				log.Error("could not close redis storage", "error", err)
			}
		}()

		results = repository.NewResultRepository(redisStorage.Connection)
		log.Info("Result history enabled", "addr", conf.Redis.GetRedisAddr())
	}

	collector := metrics.New()
	gameSession := session.New(logger, session.NewBroadcaster(logger))
	defer gameSession.Shutdown()

	gameManager := usecase.NewGameManager(logger, gameSession, results, collector)
	handler := participant.NewHandler(logger, gameManager)

	gameSrv, err := newGameServer(logger, handler, conf)
	if err != nil {
		return err
	}

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		httpServer := rest.New(logger, rest.NewStatsHandler(logger, collector, results, conf.Stats.CacheTTL))
		if httpErr := httpServer.Start(ctx, conf.HTTPPort); httpErr != nil {
			httpErrCh <- httpErr
		}
	}()

	// run game server
	gameErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting game server", "transport", conf.Game.Transport, "port", conf.Game.Port)
		if gameErr := gameSrv.Start(ctx, conf.Game.Port); gameErr != nil {
			gameErrCh <- gameErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-gameErrCh:
		return fmt.Errorf("game server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

func newGameServer(logger *slog.Logger, handler *participant.Handler, conf *config.Config) (gameServer, error) {
	switch conf.Game.Transport {
	case config.TransportTCP:
		return tcp.New(logger, handler, conf.Game.WriteTimeout, conf.Game.MaxMessageSize), nil
	case config.TransportWebSocket:
		return websocket.New(logger, handler, conf.Game.WriteTimeout, conf.Game.MaxMessageSize), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownTransport, conf.Game.Transport)
	}
}
