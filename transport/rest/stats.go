package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
	"github.com/rocketscienceinc/tictactoe-server/internal/metrics"
)

const (
	cacheKeyScoreboard = "scoreboard"
	storeTimeout       = 2 * time.Second

	recentResults = 20
)

type StatsHandler interface {
	StatsHandler(w http.ResponseWriter, r *http.Request)
	ResultsHandler(w http.ResponseWriter, r *http.Request)
}

type statsSource interface {
	Snapshot() metrics.Stats
}

type resultSource interface {
	GetRecent(ctx context.Context, limit int64) ([]*entity.Result, error)
	GetScoreboard(ctx context.Context) (*entity.Scoreboard, error)
}

// statsResponse - body of GET /stats.
type statsResponse struct {
	metrics.Stats
	Scoreboard *entity.Scoreboard `json:"scoreboard,omitempty"`
}

type statsHandler struct {
	logger *slog.Logger

	metrics statsSource
	results resultSource
	cache   *gocache.Cache
}

// NewStatsHandler - results may be nil, then the scoreboard is left out.
// The scoreboard is cached for cacheTTL between reads of the store.
func NewStatsHandler(logger *slog.Logger, metrics statsSource, results resultSource, cacheTTL time.Duration) StatsHandler {
	return &statsHandler{
		logger:  logger.With("component", "stats_handler"),
		metrics: metrics,
		results: results,
		cache:   gocache.New(cacheTTL, 2*cacheTTL),
	}
}

func (that *statsHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{
		Stats:      that.metrics.Snapshot(),
		Scoreboard: that.scoreboard(r.Context()),
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		that.logger.Error("failed to write stats", "error", err)
	}
}

// ResultsHandler - the most recent finished games, newest first.
func (that *statsHandler) ResultsHandler(w http.ResponseWriter, r *http.Request) {
	if that.results == nil {
		http.Error(w, "result history is disabled", http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	results, err := that.results.GetRecent(ctx, recentResults)
	if err != nil {
		that.logger.Error("failed to load results", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if results == nil {
		results = []*entity.Result{}
	}

	w.Header().Set("Content-Type", "application/json")

	if err = json.NewEncoder(w).Encode(results); err != nil {
		that.logger.Error("failed to write results", "error", err)
	}
}

func (that *statsHandler) scoreboard(ctx context.Context) *entity.Scoreboard {
	if that.results == nil {
		return nil
	}

	if cached, ok := that.cache.Get(cacheKeyScoreboard); ok {
		return cached.(*entity.Scoreboard)
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	scoreboard, err := that.results.GetScoreboard(ctx)
	if err != nil {
		that.logger.Warn("failed to load scoreboard", "error", err)
		return nil
	}

	that.cache.SetDefault(cacheKeyScoreboard, scoreboard)

	return scoreboard
}
