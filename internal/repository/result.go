package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

const (
	resultsKey    = "results"
	scoreboardKey = "scoreboard"

	scoreTie = "tie"

	// MaxResults is how many finished games are kept in the history list.
	MaxResults = 100
)

type ResultRepository interface {
	Save(ctx context.Context, result *entity.Result) error
	GetRecent(ctx context.Context, limit int64) ([]*entity.Result, error)
	GetScoreboard(ctx context.Context) (*entity.Scoreboard, error)
}

type dbResult struct {
	client *redis.Client
}

func NewResultRepository(client *redis.Client) ResultRepository {
	return &dbResult{
		client: client,
	}
}

// Save - pushes the result to the history list and bumps the scoreboard in one transaction.
func (that *dbResult) Save(ctx context.Context, result *entity.Result) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("could not marshal result: %w", err)
	}

	field := scoreTie
	if !result.Tie {
		field = string(result.Winner)
	}

	_, err = that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, resultsKey, resultJSON)
		pipe.LTrim(ctx, resultsKey, 0, MaxResults-1)
		pipe.HIncrBy(ctx, scoreboardKey, field, 1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}

	return nil
}

// GetRecent - newest first.
func (that *dbResult) GetRecent(ctx context.Context, limit int64) ([]*entity.Result, error) {
	if limit <= 0 {
		return []*entity.Result{}, nil
	}

	response, err := that.client.LRange(ctx, resultsKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}

	results := make([]*entity.Result, 0, len(response))
	for _, item := range response {
		var result entity.Result
		if err = json.Unmarshal([]byte(item), &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
		results = append(results, &result)
	}

	return results, nil
}

func (that *dbResult) GetScoreboard(ctx context.Context) (*entity.Scoreboard, error) {
	var scoreboard entity.Scoreboard

	if err := that.client.HGetAll(ctx, scoreboardKey).Scan(&scoreboard); err != nil {
		return nil, fmt.Errorf("failed to get scoreboard: %w", err)
	}

	return &scoreboard, nil
}
