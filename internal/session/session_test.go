package session

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

var errBrokenPipe = errors.New("broken pipe")

// fakePeer records everything sent to it.
type fakePeer struct {
	id string

	mu      sync.Mutex
	sent    []map[string]interface{}
	sendErr error
	closed  bool
}

func newFakePeer(id string) *fakePeer {
	return &fakePeer{id: id}
}

func (that *fakePeer) ID() string { return that.id }

func (that *fakePeer) Send(payload []byte) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.sendErr != nil {
		return that.sendErr
	}

	var msg map[string]interface{}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	that.sent = append(that.sent, msg)

	return nil
}

func (that *fakePeer) Close() error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.closed = true
	return nil
}

func (that *fakePeer) fail(err error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.sendErr = err
}

func (that *fakePeer) messages() []map[string]interface{} {
	that.mu.Lock()
	defer that.mu.Unlock()

	return append([]map[string]interface{}(nil), that.sent...)
}

func (that *fakePeer) types() []string {
	var types []string
	for _, msg := range that.messages() {
		types = append(types, msg["type"].(string))
	}
	return types
}

func (that *fakePeer) last() map[string]interface{} {
	msgs := that.messages()
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

func (that *fakePeer) isClosed() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.closed
}

func newSession() *Session {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(logger, NewBroadcaster(logger))
}

// startedSession returns a session with both roles admitted.
func startedSession(t *testing.T) (*Session, *fakePeer, *fakePeer) {
	t.Helper()

	s := newSession()
	first, second := newFakePeer("first"), newFakePeer("second")

	role, err := s.Admit(first)
	require.NoError(t, err)
	require.Equal(t, entity.First, role)

	role, err = s.Admit(second)
	require.NoError(t, err)
	require.Equal(t, entity.Second, role)

	return s, first, second
}

func play(t *testing.T, s *Session, moves ...[3]int) {
	t.Helper()

	for _, move := range moves {
		_, err := s.ApplyMove(entity.Role(move[0]), move[1], move[2])
		require.NoError(t, err, "move %v", move)
	}
}

func TestSession_Admit(t *testing.T) {
	t.Run("Assigns roles in admission order and starts the game", func(t *testing.T) {
		// Given: two peers admitted one after another
		s, first, second := startedSession(t)

		// Then: each got its own init, then the initial game state
		assert.Equal(t, []string{"init", "game_state"}, first.types())
		assert.Equal(t, []string{"init", "game_state"}, second.types())
		assert.Equal(t, "X", first.messages()[0]["symbol"])
		assert.Equal(t, "O", second.messages()[0]["symbol"])

		// Then: the game is in progress with First to move
		snapshot := s.Snapshot()
		assert.Equal(t, entity.StatusOngoing, snapshot.Status)
		assert.Equal(t, entity.First, snapshot.Turn)
		assert.True(t, snapshot.Board.IsEmpty())
	})

	t.Run("Waits for the second participant", func(t *testing.T) {
		// Given: only one peer admitted
		s := newSession()
		first := newFakePeer("first")
		_, err := s.Admit(first)
		require.NoError(t, err)

		// Then: no game state yet and moves are refused
		assert.Equal(t, []string{"init"}, first.types())
		_, err = s.ApplyMove(entity.First, 0, 0)
		require.ErrorIs(t, err, apperror.ErrGameIsNotStarted)
		assert.True(t, s.Snapshot().Board.IsEmpty())
	})

	t.Run("Third admission fails with ErrSessionFull", func(t *testing.T) {
		// Given: a full session
		s, _, _ := startedSession(t)
		third := newFakePeer("third")

		// When: a third peer is admitted
		_, err := s.Admit(third)

		// Then: it is refused and never contacted
		require.ErrorIs(t, err, apperror.ErrSessionFull)
		assert.Empty(t, third.messages())
	})

	t.Run("Vacated role is not handed out again", func(t *testing.T) {
		// Given: a full session where First left
		s, _, _ := startedSession(t)
		s.Disconnect(entity.First)

		// When: a new peer arrives
		_, err := s.Admit(newFakePeer("late"))

		// Then: it is refused
		require.ErrorIs(t, err, apperror.ErrSessionFull)
	})

	t.Run("Failed greeting marks the role absent", func(t *testing.T) {
		// Given: a peer whose connection is already broken
		s := newSession()
		broken := newFakePeer("broken")
		broken.fail(errBrokenPipe)

		// When: it is admitted
		role, err := s.Admit(broken)

		// Then: the role is consumed but nobody is connected
		require.ErrorIs(t, err, apperror.ErrPeerDisconnected)
		assert.Equal(t, entity.First, role)
		assert.Equal(t, 0, s.Connected())
	})
}

func TestSession_ApplyMove(t *testing.T) {
	t.Run("Turn alternates after every accepted move", func(t *testing.T) {
		// Given: a started game
		s, _, _ := startedSession(t)
		cells := [][2]int{{0, 0}, {1, 1}, {2, 2}, {0, 1}, {2, 1}, {0, 2}}

		role := entity.First
		for _, cell := range cells {
			// When: the role on turn moves
			snapshot, err := s.ApplyMove(role, cell[0], cell[1])
			require.NoError(t, err)

			// Then: the next turn belongs to the opponent
			if snapshot.GameOver {
				break
			}
			assert.Equal(t, role.Opponent(), snapshot.Turn)
			role = snapshot.Turn
		}
	})

	t.Run("Broadcasts exactly once per accepted move", func(t *testing.T) {
		// Given: a started game
		s, first, second := startedSession(t)

		// When: First moves
		play(t, s, [3]int{0, 1, 1})

		// Then: both got one more game state carrying the move
		assert.Equal(t, []string{"init", "game_state", "game_state"}, first.types())
		assert.Equal(t, []string{"init", "game_state", "game_state"}, second.types())
		assert.Equal(t, first.last(), second.last())
		assert.Equal(t, float64(1), second.last()["current_player"])
	})

	t.Run("Second moving while First is on turn gets ErrNotYourTurn", func(t *testing.T) {
		// Given: a started game
		s, first, second := startedSession(t)
		before := s.Snapshot()

		// When: Second moves out of turn
		_, err := s.ApplyMove(entity.Second, 0, 0)

		// Then: the move is refused, nothing changes and nothing is broadcast
		require.ErrorIs(t, err, apperror.ErrNotYourTurn)
		assert.Equal(t, before, s.Snapshot())
		assert.Len(t, first.messages(), 2)
		assert.Len(t, second.messages(), 2)
	})

	t.Run("Move on an occupied cell does not mutate anything", func(t *testing.T) {
		// Given: First took the center
		s, first, _ := startedSession(t)
		play(t, s, [3]int{0, 1, 1})
		before := s.Snapshot()

		// When: Second tries the center too
		_, err := s.ApplyMove(entity.Second, 1, 1)

		// Then: ErrInvalidMove, state unchanged, no broadcast
		require.ErrorIs(t, err, apperror.ErrInvalidMove)
		assert.Equal(t, before, s.Snapshot())
		assert.Len(t, first.messages(), 3)
	})

	t.Run("Out of range move does not mutate anything", func(t *testing.T) {
		s, _, _ := startedSession(t)
		before := s.Snapshot()

		_, err := s.ApplyMove(entity.First, 3, 0)

		require.ErrorIs(t, err, apperror.ErrInvalidMove)
		assert.Equal(t, before, s.Snapshot())
	})

	t.Run("First wins with the top row", func(t *testing.T) {
		// Given: a started game
		s, first, second := startedSession(t)

		// When: First fills row 0 while Second plays row 1
		play(t, s,
			[3]int{0, 0, 0}, [3]int{1, 1, 0},
			[3]int{0, 0, 1}, [3]int{1, 1, 1},
			[3]int{0, 0, 2},
		)

		// Then: the game is over with First as the winner
		snapshot := s.Snapshot()
		assert.True(t, snapshot.GameOver)
		require.NotNil(t, snapshot.Winner)
		assert.Equal(t, entity.First, *snapshot.Winner)
		assert.Equal(t, "X", first.last()["winner"])
		assert.Equal(t, true, second.last()["game_over"])

		// Then: no further cell can be written
		_, err := s.ApplyMove(entity.Second, 2, 2)
		require.ErrorIs(t, err, apperror.ErrGameFinished)
		assert.Equal(t, entity.EmptyCell, s.Snapshot().Board[2][2])
	})

	t.Run("Full board without a line is a tie", func(t *testing.T) {
		// Given: a started game
		s, first, _ := startedSession(t)

		// When: all nine cells are filled without a line
		// X O X
		// X O O
		// O X X
		play(t, s,
			[3]int{0, 0, 0}, [3]int{1, 0, 1},
			[3]int{0, 0, 2}, [3]int{1, 1, 1},
			[3]int{0, 1, 0}, [3]int{1, 1, 2},
			[3]int{0, 2, 1}, [3]int{1, 2, 0},
			[3]int{0, 2, 2},
		)

		// Then: the game is over with no winner
		snapshot := s.Snapshot()
		assert.True(t, snapshot.GameOver)
		assert.Nil(t, snapshot.Winner)
		assert.Nil(t, first.last()["winner"])
	})
}

func finishedSession(t *testing.T) (*Session, *fakePeer, *fakePeer) {
	t.Helper()

	s, first, second := startedSession(t)
	play(t, s,
		[3]int{0, 0, 0}, [3]int{1, 1, 0},
		[3]int{0, 0, 1}, [3]int{1, 1, 1},
		[3]int{0, 0, 2},
	)
	require.True(t, s.Snapshot().GameOver)

	return s, first, second
}

func TestSession_RequestRematch(t *testing.T) {
	t.Run("No-op while the game is running", func(t *testing.T) {
		// Given: a game in progress
		s, first, second := startedSession(t)

		// When: First asks for a rematch
		reset := s.RequestRematch(entity.First)

		// Then: nothing is sent
		assert.False(t, reset)
		assert.Len(t, first.messages(), 2)
		assert.Len(t, second.messages(), 2)
	})

	t.Run("Single vote only notifies the other side", func(t *testing.T) {
		// Given: a finished game
		s, first, second := finishedSession(t)
		sentToFirst := len(first.messages())

		// When: First votes
		reset := s.RequestRematch(entity.First)

		// Then: Second is told, First gets no echo and the board is kept
		assert.False(t, reset)
		assert.Equal(t, map[string]interface{}{"type": "rematch_request", "player": float64(0)}, second.last())
		assert.Len(t, first.messages(), sentToFirst)
		assert.True(t, s.Snapshot().GameOver)
	})

	t.Run("Both votes reset the game", func(t *testing.T) {
		// Given: a finished game where First already voted
		s, first, second := finishedSession(t)
		s.RequestRematch(entity.First)

		// When: Second votes too
		reset := s.RequestRematch(entity.Second)

		// Then: board, turn and flags are reset and both get the fresh state
		assert.True(t, reset)
		snapshot := s.Snapshot()
		assert.True(t, snapshot.Board.IsEmpty())
		assert.Equal(t, entity.First, snapshot.Turn)
		assert.False(t, snapshot.GameOver)
		assert.Nil(t, snapshot.Winner)
		assert.Equal(t, "game_state", first.last()["type"])
		assert.Equal(t, first.last(), second.last())

		// Then: votes were cleared, a new single vote after the next game only notifies
		play(t, s,
			[3]int{0, 0, 0}, [3]int{1, 1, 0},
			[3]int{0, 0, 1}, [3]int{1, 1, 1},
			[3]int{0, 0, 2},
		)
		assert.False(t, s.RequestRematch(entity.Second))
	})

	t.Run("No reset while the other participant is gone", func(t *testing.T) {
		// Given: a finished game where First voted and then left
		s, first, second := finishedSession(t)
		s.RequestRematch(entity.First)
		s.Disconnect(entity.First)
		sentToFirst := len(first.messages())
		sentToSecond := len(second.messages())

		// When: Second votes
		reset := s.RequestRematch(entity.Second)

		// Then: the game is not reset and the gone peer is never contacted
		assert.False(t, reset)
		assert.True(t, s.Snapshot().GameOver)
		assert.Len(t, first.messages(), sentToFirst)
		assert.Len(t, second.messages(), sentToSecond)
	})
}

func TestSession_Disconnect(t *testing.T) {
	t.Run("Dead peer is dropped when Second's rematch notice cannot reach it", func(t *testing.T) {
		// Given: a finished game where First's connection died without a clean close
		s, first, second := finishedSession(t)
		sentToFirst := len(first.messages())
		sentToSecond := len(second.messages())
		first.fail(errBrokenPipe)

		// When: Second votes for a rematch
		reset := s.RequestRematch(entity.Second)

		// Then: no reset, First is marked absent and closed, Second gets no echo
		assert.False(t, reset)
		assert.Equal(t, 1, s.Connected())
		assert.True(t, first.isClosed())
		assert.Len(t, first.messages(), sentToFirst)
		assert.Len(t, second.messages(), sentToSecond)

		// Then: First voting later cannot start a game without its connection
		assert.False(t, s.RequestRematch(entity.First))
		assert.True(t, s.Snapshot().GameOver)
	})

	t.Run("Broadcast failure marks the peer absent", func(t *testing.T) {
		// Given: a started game where First's connection is broken
		s, first, second := startedSession(t)
		first.fail(errBrokenPipe)

		// When: a broadcast happens
		_, err := s.ApplyMove(entity.First, 0, 0)

		// Then: the move still counts, Second got it, First is dropped and closed
		require.NoError(t, err)
		assert.Equal(t, "X", second.last()["board"].([]interface{})[0].([]interface{})[0])
		assert.Equal(t, 1, s.Connected())
		assert.True(t, first.isClosed())
	})

	t.Run("Disconnect is idempotent and keeps the game", func(t *testing.T) {
		s, _, second := startedSession(t)
		play(t, s, [3]int{0, 1, 1})

		s.Disconnect(entity.First)
		s.Disconnect(entity.First)

		assert.Equal(t, 1, s.Connected())
		assert.Equal(t, entity.MarkX, s.Snapshot().Board[1][1])
		assert.False(t, second.isClosed())
	})

	t.Run("Shutdown closes everyone", func(t *testing.T) {
		s, first, second := startedSession(t)

		s.Shutdown()

		assert.True(t, first.isClosed())
		assert.True(t, second.isClosed())
		assert.Equal(t, 0, s.Connected())
	})
}

// countMarks counts X and O on a rendered board.
func countMarks(t *testing.T, board interface{}) (int, int) {
	t.Helper()

	var xs, ys int
	for _, row := range board.([]interface{}) {
		for _, cell := range row.([]interface{}) {
			switch cell {
			case "X":
				xs++
			case "O":
				ys++
			}
		}
	}

	return xs, ys
}

func TestSession_Concurrency(t *testing.T) {
	for iteration := 0; iteration < 50; iteration++ {
		// Given: a started game
		s, first, second := startedSession(t)

		// When: every move of both roles, rematch votes and a disconnect race each other
		var wg sync.WaitGroup
		start := make(chan struct{})

		run := func(op func()) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				op()
			}()
		}

		for _, role := range entity.Roles {
			for cell := 0; cell < entity.BoardSize*entity.BoardSize; cell++ {
				role, row, col := role, cell/entity.BoardSize, cell%entity.BoardSize
				run(func() { _, _ = s.ApplyMove(role, row, col) })
			}
			role := role
			run(func() { s.RequestRematch(role) })
			run(func() { s.RequestRematch(role) })
		}
		run(func() { s.Disconnect(entity.Second) })

		close(start)
		wg.Wait()

		// Then: the final state keeps the board invariant
		snapshot := s.Snapshot()
		var xs, ys int
		for _, row := range snapshot.Board {
			for _, cell := range row {
				switch cell {
				case entity.MarkX:
					xs++
				case entity.MarkO:
					ys++
				}
			}
		}
		require.True(t, xs == ys || xs == ys+1, "x=%d o=%d", xs, ys)
		assert.True(t, second.isClosed())

		// Then: every state First saw is consistent, and nothing lands on a finished board
		var prevOver bool
		for _, msg := range first.messages() {
			if msg["type"] != "game_state" {
				continue
			}

			xs, ys := countMarks(t, msg["board"])
			require.True(t, xs == ys || xs == ys+1, "x=%d o=%d", xs, ys)

			if prevOver {
				require.Equal(t, 0, xs+ys, "board written after game over")
				require.Equal(t, false, msg["game_over"])
			}
			prevOver = msg["game_over"] == true
		}
	}
}
