package apperror

import "errors"

var (
	ErrInvalidMove      = errors.New("invalid move")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrGameFinished     = errors.New("game is already finished")
	ErrGameIsNotStarted = errors.New("game is not started")
	ErrProtocol         = errors.New("protocol error")
	ErrPeerDisconnected = errors.New("peer disconnected")
	ErrSessionFull      = errors.New("session is full")
)
