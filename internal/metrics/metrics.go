// Package metrics provides lock-free counters for the game server.
//
// A nil *Collector is a valid no-op receiver.
package metrics

import (
	"sync/atomic"
	"time"
)

type Collector struct {
	startTime time.Time

	connectionsAccepted atomic.Int64
	connectionsRefused  atomic.Int64
	connectionsActive   atomic.Int64
	movesApplied        atomic.Int64
	movesRejected       atomic.Int64
	protocolErrors      atomic.Int64
	gamesFinished       atomic.Int64
	rematches           atomic.Int64
}

// Stats is a point-in-time copy of every counter.
type Stats struct {
	Uptime              string `json:"uptime"`
	ConnectionsAccepted int64  `json:"connections_accepted"`
	ConnectionsRefused  int64  `json:"connections_refused"`
	ConnectionsActive   int64  `json:"connections_active"`
	MovesApplied        int64  `json:"moves_applied"`
	MovesRejected       int64  `json:"moves_rejected"`
	ProtocolErrors      int64  `json:"protocol_errors"`
	GamesFinished       int64  `json:"games_finished"`
	Rematches           int64  `json:"rematches"`
}

func New() *Collector {
	return &Collector{startTime: time.Now()}
}

func (c *Collector) ConnectionAccepted() {
	if c == nil {
		return
	}
	c.connectionsAccepted.Add(1)
	c.connectionsActive.Add(1)
}

func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(-1)
}

func (c *Collector) ConnectionRefused() {
	if c == nil {
		return
	}
	c.connectionsRefused.Add(1)
}

func (c *Collector) MoveApplied() {
	if c == nil {
		return
	}
	c.movesApplied.Add(1)
}

func (c *Collector) MoveRejected() {
	if c == nil {
		return
	}
	c.movesRejected.Add(1)
}

func (c *Collector) ProtocolError() {
	if c == nil {
		return
	}
	c.protocolErrors.Add(1)
}

func (c *Collector) GameFinished() {
	if c == nil {
		return
	}
	c.gamesFinished.Add(1)
}

func (c *Collector) Rematch() {
	if c == nil {
		return
	}
	c.rematches.Add(1)
}

// Snapshot returns the current counter values.
func (c *Collector) Snapshot() Stats {
	if c == nil {
		return Stats{}
	}

	return Stats{
		Uptime:              time.Since(c.startTime).Round(time.Second).String(),
		ConnectionsAccepted: c.connectionsAccepted.Load(),
		ConnectionsRefused:  c.connectionsRefused.Load(),
		ConnectionsActive:   c.connectionsActive.Load(),
		MovesApplied:        c.movesApplied.Load(),
		MovesRejected:       c.movesRejected.Load(),
		ProtocolErrors:      c.protocolErrors.Load(),
		GamesFinished:       c.gamesFinished.Load(),
		Rematches:           c.rematches.Load(),
	}
}
