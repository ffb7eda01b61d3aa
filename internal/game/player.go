// Package game implements the per-game session: a single-owner state
// machine that multiplexes two client transports over one rules
// engine, and the process-wide registry of live sessions.
package game

import "github.com/hailam/chessduel/internal/board"

// EloProjection carries the rating a player would hold after a win,
// draw or loss, as computed by the application service when the
// challenge was created.
type EloProjection struct {
	Win  int `json:"win"`
	Draw int `json:"draw"`
	Lose int `json:"lose"`
}

// Identity is the authenticated identity a connection binds with: the
// username verified against the challenge plus the rating snapshot
// fetched from the application service.
type Identity struct {
	Username   string
	Elo        int
	Projection EloProjection
}

// Player is one side of a live game.
type Player struct {
	Identity
	Color board.Color

	conn Conn
	gone bool // transport has closed
}

// GameInfo is the payload sent to each player when the game starts.
type GameInfo struct {
	Username         string
	Elo              int
	Projection       EloProjection
	OpponentUsername string
	OpponentElo      int
	IsWhite          bool
}

// Conn is the transport handle a session fans events out to. Send is
// called from the session goroutine only; implementations serialize
// writes against any other writers they may have.
type Conn interface {
	Send(ev Event) error
}

// EventType discriminates session events.
type EventType uint8

const (
	// EvGameInfo carries the GameInfo payload at game start.
	EvGameInfo EventType = iota
	// EvBoard carries a textual board oriented for the receiver.
	EvBoard
	// EvMoveConfirmed echoes an accepted move to both players.
	EvMoveConfirmed
	// EvMoveRejected reports a rejected move to the submitter only.
	EvMoveRejected
	// EvDrawOffered notifies both sides of an outstanding draw offer.
	EvDrawOffered
	// EvDrawDeclined notifies the offerer of a declined offer.
	EvDrawDeclined
	// EvDrawAccepted notifies both sides before the game ends by
	// agreement.
	EvDrawAccepted
	// EvGameEnded carries the final result.
	EvGameEnded
	// EvError reports a failure local to the receiving transport.
	// Fatal errors instruct the connection handler to close.
	EvError
)

// Event is a session-to-transport notification. Only the fields
// relevant to the Type are populated.
type Event struct {
	Type EventType

	Info  *GameInfo // EvGameInfo
	Board string    // EvBoard

	From string // EvMoveConfirmed
	To   string // EvMoveConfirmed

	Reason string // EvMoveRejected, EvError
	Fatal  bool   // EvError

	Winner      string // EvGameEnded, empty on draw or abort
	Description string // EvGameEnded
}
