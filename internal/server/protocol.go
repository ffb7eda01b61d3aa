// Package server is the WebSocket front of the game server: it speaks
// the JSON client protocol, authenticates connections against the
// application service and translates messages into session operations.
// No chess logic lives here.
package server

import (
	"github.com/hailam/chessduel/internal/game"
)

// Message kinds, client to server.
const (
	KindLogin       = "login"
	KindMove        = "move"
	KindOfferDraw   = "offer_draw"
	KindAcceptDraw  = "accept_draw"
	KindDeclineDraw = "decline_draw"
	KindResign      = "resign"
)

// Message kinds, server to client.
const (
	KindLoginResult   = "login_result"
	KindGameInfo      = "game_info"
	KindGameState     = "game_state"
	KindMoveConfirmed = "move_confirmed"
	KindMoveRejected  = "move_rejected"
	KindDrawOffered   = "draw_offered"
	KindDrawAccepted  = "draw_accepted"
	KindDrawDeclined  = "draw_declined"
	KindGameEnded     = "game_ended"
	KindError         = "error"
)

// Projection carries the projected Elo after each possible result.
type Projection struct {
	Win  int `json:"win"`
	Draw int `json:"draw"`
	Lose int `json:"lose"`
}

// Message is the wire envelope. Kind selects which fields are set.
type Message struct {
	Kind string `json:"type"`

	// login
	GameID   string `json:"game_id,omitempty"`
	Username string `json:"username,omitempty"`

	// login_result
	OK bool `json:"ok,omitempty"`

	// game_info
	Elo              int         `json:"elo,omitempty"`
	Projected        *Projection `json:"projected,omitempty"`
	OpponentUsername string      `json:"opponent_username,omitempty"`
	OpponentElo      int         `json:"opponent_elo,omitempty"`
	IsWhite          *bool       `json:"is_white,omitempty"`

	// game_state
	Board string `json:"board,omitempty"`

	// move, move_confirmed
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	// move_rejected, login_result, error
	Reason string `json:"reason,omitempty"`

	// error
	Fatal bool `json:"fatal,omitempty"`

	// game_ended; winner is empty on a draw
	Winner      string `json:"winner,omitempty"`
	Description string `json:"description,omitempty"`
}

// encodeEvent maps a session event onto its wire message.
func encodeEvent(ev game.Event) Message {
	switch ev.Type {
	case game.EvGameInfo:
		isWhite := ev.Info.IsWhite
		return Message{
			Kind:     KindGameInfo,
			Username: ev.Info.Username,
			Elo:      ev.Info.Elo,
			Projected: &Projection{
				Win:  ev.Info.Projection.Win,
				Draw: ev.Info.Projection.Draw,
				Lose: ev.Info.Projection.Lose,
			},
			OpponentUsername: ev.Info.OpponentUsername,
			OpponentElo:      ev.Info.OpponentElo,
			IsWhite:          &isWhite,
		}
	case game.EvBoard:
		return Message{Kind: KindGameState, Board: ev.Board}
	case game.EvMoveConfirmed:
		return Message{Kind: KindMoveConfirmed, From: ev.From, To: ev.To}
	case game.EvMoveRejected:
		return Message{Kind: KindMoveRejected, Reason: ev.Reason}
	case game.EvDrawOffered:
		return Message{Kind: KindDrawOffered}
	case game.EvDrawAccepted:
		return Message{Kind: KindDrawAccepted}
	case game.EvDrawDeclined:
		return Message{Kind: KindDrawDeclined}
	case game.EvGameEnded:
		return Message{Kind: KindGameEnded, Winner: ev.Winner, Description: ev.Description}
	default:
		return Message{Kind: KindError, Reason: ev.Reason, Fatal: ev.Fatal}
	}
}
