package server

import (
	"context"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/hailam/chessduel/internal/appservice"
	"github.com/hailam/chessduel/internal/board"
	"github.com/hailam/chessduel/internal/game"
)

// wsConn adapts a gorilla websocket connection to the session's Conn.
// Gorilla permits one concurrent writer, so writes from the session
// goroutine and login replies from the handler share a mutex.
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *wsConn) write(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(msg)
}

func (c *wsConn) Send(ev game.Event) error {
	err := c.write(encodeEvent(ev))
	if ev.Type == game.EvError && ev.Fatal {
		c.ws.Close()
	}
	return err
}

// Handler runs the per-connection protocol: a login loop until the
// connection authenticates against a challenge, then the message loop
// feeding the bound session.
type Handler struct {
	log        *logrus.Logger
	challenges appservice.ChallengeSource
	games      *game.Registry
}

// NewHandler wires the connection handler to its collaborators.
func NewHandler(log *logrus.Logger, challenges appservice.ChallengeSource, games *game.Registry) *Handler {
	return &Handler{log: log, challenges: challenges, games: games}
}

// HandleConn owns the websocket for its whole lifetime. It returns
// once the client disconnects or the game has ended.
func (h *Handler) HandleConn(ctx context.Context, ws *websocket.Conn, connID string) {
	log := h.log.WithField("conn_id", connID)
	conn := &wsConn{ws: ws}
	defer ws.Close()

	session, err := h.login(ctx, conn, log)
	if err != nil {
		log.WithError(err).Info("connection closed before login completed")
		return
	}

	// The session closes Done after emitting the final result; tear
	// the socket down so the read loop unblocks.
	go func() {
		<-session.Done()
		ws.Close()
	}()

	h.readLoop(conn, session, log)
}

// login reads messages until the client presents a known game id and a
// username that belongs to that challenge. Bad credentials are
// answered with a retriable login_result; only a dead transport or a
// full session ends the loop.
func (h *Handler) login(ctx context.Context, conn *wsConn, log *logrus.Entry) (*game.Session, error) {
	for {
		var msg Message
		if err := conn.ws.ReadJSON(&msg); err != nil {
			return nil, err
		}
		if msg.Kind != KindLogin {
			if err := conn.write(Message{Kind: KindLoginResult, Reason: "log in first"}); err != nil {
				return nil, err
			}
			continue
		}

		challenge, err := h.challenges.FetchChallenge(ctx, msg.GameID)
		if err != nil {
			log.WithError(err).WithField("game_id", msg.GameID).Info("challenge lookup failed")
			if err := conn.write(Message{Kind: KindLoginResult, Reason: "unknown game id"}); err != nil {
				return nil, err
			}
			continue
		}

		self, ok := challenge.Participant(msg.Username)
		if !ok {
			if err := conn.write(Message{Kind: KindLoginResult, Reason: "username does not belong to this game"}); err != nil {
				return nil, err
			}
			continue
		}

		change := challenge.Changes[msg.Username]
		identity := game.Identity{
			Username: self.Username,
			Elo:      self.Elo,
			Projection: game.EloProjection{
				Win:  change.Win,
				Draw: change.Draw,
				Lose: change.Lose,
			},
		}

		session := h.games.GetOrCreate(challenge.ID)
		if _, err := session.Bind(conn, identity); err != nil {
			// A full or finished session is not recoverable on this
			// connection.
			conn.write(Message{Kind: KindLoginResult, Reason: err.Error()})
			return nil, err
		}

		if err := conn.write(Message{Kind: KindLoginResult, OK: true}); err != nil {
			return nil, err
		}
		log.WithFields(logrus.Fields{
			"game_id":  challenge.ID,
			"username": identity.Username,
		}).Info("player logged in")
		return session, nil
	}
}

// readLoop translates client messages into session operations until
// the transport dies. Translation is mechanical; the session decides
// everything.
func (h *Handler) readLoop(conn *wsConn, session *game.Session, log *logrus.Entry) {
	for {
		var msg Message
		if err := conn.ws.ReadJSON(&msg); err != nil {
			select {
			case <-session.Done():
				// Closed by the session after game_ended; nothing to
				// detach.
			default:
				log.WithError(err).Info("transport closed, detaching")
				session.Detach(conn)
			}
			return
		}

		switch msg.Kind {
		case KindMove:
			from, to, err := parseMove(msg)
			if err != nil {
				conn.write(Message{Kind: KindMoveRejected, Reason: err.Error()})
				continue
			}
			session.SubmitMove(conn, from, to)
		case KindOfferDraw:
			session.OfferDraw(conn)
		case KindAcceptDraw:
			session.RespondDraw(conn, true)
		case KindDeclineDraw:
			session.RespondDraw(conn, false)
		case KindResign:
			session.Resign(conn)
		case KindLogin:
			conn.write(Message{Kind: KindError, Reason: "already logged in"})
		default:
			conn.write(Message{Kind: KindError, Reason: "unknown message type"})
		}
	}
}

func parseMove(msg Message) (board.Square, board.Square, error) {
	from, err := board.ParseSquare(msg.From)
	if err != nil {
		return board.NoSquare, board.NoSquare, err
	}
	to, err := board.ParseSquare(msg.To)
	if err != nil {
		return board.NoSquare, board.NoSquare, err
	}
	if from == to {
		return board.NoSquare, board.NoSquare, errors.New("from and to are the same square")
	}
	return from, to, nil
}
