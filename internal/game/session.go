package game

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hailam/chessduel/internal/board"
)

// Session binding errors.
var (
	ErrSessionOver   = errors.New("game is already over")
	ErrGameFull      = errors.New("game already has two players")
	ErrAlreadyJoined = errors.New("username already joined this game")
)

// ResultReporter posts the final result to the application service.
// An empty winner username encodes a draw.
type ResultReporter interface {
	PostResult(ctx context.Context, gameID, winnerUsername string) error
}

// State is the session lifecycle state.
type State uint8

const (
	AwaitingFirstPlayer State = iota
	AwaitingSecondPlayer
	InProgress
	Terminal
)

// TerminalKind classifies how a game ended.
type TerminalKind uint8

const (
	// CheckmateWin: the winner delivered checkmate.
	CheckmateWin TerminalKind = iota
	// DrawByAgreement: both players agreed to a draw.
	DrawByAgreement
	// DrawByRule: stalemate, threefold repetition or the fifty-move rule.
	DrawByRule
	// ResignationWin: the loser resigned or disconnected.
	ResignationWin
	// Aborted: no authoritative outcome (both transports gone, or the
	// only joined player left). Not reported upstream.
	Aborted
)

// Outcome is the terminal result of a session.
type Outcome struct {
	Kind        TerminalKind
	Winner      *Player // nil for draws and aborts
	Description string
}

type op uint8

const (
	opBind op = iota
	opMove
	opOfferDraw
	opRespondDraw
	opResign
	opDetach
	opBoard
)

type bindReply struct {
	color board.Color
	err   error
}

type command struct {
	op       op
	conn     Conn
	identity Identity
	from, to board.Square
	accept   bool

	bindReply  chan bindReply
	boardReply chan string
}

// Session is one live game. All state transitions happen on a single
// goroutine draining the command channel, so the board and the player
// slots need no locking; public methods only enqueue.
type Session struct {
	id       string
	log      *logrus.Entry
	reporter ResultReporter
	onRemove func(id string)

	board     *board.Board
	players   []*Player // bind order; players[0] is White
	state     State
	outcome   Outcome
	drawOffer *Player

	// mu guards closed and sender registration. Once closed is set no
	// new sender can register, so after senders drains to zero the
	// command queue can be closed and every enqueued command — and
	// with it every pending synchronous caller — gets an answer.
	mu      sync.Mutex
	closed  bool
	senders sync.WaitGroup

	cmds chan command
	done chan struct{}
}

// NewSession creates a session for the given game id and starts its
// command loop. onRemove is invoked once, after the session reaches a
// terminal state and both players have been notified.
func NewSession(id string, log *logrus.Logger, reporter ResultReporter, onRemove func(id string)) *Session {
	s := &Session{
		id:       id,
		log:      log.WithField("game_id", id),
		reporter: reporter,
		onRemove: onRemove,
		board:    board.New(),
		state:    AwaitingFirstPlayer,
		cmds:     make(chan command, 16),
		done:     make(chan struct{}),
	}
	go s.loop()
	return s
}

// ID returns the game identifier.
func (s *Session) ID() string {
	return s.id
}

// Done is closed once the session has reached a terminal state and
// emitted its final events.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Bind attaches a transport and identity to the session. The first
// player to bind plays White, the second Black; a third bind fails.
func (s *Session) Bind(conn Conn, identity Identity) (board.Color, error) {
	reply := make(chan bindReply, 1)
	if !s.enqueue(command{op: opBind, conn: conn, identity: identity, bindReply: reply}) {
		return board.White, ErrSessionOver
	}
	r := <-reply
	return r.color, r.err
}

// SubmitMove submits a half-move on behalf of the given transport.
// The result is delivered as events: a rejection to the submitter
// only, or a confirmation plus fresh board view to both players.
func (s *Session) SubmitMove(conn Conn, from, to board.Square) {
	s.enqueue(command{op: opMove, conn: conn, from: from, to: to})
}

// OfferDraw records a draw offer and notifies both players. A newer
// offer silently overrides an outstanding one.
func (s *Session) OfferDraw(conn Conn) {
	s.enqueue(command{op: opOfferDraw, conn: conn})
}

// RespondDraw answers the outstanding draw offer.
func (s *Session) RespondDraw(conn Conn, accept bool) {
	s.enqueue(command{op: opRespondDraw, conn: conn, accept: accept})
}

// Resign ends the game with the opponent as winner.
func (s *Session) Resign(conn Conn) {
	s.enqueue(command{op: opResign, conn: conn})
}

// Detach reports that the transport has closed. Mid-game this counts
// as resignation; if no opponent remains the game is aborted and not
// reported upstream.
func (s *Session) Detach(conn Conn) {
	s.enqueue(command{op: opDetach, conn: conn})
}

// ViewerBoard returns the current board rendered for the transport's
// color (White orientation for unbound transports).
func (s *Session) ViewerBoard(conn Conn) (string, error) {
	reply := make(chan string, 1)
	if !s.enqueue(command{op: opBoard, conn: conn, boardReply: reply}) {
		return "", ErrSessionOver
	}
	return <-reply, nil
}

func (s *Session) enqueue(c command) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.senders.Add(1)
	s.mu.Unlock()

	s.cmds <- c
	s.senders.Done()
	return true
}

func (s *Session) loop() {
	for {
		select {
		case c := <-s.cmds:
			s.handle(c)
		case <-s.done:
			// No new sender can register once the session is closed.
			// Wait out the in-flight ones, then drain so that every
			// enqueued command is answered.
			go func() {
				s.senders.Wait()
				close(s.cmds)
			}()
			for c := range s.cmds {
				s.handle(c)
			}
			return
		}
	}
}

func (s *Session) handle(c command) {
	if s.state == Terminal {
		// Late deliveries are no-ops; pending synchronous callers
		// still get an answer.
		switch c.op {
		case opBind:
			c.bindReply <- bindReply{err: ErrSessionOver}
		case opBoard:
			c.boardReply <- s.board.Render(s.viewerColor(c.conn))
		}
		return
	}

	switch c.op {
	case opBind:
		color, err := s.bind(c.conn, c.identity)
		c.bindReply <- bindReply{color: color, err: err}
	case opMove:
		s.move(c.conn, c.from, c.to)
	case opOfferDraw:
		s.offerDraw(c.conn)
	case opRespondDraw:
		s.respondDraw(c.conn, c.accept)
	case opResign:
		s.resign(c.conn)
	case opDetach:
		s.detach(c.conn)
	case opBoard:
		c.boardReply <- s.board.Render(s.viewerColor(c.conn))
	}
}

func (s *Session) bind(conn Conn, identity Identity) (board.Color, error) {
	if len(s.players) == 2 {
		return board.White, ErrGameFull
	}
	for _, p := range s.players {
		if p.Username == identity.Username {
			return board.White, fmt.Errorf("%w: %s", ErrAlreadyJoined, identity.Username)
		}
	}

	color := board.White
	if len(s.players) == 1 {
		color = board.Black
	}
	p := &Player{Identity: identity, Color: color, conn: conn}
	s.players = append(s.players, p)

	if len(s.players) == 1 {
		s.state = AwaitingSecondPlayer
		s.log.WithField("player", p.Username).Info("first player joined, awaiting opponent")
		return color, nil
	}

	s.state = InProgress
	s.log.WithFields(logrus.Fields{
		"white": s.players[0].Username,
		"black": s.players[1].Username,
	}).Info("game started")

	// Both players receive the game info and the initial position.
	for _, p := range s.players {
		opp := s.opponent(p)
		s.send(p, Event{Type: EvGameInfo, Info: &GameInfo{
			Username:         p.Username,
			Elo:              p.Elo,
			Projection:       p.Projection,
			OpponentUsername: opp.Username,
			OpponentElo:      opp.Elo,
			IsWhite:          p.Color == board.White,
		}})
		s.send(p, Event{Type: EvBoard, Board: s.board.Render(p.Color)})
	}

	return color, nil
}

func (s *Session) move(conn Conn, from, to board.Square) {
	p := s.playerFor(conn)
	if p == nil {
		s.sendConn(conn, Event{Type: EvError, Fatal: true, Reason: "you are not a participant of this game"})
		return
	}
	if s.state != InProgress {
		s.send(p, Event{Type: EvMoveRejected, Reason: "waiting for the second player"})
		return
	}
	if p.Color != s.board.SideToMove() {
		s.send(p, Event{Type: EvMoveRejected, Reason: "it is not your turn"})
		return
	}

	status, err := s.board.Move(from, to)
	if err != nil {
		// Rejections go to the submitter only; the opponent never
		// observes them.
		s.send(p, Event{Type: EvMoveRejected, Reason: err.Error()})
		return
	}

	echo := Event{Type: EvMoveConfirmed, From: from.String(), To: to.String()}
	for _, q := range s.players {
		s.send(q, echo)
		s.send(q, Event{Type: EvBoard, Board: s.board.Render(q.Color)})
	}

	if !status.Terminal() {
		return
	}

	switch status {
	case board.Checkmate:
		s.finish(Outcome{
			Kind:        CheckmateWin,
			Winner:      p,
			Description: fmt.Sprintf("%s won! Checkmate.", p.Username),
		})
	default:
		s.finish(Outcome{
			Kind:        DrawByRule,
			Description: fmt.Sprintf("Draw: %s.", status),
		})
	}
}

func (s *Session) offerDraw(conn Conn) {
	p := s.playerFor(conn)
	if p == nil {
		s.sendConn(conn, Event{Type: EvError, Fatal: true, Reason: "you are not a participant of this game"})
		return
	}
	if s.state != InProgress {
		s.send(p, Event{Type: EvError, Reason: "game has not started"})
		return
	}

	// A second offer overrides the first silently.
	s.drawOffer = p
	for _, q := range s.players {
		s.send(q, Event{Type: EvDrawOffered})
	}
}

func (s *Session) respondDraw(conn Conn, accept bool) {
	p := s.playerFor(conn)
	if p == nil {
		s.sendConn(conn, Event{Type: EvError, Fatal: true, Reason: "you are not a participant of this game"})
		return
	}
	if s.drawOffer == nil || s.drawOffer == p {
		s.send(p, Event{Type: EvError, Reason: "no draw offer to respond to"})
		return
	}

	offerer := s.drawOffer
	s.drawOffer = nil

	if !accept {
		s.send(offerer, Event{Type: EvDrawDeclined})
		return
	}

	for _, q := range s.players {
		s.send(q, Event{Type: EvDrawAccepted})
	}
	s.finish(Outcome{Kind: DrawByAgreement, Description: "Draw by mutual consent."})
}

func (s *Session) resign(conn Conn) {
	p := s.playerFor(conn)
	if p == nil {
		s.sendConn(conn, Event{Type: EvError, Fatal: true, Reason: "you are not a participant of this game"})
		return
	}
	if s.state != InProgress {
		s.send(p, Event{Type: EvError, Reason: "game has not started"})
		return
	}

	winner := s.opponent(p)
	s.finish(Outcome{
		Kind:        ResignationWin,
		Winner:      winner,
		Description: fmt.Sprintf("%s won! Opponent gave up...", winner.Username),
	})
}

func (s *Session) detach(conn Conn) {
	p := s.playerFor(conn)
	if p == nil {
		return
	}
	p.gone = true

	if s.state != InProgress {
		// The only joined player left before the game started.
		s.finish(Outcome{Kind: Aborted, Description: "Game aborted."})
		return
	}

	opp := s.opponent(p)
	if opp.gone {
		// Nobody left to win; skip the upstream report.
		s.finish(Outcome{Kind: Aborted, Description: "Game aborted."})
		return
	}

	s.log.WithField("player", p.Username).Info("player disconnected mid-game")
	s.finish(Outcome{
		Kind:        ResignationWin,
		Winner:      opp,
		Description: fmt.Sprintf("%s won! Opponent disconnected.", opp.Username),
	})
}

// finish moves the session to Terminal: the result is posted upstream
// (except for aborts), both players are notified, Done is closed and
// the session removes itself from the registry. Upstream failure never
// withholds the outcome from the players.
func (s *Session) finish(o Outcome) {
	s.state = Terminal
	s.outcome = o

	if o.Kind != Aborted {
		winner := ""
		if o.Winner != nil {
			winner = o.Winner.Username
		}
		if err := s.reporter.PostResult(context.Background(), s.id, winner); err != nil {
			s.log.WithError(err).Error("failed to report game result; result stays authoritative locally")
		}
	}

	winner := ""
	if o.Winner != nil {
		winner = o.Winner.Username
	}
	for _, q := range s.players {
		s.send(q, Event{Type: EvGameEnded, Winner: winner, Description: o.Description})
	}

	s.log.WithField("description", o.Description).Info("game over")

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	close(s.done)
	if s.onRemove != nil {
		s.onRemove(s.id)
	}
}

// Outcome returns the terminal outcome. Valid once Done is closed.
func (s *Session) Outcome() Outcome {
	return s.outcome
}

func (s *Session) playerFor(conn Conn) *Player {
	for _, p := range s.players {
		if p.conn == conn {
			return p
		}
	}
	return nil
}

func (s *Session) opponent(p *Player) *Player {
	if s.players[0] == p {
		return s.players[1]
	}
	return s.players[0]
}

func (s *Session) viewerColor(conn Conn) board.Color {
	if p := s.playerFor(conn); p != nil {
		return p.Color
	}
	return board.White
}

func (s *Session) send(p *Player, ev Event) {
	if p.gone || p.conn == nil {
		return
	}
	if err := p.conn.Send(ev); err != nil {
		s.log.WithError(err).WithField("player", p.Username).Warn("dropping event: transport write failed")
	}
}

func (s *Session) sendConn(conn Conn, ev Event) {
	if conn == nil {
		return
	}
	if err := conn.Send(ev); err != nil {
		s.log.WithError(err).Warn("dropping event: transport write failed")
	}
}
