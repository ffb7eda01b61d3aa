package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hailam/chessduel/internal/board"
)

// fakeConn records every event the session sends to it.
type fakeConn struct {
	mu     sync.Mutex
	events []Event
}

func (c *fakeConn) Send(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *fakeConn) ofType(t EventType) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, ev := range c.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (c *fakeConn) last() (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return Event{}, false
	}
	return c.events[len(c.events)-1], true
}

type reportedResult struct {
	gameID string
	winner string
}

// fakeReporter records result posts and can simulate upstream failure.
type fakeReporter struct {
	mu      sync.Mutex
	results []reportedResult
	err     error
}

func (r *fakeReporter) PostResult(_ context.Context, gameID, winner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.results = append(r.results, reportedResult{gameID: gameID, winner: winner})
	return nil
}

func (r *fakeReporter) posted() []reportedResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]reportedResult(nil), r.results...)
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// startedSession binds two players and returns the session plus their
// transports. White is "alice", Black is "bob".
func startedSession(t *testing.T, reporter ResultReporter) (*Session, *fakeConn, *fakeConn) {
	t.Helper()

	s := NewSession("game-1", testLogger(), reporter, nil)
	white, black := &fakeConn{}, &fakeConn{}

	color, err := s.Bind(white, Identity{Username: "alice", Elo: 1500})
	require.NoError(t, err)
	require.Equal(t, board.White, color)

	color, err = s.Bind(black, Identity{Username: "bob", Elo: 1480})
	require.NoError(t, err)
	require.Equal(t, board.Black, color)

	return s, white, black
}

// sync drains the command queue by issuing a synchronous operation
// behind the asynchronous ones already enqueued.
func (s *Session) sync(t *testing.T, conn Conn) {
	t.Helper()
	if _, err := s.ViewerBoard(conn); err != nil && !errors.Is(err, ErrSessionOver) {
		t.Fatal(err)
	}
}

func submit(t *testing.T, s *Session, conn Conn, from, to string) {
	t.Helper()
	f, err := board.ParseSquare(from)
	require.NoError(t, err)
	to2, err := board.ParseSquare(to)
	require.NoError(t, err)
	s.SubmitMove(conn, f, to2)
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not reach a terminal state")
	}
}

func TestBindAssignsColorsInOrder(t *testing.T) {
	s, white, black := startedSession(t, &fakeReporter{})
	defer s.Resign(white)

	for _, c := range []*fakeConn{white, black} {
		infos := c.ofType(EvGameInfo)
		require.Len(t, infos, 1, "each player receives game info once")
		boards := c.ofType(EvBoard)
		require.NotEmpty(t, boards, "each player receives the initial position")
	}

	whiteInfo := white.ofType(EvGameInfo)[0].Info
	assert.Equal(t, "alice", whiteInfo.Username)
	assert.Equal(t, "bob", whiteInfo.OpponentUsername)
	assert.True(t, whiteInfo.IsWhite)

	blackInfo := black.ofType(EvGameInfo)[0].Info
	assert.Equal(t, "bob", blackInfo.Username)
	assert.False(t, blackInfo.IsWhite)
}

func TestThirdBindFails(t *testing.T) {
	s, white, _ := startedSession(t, &fakeReporter{})
	defer s.Resign(white)

	_, err := s.Bind(&fakeConn{}, Identity{Username: "carol"})
	assert.ErrorIs(t, err, ErrGameFull)
}

func TestDuplicateUsernameRejected(t *testing.T) {
	s := NewSession("game-1", testLogger(), &fakeReporter{}, nil)
	white := &fakeConn{}
	_, err := s.Bind(white, Identity{Username: "alice"})
	require.NoError(t, err)

	_, err = s.Bind(&fakeConn{}, Identity{Username: "alice"})
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	s.Detach(white)
	waitDone(t, s)
}

func TestFoolsMateEndsTheGame(t *testing.T) {
	reporter := &fakeReporter{}
	s, white, black := startedSession(t, reporter)

	submit(t, s, white, "f2", "f3")
	submit(t, s, black, "e7", "e5")
	submit(t, s, white, "g2", "g4")
	submit(t, s, black, "d8", "h4")
	waitDone(t, s)

	for _, c := range []*fakeConn{white, black} {
		confirmed := c.ofType(EvMoveConfirmed)
		require.Len(t, confirmed, 4, "every accepted move is echoed to both players")
		assert.Equal(t, "d8", confirmed[3].From)
		assert.Equal(t, "h4", confirmed[3].To)

		ends := c.ofType(EvGameEnded)
		require.Len(t, ends, 1)
		assert.Equal(t, "bob", ends[0].Winner)
		assert.Equal(t, "bob won! Checkmate.", ends[0].Description)
	}

	require.Len(t, reporter.posted(), 1)
	assert.Equal(t, reportedResult{gameID: "game-1", winner: "bob"}, reporter.posted()[0])

	out := s.Outcome()
	assert.Equal(t, CheckmateWin, out.Kind)
}

func TestDrawByRuleEndsTheGame(t *testing.T) {
	reporter := &fakeReporter{}
	s, white, black := startedSession(t, reporter)

	// Shuffle the queen-side knights until the starting position has
	// occurred three times.
	for i := 0; i < 2; i++ {
		submit(t, s, white, "b1", "a3")
		submit(t, s, black, "b8", "a6")
		submit(t, s, white, "a3", "b1")
		submit(t, s, black, "a6", "b8")
	}
	waitDone(t, s)

	assert.Equal(t, DrawByRule, s.Outcome().Kind)
	for _, c := range []*fakeConn{white, black} {
		ends := c.ofType(EvGameEnded)
		require.Len(t, ends, 1)
		assert.Empty(t, ends[0].Winner)
		assert.Equal(t, "Draw: threefold repetition.", ends[0].Description)
	}

	require.Len(t, reporter.posted(), 1)
	assert.Equal(t, "", reporter.posted()[0].winner, "a rule draw posts an empty winner")
}

func TestRejectedMoveStaysPrivate(t *testing.T) {
	s, white, black := startedSession(t, &fakeReporter{})
	defer s.Resign(white)

	submit(t, s, white, "e2", "e5") // illegal
	s.sync(t, white)

	rejections := white.ofType(EvMoveRejected)
	require.Len(t, rejections, 1)
	assert.Contains(t, rejections[0].Reason, "illegal")

	assert.Empty(t, black.ofType(EvMoveRejected), "the opponent never sees rejections")
	assert.Empty(t, black.ofType(EvMoveConfirmed))
}

func TestOutOfTurnMoveRejected(t *testing.T) {
	s, white, black := startedSession(t, &fakeReporter{})
	defer s.Resign(white)

	submit(t, s, black, "e7", "e5")
	s.sync(t, black)

	rejections := black.ofType(EvMoveRejected)
	require.Len(t, rejections, 1)
	assert.Equal(t, "it is not your turn", rejections[0].Reason)
}

func TestStrangerGetsFatalError(t *testing.T) {
	s, white, _ := startedSession(t, &fakeReporter{})
	defer s.Resign(white)

	stranger := &fakeConn{}
	submit(t, s, stranger, "e2", "e4")
	s.sync(t, white)

	errs := stranger.ofType(EvError)
	require.Len(t, errs, 1)
	assert.True(t, errs[0].Fatal)
}

func TestResignation(t *testing.T) {
	reporter := &fakeReporter{}
	s, white, black := startedSession(t, reporter)

	s.Resign(black)
	waitDone(t, s)

	for _, c := range []*fakeConn{white, black} {
		ends := c.ofType(EvGameEnded)
		require.Len(t, ends, 1)
		assert.Equal(t, "alice", ends[0].Winner)
		assert.Equal(t, "alice won! Opponent gave up...", ends[0].Description)
	}
	require.Len(t, reporter.posted(), 1)
	assert.Equal(t, "alice", reporter.posted()[0].winner)
}

func TestDrawOfferAccepted(t *testing.T) {
	reporter := &fakeReporter{}
	s, white, black := startedSession(t, reporter)

	s.OfferDraw(white)
	s.sync(t, white)

	require.Len(t, white.ofType(EvDrawOffered), 1, "the offerer sees the offer too")
	require.Len(t, black.ofType(EvDrawOffered), 1)

	s.RespondDraw(black, true)
	waitDone(t, s)

	for _, c := range []*fakeConn{white, black} {
		require.Len(t, c.ofType(EvDrawAccepted), 1)
		ends := c.ofType(EvGameEnded)
		require.Len(t, ends, 1)
		assert.Empty(t, ends[0].Winner)
		assert.Equal(t, "Draw by mutual consent.", ends[0].Description)
	}

	require.Len(t, reporter.posted(), 1)
	assert.Equal(t, "", reporter.posted()[0].winner, "a draw posts an empty winner")
}

func TestDrawOfferDeclined(t *testing.T) {
	s, white, black := startedSession(t, &fakeReporter{})
	defer s.Resign(white)

	s.OfferDraw(white)
	s.RespondDraw(black, false)
	s.sync(t, white)

	require.Len(t, white.ofType(EvDrawDeclined), 1, "only the offerer is told of the decline")
	assert.Empty(t, black.ofType(EvDrawDeclined))

	// The offer is consumed; a late accept finds nothing.
	s.RespondDraw(black, true)
	s.sync(t, black)
	errs := black.ofType(EvError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Reason, "no draw offer")
}

func TestDrawOfferOverridden(t *testing.T) {
	reporter := &fakeReporter{}
	s, white, black := startedSession(t, reporter)

	s.OfferDraw(white)
	s.OfferDraw(black) // overrides silently
	s.RespondDraw(white, true)
	waitDone(t, s)

	assert.Equal(t, DrawByAgreement, s.Outcome().Kind)
	assert.Len(t, white.ofType(EvDrawOffered), 2)
}

func TestRespondToOwnOfferRejected(t *testing.T) {
	s, white, _ := startedSession(t, &fakeReporter{})
	defer s.Resign(white)

	s.OfferDraw(white)
	s.RespondDraw(white, true)
	s.sync(t, white)

	errs := white.ofType(EvError)
	require.Len(t, errs, 1)
	assert.False(t, errs[0].Fatal)
	assert.Empty(t, s.Outcome().Description)
}

func TestDisconnectMidGameResigns(t *testing.T) {
	reporter := &fakeReporter{}
	s, white, black := startedSession(t, reporter)

	s.Detach(white)
	waitDone(t, s)

	ends := black.ofType(EvGameEnded)
	require.Len(t, ends, 1)
	assert.Equal(t, "bob", ends[0].Winner)
	assert.Equal(t, "bob won! Opponent disconnected.", ends[0].Description)

	assert.Empty(t, white.ofType(EvGameEnded), "nothing is written to a closed transport")
	require.Len(t, reporter.posted(), 1)
	assert.Equal(t, "bob", reporter.posted()[0].winner)
}

func TestSecondDetachIsNoOp(t *testing.T) {
	reporter := &fakeReporter{}
	s, white, black := startedSession(t, reporter)

	s.Detach(black)
	waitDone(t, s)
	assert.Equal(t, ResignationWin, s.Outcome().Kind)

	// The winner's transport failing afterwards changes nothing.
	s.Detach(white)
	assert.Len(t, reporter.posted(), 1)
	assert.Equal(t, "alice", reporter.posted()[0].winner)
}

func TestLoneWaitingPlayerDetachAborts(t *testing.T) {
	reporter := &fakeReporter{}
	s := NewSession("game-1", testLogger(), reporter, nil)
	white := &fakeConn{}

	_, err := s.Bind(white, Identity{Username: "alice"})
	require.NoError(t, err)

	s.Detach(white)
	waitDone(t, s)

	assert.Equal(t, Aborted, s.Outcome().Kind)
	assert.Empty(t, reporter.posted(), "aborted games are not reported upstream")
}

func TestReporterFailureStillEndsGame(t *testing.T) {
	reporter := &fakeReporter{err: errors.New("upstream down")}
	s, white, black := startedSession(t, reporter)

	s.Resign(black)
	waitDone(t, s)

	ends := white.ofType(EvGameEnded)
	require.Len(t, ends, 1, "players learn the result even when reporting fails")
}

func TestPostTerminalOperationsAreNoOps(t *testing.T) {
	reporter := &fakeReporter{}
	s, white, black := startedSession(t, reporter)

	s.Resign(black)
	waitDone(t, s)

	submit(t, s, white, "e2", "e4")
	s.OfferDraw(white)
	s.Resign(white)

	_, err := s.Bind(&fakeConn{}, Identity{Username: "carol"})
	assert.ErrorIs(t, err, ErrSessionOver)

	assert.Len(t, reporter.posted(), 1, "the result is posted exactly once")
	last, ok := white.last()
	require.True(t, ok)
	assert.Equal(t, EvGameEnded, last.Type, "no events follow the final one")
}

func TestBoardOrientationPerPlayer(t *testing.T) {
	s, white, black := startedSession(t, &fakeReporter{})
	defer s.Resign(white)

	wb, err := s.ViewerBoard(white)
	require.NoError(t, err)
	bb, err := s.ViewerBoard(black)
	require.NoError(t, err)

	assert.NotEqual(t, wb, bb, "each player sees the board from their side")
	assert.Contains(t, wb, "  a b c d e f g h\n")
	assert.Contains(t, bb, "  h g f e d c b a\n")
}

func TestSessionRemovesItselfFromRegistry(t *testing.T) {
	reg := NewRegistry(testLogger(), &fakeReporter{})
	s := reg.GetOrCreate("game-7")

	again := reg.GetOrCreate("game-7")
	assert.Same(t, s, again, "both players land in the same session")

	white, black := &fakeConn{}, &fakeConn{}
	_, err := s.Bind(white, Identity{Username: "alice"})
	require.NoError(t, err)
	_, err = s.Bind(black, Identity{Username: "bob"})
	require.NoError(t, err)

	s.Resign(white)
	waitDone(t, s)

	_, ok := reg.Lookup("game-7")
	assert.False(t, ok, "terminal sessions leave the registry")
	assert.Zero(t, reg.Len())
}

func TestRegistryConcurrentGetOrCreate(t *testing.T) {
	reg := NewRegistry(testLogger(), &fakeReporter{})

	const workers = 16
	sessions := make([]*Session, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i] = reg.GetOrCreate(fmt.Sprintf("game-%d", i%4))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 4, reg.Len())
	for i := 0; i < workers; i++ {
		assert.Same(t, sessions[i%4], sessions[i], "one session per game id")
	}
}
