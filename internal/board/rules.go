package board

import (
	"errors"
	"fmt"
)

// FiftyMoveLimit is the fifty-move rule threshold in half-moves
// (50 full moves without a pawn move or capture).
const FiftyMoveLimit = 100

// Move rejection reasons.
var (
	ErrEmptySquare = errors.New("no piece on source square")
	ErrWrongColor  = errors.New("not your piece")
	ErrIllegalMove = errors.New("illegal move")
	ErrExposesKing = errors.New("move would leave your king attacked")
)

// Status is the game state as seen by the side to move.
type Status uint8

const (
	// Ongoing means the side to move has at least one legal move and
	// no draw rule has triggered.
	Ongoing Status = iota

	// Checkmate means the side to move is in check with no legal move.
	Checkmate

	// Stalemate means the side to move has no legal move and is not in
	// check. Draw.
	Stalemate

	// DrawRepetition means some position has occurred three times.
	DrawRepetition

	// DrawFiftyMove means FiftyMoveLimit half-moves have passed without
	// a pawn move or capture.
	DrawFiftyMove
)

// String returns a human-readable description of the status.
func (s Status) String() string {
	switch s {
	case Ongoing:
		return "ongoing"
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	case DrawRepetition:
		return "threefold repetition"
	case DrawFiftyMove:
		return "fifty-move rule"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status ends the game.
func (s Status) Terminal() bool {
	return s != Ongoing
}

// InCheck reports whether c's king is attacked.
func (b *Board) InCheck(c Color) bool {
	return b.Attacked(b.kings[c].Square, c.Other())
}

// Move validates and applies the half-move (from, to) for the side to
// move, then returns the status the opponent now faces. On rejection
// the board is left untouched: every legality probe runs on a clone.
func (b *Board) Move(from, to Square) (Status, error) {
	p := b.PieceAt(from)
	if p == nil {
		return Ongoing, fmt.Errorf("%w: %s is empty", ErrEmptySquare, from)
	}
	if p.Color != b.SideToMove() {
		return Ongoing, fmt.Errorf("%w: %s", ErrWrongColor, p)
	}
	if !containsSquare(b.PseudoMoves(p), to) {
		return Ongoing, fmt.Errorf("%w: %s cannot reach %s", ErrIllegalMove, p, to)
	}
	if !b.legalTo(p, to) {
		return Ongoing, fmt.Errorf("%w: %s to %s", ErrExposesKing, p, to)
	}

	b.apply(from, to)
	return b.Status(), nil
}

// LegalMoves filters p's pseudo-legal moves down to legal ones. Every
// candidate is screened individually.
func (b *Board) LegalMoves(p *Piece) []Square {
	var moves []Square
	for _, to := range b.PseudoMoves(p) {
		if b.legalTo(p, to) {
			moves = append(moves, to)
		}
	}
	return moves
}

// HasLegalMove reports whether c has at least one legal move.
func (b *Board) HasLegalMove(c Color) bool {
	for _, p := range b.pieces[c] {
		for _, to := range b.PseudoMoves(p) {
			if b.legalTo(p, to) {
				return true
			}
		}
	}
	return false
}

// Status evaluates the position for the side to move: checkmate, then
// stalemate, then threefold repetition, then the fifty-move rule.
func (b *Board) Status() Status {
	side := b.SideToMove()
	if !b.HasLegalMove(side) {
		if b.InCheck(side) {
			return Checkmate
		}
		return Stalemate
	}
	if b.RepetitionCount() >= 3 {
		return DrawRepetition
	}
	if b.fiftyClock >= FiftyMoveLimit {
		return DrawFiftyMove
	}
	return Ongoing
}

// legalTo reports whether moving p to to leaves p's king unattacked.
// The probe applies the full move, side effects included, on a clone.
// Castling additionally requires that the king is not currently in
// check and that the square it crosses is not attacked while the king
// stands on it.
func (b *Board) legalTo(p *Piece, to Square) bool {
	from := p.Square

	if p.Kind == King && !p.HasMoved() && abs(to.File()-from.File()) == 2 {
		if b.InCheck(p.Color) {
			return false
		}
		crossed := NewSquare((from.File()+to.File())/2, from.Rank())
		sim := b.Clone()
		sim.apply(from, crossed)
		if sim.InCheck(p.Color) {
			return false
		}
	}

	sim := b.Clone()
	sim.apply(from, to)
	return !sim.InCheck(p.Color)
}

// apply executes a validated half-move with all side effects, in the
// order: fifty-clock reset for pawn moves, capture, en passant
// capture, castling rook hop, the move itself, auto-queen promotion,
// ledger and repetition bookkeeping.
func (b *Board) apply(from, to Square) {
	p := b.squares[from]
	index := len(b.ledger)

	resetClock := p.Kind == Pawn

	if target := b.squares[to]; target != nil {
		b.capture(target)
		resetClock = true
	} else if p.Kind == Pawn && from.File() != to.File() {
		if victim := b.enPassantTarget(p, to); victim != nil {
			b.capture(victim)
		}
	}

	if p.Kind == King && !p.HasMoved() && abs(to.File()-from.File()) == 2 {
		b.castleRookHop(p, from, to, index)
	}

	b.squares[from] = nil
	b.squares[to] = p
	p.Square = to
	p.LastMove = index

	if p.Kind == Pawn && to.Rank() == promotionRank(p.Color) {
		b.capture(p)
		b.place(&Piece{Kind: Queen, Color: p.Color, LastMove: index}, to)
	}

	hm := HalfMove{From: from, To: to, Color: p.Color, Index: index}
	b.ledger = append(b.ledger, hm)
	b.lastMoveBy[p.Color] = &hm
	b.repetitions[b.Signature()]++

	if resetClock {
		b.fiftyClock = 0
	} else {
		b.fiftyClock++
	}
}

// castleRookHop places the rook on the square the king crosses.
func (b *Board) castleRookHop(king *Piece, from, to Square, index int) {
	var rook *Piece
	var rookTo Square
	if to.File() > from.File() {
		rook = b.rooksH[king.Color]
		rookTo = NewSquare(5, from.Rank())
	} else {
		rook = b.rooksA[king.Color]
		rookTo = NewSquare(3, from.Rank())
	}
	if rook == nil || !rook.Alive() {
		return
	}
	b.squares[rook.Square] = nil
	b.squares[rookTo] = rook
	rook.Square = rookTo
	rook.LastMove = index
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
