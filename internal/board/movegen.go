package board

// Movement patterns. Knight offsets are the eight (1,2) jumps; royal
// steps are shared by the king (single step) and the queen (sliding).
var (
	rookDirs   = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	bishopDirs = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	royalDirs  = [8][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {1, -1}, {-1, 1}, {-1, -1}}

	knightJumps = [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
)

// pawnDir returns the forward rank direction for a pawn of color c.
func pawnDir(c Color) int {
	if c == White {
		return 1
	}
	return -1
}

// pawnStartRank returns the starting rank index for pawns of color c.
func pawnStartRank(c Color) int {
	if c == White {
		return 1
	}
	return 6
}

// promotionRank returns the furthest rank index for pawns of color c.
func promotionRank(c Color) int {
	if c == White {
		return 7
	}
	return 0
}

// PseudoMoves returns the pseudo-legal destination squares of p:
// squares reachable by the piece's movement pattern that are in-bounds
// and not blocked by a friendly piece. Pseudo-legal moves may leave the
// mover's own king in check; the legality filter screens them out.
//
// For the king the set includes castling destinations whenever the
// king and the involved rook are unmoved and the between squares are
// empty. The attack conditions of castling are finalized by the
// legality filter.
func (b *Board) PseudoMoves(p *Piece) []Square {
	switch p.Kind {
	case Pawn:
		return b.pawnMoves(p)
	case Knight:
		return b.stepMoves(p, knightJumps[:])
	case Bishop:
		return b.slideMoves(p, bishopDirs[:])
	case Rook:
		return b.slideMoves(p, rookDirs[:])
	case Queen:
		return b.slideMoves(p, royalDirs[:])
	case King:
		moves := b.stepMoves(p, royalDirs[:])
		return append(moves, b.castleMoves(p)...)
	}
	return nil
}

// slideMoves walks outward along each direction, collecting empty
// squares, stopping on the first occupied square (which is collected
// only when it holds an enemy piece).
func (b *Board) slideMoves(p *Piece, dirs [][2]int) []Square {
	var moves []Square
	for _, d := range dirs {
		for sq := p.Square.Offset(d[0], d[1]); sq.IsValid(); sq = sq.Offset(d[0], d[1]) {
			target := b.squares[sq]
			if target == nil {
				moves = append(moves, sq)
				continue
			}
			if target.Color != p.Color {
				moves = append(moves, sq)
			}
			break
		}
	}
	return moves
}

// stepMoves collects each single-step target that is in-bounds and not
// friendly-occupied.
func (b *Board) stepMoves(p *Piece, steps [][2]int) []Square {
	var moves []Square
	for _, s := range steps {
		sq := p.Square.Offset(s[0], s[1])
		if !sq.IsValid() {
			continue
		}
		if target := b.squares[sq]; target == nil || target.Color != p.Color {
			moves = append(moves, sq)
		}
	}
	return moves
}

// pawnMoves collects forward pushes, diagonal captures and en passant.
func (b *Board) pawnMoves(p *Piece) []Square {
	var moves []Square
	dir := pawnDir(p.Color)

	if one := p.Square.Offset(0, dir); one.IsValid() && b.squares[one] == nil {
		moves = append(moves, one)
		if p.Square.Rank() == pawnStartRank(p.Color) {
			if two := p.Square.Offset(0, 2*dir); b.squares[two] == nil {
				moves = append(moves, two)
			}
		}
	}

	for _, df := range [2]int{-1, 1} {
		sq := p.Square.Offset(df, dir)
		if !sq.IsValid() {
			continue
		}
		if target := b.squares[sq]; target != nil && target.Color != p.Color {
			moves = append(moves, sq)
		} else if target == nil && b.enPassantTarget(p, sq) != nil {
			moves = append(moves, sq)
		}
	}

	return moves
}

// enPassantTarget returns the enemy pawn captured when p moves
// diagonally to the empty square to, or nil when no en passant window
// is open. The window exists only when the pawn alongside the target
// (same file as to, same rank as p) made the opponent's most recent
// move and that move was a two-square advance.
func (b *Board) enPassantTarget(p *Piece, to Square) *Piece {
	alongside := NewSquare(to.File(), p.Square.Rank())
	victim := b.squares[alongside]
	if victim == nil || victim.Kind != Pawn || victim.Color == p.Color {
		return nil
	}

	last := b.lastMoveBy[p.Color.Other()]
	if last == nil || last.To != alongside {
		return nil
	}
	if last.From.Rank() != pawnStartRank(victim.Color) {
		return nil
	}
	return victim
}

// castleMoves offers the two-file king moves whose non-attack
// conditions hold: king unmoved, rook alive and unmoved, all squares
// strictly between them empty.
func (b *Board) castleMoves(king *Piece) []Square {
	if king.HasMoved() {
		return nil
	}

	var moves []Square
	rank := king.Square.Rank()

	// King side: king e->g, rook h->f.
	if rook := b.rooksH[king.Color]; rookEligible(rook) &&
		b.IsEmpty(NewSquare(5, rank)) && b.IsEmpty(NewSquare(6, rank)) {
		moves = append(moves, NewSquare(6, rank))
	}

	// Queen side: king e->c, rook a->d.
	if rook := b.rooksA[king.Color]; rookEligible(rook) &&
		b.IsEmpty(NewSquare(1, rank)) && b.IsEmpty(NewSquare(2, rank)) && b.IsEmpty(NewSquare(3, rank)) {
		moves = append(moves, NewSquare(2, rank))
	}

	return moves
}

func rookEligible(rook *Piece) bool {
	return rook != nil && rook.Alive() && !rook.HasMoved()
}

// Attacked reports whether sq is attacked by any live piece of color
// by. Attack patterns differ from move patterns in two ways: pawns
// attack only their two forward diagonals (a push never attacks), and
// the king contributes its single steps but never castling. Both keep
// attack detection recursion-free, and two kings can never stand
// adjacent.
func (b *Board) Attacked(sq Square, by Color) bool {
	for _, p := range b.pieces[by] {
		if b.attacks(p, sq) {
			return true
		}
	}
	return false
}

// attacks reports whether p attacks sq.
func (b *Board) attacks(p *Piece, sq Square) bool {
	switch p.Kind {
	case Pawn:
		dir := pawnDir(p.Color)
		return p.Square.Offset(-1, dir) == sq || p.Square.Offset(1, dir) == sq
	case Knight:
		return containsSquare(b.stepMoves(p, knightJumps[:]), sq)
	case Bishop:
		return containsSquare(b.slideMoves(p, bishopDirs[:]), sq)
	case Rook:
		return containsSquare(b.slideMoves(p, rookDirs[:]), sq)
	case Queen:
		return containsSquare(b.slideMoves(p, royalDirs[:]), sq)
	case King:
		return containsSquare(b.stepMoves(p, royalDirs[:]), sq)
	}
	return false
}

func containsSquare(squares []Square, sq Square) bool {
	for _, s := range squares {
		if s == sq {
			return true
		}
	}
	return false
}
