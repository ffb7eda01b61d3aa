package board

// HalfMove is one entry of the move ledger.
type HalfMove struct {
	From  Square
	To    Square
	Color Color
	Index int
}

// Board holds the full game position: the 8x8 array, the per-color
// live-piece registries, king and original-rook pointers for castling,
// the half-move ledger, the position-repetition ledger and the
// fifty-move clock.
//
// A Board is owned by a single session goroutine and needs no locking.
// All legality probes run on a Clone, so a rejected move never mutates
// the position.
type Board struct {
	squares [64]*Piece
	pieces  [2][]*Piece

	kings  [2]*Piece
	rooksA [2]*Piece
	rooksH [2]*Piece

	ledger     []HalfMove
	lastMoveBy [2]*HalfMove

	// repetitions counts occurrences of each position signature,
	// including the starting position. Threefold repetition triggers
	// at count 3.
	repetitions map[string]int

	// fiftyClock counts half-moves since the last pawn move or
	// capture. The fifty-move rule triggers at 100 half-moves.
	fiftyClock int
}

// backRank is the piece order on each color's first rank.
var backRank = [8]Kind{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// New creates a board in the standard opening position.
func New() *Board {
	b := &Board{repetitions: make(map[string]int)}

	for file := 0; file < 8; file++ {
		b.place(&Piece{Kind: backRank[file], Color: White, LastMove: NeverMoved}, NewSquare(file, 0))
		b.place(&Piece{Kind: Pawn, Color: White, LastMove: NeverMoved}, NewSquare(file, 1))
		b.place(&Piece{Kind: Pawn, Color: Black, LastMove: NeverMoved}, NewSquare(file, 6))
		b.place(&Piece{Kind: backRank[file], Color: Black, LastMove: NeverMoved}, NewSquare(file, 7))
	}

	b.kings[White] = b.squares[E1]
	b.kings[Black] = b.squares[E8]
	b.rooksA[White] = b.squares[A1]
	b.rooksH[White] = b.squares[H1]
	b.rooksA[Black] = b.squares[A8]
	b.rooksH[Black] = b.squares[H8]

	// The starting position is the first occurrence of itself.
	b.repetitions[b.Signature()] = 1

	return b
}

// place registers a new piece on the board and in its color's live set.
func (b *Board) place(p *Piece, sq Square) {
	p.Square = sq
	b.squares[sq] = p
	b.pieces[p.Color] = append(b.pieces[p.Color], p)
}

// capture removes a piece from the array and its live set in one step.
func (b *Board) capture(p *Piece) {
	b.squares[p.Square] = nil
	p.Square = NoSquare
	live := b.pieces[p.Color]
	for i, q := range live {
		if q == p {
			b.pieces[p.Color] = append(live[:i], live[i+1:]...)
			break
		}
	}
}

// PieceAt returns the piece on sq, or nil when the square is empty or
// off the board.
func (b *Board) PieceAt(sq Square) *Piece {
	if !sq.IsValid() {
		return nil
	}
	return b.squares[sq]
}

// IsEmpty reports whether sq is a valid empty square.
func (b *Board) IsEmpty(sq Square) bool {
	return sq.IsValid() && b.squares[sq] == nil
}

// Pieces returns the live pieces of the given color. The returned
// slice is owned by the board; callers must not mutate it.
func (b *Board) Pieces(c Color) []*Piece {
	return b.pieces[c]
}

// King returns the given color's king.
func (b *Board) King(c Color) *Piece {
	return b.kings[c]
}

// HalfMoves returns the number of completed half-moves.
func (b *Board) HalfMoves() int {
	return len(b.ledger)
}

// SideToMove returns the color whose turn it is: White on even
// half-move indices, Black on odd.
func (b *Board) SideToMove() Color {
	if len(b.ledger)%2 == 0 {
		return White
	}
	return Black
}

// LastMoveBy returns the most recent half-move played by c, or nil.
func (b *Board) LastMoveBy(c Color) *HalfMove {
	return b.lastMoveBy[c]
}

// Ledger returns the half-move ledger, oldest first. The returned
// slice is owned by the board; callers must not mutate it.
func (b *Board) Ledger() []HalfMove {
	return b.ledger
}

// FiftyClock returns the number of half-moves since the last pawn move
// or capture.
func (b *Board) FiftyClock() int {
	return b.fiftyClock
}

// RepetitionCount returns how many times the current position has
// occurred over the full move history.
func (b *Board) RepetitionCount() int {
	return b.repetitions[b.Signature()]
}

// Signature returns the position signature used by the repetition
// ledger: one FEN-style character per square, '.' for empty, a1 first.
// Castling rights and the en passant window are deliberately not part
// of the signature.
func (b *Board) Signature() string {
	var sig [64]byte
	for sq := A1; sq <= H8; sq++ {
		if p := b.squares[sq]; p != nil {
			sig[sq] = p.Char()
		} else {
			sig[sq] = '.'
		}
	}
	return string(sig[:])
}

// Clone returns a deep copy of the board. Piece identity is preserved
// structurally: every piece, registry pointer and ledger entry is
// copied, so mutating the clone never touches the original.
func (b *Board) Clone() *Board {
	c := &Board{
		fiftyClock:  b.fiftyClock,
		repetitions: make(map[string]int, len(b.repetitions)),
	}

	remap := make(map[*Piece]*Piece, len(b.pieces[White])+len(b.pieces[Black]))
	for _, side := range [2]Color{White, Black} {
		c.pieces[side] = make([]*Piece, len(b.pieces[side]))
		for i, p := range b.pieces[side] {
			cp := *p
			c.pieces[side][i] = &cp
			remap[p] = &cp
			if p.Square != NoSquare {
				c.squares[p.Square] = &cp
			}
		}
		c.kings[side] = remap[b.kings[side]]
		c.rooksA[side] = remap[b.rooksA[side]]
		c.rooksH[side] = remap[b.rooksH[side]]
	}

	c.ledger = make([]HalfMove, len(b.ledger))
	copy(c.ledger, b.ledger)
	for _, side := range [2]Color{White, Black} {
		if b.lastMoveBy[side] != nil {
			hm := *b.lastMoveBy[side]
			c.lastMoveBy[side] = &hm
		}
	}
	for k, v := range b.repetitions {
		c.repetitions[k] = v
	}

	return c
}
