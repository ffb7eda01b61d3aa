package board

// Color represents the color of a piece or player.
type Color uint8

const (
	White Color = iota
	Black
)

// Other returns the opposite color.
func (c Color) Other() Color {
	return c ^ 1
}

// String returns the color name.
func (c Color) String() string {
	if c == White {
		return "White"
	}
	return "Black"
}

// Kind represents the type of a chess piece.
type Kind uint8

const (
	Pawn Kind = iota
	Knight
	Bishop
	Rook
	Queen
	King
)

// String returns the piece kind name.
func (k Kind) String() string {
	switch k {
	case Pawn:
		return "Pawn"
	case Knight:
		return "Knight"
	case Bishop:
		return "Bishop"
	case Rook:
		return "Rook"
	case Queen:
		return "Queen"
	case King:
		return "King"
	default:
		return "None"
	}
}

// Char returns the FEN-style character for a piece of this kind and
// the given color: uppercase for white, lowercase for black.
func (k Kind) Char(c Color) byte {
	chars := "PNBRQK"
	ch := chars[k]
	if c == Black {
		ch += 'a' - 'A'
	}
	return ch
}

// NeverMoved is the LastMove value of a piece that has not moved yet.
const NeverMoved = -1

// Piece is a single chessman. A piece is created at board setup (or by
// pawn promotion) and destroyed on capture. Square is NoSquare exactly
// when the piece has been captured; a captured piece is also absent
// from the board array and from its color's live set.
//
// LastMove records the half-move ledger index at which the piece last
// moved, or NeverMoved. It decides castling eligibility (king and rook
// must both be unmoved) and whether an enemy pawn's most recent move
// opened an en passant window.
type Piece struct {
	Kind     Kind
	Color    Color
	Square   Square
	LastMove int
}

// Alive reports whether the piece is still on the board.
func (p *Piece) Alive() bool {
	return p.Square != NoSquare
}

// HasMoved reports whether the piece has moved at least once.
func (p *Piece) HasMoved() bool {
	return p.LastMove != NeverMoved
}

// Char returns the FEN-style character for the piece.
func (p *Piece) Char() byte {
	return p.Kind.Char(p.Color)
}

// String returns e.g. "White Queen d1".
func (p *Piece) String() string {
	return p.Color.String() + " " + p.Kind.String() + " " + p.Square.String()
}
