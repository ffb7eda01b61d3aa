package board

import "strings"

// Render returns a human-readable view of the board oriented for the
// given viewer: White sees rank 8 at the top, Black sees rank 1 at the
// top with files reversed. Pieces use FEN letters (uppercase white),
// empty squares render as '.'.
func (b *Board) Render(viewer Color) string {
	var sb strings.Builder

	for row := 0; row < 8; row++ {
		rank := 7 - row
		if viewer == Black {
			rank = row
		}
		sb.WriteByte('1' + byte(rank))
		for col := 0; col < 8; col++ {
			file := col
			if viewer == Black {
				file = 7 - col
			}
			sb.WriteByte(' ')
			if p := b.squares[NewSquare(file, rank)]; p != nil {
				sb.WriteByte(p.Char())
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}

	sb.WriteByte(' ')
	for col := 0; col < 8; col++ {
		file := col
		if viewer == Black {
			file = 7 - col
		}
		sb.WriteByte(' ')
		sb.WriteByte('a' + byte(file))
	}
	sb.WriteByte('\n')

	return sb.String()
}
