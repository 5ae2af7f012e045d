package domain

import (
	"github.com/corentings/chess/v2"

	apperrors "github.com/ayarotskyi/neochess/internal/errors"
)

// Fen is a validated Forsyth-Edwards Notation string. Construct it with
// NewFen when the source is untrusted; use NewFenUnchecked for FEN strings
// this process produced itself (e.g. from the Position Expander), where
// re-validating would only burn CPU.
type Fen struct {
	value string
}

// NewFen validates fenStr against the chess-rule engine before wrapping it.
func NewFen(fenStr string) (Fen, error) {
	if _, err := chess.FEN(fenStr); err != nil {
		return Fen{}, apperrors.NewInvalidFenError(fenStr)
	}
	return Fen{value: fenStr}, nil
}

// NewFenUnchecked wraps a FEN string known to be valid without re-parsing it.
func NewFenUnchecked(fenStr string) Fen {
	return Fen{value: fenStr}
}

func (f Fen) String() string {
	return f.value
}
