// Package pgn expands a game's movetext into the ordered (fen, next_move_uci)
// pairs the repository bulk-loads into game_position.
package pgn

import (
	"fmt"
	"strings"

	"github.com/corentings/chess/v2"

	apperrors "github.com/ayarotskyi/neochess/internal/errors"
)

// ExpandedPosition is one entry of the ordered sequence the Position
// Expander produces: the board before the move, and the move played from it.
// NextMoveUCI is nil on the terminal position.
type ExpandedPosition struct {
	FEN         string
	NextMoveUCI *string
}

// Expand replays a game's mainline move-by-move and returns the ordered
// sequence of (fen, next_move_uci) pairs described by the Position Expander
// contract. Variations are never entered; only the mainline is walked.
// Returns InvalidPgn if any SAN token cannot be interpreted as a legal move.
func Expand(pgnText string) ([]ExpandedPosition, error) {
	pgnOpt, err := chess.PGN(strings.NewReader(pgnText))
	if err != nil {
		return nil, apperrors.NewInvalidPgnError(err.Error())
	}

	game := chess.NewGame(pgnOpt)
	positions := game.Positions()
	moves := game.Moves()

	if len(positions) == 0 {
		return nil, apperrors.NewInvalidPgnError("no positions produced")
	}
	if len(positions) != len(moves)+1 {
		return nil, apperrors.NewInvalidPgnError(fmt.Sprintf("position/move count mismatch: %d positions for %d moves", len(positions), len(moves)))
	}

	expanded := make([]ExpandedPosition, len(positions))
	for i, pos := range positions {
		expanded[i] = ExpandedPosition{FEN: pos.String()}
		if i < len(moves) {
			uci := moveToUCI(moves[i])
			expanded[i].NextMoveUCI = &uci
		}
	}
	return expanded, nil
}

// moveToUCI renders a move as e.g. "e2e4" or "e7e8q", matching the
// teacher's stockfish-protocol move encoding.
func moveToUCI(move *chess.Move) string {
	if move == nil {
		return ""
	}

	uci := squareToString(move.S1()) + squareToString(move.S2())

	switch move.Promo() {
	case chess.Queen:
		uci += "q"
	case chess.Rook:
		uci += "r"
	case chess.Bishop:
		uci += "b"
	case chess.Knight:
		uci += "n"
	}

	return uci
}

func squareToString(sq chess.Square) string {
	file := sq.File()
	rank := sq.Rank()
	return fmt.Sprintf("%c%c", 'a'+file, '1'+rank)
}
