package chesscom

import (
	"strings"

	"github.com/ayarotskyi/neochess/internal/domain"
)

// deriveWinner determines the winning color from a chess.com game record.
// White wins iff white.result == "win" (case-insensitive), black wins iff
// black.result == "win"; any other combination (draw, abandon, timeout on
// both, etc.) yields no winner.
func deriveWinner(mg MonthlyGame) *domain.Color {
	if strings.EqualFold(mg.White.Result, "win") {
		w := domain.White
		return &w
	}
	if strings.EqualFold(mg.Black.Result, "win") {
		b := domain.Black
		return &b
	}
	return nil
}
