package domain

import (
	"time"

	"github.com/google/uuid"
)

// NewGame is an unpersisted game record as parsed off the platform, ready
// for the repository's bulk ingest pipeline. It carries no id: the
// repository assigns one when it stages the game for ingest.
type NewGame struct {
	White       string
	WhiteElo    int16
	Black       string
	BlackElo    int16
	Winner      *Color
	Platform    PlatformName
	PGN         string
	FinishedAt  time.Time
}

// Game is a persisted, immutable record of one completed game.
type Game struct {
	ID         uuid.UUID
	White      string
	WhiteElo   int16
	Black      string
	BlackElo   int16
	Winner     *Color
	Platform   PlatformName
	PGN        string
	FinishedAt time.Time
}

// GamePosition is one half-move of one game, denormalized with its FEN so
// the aggregation query never needs a join against a separate position table.
type GamePosition struct {
	GameID      uuid.UUID
	MoveIdx     int16
	FEN         string
	NextMoveUCI *string
}

// MoveStat is one row of the per-position reply distribution.
type MoveStat struct {
	MoveUCI        string
	TotalGames     int64
	Wins           int64
	Draws          int64
	AvgOpponentElo int
	LastPlayedAt   time.Time
}
