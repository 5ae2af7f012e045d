// Package repository defines the Game Repository contract (§4.3): bulk
// idempotent ingest of freshly-fetched games plus the two read paths the
// rest of the system needs (latest-timestamp resume point, per-position
// move statistics).
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ayarotskyi/neochess/internal/chesscom"
	"github.com/ayarotskyi/neochess/internal/domain"
)

// GameRepository persists ingested games idempotently and serves the
// aggregation queries built on top of them.
type GameRepository interface {
	// StoreGames drains stream to completion, persisting every valid game
	// exactly once regardless of how many times the same game is seen
	// across calls, and returns the ids of games newly stored by this
	// call. One struct{} is sent on progress per batch consumed from
	// stream, whether or not that batch yielded new rows.
	StoreGames(ctx context.Context, platform domain.PlatformName, user string, stream <-chan chesscom.ArchiveBatch, progress chan<- struct{}) ([]uuid.UUID, error)

	// GetLatestGameTimestamp returns the maximum FinishedAt over games
	// where user played either side on platform, or nil if none exist.
	GetLatestGameTimestamp(ctx context.Context, platform domain.PlatformName, user string) (*time.Time, error)

	// GetMoveStats returns the reply distribution at fen for games user
	// played as playAs on platform, optionally bounded to [from, to].
	GetMoveStats(ctx context.Context, fen domain.Fen, user string, playAs domain.Color, platform domain.PlatformName, from, to *time.Time) ([]domain.MoveStat, error)
}
