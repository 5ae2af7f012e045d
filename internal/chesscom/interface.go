package chesscom

import (
	"context"
	"time"
)

// PlatformClient is the Ingest Orchestrator's view of the Platform Client
// contract (§4.2). Implemented by *Platform; mocked by tests.
type PlatformClient interface {
	FetchGames(ctx context.Context, username string, since *time.Time) (int, <-chan ArchiveBatch, error)
}

var _ PlatformClient = (*Platform)(nil)
