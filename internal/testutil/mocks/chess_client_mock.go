package mocks

import (
	"context"
	"time"

	"github.com/ayarotskyi/neochess/internal/chesscom"
)

// MockPlatformClient is a configurable fake of chesscom.PlatformClient.
type MockPlatformClient struct {
	ArchiveCount int
	Batches      []chesscom.ArchiveBatch
	Err          error

	FetchGamesCalls int
}

func (m *MockPlatformClient) FetchGames(ctx context.Context, username string, since *time.Time) (int, <-chan chesscom.ArchiveBatch, error) {
	m.FetchGamesCalls++

	if m.Err != nil {
		return 0, nil, m.Err
	}

	out := make(chan chesscom.ArchiveBatch, len(m.Batches))
	for _, b := range m.Batches {
		out <- b
	}
	close(out)

	return m.ArchiveCount, out, nil
}
