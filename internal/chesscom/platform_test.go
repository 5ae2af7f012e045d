package chesscom_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayarotskyi/neochess/internal/chesscom"
)

type fakeArchivesClient struct {
	archives []string
	monthly  map[string][]chesscom.MonthlyGame
}

func (f *fakeArchivesClient) FetchArchives(ctx context.Context, username string) ([]string, error) {
	return f.archives, nil
}

func (f *fakeArchivesClient) FetchMonthly(ctx context.Context, archiveURL string) ([]chesscom.MonthlyGame, error) {
	return f.monthly[archiveURL], nil
}

func TestFetchGames_StreamsBatchesInArchiveOrder(t *testing.T) {
	fake := &fakeArchivesClient{
		archives: []string{
			"https://api.chess.com/pub/player/u/games/2024/03",
			"https://api.chess.com/pub/player/u/games/2024/04",
		},
		monthly: map[string][]chesscom.MonthlyGame{
			"https://api.chess.com/pub/player/u/games/2024/03": {{PGN: "a"}},
			"https://api.chess.com/pub/player/u/games/2024/04": {{PGN: "b"}, {PGN: "c"}},
		},
	}

	platform := chesscom.NewPlatform(fake)
	count, stream, err := platform.FetchGames(context.Background(), "u", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	first := <-stream
	require.NoError(t, first.Err)
	require.Len(t, first.Games, 1)

	second := <-stream
	require.NoError(t, second.Err)
	require.Len(t, second.Games, 2)

	_, ok := <-stream
	assert.False(t, ok, "stream should close after the last archive")
}

func TestFetchGames_FiltersArchivesBeforeSinceMonth(t *testing.T) {
	fake := &fakeArchivesClient{
		archives: []string{
			"https://api.chess.com/pub/player/u/games/2024/03",
			"https://api.chess.com/pub/player/u/games/2024/06",
		},
		monthly: map[string][]chesscom.MonthlyGame{
			"https://api.chess.com/pub/player/u/games/2024/06": {{PGN: "c"}},
		},
	}

	since := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	platform := chesscom.NewPlatform(fake)
	count, stream, err := platform.FetchGames(context.Background(), "u", &since)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	batch := <-stream
	require.NoError(t, batch.Err)
	assert.Len(t, batch.Games, 1)
}
