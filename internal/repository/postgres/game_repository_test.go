package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayarotskyi/neochess/internal/domain"
	"github.com/ayarotskyi/neochess/internal/logger"
	"github.com/ayarotskyi/neochess/internal/worker"
)

func TestChunkGames_SplitsIntoAtMostTargetChunks(t *testing.T) {
	games := make([]domain.Game, 17)
	chunks := chunkGames(games, 4)

	assert.LessOrEqual(t, len(chunks), 4)

	var total int
	for _, c := range chunks {
		total += len(c)
	}
	assert.Equal(t, 17, total)
}

func TestChunkGames_EmptyInputYieldsNoChunks(t *testing.T) {
	assert.Empty(t, chunkGames(nil, 8))
}

func TestChunkGames_NeverPanicsWhenSmallerThanTargetChunks(t *testing.T) {
	games := make([]domain.Game, 3)
	chunks := chunkGames(games, 8)

	var total int
	for _, c := range chunks {
		total += len(c)
	}
	assert.Equal(t, 3, total)
}

func TestStagingTableName_DeterministicPerUserAndPlatform(t *testing.T) {
	a := stagingTableName("magnus", domain.PlatformChessCom)
	b := stagingTableName("magnus", domain.PlatformChessCom)
	c := stagingTableName("hikaru", domain.PlatformChessCom)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestExpandJob_DropsPositionsOnUnparsablePgn(t *testing.T) {
	out := make([][]domain.GamePosition, 1)
	var wg sync.WaitGroup
	wg.Add(1)

	job := &expandJob{
		idx:  0,
		game: promotedGame{ID: uuid.New(), PGN: "not a real pgn movetext 1. Zz9", FinishedAt: time.Now()},
		out:  out,
		wg:   &wg,
		log:  logger.Default(),
	}
	err := job.Run(context.Background())

	assert.NoError(t, err)
	assert.Nil(t, out[0])
}

// TestExpandPositions_FanOutExceedsQueueSizeDropsNothing guards against the
// Stage C fan-out silently losing positions for games past the expand
// pool's queue size: with a chunk much larger than the queue, every
// parseable game must still contribute rows instead of some being skipped
// once the non-blocking submit path would have rejected them.
func TestExpandPositions_FanOutExceedsQueueSizeDropsNothing(t *testing.T) {
	pool := worker.NewPool(2, 1)
	pool.Start(context.Background())
	defer pool.Stop()

	r := &Repository{expandPool: pool, log: logger.Default()}

	const gameCount = 20
	promoted := make([]promotedGame, gameCount)
	for i := range promoted {
		promoted[i] = promotedGame{ID: uuid.New(), PGN: "1. e4 e5 2. Nf3", FinishedAt: time.Now()}
	}

	positions, err := r.expandPositions(context.Background(), promoted)
	require.NoError(t, err)

	byGame := make(map[uuid.UUID]int)
	for _, p := range positions {
		byGame[p.GameID]++
	}
	assert.Len(t, byGame, gameCount, "every promoted game must contribute positions, not just the ones that fit in the queue")
	for _, g := range promoted {
		assert.NotZero(t, byGame[g.ID])
	}
}

func TestExpandPositions_EmptyInputReturnsNoRows(t *testing.T) {
	r := &Repository{log: logger.Default()}
	positions, err := r.expandPositions(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, positions)
}

func TestExpandJob_PopulatesPositionsOnValidPgn(t *testing.T) {
	out := make([][]domain.GamePosition, 1)
	var wg sync.WaitGroup
	wg.Add(1)

	gameID := uuid.New()
	job := &expandJob{
		idx:  0,
		game: promotedGame{ID: gameID, PGN: "1. e4 e5 2. Nf3", FinishedAt: time.Now()},
		out:  out,
		wg:   &wg,
		log:  logger.Default(),
	}
	err := job.Run(context.Background())

	assert.NoError(t, err)
	assert.NotEmpty(t, out[0])
	for _, p := range out[0] {
		assert.Equal(t, gameID, p.GameID)
	}
}
