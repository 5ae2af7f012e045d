package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ayarotskyi/neochess/internal/chesscom"
	"github.com/ayarotskyi/neochess/internal/domain"
)

// MockGameRepository is a configurable fake of repository.GameRepository.
// StoreGames always drains its input stream (ticking progress once per
// batch) since the orchestrator's coalescing tests care about that
// draining behavior, not about asserting call arguments.
type MockGameRepository struct {
	StoreGamesIDs   []uuid.UUID
	StoreGamesErr   error
	LatestTimestamp *time.Time
	LatestErr       error
	MoveStats       []domain.MoveStat
	MoveStatsErr    error

	StoreGamesCalls int
}

func (m *MockGameRepository) StoreGames(ctx context.Context, platform domain.PlatformName, user string, stream <-chan chesscom.ArchiveBatch, progress chan<- struct{}) ([]uuid.UUID, error) {
	m.StoreGamesCalls++

	for batch := range stream {
		if batch.Err != nil {
			return nil, batch.Err
		}
		select {
		case progress <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.StoreGamesIDs, m.StoreGamesErr
}

func (m *MockGameRepository) GetLatestGameTimestamp(ctx context.Context, platform domain.PlatformName, user string) (*time.Time, error) {
	return m.LatestTimestamp, m.LatestErr
}

func (m *MockGameRepository) GetMoveStats(ctx context.Context, fen domain.Fen, user string, playAs domain.Color, platform domain.PlatformName, from, to *time.Time) ([]domain.MoveStat, error) {
	return m.MoveStats, m.MoveStatsErr
}
