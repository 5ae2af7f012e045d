package postgres

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayarotskyi/neochess/internal/chesscom"
	"github.com/ayarotskyi/neochess/internal/domain"
	apperrors "github.com/ayarotskyi/neochess/internal/errors"
	"github.com/ayarotskyi/neochess/internal/logger"
	"github.com/ayarotskyi/neochess/internal/pgn"
	"github.com/ayarotskyi/neochess/internal/repository"
	"github.com/ayarotskyi/neochess/internal/worker"
)

var _ repository.GameRepository = (*Repository)(nil)

var sqlBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var stagingColumns = []string{"id", "white", "white_elo", "black", "black_elo", "winner", "platform", "pgn", "finished_at"}

// ingestChunkSize is the pending-game threshold at which StoreGames stages,
// promotes, and expands what it has accumulated. Whole batches are
// accumulated, so a chunk can exceed it by up to one batch; large backfills
// are still split across several chunks rather than staged all at once.
const ingestChunkSize = 1000

// positionChunkGames bounds how many games' worth of positions are staged
// in one game_position COPY stream.
const positionChunkGames = 300

// Repository is the Postgres-backed Game Repository (§4.3): idempotent bulk
// ingest via staging tables and binary COPY, plus the two read paths the
// rest of the system needs.
type Repository struct {
	pool                 *pgxpool.Pool
	expandPool           *worker.Pool
	copyChunkConcurrency int
	log                  *logger.Logger
}

// NewGameRepository wires a pgxpool-backed Game Repository. expandWorkers/
// expandQueueSize size the Stage C position-expansion pool; copyChunkConcurrency
// bounds how many COPY streams run at once in Stage A and Stage D (≤8, per
// the resource model).
func NewGameRepository(pool *pgxpool.Pool, expandWorkers, expandQueueSize, copyChunkConcurrency int) *Repository {
	if copyChunkConcurrency < 1 {
		copyChunkConcurrency = 1
	}
	if copyChunkConcurrency > 8 {
		copyChunkConcurrency = 8
	}

	expandPool := worker.NewPool(expandWorkers, expandQueueSize)
	expandPool.Start(context.Background())

	return &Repository{
		pool:                 pool,
		expandPool:           expandPool,
		copyChunkConcurrency: copyChunkConcurrency,
		log:                  logger.Default().WithPrefix("game-repository"),
	}
}

// Close stops the position-expansion pool. The pgxpool.Pool itself is
// owned by the caller that opened it.
func (r *Repository) Close() {
	r.expandPool.Stop()
}

// StoreGames drains stream, persisting every valid game exactly once. Games
// across the whole stream are coalesced and ingested each time at least
// ingestChunkSize are pending, plus once more for the remainder at the end.
func (r *Repository) StoreGames(ctx context.Context, platform domain.PlatformName, user string, stream <-chan chesscom.ArchiveBatch, progress chan<- struct{}) ([]uuid.UUID, error) {
	log := logger.FromContext(ctx).WithPrefix("game-repository").WithField("user", user)

	var pending []domain.NewGame
	var stored []uuid.UUID

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		ids, err := r.ingestChunk(ctx, platform, user, pending)
		if err != nil {
			return err
		}
		stored = append(stored, ids...)
		pending = pending[:0]
		return nil
	}

	for batch := range stream {
		if batch.Err != nil {
			log.Error("batch stream terminated with error: %v", batch.Err)
			return stored, batch.Err
		}

		pending = append(pending, batch.Games...)
		if len(pending) >= ingestChunkSize {
			if err := flush(); err != nil {
				return stored, err
			}
		}

		select {
		case progress <- struct{}{}:
		case <-ctx.Done():
			return stored, ctx.Err()
		}
	}

	if err := flush(); err != nil {
		return stored, err
	}

	log.Info("stored %d new games", len(stored))
	return stored, nil
}

type promotedGame struct {
	ID         uuid.UUID
	PGN        string
	FinishedAt time.Time
}

// ingestChunk runs Stages A-E of the bulk ingest pipeline over one
// coalesced group of games.
func (r *Repository) ingestChunk(ctx context.Context, platform domain.PlatformName, user string, games []domain.NewGame) ([]uuid.UUID, error) {
	if len(games) == 0 {
		return nil, nil
	}

	staged := make([]domain.Game, len(games))
	for i, g := range games {
		staged[i] = domain.Game{
			ID:         uuid.New(),
			White:      g.White,
			WhiteElo:   g.WhiteElo,
			Black:      g.Black,
			BlackElo:   g.BlackElo,
			Winner:     g.Winner,
			Platform:   g.Platform,
			PGN:        g.PGN,
			FinishedAt: g.FinishedAt,
		}
	}

	staging := stagingTableName(user, platform)

	if err := r.createStagingTable(ctx, staging); err != nil {
		return nil, apperrors.NewRepositoryDatabaseError(err)
	}
	defer r.dropStagingTable(ctx, staging)

	if err := r.copyToStaging(ctx, staging, staged); err != nil {
		return nil, apperrors.NewRepositoryDatabaseError(err)
	}

	promoted, err := r.promoteToCanonical(ctx, staging)
	if err != nil {
		return nil, apperrors.NewRepositoryDatabaseError(err)
	}

	positions, err := r.expandPositions(ctx, promoted)
	if err != nil {
		return nil, apperrors.NewRepositoryDatabaseError(err)
	}

	if err := r.copyPositions(ctx, positions); err != nil {
		return nil, apperrors.NewRepositoryDatabaseError(err)
	}

	ids := make([]uuid.UUID, len(promoted))
	for i, p := range promoted {
		ids[i] = p.ID
	}
	return ids, nil
}

// stagingTableName derives a deterministic, injection-safe identifier from
// (user, platform) so re-ingests of the same key reuse (and drop-before-
// recreate) the same staging table rather than accumulating new ones.
func stagingTableName(user string, platform domain.PlatformName) pgx.Identifier {
	h := fnv.New64a()
	_, _ = h.Write([]byte(user))
	_, _ = h.Write([]byte{'|'})
	_, _ = h.Write([]byte(platform))
	return pgx.Identifier{fmt.Sprintf("staging_game_%x", h.Sum64())}
}

func (r *Repository) createStagingTable(ctx context.Context, staging pgx.Identifier) error {
	name := staging.Sanitize()
	_, err := r.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, name))
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, fmt.Sprintf(`
CREATE UNLOGGED TABLE %s (
    id uuid,
    white text,
    white_elo smallint,
    black text,
    black_elo smallint,
    winner text,
    platform text,
    pgn text,
    finished_at timestamptz,
    UNIQUE (white, black, finished_at, platform)
)`, name))
	return err
}

func (r *Repository) dropStagingTable(ctx context.Context, staging pgx.Identifier) {
	if _, err := r.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, staging.Sanitize())); err != nil {
		r.log.Warn("failed to drop staging table: %v", err)
	}
}

// copyToStaging shards games into up to copyChunkConcurrency equal pieces
// and streams each piece to the staging table concurrently via binary COPY.
func (r *Repository) copyToStaging(ctx context.Context, staging pgx.Identifier, games []domain.Game) error {
	chunks := chunkGames(games, r.copyChunkConcurrency)

	var wg sync.WaitGroup
	errCh := make(chan error, len(chunks))

	for _, chunk := range chunks {
		wg.Add(1)
		go func(chunk []domain.Game) {
			defer wg.Done()
			_, err := r.pool.CopyFrom(ctx, staging, stagingColumns, pgx.CopyFromSlice(len(chunk), func(i int) ([]any, error) {
				g := chunk[i]
				var winner *string
				if g.Winner != nil {
					w := string(*g.Winner)
					winner = &w
				}
				return []any{g.ID, g.White, g.WhiteElo, g.Black, g.BlackElo, winner, string(g.Platform), g.PGN, g.FinishedAt}, nil
			}))
			if err != nil {
				errCh <- err
			}
		}(chunk)
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

// promoteToCanonical moves staged rows into the canonical game table,
// skipping rows that collide with an already-stored game on the natural
// key. Only newly-inserted rows are returned.
func (r *Repository) promoteToCanonical(ctx context.Context, staging pgx.Identifier) ([]promotedGame, error) {
	query := fmt.Sprintf(`
INSERT INTO game (id, white, white_elo, black, black_elo, winner, platform, pgn, finished_at)
SELECT id, white, white_elo, black, black_elo, winner, platform, pgn, finished_at FROM %s
ON CONFLICT (white, black, finished_at, platform) DO NOTHING
RETURNING id, pgn, finished_at`, staging.Sanitize())

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var promoted []promotedGame
	for rows.Next() {
		var p promotedGame
		if err := rows.Scan(&p.ID, &p.PGN, &p.FinishedAt); err != nil {
			return nil, err
		}
		promoted = append(promoted, p)
	}
	return promoted, rows.Err()
}

// expandJob runs the Position Expander over one promoted game's PGN and
// writes its result into a pre-sized slot, so many games can be expanded
// concurrently over the worker pool without a shared mutex on the result set.
type expandJob struct {
	idx  int
	game promotedGame
	out  [][]domain.GamePosition
	wg   *sync.WaitGroup
	log  *logger.Logger
}

func (j *expandJob) Name() string { return "expand-positions:" + j.game.ID.String() }

func (j *expandJob) Run(ctx context.Context) error {
	defer j.wg.Done()

	expanded, err := pgn.Expand(j.game.PGN)
	if err != nil {
		j.log.Warn("dropping positions for unparsable pgn: game_id=%s err=%v", j.game.ID, err)
		return nil
	}

	rows := make([]domain.GamePosition, len(expanded))
	for i, p := range expanded {
		rows[i] = domain.GamePosition{
			GameID:      j.game.ID,
			MoveIdx:     int16(i),
			FEN:         p.FEN,
			NextMoveUCI: p.NextMoveUCI,
		}
	}
	j.out[j.idx] = rows
	return nil
}

// expandPositions runs Stage C: the Position Expander, fanned out over the
// worker pool, one job per promoted game. A game whose PGN fails to parse
// contributes no rows; its game row still exists (see the error handling
// design for the rationale). Submission blocks on a full queue instead of
// dropping the job, so a chunk larger than the queue backs the fan-out loop
// up rather than silently losing positions for the games past the queue
// size (§4.3 Stage C).
func (r *Repository) expandPositions(ctx context.Context, promoted []promotedGame) ([]domain.GamePosition, error) {
	if len(promoted) == 0 {
		return nil, nil
	}

	out := make([][]domain.GamePosition, len(promoted))
	var wg sync.WaitGroup

	for i, g := range promoted {
		job := &expandJob{idx: i, game: g, out: out, wg: &wg, log: r.log}
		wg.Add(1)
		if err := r.expandPool.SubmitWait(ctx, job); err != nil {
			wg.Done()
			wg.Wait()
			return nil, err
		}
	}
	wg.Wait()

	var positions []domain.GamePosition
	for _, rows := range out {
		positions = append(positions, rows...)
	}
	return positions, nil
}

// copyPositions runs Stage D: chunked, concurrent binary COPY of expanded
// positions into game_position. Chunking is by game count rather than row
// count since a single game's positions must land in the same stream to
// keep the per-game ordering incidental, not load-bearing.
func (r *Repository) copyPositions(ctx context.Context, positions []domain.GamePosition) error {
	if len(positions) == 0 {
		return nil
	}

	byGame := make(map[uuid.UUID][]domain.GamePosition)
	var order []uuid.UUID
	for _, p := range positions {
		if _, ok := byGame[p.GameID]; !ok {
			order = append(order, p.GameID)
		}
		byGame[p.GameID] = append(byGame[p.GameID], p)
	}

	sem := make(chan struct{}, r.copyChunkConcurrency)
	var wg sync.WaitGroup
	errCh := make(chan error, (len(order)/positionChunkGames)+1)

	for start := 0; start < len(order); start += positionChunkGames {
		end := start + positionChunkGames
		if end > len(order) {
			end = len(order)
		}

		var chunkRows []domain.GamePosition
		for _, gameID := range order[start:end] {
			chunkRows = append(chunkRows, byGame[gameID]...)
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(rows []domain.GamePosition) {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := r.pool.CopyFrom(ctx,
				pgx.Identifier{"game_position"},
				[]string{"game_id", "move_idx", "fen", "next_move_uci"},
				pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
					p := rows[i]
					return []any{p.GameID, p.MoveIdx, p.FEN, p.NextMoveUCI}, nil
				}),
			)
			if err != nil {
				errCh <- err
			}
		}(chunkRows)
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

// chunkGames splits games into at most targetChunks pieces, never dividing
// by a count derived from len(games) itself (a zero-length input yields a
// zero-length chunk list, not a divide-by-zero).
func chunkGames(games []domain.Game, targetChunks int) [][]domain.Game {
	if len(games) == 0 {
		return nil
	}
	if targetChunks < 1 {
		targetChunks = 1
	}

	chunkSize := (len(games) + targetChunks - 1) / targetChunks
	if chunkSize < 1 {
		chunkSize = 1
	}

	var chunks [][]domain.Game
	for i := 0; i < len(games); i += chunkSize {
		end := i + chunkSize
		if end > len(games) {
			end = len(games)
		}
		chunks = append(chunks, games[i:end])
	}
	return chunks
}

// GetLatestGameTimestamp returns the maximum finished_at over games where
// user played either side on platform, or nil if the user has no games yet.
func (r *Repository) GetLatestGameTimestamp(ctx context.Context, platform domain.PlatformName, user string) (*time.Time, error) {
	query := `SELECT MAX(finished_at) FROM game WHERE platform = $1 AND (white = $2 OR black = $2)`

	var latest *time.Time
	if err := r.pool.QueryRow(ctx, query, string(platform), user).Scan(&latest); err != nil {
		return nil, apperrors.NewRepositoryDatabaseError(err)
	}
	return latest, nil
}

// GetMoveStats computes the reply distribution at fen for games user played
// as playAs on platform, optionally bounded to [from, to] (§4.5).
func (r *Repository) GetMoveStats(ctx context.Context, fen domain.Fen, user string, playAs domain.Color, platform domain.PlatformName, from, to *time.Time) ([]domain.MoveStat, error) {
	opponentEloCol := "g.black_elo"
	if playAs == domain.Black {
		opponentEloCol = "g.white_elo"
	}
	playerCol := "g.white"
	if playAs == domain.Black {
		playerCol = "g.black"
	}

	query := sqlBuilder.
		Select("gp.next_move_uci", "COUNT(*) AS total").
		Column("SUM(CASE WHEN g.winner = ? THEN 1 ELSE 0 END) AS wins", string(playAs)).
		Column("SUM(CASE WHEN g.winner IS NULL THEN 1 ELSE 0 END) AS draws").
		Column(fmt.Sprintf("ROUND(AVG(%s))::int AS avg_opponent_elo", opponentEloCol)).
		Column("MAX(g.finished_at) AS last_played_at").
		From("game_position gp").
		Join("game g ON g.id = gp.game_id").
		Where(squirrel.Eq{"gp.fen": fen.String()}).
		Where(squirrel.NotEq{"gp.next_move_uci": nil}).
		Where(squirrel.Eq{"g.platform": string(platform)}).
		Where(squirrel.Eq{playerCol: user}).
		GroupBy("gp.next_move_uci")

	if from != nil {
		query = query.Where(squirrel.GtOrEq{"g.finished_at": *from})
	}
	if to != nil {
		query = query.Where(squirrel.LtOrEq{"g.finished_at": *to})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, apperrors.NewRepositoryDatabaseError(err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperrors.NewRepositoryDatabaseError(err)
	}
	defer rows.Close()

	var stats []domain.MoveStat
	for rows.Next() {
		var s domain.MoveStat
		if err := rows.Scan(&s.MoveUCI, &s.TotalGames, &s.Wins, &s.Draws, &s.AvgOpponentElo, &s.LastPlayedAt); err != nil {
			return nil, apperrors.NewRepositoryDatabaseError(err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewRepositoryDatabaseError(err)
	}
	return stats, nil
}
