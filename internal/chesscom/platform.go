package chesscom

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ayarotskyi/neochess/internal/domain"
	"github.com/ayarotskyi/neochess/internal/logger"
)

// ArchiveBatch is one archive's worth of parsed game records, or the error
// that terminated the stream. A batch with Err set is always the final item.
type ArchiveBatch struct {
	Games []domain.NewGame
	Err   error
}

// ArchivesClient is the subset of Client the Platform Client drives. Kept
// as an interface so Platform can be tested against a fake.
type ArchivesClient interface {
	FetchArchives(ctx context.Context, username string) ([]string, error)
	FetchMonthly(ctx context.Context, archiveURL string) ([]MonthlyGame, error)
}

var _ ArchivesClient = (*Client)(nil)

// Platform implements the Platform Client contract (§4.2): archive
// discovery, since-timestamp filtering, and chronological per-archive
// streaming with retry.
type Platform struct {
	client ArchivesClient
	log    *logger.Logger
}

// NewPlatform wraps an ArchivesClient with the discovery/streaming contract.
func NewPlatform(client ArchivesClient) *Platform {
	return &Platform{client: client, log: logger.Default().WithPrefix("chesscom-platform")}
}

// FetchGames discovers the user's monthly archives (optionally filtered by
// since), and returns the archive count plus a channel that receives one
// ArchiveBatch per archive, strictly in chronological archive order. The
// channel is closed after the final batch or the first error.
func (p *Platform) FetchGames(ctx context.Context, username string, since *time.Time) (int, <-chan ArchiveBatch, error) {
	archives, err := p.client.FetchArchives(ctx, username)
	if err != nil {
		return 0, nil, err
	}

	if since != nil {
		archives = filterArchivesBySinceMonth(archives, *since)
	}

	out := make(chan ArchiveBatch, 1000)
	go p.stream(ctx, archives, out)

	return len(archives), out, nil
}

func (p *Platform) stream(ctx context.Context, archives []string, out chan<- ArchiveBatch) {
	defer close(out)

	for _, archiveURL := range archives {
		monthly, err := p.client.FetchMonthly(ctx, archiveURL)
		if err != nil {
			select {
			case out <- ArchiveBatch{Err: err}:
			case <-ctx.Done():
			}
			return
		}

		games := make([]domain.NewGame, 0, len(monthly))
		for _, mg := range monthly {
			games = append(games, toNewGame(mg))
		}

		select {
		case out <- ArchiveBatch{Games: games}:
		case <-ctx.Done():
			return
		}
	}
}

// filterArchivesBySinceMonth drops archives strictly older than since's
// (year, month). This is advisory only: a boundary-month archive may still
// contain games that predate since, which Stage B's natural-key dedup
// harmlessly re-skips on re-ingest.
func filterArchivesBySinceMonth(archives []string, since time.Time) []string {
	sinceYear, sinceMonth := since.Year(), int(since.Month())

	filtered := make([]string, 0, len(archives))
	for _, archiveURL := range archives {
		year, month, ok := parseArchiveYearMonth(archiveURL)
		if !ok {
			filtered = append(filtered, archiveURL)
			continue
		}
		if year > sinceYear || (year == sinceYear && month >= sinceMonth) {
			filtered = append(filtered, archiveURL)
		}
	}
	return filtered
}

// parseArchiveYearMonth extracts (year, month) from an archive URL ending
// in /YYYY/MM.
func parseArchiveYearMonth(archiveURL string) (year, month int, ok bool) {
	parts := strings.Split(strings.TrimRight(archiveURL, "/"), "/")
	if len(parts) < 2 {
		return 0, 0, false
	}
	monthStr, yearStr := parts[len(parts)-1], parts[len(parts)-2]

	m, err := strconv.Atoi(monthStr)
	if err != nil {
		return 0, 0, false
	}
	y, err := strconv.Atoi(yearStr)
	if err != nil {
		return 0, 0, false
	}
	return y, m, true
}

// toNewGame maps a chess.com game record to the domain's NewGame, deriving
// winner from each side's result tag.
func toNewGame(mg MonthlyGame) domain.NewGame {
	return domain.NewGame{
		White:      mg.White.Username,
		WhiteElo:   mg.White.Rating,
		Black:      mg.Black.Username,
		BlackElo:   mg.Black.Rating,
		Winner:     deriveWinner(mg),
		Platform:   domain.PlatformChessCom,
		PGN:        mg.PGN,
		FinishedAt: time.Unix(mg.EndTime, 0).UTC(),
	}
}
