// Package chesscom implements the Platform Client contract against the
// chess.com public API: archive discovery, per-archive game fetch with
// retry, and the NewGame mapping described by the external interfaces.
package chesscom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	apperrors "github.com/ayarotskyi/neochess/internal/errors"
	"github.com/ayarotskyi/neochess/internal/logger"
)

const userAgent = "neochess/0.1"

// Client is the low-level chess.com HTTP transport: request construction,
// retry, and response-shape mapping. Callers wanting the Platform Client
// contract (archive count + ordered batch stream) use Platform, not Client,
// directly.
type Client struct {
	httpClient *http.Client
	maxRetries uint64
	log        *logger.Logger
}

// New builds a Client with a polite User-Agent, a per-request timeout, and
// bounded exponential-backoff retry.
func New(requestTimeout time.Duration, maxRetries uint64) *Client {
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}
	if maxRetries == 0 {
		maxRetries = 3
	}
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		maxRetries: maxRetries,
		log:        logger.Default().WithPrefix("chesscom"),
	}
}

type archivesResp struct {
	Archives []string `json:"archives"`
}

// MonthlyGame is one game record as chess.com's archive endpoint returns it.
type MonthlyGame struct {
	PGN     string `json:"pgn"`
	EndTime int64  `json:"end_time"`
	White   Player `json:"white"`
	Black   Player `json:"black"`
}

// Player is one side's identity, rating, and result tag within a game record.
type Player struct {
	Username string `json:"username"`
	Rating   int16  `json:"rating"`
	Result   string `json:"result"`
}

// nonRetryableStatus is returned by doWithRetry to signal a 4xx response
// (other than 429) that the caller should handle itself rather than treat
// as a transport failure; it is never wrapped in an AppError.
type nonRetryableStatus struct {
	status int
	body   string
}

func (e *nonRetryableStatus) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.body)
}

// doWithRetry executes one GET request, retrying transient failures
// (network errors, 429, 5xx) with exponential backoff bounded to
// c.maxRetries retries after the first attempt. A non-transient 4xx is returned as
// *nonRetryableStatus without being retried.
func (c *Client) doWithRetry(ctx context.Context, url string) (*http.Response, error) {
	var resp *http.Response

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", userAgent)

		r, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}

		switch {
		case r.StatusCode == http.StatusOK:
			resp = r
			return nil
		case r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= 500:
			body, _ := io.ReadAll(io.LimitReader(r.Body, 1024))
			r.Body.Close()
			return fmt.Errorf("transient status %d: %s", r.StatusCode, string(body))
		default:
			body, _ := io.ReadAll(io.LimitReader(r.Body, 1024))
			r.Body.Close()
			return backoff.Permanent(&nonRetryableStatus{status: r.StatusCode, body: string(body)})
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return resp, nil
}

// FetchArchives returns the chronological list of monthly archive URLs for a
// user. A non-2xx response here always aborts the call: there is no
// denominator to report progress against without it.
func (c *Client) FetchArchives(ctx context.Context, username string) ([]string, error) {
	url := fmt.Sprintf("https://api.chess.com/pub/player/%s/games/archives", username)
	return c.FetchArchivesFromURL(ctx, url)
}

// FetchArchivesFromURL is FetchArchives with the archives-index URL
// supplied directly, rather than built from a username. Exported so tests
// can point it at an httptest.Server instead of the real chess.com host.
func (c *Client) FetchArchivesFromURL(ctx context.Context, url string) ([]string, error) {
	log := logger.FromContext(ctx).WithPrefix("chesscom").WithField("url", url)

	log.Debug("fetching archives from: %s", url)
	start := time.Now()

	resp, err := c.doWithRetry(ctx, url)
	if err != nil {
		var status *nonRetryableStatus
		if ok := asNonRetryableStatus(err, &status); ok {
			log.Error("archives request failed: status=%d", status.status)
			return nil, apperrors.NewPlatformAPIError(status.status, status.body)
		}
		log.Error("failed to fetch archives: %v", err)
		return nil, apperrors.NewPlatformNetworkError(err)
	}
	defer resp.Body.Close()

	log.Debug("archives response received in %v", time.Since(start))

	var out archivesResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Error("failed to decode archives response: %v", err)
		return nil, apperrors.NewPlatformParseError(err)
	}

	log.Info("fetched %d archives", len(out.Archives))
	return out.Archives, nil
}

// FetchMonthly fetches one archive's games. A non-transient 4xx is treated
// as an empty archive (nil, nil) rather than an error, per the platform's
// sporadic 403s on otherwise-valid URLs; a network/5xx failure after retry
// exhaustion is returned as an error.
func (c *Client) FetchMonthly(ctx context.Context, archiveURL string) ([]MonthlyGame, error) {
	log := logger.FromContext(ctx).WithPrefix("chesscom").WithField("archive_url", archiveURL)

	log.Debug("fetching monthly games")
	start := time.Now()

	resp, err := c.doWithRetry(ctx, archiveURL)
	if err != nil {
		var status *nonRetryableStatus
		if ok := asNonRetryableStatus(err, &status); ok {
			log.Warn("archive fetch failed with non-transient status %d, treating as empty archive", status.status)
			return nil, nil
		}
		log.Error("failed to fetch monthly games: %v", err)
		return nil, apperrors.NewPlatformNetworkError(err)
	}
	defer resp.Body.Close()

	log.Debug("monthly response received in %v", time.Since(start))

	var payload struct {
		Games []MonthlyGame `json:"games"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.Error("failed to decode monthly response: %v", err)
		return nil, apperrors.NewPlatformParseError(err)
	}

	log.Info("fetched %d games from archive", len(payload.Games))
	return payload.Games, nil
}

func asNonRetryableStatus(err error, target **nonRetryableStatus) bool {
	if s, ok := err.(*nonRetryableStatus); ok {
		*target = s
		return true
	}
	return false
}
