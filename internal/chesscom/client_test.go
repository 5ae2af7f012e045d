package chesscom_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayarotskyi/neochess/internal/chesscom"
)

func TestFetchArchives_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "neochess/0.1", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"archives":["https://api.chess.com/pub/player/u/games/2024/05"]}`))
	}))
	defer srv.Close()

	c := chesscom.New(2*time.Second, 1)
	archives, err := fetchArchivesFrom(c, srv.URL)
	require.NoError(t, err)
	assert.Len(t, archives, 1)
}

func TestFetchMonthly_NonTransientStatusYieldsEmptyArchive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := chesscom.New(2*time.Second, 1)
	games, err := c.FetchMonthly(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Nil(t, games)
}

func TestFetchMonthly_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"games":[{"pgn":"1. e4","end_time":1700000000,"white":{"username":"a","rating":1500,"result":"win"},"black":{"username":"b","rating":1600,"result":"checkmated"}}]}`))
	}))
	defer srv.Close()

	c := chesscom.New(2*time.Second, 1)
	games, err := c.FetchMonthly(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "a", games[0].White.Username)
}

// fetchArchivesFrom is a tiny indirection so the archives-index test can
// target httptest's URL instead of the hardcoded chess.com host.
func fetchArchivesFrom(c *chesscom.Client, baseURL string) ([]string, error) {
	return c.FetchArchivesFromURL(context.Background(), baseURL)
}
