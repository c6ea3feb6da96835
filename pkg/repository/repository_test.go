package repository_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strikeline/strikeline/pkg/logger"
	"github.com/strikeline/strikeline/pkg/repository"
	"github.com/strikeline/strikeline/pkg/types"
)

func purchased(ticker string, score float64) types.Position {
	ts := time.Date(2026, 8, 25, 14, 30, 0, 0, time.UTC)
	return types.Position{
		Key:                types.NewKey(ticker, "2026-09-18", 90, 95),
		Status:             types.StatusPurchased,
		Score:              score,
		Premium:            1.25,
		Collateral:         375,
		ReturnOnCollateral: 0.3333,
		Width:              5,
		ShortDelta:         -0.22,
		OpenInterest:       600,
		BidAskPct:          0.04,
		Quantity:           1,
		Created:            ts,
		Updated:            ts,
	}
}

func TestCSVSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.csv")
	repo := repository.NewCSV(path, logger.Default())

	want := []types.Position{purchased("QQQ", 64), purchased("SPY", 72)}
	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCSVSaveMergesByKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.csv")
	repo := repository.NewCSV(path, logger.Default())

	require.NoError(t, repo.Save(context.Background(), []types.Position{purchased("SPY", 72)}))
	require.NoError(t, repo.Save(context.Background(), []types.Position{purchased("QQQ", 64)}))

	got, err := repo.Load()
	require.NoError(t, err)
	require.Len(t, got, 2, "second save must not clobber the first")
	assert.Equal(t, "QQQ", got[0].Key.Ticker)
	assert.Equal(t, "SPY", got[1].Key.Ticker)
}

func TestCSVSaveIsIdempotentByKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.csv")
	repo := repository.NewCSV(path, logger.Default())

	row := purchased("SPY", 72)
	require.NoError(t, repo.Save(context.Background(), []types.Position{row}))
	require.NoError(t, repo.Save(context.Background(), []types.Position{row}))

	rescored := row
	rescored.Score = 80
	require.NoError(t, repo.Save(context.Background(), []types.Position{rescored}))

	got, err := repo.Load()
	require.NoError(t, err)
	require.Len(t, got, 1, "repeated saves of one key must keep one row")
	assert.Equal(t, 80.0, got[0].Score, "latest save wins")
}

func TestCSVSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "positions.csv")
	repo := repository.NewCSV(path, logger.Default())

	require.NoError(t, repo.Save(context.Background(), []types.Position{purchased("SPY", 72)}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "positions.csv", entries[0].Name())
}

func TestCSVSaveCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store", "nested", "positions.csv")
	repo := repository.NewCSV(path, logger.Default())

	require.NoError(t, repo.Save(context.Background(), []types.Position{purchased("SPY", 72)}))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestCSVLoadMissingFileIsEmpty(t *testing.T) {
	repo := repository.NewCSV(filepath.Join(t.TempDir(), "absent.csv"), logger.Default())

	got, err := repo.Load()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCSVSaveRejectsCorruptStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.csv")
	require.NoError(t, os.WriteFile(path, []byte("ticker,expiry\ngarbage,row\n"), 0644))

	repo := repository.NewCSV(path, logger.Default())
	err := repo.Save(context.Background(), []types.Position{purchased("SPY", 72)})
	require.Error(t, err, "a corrupt store must not be silently clobbered")
}

func TestCSVSaveNothingIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.csv")
	repo := repository.NewCSV(path, logger.Default())

	require.NoError(t, repo.Save(context.Background(), nil))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "empty save must not create the store")
}

func TestCSVSaveHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := repository.NewCSV(filepath.Join(t.TempDir(), "positions.csv"), logger.Default())
	err := repo.Save(ctx, []types.Position{purchased("SPY", 72)})
	assert.Error(t, err)
}

func TestNewSelectsDriver(t *testing.T) {
	repo, err := repository.New(types.RepositoryConfig{Driver: "csv", Path: filepath.Join(t.TempDir(), "p.csv")}, logger.Default())
	require.NoError(t, err)
	assert.IsType(t, &repository.CSVRepository{}, repo)

	repo, err = repository.New(types.RepositoryConfig{}, logger.Default())
	require.NoError(t, err)
	assert.IsType(t, &repository.CSVRepository{}, repo, "csv is the default driver")

	_, err = repository.New(types.RepositoryConfig{Driver: "postgres"}, logger.Default())
	require.Error(t, err, "postgres without a dsn must fail")

	_, err = repository.New(types.RepositoryConfig{Driver: "sqlite"}, logger.Default())
	require.Error(t, err)
}

func TestPostgresRecordMapping(t *testing.T) {
	p := purchased("SPY", 72)

	rec := repository.ToRecord(p)
	assert.Equal(t, "SPY", rec.Ticker)
	assert.Equal(t, "2026-09-18", rec.Expiry)
	assert.Equal(t, "90.00/95.00", rec.Strikes)
	assert.Equal(t, string(types.StatusPurchased), rec.Status)

	back := repository.FromRecord(rec)
	assert.Equal(t, p, back)
}
