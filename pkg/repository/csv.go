// Package repository persists drained positions behind a small driver split:
// a CSV snapshot store for local use and a PostgreSQL store for shared
// deployments
package repository

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/strikeline/strikeline/pkg/logger"
	"github.com/strikeline/strikeline/pkg/types"
	"github.com/strikeline/strikeline/pkg/utils"
)

var csvHeader = []string{
	"ticker", "expiry", "strikes", "status",
	"score", "premium", "collateral", "return_on_collateral",
	"width", "short_delta", "open_interest", "bid_ask_pct", "quantity",
	"created", "updated",
}

// CSVRepository keeps the position store as a single CSV snapshot. Save
// merges incoming rows into whatever the file already holds, keyed by
// position key, then rewrites the whole file through a temp-and-rename, so
// repeated drains of the same rows are harmless and a crash never leaves a
// half-written store behind.
type CSVRepository struct {
	path string
	log  logger.Logger

	mu sync.Mutex
}

// NewCSV builds a repository writing to path. The file is created on first
// save.
func NewCSV(path string, log logger.Logger) *CSVRepository {
	if log == nil {
		log = logger.Default()
	}
	return &CSVRepository{path: path, log: log}
}

// Save implements interfaces.PositionRepository.
func (r *CSVRepository) Save(ctx context.Context, positions []types.Position) error {
	if len(positions) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.load()
	if err != nil {
		return err
	}

	merged := make(map[types.Key]types.Position, len(existing)+len(positions))
	for _, p := range existing {
		merged[p.Key] = p
	}
	for _, p := range positions {
		merged[p.Key] = p
	}

	keys := make([]types.Key, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	types.SortKeys(keys)

	rows := make([]types.Position, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, merged[k])
	}

	if err := r.write(rows); err != nil {
		return err
	}
	r.log.Debug("positions saved",
		logger.WithField("saved", len(positions)),
		logger.WithField("total", len(rows)),
		logger.WithField("path", r.path))
	return nil
}

// Load reads every persisted position, in key order.
func (r *CSVRepository) Load() ([]types.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Close implements interfaces.PositionRepository. The CSV store holds no
// open handles between saves.
func (r *CSVRepository) Close() error { return nil }

func (r *CSVRepository) load() ([]types.Position, error) {
	f, err := os.Open(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}

	var rows []types.Position
	for i, record := range records {
		if i == 0 {
			continue // header
		}
		p, err := decodeRecord(record)
		if err != nil {
			return nil, fmt.Errorf("store row %d: %w", i, err)
		}
		rows = append(rows, p)
	}
	return rows, nil
}

// write replaces the store atomically: the full snapshot is encoded in
// memory, then swapped in with a rename.
func (r *CSVRepository) write(rows []types.Position) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write store header: %w", err)
	}
	for _, p := range rows {
		if err := w.Write(encodeRecord(p)); err != nil {
			return fmt.Errorf("write store row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush store: %w", err)
	}

	if err := utils.WriteFileAtomic(r.path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

func encodeRecord(p types.Position) []string {
	return []string{
		p.Key.Ticker,
		p.Key.Expiry,
		p.Key.Strikes,
		string(p.Status),
		formatFloat(p.Score),
		formatFloat(p.Premium),
		formatFloat(p.Collateral),
		formatFloat(p.ReturnOnCollateral),
		formatFloat(p.Width),
		formatFloat(p.ShortDelta),
		strconv.Itoa(p.OpenInterest),
		formatFloat(p.BidAskPct),
		strconv.Itoa(p.Quantity),
		p.Created.UTC().Format(time.RFC3339Nano),
		p.Updated.UTC().Format(time.RFC3339Nano),
	}
}

func decodeRecord(record []string) (types.Position, error) {
	if len(record) != len(csvHeader) {
		return types.Position{}, fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(record))
	}

	status, err := types.ParseStatus(record[3])
	if err != nil {
		return types.Position{}, err
	}

	floats := make([]float64, 0, 6)
	for _, idx := range []int{4, 5, 6, 7, 8, 9} {
		v, err := strconv.ParseFloat(record[idx], 64)
		if err != nil {
			return types.Position{}, fmt.Errorf("column %s: %w", csvHeader[idx], err)
		}
		floats = append(floats, v)
	}
	oi, err := strconv.Atoi(record[10])
	if err != nil {
		return types.Position{}, fmt.Errorf("column open_interest: %w", err)
	}
	bidAsk, err := strconv.ParseFloat(record[11], 64)
	if err != nil {
		return types.Position{}, fmt.Errorf("column bid_ask_pct: %w", err)
	}
	qty, err := strconv.Atoi(record[12])
	if err != nil {
		return types.Position{}, fmt.Errorf("column quantity: %w", err)
	}
	created, err := time.Parse(time.RFC3339Nano, record[13])
	if err != nil {
		return types.Position{}, fmt.Errorf("column created: %w", err)
	}
	updated, err := time.Parse(time.RFC3339Nano, record[14])
	if err != nil {
		return types.Position{}, fmt.Errorf("column updated: %w", err)
	}

	return types.Position{
		Key:                types.Key{Ticker: record[0], Expiry: record[1], Strikes: record[2]},
		Status:             status,
		Score:              floats[0],
		Premium:            floats[1],
		Collateral:         floats[2],
		ReturnOnCollateral: floats[3],
		Width:              floats[4],
		ShortDelta:         floats[5],
		OpenInterest:       oi,
		BidAskPct:          bidAsk,
		Quantity:           qty,
		Created:            created,
		Updated:            updated,
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
