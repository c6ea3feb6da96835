package market

import (
	"fmt"
	"os"
	"strings"
)

// LoadWatchlist reads a plain-text watchlist: one ticker per line. Blank
// lines and '#' comments are ignored, tickers are uppercased and
// deduplicated preserving file order.
func LoadWatchlist(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watchlist: %w", err)
	}
	return ParseWatchlist(string(data)), nil
}

// ParseWatchlist extracts the ticker list from watchlist file content.
func ParseWatchlist(text string) []string {
	seen := make(map[string]bool)
	var tickers []string
	for _, line := range strings.Split(text, "\n") {
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		ticker := strings.ToUpper(strings.TrimSpace(line))
		if ticker == "" || seen[ticker] {
			continue
		}
		seen[ticker] = true
		tickers = append(tickers, ticker)
	}
	return tickers
}
