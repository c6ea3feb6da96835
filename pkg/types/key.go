package types

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Key identifies one candidate position: ticker symbol, expiration date and
// the canonical strike legs. Keys are comparable structs and are used as map
// keys throughout the table and repository layers. Construct keys only
// through NewKey so the legs are sorted and formatted consistently.
type Key struct {
	Ticker  string `json:"ticker" yaml:"ticker"`
	Expiry  string `json:"expiry" yaml:"expiry"`   // ISO date, YYYY-MM-DD
	Strikes string `json:"strikes" yaml:"strikes"` // ascending, "90.00/95.00"
}

// NewKey builds a canonical Key: ticker uppercased, strikes sorted ascending
// and rendered with two decimals.
func NewKey(ticker, expiry string, strikes ...float64) Key {
	legs := make([]float64, len(strikes))
	copy(legs, strikes)
	sort.Float64s(legs)

	parts := make([]string, len(legs))
	for i, leg := range legs {
		parts[i] = strconv.FormatFloat(leg, 'f', 2, 64)
	}

	return Key{
		Ticker:  strings.ToUpper(strings.TrimSpace(ticker)),
		Expiry:  strings.TrimSpace(expiry),
		Strikes: strings.Join(parts, "/"),
	}
}

// Legs returns the strike legs in ascending order. Unparseable legs are
// skipped; a Key built through NewKey never has any.
func (k Key) Legs() []float64 {
	if k.Strikes == "" {
		return nil
	}
	parts := strings.Split(k.Strikes, "/")
	legs := make([]float64, 0, len(parts))
	for _, part := range parts {
		leg, err := strconv.ParseFloat(part, 64)
		if err != nil {
			continue
		}
		legs = append(legs, leg)
	}
	return legs
}

// Less imposes a total order: ticker, then expiry, then strikes compared
// numerically leg by leg, shorter leg lists first.
func (k Key) Less(other Key) bool {
	if k.Ticker != other.Ticker {
		return k.Ticker < other.Ticker
	}
	if k.Expiry != other.Expiry {
		return k.Expiry < other.Expiry
	}
	a, b := k.Legs(), other.Legs()
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// Zero reports whether k is the zero Key.
func (k Key) Zero() bool {
	return k == Key{}
}

// String renders the key as "TICKER YYYY-MM-DD 90.00/95.00".
func (k Key) String() string {
	if k.Strikes == "" {
		return fmt.Sprintf("%s %s", k.Ticker, k.Expiry)
	}
	return fmt.Sprintf("%s %s %s", k.Ticker, k.Expiry, k.Strikes)
}

// SortKeys orders keys in place by the Key total order.
func SortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}
