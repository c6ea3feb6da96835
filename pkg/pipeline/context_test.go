package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strikeline/strikeline/pkg/pipeline"
	"github.com/strikeline/strikeline/pkg/types"
)

func TestContextSetAndValue(t *testing.T) {
	c := pipeline.NewContext()
	c.Set("ticker", "SPY").Set("score", 72.5)

	v, ok := c.Value("ticker")
	require.True(t, ok)
	assert.Equal(t, "SPY", v)

	_, ok = c.Value("missing")
	assert.False(t, ok)
	assert.True(t, c.Has("score"))
	assert.Equal(t, 2, c.Len())
}

func TestContextTypedAccessors(t *testing.T) {
	c := pipeline.NewContext().
		Set("ticker", "QQQ").
		Set("score", 81.25).
		Set("count", 7).
		Set("tags", []string{"a", "b"})

	assert.Equal(t, "QQQ", c.String("ticker"))
	assert.Equal(t, 81.25, c.Float("score"))
	assert.Equal(t, 7, c.Int("count"))
	assert.Equal(t, []string{"a", "b"}, c.Strings("tags"))

	// Wrong or missing types yield zero values, never panics.
	assert.Equal(t, "", c.String("score"))
	assert.Equal(t, 0.0, c.Float("ticker"))
	assert.Equal(t, 0, c.Int("missing"))
	assert.Nil(t, c.Strings("ticker"))
}

func TestContextCloneIsIndependent(t *testing.T) {
	orig := pipeline.NewContext().Set("ticker", "IWM")
	clone := orig.Clone()
	clone.Set("ticker", "DIA").Set("extra", 1)

	assert.Equal(t, "IWM", orig.String("ticker"))
	assert.Equal(t, "DIA", clone.String("ticker"))
	assert.False(t, orig.Has("extra"))
}

func TestContextKey(t *testing.T) {
	c := pipeline.NewContext()
	assert.Equal(t, "", c.Key())

	c.Set(pipeline.NameKey, "SPY")
	assert.Equal(t, "SPY", c.Key())

	k := types.NewKey("spy", "2026-09-18", 90, 95)
	c.Set(pipeline.NameKey, k)
	assert.Equal(t, "SPY 2026-09-18 90.00/95.00", c.Key())
}

func TestContextNamesSorted(t *testing.T) {
	c := pipeline.NewContext().Set("b", 1).Set("a", 2).Set("c", 3)
	assert.Equal(t, []string{"a", "b", "c"}, c.Names())
}
