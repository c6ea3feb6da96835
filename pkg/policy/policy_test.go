package policy_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strikeline/strikeline/pkg/policy"
	"github.com/strikeline/strikeline/pkg/types"
)

var testNow = time.Date(2026, 8, 25, 14, 30, 0, 0, time.UTC)

func row(ticker string, status types.Status, score float64) *types.Position {
	return &types.Position{
		Key:          types.NewKey(ticker, "2026-09-18", 90, 95),
		Status:       status,
		Score:        score,
		OpenInterest: 500,
		BidAskPct:    0.05,
		Created:      testNow.Add(-time.Minute),
		Updated:      testNow.Add(-time.Minute),
	}
}

func view(rows ...*types.Position) *policy.View {
	m := make(map[types.Key]*types.Position, len(rows))
	for _, r := range rows {
		m[r.Key] = r
	}
	return policy.NewView(m, testNow)
}

func TestViewFilterReturnsKeyOrder(t *testing.T) {
	v := view(
		row("QQQ", types.StatusProspect, 10),
		row("SPY", types.StatusProspect, 20),
		row("IWM", types.StatusPending, 30),
	)

	keys := v.Filter(func(p types.Position) bool { return p.Status == types.StatusProspect })
	require.Len(t, keys, 2)
	assert.Equal(t, "QQQ", keys[0].Ticker)
	assert.Equal(t, "SPY", keys[1].Ticker)
}

func TestViewCountAndGet(t *testing.T) {
	spy := row("SPY", types.StatusAccepted, 50)
	v := view(spy, row("QQQ", types.StatusPending, 40))

	assert.Equal(t, 1, v.Count(types.StatusAccepted))
	assert.Equal(t, 1, v.Count(types.StatusPending))
	assert.Equal(t, 0, v.Count(types.StatusRejected))
	assert.Equal(t, 2, v.Len())

	got, ok := v.Get(spy.Key)
	require.True(t, ok)
	assert.Equal(t, 50.0, got.Score)

	_, ok = v.Get(types.NewKey("XYZ", "2026-09-18", 90, 95))
	assert.False(t, ok)
}

func TestFixedCapacity(t *testing.T) {
	c := policy.Fixed(3)
	assert.Equal(t, 3, c(view()))
}

func TestOpenSlotsCountsAcceptedAndPurchased(t *testing.T) {
	v := view(
		row("SPY", types.StatusAccepted, 50),
		row("QQQ", types.StatusPurchased, 40),
		row("IWM", types.StatusPending, 30),
	)
	c := policy.OpenSlots(10)
	assert.Equal(t, 8, c(v))
}

func TestMatchingPredicate(t *testing.T) {
	v := view(
		row("SPY", types.StatusProspect, 80),
		row("QQQ", types.StatusProspect, 20),
		row("IWM", types.StatusPending, 90),
	)

	all := policy.Matching(types.StatusProspect, nil)(v)
	assert.Len(t, all, 2)

	strong := policy.Matching(types.StatusProspect, func(p types.Position) bool {
		return p.Score >= 50
	})(v)
	require.Len(t, strong, 1)
	assert.Equal(t, "SPY", strong[0].Ticker)
}

func TestScreeningRuleOrder(t *testing.T) {
	pol := policy.Screening(types.AdmissionConfig{})
	require.Len(t, pol.Rules, 4)
	assert.Equal(t, policy.RuleAbandonStale, pol.Rules[0].Name)
	assert.Equal(t, policy.RulePursue, pol.Rules[1].Name)
	assert.Equal(t, policy.RuleRejectFloor, pol.Rules[2].Name)
	assert.Equal(t, policy.RuleAcceptTop, pol.Rules[3].Name)

	assert.Nil(t, pol.Rules[0].Capacity)
	assert.NotNil(t, pol.Rules[3].Capacity)
}

func TestScreeningAbandonsStaleProspects(t *testing.T) {
	cfg := types.AdmissionConfig{AbandonAfter: int(10 * time.Minute / time.Millisecond)}
	pol := policy.Screening(cfg)

	stale := row("SPY", types.StatusProspect, 80)
	stale.Created = testNow.Add(-time.Hour)
	fresh := row("QQQ", types.StatusProspect, 80)

	keys := pol.Rules[0].When(view(stale, fresh))
	require.Len(t, keys, 1)
	assert.Equal(t, "SPY", keys[0].Ticker)
}

func TestScreeningFloors(t *testing.T) {
	cfg := types.AdmissionConfig{MinScore: 60, MinOpenInterest: 100, MaxBidAskPct: 0.08}
	pol := policy.Screening(cfg)

	good := row("SPY", types.StatusProspect, 75)
	lowScore := row("QQQ", types.StatusProspect, 40)
	thin := row("IWM", types.StatusProspect, 75)
	thin.OpenInterest = 10
	wide := row("DIA", types.StatusProspect, 75)
	wide.BidAskPct = 0.20

	keys := pol.Rules[1].When(view(good, lowScore, thin, wide))
	require.Len(t, keys, 1)
	assert.Equal(t, "SPY", keys[0].Ticker)

	// The same floors drive rejection of pending rows.
	badPending := row("QQQ", types.StatusPending, 40)
	goodPending := row("SPY", types.StatusPending, 75)
	keys = pol.Rules[2].When(view(badPending, goodPending))
	require.Len(t, keys, 1)
	assert.Equal(t, "QQQ", keys[0].Ticker)
}

func TestPurchaseTargetsOnlyGivenKeys(t *testing.T) {
	accepted := row("SPY", types.StatusAccepted, 80)
	other := row("QQQ", types.StatusAccepted, 70)
	terminal := row("IWM", types.StatusRejected, 60)

	pol := policy.Purchase(accepted.Key, terminal.Key)
	require.Len(t, pol.Rules, 1)

	keys := pol.Rules[0].When(view(accepted, other, terminal))
	require.Len(t, keys, 1)
	assert.Equal(t, accepted.Key, keys[0])
	assert.Equal(t, types.StatusPurchased, pol.Rules[0].Target)
}

func TestOutcomeAccessors(t *testing.T) {
	key := types.NewKey("SPY", "2026-09-18", 90, 95)
	o := policy.Outcome{
		Policy:      "screening",
		Admitted:    map[string][]types.Key{policy.RuleAcceptTop: {key}},
		Transitions: 1,
	}

	assert.Equal(t, 1, o.Count(policy.RuleAcceptTop))
	assert.Equal(t, 0, o.Count(policy.RulePursue))
	assert.Equal(t, []types.Key{key}, o.Keys(policy.RuleAcceptTop))
	assert.False(t, o.Empty())
	assert.True(t, policy.Outcome{}.Empty())
}
