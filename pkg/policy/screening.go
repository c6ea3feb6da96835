package policy

import "github.com/strikeline/strikeline/pkg/types"

// Rule names of the production screening policy, in applied order.
const (
	RuleAbandonStale = "abandon-stale"
	RulePursue       = "pursue"
	RuleRejectFloor  = "reject-floor"
	RuleAcceptTop    = "accept-top"
)

// Screening builds the production admission policy from the configured
// thresholds. Order matters: stale prospects are abandoned first, surviving
// prospects that clear the quality floors are pursued, pending rows that no
// longer clear them are rejected, and the best pending rows fill whatever
// position capacity remains.
func Screening(cfg types.AdmissionConfig) Policy {
	floors := func(p types.Position) bool {
		return p.Score >= cfg.MinScore &&
			p.OpenInterest >= cfg.MinOpenInterest &&
			p.BidAskPct <= cfg.SpreadQuality()
	}

	return Policy{
		Name: "screening",
		Rules: []Rule{
			{
				Name:   RuleAbandonStale,
				Target: types.StatusAbandoned,
				When: func(v *View) []types.Key {
					horizon := cfg.AbandonHorizon()
					return v.Filter(func(p types.Position) bool {
						return p.Status == types.StatusProspect && p.Age(v.Now()) > horizon
					})
				},
			},
			{
				Name:   RulePursue,
				Target: types.StatusPending,
				When:   Matching(types.StatusProspect, floors),
			},
			{
				Name:   RuleRejectFloor,
				Target: types.StatusRejected,
				When: Matching(types.StatusPending, func(p types.Position) bool {
					return !floors(p)
				}),
			},
			{
				Name:     RuleAcceptTop,
				Target:   types.StatusAccepted,
				Capacity: OpenSlots(cfg.PositionCap()),
				When:     Matching(types.StatusPending, nil),
			},
		},
	}
}

// Purchase builds the one-rule policy the drain applies after persisting a
// row: the given keys move to PURCHASED. Keys already terminal are left
// alone, which keeps a repeated drain of the same row harmless.
func Purchase(keys ...types.Key) Policy {
	want := make(map[types.Key]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	return Policy{
		Name: "purchase",
		Rules: []Rule{{
			Name:   "purchase",
			Target: types.StatusPurchased,
			When: func(v *View) []types.Key {
				return v.Filter(func(p types.Position) bool {
					return want[p.Key] && p.Status.CanTransition(types.StatusPurchased)
				})
			},
		}},
	}
}
