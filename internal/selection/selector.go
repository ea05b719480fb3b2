package selection

import (
	"context"
	"fmt"
	"log"
	"sort"

	"giftwise-backend/internal/guard"
	peoplerepo "giftwise-backend/internal/people/repository"
	"giftwise-backend/pkg/catalog"
)

// Tier identifies which selection strategy produced a result
type Tier string

const (
	// TierSpecific covers rules pinned to one exact product; it runs
	// before the four inference tiers when a product id is given
	TierSpecific    Tier = "specific"
	TierWishlist    Tier = "wishlist"
	TierPreferences Tier = "preferences"
	TierMetadata    Tier = "metadata"
	TierAIGuess     Tier = "ai_guess"
)

// Fixed confidence weight per tier
const (
	confidenceWishlist    = 0.95
	confidencePreferences = 0.75
	confidenceMetadata    = 0.60
	confidenceAIGuess     = 0.40
)

const (
	maxCandidates = 5
	maxSelected   = 3
)

// SourcePreference narrows which tiers a rule allows
type SourcePreference string

const (
	SourceWishlistOnly SourcePreference = "wishlist"
	SourceAIOnly       SourcePreference = "ai"
	SourceBoth         SourcePreference = "both"
)

// Request carries the inputs of one selection call
type Request struct {
	RecipientID string
	UserID      string
	Budget      float64
	Occasion    string
	Categories  []string
	// MinPrice and MaxPrice bound individual item prices. MaxPrice
	// tightens the budget when lower; zero means unbounded.
	MinPrice float64
	MaxPrice float64
	// Source restricts the tier chain; empty means both
	Source SourcePreference
	// SpecificProductID pins the selection to one product; the
	// inference tiers run only if it cannot be honored
	SpecificProductID string
}

// priceCeiling is the per-item cap: the budget, tightened by MaxPrice
// when one is set below it
func (r Request) priceCeiling() float64 {
	if r.MaxPrice > 0 && r.MaxPrice < r.Budget {
		return r.MaxPrice
	}
	return r.Budget
}

// inPriceBand reports whether a priced item satisfies the request's
// per-item bounds
func (r Request) inPriceBand(price float64) bool {
	return price > 0 && price >= r.MinPrice && price <= r.priceCeiling()
}

// Result is the outcome of one selection call. An empty product list
// with zero confidence means no automated selection was possible; the
// caller must not treat that as an error.
type Result struct {
	Tier       Tier           `json:"tier"`
	Products   []catalog.Item `json:"products"`
	Confidence float64        `json:"confidence"`
	Reasoning  string         `json:"reasoning"`
}

// ProductSearcher is the black-box catalog search the selector consumes
type ProductSearcher interface {
	Search(ctx context.Context, query string, constraints catalog.SearchConstraints) ([]catalog.Item, error)
}

// QuotaGuard gates every external search call. Reserving claims quota
// and checks the ceiling in one operation, so concurrent selections at
// the boundary cannot both pass; a reservation whose search fails is
// handed back via release.
type QuotaGuard interface {
	ReserveSearchCall(userID string, priority guard.Priority) bool
	ReleaseSearchCall(userID string)
	EmergencyCircuitBreaker() bool
}

// Selector runs the four-tier gift decision algorithm. It holds no
// mutable state; concurrent calls for different recipients need no
// coordination.
type Selector struct {
	wishlists peoplerepo.WishlistRepository
	profiles  peoplerepo.ProfileRepository
	searcher  ProductSearcher
	guard     QuotaGuard
}

func NewSelector(wishlists peoplerepo.WishlistRepository, profiles peoplerepo.ProfileRepository, searcher ProductSearcher, quotaGuard QuotaGuard) *Selector {
	return &Selector{
		wishlists: wishlists,
		profiles:  profiles,
		searcher:  searcher,
		guard:     quotaGuard,
	}
}

// tierStrategy is one ordered entry in the fallthrough chain
type tierStrategy struct {
	tier       Tier
	confidence float64
	candidates func(ctx context.Context, req Request) ([]catalog.Item, string, error)
}

// Select runs the tiers strictly in order; the first tier whose
// candidates survive budget-fitting wins and later tiers are never
// consulted. When every tier comes up empty the result is an ai_guess
// tier with no products and zero confidence.
func (s *Selector) Select(ctx context.Context, req Request) (*Result, error) {
	if req.SpecificProductID != "" {
		if result := s.specificProduct(ctx, req); result != nil {
			return result, nil
		}
	}

	var strategies []tierStrategy
	if req.Source != SourceAIOnly {
		strategies = append(strategies, tierStrategy{TierWishlist, confidenceWishlist, s.wishlistCandidates})
	}
	if req.Source != SourceWishlistOnly {
		strategies = append(strategies,
			tierStrategy{TierPreferences, confidencePreferences, s.preferenceCandidates},
			tierStrategy{TierMetadata, confidenceMetadata, s.metadataCandidates},
			tierStrategy{TierAIGuess, confidenceAIGuess, s.aiGuessCandidates},
		)
	}

	for _, strategy := range strategies {
		candidates, reasoning, err := strategy.candidates(ctx, req)
		if err != nil {
			// A failing tier falls through, it never aborts selection
			log.Printf("[Selector] %s tier failed for recipient %s: %v", strategy.tier, req.RecipientID, err)
			continue
		}

		selected := fitBudget(candidates, req.Budget)
		if len(selected) > 0 {
			return &Result{
				Tier:       strategy.tier,
				Products:   selected,
				Confidence: strategy.confidence,
				Reasoning:  reasoning,
			}, nil
		}
	}

	return &Result{
		Tier:       TierAIGuess,
		Products:   nil,
		Confidence: 0,
		Reasoning:  "no suitable gifts found within budget across all strategies",
	}, nil
}

// search performs one quota-gated catalog call. Denial by the circuit
// breaker or the per-user quota returns no results and no error; the
// tier simply falls through. Quota is reserved before the call and
// handed back when the search itself fails.
func (s *Selector) search(ctx context.Context, req Request, query string) []catalog.Item {
	if !s.guard.EmergencyCircuitBreaker() {
		log.Printf("[Selector] Circuit breaker tripped, skipping search for user %s", req.UserID)
		return nil
	}
	if !s.guard.ReserveSearchCall(req.UserID, guard.PriorityForOccasion(req.Occasion)) {
		log.Printf("[Selector] API quota reached for user %s, skipping search", req.UserID)
		return nil
	}

	items, err := s.searcher.Search(ctx, query, catalog.SearchConstraints{
		MinPrice:   req.MinPrice,
		MaxPrice:   req.priceCeiling(),
		Categories: req.Categories,
	})
	if err != nil {
		// Timeouts and transport errors are equivalent to zero results;
		// the call never happened, so the quota unit goes back
		log.Printf("[Selector] Catalog search %q failed: %v", query, err)
		s.guard.ReleaseSearchCall(req.UserID)
		return nil
	}

	return rankCandidates(filterInBand(items, req))
}

// filterInBand keeps priced items inside the request's price bounds.
// The catalog is asked to apply the same bounds, but its filtering is
// best-effort and not trusted.
func filterInBand(items []catalog.Item, req Request) []catalog.Item {
	var kept []catalog.Item
	for _, item := range items {
		if req.inPriceBand(item.Price) {
			kept = append(kept, item)
		}
	}
	return kept
}

// rankCandidates orders by rating descending, tie-broken by review count
// descending, and caps the list at maxCandidates
func rankCandidates(items []catalog.Item) []catalog.Item {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Rating != items[j].Rating {
			return items[i].Rating > items[j].Rating
		}
		return items[i].ReviewCount > items[j].ReviewCount
	})
	if len(items) > maxCandidates {
		items = items[:maxCandidates]
	}
	return items
}

// fitBudget greedily picks the cheapest candidates while the running
// total stays within budget, stopping at maxSelected items. When no
// combination fits, the single cheapest candidate is used if it alone is
// affordable; otherwise the tier yields nothing and selection falls
// through.
func fitBudget(candidates []catalog.Item, budget float64) []catalog.Item {
	if len(candidates) == 0 {
		return nil
	}

	sorted := make([]catalog.Item, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Price < sorted[j].Price
	})

	var selected []catalog.Item
	total := 0.0
	for _, item := range sorted {
		if len(selected) >= maxSelected {
			break
		}
		if total+item.Price > budget {
			continue
		}
		selected = append(selected, item)
		total += item.Price
	}

	if len(selected) == 0 && sorted[0].Price <= budget {
		selected = append(selected, sorted[0])
	}

	return selected
}

// Total sums the prices of the selected products
func Total(products []catalog.Item) float64 {
	total := 0.0
	for _, p := range products {
		total += p.Price
	}
	return total
}

func describeTier(tier Tier, query string, count int) string {
	if query == "" {
		return fmt.Sprintf("%s strategy matched %d items", tier, count)
	}
	return fmt.Sprintf("%s strategy matched %d items for query %q", tier, count, query)
}
