package selection

import (
	"context"
	"fmt"
	"strings"

	"giftwise-backend/pkg/catalog"
)

// occasionQueries is the fixed lookup table for the ai-guess tier
var occasionQueries = map[string]string{
	"birthday":     "birthday gift popular trending",
	"anniversary":  "anniversary gift romantic",
	"wedding":      "wedding gift registry popular",
	"graduation":   "graduation gift keepsake",
	"christmas":    "christmas gift bestseller",
	"valentines":   "valentines day gift",
	"mothers_day":  "gift for mom popular",
	"fathers_day":  "gift for dad popular",
	"housewarming": "housewarming gift home",
}

const genericFallbackQuery = "gift popular"

// specificProduct looks up the rule's pinned product in the catalog.
// Returns nil when the product cannot be found or does not fit the
// budget, letting the inference tiers take over.
func (s *Selector) specificProduct(ctx context.Context, req Request) *Result {
	items := s.search(ctx, req, req.SpecificProductID)
	for _, item := range items {
		if item.ID == req.SpecificProductID && req.inPriceBand(item.Price) {
			return &Result{
				Tier:       TierSpecific,
				Products:   []catalog.Item{item},
				Confidence: 1.0,
				Reasoning:  fmt.Sprintf("rule pins product %s", req.SpecificProductID),
			}
		}
	}
	return nil
}

// wishlistCandidates reads the recipient's public, active wishlists and
// keeps items with a known price inside the request's price bounds.
// No network involved.
func (s *Selector) wishlistCandidates(_ context.Context, req Request) ([]catalog.Item, string, error) {
	wishlists, err := s.wishlists.FindPublicByRecipientID(req.RecipientID)
	if err != nil {
		return nil, "", err
	}

	var candidates []catalog.Item
	for _, wl := range wishlists {
		for _, item := range wl.Items {
			if item.Price == nil || !req.inPriceBand(*item.Price) {
				continue
			}
			id := item.ProductID
			if id == "" {
				id = item.ID
			}
			candidates = append(candidates, catalog.Item{
				ID:       id,
				Title:    item.Title,
				Price:    *item.Price,
				Image:    item.Image,
				Category: item.Category,
			})
		}
	}

	return candidates, fmt.Sprintf("selected from recipient's wishlist (%d in-budget items)", len(candidates)), nil
}

// preferenceCandidates builds a query from the recipient's stated
// gift-preference tags and interests plus caller-supplied categories.
func (s *Selector) preferenceCandidates(ctx context.Context, req Request) ([]catalog.Item, string, error) {
	profile, err := s.profiles.FindByID(req.RecipientID)
	if err != nil {
		return nil, "", err
	}
	if profile == nil {
		return nil, "", nil
	}

	var terms []string
	terms = append(terms, profile.GiftPreferences...)
	terms = append(terms, profile.Interests...)
	terms = append(terms, req.Categories...)
	terms = dedupeTerms(terms)
	if len(terms) == 0 {
		return nil, "", nil
	}

	query := strings.Join(terms, " ") + " gift"
	candidates := s.search(ctx, req, query)
	return candidates, describeTier(TierPreferences, query, len(candidates)), nil
}

// metadataCandidates infers query terms from demographic signals: an age
// bracket derived from birth year and keywords extracted from the bio.
func (s *Selector) metadataCandidates(ctx context.Context, req Request) ([]catalog.Item, string, error) {
	profile, err := s.profiles.FindByID(req.RecipientID)
	if err != nil {
		return nil, "", err
	}

	var terms []string
	if profile != nil {
		if bracket := ageBracket(profile.BirthYear); bracket != "" {
			terms = append(terms, bracket)
		}
		terms = append(terms, extractKeywords(profile.Bio, 3)...)
	}
	terms = append(terms, req.Categories...)
	if req.Occasion != "" {
		terms = append(terms, req.Occasion)
	}
	terms = dedupeTerms(terms)
	if len(terms) == 0 {
		return nil, "", nil
	}

	query := strings.Join(terms, " ") + " gift"
	candidates := s.search(ctx, req, query)
	return candidates, describeTier(TierMetadata, query, len(candidates)), nil
}

// aiGuessCandidates uses the fixed occasion lookup table, then the
// generic fallback query when the occasion query comes up empty.
func (s *Selector) aiGuessCandidates(ctx context.Context, req Request) ([]catalog.Item, string, error) {
	if query, ok := occasionQueries[req.Occasion]; ok {
		if candidates := s.search(ctx, req, query); len(candidates) > 0 {
			return candidates, describeTier(TierAIGuess, query, len(candidates)), nil
		}
	}

	candidates := s.search(ctx, req, genericFallbackQuery)
	return candidates, describeTier(TierAIGuess, genericFallbackQuery, len(candidates)), nil
}

func dedupeTerms(terms []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range terms {
		t = strings.TrimSpace(strings.ToLower(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
