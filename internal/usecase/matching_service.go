package usecase

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/nits22/smart-grocery-cart/internal/domain"
)

// Package-level compiled regex pattern for performance
var punctuationRegex = regexp.MustCompile(`[^\w\s]`)

// Token weight categories for scoring
const (
	weightFood        = 3.0 // Core grocery terms (milk, atta, paneer)
	weightDescriptive = 2.0 // Descriptive terms (toned, organic, basmati)
	weightDefault     = 1.0 // Everything else
	fuzzyWeightFactor = 0.8 // Fuzzy matches get 80% of normal weight
)

// Scoring bonuses and penalties, in score points
const (
	brandMatchBonus     = 15.0 // Listing brand appears in the requested item
	substringMatchBonus = 10.0 // Requested item is a substring of the listing name
	sizeMatchBonus      = 10.0 // Listing pack size equals the requested size
	sizeMismatchPenalty = 20.0 // Listing pack size differs from the requested size
)

const (
	defaultMinConfidence  = 40.0
	defaultScoreTolerance = 5.0
)

// foodTerms contains high-importance grocery keywords (weight 3.0)
var foodTerms = map[string]bool{
	// Dairy
	"milk": true, "curd": true, "dahi": true, "paneer": true, "butter": true,
	"ghee": true, "cheese": true, "yogurt": true, "cream": true, "buttermilk": true,
	"eggs": true, "egg": true, "lassi": true,
	// Staples
	"atta": true, "rice": true, "dal": true, "flour": true, "maida": true,
	"sooji": true, "besan": true, "poha": true, "oats": true, "wheat": true,
	"sugar": true, "salt": true, "jaggery": true, "oil": true, "bread": true,
	"pasta": true, "noodles": true,
	// Pulses
	"toor": true, "moong": true, "chana": true, "rajma": true, "urad": true, "masoor": true,
	// Produce
	"onion": true, "potato": true, "tomato": true, "banana": true, "apple": true,
	"lemon": true, "ginger": true, "garlic": true, "chilli": true, "coriander": true,
	"spinach": true, "carrot": true, "cucumber": true, "mango": true,
	// Beverages
	"tea": true, "coffee": true, "juice": true, "water": true,
	// Snacks & spreads
	"biscuits": true, "chips": true, "namkeen": true, "jam": true, "honey": true,
	"ketchup": true, "chocolate": true,
	// Meat
	"chicken": true, "mutton": true, "fish": true,
}

// descriptiveTerms contains medium-importance descriptive keywords (weight 2.0)
var descriptiveTerms = map[string]bool{
	// Dairy variants
	"toned": true, "double": true, "full": true, "skimmed": true, "slim": true,
	"taaza": true, "gold": true, "fresh": true, "salted": true, "unsalted": true,
	// Processing
	"organic": true, "natural": true, "frozen": true, "whole": true, "refined": true,
	"cold": true, "pressed": true, "roasted": true, "instant": true, "brown": true,
	"white": true, "chakki": true, "multigrain": true, "unpolished": true,
	// Varieties
	"basmati": true, "sona": true, "masoori": true, "kolam": true, "sunflower": true,
	"mustard": true, "groundnut": true, "olive": true, "coconut": true, "green": true,
	"red": true, "farm": true, "country": true, "desi": true,
}

// extendedStopWords includes basic English stop words plus listing noise
var extendedStopWords = map[string]bool{
	// Basic English stop words
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"of": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "with": true, "by": true, "from": true, "is": true,
	// Size/quantity units
	"ml": true, "ltr": true, "litre": true, "liter": true, "kg": true,
	"gm": true, "gms": true, "gram": true, "grams": true, "pcs": true,
	"pc": true, "pieces": true, "dozen": true,
	// Packaging terms
	"pack": true, "packs": true, "packet": true, "pouch": true, "bottle": true,
	"jar": true, "box": true, "bag": true, "tub": true, "carton": true,
	// Marketing/generic terms
	"value": true, "combo": true, "offer": true, "new": true, "product": true,
}

// MatchConfig holds configuration for the matching service
type MatchConfig struct {
	MinConfidenceThreshold float64
	// ScoreTolerance is how far below the best score a listing may be and still win on price
	ScoreTolerance      float64
	EnableFuzzyMatching bool
	FuzzyEditDistance   int
	EnableDebugLogging  bool
}

// MatchingService picks the store listing that corresponds to a requested item
type MatchingService struct {
	minConfidenceThreshold float64
	scoreTolerance         float64
	enableFuzzyMatching    bool
	fuzzyEditDistance      int
	enableDebugLogging     bool
}

// NewMatchingService creates a new matching service with the given configuration
func NewMatchingService(config MatchConfig) *MatchingService {
	threshold := config.MinConfidenceThreshold
	if threshold <= 0 {
		threshold = defaultMinConfidence
	}

	tolerance := config.ScoreTolerance
	if tolerance <= 0 {
		tolerance = defaultScoreTolerance
	}

	fuzzyDist := config.FuzzyEditDistance
	if fuzzyDist <= 0 {
		fuzzyDist = 1
	}

	return &MatchingService{
		minConfidenceThreshold: threshold,
		scoreTolerance:         tolerance,
		enableFuzzyMatching:    config.EnableFuzzyMatching,
		fuzzyEditDistance:      fuzzyDist,
		enableDebugLogging:     config.EnableDebugLogging,
	}
}

type scoredListing struct {
	index   int
	listing domain.Listing
	score   float64
	matched []string
}

// FindBestMatch returns the listing for item. In-stock listings beat out-of-stock ones;
// among listings scoring within the tolerance of the best, the cheapest wins.
// When nothing reaches the confidence threshold the best guess is returned with domain.ErrLowConfidence.
func (s *MatchingService) FindBestMatch(
	ctx context.Context,
	item domain.Item,
	listings []domain.Listing,
) (*domain.MatchResult, error) {
	if strings.TrimSpace(string(item)) == "" {
		return nil, domain.NewValidationError("item", "must not be empty")
	}
	if len(listings) == 0 {
		return nil, domain.ErrNoMatch
	}

	var (
		best       *scoredListing
		candidates []scoredListing
	)
	for i, listing := range listings {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		score, matched := s.calculateMatchScore(string(item), listing)
		if s.enableDebugLogging {
			zap.L().Debug("listing score",
				zap.String("item", string(item)),
				zap.String("listing", listing.Name),
				zap.Float64("score", score),
				zap.Strings("matched", matched))
		}

		sl := scoredListing{index: i, listing: listing, score: score, matched: matched}
		if best == nil || score > best.score {
			b := sl
			best = &b
		}
		if score >= s.minConfidenceThreshold {
			candidates = append(candidates, sl)
		}
	}

	if len(candidates) == 0 {
		return toMatchResult(*best), domain.ErrLowConfidence
	}

	inStock := candidates[:0:0]
	for _, c := range candidates {
		if c.listing.Available && c.listing.Price != domain.PriceUnavailable {
			inStock = append(inStock, c)
		}
	}
	if len(inStock) > 0 {
		candidates = inStock
	}

	top := candidates[0].score
	for _, c := range candidates[1:] {
		if c.score > top {
			top = c.score
		}
	}

	var chosen *scoredListing
	for i := range candidates {
		c := &candidates[i]
		if c.score < top-s.scoreTolerance {
			continue
		}
		if chosen == nil ||
			c.listing.Price < chosen.listing.Price ||
			(c.listing.Price == chosen.listing.Price && c.score > chosen.score) {
			chosen = c
		}
	}

	if s.enableDebugLogging {
		zap.L().Debug("best listing",
			zap.String("item", string(item)),
			zap.String("listing", chosen.listing.Name),
			zap.Float64("score", chosen.score))
	}
	return toMatchResult(*chosen), nil
}

func toMatchResult(sl scoredListing) *domain.MatchResult {
	return &domain.MatchResult{Listing: sl.listing, MatchScore: sl.score, MatchedTokens: sl.matched}
}

// calculateMatchScore computes similarity between a requested item and a listing.
// Uses a weighted combination of:
//   - Item token coverage, weighted by how important each token is (most important)
//   - Listing token coverage
//   - Jaccard overlap
//
// plus brand, substring and pack size adjustments. Returns the score (0-100) and matched tokens.
func (s *MatchingService) calculateMatchScore(item string, listing domain.Listing) (float64, []string) {
	listingName := listing.Name
	if listing.Brand != "" && !strings.Contains(strings.ToLower(listingName), strings.ToLower(listing.Brand)) {
		listingName = listing.Brand + " " + listingName
	}

	itemTokens := tokenize(removeSizes(item))
	listingTokens := tokenize(removeSizes(listingName))
	if len(itemTokens) == 0 || len(listingTokens) == 0 {
		return 0, nil
	}

	listingSet := make(map[string]bool, len(listingTokens))
	for _, t := range listingTokens {
		listingSet[t] = true
	}

	var totalWeight, matchedWeight float64
	var matchedTokens []string
	seen := make(map[string]bool)
	for _, t := range itemTokens {
		if seen[t] {
			continue
		}
		seen[t] = true

		w := tokenWeight(t)
		totalWeight += w
		switch {
		case listingSet[t]:
			matchedWeight += w
			matchedTokens = append(matchedTokens, t)
		case s.enableFuzzyMatching && s.fuzzyContains(t, listingTokens):
			matchedWeight += w * fuzzyWeightFactor
			matchedTokens = append(matchedTokens, t)
		}
	}
	itemCoverage := matchedWeight / totalWeight

	exactMatched, _ := findIntersection(itemTokens, listingTokens)
	listingCoverage := float64(exactMatched) / float64(len(listingSet))
	jaccard := float64(exactMatched) / float64(findUnion(itemTokens, listingTokens))

	score := (itemCoverage*0.60 + listingCoverage*0.20 + jaccard*0.20) * 100

	itemLower := strings.ToLower(removeSizes(item))
	listingLower := strings.ToLower(listingName)

	if listing.Brand != "" && strings.Contains(itemLower, strings.ToLower(listing.Brand)) {
		score += brandMatchBonus
	}
	if len(itemLower) > 3 && strings.Contains(listingLower, itemLower) {
		score += substringMatchBonus
	}

	if want, ok := ExtractSize(item); ok {
		if got, ok := ExtractSize(listing.Size + " " + listing.Name); ok && got.Unit == want.Unit {
			if got.Equal(want) {
				score += sizeMatchBonus
			} else {
				score -= sizeMismatchPenalty
			}
		}
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score, matchedTokens
}

func tokenWeight(token string) float64 {
	switch {
	case foodTerms[token]:
		return weightFood
	case descriptiveTerms[token]:
		return weightDescriptive
	default:
		return weightDefault
	}
}

func (s *MatchingService) fuzzyContains(token string, candidates []string) bool {
	for _, c := range candidates {
		if fuzzyTokenMatch(token, c, s.fuzzyEditDistance) {
			return true
		}
	}
	return false
}

// tokenize splits a string into normalized lowercase tokens.
// Removes punctuation, stop words, listing noise, and pure numeric tokens.
func tokenize(s string) []string {
	cleaned := punctuationRegex.ReplaceAllString(strings.ToLower(s), " ")
	words := strings.Fields(cleaned)

	var tokens []string
	for _, word := range words {
		if len(word) <= 1 {
			continue
		}
		if extendedStopWords[word] {
			continue
		}
		if isNumeric(word) {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// isNumeric checks if a string contains only digits
func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// fuzzyTokenMatch checks if two tokens are similar within the edit distance threshold
func fuzzyTokenMatch(token1, token2 string, threshold int) bool {
	if token1 == token2 {
		return true
	}

	// Only apply fuzzy matching to tokens >= 4 chars to avoid false positives
	if len(token1) < 4 || len(token2) < 4 {
		return false
	}

	lenDiff := len(token1) - len(token2)
	if lenDiff < 0 {
		lenDiff = -lenDiff
	}
	if lenDiff > threshold {
		return false
	}

	return levenshteinDistance(token1, token2) <= threshold
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)
	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	// Two rows instead of the full matrix
	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}

// findIntersection returns the count of common tokens and the list of matched tokens
func findIntersection(tokens1, tokens2 []string) (int, []string) {
	set := make(map[string]bool)
	for _, t := range tokens1 {
		set[t] = true
	}

	var matched []string
	seen := make(map[string]bool)
	for _, t := range tokens2 {
		if set[t] && !seen[t] {
			matched = append(matched, t)
			seen[t] = true
		}
	}

	return len(matched), matched
}

// findUnion returns the count of unique tokens across both sets
func findUnion(tokens1, tokens2 []string) int {
	set := make(map[string]bool)
	for _, t := range tokens1 {
		set[t] = true
	}
	for _, t := range tokens2 {
		set[t] = true
	}
	return len(set)
}
