package usecase

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// QueryPreprocessor turns shopping list entries into store search queries
type QueryPreprocessor struct {
	enableDebugLogging bool
}

// Compiled regex patterns for query preprocessing
var (
	// Matches quantities like "1 l", "500ml", "1.5 litre", "5 kg", "200 gms", "6 pcs", "1 dozen"
	sizeQuantityPattern = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(millilitres?|milliliters?|ml|litres?|liters?|ltrs?|l|kilograms?|kilos?|kgs?|grams?|gms?|g|pieces?|pcs?|dozen)\b`)

	// Matches "pack of 6", "(pack of 12)"
	packOfPattern = regexp.MustCompile(`(?i)\bpack\s+of\s+(\d+)\b`)

	// Characters store search endpoints choke on
	specialCharsPattern = regexp.MustCompile(`[#%+@!^*()=\[\]{}<>|\\~,;:"` + "`" + `]`)

	// Multiple spaces cleanup
	multiSpacePattern = regexp.MustCompile(`\s+`)

	orphanedPunctuationPattern = regexp.MustCompile(`(^|\s)[\-/.']+(\s|$)`)
)

// unit aliases mapped to the short form used in queries
var unitShortForm = map[string]string{
	"ml": "ml", "millilitre": "ml", "millilitres": "ml", "milliliter": "ml", "milliliters": "ml",
	"l": "l", "ltr": "l", "ltrs": "l", "litre": "l", "litres": "l", "liter": "l", "liters": "l",
	"g": "g", "gm": "g", "gms": "g", "gram": "g", "grams": "g",
	"kg": "kg", "kgs": "kg", "kilo": "kg", "kilos": "kg", "kilogram": "kg", "kilograms": "kg",
	"pc": "pcs", "pcs": "pcs", "piece": "pcs", "pieces": "pcs",
	"dozen": "dozen",
}

// base unit and multiplier for each short form
var unitBase = map[string]struct {
	unit   string
	factor float64
}{
	"ml": {"ml", 1}, "l": {"ml", 1000},
	"g": {"g", 1}, "kg": {"g", 1000},
	"pcs": {"pcs", 1}, "dozen": {"pcs", 12},
}

// queryNoiseWords are marketing and packaging terms that do not narrow a grocery search
var queryNoiseWords = map[string]bool{
	// Marketing terms
	"value": true, "family": true, "bonus": true, "new": true, "improved": true,
	"premium": true, "select": true, "quality": true, "best": true, "great": true,
	"delicious": true, "tasty": true, "favourite": true, "favorite": true, "special": true,
	"buy": true, "online": true, "offer": true, "combo": true,

	// Packaging terms
	"package": true, "packet": true, "box": true, "bag": true, "bottle": true,
	"can": true, "jar": true, "tub": true, "carton": true, "pouch": true,

	// Generic terms
	"food": true, "item": true, "product": true, "brand": true,
}

const maxQueryLength = 100

// Size is a product quantity in base units: ml, g or pcs
type Size struct {
	Amount float64
	Unit   string
}

// NewQueryPreprocessor creates a new query preprocessor
func NewQueryPreprocessor(enableDebugLogging bool) *QueryPreprocessor {
	return &QueryPreprocessor{
		enableDebugLogging: enableDebugLogging,
	}
}

// PreprocessQuery cleans a shopping list entry for a store search.
// Sizes are kept but written compactly ("1 Litre" becomes "1l"), noise words are dropped.
func (p *QueryPreprocessor) PreprocessQuery(item string) string {
	if strings.TrimSpace(item) == "" {
		return ""
	}
	original := item

	cleaned := strings.ToLower(item)
	cleaned = strings.ReplaceAll(cleaned, "&", " and ")
	cleaned = packOfPattern.ReplaceAllString(cleaned, "${1}pcs")
	cleaned = specialCharsPattern.ReplaceAllString(cleaned, " ")
	cleaned = sizeQuantityPattern.ReplaceAllStringFunc(cleaned, compactSize)
	cleaned = p.removeNoiseWords(cleaned)
	cleaned = orphanedPunctuationPattern.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(multiSpacePattern.ReplaceAllString(cleaned, " "))

	if len(cleaned) > maxQueryLength {
		cleaned = cleaned[:maxQueryLength]
		if lastSpace := strings.LastIndex(cleaned, " "); lastSpace > maxQueryLength/2 {
			cleaned = cleaned[:lastSpace]
		}
	}

	if p.enableDebugLogging {
		zap.L().Debug("preprocessed query", zap.String("input", original), zap.String("output", cleaned))
	}
	return cleaned
}

// compactSize rewrites one size match as number plus short unit
func compactSize(match string) string {
	m := sizeQuantityPattern.FindStringSubmatch(match)
	if m == nil {
		return match
	}
	short, ok := unitShortForm[strings.ToLower(m[2])]
	if !ok {
		return match
	}
	return m[1] + short
}

// removeNoiseWords removes marketing and generic terms from the query
func (p *QueryPreprocessor) removeNoiseWords(s string) string {
	words := strings.Fields(s)
	kept := make([]string, 0, len(words))
	for _, word := range words {
		if !queryNoiseWords[strings.Trim(word, ".!?-'")] {
			kept = append(kept, word)
		}
	}
	return strings.Join(kept, " ")
}

// ExtractSize returns the first quantity found in text, converted to base units.
func ExtractSize(text string) (Size, bool) {
	text = packOfPattern.ReplaceAllString(text, "${1} pcs")
	m := sizeQuantityPattern.FindStringSubmatch(text)
	if m == nil {
		return Size{}, false
	}
	amount, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Size{}, false
	}
	base, ok := unitBase[unitShortForm[strings.ToLower(m[2])]]
	if !ok {
		return Size{}, false
	}
	return Size{Amount: amount * base.factor, Unit: base.unit}, true
}

// Equal reports whether two sizes match within 1%
func (s Size) Equal(o Size) bool {
	if s.Unit != o.Unit || s.Amount == 0 || o.Amount == 0 {
		return false
	}
	diff := s.Amount - o.Amount
	if diff < 0 {
		diff = -diff
	}
	return diff <= 0.01*s.Amount
}

// ExtractFoodKeywords extracts the most important grocery keywords from text,
// ordered by importance.
func (p *QueryPreprocessor) ExtractFoodKeywords(text string) []string {
	tokens := tokenize(removeSizes(text))

	var highPriority, medPriority, lowPriority []string
	for _, token := range tokens {
		switch {
		case foodTerms[token]:
			highPriority = append(highPriority, token)
		case descriptiveTerms[token]:
			medPriority = append(medPriority, token)
		default:
			lowPriority = append(lowPriority, token)
		}
	}

	result := make([]string, 0, len(tokens))
	result = append(result, highPriority...)
	result = append(result, medPriority...)
	result = append(result, lowPriority...)
	return result
}

// removeSizes strips quantities so they do not pollute token matching
func removeSizes(s string) string {
	s = packOfPattern.ReplaceAllString(s, " ")
	s = sizeQuantityPattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(multiSpacePattern.ReplaceAllString(s, " "))
}
