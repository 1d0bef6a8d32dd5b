package domain

// Price sources recorded on observations
const (
	SourceCache   = "cache"
	SourceLive    = "live"
	SourceCatalog = "catalog"
	SourceRequest = "request"
)

// Observation is one scraped or fallback (item, store, price, availability) record
type Observation struct {
	Item        Item   `json:"item"`
	Store       string `json:"store"`
	Price       Money  `json:"price"`
	Available   bool   `json:"available"`
	DisplayName string `json:"display_name,omitempty"`
	Source      string `json:"source,omitempty"`
}

// PriceQuery asks a provider for the prices of one item at a set of stores in a city
type PriceQuery struct {
	Item   Item
	City   string
	Stores []string
}

// Listing is a single product returned by a store search API
type Listing struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Brand     string `json:"brand,omitempty"`
	Size      string `json:"size,omitempty"`
	Price     Money  `json:"price"`
	Available bool   `json:"available"`
}

// SearchResponse represents the response from a store search API
type SearchResponse struct {
	Store    string    `json:"store"`
	Query    string    `json:"query"`
	Products []Listing `json:"products"`
}

// MatchResult represents the listing chosen for a requested item
type MatchResult struct {
	Listing       Listing  `json:"listing"`
	MatchScore    float64  `json:"matchScore"`
	MatchedTokens []string `json:"matchedTokens,omitempty"`
}
