package domain

// AccessToken is an OAuth bearer token. The empty token means requests go out unauthenticated.
type AccessToken string

// TokenResponse represents the body of a successful client-credentials grant
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// SearchResponse represents the response from the item summary search API
type SearchResponse struct {
	Href          string        `json:"href,omitempty"`
	Total         int           `json:"total"`
	Limit         int           `json:"limit,omitempty"`
	ItemSummaries []ItemSummary `json:"itemSummaries"`
}

// ItemSummary represents a single listing returned by the search API
type ItemSummary struct {
	ItemID          string     `json:"itemId,omitempty"`
	Title           string     `json:"title"`
	LeafCategoryIDs []string   `json:"leafCategoryIds"`
	Categories      []Category `json:"categories"`
}

// Category is one level of an item's category path, root first
type Category struct {
	CategoryID   string `json:"categoryId,omitempty"`
	CategoryName string `json:"categoryName"`
}

// Enrichment is the patch a successful lookup produces for one record
type Enrichment struct {
	ProductName  string `json:"product_name"`
	CategoryID   string `json:"category_id"`
	CategoryPath string `json:"category_path"`
}
