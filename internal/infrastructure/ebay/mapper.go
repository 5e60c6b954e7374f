package ebay

import (
	"strings"

	"github.com/catalogfill/enricher/internal/domain"
)

// CategoryPathSeparator joins category names from root to leaf
const CategoryPathSeparator = " > "

// MapToEnrichment converts the first search hit into an enrichment patch
func MapToEnrichment(item domain.ItemSummary) domain.Enrichment {
	return domain.Enrichment{
		ProductName:  item.Title,
		CategoryID:   firstLeafCategory(item.LeafCategoryIDs),
		CategoryPath: BuildCategoryPath(item.Categories),
	}
}

// BuildCategoryPath joins category names in the order the API returned them
func BuildCategoryPath(categories []domain.Category) string {
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.CategoryName)
	}
	return strings.Join(names, CategoryPathSeparator)
}

func firstLeafCategory(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}
