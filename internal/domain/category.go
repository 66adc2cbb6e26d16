package domain

import (
	"fmt"
	"strings"
)

// Category is the service class of an order item, set when the item is created.
type Category string

const (
	CategoryWashFold   Category = "WASH_FOLD"
	CategoryDryClean   Category = "DRY_CLEAN"
	CategoryPress      Category = "PRESS"
	CategoryAlteration Category = "ALTERATION"
	CategoryOther      Category = "OTHER"
)

// ParseCategory accepts any letter case; an empty string yields "".
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case "", CategoryWashFold, CategoryDryClean, CategoryPress, CategoryAlteration, CategoryOther:
		return c, nil
	}
	return "", fmt.Errorf("invalid category %q", s)
}

var categoryKeywords = []struct {
	category Category
	words    []string
}{
	{CategoryAlteration, []string{"alter", "hem", "tailor", "repair", "zip"}},
	{CategoryDryClean, []string{"dry", "suit", "dress", "coat", "blazer", "gown"}},
	{CategoryPress, []string{"press", "iron", "steam"}},
	{CategoryWashFold, []string{"wash", "fold", "laundry", "bag", "kg"}},
}

// CategoryFromName infers a category from a free-text service name. It exists
// for items created without an explicit category and for backfilling rows
// written before the column existed.
func CategoryFromName(name string) Category {
	n := strings.ToLower(name)
	for _, ck := range categoryKeywords {
		for _, w := range ck.words {
			if strings.Contains(n, w) {
				return ck.category
			}
		}
	}
	return CategoryOther
}

// Code is the short fragment used inside scan tokens.
func (c Category) Code() string {
	switch c {
	case CategoryWashFold:
		return "WF"
	case CategoryDryClean:
		return "DC"
	case CategoryPress:
		return "PR"
	case CategoryAlteration:
		return "AL"
	}
	return "OT"
}
