package domain

import "time"

// CategoryKind distinguishes the three classification axes, which share one
// catalog table.
type CategoryKind string

const (
	CategoryKindCategory    CategoryKind = "category"
	CategoryKindSubcategory CategoryKind = "subcategory"
	CategoryKindGroup       CategoryKind = "group"
)

// Category is one entry in the classification catalog.
type Category struct {
	ID        string
	Kind      CategoryKind
	Name      string
	Active    bool
	CreatedAt time.Time
}
