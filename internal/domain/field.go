package domain

// FieldOption is one enumerated choice for a TEXT filter field. Code is the
// UI-internal selection code; Value is the backend-canonical display value.
type FieldOption struct {
	Code  string `json:"code"`
	Value string `json:"value"`
}

// FilterField describes one field available in the filter builder. Fields
// are immutable once loaded; option lists exist only for TEXT fields and are
// sourced from active master data.
type FilterField struct {
	ID          string        `json:"id"`
	DisplayName string        `json:"displayName"`
	Type        FilterType    `json:"type"`
	Options     []FieldOption `json:"options,omitempty"`
}

// MasterDataEntry is one row of an externally managed reference list
// (languages, states, buckets, comparison signs, ...).
type MasterDataEntry struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Value    string `json:"value"`
	IsActive bool   `json:"isActive"`
	Sort     int    `json:"sort"`
}

// Master data categories consumed by the filter field catalog.
const (
	CategoryBucket         = "BUCKET"
	CategoryState          = "STATE"
	CategoryLanguage       = "LANGUAGE"
	CategoryProductType    = "PRODUCT_TYPE"
	CategoryComparisonSign = "COMPARISON_SIGN"
)
