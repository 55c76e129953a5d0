package filter

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/collectline/dunlin/internal/domain"
)

// fieldDef declares one field available in the filter builder. TEXT fields
// name the master-data category their option list is sourced from.
type fieldDef struct {
	ID          string
	DisplayName string
	Type        domain.FilterType
	Category    string
}

// fieldDefs is the static field definition table for the case schema the
// dispatch engine evaluates against.
var fieldDefs = []fieldDef{
	{ID: "dpd", DisplayName: "Days Past Due", Type: domain.FilterNumeric},
	{ID: "loan_amount", DisplayName: "Loan Amount", Type: domain.FilterNumeric},
	{ID: "due_amount", DisplayName: "Total Due Amount", Type: domain.FilterNumeric},
	{ID: "emi_amount", DisplayName: "EMI Amount", Type: domain.FilterNumeric},
	{ID: "bucket", DisplayName: "DPD Bucket", Type: domain.FilterText, Category: domain.CategoryBucket},
	{ID: "state", DisplayName: "Customer State", Type: domain.FilterText, Category: domain.CategoryState},
	{ID: "language", DisplayName: "Preferred Language", Type: domain.FilterText, Category: domain.CategoryLanguage},
	{ID: "product_type", DisplayName: "Product Type", Type: domain.FilterText, Category: domain.CategoryProductType},
	{ID: "due_date", DisplayName: "Due Date", Type: domain.FilterDate},
	{ID: "last_payment_date", DisplayName: "Last Payment Date", Type: domain.FilterDate},
	{ID: "allocation_date", DisplayName: "Allocation Date", Type: domain.FilterDate},
}

// Catalog is the session-scoped filter field catalog: immutable once built,
// shared read-only across simultaneous condition edits.
type Catalog struct {
	fields []domain.FilterField
	byID   map[string]*domain.FilterField
}

// NewCatalog builds a catalog from explicit fields (used by tests and by the
// loader).
func NewCatalog(fields []domain.FilterField) *Catalog {
	c := &Catalog{
		fields: fields,
		byID:   make(map[string]*domain.FilterField, len(fields)),
	}
	for i := range c.fields {
		c.byID[c.fields[i].ID] = &c.fields[i]
	}
	return c
}

// Fields returns the catalog in declaration order.
func (c *Catalog) Fields() []domain.FilterField {
	return c.fields
}

// Field looks up a field by id.
func (c *Catalog) Field(id string) (*domain.FilterField, bool) {
	f, ok := c.byID[id]
	return f, ok
}

// Loader assembles the catalog from master data, caching option lists so one
// editing session never refetches them.
type Loader struct {
	repo  domain.Repository
	cache domain.Cache
	ttl   time.Duration
}

// NewLoader creates a catalog loader. ttl bounds how long cached option
// lists are served before master data is consulted again.
func NewLoader(repo domain.Repository, cache domain.Cache, ttl time.Duration) *Loader {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Loader{repo: repo, cache: cache, ttl: ttl}
}

// Load builds the current catalog. Option lists contain active master-data
// entries only. A category that fails to load yields a field with no
// options rather than failing the whole catalog.
func (l *Loader) Load(ctx context.Context) (*Catalog, error) {
	fields := make([]domain.FilterField, 0, len(fieldDefs))
	for _, def := range fieldDefs {
		field := domain.FilterField{
			ID:          def.ID,
			DisplayName: def.DisplayName,
			Type:        def.Type,
		}
		if def.Category != "" {
			options, err := l.options(ctx, def.Category)
			if err != nil {
				slog.Warn("failed to load filter options",
					"field", def.ID,
					"category", def.Category,
					"error", err,
				)
			}
			field.Options = options
		}
		fields = append(fields, field)
	}
	return NewCatalog(fields), nil
}

func (l *Loader) options(ctx context.Context, category string) ([]domain.FieldOption, error) {
	cacheKey := "options:" + category

	if l.cache != nil {
		if data, err := l.cache.Get(ctx, cacheKey); err == nil && data != nil {
			var options []domain.FieldOption
			if err := json.Unmarshal(data, &options); err == nil {
				return options, nil
			}
		}
	}

	entries, err := l.repo.ListMasterData(ctx, category)
	if err != nil {
		return nil, err
	}

	options := make([]domain.FieldOption, 0, len(entries))
	for _, e := range entries {
		if !e.IsActive {
			continue
		}
		options = append(options, domain.FieldOption{Code: e.Code, Value: e.Value})
	}

	if l.cache != nil {
		if data, err := json.Marshal(options); err == nil {
			_ = l.cache.Set(ctx, cacheKey, data, l.ttl)
		}
	}

	return options, nil
}
