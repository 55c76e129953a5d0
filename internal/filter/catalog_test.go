package filter

import (
	"context"
	"testing"
	"time"

	"github.com/collectline/dunlin/internal/domain"
)

type stubMasterData struct {
	domain.Repository
	entries map[string][]*domain.MasterDataEntry
	calls   int
}

func (s *stubMasterData) ListMasterData(ctx context.Context, category string) ([]*domain.MasterDataEntry, error) {
	s.calls++
	return s.entries[category], nil
}

type mapCache struct {
	data map[string][]byte
}

func (c *mapCache) Get(ctx context.Context, key string) ([]byte, error) {
	return c.data[key], nil
}

func (c *mapCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(ctx context.Context, key string) error {
	delete(c.data, key)
	return nil
}

func (c *mapCache) Ping(ctx context.Context) error { return nil }
func (c *mapCache) Close() error                   { return nil }

func TestLoaderBuildsCatalog(t *testing.T) {
	repo := &stubMasterData{entries: map[string][]*domain.MasterDataEntry{
		domain.CategoryLanguage: {
			{Category: domain.CategoryLanguage, Code: "en", Value: "English", IsActive: true, Sort: 1},
			{Category: domain.CategoryLanguage, Code: "la", Value: "Latin", IsActive: false, Sort: 2},
		},
	}}

	loader := NewLoader(repo, nil, time.Minute)
	catalog, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	field, ok := catalog.Field("language")
	if !ok {
		t.Fatal("language field missing from catalog")
	}
	if len(field.Options) != 1 || field.Options[0].Code != "en" {
		t.Errorf("options = %v, want active entries only", field.Options)
	}

	numeric, ok := catalog.Field("dpd")
	if !ok {
		t.Fatal("dpd field missing from catalog")
	}
	if numeric.Type != domain.FilterNumeric {
		t.Errorf("dpd type = %s, want NUMERIC", numeric.Type)
	}
	if len(numeric.Options) != 0 {
		t.Errorf("numeric field has options: %v", numeric.Options)
	}
}

func TestLoaderCachesOptionLists(t *testing.T) {
	repo := &stubMasterData{entries: map[string][]*domain.MasterDataEntry{
		domain.CategoryBucket: {
			{Category: domain.CategoryBucket, Code: "B1", Value: "1-30 DPD", IsActive: true},
		},
	}}
	cache := &mapCache{data: make(map[string][]byte)}

	loader := NewLoader(repo, cache, time.Minute)

	if _, err := loader.Load(context.Background()); err != nil {
		t.Fatalf("first Load failed: %v", err)
	}
	first := repo.calls

	if _, err := loader.Load(context.Background()); err != nil {
		t.Fatalf("second Load failed: %v", err)
	}

	if repo.calls != first {
		t.Errorf("second load hit the repository: %d calls, want %d", repo.calls, first)
	}
}
