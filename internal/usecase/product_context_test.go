package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/suppchat/backend/internal/domain"
)

func TestRenderProductContext(t *testing.T) {
	enriched := itemVitaminD3
	enriched.Currency = "EUR"
	enriched.Content = &domain.ProductContent{Benefits: []string{"Immunité", "Os", "Muscles", "Dents"}}
	soldOut := itemOmega3
	soldOut.Available = false

	got := RenderProductContext(testSnapshot(enriched, soldOut), 3)
	want := "- Vitamine D3 (vitamine-d3): 14.90 EUR, en stock\n" +
		"  Bienfaits: Immunité; Os; Muscles\n" +
		"- Oméga 3 EPAX (omega-3-epax): 24.50, en rupture\n"
	if got != want {
		t.Errorf("RenderProductContext() =\n%s\nwant\n%s", got, want)
	}

	if got := RenderProductContext(nil, 3); got != "" {
		t.Errorf("RenderProductContext(nil) = %q, want empty", got)
	}
}

func TestProductContextService_CachesUntilRefresh(t *testing.T) {
	ctx := context.Background()
	source := singlePageSource(itemVitaminD3)
	catalog, _, _ := newTestCatalogService(source, nil, nil)
	cache := NewMockByteCache()
	svc := NewProductContextService(catalog, cache, zerolog.Nop(), ProductContextConfig{})
	catalog.OnRefresh(svc.Invalidate)

	first, err := svc.Render(ctx)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(first, "vitamine-d3") {
		t.Fatalf("Render() = %q, want vitamine-d3 line", first)
	}
	// The first render triggered the initial refresh before caching
	if !cache.has("catalog:context") {
		t.Fatal("expected rendered context to be cached")
	}

	source.mu.Lock()
	source.pages[""] = &domain.CatalogPage{Items: []domain.CatalogItem{itemVitaminD3, itemMagnesium}}
	source.mu.Unlock()

	cached, err := svc.Render(ctx)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if cached != first {
		t.Error("expected the cached context before refresh")
	}

	if _, err := catalog.GetSnapshot(ctx, true); err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if cache.has("catalog:context") {
		t.Fatal("refresh should invalidate the rendered context")
	}

	refreshed, err := svc.Render(ctx)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(refreshed, "magnesium") {
		t.Errorf("Render() = %q, want magnesium after refresh", refreshed)
	}
}

func TestProductContextService_PropagatesCatalogErrors(t *testing.T) {
	svc := NewProductContextService(&MockSnapshotProvider{err: domain.ErrCatalogUnavailable}, NewMockByteCache(), zerolog.Nop(), ProductContextConfig{})
	if _, err := svc.Render(context.Background()); err == nil {
		t.Error("Render() error = nil, want catalog error")
	}
}
