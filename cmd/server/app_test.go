package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suppchat/backend/config"
)

const listingBody = `{"products":[
	{"title":"Vitamine D3","handle":"vitamine-d3","body_html":"<p>Soleil en gouttes</p>","variants":[{"price":"14.90","available":true}]},
	{"title":"Magnesium Bisglycinate","handle":"magnesium","variants":[{"price":"19.90","available":false}]}
]}`

const detailBody = `<html><body>
<h3>Bienfaits</h3><ul><li>Réduit la fatigue</li><li>Soutient les muscles</li></ul>
<h3>Conseils d'utilisation</h3><p>2 gélules par jour</p>
</body></html>`

func newCommerceServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var listings atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/products.json":
			listings.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(listingBody))
		case strings.HasPrefix(r.URL.Path, "/products/"):
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(detailBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &listings
}

func testAppConfig(baseURL string) *config.Config {
	return &config.Config{
		Commerce: config.CommerceConfig{BaseURL: baseURL, StoreURL: "https://shop.example.com", Currency: "EUR", Timeout: 5 * time.Second},
		Catalog:  config.CatalogConfig{SnapshotTTL: time.Hour, PageTimeout: 5 * time.Second, MaxBenefits: 2},
		Enrichment: config.EnrichmentConfig{
			Enabled:    true,
			BatchPause: time.Millisecond,
			Timeout:    5 * time.Second,
		},
		Cache:   config.CacheConfig{Type: "memory"},
		Store:   config.StoreConfig{Driver: "memory"},
		Answers: config.AnswersConfig{EntryTTL: time.Hour, PromotionThreshold: 2},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()
	a, err := newApp(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { a.close() })
	return a
}

func TestNewApp_RefreshAndRender(t *testing.T) {
	srv, listings := newCommerceServer(t)
	a := newTestApp(t, testAppConfig(srv.URL))
	ctx := context.Background()

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	require.NoError(t, runRefresh(ctx, a, cmd))

	assert.Contains(t, out.String(), "items:      2")
	assert.Contains(t, out.String(), "enriched:   2")
	assert.Equal(t, int32(1), listings.Load())

	rendered, err := a.products.Render(ctx)
	require.NoError(t, err)
	assert.Contains(t, rendered, "- Vitamine D3 (vitamine-d3): 14.90 EUR, en stock")
	assert.Contains(t, rendered, "en rupture")
	assert.Contains(t, rendered, "Bienfaits: Réduit la fatigue; Soutient les muscles")

	// Fresh snapshot: no second listing fetch
	_, err = a.catalog.GetSnapshot(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), listings.Load())
}

func TestNewApp_EnrichmentDisabled(t *testing.T) {
	srv, _ := newCommerceServer(t)
	cfg := testAppConfig(srv.URL)
	cfg.Enrichment.Enabled = false
	a := newTestApp(t, cfg)

	snapshot, err := a.catalog.GetSnapshot(context.Background(), true)
	require.NoError(t, err)
	for _, item := range snapshot.Items {
		assert.Nil(t, item.Content, item.Handle)
	}
}

func TestNewApp_AnswersPromote(t *testing.T) {
	srv, _ := newCommerceServer(t)
	a := newTestApp(t, testAppConfig(srv.URL))
	ctx := context.Background()

	a.answers.RecordOccurrence(ctx, "Quels sont les frais de livraison ?", "5 EUR", nil, nil)
	a.answers.RecordOccurrence(ctx, "frais de livraison ?", "Offerts dès 50 EUR", nil, nil)

	entry, ok := a.answers.Lookup(ctx, "Les frais de livraison", nil)
	require.True(t, ok)
	assert.Equal(t, "Offerts dès 50 EUR", entry.ResponseText)
}

func TestNewApp_SQLiteStore(t *testing.T) {
	srv, _ := newCommerceServer(t)
	cfg := testAppConfig(srv.URL)
	cfg.Store = config.StoreConfig{Driver: "sqlite", Path: t.TempDir() + "/answers.db"}

	a := newTestApp(t, cfg)
	ctx := context.Background()
	a.answers.RecordOccurrence(ctx, "horaires du service client", "9h-18h", nil, nil)
	a.answers.RecordOccurrence(ctx, "horaires du service client", "9h-18h", nil, nil)

	_, ok := a.answers.Lookup(ctx, "horaires du service client", nil)
	assert.True(t, ok)
}

func TestOpenStoreAndCache_UnknownTypes(t *testing.T) {
	_, err := openStore(config.StoreConfig{Driver: "postgres"})
	assert.Error(t, err)

	_, err = openCache(context.Background(), config.CacheConfig{Type: "memcached"})
	assert.Error(t, err)

	_, err = openCache(context.Background(), config.CacheConfig{Type: "redis", RedisURL: "::not a url"})
	assert.Error(t, err)
}

func TestNormalizeCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"normalize", "Quelle", "différence", "entre", "magnésium", "et", "vitamine", "D3", "?"})
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	}()

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "key:        faq:d3 difference magnesium vitamine")
	assert.Contains(t, out.String(), "comparison: true")
}

func TestNormalizeCommand_EmptyQuestion(t *testing.T) {
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"normalize", "et", "le"})
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	}()

	assert.Error(t, rootCmd.Execute())
}
