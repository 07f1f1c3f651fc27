package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suppchat/backend/internal/domain"
)

const (
	serviceName    = "suppchat-backend"
	serviceVersion = "1.0.0"

	maxQuestionLength = 4000
)

// AnswerCache is the answer lookup and promotion surface used by the chat
// orchestrator
type AnswerCache interface {
	Lookup(ctx context.Context, question string, profile *domain.UserProfile) (*domain.CacheEntry, bool)
	RecordOccurrence(ctx context.Context, question, response string, profile *domain.UserProfile, products []domain.ProductRef)
}

// CatalogProvider returns the catalog snapshot, optionally forcing a refresh
type CatalogProvider interface {
	GetSnapshot(ctx context.Context, forceRefresh bool) (*domain.CatalogSnapshot, error)
}

// ContextRenderer returns the rendered product context block
type ContextRenderer interface {
	Render(ctx context.Context) (string, error)
}

// Handler holds dependencies for HTTP handlers. Any of them may be nil, in
// which case the matching endpoints answer 501.
type Handler struct {
	answers  AnswerCache
	catalog  CatalogProvider
	products ContextRenderer
	storeURL string
}

// NewHandler creates a new HTTP handler. storeURL is the public storefront
// used to build links for products recorded by handle.
func NewHandler(answers AnswerCache, catalog CatalogProvider, products ContextRenderer, storeURL string) *Handler {
	return &Handler{
		answers:  answers,
		catalog:  catalog,
		products: products,
		storeURL: strings.TrimRight(storeURL, "/"),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// LookupRequest is the body of POST /api/v1/answers/lookup
type LookupRequest struct {
	Question string              `json:"question"`
	Profile  *domain.UserProfile `json:"profile,omitempty"`
}

// LookupResponse reports whether a cached answer can be served
type LookupResponse struct {
	Hit   bool               `json:"hit"`
	Tier  domain.Tier        `json:"tier,omitempty"`
	Entry *domain.CacheEntry `json:"entry,omitempty"`
}

// LookupAnswer consults the cache tiers for a question
func (h *Handler) LookupAnswer(c *gin.Context) {
	if h.answers == nil {
		notConfigured(c, "answer cache")
		return
	}

	var req LookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := validateQuestion(req.Question); err != nil {
		badRequest(c, err.Error())
		return
	}

	entry, ok := h.answers.Lookup(c.Request.Context(), req.Question, req.Profile)
	if !ok {
		c.JSON(http.StatusOK, LookupResponse{Hit: false})
		return
	}
	c.JSON(http.StatusOK, LookupResponse{Hit: true, Tier: entry.Tier, Entry: entry})
}

// RecordRequest is the body of POST /api/v1/answers/record. Products may be
// sent verbatim or as handles resolved against the current catalog.
type RecordRequest struct {
	Question string              `json:"question"`
	Response string              `json:"response"`
	Profile  *domain.UserProfile `json:"profile,omitempty"`
	Products []domain.ProductRef `json:"products,omitempty"`
	Handles  []string            `json:"handles,omitempty"`
}

// RecordAnswer reports a freshly generated answer to the frequency tracker
func (h *Handler) RecordAnswer(c *gin.Context) {
	if h.answers == nil {
		notConfigured(c, "answer cache")
		return
	}

	var req RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := validateQuestion(req.Question); err != nil {
		badRequest(c, err.Error())
		return
	}
	if strings.TrimSpace(req.Response) == "" {
		badRequest(c, "response is required")
		return
	}

	ctx := c.Request.Context()
	products := append([]domain.ProductRef(nil), req.Products...)
	if len(req.Handles) > 0 {
		products = append(products, h.resolveHandles(ctx, req.Handles)...)
	}

	h.answers.RecordOccurrence(ctx, req.Question, req.Response, req.Profile, products)
	c.JSON(http.StatusAccepted, gin.H{"status": "recorded"})
}

// resolveHandles snapshots the catalog items named by handles; unknown
// handles are dropped
func (h *Handler) resolveHandles(ctx context.Context, handles []string) []domain.ProductRef {
	if h.catalog == nil {
		return nil
	}
	snapshot, err := h.catalog.GetSnapshot(ctx, false)
	if err != nil {
		return nil
	}

	refs := make([]domain.ProductRef, 0, len(handles))
	for _, handle := range handles {
		if item, ok := snapshot.Find(handle); ok {
			refs = append(refs, item.Ref(h.storeURL))
		}
	}
	return refs
}

// CatalogResponse describes a catalog snapshot
type CatalogResponse struct {
	FetchedAt time.Time            `json:"fetchedAt"`
	ItemCount int                  `json:"itemCount"`
	Enriched  int                  `json:"enriched"`
	Items     []domain.CatalogItem `json:"items,omitempty"`
}

// GetCatalog returns the current snapshot, refreshing it when stale.
// ?summary=true omits the items.
func (h *Handler) GetCatalog(c *gin.Context) {
	h.serveCatalog(c, false)
}

// RefreshCatalog forces a catalog refresh and returns its summary
func (h *Handler) RefreshCatalog(c *gin.Context) {
	h.serveCatalog(c, true)
}

func (h *Handler) serveCatalog(c *gin.Context, force bool) {
	if h.catalog == nil {
		notConfigured(c, "catalog")
		return
	}

	snapshot, err := h.catalog.GetSnapshot(c.Request.Context(), force)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := CatalogResponse{
		FetchedAt: snapshot.FetchedAt,
		ItemCount: snapshot.Len(),
	}
	for _, item := range snapshot.Items {
		if !item.Content.IsEmpty() {
			resp.Enriched++
		}
	}
	if !force && c.Query("summary") != "true" {
		resp.Items = snapshot.Items
	}
	c.JSON(http.StatusOK, resp)
}

// GetProductContext returns the rendered product context
func (h *Handler) GetProductContext(c *gin.Context) {
	if h.products == nil {
		notConfigured(c, "product context")
		return
	}

	text, err := h.products.Render(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"context": text})
}

func validateQuestion(question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return errors.New("question is required")
	}
	if len(question) > maxQuestionLength {
		return errors.New("question is too long")
	}
	return nil
}

// respondError maps domain errors to HTTP statuses
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrCatalogUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog unavailable"})
	case errors.Is(err, domain.ErrInvalidRequest):
		badRequest(c, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})
	case errors.Is(err, context.Canceled):
		c.JSON(499, gin.H{"error": "request canceled"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func notConfigured(c *gin.Context, what string) {
	c.JSON(http.StatusNotImplemented, gin.H{"error": what + " not configured"})
}
