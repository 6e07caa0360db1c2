package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/flowwijs/elektra-scraper/internal/export"
	"github.com/flowwijs/elektra-scraper/internal/extract"
	"github.com/flowwijs/elektra-scraper/internal/models"
	"github.com/flowwijs/elektra-scraper/internal/scraper"
)

const (
	scrapeTypeSingle   = "single"
	scrapeTypeCategory = "category"

	defaultListLimit = 50
	maxListLimit     = 500
)

type ProductStore interface {
	Save(ctx context.Context, product *models.Product) error
	List(ctx context.Context, category string, limit int) ([]*models.Product, error)
}

type Exporter interface {
	Export(ctx context.Context, products []*models.Product, sourceURL string) (*export.Result, error)
}

type OutboxStats interface {
	GetPendingCount(ctx context.Context) (int64, error)
	GetDeadLetterCount(ctx context.Context) (int64, error)
}

// Deps wires the handlers; nil Store, XLSX, Sheets or Outbox disable the
// features that need them.
type Deps struct {
	Scraper scraper.Scraper
	Engine  *extract.Engine
	Store   ProductStore
	XLSX    Exporter
	Sheets  Exporter
	Outbox  OutboxStats
	Logger  *slog.Logger
}

type Handlers struct {
	scraper scraper.Scraper
	engine  *extract.Engine
	store   ProductStore
	xlsx    Exporter
	sheets  Exporter
	outbox  OutboxStats
	logger  *slog.Logger
}

func NewHandlers(d Deps) *Handlers {
	if d.Engine == nil {
		d.Engine = extract.NewEngine()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Handlers{
		scraper: d.Scraper,
		engine:  d.Engine,
		store:   d.Store,
		xlsx:    d.XLSX,
		sheets:  d.Sheets,
		outbox:  d.Outbox,
		logger:  d.Logger.With("component", "api"),
	}
}

// ScrapeRequest selects a single product page or a category listing.
type ScrapeRequest struct {
	URL            string `json:"url"`
	ScrapeType     string `json:"scrape_type"`
	ScrapeAllPages bool   `json:"scrape_all_pages"`
	URLsOnly       bool   `json:"urls_only"`
}

func (h *Handlers) Scrape(w http.ResponseWriter, r *http.Request) {
	if h.scraper == nil {
		h.respondError(w, http.StatusServiceUnavailable, "scraper is not available")
		return
	}

	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "URL is required")
		return
	}
	if err := scraper.ValidateURL(req.URL); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid URL format")
		return
	}

	switch req.ScrapeType {
	case "", scrapeTypeSingle:
		result := h.scraper.ScrapeProduct(r.Context(), req.URL)
		if result.Success {
			h.save(r.Context(), result.Product)
		}
		h.respondJSON(w, http.StatusOK, result)
	case scrapeTypeCategory:
		result := h.scraper.ScrapeCategory(r.Context(), req.URL, req.ScrapeAllPages, req.URLsOnly)
		for _, p := range result.Products {
			if p.Success {
				h.save(r.Context(), p.Product)
			}
		}
		h.respondJSON(w, http.StatusOK, result)
	default:
		h.respondError(w, http.StatusBadRequest, "scrape_type must be single or category")
	}
}

func (h *Handlers) save(ctx context.Context, p *models.Product) {
	if h.store == nil || p == nil {
		return
	}
	if err := h.store.Save(ctx, p); err != nil {
		h.logger.Error("failed to store product", "url", p.URL, "error", err)
	}
}

// ExtractRequest carries raw product text. Fields accept any JSON type and
// are coerced to text, so arrays of breadcrumbs and numeric titles work.
type ExtractRequest struct {
	URL         any `json:"url"`
	Title       any `json:"title"`
	Description any `json:"description"`
	Breadcrumb  any `json:"breadcrumb"`
	Brand       any `json:"brand"`
	Color       any `json:"color"`
	Material    any `json:"material"`
}

// Extract runs the engine on posted text without fetching anything.
func (h *Handlers) Extract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	raw := models.RawProduct{
		URL:         extract.CoerceText(req.URL),
		Title:       extract.CoerceText(req.Title),
		Description: extract.CoerceText(req.Description),
		Breadcrumb:  extract.CoerceText(req.Breadcrumb),
		Brand:       extract.CoerceText(req.Brand),
		Color:       extract.CoerceText(req.Color),
		Material:    extract.CoerceText(req.Material),
	}
	if raw.Title == "" && raw.Description == "" && raw.Breadcrumb == "" {
		h.respondError(w, http.StatusBadRequest, "title, description or breadcrumb is required")
		return
	}

	h.respondJSON(w, http.StatusOK, h.engine.Enrich(raw))
}

type ExportRequest struct {
	Products []*models.Product `json:"products"`
	URL      string            `json:"url"`
}

type ExportResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Result  *export.Result `json:"result,omitempty"`
}

func (h *Handlers) ExportExcel(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, h.xlsx, "Excel")
}

func (h *Handlers) ExportSheets(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, h.sheets, "Google Sheets")
}

func (h *Handlers) export(w http.ResponseWriter, r *http.Request, exporter Exporter, name string) {
	if exporter == nil {
		h.respondError(w, http.StatusServiceUnavailable, name+" export is not configured")
		return
	}

	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Products) == 0 {
		h.respondError(w, http.StatusBadRequest, "Product data is required")
		return
	}

	result, err := exporter.Export(r.Context(), req.Products, req.URL)
	if errors.Is(err, export.ErrNoRows) {
		h.respondError(w, http.StatusBadRequest, "Product data is required")
		return
	}
	if err != nil {
		h.logger.Error("export failed", "target", name, "error", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to export to "+name)
		return
	}

	h.respondJSON(w, http.StatusOK, ExportResponse{
		Success: true,
		Message: strconv.Itoa(result.Rows) + " product(s) saved to " + name + " successfully",
		Result:  result,
	})
}

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.respondError(w, http.StatusServiceUnavailable, "database is not enabled")
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	products, err := h.store.List(r.Context(), r.URL.Query().Get("category"), limit)
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	h.respondJSON(w, http.StatusOK, products)
}

// Health reports outbox backlog when the relay runs; a large dead-letter
// count makes the service unhealthy.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{"status": "ok"}
	status := http.StatusOK

	if h.outbox != nil {
		pendingCount, _ := h.outbox.GetPendingCount(r.Context())
		deadLetterCount, _ := h.outbox.GetDeadLetterCount(r.Context())
		health["outbox"] = map[string]any{
			"pending":     pendingCount,
			"dead_letter": deadLetterCount,
		}

		if pendingCount > 1000 {
			health["status"] = "warning"
			health["message"] = "High number of pending outbox events"
		}
		if deadLetterCount > 100 {
			health["status"] = "error"
			health["message"] = "High number of dead letter events"
			status = http.StatusServiceUnavailable
		}
	}

	h.respondJSON(w, status, health)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
