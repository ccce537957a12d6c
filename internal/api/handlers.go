package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/bridge"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *bridge.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *bridge.Service) *Handler {
	return &Handler{svc: svc}
}

// pageID extracts the (book, page) pair from the URL.
func pageID(r *http.Request) (models.PageID, bool) {
	book, err := strconv.Atoi(chi.URLParam(r, "book"))
	if err != nil {
		return models.PageID{}, false
	}
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil {
		return models.PageID{}, false
	}
	return models.PageID{Book: book, Page: page}, true
}

// ListPages handles GET /api/pages.
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.svc.Pages(r.Context())
	if err != nil {
		slog.Error("list pages failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if statuses == nil {
		statuses = []bridge.PageStatus{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pages": statuses,
		"total": len(statuses),
	})
}

// GetPage handles GET /api/pages/{book}/{page}.
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	page, ok := pageID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid page id"))
		return
	}
	status, err := h.svc.PageStatus(r.Context(), page)
	if err != nil {
		slog.Error("page status failed",
			slog.String("page", page.String()),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// RecognizePage handles POST /api/pages/{book}/{page}/recognize: it runs
// one reconciliation pass for the page and returns the summary.
func (h *Handler) RecognizePage(w http.ResponseWriter, r *http.Request) {
	page, ok := pageID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid page id"))
		return
	}
	sum, err := h.svc.RecognizePage(r.Context(), page)
	if err != nil {
		slog.Error("recognize page failed",
			slog.String("page", page.String()),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("recognition failed"))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// RecognizeAll handles POST /api/recognize: one sequential pass over every
// page with unrecognized strokes.
func (h *Handler) RecognizeAll(w http.ResponseWriter, r *http.Request) {
	summaries := h.svc.RecognizeAll(r.Context())
	if summaries == nil {
		summaries = []models.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"passes": summaries,
		"total":  len(summaries),
	})
}
