package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"ratingo/internal/database"
	"ratingo/services/sync"
)

// CatalogHandler serves the ingested catalog: trending lists and the
// episode calendar.
type CatalogHandler struct {
	db *database.DB
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(db *database.DB) *CatalogHandler {
	return &CatalogHandler{db: db}
}

// Trending lists the catalog for one media type ordered by trending score.
// GET /api/trending/{type}
func (h *CatalogHandler) Trending(w http.ResponseWriter, r *http.Request) {
	mediaType := mux.Vars(r)["type"]
	if mediaType != sync.MediaTypeSeries && mediaType != sync.MediaTypeMovie {
		writeJSONStatus(w, http.StatusBadRequest, map[string]interface{}{
			"error": "Media type must be series or movie",
		})
		return
	}

	limit := 60
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	items, err := h.db.Media.ListTrending(r.Context(), mediaType, limit)
	if err != nil {
		writeJSONStatus(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to list catalog: " + err.Error(),
		})
		return
	}

	writeJSON(w, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

// Calendar lists upcoming episode air dates, soonest first.
// GET /api/calendar
func (h *CatalogHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	if from == "" {
		from = time.Now().UTC().Format("2006-01-02")
	}

	entries, err := h.db.Calendar.Upcoming(r.Context(), from, 200)
	if err != nil {
		writeJSONStatus(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to list calendar: " + err.Error(),
		})
		return
	}

	writeJSON(w, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}
