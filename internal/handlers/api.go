package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"metapick/internal/consolidate"
	"metapick/internal/database"
	"metapick/internal/logging"
)

const (
	defaultTopLimit = 20
	maxTopLimit     = 1000
)

// GetSummary returns the statistics summary.
func (h *Handlers) GetSummary(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.store.Summary())
}

// GetTop returns the most frequent entries of the category in the path.
// A limit of 0 returns every entry.
func (h *Handlers) GetTop(w http.ResponseWriter, r *http.Request) {
	h.writeTop(w, r, mux.Vars(r)["category"])
}

// TopHandler serves GetTop for a fixed category.
func (h *Handlers) TopHandler(category string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.writeTop(w, r, category)
	}
}

func (h *Handlers) writeTop(w http.ResponseWriter, r *http.Request, category string) {
	limit, ok := intParam(r, "limit", defaultTopLimit)
	if !ok || limit > maxTopLimit {
		writeJSONError(w, "invalid limit", http.StatusBadRequest)
		return
	}

	counts, err := h.store.Top(category, limit)
	if err != nil {
		writeCategoryError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, counts)
}

// SearchTags returns the tags of a category containing q. An empty q
// matches every tag.
func (h *Handlers) SearchTags(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(r, "limit", 0)
	if !ok {
		writeJSONError(w, "invalid limit", http.StatusBadRequest)
		return
	}
	caseSensitive, _ := strconv.ParseBool(r.URL.Query().Get("case_sensitive"))

	counts, err := h.store.TagsMatching(r.URL.Query().Get("q"), mux.Vars(r)["category"], caseSensitive)
	if err != nil {
		writeCategoryError(w, err)
		return
	}
	if limit > 0 && len(counts) > limit {
		counts = counts[:limit]
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, counts)
}

// SimilarTags returns tags similar to the tag query parameter.
func (h *Handlers) SimilarTags(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag")
	if tag == "" {
		writeJSONError(w, "tag is required", http.StatusBadRequest)
		return
	}
	threshold, ok := floatParam(r, "threshold", 0)
	if !ok {
		writeJSONError(w, "threshold must be between 0 and 1", http.StatusBadRequest)
		return
	}

	matches, err := h.store.SimilarTags(tag, mux.Vars(r)["category"], threshold)
	if err != nil {
		writeCategoryError(w, err)
		return
	}
	if matches == nil {
		matches = []consolidate.Match{}
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, matches)
}

// GetSuggestions returns consolidation suggestions for a tag category.
func (h *Handlers) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	minCount, ok := intParam(r, "min_count", 0)
	if !ok {
		writeJSONError(w, "invalid min_count", http.StatusBadRequest)
		return
	}

	suggestions, err := h.store.Suggestions(mux.Vars(r)["category"], minCount)
	if err != nil {
		writeCategoryError(w, err)
		return
	}
	if suggestions == nil {
		suggestions = []consolidate.Suggestion{}
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, suggestions)
}

// GetModelMappings returns the user-defined model display names.
func (h *Handlers) GetModelMappings(w http.ResponseWriter, _ *http.Request) {
	mappings := h.store.ModelMappings()
	if mappings == nil {
		mappings = map[string]string{}
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, mappings)
}

// ListRecords pages through the record catalog.
func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeJSONError(w, "catalog is disabled", http.StatusNotFound)
		return
	}

	limit, okLimit := intParam(r, "limit", 0)
	offset, okOffset := intParam(r, "offset", 0)
	if !okLimit || !okOffset {
		writeJSONError(w, "invalid paging parameters", http.StatusBadRequest)
		return
	}

	recs, err := h.db.ListRecords(r.Context(), database.Filter{
		Source: r.URL.Query().Get("source"),
		Model:  r.URL.Query().Get("model"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		logging.Error("failed to list records: %v", err)
		writeJSONError(w, "failed to list records", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, recs)
}

// GetRecord returns the catalog entry for the path query parameter.
func (h *Handlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeJSONError(w, "catalog is disabled", http.StatusNotFound)
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSONError(w, "path is required", http.StatusBadRequest)
		return
	}

	rec, err := h.db.GetRecord(r.Context(), path)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSONError(w, "record not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("failed to get record %s: %v", path, err)
		writeJSONError(w, "failed to get record", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, rec)
}

// GetSources returns catalog record counts per source.
func (h *Handlers) GetSources(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeJSONError(w, "catalog is disabled", http.StatusNotFound)
		return
	}

	counts, err := h.db.CountBySource(r.Context())
	if err != nil {
		logging.Error("failed to count records: %v", err)
		writeJSONError(w, "failed to count records", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, counts)
}

func writeCategoryError(w http.ResponseWriter, err error) {
	if errors.Is(err, consolidate.ErrUnknownCategory) {
		writeJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	logging.Error("statistics query failed: %v", err)
	writeJSONError(w, "query failed", http.StatusInternalServerError)
}
