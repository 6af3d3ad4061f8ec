package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metapick/internal/consolidate"
	"metapick/internal/database"
	"metapick/internal/indexer"
	"metapick/internal/record"
	"metapick/internal/stats"
)

func sampleRecords(dir string) []*record.Record {
	return []*record.Record{
		{
			Path:           filepath.Join(dir, "a.png"),
			Source:         record.SourceAutomatic1111,
			Model:          "dreamshaper_8",
			Prompt:         "masterpiece, long hair, blue eyes",
			NegativePrompt: "lowres",
			Sampler:        "Euler a",
			Width:          record.Ptr(512),
			Height:         record.Ptr(768),
		},
		{
			Path:    filepath.Join(dir, "b.png"),
			Source:  record.SourceComfyUI,
			Model:   "sdxl_base",
			Prompt:  "masterpiece, long hair",
			Sampler: "Euler a",
			Seed:    record.Ptr(int64(7)),
		},
	}
}

// newTestRouter builds a router over a store holding sampleRecords and,
// when withDB is set, a catalog holding the same records.
func newTestRouter(t *testing.T, withDB bool) *mux.Router {
	t.Helper()
	dir := t.TempDir()
	store := stats.New(stats.DefaultOptions(dir))

	var stored []database.StoredRecord
	for _, rec := range sampleRecords(dir) {
		require.NoError(t, os.WriteFile(rec.Path, []byte(rec.Path), 0o644))
		require.NoError(t, store.Ingest(rec.Path, rec))
		stored = append(stored, database.StoredRecord{Identity: store.Identity(rec.Path, rec), Record: rec})
	}

	var db *database.Database
	if withDB {
		var err error
		db, err = database.New(context.Background(), filepath.Join(dir, "catalog.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		require.NoError(t, db.UpsertRecords(context.Background(), stored))
	}

	r := mux.NewRouter()
	New(store, db, nil).RegisterRoutes(r)
	return r
}

func do(t *testing.T, r http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestGetSummary(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestRouter(t, false), "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	sum := decode[stats.Summary](t, rec)
	assert.Equal(t, 2, sum.TotalImagesProcessed)
	assert.Equal(t, 2, sum.UniqueModels)
	assert.Equal(t, []stats.Count{{Key: "Euler a", Count: 2}}, sum.TopSamplers)
}

func TestGetTop(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, false)

	tests := []struct {
		name   string
		target string
		code   int
		want   []stats.Count
	}{
		{"positive limited", "/api/top/positive?limit=2", http.StatusOK, []stats.Count{
			{Key: "long_hair", Count: 2},
			{Key: "masterpiece", Count: 2},
		}},
		{"dimensions", "/api/top/dimensions", http.StatusOK, []stats.Count{{Key: "512x768", Count: 1}}},
		{"dimensions alias", "/api/dimensions", http.StatusOK, []stats.Count{{Key: "512x768", Count: 1}}},
		{"samplers alias", "/api/samplers?limit=1", http.StatusOK, []stats.Count{{Key: "Euler a", Count: 2}}},
		{"negative", "/api/top/negative", http.StatusOK, []stats.Count{{Key: "lowres", Count: 1}}},
		{"unknown category", "/api/top/colors", http.StatusNotFound, nil},
		{"bad limit", "/api/top/models?limit=x", http.StatusBadRequest, nil},
		{"negative limit", "/api/top/models?limit=-1", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := do(t, r, tt.target)
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.want != nil {
				assert.Equal(t, tt.want, decode[[]stats.Count](t, rec))
			}
		})
	}
}

func TestGetModels(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestRouter(t, false), "/api/models")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]stats.Count](t, rec), 2)
}

func TestSearchTags(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, false)

	rec := do(t, r, "/api/tags/positive?q=HAIR")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []stats.Count{{Key: "long_hair", Count: 2}}, decode[[]stats.Count](t, rec))

	rec = do(t, r, "/api/tags/positive?q=HAIR&case_sensitive=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]stats.Count](t, rec))

	rec = do(t, r, "/api/tags/positive?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]stats.Count](t, rec), 1)

	assert.Equal(t, http.StatusNotFound, do(t, r, "/api/tags/models").Code)
}

func TestSimilarTags(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, false)

	rec := do(t, r, "/api/tags/positive/similar?tag=long_hairs&threshold=0.8")
	require.Equal(t, http.StatusOK, rec.Code)
	matches := decode[[]consolidate.Match](t, rec)
	require.NotEmpty(t, matches)
	assert.Equal(t, "long_hair", matches[0].Tag)

	rec = do(t, r, "/api/tags/positive/similar?tag=zzzzzzzz&threshold=0.99")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, do(t, r, "/api/tags/positive/similar").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, "/api/tags/positive/similar?tag=a&threshold=2").Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, "/api/tags/samplers/similar?tag=a").Code)
}

func TestGetSuggestions(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, false)

	rec := do(t, r, "/api/suggestions/negative?min_count=100")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, do(t, r, "/api/suggestions/negative?min_count=no").Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, "/api/suggestions/dimensions").Code)
}

func TestGetModelMappings(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestRouter(t, false), "/api/models/mappings")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "{}", rec.Body.String())
}

func TestCatalogDisabled(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, false)
	for _, target := range []string{"/api/records", "/api/records/lookup?path=x", "/api/sources"} {
		rec := do(t, r, target)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "catalog is disabled")
	}
}

func TestListRecords(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, true)

	rec := do(t, r, "/api/records")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]database.StoredRecord](t, rec)
	require.Len(t, all, 2)
	assert.Equal(t, "dreamshaper_8", all[0].Record.Model)

	rec = do(t, r, "/api/records?source="+record.SourceComfyUI)
	require.Equal(t, http.StatusOK, rec.Code)
	filtered := decode[[]database.StoredRecord](t, rec)
	require.Len(t, filtered, 1)
	assert.Equal(t, "sdxl_base", filtered[0].Record.Model)

	rec = do(t, r, "/api/records?limit=1&offset=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]database.StoredRecord](t, rec), 1)

	assert.Equal(t, http.StatusBadRequest, do(t, r, "/api/records?offset=-3").Code)
}

func TestGetRecord(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, true)

	rec := do(t, r, "/api/records")
	require.Equal(t, http.StatusOK, rec.Code)
	path := decode[[]database.StoredRecord](t, rec)[0].Record.Path

	rec = do(t, r, "/api/records/lookup?path="+path)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[database.StoredRecord](t, rec)
	assert.Equal(t, path, got.Record.Path)

	assert.Equal(t, http.StatusNotFound, do(t, r, "/api/records/lookup?path=/nope.png").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, "/api/records/lookup").Code)
}

func TestGetSources(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestRouter(t, true), "/api/sources")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{
		record.SourceAutomatic1111: 1,
		record.SourceComfyUI:       1,
	}, decode[map[string]int](t, rec))
}

func TestHealthWithoutIndexer(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, false)

	rec := do(t, r, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[HealthResponse](t, rec)
	assert.Equal(t, statusHealthy, health.Status)
	assert.True(t, health.Ready)
	assert.Equal(t, 2, health.ImagesProcessed)

	assert.Equal(t, http.StatusOK, do(t, r, "/readyz").Code)
	assert.Equal(t, http.StatusOK, do(t, r, "/healthz").Code)
}

func TestHealthReportsCatalogLastRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := stats.New(stats.DefaultOptions(dir))
	db, err := database.New(context.Background(), filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	r := mux.NewRouter()
	New(store, db, nil).RegisterRoutes(r)

	health := decode[HealthResponse](t, do(t, r, "/health"))
	assert.Empty(t, health.LastRun)

	finished := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	require.NoError(t, db.SetLastRun(context.Background(), finished))

	health = decode[HealthResponse](t, do(t, r, "/health"))
	assert.Equal(t, finished.Format(time.RFC3339), health.LastRun)
}

func TestHealthBeforeFirstRun(t *testing.T) {
	t.Parallel()

	store := stats.New(stats.DefaultOptions(t.TempDir()))
	r := mux.NewRouter()
	New(store, nil, indexer.New(nil, nil, store, nil)).RegisterRoutes(r)

	rec := do(t, r, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	health := decode[HealthResponse](t, rec)
	assert.Equal(t, statusStarting, health.Status)
	assert.False(t, health.Ready)
	assert.NotEmpty(t, health.Uptime)

	rec = do(t, r, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"not_ready"}`, rec.Body.String())
}

func TestLivenessCheck(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, false)

	rec := do(t, r, "/livez")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodHead, "/livez", nil)
	head := httptest.NewRecorder()
	r.ServeHTTP(head, req)
	assert.Equal(t, http.StatusOK, head.Code)
	assert.Empty(t, head.Body.String())
}

func TestGetVersion(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestRouter(t, false), "/version")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), `"goVersion"`)
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	h := New(stats.New(stats.DefaultOptions(t.TempDir())), nil, nil)
	rec := do(t, h.MetricsHandler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestQueryParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query string
		wantI int
		okI   bool
		wantF float64
		okF   bool
	}{
		{"", 5, true, 0.5, true},
		{"?v=3", 3, true, 0, false},
		{"?v=0.25", 0, false, 0.25, true},
		{"?v=-1", 0, false, 0, false},
		{"?v=1", 1, true, 1, true},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.query, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil)

			i, ok := intParam(r, "v", 5)
			assert.Equal(t, tt.okI, ok)
			if ok {
				assert.Equal(t, tt.wantI, i)
			}

			f, ok := floatParam(r, "v", 0.5)
			assert.Equal(t, tt.okF, ok)
			if ok {
				assert.InDelta(t, tt.wantF, f, 1e-9)
			}
		})
	}
}
