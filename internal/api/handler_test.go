package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AlFontal/jpinfect/internal/model"
	"github.com/AlFontal/jpinfect/internal/store"
)

func newTestRouter(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s, err := store.New(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	router := gin.New()
	NewHandler(s, nil).RegisterRoutes(router.Group("/api"))
	return router, s
}

func seed(t *testing.T, s *store.Store) {
	t.Helper()
	rows := []model.NormalizedRow{
		{
			Prefecture: "Hokkaido", Year: 2005, Week: 1, Date: model.WeekStart(2005, 1),
			Disease: "Measles", Category: model.CategoryTotal,
			Count: model.Count64(3), Source: model.SourceConfirmed,
		},
		{
			Prefecture: "Aomori", Year: 2025, Week: 4, Date: model.WeekStart(2025, 4),
			Disease: "Influenza", Category: model.CategoryTotal,
			Count: model.Count64(45), PerSentinel: model.Count64(2.85),
			Source: model.SourceSentinel,
		},
	}
	if err := s.ReplaceObservations(rows); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func get(t *testing.T, router *gin.Engine, path string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)

	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %s: %v (body %s)", path, err, w.Body.String())
	}
	return w, resp
}

func TestGetDataFiltered(t *testing.T) {
	router, s := newTestRouter(t)
	seed(t, s)

	w, resp := get(t, router, "/api/data?disease=Influenza&year_from=2025")
	if w.Code != http.StatusOK || resp.Code != 0 {
		t.Fatalf("status %d, code %d", w.Code, resp.Code)
	}

	data := resp.Data.(map[string]any)
	if data["total"].(float64) != 1 {
		t.Fatalf("total = %v, want 1", data["total"])
	}
	row := data["rows"].([]any)[0].(map[string]any)
	if row["prefecture"] != "Aomori" || row["disease"] != "Influenza" {
		t.Errorf("row = %v", row)
	}
	if row["date"] != "2025-01-20" {
		t.Errorf("date = %v", row["date"])
	}
	if row["perSentinel"].(float64) != 2.85 {
		t.Errorf("perSentinel = %v", row["perSentinel"])
	}
}

func TestGetDataRejectsBadParams(t *testing.T) {
	router, s := newTestRouter(t)
	seed(t, s)

	w, _ := get(t, router, "/api/data?year_from=abc")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetDiseasesAndPrefectures(t *testing.T) {
	router, s := newTestRouter(t)
	seed(t, s)

	_, resp := get(t, router, "/api/diseases")
	diseases := resp.Data.([]any)
	if len(diseases) != 2 || diseases[0] != "Influenza" {
		t.Errorf("diseases = %v", diseases)
	}

	_, resp = get(t, router, "/api/prefectures")
	if len(resp.Data.([]any)) != 2 {
		t.Errorf("prefectures = %v", resp.Data)
	}
}

func TestGetLatestWeek(t *testing.T) {
	router, s := newTestRouter(t)
	seed(t, s)

	_, resp := get(t, router, "/api/latest-week")
	data := resp.Data.(map[string]any)
	if data["year"].(float64) != 2025 || data["week"].(float64) != 4 {
		t.Errorf("latest week = %v", data)
	}
}

func TestGetStatusNeverImported(t *testing.T) {
	router, _ := newTestRouter(t)

	_, resp := get(t, router, "/api/status")
	data := resp.Data.(map[string]any)
	if data["status"] != "never_imported" {
		t.Errorf("status = %v", data)
	}
}

func TestPostImportDisabled(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/import", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}
