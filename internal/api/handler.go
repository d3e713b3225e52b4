package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AlFontal/jpinfect/internal/importer"
	"github.com/AlFontal/jpinfect/internal/model"
	"github.com/AlFontal/jpinfect/internal/store"
)

// Handler serves the query API over the unified table.
type Handler struct {
	store       *store.Store
	coordinator *importer.Coordinator

	importMu      sync.Mutex
	importRunning bool
}

// NewHandler creates the API handler. The coordinator may be nil for a
// query-only server.
func NewHandler(s *store.Store, c *importer.Coordinator) *Handler {
	return &Handler{store: s, coordinator: c}
}

// RegisterRoutes mounts the API under rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/data", h.getData)
	rg.GET("/diseases", h.getDiseases)
	rg.GET("/prefectures", h.getPrefectures)
	rg.GET("/latest-week", h.getLatestWeek)
	rg.GET("/status", h.getStatus)
	rg.POST("/import", h.postImport)
}

// Response is the common envelope.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Code: 1, Message: message})
}

// rowDTO is the wire form of one observation.
type rowDTO struct {
	Prefecture  string   `json:"prefecture"`
	Year        int      `json:"year"`
	Week        int      `json:"week"`
	Date        string   `json:"date"`
	Disease     string   `json:"disease"`
	Category    string   `json:"category"`
	Count       *float64 `json:"count"`
	PerSentinel *float64 `json:"perSentinel,omitempty"`
	Source      string   `json:"source"`
}

func toDTO(rows []model.NormalizedRow) []rowDTO {
	out := make([]rowDTO, len(rows))
	for i, r := range rows {
		out[i] = rowDTO{
			Prefecture:  r.Prefecture,
			Year:        r.Year,
			Week:        r.Week,
			Date:        r.Date.Format("2006-01-02"),
			Disease:     r.Disease,
			Category:    r.Category,
			Count:       r.Count,
			PerSentinel: r.PerSentinel,
			Source:      r.Source,
		}
	}
	return out
}

func (h *Handler) getData(c *gin.Context) {
	f := store.Filter{
		Diseases:    c.QueryArray("disease"),
		Prefectures: c.QueryArray("prefecture"),
		Sources:     c.QueryArray("source"),
	}
	var err error
	intParam := func(name string) int {
		v := c.Query(name)
		if v == "" {
			return 0
		}
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			err = convErr
		}
		return n
	}
	f.YearFrom = intParam("year_from")
	f.YearTo = intParam("year_to")
	f.WeekFrom = intParam("week_from")
	f.WeekTo = intParam("week_to")
	f.Limit = intParam("limit")
	if err != nil {
		fail(c, http.StatusBadRequest, "numeric filter parameters must be integers")
		return
	}

	rows, err := h.store.QueryObservations(f)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	success(c, gin.H{"rows": toDTO(rows), "total": len(rows)})
}

func (h *Handler) getDiseases(c *gin.Context) {
	diseases, err := h.store.Diseases()
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	success(c, diseases)
}

func (h *Handler) getPrefectures(c *gin.Context) {
	prefectures, err := h.store.Prefectures()
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	success(c, prefectures)
}

func (h *Handler) getLatestWeek(c *gin.Context) {
	year, week, err := h.store.LatestWeek()
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	success(c, gin.H{"year": year, "week": week})
}

func (h *Handler) getStatus(c *gin.Context) {
	job, err := h.store.LastImportJob()
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		success(c, gin.H{"status": "never_imported"})
		return
	}
	success(c, job)
}

// importRequest selects what an import job downloads. Empty fields default
// to everything the URL rules cover.
type importRequest struct {
	Kinds []string `json:"kinds"`
	Years []int    `json:"years"`
	Weeks []int    `json:"weeks"`
}

func (h *Handler) postImport(c *gin.Context) {
	if h.coordinator == nil {
		fail(c, http.StatusServiceUnavailable, "import is not enabled on this server")
		return
	}

	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	opts := importer.Options{Years: req.Years, Weeks: req.Weeks}
	for _, k := range req.Kinds {
		kind := model.DatasetKind(k)
		switch kind {
		case model.KindSex, model.KindPlace, model.KindBullet, model.KindSentinel:
			opts.Kinds = append(opts.Kinds, kind)
		default:
			fail(c, http.StatusBadRequest, "unknown dataset kind "+k)
			return
		}
	}

	h.importMu.Lock()
	if h.importRunning {
		h.importMu.Unlock()
		fail(c, http.StatusConflict, "an import job is already running")
		return
	}
	h.importRunning = true
	h.importMu.Unlock()

	go h.runImport(opts)
	success(c, gin.H{"status": "started", "startedAt": time.Now().UTC()})
}

// runImport executes one job end to end and records its outcome.
func (h *Handler) runImport(opts importer.Options) {
	defer func() {
		h.importMu.Lock()
		h.importRunning = false
		h.importMu.Unlock()
	}()

	res, err := h.coordinator.Run(context.Background(), opts)
	if err != nil {
		if id, logErr := h.store.CreateImportJob(""); logErr == nil {
			h.store.FinishImportJob(id, 0, 0, 0, "error", err.Error())
		}
		return
	}

	id, err := h.store.CreateImportJob(res.JobID)
	if err != nil {
		return
	}
	unified, err := h.coordinator.BuildUnified(res)
	if err != nil {
		h.store.FinishImportJob(id, len(res.Reports), 0, len(res.Skipped), "error", err.Error())
		return
	}
	if err := h.store.ReplaceObservations(unified.Rows); err != nil {
		h.store.FinishImportJob(id, len(res.Reports), 0, len(res.Skipped), "error", err.Error())
		return
	}
	h.store.FinishImportJob(id, len(res.Reports), len(unified.Rows), len(res.Skipped), "done", "")
}
