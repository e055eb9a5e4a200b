package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kunaldev/flipkart-scraper/internal/database"
	"github.com/kunaldev/flipkart-scraper/internal/jobs"
	"github.com/kunaldev/flipkart-scraper/internal/report"
	"github.com/kunaldev/flipkart-scraper/internal/storage"
)

// Handlers serves the dashboard API: job control plus read access to
// stored and exported result sets.
type Handlers struct {
	db     *database.DB
	jobs   *jobs.Manager
	store  *storage.FileStore
	logger *slog.Logger
}

func NewHandlers(db *database.DB, jobManager *jobs.Manager, store *storage.FileStore, logger *slog.Logger) *Handlers {
	return &Handlers{
		db:     db,
		jobs:   jobManager,
		store:  store,
		logger: logger.With("component", "api"),
	}
}

// Routes mounts every endpoint.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/jobs", h.CreateJob)
	r.Get("/jobs", h.ListJobs)
	r.Get("/jobs/{id}", h.GetJob)
	r.Get("/stats", h.GetStats)

	r.Get("/runs", h.ListRuns)
	r.Get("/runs/{id}/products", h.GetRunProducts)
	r.Get("/search", h.Search)

	r.Get("/files", h.ListFiles)
	r.Get("/files/{filename}", h.ViewFile)
	r.Get("/files/{filename}/download", h.DownloadFile)

	return r
}

// CreateJobRequest is the job submission payload.
type CreateJobRequest struct {
	SearchTerm string `json:"search_term"`
	PageLimit  int    `json:"page_limit"`
}

func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SearchTerm == "" {
		h.respondError(w, http.StatusBadRequest, "search_term is required")
		return
	}

	job, err := h.jobs.CreateJob(r.Context(), req.SearchTerm, req.PageLimit)
	if err != nil {
		h.logger.Error("failed to create job", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create job")
		return
	}
	h.respondJSON(w, http.StatusCreated, job)
}

func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	jobList, err := h.jobs.ListJobs(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list jobs", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	h.respondJSON(w, http.StatusOK, jobList)
}

func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	h.respondJSON(w, http.StatusOK, job)
}

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.jobs.GetStats(r.Context())
	if err != nil {
		h.logger.Error("failed to get stats", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	h.respondJSON(w, http.StatusOK, stats)
}

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.db.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	h.respondJSON(w, http.StatusOK, runs)
}

func (h *Handlers) GetRunProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.db.RunProducts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Error("failed to get run products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get run products")
		return
	}
	h.respondJSON(w, http.StatusOK, products)
}

// Search filters stored products across every run: free-text query plus
// optional brand, price range and minimum rating.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minPrice, _ := strconv.ParseFloat(q.Get("min_price"), 64)
	maxPrice, _ := strconv.ParseFloat(q.Get("max_price"), 64)
	minRating, _ := strconv.ParseFloat(q.Get("min_rating"), 64)
	limit, _ := strconv.Atoi(q.Get("limit"))

	products, err := h.db.SearchProducts(r.Context(), q.Get("q"), q.Get("brand"),
		minPrice, maxPrice, minRating, limit)
	if err != nil {
		h.logger.Error("search failed", "error", err)
		h.respondError(w, http.StatusInternalServerError, "search failed")
		return
	}
	h.respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.store.ListRuns()
	if err != nil {
		h.logger.Error("failed to list files", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list files")
		return
	}
	h.respondJSON(w, http.StatusOK, files)
}

// ViewFile returns one exported result set with its summary statistics.
func (h *Handlers) ViewFile(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ReadRun(chi.URLParam(r, "filename"))
	if err != nil {
		h.respondError(w, http.StatusNotFound, "file not found")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"products": products,
		"summary":  report.Summarize(products),
	})
}

func (h *Handlers) DownloadFile(w http.ResponseWriter, r *http.Request) {
	path, err := h.store.Path(chi.URLParam(r, "filename"))
	if err != nil {
		h.respondError(w, http.StatusNotFound, "file not found")
		return
	}
	w.Header().Set("Content-Disposition", "attachment")
	http.ServeFile(w, r, path)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
