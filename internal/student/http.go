package student

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"student-management-api/internal/db"
	"student-management-api/internal/httputil"
	"student-management-api/internal/metrics"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewHandler(service Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		metrics: m,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Post("/students", h.CreateStudent)
	router.Get("/students", h.GetAllStudents)
	router.Get("/students/paginated", h.GetStudentsPage)
	router.Get("/students/stats", h.GetStats)
	router.Get("/students/program/{program}", h.GetStudentsByProgram)
	router.Get("/students/{studentId}", h.GetStudent)
	router.Put("/students/{studentId}", h.UpdateStudent)
	router.Delete("/students/{studentId}", h.DeleteStudent)
}

func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var candidate Student
	if err := json.NewDecoder(r.Body).Decode(&candidate); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.logger.InfoContext(r.Context(), "creating student", "studentId", candidate.StudentID)
	created, err := h.service.Create(r.Context(), &candidate)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordStudentCreated(r.Context())

	httputil.RespondWithJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetAllStudents(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "fetching all students")

	students, err := h.service.GetAll(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordStudentsListViewed(r.Context())

	httputil.RespondWithJSON(w, http.StatusOK, students)
}

func (h *Handler) GetStudentsPage(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	req := PageRequest{
		Page:    1,
		Limit:   DefaultPageSize,
		Program: query.Get("program"),
	}
	if raw := query.Get("page"); raw != "" {
		if page, err := strconv.ParseInt(raw, 10, 64); err == nil {
			req.Page = page
		}
	}
	if raw := query.Get("limit"); raw != "" {
		if limit, err := strconv.ParseInt(raw, 10, 64); err == nil {
			req.Limit = limit
		}
	}
	if raw := query.Get("batchYear"); raw != "" {
		if year, err := strconv.Atoi(raw); err == nil {
			req.BatchYear = year
		}
	}

	h.logger.InfoContext(r.Context(), "fetching students page",
		"page", req.Page, "limit", req.Limit,
		"program", req.Program, "batchYear", req.BatchYear,
	)

	page, err := h.service.GetPage(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordStudentsListViewed(r.Context())

	httputil.RespondWithJSON(w, http.StatusOK, page)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "fetching student stats")

	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordStatsViewed(r.Context())

	httputil.RespondWithJSON(w, http.StatusOK, stats)
}

func (h *Handler) GetStudentsByProgram(w http.ResponseWriter, r *http.Request) {
	program := chi.URLParam(r, "program")

	h.logger.InfoContext(r.Context(), "fetching students by program", "program", program)

	// Empty result is a 200 with an empty array, never a 404.
	students, err := h.service.GetByProgram(r.Context(), program)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, students)
}

func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")

	h.logger.InfoContext(r.Context(), "fetching student", "studentId", studentID)

	student, err := h.service.GetByStudentID(r.Context(), studentID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, student)
}

func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.logger.InfoContext(r.Context(), "updating student", "studentId", studentID)
	updated, err := h.service.Update(r.Context(), studentID, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordStudentUpdated(r.Context())

	httputil.RespondWithJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")

	h.logger.InfoContext(r.Context(), "deleting student", "studentId", studentID)
	if _, err := h.service.Delete(r.Context(), studentID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordStudentDeleted(r.Context())

	httputil.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Student deleted successfully"})
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		h.logger.InfoContext(r.Context(), "validation failed", "violations", validationErr.Violations)
		httputil.RespondWithError(w, http.StatusBadRequest, validationErr.Error())
		return
	}

	var duplicateErr *DuplicateKeyError
	if errors.As(err, &duplicateErr) {
		h.logger.InfoContext(r.Context(), "duplicate key", "field", duplicateErr.Field)
		httputil.RespondWithError(w, http.StatusBadRequest, duplicateErr.Error())
		return
	}

	if errors.Is(err, ErrStudentNotFound) {
		h.logger.InfoContext(r.Context(), "student not found")
		httputil.RespondWithError(w, http.StatusNotFound, "Student not found")
		return
	}

	if errors.Is(err, db.ErrNotInitialized) {
		h.logger.WarnContext(r.Context(), "request before database ready")
		httputil.RespondWithError(w, http.StatusServiceUnavailable, "Service starting, database not ready")
		return
	}

	h.logger.ErrorContext(r.Context(), "internal error", "error", err)
	httputil.RespondWithError(w, http.StatusInternalServerError, err.Error())
}
