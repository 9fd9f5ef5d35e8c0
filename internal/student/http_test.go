package student_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"student-management-api/internal/metrics"
	"student-management-api/internal/student"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubService returns canned results per method.
type stubService struct {
	created  *student.Student
	students []student.Student
	page     *student.Page
	stats    *student.Stats
	updated  *student.Student
	removed  *student.Student
	err      error

	gotPageReq student.PageRequest
	gotUpdate  student.UpdateRequest
	gotID      string
}

func (s *stubService) Create(ctx context.Context, candidate *student.Student) (*student.Student, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.created, nil
}

func (s *stubService) GetAll(ctx context.Context) ([]student.Student, error) {
	return s.students, s.err
}

func (s *stubService) GetByStudentID(ctx context.Context, studentID string) (*student.Student, error) {
	s.gotID = studentID
	if s.err != nil {
		return nil, s.err
	}
	return s.created, nil
}

func (s *stubService) GetByProgram(ctx context.Context, program string) ([]student.Student, error) {
	return s.students, s.err
}

func (s *stubService) GetPage(ctx context.Context, req student.PageRequest) (*student.Page, error) {
	s.gotPageReq = req
	return s.page, s.err
}

func (s *stubService) GetStats(ctx context.Context) (*student.Stats, error) {
	return s.stats, s.err
}

func (s *stubService) Update(ctx context.Context, studentID string, req student.UpdateRequest) (*student.Student, error) {
	s.gotID = studentID
	s.gotUpdate = req
	if s.err != nil {
		return nil, s.err
	}
	return s.updated, nil
}

func (s *stubService) Delete(ctx context.Context, studentID string) (*student.Student, error) {
	s.gotID = studentID
	if s.err != nil {
		return nil, s.err
	}
	return s.removed, nil
}

func setupRouter(service student.Service) chi.Router {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	handler := student.NewHandler(service, logger, metrics.NewMock())

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})
	return router
}

func TestCreateStudentHandler(t *testing.T) {
	t.Run("CreateStudent_Success", func(t *testing.T) {
		created := &student.Student{StudentID: "ST1", Name: "A", Phone: "+919876543210"}
		router := setupRouter(&stubService{created: created})

		body, _ := json.Marshal(map[string]interface{}{
			"studentId": "ST1", "name": "A", "email": "a@b.com",
			"phone": "9876543210", "program": "CS", "batchYear": 2023,
		})
		req := httptest.NewRequest(http.MethodPost, "/api/students", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var response student.Student
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "ST1", response.StudentID)
		assert.Equal(t, "+919876543210", response.Phone)
	})

	t.Run("CreateStudent_ValidationErrorsJoined", func(t *testing.T) {
		router := setupRouter(&stubService{
			err: &student.ValidationError{Violations: []string{"studentId is required", "name is required"}},
		})

		req := httptest.NewRequest(http.MethodPost, "/api/students", bytes.NewReader([]byte(`{}`)))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "studentId is required; name is required", response["message"])
		assert.Equal(t, "error", response["status"])
	})

	t.Run("CreateStudent_DuplicateEmail", func(t *testing.T) {
		router := setupRouter(&stubService{err: &student.DuplicateKeyError{Field: "email"}})

		req := httptest.NewRequest(http.MethodPost, "/api/students", bytes.NewReader([]byte(`{}`)))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "A student with this email already exists", response["message"])
	})

	t.Run("CreateStudent_MalformedBody", func(t *testing.T) {
		router := setupRouter(&stubService{})

		req := httptest.NewRequest(http.MethodPost, "/api/students", bytes.NewReader([]byte(`{not json`)))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetAllStudentsHandler(t *testing.T) {
	t.Run("GetAllStudents_Success", func(t *testing.T) {
		router := setupRouter(&stubService{
			students: []student.Student{{StudentID: "ST1"}, {StudentID: "ST2"}},
		})

		req := httptest.NewRequest(http.MethodGet, "/api/students", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response []student.Student
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Len(t, response, 2)
	})

	t.Run("GetAllStudents_DatastoreError", func(t *testing.T) {
		router := setupRouter(&stubService{err: errors.New("connection reset")})

		req := httptest.NewRequest(http.MethodGet, "/api/students", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestGetStudentsPageHandler(t *testing.T) {
	t.Run("GetStudentsPage_ParsesQuery", func(t *testing.T) {
		service := &stubService{page: &student.Page{Students: []student.Student{}, TotalPages: 1, CurrentPage: 1}}
		router := setupRouter(service)

		req := httptest.NewRequest(http.MethodGet, "/api/students/paginated?page=3&limit=20&program=cs&batchYear=2023", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(3), service.gotPageReq.Page)
		assert.Equal(t, int64(20), service.gotPageReq.Limit)
		assert.Equal(t, "cs", service.gotPageReq.Program)
		assert.Equal(t, 2023, service.gotPageReq.BatchYear)
	})

	t.Run("GetStudentsPage_DefaultsWhenAbsent", func(t *testing.T) {
		service := &stubService{page: &student.Page{TotalPages: 1, CurrentPage: 1}}
		router := setupRouter(service)

		req := httptest.NewRequest(http.MethodGet, "/api/students/paginated", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(1), service.gotPageReq.Page)
		assert.Equal(t, int64(student.DefaultPageSize), service.gotPageReq.Limit)
	})
}

func TestGetStudentsByProgramHandler(t *testing.T) {
	t.Run("GetStudentsByProgram_EmptyResultIsEmptyArray", func(t *testing.T) {
		router := setupRouter(&stubService{students: []student.Student{}})

		req := httptest.NewRequest(http.MethodGet, "/api/students/program/nonexistent", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})
}

func TestGetStatsHandler(t *testing.T) {
	router := setupRouter(&stubService{stats: &student.Stats{
		TotalStudents:     2,
		ProgramCounts:     map[string]int64{"CS": 2},
		BatchYearCounts:   map[string]int64{"2023": 2},
		RecentEnrollments: 1,
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/students/stats", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response student.Stats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, int64(2), response.TotalStudents)
	assert.Equal(t, int64(2), response.ProgramCounts["CS"])
}

func TestUpdateStudentHandler(t *testing.T) {
	t.Run("UpdateStudent_Success", func(t *testing.T) {
		service := &stubService{updated: &student.Student{StudentID: "ST1", Phone: "+1234567890"}}
		router := setupRouter(service)

		body := []byte(`{"phone":"+1234567890"}`)
		req := httptest.NewRequest(http.MethodPut, "/api/students/ST1", bytes.NewReader(body))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ST1", service.gotID)
		require.NotNil(t, service.gotUpdate.Phone)
		assert.Equal(t, "+1234567890", *service.gotUpdate.Phone)

		var response student.Student
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "+1234567890", response.Phone)
	})

	t.Run("UpdateStudent_NotFound", func(t *testing.T) {
		router := setupRouter(&stubService{err: student.ErrStudentNotFound})

		req := httptest.NewRequest(http.MethodPut, "/api/students/missing", bytes.NewReader([]byte(`{}`)))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)

		var response map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "Student not found", response["message"])
	})

	t.Run("UpdateStudent_InvalidEmailFormat", func(t *testing.T) {
		router := setupRouter(&stubService{
			err: &student.ValidationError{Violations: []string{"Invalid email format"}},
		})

		req := httptest.NewRequest(http.MethodPut, "/api/students/ST1", bytes.NewReader([]byte(`{"email":"bad"}`)))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDeleteStudentHandler(t *testing.T) {
	t.Run("DeleteStudent_Success", func(t *testing.T) {
		router := setupRouter(&stubService{removed: &student.Student{StudentID: "ST1"}})

		req := httptest.NewRequest(http.MethodDelete, "/api/students/ST1", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "Student deleted successfully", response["message"])
	})

	t.Run("DeleteStudent_NotFoundTwiceStays404", func(t *testing.T) {
		router := setupRouter(&stubService{err: student.ErrStudentNotFound})

		for i := 0; i < 2; i++ {
			req := httptest.NewRequest(http.MethodDelete, "/api/students/gone", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusNotFound, w.Code)
		}
	})
}
