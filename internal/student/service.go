package student

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"student-management-api/internal/db"
	"student-management-api/internal/events"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrStudentNotFound = errors.New("student not found")

// ValidationError carries every violation found, not just the first.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Violations, "; ")
}

// DuplicateKeyError is the translated form of a unique-index violation,
// naming the conflicting field instead of leaking a datastore error code.
type DuplicateKeyError struct {
	Field string
}

func (e *DuplicateKeyError) Error() string {
	if e.Field == "" {
		return "Duplicate value for a unique field"
	}
	return fmt.Sprintf("A student with this %s already exists", e.Field)
}

const (
	// Pagination bounds; out-of-range requests clamp instead of failing.
	MaxPageSize     = 50
	DefaultPageSize = 10

	recentEnrollmentWindow = 30 * 24 * time.Hour
)

type PageRequest struct {
	Page      int64
	Limit     int64
	Program   string
	BatchYear int
}

type Page struct {
	Students    []Student `json:"students"`
	TotalItems  int64     `json:"totalItems"`
	TotalPages  int64     `json:"totalPages"`
	CurrentPage int64     `json:"currentPage"`
}

type Stats struct {
	TotalStudents     int64            `json:"totalStudents"`
	ProgramCounts     map[string]int64 `json:"programCounts"`
	BatchYearCounts   map[string]int64 `json:"batchYearCounts"`
	RecentEnrollments int64            `json:"recentEnrollments"`
}

// UpdateRequest is a partial-field merge; nil fields are left untouched.
type UpdateRequest struct {
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	Program   *string `json:"program"`
	BatchYear *int    `json:"batchYear"`
}

type Service interface {
	Create(ctx context.Context, s *Student) (*Student, error)
	GetAll(ctx context.Context) ([]Student, error)
	GetByStudentID(ctx context.Context, studentID string) (*Student, error)
	GetByProgram(ctx context.Context, program string) ([]Student, error)
	GetPage(ctx context.Context, req PageRequest) (*Page, error)
	GetStats(ctx context.Context) (*Stats, error)
	Update(ctx context.Context, studentID string, req UpdateRequest) (*Student, error)
	Delete(ctx context.Context, studentID string) (*Student, error)
}

type service struct {
	repo      Repository
	publisher events.Publisher
	validate  *validator.Validate
	logger    *slog.Logger
}

func NewService(repo Repository, publisher events.Publisher, logger *slog.Logger) Service {
	return &service{
		repo:      repo,
		publisher: publisher,
		validate:  validator.New(),
		logger:    logger,
	}
}

func (s *service) Create(ctx context.Context, candidate *Student) (*Student, error) {
	// The datastore assigns _id; never accept one from the client.
	candidate.ID = primitive.NilObjectID

	if violations := candidate.Validate(s.validate); len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	candidate.Phone = NormalizePhone(candidate.Phone)

	now := time.Now().UTC()
	candidate.CreatedAt = now
	candidate.UpdatedAt = now

	created, err := s.repo.Insert(ctx, candidate)
	if err != nil {
		if field, ok := db.DuplicateKeyField(err); ok {
			return nil, &DuplicateKeyError{Field: field}
		}
		return nil, err
	}

	s.publish(events.Event{
		Type:      events.TypeCreated,
		StudentID: created.StudentID,
		Email:     created.Email,
		Timestamp: now,
	})

	return created, nil
}

func (s *service) GetAll(ctx context.Context) ([]Student, error) {
	return s.repo.FindAll(ctx)
}

func (s *service) GetByStudentID(ctx context.Context, studentID string) (*Student, error) {
	return s.repo.FindByStudentID(ctx, studentID)
}

func (s *service) GetByProgram(ctx context.Context, program string) ([]Student, error) {
	return s.repo.FindByProgram(ctx, program)
}

func (s *service) GetPage(ctx context.Context, req PageRequest) (*Page, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit < 1 {
		limit = 1
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	students, total, err := s.repo.FindPage(ctx, PageFilter{
		Program:   req.Program,
		BatchYear: req.BatchYear,
		Skip:      (page - 1) * limit,
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}

	totalPages := (total + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}

	return &Page{
		Students:    students,
		TotalItems:  total,
		TotalPages:  totalPages,
		CurrentPage: page,
	}, nil
}

func (s *service) GetStats(ctx context.Context) (*Stats, error) {
	programCounts, err := s.repo.CountsByField(ctx, "program")
	if err != nil {
		return nil, err
	}
	batchYearCounts, err := s.repo.CountsByField(ctx, "batchYear")
	if err != nil {
		return nil, err
	}

	return &Stats{
		TotalStudents:     s.repo.CountDocuments(ctx, bson.M{}),
		ProgramCounts:     programCounts,
		BatchYearCounts:   batchYearCounts,
		RecentEnrollments: s.repo.CountRecentEnrollments(ctx, recentEnrollmentWindow),
	}, nil
}

func (s *service) Update(ctx context.Context, studentID string, req UpdateRequest) (*Student, error) {
	if _, err := s.repo.FindByStudentID(ctx, studentID); err != nil {
		return nil, err
	}

	patch := bson.M{}
	if req.Name != nil {
		patch["name"] = *req.Name
	}
	if req.Email != nil {
		if !ValidEmail(*req.Email) {
			return nil, &ValidationError{Violations: []string{"Invalid email format"}}
		}
		patch["email"] = *req.Email
	}
	if req.Phone != nil {
		phone := NormalizePhone(*req.Phone)
		if !ValidPhone(phone) {
			return nil, &ValidationError{Violations: []string{"Invalid phone number format"}}
		}
		patch["phone"] = phone
	}
	if req.Program != nil {
		patch["program"] = *req.Program
	}
	if req.BatchYear != nil {
		patch["batchYear"] = *req.BatchYear
	}

	updated, err := s.repo.UpdateByStudentID(ctx, studentID, patch)
	if err != nil {
		if field, ok := db.DuplicateKeyField(err); ok {
			return nil, &DuplicateKeyError{Field: field}
		}
		return nil, err
	}

	s.publish(events.Event{
		Type:      events.TypeUpdated,
		StudentID: updated.StudentID,
		Email:     updated.Email,
		Timestamp: updated.UpdatedAt,
	})

	return updated, nil
}

func (s *service) Delete(ctx context.Context, studentID string) (*Student, error) {
	removed, err := s.repo.DeleteByStudentID(ctx, studentID)
	if err != nil {
		return nil, err
	}

	s.publish(events.Event{
		Type:      events.TypeDeleted,
		StudentID: removed.StudentID,
		Email:     removed.Email,
		Timestamp: time.Now().UTC(),
	})

	return removed, nil
}

// publish never fails the request; a broker outage is worth a log line, not
// a 500.
func (s *service) publish(event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(event); err != nil {
		s.logger.Error("failed to publish student event", "type", event.Type, "error", err)
	}
}
