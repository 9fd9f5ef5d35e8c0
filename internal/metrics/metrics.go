package metrics

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	studentsCreated metric.Int64Counter
	studentsUpdated metric.Int64Counter
	studentsDeleted metric.Int64Counter
	studentsListed  metric.Int64Counter
	statsViewed     metric.Int64Counter
}

func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.studentsCreated, err = meter.Int64Counter(
		"student_management.students.created",
		metric.WithDescription("Total number of students created"),
		metric.WithUnit("{student}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsUpdated, err = meter.Int64Counter(
		"student_management.students.updated",
		metric.WithDescription("Total number of students updated"),
		metric.WithUnit("{student}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsDeleted, err = meter.Int64Counter(
		"student_management.students.deleted",
		metric.WithDescription("Total number of students deleted"),
		metric.WithUnit("{student}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsListed, err = meter.Int64Counter(
		"student_management.students.list_viewed",
		metric.WithDescription("Total number of times the students list was viewed"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, err
	}

	m.statsViewed, err = meter.Int64Counter(
		"student_management.stats.viewed",
		metric.WithDescription("Total number of times aggregate stats were viewed"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RecordStudentCreated(ctx context.Context) {
	if m != nil && m.studentsCreated != nil {
		m.studentsCreated.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStudentUpdated(ctx context.Context) {
	if m != nil && m.studentsUpdated != nil {
		m.studentsUpdated.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStudentDeleted(ctx context.Context) {
	if m != nil && m.studentsDeleted != nil {
		m.studentsDeleted.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStudentsListViewed(ctx context.Context) {
	if m != nil && m.studentsListed != nil {
		m.studentsListed.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStatsViewed(ctx context.Context) {
	if m != nil && m.statsViewed != nil {
		m.statsViewed.Add(ctx, 1)
	}
}

// NewMock creates a no-op Metrics instance for testing
// The returned Metrics will safely ignore all Record* calls
func NewMock() *Metrics {
	return &Metrics{}
}
