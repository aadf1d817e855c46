package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/mind-analytics-api/internal/models"
	appErrors "github.com/noah-isme/mind-analytics-api/pkg/errors"
)

// DirectoryRepository resolves identities and directory dimensions: who teaches which cohort,
// which cohort a student belongs to, and which filter values exist at all.
type DirectoryRepository struct {
	db       *sqlx.DB
	guard    *StoreGuard
	observer QueryObserver
}

// NewDirectoryRepository instantiates the repository.
func NewDirectoryRepository(db *sqlx.DB, guard *StoreGuard, observer QueryObserver) *DirectoryRepository {
	return &DirectoryRepository{db: db, guard: guard, observer: observer}
}

var dimensionColumns = map[models.Dimension]struct{ table, column string }{
	models.DimensionStudent:    {"students", "student_id"},
	models.DimensionCohort:     {"students", "cohort"},
	models.DimensionCampus:     {"students", "campus"},
	models.DimensionDepartment: {"students", "department"},
	models.DimensionCaseStudy:  {"case_studies", "case_study_id"},
	models.DimensionAPI:        {"system_reliability", "api_name"},
}

// AssignedCohorts lists the cohorts a faculty member is assigned to teach.
func (r *DirectoryRepository) AssignedCohorts(ctx context.Context, facultyID string) ([]string, error) {
	const query = "SELECT DISTINCT cohort FROM faculty_assignments WHERE faculty_id = $1 ORDER BY cohort"
	var cohorts []string
	if err := r.run(ctx, "faculty_assignments", func(ctx context.Context) error {
		return r.db.SelectContext(ctx, &cohorts, query, facultyID)
	}); err != nil {
		return nil, err
	}
	return cohorts, nil
}

// StudentCohorts maps each known student id to its cohort. Unknown ids are absent from the map.
func (r *DirectoryRepository) StudentCohorts(ctx context.Context, studentIDs []string) (map[string]string, error) {
	result := make(map[string]string, len(studentIDs))
	if len(studentIDs) == 0 {
		return result, nil
	}

	const query = "SELECT student_id, cohort FROM students WHERE student_id = ANY($1)"
	var rows []struct {
		StudentID string `db:"student_id"`
		Cohort    string `db:"cohort"`
	}
	if err := r.run(ctx, "students", func(ctx context.Context) error {
		return r.db.SelectContext(ctx, &rows, query, pq.Array(studentIDs))
	}); err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.StudentID] = row.Cohort
	}
	return result, nil
}

// ExistingValues returns the subset of values that are known for the dimension.
func (r *DirectoryRepository) ExistingValues(ctx context.Context, dimension models.Dimension, values []string) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	target, ok := dimensionColumns[dimension]
	if !ok {
		return nil, fmt.Errorf("unknown dimension %q", dimension)
	}

	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s = ANY($1)", target.column, target.table, target.column)
	var existing []string
	if err := r.run(ctx, target.table, func(ctx context.Context) error {
		return r.db.SelectContext(ctx, &existing, query, pq.Array(values))
	}); err != nil {
		return nil, err
	}
	return existing, nil
}

func (r *DirectoryRepository) run(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := r.guard.Do(ctx, fn)
	if r.observer != nil {
		r.observer.ObserveDBQuery(name, time.Since(start))
	}
	if err != nil {
		return appErrors.Unavailable(fmt.Errorf("query %s: %w", name, err))
	}
	return nil
}
