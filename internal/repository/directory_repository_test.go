package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mind-analytics-api/internal/models"
	appErrors "github.com/noah-isme/mind-analytics-api/pkg/errors"
)

func TestDirectoryRepositoryAssignedCohorts(t *testing.T) {
	db, mock, cleanup := newTelemetryRepoMock(t)
	defer cleanup()

	repo := NewDirectoryRepository(db, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT cohort FROM faculty_assignments WHERE faculty_id = $1")).
		WithArgs("fac-1").
		WillReturnRows(sqlmock.NewRows([]string{"cohort"}).AddRow("2025A").AddRow("2025B"))

	cohorts, err := repo.AssignedCohorts(context.Background(), "fac-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025A", "2025B"}, cohorts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectoryRepositoryStudentCohorts(t *testing.T) {
	db, mock, cleanup := newTelemetryRepoMock(t)
	defer cleanup()

	repo := NewDirectoryRepository(db, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT student_id, cohort FROM students")).
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "cohort"}).AddRow("stu-1", "2025A"))

	cohorts, err := repo.StudentCohorts(context.Background(), []string{"stu-1", "stu-9"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"stu-1": "2025A"}, cohorts)

	empty, err := repo.StudentCohorts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectoryRepositoryExistingValues(t *testing.T) {
	db, mock, cleanup := newTelemetryRepoMock(t)
	defer cleanup()

	repo := NewDirectoryRepository(db, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT case_study_id FROM case_studies WHERE case_study_id = ANY($1)")).
		WillReturnRows(sqlmock.NewRows([]string{"case_study_id"}).AddRow("case-1"))

	existing, err := repo.ExistingValues(context.Background(), models.DimensionCaseStudy, []string{"case-1", "case-x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"case-1"}, existing)

	_, err = repo.ExistingValues(context.Background(), models.Dimension("bogus"), []string{"x"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectoryRepositoryFailureIsUnavailable(t *testing.T) {
	db, mock, cleanup := newTelemetryRepoMock(t)
	defer cleanup()

	repo := NewDirectoryRepository(db, nil, nil)
	mock.ExpectQuery("faculty_assignments").WillReturnError(errors.New("timeout"))

	_, err := repo.AssignedCohorts(context.Background(), "fac-1")
	require.Error(t, err)
	assert.True(t, appErrors.IsDataUnavailable(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
