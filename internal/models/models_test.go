package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalFilterFingerprintIgnoresOrder(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)

	a := CanonicalFilter{Start: start, End: end, Cohorts: []string{"2025A", "2025B"}, Severities: []string{"warning", "info"}}
	b := CanonicalFilter{Start: start, End: end, Cohorts: []string{"2025B", "2025A"}, Severities: []string{"info", "warning"}}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.Cohorts = []string{"2025A"}
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())

	c := a
	c.FullHorizon = true
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestCanonicalFilterFingerprintSeparatesDimensions(t *testing.T) {
	a := CanonicalFilter{Cohorts: []string{"north"}}
	b := CanonicalFilter{Campuses: []string{"north"}}
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestAccessScopeFingerprint(t *testing.T) {
	a := AccessScope{Role: RoleFaculty, Entities: []EntityKind{EntityRubric, EntityAttempts}, Cohorts: []string{"2025A"}}
	b := AccessScope{Role: RoleFaculty, Entities: []EntityKind{EntityAttempts, EntityRubric}, Cohorts: []string{"2025A"}}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.Role = RoleAdmin
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.True(t, a.Permits(EntityRubric))
	assert.False(t, a.Permits(EntityReliability))
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole(" Administrator ")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, role)

	_, ok = ParseRole("guest")
	assert.False(t, ok)
}

func TestSplitListAndScopeRequest(t *testing.T) {
	assert.Nil(t, SplitList("  "))
	assert.Equal(t, []string{"a", "b"}, SplitList("a, ,b,"))

	req := RawFilters{StudentID: "stu-1", Cohort: "2025A,2025B", APIName: "X"}.ScopeRequest()
	assert.Equal(t, []string{"stu-1"}, req.StudentIDs)
	assert.Equal(t, []string{"2025A", "2025B"}, req.Cohorts)
	assert.Equal(t, []string{"X"}, req.APINames)
	assert.Nil(t, req.Campuses)
}

func TestAttemptAndRubricHelpers(t *testing.T) {
	started := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	attempt := Attempt{StartedAt: started}
	assert.Equal(t, started, attempt.OccurredAt())

	completed := started.Add(time.Hour)
	attempt.CompletedAt = &completed
	assert.Equal(t, completed, attempt.OccurredAt())

	pct, ok := RubricScore{Score: 3, MaxScore: 4}.Percentage()
	assert.True(t, ok)
	assert.Equal(t, 75.0, pct)

	_, ok = RubricScore{Score: 5, MaxScore: 4}.Percentage()
	assert.False(t, ok)
	_, ok = RubricScore{Score: 1, MaxScore: 0}.Percentage()
	assert.False(t, ok)
}

func TestJWTClaimsPrincipal(t *testing.T) {
	claims := &JWTClaims{Role: "FACULTY"}
	claims.Subject = "fac-1"
	assert.Equal(t, Principal{Identity: "fac-1", Role: RoleFaculty}, claims.Principal())

	claims = &JWTClaims{UserID: "x", Role: "guest"}
	assert.Equal(t, Role("guest"), claims.Principal().Role)
}
