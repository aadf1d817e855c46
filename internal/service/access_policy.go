package service

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/mind-analytics-api/internal/models"
	appErrors "github.com/noah-isme/mind-analytics-api/pkg/errors"
)

// AssignmentReader resolves the directory facts the access policy depends on.
type AssignmentReader interface {
	AssignedCohorts(ctx context.Context, facultyID string) ([]string, error)
	StudentCohorts(ctx context.Context, studentIDs []string) (map[string]string, error)
}

var roleEntities = map[models.Role][]models.EntityKind{
	models.RoleStudent:   {models.EntityAttempts, models.EntityRubric, models.EntityEngagement},
	models.RoleFaculty:   {models.EntityAttempts, models.EntityRubric, models.EntityEngagement},
	models.RoleDeveloper: {models.EntityReliability, models.EntityEnvironment},
	models.RoleAdmin: {
		models.EntityAttempts, models.EntityRubric, models.EntityEngagement,
		models.EntityEnvironment, models.EntityReliability,
	},
}

// AccessPolicy maps an (identity, role) pair to the partitions it may derive metrics from.
type AccessPolicy struct {
	assignments AssignmentReader
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewAccessPolicy constructs the policy.
func NewAccessPolicy(assignments AssignmentReader, metrics *MetricsService, logger *zap.Logger) *AccessPolicy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessPolicy{assignments: assignments, metrics: metrics, logger: logger}
}

// Authorize returns the scope for the request or an authorization error when it exceeds the role's ceiling.
// The scope is never silently widened or narrowed.
func (p *AccessPolicy) Authorize(ctx context.Context, principal models.Principal, req models.ScopeRequest) (models.AccessScope, error) {
	req = normaliseRequest(req)

	var (
		scope models.AccessScope
		err   error
	)
	switch principal.Role {
	case models.RoleStudent:
		scope, err = p.student(principal, req)
	case models.RoleFaculty:
		scope, err = p.faculty(ctx, principal, req)
	case models.RoleDeveloper:
		scope, err = p.developer(req)
	case models.RoleAdmin:
		scope = models.AccessScope{
			Role:         models.RoleAdmin,
			Unrestricted: true,
			StudentIDs:   req.StudentIDs,
			Cohorts:      req.Cohorts,
			Campuses:     req.Campuses,
			APINames:     req.APINames,
		}
	default:
		err = appErrors.Denied("unknown role")
	}

	if err != nil {
		if appErrors.IsAuthorization(err) {
			p.metrics.RecordDenial(principal.Role)
			p.logger.Info("scope denied",
				zap.String("role", string(principal.Role)),
				zap.String("identity", principal.Identity),
				zap.Error(err))
		}
		return models.AccessScope{}, err
	}

	scope.Entities = append([]models.EntityKind(nil), roleEntities[principal.Role]...)
	return scope, nil
}

// RoleEntities lists the entity classes a role may ever query.
func RoleEntities(role models.Role) []models.EntityKind {
	return append([]models.EntityKind(nil), roleEntities[role]...)
}

func (p *AccessPolicy) student(principal models.Principal, req models.ScopeRequest) (models.AccessScope, error) {
	if principal.Identity == "" {
		return models.AccessScope{}, appErrors.Denied("student identity is required")
	}
	for _, id := range req.StudentIDs {
		if id != principal.Identity {
			return models.AccessScope{}, appErrors.Denied("students may only query their own data")
		}
	}
	if len(req.Cohorts) > 0 || len(req.Campuses) > 0 {
		return models.AccessScope{}, appErrors.Denied("students may only query their own data")
	}
	if len(req.APINames) > 0 {
		return models.AccessScope{}, appErrors.Denied("students may not query system reliability")
	}
	return models.AccessScope{Role: models.RoleStudent, StudentIDs: []string{principal.Identity}}, nil
}

func (p *AccessPolicy) faculty(ctx context.Context, principal models.Principal, req models.ScopeRequest) (models.AccessScope, error) {
	if len(req.APINames) > 0 {
		return models.AccessScope{}, appErrors.Denied("faculty may not query system reliability")
	}
	if principal.Identity == "" || p.assignments == nil {
		return models.AccessScope{}, appErrors.Denied("faculty identity has no cohort assignments")
	}

	assigned, err := p.assignments.AssignedCohorts(ctx, principal.Identity)
	if err != nil {
		return models.AccessScope{}, err
	}
	if len(assigned) == 0 {
		return models.AccessScope{}, appErrors.Denied("faculty identity has no cohort assignments")
	}
	ceiling := toSet(assigned)

	for _, cohort := range req.Cohorts {
		if _, ok := ceiling[cohort]; !ok {
			return models.AccessScope{}, appErrors.Denied("cohort " + cohort + " is not assigned to this faculty member")
		}
	}

	if len(req.StudentIDs) > 0 {
		owners, err := p.assignments.StudentCohorts(ctx, req.StudentIDs)
		if err != nil {
			return models.AccessScope{}, err
		}
		for _, id := range req.StudentIDs {
			cohort, known := owners[id]
			if _, ok := ceiling[cohort]; !known || !ok {
				return models.AccessScope{}, appErrors.Denied("student " + id + " is outside the assigned cohorts")
			}
		}
	}

	cohorts := req.Cohorts
	if len(cohorts) == 0 {
		cohorts = normaliseList(assigned)
	}
	// Campuses only narrow within the assigned cohorts.
	return models.AccessScope{Role: models.RoleFaculty, Cohorts: cohorts, StudentIDs: req.StudentIDs, Campuses: req.Campuses}, nil
}

func (p *AccessPolicy) developer(req models.ScopeRequest) (models.AccessScope, error) {
	if len(req.StudentIDs) > 0 || len(req.Cohorts) > 0 || len(req.Campuses) > 0 {
		return models.AccessScope{}, appErrors.Denied("developers may not query learner partitions")
	}
	return models.AccessScope{Role: models.RoleDeveloper, Unrestricted: true, APINames: req.APINames}, nil
}

func normaliseRequest(req models.ScopeRequest) models.ScopeRequest {
	return models.ScopeRequest{
		StudentIDs: normaliseList(req.StudentIDs),
		Cohorts:    normaliseList(req.Cohorts),
		Campuses:   normaliseList(req.Campuses),
		APINames:   normaliseList(req.APINames),
	}
}

// normaliseList trims, de-duplicates and sorts values. Empty input yields nil.
func normaliseList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
