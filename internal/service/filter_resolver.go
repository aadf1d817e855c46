package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/mind-analytics-api/internal/models"
	appErrors "github.com/noah-isme/mind-analytics-api/pkg/errors"
)

const dateLayout = "2006-01-02"

// DimensionChecker reports which identifiers of a dimension exist.
type DimensionChecker interface {
	ExistingValues(ctx context.Context, dimension models.Dimension, values []string) ([]string, error)
}

// FilterResolverConfig carries the resolver's domain bounds.
type FilterResolverConfig struct {
	RetentionDays int
	DeviceTypes   []string
}

// filterInput is the split form of RawFilters that validator checks.
type filterInput struct {
	StudentIDs       []string `form:"student_id" validate:"max=200,dive,max=64"`
	Cohorts          []string `form:"cohort" validate:"max=50,dive,max=64"`
	Departments      []string `form:"department" validate:"max=50,dive,max=128"`
	Campuses         []string `form:"campus" validate:"max=50,dive,max=128"`
	CaseStudies      []string `form:"case_study" validate:"max=100,dive,max=64"`
	APINames         []string `form:"api_name" validate:"max=50,dive,max=128"`
	Severities       []string `form:"severity" validate:"dive,oneof=info warning critical"`
	DeviceTypes      []string `form:"device_type" validate:"dive,device_type"`
	NetworkQualities []string `form:"network_quality" validate:"dive,oneof=poor fair good"`
}

// filterFields maps each dimension filter to the entity kinds it can narrow.
var filterFields = map[string][]models.EntityKind{
	"student_id":      {models.EntityAttempts, models.EntityRubric, models.EntityEngagement, models.EntityEnvironment},
	"cohort":          {models.EntityAttempts, models.EntityRubric, models.EntityEngagement, models.EntityEnvironment},
	"department":      {models.EntityAttempts, models.EntityRubric, models.EntityEngagement, models.EntityEnvironment},
	"campus":          {models.EntityAttempts, models.EntityRubric, models.EntityEngagement, models.EntityEnvironment},
	"case_study":      {models.EntityAttempts, models.EntityRubric, models.EntityEnvironment},
	"device_type":     {models.EntityEnvironment},
	"network_quality": {models.EntityEnvironment},
	"api_name":        {models.EntityReliability},
	"severity":        {models.EntityReliability},
}

// FilterResolver normalises caller filters into a canonical predicate.
type FilterResolver struct {
	dimensions  DimensionChecker
	validator   *validator.Validate
	retention   int
	deviceTypes map[string]struct{}
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewFilterResolver constructs the resolver.
func NewFilterResolver(dimensions DimensionChecker, cfg FilterResolverConfig, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *FilterResolver {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 1095
	}
	if len(cfg.DeviceTypes) == 0 {
		cfg.DeviceTypes = []string{"desktop", "laptop", "tablet", "mobile"}
	}

	r := &FilterResolver{
		dimensions:  dimensions,
		validator:   validate,
		retention:   cfg.RetentionDays,
		deviceTypes: toSet(cfg.DeviceTypes),
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
	r.validator.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = r.validator.RegisterValidation("device_type", func(fl validator.FieldLevel) bool {
		_, ok := r.deviceTypes[fl.Field().String()]
		return ok
	})
	return r
}

// WithClock overrides the time source.
func (r *FilterResolver) WithClock(now func() time.Time) *FilterResolver {
	if now != nil {
		r.now = now
	}
	return r
}

// Resolve validates raw and produces the canonical filter for the entity kind.
// Values are never clamped: any out-of-domain input fails with a validation error naming the field.
func (r *FilterResolver) Resolve(ctx context.Context, raw models.RawFilters, entity models.EntityKind) (models.CanonicalFilter, error) {
	filter, err := r.resolve(ctx, raw, entity)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErrors.IsValidation(err) {
			r.metrics.RecordValidationFailure(appErr.Field)
			r.logger.Info("filter rejected", zap.String("field", appErr.Field), zap.String("reason", appErr.Message))
		}
		return models.CanonicalFilter{}, err
	}
	return filter, nil
}

func (r *FilterResolver) resolve(ctx context.Context, raw models.RawFilters, entity models.EntityKind) (models.CanonicalFilter, error) {
	input := filterInput{
		StudentIDs:       normaliseList(models.SplitList(raw.StudentID)),
		Cohorts:          normaliseList(models.SplitList(raw.Cohort)),
		Departments:      normaliseList(models.SplitList(raw.Department)),
		Campuses:         normaliseList(models.SplitList(raw.Campus)),
		CaseStudies:      normaliseList(models.SplitList(raw.CaseStudy)),
		APINames:         normaliseList(models.SplitList(raw.APIName)),
		Severities:       normaliseList(models.SplitList(strings.ToLower(raw.Severity))),
		DeviceTypes:      normaliseList(models.SplitList(strings.ToLower(raw.DeviceType))),
		NetworkQualities: normaliseList(models.SplitList(strings.ToLower(raw.NetworkQuality))),
	}

	if err := checkApplicable(input, entity); err != nil {
		return models.CanonicalFilter{}, err
	}

	if err := r.validator.Struct(input); err != nil {
		return models.CanonicalFilter{}, validationFailure(err)
	}

	start, end, err := r.resolveRange(raw.StartDate, raw.EndDate)
	if err != nil {
		return models.CanonicalFilter{}, err
	}

	checks := []struct {
		field     string
		dimension models.Dimension
		values    []string
	}{
		{"student_id", models.DimensionStudent, input.StudentIDs},
		{"cohort", models.DimensionCohort, input.Cohorts},
		{"department", models.DimensionDepartment, input.Departments},
		{"campus", models.DimensionCampus, input.Campuses},
		{"case_study", models.DimensionCaseStudy, input.CaseStudies},
		{"api_name", models.DimensionAPI, input.APINames},
	}
	for _, check := range checks {
		if err := r.checkExists(ctx, check.field, check.dimension, check.values); err != nil {
			return models.CanonicalFilter{}, err
		}
	}

	return models.CanonicalFilter{
		Start:            start,
		End:              end,
		StudentIDs:       input.StudentIDs,
		Cohorts:          input.Cohorts,
		Departments:      input.Departments,
		Campuses:         input.Campuses,
		CaseStudies:      input.CaseStudies,
		APINames:         input.APINames,
		Severities:       input.Severities,
		DeviceTypes:      input.DeviceTypes,
		NetworkQualities: input.NetworkQualities,
		FullHorizon:      strings.TrimSpace(raw.StartDate) == "" && strings.TrimSpace(raw.EndDate) == "",
	}, nil
}

// Horizon returns the queryable window: from the retention start to the end of the current UTC day.
func (r *FilterResolver) Horizon() (time.Time, time.Time) {
	now := r.now().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return end.AddDate(0, 0, -r.retention), end
}

func (r *FilterResolver) resolveRange(rawStart, rawEnd string) (time.Time, time.Time, error) {
	horizonStart, horizonEnd := r.Horizon()

	start := horizonStart
	if strings.TrimSpace(rawStart) != "" {
		parsed, _, err := parseBound(rawStart)
		if err != nil {
			return time.Time{}, time.Time{}, appErrors.Invalid("start_date", "start_date must be YYYY-MM-DD or RFC3339")
		}
		if parsed.Before(horizonStart) {
			return time.Time{}, time.Time{}, appErrors.Invalid("start_date",
				fmt.Sprintf("start_date is outside the %d day retention horizon", r.retention))
		}
		start = parsed
	}

	end := horizonEnd
	if strings.TrimSpace(rawEnd) != "" {
		parsed, dateOnly, err := parseBound(rawEnd)
		if err != nil {
			return time.Time{}, time.Time{}, appErrors.Invalid("end_date", "end_date must be YYYY-MM-DD or RFC3339")
		}
		if dateOnly {
			parsed = parsed.AddDate(0, 0, 1)
		}
		if parsed.After(horizonEnd) {
			return time.Time{}, time.Time{}, appErrors.Invalid("end_date", "end_date is in the future")
		}
		if parsed.Before(horizonStart) {
			return time.Time{}, time.Time{}, appErrors.Invalid("end_date",
				fmt.Sprintf("end_date is outside the %d day retention horizon", r.retention))
		}
		end = parsed
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, appErrors.Invalid("start_date", "start_date must not be after end_date")
	}
	return start, end, nil
}

func (r *FilterResolver) checkExists(ctx context.Context, field string, dimension models.Dimension, values []string) error {
	if len(values) == 0 || r.dimensions == nil {
		return nil
	}
	existing, err := r.dimensions.ExistingValues(ctx, dimension, values)
	if err != nil {
		return err
	}
	known := toSet(existing)
	var unknown []string
	for _, v := range values {
		if _, ok := known[v]; !ok {
			unknown = append(unknown, v)
		}
	}
	if len(unknown) > 0 {
		return appErrors.Invalid(field, fmt.Sprintf("unknown %s: %s", field, strings.Join(unknown, ", ")))
	}
	return nil
}

func checkApplicable(input filterInput, entity models.EntityKind) error {
	present := []struct {
		field string
		set   bool
	}{
		{"student_id", len(input.StudentIDs) > 0},
		{"cohort", len(input.Cohorts) > 0},
		{"department", len(input.Departments) > 0},
		{"campus", len(input.Campuses) > 0},
		{"case_study", len(input.CaseStudies) > 0},
		{"api_name", len(input.APINames) > 0},
		{"severity", len(input.Severities) > 0},
		{"device_type", len(input.DeviceTypes) > 0},
		{"network_quality", len(input.NetworkQualities) > 0},
	}
	for _, p := range present {
		if !p.set {
			continue
		}
		applicable := false
		for _, kind := range filterFields[p.field] {
			if kind == entity {
				applicable = true
				break
			}
		}
		if !applicable {
			return appErrors.Invalid(p.field, fmt.Sprintf("%s does not apply to %s metrics", p.field, entity))
		}
	}
	return nil
}

func validationFailure(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filters")
	}
	fe := fieldErrs[0]
	field := fe.Field()
	if idx := strings.IndexByte(field, '['); idx > 0 {
		field = field[:idx]
	}

	var message string
	switch fe.Tag() {
	case "oneof":
		message = fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "device_type":
		message = fmt.Sprintf("%s %q is not a known device type", field, fe.Value())
	case "max":
		message = fmt.Sprintf("%s exceeds the maximum of %s", field, fe.Param())
	default:
		message = fmt.Sprintf("%s is invalid", field)
	}
	return appErrors.Invalid(field, message)
}

// parseBound accepts a date (UTC midnight) or an RFC3339 timestamp.
func parseBound(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}
