package models

import (
	"strings"
	"time"
)

// RawFilters carries caller-supplied filter criteria exactly as received.
// List-valued fields accept comma separated values.
type RawFilters struct {
	StartDate      string `form:"start_date" json:"start_date,omitempty"`
	EndDate        string `form:"end_date" json:"end_date,omitempty"`
	StudentID      string `form:"student_id" json:"student_id,omitempty"`
	Cohort         string `form:"cohort" json:"cohort,omitempty"`
	Department     string `form:"department" json:"department,omitempty"`
	Campus         string `form:"campus" json:"campus,omitempty"`
	CaseStudy      string `form:"case_study" json:"case_study,omitempty"`
	APIName        string `form:"api_name" json:"api_name,omitempty"`
	Severity       string `form:"severity" json:"severity,omitempty"`
	DeviceType     string `form:"device_type" json:"device_type,omitempty"`
	NetworkQuality string `form:"network_quality" json:"network_quality,omitempty"`
}

// ScopeRequest extracts the partition filters that Access Policy must authorize.
func (f RawFilters) ScopeRequest() ScopeRequest {
	return ScopeRequest{
		StudentIDs: SplitList(f.StudentID),
		Cohorts:    SplitList(f.Cohort),
		Campuses:   SplitList(f.Campus),
		APINames:   SplitList(f.APIName),
	}
}

// CanonicalFilter is the normalised, order-independent predicate consumed by the metric engine.
// Start is inclusive and End exclusive; empty sets mean no restriction.
// FullHorizon is set when the caller supplied no dates and the range is the whole retention window.
type CanonicalFilter struct {
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	StudentIDs       []string  `json:"student_ids,omitempty"`
	Cohorts          []string  `json:"cohorts,omitempty"`
	Departments      []string  `json:"departments,omitempty"`
	Campuses         []string  `json:"campuses,omitempty"`
	CaseStudies      []string  `json:"case_studies,omitempty"`
	APINames         []string  `json:"api_names,omitempty"`
	Severities       []string  `json:"severities,omitempty"`
	DeviceTypes      []string  `json:"device_types,omitempty"`
	NetworkQualities []string  `json:"network_qualities,omitempty"`
	FullHorizon      bool      `json:"full_horizon,omitempty"`
}

// Fingerprint is a stable digest of the predicate; value order in the input does not matter.
func (f CanonicalFilter) Fingerprint() string {
	var b strings.Builder
	b.WriteString(f.Start.UTC().Format(time.RFC3339))
	b.WriteByte('/')
	b.WriteString(f.End.UTC().Format(time.RFC3339))
	if f.FullHorizon {
		b.WriteString("|horizon")
	}
	writeSet(&b, "students", f.StudentIDs)
	writeSet(&b, "cohorts", f.Cohorts)
	writeSet(&b, "departments", f.Departments)
	writeSet(&b, "campuses", f.Campuses)
	writeSet(&b, "cases", f.CaseStudies)
	writeSet(&b, "apis", f.APINames)
	writeSet(&b, "severities", f.Severities)
	writeSet(&b, "devices", f.DeviceTypes)
	writeSet(&b, "network", f.NetworkQualities)
	return digest(b.String())
}

// SplitList splits a comma separated value, trimming blanks.
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
