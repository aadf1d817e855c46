package models

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// Role represents the consumer roles of the analytics engine.
type Role string

const (
	RoleStudent   Role = "student"
	RoleFaculty   Role = "faculty"
	RoleDeveloper Role = "developer"
	RoleAdmin     Role = "admin"
)

// ParseRole normalises a claimed role. Unknown values return false.
func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "student":
		return RoleStudent, true
	case "faculty":
		return RoleFaculty, true
	case "developer":
		return RoleDeveloper, true
	case "admin", "administrator":
		return RoleAdmin, true
	}
	return "", false
}

// EntityKind names the raw fact classes a metric derives from.
type EntityKind string

const (
	EntityAttempts    EntityKind = "attempts"
	EntityRubric      EntityKind = "rubric_scores"
	EntityEngagement  EntityKind = "engagement_logs"
	EntityEnvironment EntityKind = "environment_metrics"
	EntityReliability EntityKind = "system_reliability"
)

// ScopeRequest is the partition a caller asks to derive metrics from.
// Empty slices ask for everything the role is entitled to.
type ScopeRequest struct {
	StudentIDs []string
	Cohorts    []string
	Campuses   []string
	APINames   []string
}

// AccessScope is the concrete set of partitions an (identity, role) pair may query.
// It is computed per request and never persisted.
type AccessScope struct {
	Role         Role         `json:"role"`
	Entities     []EntityKind `json:"entities"`
	Unrestricted bool         `json:"unrestricted"`
	StudentIDs   []string     `json:"student_ids,omitempty"`
	Cohorts      []string     `json:"cohorts,omitempty"`
	Campuses     []string     `json:"campuses,omitempty"`
	APINames     []string     `json:"api_names,omitempty"`
}

// Permits reports whether the scope covers the entity class.
func (s AccessScope) Permits(kind EntityKind) bool {
	for _, e := range s.Entities {
		if e == kind {
			return true
		}
	}
	return false
}

// Fingerprint is a stable digest of the scope's partitions used in cache keys.
func (s AccessScope) Fingerprint() string {
	entities := make([]string, len(s.Entities))
	for i, e := range s.Entities {
		entities[i] = string(e)
	}
	sort.Strings(entities)

	var b strings.Builder
	b.WriteString(string(s.Role))
	b.WriteString("|unrestricted=")
	b.WriteString(strconv.FormatBool(s.Unrestricted))
	writeSet(&b, "entities", entities)
	writeSet(&b, "students", s.StudentIDs)
	writeSet(&b, "cohorts", s.Cohorts)
	writeSet(&b, "campuses", s.Campuses)
	writeSet(&b, "apis", s.APINames)
	return digest(b.String())
}

func writeSet(b *strings.Builder, name string, values []string) {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	b.WriteByte('|')
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(strings.Join(sorted, ","))
}

func digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:12])
}
