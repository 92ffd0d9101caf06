package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Audit actions recorded on an applicant's embedded trail.
const (
	AuditActionCreated  = "CREATED"
	AuditActionUpdated  = "UPDATED"
	AuditActionPromoted = "PROMOTED"
	AuditActionDeleted  = "DELETED"
)

// ScoreSet holds the applicant's marks per scored stage, each bounded 0-100.
// The categories form a closed set; marks earned in earlier stages are kept
// across promotion.
type ScoreSet struct {
	Physical  int `json:"Physical"`
	GD        int `json:"GD"`
	Interview int `json:"Interview"`
}

// Total sums the canonical score categories.
func (s ScoreSet) Total() int {
	return s.Physical + s.GD + s.Interview
}

// Value implements driver.Valuer for the jsonb scores column.
func (s ScoreSet) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for the jsonb scores column.
func (s *ScoreSet) Scan(value interface{}) error {
	if value == nil {
		*s = ScoreSet{}
		return nil
	}
	raw, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("scan scores: unexpected type %T", value)
	}
	return json.Unmarshal(raw, s)
}

// AuditEntry is one immutable record of a mutation, embedded with the
// applicant. Entries are only ever appended, never edited.
type AuditEntry struct {
	Action      string                 `json:"action"`
	PerformedBy string                 `json:"performedBy,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Meta        map[string]interface{} `json:"meta,omitempty"`
}

// AuditTrail is the applicant's ordered audit history, stored as a jsonb
// array so that record mutation and trail append commit in one write.
type AuditTrail []AuditEntry

// Value implements driver.Valuer for the jsonb audit_log column.
func (t AuditTrail) Value() (driver.Value, error) {
	if t == nil {
		t = AuditTrail{}
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner for the jsonb audit_log column.
func (t *AuditTrail) Scan(value interface{}) error {
	if value == nil {
		*t = AuditTrail{}
		return nil
	}
	raw, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("scan audit trail: unexpected type %T", value)
	}
	return json.Unmarshal(raw, t)
}

// Applicant is a candidate moving through the selection pipeline. The pair
// (UniqueCode, Stage) is unique across all records, enforced by the store.
type Applicant struct {
	ID            string     `db:"id" json:"id"`
	Name          string     `db:"name" json:"name"`
	UniqueCode    string     `db:"unique_code" json:"uniqueCode"`
	ContactNumber string     `db:"contact_number" json:"contactNumber,omitempty"`
	Gender        string     `db:"gender" json:"gender,omitempty"`
	College       string     `db:"college" json:"college,omitempty"`
	Branch        string     `db:"branch" json:"branch,omitempty"`
	Year          int        `db:"year" json:"year,omitempty"`
	Email         string     `db:"email" json:"email,omitempty"`
	Stage         string     `db:"stage" json:"listName"`
	Round         int        `db:"round" json:"round"`
	Scores        ScoreSet   `db:"scores" json:"marks"`
	Notes         string     `db:"notes" json:"notes"`
	AuditLog      AuditTrail `db:"audit_log" json:"auditLogs"`
	Version       int        `db:"version" json:"-"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

// ApplicantFilter narrows applicant searches. An empty Query matches all.
type ApplicantFilter struct {
	Query string
	Stage string
	Limit int
}

// Pagination carries list metadata in response envelopes.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
