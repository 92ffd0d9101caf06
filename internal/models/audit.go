package models

import "time"

// System audit actions mirrored to the top-level audit_logs collection.
const (
	SystemAuditCreateApplicant  = "CREATE_APPLICANT"
	SystemAuditUpdateApplicant  = "UPDATE_APPLICANT"
	SystemAuditPromoteApplicant = "PROMOTE_APPLICANT"
	SystemAuditDeleteApplicant  = "DELETE_APPLICANT"
	SystemAuditExport           = "EXPORT"
	SystemAuditLogin            = "LOGIN"
)

// EntityApplicant is the entity label used for applicant mutations.
const EntityApplicant = "applicant"

// SystemAuditLog is a record-independent mirror of a lifecycle mutation. It
// outlives the record it describes and is written best-effort: a failed
// write never rolls back the primary mutation.
type SystemAuditLog struct {
	ID          string                 `db:"id" json:"id"`
	Action      string                 `db:"action" json:"action"`
	Entity      string                 `db:"entity" json:"entity"`
	EntityID    string                 `db:"entity_id" json:"entityId"`
	PerformedBy string                 `db:"performed_by" json:"performedBy,omitempty"`
	IP          string                 `db:"ip" json:"ip,omitempty"`
	Meta        map[string]interface{} `db:"-" json:"meta,omitempty"`
	MetaRaw     []byte                 `db:"meta" json:"-"`
	CreatedAt   time.Time              `db:"created_at" json:"createdAt"`
}
