package models

import (
	"time"

	"github.com/google/uuid"
)

// InstructionStatus represents the state of a placement instruction
type InstructionStatus string

const (
	InstructionStatusPending   InstructionStatus = "pending"
	InstructionStatusCompleted InstructionStatus = "completed"
)

// PlacementInstruction is a durable directive telling the client-side script
// on the target site to insert a link. At most one live instruction exists
// per opportunity (unique key on opportunity_id, upsert semantics). The
// engine only ever writes pending instructions; the tracking script reports
// completion out-of-band.
type PlacementInstruction struct {
	ID            uuid.UUID         `db:"id"              json:"id"`
	OpportunityID uuid.UUID         `db:"opportunity_id"  json:"opportunity_id"`
	TargetUserID  uuid.UUID         `db:"target_user_id"  json:"target_user_id"`
	TargetURL     string            `db:"target_url"      json:"target_url"`
	AnchorText    string            `db:"anchor_text"     json:"anchor_text"`
	SentenceHTML  string            `db:"sentence_html"   json:"sentence_html"`
	CSSSelector   string            `db:"css_selector"    json:"css_selector"`
	Position      string            `db:"position"        json:"position"`
	Status        InstructionStatus `db:"status"          json:"status"`
	CreatedAt     time.Time         `db:"created_at"      json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at"      json:"updated_at"`
	CompletedAt   *time.Time        `db:"completed_at"    json:"completed_at,omitempty"`
}

// PlacementAttempt is an append-only audit record of one strategy execution.
// Never mutated after creation.
type PlacementAttempt struct {
	ID                  uuid.UUID       `db:"id"                   json:"id"`
	OpportunityID       uuid.UUID       `db:"opportunity_id"       json:"opportunity_id"`
	TargetDomain        string          `db:"target_domain"        json:"target_domain"`
	Method              PlacementMethod `db:"method"               json:"method"`
	Success             bool            `db:"success"              json:"success"`
	VerificationSuccess bool            `db:"verification_success" json:"verification_success"`
	ResponseTimeMs      int64           `db:"response_time_ms"     json:"response_time_ms"`
	ErrorMessage        *string         `db:"error_message"        json:"error_message,omitempty"`
	CreatedAt           time.Time       `db:"created_at"           json:"created_at"`
}
