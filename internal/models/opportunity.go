// Package models contains the core domain models for the placement engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// OpportunityStatus represents the state of a backlink opportunity
type OpportunityStatus string

const (
	OpportunityStatusPending  OpportunityStatus = "pending"
	OpportunityStatusApproved OpportunityStatus = "approved"
	OpportunityStatusPlaced   OpportunityStatus = "placed"
	OpportunityStatusFailed   OpportunityStatus = "failed"
)

// PlacementMethod is the closed set of placement strategies. The selector
// produces one of these; downstream code switches on the enum rather than
// comparing platform strings.
type PlacementMethod string

const (
	// MethodContentAPI places the link by editing target content directly
	// through the site's own REST interface
	MethodContentAPI PlacementMethod = "content_api"

	// MethodInjection places the link asynchronously via an instruction
	// executed by a script running in the target page
	MethodInjection PlacementMethod = "js_injection"
)

// Opportunity represents a proposed backlink exchange between a source and
// target user's content. Rows are created by the matching process; this
// engine only mutates status and placement metadata.
type Opportunity struct {
	ID                 uuid.UUID         `db:"id"                    json:"id"`
	SourceUserID       uuid.UUID         `db:"source_user_id"        json:"source_user_id"`
	TargetUserID       uuid.UUID         `db:"target_user_id"        json:"target_user_id"`
	SourceContentID    uuid.UUID         `db:"source_content_id"     json:"source_content_id"`
	TargetContentID    uuid.UUID         `db:"target_content_id"     json:"target_content_id"`
	SuggestedTargetURL string            `db:"suggested_target_url"  json:"suggested_target_url"`
	SuggestedAnchor    string            `db:"suggested_anchor_text" json:"suggested_anchor_text"`
	SuggestedContext   string            `db:"suggested_context"     json:"suggested_context"`
	MatchScore         float64           `db:"match_score"           json:"match_score"`
	EstimatedValue     int               `db:"estimated_value"       json:"estimated_value"`
	Status             OpportunityStatus `db:"status"                json:"status"`
	PlacementURL       *string           `db:"placement_url"         json:"placement_url,omitempty"`
	PlacementMethod    *PlacementMethod  `db:"placement_method"      json:"placement_method,omitempty"`
	PlacedAt           *time.Time        `db:"placed_at"             json:"placed_at,omitempty"`
	ErrorMessage       *string           `db:"error_message"         json:"error_message,omitempty"`
	CreatedAt          time.Time         `db:"created_at"            json:"created_at"`
	UpdatedAt          time.Time         `db:"updated_at"            json:"updated_at"`
}

// NewOpportunity builds an opportunity and rejects missing required fields.
// Matching-produced rows normally arrive through the database; this
// constructor exists for ingestion paths and tests.
func NewOpportunity(
	sourceUserID, targetUserID, sourceContentID, targetContentID uuid.UUID,
	targetURL, anchorText string,
	matchScore float64,
	estimatedValue int,
) (*Opportunity, error) {
	if sourceUserID == uuid.Nil || targetUserID == uuid.Nil {
		return nil, ErrInvalidOpportunity
	}
	if sourceContentID == uuid.Nil || targetContentID == uuid.Nil {
		return nil, ErrInvalidOpportunity
	}
	if targetURL == "" || anchorText == "" {
		return nil, ErrInvalidOpportunity
	}
	if estimatedValue < 0 {
		return nil, ErrInvalidOpportunity
	}

	now := time.Now()
	return &Opportunity{
		ID:                 uuid.New(),
		SourceUserID:       sourceUserID,
		TargetUserID:       targetUserID,
		SourceContentID:    sourceContentID,
		TargetContentID:    targetContentID,
		SuggestedTargetURL: targetURL,
		SuggestedAnchor:    anchorText,
		MatchScore:         matchScore,
		EstimatedValue:     estimatedValue,
		Status:             OpportunityStatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// IsPlaceable reports whether a placement attempt is allowed. Status
// transitions are monotonic: pending/approved may move to placed or failed,
// and a placed opportunity is never re-attempted.
func (o *Opportunity) IsPlaceable() bool {
	return o.Status == OpportunityStatusPending || o.Status == OpportunityStatusApproved
}
