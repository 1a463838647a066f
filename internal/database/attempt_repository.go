package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/linkdeck/placement-engine/internal/models"
)

// AttemptRepository appends placement attempt audit records. Rows are never
// updated or deleted by the engine.
type AttemptRepository struct {
	db *sqlx.DB
}

// NewAttemptRepository creates a new repository
func NewAttemptRepository(db *sqlx.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Create appends one attempt record
func (r *AttemptRepository) Create(ctx context.Context, attempt *models.PlacementAttempt) error {
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO placement_attempts (
			id, opportunity_id, target_domain, method, success,
			verification_success, response_time_ms, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		attempt.ID, attempt.OpportunityID, attempt.TargetDomain, attempt.Method,
		attempt.Success, attempt.VerificationSuccess, attempt.ResponseTimeMs,
		attempt.ErrorMessage, attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create placement attempt: %w", err)
	}
	return nil
}

// ListByOpportunity returns the attempt history for one opportunity, newest
// first
func (r *AttemptRepository) ListByOpportunity(ctx context.Context, opportunityID uuid.UUID) ([]models.PlacementAttempt, error) {
	query := `
		SELECT id, opportunity_id, target_domain, method, success,
		       verification_success, response_time_ms, error_message, created_at
		FROM placement_attempts
		WHERE opportunity_id = $1
		ORDER BY created_at DESC`

	attempts := []models.PlacementAttempt{}
	if err := r.db.SelectContext(ctx, &attempts, query, opportunityID); err != nil {
		return nil, fmt.Errorf("list placement attempts: %w", err)
	}
	return attempts, nil
}
