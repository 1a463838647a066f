package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/linkdeck/placement-engine/internal/models"
)

// opportunitySelectList is the column list for opportunities (single source
// for schema changes)
const opportunitySelectList = `id, source_user_id, target_user_id, source_content_id,
	target_content_id, suggested_target_url, suggested_anchor_text, suggested_context,
	match_score, estimated_value, status, placement_url, placement_method,
	placed_at, error_message, created_at, updated_at`

// OpportunityRepository manages opportunity rows. The engine only mutates
// status and placement metadata; creation belongs to the matching process.
type OpportunityRepository struct {
	db *sqlx.DB
}

// NewOpportunityRepository creates a new repository
func NewOpportunityRepository(db *sqlx.DB) *OpportunityRepository {
	return &OpportunityRepository{db: db}
}

// GetByID retrieves a single opportunity
func (r *OpportunityRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	opp := &models.Opportunity{}
	query := `SELECT ` + opportunitySelectList + ` FROM opportunities WHERE id = $1`

	err := r.db.GetContext(ctx, opp, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get opportunity: %w", err)
	}
	return opp, nil
}

// FetchEligible returns pending/approved opportunities for a source user,
// best match first. Placed and failed rows are never selected.
func (r *OpportunityRepository) FetchEligible(ctx context.Context, sourceUserID uuid.UUID, limit int) ([]models.Opportunity, error) {
	query := `
		SELECT ` + opportunitySelectList + `
		FROM opportunities
		WHERE source_user_id = $1
		  AND status IN ('pending', 'approved')
		ORDER BY match_score DESC, created_at ASC
		LIMIT $2`

	opps := []models.Opportunity{}
	if err := r.db.SelectContext(ctx, &opps, query, sourceUserID, limit); err != nil {
		return nil, fmt.Errorf("fetch eligible opportunities: %w", err)
	}
	return opps, nil
}

// MarkPlaced transitions an opportunity to placed and records where and how
// the link landed. The status guard keeps transitions monotonic: a row that
// already left pending/approved is never overwritten.
func (r *OpportunityRepository) MarkPlaced(ctx context.Context, id uuid.UUID, placementURL string, method models.PlacementMethod) error {
	query := `
		UPDATE opportunities
		SET status = 'placed',
		    placement_url = $2,
		    placement_method = $3,
		    placed_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1
		  AND status IN ('pending', 'approved')`

	if err := r.execExpectOneRow(ctx, query, id, placementURL, method); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return err
		}
		return fmt.Errorf("mark placed: %w", err)
	}
	return nil
}

// MarkFailed transitions an opportunity to failed with the attempt's error
// message. Same monotonicity guard as MarkPlaced.
func (r *OpportunityRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMsg string) error {
	query := `
		UPDATE opportunities
		SET status = 'failed',
		    error_message = $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND status IN ('pending', 'approved')`

	if err := r.execExpectOneRow(ctx, query, id, errorMsg); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return err
		}
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// ListSourceUsersWithEligible returns the distinct source users that have at
// least one pending/approved opportunity. Used by the cron-driven batch.
func (r *OpportunityRepository) ListSourceUsersWithEligible(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT source_user_id
		FROM opportunities
		WHERE status IN ('pending', 'approved')`

	ids := []uuid.UUID{}
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("list source users: %w", err)
	}
	return ids, nil
}

// execExpectOneRow runs an exec and returns models.ErrNotFound when no row
// was affected
func (r *OpportunityRepository) execExpectOneRow(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return fmt.Errorf("get affected rows: %w", rowsErr)
	}
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}
