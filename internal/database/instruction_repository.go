package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/linkdeck/placement-engine/internal/models"
)

const instructionSelectList = `id, opportunity_id, target_user_id, target_url,
	anchor_text, sentence_html, css_selector, position, status,
	created_at, updated_at, completed_at`

// InstructionRepository manages placement instructions. The unique index on
// opportunity_id makes writes upserts: re-running the injection strategy for
// the same opportunity never creates a duplicate row.
type InstructionRepository struct {
	db *sqlx.DB
}

// NewInstructionRepository creates a new repository
func NewInstructionRepository(db *sqlx.DB) *InstructionRepository {
	return &InstructionRepository{db: db}
}

// Upsert writes the instruction for its opportunity, replacing any prior
// pending instruction. Returns the stored row.
func (r *InstructionRepository) Upsert(ctx context.Context, inst *models.PlacementInstruction) (*models.PlacementInstruction, error) {
	if inst.ID == uuid.Nil {
		inst.ID = uuid.New()
	}
	now := time.Now()

	query := `
		INSERT INTO placement_instructions (
			id, opportunity_id, target_user_id, target_url, anchor_text,
			sentence_html, css_selector, position, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', $9, $9)
		ON CONFLICT (opportunity_id) DO UPDATE
		SET target_url    = EXCLUDED.target_url,
		    anchor_text   = EXCLUDED.anchor_text,
		    sentence_html = EXCLUDED.sentence_html,
		    css_selector  = EXCLUDED.css_selector,
		    position      = EXCLUDED.position,
		    updated_at    = EXCLUDED.updated_at
		RETURNING ` + instructionSelectList

	stored := &models.PlacementInstruction{}
	err := r.db.QueryRowxContext(ctx, query,
		inst.ID, inst.OpportunityID, inst.TargetUserID, inst.TargetURL,
		inst.AnchorText, inst.SentenceHTML, inst.CSSSelector, inst.Position, now,
	).StructScan(stored)
	if err != nil {
		return nil, fmt.Errorf("upsert placement instruction: %w", err)
	}
	return stored, nil
}

// GetByOpportunity retrieves the instruction for an opportunity
func (r *InstructionRepository) GetByOpportunity(ctx context.Context, opportunityID uuid.UUID) (*models.PlacementInstruction, error) {
	inst := &models.PlacementInstruction{}
	query := `SELECT ` + instructionSelectList + `
		FROM placement_instructions
		WHERE opportunity_id = $1`

	err := r.db.GetContext(ctx, inst, query, opportunityID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get placement instruction: %w", err)
	}
	return inst, nil
}

// CountLiveForTarget counts pending instructions whose opportunity points at
// the given target content item. The scheduler uses this for the
// per-target ceiling so one page never accumulates many simultaneous
// injected links.
func (r *InstructionRepository) CountLiveForTarget(ctx context.Context, targetContentID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM placement_instructions pi
		JOIN opportunities o ON o.id = pi.opportunity_id
		WHERE o.target_content_id = $1
		  AND pi.status = 'pending'`

	var count int
	if err := r.db.QueryRowxContext(ctx, query, targetContentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count live instructions: %w", err)
	}
	return count, nil
}

// MarkCompleted flips an instruction to completed. Called by the out-of-band
// execution report from the target site's tracking script.
func (r *InstructionRepository) MarkCompleted(ctx context.Context, opportunityID uuid.UUID) error {
	query := `
		UPDATE placement_instructions
		SET status = 'completed',
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE opportunity_id = $1
		  AND status = 'pending'`

	result, err := r.db.ExecContext(ctx, query, opportunityID)
	if err != nil {
		return fmt.Errorf("mark instruction completed: %w", err)
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
