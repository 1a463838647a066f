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

// LedgerRepository owns every mutation of user credit balances. The balance
// update and the transaction row are one logical unit: ApplyTransaction runs
// both inside a single SQL transaction, with a conditional update on the
// denormalized balance so concurrent workers cannot produce lost updates.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository creates a new repository
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// ApplyTransaction atomically adjusts a user's balance by the signed amount
// and appends the matching ledger row. The update is refused (no rows
// written, models.ErrInsufficientCredits) when it would take the balance
// below zero. Holds and debits pass a negative amount, credits positive.
func (r *LedgerRepository) ApplyTransaction(
	ctx context.Context,
	userID uuid.UUID,
	txType models.TransactionType,
	amount int,
	description string,
	opportunityID *uuid.UUID,
	refundReason *string,
) (*models.CreditTransaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin ledger transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	// Conditional update: the WHERE clause is the compare-and-set guard
	// against concurrent writers and against overdrafts.
	var balanceAfter int
	updateQuery := `
		UPDATE users
		SET credit_balance = credit_balance + $1,
		    updated_at = NOW()
		WHERE id = $2
		  AND credit_balance + $1 >= 0
		RETURNING credit_balance`

	err = tx.QueryRowxContext(ctx, updateQuery, amount, userID).Scan(&balanceAfter)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.classifyRefusal(ctx, tx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	entry := &models.CreditTransaction{
		ID:            uuid.New(),
		UserID:        userID,
		Type:          txType,
		Amount:        amount,
		BalanceBefore: balanceAfter - amount,
		BalanceAfter:  balanceAfter,
		Description:   description,
		OpportunityID: opportunityID,
		RefundReason:  refundReason,
		CreatedAt:     time.Now(),
	}

	insertQuery := `
		INSERT INTO credit_transactions (
			id, user_id, type, amount, balance_before, balance_after,
			description, opportunity_id, refund_reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = tx.ExecContext(ctx, insertQuery,
		entry.ID, entry.UserID, entry.Type, entry.Amount,
		entry.BalanceBefore, entry.BalanceAfter, entry.Description,
		entry.OpportunityID, entry.RefundReason, entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert credit transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit ledger transaction: %w", err)
	}
	return entry, nil
}

// classifyRefusal distinguishes an unknown user from an insufficient balance
// after the conditional update matched no row.
func (r *LedgerRepository) classifyRefusal(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) error {
	var balance int
	err := tx.QueryRowxContext(ctx,
		`SELECT credit_balance FROM users WHERE id = $1`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check balance: %w", err)
	}
	return models.ErrInsufficientCredits
}

// GetBalance returns the user's current denormalized balance
func (r *LedgerRepository) GetBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	var balance int
	err := r.db.QueryRowxContext(ctx,
		`SELECT credit_balance FROM users WHERE id = $1`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, models.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// ListTransactions returns a user's ledger entries, newest first
func (r *LedgerRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.CreditTransaction, error) {
	query := `
		SELECT id, user_id, type, amount, balance_before, balance_after,
		       description, opportunity_id, refund_reason, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	entries := []models.CreditTransaction{}
	if err := r.db.SelectContext(ctx, &entries, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list credit transactions: %w", err)
	}
	return entries, nil
}
