// Package ledger reconciles user credit balances around placement attempts.
// Every mutation goes through the repository's atomic apply, so the
// denormalized balance always equals the running sum of transactions.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/linkdeck/placement-engine/internal/database"
	"github.com/linkdeck/placement-engine/internal/logger"
	"github.com/linkdeck/placement-engine/internal/models"
)

// Service exposes the hold/debit/credit operations used by the engine
type Service struct {
	repo   *database.LedgerRepository
	logger logger.Logger
}

// NewService creates a ledger service
func NewService(repo *database.LedgerRepository, log logger.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

// Hold reserves amount credits from the user before a placement attempt.
// Returns (false, nil) when the balance is insufficient: a refused hold is a
// normal negative result with no side effects, and the caller skips the
// placement.
func (s *Service) Hold(ctx context.Context, userID uuid.UUID, amount int, opportunityID uuid.UUID) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("hold amount must be positive, got %d", amount)
	}

	_, err := s.repo.ApplyTransaction(ctx, userID, models.TransactionHold, -amount,
		fmt.Sprintf("hold for placement of opportunity %s", opportunityID), &opportunityID, nil)
	if errors.Is(err, models.ErrInsufficientCredits) {
		s.logger.Info("hold refused, insufficient credits",
			logger.String("user_id", userID.String()),
			logger.String("opportunity_id", opportunityID.String()),
			logger.Int("amount", amount),
		)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("apply hold: %w", err)
	}
	return true, nil
}

// RefundHold exactly reverses a prior hold for a failed placement. The
// amount must equal the held amount; this symmetry is what keeps the ledger
// sum unchanged across a failed attempt.
func (s *Service) RefundHold(ctx context.Context, userID uuid.UUID, amount int, opportunityID uuid.UUID, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("refund amount must be positive, got %d", amount)
	}

	_, err := s.repo.ApplyTransaction(ctx, userID, models.TransactionCredit, amount,
		fmt.Sprintf("refund hold for opportunity %s", opportunityID), &opportunityID, &reason)
	if err != nil {
		return fmt.Errorf("apply refund: %w", err)
	}

	s.logger.Info("hold refunded",
		logger.String("user_id", userID.String()),
		logger.String("opportunity_id", opportunityID.String()),
		logger.Int("amount", amount),
		logger.String("reason", reason),
	)
	return nil
}

// Credit adds earned credits to a user (the target user's reward for
// hosting a placed link)
func (s *Service) Credit(ctx context.Context, userID uuid.UUID, amount int, description string, opportunityID *uuid.UUID) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	_, err := s.repo.ApplyTransaction(ctx, userID, models.TransactionCredit, amount,
		description, opportunityID, nil)
	if err != nil {
		return fmt.Errorf("apply credit: %w", err)
	}
	return nil
}

// Debit removes credits outside the hold flow
func (s *Service) Debit(ctx context.Context, userID uuid.UUID, amount int, description string, opportunityID *uuid.UUID) error {
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	_, err := s.repo.ApplyTransaction(ctx, userID, models.TransactionDebit, -amount,
		description, opportunityID, nil)
	if err != nil {
		return fmt.Errorf("apply debit: %w", err)
	}
	return nil
}

// Balance returns the user's current credit balance
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.GetBalance(ctx, userID)
}
