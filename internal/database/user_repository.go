package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/linkdeck/placement-engine/internal/models"
)

// UserRepository reads user rows. Registration and profile mutation belong
// to other services; the engine only needs lookups and the balance column
// (mutated exclusively through LedgerRepository).
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new repository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, email, credit_balance, created_at, updated_at
		FROM users WHERE id = $1`

	err := r.db.GetContext(ctx, user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, email, credit_balance, created_at, updated_at
		FROM users WHERE email = $1`

	err := r.db.GetContext(ctx, user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// DomainMetricsRepository reads per-user cached site facts. Rows are written
// by the external metrics-refresh job; this engine treats them as read-only
// input.
type DomainMetricsRepository struct {
	db *sqlx.DB
}

// NewDomainMetricsRepository creates a new repository
func NewDomainMetricsRepository(db *sqlx.DB) *DomainMetricsRepository {
	return &DomainMetricsRepository{db: db}
}

// GetForUser retrieves the domain metrics row for a user
func (r *DomainMetricsRepository) GetForUser(ctx context.Context, userID uuid.UUID) (*models.DomainMetrics, error) {
	query := `
		SELECT id, user_id, site_url, platform, wp_api_enabled, wp_username,
		       wp_app_password, authority_score, niche, keywords, refreshed_at
		FROM domain_metrics
		WHERE user_id = $1`

	var m models.DomainMetrics
	var keywords pq.StringArray

	err := r.db.QueryRowxContext(ctx, query, userID).Scan(
		&m.ID, &m.UserID, &m.SiteURL, &m.Platform, &m.WPAPIEnabled,
		&m.WPUsername, &m.WPAppPassword, &m.AuthorityScore, &m.Niche,
		&keywords, &m.RefreshedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get domain metrics: %w", err)
	}
	m.Keywords = keywords
	return &m, nil
}
