package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the kind of ledger mutation
type TransactionType string

const (
	// TransactionHold reserves credits before a paid action is attempted
	TransactionHold TransactionType = "hold"

	// TransactionCredit adds credits (earnings or hold refunds)
	TransactionCredit TransactionType = "credit"

	// TransactionDebit removes credits outside the hold flow
	TransactionDebit TransactionType = "debit"
)

// CreditTransaction is an append-only ledger entry. The denormalized
// balance on the user row must always equal the running sum of that user's
// transactions; balance_before/balance_after capture the row's view of it.
type CreditTransaction struct {
	ID            uuid.UUID       `db:"id"             json:"id"`
	UserID        uuid.UUID       `db:"user_id"        json:"user_id"`
	Type          TransactionType `db:"type"           json:"type"`
	Amount        int             `db:"amount"         json:"amount"` // signed: holds and debits are negative
	BalanceBefore int             `db:"balance_before" json:"balance_before"`
	BalanceAfter  int             `db:"balance_after"  json:"balance_after"`
	Description   string          `db:"description"    json:"description"`
	OpportunityID *uuid.UUID      `db:"opportunity_id" json:"opportunity_id,omitempty"`
	RefundReason  *string         `db:"refund_reason"  json:"refund_reason,omitempty"`
	CreatedAt     time.Time       `db:"created_at"     json:"created_at"`
}

// User holds the denormalized credit balance this engine reconciles.
// Registration and profile data live elsewhere.
type User struct {
	ID            uuid.UUID `db:"id"             json:"id"`
	Email         string    `db:"email"          json:"email"`
	CreditBalance int       `db:"credit_balance" json:"credit_balance"`
	CreatedAt     time.Time `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"     json:"updated_at"`
}

// DomainMetrics holds per-user cached facts about the user's site. Written
// by the external metrics-refresh job; read-only input to this engine.
type DomainMetrics struct {
	ID             uuid.UUID  `db:"id"               json:"id"`
	UserID         uuid.UUID  `db:"user_id"          json:"user_id"`
	SiteURL        string     `db:"site_url"         json:"site_url"`
	Platform       string     `db:"platform"         json:"platform"`
	WPAPIEnabled   bool       `db:"wp_api_enabled"   json:"wp_api_enabled"`
	WPUsername     string     `db:"wp_username"      json:"-"`
	WPAppPassword  string     `db:"wp_app_password"  json:"-"`
	AuthorityScore int        `db:"authority_score"  json:"authority_score"`
	Niche          string     `db:"niche"            json:"niche"`
	Keywords       []string   `db:"keywords"         json:"keywords"`
	RefreshedAt    *time.Time `db:"refreshed_at"     json:"refreshed_at,omitempty"`
}

// HasWPCredentials reports whether the metrics row carries usable
// content-API credentials
func (m *DomainMetrics) HasWPCredentials() bool {
	return m.WPAPIEnabled && m.WPUsername != "" && m.WPAppPassword != ""
}
