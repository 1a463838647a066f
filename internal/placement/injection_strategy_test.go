package placement_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkdeck/placement-engine/internal/database"
	"github.com/linkdeck/placement-engine/internal/generator"
	"github.com/linkdeck/placement-engine/internal/logger"
	"github.com/linkdeck/placement-engine/internal/models"
	"github.com/linkdeck/placement-engine/internal/placement"
)

func newInjectionStrategy(t *testing.T) (*placement.InjectionStrategy, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := database.NewInstructionRepository(sqlx.NewDb(db, "postgres"))
	gen := generator.New(nil, "nofollow", logger.NewNopLogger())
	return placement.NewInjectionStrategy(gen, repo, 0, logger.NewNopLogger()), mock
}

func TestInjectionStrategy_Place(t *testing.T) {
	strategy, mock := newInjectionStrategy(t)

	opp := testOpportunity()
	opp.TargetUserID = uuid.New()
	now := time.Now()

	mock.ExpectQuery("INSERT INTO placement_instructions").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "opportunity_id", "target_user_id", "target_url",
			"anchor_text", "sentence_html", "css_selector", "position", "status",
			"created_at", "updated_at", "completed_at",
		}).AddRow(
			uuid.New(), opp.ID, opp.TargetUserID, opp.SuggestedTargetURL,
			opp.SuggestedAnchor, "sentence", "article p, .entry-content p, main p", "append",
			"pending", now, now, nil,
		))

	result := strategy.Place(context.Background(), opp,
		testMetrics("https://target.example"), []string{"gardening"})

	require.True(t, result.Success, "error: %s", result.ErrorMessage)
	assert.Equal(t, models.MethodInjection, result.Method)
	assert.Equal(t, "https://target.example", result.PlacementURL)

	// The link is not live yet: the tracking script inserts it later, so
	// verification is always pending at write time.
	assert.False(t, result.VerificationSuccess)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInjectionStrategy_DatastoreFailure(t *testing.T) {
	strategy, mock := newInjectionStrategy(t)

	mock.ExpectQuery("INSERT INTO placement_instructions").
		WillReturnError(sql.ErrConnDone)

	result := strategy.Place(context.Background(), testOpportunity(),
		testMetrics("https://target.example"), nil)

	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "persist instruction")
}

func TestInjectionStrategy_InvalidTargetURL(t *testing.T) {
	strategy, _ := newInjectionStrategy(t)

	opp := testOpportunity()
	opp.SuggestedTargetURL = "javascript:alert(1)"

	result := strategy.Place(context.Background(), opp,
		testMetrics("https://target.example"), nil)

	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "generate sentence")
}
