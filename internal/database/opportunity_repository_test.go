package database_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/linkdeck/placement-engine/internal/database"
	"github.com/linkdeck/placement-engine/internal/models"
)

func TestOpportunityRepository_MarkPlaced(t *testing.T) {
	ctx := context.Background()
	oppID := uuid.New()
	placementURL := "https://target.example/post-7"

	testCases := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantErr   error
	}{
		{
			name: "eligible opportunity transitions to placed",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE opportunities").
					WithArgs(oppID, placementURL, models.MethodContentAPI).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "already placed opportunity is never overwritten",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE opportunities").
					WithArgs(oppID, placementURL, models.MethodContentAPI).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: models.ErrNotFound,
		},
		{
			name: "database error surfaces",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE opportunities").
					WithArgs(oppID, placementURL, models.MethodContentAPI).
					WillReturnError(sql.ErrConnDone)
			},
			wantErr: sql.ErrConnDone,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := database.NewOpportunityRepository(db)
			tc.setupMock(mock)

			err := repo.MarkPlaced(ctx, oppID, placementURL, models.MethodContentAPI)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("MarkPlaced() error = %v, want %v", err, tc.wantErr)
			}

			if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
				t.Errorf("unfulfilled expectations: %v", expectErr)
			}
		})
	}
}

func TestOpportunityRepository_MarkFailed(t *testing.T) {
	ctx := context.Background()
	oppID := uuid.New()

	testCases := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantErr   error
	}{
		{
			name: "eligible opportunity transitions to failed",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE opportunities").
					WithArgs(oppID, "content API update failed").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "terminal opportunity is never overwritten",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE opportunities").
					WithArgs(oppID, "content API update failed").
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: models.ErrNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := database.NewOpportunityRepository(db)
			tc.setupMock(mock)

			err := repo.MarkFailed(ctx, oppID, "content API update failed")
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("MarkFailed() error = %v, want %v", err, tc.wantErr)
			}

			if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
				t.Errorf("unfulfilled expectations: %v", expectErr)
			}
		})
	}
}

func TestOpportunityRepository_GetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewOpportunityRepository(db)
	oppID := uuid.New()

	mock.ExpectQuery("FROM opportunities").
		WithArgs(oppID).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), oppID)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want %v", err, models.ErrNotFound)
	}
}
