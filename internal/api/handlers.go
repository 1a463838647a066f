package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/linkdeck/placement-engine/internal/logger"
	"github.com/linkdeck/placement-engine/internal/models"
)

// PlaceRequest triggers a placement attempt for one opportunity
type PlaceRequest struct {
	OpportunityID  string `json:"opportunity_id" binding:"required"`
	UserID         string `json:"user_id"`
	ManualOverride bool   `json:"manual_override"`
}

// ScheduleRequest triggers a batch run for one user, identified by ID or
// email
type ScheduleRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// placeOpportunity runs the placement pipeline for a single opportunity
// POST /place
func (r *Router) placeOpportunity(c *gin.Context) {
	ctx := c.Request.Context()

	var req PlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	opportunityID, err := uuid.Parse(req.OpportunityID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid opportunity ID format",
		})
		return
	}

	opp, err := r.scheduler.Opportunity(ctx, opportunityID)
	if err != nil {
		handleRepositoryError(c, err, "opportunity", "get")
		return
	}

	if !r.authorizePlace(c, &req, opp) {
		return
	}

	outcome, err := r.scheduler.PlaceOpportunity(ctx, opportunityID)
	if err != nil {
		if errors.Is(err, models.ErrOpportunityNotPlaceable) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "Opportunity is not in a placeable state",
			})
			return
		}
		handleRepositoryError(c, err, "opportunity", "place")
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// authorizePlace enforces ownership: the caller must be the opportunity's
// source user, unless a valid admin secret accompanies a manual override.
func (r *Router) authorizePlace(c *gin.Context, req *PlaceRequest, opp *models.Opportunity) bool {
	if req.ManualOverride {
		if !adminSecretValid(c, r.cfg.Server.AdminSecret) {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Manual override requires a valid admin secret",
			})
			return false
		}
		return true
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid user ID format",
		})
		return false
	}
	if userID != opp.SourceUserID {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Opportunity does not belong to this user",
		})
		return false
	}
	return true
}

// scheduleUser runs the batch pipeline for one user's eligible opportunities
// POST /schedule
func (r *Router) scheduleUser(c *gin.Context) {
	ctx := c.Request.Context()

	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	userID, ok := r.resolveUser(c, &req)
	if !ok {
		return
	}

	outcomes, err := r.scheduler.RunForUser(ctx, userID)
	if err != nil {
		r.logger.Error("Batch placement run failed",
			logger.String("user_id", userID.String()),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to run placements for user",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": outcomes,
		"count":   len(outcomes),
	})
}

// resolveUser turns the schedule request into a user ID, by ID when present
// and by email otherwise
func (r *Router) resolveUser(c *gin.Context, req *ScheduleRequest) (uuid.UUID, bool) {
	if req.UserID != "" {
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid user ID format",
			})
			return uuid.Nil, false
		}
		return userID, true
	}

	if req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Either user_id or email is required",
		})
		return uuid.Nil, false
	}

	user, err := r.scheduler.UserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		handleRepositoryError(c, err, "user", "get")
		return uuid.Nil, false
	}
	return user.ID, true
}
