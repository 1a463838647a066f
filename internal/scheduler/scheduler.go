// Package scheduler drives placement runs: it pulls eligible opportunities,
// classifies targets, picks a strategy, reconciles the credit ledger and
// records every attempt.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linkdeck/placement-engine/internal/database"
	"github.com/linkdeck/placement-engine/internal/detector"
	"github.com/linkdeck/placement-engine/internal/ledger"
	"github.com/linkdeck/placement-engine/internal/logger"
	"github.com/linkdeck/placement-engine/internal/metrics"
	"github.com/linkdeck/placement-engine/internal/models"
	"github.com/linkdeck/placement-engine/internal/placement"
	"github.com/linkdeck/placement-engine/internal/ratelimit"
	"github.com/linkdeck/placement-engine/internal/telemetry"
)

const (
	defaultBatchSize      = 20
	defaultAttemptTimeout = 60 * time.Second
)

// Skip reasons reported in outcomes
const (
	SkipNoMethod            = "no placement method available"
	SkipInsufficientCredits = "insufficient credits"
	SkipInstructionCeiling  = "target content has too many live instructions"
)

// Config tunes the scheduler
type Config struct {
	// BatchSize caps eligible opportunities considered per user per run
	BatchSize int

	// MaxLiveInstructions caps pending injection instructions per target
	// content item
	MaxLiveInstructions int

	// AttemptTimeout bounds one full strategy execution, covering all its
	// external calls, so a stuck third-party site cannot stall the batch
	AttemptTimeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		BatchSize:           defaultBatchSize,
		MaxLiveInstructions: 3,
		AttemptTimeout:      defaultAttemptTimeout,
	}
}

// Outcome reports what happened to one opportunity in a run
type Outcome struct {
	OpportunityID       uuid.UUID              `json:"opportunity_id"`
	Skipped             bool                   `json:"skipped,omitempty"`
	SkipReason          string                 `json:"skip_reason,omitempty"`
	Success             bool                   `json:"success"`
	Method              models.PlacementMethod `json:"placement_method,omitempty"`
	PlacementURL        string                 `json:"placement_url,omitempty"`
	VerificationSuccess bool                   `json:"verification_success"`
	ResponseTimeMs      int64                  `json:"response_time_ms"`
	CreditsCharged      int                    `json:"credits_charged"`
	ErrorMessage        string                 `json:"error,omitempty"`
}

// Scheduler wires the engine's components. One scheduler processes one user
// at a time sequentially; running distinct users on independent instances is
// safe because every ledger write is scoped per user and applied atomically.
type Scheduler struct {
	opportunities *database.OpportunityRepository
	instructions  *database.InstructionRepository
	attempts      *database.AttemptRepository
	users         *database.UserRepository
	domainMetrics *database.DomainMetricsRepository
	ledger        *ledger.Service
	detector      *detector.Detector
	wpStrategy    *placement.WordPressStrategy
	injStrategy   *placement.InjectionStrategy
	limiter       *ratelimit.DomainLimiter
	metrics       *metrics.Tracker
	telemetry     *telemetry.Provider
	tracer        trace.Tracer
	cfg           Config
	logger        logger.Logger
}

// Deps collects the scheduler's dependencies
type Deps struct {
	Opportunities *database.OpportunityRepository
	Instructions  *database.InstructionRepository
	Attempts      *database.AttemptRepository
	Users         *database.UserRepository
	DomainMetrics *database.DomainMetricsRepository
	Ledger        *ledger.Service
	Detector      *detector.Detector
	WPStrategy    *placement.WordPressStrategy
	InjStrategy   *placement.InjectionStrategy
	Limiter       *ratelimit.DomainLimiter
	Metrics       *metrics.Tracker
	Telemetry     *telemetry.Provider
}

// New creates a scheduler
func New(deps Deps, cfg Config, log logger.Logger) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MaxLiveInstructions <= 0 {
		cfg.MaxLiveInstructions = 3
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaultAttemptTimeout
	}
	if deps.Telemetry == nil {
		deps.Telemetry = telemetry.NewProvider()
	}

	return &Scheduler{
		opportunities: deps.Opportunities,
		instructions:  deps.Instructions,
		attempts:      deps.Attempts,
		users:         deps.Users,
		domainMetrics: deps.DomainMetrics,
		ledger:        deps.Ledger,
		detector:      deps.Detector,
		wpStrategy:    deps.WPStrategy,
		injStrategy:   deps.InjStrategy,
		limiter:       deps.Limiter,
		metrics:       deps.Metrics,
		telemetry:     deps.Telemetry,
		tracer:        otel.Tracer("placement-scheduler"),
		cfg:           cfg,
		logger:        log,
	}
}

// RunForUser processes one user's eligible opportunities sequentially, best
// match first, and stops at the first successful placement. Opportunities
// already placed are never selected; skips (ceiling, credits, no method) do
// not fail the opportunity and it stays eligible for the next run.
func (s *Scheduler) RunForUser(ctx context.Context, userID uuid.UUID) ([]Outcome, error) {
	opps, err := s.opportunities.FetchEligible(ctx, userID, s.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("fetch eligible opportunities: %w", err)
	}

	s.logger.Info("placement run started",
		logger.String("user_id", userID.String()),
		logger.Int("eligible", len(opps)),
	)
	s.telemetry.RecordBatchSize(len(opps))

	outcomes := make([]Outcome, 0, len(opps))
	for i := range opps {
		outcome := s.placeOne(ctx, &opps[i])
		outcomes = append(outcomes, outcome)

		if outcome.Success {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return outcomes, nil
}

// RunAll runs the batch for every user that currently has eligible
// opportunities. Used by the cron trigger.
func (s *Scheduler) RunAll(ctx context.Context) error {
	userIDs, err := s.opportunities.ListSourceUsersWithEligible(ctx)
	if err != nil {
		return fmt.Errorf("list users with eligible opportunities: %w", err)
	}

	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.RunForUser(ctx, userID); err != nil {
			s.logger.Error("placement run failed for user",
				logger.String("user_id", userID.String()),
				logger.Error(err),
			)
		}
	}
	return nil
}

// PlaceOpportunity runs the full pipeline for a single known opportunity.
// Backs the /place endpoint.
func (s *Scheduler) PlaceOpportunity(ctx context.Context, opportunityID uuid.UUID) (*Outcome, error) {
	opp, err := s.opportunities.GetByID(ctx, opportunityID)
	if err != nil {
		return nil, err
	}
	if !opp.IsPlaceable() {
		return nil, models.ErrOpportunityNotPlaceable
	}

	outcome := s.placeOne(ctx, opp)
	return &outcome, nil
}

// Opportunity retrieves one opportunity for request validation
func (s *Scheduler) Opportunity(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	return s.opportunities.GetByID(ctx, id)
}

// UserByEmail resolves an email to a user for the batch trigger
func (s *Scheduler) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.users.GetByEmail(ctx, email)
}

// placeOne executes the pipeline for one opportunity: classify, select,
// hold, place, record, reconcile.
func (s *Scheduler) placeOne(ctx context.Context, opp *models.Opportunity) Outcome {
	ctx, span := s.tracer.Start(ctx, "placement.attempt",
		trace.WithAttributes(
			attribute.String("opportunity_id", opp.ID.String()),
			attribute.String("source_user_id", opp.SourceUserID.String()),
			attribute.String("target_user_id", opp.TargetUserID.String()),
		))
	defer span.End()

	outcome := Outcome{OpportunityID: opp.ID}

	target, err := s.domainMetrics.GetForUser(ctx, opp.TargetUserID)
	if err != nil {
		outcome.ErrorMessage = fmt.Sprintf("target domain metrics unavailable: %v", err)
		return outcome
	}

	// Source keywords drive content matching; missing source metrics only
	// degrade selection quality.
	var sourceKeywords []string
	if source, srcErr := s.domainMetrics.GetForUser(ctx, opp.SourceUserID); srcErr == nil {
		sourceKeywords = source.Keywords
	}

	domain := targetDomain(target.SiteURL)
	if err := s.limiter.Wait(ctx, domain); err != nil {
		outcome.ErrorMessage = fmt.Sprintf("cancelled while waiting for domain cooldown: %v", err)
		return outcome
	}

	detection := s.detector.Detect(ctx, target.SiteURL)
	span.SetAttributes(attribute.String("platform", detection.Platform))

	method, err := placement.Select(detection, target)
	if errors.Is(err, models.ErrNoPlacementMethod) {
		s.logger.Warn("no placement method available, skipping",
			logger.String("opportunity_id", opp.ID.String()),
			logger.String("target_domain", domain),
		)
		s.metrics.IncrementSkipped(ctx) //nolint:errcheck // best-effort counter
		s.telemetry.RecordSkip("no_method")
		outcome.Skipped = true
		outcome.SkipReason = SkipNoMethod
		return outcome
	}
	outcome.Method = method

	if method == models.MethodInjection {
		if skipped := s.checkInstructionCeiling(ctx, opp, &outcome); skipped {
			return outcome
		}
	}

	held, err := s.holdCredits(ctx, opp, &outcome)
	if err != nil || !held {
		return outcome
	}

	result := s.execute(ctx, method, opp, target, sourceKeywords)
	s.recordAttempt(ctx, opp, domain, result)
	return s.reconcile(ctx, opp, result, outcome)
}

// checkInstructionCeiling skips the opportunity when its target content item
// already carries the maximum number of live injection instructions.
func (s *Scheduler) checkInstructionCeiling(ctx context.Context, opp *models.Opportunity, outcome *Outcome) bool {
	live, err := s.instructions.CountLiveForTarget(ctx, opp.TargetContentID)
	if err != nil {
		outcome.ErrorMessage = fmt.Sprintf("count live instructions: %v", err)
		return true
	}
	if live < s.cfg.MaxLiveInstructions {
		return false
	}

	s.logger.Info("instruction ceiling reached for target content, skipping",
		logger.String("opportunity_id", opp.ID.String()),
		logger.String("target_content_id", opp.TargetContentID.String()),
		logger.Int("live_instructions", live),
	)
	s.metrics.IncrementSkipped(ctx) //nolint:errcheck // best-effort counter
	s.telemetry.RecordSkip("instruction_ceiling")
	outcome.Skipped = true
	outcome.SkipReason = SkipInstructionCeiling
	return true
}

// holdCredits reserves the opportunity's estimated value from the source
// user. A refused hold is a skip, not a failure: no attempt record, no
// transaction, status unchanged.
func (s *Scheduler) holdCredits(ctx context.Context, opp *models.Opportunity, outcome *Outcome) (bool, error) {
	if opp.EstimatedValue <= 0 {
		return true, nil
	}

	held, err := s.ledger.Hold(ctx, opp.SourceUserID, opp.EstimatedValue, opp.ID)
	if err != nil {
		outcome.ErrorMessage = fmt.Sprintf("hold credits: %v", err)
		return false, err
	}
	if !held {
		s.metrics.IncrementSkipped(ctx) //nolint:errcheck // best-effort counter
		s.telemetry.RecordSkip("insufficient_credits")
		outcome.Skipped = true
		outcome.SkipReason = SkipInsufficientCredits
		return false, nil
	}
	s.telemetry.RecordHold(opp.EstimatedValue)
	return true, nil
}

// execute runs the selected strategy under the attempt timeout
func (s *Scheduler) execute(
	ctx context.Context,
	method models.PlacementMethod,
	opp *models.Opportunity,
	target *models.DomainMetrics,
	sourceKeywords []string,
) placement.Result {
	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
	defer cancel()

	switch method {
	case models.MethodContentAPI:
		return s.wpStrategy.Place(attemptCtx, opp, target, sourceKeywords)
	case models.MethodInjection:
		return s.injStrategy.Place(attemptCtx, opp, target, sourceKeywords)
	default:
		// Unreachable: Select only produces the two methods above.
		return placement.Result{
			Method:       method,
			ErrorMessage: fmt.Sprintf("unknown placement method %q", method),
		}
	}
}

// recordAttempt appends the audit record for every execution, success or
// failure
func (s *Scheduler) recordAttempt(ctx context.Context, opp *models.Opportunity, domain string, result placement.Result) {
	attempt := &models.PlacementAttempt{
		OpportunityID:       opp.ID,
		TargetDomain:        domain,
		Method:              result.Method,
		Success:             result.Success,
		VerificationSuccess: result.VerificationSuccess,
		ResponseTimeMs:      result.ResponseTime.Milliseconds(),
	}
	if result.ErrorMessage != "" {
		attempt.ErrorMessage = &result.ErrorMessage
	}

	if err := s.attempts.Create(ctx, attempt); err != nil {
		s.logger.Error("failed to record placement attempt",
			logger.String("opportunity_id", opp.ID.String()),
			logger.Error(err),
		)
	}
}

// reconcile finishes the pipeline: flip opportunity status, settle the
// ledger, bump counters. A failed placement always refunds the prior hold
// with the same amount.
func (s *Scheduler) reconcile(ctx context.Context, opp *models.Opportunity, result placement.Result, outcome Outcome) Outcome {
	outcome.Method = result.Method
	outcome.VerificationSuccess = result.VerificationSuccess
	outcome.ResponseTimeMs = result.ResponseTime.Milliseconds()
	s.telemetry.RecordPlacement(string(result.Method), result.Success, result.ResponseTime)

	if !result.Success {
		outcome.ErrorMessage = result.ErrorMessage

		if err := s.opportunities.MarkFailed(ctx, opp.ID, result.ErrorMessage); err != nil {
			s.logger.Error("failed to mark opportunity failed",
				logger.String("opportunity_id", opp.ID.String()),
				logger.Error(err),
			)
		}
		if opp.EstimatedValue > 0 {
			if err := s.ledger.RefundHold(ctx, opp.SourceUserID, opp.EstimatedValue, opp.ID, result.ErrorMessage); err != nil {
				s.logger.Error("failed to refund hold",
					logger.String("opportunity_id", opp.ID.String()),
					logger.String("user_id", opp.SourceUserID.String()),
					logger.Error(err),
				)
			} else {
				s.telemetry.RecordRefund(opp.EstimatedValue)
			}
		}
		s.metrics.IncrementFailed(ctx, result.Method) //nolint:errcheck // best-effort counter
		return outcome
	}

	outcome.Success = true
	outcome.PlacementURL = result.PlacementURL
	outcome.CreditsCharged = opp.EstimatedValue

	if err := s.opportunities.MarkPlaced(ctx, opp.ID, result.PlacementURL, result.Method); err != nil {
		s.logger.Error("failed to mark opportunity placed",
			logger.String("opportunity_id", opp.ID.String()),
			logger.Error(err),
		)
	}

	// The source user's hold stands as the charge; the target user earns
	// the same amount for hosting the link.
	if opp.EstimatedValue > 0 {
		desc := fmt.Sprintf("earned for hosting placement of opportunity %s", opp.ID)
		if err := s.ledger.Credit(ctx, opp.TargetUserID, opp.EstimatedValue, desc, &opp.ID); err != nil {
			s.logger.Error("failed to credit target user",
				logger.String("opportunity_id", opp.ID.String()),
				logger.String("user_id", opp.TargetUserID.String()),
				logger.Error(err),
			)
		}
	}

	s.metrics.IncrementPlaced(ctx, result.Method) //nolint:errcheck // best-effort counter

	s.logger.Info("opportunity placed",
		logger.String("opportunity_id", opp.ID.String()),
		logger.String("placement_url", result.PlacementURL),
		logger.String("method", string(result.Method)),
		logger.Bool("verification_success", result.VerificationSuccess),
		logger.Int("credits_charged", opp.EstimatedValue),
	)
	return outcome
}

// targetDomain extracts the host for rate limiting and audit records
func targetDomain(siteURL string) string {
	u, err := url.Parse(siteURL)
	if err != nil || u.Host == "" {
		return siteURL
	}
	return u.Host
}
