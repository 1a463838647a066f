package placement

import (
	"context"
	"fmt"
	"time"

	"github.com/linkdeck/placement-engine/internal/database"
	"github.com/linkdeck/placement-engine/internal/generator"
	"github.com/linkdeck/placement-engine/internal/logger"
	"github.com/linkdeck/placement-engine/internal/models"
)

// defaultSelector targets the main content paragraphs most themes expose
const defaultSelector = "article p, .entry-content p, main p"

// InjectionStrategy places a link by writing a durable instruction that the
// target site's own tracking script executes later, client-side. Success
// means the instruction is durably written; actual insertion happens
// out-of-process, so verification is always pending at this point.
type InjectionStrategy struct {
	generator    *generator.Generator
	instructions *database.InstructionRepository
	maxChars     int
	logger       logger.Logger
}

// NewInjectionStrategy creates the strategy
func NewInjectionStrategy(
	gen *generator.Generator,
	instructions *database.InstructionRepository,
	maxChars int,
	log logger.Logger,
) *InjectionStrategy {
	if maxChars <= 0 {
		maxChars = generator.DefaultMaxChars
	}
	return &InjectionStrategy{
		generator:    gen,
		instructions: instructions,
		maxChars:     maxChars,
		logger:       log,
	}
}

// Place upserts the placement instruction for the opportunity. The upsert is
// keyed on opportunity_id, so re-running the strategy never creates a
// duplicate. A datastore error is the only failure mode; in that case the
// caller charges nothing.
func (s *InjectionStrategy) Place(
	ctx context.Context,
	opp *models.Opportunity,
	target *models.DomainMetrics,
	sourceKeywords []string,
) Result {
	start := time.Now()
	method := models.MethodInjection

	sentence, err := s.generator.Generate(ctx, generator.Request{
		AnchorText: opp.SuggestedAnchor,
		TargetURL:  opp.SuggestedTargetURL,
		Niche:      target.Niche,
		Keywords:   sourceKeywords,
		MaxChars:   s.maxChars,
	})
	if err != nil {
		return failure(method, start, fmt.Errorf("generate sentence: %w", err))
	}

	inst := &models.PlacementInstruction{
		OpportunityID: opp.ID,
		TargetUserID:  opp.TargetUserID,
		TargetURL:     opp.SuggestedTargetURL,
		AnchorText:    opp.SuggestedAnchor,
		SentenceHTML:  sentence,
		CSSSelector:   defaultSelector,
		Position:      "append",
	}

	stored, err := s.instructions.Upsert(ctx, inst)
	if err != nil {
		return failure(method, start, fmt.Errorf("persist instruction: %w", err))
	}

	s.logger.Info("placement instruction written",
		logger.String("opportunity_id", opp.ID.String()),
		logger.String("instruction_id", stored.ID.String()),
		logger.String("target_url", inst.TargetURL),
	)

	return Result{
		Success:             true,
		VerificationSuccess: false,
		Method:              method,
		PlacementURL:        target.SiteURL,
		ResponseTime:        time.Since(start),
	}
}
