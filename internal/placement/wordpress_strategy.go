package placement

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"time"

	"github.com/linkdeck/placement-engine/internal/generator"
	"github.com/linkdeck/placement-engine/internal/logger"
	"github.com/linkdeck/placement-engine/internal/models"
	"github.com/linkdeck/placement-engine/internal/wordpress"
)

const pageExcerptChars = 200

// WordPressStrategy places a link by editing the target site's content
// directly through its REST API: pick the best-matching recent post, pick
// the best middle paragraph, append one generated sentence, push the updated
// body back, then verify the link is live.
type WordPressStrategy struct {
	generator   *generator.Generator
	httpClient  *http.Client
	recentPosts int
	settleDelay time.Duration
	maxChars    int
	logger      logger.Logger
}

// WordPressStrategyConfig tunes the strategy
type WordPressStrategyConfig struct {
	RecentPosts int
	SettleDelay time.Duration
	MaxChars    int
}

// NewWordPressStrategy creates the strategy. The HTTP client bounds every
// outbound call; the settle delay gives the target's caching layer time to
// pick up the edit before verification.
func NewWordPressStrategy(
	gen *generator.Generator,
	httpClient *http.Client,
	cfg WordPressStrategyConfig,
	log logger.Logger,
) *WordPressStrategy {
	if cfg.RecentPosts <= 0 {
		cfg.RecentPosts = 10
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = generator.DefaultMaxChars
	}

	return &WordPressStrategy{
		generator:   gen,
		httpClient:  httpClient,
		recentPosts: cfg.RecentPosts,
		settleDelay: cfg.SettleDelay,
		maxChars:    cfg.MaxChars,
		logger:      log,
	}
}

// Place executes the content-API strategy for one opportunity against the
// target user's site. target supplies the site URL and credentials;
// sourceKeywords drive post and paragraph selection. A failed fetch or
// update produces a failure result with the raw error and elapsed time; a
// failed verification does not downgrade a successful write.
func (s *WordPressStrategy) Place(
	ctx context.Context,
	opp *models.Opportunity,
	target *models.DomainMetrics,
	sourceKeywords []string,
) Result {
	start := time.Now()
	method := models.MethodContentAPI

	client, err := wordpress.NewClient(
		target.SiteURL, target.WPUsername, target.WPAppPassword, s.httpClient, s.logger)
	if err != nil {
		return failure(method, start, err)
	}

	posts, err := client.ListPosts(ctx, s.recentPosts)
	if err != nil {
		return failure(method, start, fmt.Errorf("fetch posts: %w", err))
	}
	if len(posts) == 0 {
		return failure(method, start, errors.New("target site has no published posts"))
	}

	post := selectPost(posts, sourceKeywords)
	paragraphs, htmlMode := splitParagraphs(post.Content.Rendered)

	sentence, err := s.generator.Generate(ctx, generator.Request{
		AnchorText:  opp.SuggestedAnchor,
		TargetURL:   opp.SuggestedTargetURL,
		Niche:       target.Niche,
		Keywords:    sourceKeywords,
		PageTitle:   stripTags(post.Title.Rendered),
		PageExcerpt: excerpt(post.Content.Rendered),
		MaxChars:    s.maxChars,
	})
	if err != nil {
		return failure(method, start, fmt.Errorf("generate sentence: %w", err))
	}

	newBody := insertSentence(paragraphs, htmlMode, sentence, sourceKeywords)

	if err := client.UpdatePost(ctx, post.ID, newBody); err != nil {
		return failure(method, start, fmt.Errorf("update post: %w", err))
	}

	result := Result{
		Success:      true,
		Method:       method,
		PlacementURL: post.Link,
		ResponseTime: time.Since(start),
	}
	result.VerificationSuccess = s.verify(ctx, client, post.Link, opp.SuggestedTargetURL)
	result.ResponseTime = time.Since(start)

	s.logger.Info("content-API placement completed",
		logger.String("opportunity_id", opp.ID.String()),
		logger.String("placement_url", post.Link),
		logger.Bool("verification_success", result.VerificationSuccess),
		logger.Duration("response_time", result.ResponseTime),
	)
	return result
}

// insertSentence appends the sentence to the best middle paragraph. Bodies
// too short to have a middle paragraph get the sentence as a trailing
// paragraph instead.
func insertSentence(paragraphs []string, htmlMode bool, sentence string, keywords []string) string {
	idx, ok := selectParagraph(paragraphs, keywords)
	if !ok {
		body := joinParagraphs(paragraphs, htmlMode)
		if htmlMode {
			return body + "<p>" + sentence + "</p>"
		}
		return body + "\n\n" + sentence
	}

	paragraphs[idx] = appendToParagraph(paragraphs[idx], sentence, htmlMode)
	return joinParagraphs(paragraphs, htmlMode)
}

// verify waits for upstream caching to settle, re-fetches the published URL
// and looks for the target href, in raw or entity-escaped form since the
// inserted anchor escapes its attribute value. Inconclusive verification is
// a recorded flag, never an error.
func (s *WordPressStrategy) verify(ctx context.Context, client *wordpress.Client, pageURL, targetURL string) bool {
	if s.settleDelay > 0 {
		select {
		case <-time.After(s.settleDelay):
		case <-ctx.Done():
			return false
		}
	}

	page, err := client.FetchPage(ctx, pageURL)
	if err != nil {
		s.logger.Warn("verification fetch failed",
			logger.String("page_url", pageURL),
			logger.Error(err),
		)
		return false
	}

	hrefPattern := regexp.MustCompile(`href\s*=\s*["'](` +
		regexp.QuoteMeta(targetURL) + `|` + regexp.QuoteMeta(html.EscapeString(targetURL)) + `)["']`)
	return hrefPattern.MatchString(page)
}

// excerpt returns the leading plain text of a post body for prompt context
func excerpt(body string) string {
	text := stripTags(body)
	if len(text) > pageExcerptChars {
		return text[:pageExcerptChars]
	}
	return text
}
