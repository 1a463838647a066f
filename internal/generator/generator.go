// Package generator builds the single contextual sentence that carries a
// placed backlink. Output always contains exactly one anchor tag pointing at
// the validated target URL; AI-produced text is treated as an untrusted
// input channel and is sanitized and rebuilt, never passed through as HTML.
package generator

import (
	"context"
	"fmt"
	"hash/fnv"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/linkdeck/placement-engine/internal/logger"
)

const (
	// maxAnchorChars caps anchor text length before either generation path runs
	maxAnchorChars = 80

	// DefaultMaxChars caps the full sentence when the caller passes zero
	DefaultMaxChars = 300
)

// CompletionClient is the AI text-completion dependency. Implementations
// return raw untrusted text.
type CompletionClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Request describes one sentence to generate
type Request struct {
	AnchorText  string
	TargetURL   string
	Niche       string
	Keywords    []string
	PageTitle   string
	PageExcerpt string
	MaxChars    int
}

// Generator produces contextual link sentences. The completion client may be
// nil, in which case only the deterministic templates are used.
type Generator struct {
	client CompletionClient
	rel    string
	logger logger.Logger
}

// New creates a generator. rel is the rel attribute stamped on every anchor.
func New(client CompletionClient, rel string, log logger.Logger) *Generator {
	return &Generator{
		client: client,
		rel:    rel,
		logger: log,
	}
}

// Generate returns an HTML snippet containing exactly one anchor tag whose
// href equals the validated target URL and whose visible text equals the
// sanitized anchor text. The snippet is a single sentence, contains no
// exclamation marks and is at most MaxChars long. The AI path is attempted
// first; any failure or structural violation falls back to a deterministic
// template. Errors are an invalid target URL, an empty anchor, or a limit
// too small to hold the anchor tag itself.
func (g *Generator) Generate(ctx context.Context, req Request) (string, error) {
	targetURL, err := validateURL(req.TargetURL)
	if err != nil {
		return "", err
	}

	anchor := sanitizeAnchor(req.AnchorText)
	if anchor == "" {
		return "", fmt.Errorf("anchor text is empty after sanitization")
	}

	maxChars := req.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	anchorHTML := g.buildAnchor(targetURL, anchor)

	if g.client != nil {
		sentence, aiErr := g.generateWithAI(ctx, req, targetURL, anchor, anchorHTML, maxChars)
		if aiErr == nil {
			return sentence, nil
		}
		g.logger.Debug("AI sentence rejected, using template fallback",
			logger.String("target_url", targetURL),
			logger.Error(aiErr),
		)
	}

	return g.fallbackSentence(req, targetURL, anchor, anchorHTML, maxChars)
}

// buildAnchor emits the canonical anchor tag from sanitized parts
func (g *Generator) buildAnchor(targetURL, anchor string) string {
	if g.rel != "" {
		return fmt.Sprintf(`<a href="%s" rel="%s">%s</a>`,
			html.EscapeString(targetURL), html.EscapeString(g.rel), html.EscapeString(anchor))
	}
	return fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(targetURL), html.EscapeString(anchor))
}

// generateWithAI asks the completion service for a sentence and validates it
// structurally. The response is never trusted as HTML: the anchor is located
// by href, the surrounding prose is escaped, and the snippet is rebuilt from
// sanitized parts.
func (g *Generator) generateWithAI(
	ctx context.Context,
	req Request,
	targetURL, anchor, anchorHTML string,
	maxChars int,
) (string, error) {
	raw, err := g.client.Complete(ctx, systemPrompt(maxChars), userPrompt(req, targetURL, anchor))
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}

	prefix, suffix, err := extractSurroundingText(raw, targetURL, anchor)
	if err != nil {
		return "", err
	}

	sentence := html.EscapeString(prefix) + anchorHTML + html.EscapeString(suffix)
	if err := checkSentence(sentence, prefix, anchor, suffix, maxChars); err != nil {
		return "", err
	}
	return sentence, nil
}

// anchorTagPattern matches any opening anchor tag, for counting
var anchorTagPattern = regexp.MustCompile(`(?i)<a[\s>]`)

// extractSurroundingText locates the expected anchor in the raw AI response
// and returns the prose before and after it. Rejects responses without the
// anchor, with extra anchors, with an href other than the target URL, or
// with visible text differing from the sanitized anchor.
func extractSurroundingText(raw, targetURL, anchor string) (prefix, suffix string, err error) {
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, `"`)

	if n := len(anchorTagPattern.FindAllString(raw, -1)); n != 1 {
		return "", "", fmt.Errorf("expected exactly one anchor tag, found %d", n)
	}

	// Keyed on the validated href: an anchor pointing anywhere else will not
	// match and the response is rejected.
	pattern := regexp.MustCompile(
		`(?is)<a\s[^>]*href\s*=\s*["']?` + regexp.QuoteMeta(targetURL) + `["']?[^>]*>(.*?)</a>`)
	loc := pattern.FindStringSubmatchIndex(raw)
	if loc == nil {
		return "", "", fmt.Errorf("no anchor with expected href found")
	}

	visible := strings.TrimSpace(raw[loc[2]:loc[3]])
	if visible != anchor {
		return "", "", fmt.Errorf("anchor text %q does not match expected %q", visible, anchor)
	}

	return raw[:loc[0]], raw[loc[1]:], nil
}

// checkSentence enforces the structural contract on the rebuilt snippet
func checkSentence(sentence, prefix, anchor, suffix string, maxChars int) error {
	if len(sentence) > maxChars {
		return fmt.Errorf("sentence length %d exceeds limit %d", len(sentence), maxChars)
	}
	if strings.Contains(sentence, "!") {
		return fmt.Errorf("sentence contains an exclamation mark")
	}

	// At most one sentence of prose around the link
	prose := prefix + anchor + suffix
	if strings.Count(prose, ".")+strings.Count(prose, "?") > 1 {
		return fmt.Errorf("more than one sentence")
	}
	return nil
}

// fallbackTemplates are the deterministic sentences used when the AI path is
// unavailable or its output fails validation. %[1]s is the topic, %[2]s the
// anchor tag. None contain exclamation marks or a second sentence.
var fallbackTemplates = []string{
	"If you want to dig deeper into %[1]s, this %[2]s is a useful place to start.",
	"Readers interested in %[1]s may also find this %[2]s helpful.",
	"For a closer look at %[1]s, see this %[2]s.",
	"A good companion read on %[1]s is this %[2]s.",
	"Those exploring %[1]s can learn more from this %[2]s.",
}

const minimalTemplate = "See this %s for more details."

// fallbackSentence interpolates a fixed template with the topic and the
// escaped anchor tag. Template choice hashes the anchor and URL so repeated
// runs produce the same sentence for the same opportunity. The length limit
// binds here too: when even the bare anchor tag exceeds it there is nothing
// valid to emit and the attempt fails.
func (g *Generator) fallbackSentence(req Request, targetURL, anchor, anchorHTML string, maxChars int) (string, error) {
	topic := fallbackTopic(req)

	h := fnv.New32a()
	h.Write([]byte(anchor + "|" + targetURL))
	tmpl := fallbackTemplates[int(h.Sum32())%len(fallbackTemplates)]

	sentence := fmt.Sprintf(tmpl, html.EscapeString(topic), anchorHTML)
	if len(sentence) <= maxChars {
		return sentence, nil
	}

	sentence = fmt.Sprintf(minimalTemplate, anchorHTML)
	if len(sentence) <= maxChars {
		return sentence, nil
	}
	if len(anchorHTML) <= maxChars {
		return anchorHTML, nil
	}
	return "", fmt.Errorf("anchor tag length %d exceeds limit %d", len(anchorHTML), maxChars)
}

// fallbackTopic picks the interpolated subject: first keyword, then niche,
// then a generic noun.
func fallbackTopic(req Request) string {
	for _, kw := range req.Keywords {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			return kw
		}
	}
	if strings.TrimSpace(req.Niche) != "" {
		return strings.TrimSpace(req.Niche)
	}
	return "this topic"
}

// sanitizeAnchor strips newlines and angle brackets, collapses whitespace
// and caps the length. Runs before either generation path.
func sanitizeAnchor(anchor string) string {
	replacer := strings.NewReplacer("\n", " ", "\r", " ", "\t", " ", "<", "", ">", "")
	anchor = replacer.Replace(anchor)
	anchor = strings.Join(strings.Fields(anchor), " ")
	if len(anchor) > maxAnchorChars {
		anchor = strings.TrimSpace(anchor[:maxAnchorChars])
	}
	return anchor
}

// validateURL requires a well-formed absolute http/https URL. The raw URL is
// validated before it is ever sent to the completion service.
func validateURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse target URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("target URL must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("target URL has no host")
	}
	return u.String(), nil
}

// systemPrompt describes the structural constraints to the completion service
func systemPrompt(maxChars int) string {
	return fmt.Sprintf("You write one natural English sentence that recommends a linked resource. "+
		"Rules: exactly one sentence, under %d characters, no exclamation marks, "+
		"include the provided HTML anchor tag exactly as given, and write nothing else.", maxChars)
}

// userPrompt carries the anchor, URL and page context
func userPrompt(req Request, targetURL, anchor string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Anchor tag to include: <a href=\"%s\">%s</a>\n", targetURL, anchor)
	if req.Niche != "" {
		fmt.Fprintf(&b, "Site niche: %s\n", req.Niche)
	}
	if len(req.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(req.Keywords, ", "))
	}
	if req.PageTitle != "" {
		fmt.Fprintf(&b, "Page title: %s\n", req.PageTitle)
	}
	if req.PageExcerpt != "" {
		fmt.Fprintf(&b, "Page excerpt: %s\n", req.PageExcerpt)
	}
	b.WriteString("Write the sentence now.")
	return b.String()
}
