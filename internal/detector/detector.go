// Package detector classifies target sites by platform so the engine can
// choose between direct content-API placement and script injection.
package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/linkdeck/placement-engine/internal/logger"
)

// Platform identifiers produced by detection. "unknown" is a valid outcome,
// not an error: script injection works on any site.
const (
	PlatformWordPress   = "wordpress"
	PlatformShopify     = "shopify"
	PlatformWix         = "wix"
	PlatformSquarespace = "squarespace"
	PlatformWebflow     = "webflow"
	PlatformUnknown     = "unknown"
)

const maxHomepageBytes = 512 * 1024

// Result is the classification of one target site
type Result struct {
	Platform          string `json:"platform"`
	HasContentAPI     bool   `json:"has_content_api"`
	InjectionPossible bool   `json:"injection_possible"`
}

// Detector probes target sites. Construction injects the HTTP client and
// timeout; nothing here reads ambient environment state.
type Detector struct {
	client  *http.Client
	timeout time.Duration
	logger  logger.Logger
}

// New creates a detector
func New(client *http.Client, timeout time.Duration, log logger.Logger) *Detector {
	return &Detector{
		client:  client,
		timeout: timeout,
		logger:  log,
	}
}

// Detect classifies the site at siteURL with a single best-effort pass:
// first a probe of the WordPress REST endpoint on the target origin, then a
// homepage fetch scanned for known platform markers. Every failure mode
// degrades to the universal fallback {unknown, injection possible} instead
// of returning an error, because detection must never block placement.
func (d *Detector) Detect(ctx context.Context, siteURL string) Result {
	degraded := Result{Platform: PlatformUnknown, HasContentAPI: false, InjectionPossible: true}

	origin, err := normalizeOrigin(siteURL)
	if err != nil {
		d.logger.Warn("malformed site URL, degrading to injection",
			logger.String("site_url", siteURL),
			logger.Error(err),
		)
		return degraded
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if d.probeWordPressAPI(ctx, origin) {
		return Result{Platform: PlatformWordPress, HasContentAPI: true, InjectionPossible: true}
	}

	platform, ok := d.scanHomepage(ctx, origin)
	if !ok {
		d.logger.Debug("platform detection inconclusive",
			logger.String("origin", origin),
		)
		return degraded
	}

	return Result{Platform: platform, HasContentAPI: false, InjectionPossible: true}
}

// probeWordPressAPI issues a lightweight GET against the well-known posts
// endpoint. A 2xx response carrying a JSON array confirms both the platform
// and API reachability.
func (d *Detector) probeWordPressAPI(ctx context.Context, origin string) bool {
	probeURL := fmt.Sprintf("%s/wp-json/wp/v2/posts?per_page=1", origin)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, http.NoBody)
	if err != nil {
		return false
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHomepageBytes))
	if err != nil {
		return false
	}

	var posts []json.RawMessage
	return json.Unmarshal(body, &posts) == nil
}

// scanHomepage fetches the origin's homepage and pattern-matches markers for
// the fixed set of known platforms.
func (d *Detector) scanHomepage(ctx context.Context, origin string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin, http.NoBody)
	if err != nil {
		return "", false
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", false
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxHomepageBytes))
	if err != nil {
		return "", false
	}

	if platform, ok := classifyGenerator(doc); ok {
		return platform, true
	}
	if platform, ok := classifyMarkup(doc); ok {
		return platform, true
	}
	return "", false
}

// classifyGenerator inspects the meta generator tag
func classifyGenerator(doc *goquery.Document) (string, bool) {
	generator := strings.ToLower(doc.Find(`meta[name="generator"]`).AttrOr("content", ""))
	switch {
	case strings.Contains(generator, "wordpress"):
		return PlatformWordPress, true
	case strings.Contains(generator, "shopify"):
		return PlatformShopify, true
	case strings.Contains(generator, "wix"):
		return PlatformWix, true
	case strings.Contains(generator, "squarespace"):
		return PlatformSquarespace, true
	case strings.Contains(generator, "webflow"):
		return PlatformWebflow, true
	}
	return "", false
}

// markupSignatures maps asset-URL fragments to platforms. Checked against
// script and stylesheet references when no generator tag gives the platform
// away.
var markupSignatures = []struct {
	fragment string
	platform string
}{
	{"/wp-content/", PlatformWordPress},
	{"/wp-includes/", PlatformWordPress},
	{"cdn.shopify.com", PlatformShopify},
	{"wixstatic.com", PlatformWix},
	{"wixsite.com", PlatformWix},
	{"squarespace.com", PlatformSquarespace},
	{"website-files.com", PlatformWebflow},
}

// classifyMarkup scans script/link asset references for platform signatures
func classifyMarkup(doc *goquery.Document) (string, bool) {
	found := ""
	doc.Find("script[src], link[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		ref, ok := s.Attr("src")
		if !ok {
			ref = s.AttrOr("href", "")
		}
		ref = strings.ToLower(ref)
		for _, sig := range markupSignatures {
			if strings.Contains(ref, sig.fragment) {
				found = sig.platform
				return false
			}
		}
		return true
	})
	return found, found != ""
}

// normalizeOrigin validates the input URL and reduces it to scheme://host
func normalizeOrigin(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse site URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("site URL has no host")
	}
	return u.Scheme + "://" + u.Host, nil
}
