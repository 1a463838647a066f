package detector_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/linkdeck/placement-engine/internal/detector"
	"github.com/linkdeck/placement-engine/internal/logger"
)

const testTimeout = 5 * time.Second

func newDetector() *detector.Detector {
	return detector.New(http.DefaultClient, testTimeout, logger.NewNopLogger())
}

func TestDetect_WordPressViaAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/wp-json/wp/v2/posts" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"id":1,"title":{"rendered":"Hello"}}]`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	result := newDetector().Detect(context.Background(), srv.URL)

	assert.Equal(t, detector.PlatformWordPress, result.Platform)
	assert.True(t, result.HasContentAPI)
	assert.True(t, result.InjectionPossible)
}

func TestDetect_WordPressAPIBlockedFallsBackToMarkup(t *testing.T) {
	// REST API disabled but the homepage still carries wp-content assets:
	// WordPress without API access, injection only.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/wp-json/wp/v2/posts" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		w.Write([]byte(`<html><head>
			<link rel="stylesheet" href="/wp-content/themes/twentytwenty/style.css">
		</head><body></body></html>`))
	}))
	defer srv.Close()

	result := newDetector().Detect(context.Background(), srv.URL)

	assert.Equal(t, detector.PlatformWordPress, result.Platform)
	assert.False(t, result.HasContentAPI)
	assert.True(t, result.InjectionPossible)
}

func TestDetect_PlatformsByGeneratorTag(t *testing.T) {
	tests := []struct {
		name      string
		generator string
		expected  string
	}{
		{"shopify", "Shopify", detector.PlatformShopify},
		{"wix", "Wix.com Website Builder", detector.PlatformWix},
		{"squarespace", "Squarespace", detector.PlatformSquarespace},
		{"webflow", "Webflow", detector.PlatformWebflow},
		{"wordpress", "WordPress 6.4", detector.PlatformWordPress},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/wp-json/wp/v2/posts" {
					http.NotFound(w, r)
					return
				}
				w.Write([]byte(`<html><head><meta name="generator" content="` + tc.generator + `"></head><body></body></html>`))
			}))
			defer srv.Close()

			result := newDetector().Detect(context.Background(), srv.URL)

			assert.Equal(t, tc.expected, result.Platform)
			assert.False(t, result.HasContentAPI)
			assert.True(t, result.InjectionPossible)
		})
	}
}

func TestDetect_ShopifyByAssetSignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/wp-json/wp/v2/posts" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`<html><head>
			<script src="https://cdn.shopify.com/s/files/1/0000/theme.js"></script>
		</head><body></body></html>`))
	}))
	defer srv.Close()

	result := newDetector().Detect(context.Background(), srv.URL)

	assert.Equal(t, detector.PlatformShopify, result.Platform)
	assert.False(t, result.HasContentAPI)
}

func TestDetect_UnmarkedSiteDegradesToInjection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/wp-json/wp/v2/posts" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`<html><head><title>Plain site</title></head><body><p>hi</p></body></html>`))
	}))
	defer srv.Close()

	result := newDetector().Detect(context.Background(), srv.URL)

	assert.Equal(t, detector.PlatformUnknown, result.Platform)
	assert.False(t, result.HasContentAPI)
	assert.True(t, result.InjectionPossible)
}

func TestDetect_UnreachableSiteNeverErrors(t *testing.T) {
	// Server shut down before the probe: both requests fail, detection
	// degrades instead of blocking placement.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	result := newDetector().Detect(context.Background(), srv.URL)

	assert.Equal(t, detector.PlatformUnknown, result.Platform)
	assert.False(t, result.HasContentAPI)
	assert.True(t, result.InjectionPossible)
}

func TestDetect_MalformedURLDegrades(t *testing.T) {
	tests := []string{
		"",
		"not a url",
		"ftp://example.com",
		"://missing-scheme",
	}

	for _, raw := range tests {
		result := newDetector().Detect(context.Background(), raw)
		assert.Equal(t, detector.PlatformUnknown, result.Platform, "input %q", raw)
		assert.True(t, result.InjectionPossible, "input %q", raw)
	}
}

func TestDetect_WordPressProbeRejectsNonArrayJSON(t *testing.T) {
	// Some sites respond 200 with an HTML error page on unknown paths; a
	// non-array body must not classify as WordPress.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/wp-json/wp/v2/posts" {
			w.Write([]byte(`<html>soft 404</html>`))
			return
		}
		w.Write([]byte(`<html><head></head><body></body></html>`))
	}))
	defer srv.Close()

	result := newDetector().Detect(context.Background(), srv.URL)

	assert.Equal(t, detector.PlatformUnknown, result.Platform)
	assert.False(t, result.HasContentAPI)
}
