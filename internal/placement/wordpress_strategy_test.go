package placement_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkdeck/placement-engine/internal/generator"
	"github.com/linkdeck/placement-engine/internal/logger"
	"github.com/linkdeck/placement-engine/internal/models"
	"github.com/linkdeck/placement-engine/internal/placement"
)

const targetLinkURL = "https://source.example/guide"

// fakeWordPress is a minimal scripted WordPress REST double
type fakeWordPress struct {
	srv *httptest.Server

	posts          []map[string]any
	updatedID      string
	updatedContent string
	updateStatus   int
	verifyStatus   int
}

func newFakeWordPress(t *testing.T) *fakeWordPress {
	t.Helper()

	f := &fakeWordPress{updateStatus: http.StatusOK, verifyStatus: http.StatusOK}
	mux := http.NewServeMux()

	mux.HandleFunc("/wp-json/wp/v2/posts", func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "admin" || pass != "app-pass" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(f.posts)
	})

	mux.HandleFunc("/wp-json/wp/v2/posts/", func(w http.ResponseWriter, r *http.Request) {
		if f.updateStatus != http.StatusOK {
			w.WriteHeader(f.updateStatus)
			w.Write([]byte(`{"code":"rest_cannot_edit","message":"Sorry, you are not allowed to edit this post."}`))
			return
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.updatedID = strings.TrimPrefix(r.URL.Path, "/wp-json/wp/v2/posts/")
		f.updatedContent = body["content"]
		w.Write([]byte(`{}`))
	})

	mux.HandleFunc("/blog/", func(w http.ResponseWriter, r *http.Request) {
		if f.verifyStatus != http.StatusOK {
			w.WriteHeader(f.verifyStatus)
			return
		}
		w.Write([]byte("<html><body>" + f.updatedContent + "</body></html>"))
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeWordPress) addPost(id int, content string) {
	f.posts = append(f.posts, map[string]any{
		"id":      id,
		"link":    f.srv.URL + "/blog/post",
		"title":   map[string]string{"rendered": "A post"},
		"content": map[string]string{"rendered": content},
	})
}

func newStrategy() *placement.WordPressStrategy {
	gen := generator.New(nil, "nofollow", logger.NewNopLogger())
	return placement.NewWordPressStrategy(gen, http.DefaultClient, placement.WordPressStrategyConfig{
		RecentPosts: 10,
	}, logger.NewNopLogger())
}

func testOpportunity() *models.Opportunity {
	return &models.Opportunity{
		ID:                 uuid.New(),
		SuggestedAnchor:    "gardening guide",
		SuggestedTargetURL: targetLinkURL,
	}
}

func testMetrics(siteURL string) *models.DomainMetrics {
	return &models.DomainMetrics{
		SiteURL:       siteURL,
		WPUsername:    "admin",
		WPAppPassword: "app-pass",
		Niche:         "gardening",
	}
}

const fourParagraphBody = `<p>Intro paragraph that sets the scene for the article.</p>` +
	`<p>Our gardening tips cover soil preparation, composting and watering schedules for the home grower who wants healthy plants all season long.</p>` +
	`<p>A second body paragraph about tools and maintenance around the yard.</p>` +
	`<p>Closing thoughts and a short farewell to the reader.</p>`

func TestWordPressStrategy_PlaceAndVerify(t *testing.T) {
	wp := newFakeWordPress(t)
	wp.addPost(7, fourParagraphBody)

	result := newStrategy().Place(context.Background(), testOpportunity(),
		testMetrics(wp.srv.URL), []string{"gardening"})

	require.True(t, result.Success, "error: %s", result.ErrorMessage)
	assert.True(t, result.VerificationSuccess)
	assert.Equal(t, models.MethodContentAPI, result.Method)
	assert.Equal(t, wp.srv.URL+"/blog/post", result.PlacementURL)
	assert.Equal(t, "7", wp.updatedID)

	// Exactly one new anchor, not in the intro paragraph
	assert.Equal(t, 1, strings.Count(wp.updatedContent, `href="`+targetLinkURL+`"`))
	paragraphs := strings.SplitAfter(wp.updatedContent, "</p>")
	assert.NotContains(t, paragraphs[0], "<a ")
}

func TestWordPressStrategy_KeywordMatchingPicksThePost(t *testing.T) {
	wp := newFakeWordPress(t)
	wp.addPost(1, `<p>One.</p><p>A long enough paragraph about cars, engines and highway driving for everyone.</p><p>End.</p>`)
	wp.addPost(2, `<p>One.</p><p>A long enough paragraph about gardening, soil and compost for home growers everywhere.</p><p>End.</p>`)

	result := newStrategy().Place(context.Background(), testOpportunity(),
		testMetrics(wp.srv.URL), []string{"gardening"})

	require.True(t, result.Success, "error: %s", result.ErrorMessage)
	assert.Equal(t, "2", wp.updatedID)
}

func TestWordPressStrategy_VerifiesEscapedHref(t *testing.T) {
	// Query separators in the target URL render entity-escaped in the
	// anchor's href; verification must still find the link.
	wp := newFakeWordPress(t)
	wp.addPost(7, fourParagraphBody)

	opp := testOpportunity()
	opp.SuggestedTargetURL = "https://source.example/guide?utm_source=exchange&ref=42"

	result := newStrategy().Place(context.Background(), opp,
		testMetrics(wp.srv.URL), []string{"gardening"})

	require.True(t, result.Success, "error: %s", result.ErrorMessage)
	assert.Contains(t, wp.updatedContent, "utm_source=exchange&amp;ref=42")
	assert.True(t, result.VerificationSuccess)
}

func TestWordPressStrategy_VerificationFailureDoesNotDowngradeSuccess(t *testing.T) {
	// The edit landed; a flaky verification fetch must not fail the
	// placement or trigger a refund.
	wp := newFakeWordPress(t)
	wp.addPost(7, fourParagraphBody)
	wp.verifyStatus = http.StatusInternalServerError

	result := newStrategy().Place(context.Background(), testOpportunity(),
		testMetrics(wp.srv.URL), []string{"gardening"})

	require.True(t, result.Success, "error: %s", result.ErrorMessage)
	assert.False(t, result.VerificationSuccess)
	assert.Empty(t, result.ErrorMessage)
}

func TestWordPressStrategy_UpdateRejected(t *testing.T) {
	wp := newFakeWordPress(t)
	wp.addPost(7, fourParagraphBody)
	wp.updateStatus = http.StatusForbidden

	result := newStrategy().Place(context.Background(), testOpportunity(),
		testMetrics(wp.srv.URL), []string{"gardening"})

	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "update post")
	assert.False(t, result.VerificationSuccess)
}

func TestWordPressStrategy_NoPublishedPosts(t *testing.T) {
	wp := newFakeWordPress(t)

	result := newStrategy().Place(context.Background(), testOpportunity(),
		testMetrics(wp.srv.URL), nil)

	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "no published posts")
}

func TestWordPressStrategy_MissingCredentials(t *testing.T) {
	result := newStrategy().Place(context.Background(), testOpportunity(),
		&models.DomainMetrics{SiteURL: "https://example.com"}, nil)

	assert.False(t, result.Success)
}
