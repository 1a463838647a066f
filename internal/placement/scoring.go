package placement

import (
	"regexp"
	"strings"

	"github.com/linkdeck/placement-engine/internal/wordpress"
)

const (
	keywordMatchScore   = 2
	sweetSpotScore      = 1
	existingLinkPenalty = 2

	// Paragraphs in this word-count band read naturally with one extra
	// sentence appended
	sweetSpotMinWords = 20
	sweetSpotMaxWords = 100
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// stripTags reduces HTML to plain text for keyword and word-count scoring
func stripTags(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, " "))
}

// scoreText counts keyword matches: +2 per keyword present in the text
func scoreText(text string, keywords []string) int {
	lower := strings.ToLower(text)
	score := 0
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			score += keywordMatchScore
		}
	}
	return score
}

// selectPost picks the post whose body best matches the source keywords.
// With no keyword overlap at all, the single most recent post wins (posts
// arrive most-recent-first from the API).
func selectPost(posts []wordpress.Post, keywords []string) wordpress.Post {
	best := posts[0]
	bestScore := 0
	for _, post := range posts {
		score := scoreText(stripTags(post.Content.Rendered), keywords)
		if score > bestScore {
			best = post
			bestScore = score
		}
	}
	return best
}

// splitParagraphs breaks a post body into paragraphs, preserving markup so
// the body can be reassembled verbatim. HTML bodies split after each closing
// p tag; plain-text bodies split on blank lines.
func splitParagraphs(body string) ([]string, bool) {
	if strings.Contains(body, "</p>") {
		return strings.SplitAfter(body, "</p>"), true
	}
	return strings.Split(body, "\n\n"), false
}

// joinParagraphs reverses splitParagraphs
func joinParagraphs(paragraphs []string, htmlMode bool) string {
	if htmlMode {
		return strings.Join(paragraphs, "")
	}
	return strings.Join(paragraphs, "\n\n")
}

// selectParagraph scores the candidate insertion points and returns the
// index of the best one. First and last paragraphs are excluded so intros
// and conclusions stay untouched; paragraphs already carrying a hyperlink
// are penalized to avoid link-stuffing. Returns ok=false when the body has
// no middle paragraph with text.
func selectParagraph(paragraphs []string, keywords []string) (int, bool) {
	bestIdx := -1
	bestScore := 0
	for i := 1; i < len(paragraphs)-1; i++ {
		text := stripTags(paragraphs[i])
		if text == "" {
			continue
		}

		score := scoreText(text, keywords)

		words := len(strings.Fields(text))
		if words >= sweetSpotMinWords && words <= sweetSpotMaxWords {
			score += sweetSpotScore
		}
		if strings.Contains(strings.ToLower(paragraphs[i]), "<a ") {
			score -= existingLinkPenalty
		}

		if bestIdx == -1 || score > bestScore {
			bestIdx = i
			bestScore = score
		}
	}
	return bestIdx, bestIdx != -1
}

// appendToParagraph inserts the sentence at the end of the chosen paragraph,
// inside the closing p tag when the body is HTML
func appendToParagraph(paragraph, sentence string, htmlMode bool) string {
	if htmlMode && strings.Contains(paragraph, "</p>") {
		return strings.Replace(paragraph, "</p>", " "+sentence+"</p>", 1)
	}
	return paragraph + " " + sentence
}
