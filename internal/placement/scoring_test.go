package placement

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectParagraph(t *testing.T) {
	middle := "A paragraph about vegetable gardening with enough words to read naturally " +
		"when one extra sentence lands at its end, covering soil, compost and water."

	tests := []struct {
		name       string
		paragraphs []string
		keywords   []string
		wantIdx    int
		wantOK     bool
	}{
		{
			name:       "keyword paragraph wins over neutral ones",
			paragraphs: []string{"<p>Intro.</p>", "<p>Nothing relevant here at all.</p>", "<p>" + middle + "</p>", "<p>Outro.</p>", ""},
			keywords:   []string{"gardening"},
			wantIdx:    2,
			wantOK:     true,
		},
		{
			name:       "existing hyperlink is penalized",
			paragraphs: []string{"<p>Intro.</p>", `<p>Already has <a href="https://x.example">a link</a> in it today.</p>`, "<p>A clean middle paragraph of comparable prose for the reader.</p>", "<p>Outro.</p>", ""},
			wantIdx:    2,
			wantOK:     true,
		},
		{
			name:       "first paragraph is never selected",
			paragraphs: []string{"<p>gardening gardening gardening</p>", "<p>Middle text here.</p>", "<p>Outro.</p>", ""},
			keywords:   []string{"gardening"},
			wantIdx:    1,
			wantOK:     true,
		},
		{
			name:       "single paragraph has no insertion point",
			paragraphs: []string{"<p>Only one.</p>", ""},
			wantOK:     false,
		},
		{
			name:       "empty body",
			paragraphs: []string{},
			wantOK:     false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			idx, ok := selectParagraph(tc.paragraphs, tc.keywords)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.wantIdx, idx)
			}
		})
	}
}

func TestSplitAndJoinParagraphsRoundTrip(t *testing.T) {
	htmlBody := "<p>One.</p><p>Two.</p><p>Three.</p>"
	paragraphs, htmlMode := splitParagraphs(htmlBody)
	assert.True(t, htmlMode)
	assert.Equal(t, htmlBody, joinParagraphs(paragraphs, htmlMode))

	plainBody := "One.\n\nTwo.\n\nThree."
	paragraphs, htmlMode = splitParagraphs(plainBody)
	assert.False(t, htmlMode)
	assert.Len(t, paragraphs, 3)
	assert.Equal(t, plainBody, joinParagraphs(paragraphs, htmlMode))
}

func TestAppendToParagraph(t *testing.T) {
	sentence := `See <a href="https://x.example">this</a>.`

	got := appendToParagraph("<p>Body text.</p>", sentence, true)
	assert.True(t, strings.HasSuffix(got, sentence+"</p>"))
	assert.Equal(t, 1, strings.Count(got, "</p>"))

	got = appendToParagraph("Body text.", sentence, false)
	assert.Equal(t, "Body text. "+sentence, got)
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "Hello", stripTags("<b>Hello</b>"))
	assert.Equal(t, "plain", stripTags("plain"))
	assert.NotContains(t, stripTags(`<a href="https://x.example">go</a>`), "href")
}
