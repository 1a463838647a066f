package generator_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkdeck/placement-engine/internal/generator"
	"github.com/linkdeck/placement-engine/internal/logger"
)

type fakeClient struct {
	response string
	err      error
	calls    int
}

func (f *fakeClient) Complete(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.response, f.err
}

const (
	testURL    = "https://example.com/guide"
	testAnchor = "gardening guide"
)

func newGenerator(client generator.CompletionClient) *generator.Generator {
	return generator.New(client, "nofollow", logger.NewNopLogger())
}

func TestGenerate_ValidAIResponse(t *testing.T) {
	client := &fakeClient{
		response: `For spring planting tips, this <a href="https://example.com/guide">gardening guide</a> covers the basics.`,
	}
	gen := newGenerator(client)

	sentence, err := gen.Generate(context.Background(), generator.Request{
		AnchorText: testAnchor,
		TargetURL:  testURL,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, client.calls)
	assert.Contains(t, sentence, `<a href="https://example.com/guide" rel="nofollow">gardening guide</a>`)
	assert.Contains(t, sentence, "For spring planting tips")
	assert.Contains(t, sentence, "covers the basics.")
	assert.Equal(t, 1, strings.Count(sentence, "<a "))
}

func TestGenerate_AIResponseIsNeverTrustedAsHTML(t *testing.T) {
	// The anchor itself validates, but the surrounding prose carries a
	// script tag. It must come out escaped, not live.
	client := &fakeClient{
		response: `A useful <a href="https://example.com/guide">gardening guide</a><script>steal()</script>`,
	}
	gen := newGenerator(client)

	sentence, err := gen.Generate(context.Background(), generator.Request{
		AnchorText: testAnchor,
		TargetURL:  testURL,
	})
	require.NoError(t, err)

	assert.NotContains(t, sentence, "<script")
	assert.Contains(t, sentence, "&lt;script&gt;")
	assert.Equal(t, 1, strings.Count(sentence, "<a "))
}

func TestGenerate_MaliciousAnchorTextIsSanitized(t *testing.T) {
	gen := newGenerator(nil)

	sentence, err := gen.Generate(context.Background(), generator.Request{
		AnchorText: "</p><script>alert(1)</script>best tools",
		TargetURL:  testURL,
		Keywords:   []string{"gardening"},
	})
	require.NoError(t, err)

	assert.NotContains(t, sentence, "<script")
	assert.NotContains(t, sentence, "</p>")
	assert.Equal(t, 1, strings.Count(sentence, "<a "))
}

func TestGenerate_FallbackOnRejectedAIOutput(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
	}{
		{
			name:     "two anchor tags",
			response: `See <a href="https://example.com/guide">gardening guide</a> and <a href="https://evil.example">this</a>.`,
		},
		{
			name:     "wrong href",
			response: `See this <a href="https://evil.example/phish">gardening guide</a> today.`,
		},
		{
			name:     "anchor text tampered",
			response: `See this <a href="https://example.com/guide">CHEAP PILLS</a> today.`,
		},
		{
			name:     "exclamation mark",
			response: `This <a href="https://example.com/guide">gardening guide</a> is amazing!`,
		},
		{
			name:     "multiple sentences",
			response: `This <a href="https://example.com/guide">gardening guide</a> is great. It covers everything. Really.`,
		},
		{
			name:     "no anchor at all",
			response: `Here is a sentence with no link in it.`,
		},
		{
			name: "completion error",
			err:  errors.New("upstream timeout"),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gen := newGenerator(&fakeClient{response: tc.response, err: tc.err})

			sentence, err := gen.Generate(context.Background(), generator.Request{
				AnchorText: testAnchor,
				TargetURL:  testURL,
				Keywords:   []string{"gardening"},
			})
			require.NoError(t, err)

			assert.Equal(t, 1, strings.Count(sentence, "<a "))
			assert.Contains(t, sentence, `href="https://example.com/guide"`)
			assert.Contains(t, sentence, ">gardening guide</a>")
			assert.NotContains(t, sentence, "!")
		})
	}
}

// FuzzGenerate feeds arbitrary completion responses through the generator
// and checks the structural contract on every output: exactly one anchor,
// the canonical tag for the validated URL, no exclamation marks, length
// within the limit. Malformed responses must fall back, never error.
func FuzzGenerate(f *testing.F) {
	f.Add(`For spring tips, this <a href="https://example.com/guide">gardening guide</a> helps.`)
	f.Add(`<a href="https://evil.example">gardening guide</a>`)
	f.Add(`<a href="https://example.com/guide">gardening guide</a><a href="https://example.com/guide">again</a>`)
	f.Add(`So good! <a href="https://example.com/guide">gardening guide</a>`)
	f.Add(`<script>alert(1)</script>`)
	f.Add(`<a href='https://example.com/guide'>gardening guide`)
	f.Add("")
	f.Add(strings.Repeat("a", 1000))

	canonical := `<a href="https://example.com/guide" rel="nofollow">gardening guide</a>`

	f.Fuzz(func(t *testing.T, response string) {
		gen := newGenerator(&fakeClient{response: response})

		sentence, err := gen.Generate(context.Background(), generator.Request{
			AnchorText: testAnchor,
			TargetURL:  testURL,
			Keywords:   []string{"gardening"},
		})
		require.NoError(t, err)

		assert.Equal(t, 1, strings.Count(sentence, "<a "))
		assert.Contains(t, sentence, canonical)
		assert.NotContains(t, sentence, "!")
		assert.NotContains(t, sentence, "<script")
		assert.LessOrEqual(t, len(sentence), generator.DefaultMaxChars)
	})
}

func TestGenerate_FallbackIsDeterministic(t *testing.T) {
	gen := newGenerator(nil)
	req := generator.Request{
		AnchorText: testAnchor,
		TargetURL:  testURL,
		Keywords:   []string{"organic gardening"},
	}

	first, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	second, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, first, "organic gardening")
}

func TestGenerate_RespectsMaxChars(t *testing.T) {
	gen := newGenerator(nil)

	sentence, err := gen.Generate(context.Background(), generator.Request{
		AnchorText: testAnchor,
		TargetURL:  testURL,
		MaxChars:   120,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(sentence), 120)
}

func TestGenerate_ErrorsWhenAnchorTagCannotFit(t *testing.T) {
	gen := newGenerator(nil)

	// The anchor tag alone is longer than the limit, so no valid snippet
	// exists at all.
	_, err := gen.Generate(context.Background(), generator.Request{
		AnchorText: "comprehensive gardening guide",
		TargetURL:  "https://example.com/very/long/path/to/the/guide/page",
		MaxChars:   40,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds limit")
}

func TestGenerate_DegradesToBareAnchorWithinLimit(t *testing.T) {
	gen := newGenerator(nil)

	anchorHTML := `<a href="https://example.com/guide" rel="nofollow">gardening guide</a>`

	// Too small for any template sentence, but the anchor itself fits.
	sentence, err := gen.Generate(context.Background(), generator.Request{
		AnchorText: testAnchor,
		TargetURL:  testURL,
		MaxChars:   len(anchorHTML),
	})
	require.NoError(t, err)
	assert.Equal(t, anchorHTML, sentence)
}

func TestGenerate_InvalidTargetURL(t *testing.T) {
	gen := newGenerator(nil)

	tests := []struct {
		name string
		url  string
	}{
		{"javascript scheme", "javascript:alert(1)"},
		{"no scheme", "example.com/guide"},
		{"empty", ""},
		{"ftp scheme", "ftp://example.com/file"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := gen.Generate(context.Background(), generator.Request{
				AnchorText: testAnchor,
				TargetURL:  tc.url,
			})
			assert.Error(t, err)
		})
	}
}

func TestGenerate_EmptyAnchorAfterSanitization(t *testing.T) {
	gen := newGenerator(nil)

	_, err := gen.Generate(context.Background(), generator.Request{
		AnchorText: "<>\n\t",
		TargetURL:  testURL,
	})
	assert.Error(t, err)
}
