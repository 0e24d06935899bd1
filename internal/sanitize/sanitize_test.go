package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeStripsScriptTag(t *testing.T) {
	out := Sanitize(`<p>hello</p><script>alert(1)</script>`)
	assert.NotContains(t, out, "<script")
	assert.Contains(t, out, "hello")
}

func TestSanitizeStripsEventHandlers(t *testing.T) {
	out := Sanitize(`<p onclick="evil()">hi</p>`)
	assert.NotContains(t, out, "onclick")
}

func TestSanitizeStripsJavascriptURL(t *testing.T) {
	out := Sanitize(`<a href="javascript:alert(1)">click</a>`)
	assert.NotContains(t, strings.ToLower(out), "javascript:")
}

func TestSanitizeAllowsHTTPLinks(t *testing.T) {
	out := Sanitize(`<a href="https://example.com">link</a>`)
	assert.Contains(t, out, "https://example.com")
}

func TestSanitizeIsIdempotent(t *testing.T) {
	inputs := []string{
		`<p>plain</p>`,
		`<script>bad()</script><p onclick="x">hi</p>`,
		`<a href="javascript:x">l</a><div>unsupported tag</div>`,
		``,
	}
	for _, in := range inputs {
		once := Sanitize(in)
		twice := Sanitize(once)
		require.Equal(t, once, twice, "sanitize must be idempotent for %q", in)
	}
}

func TestIsEmptyDetectsWhitespaceOnlyMarkup(t *testing.T) {
	assert.True(t, IsEmpty(Sanitize("<p></p>")))
	assert.True(t, IsEmpty(Sanitize("<br>")))
	assert.False(t, IsEmpty(Sanitize("<p>hi</p>")))
}
