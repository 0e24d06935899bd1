// Package sanitize restricts message HTML bodies to the exact
// tag/attribute allow-list the system requires as a server-side
// correctness invariant, independent of any client-side editor.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = buildPolicy()

func buildPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements("p", "br", "strong", "em", "u", "s", "ul", "ol", "li", "blockquote", "code", "pre", "span")

	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	p.AllowURLSchemes("http", "https")
	p.RequireNoFollowOnLinks(false)
	p.AllowElements("a")

	return p
}

// Sanitize strips all markup outside the allow-list, all
// event-handler attributes, and any javascript: URL. It is
// idempotent: Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(html string) string {
	cleaned := policy.Sanitize(html)
	return strings.TrimSpace(cleaned)
}

// IsEmpty reports whether sanitized content has no meaningful body
// (used by the message service's "content non-empty OR attachment"
// precondition).
func IsEmpty(sanitized string) bool {
	stripped := strings.NewReplacer(
		"<p>", "", "</p>", "",
		"<br>", "", "<br/>", "", "<br />", "",
	).Replace(sanitized)
	return strings.TrimSpace(stripped) == ""
}
