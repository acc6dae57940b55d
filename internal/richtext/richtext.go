// Package richtext handles the opaque rich-text values of text elements.
// Values are HTML fragments; the editor never interprets them beyond
// sanitizing on input and flattening for raster export.
package richtext

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	ugc        *bluemonday.Policy
	strict     *bluemonday.Policy
)

func policies() (*bluemonday.Policy, *bluemonday.Policy) {
	policyOnce.Do(func() {
		ugc = bluemonday.UGCPolicy()
		strict = bluemonday.StrictPolicy()
	})
	return ugc, strict
}

// Sanitize strips scripts, event handlers and other unsafe markup while
// keeping ordinary formatting tags.
func Sanitize(value string) string {
	p, _ := policies()
	return p.Sanitize(value)
}

// PlainText flattens value to text. Block-level breaks become newlines.
func PlainText(value string) string {
	_, p := policies()
	r := strings.NewReplacer(
		"<br>", "\n", "<br/>", "\n", "<br />", "\n",
		"</p>", "\n", "</div>", "\n", "</li>", "\n",
	)
	text := html.UnescapeString(p.Sanitize(r.Replace(value)))
	return strings.TrimRight(text, "\n")
}
