package utils

import (
	"github.com/microcosm-cc/bluemonday"
)

// post bodies may carry basic inline formatting when rendered
var contentPolicy = bluemonday.UGCPolicy()

// Sanitize renders stored post content as HTML that is safe to inject into a
// page. Stored content itself is never rewritten.
func Sanitize(input string) string {
	return contentPolicy.Sanitize(input)
}
